package kekconv

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ConstructAnnotationFilePath derives the annotation file path that belongs
// to an image: the image base name with ext (including the dot) in baseDir.
// An empty baseDir keeps the image's own directory.
func ConstructAnnotationFilePath(imagePath, ext, baseDir string) string {
	dir, name := filepath.Split(imagePath)
	if baseDir != "" {
		dir = baseDir
	}
	baseNoExt := strings.TrimSuffix(name, filepath.Ext(name))
	return filepath.Join(dir, baseNoExt+ext)
}

// imageFilesInDir returns the regular files directly in dirPath whose
// extension is in exts, sorted by name. The sort keeps image ids stable
// between runs. An empty exts keeps every file.
func imageFilesInDir(dirPath string, exts []string) ([]string, error) {
	entries, err := os.ReadDir(dirPath)
	if err != nil {
		return nil, fmt.Errorf("cannot read directory %q: %v", dirPath, err)
	}

	keep := func(name string) bool {
		if len(exts) == 0 {
			return true
		}
		ext := filepath.Ext(name)
		for _, e := range exts {
			if strings.EqualFold(e, ext) {
				return true
			}
		}
		return false
	}

	files := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !keep(entry.Name()) {
			continue
		}
		files = append(files, filepath.Join(dirPath, entry.Name()))
	}
	sort.Strings(files)

	return files, nil
}

// splitPath splits the given file path into the dir name, the base name
// without extension and the extension (without the dot).
func splitPath(path string) (dir, baseNoExt, ext string, err error) {
	dir, file := filepath.Split(path)
	ext = filepath.Ext(file)
	if ext == "" {
		return "", "", "", fmt.Errorf("missing file extension in %q", path)
	}

	dir = strings.TrimSuffix(dir, string(os.PathSeparator))
	baseNoExt = file[0 : len(file)-len(ext)]
	ext = ext[1:]

	return dir, baseNoExt, ext, nil
}

// readLines returns a slice of lines read from the file at path.
func readLines(path string) (lines []string, err error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read file %q: %v", path, err)
	}
	defer closeWithErrCheck(file, &err)

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read %q as lines: %v", path, err)
	}

	return lines, nil
}

// closeWithErrCheck calls c.Close(). If it returns an error, and (*e == nil),
// e is set to that error.
func closeWithErrCheck(c io.Closer, e *error) {
	err := c.Close()
	if err != nil && *e == nil {
		*e = err
	}
}
