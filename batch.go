package kekconv

// The batch layer: drives decode -> (optional image processing) -> encode
// over a whole image directory with a fixed pool of workers.
//
// The image list is split into disjoint chunks up front; workers share only
// the read-only lookup tables in Env and return per-chunk partial results
// (hard-mode COCO documents, simple-mode category fragments, TFRecord
// items). The partials are merged in chunk order after the pool drains, so
// the aggregate output is deterministic.

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	log "github.com/sirupsen/logrus"
)

// ImageError is one failed image conversion.
type ImageError struct {
	Path string
	Err  error
}

// RunReport summarises a conversion run.
type RunReport struct {
	Total     int
	Converted int
	Errors    []ImageError
}

// Converter performs one configured conversion run.
type Converter struct {
	cfg        *Config
	source     Format
	target     Format
	srcCodec   Codec
	dstCodec   Codec // nil for the TFRecord target.
	env        *Env
	processing ImageProcessing
}

// NewConverter resolves the formats and loads the shared lookup tables
// (class mapper, COCO category table or dataset index) for a run.
func NewConverter(cfg *Config) (*Converter, error) {
	source, err := cfg.SourceFormat()
	if err != nil {
		return nil, err
	}
	target, err := cfg.TargetFormat()
	if err != nil {
		return nil, err
	}

	srcCodec, err := source.Codec()
	if err != nil {
		return nil, err
	}

	var dstCodec Codec
	if target != FormatTFRecord {
		dstCodec, err = target.Codec()
		if err != nil {
			return nil, err
		}
	}

	env := &Env{AnnotationDir: cfg.AnnotationDir}
	if cfg.ClassMapperPath != "" {
		env.Classes, err = LoadClassMapper(cfg.ClassMapperPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load the class mapper: %v", err)
		}
	}
	switch source {
	case FormatCOCOSimple:
		env.Categories, err = LoadCOCOCategories(cfg.COCOCategoriesPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load the COCO categories: %v", err)
		}
	case FormatCOCOHard:
		env.Index, err = LoadCOCOIndex(cfg.AnnotationDir)
		if err != nil {
			return nil, fmt.Errorf("failed to index the COCO dataset: %v", err)
		}
		env.AnnotationDir = ""
	}

	return &Converter{
		cfg:        cfg,
		source:     source,
		target:     target,
		srcCodec:   srcCodec,
		dstCodec:   dstCodec,
		env:        env,
		processing: cfg.imageProcessing(),
	}, nil
}

// chunk is a contiguous slice of the image list. start is the global index
// of its first image, which keeps image ids unique across workers.
type chunk struct {
	start int
	paths []string
}

// chunkPaths splits paths into at most n balanced contiguous chunks.
func chunkPaths(paths []string, n int) []chunk {
	if n > len(paths) {
		n = len(paths)
	}
	if n <= 0 {
		return nil
	}

	div, mod := len(paths)/n, len(paths)%n
	chunks := make([]chunk, 0, n)
	for i := 0; i < n; i++ {
		lo := i*div + min(i, mod)
		hi := (i+1)*div + min(i+1, mod)
		chunks = append(chunks, chunk{start: lo, paths: paths[lo:hi]})
	}
	return chunks
}

// chunkResult is the partial result a worker returns for its chunk.
type chunkResult struct {
	converted  int
	errors     []ImageError
	doc        *COCODocument    // Hard-mode COCO target.
	categories CategoryRegistry // Simple-mode COCO target.
	records    []AnnotatedImage // TFRecord target.
}

// Run converts every image in the configured directory.
//
// With fail_fast set, the first per-image error aborts the run and Run
// returns that error; otherwise failed images are recorded in the report and
// the batch continues. Errors in aggregate output writing are always fatal.
func (c *Converter) Run() (*RunReport, error) {
	images, err := imageFilesInDir(c.cfg.ImageDir, c.cfg.ImageExtensions)
	if err != nil {
		return nil, err
	}
	log.Infof("Converting annotations for %d images from %s to %s", len(images), c.source, c.target)

	chunks := chunkPaths(images, c.cfg.NJobs)
	results := make([]*chunkResult, len(chunks))
	var abort atomic.Bool
	var wg sync.WaitGroup

	wg.Add(len(chunks))
	for i := range chunks {
		go func(i int) {
			defer wg.Done()
			results[i] = c.convertChunk(chunks[i], &abort)
		}(i)
	}
	wg.Wait()

	report := &RunReport{Total: len(images)}
	for _, res := range results {
		report.Converted += res.converted
		report.Errors = append(report.Errors, res.errors...)
	}

	if c.cfg.FailFast && len(report.Errors) > 0 {
		first := report.Errors[0]
		return report, fmt.Errorf("conversion of %q failed: %v", first.Path, first.Err)
	}
	for _, e := range report.Errors {
		log.Warnf("Skipped %q: %v", e.Path, e.Err)
	}

	if err := c.writeAggregates(results); err != nil {
		return report, err
	}

	log.Infof("Converted annotations for %d of %d images", report.Converted, report.Total)
	return report, nil
}

// convertChunk runs the per-image pipeline over one chunk.
func (c *Converter) convertChunk(ch chunk, abort *atomic.Bool) *chunkResult {
	res := &chunkResult{categories: make(CategoryRegistry)}
	if c.target == FormatCOCOHard {
		res.doc = NewCOCODocument()
	}

	for i, path := range ch.paths {
		if abort.Load() {
			break
		}
		if err := c.convertOne(path, ch.start+i, res); err != nil {
			res.errors = append(res.errors, ImageError{Path: path, Err: err})
			if c.cfg.FailFast {
				abort.Store(true)
				break
			}
			continue
		}
		res.converted++
	}

	return res
}

// convertOne converts a single image: decode, optional resize, encode, and
// either an inline file write or an append to the chunk's partial aggregate.
func (c *Converter) convertOne(path string, imageID int, res *chunkResult) error {
	img, err := c.srcCodec.Decode(path, imageID, c.env)
	if err != nil {
		return err
	}

	imagePath := path
	if c.processing.enabled() {
		img, imagePath, err = processAnnotatedImage(img, path, c.processing)
		if err != nil {
			return err
		}
	}

	if c.target == FormatTFRecord {
		res.records = append(res.records, AnnotatedImage{Image: img, Path: imagePath})
		return nil
	}

	enc, err := c.dstCodec.Encode(img, c.env)
	if err != nil {
		return err
	}

	if c.target == FormatCOCOHard {
		res.doc.Append(enc.Image, enc.Annotations, enc.Categories)
		return nil
	}

	outPath := ConstructAnnotationFilePath(imagePath, c.target.Ext(), c.cfg.SavePath)
	if err := os.WriteFile(outPath, enc.Body, 0644); err != nil {
		return fmt.Errorf("cannot write file %q: %v", outPath, err)
	}
	res.categories.Merge(enc.Categories)

	return nil
}

// writeAggregates writes the outputs that span the whole batch: the shared
// hard-mode COCO document, the simple-mode category list, or the TFRecord
// stream.
func (c *Converter) writeAggregates(results []*chunkResult) error {
	switch c.target {
	case FormatCOCOHard:
		doc := NewCOCODocument()
		if c.cfg.COCOInfoPath != "" {
			info, err := LoadCOCOSection(c.cfg.COCOInfoPath)
			if err != nil {
				return fmt.Errorf("failed to load the info section: %v", err)
			}
			doc.Info = info
		}
		if c.cfg.COCOLicensesPath != "" {
			licenses, err := LoadCOCOSection(c.cfg.COCOLicensesPath)
			if err != nil {
				return fmt.Errorf("failed to load the licenses section: %v", err)
			}
			doc.Licenses = licenses
		}
		for _, res := range results {
			doc.Merge(res.doc)
		}
		return doc.WriteFile(c.cfg.SavePath)

	case FormatCOCOSimple:
		categories := make(CategoryRegistry)
		for _, res := range results {
			categories.Merge(res.categories)
		}
		return WriteCOCOCategories(filepath.Join(c.cfg.SavePath, "categories.json"), categories)

	case FormatTFRecord:
		var records []AnnotatedImage
		for _, res := range results {
			records = append(records, res.records...)
		}
		return WriteTFRecords(c.cfg.SavePath, c.cfg.TFRecordLabelMapPath, records, c.cfg.TFRecordShards)
	}

	return nil
}
