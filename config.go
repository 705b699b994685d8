package kekconv

import (
	"fmt"
	"os"
	"runtime"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config describes one conversion run. It is loaded from a YAML file.
type Config struct {
	SourceAnnotation string `yaml:"source_annotation" validate:"required,oneof=darknet pascalvoc mscoco"`
	TargetAnnotation string `yaml:"target_annotation" validate:"required,oneof=darknet pascalvoc mscoco tfrecord"`

	ImageDir        string   `yaml:"path_to_images" validate:"required"`
	AnnotationDir   string   `yaml:"path_to_annotations"`
	SavePath        string   `yaml:"save_path" validate:"required"`
	ClassMapperPath string   `yaml:"class_mapper_path"`
	ImageExtensions []string `yaml:"image_extensions"`

	NJobs    int  `yaml:"n_jobs" validate:"min=0"`
	FailFast bool `yaml:"fail_fast"`

	COCOHardMode       bool   `yaml:"mscoco_hard_mode"`
	COCOCategoriesPath string `yaml:"mscoco_simple_categories_path"`
	COCOInfoPath       string `yaml:"mscoco_info_section_path"`
	COCOLicensesPath   string `yaml:"mscoco_licenses_section_path"`

	TFRecordLabelMapPath string `yaml:"tfrecord_label_map_path"`
	TFRecordShards       int    `yaml:"tfrecord_num_shards" validate:"min=0"`

	ImageOutDir        string `yaml:"image_out_dir"`
	ResizeLongerSide   int    `yaml:"resize_longer_side" validate:"min=0"`
	ResizeShorterSide  int    `yaml:"resize_shorter_side" validate:"min=0"`
	DownsamplingFilter string `yaml:"downsampling_filter" validate:"omitempty,oneof=nearest box linear gaussian lanczos"`
	UpsamplingFilter   string `yaml:"upsampling_filter" validate:"omitempty,oneof=nearest box linear gaussian lanczos"`
	ImageEncoding      string `yaml:"image_encoding" validate:"omitempty,oneof=jpg jpeg png"`
	JPEGQuality        int    `yaml:"jpeg_quality" validate:"min=0,max=100"`
}

// LoadConfig reads and validates a YAML run configuration.
func LoadConfig(path string) (*Config, error) {
	enc, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(enc, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %q: %v", path, err)
	}
	cfg.applyDefaults()

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config %q: %v", path, err)
	}
	if err := cfg.check(); err != nil {
		return nil, fmt.Errorf("invalid config %q: %v", path, err)
	}

	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.NJobs == 0 {
		c.NJobs = runtime.NumCPU()
	}
	if c.TFRecordShards == 0 {
		c.TFRecordShards = 1
	}
	if len(c.ImageExtensions) == 0 {
		c.ImageExtensions = []string{".jpg", ".jpeg", ".png"}
	}
	if c.JPEGQuality == 0 {
		c.JPEGQuality = 90
	}
	if c.ImageEncoding == "" {
		c.ImageEncoding = "jpg"
	}
}

// check validates the cross-field constraints the struct tags cannot express.
func (c *Config) check() error {
	source, err := c.SourceFormat()
	if err != nil {
		return err
	}
	target, err := c.TargetFormat()
	if err != nil {
		return err
	}

	if source == FormatTFRecord {
		return fmt.Errorf("tfrecord is an output-only format")
	}
	switch source {
	case FormatDarknet, FormatPascalVOC:
		if c.ClassMapperPath == "" {
			return fmt.Errorf("%s input requires class_mapper_path", source)
		}
	case FormatCOCOSimple:
		if c.COCOCategoriesPath == "" {
			return fmt.Errorf("simple-mode mscoco input requires mscoco_simple_categories_path")
		}
	case FormatCOCOHard:
		if c.AnnotationDir == "" {
			return fmt.Errorf("hard-mode mscoco input requires path_to_annotations (the shared JSON file)")
		}
	}

	if target == FormatTFRecord && c.TFRecordLabelMapPath == "" {
		return fmt.Errorf("tfrecord output requires tfrecord_label_map_path")
	}
	if (c.ResizeLongerSide > 0 || c.ResizeShorterSide > 0) && c.ImageOutDir == "" {
		return fmt.Errorf("image resizing requires image_out_dir")
	}
	if c.ImageOutDir != "" && c.ImageOutDir == c.ImageDir {
		return fmt.Errorf("image_out_dir cannot equal path_to_images")
	}

	return nil
}

// SourceFormat resolves the source format, splitting mscoco by mode.
func (c *Config) SourceFormat() (Format, error) {
	return ParseFormat(c.SourceAnnotation, c.COCOHardMode)
}

// TargetFormat resolves the target format, splitting mscoco by mode.
func (c *Config) TargetFormat() (Format, error) {
	return ParseFormat(c.TargetAnnotation, c.COCOHardMode)
}

// imageProcessing builds the optional resize step from the config.
func (c *Config) imageProcessing() ImageProcessing {
	return ImageProcessing{
		OutDir:       c.ImageOutDir,
		LongerSide:   c.ResizeLongerSide,
		ShorterSide:  c.ResizeShorterSide,
		Downsampling: c.DownsamplingFilter,
		Upsampling:   c.UpsamplingFilter,
		Encoding:     c.ImageEncoding,
		JPEGQuality:  c.JPEGQuality,
	}
}
