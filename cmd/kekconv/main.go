// Converts object-detection dataset annotations between the Darknet, PASCAL
// VOC and MS COCO formats (plus TFRecord output), driven by a YAML run
// configuration.
package main

import (
	"os"

	"github.com/akamensky/argparse"
	nested "github.com/antonfisher/nested-logrus-formatter"
	log "github.com/sirupsen/logrus"

	kekconv "github.com/KEKDATA/KEKCONVERTERS"
)

func main() {
	parser := argparse.NewParser("kekconv",
		"Converts object-detection annotations between Darknet, PASCAL VOC and MS COCO through a shared intermediate representation")
	configPath := parser.String("c", "config", &argparse.Options{
		Required: true,
		Help:     "Path to the YAML run configuration",
	})
	verbose := parser.Flag("v", "verbose", &argparse.Options{
		Help: "Enable debug logging",
	})
	if err := parser.Parse(os.Args); err != nil {
		log.Fatal(parser.Usage(err))
	}

	log.SetFormatter(&nested.Formatter{
		HideKeys:        true,
		TimestampFormat: "15:04:05",
	})
	if *verbose {
		log.SetLevel(log.DebugLevel)
	}

	cfg, err := kekconv.LoadConfig(*configPath)
	if err != nil {
		log.Fatal("Failed to load the configuration: ", err)
	}

	converter, err := kekconv.NewConverter(cfg)
	if err != nil {
		log.Fatal("Failed to prepare the conversion: ", err)
	}

	report, err := converter.Run()
	if err != nil {
		log.Fatal("Conversion failed: ", err)
	}
	if len(report.Errors) > 0 {
		log.Warnf("Finished with %d of %d images skipped", len(report.Errors), report.Total)
		os.Exit(1)
	}
}
