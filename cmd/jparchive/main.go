package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/dazzle-joomla/cliarchiver/archive"
	"github.com/dazzle-joomla/cliarchiver/archiveutil"
)

var config struct {
	// source
	source string

	// target
	output string
	format string

	// splitting
	partSize int64

	// Format-E
	password   string
	staticSalt bool

	dereference bool
}

func init() {
	flag.StringVar(&config.source, "source", "", "directory to archive")
	flag.StringVar(&config.output, "output", "", "archive base path (extension is added automatically)")
	flag.StringVar(&config.format, "format", "a", "\"a\" for unencrypted .jpa, \"e\" for encrypted .jps")
	flag.Int64Var(&config.partSize, "part-size", 0, "split into parts of this many bytes (0 disables splitting)")
	flag.StringVar(&config.password, "password", "", "Format-E password (ignored for Format-A)")
	flag.BoolVar(&config.staticSalt, "static-salt", false, "Format-E: use one salt for the whole archive instead of a per-record salt")
	flag.BoolVar(&config.dereference, "dereference", false, "follow symlinks and store their targets instead of the links")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage:\n  %s -source <dir> -output <path/to/archive>\n\nFull parameters:\n", os.Args[0])
		flag.PrintDefaults()
	}
}

func main() {
	flag.Parse()

	if config.source == "" || config.output == "" {
		fmt.Fprintf(os.Stderr, "Error: both -source and -output must be specified\n\n")
		flag.Usage()
		os.Exit(1)
	}

	format := archive.FormatA
	if config.format == "e" {
		format = archive.FormatE
	}

	cfg := archive.Config{
		PartSize:            uint64(config.partSize),
		DereferenceSymlinks: config.dereference,
		Format:              format,
		Key:                 []byte(config.password),
		UseStaticSalt:       config.staticSalt,
	}

	w := archive.NewWriter(cfg)
	if err := w.Initialize(config.output+format.Extension(), archive.Options{}); err != nil {
		log.Fatalf("Unable to initialize archive: %v", err)
	}

	log.Printf("Adding entries from %s", config.source)
	if err := archiveutil.Walk(w, config.source); err != nil {
		log.Fatalf("Unable to walk %s: %v", config.source, err)
	}

	if err := w.Finalize(); err != nil {
		log.Fatalf("Unable to finalize archive: %v", err)
	}

	for _, msg := range w.DrainWarnings() {
		log.Printf("warning: %s", msg)
	}
	for _, msg := range w.DrainErrors() {
		log.Printf("error: %s", msg)
	}

	log.Printf("Wrote %s%s", config.output, format.Extension())
}
