// Command quadpdf ingests PDF files, crops every page to its top-left
// quadrant, and writes one combined A4 document with a page per crop.
package main

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/spf13/pflag"

	"quadpdf/config"
	"quadpdf/dispatch"
	"quadpdf/observability"
	"quadpdf/service"
)

type options struct {
	configPath string
	outPath    string
	clear      bool
	logLevel   string
	logFormat  string
	inputs     []string
}

func main() {
	opts, err := parseFlags()
	if err != nil {
		fmt.Fprintf(os.Stderr, "quadpdf: %v\n", err)
		os.Exit(2)
	}
	if err := run(opts); err != nil {
		fmt.Fprintf(os.Stderr, "quadpdf: %v\n", err)
		os.Exit(1)
	}
}

func parseFlags() (options, error) {
	var opts options
	flags := pflag.NewFlagSet("quadpdf", pflag.ContinueOnError)
	flags.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: quadpdf [flags] <pdf>...\n")
		flags.PrintDefaults()
	}
	flags.StringVarP(&opts.configPath, "config", "c", "", "config file (YAML); defaults apply when omitted")
	flags.StringVarP(&opts.outPath, "out", "o", "combined.pdf", "output path for the combined document")
	flags.BoolVar(&opts.clear, "clear", false, "clear the accumulation pool after export")
	flags.StringVar(&opts.logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	flags.StringVar(&opts.logFormat, "log-format", "text", "log format (text, json)")
	if err := flags.Parse(os.Args[1:]); err != nil {
		return options{}, err
	}
	opts.inputs = flags.Args()
	if len(opts.inputs) == 0 {
		flags.Usage()
		return options{}, fmt.Errorf("no input files")
	}
	return opts, nil
}

func run(opts options) error {
	cfg := config.Default()
	if opts.configPath != "" {
		loaded, err := config.Load(opts.configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}

	log := observability.NewSlog(observability.SlogConfig{
		Level:  opts.logLevel,
		Format: opts.logFormat,
	})

	svc, err := service.New(cfg, service.WithLogger(log))
	if err != nil {
		return err
	}
	svc.StartSweep()
	defer svc.Close()

	ctx := context.Background()
	pool := dispatch.NewPool(cfg.Workers.Count, cfg.Workers.QueueSize, log)

	var mu sync.Mutex
	var firstErr error
	for _, input := range opts.inputs {
		path := input
		task := func(ctx context.Context) {
			data, err := os.ReadFile(path)
			if err == nil {
				_, err = svc.Ingest(ctx, data, int64(len(data)), path)
			}
			if err != nil {
				mu.Lock()
				if firstErr == nil {
					firstErr = fmt.Errorf("%s: %w", path, err)
				}
				mu.Unlock()
			}
		}
		if err := pool.Submit(ctx, task); err != nil {
			// Bounded queue; run oversubscribed submissions inline.
			task(ctx)
		}
	}
	pool.Close()
	if firstErr != nil {
		return firstErr
	}

	stats := svc.Stats()
	log.Info("accumulated", observability.Int("pages", stats.TotalPages))

	doc, err := svc.Export(ctx)
	if err != nil {
		return err
	}
	data, err := doc.Bytes()
	if err != nil {
		doc.Discard()
		return err
	}
	if err := doc.Discard(); err != nil {
		log.Warn("discard combined temp file", observability.Error("error", err))
	}
	if err := os.WriteFile(opts.outPath, data, 0o644); err != nil {
		return err
	}
	log.Info("wrote combined document",
		observability.String("path", opts.outPath),
		observability.Int("pages", doc.PageCount),
		observability.Int64("bytes", doc.Size))

	if opts.clear {
		cleared := svc.ClearAll()
		log.Info("cleared pool", observability.Int("pages", cleared.PagesCleared))
	}
	return nil
}
