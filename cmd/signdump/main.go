package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/mattn/go-isatty"

	"voxelcraft.ai/signdump/internal/config"
	"voxelcraft.ai/signdump/internal/faults"
	"voxelcraft.ai/signdump/internal/persistence/indexdb"
	persistlog "voxelcraft.ai/signdump/internal/persistence/log"
	"voxelcraft.ai/signdump/internal/pipeline"
)

func main() {
	ctx, cancel := signalContext()
	defer cancel()
	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr))
}

// run returns the process exit code: 0 when every file succeeded, 1 on any
// failure, 2 on usage and configuration errors.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("signdump", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var (
		configPath = fs.String("config", "", "path to signdump.yaml (optional)")
		workers    = fs.Int("workers", 0, "worker count (0 = number of CPUs)")
		format     = fs.String("format", "", "output format: legacy or jsonl")
		onError    = fs.String("on_error", "", "failure policy: continue or abort")
		readMode   = fs.String("read_mode", "", "region file access: read (default) or mmap; mmap faults with SIGBUS if a file is truncated while mapped")
		indexPath  = fs.String("index", "", "sqlite index of extracted signs (optional)")
		reportPath = fs.String("report", "", "per-file run report .jsonl.zst (optional)")
		quiet      = fs.Bool("quiet", false, "disable progress output")
	)
	fs.Usage = func() {
		fmt.Fprintln(stderr, "usage: signdump [flags] <region-dir> <output-file>")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 2 {
		fs.Usage()
		return 2
	}
	inputDir, outputPath := fs.Arg(0), fs.Arg(1)

	logger := log.New(stdout, "[signdump] ", log.LstdFlags|log.Lmicroseconds)

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(stderr, "load config:", err)
		return 2
	}
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "workers":
			cfg.Workers = *workers
		case "format":
			cfg.OutputFormat = *format
		case "on_error":
			cfg.OnError = *onError
		case "read_mode":
			cfg.ReadMode = *readMode
		case "index":
			cfg.IndexPath = *indexPath
		case "report":
			cfg.ReportPath = *reportPath
		}
	})
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(stderr, "config:", err)
		return 2
	}

	paths, err := pipeline.ListRegionFiles(inputDir)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return exitCode(err)
	}
	sink, err := pipeline.CreateSink(outputPath)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return exitCode(err)
	}

	runID := uuid.NewString()
	var (
		observers multiObserver
		report    *persistlog.Report
		index     *indexdb.SQLiteIndex
	)
	abandon := func(err error) int {
		fmt.Fprintln(stderr, err)
		if report != nil {
			_ = report.Close()
		}
		if index != nil {
			_ = index.Close()
		}
		_ = sink.Close()
		_ = os.Remove(outputPath)
		return 1
	}
	if cfg.ReportPath != "" {
		report, err = persistlog.NewReport(cfg.ReportPath, runID)
		if err != nil {
			return abandon(faults.Wrap(faults.ErrConfig, err))
		}
		observers = append(observers, report)
	}
	if cfg.IndexPath != "" {
		index, err = indexdb.OpenSQLite(cfg.IndexPath, runID)
		if err != nil {
			return abandon(faults.Wrap(faults.ErrConfig, fmt.Errorf("open index: %w", err)))
		}
		index.BeginRun(inputDir, outputPath)
		observers = append(observers, index)
	}

	var progressOut io.Writer
	tty := false
	if !*quiet {
		progressOut = stderr
		if f, ok := stderr.(*os.File); ok {
			tty = isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
		}
	}
	progress := pipeline.NewProgress(progressOut, len(paths), tty)

	opts := pipeline.Options{
		Layout:   cfg.Layout(),
		Schema:   cfg.Schema(),
		Format:   cfg.Output(),
		Workers:  cfg.EffectiveWorkers(),
		FailFast: cfg.OnError == config.OnErrorAbort,
		Mmap:     cfg.ReadMode == config.ReadMmap,
		Logger:   logger,
		Progress: progress,
	}
	if len(observers) > 0 {
		opts.Observer = observers
	}

	logger.Printf("run %s: %d files from %s -> %s (workers=%d format=%s on_error=%s)",
		runID, len(paths), inputDir, outputPath, opts.Workers, opts.Format, cfg.OnError)
	sum, runErr := pipeline.Run(ctx, paths, sink, opts)
	progress.Finish()

	exit := 0
	if err := sink.Close(); err != nil {
		logger.Printf("close output: %v", err)
		exit = 1
	}
	if report != nil {
		if err := report.Finish(sum); err != nil {
			logger.Printf("report: %v", err)
		}
		if err := report.Close(); err != nil {
			logger.Printf("close report: %v", err)
		}
	}
	if index != nil {
		index.FinishRun(sum)
		if err := index.Close(); err != nil {
			logger.Printf("close index: %v", err)
		}
	}

	logger.Printf("files=%d ok=%d failed=%d skipped=%d chunks=%d signs=%d bytes=%s elapsed=%s",
		sum.Files, sum.OK, sum.Failed, sum.Skipped, sum.Chunks, sum.Signs,
		humanize.Bytes(uint64(sum.Bytes)), sum.Elapsed.Round(time.Millisecond))

	switch {
	case errors.Is(runErr, context.Canceled):
		logger.Printf("interrupted")
		return 1
	case runErr != nil:
		logger.Printf("aborted: %v", runErr)
		return 1
	case sum.Failed > 0:
		for _, f := range sum.Failures {
			logger.Printf("failed: %v", f.Err)
		}
		return 1
	}
	return exit
}

// exitCode maps setup errors: configuration faults are usage errors.
func exitCode(err error) int {
	if faults.CodeOf(err) == faults.ErrConfig {
		return 2
	}
	return 1
}

// multiObserver fans file results out to every configured recorder.
type multiObserver []pipeline.Observer

func (m multiObserver) FileDone(res pipeline.FileResult) {
	for _, o := range m {
		o.FileDone(res)
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}
