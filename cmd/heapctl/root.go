package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/joshuapare/heapkit/heap"
	"github.com/joshuapare/heapkit/internal/logger"
	"github.com/joshuapare/heapkit/internal/printer"
	"github.com/joshuapare/heapkit/profile"
	"github.com/joshuapare/heapkit/target"
)

var (
	// Global flags
	verbose    bool
	quiet      bool
	jsonOut    bool
	noColor    bool
	logJSON    bool
	logDir     string
	processor  int
	strict     bool
	live       bool
	cachePages int
)

// exit is replaced in tests.
var exit = os.Exit

var rootCmd = &cobra.Command{
	Use:   "heapctl",
	Short: "Inspect heap and pool usage of a DSP firmware target",
	Long: `heapctl walks the heaps and fixed-size pools of a firmware target, described
by a snapshot manifest, and reports free space, allocated blocks and which
task, transform or file owns each allocation.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initLogging()
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output and debug logging to stderr")
	rootCmd.PersistentFlags().
		BoolVarP(&quiet, "quiet", "q", false, "Suppress all output except errors")
	rootCmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "Output in JSON format")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")
	rootCmd.PersistentFlags().BoolVar(&logJSON, "log-json", false, "Write structured JSON logs to stderr")
	rootCmd.PersistentFlags().StringVar(&logDir, "log-dir", "", "Write logs to a dated file in this directory instead of stderr")
	rootCmd.PersistentFlags().IntVarP(&processor, "processor", "p", 0, "Processor whose heaps are read")
	rootCmd.PersistentFlags().BoolVar(&strict, "strict", false, "Abort a region on the first zero-length header")
	rootCmd.PersistentFlags().BoolVar(&live, "live", false, "Re-read configuration every pass and bypass the page cache")
	rootCmd.PersistentFlags().IntVar(&cachePages, "cache-pages", target.DefaultCachePages, "Page cache size for snapshot reads")
}

func execute() {
	if err := rootCmd.Execute(); err != nil {
		printError("%v\n", err)
		exit(1)
	}
}

func initLogging() error {
	if !verbose && !logJSON && logDir == "" {
		return logger.Init(logger.Options{})
	}
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	opts := logger.Options{
		Enabled: true,
		Output:  os.Stderr,
		Level:   level,
		JSON:    logJSON,
	}
	if logDir != "" {
		opts.Output, opts.LogDir = nil, logDir
	}
	return logger.Init(opts)
}

// openTarget loads the snapshot manifest at path. It is replaced in tests.
var openTarget = func(path string) (target.Target, io.Closer, error) {
	snap, err := target.Open(path)
	if err != nil {
		return nil, nil, err
	}
	return snap, snap, nil
}

// loadTarget opens path and, outside live mode, puts a page cache in front
// of it. The returned func drops the cached pages and closes the target.
func loadTarget(path string) (target.Target, func(), error) {
	printVerbose("Opening target: %s\n", path)
	t, closer, err := openTarget(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open target: %w", err)
	}
	done := func() {
		if closer != nil {
			if err := closer.Close(); err != nil {
				logger.Warn("closing target", "path", path, "error", err)
			}
		}
	}
	if live {
		return t, done, nil
	}
	cached, err := target.NewCached(t, cachePages)
	if err != nil {
		done()
		return nil, nil, err
	}
	return cached, func() {
		hits, misses := cached.Stats()
		logger.Debug("page cache", "hits", hits, "misses", misses)
		cached.Purge()
		done()
	}, nil
}

func heapOptions() []heap.Option {
	if live {
		return []heap.Option{heap.WithMode(heap.ModeLive)}
	}
	return []heap.Option{heap.WithMode(heap.ModeSnapshot)}
}

// newLayout returns the layout named by name.
func newLayout(t target.Target, name string) (heap.HeapLayout, error) {
	switch strings.ToLower(name) {
	case "dm":
		return heap.NewDMLayout(t, heapOptions()...), nil
	case "pm":
		return heap.NewPMLayout(t, heapOptions()...), nil
	case "pool":
		return heap.NewPoolLayout(t, heapOptions()...), nil
	default:
		return nil, fmt.Errorf("unknown layout: %s (use: dm, pm, pool)", name)
	}
}

func newProfiler(t target.Target, extra ...profile.Option) *profile.Profiler {
	var opts []profile.Option
	if strict {
		opts = append(opts, profile.Strict())
	}
	return profile.New(heap.NewDMLayout(t, heapOptions()...), append(opts, extra...)...)
}

// Helper functions for output

func newPrinter() *printer.Printer {
	return printer.New(os.Stdout, printer.Options{Color: !noColor})
}

// printInfo prints an info message if not in quiet mode
func printInfo(format string, args ...any) {
	if !quiet {
		fmt.Fprintf(os.Stdout, format, args...)
	}
}

// printError prints an error message
func printError(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format, args...)
}

// printVerbose prints a verbose message if verbose mode is enabled
func printVerbose(format string, args ...any) {
	if verbose && !quiet {
		fmt.Fprintf(os.Stdout, format, args...)
	}
}

// printJSON outputs data as JSON
func printJSON(v any) error {
	return printer.JSON(os.Stdout, v)
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
