package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/joshuapare/heapkit/internal/printer"
	"github.com/joshuapare/heapkit/pkg/types"
)

var (
	diagFormat      string
	diagOutputFile  string
	diagShowSummary bool
	diagLayout      string
)

var diagnoseCmd = &cobra.Command{
	Use:   "diagnose <manifest>",
	Short: "Run a diagnostic pass over every heap region",
	Long: `Walks the free list and scans every region of one layout, checking for:
  - Free-list cycles and nodes outside their region
  - Headers with a zero or overrunning length
  - Memory that cannot be read
  - Missing build configuration
  - Allocations no owner could be found for

The exit status is 2 when critical issues are found and 1 for errors.`,
	Example: `  # Scan the data-memory heaps and show a text report
  heapctl diagnose capture/manifest.yaml

  # Compact format for grep
  heapctl diagnose --format compact capture/manifest.yaml

  # Instruction-memory heaps, strict header checks
  heapctl diagnose --layout pm --strict capture/manifest.yaml`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runDiagnose(commandContext(cmd), args)
	},
}

func init() {
	diagnoseCmd.Flags().StringVarP(&diagFormat, "format", "f", "text",
		"Output format: text, json, compact (text=human-readable, json=structured, compact=one-line-per-issue)")
	diagnoseCmd.Flags().StringVarP(&diagOutputFile, "output", "o", "",
		"Write report to file instead of stdout")
	diagnoseCmd.Flags().BoolVarP(&diagShowSummary, "summary", "s", false,
		"Show only summary (no detailed diagnostics)")
	diagnoseCmd.Flags().StringVarP(&diagLayout, "layout", "l", "dm",
		"Layout to check: dm (with owner attribution), pm, pool")

	rootCmd.AddCommand(diagnoseCmd)
}

func runDiagnose(ctx context.Context, args []string) error {
	path := args[0]
	printInfo("Scanning target: %s\n", path)
	if strict {
		printInfo("Mode: Strict (aborting regions on bad headers)\n")
	}
	printInfo("\n")

	report, err := diagnoseTarget(ctx, path)
	if err != nil {
		return err
	}
	report.Target = path

	format := diagFormat
	if jsonOut {
		format = "json"
	}
	var out strings.Builder
	if diagShowSummary && format == "text" {
		out.WriteString(formatSummaryOnly(report))
	} else if err := printer.New(&out, printer.Options{}).Diagnostics(report, format); err != nil {
		return err
	}

	if diagOutputFile != "" {
		if err := os.WriteFile(diagOutputFile, []byte(out.String()), 0o644); err != nil {
			return fmt.Errorf("failed to write output file: %w", err)
		}
		printInfo("Report written to: %s\n", diagOutputFile)
	} else {
		fmt.Print(out.String())
	}

	// Exit code based on severity
	switch {
	case report.HasCriticalIssues():
		printInfo("\nCRITICAL issues found\n")
		exit(2)
	case report.HasErrors():
		printInfo("\nErrors found\n")
		exit(1)
	case report.Summary.Warnings > 0:
		printInfo("\nWarnings found (non-critical)\n")
	default:
		printInfo("\nNo issues found\n")
	}
	return nil
}

func diagnoseTarget(ctx context.Context, path string) (*types.DiagnosticReport, error) {
	t, done, err := loadTarget(path)
	if err != nil {
		return nil, err
	}
	defer done()

	if strings.EqualFold(diagLayout, "dm") {
		rep, err := profileTarget(ctx, t)
		if err != nil {
			return nil, fmt.Errorf("diagnostic scan failed: %w", err)
		}
		return rep.Diagnostics, nil
	}
	layout, err := newLayout(t, diagLayout)
	if err != nil {
		return nil, err
	}
	rep, err := newProfiler(t).Inspect(ctx, layout, processor)
	if err != nil {
		return nil, fmt.Errorf("diagnostic scan failed: %w", err)
	}
	return rep.Diagnostics, nil
}

func formatSummaryOnly(report *types.DiagnosticReport) string {
	output := fmt.Sprintf("Diagnostic Summary for %s\n", report.Target)
	output += fmt.Sprintf("Processor: %d\n", report.Processor)
	output += fmt.Sprintf("Scan time: %v\n\n", report.ScanTime)
	output += fmt.Sprintf("Critical:  %d\n", report.Summary.Critical)
	output += fmt.Sprintf("Errors:    %d\n", report.Summary.Errors)
	output += fmt.Sprintf("Warnings:  %d\n", report.Summary.Warnings)
	output += fmt.Sprintf("Info:      %d\n", report.Summary.Info)
	return output
}
