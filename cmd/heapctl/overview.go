package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/joshuapare/heapkit/heap"
	"github.com/joshuapare/heapkit/profile"
)

func init() {
	rootCmd.AddCommand(newOverviewCmd())
}

func newOverviewCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "overview <manifest>",
		Short: "Summarize free space of data, instruction and pool memory",
		Long: `The overview command reports every region of the data-memory heaps, the
instruction-memory heaps and the pools with its free space and the
allocator's own watermarks. Layouts the firmware does not support are
skipped.

Example:
  heapctl overview capture/manifest.yaml`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOverview(commandContext(cmd), args)
		},
	}
}

func runOverview(ctx context.Context, args []string) error {
	t, done, err := loadTarget(args[0])
	if err != nil {
		return err
	}
	defer done()

	p := newProfiler(t)
	var overviews []*profile.Overview
	for _, name := range []string{"dm", "pm", "pool"} {
		layout, err := newLayout(t, name)
		if err != nil {
			return err
		}
		ov, err := p.Overview(ctx, layout, processor)
		if errors.Is(err, heap.ErrUnsupportedLayout) {
			printVerbose("Skipping %s: %v\n", layout.Name(), err)
			continue
		}
		if err != nil {
			return fmt.Errorf("%s overview: %w", layout.Name(), err)
		}
		overviews = append(overviews, ov)
	}

	if jsonOut {
		return printJSON(overviews)
	}
	if !quiet {
		pr := newPrinter()
		for _, ov := range overviews {
			pr.Overview(ov)
		}
	}
	return nil
}
