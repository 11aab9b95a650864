package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/joshuapare/heapkit/profile"
)

var blocksLayout string

func init() {
	cmd := newBlocksCmd()
	cmd.Flags().StringVarP(&blocksLayout, "layout", "l", "dm", "Layout to scan: dm, pm, pool")
	rootCmd.AddCommand(cmd)
}

func newBlocksCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "blocks <manifest> [region...]",
		Short: "List allocated blocks found by scanning for header magic",
		Long: `The blocks command scans each region of one layout for allocation headers
and lists the blocks with their owner tag and, on debug builds, the
allocation site. Regions default to all of the layout.

Example:
  heapctl blocks capture/manifest.yaml HEAP_MAIN
  heapctl blocks capture/manifest.yaml --layout pm`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBlocks(commandContext(cmd), args)
		},
	}
}

func runBlocks(ctx context.Context, args []string) error {
	t, done, err := loadTarget(args[0])
	if err != nil {
		return err
	}
	defer done()

	layout, err := newLayout(t, blocksLayout)
	if err != nil {
		return err
	}
	rep, err := newProfiler(t).Inspect(ctx, layout, processor)
	if err != nil {
		return fmt.Errorf("failed to scan %s: %w", layout.Name(), err)
	}

	regions := rep.Regions
	if names := args[1:]; len(names) > 0 {
		regions = nil
		for _, name := range names {
			rr, ok := rep.Region(name)
			if !ok {
				return fmt.Errorf("no region named %s in %s", name, layout.Name())
			}
			regions = append(regions, rr)
		}
	}

	if jsonOut {
		return printJSON(regions)
	}
	if quiet {
		return nil
	}
	p := newPrinter()
	for _, rr := range regions {
		if !rr.Region.Available {
			printVerbose("Skipping %s: %s\n", rr.Region.Name, rr.Region.Reason)
			continue
		}
		p.Blocks(rr)
		if rr.State == profile.StateFailed {
			printInfo("Scan of %s stopped: %s\n", rr.Region.Name, rr.Error)
		}
	}
	return nil
}
