package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/joshuapare/heapkit/profile"
)

var (
	freeLayout string
	freeRegion string
	freeNodes  bool
)

func init() {
	cmd := newFreeCmd()
	cmd.Flags().StringVarP(&freeLayout, "layout", "l", "dm", "Layout to walk: dm, pm, pool")
	cmd.Flags().StringVarP(&freeRegion, "region", "r", "", "Only show this region")
	cmd.Flags().BoolVarP(&freeNodes, "nodes", "n", false, "List every free-list node")
	rootCmd.AddCommand(cmd)
}

func newFreeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "free <manifest>",
		Short: "Walk free lists and report free space per region",
		Long: `The free command walks the free list of every region of one layout and
reports the free bytes it finds. Blocks are not scanned.

Example:
  heapctl free capture/manifest.yaml
  heapctl free capture/manifest.yaml --layout pool --nodes`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFree(commandContext(cmd), args)
		},
	}
}

func runFree(ctx context.Context, args []string) error {
	t, done, err := loadTarget(args[0])
	if err != nil {
		return err
	}
	defer done()

	layout, err := newLayout(t, freeLayout)
	if err != nil {
		return err
	}
	ov, err := newProfiler(t).Overview(ctx, layout, processor)
	if err != nil {
		return fmt.Errorf("failed to walk free lists: %w", err)
	}
	if freeRegion != "" {
		var kept []profile.RegionFree
		for _, rf := range ov.Regions {
			if rf.Region.Name == freeRegion {
				kept = append(kept, rf)
			}
		}
		if len(kept) == 0 {
			return fmt.Errorf("no region named %s in %s", freeRegion, layout.Name())
		}
		ov.Regions = kept
	}

	if jsonOut {
		return printJSON(ov)
	}
	if quiet {
		return nil
	}
	p := newPrinter()
	p.Overview(ov)
	if freeNodes {
		for _, rf := range ov.Regions {
			if rf.Free != nil && rf.Region.Available {
				p.FreeList(rf.Free)
			}
		}
	}
	return nil
}
