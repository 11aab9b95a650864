package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/joshuapare/heapkit/heap"
)

var regionsLayout string

func init() {
	cmd := newRegionsCmd()
	cmd.Flags().StringVarP(&regionsLayout, "layout", "l", "dm", "Layout to catalog: dm, pm, pool")
	rootCmd.AddCommand(cmd)
}

func newRegionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "regions <manifest>",
		Short: "List the heap or pool regions configured on the target",
		Long: `The regions command reads the region configuration of one layout without
walking any memory. Unavailable regions are listed with the reason.

Example:
  heapctl regions capture/manifest.yaml
  heapctl regions capture/manifest.yaml --layout pm --processor 1`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRegions(commandContext(cmd), args)
		},
	}
}

func runRegions(ctx context.Context, args []string) error {
	t, done, err := loadTarget(args[0])
	if err != nil {
		return err
	}
	defer done()

	layout, err := newLayout(t, regionsLayout)
	if err != nil {
		return err
	}
	regions, err := heap.Regions(ctx, layout, processor)
	if err != nil {
		return fmt.Errorf("failed to read regions: %w", err)
	}
	if jsonOut {
		return printJSON(regions)
	}
	if !quiet {
		newPrinter().Catalog(layout.Name(), regions)
	}
	return nil
}
