package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/joshuapare/heapkit/heap"
	"github.com/joshuapare/heapkit/profile"
	"github.com/joshuapare/heapkit/target"
)

var (
	profilePools       bool
	profileTagFallback bool
	profileNoDiscover  bool
	profileMaxFree     int
)

func init() {
	cmd := newProfileCmd()
	cmd.Flags().BoolVar(&profilePools, "pools", true, "Include fixed-size pools in the pass")
	cmd.Flags().BoolVar(&profileTagFallback, "tag-fallback", false,
		"Profile builds without owner tags, attributing referenced blocks only")
	cmd.Flags().BoolVar(&profileNoDiscover, "no-discover", false,
		"Skip reading tasks, transforms and files from the target")
	cmd.Flags().IntVar(&profileMaxFree, "max-free-nodes", 0, "Bound on free-list nodes visited per region (0 = default)")
	rootCmd.AddCommand(cmd)
}

func newProfileCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "profile <manifest>",
		Short: "Attribute allocated heap and pool memory to owners",
		Long: `The profile command walks every data-memory heap (and pool) of the target,
then attributes each allocated block to the transform, pool or file it
belongs to, or to the task named in its owner tag.

Example:
  heapctl profile capture/manifest.yaml
  heapctl profile capture/manifest.yaml --processor 1 --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProfile(commandContext(cmd), args)
		},
	}
}

func runProfile(ctx context.Context, args []string) error {
	t, done, err := loadTarget(args[0])
	if err != nil {
		return err
	}
	defer done()

	rep, err := profileTarget(ctx, t)
	if err != nil {
		return err
	}
	if jsonOut {
		return printJSON(rep)
	}
	if !quiet {
		newPrinter().Report(rep)
	}
	return nil
}

// profileTarget discovers owners and references, then runs one profiling
// pass over the target.
func profileTarget(ctx context.Context, t target.Target) (*profile.Report, error) {
	owners := []profile.Owner{}
	refs := profile.NewReferenceSet()
	if !profileNoDiscover {
		var err error
		if owners, err = profile.DiscoverOwners(ctx, t); err != nil {
			return nil, fmt.Errorf("discover owners: %w", err)
		}
		if refs, err = profile.DiscoverReferences(ctx, t, heapOptions()...); err != nil {
			return nil, fmt.Errorf("discover references: %w", err)
		}
		printVerbose("Discovered %d owner(s) and %d referenced address(es)\n", len(owners), refs.Len())
	}

	var opts []profile.Option
	if profilePools {
		opts = append(opts, profile.WithPools(heap.NewPoolLayout(t, heapOptions()...)))
	}
	if profileTagFallback {
		opts = append(opts, profile.WithTagFallback())
	}
	if profileMaxFree > 0 {
		opts = append(opts, profile.MaxFreeNodes(profileMaxFree))
	}
	rep, err := newProfiler(t, opts...).Profile(ctx, processor, owners, refs)
	if err != nil {
		return nil, fmt.Errorf("profile: %w", err)
	}
	return rep, nil
}
