package main

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/joshuapare/heapkit/cmd/heapctl/explorer"
	"github.com/joshuapare/heapkit/internal/logger"
)

func init() {
	rootCmd.AddCommand(newExploreCmd())
}

func newExploreCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "explore <manifest>",
		Short: "Browse a profiling report interactively",
		Long: `The explore command profiles the target like the profile command, then
opens a terminal browser over the result. Select an owner with enter to see
its blocks; press c to copy a block address, tab to switch to regions and
q to quit.

Example:
  heapctl explore capture/manifest.yaml`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExplore(commandContext(cmd), args)
		},
	}
}

func runExplore(ctx context.Context, args []string) error {
	t, done, err := loadTarget(args[0])
	if err != nil {
		return err
	}
	rep, err := profileTarget(ctx, t)
	done()
	if err != nil {
		return err
	}

	logger.Info("starting explorer", "path", args[0], "regions", len(rep.Regions))
	p := tea.NewProgram(explorer.New(rep), tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil {
		logger.Error("TUI error", "error", err)
		return fmt.Errorf("error running explorer: %w", err)
	}
	return nil
}
