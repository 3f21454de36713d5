package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"gentree/infrastructure/config"
	"gentree/infrastructure/di"
)

var cfgFile string

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "gentree",
		Short:         "Inspect and maintain a stored family tree.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $GENTREE_CONFIG)")

	root.AddCommand(newExportCmd())
	root.AddCommand(newImportCmd())
	root.AddCommand(newListCmd())
	root.AddCommand(newRootsCmd())
	root.AddCommand(newStatsCmd())
	root.AddCommand(newTokenCmd())
	return root
}

// Execute runs the command tree with ctx so that an interrupt stops loading.
func Execute(ctx context.Context) error {
	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		if ctx.Err() == nil {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		return err
	}
	return nil
}

func loadConfig() (*config.Config, error) {
	if cfgFile != "" {
		return config.Load(cfgFile)
	}
	return config.LoadConfig()
}

// withTree wires the same container the API server uses, waits for the tree to
// load, runs fn, then flushes pending saves before releasing storage.
func withTree(cmd *cobra.Command, fn func(c *di.Container, out io.Writer) error) (err error) {
	ctx := cmd.Context()

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	container, cleanup, err := di.InitializeContainer(ctx, cfg)
	if err != nil {
		return fmt.Errorf("initialize: %w", err)
	}
	defer cleanup()

	if err := container.Tree.WaitReady(ctx); err != nil {
		return fmt.Errorf("load tree: %w", err)
	}

	if err := fn(container, cmd.OutOrStdout()); err != nil {
		return err
	}
	return container.Tree.Flush(ctx)
}
