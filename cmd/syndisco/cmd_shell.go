package main

import (
	"context"
	"errors"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/dimits-ts/syndisco/pkg/export"
	"github.com/dimits-ts/syndisco/pkg/shell"
	"github.com/dimits-ts/syndisco/yarn"
)

// newShellCmd creates the "syndisco shell" subcommand.
func newShellCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "shell",
		Short: "Browse generated records interactively",
		Args:  cobra.NoArgs,
		RunE: withApp(a, func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			svc, err := a.openServices(ctx, false, "")
			if err != nil {
				return err
			}
			defer svc.close()

			csvCfg := export.DefaultCSVConfig()
			if d, err := export.ParseDialect(a.cfg.Export.Dialect); err == nil {
				csvCfg.Dialect = d
			}
			csvCfg.IncludeAttributes = a.cfg.Export.IncludeAttributes

			homeDir, _ := os.UserHomeDir()
			sh, err := shell.New(shell.Config{
				HistoryFile: filepath.Join(homeDir, ".syndisco_history"),
				Discussions: yarn.NewFileStore(a.cfg.Discussions.OutputDir),
				Annotations: yarn.NewFileStore(a.cfg.Annotations.OutputDir),
				Index:       svc.index,
				CSV:         csvCfg,
			})
			if err != nil {
				return err
			}
			if err := sh.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		}),
	}
}
