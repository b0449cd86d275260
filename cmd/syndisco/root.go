package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dimits-ts/syndisco/pkg/backend"
	"github.com/dimits-ts/syndisco/pkg/config"
	"github.com/dimits-ts/syndisco/pkg/logging"
)

// dryBackend is the scripted backend every actor is bound to with --dry-run.
const dryBackend = "dry"

// app holds state shared by the subcommands.
type app struct {
	configPath string
	dryRun     bool
	logLevel   string

	cfg    *config.Config
	logger *zap.Logger
}

// newRootCmd creates the root syndisco command with all subcommands attached.
func newRootCmd() *cobra.Command {
	a := &app{}
	cmd := &cobra.Command{
		Use:           "syndisco",
		Short:         "Synthetic discussion generator",
		Long:          "syndisco simulates online discussions between LLM personas\nand annotates the resulting transcripts.",
		Version:       fmt.Sprintf("syndisco %s", version),
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.SetVersionTemplate("{{.Version}}\n")

	flags := cmd.PersistentFlags()
	flags.StringVarP(&a.configPath, "config", "c", "", "config file (default: ./syndisco.yaml)")
	flags.BoolVar(&a.dryRun, "dry-run", false, "bind every actor to the scripted dry backend")
	flags.StringVar(&a.logLevel, "log-level", "", "override logging.level")

	cmd.AddCommand(
		newInitCmd(a),
		newDiscussCmd(a),
		newAnnotateCmd(a),
		newExportCmd(a),
		newServeCmd(a),
		newShellCmd(a),
		newVersionCmd(),
	)
	return cmd
}

func (a *app) path() string {
	if a.configPath != "" {
		return a.configPath
	}
	return config.DefaultConfigPath()
}

// load reads the configuration and builds the logger. A missing file falls
// back to defaults only when no path was given explicitly.
func (a *app) load() error {
	var (
		cfg *config.Config
		err error
	)
	if a.configPath != "" {
		cfg, err = config.Load(a.configPath)
	} else {
		cfg, err = config.LoadOrDefault(a.path())
	}
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		cfg.Logging.Level = a.logLevel
	}
	if a.dryRun {
		applyDryRun(cfg)
	}
	a.cfg = cfg
	a.logger = logging.Must(cfg.Logging)
	return nil
}

// close flushes the logger.
func (a *app) close() {
	if a.logger != nil {
		_ = a.logger.Sync()
	}
}

// applyDryRun rebinds every actor to the scripted backend.
func applyDryRun(cfg *config.Config) {
	if _, ok := cfg.Backends[dryBackend]; !ok {
		cfg.Backends[dryBackend] = backend.Config{
			Type:    backend.TypeScripted,
			Replies: []string{"I see your point.", "I am not convinced."},
		}
	}
	cfg.Discussions.Backend = dryBackend
	cfg.Discussions.ModeratorBackend = dryBackend
	cfg.Annotations.Backend = dryBackend
}

// withApp wraps a RunE so the config is loaded before and the logger
// flushed after.
func withApp(a *app, run func(cmd *cobra.Command, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		if err := a.load(); err != nil {
			return err
		}
		defer a.close()
		return run(cmd, args)
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "syndisco %s\n", version)
		},
	}
}
