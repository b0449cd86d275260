package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/dimits-ts/syndisco/pkg/backend"
	derrors "github.com/dimits-ts/syndisco/pkg/errors"
	"github.com/dimits-ts/syndisco/pkg/experiment"
	"github.com/dimits-ts/syndisco/yarn"
)

type discussFlags struct {
	count       int
	concurrency int
	output      string
	seed        uint64
	serve       bool
	addr        string
}

// newDiscussCmd creates the "syndisco discuss" subcommand.
func newDiscussCmd(a *app) *cobra.Command {
	f := &discussFlags{}
	cmd := &cobra.Command{
		Use:   "discuss",
		Short: "Generate a batch of synthetic discussions",
		Long: "Samples topics and personas, runs one discussion per sample and writes\n" +
			"every transcript to discussions.output_dir.",
		Args: cobra.NoArgs,
	}
	cmd.RunE = withApp(a, func(cmd *cobra.Command, args []string) error {
		d := &a.cfg.Discussions
		if cmd.Flags().Changed("count") {
			d.Count = f.count
		}
		if cmd.Flags().Changed("concurrency") {
			d.Concurrency = f.concurrency
		}
		if f.output != "" {
			d.OutputDir = f.output
		}
		if cmd.Flags().Changed("seed") {
			d.Seed = f.seed
		}

		topics, err := d.LoadTopics()
		if err != nil {
			return err
		}
		users, err := userSpecs(*d)
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		svc, err := a.openServices(ctx, f.serve, f.addr)
		if err != nil {
			return err
		}
		defer svc.close()
		if svc.server != nil {
			printServing(cmd.OutOrStdout(), svc.server)
		}

		progress := newProgress(cmd.ErrOrStderr(), "discussions", d.Count)
		exp := &experiment.DiscussionExperiment{
			Actors: experiment.Actors{
				Cache:    backend.NewCache(nil, a.logger),
				Backends: a.cfg.NamedBackends(),
			},
			Users:            users,
			Moderator:        moderatorSpec(*d),
			Topics:           topics,
			TurnTaking:       d.TurnTaking,
			ContextLength:    d.ContextLength,
			MaxTurns:         d.MaxTurns,
			ActiveUsers:      d.ActiveUsers,
			Count:            d.Count,
			Concurrency:      d.Concurrency,
			TerminationWords: d.TerminationWords,
			Retry:            d.Retry,
			Seed:             d.Seed,
			Store:            yarn.NewFileStore(d.OutputDir),
			Observer:         svc.observer(),
			Progress:         progress,
			Logger:           a.logger,
		}

		start := time.Now()
		progress.Start()
		results, err := exp.Run(ctx)
		progress.Finish()
		if err != nil {
			return err
		}
		return report(cmd, "discussions", d.OutputDir, results, time.Since(start))
	})

	flags := cmd.Flags()
	flags.IntVarP(&f.count, "count", "n", 0, "number of discussions (overrides discussions.count)")
	flags.IntVarP(&f.concurrency, "concurrency", "j", 0, "discussions run at once")
	flags.StringVarP(&f.output, "output", "o", "", "output directory")
	flags.Uint64Var(&f.seed, "seed", 0, "sampling seed; 0 picks a random one")
	flags.BoolVar(&f.serve, "serve", false, "stream events over the live server while running")
	flags.StringVar(&f.addr, "addr", "", "server address (overrides server.addr)")
	return cmd
}

// report prints the batch tally. The batch fails only when no job completed.
func report(cmd *cobra.Command, what, dir string, results []experiment.Result, elapsed time.Duration) error {
	completed, failed := experiment.Tally(results)
	fmt.Fprintf(cmd.OutOrStdout(), "%d %s completed, %d failed in %s. Records in %s\n",
		completed, what, failed, elapsed.Round(time.Millisecond), dir)
	if completed == 0 && failed > 0 {
		return derrors.Job(derrors.ErrJobBatchFailed, fmt.Sprintf("every one of %d %s failed", failed, what)).
			WithContext("output", dir)
	}
	return nil
}
