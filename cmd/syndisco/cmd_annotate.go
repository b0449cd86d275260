package main

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/dimits-ts/syndisco/pkg/backend"
	derrors "github.com/dimits-ts/syndisco/pkg/errors"
	"github.com/dimits-ts/syndisco/pkg/experiment"
	"github.com/dimits-ts/syndisco/yarn"
)

type annotateFlags struct {
	input       string
	output      string
	concurrency int
	serve       bool
	addr        string
}

// newAnnotateCmd creates the "syndisco annotate" subcommand.
func newAnnotateCmd(a *app) *cobra.Command {
	f := &annotateFlags{}
	cmd := &cobra.Command{
		Use:   "annotate",
		Short: "Annotate every generated discussion",
		Long: "Runs each annotator over every discussion in the input directory and\n" +
			"writes one annotation record per pair to annotations.output_dir.",
		Args: cobra.NoArgs,
	}
	cmd.RunE = withApp(a, func(cmd *cobra.Command, args []string) error {
		c := &a.cfg.Annotations
		if f.input != "" {
			c.InputDir = f.input
		}
		if f.output != "" {
			c.OutputDir = f.output
		}
		if cmd.Flags().Changed("concurrency") {
			c.Concurrency = f.concurrency
		}

		annotators, err := annotatorSpecs(*c)
		if err != nil {
			return err
		}
		input := a.cfg.AnnotationInputDir()
		sources := yarn.NewFileStore(input)
		files, err := sources.Files()
		if err != nil {
			return derrors.IOWrap(err, derrors.ErrIOReadFailed, "cannot read the discussion directory").
				WithContext("path", input).
				WithSuggestion("Run 'syndisco discuss' first or set annotations.input_dir")
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

		progress := newProgress(cmd.ErrOrStderr(), "annotations", len(files)*len(annotators))
		exp := &experiment.AnnotationExperiment{
			Actors: experiment.Actors{
				Cache:    backend.NewCache(nil, a.logger),
				Backends: a.cfg.NamedBackends(),
			},
			Annotators:       annotators,
			Sources:          sources.Discussions(),
			ContextLength:    c.ContextLength,
			IncludeModerator: c.IncludeModerator,
			Concurrency:      c.Concurrency,
			Retry:            c.Retry,
			Store:            yarn.NewFileStore(c.OutputDir),
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
		return report(cmd, "annotations", c.OutputDir, results, time.Since(start))
	})

	flags := cmd.Flags()
	flags.StringVarP(&f.input, "input", "i", "", "discussion directory (overrides annotations.input_dir)")
	flags.StringVarP(&f.output, "output", "o", "", "output directory")
	flags.IntVarP(&f.concurrency, "concurrency", "j", 0, "annotations run at once")
	flags.BoolVar(&f.serve, "serve", false, "stream events over the live server while running")
	flags.StringVar(&f.addr, "addr", "", "server address (overrides server.addr)")
	return cmd
}
