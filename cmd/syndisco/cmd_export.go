package main

import (
	"fmt"
	"io"
	"iter"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	derrors "github.com/dimits-ts/syndisco/pkg/errors"
	"github.com/dimits-ts/syndisco/pkg/export"
	"github.com/dimits-ts/syndisco/pkg/shell"
	"github.com/dimits-ts/syndisco/yarn"
)

type exportFlags struct {
	output            string
	annotationsOutput string
	dialect           string
	attributes        bool
	force             bool
}

// newExportCmd creates the "syndisco export" subcommand.
func newExportCmd(a *app) *cobra.Command {
	f := &exportFlags{}
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export discussions and annotations as CSV",
		Long: "Flattens every discussion into one row per message and every annotation\n" +
			"into one row per judged message. Existing files are only replaced after\n" +
			"confirmation or with --force.",
		Args: cobra.NoArgs,
	}
	cmd.RunE = withApp(a, func(cmd *cobra.Command, args []string) error {
		e := &a.cfg.Export
		if f.output != "" {
			e.Path = f.output
		}
		if f.annotationsOutput != "" {
			e.AnnotationsPath = f.annotationsOutput
		}
		if f.dialect != "" {
			e.Dialect = f.dialect
		}
		if f.attributes {
			e.IncludeAttributes = true
		}

		dialect, err := export.ParseDialect(e.Dialect)
		if err != nil {
			return derrors.ConfigWrap(err, derrors.ErrConfigInvalid, "invalid csv dialect").
				WithContext("field", "export.dialect")
		}
		csvCfg := export.DefaultCSVConfig()
		csvCfg.Dialect = dialect
		csvCfg.IncludeAttributes = e.IncludeAttributes

		x := &exporter{
			out:      cmd.OutOrStdout(),
			prompter: shell.NewInteractivePrompterWithIO(cmd.InOrStdin(), cmd.ErrOrStderr()),
			force:    f.force,
		}
		discussions := yarn.NewFileStore(a.cfg.Discussions.OutputDir)
		if _, err := discussions.Files(); err != nil {
			return derrors.IOWrap(err, derrors.ErrIOReadFailed, "cannot read the discussion directory").
				WithContext("path", discussions.Dir).
				WithSuggestion("Run 'syndisco discuss' first")
		}
		if err := x.write(e.Path, "discussion", func(w *os.File) (int, error) {
			return export.WriteDiscussionsCSV(w, skipUnreadable(discussions.Discussions(), a), csvCfg)
		}); err != nil {
			return err
		}

		if _, err := os.Stat(a.cfg.Annotations.OutputDir); err != nil {
			return nil
		}
		annotations := yarn.NewFileStore(a.cfg.Annotations.OutputDir)
		return x.write(e.AnnotationsPath, "annotation", func(w *os.File) (int, error) {
			return export.WriteAnnotationsCSV(w, skipUnreadable(annotations.Annotations(), a), csvCfg)
		})
	})

	flags := cmd.Flags()
	flags.StringVarP(&f.output, "output", "o", "", "discussion CSV path (overrides export.path)")
	flags.StringVar(&f.annotationsOutput, "annotations-output", "", "annotation CSV path (overrides export.annotations_path)")
	flags.StringVar(&f.dialect, "dialect", "", "standard, excel or tsv")
	flags.BoolVar(&f.attributes, "attributes", false, "include persona attributes and instructions")
	flags.BoolVarP(&f.force, "force", "f", false, "overwrite existing files without asking")
	return cmd
}

type exporter struct {
	out      io.Writer
	prompter shell.Prompter
	force    bool
}

func (x *exporter) write(path, what string, fill func(*os.File) (int, error)) error {
	if _, err := os.Stat(path); err == nil && !x.force {
		ok, err := x.prompter.Confirm(fmt.Sprintf("%s exists. Overwrite?", path))
		if err != nil {
			return err
		}
		if !ok {
			fmt.Fprintf(x.out, "Skipped %s\n", path)
			return nil
		}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return derrors.IOWrap(err, derrors.ErrIOWriteFailed, "cannot create export directory").
			WithContext("path", path)
	}
	f, err := os.Create(path)
	if err != nil {
		return derrors.IOWrap(err, derrors.ErrIOWriteFailed, "cannot create export file").
			WithContext("path", path)
	}
	n, err := fill(f)
	if cerr := f.Close(); err == nil && cerr != nil {
		err = derrors.IOWrap(cerr, derrors.ErrIOWriteFailed, "cannot write export file").
			WithContext("path", path)
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(x.out, "Wrote %d %s rows to %s\n", n, what, path)
	return nil
}

// skipUnreadable drops records that fail to decode, logging each one.
func skipUnreadable[T any](seq iter.Seq2[T, error], a *app) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		for v, err := range seq {
			if err != nil {
				a.logger.Sugar().Warnf("skipping unreadable record: %v", err)
				continue
			}
			if !yield(v, nil) {
				return
			}
		}
	}
}
