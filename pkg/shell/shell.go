// Package shell provides the interactive browser for generated discussions
// and annotations.
package shell

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/chzyer/readline"

	derrors "github.com/dimits-ts/syndisco/pkg/errors"
	"github.com/dimits-ts/syndisco/pkg/export"
	"github.com/dimits-ts/syndisco/pkg/help"
	"github.com/dimits-ts/syndisco/pkg/index"
	"github.com/dimits-ts/syndisco/pkg/job"
	"github.com/dimits-ts/syndisco/yarn"
)

const (
	defaultListLimit = 20
	previewWidth     = 72
)

// Config holds shell configuration.
type Config struct {
	HistoryFile string
	Discussions *yarn.FileStore
	Annotations *yarn.FileStore
	// Index is optional; /runs is unavailable without it.
	Index *index.Index
	CSV   *export.CSVConfig
}

// Shell is the interactive command-line interface.
type Shell struct {
	cfg      Config
	rl       *readline.Instance
	out      io.Writer
	color    bool
	prompter Prompter
}

// New creates a new interactive shell.
func New(cfg Config) (*Shell, error) {
	s := newShell(cfg, os.Stdout)
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "\033[32msyndisco>\033[0m ",
		HistoryFile:     cfg.HistoryFile,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
		AutoComplete:    NewShellCompleter(s.discussionIDs),
	})
	if err != nil {
		return nil, derrors.IOWrap(err, derrors.ErrIOReadFailed, "failed to start the shell")
	}
	s.rl = rl
	s.out = rl.Stdout()
	s.color = true
	s.prompter = NewReadlinePrompter(rl)
	return s, nil
}

func newShell(cfg Config, out io.Writer) *Shell {
	if cfg.CSV == nil {
		cfg.CSV = export.DefaultCSVConfig()
	}
	return &Shell{cfg: cfg, out: out, prompter: NewInteractivePrompter()}
}

// Run starts the interactive loop.
func (s *Shell) Run(ctx context.Context) error {
	defer s.rl.Close()

	fmt.Fprintln(s.out, "Browse generated discussions and annotations.")
	fmt.Fprintln(s.out, "Commands: /list, /show, /annotations, /runs, /export, /help, /quit")
	fmt.Fprintln(s.out)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		line, err := s.rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt {
				continue
			}
			if err == io.EOF {
				return nil
			}
			return err
		}

		if err := s.Execute(ctx, line); err != nil {
			if errors.Is(err, errQuit) {
				return nil
			}
			fmt.Fprintf(s.out, "Error: %v\n", err)
		}
	}
}

var errQuit = errors.New("quit")

// Execute runs one line of input. It returns errQuit for /quit.
func (s *Shell) Execute(ctx context.Context, line string) error {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil
	}
	if !strings.HasPrefix(line, "/") {
		fmt.Fprintln(s.out, "Commands start with /. Type /help for a list.")
		return nil
	}

	parts := strings.Fields(line)
	args := parts[1:]
	switch parts[0] {
	case "/quit", "/exit", "/q":
		return errQuit
	case "/help", "/h":
		s.printHelp(args)
	case "/list", "/ls":
		return s.handleList(args)
	case "/show":
		return s.handleShow(args)
	case "/annotations":
		return s.handleAnnotations(args)
	case "/runs":
		return s.handleRuns(ctx, args)
	case "/export":
		return s.handleExport(args)
	default:
		fmt.Fprintf(s.out, "Unknown command: %s\n", parts[0])
	}
	return nil
}

func (s *Shell) printHelp(args []string) {
	r := help.NewRenderer(s.out, !s.color)
	if len(args) > 0 {
		r.RenderCommand(args[0])
		return
	}
	r.RenderFull()
}

// discussions loads every readable discussion, newest first.
func (s *Shell) discussions() []*yarn.Discussion {
	if s.cfg.Discussions == nil {
		return nil
	}
	var out []*yarn.Discussion
	for d, err := range s.cfg.Discussions.Discussions() {
		if err != nil {
			continue
		}
		out = append(out, d)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

func (s *Shell) discussionIDs() []string {
	var ids []string
	for _, d := range s.discussions() {
		ids = append(ids, d.ID)
	}
	return ids
}

func (s *Shell) handleList(args []string) error {
	limit := defaultListLimit
	var status yarn.Status
	for _, a := range args {
		if n, err := strconv.Atoi(a); err == nil {
			if n <= 0 {
				return fmt.Errorf("count must be positive")
			}
			limit = n
			continue
		}
		status = yarn.Status(a)
	}

	var shown int
	all := s.discussions()
	for _, d := range all {
		if status != "" && d.Status != status {
			continue
		}
		if shown == limit {
			break
		}
		shown++
		fmt.Fprintf(s.out, "  %s  %-9s %3d msgs  %s\n",
			export.ShortHash(d.ID), d.Status, len(d.Messages), truncate(d.Config.Topic, previewWidth-30))
	}
	if shown == 0 {
		fmt.Fprintln(s.out, "No discussions found.")
		return nil
	}
	fmt.Fprintf(s.out, "%d of %d discussions\n", shown, len(all))
	return nil
}

func (s *Shell) find(args []string, usage string) (*yarn.Discussion, error) {
	if len(args) < 1 {
		return nil, fmt.Errorf("usage: %s", usage)
	}
	if s.cfg.Discussions == nil {
		return nil, derrors.Config(derrors.ErrConfigInvalid, "no discussion directory configured")
	}
	d, err := s.cfg.Discussions.FindDiscussion(args[0])
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("discussion %q not found (ids need at least 8 characters)", args[0])
	}
	return d, err
}

func (s *Shell) handleShow(args []string) error {
	d, err := s.find(args, "/show <id>")
	if err != nil {
		return err
	}

	fmt.Fprintf(s.out, "Discussion %s\n", d.ID)
	if d.Config.Topic != "" {
		fmt.Fprintf(s.out, "  Topic: %s\n", d.Config.Topic)
	}
	fmt.Fprintf(s.out, "  Participants: %s\n", strings.Join(d.Participants, ", "))
	if d.Moderator != "" {
		fmt.Fprintf(s.out, "  Moderator: %s\n", d.Moderator)
	}
	fmt.Fprintf(s.out, "  Status: %s (%s)\n", d.Status, d.TerminationReason)
	fmt.Fprintln(s.out)

	for _, msg := range d.Messages {
		color := "\033[36m"
		if export.IsModerator(d, msg.Speaker) {
			color = "\033[33m"
		}
		fmt.Fprintf(s.out, "%s[%d %s]\033[0m %s\n", color, msg.Ordinal, msg.Speaker, msg.Text)
	}
	for _, f := range d.Failures {
		fmt.Fprintf(s.out, "\033[31m  ✗ %s at turn %d: %s\033[0m\n", f.Participant, f.Turn, f.Error)
	}
	return nil
}

func (s *Shell) handleAnnotations(args []string) error {
	d, err := s.find(args, "/annotations <id>")
	if err != nil {
		return err
	}
	if s.cfg.Annotations == nil {
		return derrors.Config(derrors.ErrConfigInvalid, "no annotation directory configured")
	}

	var found int
	for a, err := range s.cfg.Annotations.Annotations() {
		if err != nil || a.DiscussionID != d.ID {
			continue
		}
		found++
		ok, failed := a.Counts()
		fmt.Fprintf(s.out, "Annotation %s by %s: %d judged, %d failed\n",
			export.ShortHash(a.ID), a.Annotator.Name, ok, failed)
		for _, item := range a.Items {
			judgment := item.Judgment
			if item.Failed() {
				judgment = "\033[31m" + item.Error + "\033[0m"
			}
			fmt.Fprintf(s.out, "  [%d %s] %s\n", item.Ordinal, item.Speaker, truncate(judgment, previewWidth))
		}
	}
	if found == 0 {
		fmt.Fprintf(s.out, "No annotations for %s.\n", export.ShortHash(d.ID))
	}
	return nil
}

func (s *Shell) handleRuns(ctx context.Context, args []string) error {
	if s.cfg.Index == nil {
		return derrors.Config(derrors.ErrConfigInvalid, "the run index is disabled").
			WithSuggestion("Set index.enabled: true in the config file")
	}
	f := index.Filter{Limit: defaultListLimit}
	if len(args) > 0 {
		f.Kind = job.Kind(args[0])
	}
	runs, err := s.cfg.Index.List(ctx, f)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintln(s.out, "No runs recorded.")
		return nil
	}
	for _, r := range runs {
		mark := "✓"
		if r.Status != yarn.StatusCompleted {
			mark = "✗"
		}
		fmt.Fprintf(s.out, "  %s %-10s %s  %-24s %3d msgs  %s\n",
			mark, r.Kind, export.ShortHash(r.ID), r.Reason, r.Messages, r.FinishedAt.Format("2006-01-02 15:04"))
	}
	return nil
}

func (s *Shell) handleExport(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: /export <file> [annotations]")
	}
	path := args[0]
	annotations := len(args) > 1 && args[1] == "annotations"

	if _, err := os.Stat(path); err == nil {
		ok, err := s.prompter.Confirm(fmt.Sprintf("%s exists. Overwrite?", path))
		if err != nil {
			return err
		}
		if !ok {
			fmt.Fprintln(s.out, "Export canceled.")
			return nil
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return derrors.IOWrap(err, derrors.ErrIOWriteFailed, "cannot create export file").
			WithContext("path", path)
	}
	defer f.Close()

	var n int
	switch {
	case annotations && s.cfg.Annotations != nil:
		n, err = export.WriteAnnotationsCSV(f, s.cfg.Annotations.Annotations(), s.cfg.CSV)
	case !annotations && s.cfg.Discussions != nil:
		n, err = export.WriteDiscussionsCSV(f, s.cfg.Discussions.Discussions(), s.cfg.CSV)
	default:
		return derrors.Config(derrors.ErrConfigInvalid, "no record directory configured")
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(s.out, "Wrote %d rows to %s\n", n, path)
	return nil
}

func truncate(s string, n int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if r := []rune(s); len(r) > n {
		return string(r[:n]) + "..."
	}
	return s
}
