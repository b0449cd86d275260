package shell

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/chzyer/readline"
)

// Prompter asks for confirmation before destructive operations such as
// overwriting an export file.
type Prompter interface {
	// Confirm returns true only if the user answers "y" or "yes".
	Confirm(message string) (bool, error)
}

// InteractivePrompter reads answers line by line from a reader.
type InteractivePrompter struct {
	reader io.Reader
	writer io.Writer
}

// NewInteractivePrompter creates a prompter on stdin and stdout.
func NewInteractivePrompter() *InteractivePrompter {
	return NewInteractivePrompterWithIO(os.Stdin, os.Stdout)
}

// NewInteractivePrompterWithIO creates a prompter with custom I/O.
func NewInteractivePrompterWithIO(reader io.Reader, writer io.Writer) *InteractivePrompter {
	return &InteractivePrompter{reader: reader, writer: writer}
}

// Confirm prints message followed by " [y/N]: ". EOF counts as no.
func (p *InteractivePrompter) Confirm(message string) (bool, error) {
	fmt.Fprintf(p.writer, "%s [y/N]: ", message)

	scanner := bufio.NewScanner(p.reader)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return false, fmt.Errorf("failed to read confirmation: %w", err)
		}
		return false, nil
	}
	return isYes(scanner.Text()), nil
}

// ReadlinePrompter asks through a running readline instance, which owns
// the terminal while the shell is open.
type ReadlinePrompter struct {
	rl *readline.Instance
}

// NewReadlinePrompter creates a prompter on rl.
func NewReadlinePrompter(rl *readline.Instance) *ReadlinePrompter {
	return &ReadlinePrompter{rl: rl}
}

// Confirm temporarily swaps the prompt for the question.
func (p *ReadlinePrompter) Confirm(message string) (bool, error) {
	prev := p.rl.Config.Prompt
	p.rl.SetPrompt(message + " [y/N]: ")
	defer p.rl.SetPrompt(prev)

	line, err := p.rl.Readline()
	if err == readline.ErrInterrupt || err == io.EOF {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read confirmation: %w", err)
	}
	return isYes(line), nil
}

func isYes(answer string) bool {
	answer = strings.TrimSpace(strings.ToLower(answer))
	return answer == "yes" || answer == "y"
}

var (
	_ Prompter = (*InteractivePrompter)(nil)
	_ Prompter = (*ReadlinePrompter)(nil)
)
