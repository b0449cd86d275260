package shell

import (
	"strings"

	"github.com/chzyer/readline"

	"github.com/dimits-ts/syndisco/pkg/help"
)

// commands are the completable command names (without the / prefix).
var commands = append(help.Names(), "exit")

// idCommands take a discussion id as their first argument.
var idCommands = []string{"show", "annotations"}

// argValues are fixed completions for the first argument of a command.
var argValues = map[string][]string{
	"list":   {"completed", "failed", "running"},
	"ls":     {"completed", "failed", "running"},
	"runs":   {"discussion", "annotation"},
	"export": nil,
}

// ShellCompleter provides tab completion for commands and discussion ids.
type ShellCompleter struct {
	ids func() []string
}

// NewShellCompleter creates a completer; ids lists the known discussion ids
// and is called on every completion.
func NewShellCompleter(ids func() []string) *ShellCompleter {
	return &ShellCompleter{ids: ids}
}

var _ readline.AutoCompleter = (*ShellCompleter)(nil)

// Do implements readline.AutoCompleter. It returns the candidate suffixes
// for the word under the cursor and the length of that word.
func (c *ShellCompleter) Do(line []rune, pos int) (newLine [][]rune, length int) {
	if len(line) == 0 || pos <= 0 {
		return nil, 0
	}
	if pos > len(line) {
		pos = len(line)
	}

	lineStr := string(line[:pos])
	wordStart := findWordStart(lineStr)
	currentWord := lineStr[wordStart:]

	if wordStart == 0 {
		if !strings.HasPrefix(currentWord, "/") {
			return nil, 0
		}
		matches, _ := complete(commands, strings.TrimPrefix(currentWord, "/"))
		return matches, len([]rune(currentWord))
	}

	fields := strings.Fields(lineStr[:wordStart])
	if len(fields) != 1 || !strings.HasPrefix(fields[0], "/") {
		return nil, 0
	}
	cmd := strings.TrimPrefix(fields[0], "/")

	for _, idCmd := range idCommands {
		if cmd == idCmd && c.ids != nil {
			return complete(c.ids(), currentWord)
		}
	}
	if values, ok := argValues[cmd]; ok {
		return complete(values, currentWord)
	}
	return nil, 0
}

// findWordStart returns the index after the last space or tab in s.
func findWordStart(s string) int {
	return strings.LastIndexAny(s, " \t") + 1
}

// complete returns the suffixes of candidates that extend prefix, each
// followed by a space.
func complete(candidates []string, prefix string) ([][]rune, int) {
	var matches [][]rune
	for _, c := range candidates {
		if strings.HasPrefix(c, prefix) {
			matches = append(matches, []rune(c[len(prefix):]+" "))
		}
	}
	return matches, len([]rune(prefix))
}
