// Package help renders the interactive shell's command reference.
//
// Commands is the single source of truth: the shell dispatches on these
// names and the completer offers them. Output is grouped by category with
// rounded box-drawing separators and ANSI colors.
package help

import (
	"io"
	"strings"
)

// Box drawing characters.
const (
	BoxHorizontal = "─"
	BoxVertical   = "│"
	BoxTeeLeft    = "├"
)

// ANSI color codes for styled output.
const (
	ColorReset  = "\033[0m"
	ColorBold   = "\033[1m"
	ColorCyan   = "\033[36m"
	ColorGreen  = "\033[32m"
	ColorYellow = "\033[33m"
	ColorGray   = "\033[90m"
)

// Category groups commands in help output.
type Category string

const (
	// CategoryBrowse: /list, /show, /annotations, /runs
	CategoryBrowse Category = "browse"
	// CategoryExport: /export
	CategoryExport Category = "export"
	// CategoryGeneral: /help, /quit
	CategoryGeneral Category = "general"
)

// CategoryOrder is the order categories appear in.
var CategoryOrder = []Category{CategoryBrowse, CategoryExport, CategoryGeneral}

var categoryNames = map[Category]string{
	CategoryBrowse:  "Browse Records",
	CategoryExport:  "Export",
	CategoryGeneral: "General",
}

// DisplayName returns the human-readable category name.
func (c Category) DisplayName() string {
	if name, ok := categoryNames[c]; ok {
		return name
	}
	return string(c)
}

// Command is a shell command and its documentation.
type Command struct {
	// Name includes the leading slash, e.g. "/help".
	Name string
	// Shortcut is an optional alias, e.g. "/h".
	Shortcut    string
	Category    Category
	Description string
	Usage       string
	Examples    []Example
}

// Example is one documented invocation.
type Example struct {
	Command     string
	Description string
}

// Commands documents every shell command.
var Commands = []Command{
	{
		Name:        "/list",
		Shortcut:    "/ls",
		Category:    CategoryBrowse,
		Description: "List discussions, newest first",
		Usage:       "/list [status] [n]",
		Examples: []Example{
			{"/list failed", "only discussions that ended failed"},
			{"/list 5", "the five newest discussions"},
		},
	},
	{
		Name:        "/show",
		Category:    CategoryBrowse,
		Description: "Print a discussion transcript",
		Usage:       "/show <id>",
		Examples: []Example{
			{"/show 1f3a9c2e", "ids may be shortened to 8 characters"},
		},
	},
	{
		Name:        "/annotations",
		Category:    CategoryBrowse,
		Description: "Print the annotations of a discussion",
		Usage:       "/annotations <id>",
	},
	{
		Name:        "/runs",
		Category:    CategoryBrowse,
		Description: "Recent jobs from the run index",
		Usage:       "/runs [discussion|annotation]",
	},
	{
		Name:        "/export",
		Category:    CategoryExport,
		Description: "Export records as CSV",
		Usage:       "/export <file> [annotations]",
		Examples: []Example{
			{"/export out/dataset.csv", "one row per message"},
			{"/export out/labels.csv annotations", "one row per judged message"},
		},
	},
	{
		Name:        "/help",
		Shortcut:    "/h",
		Category:    CategoryGeneral,
		Description: "Show this help or help for one command",
		Usage:       "/help [command]",
	},
	{
		Name:        "/quit",
		Shortcut:    "/q",
		Category:    CategoryGeneral,
		Description: "Exit the shell (also /exit)",
		Usage:       "/quit",
	},
}

// CommandsByCategory returns the commands of cat in registry order.
func CommandsByCategory(cat Category) []Command {
	var out []Command
	for _, c := range Commands {
		if c.Category == cat {
			out = append(out, c)
		}
	}
	return out
}

// Lookup finds a command by name or shortcut, with or without the slash.
func Lookup(name string) (Command, bool) {
	if !strings.HasPrefix(name, "/") {
		name = "/" + name
	}
	for _, c := range Commands {
		if c.Name == name || (c.Shortcut != "" && c.Shortcut == name) {
			return c, true
		}
	}
	return Command{}, false
}

// Names returns every command name and shortcut without the slash.
func Names() []string {
	var out []string
	for _, c := range Commands {
		out = append(out, strings.TrimPrefix(c.Name, "/"))
		if c.Shortcut != "" {
			out = append(out, strings.TrimPrefix(c.Shortcut, "/"))
		}
	}
	return out
}

// Renderer writes help output.
type Renderer struct {
	w     io.Writer
	color bool
}

// NewRenderer creates a renderer writing to w. Colors are off when plain
// is set, for output that is not a terminal.
func NewRenderer(w io.Writer, plain bool) *Renderer {
	return &Renderer{w: w, color: !plain}
}
