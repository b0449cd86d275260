package errors

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"golang.org/x/term"
)

// ANSI color codes for terminal output.
const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
	colorDim    = "\033[90m"
	colorBold   = "\033[1m"
)

// Formatter renders errors for terminal display.
type Formatter struct {
	// UseColor enables ANSI color codes in output.
	UseColor bool

	// Writer is the output destination. Defaults to os.Stderr.
	Writer io.Writer

	// Indent is the prefix for context and suggestion lines.
	Indent string
}

// DefaultFormatter returns a Formatter writing to stderr, colored on a TTY.
func DefaultFormatter() *Formatter {
	return &Formatter{
		UseColor: term.IsTerminal(int(os.Stderr.Fd())),
		Writer:   os.Stderr,
		Indent:   "  ",
	}
}

// Format renders err with the formatter's settings.
func (f *Formatter) Format(err error) string {
	if err == nil {
		return ""
	}
	de, ok := AsDiscoError(err)
	if !ok {
		return f.paint(colorRed, "Error: ") + err.Error()
	}

	var sb strings.Builder
	if f.UseColor {
		sb.WriteString(colorRed + colorBold + "ERROR" + colorReset + colorRed)
		sb.WriteString(" [" + de.Code + "]: " + colorReset)
	} else {
		sb.WriteString("ERROR [" + de.Code + "]: ")
	}
	sb.WriteString(de.Message)
	sb.WriteString("\n")

	keys := make([]string, 0, len(de.Context))
	for k := range de.Context {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		sb.WriteString(f.Indent + f.paint(colorYellow, k+": ") + de.Context[k] + "\n")
	}

	if de.Cause != nil {
		sb.WriteString(f.Indent + f.paint(colorDim, "cause: "+de.Cause.Error()) + "\n")
	}

	if de.HasSuggestions() {
		if de.HasContext() || de.Cause != nil {
			sb.WriteString("\n")
		}
		for _, s := range de.Suggestions {
			sb.WriteString(f.Indent + f.paint(colorCyan, "→ "+s) + "\n")
		}
	}
	return sb.String()
}

func (f *Formatter) paint(color, s string) string {
	if !f.UseColor {
		return s
	}
	return color + s + colorReset
}

// Display writes the formatted error to the formatter's writer.
func (f *Formatter) Display(err error) {
	if err == nil {
		return
	}
	w := f.Writer
	if w == nil {
		w = os.Stderr
	}
	fmt.Fprint(w, f.Format(err))
}

// Display prints err to stderr using the default formatter.
func Display(err error) {
	DefaultFormatter().Display(err)
}

// Sprint formats err without color.
func Sprint(err error) string {
	f := &Formatter{Indent: "  "}
	return f.Format(err)
}
