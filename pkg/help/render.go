package help

import (
	"fmt"
	"strings"
)

const (
	// commandColumnWidth fits the longest "/name (or /alias)".
	commandColumnWidth = 22

	indentCategory = "  "
	indentCommand  = "    "
	indentExample  = "      "
)

func (r *Renderer) style(codes, text string) string {
	if !r.color {
		return text
	}
	return codes + text + ColorReset
}

func (r *Renderer) dim(text string) string { return r.style(ColorGray, text) }

func (r *Renderer) command(c Command) string {
	name := r.style(ColorCyan, c.Name)
	if c.Shortcut == "" {
		return name
	}
	return name + r.dim(" (or ") + r.style(ColorBold+ColorYellow, c.Shortcut) + r.dim(")")
}

// RenderFull writes every category.
func (r *Renderer) RenderFull() {
	r.writeln("")
	r.writeln(r.style(ColorBold+ColorCyan, indentCategory+"Syndisco Shell"))
	r.writeln("")
	for _, cat := range CategoryOrder {
		r.renderCategory(cat)
	}
	r.writeln(indentCategory + r.dim("Use Tab to complete commands and discussion ids; /help <command> for details."))
}

// RenderCommand writes the detailed help for name. It returns false when
// no such command exists.
func (r *Renderer) RenderCommand(name string) bool {
	c, ok := Lookup(name)
	if !ok {
		r.writeln(fmt.Sprintf(indentCategory+"Command '%s' not found. Use /help to see all commands.", name))
		return false
	}

	r.writeln("")
	r.writeln(indentCategory + r.command(c))
	r.writeln(indentCategory + r.dim(c.Description))
	r.writeln("")
	r.writeln(indentCategory + r.style(ColorBold, "Usage:") + " " + r.style(ColorYellow, c.Usage))
	if len(c.Examples) > 0 {
		r.writeln("")
		r.writeln(indentCategory + r.style(ColorBold, "Examples:"))
		for _, ex := range c.Examples {
			r.writeln(indentCommand + r.style(ColorYellow, ex.Command) + r.dim("  "+ex.Description))
		}
	}
	r.writeln("")
	return true
}

func (r *Renderer) renderCategory(cat Category) {
	commands := CommandsByCategory(cat)
	if len(commands) == 0 {
		return
	}
	r.writeln(indentCategory + r.style(ColorBold+ColorGreen, cat.DisplayName()))
	r.writeln(indentCategory + r.dim(BoxTeeLeft+strings.Repeat(BoxHorizontal, commandColumnWidth+20)))

	for _, c := range commands {
		name := r.command(c)
		pad := max(commandColumnWidth-visibleLength(name), 1)
		r.writeln(indentCommand + r.dim(BoxVertical+" ") + name + strings.Repeat(" ", pad) + r.dim(c.Description))
		if len(c.Examples) > 0 {
			r.writeln(indentExample + r.dim(BoxVertical+"   e.g. ") + r.style(ColorYellow, c.Examples[0].Command))
		}
	}
	r.writeln("")
}

// visibleLength counts runes outside ANSI escape sequences.
func visibleLength(s string) int {
	n := 0
	inEscape := false
	for _, c := range s {
		switch {
		case c == '\033':
			inEscape = true
		case inEscape:
			if c == 'm' {
				inEscape = false
			}
		default:
			n++
		}
	}
	return n
}

func (r *Renderer) writeln(s string) {
	fmt.Fprintln(r.w, s)
}
