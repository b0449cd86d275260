package help

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookup(t *testing.T) {
	for _, name := range []string{"/list", "list", "/ls", "ls"} {
		c, ok := Lookup(name)
		require.True(t, ok, name)
		assert.Equal(t, "/list", c.Name)
	}
	_, ok := Lookup("/frobnicate")
	assert.False(t, ok)
}

func TestNames(t *testing.T) {
	names := Names()
	assert.Contains(t, names, "show")
	assert.Contains(t, names, "h")
	for _, n := range names {
		assert.False(t, strings.HasPrefix(n, "/"), n)
	}
}

func TestCommands_Complete(t *testing.T) {
	seen := map[string]bool{}
	for _, c := range Commands {
		assert.NotEmpty(t, c.Description, c.Name)
		assert.True(t, strings.HasPrefix(c.Usage, c.Name), "usage of %s should start with its name", c.Name)
		assert.Contains(t, CategoryOrder, c.Category)
		assert.False(t, seen[c.Name], "duplicate %s", c.Name)
		seen[c.Name] = true
	}
}

func TestRenderFull(t *testing.T) {
	var buf bytes.Buffer
	NewRenderer(&buf, true).RenderFull()
	out := buf.String()

	assert.NotContains(t, out, "\033[", "plain output has no escapes")
	for _, cat := range CategoryOrder {
		assert.Contains(t, out, cat.DisplayName())
	}
	assert.Contains(t, out, "/list (or /ls)")
	assert.Contains(t, out, "e.g. /list failed")

	// Descriptions line up in one column.
	var cols []int
	for _, line := range strings.Split(out, "\n") {
		if strings.HasPrefix(line, indentCommand+BoxVertical+" /") {
			for _, c := range Commands {
				if i := strings.Index(line, c.Description); i > 0 && strings.Contains(line, c.Name+" ") {
					cols = append(cols, i)
				}
			}
		}
	}
	require.Len(t, cols, len(Commands))
	for _, c := range cols {
		assert.Equal(t, cols[0], c)
	}
}

func TestRenderFull_Color(t *testing.T) {
	var buf bytes.Buffer
	NewRenderer(&buf, false).RenderFull()
	assert.Contains(t, buf.String(), ColorCyan+"/show"+ColorReset)
}

func TestRenderCommand(t *testing.T) {
	var buf bytes.Buffer
	r := NewRenderer(&buf, true)

	assert.True(t, r.RenderCommand("export"))
	out := buf.String()
	assert.Contains(t, out, "Usage: /export <file> [annotations]")
	assert.Contains(t, out, "/export out/labels.csv annotations  one row per judged message")

	buf.Reset()
	assert.False(t, r.RenderCommand("nope"))
	assert.Contains(t, buf.String(), "Command 'nope' not found")
}

func TestVisibleLength(t *testing.T) {
	assert.Equal(t, 5, visibleLength("hello"))
	assert.Equal(t, 5, visibleLength(ColorBold+ColorCyan+"hello"+ColorReset))
	assert.Equal(t, 3, visibleLength("│ a"))
}
