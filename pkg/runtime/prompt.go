package runtime

import (
	"strings"
	"unicode/utf8"

	"github.com/dimits-ts/syndisco/yarn"
)

// WrapWidth is the column at which chat messages are wrapped in prompts.
const WrapWidth = 70

// FormatChatMessage renders a post the way actors see it:
//
//	User alice posted:
//	<text wrapped at WrapWidth>
//
// Blank text renders as "".
func FormatChatMessage(speaker, text string) string {
	if strings.TrimSpace(text) == "" {
		return ""
	}
	return "User " + speaker + " posted:\n" + Wrap(text, WrapWidth)
}

// FormatHistory renders messages with FormatChatMessage, one per line,
// skipping blank ones.
func FormatHistory(msgs []*yarn.Message) string {
	lines := make([]string, 0, len(msgs))
	for _, m := range msgs {
		if s := FormatChatMessage(m.Speaker, m.Text); s != "" {
			lines = append(lines, s)
		}
	}
	return strings.Join(lines, "\n")
}

// Wrap greedily fills words into lines of at most width runes. Runs of
// whitespace collapse to one space and words longer than width are split.
func Wrap(text string, width int) string {
	words := strings.Fields(text)
	if width <= 0 || len(words) == 0 {
		return strings.Join(words, " ")
	}

	var b strings.Builder
	lineLen := 0
	for _, w := range words {
		if utf8.RuneCountInString(w) > width {
			if lineLen > 0 {
				b.WriteByte('\n')
			}
			for utf8.RuneCountInString(w) > width {
				head, tail := splitRunes(w, width)
				b.WriteString(head)
				b.WriteByte('\n')
				w = tail
			}
			b.WriteString(w)
			lineLen = utf8.RuneCountInString(w)
			continue
		}
		n := utf8.RuneCountInString(w)
		switch {
		case lineLen == 0:
			b.WriteString(w)
			lineLen = n
		case lineLen+1+n <= width:
			b.WriteByte(' ')
			b.WriteString(w)
			lineLen += 1 + n
		default:
			b.WriteByte('\n')
			b.WriteString(w)
			lineLen = n
		}
	}
	return b.String()
}

func splitRunes(s string, n int) (string, string) {
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos], s[pos:]
		}
		i++
	}
	return s, ""
}

// stripSelfAttribution removes a leading echo of the turn cue, such as
// "User alice posted:" or "alice:", that models tend to repeat.
func stripSelfAttribution(text, name string) string {
	text = strings.TrimSpace(text)
	if name == "" {
		return text
	}
	for _, prefix := range []string{"User " + name + " posted:", name + " posted:", name + ":"} {
		if len(text) >= len(prefix) && strings.EqualFold(text[:len(prefix)], prefix) {
			return strings.TrimSpace(text[len(prefix):])
		}
	}
	return text
}
