package formatter

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

func WordCount(s string) int {
	return len(strings.Fields(s))
}

// Quick is the deterministic cleanup used instead of a model call for short
// text: capitalize the first letter and end with terminal punctuation.
func Quick(text string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return ""
	}
	r, size := utf8.DecodeRuneInString(text)
	text = string(unicode.ToUpper(r)) + text[size:]

	last, _ := utf8.DecodeLastRuneInString(text)
	switch last {
	case '.', '!', '?':
		return text
	}
	return text + "."
}

// LineSanitizer flattens a token stream onto one line. Each line break
// (\r\n, \r or \n) becomes one space and runs of spaces collapse, including
// runs split across tokens. A \r\n split across two tokens still counts as
// one break.
type LineSanitizer struct {
	lastSpace bool
	pendingCR bool
}

func (s *LineSanitizer) Token(tok string) string {
	var b strings.Builder
	b.Grow(len(tok))
	for i := 0; i < len(tok); i++ {
		c := tok[i]
		if s.pendingCR {
			s.pendingCR = false
			if c == '\n' {
				continue
			}
		}
		switch c {
		case '\r':
			s.pendingCR = true
			c = ' '
		case '\n':
			c = ' '
		}
		if c == ' ' {
			if s.lastSpace {
				continue
			}
			s.lastSpace = true
		} else {
			s.lastSpace = false
		}
		b.WriteByte(c)
	}
	return b.String()
}

// FlattenLine is the whole-text form of LineSanitizer, trimmed.
func FlattenLine(text string) string {
	var s LineSanitizer
	return strings.TrimSpace(s.Token(text))
}
