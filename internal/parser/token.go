package parser

import (
	"strings"
	"unicode"
)

// Token is a contiguous slice of the raw title.
// Start and End are byte offsets of Text inside the raw string.
type Token struct {
	Text    string
	Start   int
	End     int
	Wrapped bool

	open  rune
	close rune
}

// String returns the token as it appears in the title, brackets included
func (t Token) String() string {
	if !t.Wrapped {
		return t.Text
	}
	return string(t.open) + t.Text + string(t.close)
}

// Slice drops the first n bytes of the token text
func (t Token) Slice(n int) Token {
	if n > len(t.Text) {
		n = len(t.Text)
	}
	t.Text = t.Text[n:]
	t.Start += n
	return t
}

// Truncate keeps only the first n bytes of the token text
func (t Token) Truncate(n int) Token {
	if n > len(t.Text) {
		n = len(t.Text)
	}
	t.Text = t.Text[:n]
	t.End = t.Start + n
	return t
}

// TrimSpace strips surrounding whitespace, keeping offsets in sync
func (t Token) TrimSpace() Token {
	left := strings.TrimLeftFunc(t.Text, unicode.IsSpace)
	t = t.Slice(len(t.Text) - len(left))
	return t.Truncate(len(strings.TrimRightFunc(t.Text, unicode.IsSpace)))
}
