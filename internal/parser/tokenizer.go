package parser

import (
	"unicode/utf8"
)

// Wrappers maps every opening bracket to its closing counterpart
var Wrappers = map[rune]rune{
	'[': ']',
	'【': '】',
	'(': ')',
	'（': '）',
	'{': '}',
	'「': '」',
	'『': '』',
	'〖': '〗',
	'〔': '〕',
}

// RevWrappers maps every closing bracket back to its opener
var RevWrappers = func() map[rune]rune {
	rev := make(map[rune]rune, len(Wrappers))
	for open, close := range Wrappers {
		rev[close] = open
	}
	return rev
}()

// Tokenize splits a raw title into bracket tokens and the plain runs between them.
// Unterminated openers and stray closers stay in the plain run as literal text.
func Tokenize(raw string) []Token {
	tokens := make([]Token, 0, 8)
	plainStart := 0
	closers := matchBrackets(raw)

	for i := 0; i < len(raw); {
		r, size := utf8.DecodeRuneInString(raw[i:])
		end, ok := closers[i]
		if !ok {
			// Plain text or a dangling opener, keep it as text
			i += size
			continue
		}
		closer := Wrappers[r]

		tokens = appendToken(tokens, Token{Text: raw[plainStart:i], Start: plainStart, End: i})
		tokens = appendToken(tokens, Token{
			Text:    raw[i+size : end],
			Start:   i + size,
			End:     end,
			Wrapped: true,
			open:    r,
			close:   closer,
		})

		i = end + utf8.RuneLen(closer)
		plainStart = i
	}

	return appendToken(tokens, Token{Text: raw[plainStart:], Start: plainStart, End: len(raw)})
}

// matchBrackets pairs every opener with the byte offset of its closer in one
// pass. Each bracket kind nests independently; openers left on a stack at the
// end have no closer.
func matchBrackets(raw string) map[int]int {
	var pairs map[int]int
	open := make(map[rune][]int)
	for i, r := range raw {
		if _, ok := Wrappers[r]; ok {
			open[r] = append(open[r], i)
			continue
		}
		opener, ok := RevWrappers[r]
		if !ok {
			continue
		}
		stack := open[opener]
		if len(stack) == 0 {
			continue
		}
		if pairs == nil {
			pairs = make(map[int]int)
		}
		pairs[stack[len(stack)-1]] = i
		open[opener] = stack[:len(stack)-1]
	}
	return pairs
}

// hasStrayCloser reports whether text holds a closing bracket with no opener
// of its kind before it
func hasStrayCloser(text string) bool {
	depth := make(map[rune]int)
	for _, r := range text {
		if _, ok := Wrappers[r]; ok {
			depth[r]++
			continue
		}
		opener, ok := RevWrappers[r]
		if !ok {
			continue
		}
		if depth[opener] == 0 {
			return true
		}
		depth[opener]--
	}
	return false
}

func appendToken(tokens []Token, t Token) []Token {
	t = t.TrimSpace()
	if t.Text == "" {
		return tokens
	}
	return append(tokens, t)
}
