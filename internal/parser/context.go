package parser

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/width"
)

// Context is the mutable state of a single parse.
// Tokens in [left, right] are still unclassified; left only grows and right only shrinks.
type Context struct {
	raw    string
	tokens []Token
	left   int
	right  int

	result     Result
	tags       []string
	hasEpisode bool

	// cases.Caser is stateful, so every parse gets its own
	upper cases.Caser
}

// NewContext tokenizes raw and opens the window over every token
func NewContext(raw string) *Context {
	tokens := Tokenize(raw)
	return &Context{
		raw:    raw,
		tokens: tokens,
		left:   0,
		right:  len(tokens) - 1,
		tags:   make([]string, 0, 4),
		upper:  cases.Upper(language.Und),
	}
}

// Tokens returns the current token sequence
func (c *Context) Tokens() []Token { return c.tokens }

// Window returns the inclusive bounds of the unclassified tokens
func (c *Context) Window() (left, right int) { return c.left, c.right }

// HasEpisode reports whether an episode number has been recovered so far
func (c *Context) HasEpisode() bool { return c.hasEpisode }

// key is the normalised lookup form for case-insensitive dictionaries
func (c *Context) key(text string) string {
	return c.upper.String(width.Fold.String(text))
}

// update writes a string field unless it is already set
func (c *Context) update(f Field, value string) {
	if value == "" {
		return
	}
	dst := c.result.stringField(f)
	if dst == nil || *dst != "" {
		return
	}
	*dst = value
}

// updateInt writes a numeric field unless it is already set
func (c *Context) updateInt(f Field, value int) {
	dst := c.result.intField(f)
	if dst == nil || *dst != nil {
		return
	}
	*dst = &value
}

func (c *Context) pushTag(tag string) {
	if tag == "" {
		return
	}
	c.tags = append(c.tags, tag)
}

func (c *Context) setSeason(n int) {
	if c.result.Season == nil {
		c.result.Season = &n
	}
}

func (c *Context) setEpisode(n int) {
	c.hasEpisode = true
	if c.result.Episode == nil && c.result.EpisodeRange == nil {
		c.result.Episode = &n
	}
}

func (c *Context) setEpisodeRange(from, to int) {
	c.hasEpisode = true
	if c.result.Episode == nil && c.result.EpisodeRange == nil {
		c.result.EpisodeRange = &EpisodeRange{From: from, To: to}
	}
}

func (c *Context) setPart(n int) {
	if c.result.Part == nil {
		c.result.Part = &n
	}
}

func (c *Context) setYear(year int) {
	if validYear(year) {
		c.updateInt(FieldYear, year)
	}
}

func (c *Context) setMonth(month int) {
	if validMonth(month) {
		c.updateInt(FieldMonth, month)
	}
}

func validYear(year int) bool   { return 1949 <= year && year <= 2099 }
func validMonth(month int) bool { return 1 <= month && month <= 12 }

// windowText joins the unclassified tokens back into title text.
// A lone bracket token loses its brackets.
func (c *Context) windowText() string {
	if c.left > c.right || c.left >= len(c.tokens) {
		return ""
	}
	if c.left == c.right {
		return strings.TrimSpace(c.tokens[c.left].Text)
	}

	var sb strings.Builder
	for i := c.left; i <= c.right; i++ {
		t := c.tokens[i]
		if i > c.left {
			gap := c.raw[c.tokens[i-1].End:t.Start]
			if strings.IndexFunc(gap, unicode.IsSpace) >= 0 {
				sb.WriteByte(' ')
			}
		}
		sb.WriteString(t.String())
	}
	return strings.TrimSpace(sb.String())
}

// Result snapshots the parse state into an immutable record
func (c *Context) Result() *Result {
	res := c.result
	res.Tags = append(make([]string, 0, len(c.tags)), c.tags...)
	return &res
}
