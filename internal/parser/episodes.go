package parser

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

// episodeRule pairs a pattern with a handler. The handler may reject a
// structural match, in which case the next rule is tried.
type episodeRule struct {
	re *regexp.Regexp
	fn func(ctx *Context, m []string) bool
}

const cnNumber = `[零〇一二两三四五六七八九十\d]{1,3}`

// EpisodeRules match a whole token such as [06], [S01E06] or [第五季]
var EpisodeRules = []episodeRule{
	{regexp.MustCompile(`^(\d{1,4})[vV](\d{1,2})$`), handleEpisodeVersion},
	{regexp.MustCompile(`^(\d{1,4})$`), handleNumber},
	{regexp.MustCompile(`(?i)^(\d{1,4})\s?[-~～]\s?(\d{1,4})(?:\s?(?:END|FIN|完|合集|全集|\+\s?SP|\+\s?OVA))?$`), handleRange},
	{regexp.MustCompile(`^第?(\d{1,4})[话話集](?:[vV](\d{1,2}))?(?:\s?END|完)?$`), handleEpisodeVersion},
	{regexp.MustCompile(`^第?(\d{1,4})\s?[-~～]\s?(\d{1,4})[话話集]$`), handleRange},
	{regexp.MustCompile(`^全(\d{1,4})[话話集]$`), handleTotal},
	{regexp.MustCompile(`(?i)^EP?\.?\s?(\d{1,4})(?:v(\d{1,2}))?$`), handleEpisodeVersion},
	{regexp.MustCompile(`(?i)^S(\d{1,2})E(\d{1,4})(?:v(\d{1,2}))?$`), handleSeasonEpisode},
	{regexp.MustCompile(`(?i)^(?:S|Season\s?)(\d{1,2})$`), handleSeason},
	{regexp.MustCompile(`(?i)^(\d{1,2})(?:st|nd|rd|th)\s?Season$`), handleSeason},
	{regexp.MustCompile(`^第(` + cnNumber + `)部分$`), handlePart},
	{regexp.MustCompile(`(?i)^Part\.?\s?(\d{1,2})$`), handlePart},
	{regexp.MustCompile(`^第(` + cnNumber + `)[季期部]$`), handleSeason},
	{regexp.MustCompile(`(?i)^(\d{1,4})\s?(?:END|完)$`), handleEpisodeVersion},
}

// SuffixRules match a trailing expression of the residual title text.
// Every rule is anchored at the end; the matched suffix is removed on success.
var SuffixRules = []episodeRule{
	{regexp.MustCompile(`(?i)(?:^|[\s._-])S(\d{1,2})E(\d{1,4})(?:v(\d{1,2}))?$`), handleSeasonEpisode},
	{regexp.MustCompile(`\s*第(\d{1,4})[话話集](?:[vV](\d{1,2}))?(?:\s?END|完)?$`), handleEpisodeVersion},
	{regexp.MustCompile(`\s*第(\d{1,4})\s?[-~～]\s?(\d{1,4})[话話集]$`), handleRange},
	{regexp.MustCompile(`\s*全(\d{1,4})[话話集]$`), handleTotal},
	{regexp.MustCompile(`\s*第(` + cnNumber + `)部分$`), handlePart},
	{regexp.MustCompile(`\s*第(` + cnNumber + `)[季期部]$`), handleSeason},
	{regexp.MustCompile(`(?i)\s+Part\.?\s?(\d{1,2})$`), handlePart},
	{regexp.MustCompile(`(?i)\s+(?:Season\s?|S)(\d{1,2})$`), handleSeason},
	{regexp.MustCompile(`(?i)\s+(\d{1,2})(?:st|nd|rd|th)\s?Season$`), handleSeason},
	{regexp.MustCompile(`(?i)\s+-\s+(\d{1,4})(?:v(\d{1,2}))?(?:\s?(?:END|完))?$`), handleEpisodeVersion},
	{regexp.MustCompile(`(?i)\s+(\d{1,4})\s?[-~～]\s?(\d{1,4})(?:\s?(?:END|FIN|完|合集|全集))?$`), handleRange},
	{regexp.MustCompile(`\s+(\d{1,4})[vV](\d{1,2})$`), handleEpisodeVersion},
	{regexp.MustCompile(`(?i)\s+EP?\.?(\d{1,4})(?:v(\d{1,2}))?$`), handleEpisodeVersion},
	{regexp.MustCompile(`(?i)\s+(\d{1,4})\s?(?:END|完)$`), handleEpisodeVersion},
	{regexp.MustCompile(`\s+(\d{2,3})$`), handleTrailingNumber},
}

// matchEpisodes applies the first whole-token rule that accepts text
func matchEpisodes(ctx *Context, text string) bool {
	for _, rule := range EpisodeRules {
		if m := rule.re.FindStringSubmatch(text); m != nil && rule.fn(ctx, m) {
			return true
		}
	}
	return false
}

// isEpisodeExpr reports a structural match without touching the context
func isEpisodeExpr(text string) bool {
	for _, rule := range EpisodeRules {
		if rule.re.MatchString(text) {
			return true
		}
	}
	return false
}

// parseSuffixSeasonOrEpisodes strips trailing episode/season expressions and
// bracketed tags from text, returning what is left. Every successful iteration
// shortens text, so the loop terminates.
func parseSuffixSeasonOrEpisodes(ctx *Context, text string) string {
	for {
		found := false

		// Ends with a bracketed tag: Title [06]
		if last, size := utf8.DecodeLastRuneInString(text); size > 0 {
			if open, ok := RevWrappers[last]; ok {
				openIdx := strings.LastIndex(text, string(open))
				if openIdx > 0 {
					inner := text[openIdx+utf8.RuneLen(open) : len(text)-size]
					if inner != "" && (matchSingleTag(ctx, inner) || (!ctx.hasEpisode && matchEpisodes(ctx, inner))) {
						text = strings.TrimRightFunc(text[:openIdx], unicode.IsSpace)
						found = true
					}
				}
			}
		}

		for _, rule := range SuffixRules {
			loc := rule.re.FindStringSubmatchIndex(text)
			// Never consume the whole title
			if loc == nil || loc[0] == 0 {
				continue
			}
			if rule.fn(ctx, submatches(text, loc)) {
				text = strings.TrimRightFunc(text[:loc[0]], unicode.IsSpace)
				found = true
				break
			}
		}

		if !found {
			return text
		}
	}
}

func submatches(text string, loc []int) []string {
	m := make([]string, len(loc)/2)
	for i := range m {
		if loc[2*i] >= 0 {
			m[i] = text[loc[2*i]:loc[2*i+1]]
		}
	}
	return m
}

func handleEpisodeVersion(ctx *Context, m []string) bool {
	ctx.setEpisode(atoi(m[1]))
	if len(m) > 2 && m[2] != "" {
		ctx.updateInt(FieldVersion, atoi(m[2]))
	}
	return true
}

// handleNumber treats a plausible 4-digit year as a year, anything else as an episode
func handleNumber(ctx *Context, m []string) bool {
	n := atoi(m[1])
	if len(m[1]) == 4 && validYear(n) {
		ctx.setYear(n)
		return true
	}
	ctx.setEpisode(n)
	return true
}

func handleTrailingNumber(ctx *Context, m []string) bool {
	// A bare number next to the title is only an episode if none was found yet
	if ctx.hasEpisode {
		return false
	}
	ctx.setEpisode(atoi(m[1]))
	return true
}

func handleRange(ctx *Context, m []string) bool {
	from, to := atoi(m[1]), atoi(m[2])
	if from > to {
		return false
	}
	ctx.setEpisodeRange(from, to)
	return true
}

func handleTotal(ctx *Context, m []string) bool {
	total := atoi(m[1])
	if total < 1 {
		return false
	}
	ctx.setEpisodeRange(1, total)
	return true
}

func handleSeasonEpisode(ctx *Context, m []string) bool {
	ctx.setSeason(atoi(m[1]))
	ctx.setEpisode(atoi(m[2]))
	if len(m) > 3 && m[3] != "" {
		ctx.updateInt(FieldVersion, atoi(m[3]))
	}
	return true
}

func handleSeason(ctx *Context, m []string) bool {
	n, ok := parseNumber(m[1])
	if !ok {
		return false
	}
	ctx.setSeason(n)
	return true
}

func handlePart(ctx *Context, m []string) bool {
	n, ok := parseNumber(m[1])
	if !ok {
		return false
	}
	ctx.setPart(n)
	return true
}

var cnDigits = map[rune]int{
	'零': 0, '〇': 0, '一': 1, '二': 2, '两': 2, '三': 3, '四': 4,
	'五': 5, '六': 6, '七': 7, '八': 8, '九': 9,
}

// parseNumber reads arabic digits or a Chinese numeral below 100 (五, 十二, 二十五)
func parseNumber(s string) (int, bool) {
	if n, err := strconv.Atoi(s); err == nil {
		return n, true
	}

	total, cur := 0, -1
	for _, r := range s {
		if r == '十' {
			if cur < 0 {
				cur = 1
			}
			total += cur * 10
			cur = -1
			continue
		}
		d, ok := cnDigits[r]
		if !ok || cur >= 0 {
			return 0, false
		}
		cur = d
	}
	if cur > 0 {
		total += cur
	}
	return total, true
}
