// Package parser extracts release metadata from anime resource titles such as
// "[极影字幕社]在地下城寻求邂逅 第五季 第06話 BIG5 1080P MP4".
//
// Parsing never fails: anything that cannot be classified is left in the title.
package parser

import (
	"strings"
	"unicode"
)

// Parse extracts the structured record from a raw title. It is safe for
// concurrent use; every call owns its own Context.
func Parse(title string) *Result {
	ctx := NewContext(title)
	if len(ctx.tokens) == 0 {
		return ctx.Result()
	}

	parseFansub(ctx)
	parseRightTags(ctx)
	parseLeftTags(ctx)

	rest := parseSuffixSeasonOrEpisodes(ctx, ctx.windowText())
	ctx.result.Title = cleanTitle(rest)

	return ctx.Result()
}

// cleanTitle drops dangling separators left behind by stripped suffixes
func cleanTitle(title string) string {
	return strings.TrimFunc(title, func(r rune) bool {
		return unicode.IsSpace(r) || r == '-' || r == '_' || r == '/' || r == '|'
	})
}
