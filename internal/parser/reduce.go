package parser

import (
	"regexp"
	"strings"
)

var (
	reMonthPrefix      = regexp.MustCompile(`^★?(\d\d?)月新?番★?`)
	reTheatricalPrefix = regexp.MustCompile(`^★?(剧场版|劇場版)★?`)
	reDigits           = regexp.MustCompile(`^\d+$`)
)

// cleanupSeparators split the rightmost title token into trailing tag parts
var cleanupSeparators = []string{" ", "★"}

// parseTag classifies the wrapped token at cursor
func parseTag(ctx *Context, cursor int) bool {
	token := ctx.tokens[cursor]
	if !token.Wrapped {
		return false
	}
	text := token.Text
	return matchSingleTag(ctx, text) || matchEpisodes(ctx, text) || matchMultipleTags(ctx, text)
}

// isTag reports whether text would classify, without recording anything
func (c *Context) isTag(text string) bool {
	if _, ok := c.classifyTag(text); ok {
		return true
	}
	if isEpisodeExpr(text) {
		return true
	}
	_, ok := c.classifyMultipleTags(text)
	return ok
}

// parseFansub takes a leading bracket token that is not a known tag as the release group
func parseFansub(ctx *Context) {
	if ctx.left >= ctx.right {
		return
	}
	token := ctx.tokens[ctx.left]
	if !token.Wrapped || ctx.isTag(token.Text) {
		return
	}
	ctx.result.Fansub = token.Text
	ctx.left++
}

// parseRightTags shrinks the window from the right while tokens classify
func parseRightTags(ctx *Context) {
	for ctx.left < ctx.right {
		if parseTag(ctx, ctx.right) {
			ctx.right--
			continue
		}
		// Unknown trailing junk, only at the very end of a long title
		if ctx.left+2 < ctx.right && ctx.right >= len(ctx.tokens)-1 {
			ctx.pushTag(ctx.tokens[ctx.right].Text)
			ctx.right--
			continue
		}
		break
	}

	if ctx.right < ctx.left || ctx.right < 0 {
		return
	}

	// Space separated tags inside the title token: ... 第06話 BIG5 1080P MP4
	token := ctx.tokens[ctx.right]
	for _, sep := range cleanupSeparators {
		parts := strings.Split(token.Text, sep)
		if len(parts) <= 1 {
			continue
		}

		changed := 0
		for len(parts) > 1 {
			part := parts[len(parts)-1]
			// A lone number next to the title is ambiguous
			if reDigits.MatchString(part) {
				break
			}
			if !matchSingleTag(ctx, part) && !matchEpisodes(ctx, part) && !matchMultipleTags(ctx, part) {
				break
			}
			changed++
			parts = parts[:len(parts)-1]
		}

		if changed > 1 {
			trimmed := strings.Join(parts, sep)
			ctx.tokens[ctx.right] = token.Truncate(len(trimmed))
		}
		if changed > 0 {
			break
		}
	}
}

// parseLeftTags shrinks the window from the left while tokens classify,
// then peels broadcast-season and theatrical markers off the new first token.
func parseLeftTags(ctx *Context) {
	for ctx.left < ctx.right {
		if !parseTag(ctx, ctx.left) {
			break
		}
		ctx.left++
	}

	// 【极影字幕社】 ★10月新番
	if m := trimLeftPrefix(ctx, reMonthPrefix); m != nil {
		ctx.setMonth(atoi(m[1]))
	}
	if m := trimLeftPrefix(ctx, reTheatricalPrefix); m != nil {
		ctx.update(FieldType, m[1])
	}
}

// trimLeftPrefix removes a regexp prefix from the leftmost window token and
// advances the window when the token is used up.
func trimLeftPrefix(ctx *Context, re *regexp.Regexp) []string {
	if ctx.left > ctx.right || ctx.left >= len(ctx.tokens) {
		return nil
	}
	token := ctx.tokens[ctx.left]
	m := re.FindStringSubmatch(token.Text)
	if m == nil {
		return nil
	}

	token = token.Slice(len(m[0])).TrimSpace()
	ctx.tokens[ctx.left] = token
	if token.Text == "" {
		ctx.left++
	}
	return m
}
