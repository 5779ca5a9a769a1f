package parser

import (
	"strings"
	"testing"

	"pgregory.net/rapid"
)

// titleGen builds titles out of brackets, keywords and filler
func titleGen() *rapid.Generator[string] {
	pieces := []string{
		"[", "]", "【", "】", "(", ")", "（", "）", " ", "-", "_", "★",
		"Title", "Frieren", "葬送的芙莉莲", "极影字幕社",
		"1080p", "720P", "AAC", "AVC", "MP4", "CHT", "简日双语", "BIG5", "Baha",
		"06", "2024", "第五季", "第06話", "S01E06", "v2", "01-12", "10月新番",
	}
	return rapid.Custom(func(t *rapid.T) string {
		parts := rapid.SliceOfN(rapid.SampledFrom(pieces), 0, 20).Draw(t, "parts")
		return strings.Join(parts, "")
	})
}

func TestPropertyParseDeterministic(t *testing.T) {
	t.Parallel()
	rapid.Check(t, func(t *rapid.T) {
		input := titleGen().Draw(t, "input")
		first := Parse(input)
		second := Parse(input)

		if first.Title != second.Title || first.Fansub != second.Fansub ||
			strings.Join(first.Tags, "|") != strings.Join(second.Tags, "|") {
			t.Fatalf("Parse(%q) is not deterministic: %+v vs %+v", input, first, second)
		}
	})
}

func TestPropertyParseResultShape(t *testing.T) {
	t.Parallel()
	rapid.Check(t, func(t *rapid.T) {
		input := titleGen().Draw(t, "input")
		res := Parse(input)

		if res.Tags == nil {
			t.Fatalf("Parse(%q) returned nil tags", input)
		}
		if res.Title != strings.TrimSpace(res.Title) {
			t.Fatalf("Parse(%q) title %q has surrounding whitespace", input, res.Title)
		}
		if r := res.EpisodeRange; r != nil && r.From > r.To {
			t.Fatalf("Parse(%q) produced inverted range %+v", input, *r)
		}
		if res.Episode != nil && res.EpisodeRange != nil {
			t.Fatalf("Parse(%q) set both episode and range", input)
		}
		if res.Month != nil && (*res.Month < 1 || *res.Month > 12) {
			t.Fatalf("Parse(%q) produced month %d", input, *res.Month)
		}
	})
}

func TestPropertyWindowOnlyShrinks(t *testing.T) {
	t.Parallel()
	rapid.Check(t, func(t *rapid.T) {
		input := titleGen().Draw(t, "input")
		ctx := NewContext(input)
		left, right := ctx.Window()

		for _, stage := range []func(*Context){parseFansub, parseRightTags, parseLeftTags} {
			stage(ctx)
			l, r := ctx.Window()
			if l < left || r > right {
				t.Fatalf("window of %q grew from [%d,%d] to [%d,%d]", input, left, right, l, r)
			}
			left, right = l, r
		}
	})
}

func TestPropertyTokenOffsets(t *testing.T) {
	t.Parallel()
	rapid.Check(t, func(t *rapid.T) {
		input := titleGen().Draw(t, "input")
		prevEnd := 0

		for _, tok := range Tokenize(input) {
			if tok.Text == "" {
				t.Fatalf("Tokenize(%q) produced an empty token", input)
			}
			if tok.Start < prevEnd || input[tok.Start:tok.End] != tok.Text {
				t.Fatalf("Tokenize(%q) token %+v does not slice the input", input, tok)
			}
			prevEnd = tok.End
		}
	})
}

func TestPropertyUnterminatedBracketIsLiteral(t *testing.T) {
	t.Parallel()
	chars := []rune("abcdefghijklmnopqrstuvwxyz0123456789 -_.")
	rapid.Check(t, func(t *rapid.T) {
		prefix := rapid.StringOfN(rapid.SampledFrom(chars), 0, 30, -1).Draw(t, "prefix")
		suffix := rapid.StringOfN(rapid.SampledFrom(chars), 0, 30, -1).Draw(t, "suffix")
		input := prefix + "[" + suffix

		tokens := Tokenize(input)
		if len(tokens) != 1 || tokens[0].Text != strings.TrimSpace(input) || tokens[0].Wrapped {
			t.Fatalf("Tokenize(%q) = %+v, want one literal token", input, tokens)
		}
	})
}

func TestPropertyStrayCloserSurvivesParse(t *testing.T) {
	t.Parallel()
	pieces := []string{
		"Title", "Frieren", " ", " - ", "06", "[Group]", "[1080p]", "[招募x]", "[简日内嵌]",
		"招募", "检索：abc", "1080P", "MP4", "第06話", "v2", "★10月新番★", "[Baha]", "【喵萌奶茶屋】",
	}
	closers := []rune{']', '】', ')', '）', '}', '」', '』', '〗', '〕'}
	rapid.Check(t, func(t *rapid.T) {
		parts := rapid.SliceOfN(rapid.SampledFrom(pieces), 0, 12).Draw(t, "parts")
		runes := []rune(strings.Join(parts, ""))
		closer := rapid.SampledFrom(closers).Draw(t, "closer")
		at := rapid.IntRange(0, len(runes)).Draw(t, "at")
		input := string(runes[:at]) + string(closer) + string(runes[at:])

		res := Parse(input)
		found := strings.ContainsRune(res.Title, closer) || strings.ContainsRune(res.Fansub, closer)
		for _, tag := range res.Tags {
			found = found || strings.ContainsRune(tag, closer)
		}
		if !found {
			t.Fatalf("Parse(%q) lost the stray %q: %+v", input, closer, res)
		}
	})
}

func TestPropertyFirstWriteWins(t *testing.T) {
	t.Parallel()
	resolutions := []string{"480p", "720p", "1080p", "2160p", "4K", "1920x1080"}
	rapid.Check(t, func(t *rapid.T) {
		seq := rapid.SliceOfN(rapid.SampledFrom(resolutions), 1, 10).Draw(t, "seq")
		ctx := NewContext("")
		for _, r := range seq {
			if !matchSingleTag(ctx, r) {
				t.Fatalf("%q did not classify", r)
			}
		}
		if got := ctx.Result().File.Video.Resolution; got != seq[0] {
			t.Fatalf("resolution = %q, want first write %q", got, seq[0])
		}
	})
}
