package parser

import (
	"regexp"
	"strconv"
	"strings"
)

type set map[string]struct{}

func newSet(values ...string) set {
	s := make(set, len(values))
	for _, v := range values {
		s[v] = struct{}{}
	}
	return s
}

func (s set) has(v string) bool {
	_, ok := s[v]
	return ok
}

// Case-insensitive dictionaries hold upper-cased keys.
var (
	AudioTerm = newSet(
		// Channels
		"2.0CH", "2CH", "5.1", "5.1CH", "DTS", "DTS-ES", "DTS5.1", "TRUEHD5.1",
		// Codecs
		"AAC", "AACX2", "AAC×2", "AACX3", "AAC×3", "AACX4", "AAC×4",
		"AC3", "EAC3", "E-AC-3",
		"FLAC", "FLACX2", "FLAC×2", "FLACX3", "FLAC×3", "FLACX4", "FLAC×4",
		"LOSSLESS", "MP3", "WAV", "OGG", "VORBIS",
		// Dual audio
		"DUALAUDIO", "DUAL AUDIO",
	)

	VideoTerm = newSet(
		// Frame rate
		"23.976FPS", "24FPS", "29.97FPS", "30FPS", "60FPS", "120FPS",
		// Codecs
		"8BIT", "8-BIT", "10BIT", "10BITS", "10-BIT", "10-BITS",
		"HI10", "HI10P", "HI444", "HI444P", "HI444PP",
		"H264", "H265", "H.264", "H.265", "X264", "X265", "X.264",
		"AVC", "HEVC", "HEVC2", "HEVC-10BIT", "HEVC_OPUS",
		"DIVX", "DIVX5", "DIVX6", "XVID",
		// Containers that double as codec names
		"AVI", "RMVB", "WMV", "WMV3", "WMV9",
		// Quality
		"HDR", "HQ", "LQ",
		"HD", "SD",
	)

	VideoResolution = newSet(
		"480P", "720P", "1080P", "2160P", "AI2160P",
		"1280X720", "1280×720", "1920X816", "1920×816", "1920X1080", "1920×1080",
		"2K", "4K",
	)

	Source = newSet(
		"BD", "BDRIP", "BLURAY", "BLU-RAY", "BDREMUX", "UHDBDRIP",
		"DVD", "DVD5", "DVD9", "DVD-R2J", "DVDRIP", "DVD-RIP",
		"R2DVD", "R2J", "R2JDVD", "R2JDVDRIP",
		"HDTV", "HDTVRIP", "TVRIP", "TV-RIP",
		"WEB", "WEBCAST", "WEBDL", "WEB-DL", "WEBRIP", "WEB-RIP", "WEB-MKV",
	)

	// Platform names are matched case-sensitively
	Platform = newSet("Baha", "Bilibili", "B-Global", "ABEMA", "CR", "ViuTV", "AMZN", "ADN")

	Type = newSet(
		"GEKIJOUBAN", "MOVIE", "OAD", "OAV", "ONA", "OVA", "SPECIAL", "SPECIALS", "TV",
		"特别篇", "特別篇", "特別編", "特别话", "特別话", "特別話", "番外篇", "番外編",
		"剧场版", "劇場版",
		"SP",
		"ED", "ENDING", "NCED", "NCOP", "OP", "OPENING", "PREVIEW", "PV",
	)

	Languages = newSet(
		"CN", "CHS", "CHT", "YUE", "JP",
		"简体", "国语中字", "繁體", "中日双语", "简日双语", "繁日雙語", "HOY粵語",
	)

	Subtitles = newSet(
		"ASS", "GB", "BIG5", "DUB", "DUBBED", "HARDSUB", "HARDSUBS", "RAW",
		"SOFTSUB", "SOFTSUBS", "SUB", "SUBBED", "SUBTITLED", "SRT",
	)

	// LanguagePrefixes combine with SubtitleSuffixes, e.g. 简日内嵌
	LanguagePrefixes = []string{
		"简繁日双语", "简繁日语", "简日双语", "简繁日", "繁简日",
		"简体", "繁體", "简日", "繁日", "简繁",
	}

	SubtitleSuffixes = newSet("内嵌", "內嵌", "内封", "内封字幕", "外挂", "外掛")

	// PlatformLanguage maps a composite token to (platform, language)
	PlatformLanguage = map[string][2]string{
		"ViuTV粵語": {"ViuTV", "粵語"},
	}

	// LanguageSubtitles maps a composite token to (language, subtitles); empty means unset
	LanguageSubtitles = map[string][2]string{
		"简体字幕":            {"简体", ""},
		"繁體字幕":            {"繁體", ""},
		"简日双语字幕":          {"简日双语", ""},
		"TVB粵語":           {"粵語", ""},
		"代理商粵語":           {"粵語", ""},
		"粵日雙語+內封繁體中文字幕": {"繁體中文", "內封字幕"},
		"粵語+無對白字幕":        {"", "無對白字幕"},
	}

	Extension = newSet(
		"3GP", "AVI", "DIVX", "FLV", "M2TS", "MKV", "MOV", "MP4", "MPG",
		"OGM", "RM", "RMVB", "TS", "WEBM", "WMV",
	)

	Tags = newSet("国漫", "先行版", "先行版本", "正式版", "正式版本", "Ani-One")

	SearchPrefixes = []string{"检索：", "检索用：", "檢索：", "檢索用："}
	HiringPrefixes = []string{"招募", "字幕社招人"}
	OtherPrefixes  = []string{"▶"}
)

var (
	reYearMonthSeason = regexp.MustCompile(`^(\d\d\d\d)年(\d\d?)月新?番$`)
	reMonthSeason     = regexp.MustCompile(`^★?(\d\d?)月新?番★?$`)
	reDate            = regexp.MustCompile(`^(\d\d\d\d)\.(\d?\d)\.(\d?\d)$`)
	reYearSP          = regexp.MustCompile(`^(\d\d\d\d)(SP)$`)
	reVersion         = regexp.MustCompile(`^[vV](\d{1,3})$`)
)

// tagKind is the dictionary category a token resolved to
type tagKind int

const (
	tagNone tagKind = iota
	tagAudioTerm
	tagVideoTerm
	tagResolution
	tagSource
	tagPlatform
	tagType
	tagExtension
	tagFree
	tagLanguage
	tagSubtitles
	tagLanguageSubtitles
	tagPlatformLanguage
	tagYearMonth
	tagMonth
	tagYearType
	tagVersion
	tagSearch
	tagHiring
	tagMarker
)

// tagMatch is a classified token waiting to be applied to a Context
type tagMatch struct {
	kind   tagKind
	text   string
	first  string
	second string
	year   int
	month  int
	number int
}

// classifyTag resolves text against the dictionaries in precedence order.
// It has no side effects; apply writes the outcome.
func (c *Context) classifyTag(text string) (tagMatch, bool) {
	if text == "" {
		return tagMatch{}, false
	}
	key := c.key(text)

	switch {
	case AudioTerm.has(key):
		return tagMatch{kind: tagAudioTerm, text: text}, true
	case VideoTerm.has(key):
		return tagMatch{kind: tagVideoTerm, text: text}, true
	case VideoResolution.has(key):
		return tagMatch{kind: tagResolution, text: text}, true
	case Source.has(key):
		return tagMatch{kind: tagSource, text: text}, true
	case Platform.has(text):
		return tagMatch{kind: tagPlatform, text: text}, true
	case Type.has(key):
		return tagMatch{kind: tagType, text: text}, true
	case Extension.has(key):
		return tagMatch{kind: tagExtension, text: text}, true
	case Tags.has(text):
		return tagMatch{kind: tagFree, text: text}, true
	case Languages.has(key):
		return tagMatch{kind: tagLanguage, text: text}, true
	case Subtitles.has(key):
		return tagMatch{kind: tagSubtitles, text: text}, true
	}

	if pair, ok := LanguageSubtitles[text]; ok {
		return tagMatch{kind: tagLanguageSubtitles, first: pair[0], second: pair[1]}, true
	}
	if pair, ok := PlatformLanguage[text]; ok {
		return tagMatch{kind: tagPlatformLanguage, first: pair[0], second: pair[1]}, true
	}
	for _, prefix := range LanguagePrefixes {
		if rest, ok := strings.CutPrefix(text, prefix); ok && SubtitleSuffixes.has(rest) {
			return tagMatch{kind: tagLanguageSubtitles, first: prefix, second: rest}, true
		}
	}

	if m := reYearMonthSeason.FindStringSubmatch(text); m != nil {
		return tagMatch{kind: tagYearMonth, year: atoi(m[1]), month: atoi(m[2])}, true
	}
	if m := reMonthSeason.FindStringSubmatch(text); m != nil {
		return tagMatch{kind: tagMonth, month: atoi(m[1])}, true
	}
	if m := reDate.FindStringSubmatch(text); m != nil {
		return tagMatch{kind: tagYearMonth, year: atoi(m[1]), month: atoi(m[2])}, true
	}
	if m := reYearSP.FindStringSubmatch(text); m != nil {
		return tagMatch{kind: tagYearType, year: atoi(m[1]), text: m[2]}, true
	}
	if m := reVersion.FindStringSubmatch(text); m != nil {
		return tagMatch{kind: tagVersion, number: atoi(m[1])}, true
	}

	for _, prefix := range SearchPrefixes {
		if rest, ok := strings.CutPrefix(text, prefix); ok {
			return tagMatch{kind: tagSearch, text: strings.TrimSpace(rest)}, true
		}
	}
	for _, prefix := range HiringPrefixes {
		if strings.HasPrefix(text, prefix) {
			// A stray bracket must survive somewhere in the result
			if hasStrayCloser(text) {
				return tagMatch{kind: tagMarker, text: text}, true
			}
			return tagMatch{kind: tagHiring}, true
		}
	}
	for _, prefix := range OtherPrefixes {
		if strings.HasPrefix(text, prefix) {
			return tagMatch{kind: tagMarker, text: text}, true
		}
	}

	return tagMatch{}, false
}

// apply records a classified match; existing field values are never overwritten
func (c *Context) apply(m tagMatch) {
	switch m.kind {
	case tagAudioTerm:
		c.update(FieldAudioTerm, m.text)
	case tagVideoTerm:
		c.update(FieldVideoTerm, m.text)
	case tagResolution:
		c.update(FieldResolution, m.text)
	case tagSource:
		c.update(FieldSource, m.text)
	case tagPlatform:
		c.update(FieldPlatform, m.text)
	case tagType:
		c.update(FieldType, m.text)
	case tagExtension:
		c.update(FieldExtension, m.text)
	case tagLanguage:
		c.update(FieldLanguage, m.text)
	case tagSubtitles:
		c.update(FieldSubtitles, m.text)
	case tagLanguageSubtitles:
		c.update(FieldLanguage, m.first)
		c.update(FieldSubtitles, m.second)
	case tagPlatformLanguage:
		c.update(FieldPlatform, m.first)
		c.update(FieldLanguage, m.second)
	case tagYearMonth:
		c.setYear(m.year)
		c.setMonth(m.month)
	case tagMonth:
		c.setMonth(m.month)
	case tagYearType:
		c.setYear(m.year)
		c.update(FieldType, m.text)
	case tagVersion:
		c.updateInt(FieldVersion, m.number)
	case tagFree, tagSearch, tagMarker:
		c.pushTag(m.text)
	case tagHiring, tagNone:
		// consumed without a value
	}
}

// matchSingleTag classifies text as one keyword and applies it
func matchSingleTag(ctx *Context, text string) bool {
	m, ok := ctx.classifyTag(text)
	if !ok {
		return false
	}
	ctx.apply(m)
	return true
}

var tagSeparators = []string{" ", "_"}

// matchMultipleTags accepts text only if every separated part is a keyword.
// Nothing is applied unless the whole token matches.
func matchMultipleTags(ctx *Context, text string) bool {
	matches, ok := ctx.classifyMultipleTags(text)
	if !ok {
		return false
	}
	for _, m := range matches {
		ctx.apply(m)
	}
	return true
}

func (c *Context) classifyMultipleTags(text string) ([]tagMatch, bool) {
	for _, sep := range tagSeparators {
		parts := strings.Split(text, sep)
		if len(parts) <= 1 {
			continue
		}
		matches := make([]tagMatch, 0, len(parts))
		for _, part := range parts {
			m, ok := c.classifyTag(part)
			if !ok {
				break
			}
			matches = append(matches, m)
		}
		if len(matches) == len(parts) {
			return matches, true
		}
	}
	return nil, false
}

func atoi(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}
