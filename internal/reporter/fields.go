package reporter

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/Nomadcxx/anipar/internal/parser"
)

// Field is one labelled value of a parsed result
type Field struct {
	Name  string
	Value string
}

// Describe lists the populated fields of r in display order
func Describe(r *parser.Result) []Field {
	if r == nil {
		return nil
	}

	var fields []Field
	add := func(name, value string) {
		if value != "" {
			fields = append(fields, Field{Name: name, Value: value})
		}
	}

	add("Title", r.Title)
	add("Fansub", r.Fansub)
	add("Season", optInt(r.Season))
	add("Episode", optInt(r.Episode))
	add("Episodes", formatRange(r.EpisodeRange))
	add("Part", optInt(r.Part))
	add("Type", r.Type)
	add("Source", r.Source)
	add("Platform", r.Platform)
	add("Language", r.Language)
	add("Subtitles", r.Subtitles)
	add("Year", optInt(r.Year))
	add("Month", optInt(r.Month))
	add("Version", optInt(r.Version))
	add("Video", r.File.Video.Term)
	add("Resolution", r.File.Video.Resolution)
	add("Audio", r.File.Audio.Term)
	add("Extension", r.File.Extension)
	add("Tags", strings.Join(r.Tags, ", "))

	return fields
}

func optInt(n *int) string {
	if n == nil {
		return ""
	}
	return strconv.Itoa(*n)
}

func formatRange(r *parser.EpisodeRange) string {
	if r == nil {
		return ""
	}
	return fmt.Sprintf("%02d-%02d", r.From, r.To)
}
