package reporter

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/gocarina/gocsv"
	"gopkg.in/yaml.v3"

	"github.com/Nomadcxx/anipar/internal/batch"
)

// Row is the flattened CSV form of an entry
type Row struct {
	Line         int    `csv:"line"`
	Raw          string `csv:"raw"`
	Title        string `csv:"title"`
	Fansub       string `csv:"fansub"`
	Season       string `csv:"season"`
	Episode      string `csv:"episode"`
	EpisodeRange string `csv:"episode_range"`
	Part         string `csv:"part"`
	Type         string `csv:"type"`
	Source       string `csv:"source"`
	Platform     string `csv:"platform"`
	Language     string `csv:"language"`
	Subtitles    string `csv:"subtitles"`
	Year         string `csv:"year"`
	Month        string `csv:"month"`
	Version      string `csv:"version"`
	AudioTerm    string `csv:"audio_term"`
	VideoTerm    string `csv:"video_term"`
	Resolution   string `csv:"resolution"`
	Extension    string `csv:"extension"`
	Tags         string `csv:"tags"`
}

// NewRow flattens an entry
func NewRow(e batch.Entry) Row {
	row := Row{Line: e.Line, Raw: e.Raw}
	r := e.Result
	if r == nil {
		return row
	}

	row.Title = r.Title
	row.Fansub = r.Fansub
	row.Season = optInt(r.Season)
	row.Episode = optInt(r.Episode)
	row.EpisodeRange = formatRange(r.EpisodeRange)
	row.Part = optInt(r.Part)
	row.Type = r.Type
	row.Source = r.Source
	row.Platform = r.Platform
	row.Language = r.Language
	row.Subtitles = r.Subtitles
	row.Year = optInt(r.Year)
	row.Month = optInt(r.Month)
	row.Version = optInt(r.Version)
	row.AudioTerm = r.File.Audio.Term
	row.VideoTerm = r.File.Video.Term
	row.Resolution = r.File.Video.Resolution
	row.Extension = r.File.Extension
	row.Tags = strings.Join(r.Tags, "|")
	return row
}

// Export encodes report in one of json, yaml, toml, csv or text.
// CSV carries only the entries.
func Export(w io.Writer, report Report, format string) error {
	var err error

	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		err = enc.Encode(report)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		err = enc.Encode(report)
		if err == nil {
			err = enc.Close()
		}
	case "toml":
		err = toml.NewEncoder(w).Encode(report)
	case "csv":
		rows := make([]Row, len(report.Entries))
		for i, e := range report.Entries {
			rows[i] = NewRow(e)
		}
		err = gocsv.Marshal(rows, w)
	case "text":
		_, err = io.WriteString(w, buildReportContent(report))
	default:
		return fmt.Errorf("unknown export format: %s", format)
	}

	if err != nil {
		return fmt.Errorf("failed to export %s: %w", format, err)
	}
	return nil
}
