package reporter

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/spf13/afero"

	"github.com/Nomadcxx/anipar/internal/batch"
)

// Report is the result of parsing one title list
type Report struct {
	Timestamp time.Time     `json:"timestamp" yaml:"timestamp" toml:"timestamp"`
	Source    string        `json:"source" yaml:"source" toml:"source"`
	Entries   []batch.Entry `json:"entries" yaml:"entries" toml:"entries"`
	Summary   batch.Summary `json:"summary" yaml:"summary" toml:"summary"`
}

// New builds a report stamped with the clock's current time
func New(clock clockwork.Clock, source string, entries []batch.Entry) Report {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return Report{
		Timestamp: clock.Now(),
		Source:    source,
		Entries:   entries,
		Summary:   batch.Summarize(entries),
	}
}

// Files are the paths written by Generate
type Files struct {
	Text string
	JSON string
}

// Generate writes a timestamped text report and its JSON twin into dir
func Generate(fs afero.Fs, dir string, report Report) (Files, error) {
	if err := fs.MkdirAll(dir, 0o755); err != nil {
		return Files{}, fmt.Errorf("failed to create report directory: %w", err)
	}

	base := report.Timestamp.Format("20060102_150405")
	if report.Source != "" {
		name := strings.TrimSuffix(filepath.Base(report.Source), filepath.Ext(report.Source))
		base += "_" + name
	}
	files := Files{
		Text: filepath.Join(dir, base+".txt"),
		JSON: filepath.Join(dir, base+".json"),
	}

	if err := afero.WriteFile(fs, files.Text, []byte(buildReportContent(report)), 0o644); err != nil {
		return Files{}, fmt.Errorf("failed to write report: %w", err)
	}

	var buf bytes.Buffer
	if err := Export(&buf, report, "json"); err != nil {
		return Files{}, err
	}
	if err := afero.WriteFile(fs, files.JSON, buf.Bytes(), 0o644); err != nil {
		return Files{}, fmt.Errorf("failed to write report: %w", err)
	}

	return files, nil
}

// Load reads a JSON report written by Generate
func Load(fs afero.Fs, path string) (*Report, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, fmt.Errorf("failed to read report: %w", err)
	}

	var report Report
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, fmt.Errorf("failed to decode report %s: %w", path, err)
	}
	return &report, nil
}

// buildReportContent generates the report text
func buildReportContent(report Report) string {
	var sb strings.Builder
	s := report.Summary

	// Header
	sb.WriteString("ANIPAR PARSE REPORT\n")
	sb.WriteString(strings.Repeat("=", 80) + "\n")
	sb.WriteString(fmt.Sprintf("Generated: %s\n", report.Timestamp.Format("2006-01-02 15:04:05")))
	if report.Source != "" {
		sb.WriteString(fmt.Sprintf("Source: %s\n", report.Source))
	}
	sb.WriteString("\n")

	// Summary
	sb.WriteString("SUMMARY\n")
	sb.WriteString(strings.Repeat("=", 80) + "\n")
	sb.WriteString(fmt.Sprintf("Titles parsed: %d\n", s.Total))
	sb.WriteString(fmt.Sprintf("With fansub: %d\n", s.WithFansub))
	sb.WriteString(fmt.Sprintf("With episode: %d\n", s.WithEpisode))
	sb.WriteString(fmt.Sprintf("With season: %d\n", s.WithSeason))
	sb.WriteString(fmt.Sprintf("Without title: %d\n", s.Untitled))
	sb.WriteString("\n")

	writeTally(&sb, "TOP FANSUBS", s.ByFansub)
	writeTally(&sb, "RESOLUTIONS", s.ByResolution)
	writeTally(&sb, "LANGUAGES", s.ByLanguage)
	writeTally(&sb, "TYPES", s.ByType)

	if len(report.Entries) > 0 {
		sb.WriteString("ENTRIES (DETAILED)\n")
		sb.WriteString(strings.Repeat("=", 80) + "\n")
		for _, e := range report.Entries {
			sb.WriteString(formatEntry(e))
			sb.WriteString("\n")
		}
	}

	return sb.String()
}

// writeTally prints the top 15 keys of a summary map
func writeTally(sb *strings.Builder, heading string, tally map[string]int) {
	if len(tally) == 0 {
		return
	}

	sb.WriteString(heading + "\n")
	sb.WriteString(strings.Repeat("=", 80) + "\n")
	counts := batch.Sorted(tally)
	if len(counts) > 15 {
		counts = counts[:15]
	}
	for i, c := range counts {
		sb.WriteString(fmt.Sprintf("%d. %s - %d\n", i+1, c.Key, c.Count))
	}
	sb.WriteString("\n")
}

// formatEntry formats one parsed title for display
func formatEntry(e batch.Entry) string {
	var sb strings.Builder

	title := "(untitled)"
	if e.Result != nil && e.Result.Title != "" {
		title = e.Result.Title
	}
	sb.WriteString(fmt.Sprintf("%d. %s\n", e.Line, title))
	sb.WriteString(fmt.Sprintf("   Raw: %s\n", e.Raw))

	for _, f := range Describe(e.Result) {
		if f.Name == "Title" {
			continue
		}
		sb.WriteString(fmt.Sprintf("   %s: %s\n", f.Name, f.Value))
	}

	return sb.String()
}
