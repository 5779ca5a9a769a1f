package reporter

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/gocarina/gocsv"
	"github.com/jonboulle/clockwork"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/Nomadcxx/anipar/internal/batch"
)

func testReport(t *testing.T) Report {
	t.Helper()

	entries, err := batch.ParseStrings(context.Background(), []string{
		"[极影字幕社]在地下城寻求邂逅 第五季 第06話 BIG5 1080P MP4",
		"[Lilith-Raws] Sousou no Frieren - 06 [Baha][WEB-DL][1080p][AVC AAC][CHT][MP4]",
		"[Nekomoe kissaten][Sousou no Frieren][01-28][1080p][JPSC]",
	}, batch.Config{Workers: 2})
	require.NoError(t, err)

	clock := clockwork.NewFakeClockAt(time.Date(2024, 10, 5, 14, 30, 0, 0, time.UTC))
	return New(clock, "/lists/weekly.txt", entries)
}

func TestNew(t *testing.T) {
	report := testReport(t)

	assert.Equal(t, "/lists/weekly.txt", report.Source)
	assert.Equal(t, 2024, report.Timestamp.Year())
	assert.Equal(t, 3, report.Summary.Total)
	assert.Equal(t, 3, report.Summary.WithFansub)
}

func TestGenerate(t *testing.T) {
	fs := afero.NewMemMapFs()
	report := testReport(t)

	files, err := Generate(fs, "/reports", report)
	require.NoError(t, err)
	assert.Equal(t, "/reports/20241005_143000_weekly.txt", files.Text)
	assert.Equal(t, "/reports/20241005_143000_weekly.json", files.JSON)

	text, err := afero.ReadFile(fs, files.Text)
	require.NoError(t, err)
	content := string(text)

	assert.Contains(t, content, "ANIPAR PARSE REPORT")
	assert.Contains(t, content, "Titles parsed: 3")
	assert.Contains(t, content, "TOP FANSUBS")
	assert.Contains(t, content, "1. 在地下城寻求邂逅")
	assert.Contains(t, content, "   Fansub: 极影字幕社")
	assert.Contains(t, content, "   Episodes: 01-28")
	assert.Contains(t, content, "   Tags: JPSC")

	loaded, err := Load(fs, files.JSON)
	require.NoError(t, err)
	assert.True(t, report.Timestamp.Equal(loaded.Timestamp))
	assert.Equal(t, report.Entries, loaded.Entries)
	assert.Equal(t, report.Summary, loaded.Summary)
}

func TestLoadErrors(t *testing.T) {
	fs := afero.NewMemMapFs()

	_, err := Load(fs, "/missing.json")
	assert.Error(t, err)

	require.NoError(t, afero.WriteFile(fs, "/bad.json", []byte("{not json"), 0o644))
	_, err = Load(fs, "/bad.json")
	assert.Error(t, err)
}

func TestExportFormats(t *testing.T) {
	report := testReport(t)

	t.Run("json", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, Export(&buf, report, "json"))

		var decoded Report
		require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
		assert.Equal(t, report.Entries, decoded.Entries)
	})

	t.Run("yaml", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, Export(&buf, report, "yaml"))
		assert.Contains(t, buf.String(), "title: 在地下城寻求邂逅")

		var decoded map[string]any
		require.NoError(t, yaml.Unmarshal(buf.Bytes(), &decoded))
		assert.Equal(t, "/lists/weekly.txt", decoded["source"])
	})

	t.Run("toml", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, Export(&buf, report, "toml"))

		var decoded map[string]any
		_, err := toml.Decode(buf.String(), &decoded)
		require.NoError(t, err)
		assert.Len(t, decoded["entries"], 3)
	})

	t.Run("csv", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, Export(&buf, report, "csv"))

		var rows []Row
		require.NoError(t, gocsv.UnmarshalBytes(buf.Bytes(), &rows))
		require.Len(t, rows, 3)
		assert.Equal(t, "在地下城寻求邂逅", rows[0].Title)
		assert.Equal(t, "5", rows[0].Season)
		assert.Equal(t, "6", rows[0].Episode)
		assert.Equal(t, "01-28", rows[2].EpisodeRange)
		assert.Equal(t, "JPSC", rows[2].Tags)
	})

	t.Run("text", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, Export(&buf, report, "text"))
		assert.True(t, strings.HasPrefix(buf.String(), "ANIPAR PARSE REPORT"))
	})

	t.Run("unknown", func(t *testing.T) {
		assert.Error(t, Export(&bytes.Buffer{}, report, "xml"))
	})
}

func TestDescribe(t *testing.T) {
	assert.Nil(t, Describe(nil))

	report := testReport(t)
	fields := Describe(report.Entries[1].Result)

	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = f.Name
	}
	assert.Equal(t, []string{
		"Title", "Fansub", "Episode", "Source", "Platform", "Language",
		"Video", "Resolution", "Audio", "Extension",
	}, names)
}

func TestNewRowWithoutResult(t *testing.T) {
	row := NewRow(batch.Entry{Line: 7, Raw: "x"})
	assert.Equal(t, Row{Line: 7, Raw: "x"}, row)
}
