package batch

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var sampleTitles = []string{
	"[极影字幕社]在地下城寻求邂逅 第五季 第06話 BIG5 1080P MP4",
	"【喵萌奶茶屋】★04月新番★[葬送的芙莉莲 / Sousou no Frieren][01][1080p][简日双语]",
	"[Lilith-Raws] Sousou no Frieren - 06 [Baha][WEB-DL][1080p][AVC AAC][CHT][MP4]",
	"Sousou no Frieren S01E06 720p WEB-DL",
	"[Group] 剧场版 Title [1080p]",
}

func TestReadTitles(t *testing.T) {
	fs := afero.NewMemMapFs()
	content := "# weekly list\n\n" + sampleTitles[0] + "\n   \n" + sampleTitles[2] + "  \n"
	require.NoError(t, afero.WriteFile(fs, "/titles.txt", []byte(content), 0o644))

	titles, err := ReadTitles(fs, "/titles.txt")
	require.NoError(t, err)
	require.Len(t, titles, 2)

	assert.Equal(t, Title{Line: 3, Text: sampleTitles[0]}, titles[0])
	assert.Equal(t, Title{Line: 5, Text: sampleTitles[2]}, titles[1])
}

func TestReadTitlesMissingFile(t *testing.T) {
	_, err := ReadTitles(afero.NewMemMapFs(), "/nope.txt")
	assert.Error(t, err)
}

func TestEachTitleStopsOnError(t *testing.T) {
	stop := errors.New("stop")
	var seen []int
	err := EachTitle(strings.NewReader("a\n\nb\nc\n"), func(title Title) error {
		seen = append(seen, title.Line)
		if title.Text == "b" {
			return stop
		}
		return nil
	})
	assert.ErrorIs(t, err, stop)
	assert.Equal(t, []int{1, 3}, seen)
}

func TestParseAllKeepsOrder(t *testing.T) {
	var texts []string
	for i := 0; i < 50; i++ {
		texts = append(texts, sampleTitles[i%len(sampleTitles)])
	}

	entries, err := ParseStrings(context.Background(), texts, Config{Workers: 4})
	require.NoError(t, err)
	require.Len(t, entries, len(texts))

	for i, e := range entries {
		assert.Equal(t, i+1, e.Line)
		assert.Equal(t, texts[i], e.Raw)
		require.NotNil(t, e.Result)
	}
	assert.Equal(t, "在地下城寻求邂逅", entries[0].Result.Title)
	assert.Equal(t, "Sousou no Frieren", entries[2].Result.Title)
}

func TestParseAllProgress(t *testing.T) {
	clock := clockwork.NewFakeClock()
	titles := make([]Title, len(sampleTitles))
	for i, s := range sampleTitles {
		titles[i] = Title{Line: i + 1, Text: s}
	}

	progressCh := make(chan Progress, 100)
	entries, err := ParseAll(context.Background(), titles, Config{Workers: 2, Clock: clock}, progressCh)
	require.NoError(t, err)
	require.Len(t, entries, len(titles))
	close(progressCh)

	var updates []Progress
	for p := range progressCh {
		updates = append(updates, p)
	}

	// start + one per title + complete
	require.Len(t, updates, len(titles)+2)
	assert.Equal(t, 0, updates[0].Current)
	assert.Equal(t, len(titles), updates[0].Total)

	last := updates[len(updates)-1]
	assert.Equal(t, "complete", last.Stage)
	assert.Equal(t, 100.0, last.Percentage)
	assert.Equal(t, clock.Now(), last.StartTime)

	for i := 1; i < len(updates)-1; i++ {
		assert.Equal(t, i, updates[i].Current, "updates are numbered in completion order")
	}
}

func TestParseAllCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	entries, err := ParseStrings(ctx, sampleTitles, Config{Workers: 1})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, entries)
}

func TestParseAllUnreadProgressDoesNotHang(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	// Nobody reads this channel; cancellation must still release the workers
	progressCh := make(chan Progress)
	_, err := ParseAll(ctx, []Title{{Line: 1, Text: "Title"}}, Config{Workers: 1}, progressCh)
	assert.Error(t, err)
}

func TestParseAllEmpty(t *testing.T) {
	entries, err := ParseStrings(context.Background(), nil, DefaultConfig())
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestProgressReporter(t *testing.T) {
	clock := clockwork.NewFakeClock()
	progressCh := make(chan Progress, 10)
	pr := NewProgressReporter(progressCh, clock)
	ctx := context.Background()

	pr.Start(ctx, 100, "Starting test")
	p := <-progressCh
	if p.Total != 100 || p.Stage != "parsing" {
		t.Errorf("unexpected start progress: %+v", p)
	}

	clock.Advance(3 * time.Second)
	pr.Update(ctx, 50, "Halfway there")
	p = <-progressCh
	if p.Percentage < 49.0 || p.Percentage > 51.0 {
		t.Errorf("Expected percentage ~50, got %.2f", p.Percentage)
	}
	if p.ElapsedSeconds != 3 {
		t.Errorf("Expected 3 elapsed seconds, got %d", p.ElapsedSeconds)
	}

	pr.Complete(ctx, "Done!")
	p = <-progressCh
	if p.Stage != "complete" || p.Percentage != 100.0 || p.Current != 100 {
		t.Errorf("unexpected complete progress: %+v", p)
	}

	// A nil channel is a no-op
	NewProgressReporter(nil, clock).Start(ctx, 1, "ignored")
}

func TestSummarize(t *testing.T) {
	entries, err := ParseStrings(context.Background(), sampleTitles, Config{Workers: 2})
	require.NoError(t, err)

	s := Summarize(entries)
	assert.Equal(t, len(sampleTitles), s.Total)
	assert.Equal(t, 4, s.WithFansub)
	assert.Equal(t, 4, s.WithEpisode)
	assert.Equal(t, 2, s.WithSeason)
	assert.Equal(t, 0, s.Untitled)
	assert.Equal(t, 1, s.ByResolution["1080P"])
	assert.Equal(t, 3, s.ByResolution["1080p"])
	assert.Equal(t, 1, s.ByResolution["720p"])
	assert.Equal(t, 1, s.ByType["剧场版"])
	assert.Equal(t, 1, s.ByLanguage["CHT"])
}

func TestSorted(t *testing.T) {
	counts := Sorted(map[string]int{"720p": 1, "1080p": 3, "1080P": 1})
	keys := make([]string, len(counts))
	for i, c := range counts {
		keys[i] = c.Key
	}
	assert.Equal(t, "1080p,1080P,720p", strings.Join(keys, ","))
}
