package daemon

import (
	"context"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/Nomadcxx/anipar/internal/config"
	"github.com/Nomadcxx/anipar/internal/reporter"
)

const titleList = `# fall season
[极影字幕社]在地下城寻求邂逅 第五季 第06話 BIG5 1080P MP4
[Lilith-Raws] Sousou no Frieren - 06 [Baha][WEB-DL][1080p][AVC AAC][CHT][MP4]
`

func testConfig(root string) *config.Config {
	cfg := config.DefaultConfig()
	cfg.Batch.Workers = 2
	cfg.Daemon.Inbox = filepath.Join(root, "inbox")
	cfg.Daemon.Processed = filepath.Join(root, "inbox", "processed")
	return cfg
}

func TestProcessFile(t *testing.T) {
	fs := afero.NewMemMapFs()
	clock := clockwork.NewFakeClockAt(time.Date(2024, 10, 5, 12, 0, 0, 0, time.UTC))
	cfg := testConfig("/srv")
	d := New(cfg, fs, clock)

	input := filepath.Join(cfg.Daemon.Inbox, "fall.txt")
	require.NoError(t, afero.WriteFile(fs, input, []byte(titleList), 0o644))

	files, err := d.ProcessFile(context.Background(), input)
	require.NoError(t, err)
	assert.Equal(t, "/srv/inbox/processed/20241005_120000_fall.json", files.JSON)

	report, err := reporter.Load(fs, files.JSON)
	require.NoError(t, err)
	require.Len(t, report.Entries, 2)
	assert.Equal(t, "在地下城寻求邂逅", report.Entries[0].Result.Title)
	assert.Equal(t, 2, report.Entries[0].Line)

	moved, err := afero.Exists(fs, "/srv/inbox/processed/fall.txt")
	require.NoError(t, err)
	assert.True(t, moved)
	stillThere, _ := afero.Exists(fs, input)
	assert.False(t, stillThere)

	m := d.Metrics()
	assert.Equal(t, 2.0, testutil.ToFloat64(m.TitlesParsed))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FilesProcessed))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.ParseErrors))
}

func TestProcessFileNameClash(t *testing.T) {
	fs := afero.NewMemMapFs()
	clock := clockwork.NewFakeClockAt(time.Date(2024, 10, 5, 12, 0, 0, 0, time.UTC))
	cfg := testConfig("/srv")
	d := New(cfg, fs, clock)

	input := filepath.Join(cfg.Daemon.Inbox, "fall.txt")
	require.NoError(t, afero.WriteFile(fs, filepath.Join(cfg.Daemon.Processed, "fall.txt"), []byte("old"), 0o644))
	require.NoError(t, afero.WriteFile(fs, input, []byte(titleList), 0o644))

	_, err := d.ProcessFile(context.Background(), input)
	require.NoError(t, err)

	old, err := afero.ReadFile(fs, filepath.Join(cfg.Daemon.Processed, "fall.txt"))
	require.NoError(t, err)
	assert.Equal(t, "old", string(old), "earlier input is not overwritten")

	infos, err := afero.ReadDir(fs, cfg.Daemon.Processed)
	require.NoError(t, err)
	var inputs int
	for _, info := range infos {
		if strings.HasPrefix(info.Name(), "fall") && strings.HasSuffix(info.Name(), ".txt") {
			inputs++
		}
	}
	assert.Equal(t, 2, inputs)
}

func TestProcessFileMissing(t *testing.T) {
	d := New(testConfig("/srv"), afero.NewMemMapFs(), clockwork.NewFakeClock())

	_, err := d.ProcessFile(context.Background(), "/srv/inbox/none.txt")
	assert.Error(t, err)
	assert.Equal(t, 1.0, testutil.ToFloat64(d.Metrics().ParseErrors))
}

func TestProcessFileWriteFailureIsNotParseError(t *testing.T) {
	base := afero.NewMemMapFs()
	cfg := testConfig("/srv")
	input := filepath.Join(cfg.Daemon.Inbox, "fall.txt")
	require.NoError(t, afero.WriteFile(base, input, []byte(titleList), 0o644))

	d := New(cfg, afero.NewReadOnlyFs(base), clockwork.NewFakeClock())

	_, err := d.ProcessFile(context.Background(), input)
	require.Error(t, err)

	m := d.Metrics()
	assert.Equal(t, 0.0, testutil.ToFloat64(m.ParseErrors))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.FilesProcessed))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.TitlesParsed))
}

func TestScan(t *testing.T) {
	fs := afero.NewMemMapFs()
	cfg := testConfig("/srv")
	d := New(cfg, fs, clockwork.NewFakeClock())

	require.NoError(t, afero.WriteFile(fs, "/srv/inbox/a.txt", []byte(titleList), 0o644))
	require.NoError(t, afero.WriteFile(fs, "/srv/inbox/b.TXT", []byte("Title - 01\n"), 0o644))
	require.NoError(t, afero.WriteFile(fs, "/srv/inbox/notes.md", []byte("ignored"), 0o644))

	n, err := d.Scan(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	left, _ := afero.Exists(fs, "/srv/inbox/notes.md")
	assert.True(t, left)
	assert.Equal(t, 3.0, testutil.ToFloat64(d.Metrics().TitlesParsed))
}

func TestCleanupOldReports(t *testing.T) {
	fs := afero.NewMemMapFs()
	now := time.Date(2024, 10, 5, 12, 0, 0, 0, time.UTC)
	cfg := testConfig("/srv")
	d := New(cfg, fs, clockwork.NewFakeClockAt(now))

	oldFile := filepath.Join(cfg.Daemon.Processed, "old.json")
	newFile := filepath.Join(cfg.Daemon.Processed, "new.json")
	require.NoError(t, afero.WriteFile(fs, oldFile, []byte("{}"), 0o644))
	require.NoError(t, afero.WriteFile(fs, newFile, []byte("{}"), 0o644))
	require.NoError(t, fs.Chtimes(oldFile, now.Add(-40*24*time.Hour), now.Add(-40*24*time.Hour)))
	require.NoError(t, fs.Chtimes(newFile, now.Add(-time.Hour), now.Add(-time.Hour)))

	deleted, err := d.CleanupOldReports(ReportMaxAge)
	require.NoError(t, err)
	assert.Equal(t, 1, deleted)

	exists, _ := afero.Exists(fs, newFile)
	assert.True(t, exists)
}

func TestReportHook(t *testing.T) {
	root := t.TempDir()
	cfg := testConfig(root)
	marker := filepath.Join(root, "hook.out")
	cfg.Daemon.OnReport = []string{"sh", "-c", `printf '%s|%s' "$1" "$ANIPAR_REPORT_TEXT" > "$0"`, marker}
	d := New(cfg, afero.NewOsFs(), clockwork.NewFakeClockAt(time.Date(2024, 10, 5, 12, 0, 0, 0, time.UTC)))

	input := filepath.Join(cfg.Daemon.Inbox, "fall.txt")
	require.NoError(t, os.MkdirAll(cfg.Daemon.Inbox, 0o755))
	require.NoError(t, os.WriteFile(input, []byte(titleList), 0o644))

	files, err := d.ProcessFile(context.Background(), input)
	require.NoError(t, err)

	out, err := os.ReadFile(marker)
	require.NoError(t, err)
	assert.Equal(t, files.JSON+"|"+files.Text, string(out))
}

func TestReportHookFailure(t *testing.T) {
	cfg := testConfig("/srv")
	cfg.Daemon.OnReport = []string{"sh", "-c", "echo broken >&2; exit 3"}
	d := New(cfg, afero.NewMemMapFs(), clockwork.NewFakeClock())

	err := d.NotifyReport(context.Background(), reporter.Files{JSON: "/r.json"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken")

	cfg.Daemon.OnReport = nil
	assert.NoError(t, d.NotifyReport(context.Background(), reporter.Files{}))
}

func TestMetricsHandler(t *testing.T) {
	m := NewMetrics()
	m.TitlesParsed.Add(3)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	assert.Equal(t, 200, rec.Code)
	assert.Contains(t, rec.Body.String(), "anipar_titles_parsed_total 3")
	assert.Contains(t, rec.Body.String(), "anipar_parse_errors_total 0")
}

func TestRunWatchesInbox(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	root := t.TempDir()
	cfg := testConfig(root)
	d := New(cfg, afero.NewOsFs(), clockwork.NewRealClock())
	d.settle = 50 * time.Millisecond

	// Backlog file present before the daemon starts
	require.NoError(t, os.MkdirAll(cfg.Daemon.Inbox, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(cfg.Daemon.Inbox, "backlog.txt"), []byte(titleList), 0o644))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()

	processed := func(name string) func() bool {
		return func() bool {
			_, err := os.Stat(filepath.Join(cfg.Daemon.Processed, name))
			return err == nil
		}
	}

	assert.Eventually(t, processed("backlog.txt"), 5*time.Second, 20*time.Millisecond)

	require.NoError(t, os.WriteFile(filepath.Join(cfg.Daemon.Inbox, "live.txt"), []byte(titleList), 0o644))
	assert.Eventually(t, processed("live.txt"), 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("daemon did not stop")
	}

	assert.Equal(t, 2.0, testutil.ToFloat64(d.Metrics().FilesProcessed))
}
