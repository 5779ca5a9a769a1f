// Package daemon watches an inbox directory for title lists and turns each
// one into a parse report.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"

	"github.com/Nomadcxx/anipar/internal/batch"
	"github.com/Nomadcxx/anipar/internal/config"
	"github.com/Nomadcxx/anipar/internal/reporter"
)

// SettleDelay is how long a file must go without write events before it is processed
const SettleDelay = 500 * time.Millisecond

// ReportMaxAge is how long reports are kept in the processed directory
const ReportMaxAge = 30 * 24 * time.Hour

// Daemon represents the background service
type Daemon struct {
	config  *config.Config
	fs      afero.Fs
	clock   clockwork.Clock
	metrics *Metrics

	settle time.Duration
}

// New creates a new daemon instance. Nil fs and clock select the OS
// filesystem and the real clock.
func New(cfg *config.Config, fs afero.Fs, clock clockwork.Clock) *Daemon {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Daemon{
		config:  cfg,
		fs:      fs,
		clock:   clock,
		metrics: NewMetrics(),
		settle:  SettleDelay,
	}
}

// Metrics returns the daemon's counters
func (d *Daemon) Metrics() *Metrics {
	return d.metrics
}

// isTitleList reports whether name is an inbox input
func isTitleList(name string) bool {
	return strings.EqualFold(filepath.Ext(name), ".txt")
}

// ProcessFile parses a title list, writes its report into the processed
// directory and moves the input there
func (d *Daemon) ProcessFile(ctx context.Context, path string) (reporter.Files, error) {
	files, err := d.processFile(ctx, path)
	if err != nil {
		return reporter.Files{}, err
	}
	d.metrics.FilesProcessed.Inc()
	return files, nil
}

func (d *Daemon) processFile(ctx context.Context, path string) (reporter.Files, error) {
	// Only reading and parsing count as parse errors
	titles, err := batch.ReadTitles(d.fs, path)
	if err != nil {
		d.metrics.ParseErrors.Inc()
		return reporter.Files{}, err
	}

	cfg := batch.Config{Workers: d.config.Batch.Workers, Clock: d.clock}
	entries, err := batch.ParseAll(ctx, titles, cfg, nil)
	if err != nil {
		d.metrics.ParseErrors.Inc()
		return reporter.Files{}, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	d.metrics.TitlesParsed.Add(float64(len(entries)))

	processed := d.config.Daemon.Processed
	report := reporter.New(d.clock, path, entries)
	files, err := reporter.Generate(d.fs, processed, report)
	if err != nil {
		return reporter.Files{}, err
	}

	dest, err := d.uniquePath(filepath.Join(processed, filepath.Base(path)))
	if err != nil {
		return reporter.Files{}, err
	}
	if err := d.fs.Rename(path, dest); err != nil {
		return reporter.Files{}, fmt.Errorf("failed to move %s to processed: %w", path, err)
	}

	log.Info().
		Str("file", path).
		Int("titles", len(entries)).
		Int("with_episode", report.Summary.WithEpisode).
		Str("report", files.JSON).
		Msg("processed title list")

	// A failed hook does not undo the report
	if err := d.NotifyReport(ctx, files); err != nil {
		log.Warn().Err(err).Str("report", files.JSON).Msg("report hook failed")
	}

	return files, nil
}

// uniquePath appends a timestamp when path is already taken
func (d *Daemon) uniquePath(path string) (string, error) {
	exists, err := afero.Exists(d.fs, path)
	if err != nil {
		return "", fmt.Errorf("failed to stat %s: %w", path, err)
	}
	if !exists {
		return path, nil
	}
	ext := filepath.Ext(path)
	stamp := d.clock.Now().Format("20060102_150405.000000000")
	return strings.TrimSuffix(path, ext) + "_" + stamp + ext, nil
}

// Scan processes every title list already sitting in the inbox
func (d *Daemon) Scan(ctx context.Context) (int, error) {
	infos, err := afero.ReadDir(d.fs, d.config.Daemon.Inbox)
	if err != nil {
		return 0, fmt.Errorf("failed to read inbox: %w", err)
	}

	var names []string
	for _, info := range infos {
		if !info.IsDir() && isTitleList(info.Name()) {
			names = append(names, info.Name())
		}
	}
	sort.Strings(names)

	processed := 0
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return processed, err
		}
		path := filepath.Join(d.config.Daemon.Inbox, name)
		if _, err := d.ProcessFile(ctx, path); err != nil {
			log.Error().Err(err).Str("file", path).Msg("failed to process title list")
			continue
		}
		processed++
	}
	return processed, nil
}

// CleanupOldReports removes files in the processed directory older than maxAge
func (d *Daemon) CleanupOldReports(maxAge time.Duration) (int, error) {
	dir := d.config.Daemon.Processed
	infos, err := afero.ReadDir(d.fs, dir)
	if err != nil {
		return 0, fmt.Errorf("failed to read report directory: %w", err)
	}

	cutoff := d.clock.Now().Add(-maxAge)
	deleted := 0
	for _, info := range infos {
		if info.IsDir() || !info.ModTime().Before(cutoff) {
			continue
		}
		if err := d.fs.Remove(filepath.Join(dir, info.Name())); err == nil {
			deleted++
		}
	}

	if deleted > 0 {
		log.Info().Int("deleted", deleted).Msg("cleaned up old reports")
	}
	return deleted, nil
}

// Run processes the inbox backlog, then watches for new title lists until
// ctx is cancelled. It also serves /metrics when metrics_addr is set.
func (d *Daemon) Run(ctx context.Context) error {
	inbox := d.config.Daemon.Inbox
	if err := d.fs.MkdirAll(inbox, 0o755); err != nil {
		return fmt.Errorf("failed to create inbox: %w", err)
	}
	if err := d.fs.MkdirAll(d.config.Daemon.Processed, 0o755); err != nil {
		return fmt.Errorf("failed to create processed directory: %w", err)
	}

	if _, err := d.CleanupOldReports(ReportMaxAge); err != nil {
		log.Warn().Err(err).Msg("report cleanup failed")
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(inbox); err != nil {
		return fmt.Errorf("failed to watch %s: %w", inbox, err)
	}
	log.Info().Str("inbox", inbox).Msg("watching inbox")

	g, gctx := errgroup.WithContext(ctx)

	if addr := d.config.Daemon.MetricsAddr; addr != "" {
		g.Go(func() error {
			return serveMetrics(gctx, addr, d.metrics)
		})
	}

	g.Go(func() error {
		// Files dropped before the watcher started
		if _, err := d.Scan(gctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error().Err(err).Msg("inbox backlog scan failed")
		}
		return d.watch(gctx, watcher)
	})

	err = g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// watch debounces fsnotify events and processes each settled file once
func (d *Daemon) watch(ctx context.Context, watcher *fsnotify.Watcher) error {
	pending := make(map[string]time.Time)
	ticker := d.clock.NewTicker(d.settle / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !isTitleList(event.Name) {
				continue
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) != 0 {
				pending[event.Name] = d.clock.Now()
			}
			if event.Op&(fsnotify.Remove|fsnotify.Rename) != 0 {
				delete(pending, event.Name)
			}

		case watchErr, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Error().Err(watchErr).Msg("error in watcher")

		case now := <-ticker.Chan():
			for path, last := range pending {
				if now.Sub(last) < d.settle {
					continue
				}
				delete(pending, path)
				// Already picked up by the backlog scan
				if ok, _ := afero.Exists(d.fs, path); !ok {
					continue
				}
				if _, err := d.ProcessFile(ctx, path); err != nil {
					log.Error().Err(err).Str("file", path).Msg("failed to process title list")
				}
			}
		}
	}
}
