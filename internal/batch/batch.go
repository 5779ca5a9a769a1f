// Package batch parses lists of release titles concurrently.
package batch

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"runtime"
	"strings"
	"sync"

	"github.com/jonboulle/clockwork"
	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"

	"github.com/Nomadcxx/anipar/internal/parser"
)

// Config holds configuration for parallel parsing
type Config struct {
	Workers int             // Number of concurrent workers (default: number of CPUs)
	Clock   clockwork.Clock // Used for progress timing (default: real clock)
}

// DefaultConfig returns optimal parallel parsing configuration
func DefaultConfig() Config {
	return Config{
		Workers: runtime.NumCPU(),
		Clock:   clockwork.NewRealClock(),
	}
}

// Entry is one parsed title, in input order
type Entry struct {
	Line   int            `json:"line" yaml:"line" toml:"line"`
	Raw    string         `json:"raw" yaml:"raw" toml:"raw"`
	Result *parser.Result `json:"result" yaml:"result" toml:"result"`
}

// ReadTitles reads one title per line from path
func ReadTitles(fs afero.Fs, path string) ([]Title, error) {
	f, err := fs.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open title list: %w", err)
	}
	defer f.Close()

	titles, err := ReadTitlesFrom(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return titles, nil
}

// Title is a non-empty input line and its 1-based line number
type Title struct {
	Line int
	Text string
}

// ReadTitlesFrom reads titles from r. Blank lines and lines starting with # are skipped.
func ReadTitlesFrom(r io.Reader) ([]Title, error) {
	var titles []Title
	err := EachTitle(r, func(t Title) error {
		titles = append(titles, t)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return titles, nil
}

// EachTitle calls fn for every title in r as soon as its line is read,
// stopping at the first error fn returns
func EachTitle(r io.Reader, fn func(Title) error) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		if err := fn(Title{Line: line, Text: text}); err != nil {
			return err
		}
	}
	return scanner.Err()
}

// ParseAll parses every title using a bounded worker pool. Entries keep the
// input order. Progress is sent to progress when it is non-nil; the caller must
// drain it. On cancellation the context error is returned and entries are discarded.
func ParseAll(ctx context.Context, titles []Title, config Config, progress chan<- Progress) ([]Entry, error) {
	if config.Workers <= 0 {
		config.Workers = runtime.NumCPU()
	}

	reporter := NewProgressReporter(progress, config.Clock)
	reporter.Start(ctx, len(titles), fmt.Sprintf("Parsing %d titles", len(titles)))

	entries := make([]Entry, len(titles))

	var mu sync.Mutex
	done := 0

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(config.Workers)

	for i, title := range titles {
		if gctx.Err() != nil {
			break
		}

		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			entries[i] = Entry{
				Line:   title.Line,
				Raw:    title.Text,
				Result: parser.Parse(title.Text),
			}

			mu.Lock()
			done++
			reporter.Update(gctx, done, title.Text)
			mu.Unlock()

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	reporter.Complete(ctx, fmt.Sprintf("Parsed %d titles", len(titles)))
	return entries, nil
}

// ParseStrings is ParseAll for plain titles numbered from 1
func ParseStrings(ctx context.Context, texts []string, config Config) ([]Entry, error) {
	titles := make([]Title, len(texts))
	for i, text := range texts {
		titles[i] = Title{Line: i + 1, Text: text}
	}
	return ParseAll(ctx, titles, config, nil)
}
