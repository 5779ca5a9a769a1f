package reporter

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/BurntSushi/toml"
	"github.com/gocarina/gocsv"
	"gopkg.in/yaml.v3"

	"github.com/Nomadcxx/anipar/internal/batch"
)

// StreamingReporter writes entries one at a time, for parse output that
// should appear before the whole input is read
type StreamingReporter struct {
	format string
	out    *bufio.Writer
	csv    *gocsv.SafeCSVWriter
	yaml   *yaml.Encoder

	written int
}

// NewStreamingReporter creates a streaming reporter. JSON is written as one
// object per line; YAML as a document stream; TOML as an array of [[entries]].
func NewStreamingReporter(w io.Writer, format string) (*StreamingReporter, error) {
	sr := &StreamingReporter{
		format: format,
		out:    bufio.NewWriter(w),
	}

	switch format {
	case "json", "toml", "text":
	case "yaml":
		sr.yaml = yaml.NewEncoder(sr.out)
		sr.yaml.SetIndent(2)
	case "csv":
		sr.csv = gocsv.DefaultCSVWriter(sr.out)
	default:
		return nil, fmt.Errorf("unknown export format: %s", format)
	}

	return sr, nil
}

// Write encodes a single entry
func (sr *StreamingReporter) Write(ctx context.Context, e batch.Entry) error {
	// Check for cancellation
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	var err error
	switch sr.format {
	case "json":
		err = json.NewEncoder(sr.out).Encode(e)
	case "yaml":
		err = sr.yaml.Encode(e)
	case "toml":
		wrapped := struct {
			Entries []batch.Entry `toml:"entries"`
		}{Entries: []batch.Entry{e}}
		err = toml.NewEncoder(sr.out).Encode(wrapped)
	case "csv":
		rows := []Row{NewRow(e)}
		if sr.written == 0 {
			err = gocsv.MarshalCSV(rows, sr.csv)
		} else {
			err = gocsv.MarshalCSVWithoutHeaders(rows, sr.csv)
		}
	case "text":
		_, err = sr.out.WriteString(formatEntry(e) + "\n")
	}

	if err != nil {
		return fmt.Errorf("failed to write entry %d: %w", e.Line, err)
	}
	sr.written++
	return nil
}

// Written returns the number of entries written so far
func (sr *StreamingReporter) Written() int {
	return sr.written
}

// Close ends the stream and flushes buffered output to the underlying writer
func (sr *StreamingReporter) Close() error {
	if sr.yaml != nil {
		if err := sr.yaml.Close(); err != nil {
			return fmt.Errorf("failed to close yaml stream: %w", err)
		}
	}
	return sr.Flush()
}

// Flush pushes buffered output to the underlying writer
func (sr *StreamingReporter) Flush() error {
	if sr.csv != nil {
		sr.csv.Flush()
		if err := sr.csv.Error(); err != nil {
			return fmt.Errorf("failed to flush csv: %w", err)
		}
	}
	if err := sr.out.Flush(); err != nil {
		return fmt.Errorf("failed to flush output: %w", err)
	}
	return nil
}
