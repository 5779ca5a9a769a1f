package batch

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
)

// Progress represents real-time batch progress
type Progress struct {
	Stage      string  // "parsing", "complete"
	Current    int     // Titles parsed so far
	Total      int     // Titles in the batch
	Percentage float64 // 0-100
	Message    string  // Human-readable status

	StartTime      time.Time
	ElapsedSeconds int
}

// ProgressReporter helps send progress updates. A nil channel disables reporting.
type ProgressReporter struct {
	ch        chan<- Progress
	clock     clockwork.Clock
	startTime time.Time
	total     int
}

// NewProgressReporter creates a new progress reporter
func NewProgressReporter(ch chan<- Progress, clock clockwork.Clock) *ProgressReporter {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &ProgressReporter{
		ch:        ch,
		clock:     clock,
		startTime: clock.Now(),
	}
}

// Start sends initial progress with total count
func (pr *ProgressReporter) Start(ctx context.Context, total int, message string) {
	pr.total = total
	pr.send(ctx, "parsing", 0, message)
}

// Update sends progress update
func (pr *ProgressReporter) Update(ctx context.Context, current int, message string) {
	pr.send(ctx, "parsing", current, message)
}

// Complete sends completion message
func (pr *ProgressReporter) Complete(ctx context.Context, message string) {
	pr.send(ctx, "complete", pr.total, message)
}

func (pr *ProgressReporter) send(ctx context.Context, stage string, current int, message string) {
	if pr.ch == nil {
		return
	}

	percentage := 0.0
	if pr.total > 0 {
		percentage = (float64(current) / float64(pr.total)) * 100.0
	}
	if stage == "complete" {
		percentage = 100.0
	}

	progress := Progress{
		Stage:          stage,
		Current:        current,
		Total:          pr.total,
		Percentage:     percentage,
		Message:        message,
		StartTime:      pr.startTime,
		ElapsedSeconds: int(pr.clock.Since(pr.startTime).Seconds()),
	}

	select {
	case pr.ch <- progress:
	case <-ctx.Done():
	}
}
