package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/guillermoBallester/cleansweep/internal/core/domain"
)

const defaultReportInterval = 10 * time.Second

// progressReporter emits progress lines on a fixed cadence measured from the
// start of the run.
type progressReporter struct {
	logger   *slog.Logger
	table    string
	action   string
	interval time.Duration
	now      func() time.Time

	start    time.Time
	boundary time.Time
}

func newProgressReporter(logger *slog.Logger, table, action string, interval time.Duration, now func() time.Time) *progressReporter {
	start := now()
	return &progressReporter{
		logger:   logger,
		table:    table,
		action:   action,
		interval: interval,
		now:      now,
		start:    start,
		boundary: start,
	}
}

// report logs progress when forced or when a full interval has passed since
// the current boundary. It returns whether a line was written.
func (p *progressReporter) report(ctx context.Context, total int64, force bool) bool {
	now := p.now()
	if !force && now.Sub(p.boundary) < p.interval {
		return false
	}
	if p.interval > 0 {
		for p.boundary.Before(now.Add(-p.interval)) {
			p.boundary = p.boundary.Add(p.interval)
		}
	}

	elapsed := now.Sub(p.start)
	p.logger.InfoContext(ctx, "report",
		slog.String("purge.table", p.table),
		slog.String("purge.action", p.action),
		slog.Int64("purge.total", total),
		slog.String("elapsed", domain.FormatElapsed(elapsed)),
		slog.String("rate", domain.FormatRate(total, elapsed)+" records/second"),
	)
	return true
}
