package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/guillermoBallester/cleansweep/internal/core/port"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

const (
	defaultCheckPeriod   = 2 * time.Minute
	defaultPauseDuration = 5 * time.Minute

	// A paused monitor resumes only once every metric is back under this
	// fraction of its threshold.
	resumeFraction = 0.90
)

// StatusOptions configures the health monitor. A zero threshold disables
// that metric.
type StatusOptions struct {
	MaxHistory    int64
	MaxReplLag    int64
	CheckPeriod   time.Duration
	PauseDuration time.Duration
}

type violation struct {
	metric    string
	value     int64
	threshold float64
}

// MysqlStatus throttles a purge on server health. Check is cheap between
// check periods; when due it blocks until replication lag and the InnoDB
// history list are both within bounds.
type MysqlStatus struct {
	probe  port.HealthProbe
	opts   StatusOptions
	logger *slog.Logger
	tracer trace.Tracer
	inst   port.Instrumentation

	lastCheck time.Time
	paused    bool

	now   func() time.Time
	sleep func(context.Context, time.Duration) error
}

func NewMysqlStatus(probe port.HealthProbe, opts StatusOptions, logger *slog.Logger, tracer trace.Tracer, inst port.Instrumentation) *MysqlStatus {
	if opts.CheckPeriod <= 0 {
		opts.CheckPeriod = defaultCheckPeriod
	}
	if opts.PauseDuration <= 0 {
		opts.PauseDuration = defaultPauseDuration
	}
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer("noop")
	}
	if inst == nil {
		inst = port.NoopInstrumentation{}
	}
	m := &MysqlStatus{
		probe:  probe,
		opts:   opts,
		logger: logger,
		tracer: tracer,
		inst:   inst,
		now:    time.Now,
		sleep:  sleepContext,
	}
	m.lastCheck = m.now().Add(-opts.CheckPeriod)
	return m
}

// Paused reports whether the last check found a violation that has not yet
// cleared.
func (m *MysqlStatus) Paused() bool {
	return m.paused
}

// Check is a no-op until the check period has elapsed since the last
// successful check. Otherwise it pauses in a loop for as long as any metric
// violates its threshold.
func (m *MysqlStatus) Check(ctx context.Context) error {
	if m.now().Sub(m.lastCheck) < m.opts.CheckPeriod {
		return nil
	}

	for {
		violations, err := m.violations(ctx)
		if err != nil {
			return err
		}
		if len(violations) == 0 {
			break
		}
		if err := m.pause(ctx, violations); err != nil {
			return err
		}
	}

	if m.paused {
		m.logger.InfoContext(ctx, "violations clear")
	}
	m.paused = false
	m.lastCheck = m.now()
	return nil
}

func (m *MysqlStatus) pause(ctx context.Context, violations []violation) error {
	attrs := make([]any, 0, len(violations)+1)
	for _, v := range violations {
		attrs = append(attrs, slog.Int64(v.metric, v.value))
	}
	attrs = append(attrs, slog.Duration("pause", m.opts.PauseDuration))
	m.logger.WarnContext(ctx, "pausing until threshold violations clear", attrs...)

	ctx, span := m.tracer.Start(ctx, "MysqlStatus.pause",
		trace.WithAttributes(attribute.Int("health.violations", len(violations))),
	)
	defer span.End()

	m.paused = true
	m.inst.IncrementPauses(ctx)
	return m.sleep(ctx, m.opts.PauseDuration)
}

func (m *MysqlStatus) violations(ctx context.Context) ([]violation, error) {
	var out []violation
	if m.opts.MaxHistory > 0 {
		current, err := m.probe.HistoryListLength(ctx)
		if err != nil {
			return nil, fmt.Errorf("reading history list length: %w", err)
		}
		if limit := m.threshold(m.opts.MaxHistory); float64(current) > limit {
			out = append(out, violation{metric: "history_length", value: current, threshold: limit})
		}
	}
	if m.opts.MaxReplLag > 0 {
		current, err := m.probe.ReplicationLag(ctx)
		if err != nil {
			return nil, fmt.Errorf("reading replication lag: %w", err)
		}
		if limit := m.threshold(m.opts.MaxReplLag); float64(current) > limit {
			out = append(out, violation{metric: "replication_lag", value: current, threshold: limit})
		}
	}
	return out, nil
}

func (m *MysqlStatus) threshold(limit int64) float64 {
	if m.paused {
		return resumeFraction * float64(limit)
	}
	return float64(limit)
}
