package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/guillermoBallester/cleansweep/internal/core/domain"
	"github.com/guillermoBallester/cleansweep/internal/core/port"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

const (
	defaultChunkSize        = 500
	defaultMaxReconnects    = 10
	defaultReconnectBackoff = 5 * time.Second
)

// Options configures one purge or copy run.
type Options struct {
	Table         string
	DestTable     string // non-empty selects copy mode
	Index         string
	Reverse       bool
	FirstOnly     bool
	NonTraversing bool
	CopyColumns   []string
	DestColumns   map[string]string
	Filter        string

	ChunkSize int
	StopAfter int64 // zero means no budget
	Sleep     time.Duration
	DryRun    bool

	ReportInterval time.Duration

	MaxHistory    int64
	MaxReplLag    int64
	CheckPeriod   time.Duration
	PauseDuration time.Duration

	MaxReconnects    int // zero means the default of 10, negative disables reconnects
	ReconnectBackoff time.Duration
}

// PurgeRunner walks a table in index order, deleting each chunk of rows it
// fetches or copying it into a destination table.
type PurgeRunner struct {
	conn    port.Connection
	schema  *domain.TableSchema
	monitor *MysqlStatus
	opts    Options
	query   domain.Query

	logger  *slog.Logger
	tracer  trace.Tracer
	inst    port.Instrumentation
	auditor port.StatementAuditor
	runID   string

	now   func() time.Time
	sleep func(context.Context, time.Duration) error
}

// NewPurgeRunner loads the table schema and builds the initial query. Every
// configuration problem is reported here, before any row is touched. probe
// may be nil when no health threshold is configured.
func NewPurgeRunner(ctx context.Context, conn port.Connection, probe port.HealthProbe, opts Options, logger *slog.Logger, tracer trace.Tracer, inst port.Instrumentation, auditor port.StatementAuditor) (*PurgeRunner, error) {
	if opts.Table == "" {
		return nil, fmt.Errorf("%w: table is required", domain.ErrConfiguration)
	}
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = defaultChunkSize
	}
	if opts.ReportInterval <= 0 {
		opts.ReportInterval = defaultReportInterval
	}
	if opts.MaxReconnects == 0 {
		opts.MaxReconnects = defaultMaxReconnects
	}
	if opts.ReconnectBackoff <= 0 {
		opts.ReconnectBackoff = defaultReconnectBackoff
	}
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer("noop")
	}
	if inst == nil {
		inst = port.NoopInstrumentation{}
	}
	if auditor == nil {
		auditor = port.NoopAuditor{}
	}

	filter, err := domain.NormalizeFilter(opts.Filter)
	if err != nil {
		return nil, fmt.Errorf("filter: %w", err)
	}

	schema, err := LoadTableSchema(ctx, conn, opts.Table, domain.SchemaOptions{
		KeyName:       opts.Index,
		Reverse:       opts.Reverse,
		FirstOnly:     opts.FirstOnly,
		NonTraversing: opts.NonTraversing,
		ExtraColumns:  opts.CopyColumns,
		DestTable:     opts.DestTable,
		DestColumns:   opts.DestColumns,
	})
	if err != nil {
		return nil, err
	}

	r := &PurgeRunner{
		conn:    conn,
		schema:  schema,
		opts:    opts,
		query:   schema.InitialQuery(opts.ChunkSize, filter),
		logger:  logger,
		tracer:  tracer,
		inst:    inst,
		auditor: auditor,
		runID:   uuid.NewString(),
		now:     time.Now,
		sleep:   sleepContext,
	}

	if opts.MaxHistory > 0 || opts.MaxReplLag > 0 {
		if probe == nil {
			return nil, fmt.Errorf("%w: health thresholds need a status probe", domain.ErrConfiguration)
		}
		r.monitor = NewMysqlStatus(probe, StatusOptions{
			MaxHistory:    opts.MaxHistory,
			MaxReplLag:    opts.MaxReplLag,
			CheckPeriod:   opts.CheckPeriod,
			PauseDuration: opts.PauseDuration,
		}, logger, tracer, inst)
	}
	return r, nil
}

func (r *PurgeRunner) Schema() *domain.TableSchema {
	return r.schema
}

func (r *PurgeRunner) RunID() string {
	return r.runID
}

func (r *PurgeRunner) copyMode() bool {
	return r.schema.CopyMode()
}

func (r *PurgeRunner) verb() string {
	if r.copyMode() {
		return "copying"
	}
	return "deleting"
}

// Execute runs the purge to completion and returns the number of rows
// deleted or copied. When the stop-after budget is reached the total is
// returned together with a *domain.StoppedError. On any other error the
// total covers the chunks committed before it.
func (r *PurgeRunner) Execute(ctx context.Context) (int64, error) {
	ctx, span := r.tracer.Start(ctx, "PurgeRunner.Execute",
		trace.WithAttributes(
			attribute.String("db.system", "mysql"),
			attribute.String("purge.table", r.schema.Name),
			attribute.String("purge.dest_table", r.schema.DestTable),
			attribute.String("purge.run_id", r.runID),
			attribute.Bool("purge.dry_run", r.opts.DryRun),
		),
	)
	defer span.End()

	logger := r.logger.With(slog.String("purge.run_id", r.runID))

	if r.opts.DryRun {
		text, err := r.PrintQueries(ctx)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return 0, err
		}
		logger.InfoContext(ctx, "dry run, no rows changed", slog.String("queries", text))
		return 0, nil
	}

	if r.copyMode() {
		logger.InfoContext(ctx, "starting copy",
			slog.String("purge.table", r.schema.Name),
			slog.String("purge.dest_table", r.schema.DestTable),
			slog.Int("purge.chunk_size", r.opts.ChunkSize),
		)
	} else {
		logger.InfoContext(ctx, "starting purge",
			slog.String("purge.table", r.schema.Name),
			slog.Int("purge.chunk_size", r.opts.ChunkSize),
		)
		if r.opts.Sleep > 0 {
			logger.InfoContext(ctx, "sleeping between chunks", slog.Duration("sleep", r.opts.Sleep))
		}
	}

	reporter := newProgressReporter(logger, r.schema.Name, domain.Action(r.copyMode(), false), r.opts.ReportInterval, r.now)
	total, err := r.run(ctx, logger, reporter)
	span.SetAttributes(attribute.Int64("purge.total", total))

	if stopped, ok := domain.IsStopped(err); ok {
		reporter.report(ctx, total, true)
		logger.InfoContext(ctx, stopped.Error(), slog.Int64("purge.total", total))
		return total, err
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger.ErrorContext(ctx, "purge failed",
			slog.Int64("purge.total", total),
			slog.String("error", err.Error()),
		)
		return total, err
	}

	reporter.report(ctx, total, true)
	if r.copyMode() {
		logger.InfoContext(ctx, fmt.Sprintf("completed after copying %d %s records to %s", total, r.schema.Name, r.schema.DestTable))
	} else {
		logger.InfoContext(ctx, fmt.Sprintf("completed after deleting %d records from %s", total, r.schema.DestTable))
	}
	return total, nil
}

func (r *PurgeRunner) run(ctx context.Context, logger *slog.Logger, reporter *progressReporter) (int64, error) {
	var total int64
	query := r.query
	for {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		// Purge mode counts affected rows, which can exceed the rows fetched
		// when the row key is not unique.
		if r.opts.StopAfter > 0 && total >= r.opts.StopAfter {
			return total, r.stopped(total)
		}
		if r.monitor != nil {
			if err := r.withReconnect(ctx, logger, r.monitor.Check); err != nil {
				return total, err
			}
		}

		rows, err := r.selectRows(ctx, logger, query)
		if err != nil {
			return total, err
		}
		if len(rows) == 0 {
			return total, nil
		}

		stopped := false
		if r.opts.StopAfter > 0 {
			if remaining := r.opts.StopAfter - total; int64(len(rows)) >= remaining {
				rows = rows[:remaining]
				stopped = true
			}
		}

		logger.DebugContext(ctx, fmt.Sprintf("%s %d records", r.verb(), len(rows)))
		n, err := r.mutate(ctx, logger, rows)
		total += n
		if err != nil {
			return total, err
		}
		if stopped {
			return total, r.stopped(total)
		}
		if r.schema.TraversingKey == nil && n == 0 {
			return total, fmt.Errorf("no rows removed from %s while re-reading the same chunk", r.schema.Name)
		}

		last := rows[len(rows)-1]
		if key := r.schema.TraversingKey; key != nil {
			if nulls := key.NullColumns(last); len(nulls) > 0 {
				// A short chunk was the end of the table anyway.
				if len(rows) < r.opts.ChunkSize {
					return total, nil
				}
				return total, fmt.Errorf("%w: %s.%s is NULL in the last row of a chunk, rows after it cannot be reached",
					domain.ErrNullKey, r.schema.Name, strings.Join(nulls, ","))
			}
		}

		query = r.schema.NextChunkQuery(query, last)

		if r.opts.Sleep > 0 && !r.copyMode() {
			if err := r.sleep(ctx, r.opts.Sleep); err != nil {
				return total, err
			}
		}
		reporter.report(ctx, total, false)
	}
}

func (r *PurgeRunner) stopped(total int64) error {
	return &domain.StoppedError{StoppedAt: total, Verb: r.verb(), Table: r.schema.Name}
}

func (r *PurgeRunner) selectRows(ctx context.Context, logger *slog.Logger, q domain.Query) ([][]any, error) {
	sql := q.SQL()
	logger.DebugContext(ctx, "find rows", slog.String("db.statement", sql))

	var rows [][]any
	err := r.withReconnect(ctx, logger, func(ctx context.Context) error {
		ctx, span := r.tracer.Start(ctx, "PurgeRunner.select",
			trace.WithAttributes(
				attribute.String("db.system", "mysql"),
				attribute.String("db.operation.name", "select"),
			),
		)
		defer span.End()

		start := time.Now()
		var err error
		rows, err = r.conn.SelectRows(ctx, q)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return err
		}
		r.inst.RecordStatement(ctx, "select", int64(len(rows)), float64(time.Since(start).Milliseconds()))
		span.SetAttributes(attribute.Int("db.response.rows", len(rows)))
		return nil
	})
	return rows, err
}

func (r *PurgeRunner) statement(rows [][]any) (string, string) {
	if r.copyMode() {
		return "insert", r.schema.InsertStatement(rows)
	}
	return "delete", r.schema.DeleteStatement(rows)
}

// mutate runs the single INSERT or DELETE for a chunk. Copy mode counts the
// rows sent; purge mode trusts the server's affected-row count.
func (r *PurgeRunner) mutate(ctx context.Context, logger *slog.Logger, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	op, stmt := r.statement(rows)
	logger.DebugContext(ctx, op, slog.String("db.statement", stmt))

	var affected int64
	err := r.withReconnect(ctx, logger, func(ctx context.Context) error {
		ctx, span := r.tracer.Start(ctx, "PurgeRunner."+op,
			trace.WithAttributes(
				attribute.String("db.system", "mysql"),
				attribute.String("db.operation.name", op),
				attribute.Int("purge.chunk_rows", len(rows)),
			),
		)
		defer span.End()

		start := time.Now()
		n, err := r.conn.Update(ctx, stmt)
		durationMS := time.Since(start).Milliseconds()

		r.auditor.Record(ctx, port.AuditEntry{
			RunID:        r.runID,
			Operation:    op,
			Table:        r.schema.DestTable,
			SQL:          stmt,
			RowsAffected: n,
			DurationMS:   durationMS,
			Err:          err,
		})

		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return err
		}
		r.inst.RecordStatement(ctx, op, n, float64(durationMS))
		span.SetAttributes(attribute.Int64("db.response.rows", n))
		affected = n
		return nil
	})
	if err != nil {
		return 0, err
	}
	if r.copyMode() {
		return int64(len(rows)), nil
	}
	return affected, nil
}

// withReconnect runs fn, reconnecting and retrying it while it fails with a
// lost connection. After MaxReconnects consecutive attempts the last error
// from fn is returned as is. A negative MaxReconnects never retries.
func (r *PurgeRunner) withReconnect(ctx context.Context, logger *slog.Logger, fn func(context.Context) error) error {
	attempts := 0
	for {
		err := fn(ctx)
		if err == nil || !errors.Is(err, domain.ErrConnectionLost) {
			return err
		}
		if attempts >= r.opts.MaxReconnects {
			return err
		}
		attempts++
		logger.WarnContext(ctx, "lost connection, reconnecting",
			slog.Int("attempt", attempts),
			slog.Int("max_attempts", r.opts.MaxReconnects),
			slog.Duration("backoff", r.opts.ReconnectBackoff),
			slog.String("error", err.Error()),
		)
		r.inst.IncrementReconnects(ctx)
		if serr := r.sleep(ctx, r.opts.ReconnectBackoff); serr != nil {
			return serr
		}
		if rerr := r.conn.Reconnect(ctx); rerr != nil && !errors.Is(rerr, domain.ErrConnectionLost) {
			return fmt.Errorf("reconnecting: %w", rerr)
		}
	}
}

// PrintQueries renders the initial query, a sample chunk query and the
// mutation statement for operator review. The sample uses the first row the
// initial query returns, or an all-NULL row when the table is empty.
func (r *PurgeRunner) PrintQueries(ctx context.Context) (string, error) {
	var sample [][]any
	err := r.withReconnect(ctx, r.logger, func(ctx context.Context) error {
		var err error
		sample, err = r.conn.SelectRows(ctx, r.query.WithLimit(1))
		return err
	})
	if err != nil {
		return "", err
	}
	if len(sample) == 0 {
		sample = [][]any{make([]any, len(r.schema.Columns))}
	}

	const indent = "    "
	var b strings.Builder
	b.WriteString("Initial Query:\n")
	b.WriteString(r.query.Format(indent))
	b.WriteString("\nChunk Query:\n")
	b.WriteString(r.schema.NextChunkQuery(r.query, sample[0]).Format(indent))
	if r.copyMode() {
		b.WriteString("\nInsert Statement:\n")
	} else {
		b.WriteString("\nDelete Statement:\n")
	}
	_, stmt := r.statement(sample)
	b.WriteString(domain.FormatStatement(indent, stmt))
	b.WriteString("\n")
	return b.String(), nil
}
