package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/guillermoBallester/cleansweep/internal/core/domain"
	"github.com/guillermoBallester/cleansweep/internal/core/port"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

var errBrokenPipe = fmt.Errorf("%w: write tcp: broken pipe", domain.ErrConnectionLost)

var (
	chunkPattern  = regexp.MustCompile("^`id` (>=|<=|>|<) (\\S+)$")
	deletePattern = regexp.MustCompile("`id` = (\\d+)")
	insertPattern = regexp.MustCompile(`\((\d+)\)`)
)

// fakeConn serves a single-column table `id` out of memory. It understands
// exactly the statement shapes the purge runner generates.
type fakeConn struct {
	mu    sync.Mutex
	table string
	ids   []int64 // ascending
	dest  []int64

	selectErr func(call int) error
	updateErr func(call int) error
	reconnErr error

	// affectedSkew is added to the affected-row count of every DELETE, as a
	// server does when a non-unique row key matches duplicate rows.
	affectedSkew int64

	selects    []string
	updates    []string
	reconnects int
}

func newFakeConn(table string, n int) *fakeConn {
	c := &fakeConn{table: table}
	for i := 1; i <= n; i++ {
		c.ids = append(c.ids, int64(i))
	}
	return c
}

func (c *fakeConn) QuoteLiteral(v any, _ string) string {
	switch val := v.(type) {
	case nil:
		return "NULL"
	case string:
		return "'" + val + "'"
	default:
		return fmt.Sprintf("%v", val)
	}
}

func (c *fakeConn) SelectRows(_ context.Context, q domain.Query) ([][]any, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.selects = append(c.selects, q.SQL())
	if c.selectErr != nil {
		if err := c.selectErr(len(c.selects)); err != nil {
			return nil, err
		}
	}

	ids := slices.Clone(c.ids)
	if strings.Contains(q.OrderBy, "DESC") {
		slices.Reverse(ids)
	}

	var rows [][]any
	for _, id := range ids {
		if q.Chunk != "" && !matchesChunk(q.Chunk, id) {
			continue
		}
		row := make([]any, len(q.Columns))
		for i, col := range q.Columns {
			switch col {
			case "`id`":
				row[i] = id
			case "`name`":
				row[i] = fmt.Sprintf("name-%d", id)
			}
		}
		rows = append(rows, row)
		if q.Limit > 0 && len(rows) == q.Limit {
			break
		}
	}
	return rows, nil
}

func matchesChunk(clause string, id int64) bool {
	m := chunkPattern.FindStringSubmatch(clause)
	if m == nil {
		panic("unexpected chunk clause: " + clause)
	}
	v, err := strconv.ParseInt(m[2], 10, 64)
	if err != nil {
		return false
	}
	switch m[1] {
	case ">":
		return id > v
	case ">=":
		return id >= v
	case "<":
		return id < v
	default:
		return id <= v
	}
}

func (c *fakeConn) Update(_ context.Context, stmt string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.updates = append(c.updates, stmt)
	if c.updateErr != nil {
		if err := c.updateErr(len(c.updates)); err != nil {
			return 0, err
		}
	}

	switch {
	case strings.HasPrefix(stmt, "DELETE FROM `"+c.table+"`"):
		var n int64
		for _, m := range deletePattern.FindAllStringSubmatch(stmt, -1) {
			id, _ := strconv.ParseInt(m[1], 10, 64)
			if i := slices.Index(c.ids, id); i >= 0 {
				c.ids = slices.Delete(c.ids, i, i+1)
				n++
			}
		}
		return max(n+c.affectedSkew, 0), nil
	case strings.HasPrefix(stmt, "INSERT INTO "):
		var n int64
		for _, m := range insertPattern.FindAllStringSubmatch(stmt, -1) {
			id, _ := strconv.ParseInt(m[1], 10, 64)
			c.dest = append(c.dest, id)
			n++
		}
		return n, nil
	}
	return 0, fmt.Errorf("unexpected statement: %s", stmt)
}

// nullKeyConn returns rows whose key columns are all NULL, once.
type nullKeyConn struct {
	*fakeConn
	rows int
}

func (c *nullKeyConn) SelectRows(_ context.Context, q domain.Query) ([][]any, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.selects = append(c.selects, q.SQL())
	if len(c.selects) > 1 {
		return nil, nil
	}
	rows := make([][]any, c.rows)
	for i := range rows {
		rows[i] = make([]any, len(q.Columns))
	}
	return rows, nil
}

func (c *fakeConn) Reconnect(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reconnects++
	return c.reconnErr
}

func (c *fakeConn) IndexCatalog(_ context.Context, table string) ([]domain.IndexEntry, error) {
	if table != c.table {
		return nil, nil
	}
	return []domain.IndexEntry{
		{IndexName: "PRIMARY", ColumnName: "id", SeqInIndex: 1, IndexType: "BTREE"},
	}, nil
}

func (c *fakeConn) ColumnCatalog(_ context.Context, table string) ([]domain.ColumnEntry, error) {
	if table != c.table {
		return nil, nil
	}
	return []domain.ColumnEntry{
		{Name: "id", DataType: "bigint", Ordinal: 1},
		{Name: "name", DataType: "varchar", Ordinal: 2},
	}, nil
}

// fakeProbe replays a sequence of readings; the last one repeats.
type fakeProbe struct {
	history []int64
	lag     []int64
	err     error

	historyCalls int
	lagCalls     int
}

func next(seq []int64, call int) int64 {
	if len(seq) == 0 {
		return 0
	}
	if call >= len(seq) {
		return seq[len(seq)-1]
	}
	return seq[call]
}

func (p *fakeProbe) HistoryListLength(context.Context) (int64, error) {
	v := next(p.history, p.historyCalls)
	p.historyCalls++
	return v, p.err
}

func (p *fakeProbe) ReplicationLag(context.Context) (int64, error) {
	v := next(p.lag, p.lagCalls)
	p.lagCalls++
	return v, p.err
}

type recordingAuditor struct {
	mu      sync.Mutex
	entries []port.AuditEntry
}

func (a *recordingAuditor) Record(_ context.Context, e port.AuditEntry) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = append(a.entries, e)
}

func (a *recordingAuditor) Close() error { return nil }

type countingInstrumentation struct {
	port.NoopInstrumentation
	statements map[string]int
	reconnects int
	pauses     int
}

func newCountingInstrumentation() *countingInstrumentation {
	return &countingInstrumentation{statements: make(map[string]int)}
}

func (i *countingInstrumentation) RecordStatement(_ context.Context, op string, _ int64, _ float64) {
	i.statements[op]++
}

func (i *countingInstrumentation) IncrementReconnects(context.Context) { i.reconnects++ }
func (i *countingInstrumentation) IncrementPauses(context.Context)     { i.pauses++ }

// sleepRecorder replaces real sleeps in tests.
type sleepRecorder struct {
	slept []time.Duration
}

func (s *sleepRecorder) sleep(ctx context.Context, d time.Duration) error {
	s.slept = append(s.slept, d)
	return ctx.Err()
}
