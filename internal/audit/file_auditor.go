package audit

import (
	"context"
	"encoding/json"
	"os"
	"sync"
	"time"

	"github.com/guillermoBallester/cleansweep/internal/core/port"
)

// fileEntry is the NDJSON-serializable form of an audit record.
type fileEntry struct {
	Timestamp    string  `json:"ts"`
	RunID        string  `json:"run_id"`
	Operation    string  `json:"operation"`
	Table        string  `json:"table"`
	SQL          string  `json:"sql"`
	RowsAffected int64   `json:"rows_affected"`
	DurationMS   int64   `json:"duration_ms"`
	Error        *string `json:"error"`
}

// FileAuditor writes audit entries as NDJSON (one JSON object per line) to a file.
type FileAuditor struct {
	mu   sync.Mutex
	file *os.File
	enc  *json.Encoder
	now  func() time.Time
}

// NewFileAuditor opens (or creates) the file at path for append-only writing.
func NewFileAuditor(path string) (*FileAuditor, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, err
	}
	return &FileAuditor{
		file: f,
		enc:  json.NewEncoder(f),
		now:  time.Now,
	}, nil
}

func (a *FileAuditor) Record(_ context.Context, entry port.AuditEntry) {
	fe := fileEntry{
		Timestamp:    a.now().UTC().Format(time.RFC3339Nano),
		RunID:        entry.RunID,
		Operation:    entry.Operation,
		Table:        entry.Table,
		SQL:          entry.SQL,
		RowsAffected: entry.RowsAffected,
		DurationMS:   entry.DurationMS,
	}
	if entry.Err != nil {
		s := entry.Err.Error()
		fe.Error = &s
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	_ = a.enc.Encode(fe) // best-effort; a purge never fails on audit I/O
}

func (a *FileAuditor) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.file.Close()
}

// New returns a FileAuditor for path, or a no-op auditor when path is empty.
func New(path string) (port.StatementAuditor, error) {
	if path == "" {
		return port.NoopAuditor{}, nil
	}
	a, err := NewFileAuditor(path)
	if err != nil {
		return nil, err
	}
	return a, nil
}
