package port

import "context"

// AuditEntry represents a single statement issued against the database during
// a purge.
type AuditEntry struct {
	RunID        string
	Operation    string // select, insert, delete
	Table        string
	SQL          string
	RowsAffected int64
	DurationMS   int64
	Err          error
}

// StatementAuditor records statement audit events.
type StatementAuditor interface {
	Record(ctx context.Context, entry AuditEntry)
	Close() error
}

// NoopAuditor discards all audit entries.
type NoopAuditor struct{}

func (NoopAuditor) Record(context.Context, AuditEntry) {}
func (NoopAuditor) Close() error                       { return nil }
