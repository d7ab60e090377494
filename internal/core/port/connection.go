package port

import (
	"context"

	"github.com/guillermoBallester/cleansweep/internal/core/domain"
)

// Connection is the single database session a purge runs on. Adapters wrap
// errors that a reconnect can recover from with domain.ErrConnectionLost.
type Connection interface {
	domain.Quoter

	// SelectRows runs q and returns every row as values in select-list order.
	SelectRows(ctx context.Context, q domain.Query) ([][]any, error)
	// Update runs a data-changing statement and returns the affected row count.
	Update(ctx context.Context, stmt string) (int64, error)
	// Reconnect discards the current session and opens a new one.
	Reconnect(ctx context.Context) error

	IndexCatalog(ctx context.Context, table string) ([]domain.IndexEntry, error)
	ColumnCatalog(ctx context.Context, table string) ([]domain.ColumnEntry, error)
}

// HealthProbe reads the server metrics the health monitor throttles on.
type HealthProbe interface {
	// HistoryListLength returns the InnoDB history list length.
	HistoryListLength(ctx context.Context) (int64, error)
	// ReplicationLag returns seconds behind the source, or 0 when the server
	// is not a replica.
	ReplicationLag(ctx context.Context) (int64, error)
}
