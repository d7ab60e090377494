package service

import (
	"context"
	"fmt"
	"time"

	"github.com/guillermoBallester/cleansweep/internal/core/domain"
	"github.com/guillermoBallester/cleansweep/internal/core/port"
)

// LoadTableSchema reads the index and column catalogs of table once and builds
// the traversal plan from them.
func LoadTableSchema(ctx context.Context, conn port.Connection, table string, opts domain.SchemaOptions) (*domain.TableSchema, error) {
	indexes, err := conn.IndexCatalog(ctx, table)
	if err != nil {
		return nil, fmt.Errorf("reading indexes of %s: %w", table, err)
	}
	columns, err := conn.ColumnCatalog(ctx, table)
	if err != nil {
		return nil, fmt.Errorf("reading columns of %s: %w", table, err)
	}
	return domain.NewTableSchema(table, indexes, columns, conn, opts)
}

// sleepContext blocks for d or until ctx is done.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
