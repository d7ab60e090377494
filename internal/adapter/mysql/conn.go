package mysql

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"sync"

	"github.com/guillermoBallester/cleansweep/internal/core/domain"
)

// Conn runs every statement of a purge on one server session.
type Conn struct {
	mu   sync.Mutex
	db   *sql.DB
	conn *sql.Conn
}

// Open connects to dsn and reserves a dedicated session.
func Open(ctx context.Context, dsn string) (*Conn, error) {
	db, err := NewDB(ctx, dsn)
	if err != nil {
		return nil, err
	}
	conn, err := db.Conn(ctx)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("acquiring connection: %w", err)
	}
	return &Conn{db: db, conn: conn}, nil
}

func (c *Conn) session() *sql.Conn {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn
}

func (c *Conn) SelectRows(ctx context.Context, q domain.Query) ([][]any, error) {
	return c.query(ctx, q.SQL())
}

func (c *Conn) query(ctx context.Context, stmt string) ([][]any, error) {
	rows, err := c.session().QueryContext(ctx, stmt)
	if err != nil {
		return nil, classify(fmt.Errorf("executing query: %w", err))
	}
	defer func() { _ = rows.Close() }()

	result, err := scanRows(rows)
	if err != nil {
		return nil, classify(err)
	}
	return result, nil
}

func (c *Conn) Update(ctx context.Context, stmt string) (int64, error) {
	res, err := c.session().ExecContext(ctx, stmt)
	if err != nil {
		return 0, classify(fmt.Errorf("executing statement: %w", err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("reading affected rows: %w", err)
	}
	return n, nil
}

// Reconnect drops the current session, which may be broken, and opens a
// fresh one.
func (c *Conn) Reconnect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn != nil {
		// Returning ErrBadConn from Raw discards the session instead of
		// handing it back to the pool.
		_ = c.conn.Raw(func(any) error { return driver.ErrBadConn })
		_ = c.conn.Close()
	}
	conn, err := c.db.Conn(ctx)
	if err != nil {
		return classify(fmt.Errorf("acquiring connection: %w", err))
	}
	if err := conn.PingContext(ctx); err != nil {
		_ = conn.Close()
		return classify(fmt.Errorf("pinging database: %w", err))
	}
	c.conn = conn
	return nil
}

func (c *Conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
	return c.db.Close()
}
