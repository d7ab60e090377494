package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrConfiguration marks errors raised while building a purge before any
	// statement has executed. They are never retried.
	ErrConfiguration = errors.New("configuration error")

	// ErrConnectionLost marks a recoverable loss of the database connection.
	// Adapters wrap driver errors with it; the purge runner reconnects and
	// retries the failed statement.
	ErrConnectionLost = errors.New("connection lost")

	ErrEmptyFilter    = errors.New("empty filter")
	ErrMultiStatement = errors.New("multiple statements are not allowed")
	ErrParseFailed    = errors.New("failed to parse SQL")
	ErrNotFound       = errors.New("not found")

	// ErrNullKey stops a traversal whose last fetched row holds NULL in a
	// key column, since the keyset predicate cannot move past it.
	ErrNullKey = errors.New("NULL traversal key")
)

func configErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConfiguration, fmt.Sprintf(format, args...))
}

// notFoundf is a configuration error for a table, index or column that does
// not exist.
func notFoundf(format string, args ...any) error {
	return fmt.Errorf("%w: %w: %s", ErrConfiguration, ErrNotFound, fmt.Sprintf(format, args...))
}

// StoppedError is returned when a purge reaches its stop-after budget. It is
// not a failure: the final chunk has been committed and StoppedAt holds the
// number of rows processed.
type StoppedError struct {
	StoppedAt int64
	Verb      string
	Table     string
}

func (e *StoppedError) Error() string {
	return fmt.Sprintf("stopped after %s %d %s records", e.Verb, e.StoppedAt, e.Table)
}

// IsStopped reports whether err is a stop-after signal and returns it.
func IsStopped(err error) (*StoppedError, bool) {
	var stopped *StoppedError
	if errors.As(err, &stopped) {
		return stopped, true
	}
	return nil, false
}
