package mysql

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"

	mysqldrv "github.com/go-sql-driver/mysql"
)

var historyLength = regexp.MustCompile(`History list length ([0-9]+)`)

// ER_PARSE_ERROR, returned by servers that predate SHOW REPLICA STATUS.
const parseErrorCode = 1064

// HistoryListLength reads the InnoDB history list length from the engine
// status report.
func (c *Conn) HistoryListLength(ctx context.Context) (int64, error) {
	rows, err := c.query(ctx, "SHOW ENGINE INNODB STATUS")
	if err != nil {
		return 0, err
	}
	if len(rows) == 0 || len(rows[0]) < 3 {
		return 0, fmt.Errorf("engine status returned no report")
	}
	// The report may quote deadlocked statements that are not valid UTF-8,
	// so match on the raw bytes.
	var report []byte
	switch v := rows[0][2].(type) {
	case []byte:
		report = v
	case string:
		report = []byte(v)
	}
	m := historyLength.FindSubmatch(report)
	if m == nil {
		return 0, fmt.Errorf("history list length not found in engine status")
	}
	return strconv.ParseInt(string(m[1]), 10, 64)
}

// ReplicationLag returns how many seconds this server is behind its source.
// A server that is not a replica, or whose SQL thread is not running, reports 0.
func (c *Conn) ReplicationLag(ctx context.Context) (int64, error) {
	lag, err := c.replicaLag(ctx, "SHOW REPLICA STATUS", "Seconds_Behind_Source")
	var myErr *mysqldrv.MySQLError
	if errors.As(err, &myErr) && myErr.Number == parseErrorCode {
		return c.replicaLag(ctx, "SHOW SLAVE STATUS", "Seconds_Behind_Master")
	}
	return lag, err
}

func (c *Conn) replicaLag(ctx context.Context, stmt, column string) (int64, error) {
	rows, err := c.session().QueryContext(ctx, stmt)
	if err != nil {
		return 0, classify(err)
	}
	defer func() { _ = rows.Close() }()

	named, err := scanNamedRows(rows)
	if err != nil {
		return 0, classify(err)
	}
	if len(named) == 0 {
		return 0, nil
	}
	v, ok := named[0][column]
	if !ok || v == nil {
		return 0, nil
	}
	lag, err := toInt64(v)
	if err != nil {
		return 0, fmt.Errorf("parsing %s: %w", column, err)
	}
	return lag, nil
}
