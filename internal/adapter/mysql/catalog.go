package mysql

import (
	"context"
	"fmt"
	"strconv"

	"github.com/guillermoBallester/cleansweep/internal/core/domain"
)

const columnsQuery = `SELECT COLUMN_NAME, DATA_TYPE, ORDINAL_POSITION
	FROM INFORMATION_SCHEMA.COLUMNS
	WHERE TABLE_SCHEMA = DATABASE() AND TABLE_NAME = ?
	ORDER BY ORDINAL_POSITION`

// IndexCatalog lists the key-parts of every index on table in the order the
// server reports them, which puts PRIMARY first.
func (c *Conn) IndexCatalog(ctx context.Context, table string) ([]domain.IndexEntry, error) {
	rows, err := c.session().QueryContext(ctx, "SHOW INDEX FROM "+domain.QuoteIdentifier(table))
	if err != nil {
		return nil, classify(fmt.Errorf("listing indexes: %w", err))
	}
	defer func() { _ = rows.Close() }()

	named, err := scanNamedRows(rows)
	if err != nil {
		return nil, classify(err)
	}

	entries := make([]domain.IndexEntry, 0, len(named))
	for _, row := range named {
		seq, err := toInt64(row["Seq_in_index"])
		if err != nil {
			return nil, fmt.Errorf("index %v: Seq_in_index: %w", row["Key_name"], err)
		}
		nonUnique, err := toInt64(row["Non_unique"])
		if err != nil {
			return nil, fmt.Errorf("index %v: Non_unique: %w", row["Key_name"], err)
		}
		entries = append(entries, domain.IndexEntry{
			IndexName:  toString(row["Key_name"]),
			ColumnName: toString(row["Column_name"]),
			SeqInIndex: int(seq),
			NonUnique:  nonUnique != 0,
			IndexType:  toString(row["Index_type"]),
			HasPrefix:  row["Sub_part"] != nil,
		})
	}
	return entries, nil
}

func (c *Conn) ColumnCatalog(ctx context.Context, table string) ([]domain.ColumnEntry, error) {
	rows, err := c.session().QueryContext(ctx, columnsQuery, table)
	if err != nil {
		return nil, classify(fmt.Errorf("listing columns: %w", err))
	}
	defer func() { _ = rows.Close() }()

	var columns []domain.ColumnEntry
	for rows.Next() {
		var col domain.ColumnEntry
		if err := rows.Scan(&col.Name, &col.DataType, &col.Ordinal); err != nil {
			return nil, fmt.Errorf("reading column: %w", err)
		}
		columns = append(columns, col)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(fmt.Errorf("iterating columns: %w", err))
	}
	return columns, nil
}

func toString(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case []byte:
		return string(val)
	case string:
		return val
	default:
		return fmt.Sprint(val)
	}
}

func toInt64(v any) (int64, error) {
	switch val := v.(type) {
	case int64:
		return val, nil
	case uint64:
		return int64(val), nil
	case nil:
		return 0, nil
	default:
		return strconv.ParseInt(toString(val), 10, 64)
	}
}
