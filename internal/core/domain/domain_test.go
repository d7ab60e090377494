package domain

import (
	"fmt"
	"time"
)

// testQuoter renders literals the way the MySQL adapter does for the types
// used in these tests.
type testQuoter struct{}

func (testQuoter) QuoteLiteral(v any, _ string) string {
	switch val := v.(type) {
	case nil:
		return "NULL"
	case int, int64:
		return fmt.Sprintf("%d", val)
	case time.Time:
		return "'" + val.Format("2006-01-02 15:04:05") + "'"
	default:
		return fmt.Sprintf("'%v'", val)
	}
}

// commentsCatalog mirrors:
//
//	comments (id PK, timestamp datetime, account int, seen bool,
//	          key comments_on_account_timestamp(account, timestamp),
//	          key comments_on_timestamp(timestamp desc))
func commentsCatalog() ([]IndexEntry, []ColumnEntry) {
	indexes := []IndexEntry{
		{IndexName: "PRIMARY", ColumnName: "id", SeqInIndex: 1, IndexType: "BTREE"},
		{IndexName: "comments_on_account_timestamp", ColumnName: "account", SeqInIndex: 1, NonUnique: true, IndexType: "BTREE"},
		{IndexName: "comments_on_account_timestamp", ColumnName: "timestamp", SeqInIndex: 2, NonUnique: true, IndexType: "BTREE"},
		{IndexName: "comments_on_timestamp", ColumnName: "timestamp", SeqInIndex: 1, NonUnique: true, IndexType: "BTREE"},
	}
	columns := []ColumnEntry{
		{Name: "id", DataType: "int", Ordinal: 1},
		{Name: "timestamp", DataType: "datetime", Ordinal: 2},
		{Name: "account", DataType: "int", Ordinal: 3},
		{Name: "seen", DataType: "tinyint", Ordinal: 4},
	}
	return indexes, columns
}

func booksCatalog() ([]IndexEntry, []ColumnEntry) {
	indexes := []IndexEntry{
		{IndexName: "PRIMARY", ColumnName: "id", SeqInIndex: 1, IndexType: "BTREE"},
		{IndexName: "book_index_by_bin", ColumnName: "bin", SeqInIndex: 1, NonUnique: true, IndexType: "BTREE"},
		{IndexName: "book_index_by_bin", ColumnName: "id", SeqInIndex: 2, NonUnique: true, IndexType: "BTREE"},
	}
	columns := []ColumnEntry{
		{Name: "id", DataType: "int", Ordinal: 1},
		{Name: "bin", DataType: "int", Ordinal: 2},
		{Name: "publisher", DataType: "varchar", Ordinal: 3},
		{Name: "title", DataType: "varchar", Ordinal: 4},
	}
	return indexes, columns
}

// accountAndTimestampRows are (id, account, timestamp) rows.
func accountAndTimestampRows() [][]any {
	t := time.Date(2014, 12, 2, 1, 13, 25, 0, time.UTC)
	return [][]any{
		{1001, 5, t},
		{1002, 2, t.Add(-time.Hour)},
		{1005, 5, t.Add(-2 * time.Hour)},
	}
}
