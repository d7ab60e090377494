package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCommentsSchema(t *testing.T, opts SchemaOptions) *TableSchema {
	t.Helper()
	indexes, columns := commentsCatalog()
	s, err := NewTableSchema("comments", indexes, columns, testQuoter{}, opts)
	require.NoError(t, err)
	return s
}

func TestTableSchema_AscendingAccountTimestamp(t *testing.T) {
	s := newCommentsSchema(t, SchemaOptions{KeyName: "comments_on_account_timestamp"})

	assert.Equal(t, []string{"id"}, s.PrimaryKey.ColumnNames())
	require.NotNil(t, s.TraversingKey)
	assert.Equal(t, []string{"account", "timestamp"}, s.TraversingKey.ColumnNames())
	assert.Equal(t, []string{"id", "account", "timestamp"}, s.ColumnNames())

	initial := s.InitialQuery(500, "")
	assert.Contains(t, initial.SQL(), "`account` ASC,`timestamp` ASC")

	rows := accountAndTimestampRows()
	next := s.NextChunkQuery(initial, rows[len(rows)-1])
	assert.Contains(t, next.SQL(), "(`account` > 5 OR (`account` = 5 AND `timestamp` > '2014-12-01 23:13:25'))")
}

func TestTableSchema_InsertStatement(t *testing.T) {
	s := newCommentsSchema(t, SchemaOptions{KeyName: "comments_on_account_timestamp"})

	got := s.InsertStatement(accountAndTimestampRows())
	assert.Equal(t,
		"INSERT INTO `comments` (`id`,`account`,`timestamp`) VALUES "+
			"(1001,5,'2014-12-02 01:13:25'),(1002,2,'2014-12-02 00:13:25'),(1005,5,'2014-12-01 23:13:25')",
		got)
}

func TestTableSchema_DeleteStatement(t *testing.T) {
	s := newCommentsSchema(t, SchemaOptions{})

	got := s.DeleteStatement(accountAndTimestampRows())
	assert.Equal(t, "DELETE FROM `comments` WHERE (`id` = 1001) OR (`id` = 1002) OR (`id` = 1005)", got)
}

func TestTableSchema_Descending(t *testing.T) {
	s := newCommentsSchema(t, SchemaOptions{KeyName: "comments_on_account_timestamp", Reverse: true})

	rows := accountAndTimestampRows()
	sql := s.NextChunkQuery(s.InitialQuery(500, ""), rows[len(rows)-1]).SQL()
	assert.Contains(t, sql, "(`account` < 5 OR (`account` = 5 AND `timestamp` < '2014-12-01 23:13:25'))")
	assert.Contains(t, sql, "`account` DESC,`timestamp` DESC")
}

func TestTableSchema_FirstOnly(t *testing.T) {
	s := newCommentsSchema(t, SchemaOptions{KeyName: "comments_on_account_timestamp", FirstOnly: true})

	assert.Equal(t, []string{"id", "account", "timestamp"}, s.ColumnNames())
	rows := accountAndTimestampRows()
	sql := s.NextChunkQuery(s.InitialQuery(500, ""), rows[len(rows)-1]).SQL()
	assert.Contains(t, sql, " (`account` >= 5) ")
	assert.Contains(t, sql, "ORDER BY `account` ASC LIMIT")
}

func TestTableSchema_IndexNameIsCaseInsensitive(t *testing.T) {
	s := newCommentsSchema(t, SchemaOptions{KeyName: "primary"})
	assert.Equal(t, []string{"id"}, s.ColumnNames())
	assert.Contains(t, s.InitialQuery(500, "").SQL(), "FORCE INDEX(`PRIMARY`)")
}

func TestTableSchema_DefaultsToPrimaryKeyTraversal(t *testing.T) {
	s := newCommentsSchema(t, SchemaOptions{})
	require.NotNil(t, s.TraversingKey)
	assert.Equal(t, "PRIMARY", s.TraversingKey.Name)
	assert.True(t, s.TraversingKey.Ascending)
}

func TestTableSchema_NonTraversing(t *testing.T) {
	s := newCommentsSchema(t, SchemaOptions{NonTraversing: true})
	assert.Equal(t, []string{"id"}, s.PrimaryKey.ColumnNames())
	assert.Nil(t, s.TraversingKey)

	initial := s.InitialQuery(10, "")
	assert.Equal(t, "SELECT `id` FROM `comments` LIMIT 10", initial.SQL())
	assert.Equal(t, initial, s.NextChunkQuery(initial, []any{3}))
}

func TestTableSchema_ForceIndex(t *testing.T) {
	s := newCommentsSchema(t, SchemaOptions{KeyName: "comments_on_timestamp"})
	assert.Contains(t, s.InitialQuery(500, "").SQL(), "`comments` FORCE INDEX(`comments_on_timestamp`)")
}

func TestTableSchema_ExtraColumns(t *testing.T) {
	s := newCommentsSchema(t, SchemaOptions{
		KeyName:      "comments_on_account_timestamp",
		ExtraColumns: []string{"seen", "id"},
	})
	assert.Equal(t, []string{"seen", "id", "account", "timestamp"}, s.ColumnNames())

	var rows [][]any
	for _, r := range accountAndTimestampRows() {
		rows = append(rows, append([]any{1}, r...))
	}
	assert.Equal(t,
		"INSERT INTO `comments` (`seen`,`id`,`account`,`timestamp`) VALUES "+
			"(1,1001,5,'2014-12-02 01:13:25'),(1,1002,2,'2014-12-02 00:13:25'),(1,1005,5,'2014-12-01 23:13:25')",
		s.InsertStatement(rows))
	assert.Equal(t, "DELETE FROM `comments` WHERE (`id` = 1001)", s.DeleteStatement(rows[:1]))
}

func TestTableSchema_UnknownExtraColumn(t *testing.T) {
	indexes, columns := commentsCatalog()
	_, err := NewTableSchema("comments", indexes, columns, testQuoter{}, SchemaOptions{ExtraColumns: []string{"nope"}})
	require.ErrorIs(t, err, ErrConfiguration)
	assert.Contains(t, err.Error(), "can't find column nope")
}

func TestTableSchema_UnknownIndex(t *testing.T) {
	indexes, columns := commentsCatalog()
	_, err := NewTableSchema("comments", indexes, columns, testQuoter{}, SchemaOptions{KeyName: "missing"})
	require.ErrorIs(t, err, ErrConfiguration)
	require.ErrorIs(t, err, ErrNotFound)
	assert.Contains(t, err.Error(), "missing not found")
}

func TestTableSchema_IneligibleIndex(t *testing.T) {
	indexes, columns := commentsCatalog()
	indexes = append(indexes, IndexEntry{IndexName: "ft_seen", ColumnName: "seen", SeqInIndex: 1, NonUnique: true, IndexType: "FULLTEXT"})
	_, err := NewTableSchema("comments", indexes, columns, testQuoter{}, SchemaOptions{KeyName: "ft_seen"})
	require.ErrorIs(t, err, ErrConfiguration)
	assert.Contains(t, err.Error(), "cannot be traversed")
}

func TestTableSchema_PrimaryKeyPreference(t *testing.T) {
	columns := []ColumnEntry{
		{Name: "pk", DataType: "int"},
		{Name: "k1", DataType: "int"},
		{Name: "k2", DataType: "int"},
	}
	nonUnique := IndexEntry{IndexName: "key_nonunique", ColumnName: "k1", SeqInIndex: 1, NonUnique: true, IndexType: "BTREE"}
	unique := IndexEntry{IndexName: "key_unique", ColumnName: "k2", SeqInIndex: 1, IndexType: "BTREE"}
	primary := IndexEntry{IndexName: "PRIMARY", ColumnName: "pk", SeqInIndex: 1, IndexType: "BTREE"}

	tests := []struct {
		name    string
		entries []IndexEntry
		want    string
	}{
		{"primary key", []IndexEntry{nonUnique, unique, primary}, "PRIMARY"},
		{"unique key", []IndexEntry{nonUnique, unique}, "key_unique"},
		{"regular key", []IndexEntry{nonUnique}, "key_nonunique"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := NewTableSchema("t", tt.entries, columns, testQuoter{}, SchemaOptions{})
			require.NoError(t, err)
			assert.Equal(t, tt.want, s.PrimaryKey.Name)
			assert.Equal(t, tt.want, s.TraversingKey.Name)
		})
	}
}

func TestTableSchema_NoKeys(t *testing.T) {
	columns := []ColumnEntry{{Name: "a", DataType: "int"}, {Name: "b", DataType: "varchar"}}

	_, err := NewTableSchema("t", nil, columns, testQuoter{}, SchemaOptions{})
	require.ErrorIs(t, err, ErrConfiguration)
	assert.Contains(t, err.Error(), "must have a primary key")

	s, err := NewTableSchema("t", nil, columns, testQuoter{}, SchemaOptions{NonTraversing: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, s.PrimaryKey.ColumnNames())
	assert.Equal(t, "DELETE FROM `t` WHERE (`a` = 1 AND `b` IS NULL)", s.DeleteStatement([][]any{{1, nil}}))
}

func TestTableSchema_MissingTable(t *testing.T) {
	_, err := NewTableSchema("ghost", nil, nil, testQuoter{}, SchemaOptions{})
	require.ErrorIs(t, err, ErrConfiguration)
}

func TestTableSchema_CopyMode(t *testing.T) {
	indexes, columns := booksCatalog()
	s, err := NewTableSchema("books", indexes, columns, testQuoter{}, SchemaOptions{
		KeyName:      "book_index_by_bin",
		ExtraColumns: []string{"publisher"},
		DestTable:    "book_vault",
		DestColumns:  map[string]string{"PUBLISHER": "published_by", "ID": "book_id"},
	})
	require.NoError(t, err)

	assert.True(t, s.CopyMode())
	assert.Equal(t, []string{"publisher", "id", "bin"}, s.ColumnNames())
	assert.Equal(t,
		"INSERT INTO `book_vault` (`published_by`,`book_id`,`bin`) VALUES ('Random House',200,2000)",
		s.InsertStatement([][]any{{"Random House", 200, 2000}}))
}

func TestTableSchema_CopyModeValidation(t *testing.T) {
	indexes, columns := booksCatalog()
	tests := []struct {
		name string
		opts SchemaOptions
		msg  string
	}{
		{"into itself", SchemaOptions{DestTable: "BOOKS"}, "into itself"},
		{"first only", SchemaOptions{DestTable: "book_vault", KeyName: "book_index_by_bin", FirstOnly: true}, "duplicate rows"},
		{"non traversing", SchemaOptions{DestTable: "book_vault", NonTraversing: true}, "requires a traversal key"},
		{"unknown dest column source", SchemaOptions{DestTable: "book_vault", DestColumns: map[string]string{"isbn": "x"}}, "can't find column isbn"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewTableSchema("books", indexes, columns, testQuoter{}, tt.opts)
			require.ErrorIs(t, err, ErrConfiguration)
			assert.Contains(t, err.Error(), tt.msg)
		})
	}
}
