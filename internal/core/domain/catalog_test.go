package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGroupIndexes(t *testing.T) {
	entries := []IndexEntry{
		{IndexName: "PRIMARY", ColumnName: "id", SeqInIndex: 1, IndexType: "BTREE"},
		{IndexName: "idx_ab", ColumnName: "a", SeqInIndex: 1, NonUnique: true, IndexType: "BTREE"},
		{IndexName: "idx_ab", ColumnName: "b", SeqInIndex: 2, NonUnique: true, IndexType: "BTREE"},
		{IndexName: "idx_hash", ColumnName: "c", SeqInIndex: 1, IndexType: "HASH"},
		{IndexName: "idx_prefix", ColumnName: "d", SeqInIndex: 1, NonUnique: true, IndexType: "BTREE", HasPrefix: true},
		{IndexName: "idx_expr", SeqInIndex: 1, NonUnique: true, IndexType: "BTREE"},
	}

	got := groupIndexes(entries)
	require.Len(t, got, 5)

	assert.Equal(t, "PRIMARY", got[0].Name)
	assert.True(t, got[0].Eligible)
	assert.Equal(t, []string{"a", "b"}, got[1].Columns)
	assert.False(t, got[1].Unique)
	assert.True(t, got[1].Eligible)

	for _, idx := range got[2:] {
		assert.False(t, idx.Eligible, idx.Name)
		assert.NotEmpty(t, idx.Reason, idx.Name)
	}
}

func TestChoosePrimaryKey_NoneEligible(t *testing.T) {
	_, ok := choosePrimaryKey([]IndexInfo{{Name: "ft", Eligible: false}})
	assert.False(t, ok)
}
