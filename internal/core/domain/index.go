package domain

import (
	"fmt"
	"strings"
)

const primaryKeyName = "PRIMARY"

// Index describes one database index and how a purge traverses it.
type Index struct {
	Name      string
	Columns   []Column
	Unique    bool
	Ascending bool
	FirstOnly bool
}

func (ix Index) IsPrimary() bool {
	return strings.EqualFold(ix.Name, primaryKeyName)
}

func (ix Index) ColumnNames() []string {
	names := make([]string, len(ix.Columns))
	for i, c := range ix.Columns {
		names[i] = c.Name
	}
	return names
}

// keyColumns returns the columns that take part in ordering and the chunk
// predicate: only the leading column in first-only mode.
func (ix Index) keyColumns() []Column {
	if ix.FirstOnly && len(ix.Columns) > 0 {
		return ix.Columns[:1]
	}
	return ix.Columns
}

func (ix Index) direction() string {
	if ix.Ascending {
		return "ASC"
	}
	return "DESC"
}

// OrderBy renders the ORDER BY list, e.g. "`account` ASC,`timestamp` ASC".
func (ix Index) OrderBy() string {
	cols := ix.keyColumns()
	parts := make([]string, len(cols))
	for i, c := range cols {
		parts[i] = c.QuotedName() + " " + ix.direction()
	}
	return strings.Join(parts, ",")
}

// ChunkClause renders the keyset predicate selecting rows strictly after
// lastRow in traversal order. In first-only mode the comparison is inclusive
// on the leading column so rows sharing its value are never skipped.
func (ix Index) ChunkClause(lastRow []any, q Quoter) string {
	if ix.FirstOnly {
		col := ix.Columns[0]
		op := ">="
		if !ix.Ascending {
			op = "<="
		}
		return fmt.Sprintf("%s %s %s", col.QuotedName(), op, col.QuotedValue(lastRow, q))
	}
	return ix.term(ix.Columns, lastRow, q)
}

// NullColumns names the columns ChunkClause compares whose value in row is
// NULL. Such a row cannot anchor the next chunk: every comparison with NULL
// is false.
func (ix Index) NullColumns(row []any) []string {
	var names []string
	for _, c := range ix.keyColumns() {
		if c.Value(row) == nil {
			names = append(names, c.Name)
		}
	}
	return names
}

func (ix Index) term(cols []Column, lastRow []any, q Quoter) string {
	op := ">"
	if !ix.Ascending {
		op = "<"
	}
	col := cols[0]
	value := col.QuotedValue(lastRow, q)
	clause := fmt.Sprintf("%s %s %s", col.QuotedName(), op, value)
	if len(cols) > 1 {
		clause += fmt.Sprintf(" OR (%s = %s AND %s)", col.QuotedName(), value, ix.term(cols[1:], lastRow, q))
	}
	return clause
}

// MatchClause renders the equality criteria identifying one row by this
// index's columns, e.g. "`id` = 7 AND `bin` = 2".
func (ix Index) MatchClause(row []any, q Quoter) string {
	parts := make([]string, len(ix.Columns))
	for i, c := range ix.Columns {
		v := c.Value(row)
		if v == nil {
			parts[i] = c.QuotedName() + " IS NULL"
			continue
		}
		parts[i] = c.QuotedName() + " = " + q.QuoteLiteral(v, c.Type)
	}
	return strings.Join(parts, " AND ")
}
