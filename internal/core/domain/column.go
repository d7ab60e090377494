package domain

import "strings"

// Column identifies one physical column of the purged table and where its
// value sits in a fetched row.
type Column struct {
	Name     string
	Type     string // declared data type, e.g. "int", "datetime", "varbinary"
	DestName string // column name in the destination table; empty means Name
	Position int    // index into a fetched row
}

// Quoter renders a Go value as a SQL literal for a column of the given type.
type Quoter interface {
	QuoteLiteral(v any, dataType string) string
}

// QuoteIdentifier backtick-quotes a MySQL identifier.
func QuoteIdentifier(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

func (c Column) QuotedName() string {
	return QuoteIdentifier(c.Name)
}

func (c Column) QuotedDestName() string {
	if c.DestName != "" {
		return QuoteIdentifier(c.DestName)
	}
	return c.QuotedName()
}

// Value returns the column's value from a row. Rows shorter than the column
// position (the dry-run placeholder row) yield nil.
func (c Column) Value(row []any) any {
	if c.Position < 0 || c.Position >= len(row) {
		return nil
	}
	return row[c.Position]
}

func (c Column) QuotedValue(row []any, q Quoter) string {
	return q.QuoteLiteral(c.Value(row), c.Type)
}

// SameColumn compares by name; MySQL column names are case-insensitive.
func (c Column) SameColumn(o Column) bool {
	return strings.EqualFold(c.Name, o.Name)
}
