package domain

import (
	"strings"
)

// SchemaOptions selects how a table is traversed and where rows are copied.
type SchemaOptions struct {
	KeyName       string            // traversal index; empty selects the primary key
	Reverse       bool              // traverse in descending order
	FirstOnly     bool              // keyset on the leading column only, inclusive
	NonTraversing bool              // no traversal key: re-run the initial query each chunk
	ExtraColumns  []string          // additional columns to select (and copy)
	DestTable     string            // destination table for copy mode
	DestColumns   map[string]string // source column -> destination column
}

// TableSchema is the traversal plan for one table, built once from the
// catalog and never re-read during a run. Columns fixes the column order of
// every SELECT, INSERT and fetched row.
type TableSchema struct {
	Name          string
	DestTable     string
	PrimaryKey    Index
	TraversingKey *Index
	Columns       []Column
	Indexes       []IndexInfo

	quoter Quoter
}

// NewTableSchema builds the schema from catalog rows. It fails with
// ErrConfiguration when no usable key exists or a named index or column is
// unknown.
func NewTableSchema(table string, indexEntries []IndexEntry, columnEntries []ColumnEntry, q Quoter, opts SchemaOptions) (*TableSchema, error) {
	if len(columnEntries) == 0 {
		return nil, notFoundf("table %s not found or has no columns", table)
	}
	types := make(map[string]ColumnEntry, len(columnEntries))
	for _, c := range columnEntries {
		types[strings.ToLower(c.Name)] = c
	}
	lookup := func(name string) (ColumnEntry, error) {
		c, ok := types[strings.ToLower(name)]
		if !ok {
			return ColumnEntry{}, notFoundf("can't find column %s in table %s", name, table)
		}
		return c, nil
	}

	indexes := groupIndexes(indexEntries)

	pkInfo, found := choosePrimaryKey(indexes)
	if !found {
		if !opts.NonTraversing {
			return nil, configErrorf("table %s must have a primary key", table)
		}
		// Without any key every column identifies the row.
		pkInfo = IndexInfo{Name: "", Unique: false}
		for _, c := range columnEntries {
			pkInfo.Columns = append(pkInfo.Columns, c.Name)
		}
	}

	var tkInfo *IndexInfo
	switch {
	case opts.KeyName != "":
		idx, ok := findIndex(indexes, opts.KeyName)
		if !ok {
			return nil, notFoundf("BTREE index %s not found in %s", opts.KeyName, table)
		}
		if !idx.Eligible {
			return nil, configErrorf("index %s on %s cannot be traversed: %s", idx.Name, table, idx.Reason)
		}
		tkInfo = &idx
	case !opts.NonTraversing:
		tkInfo = &pkInfo
	}

	copyMode := opts.DestTable != ""
	if copyMode {
		if strings.EqualFold(opts.DestTable, table) {
			return nil, configErrorf("can't copy rows from table %s into itself", table)
		}
		if tkInfo == nil {
			return nil, configErrorf("copy mode requires a traversal key")
		}
		if opts.FirstOnly {
			return nil, configErrorf("first-only traversal would insert duplicate rows in copy mode")
		}
	}

	destNames := make(map[string]string, len(opts.DestColumns))
	for src, dest := range opts.DestColumns {
		if _, err := lookup(src); err != nil {
			return nil, err
		}
		destNames[strings.ToLower(src)] = dest
	}

	// Phase one: the ordered, de-duplicated column set.
	var names []string
	seen := make(map[string]bool)
	add := func(cols []string) {
		for _, name := range cols {
			if !seen[strings.ToLower(name)] {
				seen[strings.ToLower(name)] = true
				names = append(names, name)
			}
		}
	}
	add(opts.ExtraColumns)
	add(pkInfo.Columns)
	if tkInfo != nil {
		add(tkInfo.Columns)
	}

	// Phase two: resolve positions and types against the final list.
	s := &TableSchema{
		Name:      table,
		DestTable: table,
		Indexes:   indexes,
		quoter:    q,
	}
	if copyMode {
		s.DestTable = opts.DestTable
	}
	positions := make(map[string]int, len(names))
	for i, name := range names {
		entry, err := lookup(name)
		if err != nil {
			return nil, err
		}
		positions[strings.ToLower(name)] = i
		s.Columns = append(s.Columns, Column{
			Name:     entry.Name,
			Type:     entry.DataType,
			DestName: destNames[strings.ToLower(name)],
			Position: i,
		})
	}

	s.PrimaryKey = s.resolveIndex(pkInfo, positions)
	s.PrimaryKey.Ascending = true
	if tkInfo != nil {
		tk := s.resolveIndex(*tkInfo, positions)
		tk.Ascending = !opts.Reverse
		tk.FirstOnly = opts.FirstOnly
		s.TraversingKey = &tk
	}
	return s, nil
}

func (s *TableSchema) resolveIndex(info IndexInfo, positions map[string]int) Index {
	ix := Index{Name: info.Name, Unique: info.Unique}
	for _, name := range info.Columns {
		ix.Columns = append(ix.Columns, s.Columns[positions[strings.ToLower(name)]])
	}
	return ix
}

func (s *TableSchema) CopyMode() bool {
	return !strings.EqualFold(s.DestTable, s.Name)
}

func (s *TableSchema) ColumnNames() []string {
	names := make([]string, len(s.Columns))
	for i, c := range s.Columns {
		names[i] = c.Name
	}
	return names
}

// InitialQuery returns the bounded query fetching the first chunk.
func (s *TableSchema) InitialQuery(limit int, filter string) Query {
	q := Query{
		Columns: make([]string, len(s.Columns)),
		Table:   QuoteIdentifier(s.Name),
		Filter:  strings.TrimSpace(filter),
		Limit:   limit,
	}
	for i, c := range s.Columns {
		q.Columns[i] = c.QuotedName()
	}
	if s.TraversingKey != nil {
		q.ForceIndex = QuoteIdentifier(s.TraversingKey.Name)
		q.OrderBy = s.TraversingKey.OrderBy()
	}
	return q
}

// NextChunkQuery derives the query for the chunk following lastRow. Without a
// traversal key the processed rows are gone, so the query is unchanged.
func (s *TableSchema) NextChunkQuery(q Query, lastRow []any) Query {
	if s.TraversingKey == nil {
		return q
	}
	return q.WithChunk(s.TraversingKey.ChunkClause(lastRow, s.quoter))
}

// InsertStatement renders one multi-row INSERT into the destination table.
func (s *TableSchema) InsertStatement(rows [][]any) string {
	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(QuoteIdentifier(s.DestTable))
	b.WriteString(" (")
	for i, c := range s.Columns {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(c.QuotedDestName())
	}
	b.WriteString(") VALUES ")
	for r, row := range rows {
		if r > 0 {
			b.WriteByte(',')
		}
		b.WriteByte('(')
		for i, c := range s.Columns {
			if i > 0 {
				b.WriteByte(',')
			}
			b.WriteString(c.QuotedValue(row, s.quoter))
		}
		b.WriteByte(')')
	}
	return b.String()
}

// DeleteStatement renders one DELETE matching the primary key of every row.
func (s *TableSchema) DeleteStatement(rows [][]any) string {
	var b strings.Builder
	b.WriteString("DELETE FROM ")
	b.WriteString(QuoteIdentifier(s.DestTable))
	b.WriteString(" WHERE ")
	for i, row := range rows {
		if i > 0 {
			b.WriteString(" OR ")
		}
		b.WriteByte('(')
		b.WriteString(s.PrimaryKey.MatchClause(row, s.quoter))
		b.WriteByte(')')
	}
	return b.String()
}
