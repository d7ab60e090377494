package domain

import (
	"strconv"
	"strings"
)

// Query is a chunk query as a value: rendering it has no side effects and a
// restarted process can rebuild the same query from the data alone.
type Query struct {
	Columns    []string // quoted select columns
	Table      string   // quoted table name
	ForceIndex string   // quoted index name
	Filter     string   // caller-supplied predicate
	Chunk      string   // keyset predicate for chunks after the first
	OrderBy    string
	Limit      int
}

func (q Query) WithChunk(clause string) Query {
	q.Chunk = clause
	return q
}

func (q Query) WithLimit(limit int) Query {
	q.Limit = limit
	return q
}

// SQL renders the query on one line.
func (q Query) SQL() string {
	return strings.Join(q.clauses(), " ")
}

// Format renders the query one clause per line, each line prefixed by indent.
func (q Query) Format(indent string) string {
	lines := q.clauses()
	for i := range lines {
		lines[i] = indent + lines[i]
	}
	return strings.Join(lines, "\n")
}

func (q Query) clauses() []string {
	from := "FROM " + q.Table
	if q.ForceIndex != "" {
		from += " FORCE INDEX(" + q.ForceIndex + ")"
	}
	clauses := []string{"SELECT " + strings.Join(q.Columns, ","), from}

	var where []string
	if q.Filter != "" {
		where = append(where, "("+q.Filter+")")
	}
	if q.Chunk != "" {
		where = append(where, "("+q.Chunk+")")
	}
	if len(where) > 0 {
		clauses = append(clauses, "WHERE "+strings.Join(where, " AND "))
	}
	if q.OrderBy != "" {
		clauses = append(clauses, "ORDER BY "+q.OrderBy)
	}
	if q.Limit > 0 {
		clauses = append(clauses, "LIMIT "+strconv.Itoa(q.Limit))
	}
	return clauses
}

// FormatStatement breaks a generated DELETE or INSERT before its top-level
// clauses for display. Quoted literals and identifiers are left intact.
func FormatStatement(indent, stmt string) string {
	keywords := []string{" FROM ", " WHERE ", " VALUES "}
	var b strings.Builder
	b.WriteString(indent)
	var quote byte
	for i := 0; i < len(stmt); i++ {
		c := stmt[i]
		if quote != 0 {
			b.WriteByte(c)
			switch {
			case c == '\\' && quote == '\'' && i+1 < len(stmt):
				i++
				b.WriteByte(stmt[i])
			case c == quote:
				quote = 0
			}
			continue
		}
		if c == '\'' || c == '`' {
			quote = c
			b.WriteByte(c)
			continue
		}
		broke := false
		for _, kw := range keywords {
			if strings.HasPrefix(stmt[i:], kw) {
				b.WriteByte('\n')
				b.WriteString(indent)
				b.WriteString(kw[1:])
				i += len(kw) - 1
				broke = true
				break
			}
		}
		if !broke {
			b.WriteByte(c)
		}
	}
	return b.String()
}
