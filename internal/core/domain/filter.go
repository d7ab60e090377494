package domain

import (
	"fmt"
	"strings"

	pg_query "github.com/pganalyze/pg_query_go/v6"
)

// NormalizeFilter checks that a caller-supplied predicate is a single SQL
// fragment and returns it trimmed. An empty filter is allowed and means "no
// filter". The split is lexical, so MySQL-only syntax inside the predicate is
// accepted as long as statements cannot be stacked behind it.
func NormalizeFilter(filter string) (string, error) {
	trimmed := strings.TrimSpace(filter)
	if trimmed == "" {
		return "", nil
	}

	masked := maskBacktickIdentifiers(trimmed)
	stmts, err := pg_query.SplitWithScanner(masked, true)
	if err != nil {
		return "", fmt.Errorf("%w: %w: %w", ErrConfiguration, ErrParseFailed, err)
	}

	var parts []string
	for _, s := range stmts {
		if s = strings.TrimSpace(s); s != "" {
			parts = append(parts, s)
		}
	}
	switch len(parts) {
	case 0:
		return "", fmt.Errorf("%w: %w", ErrConfiguration, ErrEmptyFilter)
	case 1:
		// Masking keeps byte offsets, so the statement maps back onto the
		// caller's text.
		start := strings.Index(masked, parts[0])
		if start < 0 {
			return parts[0], nil
		}
		return trimmed[start : start+len(parts[0])], nil
	default:
		return "", fmt.Errorf("%w: %w", ErrConfiguration, ErrMultiStatement)
	}
}

// maskBacktickIdentifiers rewrites every `identifier` outside string literals
// as a double-quoted identifier of the same length, so the PostgreSQL scanner
// does not read a ';' inside it as a statement break.
func maskBacktickIdentifiers(sql string) string {
	b := []byte(sql)
	var quote byte
	for i, c := range b {
		switch {
		case quote == 0 && (c == '\'' || c == '"' || c == '`'):
			quote = c
		case quote != 0 && c == quote:
			quote = 0
		case quote == '`':
			b[i] = 'x'
			continue
		default:
			continue
		}
		if c == '`' {
			b[i] = '"'
		}
	}
	return string(b)
}
