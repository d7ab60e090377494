package domain

import (
	"fmt"
	"strings"
)

// IndexEntry is one row of a table's index catalog: one column of one index.
type IndexEntry struct {
	IndexName  string
	ColumnName string // empty for functional key-parts
	SeqInIndex int
	NonUnique  bool
	IndexType  string // BTREE, HASH, FULLTEXT, SPATIAL
	HasPrefix  bool   // SUB_PART set
}

// ColumnEntry is one row of a table's column catalog.
type ColumnEntry struct {
	Name     string
	DataType string
	Ordinal  int
}

// IndexInfo summarizes an index found in the catalog.
type IndexInfo struct {
	Name     string   `json:"name"`
	Columns  []string `json:"columns"`
	Unique   bool     `json:"unique"`
	Type     string   `json:"type"`
	Eligible bool     `json:"eligible"`
	Reason   string   `json:"reason,omitempty"`
}

type catalogIndex struct {
	info        IndexInfo
	hasPrefix   bool
	hasFunction bool
}

// groupIndexes folds catalog rows into indexes, preserving the order in which
// each index is first seen.
func groupIndexes(entries []IndexEntry) []IndexInfo {
	byName := make(map[string]*catalogIndex)
	var order []string
	for _, e := range entries {
		key := strings.ToLower(e.IndexName)
		idx, ok := byName[key]
		if !ok {
			idx = &catalogIndex{info: IndexInfo{
				Name:   e.IndexName,
				Unique: !e.NonUnique,
				Type:   strings.ToUpper(e.IndexType),
			}}
			byName[key] = idx
			order = append(order, key)
		}
		if e.HasPrefix {
			idx.hasPrefix = true
		}
		if e.ColumnName == "" {
			idx.hasFunction = true
			continue
		}
		idx.info.Columns = append(idx.info.Columns, e.ColumnName)
	}

	indexes := make([]IndexInfo, 0, len(order))
	for _, key := range order {
		idx := byName[key]
		reason, unsupported := indexUnsupportedReason(idx)
		idx.info.Eligible = !unsupported
		idx.info.Reason = reason
		indexes = append(indexes, idx.info)
	}
	return indexes
}

func indexUnsupportedReason(idx *catalogIndex) (string, bool) {
	if idx.hasFunction {
		return "functional key-parts cannot be traversed", true
	}
	if len(idx.info.Columns) == 0 {
		return "index has no plain column key-parts", true
	}
	if strings.EqualFold(idx.info.Name, primaryKeyName) {
		return "", false
	}
	if idx.hasPrefix {
		return "prefix indexes cannot order full column values", true
	}
	if idx.info.Type != "" && idx.info.Type != "BTREE" {
		return fmt.Sprintf("index type %q is not supported for traversal", idx.info.Type), true
	}
	return "", false
}

// choosePrimaryKey picks the row-identifying index: the primary key, else the
// first unique index, else the first non-unique BTREE index.
func choosePrimaryKey(indexes []IndexInfo) (IndexInfo, bool) {
	for _, idx := range indexes {
		if idx.Eligible && strings.EqualFold(idx.Name, primaryKeyName) {
			return idx, true
		}
	}
	for _, idx := range indexes {
		if idx.Eligible && idx.Unique {
			return idx, true
		}
	}
	for _, idx := range indexes {
		if idx.Eligible {
			return idx, true
		}
	}
	return IndexInfo{}, false
}

func findIndex(indexes []IndexInfo, name string) (IndexInfo, bool) {
	for _, idx := range indexes {
		if strings.EqualFold(idx.Name, name) {
			return idx, true
		}
	}
	return IndexInfo{}, false
}
