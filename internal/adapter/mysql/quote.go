package mysql

import (
	"encoding/hex"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var numericLiteral = regexp.MustCompile(`^[-+]?(\d+\.?\d*|\.\d+)([eE][-+]?\d+)?$`)

var literalEscaper = strings.NewReplacer(
	`\`, `\\`,
	`'`, `\'`,
	"\x00", `\0`,
	"\n", `\n`,
	"\r", `\r`,
	"\x1a", `\Z`,
)

func isBinaryType(dataType string) bool {
	switch strings.ToLower(dataType) {
	case "binary", "varbinary", "blob", "tinyblob", "mediumblob", "longblob", "bit", "geometry":
		return true
	}
	return false
}

func isNumericType(dataType string) bool {
	switch strings.ToLower(dataType) {
	case "tinyint", "smallint", "mediumint", "int", "integer", "bigint",
		"decimal", "numeric", "float", "double", "real", "year":
		return true
	}
	return false
}

// QuoteLiteral renders v as a MySQL literal for a column of dataType.
func (c *Conn) QuoteLiteral(v any, dataType string) string {
	return QuoteLiteral(v, dataType)
}

func QuoteLiteral(v any, dataType string) string {
	switch val := v.(type) {
	case nil:
		return "NULL"
	case bool:
		if val {
			return "1"
		}
		return "0"
	case int:
		return strconv.Itoa(val)
	case int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return fmt.Sprintf("%d", val)
	case float32:
		return strconv.FormatFloat(float64(val), 'g', -1, 32)
	case float64:
		return strconv.FormatFloat(val, 'g', -1, 64)
	case time.Time:
		return quoteTime(val, dataType)
	case []byte:
		if isBinaryType(dataType) {
			return "X'" + hex.EncodeToString(val) + "'"
		}
		return quoteText(string(val), dataType)
	case string:
		if isBinaryType(dataType) {
			return "X'" + hex.EncodeToString([]byte(val)) + "'"
		}
		return quoteText(val, dataType)
	default:
		return quoteText(fmt.Sprint(val), dataType)
	}
}

func quoteText(s, dataType string) string {
	if isNumericType(dataType) && numericLiteral.MatchString(s) {
		return s
	}
	return "'" + literalEscaper.Replace(s) + "'"
}

func quoteTime(t time.Time, dataType string) string {
	// The driver scans MySQL's zero date into the zero time.Time.
	if t.IsZero() {
		if strings.EqualFold(dataType, "date") {
			return "'0000-00-00'"
		}
		return "'0000-00-00 00:00:00'"
	}
	if strings.EqualFold(dataType, "date") {
		return "'" + t.Format("2006-01-02") + "'"
	}
	if t.Nanosecond() != 0 {
		return "'" + t.Format("2006-01-02 15:04:05.000000") + "'"
	}
	return "'" + t.Format("2006-01-02 15:04:05") + "'"
}
