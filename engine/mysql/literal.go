package mysql

import (
	"encoding/hex"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/alc6/sqlsnap/schema"
)

var numericTypes = map[string]bool{
	"tinyint":   true,
	"smallint":  true,
	"mediumint": true,
	"int":       true,
	"bigint":    true,
	"decimal":   true,
	"float":     true,
	"double":    true,
	"year":      true,
}

var binaryTypes = map[string]bool{
	"binary":     true,
	"varbinary":  true,
	"tinyblob":   true,
	"blob":       true,
	"mediumblob": true,
	"longblob":   true,
	"bit":        true,
	"geometry":   true,
	"point":      true,
	"polygon":    true,
	"linestring": true,
}

// FormatValue renders a value scanned by go-sql-driver as a MySQL literal.
// Text protocol values arrive as raw bytes, so the column type drives the
// rendering.
func FormatValue(col schema.TableColumn, v any) string {
	if v == nil {
		return "NULL"
	}

	switch val := v.(type) {
	case int64:
		return strconv.FormatInt(val, 10)
	case uint64:
		return strconv.FormatUint(val, 10)
	case float64:
		return formatFloat(val)
	case float32:
		return formatFloat(float64(val))
	case bool:
		if val {
			return "1"
		}
		return "0"
	case time.Time:
		return quoteString(val.Format("2006-01-02 15:04:05.999999"))
	case []byte:
		return formatBytes(col.UDTName, val)
	case string:
		return formatBytes(col.UDTName, []byte(val))
	}
	return quoteString(fmt.Sprint(v))
}

func formatBytes(udt string, b []byte) string {
	switch {
	case binaryTypes[udt]:
		if len(b) == 0 {
			return "''"
		}
		return "X'" + strings.ToUpper(hex.EncodeToString(b)) + "'"
	case numericTypes[udt]:
		if _, err := strconv.ParseFloat(string(b), 64); err == nil {
			return string(b)
		}
	case udt == "json":
		return "CAST(" + quoteString(string(b)) + " AS JSON)"
	}
	return quoteString(string(b))
}

func formatFloat(f float64) string {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return "NULL"
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}

var stringEscaper = strings.NewReplacer(
	`\`, `\\`,
	`'`, `\'`,
	"\x00", `\0`,
	"\n", `\n`,
	"\r", `\r`,
	"\x1a", `\Z`,
)

// quoteString quotes s with backslash escapes, the default string syntax of
// the server.
func quoteString(s string) string {
	return "'" + stringEscaper.Replace(s) + "'"
}
