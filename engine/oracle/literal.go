package oracle

import (
	"encoding/hex"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/godror/godror"

	"github.com/alc6/sqlsnap/engine"
	"github.com/alc6/sqlsnap/schema"
)

// literalChunk bounds each quoted piece of a long character value; string
// literals are limited to 4000 bytes.
const literalChunk = 1000

// FormatValue renders a value scanned by godror as an Oracle literal.
func FormatValue(col schema.TableColumn, v any) string {
	if v == nil {
		return "NULL"
	}

	switch val := v.(type) {
	case godror.Number:
		return string(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case int32:
		return strconv.FormatInt(int64(val), 10)
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
		return formatTime(col.UDTName, val)
	case []byte:
		if isBinary(col.UDTName) {
			return "HEXTORAW('" + strings.ToUpper(hex.EncodeToString(val)) + "')"
		}
		return quoteText(col.UDTName, string(val))
	case string:
		return quoteText(col.UDTName, val)
	}
	return quoteText(col.UDTName, fmt.Sprint(v))
}

func isBinary(udt string) bool {
	switch udt {
	case "BLOB", "RAW", "LONG RAW":
		return true
	}
	return false
}

func formatFloat(f float64) string {
	switch {
	case math.IsNaN(f):
		return "BINARY_DOUBLE_NAN"
	case math.IsInf(f, 1):
		return "BINARY_DOUBLE_INFINITY"
	case math.IsInf(f, -1):
		return "-BINARY_DOUBLE_INFINITY"
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}

func formatTime(udt string, t time.Time) string {
	switch udt {
	case "DATE":
		return fmt.Sprintf("TO_DATE('%s', 'YYYY-MM-DD HH24:MI:SS')", t.Format("2006-01-02 15:04:05"))
	case "TIMESTAMP WITH TIME ZONE", "TIMESTAMP WITH LOCAL TIME ZONE":
		return fmt.Sprintf("TO_TIMESTAMP_TZ('%s', 'YYYY-MM-DD HH24:MI:SS.FF6 TZH:TZM')", t.Format("2006-01-02 15:04:05.000000 -07:00"))
	}
	return fmt.Sprintf("TO_TIMESTAMP('%s', 'YYYY-MM-DD HH24:MI:SS.FF6')", t.Format("2006-01-02 15:04:05.000000"))
}

// quoteText quotes character data. Large object values longer than one
// literal are concatenated from TO_CLOB pieces.
func quoteText(udt, s string) string {
	if (udt != "CLOB" && udt != "NCLOB") || utf8.RuneCountInString(s) <= literalChunk {
		return engine.QuoteString(s)
	}

	var parts []string
	for len(s) > 0 {
		n, cut := 0, 0
		for cut < len(s) && n < literalChunk {
			_, size := utf8.DecodeRuneInString(s[cut:])
			cut += size
			n++
		}
		parts = append(parts, "TO_CLOB("+engine.QuoteString(s[:cut])+")")
		s = s[cut:]
	}
	return strings.Join(parts, " || ")
}
