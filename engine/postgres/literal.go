package postgres

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/alc6/sqlsnap/schema"
)

var numericTypes = map[string]bool{
	"int2":    true,
	"int4":    true,
	"int8":    true,
	"float4":  true,
	"float8":  true,
	"numeric": true,
	"oid":     true,
}

// FormatValue renders a value scanned by lib/pq as a PostgreSQL literal.
// lib/pq returns most types as raw text, so the column type drives the
// rendering rather than the Go type.
func FormatValue(col schema.TableColumn, v any) string {
	if v == nil {
		return "NULL"
	}

	if col.DataType == "ARRAY" {
		return formatArray(col, v)
	}

	switch val := v.(type) {
	case bool:
		if val {
			return "TRUE"
		}
		return "FALSE"
	case int64:
		return strconv.FormatInt(val, 10)
	case float64:
		return formatFloat(val)
	case time.Time:
		return quoteLiteral(formatTime(col.UDTName, val))
	}

	text := asText(v)
	switch {
	case col.UDTName == "bytea":
		return byteaLiteral(v)
	case numericTypes[col.UDTName]:
		if f, err := strconv.ParseFloat(text, 64); err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return quoteLiteral(text)
		}
		return text
	case col.UDTName == "bool":
		if text == "t" || text == "true" {
			return "TRUE"
		}
		return "FALSE"
	case col.UDTName == "json" || col.UDTName == "jsonb":
		return quoteLiteral(text) + "::" + col.UDTName
	}
	return quoteLiteral(text)
}

func asText(v any) string {
	switch val := v.(type) {
	case []byte:
		return string(val)
	case string:
		return val
	}
	return fmt.Sprint(v)
}

func formatFloat(f float64) string {
	switch {
	case math.IsNaN(f):
		return "'NaN'"
	case math.IsInf(f, 1):
		return "'Infinity'"
	case math.IsInf(f, -1):
		return "'-Infinity'"
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}

func formatTime(udt string, t time.Time) string {
	switch udt {
	case "date":
		return t.Format("2006-01-02")
	case "time":
		return t.Format("15:04:05.999999")
	case "timetz":
		return t.Format("15:04:05.999999-07:00")
	case "timestamp":
		return t.Format("2006-01-02 15:04:05.999999")
	}
	return t.Format("2006-01-02 15:04:05.999999-07:00")
}

func byteaLiteral(v any) string {
	b, ok := v.([]byte)
	if !ok {
		b = []byte(asText(v))
	}
	return `E'\\x` + hex.EncodeToString(b) + `'::bytea`
}

// quoteLiteral quotes s, switching to an escape string when it holds
// backslashes so the result loads whatever standard_conforming_strings is.
func quoteLiteral(s string) string {
	return strings.TrimSpace(pq.QuoteLiteral(s))
}

// formatArray renders an array column selected through array_to_json as an
// ARRAY constructor cast to the column's array type.
func formatArray(col schema.TableColumn, v any) string {
	elem := elementType(col.UDTName)

	dec := json.NewDecoder(bytes.NewReader([]byte(asText(v))))
	dec.UseNumber()

	var items []any
	if err := dec.Decode(&items); err != nil {
		return quoteLiteral(asText(v)) + "::" + elem + "[]"
	}
	if len(items) == 0 {
		return "'{}'::" + elem + "[]"
	}
	return arrayConstructor(items, numericTypes[elem]) + "::" + elem + "[]"
}

func arrayConstructor(items []any, numeric bool) string {
	parts := make([]string, len(items))
	for i, item := range items {
		parts[i] = arrayElement(item, numeric)
	}
	return "ARRAY[" + strings.Join(parts, ", ") + "]"
}

func arrayElement(item any, numeric bool) string {
	switch val := item.(type) {
	case nil:
		return "NULL"
	case bool:
		if val {
			return "TRUE"
		}
		return "FALSE"
	case json.Number:
		if numeric {
			return val.String()
		}
		return quoteLiteral(val.String())
	case string:
		return quoteLiteral(val)
	case []any:
		return arrayConstructor(val, numeric)
	}

	raw, err := json.Marshal(item)
	if err != nil {
		return "NULL"
	}
	return quoteLiteral(string(raw))
}
