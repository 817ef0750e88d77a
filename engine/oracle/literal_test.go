package oracle

import (
	"math"
	"strings"
	"testing"
	"time"

	"github.com/godror/godror"
	"github.com/stretchr/testify/assert"

	"github.com/alc6/sqlsnap/schema"
)

func TestFormatValue(t *testing.T) {
	ts := time.Date(2024, 3, 9, 14, 5, 7, 123456000, time.FixedZone("", 3600))

	tests := []struct {
		name string
		udt  string
		v    any
		want string
	}{
		{"null", "VARCHAR2", nil, "NULL"},
		{"number", "NUMBER", godror.Number("12.50"), "12.50"},
		{"int", "NUMBER", int64(-3), "-3"},
		{"binary_double_nan", "BINARY_DOUBLE", math.NaN(), "BINARY_DOUBLE_NAN"},
		{"bool", "NUMBER", true, "1"},
		{"text_quotes_doubled", "VARCHAR2", "O'Hare", "'O''Hare'"},
		{"backslash_is_literal", "VARCHAR2", `C:\temp`, `'C:\temp'`},
		{"blob", "BLOB", []byte{0xde, 0xad}, "HEXTORAW('DEAD')"},
		{"raw_bytes_as_text", "CHAR", []byte("ab"), "'ab'"},
		{"date", "DATE", ts, "TO_DATE('2024-03-09 14:05:07', 'YYYY-MM-DD HH24:MI:SS')"},
		{"timestamp", "TIMESTAMP", ts, "TO_TIMESTAMP('2024-03-09 14:05:07.123456', 'YYYY-MM-DD HH24:MI:SS.FF6')"},
		{"timestamp_tz", "TIMESTAMP WITH TIME ZONE", ts, "TO_TIMESTAMP_TZ('2024-03-09 14:05:07.123456 +01:00', 'YYYY-MM-DD HH24:MI:SS.FF6 TZH:TZM')"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatValue(schema.TableColumn{UDTName: tt.udt}, tt.v))
		})
	}
}

func TestFormatLongClob(t *testing.T) {
	value := strings.Repeat("é", 2500)

	got := FormatValue(schema.TableColumn{UDTName: "CLOB"}, value)

	assert.Equal(t, 3, strings.Count(got, "TO_CLOB("))
	assert.True(t, strings.HasPrefix(got, "TO_CLOB('"+strings.Repeat("é", 1000)+"') || "))
	assert.True(t, strings.HasSuffix(got, " || TO_CLOB('"+strings.Repeat("é", 500)+"')"))
}

func TestInspectorHelpers(t *testing.T) {
	t.Run("base_type_drops_precision", func(t *testing.T) {
		assert.Equal(t, "TIMESTAMP WITH TIME ZONE", baseType("TIMESTAMP(6) WITH TIME ZONE"))
		assert.Equal(t, "VARCHAR2", baseType("VARCHAR2"))
	})

	t.Run("display_type", func(t *testing.T) {
		assert.Equal(t, "VARCHAR2(30)", displayType(schema.TableColumn{UDTName: "VARCHAR2", DataType: "VARCHAR2", CharacterLength: nullInt(30)}))
		assert.Equal(t, "NUMBER(10,2)", displayType(schema.TableColumn{UDTName: "NUMBER", DataType: "NUMBER", NumericPrecision: nullInt(10), NumericScale: nullInt(2)}))
		assert.Equal(t, "NUMBER", displayType(schema.TableColumn{UDTName: "NUMBER", DataType: "NUMBER"}))
		assert.Equal(t, "DATE", displayType(schema.TableColumn{UDTName: "DATE", DataType: "DATE"}))
	})

	t.Run("sequence_bounds_are_clamped", func(t *testing.T) {
		assert.Equal(t, int64(20), parseBound("20"))
		assert.Equal(t, int64(math.MaxInt64), parseBound("9999999999999999999999999999"))
		assert.Equal(t, int64(math.MinInt64), parseBound("-9999999999999999999999999999"))
	})

	t.Run("system_not_null_checks", func(t *testing.T) {
		assert.True(t, notNullCheck.MatchString(`"EMAIL" IS NOT NULL`))
		assert.False(t, notNullCheck.MatchString(`total >= 0`))
	})
}
