package mysql

import (
	"github.com/alc6/sqlsnap/engine"
)

// fallbackType holds values of types with no MySQL counterpart.
const fallbackType = "LONGTEXT"

// MySQL sources keep their COLUMN_TYPE verbatim, so only foreign engines
// need a table.
var typeMaps = engine.NewTypeMaps(map[engine.Type]engine.TypeMap{
	engine.PostgreSQL: {
		"integer":                     {Native: "INT"},
		"bigint":                      {Native: "BIGINT"},
		"smallint":                    {Native: "SMALLINT"},
		"numeric":                     {Native: "DECIMAL", Decimal: true, Unsized: "DECIMAL(65,30)"},
		"real":                        {Native: "FLOAT"},
		"double precision":            {Native: "DOUBLE"},
		"money":                       {Native: "DECIMAL(19,2)"},
		"character varying":           {Native: "VARCHAR", Sized: true, Unsized: "LONGTEXT"},
		"character":                   {Native: "CHAR", Sized: true, Unsized: "CHAR(1)"},
		"text":                        {Native: "LONGTEXT"},
		"bytea":                       {Native: "LONGBLOB"},
		"boolean":                     {Native: "TINYINT(1)"},
		"date":                        {Native: "DATE"},
		"timestamp without time zone": {Native: "DATETIME(6)"},
		"timestamp with time zone":    {Native: "DATETIME(6)"},
		"time without time zone":      {Native: "TIME(6)"},
		"time with time zone":         {Native: "TIME(6)"},
		"interval":                    {Native: "VARCHAR(64)"},
		"json":                        {Native: "JSON"},
		"jsonb":                       {Native: "JSON"},
		"array":                       {Native: "JSON"},
		"uuid":                        {Native: "CHAR(36)"},
		"inet":                        {Native: "VARCHAR(45)"},
		"cidr":                        {Native: "VARCHAR(45)"},
		"macaddr":                     {Native: "VARCHAR(17)"},
		"xml":                         {Native: "LONGTEXT"},
		"bit":                         {Native: "BIT", Sized: true},
		"bit varying":                 {Native: "BIT", Sized: true, Unsized: "BIT(64)"},
	},
	engine.Oracle: {
		"varchar2":                       {Native: "VARCHAR", Sized: true, Unsized: "LONGTEXT"},
		"nvarchar2":                      {Native: "VARCHAR", Sized: true, Unsized: "LONGTEXT"},
		"char":                           {Native: "CHAR", Sized: true},
		"nchar":                          {Native: "CHAR", Sized: true},
		"number":                         {Native: "DECIMAL", Decimal: true, Unsized: "DECIMAL(65,30)"},
		"float":                          {Native: "DOUBLE"},
		"binary_float":                   {Native: "FLOAT"},
		"binary_double":                  {Native: "DOUBLE"},
		"date":                           {Native: "DATETIME"},
		"timestamp":                      {Native: "DATETIME(6)"},
		"timestamp with time zone":       {Native: "DATETIME(6)"},
		"timestamp with local time zone": {Native: "DATETIME(6)"},
		"clob":                           {Native: "LONGTEXT"},
		"nclob":                          {Native: "LONGTEXT"},
		"long":                           {Native: "LONGTEXT"},
		"blob":                           {Native: "LONGBLOB"},
		"raw":                            {Native: "VARBINARY", Sized: true, Unsized: "VARBINARY(2000)"},
		"long raw":                       {Native: "LONGBLOB"},
		"xmltype":                        {Native: "LONGTEXT"},
		"json":                           {Native: "JSON"},
	},
})

// RegisterTypeMap adds or overrides MySQL renderings for a source engine.
func RegisterTypeMap(source engine.Type, m engine.TypeMap) {
	typeMaps.Register(source, m)
}
