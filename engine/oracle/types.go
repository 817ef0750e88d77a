package oracle

import (
	"github.com/alc6/sqlsnap/engine"
)

// fallbackType holds values of types with no Oracle counterpart.
const fallbackType = "VARCHAR2(4000)"

var typeMaps = engine.NewTypeMaps(map[engine.Type]engine.TypeMap{
	engine.Oracle: {
		"varchar2":                       {Native: "VARCHAR2", Sized: true},
		"nvarchar2":                      {Native: "NVARCHAR2", Sized: true},
		"char":                           {Native: "CHAR", Sized: true},
		"nchar":                          {Native: "NCHAR", Sized: true},
		"number":                         {Native: "NUMBER", Decimal: true},
		"float":                          {Native: "FLOAT", Decimal: true},
		"binary_float":                   {Native: "BINARY_FLOAT"},
		"binary_double":                  {Native: "BINARY_DOUBLE"},
		"date":                           {Native: "DATE"},
		"timestamp":                      {Native: "TIMESTAMP"},
		"timestamp with time zone":       {Native: "TIMESTAMP WITH TIME ZONE"},
		"timestamp with local time zone": {Native: "TIMESTAMP WITH LOCAL TIME ZONE"},
		"clob":                           {Native: "CLOB"},
		"nclob":                          {Native: "NCLOB"},
		"blob":                           {Native: "BLOB"},
		"raw":                            {Native: "RAW", Sized: true, DefaultLength: 2000},
		"long":                           {Native: "CLOB"},
		"long raw":                       {Native: "BLOB"},
		"xmltype":                        {Native: "XMLTYPE"},
		"json":                           {Native: "JSON"},
	},
	engine.PostgreSQL: {
		"integer":                     {Native: "NUMBER(10)"},
		"bigint":                      {Native: "NUMBER(19)"},
		"smallint":                    {Native: "NUMBER(5)"},
		"numeric":                     {Native: "NUMBER", Decimal: true},
		"real":                        {Native: "BINARY_FLOAT"},
		"double precision":            {Native: "BINARY_DOUBLE"},
		"money":                       {Native: "NUMBER(19,2)"},
		"character varying":           {Native: "VARCHAR2", Sized: true, DefaultLength: 4000},
		"character":                   {Native: "CHAR", Sized: true},
		"text":                        {Native: "CLOB"},
		"bytea":                       {Native: "BLOB"},
		"boolean":                     {Native: "NUMBER(1)"},
		"date":                        {Native: "DATE"},
		"timestamp without time zone": {Native: "TIMESTAMP"},
		"timestamp with time zone":    {Native: "TIMESTAMP WITH TIME ZONE"},
		"time without time zone":      {Native: "VARCHAR2(32)"},
		"time with time zone":         {Native: "VARCHAR2(32)"},
		"interval":                    {Native: "INTERVAL DAY TO SECOND"},
		"json":                        {Native: "CLOB"},
		"jsonb":                       {Native: "CLOB"},
		"xml":                         {Native: "XMLTYPE"},
		"uuid":                        {Native: "VARCHAR2(36)"},
		"inet":                        {Native: "VARCHAR2(45)"},
		"cidr":                        {Native: "VARCHAR2(45)"},
		"macaddr":                     {Native: "VARCHAR2(17)"},
		"array":                       {Native: "CLOB"},
	},
	engine.MySQL: {
		"tinyint":    {Native: "NUMBER(3)"},
		"smallint":   {Native: "NUMBER(5)"},
		"mediumint":  {Native: "NUMBER(7)"},
		"int":        {Native: "NUMBER(10)"},
		"bigint":     {Native: "NUMBER(19)"},
		"decimal":    {Native: "NUMBER", Decimal: true},
		"float":      {Native: "BINARY_FLOAT"},
		"double":     {Native: "BINARY_DOUBLE"},
		"bit":        {Native: "RAW(8)"},
		"year":       {Native: "NUMBER(4)"},
		"varchar":    {Native: "VARCHAR2", Sized: true, DefaultLength: 4000},
		"char":       {Native: "CHAR", Sized: true},
		"tinytext":   {Native: "VARCHAR2(255)"},
		"text":       {Native: "CLOB"},
		"mediumtext": {Native: "CLOB"},
		"longtext":   {Native: "CLOB"},
		"enum":       {Native: "VARCHAR2(255)"},
		"set":        {Native: "VARCHAR2(4000)"},
		"json":       {Native: "CLOB"},
		"date":       {Native: "DATE"},
		"datetime":   {Native: "TIMESTAMP"},
		"timestamp":  {Native: "TIMESTAMP"},
		"time":       {Native: "VARCHAR2(32)"},
		"binary":     {Native: "RAW", Sized: true, DefaultLength: 2000},
		"varbinary":  {Native: "RAW", Sized: true, DefaultLength: 2000},
		"tinyblob":   {Native: "BLOB"},
		"blob":       {Native: "BLOB"},
		"mediumblob": {Native: "BLOB"},
		"longblob":   {Native: "BLOB"},
	},
})

// RegisterTypeMap adds or overrides Oracle renderings for a source engine.
func RegisterTypeMap(source engine.Type, m engine.TypeMap) {
	typeMaps.Register(source, m)
}
