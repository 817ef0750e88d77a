package postgres

import (
	"github.com/alc6/sqlsnap/engine"
)

var typeMaps = engine.NewTypeMaps(map[engine.Type]engine.TypeMap{
	engine.PostgreSQL: {
		"character varying":           {Native: "VARCHAR", Sized: true},
		"character":                   {Native: "CHAR", Sized: true},
		"text":                        {Native: "TEXT"},
		"integer":                     {Native: "INTEGER"},
		"bigint":                      {Native: "BIGINT"},
		"smallint":                    {Native: "SMALLINT"},
		"boolean":                     {Native: "BOOLEAN"},
		"real":                        {Native: "REAL"},
		"double precision":            {Native: "DOUBLE PRECISION"},
		"numeric":                     {Native: "NUMERIC", Decimal: true},
		"money":                       {Native: "MONEY"},
		"timestamp without time zone": {Native: "TIMESTAMP"},
		"timestamp with time zone":    {Native: "TIMESTAMPTZ"},
		"date":                        {Native: "DATE"},
		"time without time zone":      {Native: "TIME"},
		"time with time zone":         {Native: "TIMETZ"},
		"interval":                    {Native: "INTERVAL"},
		"uuid":                        {Native: "UUID"},
		"json":                        {Native: "JSON"},
		"jsonb":                       {Native: "JSONB"},
		"xml":                         {Native: "XML"},
		"bytea":                       {Native: "BYTEA"},
		"bit":                         {Native: "BIT", Sized: true},
		"bit varying":                 {Native: "VARBIT", Sized: true},
		"cidr":                        {Native: "CIDR"},
		"inet":                        {Native: "INET"},
		"macaddr":                     {Native: "MACADDR"},
		"tsvector":                    {Native: "TSVECTOR"},
		"tsquery":                     {Native: "TSQUERY"},
	},
	engine.Oracle: {
		"varchar2":                       {Native: "VARCHAR", Sized: true},
		"nvarchar2":                      {Native: "VARCHAR", Sized: true},
		"char":                           {Native: "CHAR", Sized: true},
		"nchar":                          {Native: "CHAR", Sized: true},
		"clob":                           {Native: "TEXT"},
		"nclob":                          {Native: "TEXT"},
		"long":                           {Native: "TEXT"},
		"number":                         {Native: "NUMERIC", Decimal: true},
		"float":                          {Native: "DOUBLE PRECISION"},
		"binary_float":                   {Native: "REAL"},
		"binary_double":                  {Native: "DOUBLE PRECISION"},
		"date":                           {Native: "TIMESTAMP(0)"},
		"timestamp":                      {Native: "TIMESTAMP"},
		"timestamp with time zone":       {Native: "TIMESTAMPTZ"},
		"timestamp with local time zone": {Native: "TIMESTAMPTZ"},
		"blob":                           {Native: "BYTEA"},
		"raw":                            {Native: "BYTEA"},
		"long raw":                       {Native: "BYTEA"},
		"xmltype":                        {Native: "XML"},
		"json":                           {Native: "JSONB"},
	},
	engine.MySQL: {
		"varchar":    {Native: "VARCHAR", Sized: true},
		"char":       {Native: "CHAR", Sized: true},
		"tinytext":   {Native: "TEXT"},
		"text":       {Native: "TEXT"},
		"mediumtext": {Native: "TEXT"},
		"longtext":   {Native: "TEXT"},
		"enum":       {Native: "TEXT"},
		"set":        {Native: "TEXT"},
		"tinyint":    {Native: "SMALLINT"},
		"smallint":   {Native: "SMALLINT"},
		"year":       {Native: "SMALLINT"},
		"mediumint":  {Native: "INTEGER"},
		"int":        {Native: "INTEGER"},
		"bigint":     {Native: "BIGINT"},
		"decimal":    {Native: "NUMERIC", Decimal: true},
		"float":      {Native: "REAL"},
		"double":     {Native: "DOUBLE PRECISION"},
		"bit":        {Native: "BIT", Sized: true},
		"date":       {Native: "DATE"},
		"datetime":   {Native: "TIMESTAMP"},
		"timestamp":  {Native: "TIMESTAMP"},
		"time":       {Native: "TIME"},
		"json":       {Native: "JSONB"},
		"binary":     {Native: "BYTEA"},
		"varbinary":  {Native: "BYTEA"},
		"tinyblob":   {Native: "BYTEA"},
		"blob":       {Native: "BYTEA"},
		"mediumblob": {Native: "BYTEA"},
		"longblob":   {Native: "BYTEA"},
	},
})

// RegisterTypeMap adds or overrides PostgreSQL renderings for a source engine.
func RegisterTypeMap(source engine.Type, m engine.TypeMap) {
	typeMaps.Register(source, m)
}
