package mysql

import (
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alc6/sqlsnap/engine"
	"github.com/alc6/sqlsnap/schema"
)

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: true}
}

func nullInt(n int64) sql.NullInt64 {
	return sql.NullInt64{Int64: n, Valid: true}
}

func mysqlOrders() *schema.TableMetadata {
	return &schema.TableMetadata{
		Name:   "orders",
		Schema: "shop",
		Columns: []schema.TableColumn{
			{Name: "id", DataType: "int unsigned", UDTName: "int", Identity: schema.IdentityByDefault},
			{Name: "status", DataType: "enum('new','paid')", UDTName: "enum", DefaultValue: nullString("'new'")},
			{Name: "created_at", DataType: "datetime", UDTName: "datetime", DefaultValue: nullString("CURRENT_TIMESTAMP")},
			{Name: "note", DataType: "varchar(200)", UDTName: "varchar", Nullable: true, CharacterLength: nullInt(200)},
		},
		Constraints: []schema.TableConstraint{
			{Name: "PRIMARY", Kind: schema.PrimaryKey, Columns: []string{"id"}},
			{Name: "orders_customer_fk", Kind: schema.ForeignKey, Columns: []string{"customer_id"},
				RefSchema: "shop", RefTable: "customers", RefColumns: []string{"id"}, OnDelete: "CASCADE", OnUpdate: "SET DEFAULT"},
		},
		Indexes: []schema.TableIndex{
			{Name: "orders_note_idx", Definition: "CREATE INDEX `orders_note_idx` ON `shop`.`orders` (`note`(20))", Columns: []string{"note"}},
		},
		Sequences: []schema.TableSequence{
			{Name: "orders_id_seq", StartValue: 1, Increment: 1, LastValue: nullInt(41), OwnedByColumn: "id", Identity: true},
		},
	}
}

func TestGeneratorCreateTable(t *testing.T) {
	g := NewGenerator(engine.MySQL)

	got := g.CreateTable(mysqlOrders())
	want := "CREATE TABLE `shop`.`orders` (\n" +
		"    `id` int unsigned NOT NULL AUTO_INCREMENT,\n" +
		"    `status` enum('new','paid') NOT NULL DEFAULT 'new',\n" +
		"    `created_at` datetime NOT NULL DEFAULT CURRENT_TIMESTAMP,\n" +
		"    `note` varchar(200),\n" +
		"    PRIMARY KEY (`id`)\n" +
		") AUTO_INCREMENT=42;"

	assert.Equal(t, want, got)
}

func TestGeneratorFromPostgres(t *testing.T) {
	g := NewGenerator(engine.PostgreSQL)

	table := &schema.TableMetadata{
		Name:   "orders",
		Schema: "shop",
		Columns: []schema.TableColumn{
			{Name: "id", DataType: "integer", UDTName: "int4", DefaultValue: nullString("nextval('orders_id_seq'::regclass)")},
			{Name: "total", DataType: "numeric", UDTName: "numeric"},
			{Name: "paid", DataType: "boolean", UDTName: "bool", DefaultValue: nullString("false")},
			{Name: "placed", DataType: "timestamp with time zone", UDTName: "timestamptz", DefaultValue: nullString("now()")},
			{Name: "note", DataType: "character varying", UDTName: "varchar", Nullable: true, DefaultValue: nullString("'x'::character varying")},
		},
		Constraints: []schema.TableConstraint{{Name: "orders_pkey", Kind: schema.PrimaryKey, Columns: []string{"id"}}},
		Sequences:   []schema.TableSequence{{Name: "orders_id_seq", StartValue: 1, Increment: 1, LastValue: nullInt(9), OwnedByColumn: "id"}},
	}

	t.Run("sequence_default_becomes_auto_increment", func(t *testing.T) {
		got := g.CreateTable(table)
		assert.Contains(t, got, "`id` INT NOT NULL AUTO_INCREMENT,")
		assert.Contains(t, got, ") AUTO_INCREMENT=10;")
		assert.Empty(t, g.CreateSequence("shop", table.Sequences[0]))
	})

	t.Run("types_and_defaults_are_translated", func(t *testing.T) {
		got := g.CreateTable(table)
		assert.Contains(t, got, "`total` DECIMAL(65,30) NOT NULL,")
		assert.Contains(t, got, "`paid` TINYINT(1) NOT NULL DEFAULT false,")
		assert.Contains(t, got, "`placed` DATETIME(6) NOT NULL DEFAULT CURRENT_TIMESTAMP(6),")
		assert.Contains(t, got, "`note` LONGTEXT DEFAULT ('x'),")
	})

	t.Run("free_sequence_is_reported", func(t *testing.T) {
		stmts := g.CreateSequence("shop", schema.TableSequence{Name: "tickets"})
		require.Len(t, stmts, 1)
		assert.Contains(t, stmts[0], "-- sequence `shop`.`tickets` skipped")
	})
}

func TestGeneratorDeferredObjects(t *testing.T) {
	g := NewGenerator(engine.MySQL)
	table := mysqlOrders()

	t.Run("foreign_key_drops_set_default", func(t *testing.T) {
		stmts := g.CreateConstraints(table)
		require.Len(t, stmts, 1)
		assert.Equal(t,
			"ALTER TABLE `shop`.`orders` ADD CONSTRAINT `orders_customer_fk` FOREIGN KEY (`customer_id`) REFERENCES `shop`.`customers` (`id`) ON DELETE CASCADE;",
			stmts[0])
	})

	t.Run("indexes_reuse_captured_definition", func(t *testing.T) {
		assert.Equal(t, []string{"CREATE INDEX `orders_note_idx` ON `shop`.`orders` (`note`(20));"}, g.CreateIndexes(table))
	})

	t.Run("routines_are_delimited", func(t *testing.T) {
		got := g.CreateObject(schema.DatabaseObject{Definition: "CREATE TRIGGER `t` BEFORE INSERT ON `orders` FOR EACH ROW\nBEGIN SET NEW.note = 'x'; END;"})
		assert.Equal(t, "DELIMITER $$\nCREATE TRIGGER `t` BEFORE INSERT ON `orders` FOR EACH ROW\nBEGIN SET NEW.note = 'x'; END $$\nDELIMITER ;", got)
	})
}

func TestGeneratorFixStatements(t *testing.T) {
	g := NewGenerator(engine.MySQL)
	col := schema.TableColumn{Name: "note", DataType: "varchar(50)", UDTName: "varchar", CharacterLength: nullInt(50)}

	assert.Equal(t, "ALTER TABLE `shop`.`t` ADD COLUMN `note` varchar(50) NOT NULL;", g.AddColumn("shop", "t", col))
	assert.Equal(t, "ALTER TABLE `shop`.`t` MODIFY COLUMN `note` varchar(50) NOT NULL;", g.AlterColumnType("shop", "t", col))
	assert.Equal(t, "ALTER TABLE `shop`.`t` MODIFY COLUMN `note` varchar(50) NOT NULL;", g.AlterColumnNullability("shop", "t", col))
	assert.Equal(t, "ALTER TABLE `shop`.`t` ALTER COLUMN `note` DROP DEFAULT;", g.AlterColumnDefault("shop", "t", col))
	assert.Equal(t, "DROP TRIGGER IF EXISTS `shop`.`t_bi`;", g.DropTrigger(schema.DatabaseObject{Name: "t_bi", Schema: "shop", Table: "t"}))

	pk, err := g.AddConstraint("shop", "t", schema.TableConstraint{Name: "PRIMARY", Kind: schema.PrimaryKey, Columns: []string{"id"}})
	require.NoError(t, err)
	assert.Equal(t, "ALTER TABLE `shop`.`t` ADD PRIMARY KEY (`id`);", pk)

	_, err = g.AddConstraint("shop", "t", schema.TableConstraint{Name: "x", Kind: "EXCLUDE"})
	assert.Error(t, err)
}

func TestGeneratorSessionStatements(t *testing.T) {
	g := NewGenerator(engine.MySQL)

	db, err := g.CreateDatabase("shop")
	require.NoError(t, err)
	assert.Equal(t, "CREATE DATABASE IF NOT EXISTS `shop`;", db)

	use, err := g.UseSchema("shop")
	require.NoError(t, err)
	assert.Equal(t, "USE `shop`;", use)

	disable, restore, err := g.IntegrityBypass()
	require.NoError(t, err)
	assert.Equal(t, "SET FOREIGN_KEY_CHECKS = 0;", disable)
	assert.Equal(t, "SET FOREIGN_KEY_CHECKS = 1;", restore)
	assert.Empty(t, g.DeferFunctionChecks())
}

func TestGeneratorMapType(t *testing.T) {
	tests := []struct {
		name   string
		source engine.Type
		col    schema.TableColumn
		want   string
	}{
		{"mysql_verbatim", engine.MySQL, schema.TableColumn{DataType: "decimal(12,2) unsigned", UDTName: "decimal"}, "decimal(12,2) unsigned"},
		{"postgres_varchar", engine.PostgreSQL, schema.TableColumn{DataType: "character varying", UDTName: "varchar", CharacterLength: nullInt(64)}, "VARCHAR(64)"},
		{"postgres_jsonb", engine.PostgreSQL, schema.TableColumn{DataType: "jsonb", UDTName: "jsonb"}, "JSON"},
		{"oracle_number", engine.Oracle, schema.TableColumn{DataType: "NUMBER(10)", UDTName: "NUMBER", NumericPrecision: nullInt(10), NumericScale: nullInt(0)}, "DECIMAL(10,0)"},
		{"oracle_clob", engine.Oracle, schema.TableColumn{DataType: "CLOB", UDTName: "CLOB"}, "LONGTEXT"},
		{"unknown_falls_back", engine.PostgreSQL, schema.TableColumn{DataType: "tsvector", UDTName: "tsvector"}, "LONGTEXT"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NewGenerator(tt.source).MapType(tt.col))
		})
	}
}

func TestDSN(t *testing.T) {
	dsn := DSN(schema.ConnectionConfig{
		Host: "db.internal", Port: 3306, Database: "shop", User: "app", Password: "p@ss",
		Params: map[string]string{"tls": "skip-verify"},
	})

	cfg, err := mysql.ParseDSN(dsn)
	require.NoError(t, err)
	assert.Equal(t, "app", cfg.User)
	assert.Equal(t, "p@ss", cfg.Passwd)
	assert.Equal(t, "db.internal:3306", cfg.Addr)
	assert.Equal(t, "shop", cfg.DBName)
	assert.Equal(t, "skip-verify", cfg.TLSConfig)
	assert.False(t, cfg.ParseTime)
}

func TestIsConnectionFailure(t *testing.T) {
	assert.True(t, isConnectionFailure(&mysql.MySQLError{Number: 1045, Message: "Access denied"}))
	assert.True(t, isConnectionFailure(fmt.Errorf("ping: %w", &mysql.MySQLError{Number: 1049})))
	assert.False(t, isConnectionFailure(&mysql.MySQLError{Number: 1064}))
	assert.False(t, isConnectionFailure(errors.New("boom")))
}
