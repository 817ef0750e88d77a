package main

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/csv"
	"iter"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/alc6/sqlsnap/engine"
	"github.com/alc6/sqlsnap/engine/mocks"
	"github.com/alc6/sqlsnap/schema"
)

func testOrders() *schema.TableMetadata {
	return &schema.TableMetadata{
		Name:   "orders",
		Schema: "public",
		Columns: []schema.TableColumn{
			{Name: "id", DataType: "integer", UDTName: "int4", DefaultValue: sql.NullString{String: "nextval('orders_id_seq'::regclass)", Valid: true}},
			{Name: "total", DataType: "numeric", UDTName: "numeric", NumericPrecision: sql.NullInt64{Int64: 10, Valid: true}, NumericScale: sql.NullInt64{Int64: 2, Valid: true}},
			{Name: "note", DataType: "text", UDTName: "text", Nullable: true},
		},
		Constraints: []schema.TableConstraint{
			{Name: "orders_pkey", Kind: schema.PrimaryKey, Columns: []string{"id"}},
		},
		Indexes: []schema.TableIndex{
			{Name: "orders_note_idx", Definition: "CREATE INDEX orders_note_idx ON public.orders USING btree (note)", Columns: []string{"note"}},
		},
		Sequences: []schema.TableSequence{
			{Name: "orders_id_seq", DataType: "integer", StartValue: 1, Increment: 1, LastValue: sql.NullInt64{Int64: 57, Valid: true}, OwnedByColumn: "id"},
		},
	}
}

// fakeBundle serves the given tables through gomock inspectors and yields
// one INSERT per table.
func fakeBundle(t *testing.T, e engine.Type, cfg schema.ConnectionConfig, tables ...*schema.TableMetadata) *engine.Bundle {
	t.Helper()
	ctrl := gomock.NewController(t)
	inspector := mocks.NewMockInspector(ctrl)
	extractor := mocks.NewMockExtractor(ctrl)

	inspector.EXPECT().ListTables(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, _ string, filter []string) ([]string, error) {
			var names []string
			for _, table := range tables {
				if len(filter) == 0 || slices.Contains(filter, table.Name) {
					names = append(names, table.Name)
				}
			}
			return names, nil
		}).AnyTimes()
	inspector.EXPECT().GetTableMetadata(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, _, name string) (*schema.TableMetadata, error) {
			for _, table := range tables {
				if table.Name == name {
					return table, nil
				}
			}
			return nil, SimulateError("permission")
		}).AnyTimes()
	inspector.EXPECT().ListFunctions(gomock.Any(), gomock.Any()).Return(nil, nil).AnyTimes()
	inspector.EXPECT().ListTriggers(gomock.Any(), gomock.Any()).Return(nil, nil).AnyTimes()
	extractor.EXPECT().Batches(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, table *schema.TableMetadata) iter.Seq2[[]string, error] {
			return func(yield func([]string, error) bool) {
				yield([]string{"INSERT INTO " + table.Name + " VALUES (1);"}, nil)
			}
		}).AnyTimes()

	generator, err := newFactory().Generator(e, e)
	require.NoError(t, err)

	return &engine.Bundle{
		Engine:    e,
		Config:    cfg,
		Schema:    "public",
		Inspector: inspector,
		Generator: generator,
		Extractor: extractor,
	}
}

func singleBundleOpener(t *testing.T, tables ...*schema.TableMetadata) *MockBundleOpener {
	return &MockBundleOpener{
		OpenFunc: func(_ context.Context, e engine.Type, cfg schema.ConnectionConfig, _ int) (*engine.Bundle, error) {
			return fakeBundle(t, e, cfg, tables...), nil
		},
	}
}

func execute(t *testing.T, opener BundleOpener, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd(opener)
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append(args, "--env-file", filepath.Join(t.TempDir(), ".env")))
	err := cmd.Execute()
	return out.String(), err
}

func TestBackupCommand(t *testing.T) {
	t.Setenv("SQLSNAP_CONFIG", filepath.Join(t.TempDir(), "absent.yaml"))

	t.Run("flags", func(t *testing.T) {
		dir := t.TempDir()
		opener := singleBundleOpener(t, testOrders())

		output, err := execute(t, opener, "backup",
			"--engine", "pg", "--database", "shop", "--user", "app",
			"--output", dir, "--tables", "orders")
		require.NoError(t, err)
		assert.Contains(t, output, "backup written to "+dir)
		assert.Contains(t, output, "(1 tables, 1 rows")

		require.Len(t, opener.Opened, 1)
		assert.Equal(t, "localhost", opener.Opened[0].Host)
		assert.Equal(t, 5432, opener.Opened[0].Port)
		assert.Equal(t, []int{engine.DefaultPageSize}, opener.PageSizes)

		entries, err := os.ReadDir(dir)
		require.NoError(t, err)
		require.Len(t, entries, 1)
		content, err := os.ReadFile(filepath.Join(dir, entries[0].Name()))
		require.NoError(t, err)
		assert.Contains(t, string(content), "INSERT INTO orders VALUES (1);")
		assert.Contains(t, string(content), `SELECT setval('"public"."orders_id_seq"', 57, true);`)
	})

	t.Run("invalid_connection", func(t *testing.T) {
		opener := &MockBundleOpener{}
		_, err := execute(t, opener, "backup", "--engine", "postgres", "--user", "app")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid database connection: database is required")
		assert.Empty(t, opener.Opened)
	})

	t.Run("connection_failure", func(t *testing.T) {
		opener := &MockBundleOpener{
			OpenFunc: func(context.Context, engine.Type, schema.ConnectionConfig, int) (*engine.Bundle, error) {
				return nil, SimulateError("connection")
			},
		}
		_, err := execute(t, opener, "backup", "--engine", "postgres", "--database", "shop", "--user", "app", "--output", t.TempDir())
		require.Error(t, err)
		assert.ErrorIs(t, err, engine.ErrConnectionFailed)
	})

	t.Run("profile_and_config_defaults", func(t *testing.T) {
		dir := t.TempDir()
		configPath := filepath.Join(t.TempDir(), "sqlsnap.yaml")
		require.NoError(t, os.WriteFile(configPath, []byte(`
profiles:
  prod:
    engine: postgres
    host: db.internal
    database: shop
    user: app
backup:
  output_dir: `+dir+`
  page_size: 250
`), 0o600))
		t.Setenv("SQLSNAP_PROD_PASSWORD", "from-env")

		opener := singleBundleOpener(t, testOrders())
		_, err := execute(t, opener, "backup", "--config", configPath, "--profile", "prod", "--schema", "sales")
		require.NoError(t, err)

		require.Len(t, opener.Opened, 1)
		assert.Equal(t, "db.internal", opener.Opened[0].Host)
		assert.Equal(t, "from-env", opener.Opened[0].Password)
		assert.Equal(t, "sales", opener.Opened[0].Schema)
		assert.Equal(t, []int{250}, opener.PageSizes)

		entries, err := os.ReadDir(dir)
		require.NoError(t, err)
		assert.Len(t, entries, 1)
	})
}

func TestCompareCommand(t *testing.T) {
	t.Setenv("SQLSNAP_CONFIG", filepath.Join(t.TempDir(), "absent.yaml"))

	target := testOrders()
	target.Columns = target.Columns[:2]

	opener := &MockBundleOpener{
		OpenFunc: func(_ context.Context, e engine.Type, cfg schema.ConnectionConfig, _ int) (*engine.Bundle, error) {
			if cfg.Host == "prod" {
				return fakeBundle(t, e, cfg, testOrders()), nil
			}
			return fakeBundle(t, e, cfg, target), nil
		},
	}

	csvPath := filepath.Join(t.TempDir(), "report.csv")
	output, err := execute(t, opener, "compare",
		"--source-engine", "postgres", "--source-host", "prod", "--source-database", "shop", "--source-user", "app",
		"--target-engine", "postgres", "--target-host", "stage", "--target-database", "shop", "--target-user", "app",
		"--fixes", "--csv", csvPath, "--fail-on-diff")
	require.ErrorIs(t, err, errDrift)

	t.Run("report", func(t *testing.T) {
		assert.Contains(t, output, "Source: postgres://app@prod:5432/shop/public")
		assert.Contains(t, output, "missing_column")
		assert.Contains(t, output, "missing_column: 1")
		assert.Contains(t, output, "total: 1")
	})

	t.Run("fixes", func(t *testing.T) {
		assert.Contains(t, output, "-- missing_column orders.note\n")
		assert.Contains(t, output, `ALTER TABLE "public"."orders" ADD COLUMN "note" TEXT;`)
	})

	t.Run("csv_export", func(t *testing.T) {
		file, err := os.Open(csvPath)
		require.NoError(t, err)
		defer file.Close()

		records, err := csv.NewReader(file).ReadAll()
		require.NoError(t, err)
		require.Len(t, records, 2)
		assert.Equal(t, reportHeader, records[0])
		assert.Equal(t, "missing_column", records[1][0])
		assert.Equal(t, "note", records[1][2])
	})
}

func TestCompareFixDialect(t *testing.T) {
	t.Setenv("SQLSNAP_CONFIG", filepath.Join(t.TempDir(), "absent.yaml"))

	drifted := testOrders()
	drifted.Columns = drifted.Columns[:2]

	run := func(t *testing.T, extra ...string) (string, [][2]engine.Type) {
		t.Helper()
		var dialects [][2]engine.Type
		opener := &MockBundleOpener{
			OpenFunc: func(_ context.Context, e engine.Type, cfg schema.ConnectionConfig, _ int) (*engine.Bundle, error) {
				if e == engine.MySQL {
					return fakeBundle(t, e, cfg, testOrders()), nil
				}
				return fakeBundle(t, e, cfg, drifted), nil
			},
			GeneratorFunc: func(target, source engine.Type) (engine.Generator, error) {
				dialects = append(dialects, [2]engine.Type{target, source})
				return newFactory().Generator(target, source)
			},
		}
		args := append([]string{"compare",
			"--source-engine", "mysql", "--source-host", "prod", "--source-database", "shop", "--source-user", "app",
			"--target-engine", "postgres", "--target-host", "stage", "--target-database", "shop", "--target-user", "app",
			"--fixes"}, extra...)
		output, err := execute(t, opener, args...)
		require.NoError(t, err)
		return output, dialects
	}

	t.Run("source_dialect_by_default", func(t *testing.T) {
		output, dialects := run(t)
		assert.Equal(t, [][2]engine.Type{{engine.MySQL, engine.MySQL}}, dialects)
		assert.Contains(t, output, "ALTER TABLE `public`.`orders` ADD COLUMN `note`")
	})

	t.Run("target_dialect_on_request", func(t *testing.T) {
		output, dialects := run(t, "--target-dialect")
		assert.Equal(t, [][2]engine.Type{{engine.PostgreSQL, engine.MySQL}}, dialects)
		assert.Contains(t, output, `ALTER TABLE "public"."orders" ADD COLUMN "note"`)
	})
}

func TestInspectCommand(t *testing.T) {
	t.Setenv("SQLSNAP_CONFIG", filepath.Join(t.TempDir(), "absent.yaml"))

	output, err := execute(t, singleBundleOpener(t, testOrders()), "inspect",
		"--engine", "postgres", "--database", "shop", "--user", "app")
	require.NoError(t, err)

	assert.Contains(t, output, "=== DATABASE SCHEMA ===")
	assert.Contains(t, output, "Table: public.orders")
	assert.Contains(t, output, "id integer NOT NULL DEFAULT nextval('orders_id_seq'::regclass) (PRIMARY KEY)")
	assert.Contains(t, output, "orders_note_idx on (note)")
	assert.Contains(t, output, "orders_id_seq next 58")
}

func TestDDLCommand(t *testing.T) {
	t.Setenv("SQLSNAP_CONFIG", filepath.Join(t.TempDir(), "absent.yaml"))

	t.Run("cross_engine", func(t *testing.T) {
		output, err := execute(t, singleBundleOpener(t, testOrders()), "ddl",
			"--engine", "postgres", "--database", "shop", "--user", "app", "--to", "mysql")
		require.NoError(t, err)
		assert.Contains(t, output, "CREATE TABLE `public`.`orders`")
		assert.Contains(t, output, "`total` DECIMAL(10,2) NOT NULL")
		assert.Contains(t, output, "AUTO_INCREMENT=58")
	})

	t.Run("unknown_target_engine", func(t *testing.T) {
		_, err := execute(t, singleBundleOpener(t), "ddl",
			"--engine", "postgres", "--database", "shop", "--user", "app", "--to", "sqlite")
		assert.ErrorIs(t, err, engine.ErrUnsupportedEngine)
	})
}

func TestCLIMCPMode(t *testing.T) {
	cmd := newRootCmd(&MockBundleOpener{})
	require.NoError(t, cmd.ParseFlags([]string{"--mcp", "--verbose"}))

	mcp, err := cmd.Flags().GetBool("mcp")
	require.NoError(t, err)
	assert.True(t, mcp)
}

func TestCLIErrorHandling(t *testing.T) {
	_, err := execute(t, &MockBundleOpener{}, "backup", "unexpected-arg")
	assert.Error(t, err)

	_, err = execute(t, &MockBundleOpener{}, "compare", "--source-profile", "prod", "--config", filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
