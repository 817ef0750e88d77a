package dump

import (
	"context"
	"database/sql"
	"errors"
	"iter"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/alc6/sqlsnap/engine"
	"github.com/alc6/sqlsnap/engine/mocks"
	"github.com/alc6/sqlsnap/engine/postgres"
	"github.com/alc6/sqlsnap/schema"
)

func customersTable() *schema.TableMetadata {
	return &schema.TableMetadata{
		Name:   "customers",
		Schema: "public",
		Columns: []schema.TableColumn{
			{Name: "id", DataType: "integer", UDTName: "int4", DefaultValue: sql.NullString{String: "nextval('customers_id_seq'::regclass)", Valid: true}},
			{Name: "email", DataType: "text", UDTName: "text"},
		},
		Constraints: []schema.TableConstraint{
			{Name: "customers_pkey", Kind: schema.PrimaryKey, Columns: []string{"id"}},
		},
		Indexes: []schema.TableIndex{
			{Name: "customers_email_idx", Definition: "CREATE INDEX customers_email_idx ON public.customers USING btree (email)", Columns: []string{"email"}},
		},
		Sequences: []schema.TableSequence{
			{Name: "customers_id_seq", DataType: "integer", StartValue: 1, Increment: 1, LastValue: sql.NullInt64{Int64: 2, Valid: true}, OwnedByColumn: "id"},
		},
	}
}

func ordersTable() *schema.TableMetadata {
	return &schema.TableMetadata{
		Name:   "orders",
		Schema: "public",
		Columns: []schema.TableColumn{
			{Name: "id", DataType: "integer", UDTName: "int4"},
			{Name: "customer_id", DataType: "integer", UDTName: "int4", Nullable: true},
		},
		Constraints: []schema.TableConstraint{
			{Name: "orders_pkey", Kind: schema.PrimaryKey, Columns: []string{"id"}},
			{Name: "orders_customer_fk", Kind: schema.ForeignKey, Columns: []string{"customer_id"},
				RefSchema: "public", RefTable: "customers", RefColumns: []string{"id"}},
		},
	}
}

func batches(items ...[]string) iter.Seq2[[]string, error] {
	return func(yield func([]string, error) bool) {
		for _, b := range items {
			if !yield(b, nil) {
				return
			}
		}
	}
}

func failingBatches(first []string, err error) iter.Seq2[[]string, error] {
	return func(yield func([]string, error) bool) {
		if !yield(first, nil) {
			return
		}
		yield(nil, err)
	}
}

type orchestratorFixture struct {
	inspector *mocks.MockInspector
	extractor *mocks.MockExtractor
	bundle    *engine.Bundle
	dir       string
}

func newOrchestratorFixture(t *testing.T) *orchestratorFixture {
	t.Helper()
	ctrl := gomock.NewController(t)

	f := &orchestratorFixture{
		inspector: mocks.NewMockInspector(ctrl),
		extractor: mocks.NewMockExtractor(ctrl),
		dir:       t.TempDir(),
	}
	f.bundle = &engine.Bundle{
		Engine:    engine.PostgreSQL,
		Config:    schema.ConnectionConfig{Host: "localhost", Port: 5432, Database: "shop", User: "app"},
		Schema:    "public",
		Inspector: f.inspector,
		Generator: postgres.NewGenerator(engine.PostgreSQL),
		Extractor: f.extractor,
	}
	return f
}

func (f *orchestratorFixture) expectTables(tables ...*schema.TableMetadata) {
	names := make([]string, len(tables))
	for i, table := range tables {
		names[i] = table.Name
		f.inspector.EXPECT().GetTableMetadata(gomock.Any(), "public", table.Name).Return(table, nil)
	}
	f.inspector.EXPECT().ListTables(gomock.Any(), "public", gomock.Nil()).Return(names, nil)
}

func (f *orchestratorFixture) run(t *testing.T, opts Options) (*Summary, string, error) {
	t.Helper()
	opts.OutputDir = f.dir
	summary, err := NewOrchestrator(f.bundle, opts).Run(context.Background())

	entries, readErr := os.ReadDir(f.dir)
	require.NoError(t, readErr)
	require.Len(t, entries, 1)
	content, readErr := os.ReadFile(f.dir + "/" + entries[0].Name())
	require.NoError(t, readErr)
	return summary, string(content), err
}

func TestOrchestratorRun(t *testing.T) {
	f := newOrchestratorFixture(t)
	customers, orders := customersTable(), ordersTable()
	f.expectTables(customers, orders)

	f.extractor.EXPECT().Batches(gomock.Any(), customers).Return(batches(
		[]string{
			`INSERT INTO "public"."customers" ("id", "email") VALUES (1, 'a@example.com');`,
			`INSERT INTO "public"."customers" ("id", "email") VALUES (2, 'b@example.com');`,
		},
	))
	f.extractor.EXPECT().Batches(gomock.Any(), orders).Return(batches(
		[]string{`INSERT INTO "public"."orders" ("id", "customer_id") VALUES (10, 1);`},
		[]string{`INSERT INTO "public"."orders" ("id", "customer_id") VALUES (11, 2);`},
	))
	f.inspector.EXPECT().ListFunctions(gomock.Any(), "public").Return([]schema.DatabaseObject{
		{Name: "touch()", Schema: "public", Definition: "CREATE OR REPLACE FUNCTION public.touch() RETURNS trigger LANGUAGE plpgsql AS $$ begin return new; end $$"},
	}, nil)
	f.inspector.EXPECT().ListTriggers(gomock.Any(), "public").Return([]schema.DatabaseObject{
		{Name: "orders_touch", Schema: "public", Table: "orders", Definition: "CREATE TRIGGER orders_touch BEFORE UPDATE ON public.orders FOR EACH ROW EXECUTE FUNCTION public.touch()"},
	}, nil)

	summary, content, err := f.run(t, DefaultOptions())
	require.NoError(t, err)

	t.Run("summary", func(t *testing.T) {
		assert.Equal(t, 2, summary.Tables)
		assert.Equal(t, int64(4), summary.Rows)
		assert.Contains(t, summary.Path, "shop_")
	})

	t.Run("phases_are_ordered", func(t *testing.T) {
		offsets := []int{
			strings.Index(content, "SET session_replication_role = replica;"),
			strings.Index(content, "SET check_function_bodies = false;"),
			strings.Index(content, "CREATE OR REPLACE FUNCTION"),
			strings.Index(content, "CREATE SEQUENCE"),
			strings.Index(content, "CREATE TABLE"),
			strings.Index(content, "INSERT INTO"),
			strings.Index(content, "CREATE INDEX"),
			strings.Index(content, "FOREIGN KEY"),
			strings.Index(content, "CREATE TRIGGER"),
			strings.Index(content, "SET session_replication_role = DEFAULT;"),
			strings.Index(content, "-- backup completed"),
		}
		for i, off := range offsets {
			require.GreaterOrEqual(t, off, 0, "marker %d missing", i)
			if i > 0 {
				assert.Less(t, offsets[i-1], off, "marker %d out of order", i)
			}
		}
	})

	t.Run("every_table_is_created_before_any_data", func(t *testing.T) {
		assert.Less(t, strings.LastIndex(content, "CREATE TABLE"), strings.Index(content, "INSERT INTO"))
		assert.Less(t, strings.LastIndex(content, "INSERT INTO"), strings.Index(content, "-- Indexes"))
	})

	t.Run("batches_keep_extraction_order", func(t *testing.T) {
		assert.Less(t, strings.Index(content, "VALUES (10, 1)"), strings.Index(content, "VALUES (11, 2)"))
		assert.Contains(t, content, "-- Data for orders\n")
	})

	t.Run("database_statement_is_commented", func(t *testing.T) {
		assert.Contains(t, content, `-- CREATE DATABASE "shop";`)
		assert.Contains(t, content, "SET search_path TO public;")
	})

	t.Run("sequence_is_positioned", func(t *testing.T) {
		assert.Contains(t, content, `SELECT setval('"public"."customers_id_seq"', 2, true);`)
	})
}

func TestOrchestratorFunctionsPrecedeTables(t *testing.T) {
	f := newOrchestratorFixture(t)
	tickets := &schema.TableMetadata{
		Name:   "tickets",
		Schema: "public",
		Columns: []schema.TableColumn{
			{Name: "code", DataType: "text", UDTName: "text", DefaultValue: sql.NullString{String: "public.next_code()", Valid: true}},
		},
		Constraints: []schema.TableConstraint{
			{Name: "tickets_code_check", Kind: schema.Check, Definition: "CHECK (public.valid_code(code))"},
		},
	}
	f.expectTables(tickets)
	f.extractor.EXPECT().Batches(gomock.Any(), tickets).Return(batches(
		[]string{`INSERT INTO "public"."tickets" ("code") VALUES ('T1');`},
	))
	f.inspector.EXPECT().ListFunctions(gomock.Any(), "public").Return([]schema.DatabaseObject{
		{Name: "next_code()", Schema: "public", Definition: "CREATE OR REPLACE FUNCTION public.next_code() RETURNS text LANGUAGE sql AS $$ select 'T1' $$"},
		{Name: "valid_code(text)", Schema: "public", Definition: "CREATE OR REPLACE FUNCTION public.valid_code(c text) RETURNS boolean LANGUAGE sql AS $$ select c like 'T%' $$"},
	}, nil)

	opts := DefaultOptions()
	opts.Triggers = false

	_, content, err := f.run(t, opts)
	require.NoError(t, err)

	createTable := strings.Index(content, "CREATE TABLE")
	require.Greater(t, createTable, 0)
	assert.Less(t, strings.Index(content, "SET check_function_bodies = false;"), strings.Index(content, "FUNCTION public.next_code()"))
	assert.Less(t, strings.Index(content, "FUNCTION public.next_code()"), createTable)
	assert.Less(t, strings.Index(content, "FUNCTION public.valid_code(c text)"), createTable)
	assert.Less(t, createTable, strings.Index(content, "public.valid_code(code)"))
}

func TestOrchestratorSharedSequence(t *testing.T) {
	f := newOrchestratorFixture(t)
	shared := schema.TableSequence{Name: "invoice_seq", DataType: "bigint", StartValue: 100, Increment: 1, LastValue: sql.NullInt64{Int64: 102, Valid: true}}
	invoices := &schema.TableMetadata{
		Name:      "invoices",
		Schema:    "public",
		Columns:   []schema.TableColumn{{Name: "id", DataType: "bigint", UDTName: "int8", DefaultValue: sql.NullString{String: "nextval('invoice_seq'::regclass)", Valid: true}}},
		Sequences: []schema.TableSequence{shared},
	}
	credits := &schema.TableMetadata{
		Name:      "credits",
		Schema:    "public",
		Columns:   []schema.TableColumn{{Name: "id", DataType: "bigint", UDTName: "int8", DefaultValue: sql.NullString{String: "nextval('invoice_seq'::regclass)", Valid: true}}},
		Sequences: []schema.TableSequence{shared},
	}
	f.expectTables(invoices, credits)
	f.extractor.EXPECT().Batches(gomock.Any(), gomock.Any()).Return(batches()).Times(2)

	opts := DefaultOptions()
	opts.Functions = false
	opts.Triggers = false

	_, content, err := f.run(t, opts)
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(content, `CREATE SEQUENCE IF NOT EXISTS "public"."invoice_seq"`))
	assert.Equal(t, 1, strings.Count(content, `SELECT setval('"public"."invoice_seq"', 102, true);`))
	assert.NotContains(t, content, "OWNED BY")
}

func TestOrchestratorSkipsObjects(t *testing.T) {
	f := newOrchestratorFixture(t)
	orders := ordersTable()
	f.expectTables(orders)
	f.extractor.EXPECT().Batches(gomock.Any(), orders).Return(batches())

	opts := DefaultOptions()
	opts.Functions = false
	opts.Triggers = false
	opts.CreateDatabase = true

	summary, content, err := f.run(t, opts)
	require.NoError(t, err)
	assert.Equal(t, int64(0), summary.Rows)
	assert.Contains(t, content, "\nCREATE DATABASE \"shop\";")
	assert.NotContains(t, content, "-- Functions")
	assert.NotContains(t, content, "-- Triggers")
}

func TestOrchestratorTableFilter(t *testing.T) {
	f := newOrchestratorFixture(t)
	orders := ordersTable()

	f.inspector.EXPECT().ListTables(gomock.Any(), "public", []string{"orders", "missing"}).Return([]string{"orders"}, nil)
	f.inspector.EXPECT().GetTableMetadata(gomock.Any(), "public", "orders").Return(orders, nil)
	f.extractor.EXPECT().Batches(gomock.Any(), orders).Return(batches())

	opts := DefaultOptions()
	opts.Tables = []string{"orders", "missing"}
	opts.Functions = false
	opts.Triggers = false

	summary, _, err := f.run(t, opts)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Tables)
}

func TestOrchestratorAbort(t *testing.T) {
	t.Run("extraction_failure", func(t *testing.T) {
		f := newOrchestratorFixture(t)
		orders := ordersTable()
		f.expectTables(orders)
		f.extractor.EXPECT().Batches(gomock.Any(), orders).Return(failingBatches(
			[]string{`INSERT INTO "public"."orders" ("id", "customer_id") VALUES (10, 1);`},
			errors.New("cursor lost"),
		))
		f.inspector.EXPECT().ListFunctions(gomock.Any(), "public").Return(nil, nil)

		summary, content, err := f.run(t, DefaultOptions())
		require.Error(t, err)
		assert.Nil(t, summary)
		assert.Contains(t, err.Error(), "backup of shop failed")
		assert.Contains(t, err.Error(), "cursor lost")

		assert.Contains(t, content, "VALUES (10, 1);")
		assert.Contains(t, content, "-- backup aborted: failed to extract orders: cursor lost")
		assert.NotContains(t, content, "CREATE INDEX")
		assert.NotContains(t, content, "backup completed")
	})

	t.Run("inspection_failure", func(t *testing.T) {
		f := newOrchestratorFixture(t)
		f.inspector.EXPECT().ListTables(gomock.Any(), "public", gomock.Nil()).Return([]string{"orders"}, nil)
		f.inspector.EXPECT().GetTableMetadata(gomock.Any(), "public", "orders").
			Return(nil, &engine.QueryError{Engine: engine.PostgreSQL, Statement: "select 1", Cause: errors.New("permission denied")})

		_, content, err := f.run(t, DefaultOptions())
		require.Error(t, err)
		assert.ErrorIs(t, err, engine.ErrQueryFailed)
		assert.NotContains(t, content, "CREATE TABLE")
		assert.Contains(t, content, "-- backup aborted:")
	})

	t.Run("function_listing_failure", func(t *testing.T) {
		f := newOrchestratorFixture(t)
		orders := ordersTable()
		f.expectTables(orders)
		f.inspector.EXPECT().ListFunctions(gomock.Any(), "public").Return(nil, errors.New("boom"))

		_, content, err := f.run(t, DefaultOptions())
		require.Error(t, err)
		assert.NotContains(t, content, "CREATE TABLE")
		assert.Contains(t, content, "-- backup aborted: boom")
	})
}
