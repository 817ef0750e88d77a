package schema

import (
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ordersTable() *TableMetadata {
	return &TableMetadata{
		Name:   "orders",
		Schema: "public",
		Columns: []TableColumn{
			{Name: "id", DataType: "integer", UDTName: "int4"},
			{Name: "customer_id", DataType: "integer", UDTName: "int4"},
			{Name: "total", DataType: "numeric", UDTName: "numeric"},
		},
		Constraints: []TableConstraint{
			{Name: "orders_customer_fk", Kind: ForeignKey, Columns: []string{"customer_id"}, RefTable: "customers", RefColumns: []string{"id"}},
			{Name: "orders_pkey", Kind: PrimaryKey, Columns: []string{"id"}},
			{Name: "orders_total_check", Kind: Check, Definition: "CHECK (total >= 0)"},
		},
		Sequences: []TableSequence{
			{Name: "orders_id_seq", OwnedByColumn: "id", StartValue: 1, Increment: 1},
		},
	}
}

func TestTableMetadataLookups(t *testing.T) {
	table := ordersTable()

	t.Run("column_lookup", func(t *testing.T) {
		col, ok := table.Column("total")
		require.True(t, ok)
		assert.Equal(t, "numeric", col.UDTName)

		_, ok = table.Column("missing")
		assert.False(t, ok)
	})

	t.Run("column_names_keep_catalog_order", func(t *testing.T) {
		assert.Equal(t, []string{"id", "customer_id", "total"}, table.ColumnNames())
	})

	t.Run("primary_key", func(t *testing.T) {
		pk, ok := table.PrimaryKey()
		require.True(t, ok)
		assert.Equal(t, "orders_pkey", pk.Name)
	})

	t.Run("constraints_of_kinds", func(t *testing.T) {
		deferred := table.ConstraintsOf(ForeignKey, Check)
		require.Len(t, deferred, 2)
		assert.Equal(t, "orders_customer_fk", deferred[0].Name)
		assert.Equal(t, "orders_total_check", deferred[1].Name)
	})

	t.Run("sequence_for_column", func(t *testing.T) {
		seq, ok := table.SequenceFor("id")
		require.True(t, ok)
		assert.Equal(t, "orders_id_seq", seq.Name)

		_, ok = table.SequenceFor("total")
		assert.False(t, ok)
	})
}

func TestTableSequenceNextValue(t *testing.T) {
	tests := []struct {
		name string
		seq  TableSequence
		want int64
	}{
		{
			name: "never_used_starts_at_start_value",
			seq:  TableSequence{StartValue: 1, Increment: 1},
			want: 1,
		},
		{
			name: "used_continues_after_last_value",
			seq:  TableSequence{StartValue: 1, Increment: 1, LastValue: sql.NullInt64{Int64: 57, Valid: true}},
			want: 58,
		},
		{
			name: "custom_increment",
			seq:  TableSequence{StartValue: 10, Increment: 5, LastValue: sql.NullInt64{Int64: 40, Valid: true}},
			want: 45,
		},
		{
			name: "zero_increment_treated_as_one",
			seq:  TableSequence{LastValue: sql.NullInt64{Int64: 3, Valid: true}},
			want: 4,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.seq.NextValue())
		})
	}
}

func TestConnectionConfigString(t *testing.T) {
	cfg := ConnectionConfig{Host: "db.internal", Port: 5432, Database: "shop", User: "reader", Password: "secret"}

	assert.Equal(t, "reader@db.internal:5432/shop", cfg.String())
	assert.NotContains(t, cfg.String(), "secret")
	assert.Equal(t, "public", cfg.SchemaOrDefault("public"))

	cfg.Schema = "sales"
	assert.Equal(t, "sales", cfg.SchemaOrDefault("public"))
}

func TestDatabaseObjectKey(t *testing.T) {
	assert.Equal(t, "touch_updated_at", DatabaseObject{Name: "touch_updated_at"}.Key())
	assert.Equal(t, "orders.orders_touch", DatabaseObject{Name: "orders_touch", Table: "orders"}.Key())
}

func TestComparisonResultCounts(t *testing.T) {
	result := &ComparisonResult{}
	assert.False(t, result.HasDifferences())

	result.Diffs = []SchemaDiff{
		{Kind: MissingColumn, Table: "orders", Object: "note"},
		{Kind: MissingColumn, Table: "orders", Object: "tag"},
		{Kind: MissingIndex, Table: "orders", Object: "orders_tag_idx"},
	}

	assert.True(t, result.HasDifferences())
	counts := result.CountByKind()
	assert.Equal(t, 2, counts[MissingColumn])
	assert.Equal(t, 1, counts[MissingIndex])
	assert.Len(t, DiffKinds, 11)
}
