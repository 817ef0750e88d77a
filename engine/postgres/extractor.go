package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"iter"
	"log/slog"
	"strings"

	"github.com/lib/pq"

	"github.com/alc6/sqlsnap/engine"
	"github.com/alc6/sqlsnap/schema"
)

const cursorName = "sqlsnap_extract"

// Extractor pages through a table with a server-side cursor held in a
// read-only transaction on a dedicated session.
type Extractor struct {
	conn     engine.Connection
	pageSize int
}

func NewExtractor(conn engine.Connection, pageSize int) *Extractor {
	if pageSize <= 0 {
		pageSize = engine.DefaultPageSize
	}
	return &Extractor{conn: conn, pageSize: pageSize}
}

func (e *Extractor) Batches(ctx context.Context, table *schema.TableMetadata) iter.Seq2[[]string, error] {
	return func(yield func([]string, error) bool) {
		conn, err := e.conn.Conn(ctx)
		if err != nil {
			yield(nil, err)
			return
		}
		defer conn.Close()

		tx, err := conn.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
		if err != nil {
			yield(nil, engine.Classify(e.conn, "BEGIN READ ONLY", err))
			return
		}
		defer tx.Rollback()

		declare := fmt.Sprintf("DECLARE %s NO SCROLL CURSOR FOR %s", cursorName, selectStatement(table))
		if _, err := tx.ExecContext(ctx, declare); err != nil {
			yield(nil, engine.Classify(e.conn, declare, err))
			return
		}
		defer func() {
			if _, err := tx.ExecContext(context.WithoutCancel(ctx), "CLOSE "+cursorName); err != nil {
				slog.Debug("failed to close cursor", "table", table.Name, "error", err)
			}
		}()

		target := qualified(table.Schema, table.Name)
		columns := make([]string, len(table.Columns))
		for i, col := range table.Columns {
			columns[i] = pq.QuoteIdentifier(col.Name)
		}
		clause := overridingClause(table)

		fetch := fmt.Sprintf("FETCH FORWARD %d FROM %s", e.pageSize, cursorName)
		for page := 1; ; page++ {
			rows, err := tx.QueryContext(ctx, fetch)
			if err != nil {
				yield(nil, engine.Classify(e.conn, fetch, err))
				return
			}
			values, err := engine.ReadPage(rows, e.pageSize)
			rows.Close()
			if err != nil {
				yield(nil, engine.Classify(e.conn, fetch, err))
				return
			}
			if len(values) == 0 {
				return
			}

			batch := make([]string, len(values))
			for i, row := range values {
				formatted := make([]string, len(row))
				for j, v := range row {
					formatted[j] = FormatValue(table.Columns[j], v)
				}
				batch[i] = engine.Insert(target, columns, clause, formatted)
			}

			slog.Debug("fetched page", "table", table.Name, "page", page, "rows", len(batch))
			if !yield(batch, nil) {
				return
			}
		}
	}
}

// selectStatement lists columns in catalog order. Arrays are read as JSON so
// nested values keep their structure.
func selectStatement(table *schema.TableMetadata) string {
	cols := make([]string, len(table.Columns))
	for i, col := range table.Columns {
		name := pq.QuoteIdentifier(col.Name)
		if col.DataType == "ARRAY" {
			cols[i] = fmt.Sprintf("array_to_json(%s) AS %s", name, name)
		} else {
			cols[i] = name
		}
	}
	return fmt.Sprintf("SELECT %s FROM %s", strings.Join(cols, ", "), qualified(table.Schema, table.Name))
}

// overridingClause lets explicit values into GENERATED ALWAYS identity
// columns.
func overridingClause(table *schema.TableMetadata) string {
	for _, col := range table.Columns {
		if col.Identity == schema.IdentityAlways {
			return "OVERRIDING SYSTEM VALUE"
		}
	}
	return ""
}
