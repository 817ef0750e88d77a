package oracle

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"strings"

	"github.com/godror/godror"

	"github.com/alc6/sqlsnap/engine"
	"github.com/alc6/sqlsnap/schema"
)

// Extractor streams a table on a dedicated session. The driver fetches rows
// from the server in arrays of the page size, so at most one page is held in
// memory.
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

		query := selectStatement(table)
		rows, err := conn.QueryContext(ctx, query,
			godror.FetchArraySize(e.pageSize),
			godror.PrefetchCount(e.pageSize+1))
		if err != nil {
			yield(nil, engine.Classify(e.conn, query, err))
			return
		}
		defer rows.Close()

		target := qualified(table.Schema, table.Name)
		columns := make([]string, len(table.Columns))
		for i, col := range table.Columns {
			columns[i] = quoteIdent(col.Name)
		}

		for page := 1; ; page++ {
			values, err := engine.ReadPage(rows, e.pageSize)
			if err != nil {
				yield(nil, engine.Classify(e.conn, query, err))
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
				batch[i] = engine.Insert(target, columns, "", formatted)
			}

			slog.Debug("fetched page", "table", table.Name, "page", page, "rows", len(batch))
			if !yield(batch, nil) {
				return
			}
			if len(values) < e.pageSize {
				return
			}
		}
	}
}

func selectStatement(table *schema.TableMetadata) string {
	cols := make([]string, len(table.Columns))
	for i, col := range table.Columns {
		cols[i] = quoteIdent(col.Name)
	}
	return fmt.Sprintf("SELECT %s FROM %s", strings.Join(cols, ", "), qualified(table.Schema, table.Name))
}
