package engine

import (
	"database/sql"
	"fmt"
	"strings"
)

// ReadPage scans at most n rows from an open result set. Values are the raw
// driver values. An empty page means the result set is exhausted.
func ReadPage(rows *sql.Rows, n int) ([][]any, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to read result columns: %w", err)
	}

	page := make([][]any, 0, n)
	for len(page) < n && rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		page = append(page, vals)
	}

	if len(page) < n {
		if err := rows.Err(); err != nil {
			return nil, err
		}
	}
	return page, nil
}

// Insert renders a single-row INSERT statement from formatted values.
// clause is placed between the column list and VALUES when non-empty.
func Insert(target string, columns []string, clause string, values []string) string {
	var sb strings.Builder
	sb.WriteString("INSERT INTO ")
	sb.WriteString(target)
	sb.WriteString(" (")
	sb.WriteString(strings.Join(columns, ", "))
	sb.WriteString(")")
	if clause != "" {
		sb.WriteString(" ")
		sb.WriteString(clause)
	}
	sb.WriteString(" VALUES (")
	sb.WriteString(strings.Join(values, ", "))
	sb.WriteString(");")
	return sb.String()
}

// QuoteString single-quotes s, doubling embedded quotes.
func QuoteString(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// FilterTables keeps the catalog tables named in filter, in catalog order.
// Names match case-insensitively. An empty filter keeps every table.
func FilterTables(tables, filter []string) []string {
	if len(filter) == 0 {
		return tables
	}

	wanted := make(map[string]bool, len(filter))
	for _, name := range filter {
		wanted[strings.ToLower(name)] = true
	}

	var out []string
	for _, t := range tables {
		if wanted[strings.ToLower(t)] {
			out = append(out, t)
		}
	}
	return out
}
