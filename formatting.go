package main

import (
	"fmt"
	"slices"
	"strings"

	"github.com/alc6/sqlsnap/schema"
)

// FormatSchemaInfo formats schema as human-readable text
func FormatSchemaInfo(tables []*schema.TableMetadata) string {
	var sb strings.Builder

	for _, table := range tables {
		fmt.Fprintf(&sb, "Table: %s.%s\n", table.Schema, table.Name)
		sb.WriteString("Columns:\n")

		pk, _ := table.PrimaryKey()
		for _, col := range table.Columns {
			nullable := "NOT NULL"
			if col.Nullable {
				nullable = "NULL"
			}

			extra := ""
			if col.Identity != "" {
				extra = fmt.Sprintf(" GENERATED %s AS IDENTITY", col.Identity)
			} else if col.DefaultValue.Valid {
				extra = fmt.Sprintf(" DEFAULT %s", col.DefaultValue.String)
			}

			if slices.Contains(pk.Columns, col.Name) {
				extra += " (PRIMARY KEY)"
			}

			fmt.Fprintf(&sb, "  - %s %s %s%s\n", col.Name, col.DataType, nullable, extra)
		}

		if cons := table.ConstraintsOf(schema.ForeignKey, schema.Unique, schema.Check); len(cons) > 0 {
			sb.WriteString("Constraints:\n")
			for _, c := range cons {
				fmt.Fprintf(&sb, "  - %s %s\n", c.Name, constraintTarget(c))
			}
		}

		if len(table.Indexes) > 0 {
			sb.WriteString("Indexes:\n")
			for _, idx := range table.Indexes {
				unique := ""
				if idx.Unique {
					unique = " (UNIQUE)"
				}
				fmt.Fprintf(&sb, "  - %s on (%s)%s\n", idx.Name, strings.Join(idx.Columns, ", "), unique)
			}
		}

		if len(table.Sequences) > 0 {
			sb.WriteString("Sequences:\n")
			for _, seq := range table.Sequences {
				fmt.Fprintf(&sb, "  - %s next %d\n", seq.Name, seq.NextValue())
			}
		}

		sb.WriteString("\n")
	}

	return sb.String()
}

func constraintTarget(c schema.TableConstraint) string {
	switch c.Kind {
	case schema.ForeignKey:
		return fmt.Sprintf("FOREIGN KEY (%s) -> %s (%s)", strings.Join(c.Columns, ", "), c.RefTable, strings.Join(c.RefColumns, ", "))
	case schema.Check:
		return c.Definition
	}
	return fmt.Sprintf("%s (%s)", c.Kind, strings.Join(c.Columns, ", "))
}
