package engine

import (
	"slices"

	"github.com/alc6/sqlsnap/schema"
)

// ConstraintRow is one row of a flattened constraint/column catalog join.
type ConstraintRow struct {
	Name       string
	Kind       schema.ConstraintKind
	Column     string
	RefSchema  string
	RefTable   string
	RefColumn  string
	OnDelete   string
	OnUpdate   string
	Definition string
}

// AggregateConstraints folds flattened rows into one constraint per name.
// Constraints keep the order their first row appeared in; columns and
// referenced columns are deduplicated in first-seen order.
func AggregateConstraints(rows []ConstraintRow) []schema.TableConstraint {
	var out []schema.TableConstraint
	pos := make(map[string]int)

	for _, r := range rows {
		i, ok := pos[r.Name]
		if !ok {
			i = len(out)
			pos[r.Name] = i
			out = append(out, schema.TableConstraint{
				Name:       r.Name,
				Kind:       r.Kind,
				RefSchema:  r.RefSchema,
				RefTable:   r.RefTable,
				OnDelete:   r.OnDelete,
				OnUpdate:   r.OnUpdate,
				Definition: r.Definition,
			})
		}

		c := &out[i]
		if r.Column != "" && !slices.Contains(c.Columns, r.Column) {
			c.Columns = append(c.Columns, r.Column)
		}
		if r.RefColumn != "" && !slices.Contains(c.RefColumns, r.RefColumn) {
			c.RefColumns = append(c.RefColumns, r.RefColumn)
		}
	}

	return out
}
