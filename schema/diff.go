package schema

// DiffKind categorizes a detected discrepancy.
type DiffKind string

const (
	MissingTable        DiffKind = "missing_table"
	MissingColumn       DiffKind = "missing_column"
	TypeMismatch        DiffKind = "type_mismatch"
	NullabilityMismatch DiffKind = "nullability_mismatch"
	DefaultMismatch     DiffKind = "default_mismatch"
	MissingConstraint   DiffKind = "missing_constraint"
	MissingIndex        DiffKind = "missing_index"
	MissingFunction     DiffKind = "missing_function"
	MissingTrigger      DiffKind = "missing_trigger"
	FunctionMismatch    DiffKind = "function_mismatch"
	TriggerMismatch     DiffKind = "trigger_mismatch"
)

// DiffKinds lists every kind in report order.
var DiffKinds = []DiffKind{
	MissingTable,
	MissingColumn,
	TypeMismatch,
	NullabilityMismatch,
	DefaultMismatch,
	MissingConstraint,
	MissingIndex,
	MissingFunction,
	MissingTrigger,
	FunctionMismatch,
	TriggerMismatch,
}

// SchemaDiff is a single discrepancy between source and target.
type SchemaDiff struct {
	Kind  DiffKind
	Table string
	// Object names the column, constraint, index, function or trigger.
	Object   string
	Expected string
	Actual   string
	Detail   string
	// Fix is a ready-to-run statement, empty when none can be generated.
	Fix string
}

// ComparisonResult is the ordered list of diffs found between two databases.
type ComparisonResult struct {
	Source string
	Target string
	Diffs  []SchemaDiff
}

// HasDifferences reports whether any diff was found.
func (r *ComparisonResult) HasDifferences() bool {
	return len(r.Diffs) > 0
}

// CountByKind tallies diffs per kind.
func (r *ComparisonResult) CountByKind() map[DiffKind]int {
	counts := make(map[DiffKind]int)
	for _, d := range r.Diffs {
		counts[d.Kind]++
	}
	return counts
}
