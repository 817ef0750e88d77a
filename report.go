package main

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/alc6/sqlsnap/schema"
)

var reportHeader = []string{"KIND", "TABLE", "OBJECT", "EXPECTED", "ACTUAL", "DETAIL", "FIX"}

// WriteReport prints diffs as an aligned table followed by per-kind totals.
// Fixes are left to WriteFixes.
func WriteReport(out io.Writer, result *schema.ComparisonResult) error {
	fmt.Fprintf(out, "Source: %s\nTarget: %s\n\n", result.Source, result.Target)

	if !result.HasDifferences() {
		_, err := fmt.Fprintln(out, "No differences found.")
		return err
	}

	w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, strings.Join(reportHeader[:6], "\t"))
	for _, d := range result.Diffs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			d.Kind, dash(d.Table), dash(d.Object), dash(d.Expected), dash(d.Actual), d.Detail)
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}

	fmt.Fprintln(out)
	counts := result.CountByKind()
	for _, kind := range schema.DiffKinds {
		if n := counts[kind]; n > 0 {
			fmt.Fprintf(out, "%s: %d\n", kind, n)
		}
	}
	_, err := fmt.Fprintf(out, "total: %d\n", len(result.Diffs))
	return err
}

// WriteFixes prints every available fix statement in diff order.
func WriteFixes(out io.Writer, result *schema.ComparisonResult) error {
	for _, d := range result.Diffs {
		if d.Fix == "" {
			continue
		}
		if _, err := fmt.Fprintf(out, "-- %s %s\n%s\n\n", d.Kind, qualifiedObject(d), d.Fix); err != nil {
			return err
		}
	}
	return nil
}

// ExportCSV writes one row per diff, fixes included.
func ExportCSV(path string, result *schema.ComparisonResult) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create csv file: %w", err)
	}
	defer file.Close()

	if err := writeCSV(file, result); err != nil {
		return err
	}
	return file.Close()
}

func writeCSV(out io.Writer, result *schema.ComparisonResult) error {
	w := csv.NewWriter(out)
	if err := w.Write(reportHeader); err != nil {
		return fmt.Errorf("failed to write csv header: %w", err)
	}
	for _, d := range result.Diffs {
		row := []string{string(d.Kind), d.Table, d.Object, d.Expected, d.Actual, d.Detail, d.Fix}
		if err := w.Write(row); err != nil {
			return fmt.Errorf("failed to write csv row: %w", err)
		}
	}
	w.Flush()
	return w.Error()
}

func qualifiedObject(d schema.SchemaDiff) string {
	switch {
	case d.Table == "":
		return d.Object
	case d.Object == "":
		return d.Table
	}
	return d.Table + "." + d.Object
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return strings.ReplaceAll(s, "\n", " ")
}
