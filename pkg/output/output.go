// Package output materializes representative selections and sub-cluster
// memberships as tab-separated tables.
package output

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// File names used by the pipeline modes.
const (
	ClusterRepresentativesFile = "cluster_representatives.tsv"
	ArithmeticMeanFile         = "arithmetic_mean.tsv"
	CombinedFile               = "combined.tsv"
	SubclusterRepresentatives  = "representatives.tsv"
	MembershipFile             = "kclusters.tsv"
)

// Table is a header plus rows, all rows as wide as the header.
type Table struct {
	Header []string
	Rows   [][]string
}

// NewTable creates an empty table with the given header.
func NewTable(header ...string) *Table {
	return &Table{Header: header}
}

// Append adds one row. Short rows are padded with empty cells.
func (t *Table) Append(cells ...string) {
	row := make([]string, len(t.Header))
	copy(row, cells)
	t.Rows = append(t.Rows, row)
}

// WriteTSV writes the header and every row.
func (t *Table) WriteTSV(w io.Writer) error {
	return writeRecords(w, append([][]string{t.Header}, t.Rows...))
}

func writeRecords(w io.Writer, records [][]string) error {
	writer := csv.NewWriter(w)
	writer.Comma = '\t'
	if err := writer.WriteAll(records); err != nil {
		return fmt.Errorf("writing tsv: %w", err)
	}
	return nil
}

// WriteFile writes a TSV into dir, creating dir if needed, and returns the
// path written.
func WriteFile(dir, name string, write func(io.Writer) error) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}
	path := filepath.Join(dir, name)
	file, err := os.Create(path)
	if err != nil {
		return "", err
	}
	if err := write(file); err != nil {
		file.Close()
		return "", fmt.Errorf("failed to write %s: %w", name, err)
	}
	return path, file.Close()
}
