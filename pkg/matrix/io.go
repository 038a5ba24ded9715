package matrix

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/mat"
)

// Load reads a tab-separated similarity matrix from path.
func Load(path string) (*SimilarityMatrix, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open matrix file: %w", err)
	}
	defer f.Close()

	m, err := Read(f)
	if err != nil {
		return nil, fmt.Errorf("parsing matrix %s: %w", path, err)
	}
	return m, nil
}

// Read parses a tab-separated matrix: the header row holds the column item
// keys (its first cell is the index name and is ignored), every following
// row starts with the row item key followed by one score per column.
//
// Empty cells and NaN are kept as NaN so that they never count as a score.
func Read(r io.Reader) (*SimilarityMatrix, error) {
	reader := csv.NewReader(r)
	reader.Comma = '\t'
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("matrix file is empty")
	}
	if err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}
	if len(header) < 2 {
		return nil, fmt.Errorf("header has %d fields, need an index column and at least one item", len(header))
	}
	colIDs := make([]string, len(header)-1)
	for i, h := range header[1:] {
		colIDs[i] = strings.TrimSpace(h)
	}

	var rowIDs []string
	var values []float64
	line := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if len(record) == 1 && strings.TrimSpace(record[0]) == "" {
			continue
		}
		if len(record) != len(header) {
			return nil, fmt.Errorf("line %d: expected %d fields, got %d", line, len(header), len(record))
		}

		rowIDs = append(rowIDs, strings.TrimSpace(record[0]))
		for j, cell := range record[1:] {
			v, err := parseScore(cell)
			if err != nil {
				return nil, fmt.Errorf("line %d, column %q: %w", line, colIDs[j], err)
			}
			values = append(values, v)
		}
	}

	if len(rowIDs) == 0 {
		return nil, fmt.Errorf("matrix has no rows")
	}

	return NewWithAxes(rowIDs, colIDs, mat.NewDense(len(rowIDs), len(colIDs), values))
}

func parseScore(cell string) (float64, error) {
	cell = strings.TrimSpace(cell)
	switch strings.ToLower(cell) {
	case "", "nan", "na", "null":
		return math.NaN(), nil
	}
	return strconv.ParseFloat(cell, 64)
}

// WriteTSV writes the block in the same layout Read accepts, with an empty
// index name.
func (b *Block) WriteTSV(w io.Writer) error {
	writer := csv.NewWriter(w)
	writer.Comma = '\t'

	header := make([]string, 0, len(b.ColIDs)+1)
	header = append(header, "")
	header = append(header, b.ColIDs...)
	if err := writer.Write(header); err != nil {
		return err
	}

	_, c := b.Data.Dims()
	record := make([]string, c+1)
	for i, id := range b.RowIDs {
		record[0] = id
		for j := 0; j < c; j++ {
			record[j+1] = FormatFloat(b.Data.At(i, j))
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}

// FormatFloat renders v the way the upstream pipeline writes floats: the
// shortest round-trip representation, always with a decimal point.
func FormatFloat(v float64) string {
	switch {
	case math.IsNaN(v):
		return "nan"
	case math.IsInf(v, 1):
		return "inf"
	case math.IsInf(v, -1):
		return "-inf"
	}
	s := strconv.FormatFloat(v, 'g', -1, 64)
	if !strings.ContainsAny(s, ".e") {
		s += ".0"
	}
	return s
}
