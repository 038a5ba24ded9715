// Package matrix holds the all-by-all similarity table (TM-scores) and the
// per-cluster restrictions every downstream stage works on.
package matrix

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// SimilarityMatrix is a dense pairwise score table keyed by item identifier.
//
// Rows and columns are indexed independently so that a table whose header
// does not match its row labels exactly (or is not symmetric) can still be
// read. Lookups go through the row index for rows and the column index for
// columns.
type SimilarityMatrix struct {
	rowIDs   []string
	colIDs   []string
	rowIndex map[string]int
	colIndex map[string]int
	data     *mat.Dense
}

// New creates a square similarity matrix where the same identifiers label
// both axes.
func New(ids []string, data *mat.Dense) (*SimilarityMatrix, error) {
	return NewWithAxes(ids, ids, data)
}

// NewWithAxes creates a similarity matrix with separate row and column labels.
func NewWithAxes(rowIDs, colIDs []string, data *mat.Dense) (*SimilarityMatrix, error) {
	if data == nil {
		return nil, fmt.Errorf("similarity matrix has no data")
	}
	r, c := data.Dims()
	if r != len(rowIDs) || c != len(colIDs) {
		return nil, fmt.Errorf("matrix is %dx%d but has %d row labels and %d column labels", r, c, len(rowIDs), len(colIDs))
	}

	rowIndex, err := buildIndex(rowIDs, "row")
	if err != nil {
		return nil, err
	}
	colIndex, err := buildIndex(colIDs, "column")
	if err != nil {
		return nil, err
	}

	return &SimilarityMatrix{
		rowIDs:   append([]string(nil), rowIDs...),
		colIDs:   append([]string(nil), colIDs...),
		rowIndex: rowIndex,
		colIndex: colIndex,
		data:     data,
	}, nil
}

func buildIndex(ids []string, axis string) (map[string]int, error) {
	index := make(map[string]int, len(ids))
	for i, id := range ids {
		if _, exists := index[id]; exists {
			return nil, fmt.Errorf("duplicate %s label %q", axis, id)
		}
		index[id] = i
	}
	return index, nil
}

// Dims returns the number of rows and columns.
func (m *SimilarityMatrix) Dims() (int, int) { return m.data.Dims() }

// RowIDs returns the row labels in file order.
func (m *SimilarityMatrix) RowIDs() []string { return append([]string(nil), m.rowIDs...) }

// ColIDs returns the column labels in file order.
func (m *SimilarityMatrix) ColIDs() []string { return append([]string(nil), m.colIDs...) }

// Has reports whether id can be addressed on both axes.
func (m *SimilarityMatrix) Has(id string) bool {
	_, inRows := m.rowIndex[id]
	_, inCols := m.colIndex[id]
	return inRows && inCols
}

// At returns the score in row a, column b.
func (m *SimilarityMatrix) At(a, b string) (float64, bool) {
	i, ok := m.rowIndex[a]
	if !ok {
		return 0, false
	}
	j, ok := m.colIndex[b]
	if !ok {
		return 0, false
	}
	return m.data.At(i, j), true
}

// Block is a restriction of a SimilarityMatrix to a group of items. RowIDs
// label the rows of Data, ColIDs its columns.
type Block struct {
	RowIDs []string
	ColIDs []string
	Data   *mat.Dense

	// Missing lists the requested items that were dropped because the
	// similarity matrix has no row or column for them.
	Missing []MissingItemError
}

// Restrict returns the square sub-matrix over ids, in the given order.
//
// Items absent from the matrix are dropped and recorded in Block.Missing.
// Repeated ids are kept once, at their first position. When nothing is
// left an *EmptyGroupError is returned.
func (m *SimilarityMatrix) Restrict(ids []string) (*Block, error) {
	valid, missing := m.filter(ids)
	if len(valid) == 0 {
		return nil, &EmptyGroupError{Requested: len(ids), Missing: len(missing)}
	}

	data := mat.NewDense(len(valid), len(valid), nil)
	for i, a := range valid {
		ri := m.rowIndex[a]
		for j, b := range valid {
			data.Set(i, j, m.data.At(ri, m.colIndex[b]))
		}
	}

	return &Block{
		RowIDs:  valid,
		ColIDs:  append([]string(nil), valid...),
		Data:    data,
		Missing: missing,
	}, nil
}

func (m *SimilarityMatrix) filter(ids []string) ([]string, []MissingItemError) {
	seen := make(map[string]struct{}, len(ids))
	valid := make([]string, 0, len(ids))
	var missing []MissingItemError

	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		if !m.Has(id) {
			missing = append(missing, MissingItemError{Item: id})
			continue
		}
		valid = append(valid, id)
	}
	return valid, missing
}

// Len returns the number of rows in the block.
func (b *Block) Len() int { return len(b.RowIDs) }

// Row returns a copy of row i.
func (b *Block) Row(i int) []float64 {
	return mat.Row(nil, i, b.Data)
}

// SelectRows keeps the given rows and every column.
func (b *Block) SelectRows(rows []int) (*Block, error) {
	if len(rows) == 0 {
		return nil, &EmptyGroupError{}
	}
	_, c := b.Data.Dims()
	data := mat.NewDense(len(rows), c, nil)
	ids := make([]string, len(rows))
	for i, r := range rows {
		data.SetRow(i, b.Data.RawRowView(r))
		ids[i] = b.RowIDs[r]
	}
	return &Block{
		RowIDs: ids,
		ColIDs: append([]string(nil), b.ColIDs...),
		Data:   data,
	}, nil
}

// Square keeps the given indices on both axes. It assumes a square block
// whose rows and columns share labels, as returned by Restrict.
func (b *Block) Square(idx []int) (*Block, error) {
	if len(idx) == 0 {
		return nil, &EmptyGroupError{}
	}
	r, c := b.Data.Dims()
	if r != c {
		return nil, fmt.Errorf("cannot take a square selection of a %dx%d block", r, c)
	}
	data := mat.NewDense(len(idx), len(idx), nil)
	ids := make([]string, len(idx))
	for i, a := range idx {
		ids[i] = b.RowIDs[a]
		for j, bb := range idx {
			data.Set(i, j, b.Data.At(a, bb))
		}
	}
	return &Block{
		RowIDs: ids,
		ColIDs: append([]string(nil), ids...),
		Data:   data,
	}, nil
}
