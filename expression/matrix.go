// Package expression holds the normalized count matrix, its gene index, the
// optional most-variable-genes reduction, and per-cell cluster labels.
package expression

import (
	"fmt"
	"math"

	scsr "github.com/loanedns/SingleCellSignalR"
)

// Matrix is a dense gene-by-cell expression matrix. Values[i][j] is the
// expression of Genes[i] in Cells[j]. Once Prepare has run, a Matrix is
// treated as immutable and shared read-only by the scorer and the network
// builder.
type Matrix struct {
	Genes  []string
	Cells  []string
	Values [][]float64

	// OriginalGenes carries the source-species symbol per gene when the
	// matrix was remapped through an ortholog dictionary; nil for human
	// input.
	OriginalGenes []string

	index map[string]int
}

// NewMatrix constructs a matrix, dropping duplicate gene rows (first
// occurrence wins) and validating the row/column shape.
func NewMatrix(genes []string, cells []string, values [][]float64) (*Matrix, error) {
	if len(genes) != len(values) {
		return nil, fmt.Errorf("%w: %d gene names for %d value rows", scsr.ErrInput, len(genes), len(values))
	}

	m := &Matrix{
		Cells: cells,
		index: make(map[string]int, len(genes)),
	}

	for i, g := range genes {
		if len(values[i]) != len(cells) {
			return nil, fmt.Errorf("%w: gene %s has %d values for %d cells", scsr.ErrInput, g, len(values[i]), len(cells))
		}
		if _, seen := m.index[g]; seen {
			continue
		}
		m.index[g] = len(m.Genes)
		m.Genes = append(m.Genes, g)
		m.Values = append(m.Values, values[i])
	}

	return m, nil
}

// GeneIndex returns the row index of a gene symbol, or -1.
func (m *Matrix) GeneIndex(gene string) int {
	if i, ok := m.index[gene]; ok {
		return i
	}
	return -1
}

// Row returns the expression vector for a gene, or nil when absent.
func (m *Matrix) Row(gene string) []float64 {
	i := m.GeneIndex(gene)
	if i < 0 {
		return nil
	}
	return m.Values[i]
}

// NGenes and NCells report the matrix shape.
func (m *Matrix) NGenes() int { return len(m.Genes) }
func (m *Matrix) NCells() int { return len(m.Cells) }

// MeanOver averages a gene's expression over the given cell columns.
// Returns 0 when the gene is absent.
func (m *Matrix) MeanOver(gene string, cols []int) float64 {
	row := m.Row(gene)
	if row == nil || len(cols) == 0 {
		return 0
	}

	sum := 0.0
	for _, c := range cols {
		sum += row[c]
	}
	return sum / float64(len(cols))
}

// ExpressedFraction reports the fraction of the given cell columns in which
// the gene is detected (> 0).
func (m *Matrix) ExpressedFraction(gene string, cols []int) float64 {
	row := m.Row(gene)
	if row == nil || len(cols) == 0 {
		return 0
	}

	n := 0
	for _, c := range cols {
		if row[c] > 0 {
			n++
		}
	}
	return float64(n) / float64(len(cols))
}

// GlobalMean is the mean over every entry of the matrix. The scorer uses it
// as the regularization constant of the LR score.
func (m *Matrix) GlobalMean() float64 {
	sum, n := 0.0, 0
	for _, row := range m.Values {
		for _, v := range row {
			sum += v
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

// rebuildIndex recomputes the symbol index after a row subset.
func (m *Matrix) rebuildIndex() {
	m.index = make(map[string]int, len(m.Genes))
	for i, g := range m.Genes {
		m.index[g] = i
	}
}

// subset returns a new matrix containing the given rows, sharing the
// underlying value slices (rows are never mutated after Prepare).
func (m *Matrix) subset(rows []int) *Matrix {
	out := &Matrix{
		Cells:  m.Cells,
		Genes:  make([]string, 0, len(rows)),
		Values: make([][]float64, 0, len(rows)),
	}
	if m.OriginalGenes != nil {
		out.OriginalGenes = make([]string, 0, len(rows))
	}

	for _, i := range rows {
		out.Genes = append(out.Genes, m.Genes[i])
		out.Values = append(out.Values, m.Values[i])
		if m.OriginalGenes != nil {
			out.OriginalGenes = append(out.OriginalGenes, m.OriginalGenes[i])
		}
	}

	out.rebuildIndex()
	return out
}

// Reduced is a most-variable-genes subset of a prepared matrix. It shares
// the parent's cell ordering.
type Reduced struct {
	*Matrix

	// Requested is the gene count asked for; when fewer genes qualified,
	// NGenes() < Requested and MostVariable logged a warning.
	Requested int
}

// log1p on a full row, guarding against negative rounding noise.
func log1pRow(row []float64) {
	for j, v := range row {
		if v < 0 {
			v = 0
		}
		row[j] = math.Log1p(v)
	}
}
