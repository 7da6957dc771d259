// Package dge computes per-cluster marker genes by one-vs-rest comparison
// with multiple-testing correction. The count-based test itself is an
// injected collaborator (Backend); this package owns the iteration, the
// correction, and the result tables.
package dge

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"sort"

	"github.com/gocarina/gocsv"
	"gonum.org/v1/gonum/stat"

	scsr "github.com/loanedns/SingleCellSignalR"
	"github.com/loanedns/SingleCellSignalR/expression"
	"github.com/loanedns/SingleCellSignalR/stattest"
)

// Row is one retained marker gene for a cluster.
type Row struct {
	Gene        string  `csv:"gene"`
	ClusterMean float64 `csv:"cluster.mean"`
	RestMean    float64 `csv:"rest.mean"`
	LogFC       float64 `csv:"logFC"`
	P           float64 `csv:"pval"`
	AdjP        float64 `csv:"adj.pval"`
}

// Backend is the external count-based differential expression test: it
// compares a gene's expression in the cluster against the remaining cells
// and returns a two-sided p-value.
type Backend interface {
	Test(cluster, rest []float64) (float64, error)
}

// DGE runs one-vs-rest marker detection for every cluster, retaining genes
// with a BH-adjusted p-value below threshold, sorted ascending by adjusted
// p. The test is undefined for fewer than 2 clusters or clusters with
// fewer than 2 cells.
func DGE(expr *expression.Matrix, clusters *expression.Clusters, threshold float64, backend Backend) (map[int][]Row, error) {
	if threshold <= 0 || threshold > 1 {
		return nil, fmt.Errorf("%w: p-value threshold must lie in (0,1], got %v", scsr.ErrConfig, threshold)
	}
	if clusters.N() < 2 {
		return nil, fmt.Errorf("%w: differential expression needs at least 2 clusters, got %d", scsr.ErrConfig, clusters.N())
	}
	for id := 1; id <= clusters.N(); id++ {
		if len(clusters.CellsOf(id)) < 2 {
			return nil, fmt.Errorf("%w: cluster %s has fewer than 2 cells", scsr.ErrConfig, clusters.Name(id))
		}
	}
	if len(clusters.IDs) != expr.NCells() {
		return nil, fmt.Errorf("%w: %d cluster labels for %d cells", scsr.ErrConfig, len(clusters.IDs), expr.NCells())
	}
	if backend == nil {
		backend = NegativeBinomialWald{}
	}

	out := make(map[int][]Row, clusters.N())

	for id := 1; id <= clusters.N(); id++ {
		inCols := clusters.CellsOf(id)
		restCols := restOf(clusters, id, expr.NCells())

		rows := make([]Row, 0, expr.NGenes())
		pvals := make([]float64, 0, expr.NGenes())

		for i, gene := range expr.Genes {
			in := gather(expr.Values[i], inCols)
			rest := gather(expr.Values[i], restCols)

			p, err := backend.Test(in, rest)
			if err != nil {
				return nil, fmt.Errorf("cluster %s gene %s: %w", clusters.Name(id), gene, err)
			}

			mIn := stat.Mean(in, nil)
			mRest := stat.Mean(rest, nil)
			rows = append(rows, Row{
				Gene:        gene,
				ClusterMean: mIn,
				RestMean:    mRest,
				LogFC:       logFC(mIn, mRest),
				P:           p,
			})
			pvals = append(pvals, p)
		}

		adj := stattest.BenjaminiHochberg(pvals)

		kept := make([]Row, 0)
		for i := range rows {
			rows[i].AdjP = adj[i]
			if adj[i] < threshold {
				kept = append(kept, rows[i])
			}
		}
		sort.SliceStable(kept, func(a, b int) bool { return kept[a].AdjP < kept[b].AdjP })

		out[id] = kept
	}

	return out, nil
}

// WriteTables persists one table_dge_<cluster>.txt per cluster,
// tab-separated.
func WriteTables(dir string, clusters *expression.Clusters, tables map[int][]Row) error {
	gocsv.SetCSVWriter(func(out io.Writer) *gocsv.SafeCSVWriter {
		w := csv.NewWriter(out)
		w.Comma = '\t'
		return gocsv.NewSafeCSVWriter(w)
	})

	for id := 1; id <= clusters.N(); id++ {
		rows := tables[id]
		ptrs := make([]*Row, len(rows))
		for i := range rows {
			ptrs[i] = &rows[i]
		}

		f, err := os.Create(fmt.Sprintf("%s/table_dge_%s.txt", dir, clusters.Name(id)))
		if err != nil {
			return err
		}
		if err := gocsv.Marshal(&ptrs, f); err != nil {
			f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return err
		}
	}

	return nil
}

// MarkerGenes flattens the per-cluster tables into the distinct retained
// gene set, for narrowing the network builder's visible universe.
func MarkerGenes(tables map[int][]Row) []string {
	seen := make(map[string]struct{})
	out := make([]string, 0)
	for _, rows := range tables {
		for _, r := range rows {
			if _, ok := seen[r.Gene]; ok {
				continue
			}
			seen[r.Gene] = struct{}{}
			out = append(out, r.Gene)
		}
	}
	sort.Strings(out)
	return out
}

func restOf(clusters *expression.Clusters, id, nCells int) []int {
	out := make([]int, 0, nCells)
	for col, cid := range clusters.IDs {
		if cid != id {
			out = append(out, col)
		}
	}
	return out
}

func gather(row []float64, cols []int) []float64 {
	out := make([]float64, len(cols))
	for i, c := range cols {
		out[i] = row[c]
	}
	return out
}

func logFC(a, b float64) float64 {
	const eps = 1e-9
	return math.Log2((a + eps) / (b + eps))
}
