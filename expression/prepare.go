package expression

import (
	"fmt"
	"log"
	"strings"

	"github.com/montanaflynn/stats"

	scsr "github.com/loanedns/SingleCellSignalR"
	"github.com/loanedns/SingleCellSignalR/ortholog"
)

// Options configures Prepare.
type Options struct {
	// Species of the input matrix. Anything other than "human" requires
	// Orthologs and remaps gene symbols to human before filtering.
	Species string

	// Orthologs resolves the species-to-human symbol dictionary.
	Orthologs ortholog.Mapper

	// LowerQuantile / UpperQuantile bound the per-gene row-sum filter:
	// genes whose total falls below the LowerQuantile quantile or above the
	// 1-UpperQuantile quantile are dropped. Both in [0,1]; zero disables
	// the respective cut.
	LowerQuantile float64
	UpperQuantile float64
}

// DefaultOptions matches a human matrix with no row-sum cuts.
func DefaultOptions() Options {
	return Options{Species: "human"}
}

// Prepare turns a raw count matrix into the normalized, filtered matrix the
// rest of the pipeline consumes: all-zero genes dropped, optional ortholog
// remap to human symbols, per-column 99th-percentile scaling followed by
// log(1+x), then the row-sum quantile filter. The input matrix is not
// modified.
func Prepare(m *Matrix, opts Options) (*Matrix, error) {
	if opts.LowerQuantile < 0 || opts.LowerQuantile > 1 || opts.UpperQuantile < 0 || opts.UpperQuantile > 1 {
		return nil, fmt.Errorf("%w: quantile cuts must lie in [0,1], got lower=%v upper=%v", scsr.ErrConfig, opts.LowerQuantile, opts.UpperQuantile)
	}

	species := strings.ToLower(opts.Species)
	if species == "" {
		species = "human"
	}

	var dict *ortholog.Dictionary
	if species != "human" {
		if opts.Orthologs == nil {
			return nil, fmt.Errorf("%w: species %q requires an ortholog mapper", scsr.ErrConfig, opts.Species)
		}
		var err error
		if dict, err = opts.Orthologs.Map(species); err != nil {
			return nil, err
		}
	}

	// Copy rows, dropping all-zero genes and remapping symbols. Duplicate
	// human symbols after remap: first occurrence wins.
	out := &Matrix{Cells: m.Cells}
	if dict != nil {
		out.OriginalGenes = []string{}
	}
	seen := make(map[string]struct{}, len(m.Genes))

	for i, gene := range m.Genes {
		total := 0.0
		for _, v := range m.Values[i] {
			total += v
		}
		if total == 0 {
			continue
		}

		symbol, original := gene, gene
		if dict != nil {
			human, ok := dict.ToHuman(gene)
			if !ok {
				continue
			}
			symbol = human
		}
		if _, dup := seen[symbol]; dup {
			continue
		}
		seen[symbol] = struct{}{}

		row := make([]float64, len(m.Values[i]))
		copy(row, m.Values[i])

		out.Genes = append(out.Genes, symbol)
		out.Values = append(out.Values, row)
		if dict != nil {
			out.OriginalGenes = append(out.OriginalGenes, original)
		}
	}

	if len(out.Genes) == 0 {
		return nil, fmt.Errorf("%w: no expressed genes after filtering", scsr.ErrInput)
	}

	normalizeColumns(out)

	out.rebuildIndex()
	filtered, err := filterRowSums(out, opts.LowerQuantile, opts.UpperQuantile)
	if err != nil {
		return nil, err
	}

	if dict != nil {
		log.Printf("Mapped %d of %d %s genes to human orthologs", filtered.NGenes(), m.NGenes(), species)
	}

	return filtered, nil
}

// normalizeColumns scales every column so its 99th percentile matches the
// median 99th percentile across columns, then applies log(1+x). Sequencing
// depth varies per cell; scaling to a common high quantile removes that
// depth effect without letting a single outlier gene dominate the way
// total-count scaling would.
func normalizeColumns(m *Matrix) {
	ncells := m.NCells()

	q99 := make([]float64, ncells)
	col := make(stats.Float64Data, m.NGenes())
	for j := 0; j < ncells; j++ {
		for i := range m.Values {
			col[i] = m.Values[i][j]
		}
		p, err := stats.Percentile(col, 99)
		if err != nil {
			p = 0
		}
		q99[j] = p
	}

	med, err := stats.Median(stats.Float64Data(q99))
	if err != nil || med == 0 {
		med = 1
	}

	for j := 0; j < ncells; j++ {
		if q99[j] <= 0 {
			continue
		}
		scale := med / q99[j]
		for i := range m.Values {
			m.Values[i][j] *= scale
		}
	}

	for _, row := range m.Values {
		log1pRow(row)
	}
}

func filterRowSums(m *Matrix, lower, upper float64) (*Matrix, error) {
	totals := make(stats.Float64Data, m.NGenes())
	for i, row := range m.Values {
		for _, v := range row {
			totals[i] += v
		}
	}

	lo, hi := 0.0, -1.0
	if lower > 0 {
		v, err := stats.Percentile(totals, lower*100)
		if err == nil {
			lo = v
		}
	}
	if upper > 0 {
		v, err := stats.Percentile(totals, (1-upper)*100)
		if err == nil {
			hi = v
		}
	}

	keep := make([]int, 0, m.NGenes())
	for i := range m.Values {
		if totals[i] < lo {
			continue
		}
		if hi >= 0 && totals[i] > hi {
			continue
		}
		keep = append(keep, i)
	}

	if len(keep) == 0 {
		return nil, fmt.Errorf("%w: no genes survive the row-sum quantile filter", scsr.ErrInput)
	}

	return m.subset(keep), nil
}
