package expression

import (
	"fmt"
	"log"
	"sort"

	"github.com/carbocation/runningvariance"
	"github.com/montanaflynn/stats"

	scsr "github.com/loanedns/SingleCellSignalR"
)

// MostVariable returns the n genes with the highest coefficient of
// variation (sd/mean) among genes whose mean exceeds the matrix-wide median
// gene mean. The mean floor keeps barely-detected genes, whose CV is mostly
// shot noise, out of the ranking. When fewer than n genes qualify, every
// qualifying gene is returned and a warning is logged; that is not an
// error.
func MostVariable(m *Matrix, n int) (*Reduced, error) {
	if n <= 0 {
		return nil, fmt.Errorf("%w: most-variable gene count must be positive, got %d", scsr.ErrConfig, n)
	}

	type geneCV struct {
		row int
		cv  float64
	}

	means := make(stats.Float64Data, m.NGenes())
	sds := make([]float64, m.NGenes())
	for i, row := range m.Values {
		rs := runningvariance.NewRunningStat()
		for _, v := range row {
			rs.Push(v)
		}
		means[i] = rs.Mean()
		sds[i] = rs.StandardDeviation()
	}

	floor, err := stats.Median(means)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", scsr.ErrInput, err)
	}

	qualifying := make([]geneCV, 0, m.NGenes())
	for i := range m.Values {
		if means[i] <= floor || means[i] == 0 {
			continue
		}
		qualifying = append(qualifying, geneCV{row: i, cv: sds[i] / means[i]})
	}

	sort.Slice(qualifying, func(i, j int) bool {
		if qualifying[i].cv != qualifying[j].cv {
			return qualifying[i].cv > qualifying[j].cv
		}
		return qualifying[i].row < qualifying[j].row
	})

	if len(qualifying) < n {
		log.Printf("Requested %d most-variable genes but only %d qualify; returning all of them", n, len(qualifying))
	} else {
		qualifying = qualifying[:n]
	}

	rows := make([]int, len(qualifying))
	for i, q := range qualifying {
		rows[i] = q.row
	}
	sort.Ints(rows)

	return &Reduced{Matrix: m.subset(rows), Requested: n}, nil
}
