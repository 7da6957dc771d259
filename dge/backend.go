package dge

import (
	"math"

	fet "github.com/glycerine/golang-fisher-exact"
	"github.com/tokenme/probab/dst"
	"gonum.org/v1/gonum/stat"
)

// NegativeBinomialWald is the default test backend: a Wald test on the
// difference of group means under a negative-binomial variance model.
// Single-cell counts are overdispersed relative to Poisson, so the variance
// used for the standard error is floored at the mean (the NB variance is
// mean + mean^2/theta >= mean). The squared z statistic is referred to a
// chi-square with 1 degree of freedom.
type NegativeBinomialWald struct{}

func (NegativeBinomialWald) Test(cluster, rest []float64) (p float64, err error) {
	// dst panics on degenerate input instead of returning an error.
	defer func() {
		if recover() != nil {
			p = 1
		}
	}()

	m1 := stat.Mean(cluster, nil)
	m2 := stat.Mean(rest, nil)
	v1 := math.Max(stat.Variance(cluster, nil), m1)
	v2 := math.Max(stat.Variance(rest, nil), m2)

	se2 := v1/float64(len(cluster)) + v2/float64(len(rest))
	if se2 <= 0 {
		return 1, nil
	}

	z2 := (m1 - m2) * (m1 - m2) / se2

	return 1.0 - dst.ChiSquareCDF(1)(z2), nil
}

// FisherExpressed is an alternative backend that ignores magnitudes and
// tests the expressing-cell counts (detected vs not) in the cluster against
// the rest with a two-sided Fisher exact test. Robust for very small
// clusters where moment estimates are unstable.
type FisherExpressed struct{}

func (FisherExpressed) Test(cluster, rest []float64) (float64, error) {
	inExpr := countExpressing(cluster)
	restExpr := countExpressing(rest)

	_, _, _, twop := fet.FisherExactTest(
		inExpr, len(cluster)-inExpr,
		restExpr, len(rest)-restExpr,
	)

	if math.IsNaN(twop) || twop > 1 {
		twop = 1
	}
	return twop, nil
}

func countExpressing(values []float64) int {
	n := 0
	for _, v := range values {
		if v > 0 {
			n++
		}
	}
	return n
}
