// Package stattest provides the small shared statistics used by pathway
// enrichment and differential expression: the one-sided hypergeometric tail
// and Benjamini-Hochberg adjustment.
package stattest

import (
	"fmt"

	fet "github.com/glycerine/golang-fisher-exact"

	scsr "github.com/loanedns/SingleCellSignalR"
)

// HypergeometricUpperTail returns P(X >= k) for X ~ Hypergeometric(N, K, n):
// a population of N edges of which K carry the tag, n drawn, k tagged among
// the drawn. Computed as the right-tailed Fisher exact p-value of the
// induced 2x2 table, which is that tail probability by definition:
//
//	k      n-k      | n
//	K-k    N-K-n+k  | N-n
//	-----------------+---
//	K      N-K      | N
func HypergeometricUpperTail(k, K, n, N int) (float64, error) {
	if k < 0 || K < 0 || n < 0 || N < 0 {
		return 0, fmt.Errorf("%w: negative hypergeometric parameter (k=%d K=%d n=%d N=%d)", scsr.ErrConfig, k, K, n, N)
	}
	if k > n || k > K || K > N || n > N || N-K-n+k < 0 {
		return 0, fmt.Errorf("%w: inconsistent hypergeometric parameters (k=%d K=%d n=%d N=%d)", scsr.ErrConfig, k, K, n, N)
	}
	if k == 0 {
		// P(X >= 0) is certain; skip the table machinery.
		return 1, nil
	}

	_, _, rightp, _ := fet.FisherExactTest(k, n-k, K-k, N-K-n+k)

	// Guard against floating-point drift from the log-gamma sums.
	if rightp < 0 {
		rightp = 0
	}
	if rightp > 1 {
		rightp = 1
	}

	return rightp, nil
}
