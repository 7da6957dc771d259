package stattest

import "sort"

// BenjaminiHochberg returns the BH-adjusted p-values, elementwise >= the
// raw values, in the input order. Adjusted value for rank i (1-based, after
// ascending sort) is min over j >= i of p_j * m / j, capped at 1.
func BenjaminiHochberg(p []float64) []float64 {
	m := len(p)
	if m == 0 {
		return nil
	}

	order := make([]int, m)
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(i, j int) bool { return p[order[i]] < p[order[j]] })

	adjusted := make([]float64, m)
	running := 1.0
	for rank := m; rank >= 1; rank-- {
		idx := order[rank-1]
		v := p[idx] * float64(m) / float64(rank)
		if v < running {
			running = v
		}
		adjusted[idx] = running
	}

	return adjusted
}
