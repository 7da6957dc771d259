package intranet

import (
	"sort"

	"github.com/loanedns/SingleCellSignalR/stattest"
)

// enrich runs the one-sided hypergeometric test for every pathway present
// among the network's intracellular edges: population N = database edge
// count, pathway size K = database-wide occurrence, sample n = network
// edges, successes k = network edges tagged with the pathway. BH-corrected;
// pathways with adjusted p < 0.05 are retained, ascending by hit count.
func (b *Builder) enrich(edges []Edge) []PathwayHit {
	hits := make(map[string]int)
	n := 0
	for _, e := range edges {
		if e.Location != LocationIntra {
			continue
		}
		n++
		for _, p := range e.Pathways {
			if p == AddedType {
				continue
			}
			hits[p]++
		}
	}
	if n == 0 || len(hits) == 0 {
		return nil
	}

	pathways := make([]string, 0, len(hits))
	for p := range hits {
		pathways = append(pathways, p)
	}
	sort.Strings(pathways)

	N := b.Pathways.Len()
	rows := make([]PathwayHit, 0, len(pathways))
	pvals := make([]float64, 0, len(pathways))

	for _, pathway := range pathways {
		k := hits[pathway]
		K := b.Pathways.Occurrence(pathway)

		// Simplification can merge parallel database records into single
		// network edges, so clamp the counts into a consistent table.
		if k > K {
			k = K
		}
		sample := n
		if sample > N {
			sample = N
		}
		if k > sample {
			k = sample
		}

		p, err := stattest.HypergeometricUpperTail(k, K, sample, N)
		if err != nil {
			p = 1
		}

		rows = append(rows, PathwayHit{Pathway: pathway, Hits: k, Size: K, P: p})
		pvals = append(pvals, p)
	}

	adj := stattest.BenjaminiHochberg(pvals)

	kept := make([]PathwayHit, 0, len(rows))
	for i := range rows {
		rows[i].AdjP = adj[i]
		if adj[i] < EnrichmentCutoff {
			kept = append(kept, rows[i])
		}
	}

	sort.SliceStable(kept, func(i, j int) bool { return kept[i].Hits < kept[j].Hits })
	return kept
}
