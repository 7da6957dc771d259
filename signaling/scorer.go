package signaling

import (
	"math"
	"runtime"
	"sort"

	"github.com/loanedns/SingleCellSignalR/expression"
	"github.com/loanedns/SingleCellSignalR/interactiondb"
)

// Options tunes the scorer.
type Options struct {
	// Type selects autocrine, paracrine, or both. Zero value is Paracrine.
	Type InteractionType

	// MinFraction is the minimum fraction of cells that must detect a gene
	// (> 0) for it to count as expressed in a cluster. Zero means the
	// default of 0.1.
	MinFraction float64

	// Workers caps the cluster-pair fan-out; zero means NumCPU.
	Workers int
}

// DefaultMinFraction is the expressing-cell fraction below which a gene is
// not considered expressed in a cluster.
const DefaultMinFraction = 0.1

// Scorer scores every candidate LR pair for every ordered cluster pair.
// Expr, Clusters, and LR are read-only; a Scorer may be reused.
type Scorer struct {
	Expr     *expression.Matrix
	Clusters *expression.Clusters
	LR       *interactiondb.LRDatabase
	Opts     Options
}

// clusterStats caches, for one gene, its per-cluster mean and
// expressing-cell fraction (index 0 unused, clusters are 1-based).
type clusterStats struct {
	mean     []float64
	fraction []float64

	// maxCluster is the cluster with the strictly highest mean, or 0 on a
	// tie. Ties flag nobody: the specificity flag asserts exclusivity.
	maxCluster int
}

// Score computes the interaction table. Per-cluster gene statistics are
// computed once up front; the per-cluster-pair scoring loop then fans out
// over a bounded set of workers and writes into disjoint slots, so no
// locking is needed.
func (s *Scorer) Score() (*Table, error) {
	minFraction := s.Opts.MinFraction
	if minFraction == 0 {
		minFraction = DefaultMinFraction
	}

	nClusters := s.Clusters.N()
	mu := s.Expr.GlobalMean()
	stats := s.geneStats()

	pairs := s.clusterPairs(nClusters)

	table := &Table{
		entries: make(map[ClusterPair][]Interaction, len(pairs)),
		order:   pairs,
		names:   make([]string, nClusters+1),
	}
	for id := 1; id <= nClusters; id++ {
		table.names[id] = s.Clusters.Name(id)
	}

	results := make([][]Interaction, len(pairs))

	concurrency := s.Opts.Workers
	if concurrency <= 0 {
		concurrency = runtime.NumCPU()
	}
	sem := make(chan bool, concurrency)

	for i, pair := range pairs {
		sem <- true
		go func(slot int, pair ClusterPair) {
			results[slot] = s.scorePair(pair, stats, mu, minFraction)
			<-sem
		}(i, pair)
	}
	for i := 0; i < cap(sem); i++ {
		sem <- true
	}

	for i, pair := range pairs {
		table.entries[pair] = results[i]
	}

	return table, nil
}

func (s *Scorer) clusterPairs(n int) []ClusterPair {
	pairs := make([]ClusterPair, 0, n*n)
	for sender := 1; sender <= n; sender++ {
		for receiver := 1; receiver <= n; receiver++ {
			switch s.Opts.Type {
			case Paracrine:
				if sender == receiver {
					continue
				}
			case Autocrine:
				if sender != receiver {
					continue
				}
			}
			pairs = append(pairs, ClusterPair{Sender: sender, Receiver: receiver})
		}
	}
	return pairs
}

// geneStats computes per-cluster means and expressing fractions for every
// gene the LR database mentions and the matrix contains.
func (s *Scorer) geneStats() map[string]*clusterStats {
	n := s.Clusters.N()

	wanted := make(map[string]struct{}, 2*len(s.LR.Pairs))
	for _, p := range s.LR.Pairs {
		wanted[p.Ligand] = struct{}{}
		wanted[p.Receptor] = struct{}{}
	}

	out := make(map[string]*clusterStats, len(wanted))
	for gene := range wanted {
		if s.Expr.GeneIndex(gene) < 0 {
			continue
		}

		cs := &clusterStats{
			mean:     make([]float64, n+1),
			fraction: make([]float64, n+1),
		}
		best, bestMean, tied := 0, -1.0, false
		for id := 1; id <= n; id++ {
			cells := s.Clusters.CellsOf(id)
			cs.mean[id] = s.Expr.MeanOver(gene, cells)
			cs.fraction[id] = s.Expr.ExpressedFraction(gene, cells)

			if cs.mean[id] > bestMean {
				best, bestMean, tied = id, cs.mean[id], false
			} else if cs.mean[id] == bestMean {
				tied = true
			}
		}
		if !tied && bestMean > 0 {
			cs.maxCluster = best
		}
		out[gene] = cs
	}

	return out
}

func (s *Scorer) scorePair(pair ClusterPair, stats map[string]*clusterStats, mu, minFraction float64) []Interaction {
	rows := make([]Interaction, 0)

	for _, lr := range s.LR.Pairs {
		lig, ok := stats[lr.Ligand]
		if !ok {
			continue
		}
		rec, ok := stats[lr.Receptor]
		if !ok {
			continue
		}

		l := lig.mean[pair.Sender]
		r := rec.mean[pair.Receiver]
		if l <= 0 || r <= 0 {
			continue
		}
		if lig.fraction[pair.Sender] < minFraction || rec.fraction[pair.Receiver] < minFraction {
			continue
		}

		rows = append(rows, Interaction{
			Ligand:       lr.Ligand,
			Receptor:     lr.Receptor,
			LigandMean:   l,
			ReceptorMean: r,
			Score:        lrScore(l, r, mu),
			Specific:     lig.maxCluster == pair.Sender && rec.maxCluster == pair.Receiver,
		})
	}

	sort.SliceStable(rows, func(i, j int) bool { return rows[i].Score > rows[j].Score })
	return rows
}

// lrScore is the regularized geometric mean sqrt(l*r)/(mu+sqrt(l*r)), with
// mu the global mean of the normalized matrix. Monotone increasing in both
// operands, bounded to [0,1), and invariant to a common rescale of l, r and
// mu together.
func lrScore(l, r, mu float64) float64 {
	g := math.Sqrt(l * r)
	if mu <= 0 {
		mu = 1
	}
	return g / (mu + g)
}
