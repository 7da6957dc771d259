package intranet

import (
	"errors"
	"fmt"
	"math"
	"testing"

	scsr "github.com/loanedns/SingleCellSignalR"
	"github.com/loanedns/SingleCellSignalR/expression"
	"github.com/loanedns/SingleCellSignalR/interactiondb"
	"github.com/loanedns/SingleCellSignalR/signaling"
)

// builderMatrix returns an 8-cell, 2-cluster matrix. In cluster 1 the
// receptor R1 and the pathway genes A, B, D, E are detected in every cell;
// C, X and Y are silent there. The ligand L1 is private to cluster 2.
func builderMatrix(t *testing.T) (*expression.Matrix, *expression.Clusters) {
	t.Helper()

	genes := []string{"R1", "A", "B", "C", "D", "E", "L1", "X", "Y"}
	cells := make([]string, 8)
	ids := make([]int, 8)
	for j := range cells {
		cells[j] = fmt.Sprintf("cell%d", j+1)
		ids[j] = j/4 + 1
	}

	values := make([][]float64, len(genes))
	for i, g := range genes {
		row := make([]float64, len(cells))
		for j := range row {
			switch {
			case g == "R1":
				row[j] = 2
			case g == "L1" && ids[j] == 2:
				row[j] = 3
			case (g == "A" || g == "B" || g == "D" || g == "E") && ids[j] == 1:
				row[j] = 1
			}
		}
		values[i] = row
	}

	m, err := expression.NewMatrix(genes, cells, values)
	if err != nil {
		t.Fatal(err)
	}
	clusters, err := expression.NewClusters(ids, nil)
	if err != nil {
		t.Fatal(err)
	}
	return m, clusters
}

// enrichmentDB holds 100 records. The receptor pathway P1 tags 4 of them,
// two of which survive the visibility intersection (R1-A and the merged
// A-B edge, where a parallel record also contributes P2).
func enrichmentDB() *interactiondb.PathwayDatabase {
	recs := []interactiondb.PathwayRecord{
		{GeneA: "R1", GeneB: "A", Pathways: []string{"P1"}, Type: "interaction"},
		{GeneA: "A", GeneB: "B", Pathways: []string{"P1"}, Type: "interaction"},
		{GeneA: "A", GeneB: "B", Pathways: []string{"P2"}, Type: "expression"},
		{GeneA: "B", GeneB: "C", Pathways: []string{"P1"}, Type: "interaction"},
		{GeneA: "X", GeneB: "Y", Pathways: []string{"P1"}, Type: "interaction"},
	}
	for i := 0; i < 95; i++ {
		recs = append(recs, interactiondb.PathwayRecord{
			GeneA:    fmt.Sprintf("BIG%02dA", i),
			GeneB:    fmt.Sprintf("BIG%02dB", i),
			Pathways: []string{"BIG"},
			Type:     "interaction",
		})
	}
	return interactiondb.NewPathwayDatabase(recs)
}

func buildOneResult(t *testing.T, opts Options, sig *signaling.Table) Result {
	t.Helper()

	m, clusters := builderMatrix(t)
	b := &Builder{Expr: m, Clusters: clusters, Pathways: enrichmentDB(), Opts: opts}

	results, err := b.Build([]string{"R1"}, 1, sig)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	return results[0]
}

func TestBuildNetworkTopology(t *testing.T) {
	res := buildOneResult(t, Options{}, nil)

	if res.Note != "" {
		t.Fatalf("unexpected note %q", res.Note)
	}
	n := res.Network
	if n == nil {
		t.Fatal("expected a network")
	}

	// The visible pathway intersection keeps R1-A and the merged A-B edge.
	if len(n.Edges) != 2 {
		t.Fatalf("expected 2 edges, got %+v", n.Edges)
	}
	if len(n.Nodes) != 3 {
		t.Fatalf("expected nodes R1, A, B, got %+v", n.Nodes)
	}

	wantDist := map[string]int{"R1": 0, "A": 1, "B": 2}
	for _, node := range n.Nodes {
		want, ok := wantDist[node.Gene]
		if !ok {
			t.Fatalf("unexpected node %+v", node)
		}
		if node.Distance != want {
			t.Fatalf("node %s distance = %d, expected %d", node.Gene, node.Distance, want)
		}
		if node.Gene == "R1" && node.Status != StatusGeneOfInterest {
			t.Fatalf("receptor status = %s", node.Status)
		}
		if node.Gene != "R1" && node.Status != StatusPathwayRelated {
			t.Fatalf("node %s status = %s", node.Gene, node.Status)
		}
	}
}

func TestBuildEnrichment(t *testing.T) {
	res := buildOneResult(t, Options{}, nil)

	if len(res.Enrichment) != 2 {
		t.Fatalf("expected P2 and P1 retained, got %+v", res.Enrichment)
	}

	// Ascending hit count: P2 tags 1 of the 2 network edges, P1 both.
	p2, p1 := res.Enrichment[0], res.Enrichment[1]
	if p2.Pathway != "P2" || p2.Hits != 1 || p2.Size != 1 {
		t.Fatalf("unexpected first row %+v", p2)
	}
	if p1.Pathway != "P1" || p1.Hits != 2 || p1.Size != 4 {
		t.Fatalf("unexpected second row %+v", p1)
	}

	// Drawing 2 of 100 edges: P(X>=2 | K=4) = 6/4950, P(X>=1 | K=1) = 0.02.
	if math.Abs(p1.P-6.0/4950.0) > 1e-9 {
		t.Fatalf("P1 p-value = %v, expected %v", p1.P, 6.0/4950.0)
	}
	if math.Abs(p2.P-0.02) > 1e-9 {
		t.Fatalf("P2 p-value = %v, expected 0.02", p2.P)
	}
	if math.Abs(p1.AdjP-2*6.0/4950.0) > 1e-9 {
		t.Fatalf("P1 adjusted p = %v, expected %v", p1.AdjP, 2*6.0/4950.0)
	}
	if math.Abs(p2.AdjP-0.02) > 1e-9 {
		t.Fatalf("P2 adjusted p = %v, expected 0.02", p2.AdjP)
	}
}

func TestBuildSilentReceptorNote(t *testing.T) {
	m, clusters := builderMatrix(t)
	b := &Builder{Expr: m, Clusters: clusters, Pathways: enrichmentDB()}

	results, err := b.Build([]string{"C"}, 1, nil)
	if err != nil {
		t.Fatal(err)
	}
	if results[0].Network != nil || results[0].Note == "" {
		t.Fatalf("silent receptor must yield an empty noted result, got %+v", results[0])
	}
}

func TestBuildNoInteractionsNote(t *testing.T) {
	// D is expressed in the cluster but appears in no pathway record.
	m, clusters := builderMatrix(t)
	b := &Builder{Expr: m, Clusters: clusters, Pathways: enrichmentDB()}

	results, err := b.Build([]string{"D"}, 1, nil)
	if err != nil {
		t.Fatal(err)
	}
	if results[0].Network != nil || results[0].Note == "" {
		t.Fatalf("receptor without interactions must yield a noted result, got %+v", results[0])
	}
}

func TestBuildConfigErrors(t *testing.T) {
	m, clusters := builderMatrix(t)
	b := &Builder{Expr: m, Clusters: clusters, Pathways: enrichmentDB()}

	if _, err := b.Build([]string{"R1"}, 7, nil); !errors.Is(err, scsr.ErrConfig) {
		t.Fatalf("expected ErrConfig for an out-of-range cluster, got %v", err)
	}
	if _, err := b.Build(nil, 1, nil); !errors.Is(err, scsr.ErrConfig) {
		t.Fatalf("expected ErrConfig for an empty gene list, got %v", err)
	}
}

func TestBuildUnknownPathwayFilter(t *testing.T) {
	m, clusters := builderMatrix(t)
	b := &Builder{
		Expr: m, Clusters: clusters, Pathways: enrichmentDB(),
		Opts: Options{PathwayFilter: []string{"No such pathway"}},
	}

	if _, err := b.Build([]string{"R1"}, 1, nil); !errors.Is(err, scsr.ErrLookup) {
		t.Fatalf("expected ErrLookup, got %v", err)
	}
}

func TestBuildConnectedPrunesIsolatedComponent(t *testing.T) {
	m, clusters := builderMatrix(t)
	db := interactiondb.NewPathwayDatabase([]interactiondb.PathwayRecord{
		{GeneA: "R1", GeneB: "A", Pathways: []string{"P1"}, Type: "interaction"},
		{GeneA: "D", GeneB: "E", Pathways: []string{"P1"}, Type: "interaction"},
	})

	b := &Builder{Expr: m, Clusters: clusters, Pathways: db}
	results, err := b.Build([]string{"R1"}, 1, nil)
	if err != nil {
		t.Fatal(err)
	}
	n := results[0].Network
	if len(n.Nodes) != 4 {
		t.Fatalf("without the prune all 4 nodes stay, got %+v", n.Nodes)
	}
	for _, node := range n.Nodes {
		if (node.Gene == "D" || node.Gene == "E") && node.Distance != 1 {
			t.Fatalf("unreachable node %s should clamp to distance 1, got %d", node.Gene, node.Distance)
		}
	}

	b.Opts.Connected = true
	results, err = b.Build([]string{"R1"}, 1, nil)
	if err != nil {
		t.Fatal(err)
	}
	n = results[0].Network
	if len(n.Nodes) != 2 || len(n.Edges) != 1 {
		t.Fatalf("the prune should keep only the receptor component, got %+v", n)
	}
	for _, node := range n.Nodes {
		if node.Gene == "D" || node.Gene == "E" {
			t.Fatalf("pruned node %s survived", node.Gene)
		}
	}
}

func TestBuildGraftsLigands(t *testing.T) {
	m, clusters := builderMatrix(t)

	s := &signaling.Scorer{
		Expr:     m,
		Clusters: clusters,
		LR:       &interactiondb.LRDatabase{Pairs: []interactiondb.LRPair{{Ligand: "L1", Receptor: "R1"}}},
		Opts:     signaling.Options{Type: signaling.Paracrine},
	}
	sig, err := s.Score()
	if err != nil {
		t.Fatal(err)
	}

	b := &Builder{Expr: m, Clusters: clusters, Pathways: enrichmentDB(), Opts: Options{AddLigands: true}}
	results, err := b.Build([]string{"R1"}, 1, sig)
	if err != nil {
		t.Fatal(err)
	}
	n := results[0].Network

	var graft *Edge
	for i := range n.Edges {
		if n.Edges[i].Location == LocationExtra {
			graft = &n.Edges[i]
		}
	}
	if graft == nil {
		t.Fatalf("expected a grafted ligand edge, got %+v", n.Edges)
	}
	if graft.From != "L1 (cluster 2)" || graft.To != "R1" {
		t.Fatalf("unexpected grafted edge %+v", graft)
	}
	if graft.Type != AddedType {
		t.Fatalf("grafted edge type = %q", graft.Type)
	}
	if math.Abs(graft.Weight-3) > 1e-9 {
		t.Fatalf("grafted edge weight = %v, expected the sender ligand mean 3", graft.Weight)
	}

	found := false
	for _, node := range n.Nodes {
		if node.Gene == "L1 (cluster 2)" {
			found = true
			if node.Status != StatusLigand {
				t.Fatalf("ligand node status = %s", node.Status)
			}
			if node.Distance != 1 {
				t.Fatalf("ligand node distance = %d, expected 1", node.Distance)
			}
		}
	}
	if !found {
		t.Fatal("ligand node missing from the network")
	}

	// Enrichment ignores grafted edges: same rows as the plain build.
	if len(results[0].Enrichment) != 2 {
		t.Fatalf("grafted edges must not enter enrichment, got %+v", results[0].Enrichment)
	}
}
