package intranet

import (
	"fmt"
	"log"
	"sort"
	"strings"

	"github.com/katalvlaran/lvlath/bfs"
	"github.com/katalvlaran/lvlath/core"
	"github.com/theodesp/unionfind"

	scsr "github.com/loanedns/SingleCellSignalR"
	"github.com/loanedns/SingleCellSignalR/expression"
	"github.com/loanedns/SingleCellSignalR/interactiondb"
	"github.com/loanedns/SingleCellSignalR/ortholog"
	"github.com/loanedns/SingleCellSignalR/signaling"
)

// Default thresholds of the builder.
const (
	// DefaultCellProp is the minimum fraction of cluster cells that must
	// detect a gene for it to enter the visible set.
	DefaultCellProp = 0.2

	// DefaultMaxOccurrence caps the database-wide occurrence of pathways
	// considered receptor-specific.
	DefaultMaxOccurrence = 500

	// EnrichmentCutoff is the adjusted p-value below which a pathway is
	// retained.
	EnrichmentCutoff = 0.05
)

// Options tunes Build.
type Options struct {
	// CellProp is the visible-set expressing fraction; zero means the 0.2
	// default.
	CellProp float64

	// MaxOccurrence suppresses pathways tagging more database edges than
	// this; zero means the default of 500.
	MaxOccurrence int

	// Connected prunes nodes unreachable from the receptor together with
	// their edges. When false, unreachable nodes keep distance 1.
	Connected bool

	// AddLigands grafts upstream ligand edges from the signaling table.
	AddLigands bool

	// Restrict, when non-nil, narrows the visible gene universe (e.g. to
	// DE marker genes). The receptor itself is always visible.
	Restrict []string

	// PathwayFilter, when non-nil, restricts the receptor's pathways to
	// the named ones. Names absent from the database are a fatal lookup
	// error.
	PathwayFilter []string

	// Dict, when non-nil, translates gene labels back to the source
	// species on the emitted network. Computation stays in human space.
	Dict *ortholog.Dictionary
}

// Builder derives per-receptor intracellular networks for one cluster of
// interest. All referenced resources are read-only.
type Builder struct {
	Expr     *expression.Matrix
	Clusters *expression.Clusters
	Pathways *interactiondb.PathwayDatabase
	Opts     Options
}

// Build runs the network construction for every receptor in goi within
// cluster coi. Receptors that yield no network produce an empty Result
// with an explanatory Note; only configuration problems abort the batch.
func (b *Builder) Build(goi []string, coi int, sig *signaling.Table) ([]Result, error) {
	if coi < 1 || coi > b.Clusters.N() {
		return nil, fmt.Errorf("%w: cluster of interest %d out of range 1..%d", scsr.ErrConfig, coi, b.Clusters.N())
	}
	if len(goi) == 0 {
		return nil, fmt.Errorf("%w: empty gene-of-interest list", scsr.ErrConfig)
	}

	cellProp := b.Opts.CellProp
	if cellProp == 0 {
		cellProp = DefaultCellProp
	}
	maxOcc := b.Opts.MaxOccurrence
	if maxOcc == 0 {
		maxOcc = DefaultMaxOccurrence
	}

	pathwayFilter, err := b.pathwayFilter()
	if err != nil {
		return nil, err
	}

	coiCells := b.Clusters.CellsOf(coi)
	visible := b.visibleGenes(coiCells, cellProp)

	results := make([]Result, 0, len(goi))
	for _, raw := range goi {
		receptor := strings.ToUpper(strings.TrimSpace(raw))
		res := b.buildOne(receptor, coi, coiCells, visible, maxOcc, pathwayFilter, sig)
		results = append(results, res)
	}

	return results, nil
}

func (b *Builder) buildOne(receptor string, coi int, coiCells []int, visible map[string]struct{}, maxOcc int, pathwayFilter map[string]struct{}, sig *signaling.Table) Result {
	if b.Expr.MeanOver(receptor, coiCells) == 0 {
		log.Printf("Receptor %s is not expressed in %s; skipping", receptor, b.Clusters.Name(coi))
		return Result{Receptor: receptor, Note: "receptor not expressed in cluster of interest"}
	}

	// The receptor is always part of the visible universe.
	withReceptor := func(gene string) bool {
		if gene == receptor {
			return true
		}
		_, ok := visible[gene]
		return ok
	}

	// Visible edges, then parallel-edge collapse.
	visibleEdges := interactiondb.NewPathwayDatabase(b.Pathways.Filter(withReceptor)).Simplify()

	// Pathways containing the receptor, minus over-general ones.
	receptorPathways := make(map[string]struct{})
	for _, p := range b.Pathways.PathwaysOf(receptor, maxOcc) {
		if pathwayFilter != nil {
			if _, ok := pathwayFilter[p]; !ok {
				continue
			}
		}
		receptorPathways[p] = struct{}{}
	}

	// Edge keys appearing in any receptor pathway, over the full database.
	allowed := make(map[string]struct{})
	for _, rec := range b.Pathways.Records {
		for _, p := range rec.Pathways {
			if _, ok := receptorPathways[p]; ok {
				allowed[interactiondb.EdgeKey(rec.GeneA, rec.GeneB)] = struct{}{}
				break
			}
		}
	}

	edges := make([]Edge, 0)
	for _, rec := range visibleEdges.Records {
		if _, ok := allowed[interactiondb.EdgeKey(rec.GeneA, rec.GeneB)]; !ok {
			continue
		}
		edges = append(edges, Edge{
			From:     rec.GeneA,
			To:       rec.GeneB,
			Type:     rec.Type,
			Location: LocationIntra,
			Pathways: rec.Pathways,
		})
	}

	if len(edges) == 0 {
		log.Printf("No interactions found for receptor %s in %s", receptor, b.Clusters.Name(coi))
		return Result{Receptor: receptor, Note: "no interactions found"}
	}

	enrichment := b.enrich(edges)

	if b.Opts.AddLigands && sig != nil {
		edges = append(edges, b.graftLigands(receptor, coi, sig)...)
	}

	network := b.assemble(receptor, coi, edges)

	return Result{
		Receptor:   receptor,
		Network:    network.translate(b.Opts.Dict),
		Enrichment: enrichment,
	}
}

// visibleGenes collects genes detected in at least cellProp of the cluster
// cells, narrowed to the restriction universe when one is set.
func (b *Builder) visibleGenes(coiCells []int, cellProp float64) map[string]struct{} {
	var restrict map[string]struct{}
	if b.Opts.Restrict != nil {
		restrict = make(map[string]struct{}, len(b.Opts.Restrict))
		for _, g := range b.Opts.Restrict {
			restrict[strings.ToUpper(g)] = struct{}{}
		}
	}

	visible := make(map[string]struct{})
	for _, gene := range b.Expr.Genes {
		if restrict != nil {
			if _, ok := restrict[gene]; !ok {
				continue
			}
		}
		if b.Expr.ExpressedFraction(gene, coiCells) >= cellProp {
			visible[gene] = struct{}{}
		}
	}
	return visible
}

func (b *Builder) pathwayFilter() (map[string]struct{}, error) {
	if b.Opts.PathwayFilter == nil {
		return nil, nil
	}

	filter := make(map[string]struct{}, len(b.Opts.PathwayFilter))
	for _, name := range b.Opts.PathwayFilter {
		if b.Pathways.Occurrence(name) == 0 {
			return nil, fmt.Errorf("%w: pathway %q not present in the database", scsr.ErrLookup, name)
		}
		filter[name] = struct{}{}
	}
	return filter, nil
}

// graftLigands adds one "extra" edge per sender cluster whose interaction
// table names the receptor as a target, carrying the sender's mean ligand
// expression as the edge weight.
func (b *Builder) graftLigands(receptor string, coi int, sig *signaling.Table) []Edge {
	senders := make([]int, 0)
	bySender := sig.LigandsTargeting(receptor, coi)
	for sender := range bySender {
		senders = append(senders, sender)
	}
	sort.Ints(senders)

	edges := make([]Edge, 0)
	for _, sender := range senders {
		for _, row := range bySender[sender] {
			edges = append(edges, Edge{
				From:     fmt.Sprintf("%s (%s)", row.Ligand, sig.Name(sender)),
				To:       receptor,
				Type:     AddedType,
				Location: LocationExtra,
				Pathways: []string{AddedType},
				Weight:   row.LigandMean,
			})
		}
	}
	return edges
}

// assemble builds the node set, classifies statuses, computes BFS depth
// from the receptor on the undirected view, and applies the connected
// prune when requested.
func (b *Builder) assemble(receptor string, coi int, edges []Edge) *Network {
	names := make([]string, 0)
	index := make(map[string]int)
	addNode := func(name string) {
		if _, ok := index[name]; ok {
			return
		}
		index[name] = len(names)
		names = append(names, name)
	}

	addNode(receptor)
	for _, e := range edges {
		addNode(e.From)
		addNode(e.To)
	}

	if b.Opts.Connected {
		uf := unionfind.NewThreadSafeUnionFind(len(names))
		for _, e := range edges {
			uf.Union(index[e.From], index[e.To])
		}
		rootOf := func(i int) int {
			if r := uf.Root(i); r >= 0 {
				return r
			}
			return i
		}

		recRoot := rootOf(index[receptor])
		kept := make([]Edge, 0, len(edges))
		for _, e := range edges {
			if rootOf(index[e.From]) == recRoot {
				kept = append(kept, e)
			}
		}
		edges = kept

		names = names[:0]
		index = make(map[string]int)
		addNode(receptor)
		for _, e := range edges {
			addNode(e.From)
			addNode(e.To)
		}
	}

	// BFS depths on the undirected view; hop counts feed the renderer's
	// layout downstream.
	g := core.NewGraph(core.WithLoops())
	for _, name := range names {
		g.AddVertex(name)
	}
	for _, e := range edges {
		g.AddEdge(e.From, e.To, 0)
	}

	depth := map[string]int{}
	if res, err := bfs.BFS(g, receptor); err == nil {
		depth = res.Depth
	}

	ligands := make(map[string]struct{})
	for _, e := range edges {
		if e.Location == LocationExtra {
			ligands[e.From] = struct{}{}
		}
	}

	nodes := make([]Node, 0, len(names))
	for _, name := range names {
		status := StatusPathwayRelated
		if name == receptor {
			status = StatusGeneOfInterest
		} else if _, ok := ligands[name]; ok {
			status = StatusLigand
		}

		d, reachable := depth[name]
		if !reachable && name != receptor {
			d = 1
		}

		nodes = append(nodes, Node{Gene: name, Status: status, Distance: d})
	}

	return &Network{Receptor: receptor, Cluster: coi, Nodes: nodes, Edges: edges}
}
