// Package intranet builds receptor-rooted intracellular connectivity
// networks: it intersects the pathway database with the genes visible in a
// cluster of interest, optionally grafts upstream ligand edges from the
// intercellular signaling table, and scores pathway enrichment over the
// resulting edge set.
package intranet

import "github.com/loanedns/SingleCellSignalR/ortholog"

// NodeStatus classifies a network node.
type NodeStatus string

const (
	StatusGeneOfInterest NodeStatus = "gene-of-interest"
	StatusPathwayRelated NodeStatus = "pathway-related"
	StatusLigand         NodeStatus = "ligand"
)

// EdgeLocation distinguishes intracellular pathway edges from grafted
// extracellular ligand edges.
type EdgeLocation string

const (
	LocationIntra EdgeLocation = "intra"
	LocationExtra EdgeLocation = "extra"
)

// AddedType tags grafted ligand edges; it is excluded from enrichment.
const AddedType = "added"

// Node is a gene in the network. Distance is the BFS hop count from the
// receptor on the undirected view, used downstream for layout; unreachable
// nodes are clamped to 1 unless the builder pruned them.
type Node struct {
	Gene     string
	Status   NodeStatus
	Distance int
}

// Edge is a directed relation between two genes.
type Edge struct {
	From     string
	To       string
	Type     string
	Location EdgeLocation
	Pathways []string
	Weight   float64
}

// Network is the per-receptor connectivity graph. Rebuilt in full on every
// Build call, never mutated afterwards.
type Network struct {
	Receptor string
	Cluster  int
	Nodes    []Node
	Edges    []Edge
}

// PathwayHit is one row of the enrichment table.
type PathwayHit struct {
	Pathway string  `csv:"pathway"`
	Hits    int     `csv:"hits"`
	Size    int     `csv:"pathway.size"`
	P       float64 `csv:"pval"`
	AdjP    float64 `csv:"adj.pval"`
}

// Result is the outcome for one receptor of the goi list. Biologically
// empty outcomes (receptor silent in the cluster, no surviving edges) are
// not errors: Network is nil and Note says why.
type Result struct {
	Receptor   string
	Network    *Network
	Enrichment []PathwayHit
	Note       string
}

// translate maps a network's gene labels back to the source species for
// reporting. The computation itself always runs in human symbol space.
func (n *Network) translate(dict *ortholog.Dictionary) *Network {
	if dict == nil {
		return n
	}

	out := &Network{
		Receptor: dict.FromHuman(n.Receptor),
		Cluster:  n.Cluster,
		Nodes:    make([]Node, len(n.Nodes)),
		Edges:    make([]Edge, len(n.Edges)),
	}
	for i, node := range n.Nodes {
		node.Gene = dict.FromHuman(node.Gene)
		out.Nodes[i] = node
	}
	for i, edge := range n.Edges {
		edge.From = dict.FromHuman(edge.From)
		edge.To = dict.FromHuman(edge.To)
		out.Edges[i] = edge
	}
	return out
}
