package intranet

import (
	"encoding/csv"
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/gocarina/gocsv"

	scsr "github.com/loanedns/SingleCellSignalR"
)

// GraphML attribute keys. Fixed ids keep exported files diffable.
const (
	keyStatus   = "status"
	keyDistance = "distance"
	keyType     = "type"
	keyLocation = "location"
	keyPathways = "pathways"
	keyWeight   = "weight"
)

type xmlData struct {
	Key   string `xml:"key,attr"`
	Value string `xml:",chardata"`
}

type xmlNode struct {
	ID   string    `xml:"id,attr"`
	Data []xmlData `xml:"data"`
}

type xmlEdge struct {
	Source string    `xml:"source,attr"`
	Target string    `xml:"target,attr"`
	Data   []xmlData `xml:"data"`
}

type xmlKey struct {
	ID       string `xml:"id,attr"`
	For      string `xml:"for,attr"`
	AttrName string `xml:"attr.name,attr"`
	AttrType string `xml:"attr.type,attr"`
}

type xmlGraph struct {
	ID          string    `xml:"id,attr"`
	EdgeDefault string    `xml:"edgedefault,attr"`
	Nodes       []xmlNode `xml:"node"`
	Edges       []xmlEdge `xml:"edge"`
}

type xmlGraphML struct {
	XMLName xml.Name `xml:"graphml"`
	XMLNS   string   `xml:"xmlns,attr"`
	Keys    []xmlKey `xml:"key"`
	Graph   xmlGraph `xml:"graph"`
}

// WriteGraphML serializes the network as an attributed GraphML document:
// node status and distance, edge type, location, pathway tags and weight.
func (n *Network) WriteGraphML(w io.Writer) error {
	doc := xmlGraphML{
		XMLNS: "http://graphml.graphdrawing.org/xmlns",
		Keys: []xmlKey{
			{ID: keyStatus, For: "node", AttrName: keyStatus, AttrType: "string"},
			{ID: keyDistance, For: "node", AttrName: keyDistance, AttrType: "int"},
			{ID: keyType, For: "edge", AttrName: keyType, AttrType: "string"},
			{ID: keyLocation, For: "edge", AttrName: keyLocation, AttrType: "string"},
			{ID: keyPathways, For: "edge", AttrName: keyPathways, AttrType: "string"},
			{ID: keyWeight, For: "edge", AttrName: keyWeight, AttrType: "double"},
		},
		Graph: xmlGraph{
			ID:          fmt.Sprintf("%s-cluster%d", n.Receptor, n.Cluster),
			EdgeDefault: "directed",
		},
	}

	for _, node := range n.Nodes {
		doc.Graph.Nodes = append(doc.Graph.Nodes, xmlNode{
			ID: node.Gene,
			Data: []xmlData{
				{Key: keyStatus, Value: string(node.Status)},
				{Key: keyDistance, Value: strconv.Itoa(node.Distance)},
			},
		})
	}

	for _, edge := range n.Edges {
		doc.Graph.Edges = append(doc.Graph.Edges, xmlEdge{
			Source: edge.From,
			Target: edge.To,
			Data: []xmlData{
				{Key: keyType, Value: edge.Type},
				{Key: keyLocation, Value: string(edge.Location)},
				{Key: keyPathways, Value: strings.Join(edge.Pathways, ";")},
				{Key: keyWeight, Value: strconv.FormatFloat(edge.Weight, 'g', -1, 64)},
			},
		})
	}

	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	return enc.Encode(doc)
}

// ReadGraphML parses a document written by WriteGraphML back into a
// Network. Node count, edge count and per-edge type/location round-trip.
func ReadGraphML(r io.Reader) (*Network, error) {
	var doc xmlGraphML
	if err := xml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: graphml: %v", scsr.ErrInput, err)
	}

	n := &Network{}

	for _, xn := range doc.Graph.Nodes {
		node := Node{Gene: xn.ID, Status: StatusPathwayRelated}
		for _, d := range xn.Data {
			switch d.Key {
			case keyStatus:
				node.Status = NodeStatus(d.Value)
			case keyDistance:
				if v, err := strconv.Atoi(strings.TrimSpace(d.Value)); err == nil {
					node.Distance = v
				}
			}
		}
		if node.Status == StatusGeneOfInterest && n.Receptor == "" {
			n.Receptor = node.Gene
		}
		n.Nodes = append(n.Nodes, node)
	}

	for _, xe := range doc.Graph.Edges {
		edge := Edge{From: xe.Source, To: xe.Target, Location: LocationIntra}
		for _, d := range xe.Data {
			switch d.Key {
			case keyType:
				edge.Type = d.Value
			case keyLocation:
				edge.Location = EdgeLocation(d.Value)
			case keyPathways:
				if v := strings.TrimSpace(d.Value); v != "" {
					edge.Pathways = strings.Split(v, ";")
				}
			case keyWeight:
				if v, err := strconv.ParseFloat(strings.TrimSpace(d.Value), 64); err == nil {
					edge.Weight = v
				}
			}
		}
		n.Edges = append(n.Edges, edge)
	}

	return n, nil
}

// WriteArtifacts persists the per-receptor graph and enrichment table under
// dir using the conventional artifact names:
// intracell_network_<coi>-<receptor>.graphml and
// intracell_network_pathway_analysis_<coi>-<receptor>.txt (sorted by
// adjusted p-value). Empty results write nothing.
func WriteArtifacts(dir, coiName string, res Result) error {
	if res.Network == nil {
		return nil
	}

	gf, err := os.Create(fmt.Sprintf("%s/intracell_network_%s-%s.graphml", dir, coiName, res.Receptor))
	if err != nil {
		return err
	}
	if err := res.Network.WriteGraphML(gf); err != nil {
		gf.Close()
		return err
	}
	if err := gf.Close(); err != nil {
		return err
	}

	rows := make([]*PathwayHit, len(res.Enrichment))
	for i := range res.Enrichment {
		rows[i] = &res.Enrichment[i]
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].AdjP < rows[j].AdjP })

	gocsv.SetCSVWriter(func(out io.Writer) *gocsv.SafeCSVWriter {
		w := csv.NewWriter(out)
		w.Comma = '\t'
		return gocsv.NewSafeCSVWriter(w)
	})

	tf, err := os.Create(fmt.Sprintf("%s/intracell_network_pathway_analysis_%s-%s.txt", dir, coiName, res.Receptor))
	if err != nil {
		return err
	}
	defer tf.Close()

	return gocsv.Marshal(&rows, tf)
}
