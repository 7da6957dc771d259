// Package signaling scores ligand-receptor interactions between every
// ordered pair of cell clusters and assembles the per-cluster-pair
// interaction tables.
package signaling

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/gocarina/gocsv"
)

// InteractionType selects which ordered cluster pairs are scored.
type InteractionType int

const (
	// Paracrine scores only pairs with sender != receiver.
	Paracrine InteractionType = iota
	// Autocrine scores only pairs with sender == receiver.
	Autocrine
	// Both scores every ordered pair.
	Both
)

// ParseInteractionType maps the CLI spelling onto the enum.
func ParseInteractionType(s string) (InteractionType, error) {
	switch strings.ToLower(s) {
	case "paracrine":
		return Paracrine, nil
	case "autocrine":
		return Autocrine, nil
	case "both":
		return Both, nil
	}
	return 0, fmt.Errorf("unknown interaction type %q (want paracrine, autocrine, or both)", s)
}

func (t InteractionType) String() string {
	switch t {
	case Paracrine:
		return "paracrine"
	case Autocrine:
		return "autocrine"
	}
	return "both"
}

// Interaction is one retained ligand-receptor row of a cluster-pair table.
type Interaction struct {
	Ligand       string  `csv:"ligand"`
	Receptor     string  `csv:"receptor"`
	LigandMean   float64 `csv:"ligand.mean"`
	ReceptorMean float64 `csv:"receptor.mean"`
	Score        float64 `csv:"LRscore"`
	Specific     bool    `csv:"specific"`
}

// ClusterPair is a directed sender-to-receiver cluster pair.
type ClusterPair struct {
	Sender   int
	Receiver int
}

// Table maps every scored cluster pair to its interaction rows, possibly
// empty. Produced once per Score call and immutable afterwards.
type Table struct {
	entries map[ClusterPair][]Interaction
	order   []ClusterPair
	names   []string // display name per cluster id, 1-based offset 0 unused
}

// Pairs returns the scored cluster pairs in deterministic sender-major
// order.
func (t *Table) Pairs() []ClusterPair {
	return t.order
}

// Get returns the rows for a pair; ok is false when the pair was not
// scored under the configured interaction type.
func (t *Table) Get(p ClusterPair) ([]Interaction, bool) {
	rows, ok := t.entries[p]
	return rows, ok
}

// Name renders a cluster's display name.
func (t *Table) Name(cluster int) string {
	if cluster >= 1 && cluster < len(t.names) {
		return t.names[cluster]
	}
	return fmt.Sprintf("cluster %d", cluster)
}

// Key renders the directed pair key used in artifact names and reports.
func (t *Table) Key(p ClusterPair) string {
	return fmt.Sprintf("%s-%s", t.Name(p.Sender), t.Name(p.Receiver))
}

// LigandsTargeting returns, per sender cluster, the ligand rows that name
// receptor as their target in the table entry sender->receiver. The network
// builder grafts these as "extra" edges.
func (t *Table) LigandsTargeting(receptor string, receiver int) map[int][]Interaction {
	out := make(map[int][]Interaction)
	for _, pair := range t.order {
		if pair.Receiver != receiver {
			continue
		}
		for _, row := range t.entries[pair] {
			if row.Receptor == receptor {
				out[pair.Sender] = append(out[pair.Sender], row)
			}
		}
	}
	return out
}

// WriteTables persists one LR_interactions_<sender>-<receiver>.txt per
// scored pair, tab-separated.
func (t *Table) WriteTables(dir string) error {
	setTabWriter()

	for _, pair := range t.order {
		rows := t.entries[pair]
		f, err := os.Create(fmt.Sprintf("%s/LR_interactions_%s.txt", dir, t.Key(pair)))
		if err != nil {
			return err
		}
		if err := gocsv.Marshal(interactionPtrs(rows), f); err != nil {
			f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return err
		}
	}

	return nil
}

// flatRow is the flattened whole-network shape: every retained interaction
// with its cluster context.
type flatRow struct {
	Sender       string  `csv:"sender"`
	Receiver     string  `csv:"receiver"`
	Ligand       string  `csv:"ligand"`
	Receptor     string  `csv:"receptor"`
	LigandMean   float64 `csv:"ligand.mean"`
	ReceptorMean float64 `csv:"receptor.mean"`
	Score        float64 `csv:"LRscore"`
	Specific     bool    `csv:"specific"`
}

// WriteNetwork persists the flattened intercell-network.txt table.
func (t *Table) WriteNetwork(dir string) error {
	setTabWriter()

	rows := make([]*flatRow, 0)
	for _, pair := range t.order {
		for _, r := range t.entries[pair] {
			rows = append(rows, &flatRow{
				Sender:       t.Name(pair.Sender),
				Receiver:     t.Name(pair.Receiver),
				Ligand:       r.Ligand,
				Receptor:     r.Receptor,
				LigandMean:   r.LigandMean,
				ReceptorMean: r.ReceptorMean,
				Score:        r.Score,
				Specific:     r.Specific,
			})
		}
	}

	f, err := os.Create(dir + "/intercell-network.txt")
	if err != nil {
		return err
	}
	defer f.Close()

	return gocsv.Marshal(&rows, f)
}

// Scores returns every retained score, for summary reporting.
func (t *Table) Scores() []float64 {
	out := make([]float64, 0)
	for _, pair := range t.order {
		for _, r := range t.entries[pair] {
			out = append(out, r.Score)
		}
	}
	return out
}

func interactionPtrs(rows []Interaction) *[]*Interaction {
	out := make([]*Interaction, len(rows))
	for i := range rows {
		out[i] = &rows[i]
	}
	return &out
}

func setTabWriter() {
	gocsv.SetCSVWriter(func(out io.Writer) *gocsv.SafeCSVWriter {
		w := csv.NewWriter(out)
		w.Comma = '\t'
		return gocsv.NewSafeCSVWriter(w)
	})
}
