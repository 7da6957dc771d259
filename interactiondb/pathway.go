package interactiondb

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/gocarina/gocsv"

	scsr "github.com/loanedns/SingleCellSignalR"
)

// PathwayRecord is one annotated gene-gene relation. A single edge may
// belong to several pathways; Pathways holds the distinct names.
type PathwayRecord struct {
	GeneA    string
	GeneB    string
	Pathways []string
	Type     string
}

// pathwayRow is the on-disk shape: the pathway set is a ";"-delimited list.
type pathwayRow struct {
	GeneA   string `csv:"a_gn"`
	GeneB   string `csv:"b_gn"`
	Pathway string `csv:"pathway"`
	Type    string `csv:"type"`
}

// PathwayDatabase is the ordered relation table plus the per-pathway
// occurrence index used to suppress over-general pathways.
type PathwayDatabase struct {
	Records []PathwayRecord

	occurrence map[string]int
}

// LoadPathways reads a tab-separated relation table with columns
// a_gn, b_gn, pathway (";"-delimited list), type.
func LoadPathways(path string) (*PathwayDatabase, error) {
	f, err := os.Open(scsr.ExpandHome(path))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", scsr.ErrInput, err)
	}
	defer f.Close()

	return ReadPathways(f, path)
}

// ReadPathways parses a relation table from a stream.
func ReadPathways(r io.Reader, name string) (*PathwayDatabase, error) {
	gocsv.SetCSVReader(func(in io.Reader) gocsv.CSVReader {
		cr := csv.NewReader(in)
		cr.Comma = '\t'
		cr.LazyQuotes = true
		return cr
	})

	var rows []*pathwayRow
	if err := gocsv.Unmarshal(r, &rows); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", scsr.ErrInput, name, err)
	}

	records := make([]PathwayRecord, 0, len(rows))
	for i, row := range rows {
		a := strings.ToUpper(strings.TrimSpace(row.GeneA))
		b := strings.ToUpper(strings.TrimSpace(row.GeneB))
		if a == "" || b == "" {
			return nil, fmt.Errorf("%w: %s row %d: empty gene symbol", scsr.ErrInput, name, i+2)
		}
		records = append(records, PathwayRecord{
			GeneA:    a,
			GeneB:    b,
			Pathways: splitPathways(row.Pathway),
			Type:     strings.TrimSpace(row.Type),
		})
	}

	return NewPathwayDatabase(records), nil
}

// NewPathwayDatabase indexes a record list. The records are not copied;
// callers hand over ownership.
func NewPathwayDatabase(records []PathwayRecord) *PathwayDatabase {
	db := &PathwayDatabase{
		Records:    records,
		occurrence: make(map[string]int),
	}
	for _, rec := range records {
		for _, p := range rec.Pathways {
			db.occurrence[p]++
		}
	}
	return db
}

// Len reports the database-wide edge count (the population size N of the
// enrichment test).
func (db *PathwayDatabase) Len() int { return len(db.Records) }

// Occurrence reports how many database edges carry the pathway tag (the
// pathway size K of the enrichment test).
func (db *PathwayDatabase) Occurrence(pathway string) int {
	return db.occurrence[pathway]
}

// PathwaysOf returns the pathways that contain gene, skipping pathways
// whose database-wide occurrence exceeds maxOccurrence (0 disables the
// cap). Over-general pathways tag thousands of edges and carry no
// receptor-specific signal.
func (db *PathwayDatabase) PathwaysOf(gene string, maxOccurrence int) []string {
	gene = strings.ToUpper(gene)
	set := make(map[string]struct{})
	for _, rec := range db.Records {
		if rec.GeneA != gene && rec.GeneB != gene {
			continue
		}
		for _, p := range rec.Pathways {
			if maxOccurrence > 0 && db.occurrence[p] > maxOccurrence {
				continue
			}
			set[p] = struct{}{}
		}
	}

	out := make([]string, 0, len(set))
	for p := range set {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Simplify collapses parallel records between the same unordered gene pair
// into one record carrying the union of pathway tags and interaction types.
func (db *PathwayDatabase) Simplify() *PathwayDatabase {
	type merged struct {
		rec      PathwayRecord
		pathways map[string]struct{}
		types    map[string]struct{}
	}

	order := make([]string, 0, len(db.Records))
	byKey := make(map[string]*merged, len(db.Records))

	for _, rec := range db.Records {
		key := EdgeKey(rec.GeneA, rec.GeneB)
		m, ok := byKey[key]
		if !ok {
			m = &merged{
				rec:      PathwayRecord{GeneA: rec.GeneA, GeneB: rec.GeneB},
				pathways: make(map[string]struct{}),
				types:    make(map[string]struct{}),
			}
			byKey[key] = m
			order = append(order, key)
		}
		for _, p := range rec.Pathways {
			m.pathways[p] = struct{}{}
		}
		if rec.Type != "" {
			m.types[rec.Type] = struct{}{}
		}
	}

	records := make([]PathwayRecord, 0, len(order))
	for _, key := range order {
		m := byKey[key]
		m.rec.Pathways = sortedKeys(m.pathways)
		m.rec.Type = strings.Join(sortedKeys(m.types), ";")
		records = append(records, m.rec)
	}

	return NewPathwayDatabase(records)
}

// Filter returns the records whose both endpoints satisfy keep.
func (db *PathwayDatabase) Filter(keep func(gene string) bool) []PathwayRecord {
	out := make([]PathwayRecord, 0)
	for _, rec := range db.Records {
		if keep(rec.GeneA) && keep(rec.GeneB) {
			out = append(out, rec)
		}
	}
	return out
}

// EdgeKey is the canonical unordered pair key "A|B" used for edge-set
// intersections.
func EdgeKey(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return a + "|" + b
}

func splitPathways(s string) []string {
	parts := strings.Split(s, ";")
	set := make(map[string]struct{}, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		set[p] = struct{}{}
	}
	return sortedKeys(set)
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
