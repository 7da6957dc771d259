// Package interactiondb holds the static reference tables the pipeline
// scores against: the ligand-receptor pair database and the
// pathway-annotated gene-gene relation database. Both are constructed once
// at session start, treated as immutable, and injected into the scorer and
// the network builder.
package interactiondb

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/gocarina/gocsv"

	scsr "github.com/loanedns/SingleCellSignalR"
)

// LRPair is one ligand-receptor hypothesis. Symbols are upper-cased on
// load.
type LRPair struct {
	Ligand   string `csv:"ligand"`
	Receptor string `csv:"receptor"`
}

// LRDatabase is an ordered ligand-receptor pair table.
type LRDatabase struct {
	Pairs []LRPair
}

// LoadLR reads a tab-separated ligand/receptor table. The header must
// consist of exactly the columns "ligand" and "receptor"; anything else is
// a schema violation (the switchDB contract).
func LoadLR(path string) (*LRDatabase, error) {
	f, err := os.Open(scsr.ExpandHome(path))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", scsr.ErrInput, err)
	}
	defer f.Close()

	return ReadLR(f, path)
}

// ReadLR parses an LR table from a stream; name is used in errors only.
func ReadLR(r io.Reader, name string) (*LRDatabase, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", scsr.ErrInput, name, err)
	}

	if err := validateHeader(raw, []string{"ligand", "receptor"}); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", scsr.ErrConfig, name, err)
	}

	gocsv.SetCSVReader(func(in io.Reader) gocsv.CSVReader {
		cr := csv.NewReader(in)
		cr.Comma = '\t'
		cr.LazyQuotes = true
		return cr
	})

	var pairs []*LRPair
	if err := gocsv.UnmarshalBytes(raw, &pairs); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", scsr.ErrInput, name, err)
	}

	db := &LRDatabase{Pairs: make([]LRPair, 0, len(pairs))}
	for i, p := range pairs {
		if strings.TrimSpace(p.Ligand) == "" || strings.TrimSpace(p.Receptor) == "" {
			return nil, fmt.Errorf("%w: %s row %d: empty ligand or receptor", scsr.ErrConfig, name, i+2)
		}
		db.Pairs = append(db.Pairs, LRPair{
			Ligand:   strings.ToUpper(strings.TrimSpace(p.Ligand)),
			Receptor: strings.ToUpper(strings.TrimSpace(p.Receptor)),
		})
	}

	return db, nil
}

// WithPairs returns a copy of the database extended with user-supplied
// pairs (the addLR contract). Pairs with empty fields are rejected.
func (db *LRDatabase) WithPairs(extra []LRPair) (*LRDatabase, error) {
	out := &LRDatabase{Pairs: make([]LRPair, len(db.Pairs), len(db.Pairs)+len(extra))}
	copy(out.Pairs, db.Pairs)

	for i, p := range extra {
		if strings.TrimSpace(p.Ligand) == "" || strings.TrimSpace(p.Receptor) == "" {
			return nil, fmt.Errorf("%w: addLR row %d: empty ligand or receptor", scsr.ErrConfig, i+1)
		}
		out.Pairs = append(out.Pairs, LRPair{
			Ligand:   strings.ToUpper(strings.TrimSpace(p.Ligand)),
			Receptor: strings.ToUpper(strings.TrimSpace(p.Receptor)),
		})
	}

	return out, nil
}

// Receptors returns the distinct receptor symbols in database order.
func (db *LRDatabase) Receptors() []string {
	seen := make(map[string]struct{}, len(db.Pairs))
	out := make([]string, 0, len(db.Pairs))
	for _, p := range db.Pairs {
		if _, ok := seen[p.Receptor]; ok {
			continue
		}
		seen[p.Receptor] = struct{}{}
		out = append(out, p.Receptor)
	}
	return out
}

func validateHeader(raw []byte, want []string) error {
	line := string(raw)
	if i := strings.IndexAny(line, "\r\n"); i >= 0 {
		line = line[:i]
	}
	fields := strings.Split(line, "\t")
	if len(fields) != len(want) {
		return fmt.Errorf("header has %d columns, expected %d (%s)", len(fields), len(want), strings.Join(want, ", "))
	}
	for i, f := range fields {
		if strings.ToLower(strings.TrimSpace(f)) != want[i] {
			return fmt.Errorf("header column %d is %q, expected %q", i+1, f, want[i])
		}
	}
	return nil
}
