// Package ortholog defines the species-to-human gene symbol mapping
// collaborator. The pipeline always computes in human symbol space; a
// Dictionary carries the 1:1 correspondence so reports can translate back.
package ortholog

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"

	scsr "github.com/loanedns/SingleCellSignalR"
)

// Mapper resolves the ortholog dictionary for a source species. The actual
// mapping service (biomart queries, bundled tables) lives outside the core.
type Mapper interface {
	Map(species string) (*Dictionary, error)
}

// Dictionary is a 1:1 gene-symbol correspondence between a source species
// and human. Immutable once built.
type Dictionary struct {
	Species string

	toHuman   map[string]string
	fromHuman map[string]string
}

// NewDictionary builds a dictionary from source-species symbol to human
// symbol. Entries mapping to an already-claimed human symbol are dropped so
// the correspondence stays 1:1.
func NewDictionary(species string, toHuman map[string]string) *Dictionary {
	d := &Dictionary{
		Species:   species,
		toHuman:   make(map[string]string, len(toHuman)),
		fromHuman: make(map[string]string, len(toHuman)),
	}

	for src, hum := range toHuman {
		if src == "" || hum == "" {
			continue
		}
		if _, taken := d.fromHuman[hum]; taken {
			continue
		}
		d.toHuman[src] = hum
		d.fromHuman[hum] = src
	}

	return d
}

// ToHuman translates a source-species symbol; ok is false when the symbol
// has no human ortholog in the dictionary.
func (d *Dictionary) ToHuman(symbol string) (string, bool) {
	v, ok := d.toHuman[symbol]
	return v, ok
}

// FromHuman translates a human symbol back to the source species. Symbols
// without a reverse entry are returned unchanged: report-time translation
// must never drop a node label.
func (d *Dictionary) FromHuman(symbol string) string {
	if v, ok := d.fromHuman[symbol]; ok {
		return v
	}
	return symbol
}

// Len reports the number of mapped symbol pairs.
func (d *Dictionary) Len() int { return len(d.toHuman) }

// FileMapper reads a two-column (source, human) tab-separated table per
// species from a directory of <species>.tsv files.
type FileMapper struct {
	Dir string
}

func (m FileMapper) Map(species string) (*Dictionary, error) {
	f, err := os.Open(fmt.Sprintf("%s/%s.tsv", m.Dir, strings.ToLower(species)))
	if err != nil {
		return nil, fmt.Errorf("%w: ortholog table for species %q: %v", scsr.ErrInput, species, err)
	}
	defer f.Close()

	return readDictionary(species, f)
}

func readDictionary(species string, r io.Reader) (*Dictionary, error) {
	cr := csv.NewReader(r)
	cr.Comma = '\t'
	cr.FieldsPerRecord = 2

	pairs := make(map[string]string)
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: ortholog table for species %q: %v", scsr.ErrInput, species, err)
		}
		pairs[row[0]] = strings.ToUpper(row[1])
	}

	return NewDictionary(species, pairs), nil
}
