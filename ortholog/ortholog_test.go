package ortholog

import (
	"errors"
	"strings"
	"testing"

	scsr "github.com/loanedns/SingleCellSignalR"
)

func TestDictionaryRoundTrip(t *testing.T) {
	d := NewDictionary("mouse", map[string]string{
		"Tgfb1": "TGFB1",
		"Il6":   "IL6",
	})

	if d.Len() != 2 {
		t.Fatalf("Len() = %d, expected 2", d.Len())
	}

	hum, ok := d.ToHuman("Tgfb1")
	if !ok || hum != "TGFB1" {
		t.Fatalf("ToHuman(Tgfb1) = %q, %v", hum, ok)
	}
	if _, ok := d.ToHuman("Actb"); ok {
		t.Fatal("unmapped symbol reported as mapped")
	}

	if got := d.FromHuman("IL6"); got != "Il6" {
		t.Fatalf("FromHuman(IL6) = %q", got)
	}
	// Report-time translation never drops labels.
	if got := d.FromHuman("EGFR"); got != "EGFR" {
		t.Fatalf("FromHuman(EGFR) = %q, expected pass-through", got)
	}
}

func TestNewDictionaryKeepsOneToOne(t *testing.T) {
	// Two source symbols claim TGFB1; only the first to be inserted wins,
	// so exactly one pair survives either way.
	d := NewDictionary("mouse", map[string]string{
		"Tgfb1":  "TGFB1",
		"Tgfb1b": "TGFB1",
	})

	if d.Len() != 1 {
		t.Fatalf("Len() = %d, expected 1", d.Len())
	}
	if got := d.FromHuman("TGFB1"); got != "Tgfb1" && got != "Tgfb1b" {
		t.Fatalf("FromHuman(TGFB1) = %q", got)
	}
}

func TestReadDictionary(t *testing.T) {
	in := "Tgfb1\ttgfb1\nIl6\tIL6\n"

	d, err := readDictionary("mouse", strings.NewReader(in))
	if err != nil {
		t.Fatal(err)
	}
	if d.Len() != 2 {
		t.Fatalf("Len() = %d, expected 2", d.Len())
	}
	if hum, _ := d.ToHuman("Tgfb1"); hum != "TGFB1" {
		t.Fatalf("human symbols must be upper-cased, got %q", hum)
	}
}

func TestReadDictionaryBadShape(t *testing.T) {
	in := "Tgfb1\tTGFB1\textra\n"
	if _, err := readDictionary("mouse", strings.NewReader(in)); !errors.Is(err, scsr.ErrInput) {
		t.Fatalf("expected ErrInput for a 3-column row, got %v", err)
	}
}

func TestFileMapperMissingSpecies(t *testing.T) {
	m := FileMapper{Dir: t.TempDir()}
	if _, err := m.Map("axolotl"); !errors.Is(err, scsr.ErrInput) {
		t.Fatalf("expected ErrInput for a missing table, got %v", err)
	}
}
