package expression

import (
	"errors"
	"testing"

	scsr "github.com/loanedns/SingleCellSignalR"
)

func TestNewClusters(t *testing.T) {
	c, err := NewClusters([]int{1, 2, 1, 2, 3}, []string{"T cells", "B cells", "NK"})
	if err != nil {
		t.Fatal(err)
	}

	if c.N() != 3 {
		t.Fatalf("N() = %d, expected 3", c.N())
	}
	if got := c.CellsOf(1); len(got) != 2 || got[0] != 0 || got[1] != 2 {
		t.Fatalf("CellsOf(1) = %v", got)
	}
	if c.Name(2) != "B cells" {
		t.Fatalf("Name(2) = %q", c.Name(2))
	}
}

func TestNewClustersDefaultNames(t *testing.T) {
	c, err := NewClusters([]int{1, 1, 2}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if c.Name(2) != "cluster 2" {
		t.Fatalf("Name(2) = %q", c.Name(2))
	}
}

func TestNewClustersValidation(t *testing.T) {
	for _, v := range []struct {
		name  string
		ids   []int
		names []string
	}{
		{"empty assignment", nil, nil},
		{"zero-based ids", []int{0, 1}, nil},
		{"non-contiguous ids", []int{1, 3}, nil},
		{"name count mismatch", []int{1, 2}, []string{"only one"}},
		{"duplicate names", []int{1, 2}, []string{"same", "same"}},
		{"path separator in name", []int{1, 2}, []string{"a/b", "c"}},
		{"empty name", []int{1, 2}, []string{"", "c"}},
	} {
		if _, err := NewClusters(v.ids, v.names); !errors.Is(err, scsr.ErrConfig) {
			t.Fatalf("%s: expected ErrConfig, got %v", v.name, err)
		}
	}
}
