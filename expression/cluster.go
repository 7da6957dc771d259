package expression

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	scsr "github.com/loanedns/SingleCellSignalR"
)

// Clusters maps each cell (by column position) to a 1-based cluster id,
// with optional human-readable names. Ids are contiguous starting at 1.
type Clusters struct {
	IDs   []int
	Names []string

	cells [][]int // per cluster id (1-based), the member column indexes
}

// NewClusters validates and indexes a per-cell cluster assignment. Names
// are optional; when given there must be exactly one per cluster, each
// unique and free of path separators (they end up in artifact file names).
func NewClusters(ids []int, names []string) (*Clusters, error) {
	if len(ids) == 0 {
		return nil, fmt.Errorf("%w: empty cluster assignment", scsr.ErrConfig)
	}

	max := 0
	for i, id := range ids {
		if id < 1 {
			return nil, fmt.Errorf("%w: cell %d has cluster id %d; ids are 1-based", scsr.ErrConfig, i, id)
		}
		if id > max {
			max = id
		}
	}

	c := &Clusters{IDs: ids, cells: make([][]int, max+1)}
	for col, id := range ids {
		c.cells[id] = append(c.cells[id], col)
	}
	for id := 1; id <= max; id++ {
		if len(c.cells[id]) == 0 {
			return nil, fmt.Errorf("%w: cluster ids are not contiguous: no cell carries id %d", scsr.ErrConfig, id)
		}
	}

	if names != nil {
		if len(names) != max {
			return nil, fmt.Errorf("%w: %d cluster names for %d clusters", scsr.ErrConfig, len(names), max)
		}
		seen := make(map[string]struct{}, len(names))
		for _, name := range names {
			if name == "" {
				return nil, fmt.Errorf("%w: empty cluster name", scsr.ErrConfig)
			}
			if strings.ContainsAny(name, `/\`) {
				return nil, fmt.Errorf("%w: cluster name %q contains a path separator", scsr.ErrConfig, name)
			}
			if _, dup := seen[name]; dup {
				return nil, fmt.Errorf("%w: duplicate cluster name %q", scsr.ErrConfig, name)
			}
			seen[name] = struct{}{}
		}
		c.Names = names
	}

	return c, nil
}

// N reports the number of clusters.
func (c *Clusters) N() int { return len(c.cells) - 1 }

// CellsOf returns the member column indexes of a cluster id.
func (c *Clusters) CellsOf(id int) []int {
	if id < 1 || id >= len(c.cells) {
		return nil
	}
	return c.cells[id]
}

// Name returns the display name of a cluster id, falling back to
// "cluster <id>".
func (c *Clusters) Name(id int) string {
	if c.Names != nil && id >= 1 && id <= len(c.Names) {
		return c.Names[id-1]
	}
	return fmt.Sprintf("cluster %d", id)
}

// Labeler is the external clustering collaborator: it assigns each cell of
// a (possibly reduced) matrix a 1-based cluster id and may return a 2-D
// embedding for plotting. The statistical pipeline never clusters itself.
type Labeler interface {
	Label(m *Matrix, k int) (ids []int, embedding [][2]float64, err error)
}

// WriteClusters persists the assignment vector as
// cluster-<N>-<method>.txt, one id per line in cell order.
func WriteClusters(dir, method string, c *Clusters) error {
	f, err := os.Create(fmt.Sprintf("%s/cluster-%d-%s.txt", dir, c.N(), method))
	if err != nil {
		return err
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	for _, id := range c.IDs {
		fmt.Fprintln(w, id)
	}
	return w.Flush()
}

// WriteEmbedding persists a 2-D embedding as tsne-<N>-<method>.txt, one
// "x<TAB>y" line per cell in cell order.
func WriteEmbedding(dir, method string, c *Clusters, embedding [][2]float64) error {
	if len(embedding) != len(c.IDs) {
		return fmt.Errorf("%w: %d embedding points for %d cells", scsr.ErrInput, len(embedding), len(c.IDs))
	}

	f, err := os.Create(fmt.Sprintf("%s/tsne-%d-%s.txt", dir, c.N(), method))
	if err != nil {
		return err
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	for _, p := range embedding {
		fmt.Fprintf(w, "%g\t%g\n", p[0], p[1])
	}
	return w.Flush()
}

// ReadClusterIDs loads a one-id-per-line assignment vector, the format
// WriteClusters emits and external clustering tools produce.
func ReadClusterIDs(path string) ([]int, error) {
	f, err := os.Open(scsr.ExpandHome(path))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", scsr.ErrInput, err)
	}
	defer f.Close()

	var ids []int
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		var id int
		if _, err := fmt.Sscanf(line, "%d", &id); err != nil {
			return nil, fmt.Errorf("%w: cluster file %s: bad id %q", scsr.ErrInput, path, line)
		}
		ids = append(ids, id)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", scsr.ErrInput, err)
	}

	return ids, nil
}
