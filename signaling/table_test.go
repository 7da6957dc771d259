package signaling

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/loanedns/SingleCellSignalR/interactiondb"
)

func scoredTable(t *testing.T) *Table {
	t.Helper()

	m, clusters := fiveClusters(t, func(gene string, cluster int) float64 {
		if gene == "G01" && cluster != 2 {
			return 0
		}
		return 1
	})
	db := &interactiondb.LRDatabase{Pairs: []interactiondb.LRPair{{Ligand: "G01", Receptor: "G02"}}}

	s := &Scorer{Expr: m, Clusters: clusters, LR: db, Opts: Options{Type: Paracrine}}
	table, err := s.Score()
	require.NoError(t, err)
	return table
}

func TestTableKeyAndName(t *testing.T) {
	table := scoredTable(t)

	require.Equal(t, "cluster 1", table.Name(1))
	require.Equal(t, "cluster 2-cluster 1", table.Key(ClusterPair{Sender: 2, Receiver: 1}))
	// Out-of-range ids still render something usable.
	require.Equal(t, "cluster 9", table.Name(9))
}

func TestWriteTables(t *testing.T) {
	table := scoredTable(t)
	dir := t.TempDir()

	require.NoError(t, table.WriteTables(dir))

	// One file per scored pair, populated only for the retained one.
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, len(table.Pairs()))

	data, err := os.ReadFile(filepath.Join(dir, "LR_interactions_cluster 2-cluster 1.txt"))
	require.NoError(t, err)

	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	require.Len(t, lines, 2)
	require.Equal(t, "ligand\treceptor\tligand.mean\treceptor.mean\tLRscore\tspecific", lines[0])
	require.True(t, strings.HasPrefix(lines[1], "G01\tG02\t"))
}

func TestWriteNetwork(t *testing.T) {
	table := scoredTable(t)
	dir := t.TempDir()

	require.NoError(t, table.WriteNetwork(dir))

	data, err := os.ReadFile(filepath.Join(dir, "intercell-network.txt"))
	require.NoError(t, err)

	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	require.Equal(t, "sender\treceiver\tligand\treceptor\tligand.mean\treceptor.mean\tLRscore\tspecific", lines[0])

	// Every retained row names the only expressing sender cluster.
	require.Len(t, lines, 1+len(table.Scores()))
	for _, line := range lines[1:] {
		require.True(t, strings.HasPrefix(line, "cluster 2\t"), line)
	}
}

func TestScoresFlattened(t *testing.T) {
	table := scoredTable(t)

	scores := table.Scores()
	require.NotEmpty(t, scores)
	for _, s := range scores {
		require.Greater(t, s, 0.0)
		require.Less(t, s, 1.0)
	}
}
