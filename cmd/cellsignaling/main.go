// cellsignaling runs the intercellular signaling pipeline: it normalizes a
// gene-by-cell count matrix, attaches an externally computed cluster
// assignment, scores every ligand-receptor pair for every ordered cluster
// pair against the LR database, and writes the interaction tables. It can
// also emit per-cluster differential expression tables.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/aybabtme/uniplot/histogram"
	"github.com/carbocation/pfx"

	scsr "github.com/loanedns/SingleCellSignalR"
	"github.com/loanedns/SingleCellSignalR/dge"
	"github.com/loanedns/SingleCellSignalR/expression"
	"github.com/loanedns/SingleCellSignalR/interactiondb"
	"github.com/loanedns/SingleCellSignalR/ortholog"
	"github.com/loanedns/SingleCellSignalR/signaling"
)

func main() {
	var (
		matrixFile   string
		clusterFile  string
		clusterNames string
		lrdbFile     string
		species      string
		orthologDir  string
		intType      string
		minFraction  float64
		lowerQ       float64
		upperQ       float64
		mostVariable int
		runDGE       bool
		pvalCutoff   float64
		outDir       string
		showHist     bool
		addPairs     string
	)

	flag.StringVar(&matrixFile, "matrix", "", "Count matrix file (genes x cells, first column gene symbols). May be gzipped.")
	flag.StringVar(&clusterFile, "clusters", "", "Cluster assignment file: one 1-based cluster id per cell, in matrix column order.")
	flag.StringVar(&clusterNames, "names", "", "Optional comma-separated cluster names, one per cluster.")
	flag.StringVar(&lrdbFile, "lrdb", "", "Ligand-receptor database: tab-separated with exactly the columns 'ligand' and 'receptor'.")
	flag.StringVar(&species, "species", "human", "Species of the input matrix. Non-human matrices are remapped to human symbols through the ortholog tables.")
	flag.StringVar(&orthologDir, "orthologs", "", "Directory of per-species ortholog tables (<species>.tsv), required for non-human input.")
	flag.StringVar(&intType, "int.type", "paracrine", "Interaction type: paracrine, autocrine, or both.")
	flag.Float64Var(&minFraction, "min.frac", signaling.DefaultMinFraction, "Minimum expressing-cell fraction for a gene to count as expressed in a cluster.")
	flag.Float64Var(&lowerQ, "lower.q", 0, "Drop genes below this row-sum quantile (0 disables).")
	flag.Float64Var(&upperQ, "upper.q", 0, "Drop genes above the 1-upper.q row-sum quantile (0 disables).")
	flag.IntVar(&mostVariable, "mostvar", 0, "If > 0, also write the N most-variable genes (mostvar-genes.txt) for downstream clustering.")
	flag.BoolVar(&runDGE, "dge", false, "Also compute per-cluster differential expression tables.")
	flag.Float64Var(&pvalCutoff, "pval", 0.05, "Adjusted p-value cutoff for differential expression.")
	flag.StringVar(&outDir, "outdir", ".", "Output directory for artifacts.")
	flag.BoolVar(&showHist, "hist", false, "Print a histogram of retained LR scores.")
	flag.StringVar(&addPairs, "addlr", "", "Optional extra LR pairs, semicolon-separated 'ligand,receptor' entries merged into the database before scoring.")
	flag.Parse()

	if matrixFile == "" || clusterFile == "" || lrdbFile == "" {
		flag.PrintDefaults()
		return
	}

	raw, err := expression.Read(matrixFile)
	if err != nil {
		log.Fatalln(pfx.Err(err))
	}
	log.Printf("Read %d genes x %d cells", raw.NGenes(), raw.NCells())

	opts := expression.Options{
		Species:       species,
		LowerQuantile: lowerQ,
		UpperQuantile: upperQ,
	}
	if !strings.EqualFold(species, "human") {
		if orthologDir == "" {
			log.Fatalln(pfx.Err(fmt.Errorf("%w: -orthologs is required for species %q", scsr.ErrConfig, species)))
		}
		opts.Orthologs = ortholog.FileMapper{Dir: scsr.ExpandHome(orthologDir)}
	}

	expr, err := expression.Prepare(raw, opts)
	if err != nil {
		log.Fatalln(pfx.Err(err))
	}
	log.Printf("Prepared matrix holds %d genes", expr.NGenes())

	ids, err := expression.ReadClusterIDs(clusterFile)
	if err != nil {
		log.Fatalln(pfx.Err(err))
	}

	var names []string
	if clusterNames != "" {
		names = strings.Split(clusterNames, ",")
	}
	clusters, err := expression.NewClusters(ids, names)
	if err != nil {
		log.Fatalln(pfx.Err(err))
	}

	lrdb, err := interactiondb.LoadLR(lrdbFile)
	if err != nil {
		log.Fatalln(pfx.Err(err))
	}
	if addPairs != "" {
		extra, err := parseExtraPairs(addPairs)
		if err != nil {
			log.Fatalln(pfx.Err(err))
		}
		if lrdb, err = lrdb.WithPairs(extra); err != nil {
			log.Fatalln(pfx.Err(err))
		}
	}
	log.Printf("LR database holds %d pairs", len(lrdb.Pairs))

	it, err := signaling.ParseInteractionType(intType)
	if err != nil {
		log.Fatalln(pfx.Err(fmt.Errorf("%w: %v", scsr.ErrConfig, err)))
	}

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		log.Fatalln(pfx.Err(err))
	}
	if err := expression.WriteData(outDir, expr); err != nil {
		log.Fatalln(pfx.Err(err))
	}

	if mostVariable > 0 {
		reduced, err := expression.MostVariable(expr, mostVariable)
		if err != nil {
			log.Fatalln(pfx.Err(err))
		}
		if err := writeGeneList(outDir+"/mostvar-genes.txt", reduced.Genes); err != nil {
			log.Fatalln(pfx.Err(err))
		}
	}

	scorer := &signaling.Scorer{
		Expr:     expr,
		Clusters: clusters,
		LR:       lrdb,
		Opts:     signaling.Options{Type: it, MinFraction: minFraction},
	}
	table, err := scorer.Score()
	if err != nil {
		log.Fatalln(pfx.Err(err))
	}

	if err := table.WriteTables(outDir); err != nil {
		log.Fatalln(pfx.Err(err))
	}
	if err := table.WriteNetwork(outDir); err != nil {
		log.Fatalln(pfx.Err(err))
	}

	scores := table.Scores()
	log.Printf("Retained %d interactions across %d cluster pairs", len(scores), len(table.Pairs()))

	if showHist && len(scores) > 0 {
		hist := histogram.Hist(10, scores)
		if err := histogram.Fprint(os.Stdout, hist, histogram.Linear(40)); err != nil {
			log.Println(pfx.Err(err))
		}
	}

	if runDGE {
		tables, err := dge.DGE(expr, clusters, pvalCutoff, dge.NegativeBinomialWald{})
		if err != nil {
			log.Fatalln(pfx.Err(err))
		}
		if err := dge.WriteTables(outDir, clusters, tables); err != nil {
			log.Fatalln(pfx.Err(err))
		}
		for id := 1; id <= clusters.N(); id++ {
			log.Printf("%s: %d marker genes at adj.p < %g", clusters.Name(id), len(tables[id]), pvalCutoff)
		}
	}
}

func parseExtraPairs(s string) ([]interactiondb.LRPair, error) {
	var out []interactiondb.LRPair
	for _, entry := range strings.Split(s, ";") {
		parts := strings.Split(entry, ",")
		if len(parts) != 2 {
			return nil, fmt.Errorf("%w: addlr entry %q must be 'ligand,receptor'", scsr.ErrConfig, entry)
		}
		out = append(out, interactiondb.LRPair{Ligand: parts[0], Receptor: parts[1]})
	}
	return out, nil
}

func writeGeneList(path string, genes []string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	for _, g := range genes {
		if _, err := fmt.Fprintln(f, g); err != nil {
			return err
		}
	}
	return nil
}
