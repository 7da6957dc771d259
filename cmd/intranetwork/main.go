// intranetwork maps intracellular pathway connectivity downstream of one or
// more receptors of interest within a cluster of interest, and writes the
// per-receptor GraphML networks plus pathway enrichment tables. Optionally
// it grafts upstream ligand edges from a prior cellsignaling run.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/carbocation/pfx"

	scsr "github.com/loanedns/SingleCellSignalR"
	"github.com/loanedns/SingleCellSignalR/dge"
	"github.com/loanedns/SingleCellSignalR/expression"
	"github.com/loanedns/SingleCellSignalR/interactiondb"
	"github.com/loanedns/SingleCellSignalR/intranet"
	"github.com/loanedns/SingleCellSignalR/ortholog"
	"github.com/loanedns/SingleCellSignalR/signaling"
)

func main() {
	var (
		matrixFile   string
		clusterFile  string
		clusterNames string
		pathwayFile  string
		lrdbFile     string
		species      string
		orthologDir  string
		goiList      string
		coi          int
		cellProp     float64
		maxOcc       int
		connected    bool
		addLigands   bool
		restrictDGE  bool
		pvalCutoff   float64
		intType      string
		outDir       string
	)

	flag.StringVar(&matrixFile, "matrix", "", "Count matrix file (genes x cells, first column gene symbols). May be gzipped.")
	flag.StringVar(&clusterFile, "clusters", "", "Cluster assignment file: one 1-based cluster id per cell, in matrix column order.")
	flag.StringVar(&clusterNames, "names", "", "Optional comma-separated cluster names, one per cluster.")
	flag.StringVar(&pathwayFile, "pathways", "", "Pathway relation database: tab-separated with columns a_gn, b_gn, pathway, type.")
	flag.StringVar(&lrdbFile, "lrdb", "", "Optional LR database; required with -addlig to graft upstream ligand edges.")
	flag.StringVar(&species, "species", "human", "Species of the input matrix.")
	flag.StringVar(&orthologDir, "orthologs", "", "Directory of per-species ortholog tables (<species>.tsv), required for non-human input.")
	flag.StringVar(&goiList, "goi", "", "Comma-separated receptors of interest.")
	flag.IntVar(&coi, "coi", 0, "Cluster of interest (1-based id).")
	flag.Float64Var(&cellProp, "cellprop", intranet.DefaultCellProp, "Minimum expressing-cell fraction for a gene to be visible in the cluster.")
	flag.IntVar(&maxOcc, "max.occ", intranet.DefaultMaxOccurrence, "Suppress pathways tagging more database edges than this.")
	flag.BoolVar(&connected, "connected", false, "Prune nodes unreachable from the receptor instead of clamping their distance.")
	flag.BoolVar(&addLigands, "addlig", false, "Graft upstream ligand edges from the intercellular signaling table.")
	flag.BoolVar(&restrictDGE, "restrict.dge", false, "Narrow the visible gene universe to per-cluster marker genes.")
	flag.Float64Var(&pvalCutoff, "pval", 0.05, "Adjusted p-value cutoff for the marker-gene restriction.")
	flag.StringVar(&intType, "int.type", "paracrine", "Interaction type used when grafting ligands: paracrine, autocrine, or both.")
	flag.StringVar(&outDir, "outdir", ".", "Output directory for artifacts.")
	flag.Parse()

	if matrixFile == "" || clusterFile == "" || pathwayFile == "" || goiList == "" || coi < 1 {
		flag.PrintDefaults()
		return
	}

	raw, err := expression.Read(matrixFile)
	if err != nil {
		log.Fatalln(pfx.Err(err))
	}

	opts := expression.Options{Species: species}
	var dict *ortholog.Dictionary
	if !strings.EqualFold(species, "human") {
		if orthologDir == "" {
			log.Fatalln(pfx.Err(fmt.Errorf("%w: -orthologs is required for species %q", scsr.ErrConfig, species)))
		}
		mapper := ortholog.FileMapper{Dir: scsr.ExpandHome(orthologDir)}
		opts.Orthologs = mapper
		if dict, err = mapper.Map(strings.ToLower(species)); err != nil {
			log.Fatalln(pfx.Err(err))
		}
	}

	expr, err := expression.Prepare(raw, opts)
	if err != nil {
		log.Fatalln(pfx.Err(err))
	}

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

	pathways, err := interactiondb.LoadPathways(pathwayFile)
	if err != nil {
		log.Fatalln(pfx.Err(err))
	}
	log.Printf("Pathway database holds %d relations", pathways.Len())

	var sig *signaling.Table
	if addLigands {
		if lrdbFile == "" {
			log.Fatalln(pfx.Err(fmt.Errorf("%w: -addlig requires -lrdb", scsr.ErrConfig)))
		}
		lrdb, err := interactiondb.LoadLR(lrdbFile)
		if err != nil {
			log.Fatalln(pfx.Err(err))
		}
		it, err := signaling.ParseInteractionType(intType)
		if err != nil {
			log.Fatalln(pfx.Err(fmt.Errorf("%w: %v", scsr.ErrConfig, err)))
		}
		scorer := &signaling.Scorer{Expr: expr, Clusters: clusters, LR: lrdb, Opts: signaling.Options{Type: it}}
		if sig, err = scorer.Score(); err != nil {
			log.Fatalln(pfx.Err(err))
		}
	}

	builderOpts := intranet.Options{
		CellProp:      cellProp,
		MaxOccurrence: maxOcc,
		Connected:     connected,
		AddLigands:    addLigands,
		Dict:          dict,
	}
	if restrictDGE {
		tables, err := dge.DGE(expr, clusters, pvalCutoff, dge.NegativeBinomialWald{})
		if err != nil {
			log.Fatalln(pfx.Err(err))
		}
		builderOpts.Restrict = dge.MarkerGenes(tables)
		log.Printf("Restricting the visible universe to %d marker genes", len(builderOpts.Restrict))
	}

	builder := &intranet.Builder{
		Expr:     expr,
		Clusters: clusters,
		Pathways: pathways,
		Opts:     builderOpts,
	}

	results, err := builder.Build(strings.Split(goiList, ","), coi, sig)
	if err != nil {
		log.Fatalln(pfx.Err(err))
	}

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		log.Fatalln(pfx.Err(err))
	}

	coiName := clusters.Name(coi)
	for _, res := range results {
		if res.Network == nil {
			log.Printf("%s: %s", res.Receptor, res.Note)
			continue
		}
		if err := intranet.WriteArtifacts(outDir, coiName, res); err != nil {
			log.Fatalln(pfx.Err(err))
		}
		log.Printf("%s: %d nodes, %d edges, %d enriched pathways", res.Receptor, len(res.Network.Nodes), len(res.Network.Edges), len(res.Enrichment))
	}
}
