package expression

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	scsr "github.com/loanedns/SingleCellSignalR"
)

// Read loads a gene-by-cell count matrix from a tab- or comma-separated
// file, transparently decompressing it when the leading bytes carry a known
// compression signature. The first column holds the gene symbol; every
// remaining column must be numeric and non-negative.
func Read(path string) (*Matrix, error) {
	f, err := os.Open(scsr.ExpandHome(path))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", scsr.ErrInput, err)
	}
	defer f.Close()

	r, err := scsr.MaybeDecompressReadCloserFromFile(f)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", scsr.ErrInput, err)
	}
	defer r.Close()

	return ReadFrom(r, path)
}

// ReadFrom parses a matrix from an uncompressed stream. name is used in
// error messages only.
func ReadFrom(r io.Reader, name string) (*Matrix, error) {
	br := bufio.NewReader(r)

	// Sniff the delimiter from the first few KB, then parse the full stream.
	head, _ := br.Peek(16 * 1024)
	delim := scsr.DetermineDelimiter(bytes.NewReader(head))

	cr := csv.NewReader(br)
	cr.Comma = delim
	cr.LazyQuotes = true
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("%w: %s: empty matrix file", scsr.ErrInput, name)
	}

	// Header row: either "gene<delim>cell..." or just the cell names when
	// the corner field is blank.
	cells := header[1:]
	if strings.TrimSpace(header[0]) != "" && looksNumeric(header[1:]) {
		return nil, fmt.Errorf("%w: %s: missing header row", scsr.ErrInput, name)
	}

	var (
		genes  []string
		values [][]float64
	)

	for line := 2; ; line++ {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", scsr.ErrInput, name, err)
		}
		if len(row) != len(cells)+1 {
			return nil, fmt.Errorf("%w: %s line %d: %d fields, expected %d", scsr.ErrInput, name, line, len(row), len(cells)+1)
		}

		gene := strings.TrimSpace(row[0])
		if gene == "" {
			return nil, fmt.Errorf("%w: %s line %d: empty gene symbol", scsr.ErrInput, name, line)
		}

		vals := make([]float64, len(cells))
		for j, field := range row[1:] {
			v, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
			if err != nil {
				return nil, fmt.Errorf("%w: %s line %d column %d: non-numeric value %q", scsr.ErrInput, name, line, j+2, field)
			}
			if v < 0 {
				return nil, fmt.Errorf("%w: %s line %d column %d: negative count %v", scsr.ErrInput, name, line, j+2, v)
			}
			vals[j] = v
		}

		genes = append(genes, strings.ToUpper(gene))
		values = append(values, vals)
	}

	if len(genes) == 0 {
		return nil, fmt.Errorf("%w: %s: no gene rows", scsr.ErrInput, name)
	}

	return NewMatrix(genes, cells, values)
}

func looksNumeric(fields []string) bool {
	for _, f := range fields {
		if _, err := strconv.ParseFloat(strings.TrimSpace(f), 64); err != nil {
			return false
		}
	}
	return len(fields) > 0
}

// WriteData persists the normalized matrix as data.txt plus the retained
// gene list as genes.txt, aligned by row.
func WriteData(dir string, m *Matrix) error {
	df, err := os.Create(dir + "/data.txt")
	if err != nil {
		return err
	}
	defer df.Close()

	w := bufio.NewWriter(df)
	fmt.Fprintln(w, "gene\t"+strings.Join(m.Cells, "\t"))
	for i, gene := range m.Genes {
		fmt.Fprint(w, gene)
		for _, v := range m.Values[i] {
			fmt.Fprintf(w, "\t%g", v)
		}
		fmt.Fprintln(w)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	gf, err := os.Create(dir + "/genes.txt")
	if err != nil {
		return err
	}
	defer gf.Close()

	gw := bufio.NewWriter(gf)
	for i, gene := range m.Genes {
		if m.OriginalGenes != nil {
			fmt.Fprintf(gw, "%s\t%s\n", gene, m.OriginalGenes[i])
			continue
		}
		fmt.Fprintln(gw, gene)
	}
	return gw.Flush()
}
