package singlecellsignalr

import (
	"bytes"
	"compress/gzip"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDetectDataType(t *testing.T) {
	gzipped := &bytes.Buffer{}
	zw := gzip.NewWriter(gzipped)
	zw.Write([]byte("gene\tcell1\tcell2\n"))
	zw.Close()

	for _, v := range []struct {
		name     string
		input    []byte
		expected DataType
	}{
		{"gzip", gzipped.Bytes(), DataTypeGzip},
		{"zip", []byte{0x50, 0x4b, 0x03, 0x04, 0x00, 0x00}, DataTypeZip},
		{"bzip2", []byte{0x42, 0x5a, 0x68, 0x39, 0x31, 0x41}, DataTypeBZip2},
		{"plain text", []byte("gene\tcell1\tcell2\n"), DataTypeNoCompression},
	} {
		got, err := DetectDataType(bytes.NewReader(v.input))
		if err != nil {
			t.Fatalf("%s: %v", v.name, err)
		}
		if got != v.expected {
			t.Fatalf("%s: DetectDataType = %v, expected %v", v.name, got, v.expected)
		}
	}
}

func TestMaybeDecompressGzip(t *testing.T) {
	const payload = "gene\tcell1\tcell2\nACTB\t1\t2\n"

	path := filepath.Join(t.TempDir(), "data.txt.gz")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	zw := gzip.NewWriter(f)
	if _, err := zw.Write([]byte(payload)); err != nil {
		t.Fatal(err)
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}

	f, err = os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	rc, err := MaybeDecompressReadCloserFromFile(f)
	if err != nil {
		t.Fatal(err)
	}
	defer rc.Close()

	got, err := io.ReadAll(rc)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != payload {
		t.Fatalf("decompressed content mismatch:\n%q", got)
	}
}

func TestMaybeDecompressPassThrough(t *testing.T) {
	const payload = "gene,cell1\nACTB,1\n"

	path := filepath.Join(t.TempDir(), "data.csv")
	if err := os.WriteFile(path, []byte(payload), 0o644); err != nil {
		t.Fatal(err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	rc, err := MaybeDecompressReadCloserFromFile(f)
	if err != nil {
		t.Fatal(err)
	}

	got, err := io.ReadAll(rc)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != payload {
		t.Fatalf("pass-through content mismatch:\n%q", got)
	}
}

func TestDetermineDelimiter(t *testing.T) {
	tab := "gene\tcell1\tcell2\nACTB\t1\t2\nGAPDH\t3\t4\n"
	if got := DetermineDelimiter(strings.NewReader(tab)); got != '\t' {
		t.Fatalf("tab input: got %q", got)
	}

	comma := "gene,cell1,cell2\nACTB,1,2\nGAPDH,3,4\n"
	if got := DetermineDelimiter(strings.NewReader(comma)); got != ',' {
		t.Fatalf("comma input: got %q", got)
	}
}
