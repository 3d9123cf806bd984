package genome

import (
	"bytes"
	"compress/gzip"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeGenome(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	dir := filepath.Join(root, "tiny")
	require.NoError(t, os.MkdirAll(dir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "chr1.fa"),
		[]byte(">chr1\nacgtacgtAC\nGTACGTACGT\n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "chr2.fa"),
		[]byte(">chr2\nNNNNNNNNNNTTTTTTTTTT\n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README"), []byte("ignored"), 0644))
	return root
}

func TestOpen(t *testing.T) {
	root := writeGenome(t)
	assert.True(t, Exists(root, "tiny"))
	assert.False(t, Exists(root, "missing"))

	_, err := Open(root, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	idx, err := Open(root, "tiny")
	require.NoError(t, err)
	assert.Equal(t, "tiny", idx.Name())

	chroms, err := idx.Chromosomes()
	require.NoError(t, err)
	assert.Equal(t, []string{"chr1", "chr2"}, chroms)
}

func TestGetSequence(t *testing.T) {
	idx, err := Open(writeGenome(t), "tiny")
	require.NoError(t, err)

	seq, err := idx.GetSequence("chr1", 0, 6)
	require.NoError(t, err)
	assert.Equal(t, "ACGTAC", seq)

	seq, err = idx.Region(Region{Chrom: "chr1", Start: 8, End: 12})
	require.NoError(t, err)
	assert.Equal(t, "ACGT", seq)

	_, err = idx.GetSequence("chr1", 15, 25)
	assert.Error(t, err)
	_, err = idx.GetSequence("chrX", 0, 5)
	assert.Error(t, err)
}

func TestSample(t *testing.T) {
	idx, err := Open(writeGenome(t), "tiny")
	require.NoError(t, err)

	seqs, err := idx.Sample(5, 50, 42)
	require.NoError(t, err)
	require.Len(t, seqs, 50)
	for _, s := range seqs {
		assert.Len(t, s, 5)
		assert.False(t, strings.Contains(s, "N"))
	}

	again, err := idx.Sample(5, 50, 42)
	require.NoError(t, err)
	assert.Equal(t, seqs, again, "same seed should give same sample")

	_, err = idx.Sample(100, 1, 1)
	assert.Error(t, err)
}

func TestGetSequence_FileLayouts(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "mixed")
	require.NoError(t, os.MkdirAll(dir, 0755))

	write := func(name, content string) {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0644))
	}
	// Read from disk: CRLF wrapping, a single long line, no final newline.
	write("crlf.fa", ">crlf desc\r\nACGTA\r\nCGTAC\r\nGT\r\n")
	write("long.fa", ">long\n"+strings.Repeat("ACGT", 500))
	// Held in memory: irregular wrapping and gzip.
	write("ragged.fa", ">ragged\nACG\nTACGT\nAC\n")
	var gz bytes.Buffer
	zw := gzip.NewWriter(&gz)
	zw.Write([]byte(">packed\nttttGGGG\n"))
	require.NoError(t, zw.Close())
	write("packed.fa.gz", gz.String())

	idx, err := Open(root, "mixed")
	require.NoError(t, err)
	defer idx.Close()

	tests := []struct {
		chrom      string
		start, end int
		want       string
	}{
		{"crlf", 0, 12, "ACGTACGTACGT"},
		{"crlf", 4, 6, "AC"},
		{"crlf", 10, 12, "GT"},
		{"long", 1998, 2000, "GT"},
		{"long", 3, 9, "TACGTA"},
		{"ragged", 2, 8, "GTACGT"},
		{"packed", 2, 6, "TTGG"},
	}
	for _, tt := range tests {
		got, err := idx.GetSequence(tt.chrom, tt.start, tt.end)
		require.NoError(t, err, tt.chrom)
		assert.Equal(t, tt.want, got, "%s:%d-%d", tt.chrom, tt.start, tt.end)
	}

	_, err = idx.GetSequence("crlf", 0, 13)
	assert.Error(t, err)

	require.NoError(t, idx.Close())
	_, err = idx.GetSequence("crlf", 0, 4)
	assert.Error(t, err, "indexed files are closed")
	got, err := idx.GetSequence("packed", 0, 4)
	require.NoError(t, err)
	assert.Equal(t, "TTTT", got)
}

func TestScanLayout(t *testing.T) {
	layouts, regular, err := scanLayout(strings.NewReader(">a x\nACGT\nAC\n\n>b\n>c\nGG"))
	require.NoError(t, err)
	require.True(t, regular)
	assert.Equal(t, []layout{
		{name: "a", length: 6, offset: 5, end: 12, lineBases: 4, lineBytes: 5},
		{name: "b", length: 0, offset: 17, end: 17},
		{name: "c", length: 2, offset: 20, end: 22, lineBases: 2, lineBytes: 2},
	}, layouts)

	for _, irregular := range []string{
		">a\nAC\nACGT\n",     // longer line after the first
		">a\nACGT\nAC\nAC\n", // short line in the middle
		">a\nACGT\n\nACGT\n", // blank line inside a record
		">a\nACGT\r\nACGT\n", // mixed terminators
	} {
		_, regular, err := scanLayout(strings.NewReader(irregular))
		require.NoError(t, err)
		assert.False(t, regular, "%q", irregular)
	}

	_, _, err = scanLayout(strings.NewReader("ACGT\n>a\nAC\n"))
	assert.Error(t, err)
}

func TestParseRegion(t *testing.T) {
	tests := []struct {
		in   string
		want Region
	}{
		{"chr1:100-200", Region{"chr1", 100, 200}},
		{"chr1:1,000-2,000", Region{"chr1", 1000, 2000}},
		{"chr2\t5\t10\tname", Region{"chr2", 5, 10}},
		{"HLA-A:1-2", Region{"HLA-A", 1, 2}},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseRegion(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	for _, bad := range []string{"chr1", "chr1:100", "chr1:x-10", "chr1:10-5", ":1-2"} {
		_, err := ParseRegion(bad)
		assert.Error(t, err, bad)
	}

	assert.Equal(t, "chr1:100-200", Region{"chr1", 100, 200}.String())
}

func TestReadRegionFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "regions.txt")
	require.NoError(t, os.WriteFile(path, []byte("# header\nchr1:0-5\n\nchr1:2-8\n"), 0644))

	regions, err := ReadRegionFile(path)
	require.NoError(t, err)
	assert.Equal(t, []Region{{"chr1", 0, 5}, {"chr1", 2, 8}}, regions)
	assert.True(t, LooksLikeRegionFile(path))

	bad := filepath.Join(t.TempDir(), "bad.txt")
	require.NoError(t, os.WriteFile(bad, []byte(">seq\nACGT\n"), 0644))
	_, err = ReadRegionFile(bad)
	assert.Error(t, err)
	assert.False(t, LooksLikeRegionFile(bad))
}
