package fasta

import (
	"compress/gzip"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testFASTA = `>seq1 first sequence
ACGT
acgt
>seq2
NNNN

>seq3
`

func TestRead(t *testing.T) {
	records, err := Read(strings.NewReader(testFASTA))
	require.NoError(t, err)
	require.Len(t, records, 3)

	assert.Equal(t, Record{ID: "seq1", Seq: "ACGTacgt"}, records[0])
	assert.Equal(t, Record{ID: "seq2", Seq: "NNNN"}, records[1])
	assert.Equal(t, Record{ID: "seq3", Seq: ""}, records[2])
	assert.Equal(t, []string{"ACGTacgt", "NNNN", ""}, Sequences(records))
}

func TestReadDataBeforeHeader(t *testing.T) {
	_, err := Read(strings.NewReader("ACGT\n>seq\nACGT\n"))
	assert.Error(t, err)
}

func TestReadFileGzip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "seqs.fa.gz")

	f, err := os.Create(path)
	require.NoError(t, err)
	gz := gzip.NewWriter(f)
	_, err = gz.Write([]byte(">a\nAAAA\n>b\nCCCC\n"))
	require.NoError(t, err)
	require.NoError(t, gz.Close())
	require.NoError(t, f.Close())

	records, err := ReadFile(path)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "CCCC", records[1].Seq)
	assert.True(t, LooksLikeFASTA(path))
}

func TestReadFileMissing(t *testing.T) {
	_, err := ReadFile(filepath.Join(t.TempDir(), "missing.fa"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestChecksum(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.fa")
	b := filepath.Join(dir, "b.fa")
	c := filepath.Join(dir, "c.fa")
	require.NoError(t, os.WriteFile(a, []byte(">x\nACGT\n"), 0644))
	require.NoError(t, os.WriteFile(b, []byte(">x\nACGT\n"), 0644))
	require.NoError(t, os.WriteFile(c, []byte(">x\nACGA\n"), 0644))

	ha, err := Checksum(a)
	require.NoError(t, err)
	hb, err := Checksum(b)
	require.NoError(t, err)
	hc, err := Checksum(c)
	require.NoError(t, err)

	assert.Equal(t, ha, hb)
	assert.NotEqual(t, ha, hc)
}

func TestLooksLikeFASTA(t *testing.T) {
	dir := t.TempDir()
	regions := filepath.Join(dir, "regions.txt")
	require.NoError(t, os.WriteFile(regions, []byte("chr1:10-20\n"), 0644))
	assert.False(t, LooksLikeFASTA(regions))
	assert.False(t, LooksLikeFASTA(filepath.Join(dir, "missing")))
}
