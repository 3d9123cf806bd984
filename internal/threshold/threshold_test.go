package threshold

import (
	"bytes"
	"errors"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/inodb/vibe-motif/internal/motif"
)

func ptr(v float64) *float64 { return &v }

func testMotif() *motif.Motif {
	// Scores 4 for ACGT, each mismatch costs 1.
	return motif.New("acgt", [][4]float64{
		{1, 0, 0, 0},
		{0, 1, 0, 0},
		{0, 0, 1, 0},
		{0, 0, 0, 1},
	})
}

func randomSeqs(n, length int, seed uint64) []string {
	rng := rand.New(rand.NewPCG(seed, 1))
	seqs := make([]string, n)
	for i := range seqs {
		b := make([]byte, length)
		for j := range b {
			b[j] = "ACGT"[rng.IntN(4)]
		}
		seqs[i] = string(b)
	}
	return seqs
}

func staticBackground(id string, seqs []string, loads *int) Background {
	return Background{ID: id, Load: func() ([]string, error) {
		if loads != nil {
			*loads++
		}
		return seqs, nil
	}}
}

func openStore(t *testing.T) *Store {
	t.Helper()
	s, err := OpenStore("")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestScoreAtPercentile(t *testing.T) {
	scores := []float64{5, 1, 4, 2, 3}
	assert.InDelta(t, 3.0, ScoreAtPercentile(scores, 50), 1e-12)
	assert.InDelta(t, 4.6, ScoreAtPercentile(scores, 90), 1e-12)
	assert.InDelta(t, 1.0, ScoreAtPercentile(scores, 0), 1e-12)
	assert.InDelta(t, 5.0, ScoreAtPercentile(scores, 100), 1e-12)
	assert.InDelta(t, 7.0, ScoreAtPercentile([]float64{7}, 95), 1e-12)
	assert.Equal(t, []float64{5, 1, 4, 2, 3}, scores, "input must not be reordered")
}

func TestOptionsValidate(t *testing.T) {
	tests := []struct {
		name    string
		opts    Options
		wantErr error
	}{
		{"fraction", Options{Fraction: ptr(0.9)}, nil},
		{"file", Options{File: "t.txt"}, nil},
		{"fdr genome", Options{FDR: ptr(0.01), Genome: "hg38"}, nil},
		{"fdr background", Options{FDR: ptr(0.01), Background: "bg.fa"}, nil},
		{"nothing", Options{}, ErrUsage},
		{"fraction and fdr", Options{Fraction: ptr(0.9), FDR: ptr(0.01), Genome: "hg38"}, ErrUsage},
		{"file and fdr", Options{File: "t.txt", FDR: ptr(0.01), Genome: "hg38"}, ErrUsage},
		{"fraction and genome", Options{Fraction: ptr(0.9), Genome: "hg38"}, ErrUsage},
		{"fraction and background", Options{Fraction: ptr(0.9), Background: "bg.fa"}, ErrUsage},
		{"fraction out of range", Options{Fraction: ptr(1.5)}, ErrUsage},
		{"genome and background", Options{FDR: ptr(0.01), Genome: "hg38", Background: "bg.fa"}, ErrUsage},
		{"fdr without background", Options{FDR: ptr(0.01)}, ErrUsage},
		{"fdr zero", Options{FDR: ptr(0), Genome: "hg38"}, ErrInvalidFDR},
		{"fdr one", Options{FDR: ptr(1), Genome: "hg38"}, ErrInvalidFDR},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.opts.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	o := Options{FDR: ptr(0.1), Genome: "hg38"}.WithDefaults()
	assert.Equal(t, DefaultLength, o.Length)
	assert.Equal(t, DefaultCount, o.Count)
}

func TestFromFraction(t *testing.T) {
	m := testMotif()
	table := FromFraction([]*motif.Motif{m}, 0.75)
	assert.Equal(t, Score(3), table["acgt"])
}

func TestFromFile(t *testing.T) {
	a := testMotif()
	b := motif.New("other", [][4]float64{{0, 0, 0, 2}})

	path := filepath.Join(t.TempDir(), "thresholds.txt")
	require.NoError(t, os.WriteFile(path, []byte("motif\tthreshold\nacgt\t0.5\n"), 0644))

	table, err := FromFile([]*motif.Motif{a, b}, path, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, Score(2), table["acgt"])
	assert.InDelta(t, 2*DefaultFraction, table["other"].Value, 1e-12)

	_, err = FromFile([]*motif.Motif{a}, filepath.Join(t.TempDir(), "missing"), zap.NewNop())
	assert.Error(t, err)

	_, err = ReadFractions(strings.NewReader("acgt\t0.5\nother\tbad\n"))
	assert.Error(t, err)
}

func TestWriteTableRoundTrip(t *testing.T) {
	a := testMotif()
	b := motif.New("b", [][4]float64{{0, 1, 2, 3}})
	motifs := []*motif.Motif{a, b}
	table := Table{"acgt": Score(3), "b": NeverMatch}

	var buf bytes.Buffer
	require.NoError(t, WriteTable(&buf, motifs, table))
	assert.Contains(t, buf.String(), "b\tnever\n")

	path := filepath.Join(t.TempDir(), "thresholds.txt")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0644))

	read, err := FromFile(motifs, path, zap.NewNop())
	require.NoError(t, err)
	assert.InDelta(t, 3, read["acgt"].Value, 1e-5)
	assert.False(t, read["acgt"].Never)
	assert.Equal(t, NeverMatch, read["b"], "a sentinel stays a sentinel")
}

func TestTableDigest(t *testing.T) {
	ids := []string{"a", "b"}
	t1 := Table{"a": Score(1), "b": NeverMatch}
	t2 := Table{"a": Score(1), "b": NeverMatch}
	t3 := Table{"a": Score(1.5), "b": NeverMatch}

	assert.Equal(t, t1.Digest(ids), t2.Digest(ids))
	assert.NotEqual(t, t1.Digest(ids), t3.Digest(ids))
}

func TestStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache", "thresholds.duckdb")
	s, err := OpenStore(path)
	require.NoError(t, err)

	_, ok, err := s.Get("k")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Set("k", 1.5))
	require.NoError(t, s.Set("k", 9.9), "second write is ignored")
	v, ok, err := s.Get("k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 1.5, v)
	require.NoError(t, s.Close())

	// Durable across reopen.
	s, err = OpenStore(path)
	require.NoError(t, err)
	defer s.Close()
	v, ok, err = s.Get("k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 1.5, v)
	n, err := s.Count()
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func wordMotif(id, word string) *motif.Motif {
	rows := make([][4]float64, len(word))
	for i := range word {
		rows[i][strings.IndexByte("ACGT", word[i])] = 1
	}
	return motif.New(id, rows)
}

func TestCalibrate_Monotonic(t *testing.T) {
	c := NewCalibrator(openStore(t), nil)
	m := wordMotif("m8", "AAACCCGG")
	bg := staticBackground("random", randomSeqs(1000, 40, 7), nil)

	strict, err := c.Calibrate([]*motif.Motif{m}, bg, 0.01)
	require.NoError(t, err)
	loose, err := c.Calibrate([]*motif.Motif{m}, bg, 0.05)
	require.NoError(t, err)

	s, l := strict["m8"], loose["m8"]
	require.False(t, s.Never)
	require.False(t, l.Never)
	assert.GreaterOrEqual(t, s.Value, l.Value)
	assert.Less(t, s.Value, m.MaxScore())
}

func TestCalibrate_CachedAcrossCalls(t *testing.T) {
	store := openStore(t)
	calls := 0
	scan := func(motifs []*motif.Motif, seqs []string) ([][]float64, error) {
		calls++
		return SerialBestScores(motifs, seqs)
	}
	loads := 0
	bg := staticBackground("bg", randomSeqs(100, 30, 3), &loads)
	m := testMotif()

	first, err := NewCalibrator(store, scan).Calibrate([]*motif.Motif{m}, bg, 0.1)
	require.NoError(t, err)

	// A new calibrator on the same store stands in for a process restart.
	second, err := NewCalibrator(store, scan).Calibrate([]*motif.Motif{m}, bg, 0.1)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, calls)
	assert.Equal(t, 1, loads, "background is only loaded when something needs scanning")

	_, ok, err := store.Get(Key(m.Hash(), "bg", 0.1))
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestKey(t *testing.T) {
	assert.Equal(t, "h|bg|0.05", Key("h", "bg", 0.05))
	assert.NotEqual(t, Key("h", "bg", 0.00001), Key("h", "bg", 0.00002))
	assert.NotEqual(t, Key("h", "bg", 0.00001), Key("h", "bg", 0.00004))
}

func TestCalibrate_SentinelAtMaxScore(t *testing.T) {
	m := testMotif()
	// Every background sequence contains a perfect site.
	seqs := []string{"ACGT", "TTACGTTT", "ACGTACGT"}

	table, err := NewCalibrator(openStore(t), nil).Calibrate([]*motif.Motif{m}, staticBackground("perfect", seqs, nil), 0.05)
	require.NoError(t, err)
	assert.Equal(t, NeverMatch, table["acgt"])
}

func TestCalibrate_Errors(t *testing.T) {
	c := NewCalibrator(openStore(t), nil)
	m := testMotif()

	_, err := c.Calibrate([]*motif.Motif{m}, staticBackground("x", []string{"ACGT"}, nil), 1.0)
	assert.ErrorIs(t, err, ErrInvalidFDR)

	_, err = c.Calibrate([]*motif.Motif{m}, staticBackground("empty", nil, nil), 0.1)
	assert.Error(t, err)

	boom := errors.New("boom")
	failing := Background{ID: "fail", Load: func() ([]string, error) { return nil, boom }}
	_, err = c.Calibrate([]*motif.Motif{m}, failing, 0.1)
	assert.ErrorIs(t, err, boom)

	_, err = FileBackground(filepath.Join(t.TempDir(), "missing.fa"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestFileBackground(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bg.fa")
	require.NoError(t, os.WriteFile(path, []byte(">a\nACGT\n>b\nTTTT\n"), 0644))

	bg, err := FileBackground(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(bg.ID, "file:"))

	seqs, err := bg.Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"ACGT", "TTTT"}, seqs)
}
