package motif

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const twoMotifs = `# test motifs
>MA0001 some description
1	0	0	-1
0	2	-1	0

>MA0002
0.5	0.5	0.5	0.5
`

func TestRead(t *testing.T) {
	motifs, err := Read(strings.NewReader(twoMotifs))
	require.NoError(t, err)
	require.Len(t, motifs, 2)

	assert.Equal(t, "MA0001", motifs[0].ID)
	assert.Equal(t, 2, motifs[0].Len())
	assert.Equal(t, [4]float64{0, 2, -1, 0}, motifs[0].Matrix[1])
	assert.Equal(t, []string{"MA0001", "MA0002"}, IDs(motifs))
}

func TestMinMaxScore(t *testing.T) {
	motifs, err := Read(strings.NewReader(twoMotifs))
	require.NoError(t, err)

	assert.InDelta(t, -2.0, motifs[0].MinScore(), 1e-12)
	assert.InDelta(t, 3.0, motifs[0].MaxScore(), 1e-12)

	// Constant matrix has an empty range.
	assert.Equal(t, motifs[1].MinScore(), motifs[1].MaxScore())
	assert.Equal(t, 0.0, motifs[1].Fraction(1.0))
}

func TestScoreAtFraction(t *testing.T) {
	m := New("m", [][4]float64{{0, 1, 2, 3}, {0, 0, 0, 4}})
	assert.InDelta(t, 0.0, m.ScoreAt(0), 1e-12)
	assert.InDelta(t, 7.0, m.ScoreAt(1), 1e-12)
	assert.InDelta(t, 3.5, m.ScoreAt(0.5), 1e-12)
	assert.InDelta(t, 0.5, m.Fraction(3.5), 1e-12)
}

func TestReadErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"empty", ""},
		{"row before header", "1 2 3 4\n"},
		{"wrong column count", ">m\n1 2 3\n"},
		{"bad number", ">m\n1 2 x 4\n"},
		{"no rows", ">m\n>n\n1 2 3 4\n"},
		{"duplicate id", ">m\n1 2 3 4\n>m\n1 2 3 4\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Read(strings.NewReader(tt.input))
			assert.Error(t, err)
		})
	}
}

func TestWriteRoundTrip(t *testing.T) {
	motifs, err := Read(strings.NewReader(twoMotifs))
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "motifs.pwm")
	require.NoError(t, WriteFile(path, motifs))

	back, err := ReadFile(path)
	require.NoError(t, err)
	require.Len(t, back, 2)
	for i := range motifs {
		assert.Equal(t, motifs[i].Hash(), back[i].Hash())
	}
}

func TestHash(t *testing.T) {
	a := New("m", [][4]float64{{1, 0, 0, 0}})
	b := New("m", [][4]float64{{1, 0, 0, 0}})
	c := New("m", [][4]float64{{0, 1, 0, 0}})
	d := New("n", [][4]float64{{1, 0, 0, 0}})

	assert.Equal(t, a.Hash(), b.Hash())
	assert.NotEqual(t, a.Hash(), c.Hash())
	assert.NotEqual(t, a.Hash(), d.Hash())
	assert.Len(t, a.Hash(), 32)
}

func TestString(t *testing.T) {
	m := New("m", [][4]float64{{1, 0.5, 0, -1}})
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, []*Motif{m}))
	assert.Equal(t, ">m\n1\t0.5\t0\t-1\n", buf.String())
}
