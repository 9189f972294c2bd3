package dataset

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `gender,math_score,reading_score
female,72,72
male,47,57
female,90,95
`

func TestReadWriteRoundTrip(t *testing.T) {
	f, err := Read(strings.NewReader(sample))
	require.NoError(t, err)
	assert.Equal(t, []string{"gender", "math_score", "reading_score"}, f.Header)
	assert.Equal(t, 3, f.Len())

	path := filepath.Join(t.TempDir(), "out", "data.csv")
	require.NoError(t, f.WriteFile(path))
	body, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, sample, string(body))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestReadRejectsRaggedRows(t *testing.T) {
	_, err := Read(strings.NewReader("a,b\n1\n"))
	require.Error(t, err)

	_, err = Read(strings.NewReader(""))
	require.Error(t, err)
}

func TestColumnsAndFloats(t *testing.T) {
	f, err := Read(strings.NewReader(sample))
	require.NoError(t, err)

	vals, err := f.Floats("math_score")
	require.NoError(t, err)
	assert.Equal(t, []float64{72, 47, 90}, vals)

	_, err = f.Floats("gender")
	require.Error(t, err)

	_, err = f.Column("nope")
	assert.ErrorIs(t, err, ErrNoColumn)
}

func TestDropSelectTake(t *testing.T) {
	f, err := Read(strings.NewReader(sample))
	require.NoError(t, err)

	dropped, err := f.Drop("reading_score")
	require.NoError(t, err)
	assert.Equal(t, []string{"gender", "math_score"}, dropped.Header)
	assert.Equal(t, []string{"male", "47"}, dropped.Rows[1])
	assert.Len(t, f.Header, 3)

	_, err = f.Drop("absent")
	assert.ErrorIs(t, err, ErrNoColumn)

	sel, err := f.Select("math_score")
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"72"}, {"47"}, {"90"}}, sel.Rows)

	taken := f.Take([]int{2, 0})
	assert.Equal(t, "90", taken.Rows[0][1])
	taken.Rows[0][1] = "0"
	assert.Equal(t, "90", f.Rows[2][1])
}

func TestWithColumn(t *testing.T) {
	f, err := Read(strings.NewReader(sample))
	require.NoError(t, err)

	g, err := f.WithColumn("x", []string{"1", "2", "3"})
	require.NoError(t, err)
	assert.Equal(t, "x", g.Header[3])
	assert.Len(t, f.Header, 3)

	_, err = f.WithColumn("x", []string{"1"})
	require.Error(t, err)
	_, err = f.WithColumn("gender", []string{"1", "2", "3"})
	require.Error(t, err)
}

func TestFormatFloat(t *testing.T) {
	assert.Equal(t, "72.0", FormatFloat(72))
	assert.Equal(t, "72.33333333333333", FormatFloat(217.0/3))
	assert.Equal(t, "0.5", FormatFloat(0.5))
}
