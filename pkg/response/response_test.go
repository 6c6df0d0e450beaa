package response

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	in := "# single-fibre response\n1.5 -0.6 0.2 -0.05\n\n"
	r, err := Parse(strings.NewReader(in))
	require.NoError(t, err)
	assert.Equal(t, 1, r.NumShells())
	assert.Equal(t, 6, r.Lmax())
	assert.Equal(t, []float64{1.5, -0.6, 0.2, -0.05}, r.Shell(0))
}

func TestParseMultiShellPads(t *testing.T) {
	r, err := Parse(strings.NewReader("3.0\n1.0 -0.4 0.1\n"))
	require.NoError(t, err)
	assert.Equal(t, 2, r.NumShells())
	assert.Equal(t, []float64{3, 0, 0}, r.Shell(0))
	assert.Equal(t, 4, r.Lmax())
}

func TestParseErrors(t *testing.T) {
	for _, in := range []string{"", "# only comments\n", "1.0 x\n", "NaN 1\n"} {
		_, err := Parse(strings.NewReader(in))
		assert.Error(t, err, "input %q", in)
	}
}

func TestShellIsCopy(t *testing.T) {
	r, err := New([]float64{1, 2})
	require.NoError(t, err)
	s := r.Shell(0)
	s[0] = 99
	assert.Equal(t, 1.0, r.Shell(0)[0])
}

func TestRH(t *testing.T) {
	rh := []float64{1.0, 0.42, 0.18, 0.06}
	r, err := FromRH(rh)
	require.NoError(t, err)
	assert.InDeltaSlice(t, rh, r.RH(0), 1e-12)
}

func TestSaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "response.txt")
	r, err := New([]float64{1.25, -0.5, 0.125})
	require.NoError(t, err)
	require.NoError(t, Save(path, r))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, r.Shell(0), loaded.Shell(0))

	_, err = Load(filepath.Join(t.TempDir(), "missing.txt"))
	assert.Error(t, err)
}
