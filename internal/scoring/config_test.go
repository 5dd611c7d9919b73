package scoring

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadWeightsProfile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "weights.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
weights:
  education: 0.3
  crime: 0.3
  services: 0.2
  transit: 0.1
  housing: 0.1
`), 0o644))

	w, err := LoadWeightsProfile(path)
	require.NoError(t, err)
	assert.InDelta(t, 0.3, w.Education, 1e-9)
	assert.InDelta(t, 0.0, w.Demographics, 1e-9, "absent component defaults to 0")
	assert.InDelta(t, 1.0, w.Sum(), 1e-9)
}

func TestLoadWeightsProfileRejectsNegative(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "weights.yaml")
	require.NoError(t, os.WriteFile(path, []byte("weights:\n  crime: -1\n  education: 2\n"), 0o644))

	_, err := LoadWeightsProfile(path)
	assert.Error(t, err)
}

func TestLoadWeightsProfileMissingFile(t *testing.T) {
	_, err := LoadWeightsProfile(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
