package persistence

import (
	"math/rand"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeffb999/healthy-watershed-random-forest/internal/models"
)

func TestModelBundleRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	n := 40
	X := make([][]float64, n)
	y := make([]float64, n)
	for i := 0; i < n; i++ {
		X[i] = []float64{rng.Float64(), rng.Float64()}
		y[i] = 3*X[i][0] + 0.1*rng.NormFloat64()
	}
	forest := models.NewRandomForest(models.ForestConfig{Trees: 10, MinSamplesLeaf: 3, Seed: 11, Workers: 1})
	require.NoError(t, forest.Fit(X, y, []string{"PctImpWs", "RdDensWs"}))

	bundle := NewModelBundle("ASCI", "ASCI_Hybrid", forest)
	bundle.Predictors = []string{"PctImpWs", "RdDensWs"}
	bundle.Seed = 2017
	bundle.RunID = "test-run"

	path := filepath.Join(t.TempDir(), "asci.bundle")
	require.NoError(t, bundle.Save(path))

	loaded, err := LoadModelBundle(path)
	require.NoError(t, err)

	assert.Equal(t, "ASCI", loaded.Index)
	assert.Equal(t, "ASCI_Hybrid", loaded.Response)
	assert.Equal(t, bundle.Predictors, loaded.Predictors)
	assert.Equal(t, int64(2017), loaded.Seed)

	probe := [][]float64{{0.2, 0.8}, {0.9, 0.1}}
	assert.Equal(t, forest.Predict(probe), loaded.Forest.Predict(probe))
}

func TestLoadModelBundleMissingFile(t *testing.T) {
	_, err := LoadModelBundle(filepath.Join(t.TempDir(), "absent.bundle"))
	require.Error(t, err)
}
