package models

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// synthetic response: strong signal on feature 0, weak on feature 1, noise
// elsewhere.
func syntheticData(n, p int, seed int64) ([][]float64, []float64) {
	rng := rand.New(rand.NewSource(seed))
	X := make([][]float64, n)
	y := make([]float64, n)
	for i := 0; i < n; i++ {
		row := make([]float64, p)
		for j := range row {
			row[j] = rng.Float64()
		}
		X[i] = row
		y[i] = 3*row[0] + 0.5*row[1] + 0.1*rng.NormFloat64()
	}
	return X, y
}

func featureNames(p int) []string {
	names := make([]string, p)
	for i := range names {
		names[i] = string(rune('A' + i))
	}
	return names
}

func TestTreeFitsStepFunction(t *testing.T) {
	X := [][]float64{{0}, {1}, {2}, {3}, {10}, {11}, {12}, {13}}
	y := []float64{1, 1, 1, 1, 5, 5, 5, 5}

	tree := NewRegressionTree(0, 1, 0, nil)
	require.NoError(t, tree.Fit(X, y))

	pred := tree.Predict([][]float64{{1.5}, {11.5}})
	assert.InDelta(t, 1.0, pred[0], 1e-9)
	assert.InDelta(t, 5.0, pred[1], 1e-9)
}

func TestForestDeterministicUnderSeed(t *testing.T) {
	X, y := syntheticData(80, 4, 3)
	names := featureNames(4)

	cfg := ForestConfig{Trees: 30, MinSamplesLeaf: 3, Seed: 99, Workers: 4}
	a := NewRandomForest(cfg)
	require.NoError(t, a.Fit(X, y, names))

	cfgSerial := cfg
	cfgSerial.Workers = 1
	b := NewRandomForest(cfgSerial)
	require.NoError(t, b.Fit(X, y, names))

	probe, _ := syntheticData(10, 4, 17)
	assert.Equal(t, a.Predict(probe), b.Predict(probe))
	assert.Equal(t, a.OOBPredict(X), b.OOBPredict(X))
}

func TestOOBNotBetterThanFreshOnTraining(t *testing.T) {
	X, y := syntheticData(120, 5, 5)
	names := featureNames(5)

	forest := NewRandomForest(ForestConfig{Trees: 60, MinSamplesLeaf: 3, Seed: 7, Workers: 2})
	require.NoError(t, forest.Fit(X, y, names))

	oob := forest.OOBPredict(X)
	fresh := forest.Predict(X)

	var oobSSE, freshSSE float64
	n := 0
	for i := range y {
		if math.IsNaN(oob[i]) {
			continue
		}
		d1 := oob[i] - y[i]
		d2 := fresh[i] - y[i]
		oobSSE += d1 * d1
		freshSSE += d2 * d2
		n++
	}
	require.Greater(t, n, 0)

	// Fresh full-ensemble predictions on training rows leak information, so
	// their RMSE must not exceed the out-of-bag RMSE.
	oobRMSE := math.Sqrt(oobSSE / float64(n))
	freshRMSE := math.Sqrt(freshSSE / float64(n))
	assert.LessOrEqual(t, freshRMSE, oobRMSE)
}

func TestForestRejectsDegenerateResponse(t *testing.T) {
	X := [][]float64{{1}, {2}, {3}}
	y := []float64{4, 4, 4}

	forest := NewRandomForest(ForestConfig{Trees: 5, Seed: 1})
	err := forest.Fit(X, y, []string{"X"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "degenerate response")
}

func TestForestRejectsNaNPredictor(t *testing.T) {
	X := [][]float64{{1, math.NaN()}, {2, 0}, {3, 1}}
	y := []float64{1, 2, 3}

	forest := NewRandomForest(ForestConfig{Trees: 5, Seed: 1})
	err := forest.Fit(X, y, []string{"Good", "Bad"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"Bad"`)
}

func TestImportanceRanksSignalFirst(t *testing.T) {
	X, y := syntheticData(150, 5, 11)
	names := featureNames(5)

	forest := NewRandomForest(ForestConfig{Trees: 80, MinSamplesLeaf: 3, Seed: 21, Workers: 4})
	require.NoError(t, forest.Fit(X, y, names))

	imps := forest.Importances(X, y)
	require.Len(t, imps, 5)
	assert.Equal(t, "A", imps[0].Feature)
	assert.Greater(t, imps[0].IncMSE, 0.0)
	assert.Greater(t, imps[0].NodePurity, 0.0)
}

func TestOOBPredictWrongShapeIsNaN(t *testing.T) {
	X, y := syntheticData(30, 2, 1)
	forest := NewRandomForest(ForestConfig{Trees: 10, Seed: 2})
	require.NoError(t, forest.Fit(X, y, featureNames(2)))

	out := forest.OOBPredict(X[:10])
	for _, v := range out {
		assert.True(t, math.IsNaN(v))
	}
}
