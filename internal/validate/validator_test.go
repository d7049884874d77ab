package validate

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOLSRecoversKnownLine(t *testing.T) {
	rng := rand.New(rand.NewSource(6))
	n := 50
	pred := make([]float64, n)
	meas := make([]float64, n)
	for i := 0; i < n; i++ {
		pred[i] = rng.Float64() * 10
		meas[i] = 2*pred[i] + 1 + 0.01*rng.NormFloat64()
	}

	fit, err := OLS(pred, meas)
	require.NoError(t, err)
	require.True(t, fit.OK)
	assert.InDelta(t, 2.0, fit.Slope, 0.01)
	assert.InDelta(t, 1.0, fit.Intercept, 0.05)
	assert.Greater(t, fit.R2, 0.999)
	assert.Less(t, fit.SlopeP, 1e-6)
	assert.Less(t, fit.InterceptP, 1e-6)
}

func TestOLSWeakRelationHasLargeP(t *testing.T) {
	rng := rand.New(rand.NewSource(12))
	n := 30
	pred := make([]float64, n)
	meas := make([]float64, n)
	for i := 0; i < n; i++ {
		pred[i] = rng.Float64()
		meas[i] = rng.Float64() // unrelated
	}

	fit, err := OLS(pred, meas)
	require.NoError(t, err)
	require.True(t, fit.OK)
	assert.Greater(t, fit.SlopeP, 0.001)
}

func TestOLSSmallGroupSkipped(t *testing.T) {
	fit, err := OLS([]float64{1, 2}, []float64{1, 2})
	require.NoError(t, err)
	assert.False(t, fit.OK)
	assert.Equal(t, 2, fit.N)
}

func TestOLSConstantPredictionsFatal(t *testing.T) {
	_, err := OLS([]float64{3, 3, 3, 3}, []float64{1, 2, 3, 4})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "degenerate predictor")
}

func TestEvaluatePerRegionAndPartition(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	var obs []Observation
	for _, region := range []string{"North Coast", "South Coast"} {
		for _, partition := range []string{"training", "testing"} {
			for i := 0; i < 20; i++ {
				p := rng.Float64()
				obs = append(obs, Observation{
					Region:    region,
					Partition: partition,
					Predicted: p,
					Measured:  p + 0.02*rng.NormFloat64(),
				})
			}
		}
	}

	res, err := Evaluate(obs)
	require.NoError(t, err)

	// One overall fit plus one per region, for each partition.
	require.Len(t, res.Fits, 6)
	assert.Equal(t, "all", res.Fits[0].Region)
	assert.Equal(t, "training", res.Fits[0].Partition)

	for _, fit := range res.Fits {
		assert.True(t, fit.OK)
		assert.InDelta(t, 1.0, fit.Slope, 0.15)
	}
	assert.Greater(t, res.TrainRMSE, 0.0)
	assert.Greater(t, res.TestRMSE, 0.0)
	assert.InDelta(t, 0.02, res.TrainRMSE, 0.02)
}

func TestEvaluateSkipsTinyGroups(t *testing.T) {
	obs := []Observation{
		{Region: "Chaparral", Partition: "training", Predicted: 1, Measured: 1},
		{Region: "Chaparral", Partition: "training", Predicted: 2, Measured: 2},
		{Region: "North Coast", Partition: "training", Predicted: 1, Measured: 1.1},
		{Region: "North Coast", Partition: "training", Predicted: 2, Measured: 1.9},
		{Region: "North Coast", Partition: "training", Predicted: 3, Measured: 3.2},
	}

	res, err := Evaluate(obs)
	require.NoError(t, err)

	var chaparral *Fit
	for i := range res.Fits {
		if res.Fits[i].Region == "Chaparral" && res.Fits[i].Partition == "training" {
			chaparral = &res.Fits[i]
		}
	}
	require.NotNil(t, chaparral)
	assert.False(t, chaparral.OK)
	assert.Equal(t, 2, chaparral.N)
}

func TestEvaluateEmptyFails(t *testing.T) {
	_, err := Evaluate(nil)
	require.Error(t, err)
}
