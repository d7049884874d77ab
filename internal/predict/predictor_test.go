package predict

import (
	"math/rand"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeffb999/healthy-watershed-random-forest/internal/models"
	"github.com/jeffb999/healthy-watershed-random-forest/internal/table"
)

func fittedForest(t *testing.T) *models.RandomForest {
	t.Helper()
	rng := rand.New(rand.NewSource(5))
	n := 60
	X := make([][]float64, n)
	y := make([]float64, n)
	for i := 0; i < n; i++ {
		X[i] = []float64{rng.Float64(), rng.Float64()}
		y[i] = X[i][0] + 0.1*rng.NormFloat64()
	}
	forest := models.NewRandomForest(models.ForestConfig{Trees: 20, MinSamplesLeaf: 3, Seed: 1, Workers: 2})
	require.NoError(t, forest.Fit(X, y, []string{"A", "B"}))
	return forest
}

func wideTable(t *testing.T, n int, withNulls []int64) *table.Table {
	t.Helper()
	ids := make([]int64, n)
	for i := range ids {
		ids[i] = int64(i + 1)
	}
	tbl, err := table.New(ids)
	require.NoError(t, err)

	nullSet := make(map[int64]bool)
	for _, id := range withNulls {
		nullSet[id] = true
	}
	for _, name := range []string{"A", "B"} {
		col := make([]decimal.NullDecimal, n)
		for i, id := range ids {
			if nullSet[id] && name == "A" {
				continue
			}
			col[i] = decimal.NullDecimal{Decimal: decimal.NewFromFloat(float64(i) / float64(n)), Valid: true}
		}
		require.NoError(t, tbl.AddNumeric(name, col))
	}
	require.NoError(t, tbl.AddNumeric("Unused", make([]decimal.NullDecimal, n)))
	return tbl
}

func TestScorePartitionsDisjointAndCovering(t *testing.T) {
	forest := fittedForest(t)
	wide := wideTable(t, 50, nil)

	oob := map[int64]float64{3: 0.3, 17: 0.4, 42: 0.5}
	res, err := Score(wide, forest, []string{"A", "B"}, oob)
	require.NoError(t, err)

	assert.Equal(t, 3, res.TrainingRows)
	assert.Equal(t, 47, res.NonTrainingRows)
	assert.Equal(t, 0, res.ExcludedIncomplete)
	assert.Equal(t, 50, res.Table.Len())

	partition, err := res.Table.String("Partition")
	require.NoError(t, err)
	trainSeen := make(map[int64]bool)
	for i := 0; i < res.Table.Len(); i++ {
		id := res.Table.ID(i)
		switch partition[i] {
		case PartitionTraining:
			trainSeen[id] = true
			_, isTrain := oob[id]
			assert.True(t, isTrain)
		case PartitionNonTraining:
			_, isTrain := oob[id]
			assert.False(t, isTrain)
		default:
			t.Fatalf("unexpected partition %q", partition[i])
		}
	}
	assert.Len(t, trainSeen, len(oob))
}

func TestScoreTrainingRowsCarryOOB(t *testing.T) {
	forest := fittedForest(t)
	wide := wideTable(t, 10, nil)

	oob := map[int64]float64{5: 0.125}
	res, err := Score(wide, forest, []string{"A", "B"}, oob)
	require.NoError(t, err)

	row, ok := res.Table.RowOf(5)
	require.True(t, ok)
	pred, err := res.Table.Value("Prediction", row)
	require.NoError(t, err)
	require.True(t, pred.Valid)
	f, _ := pred.Decimal.Float64()
	assert.InDelta(t, 0.125, f, 1e-9)
}

func TestScoreExcludesNullPredictors(t *testing.T) {
	forest := fittedForest(t)
	wide := wideTable(t, 20, []int64{7, 8, 9})

	res, err := Score(wide, forest, []string{"A", "B"}, map[int64]float64{1: 0.5})
	require.NoError(t, err)

	assert.Equal(t, 3, res.ExcludedIncomplete)
	assert.Equal(t, 17, res.Table.Len())
	assert.Equal(t, 1, res.TrainingRows)
	assert.Equal(t, 16, res.NonTrainingRows)
	_, ok := res.Table.RowOf(7)
	assert.False(t, ok)
}
