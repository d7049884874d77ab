// Package predict scores every statewide catchment with a fitted forest,
// tagging each row as training or non-training.
package predict

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/jeffb999/healthy-watershed-random-forest/internal/models"
	"github.com/jeffb999/healthy-watershed-random-forest/internal/table"
)

const (
	PartitionTraining    = "training"
	PartitionNonTraining = "non-training"
)

// Statewide is the full-coverage prediction output. Training catchments carry
// their out-of-bag prediction; everything else is scored fresh through the
// full ensemble. Rows with a null selected predictor are excluded, never
// imputed, and the exclusion count is reported.
type Statewide struct {
	Table              *table.Table
	TrainingRows       int
	NonTrainingRows    int
	ExcludedIncomplete int
}

// Score builds the statewide table from the wide covariate table. oob maps
// training catchment IDs to their out-of-bag predictions; its key set defines
// the training partition.
func Score(wide *table.Table, forest *models.RandomForest, predictors []string, oob map[int64]float64) (*Statewide, error) {
	selected, err := wide.Select(predictors...)
	if err != nil {
		return nil, fmt.Errorf("selecting predictors: %w", err)
	}

	// Non-training rows must be complete in every selected predictor.
	var scoreIDs []int64
	excluded := 0
	for i := 0; i < selected.Len(); i++ {
		id := selected.ID(i)
		if _, isTrain := oob[id]; isTrain {
			continue
		}
		complete := true
		for _, p := range predictors {
			v, err := selected.Value(p, i)
			if err != nil {
				return nil, err
			}
			if !v.Valid {
				complete = false
				break
			}
		}
		if complete {
			scoreIDs = append(scoreIDs, id)
		} else {
			excluded++
		}
	}

	keep := make([]int64, 0, len(scoreIDs)+len(oob))
	keep = append(keep, scoreIDs...)
	for id := range oob {
		keep = append(keep, id)
	}
	sort.Slice(keep, func(i, j int) bool { return keep[i] < keep[j] })

	keepSet := make(map[int64]bool, len(keep))
	for _, id := range keep {
		keepSet[id] = true
	}
	out := selected.Filter(func(row int) bool { return keepSet[selected.ID(row)] })

	matrixIDs := make([]int64, 0, len(scoreIDs))
	var matrix [][]float64
	for row := 0; row < out.Len(); row++ {
		id := out.ID(row)
		if _, isTrain := oob[id]; isTrain {
			continue
		}
		sample := make([]float64, len(predictors))
		for j, p := range predictors {
			v, _ := out.Value(p, row)
			sample[j], _ = v.Decimal.Float64()
		}
		matrix = append(matrix, sample)
		matrixIDs = append(matrixIDs, id)
	}

	fresh := forest.Predict(matrix)
	predByID := make(map[int64]float64, len(matrixIDs))
	for i, id := range matrixIDs {
		predByID[id] = fresh[i]
	}

	prediction := make([]decimal.NullDecimal, out.Len())
	partition := make([]string, out.Len())
	for row := 0; row < out.Len(); row++ {
		id := out.ID(row)
		if v, isTrain := oob[id]; isTrain {
			prediction[row] = decimal.NullDecimal{Decimal: decimal.NewFromFloat(v), Valid: true}
			partition[row] = PartitionTraining
			continue
		}
		prediction[row] = decimal.NullDecimal{Decimal: decimal.NewFromFloat(predByID[id]), Valid: true}
		partition[row] = PartitionNonTraining
	}
	if err := out.AddNumeric("Prediction", prediction); err != nil {
		return nil, err
	}
	if err := out.AddString("Partition", partition); err != nil {
		return nil, err
	}

	return &Statewide{
		Table:              out,
		TrainingRows:       len(oob),
		NonTrainingRows:    len(matrixIDs),
		ExcludedIncomplete: excluded,
	}, nil
}
