package split

import (
	"fmt"
	"math"
	"math/rand"
	"sort"

	"github.com/jeffb999/healthy-watershed-random-forest/internal/models"
)

// RFEConfig drives recursive feature elimination: candidate feature-set
// sizes, the number of CV folds, the RMSE tolerance (percentage points
// relative to the best size) accepted when picking a smaller model, and the
// forest used to score each candidate.
type RFEConfig struct {
	Sizes     []int
	Folds     int
	Tolerance float64
	Forest    models.ForestConfig
}

// SizeResult is the cross-validated score for one candidate size.
type SizeResult struct {
	Size     int
	MeanRMSE float64
	StdRMSE  float64
}

// RFEResult carries the score ladder, the chosen size, the selected
// predictors in importance order, and the full-training ranking behind them.
type RFEResult struct {
	Sizes    []SizeResult
	Best     int
	Selected []string
	Ranking  []models.Importance
}

// RunRFE ranks predictors inside each cross-validation fold, scores the top-s
// subset for every ladder size s on the held-out fold, and picks the smallest
// size whose mean RMSE is within Tolerance percent of the best size. The
// final predictor names come from a ranking fit on the whole training set, so
// fold-to-fold rank jitter cannot leak into the selected set.
func RunRFE(X [][]float64, y []float64, features []string, cfg RFEConfig, rng *rand.Rand) (*RFEResult, error) {
	if len(X) == 0 {
		return nil, fmt.Errorf("empty training set")
	}
	if len(cfg.Sizes) == 0 {
		return nil, fmt.Errorf("no candidate sizes")
	}

	sizes := usableSizes(cfg.Sizes, len(features))
	if len(sizes) == 0 {
		return nil, fmt.Errorf("no candidate size fits %d predictors", len(features))
	}

	folds, err := KFold(len(X), cfg.Folds, rng)
	if err != nil {
		return nil, err
	}

	rmse := make(map[int][]float64, len(sizes))

	for foldIdx, testIdx := range folds {
		trainIdx := complement(len(X), testIdx)
		XTrain, yTrain := subset(X, y, trainIdx)
		XTest, yTest := subset(X, y, testIdx)

		ranker := models.NewRandomForest(foldForest(cfg.Forest, foldIdx, 0))
		if err := ranker.Fit(XTrain, yTrain, features); err != nil {
			return nil, fmt.Errorf("fold %d ranking fit: %w", foldIdx, err)
		}
		ranking := ranker.Importances(XTrain, yTrain)

		for _, size := range sizes {
			cols := topFeatureIndices(ranking, features, size)

			scorer := models.NewRandomForest(foldForest(cfg.Forest, foldIdx, size))
			if err := scorer.Fit(project(XTrain, cols), yTrain, names(features, cols)); err != nil {
				return nil, fmt.Errorf("fold %d size %d fit: %w", foldIdx, size, err)
			}
			pred := scorer.Predict(project(XTest, cols))
			rmse[size] = append(rmse[size], RMSE(pred, yTest))
		}
	}

	result := &RFEResult{}
	bestRMSE := math.Inf(1)
	for _, size := range sizes {
		m, s := meanStd(rmse[size])
		result.Sizes = append(result.Sizes, SizeResult{Size: size, MeanRMSE: m, StdRMSE: s})
		if m < bestRMSE {
			bestRMSE = m
		}
	}

	// Parsimony rule: smallest size within tolerance of the best mean RMSE.
	limit := bestRMSE * (1 + cfg.Tolerance/100)
	for _, sr := range result.Sizes {
		if sr.MeanRMSE <= limit {
			result.Best = sr.Size
			break
		}
	}

	final := models.NewRandomForest(cfg.Forest)
	if err := final.Fit(X, y, features); err != nil {
		return nil, fmt.Errorf("final ranking fit: %w", err)
	}
	result.Ranking = final.Importances(X, y)
	for _, imp := range result.Ranking[:result.Best] {
		result.Selected = append(result.Selected, imp.Feature)
	}
	return result, nil
}

// foldForest derives a deterministic per-fold seed so fold evaluation order
// cannot perturb any other random stream.
func foldForest(base models.ForestConfig, fold, size int) models.ForestConfig {
	base.Seed = base.Seed + int64(fold+1)*1_000_003 + int64(size)*7
	return base
}

func usableSizes(sizes []int, nFeatures int) []int {
	var out []int
	for _, s := range sizes {
		if s >= 1 && s <= nFeatures {
			out = append(out, s)
		}
	}
	sort.Ints(out)
	return out
}

func topFeatureIndices(ranking []models.Importance, features []string, size int) []int {
	pos := make(map[string]int, len(features))
	for i, f := range features {
		pos[f] = i
	}
	out := make([]int, 0, size)
	for _, imp := range ranking[:size] {
		out = append(out, pos[imp.Feature])
	}
	return out
}

func project(X [][]float64, cols []int) [][]float64 {
	out := make([][]float64, len(X))
	for i, row := range X {
		sub := make([]float64, len(cols))
		for j, c := range cols {
			sub[j] = row[c]
		}
		out[i] = sub
	}
	return out
}

func names(features []string, cols []int) []string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = features[c]
	}
	return out
}

func subset(X [][]float64, y []float64, idx []int) ([][]float64, []float64) {
	Xs := make([][]float64, len(idx))
	ys := make([]float64, len(idx))
	for i, j := range idx {
		Xs[i] = X[j]
		ys[i] = y[j]
	}
	return Xs, ys
}

func complement(n int, exclude []int) []int {
	in := make(map[int]bool, len(exclude))
	for _, i := range exclude {
		in[i] = true
	}
	out := make([]int, 0, n-len(exclude))
	for i := 0; i < n; i++ {
		if !in[i] {
			out = append(out, i)
		}
	}
	return out
}

// RMSE is the root-mean-square error of predictions against observations.
func RMSE(pred, obs []float64) float64 {
	if len(pred) == 0 {
		return 0
	}
	sum := 0.0
	for i, p := range pred {
		d := p - obs[i]
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(pred)))
}

func meanStd(values []float64) (mean, std float64) {
	if len(values) == 0 {
		return 0, 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	mean = sum / float64(len(values))

	if len(values) > 1 {
		variance := 0.0
		for _, v := range values {
			d := v - mean
			variance += d * d
		}
		std = math.Sqrt(variance / float64(len(values)-1))
	}
	return mean, std
}
