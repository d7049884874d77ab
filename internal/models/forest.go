package models

import (
	"fmt"
	"math"
	"math/rand"
	"sort"
	"sync"
)

// ForestConfig controls ensemble fitting. Zero values fall back to the
// regression defaults: 500 trees, mtry = p/3, leaf size 5, unlimited depth.
type ForestConfig struct {
	Trees          int
	MaxDepth       int
	MinSamplesLeaf int
	MTry           int
	Seed           int64
	Workers        int
}

func DefaultForestConfig(seed int64) ForestConfig {
	return ForestConfig{
		Trees:          500,
		MinSamplesLeaf: 5,
		Seed:           seed,
		Workers:        4,
	}
}

// RandomForest is a bagged ensemble of regression trees. Every tree draws its
// bootstrap sample and split candidates from an RNG seeded with Seed+treeIndex,
// so the fitted ensemble is identical whether trees are grown in parallel or
// serially.
type RandomForest struct {
	Config       ForestConfig
	FeatureNames []string
	Trees        []*RegressionTree
	InBag        [][]int // per tree, bootstrap multiplicity of each training row
	NRows        int
}

func NewRandomForest(cfg ForestConfig) *RandomForest {
	if cfg.Trees <= 0 {
		cfg.Trees = 500
	}
	if cfg.MinSamplesLeaf <= 0 {
		cfg.MinSamplesLeaf = 5
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	return &RandomForest{Config: cfg}
}

// Fit grows the ensemble on the training matrix. A degenerate response or a
// predictor containing NaN is a fatal error naming the offending column.
func (rf *RandomForest) Fit(X [][]float64, y []float64, featureNames []string) error {
	if len(X) == 0 || len(X) != len(y) {
		return fmt.Errorf("training data has %d rows, response has %d", len(X), len(y))
	}
	nFeatures := len(X[0])
	if len(featureNames) != nFeatures {
		return fmt.Errorf("%d feature names for %d features", len(featureNames), nFeatures)
	}
	if isConstant(y) {
		return fmt.Errorf("degenerate response: constant value %v", y[0])
	}
	for j, name := range featureNames {
		col := make([]float64, len(X))
		for i := range X {
			col[i] = X[i][j]
		}
		if anyNaN(col) {
			return fmt.Errorf("predictor %q contains NaN", name)
		}
	}

	rf.FeatureNames = append([]string(nil), featureNames...)
	rf.NRows = len(X)

	mtry := rf.Config.MTry
	if mtry <= 0 {
		mtry = nFeatures / 3
		if mtry < 1 {
			mtry = 1
		}
	}

	rf.Trees = make([]*RegressionTree, rf.Config.Trees)
	rf.InBag = make([][]int, rf.Config.Trees)

	workers := rf.Config.Workers
	if workers > rf.Config.Trees {
		workers = rf.Config.Trees
	}

	errs := make([]error, rf.Config.Trees)
	jobs := make(chan int, rf.Config.Trees)
	var wg sync.WaitGroup

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				errs[i] = rf.growTree(X, y, i, mtry)
			}
		}()
	}
	for i := 0; i < rf.Config.Trees; i++ {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			return fmt.Errorf("tree %d: %w", i, err)
		}
	}
	return nil
}

func (rf *RandomForest) growTree(X [][]float64, y []float64, treeIdx, mtry int) error {
	rng := rand.New(rand.NewSource(rf.Config.Seed + int64(treeIdx)))

	n := len(X)
	inBag := make([]int, n)
	XBoot := make([][]float64, n)
	yBoot := make([]float64, n)
	for i := 0; i < n; i++ {
		idx := rng.Intn(n)
		inBag[idx]++
		XBoot[i] = X[idx]
		yBoot[i] = y[idx]
	}

	tree := NewRegressionTree(rf.Config.MaxDepth, rf.Config.MinSamplesLeaf, mtry, rng)
	if err := tree.Fit(XBoot, yBoot); err != nil {
		return err
	}
	rf.Trees[treeIdx] = tree
	rf.InBag[treeIdx] = inBag
	return nil
}

// Predict scores rows through the full ensemble. This is the only legal path
// for rows that were not part of training.
func (rf *RandomForest) Predict(X [][]float64) []float64 {
	predictions := make([]float64, len(X))
	for i, sample := range X {
		sum := 0.0
		for _, tree := range rf.Trees {
			sum += tree.predictSample(sample, tree.Root)
		}
		predictions[i] = sum / float64(len(rf.Trees))
	}
	return predictions
}

// OOBPredict scores each training row using only the trees whose bootstrap
// sample excluded it. X must be the original training matrix in fitting
// order. Rows that landed in every bag come back as NaN.
func (rf *RandomForest) OOBPredict(X [][]float64) []float64 {
	if len(X) != rf.NRows {
		out := make([]float64, len(X))
		for i := range out {
			out[i] = math.NaN()
		}
		return out
	}
	sums := make([]float64, len(X))
	counts := make([]int, len(X))
	for t, tree := range rf.Trees {
		for i := range X {
			if rf.InBag[t][i] == 0 {
				sums[i] += tree.predictSample(X[i], tree.Root)
				counts[i]++
			}
		}
	}
	out := make([]float64, len(X))
	for i := range out {
		if counts[i] == 0 {
			out[i] = math.NaN()
		} else {
			out[i] = sums[i] / float64(counts[i])
		}
	}
	return out
}

// Importances computes both importance measures against the training data:
// %IncMSE from OOB permutation and total node-SSE decrease. Results are
// ordered by decreasing %IncMSE.
func (rf *RandomForest) Importances(X [][]float64, y []float64) []Importance {
	nFeatures := len(rf.FeatureNames)
	incMSE := make([]float64, nFeatures)
	purity := make([]float64, nFeatures)

	for _, tree := range rf.Trees {
		for f := 0; f < nFeatures; f++ {
			purity[f] += tree.impurityGain[f]
		}
	}

	for t, tree := range rf.Trees {
		var oob []int
		for i := range X {
			if rf.InBag[t][i] == 0 {
				oob = append(oob, i)
			}
		}
		if len(oob) == 0 {
			continue
		}

		basePred := make([]float64, len(oob))
		baseObs := make([]float64, len(oob))
		for i, idx := range oob {
			basePred[i] = tree.predictSample(X[idx], tree.Root)
			baseObs[i] = y[idx]
		}
		baseMSE := meanSquaredError(basePred, baseObs)
		if baseMSE <= 0 {
			continue
		}

		sample := make([]float64, len(rf.FeatureNames))
		for f := 0; f < nFeatures; f++ {
			rng := rand.New(rand.NewSource(rf.Config.Seed + int64(t)*7919 + int64(f)*104729 + 1))
			perm := rng.Perm(len(oob))

			permPred := make([]float64, len(oob))
			for i, idx := range oob {
				copy(sample, X[idx])
				sample[f] = X[oob[perm[i]]][f]
				permPred[i] = tree.predictSample(sample, tree.Root)
			}
			permMSE := meanSquaredError(permPred, baseObs)
			incMSE[f] += 100 * (permMSE - baseMSE) / baseMSE
		}
	}

	out := make([]Importance, nFeatures)
	for f := range out {
		out[f] = Importance{
			Feature:    rf.FeatureNames[f],
			IncMSE:     incMSE[f] / float64(len(rf.Trees)),
			NodePurity: purity[f],
		}
	}
	sort.SliceStable(out, func(a, b int) bool { return out[a].IncMSE > out[b].IncMSE })
	return out
}
