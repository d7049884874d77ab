// Package split partitions the labeled table and drives feature selection.
package split

import (
	"fmt"
	"math/rand"
	"sort"
)

// PooledLabel is the stratum regions below the pooling threshold merge into
// before splitting.
const PooledLabel = "other"

// StratifiedSplitter partitions rows into train/test so each region's share
// of the training set approximates its share of the labeled set. Regions
// holding less than PoolThreshold of all rows are pooled into one stratum.
type StratifiedSplitter struct {
	TrainFraction float64
	PoolThreshold float64
}

func NewStratifiedSplitter(trainFraction, poolThreshold float64) *StratifiedSplitter {
	return &StratifiedSplitter{
		TrainFraction: trainFraction,
		PoolThreshold: poolThreshold,
	}
}

// Split returns disjoint, covering train and test row indices. The result is
// deterministic for a given RNG seed.
func (s *StratifiedSplitter) Split(regions []string, rng *rand.Rand) (train, test []int, err error) {
	if len(regions) == 0 {
		return nil, nil, fmt.Errorf("cannot split empty dataset")
	}
	if s.TrainFraction <= 0 || s.TrainFraction >= 1 {
		return nil, nil, fmt.Errorf("train fraction must be between 0 and 1")
	}

	strata := s.Strata(regions)

	groups := make(map[string][]int)
	for i, label := range strata {
		groups[label] = append(groups[label], i)
	}
	labels := make([]string, 0, len(groups))
	for label := range groups {
		labels = append(labels, label)
	}
	sort.Strings(labels)

	for _, label := range labels {
		indices := groups[label]
		rng.Shuffle(len(indices), func(i, j int) {
			indices[i], indices[j] = indices[j], indices[i]
		})

		testCount := len(indices) - int(s.TrainFraction*float64(len(indices)))
		if testCount == 0 && len(indices) > 1 {
			testCount = 1
		}
		trainCount := len(indices) - testCount

		train = append(train, indices[:trainCount]...)
		test = append(test, indices[trainCount:]...)
	}

	sort.Ints(train)
	sort.Ints(test)
	return train, test, nil
}

// Strata maps each row's region to its sampling stratum, pooling regions
// whose population is below the threshold.
func (s *StratifiedSplitter) Strata(regions []string) []string {
	counts := make(map[string]int)
	for _, r := range regions {
		counts[r]++
	}
	minCount := s.PoolThreshold * float64(len(regions))

	out := make([]string, len(regions))
	for i, r := range regions {
		if float64(counts[r]) < minCount {
			out[i] = PooledLabel
		} else {
			out[i] = r
		}
	}
	return out
}

// KFold returns k disjoint test-index folds covering 0..n-1, shuffled with
// the supplied RNG.
func KFold(n, k int, rng *rand.Rand) ([][]int, error) {
	if k < 2 || k > n {
		return nil, fmt.Errorf("number of folds must be between 2 and %d", n)
	}

	indices := make([]int, n)
	for i := range indices {
		indices[i] = i
	}
	rng.Shuffle(len(indices), func(i, j int) {
		indices[i], indices[j] = indices[j], indices[i]
	})

	folds := make([][]int, k)
	foldSize := n / k
	for i := 0; i < k; i++ {
		start := i * foldSize
		end := start + foldSize
		if i == k-1 {
			end = n
		}
		folds[i] = make([]int, end-start)
		copy(folds[i], indices[start:end])
	}
	return folds, nil
}
