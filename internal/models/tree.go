package models

import (
	"math"
	"math/rand"
	"sort"
)

type TreeNode struct {
	IsLeaf      bool
	Value       float64
	Feature     int
	Threshold   float64
	Left        *TreeNode
	Right       *TreeNode
	Samples     int
	SSEDecrease float64
}

// RegressionTree predicts a continuous response by recursive variance-
// reduction splits. At each node a random subset of MTry candidate features
// is considered, which is what makes it usable as a forest member.
type RegressionTree struct {
	MaxDepth       int
	MinSamplesLeaf int
	MTry           int
	Root           *TreeNode

	rng          *rand.Rand
	impurityGain []float64
}

func NewRegressionTree(maxDepth, minSamplesLeaf, mTry int, rng *rand.Rand) *RegressionTree {
	if maxDepth <= 0 {
		maxDepth = math.MaxInt32
	}
	if minSamplesLeaf <= 0 {
		minSamplesLeaf = 5
	}
	return &RegressionTree{
		MaxDepth:       maxDepth,
		MinSamplesLeaf: minSamplesLeaf,
		MTry:           mTry,
		rng:            rng,
	}
}

func (rt *RegressionTree) Fit(X [][]float64, y []float64) error {
	nFeatures := len(X[0])
	if rt.MTry <= 0 || rt.MTry > nFeatures {
		rt.MTry = nFeatures
	}
	rt.impurityGain = make([]float64, nFeatures)

	indices := make([]int, len(y))
	for i := range indices {
		indices[i] = i
	}
	rt.Root = rt.buildTree(X, y, indices, 0)
	return nil
}

func (rt *RegressionTree) buildTree(X [][]float64, y []float64, indices []int, depth int) *TreeNode {
	node := &TreeNode{Samples: len(indices)}

	sub := make([]float64, len(indices))
	for i, idx := range indices {
		sub[i] = y[idx]
	}
	node.Value = mean(sub)

	parentSSE := sumSquaredError(sub)
	if depth >= rt.MaxDepth || len(indices) < 2*rt.MinSamplesLeaf || parentSSE == 0 {
		node.IsLeaf = true
		return node
	}

	feature, threshold, gain := rt.findBestSplit(X, y, indices, parentSSE)
	if gain <= 0 {
		node.IsLeaf = true
		return node
	}

	node.Feature = feature
	node.Threshold = threshold
	node.SSEDecrease = gain
	rt.impurityGain[feature] += gain

	var left, right []int
	for _, idx := range indices {
		if X[idx][feature] < threshold {
			left = append(left, idx)
		} else {
			right = append(right, idx)
		}
	}
	if len(left) == 0 || len(right) == 0 {
		node.IsLeaf = true
		return node
	}

	node.Left = rt.buildTree(X, y, left, depth+1)
	node.Right = rt.buildTree(X, y, right, depth+1)
	return node
}

// findBestSplit scans MTry random candidate features. Per feature the node
// rows are sorted by value and split points evaluated with running sums, so
// each candidate costs one sort plus a linear pass.
func (rt *RegressionTree) findBestSplit(X [][]float64, y []float64, indices []int, parentSSE float64) (int, float64, float64) {
	bestFeature := -1
	bestThreshold := 0.0
	bestGain := 0.0

	n := len(indices)
	order := make([]int, n)

	for _, feature := range rt.candidateFeatures(len(X[0])) {
		copy(order, indices)
		f := feature
		sort.Slice(order, func(a, b int) bool { return X[order[a]][f] < X[order[b]][f] })

		totalSum := 0.0
		for _, idx := range order {
			totalSum += y[idx]
		}

		leftSum, leftSq := 0.0, 0.0
		totalSq := 0.0
		for _, idx := range order {
			totalSq += y[idx] * y[idx]
		}

		for i := 1; i < n; i++ {
			prev := order[i-1]
			leftSum += y[prev]
			leftSq += y[prev] * y[prev]

			if X[prev][f] == X[order[i]][f] {
				continue
			}
			nl, nr := i, n-i
			if nl < rt.MinSamplesLeaf || nr < rt.MinSamplesLeaf {
				continue
			}

			rightSum := totalSum - leftSum
			rightSq := totalSq - leftSq
			sseLeft := leftSq - leftSum*leftSum/float64(nl)
			sseRight := rightSq - rightSum*rightSum/float64(nr)

			gain := parentSSE - sseLeft - sseRight
			if gain > bestGain {
				bestGain = gain
				bestFeature = f
				bestThreshold = (X[prev][f] + X[order[i]][f]) / 2
			}
		}
	}

	return bestFeature, bestThreshold, bestGain
}

func (rt *RegressionTree) candidateFeatures(nFeatures int) []int {
	features := make([]int, nFeatures)
	for i := range features {
		features[i] = i
	}
	if rt.MTry >= nFeatures || rt.rng == nil {
		return features
	}
	for i := 0; i < rt.MTry; i++ {
		j := i + rt.rng.Intn(nFeatures-i)
		features[i], features[j] = features[j], features[i]
	}
	return features[:rt.MTry]
}

func (rt *RegressionTree) Predict(X [][]float64) []float64 {
	predictions := make([]float64, len(X))
	for i, sample := range X {
		predictions[i] = rt.predictSample(sample, rt.Root)
	}
	return predictions
}

func (rt *RegressionTree) predictSample(sample []float64, node *TreeNode) float64 {
	if node.IsLeaf {
		return node.Value
	}
	if sample[node.Feature] < node.Threshold {
		return rt.predictSample(sample, node.Left)
	}
	return rt.predictSample(sample, node.Right)
}
