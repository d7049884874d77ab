package models

import "math"

// Regressor is a fitted continuous-response model.
type Regressor interface {
	Fit(X [][]float64, y []float64) error
	Predict(X [][]float64) []float64
}

// Importance holds both importance measures for one predictor: the mean
// percent increase in OOB MSE when the predictor is permuted, and the total
// decrease in node sum-of-squares across all splits on it.
type Importance struct {
	Feature    string
	IncMSE     float64
	NodePurity float64
}

func mean(y []float64) float64 {
	if len(y) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range y {
		sum += v
	}
	return sum / float64(len(y))
}

func sumSquaredError(y []float64) float64 {
	m := mean(y)
	sse := 0.0
	for _, v := range y {
		d := v - m
		sse += d * d
	}
	return sse
}

func meanSquaredError(pred, obs []float64) float64 {
	if len(pred) == 0 {
		return 0
	}
	sum := 0.0
	for i, p := range pred {
		d := p - obs[i]
		sum += d * d
	}
	return sum / float64(len(pred))
}

func isConstant(y []float64) bool {
	for _, v := range y {
		if v != y[0] {
			return false
		}
	}
	return true
}

func anyNaN(col []float64) bool {
	for _, v := range col {
		if math.IsNaN(v) {
			return true
		}
	}
	return false
}
