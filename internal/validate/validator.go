// Package validate fits per-region and overall linear models of measured
// against predicted index scores.
package validate

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// Fit is one OLS result: measured regressed on predicted for a (region,
// partition) group. OK is false when the group was too small to fit.
type Fit struct {
	Region     string
	Partition  string
	N          int
	Slope      float64
	Intercept  float64
	R2         float64
	SlopeP     float64
	InterceptP float64
	OK         bool
}

const minGroupSize = 3

// OLS regresses measured on predicted, reporting slope, intercept, R² and
// two-sided p-values for both coefficients (Student's t, n-2 df).
func OLS(predicted, measured []float64) (Fit, error) {
	n := len(predicted)
	if n != len(measured) {
		return Fit{}, fmt.Errorf("predicted has %d values, measured has %d", n, len(measured))
	}
	if n < minGroupSize {
		return Fit{N: n}, nil
	}

	alpha, beta := stat.LinearRegression(predicted, measured, nil, false)
	r2 := stat.RSquared(predicted, measured, nil, alpha, beta)

	xMean := stat.Mean(predicted, nil)
	sxx, sse := 0.0, 0.0
	for i, x := range predicted {
		dx := x - xMean
		sxx += dx * dx
		resid := measured[i] - (alpha + beta*x)
		sse += resid * resid
	}
	if sxx == 0 {
		return Fit{N: n}, fmt.Errorf("degenerate predictor: constant predictions")
	}

	df := float64(n - 2)
	s2 := sse / df
	seSlope := math.Sqrt(s2 / sxx)
	seIntercept := math.Sqrt(s2 * (1/float64(n) + xMean*xMean/sxx))

	tDist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: df}
	fit := Fit{
		N:         n,
		Slope:     beta,
		Intercept: alpha,
		R2:        r2,
		OK:        true,
	}
	fit.SlopeP = twoSidedP(beta, seSlope, tDist)
	fit.InterceptP = twoSidedP(alpha, seIntercept, tDist)
	return fit, nil
}

func twoSidedP(estimate, se float64, t distuv.StudentsT) float64 {
	if se == 0 {
		return 0
	}
	return 2 * t.CDF(-math.Abs(estimate/se))
}

// Observation is one validation row: a labeled catchment with its region,
// partition tag, prediction and measured score.
type Observation struct {
	Region    string
	Partition string
	Predicted float64
	Measured  float64
}

// Results is the flat validation output: one OLS fit per (region × partition)
// plus the overall per-partition fits, and overall train/test RMSE.
type Results struct {
	Fits      []Fit
	TrainRMSE float64
	TestRMSE  float64
}

// Evaluate fits the overall and per-region models for both partitions,
// collecting every fit into one table.
func Evaluate(obs []Observation) (*Results, error) {
	if len(obs) == 0 {
		return nil, fmt.Errorf("no observations to validate")
	}

	partitions := []string{"training", "testing"}
	regionSet := make(map[string]bool)
	for _, o := range obs {
		regionSet[o.Region] = true
	}
	regions := make([]string, 0, len(regionSet))
	for r := range regionSet {
		regions = append(regions, r)
	}
	sort.Strings(regions)

	res := &Results{}
	for _, partition := range partitions {
		pred, meas := collect(obs, "", partition)
		fit, err := olsGroup("all", partition, pred, meas)
		if err != nil {
			return nil, err
		}
		res.Fits = append(res.Fits, fit)

		for _, region := range regions {
			pred, meas := collect(obs, region, partition)
			fit, err := olsGroup(region, partition, pred, meas)
			if err != nil {
				return nil, err
			}
			res.Fits = append(res.Fits, fit)
		}
	}

	trainPred, trainMeas := collect(obs, "", "training")
	testPred, testMeas := collect(obs, "", "testing")
	res.TrainRMSE = rmse(trainPred, trainMeas)
	res.TestRMSE = rmse(testPred, testMeas)
	return res, nil
}

func olsGroup(region, partition string, pred, meas []float64) (Fit, error) {
	fit, err := OLS(pred, meas)
	if err != nil {
		return Fit{}, fmt.Errorf("%s/%s: %w", region, partition, err)
	}
	fit.Region = region
	fit.Partition = partition
	return fit, nil
}

func collect(obs []Observation, region, partition string) (pred, meas []float64) {
	for _, o := range obs {
		if region != "" && o.Region != region {
			continue
		}
		if o.Partition != partition {
			continue
		}
		pred = append(pred, o.Predicted)
		meas = append(meas, o.Measured)
	}
	return pred, meas
}

func rmse(pred, meas []float64) float64 {
	if len(pred) == 0 {
		return 0
	}
	sum := 0.0
	for i, p := range pred {
		d := p - meas[i]
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(pred)))
}
