// Package pipeline wires the stages together: covariate assembly, label
// binding, stratified split, feature elimination, forest fit, statewide
// prediction, classification and validation. Every stage is a pure function
// of its declared inputs; nothing is shared through package state.
package pipeline

import (
	"fmt"
	"log"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/jeffb999/healthy-watershed-random-forest/internal/bind"
	"github.com/jeffb999/healthy-watershed-random-forest/internal/classify"
	"github.com/jeffb999/healthy-watershed-random-forest/internal/config"
	"github.com/jeffb999/healthy-watershed-random-forest/internal/landscape"
	"github.com/jeffb999/healthy-watershed-random-forest/internal/models"
	"github.com/jeffb999/healthy-watershed-random-forest/internal/persistence"
	"github.com/jeffb999/healthy-watershed-random-forest/internal/predict"
	"github.com/jeffb999/healthy-watershed-random-forest/internal/report"
	"github.com/jeffb999/healthy-watershed-random-forest/internal/split"
	"github.com/jeffb999/healthy-watershed-random-forest/internal/table"
	"github.com/jeffb999/healthy-watershed-random-forest/internal/validate"
)

// Stage seed offsets. Each stage derives its own RNG from the master seed so
// no stage's draw order can perturb another's.
const (
	seedBind   = 1
	seedSplit  = 2
	seedFolds  = 3
	seedForest = 4
)

// IndexResult collects one index's outputs and diagnostics for the manifest.
type IndexResult struct {
	Index              string
	Response           string
	LabeledRows        int
	ExcludedStations   int
	DuplicateDraws     int
	DroppedIncomplete  int
	TrainRows          int
	TestRows           int
	Selected           []string
	CVSizes            []split.SizeResult
	TrainRMSE          float64
	TestRMSE           float64
	StatewideRows      int
	ExcludedStatewide  int
	ClassSummaries     []classify.Summary
	Validation         *validate.Results
	OutputFiles        []string
}

// Runner executes the full pipeline for every configured index.
type Runner struct {
	Config *config.Config
	RunID  string
}

func NewRunner(cfg *config.Config) *Runner {
	return &Runner{Config: cfg, RunID: uuid.NewString()}
}

// BuildWide assembles the statewide covariate table: family loads, chained
// outer joins, composite land-use derivation per configured scope, and the
// literal covariate drop list.
func (r *Runner) BuildWide() (*table.Table, error) {
	cfg := r.Config
	families := make([]landscape.Family, len(cfg.Data.Families))
	for i, f := range cfg.Data.Families {
		families[i] = landscape.Family{Name: f.Name, File: f.File, KeyCol: f.KeyCol, Columns: f.Columns}
	}

	wide, err := landscape.BuildWide(cfg.Data.CovariateDir, families)
	if err != nil {
		return nil, fmt.Errorf("building covariate table: %w", err)
	}
	for _, scope := range cfg.Data.LandCover.Scopes {
		if err := landscape.DeriveLandCover(wide, scope); err != nil {
			return nil, fmt.Errorf("deriving land cover at %s scope: %w", scope, err)
		}
	}
	if len(cfg.DropCovariates) > 0 {
		wide.Drop(cfg.DropCovariates...)
		log.Printf("dropped %d covariates by configuration", len(cfg.DropCovariates))
	}
	log.Printf("wide covariate table: %d catchments, %d columns", wide.Len(), len(wide.Columns()))
	return wide, nil
}

// Run executes every stage for every configured index and writes all outputs.
func (r *Runner) Run() ([]*IndexResult, error) {
	cfg := r.Config
	if err := os.MkdirAll(cfg.Output.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating output dir: %w", err)
	}

	wide, err := r.BuildWide()
	if err != nil {
		return nil, err
	}
	widePath := filepath.Join(cfg.Output.Dir, "covariates_wide.csv")
	if err := wide.WriteCSV(widePath, "COMID"); err != nil {
		return nil, err
	}

	regions, err := landscape.LoadRegions(cfg.Data.Regions)
	if err != nil {
		return nil, err
	}
	stations, err := bind.LoadStations(cfg.Data.Stations, cfg.ResponseColumns())
	if err != nil {
		return nil, err
	}
	log.Printf("loaded %d stations, %d region assignments", len(stations), regions.Len())

	results := make([]*IndexResult, 0, len(cfg.Indices))
	for i, idx := range cfg.Indices {
		res, err := r.runIndex(wide, regions, stations, idx, int64(i))
		if err != nil {
			return nil, fmt.Errorf("index %s: %w", idx.Name, err)
		}
		res.OutputFiles = append(res.OutputFiles, widePath)
		results = append(results, res)
	}

	if err := r.writeManifest(results); err != nil {
		return nil, err
	}
	return results, nil
}

func (r *Runner) runIndex(wide *table.Table, regions *landscape.Regions, stations []bind.Station, idx config.IndexSpec, offset int64) (*IndexResult, error) {
	cfg := r.Config
	base := cfg.Seed + offset*10_000
	res := &IndexResult{Index: idx.Name, Response: idx.Response}

	log.Printf("[%s] binding labels on %s", idx.Name, idx.Response)
	bindRNG := rand.New(rand.NewSource(base + seedBind))
	bound, err := bind.Bind(wide, stations, regions, idx.Response, cfg.ExcludeStations, bindRNG)
	if err != nil {
		return nil, err
	}
	labeled := bound.Labeled
	res.LabeledRows = labeled.Len()
	res.ExcludedStations = bound.Excluded
	res.DuplicateDraws = bound.DuplicateDraws
	res.DroppedIncomplete = bound.DroppedIncomplete
	log.Printf("[%s] %d labeled catchments (%d incomplete dropped, %d duplicate draws, %d stations excluded)",
		idx.Name, labeled.Len(), bound.DroppedIncomplete, bound.DuplicateDraws, bound.Excluded)

	covariates := bind.CovariateColumns(labeled, idx.Response)
	X, err := labeled.Matrix(covariates)
	if err != nil {
		return nil, err
	}
	y, err := labeled.Vector(idx.Response)
	if err != nil {
		return nil, err
	}
	regionCol, err := labeled.String("Region")
	if err != nil {
		return nil, err
	}

	splitter := split.NewStratifiedSplitter(cfg.Split.TrainFraction, cfg.Split.PoolThreshold)
	splitRNG := rand.New(rand.NewSource(base + seedSplit))
	trainIdx, testIdx, err := splitter.Split(regionCol, splitRNG)
	if err != nil {
		return nil, err
	}
	res.TrainRows = len(trainIdx)
	res.TestRows = len(testIdx)
	log.Printf("[%s] split %d training / %d testing", idx.Name, len(trainIdx), len(testIdx))

	XTrain, yTrain := subsetRows(X, y, trainIdx)
	XTest, yTest := subsetRows(X, y, testIdx)

	forestCfg := models.ForestConfig{
		Trees:          cfg.Forest.Trees,
		MaxDepth:       cfg.Forest.MaxDepth,
		MinSamplesLeaf: cfg.Forest.MinSamplesLeaf,
		Workers:        cfg.Forest.Workers,
		Seed:           base + seedForest,
	}
	rfeCfg := split.RFEConfig{
		Sizes:     cfg.RFE.Sizes,
		Folds:     cfg.RFE.Folds,
		Tolerance: cfg.RFE.Tolerance,
		Forest:    forestCfg,
	}
	foldsRNG := rand.New(rand.NewSource(base + seedFolds))
	rfeRes, err := split.RunRFE(XTrain, yTrain, covariates, rfeCfg, foldsRNG)
	if err != nil {
		return nil, fmt.Errorf("feature elimination for %s: %w", idx.Response, err)
	}
	res.Selected = rfeRes.Selected
	res.CVSizes = rfeRes.Sizes
	log.Printf("[%s] selected %d predictors: %v", idx.Name, len(rfeRes.Selected), rfeRes.Selected)

	selCols := columnIndices(covariates, rfeRes.Selected)
	XTrainSel := projectRows(XTrain, selCols)
	XTestSel := projectRows(XTest, selCols)

	forest := models.NewRandomForest(forestCfg)
	if err := forest.Fit(XTrainSel, yTrain, rfeRes.Selected); err != nil {
		return nil, fmt.Errorf("fitting %s: %w", idx.Response, err)
	}

	// Training rows are scored out-of-bag; testing rows go through the full
	// ensemble as new data.
	oobPred := forest.OOBPredict(XTrainSel)
	testPred := forest.Predict(XTestSel)

	oobByID := make(map[int64]float64, len(trainIdx))
	for i, row := range trainIdx {
		if !math.IsNaN(oobPred[i]) {
			oobByID[labeled.ID(row)] = oobPred[i]
		}
	}

	statewide, err := predict.Score(wide, forest, rfeRes.Selected, oobByID)
	if err != nil {
		return nil, err
	}
	res.StatewideRows = statewide.Table.Len()
	res.ExcludedStatewide = statewide.ExcludedIncomplete
	log.Printf("[%s] statewide: %d training + %d non-training rows, %d excluded for null predictors",
		idx.Name, statewide.TrainingRows, statewide.NonTrainingRows, statewide.ExcludedIncomplete)

	scheme := classify.Scheme{Index: idx.Name, Thresholds: idx.Thresholds, Labels: idx.ClassLabels}
	summaries, err := classify.Apply(statewide.Table, scheme, regions)
	if err != nil {
		return nil, err
	}
	res.ClassSummaries = summaries

	obs := buildObservations(labeled, trainIdx, testIdx, oobPred, testPred, yTrain, yTest, regionCol)
	valRes, err := validate.Evaluate(obs)
	if err != nil {
		return nil, err
	}
	res.Validation = valRes
	res.TrainRMSE = valRes.TrainRMSE
	res.TestRMSE = valRes.TestRMSE
	log.Printf("[%s] RMSE training=%.4f testing=%.4f", idx.Name, valRes.TrainRMSE, valRes.TestRMSE)

	files, err := r.writeIndexOutputs(idx, statewide, summaries, valRes, forest, rfeRes, obs)
	if err != nil {
		return nil, err
	}
	res.OutputFiles = files
	return res, nil
}

func (r *Runner) writeIndexOutputs(idx config.IndexSpec, statewide *predict.Statewide, summaries []classify.Summary, valRes *validate.Results, forest *models.RandomForest, rfeRes *split.RFEResult, obs []validate.Observation) ([]string, error) {
	dir := r.Config.Output.Dir
	var files []string

	statewidePath := filepath.Join(dir, idx.Name+"_statewide.csv")
	if err := statewide.Table.WriteCSV(statewidePath, "COMID"); err != nil {
		return nil, err
	}
	files = append(files, statewidePath)

	summaryPath := filepath.Join(dir, idx.Name+"_class_summary.csv")
	if err := writeClassSummary(summaryPath, summaries); err != nil {
		return nil, err
	}
	files = append(files, summaryPath)

	validationPath := filepath.Join(dir, idx.Name+"_validation.csv")
	if err := writeValidation(validationPath, valRes); err != nil {
		return nil, err
	}
	files = append(files, validationPath)

	bundle := persistence.NewModelBundle(idx.Name, idx.Response, forest)
	bundle.Predictors = rfeRes.Selected
	bundle.CVSizes = rfeRes.Sizes
	bundle.Ranking = rfeRes.Ranking
	bundle.Seed = r.Config.Seed
	bundle.RunID = r.RunID
	bundlePath := filepath.Join(dir, idx.Name+"_model.gob")
	if err := bundle.Save(bundlePath); err != nil {
		return nil, err
	}
	files = append(files, bundlePath)

	for _, partition := range []string{"training", "testing"} {
		var pred, meas []float64
		for _, o := range obs {
			if o.Partition == partition {
				pred = append(pred, o.Predicted)
				meas = append(meas, o.Measured)
			}
		}
		plotPath := filepath.Join(dir, fmt.Sprintf("%s_%s_scatter.png", idx.Name, partition))
		if err := report.ScatterPlot(pred, meas, fmt.Sprintf("%s (%s)", idx.Name, partition), plotPath); err != nil {
			log.Printf("warning: scatter plot for %s/%s: %v", idx.Name, partition, err)
			continue
		}
		files = append(files, plotPath)
	}

	return files, nil
}

func buildObservations(labeled *table.Table, trainIdx, testIdx []int, oobPred, testPred, yTrain, yTest []float64, regionCol []string) []validate.Observation {
	obs := make([]validate.Observation, 0, len(trainIdx)+len(testIdx))
	for i, row := range trainIdx {
		if math.IsNaN(oobPred[i]) {
			continue
		}
		obs = append(obs, validate.Observation{
			Region:    regionCol[row],
			Partition: "training",
			Predicted: oobPred[i],
			Measured:  yTrain[i],
		})
	}
	for i, row := range testIdx {
		obs = append(obs, validate.Observation{
			Region:    regionCol[row],
			Partition: "testing",
			Predicted: testPred[i],
			Measured:  yTest[i],
		})
	}
	return obs
}

func subsetRows(X [][]float64, y []float64, idx []int) ([][]float64, []float64) {
	Xs := make([][]float64, len(idx))
	ys := make([]float64, len(idx))
	for i, j := range idx {
		Xs[i] = X[j]
		ys[i] = y[j]
	}
	return Xs, ys
}

func projectRows(X [][]float64, cols []int) [][]float64 {
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

func columnIndices(all, wanted []string) []int {
	pos := make(map[string]int, len(all))
	for i, c := range all {
		pos[c] = i
	}
	out := make([]int, len(wanted))
	for i, w := range wanted {
		out[i] = pos[w]
	}
	return out
}

// Manifest is the reproducibility audit trail for one run.
type Manifest struct {
	RunID     string          `yaml:"run_id"`
	Timestamp time.Time       `yaml:"timestamp"`
	Seed      int64           `yaml:"seed"`
	Indices   []ManifestIndex `yaml:"indices"`
}

type ManifestIndex struct {
	Index             string   `yaml:"index"`
	Response          string   `yaml:"response"`
	LabeledRows       int      `yaml:"labeled_rows"`
	ExcludedStations  int      `yaml:"excluded_stations"`
	DuplicateDraws    int      `yaml:"duplicate_draws"`
	DroppedIncomplete int      `yaml:"dropped_incomplete"`
	TrainRows         int      `yaml:"train_rows"`
	TestRows          int      `yaml:"test_rows"`
	Selected          []string `yaml:"selected_predictors"`
	TrainRMSE         float64  `yaml:"train_rmse"`
	TestRMSE          float64  `yaml:"test_rmse"`
	StatewideRows     int      `yaml:"statewide_rows"`
	ExcludedStatewide int      `yaml:"excluded_statewide"`
	OutputFiles       []string `yaml:"output_files"`
}
