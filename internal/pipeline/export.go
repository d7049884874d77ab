package pipeline

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jeffb999/healthy-watershed-random-forest/internal/classify"
	"github.com/jeffb999/healthy-watershed-random-forest/internal/validate"
)

func writeClassSummary(path string, summaries []classify.Summary) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	writer.Write([]string{"Condition", "Catchments", "TotalLengthM"})
	for _, s := range summaries {
		writer.Write([]string{
			s.Label,
			fmt.Sprintf("%d", s.Catchments),
			s.TotalLengthM.String(),
		})
	}
	return writer.Error()
}

func writeValidation(path string, res *validate.Results) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	writer.Write([]string{
		"Region", "Partition", "N", "Slope", "Intercept", "R2", "SlopeP", "InterceptP", "Fitted",
	})
	for _, f := range res.Fits {
		if !f.OK {
			writer.Write([]string{f.Region, f.Partition, fmt.Sprintf("%d", f.N), "", "", "", "", "", "false"})
			continue
		}
		writer.Write([]string{
			f.Region,
			f.Partition,
			fmt.Sprintf("%d", f.N),
			fmt.Sprintf("%.6f", f.Slope),
			fmt.Sprintf("%.6f", f.Intercept),
			fmt.Sprintf("%.6f", f.R2),
			fmt.Sprintf("%.6g", f.SlopeP),
			fmt.Sprintf("%.6g", f.InterceptP),
			"true",
		})
	}
	return writer.Error()
}

func (r *Runner) writeManifest(results []*IndexResult) error {
	manifest := Manifest{
		RunID:     r.RunID,
		Timestamp: time.Now().UTC(),
		Seed:      r.Config.Seed,
	}
	for _, res := range results {
		manifest.Indices = append(manifest.Indices, ManifestIndex{
			Index:             res.Index,
			Response:          res.Response,
			LabeledRows:       res.LabeledRows,
			ExcludedStations:  res.ExcludedStations,
			DuplicateDraws:    res.DuplicateDraws,
			DroppedIncomplete: res.DroppedIncomplete,
			TrainRows:         res.TrainRows,
			TestRows:          res.TestRows,
			Selected:          res.Selected,
			TrainRMSE:         res.TrainRMSE,
			TestRMSE:          res.TestRMSE,
			StatewideRows:     res.StatewideRows,
			ExcludedStatewide: res.ExcludedStatewide,
			OutputFiles:       res.OutputFiles,
		})
	}

	data, err := yaml.Marshal(&manifest)
	if err != nil {
		return fmt.Errorf("encoding manifest: %w", err)
	}
	path := filepath.Join(r.Config.Output.Dir, "run_manifest.yaml")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing manifest: %w", err)
	}
	return nil
}
