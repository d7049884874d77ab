// Package persistence saves and restores fitted model bundles.
package persistence

import (
	"encoding/gob"
	"fmt"
	"os"
	"time"

	"github.com/jeffb999/healthy-watershed-random-forest/internal/models"
	"github.com/jeffb999/healthy-watershed-random-forest/internal/split"
)

// ModelBundle is everything needed to reuse or audit a trained index model:
// the forest, the selected predictors in importance order, the RFE ladder it
// was chosen from, and the run metadata.
type ModelBundle struct {
	Index      string
	Response   string
	Predictors []string
	Forest     *models.RandomForest
	CVSizes    []split.SizeResult
	Ranking    []models.Importance
	Seed       int64
	RunID      string
	CreatedAt  time.Time
}

func NewModelBundle(index, response string, forest *models.RandomForest) *ModelBundle {
	return &ModelBundle{
		Index:     index,
		Response:  response,
		Forest:    forest,
		CreatedAt: time.Now(),
	}
}

func (mb *ModelBundle) Save(filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	if err := gob.NewEncoder(file).Encode(mb); err != nil {
		return fmt.Errorf("failed to encode bundle: %w", err)
	}
	return nil
}

func LoadModelBundle(filename string) (*ModelBundle, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	var bundle ModelBundle
	if err := gob.NewDecoder(file).Decode(&bundle); err != nil {
		return nil, fmt.Errorf("failed to decode bundle: %w", err)
	}
	return &bundle, nil
}
