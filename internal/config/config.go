// Package config loads the pipeline configuration from a single YAML file.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Seed int64 `yaml:"seed"`

	Data struct {
		CovariateDir string       `yaml:"covariate_dir"`
		Families     []FamilySpec `yaml:"families"`
		LandCover    struct {
			// Scope suffixes carrying raw land-cover classes to reduce
			// into urban/ag/open composites.
			Scopes []string `yaml:"scopes"`
		} `yaml:"land_cover"`
		Regions  string `yaml:"regions"`
		Stations string `yaml:"stations"`
	} `yaml:"data"`

	Output struct {
		Dir string `yaml:"dir"`
	} `yaml:"output"`

	Split struct {
		TrainFraction float64 `yaml:"train_fraction"`
		PoolThreshold float64 `yaml:"pool_threshold"`
	} `yaml:"split"`

	RFE struct {
		Sizes     []int   `yaml:"sizes"`
		Folds     int     `yaml:"folds"`
		Tolerance float64 `yaml:"tolerance"`
	} `yaml:"rfe"`

	Forest struct {
		Trees          int `yaml:"trees"`
		MaxDepth       int `yaml:"max_depth"`
		MinSamplesLeaf int `yaml:"min_samples_leaf"`
		Workers        int `yaml:"workers"`
	} `yaml:"forest"`

	Indices []IndexSpec `yaml:"indices"`

	// Literal exclusion lists (manual overrides, never inferred).
	DropCovariates  []string `yaml:"drop_covariates"`
	ExcludeStations []string `yaml:"exclude_stations"`
}

type FamilySpec struct {
	Name    string   `yaml:"name"`
	File    string   `yaml:"file"`
	KeyCol  string   `yaml:"key_column"`
	Columns []string `yaml:"columns"`
}

type IndexSpec struct {
	Name        string    `yaml:"name"`
	Response    string    `yaml:"response"`
	Thresholds  []float64 `yaml:"thresholds"`
	ClassLabels []string  `yaml:"class_labels"`
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Seed == 0 {
		c.Seed = 42
	}
	if c.Split.TrainFraction == 0 {
		c.Split.TrainFraction = 0.75
	}
	if c.Split.PoolThreshold == 0 {
		c.Split.PoolThreshold = 0.10
	}
	if len(c.RFE.Sizes) == 0 {
		c.RFE.Sizes = []int{3, 4, 5, 6, 7, 8, 9, 10, 15, 20, 25, 30}
	}
	if c.RFE.Folds == 0 {
		c.RFE.Folds = 5
	}
	if c.RFE.Tolerance == 0 {
		c.RFE.Tolerance = 2
	}
	if c.Forest.Trees == 0 {
		c.Forest.Trees = 500
	}
	if c.Forest.MinSamplesLeaf == 0 {
		c.Forest.MinSamplesLeaf = 5
	}
	if c.Forest.Workers == 0 {
		c.Forest.Workers = 4
	}
	if c.Output.Dir == "" {
		c.Output.Dir = "output"
	}
}

func (c *Config) validate() error {
	if len(c.Data.Families) == 0 {
		return fmt.Errorf("no covariate families configured")
	}
	if c.Data.Regions == "" {
		return fmt.Errorf("no region-assignment file configured")
	}
	if c.Data.Stations == "" {
		return fmt.Errorf("no station file configured")
	}
	if len(c.Indices) == 0 {
		return fmt.Errorf("no indices configured")
	}
	for _, idx := range c.Indices {
		if idx.Name == "" || idx.Response == "" {
			return fmt.Errorf("index needs both name and response column")
		}
		if len(idx.ClassLabels) != len(idx.Thresholds)+1 {
			return fmt.Errorf("index %s: %d thresholds need %d class labels",
				idx.Name, len(idx.Thresholds), len(idx.Thresholds)+1)
		}
	}
	if c.Split.TrainFraction <= 0 || c.Split.TrainFraction >= 1 {
		return fmt.Errorf("train fraction must be between 0 and 1")
	}
	return nil
}

// ResponseColumns lists every response column the configured indices model.
func (c *Config) ResponseColumns() []string {
	out := make([]string, 0, len(c.Indices))
	seen := make(map[string]bool)
	for _, idx := range c.Indices {
		if !seen[idx.Response] {
			seen[idx.Response] = true
			out = append(out, idx.Response)
		}
	}
	return out
}
