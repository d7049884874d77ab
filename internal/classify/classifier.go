// Package classify bins continuous index predictions into ordinal condition
// classes using fixed, index-specific thresholds.
package classify

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/jeffb999/healthy-watershed-random-forest/internal/landscape"
	"github.com/jeffb999/healthy-watershed-random-forest/internal/table"
)

// Scheme is one index's threshold configuration: ascending thresholds and
// len(thresholds)+1 labels ordered worst to best. Thresholds are always
// injected per index, never derived in code.
type Scheme struct {
	Index      string
	Thresholds []float64
	Labels     []string
}

func (s Scheme) Validate() error {
	if len(s.Thresholds) == 0 {
		return fmt.Errorf("scheme %s: no thresholds", s.Index)
	}
	for i := 1; i < len(s.Thresholds); i++ {
		if s.Thresholds[i] <= s.Thresholds[i-1] {
			return fmt.Errorf("scheme %s: thresholds must be strictly ascending", s.Index)
		}
	}
	if len(s.Labels) != len(s.Thresholds)+1 {
		return fmt.Errorf("scheme %s: %d thresholds need %d labels, have %d",
			s.Index, len(s.Thresholds), len(s.Thresholds)+1, len(s.Labels))
	}
	return nil
}

// Classify maps a prediction to its class label. Intervals are half-open with
// the boundary belonging to the higher class: v < t1 is the lowest class and
// v >= tLast the highest.
func (s Scheme) Classify(v float64) string {
	for i, t := range s.Thresholds {
		if v < t {
			return s.Labels[i]
		}
	}
	return s.Labels[len(s.Labels)-1]
}

// Summary is one class's aggregate: catchment count and total reach length in
// meters (null lengths count as zero).
type Summary struct {
	Label        string
	Catchments   int
	TotalLengthM decimal.Decimal
}

// Apply adds a Condition column to the statewide prediction table and returns
// per-class summaries in worst-to-best label order.
func Apply(statewide *table.Table, s Scheme, regions *landscape.Regions) ([]Summary, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	pred, err := statewide.Numeric("Prediction")
	if err != nil {
		return nil, err
	}

	counts := make(map[string]int, len(s.Labels))
	lengths := make(map[string]decimal.Decimal, len(s.Labels))
	for _, label := range s.Labels {
		lengths[label] = decimal.Zero
	}

	classes := make([]string, statewide.Len())
	for i := range classes {
		if !pred[i].Valid {
			return nil, fmt.Errorf("null prediction at catchment %d", statewide.ID(i))
		}
		v, _ := pred[i].Decimal.Float64()
		label := s.Classify(v)
		classes[i] = label
		counts[label]++
		lengths[label] = lengths[label].Add(regions.Length(statewide.ID(i)))
	}
	if err := statewide.AddString("Condition", classes); err != nil {
		return nil, err
	}

	out := make([]Summary, len(s.Labels))
	for i, label := range s.Labels {
		out[i] = Summary{
			Label:        label,
			Catchments:   counts[label],
			TotalLengthM: lengths[label],
		}
	}
	return out, nil
}
