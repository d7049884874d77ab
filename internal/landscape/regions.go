package landscape

import (
	"encoding/csv"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// Regions holds the region assignment and reach length for each catchment.
// When a catchment appears on multiple reach records, the record with the
// maximum length is authoritative and supplies both the length and the region.
type Regions struct {
	region map[int64]string
	length map[int64]decimal.Decimal
}

// The six fixed perennial stream regions.
var RegionLabels = []string{
	"Central Valley",
	"Chaparral",
	"Deserts Modoc",
	"North Coast",
	"Sierra Nevada",
	"South Coast",
}

func validRegion(label string) bool {
	for _, r := range RegionLabels {
		if r == label {
			return true
		}
	}
	return false
}

// LoadRegions reads a region-assignment CSV with columns COMID, Region and
// LengthKM or LengthM (meters are assumed for any length column).
func LoadRegions(path string) (*Regions, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer file.Close()

	records, err := csv.NewReader(file).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	if len(records) < 2 {
		return nil, fmt.Errorf("insufficient data in %s", path)
	}

	idIdx, regionIdx, lengthIdx := -1, -1, -1
	for i, h := range records[0] {
		switch h {
		case "COMID":
			idIdx = i
		case "Region":
			regionIdx = i
		case "LengthM", "LengthKM":
			lengthIdx = i
		}
	}
	if idIdx < 0 || regionIdx < 0 || lengthIdx < 0 {
		return nil, fmt.Errorf("%s: need COMID, Region and length columns", path)
	}

	r := &Regions{
		region: make(map[int64]string),
		length: make(map[int64]decimal.Decimal),
	}
	for i, record := range records[1:] {
		id, err := strconv.ParseInt(strings.TrimSpace(record[idIdx]), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%s row %d: bad catchment ID %q", path, i+2, record[idIdx])
		}
		label := strings.TrimSpace(record[regionIdx])
		if !validRegion(label) {
			return nil, fmt.Errorf("%s row %d: unknown region %q", path, i+2, label)
		}
		length := decimal.Zero
		if cell := strings.TrimSpace(record[lengthIdx]); cell != "" {
			length, err = decimal.NewFromString(cell)
			if err != nil {
				return nil, fmt.Errorf("%s row %d: bad length %q", path, i+2, cell)
			}
		}
		// Max-length record wins for duplicated catchments.
		if prev, ok := r.length[id]; ok && prev.GreaterThanOrEqual(length) {
			continue
		}
		r.region[id] = label
		r.length[id] = length
	}
	return r, nil
}

func (r *Regions) Len() int { return len(r.region) }

func (r *Regions) Region(id int64) (string, bool) {
	label, ok := r.region[id]
	return label, ok
}

// Length returns the reach length in meters, zero when unknown.
func (r *Regions) Length(id int64) decimal.Decimal {
	if l, ok := r.length[id]; ok {
		return l
	}
	return decimal.Zero
}

// IDs returns every assigned catchment ID in ascending order.
func (r *Regions) IDs() []int64 {
	ids := make([]int64, 0, len(r.region))
	for id := range r.region {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
