// Package bind joins field-measured index scores onto the wide covariate
// table, producing the deduplicated labeled table the model trains on.
package bind

import (
	"encoding/csv"
	"fmt"
	"math/rand"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/jeffb999/healthy-watershed-random-forest/internal/landscape"
	"github.com/jeffb999/healthy-watershed-random-forest/internal/table"
)

// Station is one field observation: a sampling station tied to a catchment
// with one or more measured index scores.
type Station struct {
	StationID string
	COMID     int64
	Scores    map[string]decimal.NullDecimal
}

// LoadStations reads a labeled-observation CSV with StationID and COMID
// columns plus the named score columns.
func LoadStations(path string, scoreCols []string) ([]Station, error) {
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

	headers := records[0]
	col := make(map[string]int, len(headers))
	for i, h := range headers {
		col[h] = i
	}
	stationIdx, ok := col["StationID"]
	if !ok {
		return nil, fmt.Errorf("%s: no StationID column", path)
	}
	comidIdx, ok := col["COMID"]
	if !ok {
		return nil, fmt.Errorf("%s: no COMID column", path)
	}
	for _, s := range scoreCols {
		if _, ok := col[s]; !ok {
			return nil, fmt.Errorf("%s: no score column %q", path, s)
		}
	}

	stations := make([]Station, 0, len(records)-1)
	for i, record := range records[1:] {
		id, err := strconv.ParseInt(strings.TrimSpace(record[comidIdx]), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%s row %d: bad catchment ID %q", path, i+2, record[comidIdx])
		}
		st := Station{
			StationID: strings.TrimSpace(record[stationIdx]),
			COMID:     id,
			Scores:    make(map[string]decimal.NullDecimal, len(scoreCols)),
		}
		for _, s := range scoreCols {
			cell := strings.TrimSpace(record[col[s]])
			if cell == "" || strings.EqualFold(cell, "NA") {
				continue
			}
			v, err := decimal.NewFromString(cell)
			if err != nil {
				return nil, fmt.Errorf("%s row %d: bad %s value %q", path, i+2, s, cell)
			}
			st.Scores[s] = decimal.NullDecimal{Decimal: v, Valid: true}
		}
		stations = append(stations, st)
	}
	return stations, nil
}

// Result is the labeled table plus the diagnostics the binder must surface:
// how many stations were excluded by the literal exclusion list, how many
// catchments had a duplicate-station draw, and how many rows were dropped for
// incomplete covariates or a missing response.
type Result struct {
	Labeled           *table.Table
	Excluded          int
	DuplicateDraws    int
	DroppedIncomplete int
}

// Bind inner-joins stations, the wide covariate table and the region
// assignments on catchment ID, keeping the named response score. Stations on
// the exclusion list are removed first (a literal manual override, never an
// inferred rule). When several stations share a catchment, one is drawn
// uniformly with the supplied RNG. The output has one row per catchment with
// no nulls in any covariate or the response.
func Bind(wide *table.Table, stations []Station, regions *landscape.Regions, response string, excludeStations []string, rng *rand.Rand) (*Result, error) {
	if wide.Len() == 0 {
		return nil, fmt.Errorf("empty covariate table")
	}

	excluded := make(map[string]bool, len(excludeStations))
	for _, s := range excludeStations {
		excluded[s] = true
	}

	res := &Result{}

	// Inner-join semantics: a station survives only if its catchment has
	// covariates and a region assignment and carries the response score.
	groups := make(map[int64][]Station)
	for _, st := range stations {
		if excluded[st.StationID] {
			res.Excluded++
			continue
		}
		if _, ok := wide.RowOf(st.COMID); !ok {
			continue
		}
		if _, ok := regions.Region(st.COMID); !ok {
			continue
		}
		if !st.Scores[response].Valid {
			continue
		}
		groups[st.COMID] = append(groups[st.COMID], st)
	}
	if len(groups) == 0 {
		return nil, fmt.Errorf("no stations joinable for response %q", response)
	}

	ids := make([]int64, 0, len(groups))
	for id := range groups {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	// One station per catchment, drawn uniformly. Group order is fixed by
	// sorting so the draw depends only on the seed.
	chosen := make([]Station, len(ids))
	for i, id := range ids {
		group := groups[id]
		sort.Slice(group, func(a, b int) bool { return group[a].StationID < group[b].StationID })
		if len(group) > 1 {
			res.DuplicateDraws++
			chosen[i] = group[rng.Intn(len(group))]
		} else {
			chosen[i] = group[0]
		}
	}

	labeled, _ := table.New(ids)
	stationCol := make([]string, len(chosen))
	regionCol := make([]string, len(chosen))
	lengthCol := make([]decimal.NullDecimal, len(chosen))
	scoreCol := make([]decimal.NullDecimal, len(chosen))
	for i, st := range chosen {
		stationCol[i] = st.StationID
		region, _ := regions.Region(st.COMID)
		regionCol[i] = region
		lengthCol[i] = decimal.NullDecimal{Decimal: regions.Length(st.COMID), Valid: true}
		scoreCol[i] = st.Scores[response]
	}
	if err := labeled.AddString("StationID", stationCol); err != nil {
		return nil, err
	}
	if err := labeled.AddString("Region", regionCol); err != nil {
		return nil, err
	}
	if err := labeled.AddNumeric("LengthM", lengthCol); err != nil {
		return nil, err
	}
	if err := labeled.AddNumeric(response, scoreCol); err != nil {
		return nil, err
	}

	joined, err := labeled.InnerJoin(wide)
	if err != nil {
		return nil, err
	}

	// Completeness is enforced for the labeled table: every covariate and the
	// response must be present, and dropped rows are counted for diagnostics.
	required := make([]string, 0, len(joined.Columns()))
	for _, c := range joined.Columns() {
		if joined.IsNumeric(c) && c != "LengthM" {
			required = append(required, c)
		}
	}
	complete, dropped, err := joined.CompleteRows(required)
	if err != nil {
		return nil, err
	}
	res.Labeled = complete
	res.DroppedIncomplete = dropped
	return res, nil
}

// CovariateColumns lists the predictor candidates of a labeled table: every
// numeric column except the response and the reach length.
func CovariateColumns(labeled *table.Table, response string) []string {
	var out []string
	for _, c := range labeled.Columns() {
		if !labeled.IsNumeric(c) || c == response || c == "LengthM" {
			continue
		}
		out = append(out, c)
	}
	return out
}
