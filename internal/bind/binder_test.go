package bind

import (
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeffb999/healthy-watershed-random-forest/internal/landscape"
	"github.com/jeffb999/healthy-watershed-random-forest/internal/table"
)

func score(v float64) decimal.NullDecimal {
	return decimal.NullDecimal{Decimal: decimal.NewFromFloat(v), Valid: true}
}

func covariateTable(t *testing.T, ids []int64, cols ...string) *table.Table {
	t.Helper()
	tbl, err := table.New(ids)
	require.NoError(t, err)
	for c, name := range cols {
		col := make([]decimal.NullDecimal, len(ids))
		for i := range ids {
			col[i] = score(float64(c+1) * float64(ids[i]))
		}
		require.NoError(t, tbl.AddNumeric(name, col))
	}
	return tbl
}

func regionsFor(t *testing.T, ids []int64) *landscape.Regions {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "regions.csv")
	content := "COMID,Region,LengthM\n"
	for i, id := range ids {
		region := landscape.RegionLabels[i%len(landscape.RegionLabels)]
		content += fmt.Sprintf("%d,%s,%d\n", id, region, 100+i)
	}
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	r, err := landscape.LoadRegions(path)
	require.NoError(t, err)
	return r
}

// The end-to-end binder scenario: three covariate tables of 100, 120 and 90
// catchments with 80 in common, regions covering 95 of the union, and 50
// stations over 40 distinct catchments fully covered by both. The labeled
// table must come out with exactly 40 rows, no duplicate catchment IDs and no
// nulls in any covariate column.
func TestBindEndToEnd(t *testing.T) {
	common := make([]int64, 80) // 1..80 shared by all three tables
	for i := range common {
		common[i] = int64(i + 1)
	}
	idsA := append(append([]int64{}, common...), seq(1000, 20)...) // 100
	idsB := append(append([]int64{}, common...), seq(2000, 40)...) // 120
	idsC := append(append([]int64{}, common...), seq(3000, 10)...) // 90

	a := covariateTable(t, idsA, "RdDensCat")
	b := covariateTable(t, idsB, "DamDensWs")
	c := covariateTable(t, idsC, "PctImpWs")

	wide, err := a.OuterJoin(b)
	require.NoError(t, err)
	wide, err = wide.OuterJoin(c)
	require.NoError(t, err)
	assert.Equal(t, 100+120+90-80-80, wide.Len()) // union = 150

	regionIDs := append(append([]int64{}, common...), seq(1000, 15)...) // 95 of the union
	regions := regionsFor(t, regionIDs)

	// 50 stations over 40 distinct catchments, all inside the common block.
	var stations []Station
	for i := 0; i < 40; i++ {
		stations = append(stations, Station{
			StationID: fmt.Sprintf("ST%03d", i),
			COMID:     int64(i + 1),
			Scores:    map[string]decimal.NullDecimal{"ASCI": score(0.5)},
		})
	}
	for i := 0; i < 10; i++ { // duplicates on the first ten catchments
		stations = append(stations, Station{
			StationID: fmt.Sprintf("DUP%03d", i),
			COMID:     int64(i + 1),
			Scores:    map[string]decimal.NullDecimal{"ASCI": score(0.7)},
		})
	}

	rng := rand.New(rand.NewSource(7))
	res, err := Bind(wide, stations, regions, "ASCI", nil, rng)
	require.NoError(t, err)

	assert.Equal(t, 40, res.Labeled.Len())
	assert.Equal(t, 10, res.DuplicateDraws)

	// No duplicate catchment IDs.
	seen := make(map[int64]bool)
	for _, id := range res.Labeled.IDs() {
		assert.False(t, seen[id])
		seen[id] = true
	}

	// No nulls in any covariate column.
	for _, col := range []string{"RdDensCat", "DamDensWs", "PctImpWs"} {
		values, err := res.Labeled.Numeric(col)
		require.NoError(t, err)
		for _, v := range values {
			assert.True(t, v.Valid)
		}
	}
}

func seq(start int64, n int) []int64 {
	out := make([]int64, n)
	for i := range out {
		out[i] = start + int64(i)
	}
	return out
}

func TestBindDeterministicDraw(t *testing.T) {
	wide := covariateTable(t, []int64{1, 2}, "X")
	regions := regionsFor(t, []int64{1, 2})
	stations := []Station{
		{StationID: "A", COMID: 1, Scores: map[string]decimal.NullDecimal{"S": score(1)}},
		{StationID: "B", COMID: 1, Scores: map[string]decimal.NullDecimal{"S": score(2)}},
		{StationID: "C", COMID: 2, Scores: map[string]decimal.NullDecimal{"S": score(3)}},
	}

	first, err := Bind(wide, stations, regions, "S", nil, rand.New(rand.NewSource(11)))
	require.NoError(t, err)
	second, err := Bind(wide, stations, regions, "S", nil, rand.New(rand.NewSource(11)))
	require.NoError(t, err)

	s1, _ := first.Labeled.String("StationID")
	s2, _ := second.Labeled.String("StationID")
	assert.Equal(t, s1, s2)
}

func TestBindExclusionList(t *testing.T) {
	wide := covariateTable(t, []int64{1, 2}, "X")
	regions := regionsFor(t, []int64{1, 2})
	stations := []Station{
		{StationID: "BAD", COMID: 1, Scores: map[string]decimal.NullDecimal{"S": score(1)}},
		{StationID: "OK", COMID: 2, Scores: map[string]decimal.NullDecimal{"S": score(2)}},
	}

	res, err := Bind(wide, stations, regions, "S", []string{"BAD"}, rand.New(rand.NewSource(1)))
	require.NoError(t, err)
	assert.Equal(t, 1, res.Excluded)
	assert.Equal(t, []int64{2}, res.Labeled.IDs())
}

func TestBindDropsIncompleteCovariates(t *testing.T) {
	tbl, err := table.New([]int64{1, 2})
	require.NoError(t, err)
	col := []decimal.NullDecimal{score(1), {}}
	require.NoError(t, tbl.AddNumeric("X", col))

	regions := regionsFor(t, []int64{1, 2})
	stations := []Station{
		{StationID: "A", COMID: 1, Scores: map[string]decimal.NullDecimal{"S": score(1)}},
		{StationID: "B", COMID: 2, Scores: map[string]decimal.NullDecimal{"S": score(2)}},
	}

	res, err := Bind(tbl, stations, regions, "S", nil, rand.New(rand.NewSource(1)))
	require.NoError(t, err)
	assert.Equal(t, 1, res.DroppedIncomplete)
	assert.Equal(t, []int64{1}, res.Labeled.IDs())
}

func TestCovariateColumns(t *testing.T) {
	tbl, _ := table.New([]int64{1})
	tbl.AddString("StationID", []string{"A"})
	tbl.AddString("Region", []string{"North Coast"})
	tbl.AddNumeric("LengthM", []decimal.NullDecimal{score(10)})
	tbl.AddNumeric("ASCI", []decimal.NullDecimal{score(0.9)})
	tbl.AddNumeric("RdDensCat", []decimal.NullDecimal{score(1)})

	assert.Equal(t, []string{"RdDensCat"}, CovariateColumns(tbl, "ASCI"))
}
