// Package landscape assembles the statewide covariate table: one source file
// per landscape variable family, each keyed by catchment ID with columns at
// catchment ("Cat") and watershed ("Ws") scope, optionally restricted to a
// 100 m riparian buffer ("Rp100"). Fine-grained land-cover classes are reduced
// to three composite categories before modeling.
package landscape

import (
	"fmt"
	"path/filepath"

	"github.com/shopspring/decimal"

	"github.com/jeffb999/healthy-watershed-random-forest/internal/table"
)

// Family names one covariate source file and the columns retained from it.
type Family struct {
	Name    string
	File    string
	KeyCol  string
	Columns []string
}

// Land-cover constituents per composite category, without scope suffix.
// The same reduction applies at Cat, Ws, CatRp100 and WsRp100 scope.
var (
	urbanClasses = []string{"PctUrbHi", "PctUrbMd", "PctUrbLo", "PctUrbOp"}
	agClasses    = []string{"PctCrop", "PctHay"}
	openClasses  = []string{
		"PctDecid", "PctConif", "PctMxFst", "PctShrb", "PctGrs",
		"PctBl", "PctWdWet", "PctHbWet", "PctOw", "PctIce",
	}
)

// CompositeClasses reports the constituent class prefixes summed into the
// named composite ("urban", "ag" or "open").
func CompositeClasses(category string) ([]string, error) {
	switch category {
	case "urban":
		return urbanClasses, nil
	case "ag":
		return agClasses, nil
	case "open":
		return openClasses, nil
	}
	return nil, fmt.Errorf("unknown composite category %q", category)
}

// LoadFamily reads one family file, keeping only its configured columns.
func LoadFamily(dir string, fam Family) (*table.Table, error) {
	key := fam.KeyCol
	if key == "" {
		key = "COMID"
	}
	t, err := table.ReadCSV(filepath.Join(dir, fam.File), key, fam.Columns)
	if err != nil {
		return nil, fmt.Errorf("family %s: %w", fam.Name, err)
	}
	return t, nil
}

// BuildWide chains pairwise outer joins over all family tables, producing one
// row per catchment ID in the union of the sources. Unmatched keys are not an
// error; their cells stay null and fall out later during completeness
// filtering.
func BuildWide(dir string, families []Family) (*table.Table, error) {
	if len(families) == 0 {
		return nil, fmt.Errorf("no covariate families configured")
	}
	wide, err := LoadFamily(dir, families[0])
	if err != nil {
		return nil, err
	}
	for _, fam := range families[1:] {
		t, err := LoadFamily(dir, fam)
		if err != nil {
			return nil, err
		}
		wide, err = wide.OuterJoin(t)
		if err != nil {
			return nil, fmt.Errorf("joining family %s: %w", fam.Name, err)
		}
	}
	return wide, nil
}

// DeriveLandCover adds the three composite land-use columns for the given
// scope suffix (e.g. "Cat", "Ws", "CatRp100", "WsRp100"): PctUrban = sum of
// developed classes, PctAg = crops + hay/pasture, PctOpen = every remaining
// natural class. Sums are decimal-exact. A composite is null whenever any
// constituent is null, so incomplete source rows stay visibly incomplete.
// The constituent columns are removed once reduced.
func DeriveLandCover(t *table.Table, scope string) error {
	if err := deriveComposite(t, "PctUrban"+scope, suffixed(urbanClasses, scope)); err != nil {
		return err
	}
	if err := deriveComposite(t, "PctAg"+scope, suffixed(agClasses, scope)); err != nil {
		return err
	}
	if err := deriveComposite(t, "PctOpen"+scope, suffixed(openClasses, scope)); err != nil {
		return err
	}
	t.Drop(suffixed(urbanClasses, scope)...)
	t.Drop(suffixed(agClasses, scope)...)
	t.Drop(suffixed(openClasses, scope)...)
	return nil
}

func deriveComposite(t *table.Table, name string, constituents []string) error {
	cols := make([][]decimal.NullDecimal, len(constituents))
	for i, c := range constituents {
		col, err := t.Numeric(c)
		if err != nil {
			return fmt.Errorf("composite %s: %w", name, err)
		}
		cols[i] = col
	}

	sum := make([]decimal.NullDecimal, t.Len())
	for row := 0; row < t.Len(); row++ {
		total := decimal.Zero
		valid := true
		for _, col := range cols {
			if !col[row].Valid {
				valid = false
				break
			}
			total = total.Add(col[row].Decimal)
		}
		if valid {
			sum[row] = decimal.NullDecimal{Decimal: total, Valid: true}
		}
	}
	return t.AddNumeric(name, sum)
}

func suffixed(names []string, scope string) []string {
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = n + scope
	}
	return out
}
