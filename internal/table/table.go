package table

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
)

// Table is a column-oriented table keyed by catchment ID. Numeric columns hold
// NullDecimal values so rows introduced by outer joins can carry missing cells;
// categorical columns (region, station) are plain strings with "" as missing.
// Keys are unique within a table.
type Table struct {
	ids   []int64
	index map[int64]int

	order []string
	num   map[string][]decimal.NullDecimal
	str   map[string][]string
}

func New(ids []int64) (*Table, error) {
	index := make(map[int64]int, len(ids))
	for i, id := range ids {
		if _, ok := index[id]; ok {
			return nil, fmt.Errorf("duplicate catchment ID %d", id)
		}
		index[id] = i
	}
	out := make([]int64, len(ids))
	copy(out, ids)
	return &Table{
		ids:   out,
		index: index,
		num:   make(map[string][]decimal.NullDecimal),
		str:   make(map[string][]string),
	}, nil
}

func (t *Table) Len() int { return len(t.ids) }

func (t *Table) IDs() []int64 {
	out := make([]int64, len(t.ids))
	copy(out, t.ids)
	return out
}

func (t *Table) ID(row int) int64 { return t.ids[row] }

// RowOf returns the row index of the given catchment ID.
func (t *Table) RowOf(id int64) (int, bool) {
	i, ok := t.index[id]
	return i, ok
}

func (t *Table) Columns() []string {
	out := make([]string, len(t.order))
	copy(out, t.order)
	return out
}

func (t *Table) HasColumn(name string) bool {
	_, numOK := t.num[name]
	_, strOK := t.str[name]
	return numOK || strOK
}

func (t *Table) IsNumeric(name string) bool {
	_, ok := t.num[name]
	return ok
}

func (t *Table) AddNumeric(name string, values []decimal.NullDecimal) error {
	if t.HasColumn(name) {
		return fmt.Errorf("column %q already exists", name)
	}
	if len(values) != len(t.ids) {
		return fmt.Errorf("column %q has %d values, table has %d rows", name, len(values), len(t.ids))
	}
	col := make([]decimal.NullDecimal, len(values))
	copy(col, values)
	t.num[name] = col
	t.order = append(t.order, name)
	return nil
}

func (t *Table) AddString(name string, values []string) error {
	if t.HasColumn(name) {
		return fmt.Errorf("column %q already exists", name)
	}
	if len(values) != len(t.ids) {
		return fmt.Errorf("column %q has %d values, table has %d rows", name, len(values), len(t.ids))
	}
	col := make([]string, len(values))
	copy(col, values)
	t.str[name] = col
	t.order = append(t.order, name)
	return nil
}

func (t *Table) Numeric(name string) ([]decimal.NullDecimal, error) {
	col, ok := t.num[name]
	if !ok {
		return nil, fmt.Errorf("no numeric column %q", name)
	}
	return col, nil
}

func (t *Table) String(name string) ([]string, error) {
	col, ok := t.str[name]
	if !ok {
		return nil, fmt.Errorf("no string column %q", name)
	}
	return col, nil
}

func (t *Table) Value(name string, row int) (decimal.NullDecimal, error) {
	col, ok := t.num[name]
	if !ok {
		return decimal.NullDecimal{}, fmt.Errorf("no numeric column %q", name)
	}
	return col[row], nil
}

func (t *Table) SetValue(name string, row int, v decimal.NullDecimal) error {
	col, ok := t.num[name]
	if !ok {
		return fmt.Errorf("no numeric column %q", name)
	}
	col[row] = v
	return nil
}

// Drop removes columns if present; unknown names are ignored.
func (t *Table) Drop(names ...string) {
	dropped := make(map[string]bool, len(names))
	for _, n := range names {
		if t.HasColumn(n) {
			dropped[n] = true
			delete(t.num, n)
			delete(t.str, n)
		}
	}
	if len(dropped) == 0 {
		return
	}
	order := t.order[:0]
	for _, n := range t.order {
		if !dropped[n] {
			order = append(order, n)
		}
	}
	t.order = order
}

// Select returns a new table with the same keys and only the named columns.
func (t *Table) Select(names ...string) (*Table, error) {
	out, _ := New(t.ids)
	for _, n := range names {
		if col, ok := t.num[n]; ok {
			if err := out.AddNumeric(n, col); err != nil {
				return nil, err
			}
			continue
		}
		if col, ok := t.str[n]; ok {
			if err := out.AddString(n, col); err != nil {
				return nil, err
			}
			continue
		}
		return nil, fmt.Errorf("no column %q", n)
	}
	return out, nil
}

// OuterJoin joins two tables on catchment ID, keeping the union of keys.
// Rows absent from one side get null numeric cells and empty strings for that
// side's columns. Column names must not collide.
func (t *Table) OuterJoin(o *Table) (*Table, error) {
	for _, n := range o.order {
		if t.HasColumn(n) {
			return nil, fmt.Errorf("join column collision on %q", n)
		}
	}

	keys := make([]int64, 0, len(t.ids)+len(o.ids))
	keys = append(keys, t.ids...)
	for _, id := range o.ids {
		if _, ok := t.index[id]; !ok {
			keys = append(keys, id)
		}
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	out, err := New(keys)
	if err != nil {
		return nil, err
	}
	if err := copyAligned(out, t); err != nil {
		return nil, err
	}
	if err := copyAligned(out, o); err != nil {
		return nil, err
	}
	return out, nil
}

// InnerJoin joins two tables on catchment ID, keeping the intersection of keys.
func (t *Table) InnerJoin(o *Table) (*Table, error) {
	for _, n := range o.order {
		if t.HasColumn(n) {
			return nil, fmt.Errorf("join column collision on %q", n)
		}
	}

	keys := make([]int64, 0, len(t.ids))
	for _, id := range t.ids {
		if _, ok := o.index[id]; ok {
			keys = append(keys, id)
		}
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	out, err := New(keys)
	if err != nil {
		return nil, err
	}
	if err := copyAligned(out, t); err != nil {
		return nil, err
	}
	if err := copyAligned(out, o); err != nil {
		return nil, err
	}
	return out, nil
}

func copyAligned(dst, src *Table) error {
	for _, name := range src.order {
		if col, ok := src.num[name]; ok {
			aligned := make([]decimal.NullDecimal, dst.Len())
			for i, id := range dst.ids {
				if j, ok := src.index[id]; ok {
					aligned[i] = col[j]
				}
			}
			if err := dst.AddNumeric(name, aligned); err != nil {
				return err
			}
			continue
		}
		col := src.str[name]
		aligned := make([]string, dst.Len())
		for i, id := range dst.ids {
			if j, ok := src.index[id]; ok {
				aligned[i] = col[j]
			}
		}
		if err := dst.AddString(name, aligned); err != nil {
			return err
		}
	}
	return nil
}

// Filter returns a new table with the rows for which keep returns true.
func (t *Table) Filter(keep func(row int) bool) *Table {
	var rows []int
	for i := range t.ids {
		if keep(i) {
			rows = append(rows, i)
		}
	}
	return t.subset(rows)
}

// CompleteRows drops every row with a null value in any of the named numeric
// columns and reports how many rows were dropped.
func (t *Table) CompleteRows(cols []string) (*Table, int, error) {
	for _, n := range cols {
		if _, ok := t.num[n]; !ok {
			return nil, 0, fmt.Errorf("no numeric column %q", n)
		}
	}
	var rows []int
	for i := range t.ids {
		complete := true
		for _, n := range cols {
			if !t.num[n][i].Valid {
				complete = false
				break
			}
		}
		if complete {
			rows = append(rows, i)
		}
	}
	return t.subset(rows), t.Len() - len(rows), nil
}

func (t *Table) subset(rows []int) *Table {
	ids := make([]int64, len(rows))
	for i, r := range rows {
		ids[i] = t.ids[r]
	}
	out, _ := New(ids)
	for _, name := range t.order {
		if col, ok := t.num[name]; ok {
			sub := make([]decimal.NullDecimal, len(rows))
			for i, r := range rows {
				sub[i] = col[r]
			}
			out.AddNumeric(name, sub)
			continue
		}
		col := t.str[name]
		sub := make([]string, len(rows))
		for i, r := range rows {
			sub[i] = col[r]
		}
		out.AddString(name, sub)
	}
	return out
}

// Matrix extracts the named numeric columns as a float64 row-major matrix.
// Every cell must be non-null; model code operates on complete rows only.
func (t *Table) Matrix(cols []string) ([][]float64, error) {
	colData := make([][]decimal.NullDecimal, len(cols))
	for j, n := range cols {
		col, ok := t.num[n]
		if !ok {
			return nil, fmt.Errorf("no numeric column %q", n)
		}
		colData[j] = col
	}
	out := make([][]float64, t.Len())
	for i := range out {
		row := make([]float64, len(cols))
		for j := range cols {
			cell := colData[j][i]
			if !cell.Valid {
				return nil, fmt.Errorf("null value in column %q at catchment %d", cols[j], t.ids[i])
			}
			row[j], _ = cell.Decimal.Float64()
		}
		out[i] = row
	}
	return out, nil
}

// Vector extracts one numeric column as float64, requiring completeness.
func (t *Table) Vector(col string) ([]float64, error) {
	m, err := t.Matrix([]string{col})
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(m))
	for i, row := range m {
		out[i] = row[0]
	}
	return out, nil
}
