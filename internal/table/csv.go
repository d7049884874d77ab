package table

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// ReadCSV loads a CSV file into a table keyed by the given ID column. When
// cols is non-empty only those columns are retained, all parsed as numeric;
// blank cells become null. With nil cols every non-key column is loaded,
// numeric when every non-blank cell parses as a decimal, string otherwise.
func ReadCSV(path, keyCol string, cols []string) (*Table, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	if len(records) < 2 {
		return nil, fmt.Errorf("insufficient data in %s", path)
	}

	headers := records[0]
	keyIdx := -1
	for i, h := range headers {
		if h == keyCol {
			keyIdx = i
			break
		}
	}
	if keyIdx < 0 {
		return nil, fmt.Errorf("%s: no key column %q", path, keyCol)
	}

	data := records[1:]
	ids := make([]int64, len(data))
	for i, record := range data {
		id, err := strconv.ParseInt(strings.TrimSpace(record[keyIdx]), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%s row %d: bad catchment ID %q", path, i+2, record[keyIdx])
		}
		ids[i] = id
	}

	t, err := New(ids)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	wanted := make(map[string]bool, len(cols))
	for _, c := range cols {
		wanted[c] = true
	}

	for j, name := range headers {
		if j == keyIdx {
			continue
		}
		if len(cols) > 0 && !wanted[name] {
			continue
		}
		column := make([]string, len(data))
		for i, record := range data {
			column[i] = strings.TrimSpace(record[j])
		}

		if len(cols) > 0 {
			num, err := parseNumeric(column)
			if err != nil {
				return nil, fmt.Errorf("%s column %q: %w", path, name, err)
			}
			if err := t.AddNumeric(name, num); err != nil {
				return nil, err
			}
			continue
		}

		if num, err := parseNumeric(column); err == nil {
			if err := t.AddNumeric(name, num); err != nil {
				return nil, err
			}
		} else {
			if err := t.AddString(name, column); err != nil {
				return nil, err
			}
		}
	}

	if len(cols) > 0 {
		for _, c := range cols {
			if !t.HasColumn(c) {
				return nil, fmt.Errorf("%s: no column %q", path, c)
			}
		}
	}
	return t, nil
}

func parseNumeric(cells []string) ([]decimal.NullDecimal, error) {
	out := make([]decimal.NullDecimal, len(cells))
	for i, cell := range cells {
		if cell == "" || strings.EqualFold(cell, "NA") {
			continue
		}
		v, err := decimal.NewFromString(cell)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		out[i] = decimal.NullDecimal{Decimal: v, Valid: true}
	}
	return out, nil
}

// WriteCSV writes the table with the key column first. Null numeric cells and
// missing strings are written as empty fields.
func (t *Table) WriteCSV(path, keyCol string) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	header := append([]string{keyCol}, t.order...)
	if err := writer.Write(header); err != nil {
		return err
	}

	record := make([]string, len(header))
	for i := 0; i < t.Len(); i++ {
		record[0] = strconv.FormatInt(t.ids[i], 10)
		for j, name := range t.order {
			if col, ok := t.num[name]; ok {
				if col[i].Valid {
					record[j+1] = col[i].Decimal.String()
				} else {
					record[j+1] = ""
				}
				continue
			}
			record[j+1] = t.str[name][i]
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	return writer.Error()
}
