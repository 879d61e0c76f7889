package property

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
)

var (
	ErrEmptyInput     = errors.New("empty_input")
	ErrMissingColumns = errors.New("missing_required_columns")
)

// Header aliases accepted for each logical column, lowercased.
var headerAliases = map[string]string{
	"property_id": "id",
	"id":          "id",
	"identifier":  "id",
	"latitude":    "latitude",
	"lat":         "latitude",
	"longitude":   "longitude",
	"lon":         "longitude",
	"lng":         "longitude",
	"extent_ac":   "extent",
	"extent":      "extent",
	"acres":       "extent",
	"label":       "label",
	"place":       "label",
	"name":        "label",
}

// ParseCSV reads the property listing. The header row is matched
// case-insensitively against known aliases; id, latitude, longitude and
// extent are required, label is optional. Rows keep their one-based data
// position so the report can preserve input order.
func ParseCSV(r io.Reader) ([]RawRow, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, ErrEmptyInput
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	cols := map[string]int{}
	for i, name := range header {
		key := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\uFEFF")))
		if logical, ok := headerAliases[key]; ok {
			if _, seen := cols[logical]; !seen {
				cols[logical] = i
			}
		}
	}
	for _, required := range []string{"id", "latitude", "longitude", "extent"} {
		if _, ok := cols[required]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingColumns, required)
		}
	}

	field := func(record []string, logical string) string {
		idx, ok := cols[logical]
		if !ok || idx >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[idx])
	}

	var rows []RawRow
	position := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row %d: %w", position+1, err)
		}
		position++
		rows = append(rows, RawRow{
			Position:  position,
			ID:        field(record, "id"),
			Latitude:  field(record, "latitude"),
			Longitude: field(record, "longitude"),
			Extent:    field(record, "extent"),
			Label:     field(record, "label"),
		})
	}
	if len(rows) == 0 {
		return nil, ErrEmptyInput
	}
	return rows, nil
}
