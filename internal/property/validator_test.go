package property

import (
	"strings"
	"testing"

	"go.uber.org/zap"
)

func parseRows(t *testing.T, input string) []RawRow {
	t.Helper()
	rows, err := ParseCSV(strings.NewReader(input))
	if err != nil {
		t.Fatalf("parse csv: %v", err)
	}
	return rows
}

func TestParseCSVHeaderAliases(t *testing.T) {
	rows := parseRows(t, "PROPERTY_ID,LATITUDE,LONGITUDE,extent_ac,PLACE\np-1,14.382015,79.523023,2.5,Nellore\n")
	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}
	row := rows[0]
	if row.ID != "p-1" || row.Latitude != "14.382015" || row.Extent != "2.5" || row.Label != "Nellore" {
		t.Fatalf("unexpected row: %+v", row)
	}
	if row.Position != 1 {
		t.Fatalf("expected position 1, got %d", row.Position)
	}
}

func TestParseCSVStripsByteOrderMark(t *testing.T) {
	rows := parseRows(t, "\ufeffid,latitude,longitude,extent\np-1,14.382015,79.523023,2.5\n")
	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}
	if rows[0].ID != "p-1" {
		t.Fatalf("expected id p-1, got %q", rows[0].ID)
	}
}

func TestParseCSVMissingColumn(t *testing.T) {
	_, err := ParseCSV(strings.NewReader("id,latitude,longitude\np-1,1,2\n"))
	if err == nil || !strings.Contains(err.Error(), "extent") {
		t.Fatalf("expected missing extent error, got %v", err)
	}
}

func TestParseCSVEmpty(t *testing.T) {
	if _, err := ParseCSV(strings.NewReader("")); err != ErrEmptyInput {
		t.Fatalf("expected empty input error, got %v", err)
	}
	if _, err := ParseCSV(strings.NewReader("id,latitude,longitude,extent\n")); err != ErrEmptyInput {
		t.Fatalf("expected empty input error for header-only file, got %v", err)
	}
}

func TestValidateAcceptsValidRow(t *testing.T) {
	v := NewValidator(zap.NewNop())
	props, rejected := v.ValidateAll([]RawRow{
		{Position: 1, ID: "p-1", Latitude: "14.382015", Longitude: "79.523023", Extent: "2.5"},
	})
	if len(rejected) != 0 {
		t.Fatalf("unexpected rejections: %+v", rejected)
	}
	if len(props) != 1 {
		t.Fatalf("expected 1 property, got %d", len(props))
	}
	if props[0].Latitude != 14.382015 || props[0].Longitude != 79.523023 {
		t.Fatalf("unexpected coordinates: %+v", props[0])
	}
}

func TestValidateAllowsOriginCoordinates(t *testing.T) {
	// (0, 0) reliably fails at the provider but is not rejected locally.
	v := NewValidator(zap.NewNop())
	props, rejected := v.ValidateAll([]RawRow{
		{Position: 1, ID: "p-origin", Latitude: "0", Longitude: "0", Extent: "1"},
	})
	if len(rejected) != 0 {
		t.Fatalf("origin pair must pass validation, got %+v", rejected)
	}
	if len(props) != 1 {
		t.Fatalf("expected 1 property, got %d", len(props))
	}
}

func TestValidateRejectsOutOfRangeCoordinates(t *testing.T) {
	v := NewValidator(zap.NewNop())
	props, rejected := v.ValidateAll([]RawRow{
		{Position: 1, ID: "p-bad", Latitude: "91", Longitude: "181", Extent: "1"},
	})
	if len(props) != 0 {
		t.Fatalf("expected no properties, got %+v", props)
	}
	if len(rejected) != 1 {
		t.Fatalf("expected 1 rejection, got %d", len(rejected))
	}
	if !strings.Contains(rejected[0].Reason, "out of range") {
		t.Fatalf("reason should mention out-of-range, got %q", rejected[0].Reason)
	}
}

func TestValidateRuleOrder(t *testing.T) {
	// Coordinates are checked before extent; extent before identifier.
	v := NewValidator(zap.NewNop())
	_, rejected := v.ValidateAll([]RawRow{
		{Position: 1, ID: "", Latitude: "95", Longitude: "10", Extent: "-1"},
	})
	if len(rejected) != 1 || !strings.Contains(rejected[0].Reason, "latitude") {
		t.Fatalf("expected latitude failure first, got %+v", rejected)
	}

	_, rejected = v.ValidateAll([]RawRow{
		{Position: 1, ID: "", Latitude: "10", Longitude: "10", Extent: "-1"},
	})
	if len(rejected) != 1 || !strings.Contains(rejected[0].Reason, "extent") {
		t.Fatalf("expected extent failure before identifier, got %+v", rejected)
	}
}

func TestValidateRejectsNonPositiveExtent(t *testing.T) {
	v := NewValidator(zap.NewNop())
	_, rejected := v.ValidateAll([]RawRow{
		{Position: 1, ID: "p-flat", Latitude: "10", Longitude: "20", Extent: "0"},
	})
	if len(rejected) != 1 || !strings.Contains(rejected[0].Reason, "positive") {
		t.Fatalf("expected positive-extent rejection, got %+v", rejected)
	}
}

func TestValidateRejectsDuplicateIdentifiers(t *testing.T) {
	v := NewValidator(zap.NewNop())
	props, rejected := v.ValidateAll([]RawRow{
		{Position: 1, ID: "p-1", Latitude: "10", Longitude: "20", Extent: "1"},
		{Position: 2, ID: "p-1", Latitude: "11", Longitude: "21", Extent: "1"},
		{Position: 3, ID: "p-1", Latitude: "12", Longitude: "22", Extent: "1"},
	})
	if len(props) != 1 {
		t.Fatalf("expected only the first occurrence, got %d", len(props))
	}
	if props[0].Position != 1 {
		t.Fatalf("kept the wrong occurrence: %+v", props[0])
	}
	if len(rejected) != 2 {
		t.Fatalf("expected 2 duplicate rejections, got %d", len(rejected))
	}
	for _, r := range rejected {
		if !strings.Contains(r.Reason, "duplicate") {
			t.Fatalf("expected duplicate reason, got %q", r.Reason)
		}
	}
}
