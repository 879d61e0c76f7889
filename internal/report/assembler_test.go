package report

import (
	"bytes"
	"encoding/csv"
	"strings"
	"testing"
	"time"

	"github.com/geopulselabs/geopulse/internal/change"
	"github.com/geopulselabs/geopulse/internal/clock"
	imagerydomain "github.com/geopulselabs/geopulse/internal/imagery/domain"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

var reportNow = time.Date(2025, 6, 1, 10, 30, 0, 0, time.UTC)

func newTestAssembler() *Assembler {
	return &Assembler{
		log:       zap.NewNop(),
		clock:     clock.FixedClock{Instant: reportNow},
		outputDir: "reports",
	}
}

func windows() (imagerydomain.PeriodWindow, imagerydomain.PeriodWindow) {
	before := imagerydomain.PeriodWindow{
		Name:  "before",
		Start: time.Date(2022, 11, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2023, 1, 31, 0, 0, 0, 0, time.UTC),
	}
	after := imagerydomain.PeriodWindow{
		Name:  "after",
		Start: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2025, 3, 31, 0, 0, 0, 0, time.UTC),
	}
	return before, after
}

func successRecord(id string, position int) change.ChangeRecord {
	return change.ChangeRecord{
		PropertyID: id,
		Position:   position,
		Status:     change.StatusSuccess,
		Vegetation: change.IndexChange{
			Before: 0.41, After: 0.52, Difference: 0.11,
			Significant: "Yes", Interpretation: "Vegetation growth or improvement",
		},
		BuiltUp: change.IndexChange{
			Before: 0.20, After: 0.21, Difference: 0.01,
			Significant: "No", Interpretation: "No built-up area change",
		},
		Water: change.IndexChange{
			Before: 0.10, After: 0.05, Difference: -0.05,
			Significant: "Yes", Interpretation: "Water decrease or drought",
		},
	}
}

func TestAssembleCSVContent(t *testing.T) {
	a := newTestAssembler()
	before, after := windows()

	report, err := a.Assemble([]change.ChangeRecord{successRecord("p-1", 1), successRecord("p-2", 2)}, before, after)
	if err != nil {
		t.Fatalf("assemble: %v", err)
	}

	rows, err := csv.NewReader(bytes.NewReader(report.CSV)).ReadAll()
	if err != nil {
		t.Fatalf("parse csv: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected header + 2 rows, got %d", len(rows))
	}
	header := rows[0]
	if header[0] != "Property_ID" || header[len(header)-1] != "Conversion_status" {
		t.Fatalf("unexpected header: %v", header)
	}
	for _, row := range rows[1:] {
		if row[len(row)-1] != "SUCCESS" {
			t.Fatalf("Conversion_status must be SUCCESS, got %q", row[len(row)-1])
		}
	}
	if rows[1][1] != "2022-11-01" || rows[1][3] != "2025-01-01" {
		t.Fatalf("period columns not echoed: %v", rows[1][:5])
	}
}

func TestAssembleDropsExcludedRecords(t *testing.T) {
	a := newTestAssembler()
	before, after := windows()

	excluded := change.ChangeRecord{
		PropertyID: "p-failed",
		Position:   2,
		Status:     change.StatusExcluded,
		Reason:     "fetch before: provider returned status 400",
	}
	report, err := a.Assemble([]change.ChangeRecord{successRecord("p-1", 1), excluded}, before, after)
	if err != nil {
		t.Fatalf("assemble: %v", err)
	}

	if strings.Contains(string(report.CSV), "p-failed") {
		t.Fatal("excluded record leaked into csv")
	}

	f, err := excelize.OpenReader(bytes.NewReader(report.Spreadsheet))
	if err != nil {
		t.Fatalf("open spreadsheet: %v", err)
	}
	defer f.Close()
	sheetRows, err := f.GetRows("Analysis")
	if err != nil {
		t.Fatalf("read sheet: %v", err)
	}
	if len(sheetRows) != 2 {
		t.Fatalf("expected header + 1 row in spreadsheet, got %d", len(sheetRows))
	}
}

func TestAssembleFilenames(t *testing.T) {
	a := newTestAssembler()
	before, after := windows()

	report, err := a.Assemble([]change.ChangeRecord{successRecord("p-1", 1)}, before, after)
	if err != nil {
		t.Fatalf("assemble: %v", err)
	}
	want := "20250601_103000_batch_analysis_before20221101_20250101.csv"
	if report.CSVFilename != want {
		t.Fatalf("expected %q, got %q", want, report.CSVFilename)
	}
	if !strings.HasSuffix(report.SpreadsheetFilename, ".xlsx") {
		t.Fatalf("unexpected spreadsheet filename %q", report.SpreadsheetFilename)
	}
}

func TestAssembleEmptyBatchStillProducesReport(t *testing.T) {
	a := newTestAssembler()
	before, after := windows()

	report, err := a.Assemble(nil, before, after)
	if err != nil {
		t.Fatalf("assemble: %v", err)
	}
	rows, err := csv.NewReader(bytes.NewReader(report.CSV)).ReadAll()
	if err != nil {
		t.Fatalf("parse csv: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected header only, got %d rows", len(rows))
	}
}

func TestAssembleSpreadsheetSignificanceColoring(t *testing.T) {
	a := newTestAssembler()
	before, after := windows()

	report, err := a.Assemble([]change.ChangeRecord{successRecord("p-1", 1)}, before, after)
	if err != nil {
		t.Fatalf("assemble: %v", err)
	}
	if report.Spreadsheet == nil {
		t.Fatal("expected spreadsheet bytes")
	}

	f, err := excelize.OpenReader(bytes.NewReader(report.Spreadsheet))
	if err != nil {
		t.Fatalf("open spreadsheet: %v", err)
	}
	defer f.Close()

	// Vegetation significance "Yes" (column J) and built-up "No"
	// (column O) must carry different fills.
	yesStyle, err := f.GetCellStyle("Analysis", "J2")
	if err != nil {
		t.Fatalf("get style: %v", err)
	}
	noStyle, err := f.GetCellStyle("Analysis", "O2")
	if err != nil {
		t.Fatalf("get style: %v", err)
	}
	if yesStyle == noStyle {
		t.Fatal("significance cells must be conditionally styled")
	}
}

func TestCSVRoundTrip(t *testing.T) {
	a := newTestAssembler()
	before, after := windows()

	records := []change.ChangeRecord{successRecord("p-1", 1), successRecord("p-2", 2)}
	report, err := a.Assemble(records, before, after)
	if err != nil {
		t.Fatalf("assemble: %v", err)
	}

	rows, err := csv.NewReader(bytes.NewReader(report.CSV)).ReadAll()
	if err != nil {
		t.Fatalf("parse csv: %v", err)
	}
	for i, record := range records {
		row := rows[i+1]
		if row[0] != record.PropertyID {
			t.Fatalf("identifier mismatch: %q vs %q", row[0], record.PropertyID)
		}
		if row[9] != record.Vegetation.Significant ||
			row[14] != record.BuiltUp.Significant ||
			row[19] != record.Water.Significant {
			t.Fatalf("significance flags changed in round trip: %v", row)
		}
	}
}

func TestPersistWritesArtifacts(t *testing.T) {
	a := newTestAssembler()
	a.outputDir = t.TempDir()
	before, after := windows()

	report, err := a.Assemble([]change.ChangeRecord{successRecord("p-1", 1)}, before, after)
	if err != nil {
		t.Fatalf("assemble: %v", err)
	}
	paths, err := a.Persist(report)
	if err != nil {
		t.Fatalf("persist: %v", err)
	}
	if len(paths) != 2 {
		t.Fatalf("expected csv and xlsx paths, got %v", paths)
	}
}
