// Package report renders classified batch results as CSV and as a
// conditionally formatted spreadsheet.
package report

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/geopulselabs/geopulse/internal/change"
	"github.com/geopulselabs/geopulse/internal/clock"
	"github.com/geopulselabs/geopulse/internal/config"
	imagerydomain "github.com/geopulselabs/geopulse/internal/imagery/domain"
	"github.com/xuri/excelize/v2"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var columns = []string{
	"Property_ID",
	"Before Period Start",
	"Before Period End",
	"After Period Start",
	"After Period End",
	"Vegetation (NDVI)-Before Value",
	"Vegetation (NDVI)-After Value",
	"Vegetation (NDVI)-Difference",
	"Vegetation (NDVI)-Interpretation",
	"Vegetation (NDVI)-Significance",
	"Built-up Area (NDBI)-Before Value",
	"Built-up Area (NDBI)-After Value",
	"Built-up Area (NDBI)-Difference",
	"Built-up Area (NDBI)-Interpretation",
	"Built-up Area (NDBI)-Significance",
	"Water/Moisture (NDWI)-Before Value",
	"Water/Moisture (NDWI)-After Value",
	"Water/Moisture (NDWI)-Difference",
	"Water/Moisture (NDWI)-Interpretation",
	"Water/Moisture (NDWI)-Significance",
	"Conversion_status",
}

// Indices of the three significance columns, for conditional coloring.
var significanceColumns = []int{9, 14, 19}

// Report holds the rendered artifacts. Spreadsheet is nil when the
// spreadsheet rendering failed; the CSV is always present.
type Report struct {
	CSV                 []byte
	Spreadsheet         []byte
	CSVFilename         string
	SpreadsheetFilename string
}

type Params struct {
	fx.In

	Log   *zap.Logger
	Clock clock.Clock
	Cfg   config.Config
}

type Assembler struct {
	log       *zap.Logger
	clock     clock.Clock
	outputDir string
}

func NewAssembler(p Params) *Assembler {
	return &Assembler{
		log:       p.Log.Named("report.assembler"),
		clock:     p.Clock,
		outputDir: p.Cfg.Report.OutputDir,
	}
}

var Module = fx.Module("report",
	fx.Provide(NewAssembler),
)

// Assemble renders SUCCESS records in their given order. Spreadsheet
// rendering is best effort: on failure the CSV is still returned and
// the error is logged, never surfaced.
func (a *Assembler) Assemble(records []change.ChangeRecord, before, after imagerydomain.PeriodWindow) (Report, error) {
	base := a.filenameBase(before, after)

	// EXCLUDED records never become rows, whatever the caller passed.
	successes := make([]change.ChangeRecord, 0, len(records))
	for _, record := range records {
		if record.Status == change.StatusSuccess {
			successes = append(successes, record)
		}
	}
	records = successes

	csvBytes, err := renderCSV(records, before, after)
	if err != nil {
		return Report{}, fmt.Errorf("render csv: %w", err)
	}

	report := Report{
		CSV:                 csvBytes,
		CSVFilename:         base + ".csv",
		SpreadsheetFilename: base + ".xlsx",
	}

	spreadsheet, err := renderSpreadsheet(records, before, after)
	if err != nil {
		a.log.Warn("spreadsheet rendering failed, returning csv only",
			zap.String("filename", report.SpreadsheetFilename),
			zap.Error(err),
		)
		return report, nil
	}
	report.Spreadsheet = spreadsheet
	return report, nil
}

// Persist writes the rendered artifacts under the configured output
// directory and returns the paths written.
func (a *Assembler) Persist(report Report) ([]string, error) {
	if err := os.MkdirAll(a.outputDir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	csvPath := filepath.Join(a.outputDir, report.CSVFilename)
	if err := os.WriteFile(csvPath, report.CSV, 0o644); err != nil {
		return nil, fmt.Errorf("write csv: %w", err)
	}
	paths := []string{csvPath}

	if report.Spreadsheet != nil {
		xlsxPath := filepath.Join(a.outputDir, report.SpreadsheetFilename)
		if err := os.WriteFile(xlsxPath, report.Spreadsheet, 0o644); err != nil {
			a.log.Warn("spreadsheet write failed", zap.String("path", xlsxPath), zap.Error(err))
		} else {
			paths = append(paths, xlsxPath)
		}
	}
	return paths, nil
}

func (a *Assembler) filenameBase(before, after imagerydomain.PeriodWindow) string {
	return fmt.Sprintf("%s_batch_analysis_before%s_%s",
		a.clock.Now().Format("20060102_150405"),
		before.Start.Format("20060102"),
		after.Start.Format("20060102"),
	)
}

func recordRow(record change.ChangeRecord, before, after imagerydomain.PeriodWindow) []string {
	num := func(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }
	return []string{
		record.PropertyID,
		before.Start.Format("2006-01-02"),
		before.End.Format("2006-01-02"),
		after.Start.Format("2006-01-02"),
		after.End.Format("2006-01-02"),
		num(record.Vegetation.Before),
		num(record.Vegetation.After),
		num(record.Vegetation.Difference),
		record.Vegetation.Interpretation,
		record.Vegetation.Significant,
		num(record.BuiltUp.Before),
		num(record.BuiltUp.After),
		num(record.BuiltUp.Difference),
		record.BuiltUp.Interpretation,
		record.BuiltUp.Significant,
		num(record.Water.Before),
		num(record.Water.After),
		num(record.Water.Difference),
		record.Water.Interpretation,
		record.Water.Significant,
		record.Status,
	}
}

func renderCSV(records []change.ChangeRecord, before, after imagerydomain.PeriodWindow) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(columns); err != nil {
		return nil, err
	}
	for _, record := range records {
		if err := w.Write(recordRow(record, before, after)); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func renderSpreadsheet(records []change.ChangeRecord, before, after imagerydomain.PeriodWindow) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Analysis"
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return nil, err
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"4472C4"}, Pattern: 1},
	})
	if err != nil {
		return nil, err
	}
	significantStyle, err := f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Color: []string{"C6EFCE"}, Pattern: 1},
	})
	if err != nil {
		return nil, err
	}
	insignificantStyle, err := f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Color: []string{"FFC7CE"}, Pattern: 1},
	})
	if err != nil {
		return nil, err
	}

	for col, name := range columns {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return nil, err
		}
		if err := f.SetCellValue(sheet, cell, name); err != nil {
			return nil, err
		}
		if err := f.SetCellStyle(sheet, cell, cell, headerStyle); err != nil {
			return nil, err
		}
	}

	for i, record := range records {
		row := recordRow(record, before, after)
		for col, value := range row {
			cell, err := excelize.CoordinatesToCellName(col+1, i+2)
			if err != nil {
				return nil, err
			}
			if err := f.SetCellValue(sheet, cell, value); err != nil {
				return nil, err
			}
		}
		for _, col := range significanceColumns {
			cell, err := excelize.CoordinatesToCellName(col+1, i+2)
			if err != nil {
				return nil, err
			}
			style := insignificantStyle
			if row[col] == "Yes" {
				style = significantStyle
			}
			if err := f.SetCellStyle(sheet, cell, cell, style); err != nil {
				return nil, err
			}
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
