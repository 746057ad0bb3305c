package exporter

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/miquelpairo/predictionsreport/pkg/contracts/domain"
)

// Sheet names of the exported workbook.
const (
	SheetStatistics  = "Statistics"
	SheetDifferences = "Differences"
	SheetSummary     = "Summary"
)

// WorkbookWriter exports analysis results as an XLSX workbook with one
// sheet per table. Numbers are stored unrounded and displayed with the
// configured number of decimals.
type WorkbookWriter struct {
	logger   *slog.Logger
	decimals int
}

// NewWorkbookWriter creates a workbook writer.
func NewWorkbookWriter(logger *slog.Logger, decimals int) *WorkbookWriter {
	if logger == nil {
		logger = slog.Default()
	}
	if decimals < 0 {
		decimals = DefaultReportConfig().Decimals
	}
	return &WorkbookWriter{
		logger:   logger.With(slog.String("component", "workbook_writer")),
		decimals: decimals,
	}
}

// Write builds the workbook and streams it to out.
func (w *WorkbookWriter) Write(out io.Writer, data ReportData) error {
	w.logger.Debug("Writing XLSX workbook",
		slog.Int("stats", len(data.Stats)),
		slog.Int("differences", len(data.Differences)),
		slog.Int("summaries", len(data.Summaries)))

	f, err := w.build(data)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := f.Write(out); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

type sheetTable struct {
	name    string
	headers []string
	rows    [][]any
	widths  []float64
}

func (w *WorkbookWriter) build(data ReportData) (*excelize.File, error) {
	f := excelize.NewFile()

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"DDEBF7"}},
	})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}

	numFmt := "0"
	if w.decimals > 0 {
		numFmt += "." + strings.Repeat("0", w.decimals)
	}
	numberStyle, err := f.NewStyle(&excelize.Style{CustomNumFmt: &numFmt})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create number style: %w", err)
	}

	tables := []sheetTable{
		statisticsSheet(data.Stats),
		differencesSheet(data.Differences),
		summarySheet(data.Summaries),
	}

	for i, table := range tables {
		if i == 0 {
			if err := f.SetSheetName("Sheet1", table.name); err != nil {
				f.Close()
				return nil, fmt.Errorf("failed to rename sheet: %w", err)
			}
		} else if _, err := f.NewSheet(table.name); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to create sheet %s: %w", table.name, err)
		}

		if err := writeSheet(f, table, headerStyle, numberStyle); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to write sheet %s: %w", table.name, err)
		}
	}

	f.SetActiveSheet(0)
	return f, nil
}

func writeSheet(f *excelize.File, table sheetTable, headerStyle, numberStyle int) error {
	header := make([]any, len(table.headers))
	for i, h := range table.headers {
		header[i] = h
	}
	if err := f.SetSheetRow(table.name, "A1", &header); err != nil {
		return err
	}

	lastCol, err := excelize.ColumnNumberToName(len(table.headers))
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(table.name, "A1", lastCol+"1", headerStyle); err != nil {
		return err
	}

	for i, row := range table.rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(table.name, cell, &row); err != nil {
			return err
		}
		for col, v := range row {
			if _, ok := v.(float64); !ok {
				continue
			}
			ref, err := excelize.CoordinatesToCellName(col+1, i+2)
			if err != nil {
				return err
			}
			if err := f.SetCellStyle(table.name, ref, ref, numberStyle); err != nil {
				return err
			}
		}
	}

	for i, width := range table.widths {
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return err
		}
		if err := f.SetColWidth(table.name, col, col, width); err != nil {
			return err
		}
	}

	return f.SetPanes(table.name, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	})
}

// optional turns a Missing value into an empty cell.
func optional(v domain.Value) any {
	if f, ok := v.Float64(); ok {
		return f
	}
	return nil
}

func statisticsSheet(stats []domain.AggregateStat) sheetTable {
	t := sheetTable{
		name:    SheetStatistics,
		headers: []string{"Product", "Lamp ID", "Lamp note", "Parameter", "Count", "Group size", "Mean", "Std. dev.", "Min", "Max", "Median"},
		widths:  []float64{18, 18, 18, 14, 8, 10, 12, 12, 12, 12, 12},
	}
	for _, s := range stats {
		t.rows = append(t.rows, []any{
			s.Product, s.Lamp.ID, s.Lamp.Note, s.Parameter, s.Count, s.GroupSize,
			s.Mean, optional(s.StdDev), s.Min, s.Max, s.Median,
		})
	}
	return t
}

func differencesSheet(diffs []domain.DifferenceRecord) sheetTable {
	t := sheetTable{
		name: SheetDifferences,
		headers: []string{
			"Product", "Parameter", "Lamp A", "Lamp B", "Mean A", "Mean B",
			"Count A", "Count B", "Difference (A - B)", "Baseline", "Percent",
			"Direction", "Assessment",
		},
		widths: []float64{18, 14, 22, 22, 12, 12, 8, 8, 18, 22, 10, 10, 14},
	}
	for _, d := range diffs {
		t.rows = append(t.rows, []any{
			d.Product, d.Parameter, lampLabel(d.LampA), lampLabel(d.LampB), d.MeanA, d.MeanB,
			d.CountA, d.CountB, d.Difference, lampLabel(d.BaselineLamp()), optional(d.Percent),
			d.Direction(), assessment(d).Label(),
		})
	}
	return t
}

func summarySheet(summaries []domain.ParameterSummary) sheetTable {
	t := sheetTable{
		name:    SheetSummary,
		headers: []string{"Product", "Parameter", "Lamps", "Mean of lamp means", "Std. dev.", "Range"},
		widths:  []float64{18, 14, 8, 20, 12, 12},
	}
	for _, s := range summaries {
		t.rows = append(t.rows, []any{s.Product, s.Parameter, s.Lamps, s.Mean, s.StdDev, s.Range})
	}
	return t
}
