package exporter

import (
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"

	"github.com/miquelpairo/predictionsreport/pkg/contracts/domain"
)

// utf8BOM helps Excel recognise UTF-8 CSV files.
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// CSVWriter provides CSV export functionality
type CSVWriter struct {
	logger   *slog.Logger
	decimals int
}

// NewCSVWriter creates a new CSV writer instance. Numbers are written with
// the given number of decimal places.
func NewCSVWriter(logger *slog.Logger, decimals int) *CSVWriter {
	if logger == nil {
		logger = slog.Default()
	}
	if decimals < 0 {
		decimals = DefaultReportConfig().Decimals
	}
	return &CSVWriter{
		logger:   logger.With(slog.String("component", "csv_writer")),
		decimals: decimals,
	}
}

// WriteOptions configures CSV writing behavior
type WriteOptions struct {
	Headers   []string
	Records   [][]string
	BOMPrefix bool // Add UTF-8 BOM for Excel compatibility
}

// Write writes a table to w.
func (w *CSVWriter) Write(out io.Writer, options WriteOptions) error {
	w.logger.Debug("Writing CSV table",
		slog.Int("column_count", len(options.Headers)),
		slog.Int("record_count", len(options.Records)))

	if options.BOMPrefix {
		if _, err := out.Write(utf8BOM); err != nil {
			return fmt.Errorf("failed to write BOM: %w", err)
		}
	}

	writer := csv.NewWriter(out)

	if len(options.Headers) > 0 {
		if err := writer.Write(options.Headers); err != nil {
			return fmt.Errorf("failed to write headers: %w", err)
		}
	}

	for i, record := range options.Records {
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("failed to write record %d: %w", i, err)
		}
	}

	writer.Flush()
	return writer.Error()
}

// StatisticsTable lays statistics out one row per product, lamp and
// parameter. An undefined standard deviation is an empty cell.
func (w *CSVWriter) StatisticsTable(stats []domain.AggregateStat) WriteOptions {
	records := make([][]string, 0, len(stats))
	for _, s := range stats {
		records = append(records, []string{
			s.Product,
			s.Lamp.ID,
			s.Lamp.Note,
			s.Parameter,
			formatInt(s.Count),
			formatInt(s.GroupSize),
			formatFloat(s.Mean, w.decimals),
			formatValue(s.StdDev, w.decimals, ""),
			formatFloat(s.Min, w.decimals),
			formatFloat(s.Max, w.decimals),
			formatFloat(s.Median, w.decimals),
		})
	}
	return WriteOptions{
		Headers:   []string{"product", "lamp_id", "lamp_note", "parameter", "count", "group_size", "mean", "std_dev", "min", "max", "median"},
		Records:   records,
		BOMPrefix: true,
	}
}

// DifferencesTable lays difference records out one row each.
func (w *CSVWriter) DifferencesTable(diffs []domain.DifferenceRecord) WriteOptions {
	records := make([][]string, 0, len(diffs))
	for _, d := range diffs {
		records = append(records, []string{
			d.Product,
			d.Parameter,
			d.LampA.ID,
			d.LampA.Note,
			d.LampB.ID,
			d.LampB.Note,
			formatFloat(d.MeanA, w.decimals),
			formatFloat(d.MeanB, w.decimals),
			formatInt(d.CountA),
			formatInt(d.CountB),
			formatFloat(d.Difference, w.decimals),
			string(d.Baseline),
			formatValue(d.Percent, 2, ""),
			d.Direction(),
			string(assessment(d)),
		})
	}
	return WriteOptions{
		Headers: []string{
			"product", "parameter", "lamp_a_id", "lamp_a_note", "lamp_b_id", "lamp_b_note",
			"mean_a", "mean_b", "count_a", "count_b", "difference", "baseline", "percent",
			"direction", "assessment",
		},
		Records:   records,
		BOMPrefix: true,
	}
}

// SummaryTable lays cross-lamp summaries out one row per product and
// parameter.
func (w *CSVWriter) SummaryTable(summaries []domain.ParameterSummary) WriteOptions {
	records := make([][]string, 0, len(summaries))
	for _, s := range summaries {
		records = append(records, []string{
			s.Product,
			s.Parameter,
			formatInt(s.Lamps),
			formatFloat(s.Mean, w.decimals),
			formatFloat(s.StdDev, w.decimals),
			formatFloat(s.Range, w.decimals),
		})
	}
	return WriteOptions{
		Headers:   []string{"product", "parameter", "lamps", "mean", "std_dev", "range"},
		Records:   records,
		BOMPrefix: true,
	}
}
