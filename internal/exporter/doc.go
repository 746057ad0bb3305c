// Package exporter presents analysis results: the plain-text comparison
// report, CSV tables and an XLSX workbook.
//
// ReportGenerator: renders the text report. Rendering is pure; the caller
// decides where the text goes.
//
// CSVWriter: writes statistics, differences and summaries as CSV with a
// UTF-8 BOM for Excel compatibility.
//
// WorkbookWriter: writes the same three tables as sheets of one workbook.
//
// Example usage:
//
//	gen := exporter.NewReportGenerator(exporter.DefaultReportConfig())
//	text := gen.Render(exporter.ReportData{
//	    Meta:        exporter.ReportMeta{SourceName: "wheat.xml"},
//	    Stats:       aggs.Stats(),
//	    Differences: diffs,
//	    Summaries:   aggs.Summaries(),
//	})
//
//	csvWriter := exporter.NewCSVWriter(logger, 3)
//	err := csvWriter.Write(w, csvWriter.StatisticsTable(aggs.Stats()))
package exporter
