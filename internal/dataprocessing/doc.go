// Package dataprocessing turns NIR instrument exports into lamp comparison
// statistics. It is the core of the application: everything else is a way
// to feed it a document or to present what it computes.
//
// # Architecture
//
// The package is organized into four components:
//
// 1. Parser: reads SpreadsheetML 2003 workbooks into measurements
// 2. Dataset: immutable collection of measurements with product and lamp views
// 3. Aggregator: count, mean, sample standard deviation, min, max and median
// per product, lamp configuration and parameter
// 4. Comparator: signed mean differences between two lamp configurations
//
// # Usage
//
//	parser := dataprocessing.NewParser(logger, dataprocessing.DefaultParserConfig())
//	result, err := parser.Parse(ctx, data)
//	if err != nil {
//	    return err
//	}
//
//	aggs := dataprocessing.NewAggregator(logger).Aggregate(result.Dataset, domain.Selection{})
//	cmp := dataprocessing.NewComparator(nil)
//	diffs := cmp.CompareAll(result.Dataset, nil, []string{"H", "PB"}, lampA, lampB)
//
// # Data Flow
//
//	XML → Parser → Dataset → Aggregator → Comparator → exporter.ReportGenerator
//
// # Missing Values
//
// A blank or non-numeric cell is a Missing reading, never an error. Missing
// readings are excluded from every statistic; a group with no readings for a
// parameter has no statistics entry and cannot be compared.
//
// # Error Handling
//
// Parse failures are *errors.AppError values:
//
//	- PARSING: the document is not well-formed XML (line in context)
//	- EMPTY_DOCUMENT: no worksheets, or none left after exclusions
//	- SCHEMA: a worksheet lacks required columns (worksheet and columns in context)
//
// Aggregation and comparison never fail.
package dataprocessing
