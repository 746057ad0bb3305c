// Package shared holds code used across the internal packages that does not
// belong to any single layer.
//
// # Test Utilities
//
// The testutil subpackage provides:
//
//	- a buffered slog handler for asserting on log output
//	- a builder for SpreadsheetML 2003 workbooks, the instrument export
//	  format read by the dataprocessing package
//
// Example usage:
//
//	func TestSomething(t *testing.T) {
//	    logger, logs := testutil.NewTestLogger(t)
//	    xml := testutil.NewWorkbook().
//	        Sheet("Wheat").
//	        Row(testutil.StandardHeader("H", "PB")...).
//	        Row("1", "LampA", "", "Wheat", "M1", "SN-1", "10", "12").
//	        Bytes()
//	    // ...
//	}
//
// Nothing in this package is imported by production code.
package shared
