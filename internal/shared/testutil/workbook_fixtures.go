package testutil

import (
	"bytes"
	"encoding/xml"
	"os"
	"path/filepath"
	"strconv"
	"testing"
)

// SpreadsheetNS is the SpreadsheetML 2003 namespace used by instrument exports.
const SpreadsheetNS = "urn:schemas-microsoft-com:office:spreadsheet"

// Workbook builds SpreadsheetML documents for tests. Cells that parse as
// numbers are written with ss:Type="Number", everything else as String.
// An empty cell string produces a <Cell/> with no Data element.
type Workbook struct {
	sheets []sheet
}

type sheet struct {
	name    string
	unnamed bool
	rows    []string
}

// NewWorkbook starts an empty workbook.
func NewWorkbook() *Workbook {
	return &Workbook{}
}

// Sheet starts a new worksheet. Subsequent rows are added to it.
func (w *Workbook) Sheet(name string) *Workbook {
	w.sheets = append(w.sheets, sheet{name: name})
	return w
}

// UnnamedSheet starts a worksheet without an ss:Name attribute.
func (w *Workbook) UnnamedSheet() *Workbook {
	w.sheets = append(w.sheets, sheet{unnamed: true})
	return w
}

// Row appends a row of sequential cells to the current worksheet.
func (w *Workbook) Row(cells ...string) *Workbook {
	var b bytes.Buffer
	b.WriteString("<Row>")
	for _, c := range cells {
		writeCell(&b, 0, c)
	}
	b.WriteString("</Row>")
	return w.raw(b.String())
}

// IndexedRow appends a row whose cells carry explicit 1-based ss:Index
// positions. Keys are written in ascending order.
func (w *Workbook) IndexedRow(cells map[int]string) *Workbook {
	maxIdx := 0
	for idx := range cells {
		maxIdx = max(maxIdx, idx)
	}
	var b bytes.Buffer
	b.WriteString("<Row>")
	for idx := 1; idx <= maxIdx; idx++ {
		if c, ok := cells[idx]; ok {
			writeCell(&b, idx, c)
		}
	}
	b.WriteString("</Row>")
	return w.raw(b.String())
}

// RawRow appends verbatim XML to the current worksheet table.
func (w *Workbook) RawRow(rowXML string) *Workbook {
	return w.raw(rowXML)
}

func (w *Workbook) raw(s string) *Workbook {
	if len(w.sheets) == 0 {
		w.Sheet("Sheet1")
	}
	last := &w.sheets[len(w.sheets)-1]
	last.rows = append(last.rows, s)
	return w
}

// Bytes renders the workbook.
func (w *Workbook) Bytes() []byte {
	var b bytes.Buffer
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?>` + "\n")
	b.WriteString(`<?mso-application progid="Excel.Sheet"?>` + "\n")
	b.WriteString(`<Workbook xmlns="` + SpreadsheetNS + `" xmlns:ss="` + SpreadsheetNS + `">` + "\n")
	for _, s := range w.sheets {
		if s.unnamed {
			b.WriteString("<Worksheet>")
		} else {
			b.WriteString(`<Worksheet ss:Name="`)
			xml.EscapeText(&b, []byte(s.name))
			b.WriteString(`">`)
		}
		b.WriteString("<Table>\n")
		for _, r := range s.rows {
			b.WriteString(r)
			b.WriteString("\n")
		}
		b.WriteString("</Table></Worksheet>\n")
	}
	b.WriteString("</Workbook>\n")
	return b.Bytes()
}

// WriteFile renders the workbook into a file under t.TempDir and returns
// its path.
func (w *Workbook) WriteFile(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, w.Bytes(), 0o644); err != nil {
		t.Fatalf("write workbook fixture: %v", err)
	}
	return path
}

// StandardHeader returns the metadata columns of a typical export followed
// by the given parameter names.
func StandardHeader(parameters ...string) []string {
	return append([]string{"No", "ID", "Note", "Product", "Method", "Unit"}, parameters...)
}

// WheatWorkbook is the reference two-lamp scenario: LampA reads H 10, 12 and
// a blank; LampB reads 9 and 11.
func WheatWorkbook() *Workbook {
	return NewWorkbook().
		Sheet("Wheat").
		Row(StandardHeader("H", "PB")...).
		Row("1", "LampA", "", "Wheat", "M1", "SN-001", "10", "12.1").
		Row("2", "LampA", "", "Wheat", "M1", "SN-001", "12", "12.3").
		Row("3", "LampA", "", "Wheat", "M1", "SN-001", "", "12.2").
		Row("4", "LampB", "", "Wheat", "M1", "SN-001", "9", "11.9").
		Row("5", "LampB", "", "Wheat", "M1", "SN-001", "11", "").
		Row("", "Average", "", "", "", "", "10.5", "12.1")
}

// WheatNoteWorkbook is WheatWorkbook with every row sharing one sample ID,
// so the two lamps differ only in their Note.
func WheatNoteWorkbook() *Workbook {
	return NewWorkbook().
		Sheet("Wheat").
		Row(StandardHeader("H", "PB")...).
		Row("1", "W-01", "LampA", "Wheat", "M1", "SN-001", "10", "12.1").
		Row("2", "W-01", "LampA", "Wheat", "M1", "SN-001", "12", "12.3").
		Row("3", "W-01", "LampA", "Wheat", "M1", "SN-001", "", "12.2").
		Row("4", "W-01", "LampB", "Wheat", "M1", "SN-001", "9", "11.9").
		Row("5", "W-01", "LampB", "Wheat", "M1", "SN-001", "11", "").
		Row("", "Average", "", "", "", "", "10.5", "12.1")
}

// DisjointLampsWorkbook has two products measured under different lamps:
// Wheat under L1 and L2, Corn under L3 and L4.
func DisjointLampsWorkbook() *Workbook {
	return NewWorkbook().
		Sheet("Wheat").
		Row(StandardHeader("H")...).
		Row("1", "L1", "", "Wheat", "M1", "", "10").
		Row("2", "L2", "", "Wheat", "M1", "", "11").
		Sheet("Corn").
		Row(StandardHeader("H")...).
		Row("1", "L3", "", "Corn", "M1", "", "4").
		Row("2", "L4", "", "Corn", "M1", "", "5")
}

func writeCell(b *bytes.Buffer, index int, value string) {
	b.WriteString("<Cell")
	if index > 0 {
		b.WriteString(` ss:Index="` + strconv.Itoa(index) + `"`)
	}
	if value == "" {
		b.WriteString("/>")
		return
	}
	typ := "String"
	if _, err := strconv.ParseFloat(value, 64); err == nil {
		typ = "Number"
	}
	b.WriteString(`><Data ss:Type="` + typ + `">`)
	xml.EscapeText(b, []byte(value))
	b.WriteString("</Data></Cell>")
}
