package dataprocessing

import (
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"slices"
	"strconv"
	"strings"

	"golang.org/x/text/encoding/htmlindex"

	apperrors "github.com/miquelpairo/predictionsreport/internal/errors"
	"github.com/miquelpairo/predictionsreport/pkg/contracts/domain"
)

// Column names with a fixed meaning in instrument exports.
const (
	ColumnNo      = "No"
	ColumnID      = "ID"
	ColumnNote    = "Note"
	ColumnProduct = "Product"
	ColumnMethod  = "Method"
	ColumnUnit    = "Unit"
)

// SchemaPolicy decides what happens to a worksheet missing required columns.
type SchemaPolicy string

const (
	// SchemaPolicyFail aborts the whole load with a SchemaError.
	SchemaPolicyFail SchemaPolicy = "fail"
	// SchemaPolicySkip drops the worksheet and reports it in ParseResult.Skipped.
	SchemaPolicySkip SchemaPolicy = "skip"
)

// ParserConfig holds configuration for the parser
type ParserConfig struct {
	// ExcludedSheets are worksheet names that never hold measurements
	// (spectra dumps, instrument summaries). Compared case-insensitively.
	ExcludedSheets []string

	// RequiredColumns must all appear in a worksheet's header row. No is
	// always required since it tells data rows apart.
	RequiredColumns []string

	// MetadataColumns are never treated as numeric parameters.
	MetadataColumns []string

	// FooterLabels mark the instrument's statistics block below the data rows.
	FooterLabels []string

	SchemaPolicy SchemaPolicy
}

// DefaultParserConfig returns the configuration matching the instrument's
// standard export.
func DefaultParserConfig() ParserConfig {
	return ParserConfig{
		ExcludedSheets:  []string{"Espectros", "Summary"},
		RequiredColumns: []string{ColumnNo, ColumnID, ColumnNote, ColumnMethod},
		MetadataColumns: []string{ColumnNo, ColumnID, ColumnNote, ColumnProduct, ColumnMethod, ColumnUnit, "Begin", "End", "Length"},
		FooterLabels:    []string{"Average", "Min", "Max", "Std.Dev.", "Target"},
		SchemaPolicy:    SchemaPolicyFail,
	}
}

// SkippedWorksheet records a worksheet dropped under SchemaPolicySkip.
type SkippedWorksheet struct {
	Name   string
	Reason error
}

// ParseResult is the outcome of a successful parse.
type ParseResult struct {
	Dataset *Dataset
	Skipped []SkippedWorksheet
}

// Parser reads SpreadsheetML 2003 instrument exports into a Dataset.
type Parser struct {
	logger   *slog.Logger
	config   ParserConfig
	excluded map[string]bool
	metadata map[string]bool
	footer   map[string]bool
	headers  map[string]bool
}

// NewParser creates a parser. A nil logger uses slog.Default().
func NewParser(logger *slog.Logger, config ParserConfig) *Parser {
	if logger == nil {
		logger = slog.Default()
	}
	if config.SchemaPolicy == "" {
		config.SchemaPolicy = SchemaPolicyFail
	}
	if !slices.Contains(config.RequiredColumns, ColumnNo) {
		config.RequiredColumns = append([]string{ColumnNo}, config.RequiredColumns...)
	}

	p := &Parser{
		logger:   logger.With(slog.String("component", "parser")),
		config:   config,
		excluded: make(map[string]bool),
		metadata: toSet(config.MetadataColumns),
		footer:   toSet(config.FooterLabels),
		headers:  toSet([]string{ColumnNo, ColumnID, ColumnNote, ColumnProduct, ColumnMethod}),
	}
	for _, name := range config.ExcludedSheets {
		p.excluded[strings.ToLower(strings.TrimSpace(name))] = true
	}
	return p
}

// ParseXML parses data with the default configuration.
func ParseXML(data []byte) (*Dataset, error) {
	result, err := NewParser(nil, DefaultParserConfig()).Parse(context.Background(), data)
	if err != nil {
		return nil, err
	}
	return result.Dataset, nil
}

// ParseFile reads and parses the export at path.
func (p *Parser) ParseFile(ctx context.Context, path string) (*ParseResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	result, err := p.Parse(ctx, data)
	if err != nil {
		return nil, err
	}
	result.Dataset.name = path
	return result, nil
}

// ParseReader reads an export from r and names the dataset after name.
func (p *Parser) ParseReader(ctx context.Context, name string, r io.Reader) (*ParseResult, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read document: %w", err)
	}
	result, err := p.Parse(ctx, data)
	if err != nil {
		return nil, err
	}
	result.Dataset.name = name
	return result, nil
}

// Parse decodes an export held in memory. The document must be well-formed
// XML; a ParseError is returned otherwise. Worksheets listed in
// ParserConfig.ExcludedSheets are ignored.
func (p *Parser) Parse(ctx context.Context, data []byte) (*ParseResult, error) {
	book, err := decodeWorkbook(data)
	if err != nil {
		return nil, err
	}
	if len(book.Worksheets) == 0 {
		return nil, apperrors.NewEmptyDocumentError("document contains no worksheets")
	}

	var (
		measurements []domain.Measurement
		parameters   []string
		seenParam    = make(map[string]bool)
		skipped      []SkippedWorksheet
		usable       int
	)

	for i, ws := range book.Worksheets {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		name := ws.Name
		if p.excluded[strings.ToLower(strings.TrimSpace(name))] {
			p.logger.DebugContext(ctx, "skipping excluded worksheet", slog.String("worksheet", name))
			continue
		}

		sheet, err := p.readWorksheet(ws, i+1)
		if err != nil {
			if apperrors.IsSchemaError(err) && p.config.SchemaPolicy == SchemaPolicySkip {
				p.logger.WarnContext(ctx, "skipping worksheet with invalid schema",
					slog.String("worksheet", name),
					slog.String("error", err.Error()))
				skipped = append(skipped, SkippedWorksheet{Name: name, Reason: err})
				continue
			}
			return nil, err
		}

		usable++
		measurements = append(measurements, sheet.measurements...)
		for _, param := range sheet.parameters {
			if !seenParam[param] {
				seenParam[param] = true
				parameters = append(parameters, param)
			}
		}

		p.logger.DebugContext(ctx, "worksheet parsed",
			slog.String("worksheet", name),
			slog.Int("rows", len(sheet.measurements)),
			slog.Int("parameters", len(sheet.parameters)))
	}

	if usable == 0 {
		return nil, apperrors.NewEmptyDocumentError("document contains no usable worksheets").
			WithContext("skipped", len(skipped))
	}

	ds := NewDataset(measurements, parameters)

	p.logger.InfoContext(ctx, "document parsed",
		slog.Int("worksheets", usable),
		slog.Int("skipped", len(skipped)),
		slog.Int("measurements", ds.Len()),
		slog.Int("products", len(ds.Products())),
		slog.Int("lamps", len(ds.LampKeys())),
		slog.String("sensor_serial", ds.SensorSerial()))

	return &ParseResult{Dataset: ds, Skipped: skipped}, nil
}

type parsedSheet struct {
	measurements []domain.Measurement
	parameters   []string
}

// readWorksheet turns one worksheet into measurements. position is the
// 1-based worksheet index, used to name unnamed worksheets.
func (p *Parser) readWorksheet(ws xmlWorksheet, position int) (*parsedSheet, error) {
	rows := ws.rows()

	headerAt := -1
	for i, r := range rows {
		if p.isHeader(r.cells) {
			headerAt = i
			break
		}
	}
	if headerAt < 0 {
		return nil, apperrors.NewSchemaError(ws.Name, slices.Clone(p.config.RequiredColumns))
	}

	header := normalizeHeader(rows[headerAt].cells)
	columnMap := make(map[string]int, len(header))
	for idx, name := range header {
		if name == "" {
			continue
		}
		if _, dup := columnMap[name]; dup {
			p.logger.Debug("duplicate column ignored",
				slog.String("worksheet", ws.Name),
				slog.String("column", name),
				slog.Int("position", idx+1))
			continue
		}
		columnMap[name] = idx
	}

	var missing []string
	for _, col := range p.config.RequiredColumns {
		if _, ok := columnMap[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, apperrors.NewSchemaError(ws.Name, missing).
			WithContext(apperrors.ContextRow, rows[headerAt].index)
	}

	sheet := &parsedSheet{}
	var paramCols []int
	for idx, name := range header {
		if name == "" || p.metadata[name] || columnMap[name] != idx {
			continue
		}
		paramCols = append(paramCols, idx)
		sheet.parameters = append(sheet.parameters, name)
	}

	fallbackProduct := fmt.Sprintf("Sheet%d", position)
	for _, r := range rows[headerAt+1:] {
		if p.isFooter(r.cells) {
			break
		}

		seq, ok := parseSequence(columnText(r.cells, columnMap, ColumnNo))
		if !ok {
			continue
		}

		m := domain.Measurement{
			Product:    ws.Name,
			SequenceNo: seq,
			SampleID:   columnText(r.cells, columnMap, ColumnID),
			Note:       columnText(r.cells, columnMap, ColumnNote),
			Method:     columnText(r.cells, columnMap, ColumnMethod),
			Unit:       strings.TrimSpace(columnText(r.cells, columnMap, ColumnUnit)),
			Parameters: make(map[string]domain.Value, len(paramCols)),
			Row:        r.index,
		}
		if m.Product == "" {
			m.Product = strings.TrimSpace(columnText(r.cells, columnMap, ColumnProduct))
		}
		if m.Product == "" {
			m.Product = fallbackProduct
		}
		for i, col := range paramCols {
			m.Parameters[sheet.parameters[i]] = CoerceValue(cellAt(r.cells, col))
		}

		sheet.measurements = append(sheet.measurements, m)
	}

	return sheet, nil
}

// isHeader reports whether a row names at least two of the known metadata
// columns.
func (p *Parser) isHeader(cells []string) bool {
	hits := 0
	for i, c := range cells {
		c = strings.TrimSpace(c)
		if p.headers[c] || (i == 0 && c == "#") {
			hits++
		}
	}
	return hits >= 2
}

func (p *Parser) isFooter(cells []string) bool {
	for _, c := range cells[:min(2, len(cells))] {
		if p.footer[strings.TrimSpace(c)] {
			return true
		}
	}
	return false
}

// CoerceValue converts cell text to a reading. Blank, non-numeric, NaN and
// infinite text all become Missing.
func CoerceValue(text string) domain.Value {
	text = strings.TrimSpace(text)
	if text == "" {
		return domain.Missing()
	}
	f, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return domain.Missing()
	}
	return domain.Number(f)
}

// parseSequence accepts a positive integer, tolerating a trailing ".0" style
// float rendering.
func parseSequence(text string) (int, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(text, 64)
	if err != nil || f < 1 || f != math.Trunc(f) || f > math.MaxInt32 {
		return 0, false
	}
	return int(f), true
}

func normalizeHeader(cells []string) []string {
	header := make([]string, len(cells))
	for i, c := range cells {
		header[i] = strings.TrimSpace(c)
	}
	if len(header) > 0 && header[0] == "#" {
		header[0] = ColumnNo
	}
	return header
}

func columnText(cells []string, columnMap map[string]int, column string) string {
	idx, ok := columnMap[column]
	if !ok {
		return ""
	}
	return cellAt(cells, idx)
}

func cellAt(cells []string, idx int) string {
	if idx < 0 || idx >= len(cells) {
		return ""
	}
	return cells[idx]
}

func toSet(values []string) map[string]bool {
	set := make(map[string]bool, len(values))
	for _, v := range values {
		set[v] = true
	}
	return set
}

// SpreadsheetML 2003 document model. Elements and attributes match on local
// name so both prefixed (ss:Index) and default-namespace forms decode.

type xmlWorkbook struct {
	Worksheets []xmlWorksheet `xml:"Worksheet"`
}

type xmlWorksheet struct {
	Name   string     `xml:"Name,attr"`
	Tables []xmlTable `xml:"Table"`
}

type xmlTable struct {
	Rows []xmlRow `xml:"Row"`
}

type xmlRow struct {
	Index int       `xml:"Index,attr"`
	Cells []xmlCell `xml:"Cell"`
}

type xmlCell struct {
	Index       int      `xml:"Index,attr"`
	MergeAcross int      `xml:"MergeAcross,attr"`
	Data        *xmlData `xml:"Data"`
}

type xmlData struct {
	Type string
	Text string
}

// UnmarshalXML flattens rich-text runs (html:Font, html:B ...) into plain
// text, keeping document order.
func (d *xmlData) UnmarshalXML(dec *xml.Decoder, start xml.StartElement) error {
	for _, a := range start.Attr {
		if a.Name.Local == "Type" {
			d.Type = a.Value
		}
	}

	var b strings.Builder
	depth := 0
	for {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		switch t := tok.(type) {
		case xml.CharData:
			b.Write(t)
		case xml.StartElement:
			depth++
		case xml.EndElement:
			if depth == 0 {
				d.Text = b.String()
				return nil
			}
			depth--
		}
	}
}

func (d *xmlData) text() string {
	if d == nil {
		return ""
	}
	return d.Text
}

type sheetRow struct {
	index int
	cells []string
}

// rows lays out cell text by column, honouring ss:Index on rows and cells
// and ss:MergeAcross. Skipped positions are blank.
func (ws xmlWorksheet) rows() []sheetRow {
	var out []sheetRow
	for _, table := range ws.Tables {
		rowIdx := 0
		for _, r := range table.Rows {
			rowIdx++
			if r.Index > rowIdx {
				rowIdx = r.Index
			}

			var cells []string
			col := 0
			for _, c := range r.Cells {
				col++
				if c.Index > col {
					col = c.Index
				}
				for len(cells) < col {
					cells = append(cells, "")
				}
				cells[col-1] = c.Data.text()
				col += max(c.MergeAcross, 0)
			}
			out = append(out, sheetRow{index: rowIdx, cells: cells})
		}
	}
	return out
}

// decodeWorkbook unmarshals the document and then reads it to EOF so that
// malformed trailing content is reported too.
func decodeWorkbook(data []byte) (*xmlWorkbook, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	dec.CharsetReader = charsetReader

	var book xmlWorkbook
	if err := dec.Decode(&book); err != nil {
		return nil, parseError(err)
	}
	for {
		if _, err := dec.Token(); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, parseError(err)
		}
	}
	return &book, nil
}

func parseError(err error) error {
	if errors.Is(err, io.EOF) {
		return apperrors.NewParsingError("document is empty", 0, err)
	}
	var syntaxErr *xml.SyntaxError
	if errors.As(err, &syntaxErr) {
		return apperrors.NewParsingError("document is not well-formed XML", syntaxErr.Line, err)
	}
	return apperrors.NewParsingError("document could not be decoded", 0, err)
}

func charsetReader(label string, input io.Reader) (io.Reader, error) {
	enc, err := htmlindex.Get(label)
	if err != nil {
		return nil, fmt.Errorf("unsupported charset %q: %w", label, err)
	}
	return enc.NewDecoder().Reader(input), nil
}
