package dataprocessing

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/miquelpairo/predictionsreport/internal/errors"
	"github.com/miquelpairo/predictionsreport/internal/shared/testutil"
	"github.com/miquelpairo/predictionsreport/pkg/contracts/domain"
)

func collect(seq func(func(domain.Measurement) bool)) []domain.Measurement {
	var out []domain.Measurement
	for m := range seq {
		out = append(out, m)
	}
	return out
}

func TestNewParser(t *testing.T) {
	tests := []struct {
		name         string
		logger       *slog.Logger
		config       ParserConfig
		wantPolicy   SchemaPolicy
		wantRequired []string
	}{
		{
			name:         "default config",
			logger:       slog.Default(),
			config:       DefaultParserConfig(),
			wantPolicy:   SchemaPolicyFail,
			wantRequired: []string{"No", "ID", "Note", "Method"},
		},
		{
			name:         "nil logger and empty policy",
			logger:       nil,
			config:       ParserConfig{RequiredColumns: []string{"ID"}},
			wantPolicy:   SchemaPolicyFail,
			wantRequired: []string{"No", "ID"},
		},
		{
			name:         "skip policy kept",
			config:       ParserConfig{SchemaPolicy: SchemaPolicySkip, RequiredColumns: []string{"No"}},
			wantPolicy:   SchemaPolicySkip,
			wantRequired: []string{"No"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewParser(tt.logger, tt.config)

			assert.NotNil(t, p.logger)
			assert.Equal(t, tt.wantPolicy, p.config.SchemaPolicy)
			assert.Equal(t, tt.wantRequired, p.config.RequiredColumns)
		})
	}
}

func TestParser_Parse_Wheat(t *testing.T) {
	ds, err := ParseXML(testutil.WheatWorkbook().Bytes())
	require.NoError(t, err)

	assert.Equal(t, 5, ds.Len())
	assert.Equal(t, []string{"Wheat"}, ds.Products())
	assert.Equal(t, []domain.LampKey{{ID: "LampA"}, {ID: "LampB"}}, ds.LampKeys())
	assert.Equal(t, []string{"H", "PB"}, ds.Parameters())
	assert.Equal(t, "SN-001", ds.SensorSerial())

	all := collect(ds.All())
	first := all[0]
	assert.Equal(t, "Wheat", first.Product)
	assert.Equal(t, 1, first.SequenceNo)
	assert.Equal(t, "LampA", first.SampleID)
	assert.Equal(t, "", first.Note)
	assert.Equal(t, "M1", first.Method)
	assert.Equal(t, domain.Number(10), first.Parameters["H"])
	assert.Equal(t, 2, first.Row)

	third := all[2]
	assert.True(t, third.Parameters["H"].IsMissing())
	assert.Contains(t, third.Parameters, "H")
}

func TestParser_Parse_HeaderOnly(t *testing.T) {
	ds, err := ParseXML(testutil.NewWorkbook().
		Sheet("Wheat").Row(testutil.StandardHeader("H")...).
		Bytes())
	require.NoError(t, err)

	assert.Equal(t, 0, ds.Len())
	assert.Empty(t, ds.Products())
	assert.Empty(t, ds.LampKeys())
	assert.Empty(t, ds.Parameters())
}

func TestParser_Parse_Errors(t *testing.T) {
	tests := []struct {
		name     string
		data     string
		wantType apperrors.ErrorType
	}{
		{
			name:     "unclosed tag",
			data:     `<Workbook><Worksheet ss:Name="Wheat" xmlns:ss="x"><Table><Row>`,
			wantType: apperrors.ErrTypeParsing,
		},
		{
			name:     "mismatched tag",
			data:     "<Workbook>\n<Worksheet>\n</Table>\n</Workbook>",
			wantType: apperrors.ErrTypeParsing,
		},
		{
			name:     "trailing garbage after root",
			data:     `<Workbook></Workbook><oops`,
			wantType: apperrors.ErrTypeParsing,
		},
		{
			name:     "empty input",
			data:     "",
			wantType: apperrors.ErrTypeParsing,
		},
		{
			name:     "not XML",
			data:     "No,ID,Note\n1,A,x\n",
			wantType: apperrors.ErrTypeParsing,
		},
		{
			name:     "invalid cell index",
			data:     `<Workbook><Worksheet><Table><Row><Cell ss:Index="two" xmlns:ss="x"/></Row></Table></Worksheet></Workbook>`,
			wantType: apperrors.ErrTypeParsing,
		},
		{
			name:     "no worksheets",
			data:     `<?xml version="1.0"?><Workbook xmlns="` + testutil.SpreadsheetNS + `"></Workbook>`,
			wantType: apperrors.ErrTypeEmptyDocument,
		},
		{
			name: "only excluded worksheets",
			data: string(testutil.NewWorkbook().
				Sheet("Espectros").Row("1", "2", "3").
				Sheet("summary").Row("x").
				Bytes()),
			wantType: apperrors.ErrTypeEmptyDocument,
		},
		{
			name: "missing required column",
			data: string(testutil.NewWorkbook().
				Sheet("Wheat").
				Row("No", "ID", "Product", "Method", "H").
				Row("1", "A", "Wheat", "M1", "10").
				Bytes()),
			wantType: apperrors.ErrTypeSchema,
		},
		{
			name: "no header row",
			data: string(testutil.NewWorkbook().
				Sheet("Wheat").
				Row("1", "A", "", "M1", "10").
				Bytes()),
			wantType: apperrors.ErrTypeSchema,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ds, err := ParseXML([]byte(tt.data))

			require.Error(t, err)
			assert.Nil(t, ds)
			assert.Equal(t, tt.wantType, apperrors.TypeOf(err))
		})
	}
}

func TestParser_Parse_ParseErrorLine(t *testing.T) {
	data := "<Workbook>\n<Worksheet>\n<Table>\n</Row>\n</Workbook>\n"

	_, err := ParseXML([]byte(data))
	require.Error(t, err)

	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperrors.ErrTypeParsing, appErr.Type)
	assert.Equal(t, 4, appErr.Context[apperrors.ContextLine])
}

func TestParser_Parse_SchemaErrorContext(t *testing.T) {
	data := testutil.NewWorkbook().
		Sheet("Barley").
		Row("No", "ID", "Product").
		Row("1", "A", "Barley").
		Bytes()

	_, err := ParseXML(data)
	require.Error(t, err)

	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "Barley", appErr.Context[apperrors.ContextWorksheet])
	assert.Equal(t, []string{"Note", "Method"}, appErr.Context[apperrors.ContextColumns])
	assert.Equal(t, 1, appErr.Context[apperrors.ContextRow])
}

func TestParser_Parse_SchemaPolicySkip(t *testing.T) {
	logger, logs := testutil.NewTestLogger(t)
	cfg := DefaultParserConfig()
	cfg.SchemaPolicy = SchemaPolicySkip
	parser := NewParser(logger, cfg)

	data := testutil.WheatWorkbook().
		Sheet("Broken").
		Row("No", "ID", "Product", "H").
		Row("1", "A", "Broken", "3").
		Bytes()

	result, err := parser.Parse(context.Background(), data)
	require.NoError(t, err)

	assert.Equal(t, 5, result.Dataset.Len())
	require.Len(t, result.Skipped, 1)
	assert.Equal(t, "Broken", result.Skipped[0].Name)
	assert.True(t, apperrors.IsSchemaError(result.Skipped[0].Reason))
	testutil.AssertLogContains(t, logs, slog.LevelWarn, "skipping worksheet with invalid schema")

	_, err = parser.Parse(context.Background(), testutil.NewWorkbook().
		Sheet("Broken").Row("No", "ID").Row("1", "A").Bytes())
	assert.True(t, apperrors.IsEmptyDocumentError(err))
}

func TestParser_Parse_CellCoercion(t *testing.T) {
	data := testutil.NewWorkbook().
		Sheet("Corn").
		Row(testutil.StandardHeader("H", "PB", "GB", "FB", "AL")...).
		Row("1", "L1", "n", "Corn", "M", "", " 11.5 ", "n/a", "NaN", "Inf", "1e2").
		Bytes()

	ds, err := ParseXML(data)
	require.NoError(t, err)
	require.Equal(t, 1, ds.Len())

	m := collect(ds.All())[0]
	assert.Equal(t, domain.Number(11.5), m.Parameters["H"])
	assert.True(t, m.Parameters["PB"].IsMissing())
	assert.True(t, m.Parameters["GB"].IsMissing())
	assert.True(t, m.Parameters["FB"].IsMissing())
	assert.Equal(t, domain.Number(100), m.Parameters["AL"])
	assert.Equal(t, "", ds.SensorSerial())
}

func TestParser_Parse_Layout(t *testing.T) {
	t.Run("sparse cells with ss:Index", func(t *testing.T) {
		data := testutil.NewWorkbook().
			Sheet("Soy").
			IndexedRow(map[int]string{1: "No", 2: "ID", 3: "Note", 5: "Method", 7: "H"}).
			IndexedRow(map[int]string{1: "1", 2: "A", 5: "M1", 7: "8.5"}).
			Bytes()

		ds, err := ParseXML(data)
		require.NoError(t, err)

		m := collect(ds.All())[0]
		assert.Equal(t, domain.LampKey{ID: "A"}, m.Lamp())
		assert.Equal(t, "M1", m.Method)
		assert.Equal(t, domain.Number(8.5), m.Parameters["H"])
		assert.Equal(t, []string{"H"}, ds.Parameters())
	})

	t.Run("preamble rows, hash header and footer", func(t *testing.T) {
		data := testutil.NewWorkbook().
			Sheet("Oats").
			Row("Instrument report").
			Row("Date", "2024-05-01").
			Row("#", "ID", "Note", "Product", "Method", "H").
			Row("1", "A", "x", "Oats", "M", "1").
			Row("").
			Row("not a number", "A", "x", "Oats", "M", "100").
			Row("2", "A", "x", "Oats", "M", "3").
			Row("", "Std.Dev.", "", "", "", "1.4").
			Row("3", "A", "x", "Oats", "M", "999").
			Bytes()

		ds, err := ParseXML(data)
		require.NoError(t, err)

		ms := collect(ds.All())
		require.Len(t, ms, 2)
		assert.Equal(t, 1, ms[0].SequenceNo)
		assert.Equal(t, 2, ms[1].SequenceNo)
		assert.Equal(t, 7, ms[1].Row)
	})

	t.Run("merged cells shift following columns", func(t *testing.T) {
		data := testutil.NewWorkbook().
			Sheet("Rye").
			Row(testutil.StandardHeader("H")...).
			RawRow(`<Row><Cell><Data ss:Type="Number">1</Data></Cell><Cell ss:MergeAcross="1"><Data ss:Type="String">A</Data></Cell><Cell><Data ss:Type="String">Rye</Data></Cell><Cell><Data ss:Type="String">M</Data></Cell><Cell/><Cell><Data ss:Type="Number">4</Data></Cell></Row>`).
			Bytes()

		ds, err := ParseXML(data)
		require.NoError(t, err)

		m := collect(ds.All())[0]
		assert.Equal(t, "A", m.SampleID)
		assert.Equal(t, "", m.Note)
		assert.Equal(t, "M", m.Method)
		assert.Equal(t, domain.Number(4), m.Parameters["H"])
	})

	t.Run("rich text data", func(t *testing.T) {
		data := testutil.NewWorkbook().
			Sheet("Rice").
			Row(testutil.StandardHeader("H")...).
			RawRow(`<Row><Cell><Data ss:Type="Number">1</Data></Cell><Cell><ss:Data ss:Type="String" xmlns="http://www.w3.org/TR/REC-html40"><B>La</B>mp<Font>A</Font></ss:Data></Cell><Cell/><Cell/><Cell><Data ss:Type="String">M</Data></Cell><Cell/><Cell><Data ss:Type="Number">2</Data></Cell></Row>`).
			Bytes()

		ds, err := ParseXML(data)
		require.NoError(t, err)
		assert.Equal(t, "LampA", collect(ds.All())[0].SampleID)
	})

	t.Run("unnamed worksheet takes product column", func(t *testing.T) {
		data := testutil.NewWorkbook().
			UnnamedSheet().
			Row(testutil.StandardHeader("H")...).
			Row("1", "A", "", "Barley", "M", "", "2").
			Row("2", "A", "", "", "M", "", "3").
			Bytes()

		ds, err := ParseXML(data)
		require.NoError(t, err)
		assert.Equal(t, []string{"Barley", "Sheet1"}, ds.Products())
	})

	t.Run("excluded names ignore case and padding", func(t *testing.T) {
		data := testutil.WheatWorkbook().
			Sheet(" ESPECTROS ").Row("garbage").
			Bytes()

		ds, err := ParseXML(data)
		require.NoError(t, err)
		assert.Equal(t, []string{"Wheat"}, ds.Products())
	})
}

func TestParser_Parse_Charset(t *testing.T) {
	doc := `<?xml version="1.0" encoding="ISO-8859-1"?>
<Workbook xmlns="urn:schemas-microsoft-com:office:spreadsheet" xmlns:ss="urn:schemas-microsoft-com:office:spreadsheet">
<Worksheet ss:Name="Trigo"><Table>
<Row><Cell><Data ss:Type="String">No</Data></Cell><Cell><Data ss:Type="String">ID</Data></Cell><Cell><Data ss:Type="String">Note</Data></Cell><Cell><Data ss:Type="String">Method</Data></Cell><Cell><Data ss:Type="String">Prote` + "\xed" + `na</Data></Cell></Row>
<Row><Cell><Data ss:Type="Number">1</Data></Cell><Cell><Data ss:Type="String">L` + "\xe1" + `mpara</Data></Cell><Cell/><Cell><Data ss:Type="String">M</Data></Cell><Cell><Data ss:Type="Number">12.5</Data></Cell></Row>
</Table></Worksheet></Workbook>`

	ds, err := ParseXML([]byte(doc))
	require.NoError(t, err)

	assert.Equal(t, []string{"Proteína"}, ds.Parameters())
	assert.Equal(t, []domain.LampKey{{ID: "Lámpara"}}, ds.LampKeys())
}

func TestParser_Parse_MultipleWorksheets(t *testing.T) {
	data := testutil.WheatWorkbook().
		Sheet("Corn").
		Row(testutil.StandardHeader("PB", "H", "ALM")...).
		Row("1", "LampA", "", "Corn", "M1", "SN-002", "8", "13", "60").
		Row("2", "", "", "Corn", "M1", "SN-002", "8.2", "", "61").
		Row("3", "", "", "Corn", "M1", "SN-002", "8.4", "", "").
		Sheet("Summary").
		Row(testutil.StandardHeader("H")...).
		Row("1", "X", "", "", "M1", "", "1").
		Bytes()

	ds, err := ParseXML(data)
	require.NoError(t, err)

	assert.Equal(t, 8, ds.Len())
	assert.Equal(t, []string{"Wheat", "Corn"}, ds.Products())
	assert.LessOrEqual(t, len(ds.Products()), 3)
	assert.Equal(t, []string{"H", "PB", "ALM"}, ds.Parameters())
	assert.Empty(t, ds.ParametersForProduct("Rice"))
	assert.Equal(t, []string{"H", "PB", "ALM"}, ds.ParametersForProduct("Corn"))
	assert.Equal(t, "SN-001", ds.SensorSerial())

	blank := collect(ds.MeasurementsForLamp(domain.LampKey{}))
	assert.Len(t, blank, 2)
	assert.Equal(t, []domain.LampKey{{ID: "LampA"}, {}}, ds.LampKeysForProduct("Corn"))
}

func TestParser_Parse_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewParser(nil, DefaultParserConfig()).Parse(ctx, testutil.WheatWorkbook().Bytes())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestParser_ParseFile(t *testing.T) {
	path := testutil.WheatWorkbook().WriteFile(t, "wheat.xml")

	result, err := NewParser(nil, DefaultParserConfig()).ParseFile(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, path, result.Dataset.Name())

	_, err = NewParser(nil, DefaultParserConfig()).ParseFile(context.Background(), path+".missing")
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "failed to read file"))
}

func TestParser_ParseReader(t *testing.T) {
	data := testutil.WheatWorkbook().Bytes()

	result, err := NewParser(nil, DefaultParserConfig()).ParseReader(context.Background(), "upload.xml", bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, "upload.xml", result.Dataset.Name())
	assert.Equal(t, 5, result.Dataset.Len())

	_, err = NewParser(nil, DefaultParserConfig()).ParseReader(context.Background(), "bad.xml", strings.NewReader("<Workbook>"))
	require.Error(t, err)
	assert.True(t, apperrors.IsParseError(err))
}

func TestCoerceValue(t *testing.T) {
	tests := []struct {
		in   string
		want domain.Value
	}{
		{in: "12.5", want: domain.Number(12.5)},
		{in: " -3 ", want: domain.Number(-3)},
		{in: "0", want: domain.Number(0)},
		{in: "", want: domain.Missing()},
		{in: "   ", want: domain.Missing()},
		{in: "abc", want: domain.Missing()},
		{in: "12,5", want: domain.Missing()},
		{in: "NaN", want: domain.Missing()},
		{in: "-Inf", want: domain.Missing()},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, CoerceValue(tt.in))
		})
	}
}
