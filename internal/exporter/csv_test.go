package exporter

import (
	"bytes"
	"encoding/csv"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/miquelpairo/predictionsreport/internal/shared/testutil"
	"github.com/miquelpairo/predictionsreport/pkg/contracts/domain"
)

func TestNewCSVWriter(t *testing.T) {
	writer := NewCSVWriter(nil, -1)

	assert.NotNil(t, writer)
	assert.NotNil(t, writer.logger)
	assert.Equal(t, 3, writer.decimals)
}

func TestCSVWriter_Write(t *testing.T) {
	tests := []struct {
		name     string
		options  WriteOptions
		validate func(t *testing.T, content []byte)
	}{
		{
			name: "basic write with headers",
			options: WriteOptions{
				Headers: []string{"Name", "Age", "City"},
				Records: [][]string{
					{"John", "25", "New York"},
					{"Jane", "30", "London"},
				},
			},
			validate: func(t *testing.T, content []byte) {
				lines := strings.Split(strings.TrimSpace(string(content)), "\n")
				assert.Len(t, lines, 3) // header + 2 records
				assert.Equal(t, "Name,Age,City", lines[0])
				assert.Equal(t, "John,25,New York", lines[1])
				assert.Equal(t, "Jane,30,London", lines[2])
			},
		},
		{
			name: "write with BOM prefix",
			options: WriteOptions{
				Headers:   []string{"Lamp", "Mean"},
				Records:   [][]string{{"LampA", "11.000"}},
				BOMPrefix: true,
			},
			validate: func(t *testing.T, content []byte) {
				assert.True(t, bytes.HasPrefix(content, utf8BOM))

				lines := strings.Split(strings.TrimSpace(string(content[3:])), "\n")
				assert.Equal(t, "Lamp,Mean", lines[0])
				assert.Equal(t, "LampA,11.000", lines[1])
			},
		},
		{
			name: "write without headers",
			options: WriteOptions{
				Records: [][]string{
					{"Data1", "Data2"},
					{"Data3", "Data4"},
				},
			},
			validate: func(t *testing.T, content []byte) {
				lines := strings.Split(strings.TrimSpace(string(content)), "\n")
				assert.Equal(t, []string{"Data1,Data2", "Data3,Data4"}, lines)
			},
		},
		{
			name: "quotes fields with separators",
			options: WriteOptions{
				Records: [][]string{{"Lamp, new", `say "hi"`}},
			},
			validate: func(t *testing.T, content []byte) {
				assert.Equal(t, "\"Lamp, new\",\"say \"\"hi\"\"\"\n", string(content))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, NewCSVWriter(nil, 3).Write(&buf, tt.options))
			tt.validate(t, buf.Bytes())
		})
	}
}

func TestCSVWriter_WriteLogs(t *testing.T) {
	logger, handler := testutil.NewTestLogger(t)
	writer := NewCSVWriter(logger, 3)

	var buf bytes.Buffer
	require.NoError(t, writer.Write(&buf, WriteOptions{
		Headers: []string{"a"},
		Records: [][]string{{"1"}, {"2"}},
	}))
	assert.Equal(t, "a\n1\n2\n", buf.String())

	testutil.AssertLogContains(t, handler, slog.LevelDebug, "Writing CSV table")
	testutil.AssertLogAttr(t, handler, "record_count", int64(2))
}

func readCSV(t *testing.T, writer *CSVWriter, opts WriteOptions) [][]string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, writer.Write(&buf, opts))

	records, err := csv.NewReader(bytes.NewReader(bytes.TrimPrefix(buf.Bytes(), utf8BOM))).ReadAll()
	require.NoError(t, err)
	return records
}

func TestCSVWriter_StatisticsTable(t *testing.T) {
	writer := NewCSVWriter(nil, 3)
	records := readCSV(t, writer, writer.StatisticsTable(sampleStats()))

	require.Len(t, records, 4)
	assert.Equal(t, []string{"product", "lamp_id", "lamp_note", "parameter", "count", "group_size", "mean", "std_dev", "min", "max", "median"}, records[0])
	assert.Equal(t, []string{"Wheat", "LampA", "", "H", "2", "3", "11.000", "1.414", "10.000", "12.000", "11.000"}, records[1])
	assert.Equal(t, []string{"Wheat", "LampB", "", "PB", "1", "2", "11.900", "", "11.900", "11.900", "11.900"}, records[3])
}

func TestCSVWriter_DifferencesTable(t *testing.T) {
	writer := NewCSVWriter(nil, 2)
	records := readCSV(t, writer, writer.DifferencesTable(sampleDiffs()))

	require.Len(t, records, 3)
	assert.Equal(t, "difference", records[0][10])
	assert.Equal(t, []string{"direction", "assessment"}, records[0][13:])
	assert.Equal(t, []string{"Wheat", "H", "LampA", "", "LampB", "", "11.00", "10.00", "2", "2", "1.00", "b", "10.00", "↑", "significant"}, records[1])
	assert.Equal(t, "", records[2][12], "undefined percent is an empty cell")
	assert.Equal(t, "unrated", records[2][14])
}

func TestCSVWriter_SummaryTable(t *testing.T) {
	writer := NewCSVWriter(nil, 1)
	records := readCSV(t, writer, writer.SummaryTable([]domain.ParameterSummary{
		{Product: "Wheat", Parameter: "H", Lamps: 2, Mean: 10.5, StdDev: 0.5, Range: 1},
	}))

	assert.Equal(t, [][]string{
		{"product", "parameter", "lamps", "mean", "std_dev", "range"},
		{"Wheat", "H", "2", "10.5", "0.5", "1.0"},
	}, records)
}
