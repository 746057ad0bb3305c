package exporter

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestWorkbookWriter_Write(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewWorkbookWriter(nil, 3).Write(&buf, ReportData{
		Stats:       sampleStats(),
		Differences: sampleDiffs(),
		Summaries:   sampleData().Summaries,
	}))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{SheetStatistics, SheetDifferences, SheetSummary}, f.GetSheetList())

	raw := excelize.Options{RawCellValue: true}

	stats, err := f.GetRows(SheetStatistics, raw)
	require.NoError(t, err)
	require.Len(t, stats, 4)
	assert.Equal(t, "Product", stats[0][0])
	assert.Equal(t, "Std. dev.", stats[0][7])
	assert.Equal(t, []string{"Wheat", "LampA", "", "H", "2", "3", "11", "1.4142135623730951", "10", "12", "11"}, stats[1])

	shown, err := f.GetCellValue(SheetStatistics, "H2")
	require.NoError(t, err)
	assert.Equal(t, "1.414", shown, "numbers are displayed with the configured decimals")

	sd, err := f.GetCellValue(SheetStatistics, "H4")
	require.NoError(t, err)
	assert.Empty(t, sd, "undefined std dev is an empty cell")

	diffs, err := f.GetRows(SheetDifferences, raw)
	require.NoError(t, err)
	require.Len(t, diffs, 3)
	assert.Equal(t, "Difference (A - B)", diffs[0][8])
	assert.Equal(t, "1", diffs[1][8])
	assert.Equal(t, "LampB", diffs[1][9])
	assert.Equal(t, []string{"Direction", "Assessment"}, diffs[0][11:])
	assert.Equal(t, []string{"↑", "Significant"}, diffs[1][11:])
	assert.Equal(t, "Unrated", diffs[2][12])

	summary, err := f.GetRows(SheetSummary, raw)
	require.NoError(t, err)
	require.Len(t, summary, 2)
	assert.Equal(t, []string{"Wheat", "H", "2", "10.5", "0.5", "1"}, summary[1])
}

func TestWorkbookWriter_WriteEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewWorkbookWriter(nil, 2).Write(&buf, ReportData{}))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(SheetDifferences)
	require.NoError(t, err)
	require.Len(t, rows, 1, "header only")
}
