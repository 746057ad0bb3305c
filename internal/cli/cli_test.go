package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/miquelpairo/predictionsreport/internal/errors"
	"github.com/miquelpairo/predictionsreport/internal/services"
	"github.com/miquelpairo/predictionsreport/internal/shared/testutil"
	"github.com/miquelpairo/predictionsreport/pkg/contracts"
	"github.com/miquelpairo/predictionsreport/pkg/contracts/domain"
)

func executeCommand(t *testing.T, args ...string) (stdout, stderr string, err error) {
	t.Helper()

	var out, errOut bytes.Buffer
	cmd := NewRootCommand()
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)

	err = cmd.Execute()
	return out.String(), errOut.String(), err
}

func wheatFile(t *testing.T) string {
	t.Helper()
	return testutil.WheatWorkbook().WriteFile(t, "wheat.xml")
}

func TestInspect_Text(t *testing.T) {
	out, _, err := executeCommand(t, "inspect", wheatFile(t))
	require.NoError(t, err)

	for _, want := range []string{
		"Source:        wheat.xml\n",
		"Sensor serial: SN-001\n",
		"Measurements:  5\n",
		"Parameters:    H, PB\n",
		"Products (1):\n  Wheat\n    - LampA|\n    - LampB|\n",
	} {
		assert.Contains(t, out, want)
	}
	assert.NotContains(t, out, "Skipped worksheets")
}

func TestInspect_JSON(t *testing.T) {
	out, _, err := executeCommand(t, "inspect", wheatFile(t), "--format", "json")
	require.NoError(t, err)

	var summary services.DatasetSummary
	require.NoError(t, json.Unmarshal([]byte(out), &summary))
	assert.Equal(t, "wheat.xml", summary.Name)
	assert.Equal(t, 5, summary.Measurements)
	assert.Equal(t, []string{"Wheat"}, summary.Products)
	assert.Equal(t, []string{"H", "PB"}, summary.Parameters)
	assert.Equal(t, []domain.LampKey{{ID: "LampA"}, {ID: "LampB"}}, summary.LampsByProduct["Wheat"])
	assert.Empty(t, summary.ID, "inspected files are not stored")
}

func TestInspect_YAML(t *testing.T) {
	out, _, err := executeCommand(t, "inspect", wheatFile(t), "-f", "yaml")
	require.NoError(t, err)
	assert.Contains(t, out, "name: wheat.xml\n")
	assert.Contains(t, out, "sensor_serial: SN-001\n")
}

func TestInspect_Directory(t *testing.T) {
	dir := t.TempDir()
	older := filepath.Join(dir, "barley.xml")
	require.NoError(t, os.WriteFile(older, testutil.NewWorkbook().
		Sheet("Barley").
		Row(testutil.StandardHeader("H")...).
		Row("1", "LampA", "", "Barley", "M1", "SN-002", "9").
		Bytes(), 0o644))
	past := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(older, past, past))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "wheat.xml"), testutil.WheatWorkbook().Bytes(), 0o644))

	out, _, err := executeCommand(t, "inspect", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "Source:        wheat.xml\n")

	_, _, err = executeCommand(t, "inspect", t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no instrument exports")
}

func TestInspect_SkipInvalid(t *testing.T) {
	path := testutil.WheatWorkbook().
		Sheet("Broken").
		Row("No", "ID", "Note", "H").
		Row("1", "LampA", "", "10").
		WriteFile(t, "mixed.xml")

	_, _, err := executeCommand(t, "inspect", path)
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeSchema))

	out, stderr, err := executeCommand(t, "inspect", path, "--skip-invalid")
	require.NoError(t, err)
	assert.Contains(t, out, "Skipped worksheets (1):\n  Broken: ")
	assert.Contains(t, stderr, "worksheet skipped")
}

func TestInspect_Errors(t *testing.T) {
	dir := t.TempDir()
	malformed := filepath.Join(dir, "malformed.xml")
	require.NoError(t, os.WriteFile(malformed, []byte("<Workbook><Worksheet>"), 0o644))

	tests := []struct {
		name     string
		args     []string
		wantType apperrors.ErrorType
		wantMsg  string
	}{
		{
			name:     "missing file",
			args:     []string{"inspect", filepath.Join(dir, "missing.xml")},
			wantType: apperrors.ErrTypeValidation,
		},
		{
			name:     "wrong extension",
			args:     []string{"inspect", filepath.Join(dir, "notes.txt")},
			wantType: apperrors.ErrTypeValidation,
		},
		{
			name:     "malformed xml",
			args:     []string{"inspect", malformed},
			wantType: apperrors.ErrTypeParsing,
		},
		{
			name:    "invalid format",
			args:    []string{"inspect", malformed, "--format", "toml"},
			wantMsg: `invalid format "toml"`,
		},
		{
			name:    "no file",
			args:    []string{"inspect"},
			wantMsg: "accepts 1 arg(s)",
		},
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := executeCommand(t, tt.args...)
			require.Error(t, err)
			if tt.wantType != "" {
				assert.True(t, apperrors.IsType(err, tt.wantType), "got %v", err)
			}
			if tt.wantMsg != "" {
				assert.Contains(t, err.Error(), tt.wantMsg)
			}
		})
	}
}

func TestReport_TextToStdout(t *testing.T) {
	out, _, err := executeCommand(t, "report", wheatFile(t))
	require.NoError(t, err)

	assert.Contains(t, out, "Source file: wheat.xml\n")
	assert.Contains(t, out, "NIR sensor:  SN-001\n")
	assert.Contains(t, out, "PRODUCT: WHEAT")
	assert.Contains(t, out, "DIFFERENCES:")
}

func TestReport_PairJSON(t *testing.T) {
	out, _, err := executeCommand(t, "report", wheatFile(t),
		"--lamp-a", "LampA|", "--lamp-b", "LampB|", "--param", "H", "--format", "json")
	require.NoError(t, err)

	var result services.AnalysisResult
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Equal(t, "wheat.xml", result.Source)
	assert.Equal(t, []string{"H"}, result.Selection.Parameters)
	assert.Len(t, result.Statistics, 2)

	assert.Equal(t, services.ModePair, result.Comparison.Mode)
	require.Len(t, result.Comparison.Differences, 1)
	diff := result.Comparison.Differences[0]
	assert.Equal(t, "H", diff.Parameter)
	assert.InDelta(t, 1.0, diff.Difference, 1e-9)
	assert.Equal(t, domain.BaselineB, diff.Baseline)
	percent, ok := diff.Percent.Float64()
	require.True(t, ok)
	assert.InDelta(t, 10.0, percent, 1e-9)
}

func TestReport_BaselineLampYAML(t *testing.T) {
	out, _, err := executeCommand(t, "report", wheatFile(t),
		"--baseline-lamp", "LampB|", "--param", "H", "--format", "yaml")
	require.NoError(t, err)

	assert.Contains(t, out, "mode: baseline\n")
	assert.Contains(t, out, "baseline_lamp: LampB|\n")
	assert.Contains(t, out, "lamp_a: LampA|\n")
}

func TestReport_WritesFiles(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	reportPath := filepath.Join(dir, "report.txt")
	csvPath := filepath.Join(dir, "differences.csv")
	xlsxPath := filepath.Join(dir, "report.xlsx")

	out, _, err := executeCommand(t, "report", wheatFile(t),
		"--lamp-a", "LampA|", "--lamp-b", "LampB|",
		"--out", reportPath,
		"--csv", csvPath, "--csv-table", "differences",
		"--xlsx", xlsxPath)
	require.NoError(t, err)
	assert.Empty(t, out, "report goes to --out")

	report, err := os.ReadFile(reportPath)
	require.NoError(t, err)
	assert.Contains(t, string(report), "Source file: wheat.xml")

	csv, err := os.ReadFile(csvPath)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(csv)), "\n")
	assert.Len(t, lines, 3, "header plus H and PB")

	xlsx, err := os.ReadFile(xlsxPath)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(xlsx, []byte("PK")))
}

func TestReport_Errors(t *testing.T) {
	path := testutil.WheatWorkbook().WriteFile(t, "wheat.xml")

	tests := []struct {
		name     string
		args     []string
		wantIs   error
		wantType apperrors.ErrorType
		wantMsg  string
	}{
		{
			name:   "incomplete pair",
			args:   []string{"report", path, "--lamp-a", "LampA|"},
			wantIs: services.ErrIncompletePair,
		},
		{
			name:    "pair and baseline lamp",
			args:    []string{"report", path, "--lamp-a", "LampA|", "--lamp-b", "LampB|", "--baseline-lamp", "LampA|"},
			wantMsg: "none of the others can be",
		},
		{
			name:   "invalid baseline side",
			args:   []string{"report", path, "--baseline", "c"},
			wantIs: services.ErrInvalidInput,
		},
		{
			name:    "invalid csv table",
			args:    []string{"report", path, "--csv-table", "lamps"},
			wantMsg: `invalid CSV table "lamps"`,
		},
		{
			name:     "output is a directory",
			args:     []string{"report", path, "--out", t.TempDir()},
			wantType: apperrors.ErrTypeValidation,
		},
		{
			name:    "invalid log level",
			args:    []string{"report", path, "--log-level", "loud"},
			wantMsg: "Logging.Level",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := executeCommand(t, tt.args...)
			require.Error(t, err)
			if tt.wantIs != nil {
				assert.ErrorIs(t, err, tt.wantIs)
			}
			if tt.wantType != "" {
				assert.True(t, apperrors.IsType(err, tt.wantType), "got %v", err)
			}
			if tt.wantMsg != "" {
				assert.Contains(t, err.Error(), tt.wantMsg)
			}
		})
	}
}

func TestVersion(t *testing.T) {
	tests := []struct {
		name  string
		args  []string
		check func(t *testing.T, out string)
	}{
		{
			name: "text",
			args: []string{"version"},
			check: func(t *testing.T, out string) {
				assert.Equal(t, contracts.GetFullVersionString()+"\n", out)
			},
		},
		{
			name: "json",
			args: []string{"version", "--format", "json"},
			check: func(t *testing.T, out string) {
				var info contracts.VersionInfo
				require.NoError(t, json.Unmarshal([]byte(out), &info))
				assert.Equal(t, contracts.Version, info.Version)
				assert.Equal(t, contracts.APIVersion, info.APIVersion)
			},
		},
		{
			name: "yaml",
			args: []string{"version", "-f", "yaml"},
			check: func(t *testing.T, out string) {
				assert.Contains(t, out, "version: "+contracts.Version+"\n")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, _, err := executeCommand(t, tt.args...)
			require.NoError(t, err)
			tt.check(t, out)
		})
	}
}

func TestRoot_UnknownCommand(t *testing.T) {
	_, _, err := executeCommand(t, "compare")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown command "compare"`)
}

func TestServe_InvalidPort(t *testing.T) {
	_, _, err := executeCommand(t, "serve", "--port", "70000")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Server.Port")
}
