package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "predictions.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "127.0.0.1:8080", cfg.Server.Address())
	assert.Equal(t, int64(32<<20), cfg.Server.MaxUploadBytes)
	assert.True(t, cfg.Server.RateLimit.Enabled)

	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, "stderr", cfg.Logging.Output)

	assert.Equal(t, []string{"Espectros", "Summary"}, cfg.Analysis.ExcludedSheets)
	assert.Equal(t, []string{"No", "ID", "Note", "Method"}, cfg.Analysis.RequiredColumns)
	assert.Equal(t, "b", cfg.Analysis.Baseline)
	assert.False(t, cfg.Analysis.SkipInvalidSheets)

	assert.Equal(t, 3, cfg.Report.Decimals)
	assert.Equal(t, 100, cfg.Report.Width)

	assert.Equal(t, AppName, cfg.Telemetry.ServiceName)
	assert.Equal(t, 32, cfg.Store.MaxDatasets)
	assert.Equal(t, time.Hour, cfg.Store.TTL)

	require.NoError(t, cfg.Validate())
}

func TestLoad(t *testing.T) {
	tests := []struct {
		name        string
		file        string
		env         map[string]string
		wantErr     string
		validateCfg func(*testing.T, *Config)
	}{
		{
			name: "file overrides defaults",
			file: `
server:
  port: 9090
  read_timeout: 5s
analysis:
  excluded_sheets: [Espectros]
  baseline: a
report:
  decimals: 2
`,
			validateCfg: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 9090, cfg.Server.Port)
				assert.Equal(t, 5*time.Second, cfg.Server.ReadTimeout)
				assert.Equal(t, 30*time.Second, cfg.Server.WriteTimeout, "untouched keys keep defaults")
				assert.Equal(t, []string{"Espectros"}, cfg.Analysis.ExcludedSheets)
				assert.Equal(t, "a", cfg.Analysis.Baseline)
				assert.Equal(t, 2, cfg.Report.Decimals)
				assert.Equal(t, 100, cfg.Report.Width)
			},
		},
		{
			name: "environment overrides file",
			file: "server:\n  port: 9090\n",
			env: map[string]string{
				"NIR_SERVER_PORT":                  "7070",
				"NIR_LOGGING_LEVEL":                "debug",
				"NIR_ANALYSIS_EXCLUDED_SHEETS":     "A,B",
				"NIR_ANALYSIS_SKIP_INVALID_SHEETS": "true",
				"NIR_SERVER_RATE_LIMIT_RPS":        "2.5",
				"NIR_STORE_TTL":                    "10m",
			},
			validateCfg: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 7070, cfg.Server.Port)
				assert.Equal(t, "debug", cfg.Logging.Level)
				assert.Equal(t, []string{"A", "B"}, cfg.Analysis.ExcludedSheets)
				assert.True(t, cfg.Analysis.SkipInvalidSheets)
				assert.Equal(t, 2.5, cfg.Server.RateLimit.RPS)
				assert.Equal(t, 10*time.Minute, cfg.Store.TTL)
			},
		},
		{
			name:    "unknown key",
			file:    "server:\n  prot: 1\n",
			wantErr: "failed to load config from file",
		},
		{
			name:    "malformed yaml",
			file:    "server: [",
			wantErr: "failed to load config from file",
		},
		{
			name:    "invalid value",
			file:    "logging:\n  level: verbose\n",
			wantErr: `Logging.Level failed on "oneof"`,
		},
		{
			name:    "invalid env value",
			env:     map[string]string{"NIR_SERVER_PORT": "eighty"},
			wantErr: "failed to load config from env",
		},
		{
			name:    "file output needs a path",
			file:    "logging:\n  output: file\n  file_path: \"\"\n",
			wantErr: `Logging.FilePath failed on "required_if"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			path := writeConfig(t, tt.file)

			cfg, err := Load(path)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				assert.Nil(t, cfg)
				return
			}

			require.NoError(t, err)
			tt.validateCfg(t, cfg)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestValidate_ReportsEveryField(t *testing.T) {
	cfg := Default()
	cfg.Server.Port = 0
	cfg.Store.MaxDatasets = 0
	cfg.Report.Width = 10

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Server.Port")
	assert.Contains(t, err.Error(), "Store.MaxDatasets")
	assert.Contains(t, err.Error(), "Report.Width")
}
