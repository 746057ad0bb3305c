package validation

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/miquelpairo/predictionsreport/internal/errors"
	"github.com/miquelpairo/predictionsreport/internal/shared/testutil"
)

func TestFileValidator_ValidateExportFile(t *testing.T) {
	tests := []struct {
		name          string
		setup         func(t *testing.T) string
		maxBytes      int64
		wantErr       bool
		errorContains string
	}{
		{
			name: "valid export",
			setup: func(t *testing.T) string {
				return testutil.WheatWorkbook().WriteFile(t, "wheat.xml")
			},
		},
		{
			name: "xls extension",
			setup: func(t *testing.T) string {
				return testutil.WheatWorkbook().WriteFile(t, "wheat.XLS")
			},
		},
		{
			name: "missing file",
			setup: func(t *testing.T) string {
				return filepath.Join(t.TempDir(), "nope.xml")
			},
			wantErr:       true,
			errorContains: "does not exist",
		},
		{
			name: "directory",
			setup: func(t *testing.T) string {
				dir := filepath.Join(t.TempDir(), "dir.xml")
				require.NoError(t, os.Mkdir(dir, 0o755))
				return dir
			},
			wantErr:       true,
			errorContains: "is a directory",
		},
		{
			name: "wrong extension",
			setup: func(t *testing.T) string {
				return testutil.WheatWorkbook().WriteFile(t, "wheat.csv")
			},
			wantErr:       true,
			errorContains: "not an XML export",
		},
		{
			name: "temporary office file",
			setup: func(t *testing.T) string {
				return testutil.WheatWorkbook().WriteFile(t, "~$wheat.xml")
			},
			wantErr:       true,
			errorContains: "temporary",
		},
		{
			name: "too large",
			setup: func(t *testing.T) string {
				return testutil.WheatWorkbook().WriteFile(t, "wheat.xml")
			},
			maxBytes:      10,
			wantErr:       true,
			errorContains: "allowed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, _ := testutil.NewTestLogger(t)
			v := NewFileValidator(logger, tt.maxBytes)

			path := tt.setup(t)
			err := v.ValidateExportFile(path)
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}

			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errorContains)
			assert.True(t, apperrors.IsType(err, apperrors.ErrTypeValidation))
		})
	}
}

func TestFileValidator_ValidateOutputFile(t *testing.T) {
	v := NewFileValidator(nil, 0)

	t.Run("creates missing directories", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "reports", "2024", "wheat.txt")
		require.NoError(t, v.ValidateOutputFile(path))

		info, err := os.Stat(filepath.Dir(path))
		require.NoError(t, err)
		assert.True(t, info.IsDir())

		entries, err := os.ReadDir(filepath.Dir(path))
		require.NoError(t, err)
		assert.Empty(t, entries, "the write probe is removed")
	})

	t.Run("rejects a directory", func(t *testing.T) {
		err := v.ValidateOutputFile(t.TempDir())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "is a directory")
	})
}
