package security

import (
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/miquelpairo/predictionsreport/internal/shared/testutil"
)

func TestInputValidator_ValidateFileName(t *testing.T) {
	tests := []struct {
		name        string
		input       string
		wantValid   bool
		wantValue   string
		wantThreats []string
	}{
		{name: "plain", input: "wheat.xml", wantValid: true, wantValue: "wheat.xml", wantThreats: []string{}},
		{name: "empty", input: "", wantValid: true, wantValue: "", wantThreats: []string{}},
		{name: "spaces trimmed", input: "  wheat run 2.xml ", wantValid: true, wantValue: "wheat run 2.xml", wantThreats: []string{}},
		{name: "client directory", input: `C:\exports\wheat.xls`, wantValid: true, wantValue: "wheat.xls", wantThreats: []string{}},
		{
			name:        "traversal",
			input:       "../../etc/wheat.xml",
			wantValid:   true,
			wantValue:   "wheat.xml",
			wantThreats: []string{string(ThreatPathTraversal)},
		},
		{
			name:        "absolute path",
			input:       "/etc/passwd",
			wantValid:   true,
			wantValue:   "passwd",
			wantThreats: []string{string(ThreatPathTraversal)},
		},
		{
			name:        "control characters",
			input:       "wheat\r\n\x00.xml",
			wantValid:   true,
			wantValue:   "wheat.xml",
			wantThreats: []string{string(ThreatControlChars)},
		},
		{
			name:        "only dots",
			input:       "..",
			wantValid:   true,
			wantValue:   "",
			wantThreats: []string{},
		},
		{
			name:        "invalid utf-8",
			input:       "wheat\xff.xml",
			wantValid:   false,
			wantThreats: []string{string(ThreatMalformedInput)},
		},
		{
			name:        "too long",
			input:       strings.Repeat("a", DefaultMaxNameLength+1),
			wantValid:   false,
			wantThreats: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := NewInputValidator(nil, 0)
			result := v.ValidateFileName(context.Background(), tt.input)

			assert.Equal(t, tt.wantValid, result.IsValid)
			assert.Equal(t, tt.wantThreats, result.ThreatTypes)
			assert.Equal(t, "file_name", result.InputType)
			if tt.wantValid {
				assert.Equal(t, tt.wantValue, result.SanitizedValue)
				assert.Empty(t, result.Errors)
			} else {
				assert.NotEmpty(t, result.Errors)
			}
		})
	}
}

func TestInputValidator_LogsSuspiciousInput(t *testing.T) {
	logger, handler := testutil.NewTestLogger(t)
	v := NewInputValidator(logger, 16)

	v.ValidateFileName(context.Background(), "wheat.xml")
	assert.Equal(t, 0, handler.Count())

	v.ValidateFileName(context.Background(), "../wheat.xml")
	testutil.AssertLogContains(t, handler, slog.LevelWarn, "suspicious input")
	testutil.AssertLogAttr(t, handler, "input_type", "file_name")

	result := v.ValidateFileName(context.Background(), "seventeen-chars.x")
	assert.False(t, result.IsValid)
}
