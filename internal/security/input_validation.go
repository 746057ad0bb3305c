package security

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"unicode"
	"unicode/utf8"
)

// DefaultMaxNameLength bounds client-supplied file names.
const DefaultMaxNameLength = 255

// ThreatType represents different types of suspicious input
type ThreatType string

const (
	ThreatPathTraversal  ThreatType = "path_traversal"
	ThreatControlChars   ThreatType = "control_characters"
	ThreatMalformedInput ThreatType = "malformed_input"
)

// ValidationResult represents the result of input validation
type ValidationResult struct {
	IsValid        bool     `json:"is_valid"`
	SanitizedValue string   `json:"sanitized_value"`
	Errors         []string `json:"errors"`
	ThreatTypes    []string `json:"threat_types"`
	InputType      string   `json:"input_type"`
}

// InputValidator sanitizes client-supplied strings before they are logged
// or echoed back in headers.
type InputValidator struct {
	logger        *slog.Logger
	maxNameLength int
}

// NewInputValidator creates a validator. maxNameLength <= 0 means
// DefaultMaxNameLength.
func NewInputValidator(logger *slog.Logger, maxNameLength int) *InputValidator {
	if logger == nil {
		logger = slog.Default()
	}
	if maxNameLength <= 0 {
		maxNameLength = DefaultMaxNameLength
	}
	return &InputValidator{
		logger:        logger.With(slog.String("component", "input_validator")),
		maxNameLength: maxNameLength,
	}
}

// ValidateFileName sanitizes the name a client gives an uploaded export.
// Directories are dropped, so "../../wheat.xml" becomes "wheat.xml", and
// control characters are removed. Names that are not UTF-8 or are longer
// than the limit are invalid. An empty name is valid and stays empty.
func (v *InputValidator) ValidateFileName(ctx context.Context, name string) *ValidationResult {
	result := &ValidationResult{
		InputType:   "file_name",
		Errors:      []string{},
		ThreatTypes: []string{},
	}

	if !utf8.ValidString(name) {
		result.Errors = append(result.Errors, "file name is not valid UTF-8")
		result.ThreatTypes = append(result.ThreatTypes, string(ThreatMalformedInput))
		v.logSuspiciousInput(ctx, result)
		return result
	}
	if len(name) > v.maxNameLength {
		result.Errors = append(result.Errors, fmt.Sprintf("file name exceeds maximum length of %d bytes", v.maxNameLength))
		return result
	}

	sanitized := removeControlCharacters(name)
	if sanitized != name {
		result.ThreatTypes = append(result.ThreatTypes, string(ThreatControlChars))
	}
	if containsPathTraversal(sanitized) {
		result.ThreatTypes = append(result.ThreatTypes, string(ThreatPathTraversal))
	}

	sanitized = baseName(strings.TrimSpace(sanitized))
	result.SanitizedValue = sanitized
	result.IsValid = true

	if len(result.ThreatTypes) > 0 {
		v.logSuspiciousInput(ctx, result)
	}
	return result
}

// baseName keeps the last element of a slash or backslash separated path.
func baseName(name string) string {
	if name == "" {
		return ""
	}
	base := path.Base(strings.ReplaceAll(name, `\`, "/"))
	switch base {
	case ".", "..", "/":
		return ""
	}
	return base
}

// removeControlCharacters removes null bytes and control characters
func removeControlCharacters(input string) string {
	var result strings.Builder
	for _, r := range input {
		if unicode.IsPrint(r) || r == ' ' {
			result.WriteRune(r)
		}
	}
	return result.String()
}

func containsPathTraversal(input string) bool {
	pathTraversalPatterns := []string{
		"../", `..\`, "..%2f", "..%5c", "%2e%2e%2f", "%2e%2e%5c",
	}

	lowerInput := strings.ToLower(input)
	for _, pattern := range pathTraversalPatterns {
		if strings.Contains(lowerInput, pattern) {
			return true
		}
	}
	return strings.HasPrefix(input, "/") || strings.HasPrefix(input, `\`)
}

func (v *InputValidator) logSuspiciousInput(ctx context.Context, result *ValidationResult) {
	v.logger.WarnContext(ctx, "suspicious input",
		slog.String("input_type", result.InputType),
		slog.Any("threat_types", result.ThreatTypes),
		slog.String("sanitized_value", result.SanitizedValue))
}
