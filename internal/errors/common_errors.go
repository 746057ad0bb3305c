package errors

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorType represents the type of error
type ErrorType string

const (
	ErrTypeParsing       ErrorType = "PARSING"
	ErrTypeEmptyDocument ErrorType = "EMPTY_DOCUMENT"
	ErrTypeSchema        ErrorType = "SCHEMA"
	ErrTypeStorage       ErrorType = "STORAGE"
	ErrTypeValidation    ErrorType = "VALIDATION"
	ErrTypeNotFound      ErrorType = "NOT_FOUND"
	ErrTypeConfig        ErrorType = "CONFIG"
)

// Context keys set by the ingest and file error constructors.
const (
	ContextWorksheet = "worksheet"
	ContextColumns   = "columns"
	ContextLine      = "line"
	ContextRow       = "row"
	ContextFile      = "file"
)

// AppError represents an application-specific error
type AppError struct {
	Type    ErrorType
	Message string
	Cause   error
	Context map[string]interface{}
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

// Unwrap allows errors.Is and errors.As to work with AppError
func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithContext adds context to the error
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// NewAppError creates a new application error
func NewAppError(errType ErrorType, message string, cause error) *AppError {
	return &AppError{
		Type:    errType,
		Message: message,
		Cause:   cause,
		Context: make(map[string]interface{}),
	}
}

// TypeOf returns the ErrorType of the first AppError in err's chain, or ""
// if there is none.
func TypeOf(err error) ErrorType {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Type
	}
	return ""
}

// IsType reports whether err's chain contains an AppError of the given type.
func IsType(err error, errType ErrorType) bool {
	return err != nil && TypeOf(err) == errType
}

// Helper functions for common error types

// NewParsingError creates a parsing-related error. line is the 1-based line
// of the input where decoding failed, or 0 when unknown.
func NewParsingError(message string, line int, cause error) *AppError {
	e := NewAppError(ErrTypeParsing, message, cause)
	if line > 0 {
		e.WithContext(ContextLine, line)
	}
	return e
}

// NewEmptyDocumentError reports a document with no usable worksheet.
func NewEmptyDocumentError(message string) *AppError {
	return NewAppError(ErrTypeEmptyDocument, message, nil)
}

// NewSchemaError reports a worksheet missing required columns.
func NewSchemaError(worksheet string, missing []string) *AppError {
	msg := fmt.Sprintf("worksheet %q is missing required column(s) %s", worksheet, strings.Join(missing, ", "))
	return NewAppError(ErrTypeSchema, msg, nil).
		WithContext(ContextWorksheet, worksheet).
		WithContext(ContextColumns, missing)
}

// NewStorageError creates a storage-related error
func NewStorageError(message string, cause error) *AppError {
	return NewAppError(ErrTypeStorage, message, cause)
}

// NewAppValidationError creates a validation error for AppError type
func NewAppValidationError(message string) *AppError {
	return NewAppError(ErrTypeValidation, message, nil)
}

// NewNotFoundError creates a not found error
func NewNotFoundError(resource string) *AppError {
	return NewAppError(ErrTypeNotFound, fmt.Sprintf("%s not found", resource), nil)
}

// NewConfigError creates a configuration error
func NewConfigError(message string, cause error) *AppError {
	return NewAppError(ErrTypeConfig, message, cause)
}

// IsParseError reports whether err is a malformed-document error.
func IsParseError(err error) bool { return IsType(err, ErrTypeParsing) }

// IsEmptyDocumentError reports whether err is an empty-document error.
func IsEmptyDocumentError(err error) bool { return IsType(err, ErrTypeEmptyDocument) }

// IsSchemaError reports whether err is a missing-column error.
func IsSchemaError(err error) bool { return IsType(err, ErrTypeSchema) }
