package validation

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	apperrors "github.com/miquelpairo/predictionsreport/internal/errors"
)

// ExportExtensions are the file extensions instrument exports are saved
// with. SpreadsheetML is plain XML, often saved as .xls by the instrument
// software.
var ExportExtensions = []string{".xml", ".xls"}

// FileValidator checks the files the CLI reads and writes before any work
// is done on them.
type FileValidator struct {
	logger   *slog.Logger
	maxBytes int64
}

// NewFileValidator creates a validator rejecting exports larger than
// maxBytes. Zero or less disables the size check.
func NewFileValidator(logger *slog.Logger, maxBytes int64) *FileValidator {
	if logger == nil {
		logger = slog.Default()
	}
	return &FileValidator{
		logger:   logger.With(slog.String("component", "file_validator")),
		maxBytes: maxBytes,
	}
}

// ValidateFile checks if a specific file exists and is readable
func (v *FileValidator) ValidateFile(path string) error {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		v.logger.Error("File does not exist",
			slog.String("file", path))
		return fileError(path, fmt.Sprintf("file %s does not exist", path))
	}
	if err != nil {
		return apperrors.NewAppError(apperrors.ErrTypeValidation, fmt.Sprintf("failed to stat file %s", path), err).
			WithContext(apperrors.ContextFile, path)
	}
	if info.IsDir() {
		v.logger.Error("Path is a directory, not a file",
			slog.String("path", path))
		return fileError(path, fmt.Sprintf("%s is a directory, not a file", path))
	}

	file, err := os.Open(path)
	if err != nil {
		v.logger.Error("File is not readable",
			slog.String("file", path),
			slog.String("error", err.Error()))
		return apperrors.NewAppError(apperrors.ErrTypeValidation, fmt.Sprintf("file %s is not readable", path), err).
			WithContext(apperrors.ContextFile, path)
	}
	file.Close()

	if v.maxBytes > 0 && info.Size() > v.maxBytes {
		return fileError(path, fmt.Sprintf("file %s is %d bytes, more than the %d allowed", path, info.Size(), v.maxBytes))
	}

	v.logger.Debug("File validated",
		slog.String("file", path),
		slog.Int64("size", info.Size()))
	return nil
}

// ValidateExportFile checks that path is a readable instrument export.
func (v *FileValidator) ValidateExportFile(path string) error {
	if err := v.ValidateFile(path); err != nil {
		return err
	}

	base := filepath.Base(path)
	if strings.HasPrefix(base, "~$") {
		v.logger.Warn("Refusing temporary office file",
			slog.String("file", path))
		return fileError(path, fmt.Sprintf("file %s is a temporary office file", path))
	}

	ext := strings.ToLower(filepath.Ext(path))
	for _, allowed := range ExportExtensions {
		if ext == allowed {
			return nil
		}
	}

	v.logger.Error("File is not an instrument export",
		slog.String("file", path),
		slog.String("extension", ext))
	return fileError(path, fmt.Sprintf("file %s is not an XML export (extension: %q)", path, ext))
}

// ValidateOutputFile ensures the directory of path exists, creating it if
// needed, and is writable. path itself must not be a directory.
func (v *FileValidator) ValidateOutputFile(path string) error {
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		return fileError(path, fmt.Sprintf("%s is a directory, not a file", path))
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		v.logger.Error("Failed to create output directory",
			slog.String("directory", dir),
			slog.String("error", err.Error()))
		return apperrors.NewAppError(apperrors.ErrTypeValidation, fmt.Sprintf("failed to create output directory %s", dir), err).
			WithContext(apperrors.ContextFile, path)
	}

	probe, err := os.CreateTemp(dir, ".write_test*")
	if err != nil {
		v.logger.Error("Output directory is not writable",
			slog.String("directory", dir),
			slog.String("error", err.Error()))
		return apperrors.NewAppError(apperrors.ErrTypeValidation, fmt.Sprintf("output directory %s is not writable", dir), err).
			WithContext(apperrors.ContextFile, path)
	}
	probe.Close()
	os.Remove(probe.Name())

	v.logger.Debug("Output file validated",
		slog.String("file", path))
	return nil
}

func fileError(path, message string) error {
	return apperrors.NewAppValidationError(message).WithContext(apperrors.ContextFile, path)
}
