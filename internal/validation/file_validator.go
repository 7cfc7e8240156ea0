package validation

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"backfill/internal/config"
	apperrors "backfill/internal/errors"
)

// FileValidator checks spreadsheet inputs before they reach the loader,
// both local paths for the CLI and multipart uploads for the server.
type FileValidator struct {
	logger     *slog.Logger
	maxBytes   int64
	extensions []string
}

// NewFileValidator creates a validator bounded by the upload configuration
func NewFileValidator(cfg config.UploadConfig, logger *slog.Logger) *FileValidator {
	if logger == nil {
		logger = slog.Default()
	}
	exts := make([]string, 0, len(cfg.AllowedExtensions))
	for _, ext := range cfg.AllowedExtensions {
		exts = append(exts, strings.ToLower(ext))
	}
	return &FileValidator{
		logger:     logger,
		maxBytes:   cfg.MaxBytes,
		extensions: exts,
	}
}

// ValidateUpload checks the name and size of an uploaded spreadsheet
func (v *FileValidator) ValidateUpload(field, fileName string, size int64) error {
	if fileName == "" {
		return v.reject(field, fileName, fmt.Sprintf("%s: no file uploaded", field))
	}
	if err := v.checkName(field, fileName); err != nil {
		return err
	}
	if size == 0 {
		return v.reject(field, fileName, fmt.Sprintf("%s: file %s is empty", field, fileName))
	}
	if v.maxBytes > 0 && size > v.maxBytes {
		return v.reject(field, fileName, fmt.Sprintf("%s: file %s is %d bytes, limit is %d", field, fileName, size, v.maxBytes))
	}

	v.logger.Debug("Upload validated",
		slog.String("field", field),
		slog.String("file", fileName),
		slog.Int64("size", size))
	return nil
}

// ValidateSpreadsheetFile checks that a local path is a readable spreadsheet
func (v *FileValidator) ValidateSpreadsheetFile(path string) error {
	info, err := v.validateFile(path)
	if err != nil {
		return err
	}
	return v.ValidateUpload("file", filepath.Base(path), info.Size())
}

// validateFile checks if a specific file exists and is readable
func (v *FileValidator) validateFile(path string) (os.FileInfo, error) {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		v.logger.Error("File does not exist",
			slog.String("file", path))
		return nil, apperrors.NewAppValidationError(fmt.Sprintf("file %s does not exist", path))
	}
	if err != nil {
		v.logger.Error("Failed to stat file",
			slog.String("file", path),
			slog.String("error", err.Error()))
		return nil, fmt.Errorf("failed to stat file %s: %w", path, err)
	}
	if info.IsDir() {
		v.logger.Error("Path is a directory, not a file",
			slog.String("path", path))
		return nil, apperrors.NewAppValidationError(fmt.Sprintf("%s is a directory, not a file", path))
	}

	file, err := os.Open(path)
	if err != nil {
		v.logger.Error("File is not readable",
			slog.String("file", path),
			slog.String("error", err.Error()))
		return nil, fmt.Errorf("file %s is not readable: %w", path, err)
	}
	file.Close()
	return info, nil
}

// ValidateOutputDirectory ensures the directory of an output file exists or
// can be created, and is writable
func (v *FileValidator) ValidateOutputDirectory(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		v.logger.Error("Failed to create output directory",
			slog.String("directory", dir),
			slog.String("error", err.Error()))
		return fmt.Errorf("failed to create output directory %s: %w", dir, err)
	}

	testFile := filepath.Join(dir, ".write_test")
	file, err := os.Create(testFile)
	if err != nil {
		v.logger.Error("Output directory is not writable",
			slog.String("directory", dir),
			slog.String("error", err.Error()))
		return fmt.Errorf("output directory %s is not writable: %w", dir, err)
	}
	file.Close()
	os.Remove(testFile)
	return nil
}

func (v *FileValidator) checkName(field, fileName string) error {
	base := filepath.Base(fileName)
	if strings.HasPrefix(base, "~$") {
		return v.reject(field, fileName, fmt.Sprintf("%s: %s is a temporary Excel lock file", field, base))
	}

	ext := strings.ToLower(filepath.Ext(base))
	if len(v.extensions) > 0 && !slices.Contains(v.extensions, ext) {
		return v.reject(field, fileName, fmt.Sprintf("%s: extension %q is not allowed (allowed: %s)",
			field, ext, strings.Join(v.extensions, ", ")))
	}
	return nil
}

func (v *FileValidator) reject(field, fileName, msg string) error {
	v.logger.Warn("Upload rejected",
		slog.String("field", field),
		slog.String("file", fileName),
		slog.String("reason", msg))
	return apperrors.NewAppValidationError(msg).WithContext("field", field)
}
