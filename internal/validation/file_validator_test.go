package validation

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"backfill/internal/config"
	apperrors "backfill/internal/errors"
)

func newValidator() *FileValidator {
	return NewFileValidator(config.UploadConfig{
		MaxBytes:          1024,
		AllowedExtensions: []string{".xlsx", ".XLS", ".csv"},
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestFileValidator_ValidateUpload(t *testing.T) {
	tests := []struct {
		name          string
		fileName      string
		size          int64
		wantErr       bool
		errorContains string
	}{
		{name: "xlsx", fileName: "ZQM export.xlsx", size: 100},
		{name: "upper case extension", fileName: "pmr.XLSX", size: 100},
		{name: "legacy xls", fileName: "soh.xls", size: 100},
		{name: "exactly at limit", fileName: "a.csv", size: 1024},
		{name: "no file", fileName: "", size: 0, wantErr: true, errorContains: "no file uploaded"},
		{name: "empty", fileName: "a.xlsx", size: 0, wantErr: true, errorContains: "is empty"},
		{name: "too large", fileName: "a.xlsx", size: 1025, wantErr: true, errorContains: "limit is 1024"},
		{name: "wrong extension", fileName: "a.pdf", size: 10, wantErr: true, errorContains: `".pdf" is not allowed`},
		{name: "no extension", fileName: "report", size: 10, wantErr: true, errorContains: "not allowed"},
		{name: "excel lock file", fileName: "~$pmr.xlsx", size: 10, wantErr: true, errorContains: "lock file"},
	}

	v := newValidator()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.ValidateUpload("zqm", tt.fileName, tt.size)
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errorContains)
			assert.Equal(t, apperrors.ErrTypeValidation, apperrors.TypeOf(err))
		})
	}
}

func TestFileValidator_ValidateSpreadsheetFile(t *testing.T) {
	v := newValidator()
	dir := t.TempDir()

	good := filepath.Join(dir, "zqm.xlsx")
	require.NoError(t, os.WriteFile(good, []byte("data"), 0644))
	assert.NoError(t, v.ValidateSpreadsheetFile(good))

	empty := filepath.Join(dir, "pmr.xlsx")
	require.NoError(t, os.WriteFile(empty, nil, 0644))
	assert.ErrorContains(t, v.ValidateSpreadsheetFile(empty), "is empty")

	assert.ErrorContains(t, v.ValidateSpreadsheetFile(filepath.Join(dir, "missing.xlsx")), "does not exist")
	assert.ErrorContains(t, v.ValidateSpreadsheetFile(dir), "is a directory")
}

func TestFileValidator_ValidateOutputDirectory(t *testing.T) {
	v := newValidator()

	nested := filepath.Join(t.TempDir(), "out", "reports")
	require.NoError(t, v.ValidateOutputDirectory(nested))

	info, err := os.Stat(nested)
	require.NoError(t, err)
	assert.True(t, info.IsDir())

	_, err = os.Stat(filepath.Join(nested, ".write_test"))
	assert.True(t, os.IsNotExist(err))
}
