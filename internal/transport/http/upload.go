package http

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"

	apperrors "backfill/internal/errors"
	"backfill/internal/services"
)

// maxMultipartMemory is how much of a form is buffered in memory before
// file parts spill to temporary files
const maxMultipartMemory = 32 << 20

// parseMultipart parses the request form, mapping body limit violations to 413
func parseMultipart(r *http.Request) error {
	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return apperrors.NewWithDetails(http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE",
				"Request body exceeds maximum allowed size", map[string]interface{}{"max_size": tooLarge.Limit})
		}
		return apperrors.InvalidRequestWithError(fmt.Errorf("expected a multipart form: %w", err))
	}
	return nil
}

// formFile opens the file part named field. A missing part yields an empty
// FileUpload so the service reports it as a validation error.
func formFile(r *http.Request, field string) (services.FileUpload, io.Closer, error) {
	file, header, err := r.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) {
		return services.FileUpload{Field: field}, nopCloser{}, nil
	}
	if err != nil {
		return services.FileUpload{}, nil, apperrors.InvalidRequestWithError(err)
	}
	return uploadFrom(field, file, header), file, nil
}

func uploadFrom(field string, file multipart.File, header *multipart.FileHeader) services.FileUpload {
	return services.FileUpload{
		Field:  field,
		Name:   header.Filename,
		Size:   header.Size,
		Reader: file,
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// writeFile streams an export as an attachment
func writeFile(w http.ResponseWriter, export *services.Export) {
	w.Header().Set("Content-Type", export.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", export.FileName))
	w.Header().Set("Content-Length", strconv.Itoa(len(export.Data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(export.Data)
}
