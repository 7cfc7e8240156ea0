package services

import "errors"

// Service errors matched with errors.Is by callers
var (
	ErrUnsupportedFormat = errors.New("unsupported export format")
	ErrUploadTooLarge    = errors.New("upload exceeds the size limit")
)
