package storage

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

var (
	ErrFileTooLarge    = errors.New("file exceeds maximum size")
	ErrInvalidMimeType = errors.New("file type not allowed")
	ErrEmptyFile       = errors.New("file is empty")
)

// MaxCVSize caps résumé uploads at 10 MB.
const MaxCVSize = 10 * 1024 * 1024

// allowedCVTypes are the content types the evaluation pipeline understands.
var allowedCVTypes = []string{
	"application/pdf",
	"image/png",
	"image/jpeg",
}

// ValidateCV reads an uploaded résumé, checks size and content type from
// magic bytes, and returns the buffered content plus the detected MIME type.
func ValidateCV(reader io.Reader) ([]byte, string, error) {
	limited := io.LimitReader(reader, MaxCVSize+1)
	data, err := io.ReadAll(limited)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read file: %w", err)
	}

	if len(data) == 0 {
		return nil, "", ErrEmptyFile
	}
	if int64(len(data)) > MaxCVSize {
		return nil, "", ErrFileTooLarge
	}

	mimeType := http.DetectContentType(data)
	if idx := strings.Index(mimeType, ";"); idx != -1 {
		mimeType = strings.TrimSpace(mimeType[:idx])
	}

	for _, t := range allowedCVTypes {
		if t == mimeType {
			return data, mimeType, nil
		}
	}
	return nil, "", ErrInvalidMimeType
}

// ExtensionForMime returns the file extension for an allowed CV MIME type.
func ExtensionForMime(mimeType string) string {
	switch mimeType {
	case "application/pdf":
		return ".pdf"
	case "image/png":
		return ".png"
	case "image/jpeg":
		return ".jpg"
	default:
		return ""
	}
}

// IsImage reports whether the MIME type is a raster image.
func IsImage(mimeType string) bool {
	return strings.HasPrefix(mimeType, "image/")
}
