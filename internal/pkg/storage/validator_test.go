package storage

import (
	"bytes"
	"errors"
	"testing"
)

// Minimal valid headers for content sniffing.
var (
	pdfHeader = []byte("%PDF-1.4\n%âãÏÓ\n")
	pngHeader = []byte{0x89, 'P', 'N', 'G', 0x0d, 0x0a, 0x1a, 0x0a, 0, 0, 0, 13, 'I', 'H', 'D', 'R'}
)

func TestValidateCVAcceptsPDF(t *testing.T) {
	data, mime, err := ValidateCV(bytes.NewReader(pdfHeader))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if mime != "application/pdf" {
		t.Fatalf("expected application/pdf, got %s", mime)
	}
	if len(data) != len(pdfHeader) {
		t.Fatalf("expected %d bytes, got %d", len(pdfHeader), len(data))
	}
}

func TestValidateCVAcceptsPNG(t *testing.T) {
	_, mime, err := ValidateCV(bytes.NewReader(pngHeader))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if mime != "image/png" {
		t.Fatalf("expected image/png, got %s", mime)
	}
}

func TestValidateCVRejectsEmpty(t *testing.T) {
	_, _, err := ValidateCV(bytes.NewReader(nil))
	if !errors.Is(err, ErrEmptyFile) {
		t.Fatalf("expected ErrEmptyFile, got %v", err)
	}
}

func TestValidateCVRejectsUnknownType(t *testing.T) {
	_, _, err := ValidateCV(bytes.NewReader([]byte("GIF89a.......")))
	if !errors.Is(err, ErrInvalidMimeType) {
		t.Fatalf("expected ErrInvalidMimeType, got %v", err)
	}
}

func TestValidateCVRejectsOversized(t *testing.T) {
	big := make([]byte, MaxCVSize+1)
	copy(big, pdfHeader)
	_, _, err := ValidateCV(bytes.NewReader(big))
	if !errors.Is(err, ErrFileTooLarge) {
		t.Fatalf("expected ErrFileTooLarge, got %v", err)
	}
}

func TestExtensionForMime(t *testing.T) {
	if got := ExtensionForMime("application/pdf"); got != ".pdf" {
		t.Fatalf("expected .pdf, got %s", got)
	}
	if got := ExtensionForMime("image/jpeg"); got != ".jpg" {
		t.Fatalf("expected .jpg, got %s", got)
	}
	if got := ExtensionForMime("text/plain"); got != "" {
		t.Fatalf("expected empty extension, got %s", got)
	}
}
