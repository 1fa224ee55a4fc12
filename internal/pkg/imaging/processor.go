package imaging

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"

	"github.com/disintegration/imaging"
)

// Config bounds image CV normalization.
type Config struct {
	MaxWidth  int // default 2000
	MaxHeight int // default 2000
	Quality   int // JPEG quality 1-100 (default 85)
}

// DefaultConfig returns default normalization bounds
func DefaultConfig() Config {
	return Config{
		MaxWidth:  2000,
		MaxHeight: 2000,
		Quality:   85,
	}
}

// Processor normalizes image résumés before storage and LLM submission.
type Processor struct {
	config Config
}

// NewProcessor creates an image processor
func NewProcessor(config Config) *Processor {
	if config.MaxWidth <= 0 {
		config.MaxWidth = 2000
	}
	if config.MaxHeight <= 0 {
		config.MaxHeight = 2000
	}
	if config.Quality <= 0 || config.Quality > 100 {
		config.Quality = 85
	}
	return &Processor{config: config}
}

// Normalize decodes an image, downscales it to the configured bounds when
// needed, and re-encodes as JPEG. PNG inputs come back as image/jpeg too:
// the evaluation provider charges per pixel, oversized scans waste credits.
func (p *Processor) Normalize(data []byte) ([]byte, string, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("failed to decode image: %w", err)
	}

	bounds := img.Bounds()
	if bounds.Dx() > p.config.MaxWidth || bounds.Dy() > p.config.MaxHeight {
		img = imaging.Fit(img, p.config.MaxWidth, p.config.MaxHeight, imaging.Lanczos)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(p.config.Quality)); err != nil {
		return nil, "", fmt.Errorf("failed to encode image: %w", err)
	}

	return buf.Bytes(), "image/jpeg", nil
}
