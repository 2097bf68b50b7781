// Package ocr wraps Tesseract as the local text recognizer used when the
// cloud extractor is disabled.
package ocr

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/otiai10/gosseract/v2"

	"github.com/docverify/docverify-backend/internal/verification/domain"
	"github.com/docverify/docverify-backend/pkg/config"
)

// ErrNoText is returned when Tesseract finds no text in the image
var ErrNoText = errors.New("no text detected")

// Recognizer implements the pipeline's TextRecognizer with gosseract.
// A Tesseract handle is not safe for concurrent use, so each call gets its own client.
type Recognizer struct {
	languages     []string
	clientFactory func() *gosseract.Client
}

// NewRecognizer creates a recognizer for cfg.Language ("eng" when empty,
// "eng+hin" for several).
func NewRecognizer(cfg config.OCRConfig) *Recognizer {
	lang := cfg.Language
	if lang == "" {
		lang = "eng"
	}
	return &Recognizer{
		languages:     strings.Split(lang, "+"),
		clientFactory: gosseract.NewClient,
	}
}

func (r *Recognizer) Name() string { return "tesseract" }

// Languages returns the configured Tesseract language codes
func (r *Recognizer) Languages() []string {
	return append([]string(nil), r.languages...)
}

// RecognizeText returns the plain text Tesseract reads from img
func (r *Recognizer) RecognizeText(ctx context.Context, img domain.Image) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if len(img.Data) == 0 {
		return "", fmt.Errorf("tesseract: empty image")
	}

	c := r.clientFactory()
	defer c.Close()

	if err := c.SetLanguage(r.languages...); err != nil {
		return "", fmt.Errorf("tesseract: set languages: %w", err)
	}
	if err := c.SetImageFromBytes(img.Data); err != nil {
		return "", fmt.Errorf("tesseract: set image: %w", err)
	}

	text, err := c.Text()
	if err != nil {
		return "", fmt.Errorf("tesseract: recognize text: %w", err)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrNoText
	}
	return text, nil
}

// Version reports the linked Tesseract version, for the health endpoint
func (r *Recognizer) Version() string {
	c := r.clientFactory()
	defer c.Close()
	return c.Version()
}
