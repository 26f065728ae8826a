// Package ocr provides the OCR escalation capability for low-text pages.
//
// The real implementation wraps the Tesseract engine via gosseract and is
// compiled only with the "ocr" build tag, since it requires Tesseract to be
// installed:
//
//	go build -tags ocr
//
// Without the tag a stub is compiled instead and every recognition attempt
// reports ErrUnavailable. The pipeline treats that as a non-fatal condition
// and keeps the native page text.
package ocr

import (
	"errors"
	"time"
)

// ErrUnavailable is returned when OCR support was not compiled in.
var ErrUnavailable = errors.New("ocr: capability not available; rebuild with -tags ocr")

// Options configures a recognition client.
type Options struct {
	// Languages passed to Tesseract, e.g. ["eng"] or ["eng", "deu"].
	Languages []string

	// PageSegMode is Tesseract's page segmentation mode (PSM). 3 is fully
	// automatic page segmentation, the engine default.
	PageSegMode int

	// EngineMode is Tesseract's OCR engine mode (OEM).
	EngineMode int

	// Timeout bounds a single recognition call. Zero means no bound.
	Timeout time.Duration
}

// DefaultOptions mirror the upstream Tesseract defaults.
func DefaultOptions() Options {
	return Options{
		Languages:   []string{"eng"},
		PageSegMode: 3,
		EngineMode:  3,
		Timeout:     2 * time.Minute,
	}
}
