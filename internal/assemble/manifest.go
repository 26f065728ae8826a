package assemble

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/docstream/pdfextract-worker/internal/session"
)

// ManifestName is the manifest's file name inside a session directory.
const ManifestName = "manifest.json"

// SourceStats describes the input document as seen at run start.
type SourceStats struct {
	Path      string `json:"path"`
	SizeBytes int64  `json:"size_bytes"`
	PageCount int    `json:"page_count"`
}

// PageStats aggregates per-page outcomes over one run.
type PageStats struct {
	PagesProcessed  int `json:"pages_processed"`
	PagesOCR        int `json:"pages_ocr"`
	ImagesExtracted int `json:"images_extracted"`
	TablesExtracted int `json:"tables_extracted"`
}

// RunParams echoes the effective extraction parameters into the manifest so
// a bundle is self-describing.
type RunParams struct {
	StartPage    int      `json:"start_page"`
	EndPage      int      `json:"end_page"`
	OCRThreshold int      `json:"ocr_threshold"`
	OCRAvailable bool     `json:"ocr_available"`
	DPI          int      `json:"dpi"`
	OCRLanguages []string `json:"ocr_languages"`
	OCRPSM       int      `json:"ocr_psm"`
	OCROEM       int      `json:"ocr_oem"`
	TableEngines []string `json:"table_engines"`
}

// Manifest is the final structured record of a run. It is written exactly
// once, after the last page, and never mutated afterward.
type Manifest struct {
	SessionID string                   `json:"session_id"`
	Timestamp string                   `json:"timestamp"`
	OutputDir string                   `json:"output_dir"`
	XMLPath   string                   `json:"xml"`
	TablesDir string                   `json:"tables_dir"`
	ImagesDir string                   `json:"images_dir"`
	Source    SourceStats              `json:"source"`
	Pages     PageStats                `json:"pages"`
	Cleanup   *session.CleanupStats    `json:"cleanup,omitempty"`
	Errors    []map[string]interface{} `json:"errors,omitempty"`
	Params    RunParams                `json:"params"`
}

func (m *Manifest) write(path string) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal manifest: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	return nil
}
