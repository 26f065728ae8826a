// Package document is the capability boundary to the PDF itself: page
// counting, native text extraction, page rendering and embedded image
// extraction. It wraps MuPDF (go-fitz) for text and rendering and pdfcpu for
// validation and embedded image extraction.
package document

import (
	"bytes"
	"fmt"
	"image/png"
	"os"
	"path/filepath"
	"strconv"

	"github.com/gen2brain/go-fitz"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	pdfmodel "github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// Document is an open PDF handle. It is owned by exactly one run for the
// run's whole duration and must be closed by the owner on every exit path.
// Methods are not safe for concurrent use; the page loop is sequential by
// design.
type Document struct {
	path      string
	doc       *fitz.Document
	pageCount int
}

// Validate checks that path names a readable, structurally valid PDF. It is
// called before any session output is created so that fatal input errors
// leave nothing behind.
func Validate(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("source not accessible: %w", err)
	}
	if info.IsDir() {
		return fmt.Errorf("source is a directory, not a PDF: %s", path)
	}

	conf := pdfmodel.NewDefaultConfiguration()
	conf.ValidationMode = pdfmodel.ValidationRelaxed
	if err := api.ValidateFile(path, conf); err != nil {
		return fmt.Errorf("source is not a valid PDF: %w", err)
	}
	return nil
}

// Open opens the document once for the lifetime of a run.
func Open(path string) (*Document, error) {
	doc, err := fitz.New(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open document: %w", err)
	}

	return &Document{
		path:      path,
		doc:       doc,
		pageCount: doc.NumPage(),
	}, nil
}

// Close releases the underlying handle.
func (d *Document) Close() error {
	if d.doc == nil {
		return nil
	}
	err := d.doc.Close()
	d.doc = nil
	return err
}

// Path returns the source path the document was opened from.
func (d *Document) Path() string { return d.path }

// PageCount returns the total number of pages.
func (d *Document) PageCount() int { return d.pageCount }

// PageText extracts the native text of a page. Pages are 1-based.
func (d *Document) PageText(page int) (string, error) {
	text, err := d.doc.Text(page - 1)
	if err != nil {
		return "", fmt.Errorf("failed to extract text from page %d: %w", page, err)
	}
	return text, nil
}

// RenderPage renders a page to a PNG bitmap at the given DPI, suitable for
// OCR. Pages are 1-based.
func (d *Document) RenderPage(page int, dpi int) ([]byte, error) {
	img, err := d.doc.ImageDPI(page-1, float64(dpi))
	if err != nil {
		return nil, fmt.Errorf("failed to render page %d at %d dpi: %w", page, dpi, err)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode page %d render: %w", page, err)
	}
	return buf.Bytes(), nil
}

// extractPageImagesRaw extracts a page's embedded images into destDir using
// pdfcpu. pdfcpu names the output files itself; callers re-encode and rename.
func (d *Document) extractPageImagesRaw(page int, destDir string) error {
	conf := pdfmodel.NewDefaultConfiguration()
	conf.ValidationMode = pdfmodel.ValidationRelaxed
	return api.ExtractImagesFile(d.path, destDir, []string{strconv.Itoa(page)}, conf)
}

// stagingDir returns a per-page staging directory under dir, creating it.
func stagingDir(dir string, page int) (string, error) {
	staging := filepath.Join(dir, fmt.Sprintf(".staging_%06d", page))
	if err := os.MkdirAll(staging, 0o755); err != nil {
		return "", err
	}
	return staging, nil
}
