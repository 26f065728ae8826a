package processor

import (
	"context"
	"errors"
	"path/filepath"
	"strings"

	"github.com/docstream/pdfextract-worker/internal/assemble"
	"github.com/docstream/pdfextract-worker/internal/config"
	xerrors "github.com/docstream/pdfextract-worker/internal/errors"
	"github.com/docstream/pdfextract-worker/internal/logging"
	"github.com/docstream/pdfextract-worker/internal/ocr"
	"github.com/docstream/pdfextract-worker/internal/session"
)

// pageProcessor extracts text and embedded images for single pages and
// decides OCR escalation. One instance serves one run; it holds no per-page
// state, so each page's working set is released before the next begins.
type pageProcessor struct {
	src          Source
	ocrClient    OCRClient
	ocrAvailable bool
	opts         config.RunOptions
	imagesDir    string
	log          *logging.Logger
}

// process produces the page record for one page. It never fails the run: a
// page-level extraction failure yields a record with empty content and the
// error attached, and all other problems degrade into warnings.
func (p *pageProcessor) process(ctx context.Context, page int) (assemble.PageRecord, []*xerrors.ExtractionError) {
	var warnings []*xerrors.ExtractionError
	rec := assemble.PageRecord{Index: page}

	text, err := p.src.PageText(page)
	if err != nil {
		pageErr := xerrors.NewPageExtractionError(page, err)
		p.log.Warn("page extraction failed, continuing", "page", page, "error", err)
		rec.Error = pageErr.Error()
		return rec, append(warnings, pageErr)
	}

	if len(strings.TrimSpace(text)) < p.opts.OCRThreshold {
		ocrText, ocrUsed, warn := p.escalate(ctx, page)
		if warn != nil {
			warnings = append(warnings, warn)
		}
		if ocrUsed {
			// The OCR result replaces the native text outright; a page that
			// escalated is treated as a scanned page whose native layer is
			// untrustworthy.
			text = ocrText
			rec.OCRUsed = true
		}
	}

	rec.Text = text

	images, err := p.src.ExtractPageImages(page, p.imagesDir)
	if err != nil {
		warnings = append(warnings, xerrors.NewPageExtractionError(page, err))
		p.log.Warn("embedded image extraction incomplete", "page", page, "error", err)
	}
	for _, im := range images {
		rec.Images = append(rec.Images, assemble.ImageRef{
			Index:  im.Index,
			Path:   filepath.ToSlash(filepath.Join(session.ImagesSubdir, filepath.Base(im.Path))),
			Width:  im.Width,
			Height: im.Height,
		})
	}

	return rec, warnings
}

// escalate renders the page and runs OCR over the bitmap. An unavailable or
// failing OCR capability never aborts the page; the caller keeps the native
// text and records the returned warning.
func (p *pageProcessor) escalate(ctx context.Context, page int) (string, bool, *xerrors.ExtractionError) {
	if !p.ocrAvailable {
		return "", false, xerrors.NewOCRUnavailableError(page)
	}

	bitmap, err := p.src.RenderPage(page, p.opts.RenderDPI)
	if err != nil {
		p.log.Warn("page render for OCR failed, keeping native text", "page", page, "error", err)
		return "", false, xerrors.NewOCRFailedError(page, err)
	}

	text, err := p.ocrClient.Recognize(ctx, bitmap)
	if err != nil {
		if errors.Is(err, ocr.ErrUnavailable) {
			return "", false, xerrors.NewOCRUnavailableError(page)
		}
		p.log.Warn("OCR failed, keeping native text", "page", page, "error", err)
		return "", false, xerrors.NewOCRFailedError(page, err)
	}

	return text, true, nil
}
