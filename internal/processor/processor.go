// Package processor orchestrates one extraction run: validation, session
// allocation, the sequential page loop with OCR escalation and table
// extraction, incremental XML assembly, end-of-run cleanup and the manifest.
package processor

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/docstream/pdfextract-worker/internal/assemble"
	"github.com/docstream/pdfextract-worker/internal/config"
	"github.com/docstream/pdfextract-worker/internal/document"
	xerrors "github.com/docstream/pdfextract-worker/internal/errors"
	"github.com/docstream/pdfextract-worker/internal/logging"
	"github.com/docstream/pdfextract-worker/internal/ocr"
	"github.com/docstream/pdfextract-worker/internal/session"
	"github.com/docstream/pdfextract-worker/internal/tables"
)

// engineTimeout bounds a single table engine attempt so one stuck strategy
// cannot stall the page loop.
const engineTimeout = 60 * time.Second

// PageImage is one persisted embedded image as seen by the page loop.
type PageImage struct {
	Index  int
	Path   string
	Width  int
	Height int
}

// Source is the open-document capability the page loop consumes. The
// production implementation wraps an open MuPDF handle; tests substitute
// fakes.
type Source interface {
	Path() string
	PageCount() int
	PageText(page int) (string, error)
	RenderPage(page, dpi int) ([]byte, error)
	ExtractPageImages(page int, destDir string) ([]PageImage, error)
	Close() error
}

// OCRClient recognizes text in a rendered page bitmap.
type OCRClient interface {
	Recognize(ctx context.Context, imageData []byte) (string, error)
	Close() error
}

// TableExtractor runs the table engine chain for one page.
type TableExtractor interface {
	Extract(ctx context.Context, req tables.Request, tablesDir string) (*tables.TableRef, []*xerrors.ExtractionError)
}

// RunRecorder persists a cross-session record of a finished run.
type RunRecorder interface {
	RecordRun(ctx context.Context, m *assemble.Manifest) error
}

// Processor runs extraction end to end. The function fields are seams for
// tests; NewProcessor wires the production implementations.
type Processor struct {
	sessions *session.Manager
	log      *logging.Logger

	validate   func(path string) error
	open       func(path string) (Source, error)
	ocrFactory func(opts ocr.Options) OCRClient
	ocrAvail   func() bool
	newTables  func(engineNames []string, timeout time.Duration) (TableExtractor, error)

	recorders []RunRecorder
}

// NewProcessor creates a processor backed by the real document, OCR and table
// capabilities.
func NewProcessor() *Processor {
	return &Processor{
		sessions: session.NewManager(),
		log:      logging.NewLogger("processor"),
		validate: document.Validate,
		open: func(path string) (Source, error) {
			doc, err := document.Open(path)
			if err != nil {
				return nil, err
			}
			return &fitzSource{doc}, nil
		},
		ocrFactory: func(opts ocr.Options) OCRClient { return ocr.NewClient(opts) },
		ocrAvail:   ocr.Available,
		newTables: func(engineNames []string, timeout time.Duration) (TableExtractor, error) {
			return tables.NewExtractor(engineNames, timeout)
		},
	}
}

// AddRecorder registers a run recorder. Recorder failures are logged, never
// fatal.
func (p *Processor) AddRecorder(r RunRecorder) {
	p.recorders = append(p.recorders, r)
}

// Run executes one extraction run and returns its manifest.
//
// Input validation happens before any session state is created, so a fatal
// input error leaves no output directory behind. After that point page-level
// failures degrade into recorded warnings and the run always produces a
// manifest unless session I/O itself fails.
func (p *Processor) Run(ctx context.Context, opts config.RunOptions) (*assemble.Manifest, error) {
	if err := p.validate(opts.Source); err != nil {
		return nil, xerrors.NewInvalidInputError(opts.Source, err)
	}

	extractor, err := p.newTables(opts.TableEngines, engineTimeout)
	if err != nil {
		return nil, xerrors.NewInvalidInputError(opts.Source, fmt.Errorf("invalid table engine chain: %w", err))
	}

	src, err := p.open(opts.Source)
	if err != nil {
		return nil, xerrors.NewInvalidInputError(opts.Source, err)
	}
	defer src.Close()

	var sourceSize int64
	if info, statErr := os.Stat(opts.Source); statErr == nil {
		sourceSize = info.Size()
	}

	start, end := clampRange(opts.StartPage, opts.EndPage, src.PageCount())
	p.log.Info("run starting", "source", opts.Source, "pages", src.PageCount(), "start", start, "end", end)

	sess, err := p.sessions.Create(opts.BaseDir)
	if err != nil {
		return nil, xerrors.NewSessionIOError("", err)
	}

	asm := assemble.NewAssembler(sess)
	if err := asm.Begin(assemble.DocumentMeta{
		SourcePath: opts.Source,
		SourceSize: sourceSize,
		PageCount:  src.PageCount(),
		StartPage:  start,
		EndPage:    end,
	}); err != nil {
		return nil, xerrors.NewSessionIOError(sess.ID, err)
	}

	ocrClient := p.ocrFactory(ocr.Options{
		Languages:   opts.OCRLanguages,
		PageSegMode: opts.OCRPageSegMode,
		EngineMode:  opts.OCREngineMode,
		Timeout:     engineTimeout,
	})
	defer ocrClient.Close()

	pages := &pageProcessor{
		src:          src,
		ocrClient:    ocrClient,
		ocrAvailable: p.ocrAvail(),
		opts:         opts,
		imagesDir:    sess.ImagesDir(),
		log:          p.log,
	}

	var runErrors []map[string]interface{}
	total := end - start + 1
	if total < 0 {
		total = 0
	}

	done := 0
	for page := start; page <= end; page++ {
		if err := ctx.Err(); err != nil {
			asm.Abort()
			return nil, fmt.Errorf("run canceled at page %d: %w", page, err)
		}

		rec, warns := pages.process(ctx, page)
		for _, w := range warns {
			runErrors = append(runErrors, w.ToMap())
		}

		// Table extraction is skipped for pages whose extraction failed
		// outright; there is no text or geometry worth probing.
		if rec.Error == "" {
			ref, tableWarns := extractor.Extract(ctx, tables.Request{
				Source:     opts.Source,
				Page:       page,
				NativeText: rec.Text,
			}, sess.TablesDir())
			for _, w := range tableWarns {
				runErrors = append(runErrors, w.ToMap())
			}
			if ref != nil {
				rec.Tables = append(rec.Tables, assemble.TableRef{
					Engine: ref.Engine,
					Path:   filepath.ToSlash(ref.RelPath),
				})
			}
		}

		if err := asm.WritePage(rec); err != nil {
			asm.Abort()
			return nil, xerrors.NewSessionIOError(sess.ID, err)
		}

		done++
		if opts.Progress != nil {
			opts.Progress(done, total)
		}
	}

	var cleanupStats *session.CleanupStats
	if opts.CleanupOnExit {
		cleanupStats, err = p.sessions.Cleanup(opts.BaseDir, sess.ID, opts.MaxSessions, opts.MaxAgeHours)
		if err != nil {
			p.log.Warn("session cleanup failed", "error", err)
			runErrors = append(runErrors, xerrors.NewSessionIOError(sess.ID, err).ToMap())
			cleanupStats = nil
		}
	}

	manifest, err := asm.Finish(cleanupStats, runErrors, assemble.RunParams{
		StartPage:    start,
		EndPage:      end,
		OCRThreshold: opts.OCRThreshold,
		OCRAvailable: p.ocrAvail(),
		DPI:          opts.RenderDPI,
		OCRLanguages: opts.OCRLanguages,
		OCRPSM:       opts.OCRPageSegMode,
		OCROEM:       opts.OCREngineMode,
		TableEngines: opts.TableEngines,
	})
	if err != nil {
		return nil, xerrors.NewSessionIOError(sess.ID, err)
	}

	for _, r := range p.recorders {
		if err := r.RecordRun(ctx, manifest); err != nil {
			p.log.Warn("run record not persisted", "error", err)
		}
	}

	p.log.Info("run finished",
		"session", sess.ID,
		"pages", manifest.Pages.PagesProcessed,
		"ocr_pages", manifest.Pages.PagesOCR,
		"images", manifest.Pages.ImagesExtracted,
		"tables", manifest.Pages.TablesExtracted,
		"warnings", len(runErrors))
	return manifest, nil
}

// clampRange normalizes a 1-based inclusive page range against the document.
// end <= 0 means "to the last page". A start beyond the end yields an empty
// range, which is a valid zero-page run.
func clampRange(start, end, pageCount int) (int, int) {
	if start < 1 {
		start = 1
	}
	if end <= 0 || end > pageCount {
		end = pageCount
	}
	return start, end
}

// fitzSource adapts the document package's handle to the Source seam.
type fitzSource struct {
	doc *document.Document
}

func (s *fitzSource) Path() string   { return s.doc.Path() }
func (s *fitzSource) PageCount() int { return s.doc.PageCount() }
func (s *fitzSource) Close() error   { return s.doc.Close() }

func (s *fitzSource) PageText(page int) (string, error) {
	return s.doc.PageText(page)
}

func (s *fitzSource) RenderPage(page, dpi int) ([]byte, error) {
	return s.doc.RenderPage(page, dpi)
}

func (s *fitzSource) ExtractPageImages(page int, destDir string) ([]PageImage, error) {
	files, err := s.doc.ExtractPageImages(page, destDir)
	out := make([]PageImage, 0, len(files))
	for _, f := range files {
		out = append(out, PageImage{Index: f.Index, Path: f.Path, Width: f.Width, Height: f.Height})
	}
	return out, err
}
