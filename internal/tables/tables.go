// Package tables runs a prioritized chain of table-extraction engines per
// page. The first engine that yields at least one non-empty table wins; its
// tables are serialized to a per-page XML file. An empty chain result is a
// valid outcome, not an error.
package tables

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	xerrors "github.com/docstream/pdfextract-worker/internal/errors"
	"github.com/docstream/pdfextract-worker/internal/logging"
)

// Table is one extracted table as a rectangular cell grid.
type Table struct {
	Rows [][]string
}

// Empty reports whether the table carries no cells at all.
func (t Table) Empty() bool {
	for _, row := range t.Rows {
		if len(row) > 0 {
			return false
		}
	}
	return true
}

// TableRef points at the serialized table file for one page and records
// which engine produced it.
type TableRef struct {
	Engine  string
	RelPath string
}

// Request carries everything an engine may need for one page. NativeText is
// the page's already-extracted text, so text-based engines do not reopen the
// document.
type Request struct {
	Source     string
	Page       int
	NativeText string
}

// Engine is one table-extraction strategy. Attempt returns zero or more
// tables; it may fail or return nothing, in which case the chain moves on.
type Engine interface {
	Name() string
	Attempt(ctx context.Context, req Request) ([]Table, error)
}

// Extractor drives the engine chain for a run.
type Extractor struct {
	engines []Engine
	timeout time.Duration
	log     *logging.Logger
}

// NewExtractor builds an extractor from an ordered list of engine names.
// Unknown names are rejected so a typo in configuration fails loudly instead
// of silently shortening the chain.
func NewExtractor(engineNames []string, timeout time.Duration) (*Extractor, error) {
	var engines []Engine
	for _, name := range engineNames {
		switch name {
		case "lattice":
			engines = append(engines, newLatticeEngine())
		case "stream":
			engines = append(engines, newStreamEngine())
		case "textgrid":
			engines = append(engines, newTextGridEngine())
		default:
			return nil, fmt.Errorf("unknown table engine %q", name)
		}
	}
	return NewExtractorWithEngines(engines, timeout), nil
}

// NewExtractorWithEngines builds an extractor from explicit engine values.
// Used directly by tests and by callers providing their own strategies.
func NewExtractorWithEngines(engines []Engine, timeout time.Duration) *Extractor {
	return &Extractor{
		engines: engines,
		timeout: timeout,
		log:     logging.NewLogger("tables"),
	}
}

// Extract tries each engine in configured order and stops at the first that
// returns a non-empty result; that engine's tables are written to one XML
// file under tablesDir and referenced from the returned TableRef. Engine
// priority is fixed by the chain order, so the winner is deterministic even
// when several engines would succeed.
//
// Engine failures never propagate as run-level errors; they are returned as
// recoverable warnings alongside the (possibly nil) reference.
func (e *Extractor) Extract(ctx context.Context, req Request, tablesDir string) (*TableRef, []*xerrors.ExtractionError) {
	var warnings []*xerrors.ExtractionError

	for _, engine := range e.engines {
		found, err := e.attempt(ctx, engine, req)
		if err != nil {
			warnings = append(warnings, xerrors.NewTableEngineError(req.Page, engine.Name(), err))
			e.log.Warn("table engine failed, trying next", "engine", engine.Name(), "page", req.Page, "error", err)
			continue
		}

		found = dropEmpty(found)
		if len(found) == 0 {
			continue
		}

		relPath := fmt.Sprintf("page_%06d_tables.xml", req.Page)
		if err := writeTableFile(filepath.Join(tablesDir, relPath), engine.Name(), req.Page, found); err != nil {
			warnings = append(warnings, xerrors.NewTableEngineError(req.Page, engine.Name(), err))
			e.log.Warn("failed to write table file", "engine", engine.Name(), "page", req.Page, "error", err)
			continue
		}

		e.log.Debug("tables extracted", "engine", engine.Name(), "page", req.Page, "count", len(found))
		return &TableRef{Engine: engine.Name(), RelPath: filepath.Join("tables", relPath)}, warnings
	}

	// The whole chain came up empty. Absence of tables is a valid outcome.
	return nil, warnings
}

// attempt runs a single engine under the per-call timeout, converting panics
// into ordinary engine failures so a misbehaving strategy cannot take down
// the page loop.
func (e *Extractor) attempt(ctx context.Context, engine Engine, req Request) (found []Table, err error) {
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	defer func() {
		if r := recover(); r != nil {
			found = nil
			err = fmt.Errorf("engine panicked: %v", r)
		}
	}()

	return engine.Attempt(ctx, req)
}

func dropEmpty(in []Table) []Table {
	var out []Table
	for _, t := range in {
		if !t.Empty() {
			out = append(out, t)
		}
	}
	return out
}

// writeTableFile serializes all of a page's tables into one XML document,
// parallel in shape to the combined document's table schema.
func writeTableFile(path, engine string, page int, found []Table) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create table file: %w", err)
	}
	defer f.Close()

	if err := encodeTables(f, engine, page, found); err != nil {
		return fmt.Errorf("failed to encode table file: %w", err)
	}
	return nil
}
