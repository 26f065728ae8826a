package tables

import (
	"context"
	"fmt"

	tabmodel "github.com/tsawler/tabula/model"
	tabreader "github.com/tsawler/tabula/reader"
	tabdetect "github.com/tsawler/tabula/tables"
)

// tabulaEngine detects tables with tabula's geometric detector. Two chain
// entries share this implementation: "lattice" weights visible ruling lines,
// "stream" weights whitespace alignment, mirroring the classic lattice/stream
// split of PDF table extractors.
type tabulaEngine struct {
	name string
	cfg  tabdetect.Config
}

func newLatticeEngine() *tabulaEngine {
	cfg := tabdetect.DefaultConfig()
	cfg.UseLines = true
	cfg.UseWhitespace = false
	cfg.MinConfidence = 0.6
	return &tabulaEngine{name: "lattice", cfg: cfg}
}

func newStreamEngine() *tabulaEngine {
	cfg := tabdetect.DefaultConfig()
	cfg.UseLines = false
	cfg.UseWhitespace = true
	cfg.MinConfidence = 0.5
	return &tabulaEngine{name: "stream", cfg: cfg}
}

func (e *tabulaEngine) Name() string { return e.name }

// Attempt opens the source with tabula's reader, extracts positioned text
// fragments for the requested page and runs geometric table detection over
// them. The per-page open keeps the engine independent of the orchestrator's
// MuPDF handle and bounds its memory to one page of fragments.
func (e *tabulaEngine) Attempt(ctx context.Context, req Request) ([]Table, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r, err := tabreader.Open(req.Source)
	if err != nil {
		return nil, fmt.Errorf("tabula reader failed to open source: %w", err)
	}
	defer r.Close()

	page, err := r.GetPage(req.Page - 1)
	if err != nil {
		return nil, fmt.Errorf("tabula reader failed to load page %d: %w", req.Page, err)
	}

	fragments, err := r.ExtractTextFragments(page)
	if err != nil {
		return nil, fmt.Errorf("tabula fragment extraction failed on page %d: %w", req.Page, err)
	}
	if len(fragments) == 0 {
		return nil, nil
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	width, _ := page.Width()
	height, _ := page.Height()

	modelPage := tabmodel.NewPage(width, height)
	modelPage.Number = req.Page
	for _, f := range fragments {
		modelPage.RawText = append(modelPage.RawText, tabmodel.TextFragment{
			Text:     f.Text,
			BBox:     tabmodel.BBox{X: f.X, Y: f.Y, Width: f.Width, Height: f.Height},
			FontSize: f.FontSize,
			FontName: f.FontName,
		})
	}

	detector := tabdetect.NewGeometricDetector()
	if err := detector.Configure(e.cfg); err != nil {
		return nil, fmt.Errorf("detector configuration failed: %w", err)
	}

	detected, err := detector.Detect(modelPage)
	if err != nil {
		return nil, fmt.Errorf("table detection failed on page %d: %w", req.Page, err)
	}

	var out []Table
	for _, dt := range detected {
		t := Table{}
		for _, row := range dt.Rows {
			cells := make([]string, 0, len(row))
			for _, cell := range row {
				cells = append(cells, cell.Text)
			}
			t.Rows = append(t.Rows, cells)
		}
		out = append(out, t)
	}
	return out, nil
}
