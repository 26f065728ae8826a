package tables

import (
	"context"
	"strings"
)

// textGridEngine is the last-resort strategy: it looks for delimiter-aligned
// runs in the page's already-extracted text. It needs no document access and
// therefore still works on pages whose content defeats the positional
// detectors, at the cost of much weaker structure recovery.
type textGridEngine struct{}

func newTextGridEngine() *textGridEngine { return &textGridEngine{} }

func (e *textGridEngine) Name() string { return "textgrid" }

func (e *textGridEngine) Attempt(ctx context.Context, req Request) ([]Table, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	lines := splitIntoLines(req.NativeText)
	if len(lines) < 2 {
		return nil, nil
	}

	var out []Table
	for _, region := range detectTableRegions(lines) {
		t := tableFromRegion(region)
		if t != nil && !t.Empty() {
			out = append(out, *t)
		}
	}
	return out, nil
}

// tableRegion is a run of consecutive lines sharing a delimiter pattern.
type tableRegion struct {
	delimiter rune
	lines     []string
}

// detectTableRegions scans for runs of at least two consecutive lines using
// the same delimiter with a stable column count (±1 tolerated for ragged
// rows).
func detectTableRegions(lines []string) []tableRegion {
	var regions []tableRegion

	i := 0
	for i < len(lines) {
		delim := detectDelimiter(lines[i])
		if delim == 0 {
			i++
			continue
		}

		regionLines := []string{lines[i]}
		expectedCols := strings.Count(lines[i], string(delim))
		i++
		for i < len(lines) && detectDelimiter(lines[i]) == delim {
			cols := strings.Count(lines[i], string(delim))
			if abs(cols-expectedCols) > 1 {
				break
			}
			regionLines = append(regionLines, lines[i])
			i++
		}

		// A single delimited line is a sentence with punctuation, not a table.
		if len(regionLines) >= 2 {
			regions = append(regions, tableRegion{delimiter: delim, lines: regionLines})
		}
	}

	return regions
}

func tableFromRegion(region tableRegion) *Table {
	t := &Table{}
	for _, line := range region.lines {
		cells := splitCells(line, region.delimiter)
		if len(cells) == 0 {
			continue
		}
		for i := range cells {
			cells[i] = strings.TrimSpace(cells[i])
		}
		t.Rows = append(t.Rows, cells)
	}
	if len(t.Rows) == 0 {
		return nil
	}
	return t
}

// detectDelimiter returns the first delimiter occurring at least twice in
// the line, or zero. Pipe and tab are checked before comma since they are
// far less likely to appear in prose.
func detectDelimiter(line string) rune {
	for _, delim := range []rune{'|', '\t', ','} {
		if strings.Count(line, string(delim)) >= 2 {
			return delim
		}
	}
	return 0
}

// splitCells splits a line on the delimiter. Leading/trailing empties from
// framing pipes ("| a | b |") are dropped.
func splitCells(line string, delim rune) []string {
	cells := strings.Split(line, string(delim))
	if delim == '|' {
		if len(cells) > 0 && strings.TrimSpace(cells[0]) == "" {
			cells = cells[1:]
		}
		if len(cells) > 0 && strings.TrimSpace(cells[len(cells)-1]) == "" {
			cells = cells[:len(cells)-1]
		}
	}
	return cells
}

func splitIntoLines(text string) []string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) != "" {
			out = append(out, line)
		}
	}
	return out
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
