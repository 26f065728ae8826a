package tables

import (
	"context"
	"testing"
)

func TestTextGridDetectsPipeTable(t *testing.T) {
	e := newTextGridEngine()
	req := Request{
		Page: 1,
		NativeText: `Quarterly results follow.

| Region | Q1 | Q2 |
| North  | 10 | 12 |
| South  |  7 |  9 |

End of report.`,
	}

	found, err := e.Attempt(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(found) != 1 {
		t.Fatalf("expected 1 table, got %d", len(found))
	}

	tbl := found[0]
	if len(tbl.Rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(tbl.Rows))
	}
	if len(tbl.Rows[0]) != 3 {
		t.Fatalf("expected 3 cells, got %d", len(tbl.Rows[0]))
	}
	if tbl.Rows[1][0] != "North" || tbl.Rows[2][2] != "9" {
		t.Errorf("unexpected cell content: %v", tbl.Rows)
	}
}

func TestTextGridDetectsTabTable(t *testing.T) {
	e := newTextGridEngine()
	req := Request{
		Page:       2,
		NativeText: "name\tage\tcity\nalice\t30\toslo\nbob\t25\tbergen\n",
	}

	found, err := e.Attempt(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(found) != 1 {
		t.Fatalf("expected 1 table, got %d", len(found))
	}
	if got := found[0].Rows[2][2]; got != "bergen" {
		t.Errorf("cell = %q, want bergen", got)
	}
}

func TestTextGridIgnoresProse(t *testing.T) {
	e := newTextGridEngine()
	req := Request{
		Page: 3,
		NativeText: `This is ordinary prose, with commas, that should not
look like a table at all.
A second paragraph follows here.`,
	}

	found, err := e.Attempt(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// The first line has two commas; a lone delimited line must not form a
	// region on its own.
	if len(found) != 0 {
		t.Errorf("expected no tables in prose, got %d: %v", len(found), found)
	}
}

func TestTextGridBreaksOnColumnCountJump(t *testing.T) {
	e := newTextGridEngine()
	req := Request{
		Page: 4,
		NativeText: `a | b | c
d | e | f
x | y | z | q | r | s | t | u`,
	}

	found, err := e.Attempt(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(found) != 1 {
		t.Fatalf("expected 1 table, got %d", len(found))
	}
	if len(found[0].Rows) != 2 {
		t.Errorf("wildly different column count should end the region, got %d rows", len(found[0].Rows))
	}
}

func TestTextGridEmptyText(t *testing.T) {
	e := newTextGridEngine()
	found, err := e.Attempt(context.Background(), Request{Page: 5, NativeText: ""})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(found) != 0 {
		t.Errorf("expected no tables, got %d", len(found))
	}
}

func TestDetectDelimiterPriority(t *testing.T) {
	cases := []struct {
		line string
		want rune
	}{
		{"a | b | c", '|'},
		{"a\tb\tc", '\t'},
		{"a, b, c", ','},
		{"one comma, only", 0},
		{"plain text", 0},
	}
	for _, tc := range cases {
		if got := detectDelimiter(tc.line); got != tc.want {
			t.Errorf("detectDelimiter(%q) = %q, want %q", tc.line, got, tc.want)
		}
	}
}
