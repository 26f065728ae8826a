package tables

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// fakeEngine is a scriptable chain entry for testing fallback behavior.
type fakeEngine struct {
	name   string
	tables []Table
	err    error
	panics bool
	calls  int
}

func (f *fakeEngine) Name() string { return f.name }

func (f *fakeEngine) Attempt(ctx context.Context, req Request) ([]Table, error) {
	f.calls++
	if f.panics {
		panic("engine blew up")
	}
	return f.tables, f.err
}

func oneTable() []Table {
	return []Table{{Rows: [][]string{{"a", "b"}, {"1", "2"}}}}
}

func TestExtractFirstSuccessWins(t *testing.T) {
	first := &fakeEngine{name: "first", tables: oneTable()}
	second := &fakeEngine{name: "second", tables: oneTable()}
	e := NewExtractorWithEngines([]Engine{first, second}, time.Second)

	ref, warns := e.Extract(context.Background(), Request{Page: 1}, t.TempDir())
	if len(warns) != 0 {
		t.Errorf("expected no warnings, got %d", len(warns))
	}
	if ref == nil {
		t.Fatal("expected a table reference")
	}
	if ref.Engine != "first" {
		t.Errorf("expected first engine to win, got %q", ref.Engine)
	}
	if second.calls != 0 {
		t.Error("chain must stop at the first success")
	}
}

func TestExtractFallsThroughFailures(t *testing.T) {
	failing := &fakeEngine{name: "failing", err: fmt.Errorf("boom")}
	empty := &fakeEngine{name: "empty"}
	winner := &fakeEngine{name: "winner", tables: oneTable()}
	e := NewExtractorWithEngines([]Engine{failing, empty, winner}, time.Second)

	ref, warns := e.Extract(context.Background(), Request{Page: 3}, t.TempDir())
	if ref == nil || ref.Engine != "winner" {
		t.Fatalf("expected winner engine, got %+v", ref)
	}

	// Only the raising engine produces a warning; an empty result is a
	// normal miss.
	if len(warns) != 1 {
		t.Fatalf("expected 1 warning, got %d", len(warns))
	}
	if warns[0].Page != 3 {
		t.Errorf("warning page = %d, want 3", warns[0].Page)
	}
}

func TestExtractWholeChainEmpty(t *testing.T) {
	e := NewExtractorWithEngines([]Engine{
		&fakeEngine{name: "a"},
		&fakeEngine{name: "b", err: fmt.Errorf("nope")},
	}, time.Second)

	ref, warns := e.Extract(context.Background(), Request{Page: 1}, t.TempDir())
	if ref != nil {
		t.Errorf("expected no reference, got %+v", ref)
	}
	if len(warns) != 1 {
		t.Errorf("expected 1 warning from the raising engine, got %d", len(warns))
	}
}

func TestExtractRecoversFromPanic(t *testing.T) {
	panicky := &fakeEngine{name: "panicky", panics: true}
	winner := &fakeEngine{name: "winner", tables: oneTable()}
	e := NewExtractorWithEngines([]Engine{panicky, winner}, time.Second)

	ref, warns := e.Extract(context.Background(), Request{Page: 1}, t.TempDir())
	if ref == nil || ref.Engine != "winner" {
		t.Fatalf("panic must not kill the chain, got %+v", ref)
	}
	if len(warns) != 1 {
		t.Errorf("expected the panic folded into a warning, got %d", len(warns))
	}
}

func TestExtractSkipsAllEmptyTables(t *testing.T) {
	// An engine returning only cell-less tables has not succeeded.
	hollow := &fakeEngine{name: "hollow", tables: []Table{{Rows: [][]string{{}, {}}}}}
	winner := &fakeEngine{name: "winner", tables: oneTable()}
	e := NewExtractorWithEngines([]Engine{hollow, winner}, time.Second)

	ref, _ := e.Extract(context.Background(), Request{Page: 1}, t.TempDir())
	if ref == nil || ref.Engine != "winner" {
		t.Fatalf("empty tables must not count as success, got %+v", ref)
	}
}

func TestExtractWritesTableFile(t *testing.T) {
	dir := t.TempDir()
	e := NewExtractorWithEngines([]Engine{&fakeEngine{name: "fake", tables: oneTable()}}, time.Second)

	ref, _ := e.Extract(context.Background(), Request{Page: 12}, dir)
	if ref == nil {
		t.Fatal("expected a table reference")
	}

	if ref.RelPath != filepath.Join("tables", "page_000012_tables.xml") {
		t.Errorf("unexpected relative path %q", ref.RelPath)
	}

	data, err := os.ReadFile(filepath.Join(dir, "page_000012_tables.xml"))
	if err != nil {
		t.Fatalf("table file not written: %v", err)
	}
	content := string(data)
	for _, want := range []string{`engine="fake"`, `page="12"`, "<td>a</td>", "<td>2</td>"} {
		if !strings.Contains(content, want) {
			t.Errorf("table file missing %q:\n%s", want, content)
		}
	}
}

func TestNewExtractorRejectsUnknownEngine(t *testing.T) {
	if _, err := NewExtractor([]string{"lattice", "bogus"}, time.Second); err == nil {
		t.Fatal("expected error for unknown engine name")
	}
}

func TestNewExtractorKnownEngines(t *testing.T) {
	e, err := NewExtractor([]string{"lattice", "stream", "textgrid"}, time.Second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(e.engines) != 3 {
		t.Errorf("expected 3 engines, got %d", len(e.engines))
	}

	want := []string{"lattice", "stream", "textgrid"}
	for i, eng := range e.engines {
		if eng.Name() != want[i] {
			t.Errorf("engine %d = %q, want %q", i, eng.Name(), want[i])
		}
	}
}
