package session

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestCreateSession(t *testing.T) {
	baseDir := t.TempDir()
	m := NewManager()

	s, err := m.Create(baseDir)
	if err != nil {
		t.Fatalf("failed to create session: %v", err)
	}

	if s.ID == "" {
		t.Error("session id must not be empty")
	}
	if !s.Current {
		t.Error("freshly created session must be current")
	}

	for _, dir := range []string{s.Dir, s.TablesDir(), s.ImagesDir()} {
		info, err := os.Stat(dir)
		if err != nil {
			t.Errorf("expected directory %s to exist: %v", dir, err)
			continue
		}
		if !info.IsDir() {
			t.Errorf("%s is not a directory", dir)
		}
	}
}

func TestCreateSessionUniqueIDs(t *testing.T) {
	baseDir := t.TempDir()
	m := NewManager()

	seen := make(map[string]bool)
	for i := 0; i < 10; i++ {
		s, err := m.Create(baseDir)
		if err != nil {
			t.Fatalf("failed to create session: %v", err)
		}
		if seen[s.ID] {
			t.Fatalf("duplicate session id %s", s.ID)
		}
		seen[s.ID] = true
	}
}

func TestListOrdersByRecency(t *testing.T) {
	baseDir := t.TempDir()
	now := time.Now()
	m := NewManager()

	for i, id := range []string{"a", "b", "c"} {
		dir := filepath.Join(baseDir, dirPrefix+id)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
		mtime := now.Add(-time.Duration(i) * time.Hour)
		if err := os.Chtimes(dir, mtime, mtime); err != nil {
			t.Fatalf("chtimes: %v", err)
		}
	}

	// A stray non-session directory must be ignored.
	if err := os.MkdirAll(filepath.Join(baseDir, "unrelated"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	sessions, err := m.List(baseDir)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}

	if len(sessions) != 3 {
		t.Fatalf("expected 3 sessions, got %d", len(sessions))
	}
	want := []string{"a", "b", "c"}
	for i, s := range sessions {
		if s.ID != want[i] {
			t.Errorf("position %d: expected %s, got %s", i, want[i], s.ID)
		}
	}
}

func TestDiscardRemovesDirectory(t *testing.T) {
	baseDir := t.TempDir()
	m := NewManager()

	s, err := m.Create(baseDir)
	if err != nil {
		t.Fatalf("failed to create session: %v", err)
	}

	if err := m.Discard(s); err != nil {
		t.Fatalf("discard failed: %v", err)
	}
	if _, err := os.Stat(s.Dir); !os.IsNotExist(err) {
		t.Errorf("session directory should be gone, stat err = %v", err)
	}
}

func TestDirSizeMB(t *testing.T) {
	dir := t.TempDir()
	payload := make([]byte, 1024*1024)
	if err := os.WriteFile(filepath.Join(dir, "blob"), payload, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	size := DirSizeMB(dir)
	if size < 0.99 || size > 1.01 {
		t.Errorf("expected ~1 MB, got %v", size)
	}
}
