package session

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/docstream/pdfextract-worker/internal/logging"
)

const (
	// dirPrefix marks directories under the base dir that belong to us.
	// Anything else in the base dir is never touched by cleanup.
	dirPrefix = "session_"

	// TablesSubdir and ImagesSubdir are the fixed asset locations inside a
	// session directory. Paths recorded in the combined XML are relative to
	// the session root.
	TablesSubdir = "tables"
	ImagesSubdir = "assets/images"
)

// Session is one isolated run's output directory and identifier. It is the
// unit of retention: cleanup removes whole session directories, never files
// inside a live one.
type Session struct {
	ID        string
	Dir       string
	CreatedAt time.Time
	Current   bool
}

// TablesDir returns the absolute path of the session's table file directory.
func (s *Session) TablesDir() string {
	return filepath.Join(s.Dir, TablesSubdir)
}

// ImagesDir returns the absolute path of the session's image asset directory.
func (s *Session) ImagesDir() string {
	return filepath.Join(s.Dir, ImagesSubdir)
}

// Manager allocates session directories and applies the retention policy.
type Manager struct {
	log *logging.Logger
	now func() time.Time
}

// NewManager creates a session manager.
func NewManager() *Manager {
	return &Manager{
		log: logging.NewLogger("session"),
		now: time.Now,
	}
}

// Create allocates a new current session under baseDir: a collision-resistant
// identifier, the session root, and the tables/ and assets/images/ subdirectories.
func (m *Manager) Create(baseDir string) (*Session, error) {
	id := uuid.NewString()
	dir := filepath.Join(baseDir, dirPrefix+id)

	for _, d := range []string{dir, filepath.Join(dir, TablesSubdir), filepath.Join(dir, ImagesSubdir)} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create session directory %s: %w", d, err)
		}
	}

	s := &Session{
		ID:        id,
		Dir:       dir,
		CreatedAt: m.now(),
		Current:   true,
	}
	m.log.Info("session created", "id", id, "dir", dir)
	return s, nil
}

// Discard removes a session directory. Used only by the orchestrator on a
// fatal input abort, before any page output exists.
func (m *Manager) Discard(s *Session) error {
	if s == nil {
		return nil
	}
	return os.RemoveAll(s.Dir)
}

// List enumerates all session directories under baseDir, most recently
// modified first.
func (m *Manager) List(baseDir string) ([]*Session, error) {
	entries, err := os.ReadDir(baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read base directory %s: %w", baseDir, err)
	}

	var sessions []*Session
	for _, entry := range entries {
		if !entry.IsDir() || !strings.HasPrefix(entry.Name(), dirPrefix) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		sessions = append(sessions, &Session{
			ID:        strings.TrimPrefix(entry.Name(), dirPrefix),
			Dir:       filepath.Join(baseDir, entry.Name()),
			CreatedAt: info.ModTime(),
		})
	}

	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].CreatedAt.After(sessions[j].CreatedAt)
	})
	return sessions, nil
}

// DirSizeMB computes the recursive on-disk size of a directory in megabytes.
func DirSizeMB(dir string) float64 {
	var total int64
	filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // unreadable entries contribute zero
		}
		if !info.IsDir() {
			total += info.Size()
		}
		return nil
	})
	return float64(total) / (1024 * 1024)
}
