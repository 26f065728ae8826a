package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/docstream/pdfextract-worker/internal/assemble"
)

// RunLogName is the append-only run log kept in the output base directory.
// It survives session cleanup because it lives outside any session directory.
const RunLogName = "runs.jsonl"

// runLine is the compact per-run summary appended to the log. The full
// manifest already lives in the session directory; the log only carries what
// is needed to find and rank runs after their sessions are gone.
type runLine struct {
	SessionID string               `json:"session_id"`
	Timestamp string               `json:"timestamp"`
	Source    assemble.SourceStats `json:"source"`
	Pages     assemble.PageStats   `json:"pages"`
	Errors    int                  `json:"errors"`
	OutputDir string               `json:"output_dir"`
}

// JSONLStore appends one line per finished run to runs.jsonl.
type JSONLStore struct {
	baseDir string
}

// NewJSONLStore creates a store rooted at the output base directory.
func NewJSONLStore(baseDir string) *JSONLStore {
	return &JSONLStore{baseDir: baseDir}
}

// RecordRun appends the run summary. O_APPEND keeps concurrent workers from
// interleaving within a line as long as each line stays under the pipe
// atomicity limit, which these summaries always do.
func (s *JSONLStore) RecordRun(ctx context.Context, m *assemble.Manifest) error {
	if m == nil {
		return fmt.Errorf("manifest is required")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	line, err := json.Marshal(runLine{
		SessionID: m.SessionID,
		Timestamp: m.Timestamp,
		Source:    m.Source,
		Pages:     m.Pages,
		Errors:    len(m.Errors),
		OutputDir: m.OutputDir,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal run record: %w", err)
	}

	if err := os.MkdirAll(s.baseDir, 0o755); err != nil {
		return fmt.Errorf("failed to create base directory: %w", err)
	}

	path := filepath.Join(s.baseDir, RunLogName)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open run log: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("failed to append run record: %w", err)
	}
	return nil
}
