// Package storage persists cross-session run records: one JSON line per run
// in the output base directory, and optionally a row per run in PostgreSQL
// when a database is configured.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/docstream/pdfextract-worker/internal/assemble"
)

// PostgresStore writes run records to the extraction_runs table.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore connects to PostgreSQL and verifies the connection.
func NewPostgresStore(databaseURL string) (*PostgresStore, error) {
	if databaseURL == "" {
		return nil, fmt.Errorf("database URL is required")
	}

	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(2 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresStore{db: db}, nil
}

// RecordRun upserts one run record keyed by session id. The upsert handles
// a retried job that re-reports the same session without violating the
// primary key.
func (p *PostgresStore) RecordRun(ctx context.Context, m *assemble.Manifest) error {
	if m == nil || m.SessionID == "" {
		return fmt.Errorf("manifest with session id is required")
	}

	manifestJSON, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to marshal manifest: %w", err)
	}

	query := `
		INSERT INTO extraction_runs (
			session_id, source_path, source_size_bytes, page_count,
			pages_processed, pages_ocr, images_extracted, tables_extracted,
			error_count, output_dir, manifest, created_at
		) VALUES (
			$1::uuid, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11::jsonb, NOW()
		)
		ON CONFLICT (session_id) DO UPDATE SET
			pages_processed = EXCLUDED.pages_processed,
			pages_ocr = EXCLUDED.pages_ocr,
			images_extracted = EXCLUDED.images_extracted,
			tables_extracted = EXCLUDED.tables_extracted,
			error_count = EXCLUDED.error_count,
			manifest = EXCLUDED.manifest
	`

	_, err = p.db.ExecContext(
		ctx,
		query,
		m.SessionID,
		m.Source.Path,
		m.Source.SizeBytes,
		m.Source.PageCount,
		m.Pages.PagesProcessed,
		m.Pages.PagesOCR,
		m.Pages.ImagesExtracted,
		m.Pages.TablesExtracted,
		len(m.Errors),
		m.OutputDir,
		manifestJSON,
	)
	if err != nil {
		return fmt.Errorf("failed to record run %s: %w", m.SessionID, err)
	}
	return nil
}

// Ping checks database connectivity.
func (p *PostgresStore) Ping(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

// Close closes the database connection.
func (p *PostgresStore) Close() error {
	if p.db != nil {
		return p.db.Close()
	}
	return nil
}
