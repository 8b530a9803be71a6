package exports

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"slicer/internal/config"
)

// MetadataStore persists the projected export configuration per target as a
// single JSON payload row, backed by SQLite.
type MetadataStore struct {
	db   *sql.DB
	path string
}

const metadataSchema = `
CREATE TABLE IF NOT EXISTS export_metadata (
    document_id TEXT NOT NULL,
    layer_id TEXT NOT NULL DEFAULT '',
    payload TEXT NOT NULL,
    updated_at TEXT NOT NULL,
    PRIMARY KEY (document_id, layer_id)
);
`

// HealthSummary describes aggregated asset counts per lifecycle state.
type HealthSummary struct {
	Targets int
	Assets  int
	Queued  int
	Stable  int
	Errored int
}

// OpenMetadata initializes or connects to the export metadata database.
func OpenMetadata(cfg *config.Config) (*MetadataStore, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}

	dbPath := filepath.Join(cfg.Paths.DataDir, "exports.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	if _, err := db.Exec(metadataSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &MetadataStore{db: db, path: dbPath}, nil
}

// Close closes the underlying database connection.
func (m *MetadataStore) Close() error {
	if m == nil || m.db == nil {
		return nil
	}
	return m.db.Close()
}

// Path returns the database file location.
func (m *MetadataStore) Path() string {
	return m.path
}

// Put writes the full asset list for a target as one atomic upsert.
func (m *MetadataStore) Put(ctx context.Context, target Target, assets []Asset) error {
	payload, err := json.Marshal(assets)
	if err != nil {
		return fmt.Errorf("marshal assets: %w", err)
	}
	_, err = m.db.ExecContext(
		ctx,
		`INSERT INTO export_metadata (document_id, layer_id, payload, updated_at)
         VALUES (?, ?, ?, ?)
         ON CONFLICT(document_id, layer_id) DO UPDATE SET payload = excluded.payload, updated_at = excluded.updated_at`,
		target.DocumentID,
		target.LayerID,
		string(payload),
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("upsert metadata: %w", err)
	}
	return nil
}

// Get reads the persisted asset list for a target. The second return value is
// false when no row exists.
func (m *MetadataStore) Get(ctx context.Context, target Target) ([]Asset, bool, error) {
	row := m.db.QueryRowContext(
		ctx,
		`SELECT payload FROM export_metadata WHERE document_id = ? AND layer_id = ?`,
		target.DocumentID, target.LayerID,
	)
	var payload string
	if err := row.Scan(&payload); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("get metadata: %w", err)
	}
	var assets []Asset
	if err := json.Unmarshal([]byte(payload), &assets); err != nil {
		return nil, false, fmt.Errorf("parse metadata payload: %w", err)
	}
	return assets, true, nil
}

// Targets returns every persisted target for a document, root first.
func (m *MetadataStore) Targets(ctx context.Context, documentID string) ([]Target, error) {
	rows, err := m.db.QueryContext(
		ctx,
		`SELECT layer_id FROM export_metadata WHERE document_id = ? ORDER BY layer_id`,
		documentID,
	)
	if err != nil {
		return nil, fmt.Errorf("list metadata targets: %w", err)
	}
	defer rows.Close()

	var targets []Target
	for rows.Next() {
		var layerID string
		if err := rows.Scan(&layerID); err != nil {
			return nil, fmt.Errorf("scan target: %w", err)
		}
		targets = append(targets, Target{DocumentID: documentID, LayerID: layerID})
	}
	return targets, rows.Err()
}

// DeleteDocument removes every persisted row for a document.
func (m *MetadataStore) DeleteDocument(ctx context.Context, documentID string) error {
	if _, err := m.db.ExecContext(ctx, `DELETE FROM export_metadata WHERE document_id = ?`, documentID); err != nil {
		return fmt.Errorf("delete document metadata: %w", err)
	}
	return nil
}

// Health aggregates persisted asset counts across all documents.
func (m *MetadataStore) Health(ctx context.Context) (HealthSummary, error) {
	rows, err := m.db.QueryContext(ctx, `SELECT payload FROM export_metadata`)
	if err != nil {
		return HealthSummary{}, fmt.Errorf("scan metadata: %w", err)
	}
	defer rows.Close()

	var summary HealthSummary
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return HealthSummary{}, fmt.Errorf("scan payload: %w", err)
		}
		var assets []Asset
		if err := json.Unmarshal([]byte(payload), &assets); err != nil {
			continue
		}
		summary.Targets++
		summary.Assets += len(assets)
		for _, asset := range assets {
			switch asset.Status {
			case StatusStable:
				summary.Stable++
			case StatusError:
				summary.Errored++
			default:
				summary.Queued++
			}
		}
	}
	return summary, rows.Err()
}
