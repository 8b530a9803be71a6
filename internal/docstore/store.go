package docstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"slicer/internal/config"
)

// Store provides SQLite-backed access to the document/layer model. The export
// core treats it as read-only apart from the layer export-enabled flag.
type Store struct {
	db   *sql.DB
	path string
}

const schema = `
CREATE TABLE IF NOT EXISTS documents (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    created_at TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS layers (
    id TEXT NOT NULL,
    document_id TEXT NOT NULL,
    name TEXT NOT NULL,
    kind TEXT NOT NULL,
    export_enabled INTEGER NOT NULL DEFAULT 0,
    position INTEGER NOT NULL,
    PRIMARY KEY (document_id, id),
    FOREIGN KEY (document_id) REFERENCES documents(id) ON DELETE CASCADE
);
`

// Open initializes or connects to the document database.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}

	dbPath := filepath.Join(cfg.Paths.DataDir, "documents.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &Store{db: db, path: dbPath}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Document fetches a document by identifier. Returns nil when absent.
func (s *Store) Document(ctx context.Context, id string) (*Document, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, name FROM documents WHERE id = ?`, id)
	var doc Document
	if err := row.Scan(&doc.ID, &doc.Name); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get document: %w", err)
	}
	return &doc, nil
}

// Layer fetches a single layer by identifier. Returns nil when absent.
func (s *Store) Layer(ctx context.Context, documentID, layerID string) (*Layer, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT id, document_id, name, kind, export_enabled FROM layers WHERE document_id = ? AND id = ?`,
		documentID, layerID,
	)
	layer, err := scanLayer(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get layer: %w", err)
	}
	return layer, nil
}

// Layers returns all layers of a document in position order.
func (s *Store) Layers(ctx context.Context, documentID string) ([]*Layer, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT id, document_id, name, kind, export_enabled FROM layers WHERE document_id = ? ORDER BY position`,
		documentID,
	)
	if err != nil {
		return nil, fmt.Errorf("list layers: %w", err)
	}
	defer rows.Close()

	var layers []*Layer
	for rows.Next() {
		layer, err := scanLayer(rows)
		if err != nil {
			return nil, fmt.Errorf("scan layer: %w", err)
		}
		layers = append(layers, layer)
	}
	return layers, rows.Err()
}

// ExportEnabledLayers returns the document's layers currently flagged for export.
func (s *Store) ExportEnabledLayers(ctx context.Context, documentID string) ([]*Layer, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT id, document_id, name, kind, export_enabled FROM layers
         WHERE document_id = ? AND export_enabled = 1 ORDER BY position`,
		documentID,
	)
	if err != nil {
		return nil, fmt.Errorf("list export-enabled layers: %w", err)
	}
	defer rows.Close()

	var layers []*Layer
	for rows.Next() {
		layer, err := scanLayer(rows)
		if err != nil {
			return nil, fmt.Errorf("scan layer: %w", err)
		}
		layers = append(layers, layer)
	}
	return layers, rows.Err()
}

// SetLayerExportEnabled flips the export flag on a layer.
func (s *Store) SetLayerExportEnabled(ctx context.Context, documentID, layerID string, enabled bool) error {
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE layers SET export_enabled = ? WHERE document_id = ? AND id = ?`,
		boolToInt(enabled), documentID, layerID,
	)
	if err != nil {
		return fmt.Errorf("set export enabled: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("layer %s/%s not found", documentID, layerID)
	}
	return nil
}

// AddDocument inserts a document. Used by the CLI seed commands and tests.
func (s *Store) AddDocument(ctx context.Context, id, name string) error {
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO documents (id, name, created_at) VALUES (?, ?, ?)`,
		id, name, time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert document: %w", err)
	}
	return nil
}

// AddLayer appends a layer to a document.
func (s *Store) AddLayer(ctx context.Context, layer *Layer) error {
	if layer == nil {
		return errors.New("layer is nil")
	}
	if _, ok := ParseKind(string(layer.Kind)); !ok {
		return fmt.Errorf("unknown layer kind %q", layer.Kind)
	}
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO layers (id, document_id, name, kind, export_enabled, position)
         VALUES (?, ?, ?, ?, ?, (SELECT COALESCE(MAX(position), -1) + 1 FROM layers WHERE document_id = ?))`,
		layer.ID, layer.DocumentID, layer.Name, string(layer.Kind), boolToInt(layer.ExportEnabled), layer.DocumentID,
	)
	if err != nil {
		return fmt.Errorf("insert layer: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLayer(row rowScanner) (*Layer, error) {
	var layer Layer
	var kind string
	var enabled int
	if err := row.Scan(&layer.ID, &layer.DocumentID, &layer.Name, &kind, &enabled); err != nil {
		return nil, err
	}
	layer.Kind = LayerKind(kind)
	layer.ExportEnabled = enabled != 0
	return &layer, nil
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}
