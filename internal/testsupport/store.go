package testsupport

import (
	"context"
	"testing"

	"slicer/internal/config"
	"slicer/internal/docstore"
	"slicer/internal/exports"
	"slicer/internal/prefs"
)

// MustOpenMetadata opens an exports.MetadataStore for tests and registers cleanup.
func MustOpenMetadata(t testing.TB, cfg *config.Config) *exports.MetadataStore {
	t.Helper()

	store, err := exports.OpenMetadata(cfg)
	if err != nil {
		t.Fatalf("exports.OpenMetadata: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// MustOpenDocs opens a docstore.Store for tests and registers cleanup.
func MustOpenDocs(t testing.TB, cfg *config.Config) *docstore.Store {
	t.Helper()

	store, err := docstore.Open(cfg)
	if err != nil {
		t.Fatalf("docstore.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// MustOpenPrefs opens a prefs.Store for tests.
func MustOpenPrefs(t testing.TB, cfg *config.Config) *prefs.Store {
	t.Helper()

	store, err := prefs.Open(cfg.Paths.PrefsPath)
	if err != nil {
		t.Fatalf("prefs.Open: %v", err)
	}
	return store
}

// SeedDocument inserts a document plus layers and returns the document ID.
func SeedDocument(t testing.TB, store *docstore.Store, docID, docName string, layers ...*docstore.Layer) {
	t.Helper()

	ctx := context.Background()
	if err := store.AddDocument(ctx, docID, docName); err != nil {
		t.Fatalf("AddDocument: %v", err)
	}
	for _, layer := range layers {
		layer.DocumentID = docID
		if err := store.AddLayer(ctx, layer); err != nil {
			t.Fatalf("AddLayer %s: %v", layer.ID, err)
		}
	}
}
