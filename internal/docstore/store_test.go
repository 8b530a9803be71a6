package docstore_test

import (
	"context"
	"testing"

	"slicer/internal/docstore"
	"slicer/internal/testsupport"
)

func TestDocumentRoundTrip(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenDocs(t, cfg)
	ctx := context.Background()

	if err := store.AddDocument(ctx, "doc-1", "Poster"); err != nil {
		t.Fatalf("AddDocument: %v", err)
	}

	doc, err := store.Document(ctx, "doc-1")
	if err != nil {
		t.Fatalf("Document: %v", err)
	}
	if doc == nil || doc.Name != "Poster" {
		t.Fatalf("unexpected document: %+v", doc)
	}

	missing, err := store.Document(ctx, "nope")
	if err != nil {
		t.Fatalf("Document missing: %v", err)
	}
	if missing != nil {
		t.Fatalf("expected nil for absent document, got %+v", missing)
	}
}

func TestLayersKeepInsertionOrder(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenDocs(t, cfg)
	testsupport.SeedDocument(t, store, "doc-1", "Poster",
		&docstore.Layer{ID: "l1", Name: "Background", Kind: docstore.KindRaster},
		&docstore.Layer{ID: "l2", Name: "Icon", Kind: docstore.KindVector},
		&docstore.Layer{ID: "l3", Name: "Grid", Kind: docstore.KindGuide},
	)

	layers, err := store.Layers(context.Background(), "doc-1")
	if err != nil {
		t.Fatalf("Layers: %v", err)
	}
	if len(layers) != 3 {
		t.Fatalf("expected 3 layers, got %d", len(layers))
	}
	for i, want := range []string{"l1", "l2", "l3"} {
		if layers[i].ID != want {
			t.Fatalf("position %d: expected %s, got %s", i, want, layers[i].ID)
		}
	}
}

func TestExportEnabledLayers(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenDocs(t, cfg)
	testsupport.SeedDocument(t, store, "doc-1", "Poster",
		&docstore.Layer{ID: "l1", Name: "Background", Kind: docstore.KindRaster},
		&docstore.Layer{ID: "l2", Name: "Icon", Kind: docstore.KindVector, ExportEnabled: true},
	)
	ctx := context.Background()

	enabled, err := store.ExportEnabledLayers(ctx, "doc-1")
	if err != nil {
		t.Fatalf("ExportEnabledLayers: %v", err)
	}
	if len(enabled) != 1 || enabled[0].ID != "l2" {
		t.Fatalf("unexpected enabled set: %+v", enabled)
	}

	if err := store.SetLayerExportEnabled(ctx, "doc-1", "l1", true); err != nil {
		t.Fatalf("SetLayerExportEnabled: %v", err)
	}
	enabled, err = store.ExportEnabledLayers(ctx, "doc-1")
	if err != nil {
		t.Fatalf("ExportEnabledLayers after flip: %v", err)
	}
	if len(enabled) != 2 {
		t.Fatalf("expected 2 enabled layers, got %d", len(enabled))
	}
}

func TestSetLayerExportEnabledUnknownLayer(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenDocs(t, cfg)
	testsupport.SeedDocument(t, store, "doc-1", "Poster")

	if err := store.SetLayerExportEnabled(context.Background(), "doc-1", "missing", true); err == nil {
		t.Fatal("expected error for unknown layer")
	}
}

func TestAddLayerRejectsUnknownKind(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenDocs(t, cfg)
	testsupport.SeedDocument(t, store, "doc-1", "Poster")

	err := store.AddLayer(context.Background(), &docstore.Layer{
		ID:         "l1",
		DocumentID: "doc-1",
		Name:       "Mystery",
		Kind:       docstore.LayerKind("hologram"),
	})
	if err == nil {
		t.Fatal("expected error for unknown kind")
	}
}

func TestExportableKinds(t *testing.T) {
	layers := []*docstore.Layer{
		{ID: "a", Kind: docstore.KindRaster},
		{ID: "b", Kind: docstore.KindAdjustment},
		{ID: "c", Kind: docstore.KindGuide},
		{ID: "d", Kind: docstore.KindGroup},
	}
	kept := docstore.FilterExportable(layers)
	if len(kept) != 2 || kept[0].ID != "a" || kept[1].ID != "d" {
		t.Fatalf("unexpected exportable subset: %+v", kept)
	}
}
