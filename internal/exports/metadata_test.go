package exports_test

import (
	"context"
	"testing"

	"slicer/internal/exports"
	"slicer/internal/testsupport"
)

func TestMetadataPutGetRoundTrip(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenMetadata(t, cfg)

	ctx := context.Background()
	target := exports.LayerTarget("doc-1", "layer-1")
	assets := []exports.Asset{exports.NewAsset(1, "png"), exports.NewAsset(2, "svg")}

	if err := store.Put(ctx, target, assets); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	got, ok, err := store.Get(ctx, target)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !ok {
		t.Fatal("expected persisted row")
	}
	if len(got) != 2 || got[0].Scale != 1 || got[1].Format != "svg" {
		t.Fatalf("unexpected payload: %#v", got)
	}
}

func TestMetadataPutOverwrites(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenMetadata(t, cfg)

	ctx := context.Background()
	target := exports.RootTarget("doc-1")
	if err := store.Put(ctx, target, []exports.Asset{exports.NewAsset(1, "png")}); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if err := store.Put(ctx, target, []exports.Asset{exports.NewAsset(2, "jpg"), exports.NewAsset(3, "png")}); err != nil {
		t.Fatalf("second Put failed: %v", err)
	}

	got, ok, err := store.Get(ctx, target)
	if err != nil || !ok {
		t.Fatalf("Get failed: ok=%v err=%v", ok, err)
	}
	if len(got) != 2 || got[0].Scale != 2 {
		t.Fatalf("expected overwritten payload, got %#v", got)
	}
}

func TestMetadataGetMissing(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenMetadata(t, cfg)

	_, ok, err := store.Get(context.Background(), exports.RootTarget("absent"))
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if ok {
		t.Fatal("expected no row for absent target")
	}
}

func TestMetadataTargetsAndDelete(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenMetadata(t, cfg)

	ctx := context.Background()
	for _, target := range []exports.Target{
		exports.RootTarget("doc-1"),
		exports.LayerTarget("doc-1", "layer-a"),
		exports.LayerTarget("doc-2", "layer-b"),
	} {
		if err := store.Put(ctx, target, []exports.Asset{exports.NewAsset(1, "png")}); err != nil {
			t.Fatalf("Put failed: %v", err)
		}
	}

	targets, err := store.Targets(ctx, "doc-1")
	if err != nil {
		t.Fatalf("Targets failed: %v", err)
	}
	if len(targets) != 2 {
		t.Fatalf("expected 2 targets for doc-1, got %d", len(targets))
	}
	if !targets[0].IsRoot() {
		t.Fatalf("expected root target first, got %#v", targets[0])
	}

	if err := store.DeleteDocument(ctx, "doc-1"); err != nil {
		t.Fatalf("DeleteDocument failed: %v", err)
	}
	targets, err = store.Targets(ctx, "doc-1")
	if err != nil {
		t.Fatalf("Targets failed: %v", err)
	}
	if len(targets) != 0 {
		t.Fatalf("expected doc-1 rows removed, got %d", len(targets))
	}
}

func TestMetadataHealth(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenMetadata(t, cfg)

	ctx := context.Background()
	stable := exports.NewAsset(1, "png")
	stable.Status = exports.StatusStable
	stable.FilePath = "/out/icon.png"
	errored := exports.NewAsset(2, "png")
	errored.Status = exports.StatusError

	if err := store.Put(ctx, exports.RootTarget("doc-1"), []exports.Asset{stable, errored, exports.NewAsset(3, "png")}); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	summary, err := store.Health(ctx)
	if err != nil {
		t.Fatalf("Health failed: %v", err)
	}
	if summary.Targets != 1 || summary.Assets != 3 {
		t.Fatalf("unexpected totals: %#v", summary)
	}
	if summary.Stable != 1 || summary.Errored != 1 || summary.Queued != 1 {
		t.Fatalf("unexpected per-status counts: %#v", summary)
	}
}
