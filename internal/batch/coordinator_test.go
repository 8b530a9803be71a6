package batch_test

import (
	"context"
	"errors"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"

	"slicer/internal/batch"
	"slicer/internal/config"
	"slicer/internal/dialog"
	"slicer/internal/docstore"
	"slicer/internal/exports"
	"slicer/internal/logging"
	"slicer/internal/prefs"
	"slicer/internal/services"
	"slicer/internal/testsupport"
	"slicer/internal/worker"
)

// fakeTransport stands in for the worker's websocket endpoint. Tasks run
// concurrently, so it is safe for parallel Render calls.
type fakeTransport struct {
	mu        sync.Mutex
	requests  []worker.RenderRequest
	failNames map[string]bool
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{failNames: make(map[string]bool)}
}

func (f *fakeTransport) Render(_ context.Context, req worker.RenderRequest) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if f.failNames[req.FileName] {
		return nil, errors.New("render failed")
	}
	return []string{filepath.Join(req.Directory, req.FileName+"."+req.Asset.Format)}, nil
}

func (f *fakeTransport) Close() error { return nil }

func (f *fakeTransport) fileNames() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	names := make([]string, 0, len(f.requests))
	for _, req := range f.requests {
		names = append(names, req.FileName)
	}
	sort.Strings(names)
	return names
}

func (f *fakeTransport) requestCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

type harness struct {
	cfg       *config.Config
	docs      *docstore.Store
	prefs     *prefs.Store
	sync      *exports.Synchronizer
	conn      *worker.Connection
	transport *fakeTransport
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	cfg := testsupport.NewConfig(t)
	docs := testsupport.MustOpenDocs(t, cfg)
	store := testsupport.MustOpenPrefs(t, cfg)
	meta := testsupport.MustOpenMetadata(t, cfg)
	registry := exports.NewRegistry(cfg.Export.Scales)
	syncer := exports.NewSynchronizer(registry, meta, logging.NewNop())

	transport := newFakeTransport()
	dial := func(context.Context, string, int, time.Duration) (worker.Conn, error) {
		return transport, nil
	}
	conn := worker.NewConnection(cfg, store, logging.NewNop(), worker.WithDialer(dial))

	return &harness{
		cfg:       cfg,
		docs:      docs,
		prefs:     store,
		sync:      syncer,
		conn:      conn,
		transport: transport,
	}
}

func (h *harness) connect(t *testing.T) {
	t.Helper()
	if err := h.prefs.Set(prefs.KeyWorkerSettings, worker.Settings{WebsocketServerPort: 40901}); err != nil {
		t.Fatalf("seed settings: %v", err)
	}
	if err := h.conn.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
}

func (h *harness) coordinator(chooser dialog.Chooser) *batch.Coordinator {
	return batch.NewCoordinator(h.sync, h.docs, h.conn, chooser, h.prefs, logging.NewNop())
}

func (h *harness) addAssets(t *testing.T, target exports.Target, assets ...exports.Asset) {
	t.Helper()
	if err := h.sync.AddAssets(context.Background(), target, 0, assets...); err != nil {
		t.Fatalf("AddAssets %s: %v", target, err)
	}
}

func rasterLayer(id, name string, enabled bool) *docstore.Layer {
	return &docstore.Layer{ID: id, Name: name, Kind: docstore.KindRaster, ExportEnabled: enabled}
}

func TestExportLayerAssetsRendersAndReconciles(t *testing.T) {
	h := newHarness(t)
	testsupport.SeedDocument(t, h.docs, "doc-1", "Poster",
		rasterLayer("l1", "Icon", true),
		rasterLayer("l2", "Header", true),
	)
	iconTarget := exports.LayerTarget("doc-1", "l1")
	headerTarget := exports.LayerTarget("doc-1", "l2")
	h.addAssets(t, iconTarget, exports.NewAsset(1, "png"), exports.NewAsset(2, "png"))
	h.addAssets(t, headerTarget, exports.NewAsset(1, "png"))
	h.connect(t)

	chooser := dialog.NewScriptedChooser("/out")
	coord := h.coordinator(chooser)

	outcome, err := coord.ExportLayerAssets(context.Background(), "doc-1", nil, nil)
	if err != nil {
		t.Fatalf("ExportLayerAssets: %v", err)
	}
	if outcome.Exported != 3 || outcome.Failed != 0 || outcome.Skipped != batch.SkipNone {
		t.Fatalf("unexpected outcome: %+v", outcome)
	}

	want := []string{"Header", "Icon", "Icon@2x"}
	got := h.transport.fileNames()
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected filenames %v, got %v", want, got)
		}
	}

	for _, target := range []exports.Target{iconTarget, headerTarget} {
		for _, asset := range h.sync.Registry().Assets(target) {
			if asset.Status != exports.StatusStable {
				t.Fatalf("expected stable status on %s, got %q", target, asset.Status)
			}
			if asset.FilePath == "" {
				t.Fatalf("expected file path recorded on %s", target)
			}
		}
	}

	if chooser.Suspended != 1 || chooser.Restored != 1 {
		t.Fatalf("expected input policies suspended and restored once, got %d/%d",
			chooser.Suspended, chooser.Restored)
	}
	if h.conn.LastFolder() != "/out" {
		t.Fatalf("expected last folder remembered, got %q", h.conn.LastFolder())
	}
}

func TestExportDocumentAssetsUsesDocumentName(t *testing.T) {
	h := newHarness(t)
	testsupport.SeedDocument(t, h.docs, "doc-1", "Poster")
	h.addAssets(t, exports.RootTarget("doc-1"), exports.NewAsset(1, "png"))
	h.connect(t)

	coord := h.coordinator(dialog.NewScriptedChooser("/out"))
	outcome, err := coord.ExportDocumentAssets(context.Background(), "doc-1")
	if err != nil {
		t.Fatalf("ExportDocumentAssets: %v", err)
	}
	if outcome.Exported != 1 {
		t.Fatalf("expected 1 export, got %+v", outcome)
	}
	if names := h.transport.fileNames(); names[0] != "Poster" {
		t.Fatalf("expected document name as filename, got %v", names)
	}
}

func TestExportSkipsWhenWorkerUnavailable(t *testing.T) {
	h := newHarness(t)
	testsupport.SeedDocument(t, h.docs, "doc-1", "Poster", rasterLayer("l1", "Icon", true))

	coord := h.coordinator(dialog.NewScriptedChooser("/out"))
	outcome, err := coord.ExportLayerAssets(context.Background(), "doc-1", nil, nil)
	if err != nil {
		t.Fatalf("expected skip, got error: %v", err)
	}
	if outcome.Skipped != batch.SkipWorkerUnavailable {
		t.Fatalf("expected worker-unavailable skip, got %+v", outcome)
	}
	if h.transport.requestCount() != 0 {
		t.Fatal("expected no render requests")
	}
}

func TestFolderCancelEndsBatchCleanly(t *testing.T) {
	h := newHarness(t)
	testsupport.SeedDocument(t, h.docs, "doc-1", "Poster", rasterLayer("l1", "Icon", true))
	target := exports.LayerTarget("doc-1", "l1")
	h.addAssets(t, target, exports.NewAsset(1, "png"))
	h.connect(t)

	chooser := dialog.NewScriptedChooser("")
	coord := h.coordinator(chooser)

	outcome, err := coord.ExportLayerAssets(context.Background(), "doc-1", nil, nil)
	if err != nil {
		t.Fatalf("cancel must not be an error: %v", err)
	}
	if outcome.Skipped != batch.SkipFolderCancelled || outcome.Exported != 0 {
		t.Fatalf("unexpected outcome: %+v", outcome)
	}
	if h.transport.requestCount() != 0 {
		t.Fatal("expected no render requests after cancel")
	}
	if got := h.sync.Registry().Assets(target)[0].Status; got != exports.StatusQueued {
		t.Fatalf("cancel must not touch asset status, got %q", got)
	}
	if chooser.Suspended != 1 || chooser.Restored != 1 {
		t.Fatalf("expected input policies restored after cancel, got %d/%d",
			chooser.Suspended, chooser.Restored)
	}
	if h.conn.Busy() {
		t.Fatal("expected busy flag clear after cancel")
	}

	// The next request must be accepted.
	if coord.Active() != nil {
		t.Fatal("expected no active batch after cancel")
	}
}

func TestInputPoliciesRestoredOnChooserError(t *testing.T) {
	h := newHarness(t)
	testsupport.SeedDocument(t, h.docs, "doc-1", "Poster", rasterLayer("l1", "Icon", true))
	h.addAssets(t, exports.LayerTarget("doc-1", "l1"), exports.NewAsset(1, "png"))
	h.connect(t)

	chooser := dialog.NewScriptedChooser("/out")
	chooser.Err = errors.New("dialog crashed")
	coord := h.coordinator(chooser)

	_, err := coord.ExportLayerAssets(context.Background(), "doc-1", nil, nil)
	if err == nil {
		t.Fatal("expected chooser error to propagate")
	}
	if !errors.Is(err, services.ErrDialog) {
		t.Fatalf("expected dialog error classification, got %v", err)
	}
	if errors.Is(err, services.ErrValidation) {
		t.Fatalf("chooser failure must not classify as validation, got %v", err)
	}
	if chooser.Restored != 1 {
		t.Fatalf("expected input policies restored on error, got %d", chooser.Restored)
	}
}

// blockingChooser holds the batch open inside folder selection so another
// request can race it.
type blockingChooser struct {
	entered chan struct{}
	release chan struct{}
}

func (b *blockingChooser) ChooseFolder(context.Context, string) (string, error) {
	close(b.entered)
	<-b.release
	return "", nil
}

func (b *blockingChooser) SuspendInputPolicies() {}
func (b *blockingChooser) RestoreInputPolicies() {}

func TestConcurrentBatchRejected(t *testing.T) {
	h := newHarness(t)
	testsupport.SeedDocument(t, h.docs, "doc-1", "Poster", rasterLayer("l1", "Icon", true))
	h.addAssets(t, exports.LayerTarget("doc-1", "l1"), exports.NewAsset(1, "png"))
	h.connect(t)

	chooser := &blockingChooser{entered: make(chan struct{}), release: make(chan struct{})}
	coord := h.coordinator(chooser)

	done := make(chan error, 1)
	go func() {
		_, err := coord.ExportLayerAssets(context.Background(), "doc-1", nil, nil)
		done <- err
	}()
	<-chooser.entered

	if coord.Active() == nil {
		t.Fatal("expected an active batch while chooser is open")
	}
	_, err := coord.ExportLayerAssets(context.Background(), "doc-1", nil, nil)
	if !errors.Is(err, services.ErrBatchConflict) {
		t.Fatalf("expected ErrBatchConflict, got %v", err)
	}

	close(chooser.release)
	if err := <-done; err != nil {
		t.Fatalf("first batch failed: %v", err)
	}
	if coord.Active() != nil {
		t.Fatal("expected active slot released after completion")
	}
}

func TestDefaultAssetBackfilledForEmptyLayer(t *testing.T) {
	h := newHarness(t)
	testsupport.SeedDocument(t, h.docs, "doc-1", "Poster", rasterLayer("l1", "Icon", false))
	h.connect(t)

	coord := h.coordinator(dialog.NewScriptedChooser("/out"))
	outcome, err := coord.ExportLayerAssets(context.Background(), "doc-1", []string{"l1"}, nil)
	if err != nil {
		t.Fatalf("ExportLayerAssets: %v", err)
	}
	if outcome.Exported != 1 {
		t.Fatalf("expected backfilled asset exported, got %+v", outcome)
	}

	target := exports.LayerTarget("doc-1", "l1")
	assets := h.sync.Registry().Assets(target)
	if len(assets) != 1 {
		t.Fatalf("expected one default asset, got %d", len(assets))
	}
	if assets[0].Scale != h.cfg.Export.Scales[0] {
		t.Fatalf("expected first defined scale %v, got %v", h.cfg.Export.Scales[0], assets[0].Scale)
	}

	layer, err := h.docs.Layer(context.Background(), "doc-1", "l1")
	if err != nil || layer == nil {
		t.Fatalf("reload layer: %v", err)
	}
	if !layer.ExportEnabled {
		t.Fatal("expected export flag reconciled to true")
	}
}

func TestDuplicateLayerNamesGetNumberedFiles(t *testing.T) {
	h := newHarness(t)
	testsupport.SeedDocument(t, h.docs, "doc-1", "Poster",
		rasterLayer("l1", "Icon", true),
		rasterLayer("l2", "Icon", true),
	)
	h.addAssets(t, exports.LayerTarget("doc-1", "l1"), exports.NewAsset(1, "png"))
	h.addAssets(t, exports.LayerTarget("doc-1", "l2"), exports.NewAsset(1, "png"))
	h.connect(t)

	coord := h.coordinator(dialog.NewScriptedChooser("/out"))
	if _, err := coord.ExportLayerAssets(context.Background(), "doc-1", nil, nil); err != nil {
		t.Fatalf("ExportLayerAssets: %v", err)
	}

	got := h.transport.fileNames()
	want := []string{"Icon", "Icon 1"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
}

func TestExplicitPrefixApplied(t *testing.T) {
	h := newHarness(t)
	testsupport.SeedDocument(t, h.docs, "doc-1", "Poster", rasterLayer("l1", "Icon", true))
	h.addAssets(t, exports.LayerTarget("doc-1", "l1"), exports.NewAsset(1, "png"))
	h.connect(t)

	coord := h.coordinator(dialog.NewScriptedChooser("/out"))
	prefixes := map[string]string{"l1": "App-"}
	if _, err := coord.ExportLayerAssets(context.Background(), "doc-1", []string{"l1"}, prefixes); err != nil {
		t.Fatalf("ExportLayerAssets: %v", err)
	}
	if names := h.transport.fileNames(); names[0] != "App-Icon" {
		t.Fatalf("expected prefixed filename, got %v", names)
	}
}

func TestArtboardPrefixPreference(t *testing.T) {
	h := newHarness(t)
	testsupport.SeedDocument(t, h.docs, "doc-1", "Poster", rasterLayer("l1", "Icon", true))
	h.addAssets(t, exports.LayerTarget("doc-1", "l1"), exports.NewAsset(1, "png"))
	if err := h.prefs.Set(prefs.KeyArtboardPrefix, true); err != nil {
		t.Fatalf("set preference: %v", err)
	}
	h.connect(t)

	coord := h.coordinator(dialog.NewScriptedChooser("/out"))
	if _, err := coord.ExportLayerAssets(context.Background(), "doc-1", nil, nil); err != nil {
		t.Fatalf("ExportLayerAssets: %v", err)
	}
	if names := h.transport.fileNames(); names[0] != "Poster-Icon" {
		t.Fatalf("expected document-name prefix, got %v", names)
	}
}

func TestRenderFailureIsolatedAndMarked(t *testing.T) {
	h := newHarness(t)
	testsupport.SeedDocument(t, h.docs, "doc-1", "Poster",
		rasterLayer("l1", "Icon", true),
		rasterLayer("l2", "Header", true),
	)
	iconTarget := exports.LayerTarget("doc-1", "l1")
	headerTarget := exports.LayerTarget("doc-1", "l2")
	h.addAssets(t, iconTarget, exports.NewAsset(1, "png"))
	h.addAssets(t, headerTarget, exports.NewAsset(1, "png"))
	h.transport.failNames["Icon"] = true
	h.connect(t)

	coord := h.coordinator(dialog.NewScriptedChooser("/out"))
	outcome, err := coord.ExportLayerAssets(context.Background(), "doc-1", nil, nil)
	if err != nil {
		t.Fatalf("batch must complete despite task failure: %v", err)
	}
	if outcome.Exported != 1 || outcome.Failed != 1 {
		t.Fatalf("unexpected outcome: %+v", outcome)
	}

	icon := h.sync.Registry().Assets(iconTarget)[0]
	if icon.Status != exports.StatusError || icon.FilePath != "" {
		t.Fatalf("expected error status with cleared path, got %+v", icon)
	}
	header := h.sync.Registry().Assets(headerTarget)[0]
	if header.Status != exports.StatusStable {
		t.Fatalf("expected sibling unaffected, got %+v", header)
	}
}

func TestUnknownLayerFailsResolution(t *testing.T) {
	h := newHarness(t)
	testsupport.SeedDocument(t, h.docs, "doc-1", "Poster")
	h.connect(t)

	coord := h.coordinator(dialog.NewScriptedChooser("/out"))
	_, err := coord.ExportLayerAssets(context.Background(), "doc-1", []string{"missing"}, nil)
	if !errors.Is(err, services.ErrTargetResolution) {
		t.Fatalf("expected ErrTargetResolution, got %v", err)
	}
}

func TestUnknownDocumentFailsResolution(t *testing.T) {
	h := newHarness(t)
	h.connect(t)

	coord := h.coordinator(dialog.NewScriptedChooser("/out"))
	_, err := coord.ExportDocumentAssets(context.Background(), "missing")
	if !errors.Is(err, services.ErrTargetResolution) {
		t.Fatalf("expected ErrTargetResolution, got %v", err)
	}
}

func TestNonExportableLayersSkipped(t *testing.T) {
	h := newHarness(t)
	guide := &docstore.Layer{ID: "g1", Name: "Grid", Kind: docstore.KindGuide, ExportEnabled: true}
	testsupport.SeedDocument(t, h.docs, "doc-1", "Poster", guide)
	h.connect(t)

	coord := h.coordinator(dialog.NewScriptedChooser("/out"))
	outcome, err := coord.ExportLayerAssets(context.Background(), "doc-1", nil, nil)
	if err != nil {
		t.Fatalf("ExportLayerAssets: %v", err)
	}
	if outcome.Skipped != batch.SkipNoTargets {
		t.Fatalf("expected no-targets skip, got %+v", outcome)
	}
	if h.transport.requestCount() != 0 {
		t.Fatal("expected no render requests")
	}
}
