package batch

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"slicer/internal/dialog"
	"slicer/internal/docstore"
	"slicer/internal/exports"
	"slicer/internal/logging"
	"slicer/internal/prefs"
	"slicer/internal/services"
	"slicer/internal/worker"
)

// DocumentSource is the narrow view of the document/layer store the
// coordinator consumes. The full model lives elsewhere; the export core only
// needs identity, names, kinds, and the export-enabled flag.
type DocumentSource interface {
	Document(ctx context.Context, id string) (*docstore.Document, error)
	Layer(ctx context.Context, documentID, layerID string) (*docstore.Layer, error)
	ExportEnabledLayers(ctx context.Context, documentID string) ([]*docstore.Layer, error)
	SetLayerExportEnabled(ctx context.Context, documentID, layerID string, enabled bool) error
}

// SkipReason explains why a request completed without launching any tasks.
type SkipReason string

const (
	SkipNone              SkipReason = ""
	SkipWorkerUnavailable SkipReason = "worker-unavailable"
	SkipFolderCancelled   SkipReason = "folder-cancelled"
	SkipNoTargets         SkipReason = "no-targets"
)

// Outcome summarizes one export request.
type Outcome struct {
	BatchID  string
	Exported int
	Failed   int
	Skipped  SkipReason
}

// Job identifies the set of in-flight export tasks for one request.
type Job struct {
	ID      string
	Started time.Time
	Tasks   int
}

// Coordinator drives one export request at a time: target resolution, default
// asset backfill, folder selection, task fan-out, and reconciliation. At most
// one batch is active process-wide; concurrent requests are rejected rather
// than queued, pushing retry responsibility to the caller.
type Coordinator struct {
	logger  *slog.Logger
	sync    *exports.Synchronizer
	docs    DocumentSource
	conn    *worker.Connection
	chooser dialog.Chooser
	prefs   *prefs.Store

	mu     sync.Mutex
	active *Job
}

// NewCoordinator wires the export orchestrator.
func NewCoordinator(
	syncer *exports.Synchronizer,
	docs DocumentSource,
	conn *worker.Connection,
	chooser dialog.Chooser,
	store *prefs.Store,
	logger *slog.Logger,
) *Coordinator {
	return &Coordinator{
		logger:  logging.NewComponentLogger(logger, "batch"),
		sync:    syncer,
		docs:    docs,
		conn:    conn,
		chooser: chooser,
		prefs:   store,
	}
}

// Active returns the currently running job, or nil.
func (c *Coordinator) Active() *Job {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

// ExportDocumentAssets exports the document-level asset list.
func (c *Coordinator) ExportDocumentAssets(ctx context.Context, documentID string) (*Outcome, error) {
	return c.run(ctx, documentID, nil, nil, true)
}

// ExportLayerAssets exports per-layer assets. With no explicit layer IDs the
// request resolves to every export-enabled layer of the document. The prefix
// map supplies optional per-layer filename prefixes.
func (c *Coordinator) ExportLayerAssets(ctx context.Context, documentID string, layerIDs []string, prefixes map[string]string) (*Outcome, error) {
	return c.run(ctx, documentID, layerIDs, prefixes, false)
}

// exportUnit is one resolved target with its claimed base filename.
type exportUnit struct {
	target   exports.Target
	layer    *docstore.Layer
	baseName string
	prefix   string
}

func (c *Coordinator) run(ctx context.Context, documentID string, layerIDs []string, prefixes map[string]string, documentLevel bool) (*Outcome, error) {
	job := &Job{ID: uuid.NewString(), Started: time.Now()}

	c.mu.Lock()
	if c.active != nil {
		c.mu.Unlock()
		return nil, services.Wrap(services.ErrBatchConflict, "batch", "start",
			"an export batch is already in progress", nil)
	}
	c.active = job
	c.mu.Unlock()

	// Completion clears the active-batch marker first, then the busy flag,
	// on every exit path.
	defer func() {
		c.mu.Lock()
		c.active = nil
		c.mu.Unlock()
		c.conn.SetBusy(false)
	}()

	ctx = services.WithBatchID(services.WithDocumentID(ctx, documentID), job.ID)
	logger := logging.WithContext(ctx, c.logger)

	if !c.conn.IsReady() {
		// A recoverable UI state, not an error.
		logger.Warn("export skipped: worker unavailable",
			logging.String(logging.FieldEventType, "worker_unavailable"),
			logging.String(logging.FieldErrorHint, "reconnect the worker and retry"),
		)
		return &Outcome{BatchID: job.ID, Skipped: SkipWorkerUnavailable}, nil
	}

	if err := c.sync.Hydrate(ctx, documentID); err != nil {
		return nil, err
	}

	doc, err := c.docs.Document(ctx, documentID)
	if err != nil {
		return nil, services.Wrap(services.ErrTargetResolution, "batch", "resolve document", documentID, err)
	}
	if doc == nil {
		return nil, services.Wrap(services.ErrTargetResolution, "batch", "resolve document",
			fmt.Sprintf("document %s not found", documentID), nil)
	}

	units, err := c.resolveUnits(ctx, doc, layerIDs, prefixes, documentLevel)
	if err != nil {
		return nil, err
	}
	if len(units) == 0 {
		logger.Info("export skipped: no exportable targets")
		return &Outcome{BatchID: job.ID, Skipped: SkipNoTargets}, nil
	}

	// Layers flagged for export with zero configured assets still must
	// produce output: backfill one default asset before any task launches.
	if err := c.ensureDefaultAssets(ctx, logger, units); err != nil {
		return nil, err
	}

	folder, err := c.chooseFolder(ctx)
	if err != nil {
		return nil, err
	}
	if folder == "" {
		// User cancel ends the request successfully with zero exports.
		logger.Info("export cancelled at folder selection")
		return &Outcome{BatchID: job.ID, Skipped: SkipFolderCancelled}, nil
	}
	c.conn.SetLastFolder(folder)

	return c.fanOut(ctx, logger, job, units, folder)
}

func (c *Coordinator) resolveUnits(ctx context.Context, doc *docstore.Document, layerIDs []string, prefixes map[string]string, documentLevel bool) ([]exportUnit, error) {
	if documentLevel {
		return []exportUnit{{
			target:   exports.RootTarget(doc.ID),
			baseName: doc.Name,
		}}, nil
	}

	var layers []*docstore.Layer
	if len(layerIDs) > 0 {
		for _, layerID := range layerIDs {
			layer, err := c.docs.Layer(ctx, doc.ID, layerID)
			if err != nil {
				return nil, services.Wrap(services.ErrTargetResolution, "batch", "resolve layer", layerID, err)
			}
			if layer == nil {
				return nil, services.Wrap(services.ErrTargetResolution, "batch", "resolve layer",
					fmt.Sprintf("layer %s not found in document %s", layerID, doc.ID), nil)
			}
			layers = append(layers, layer)
		}
	} else {
		enabled, err := c.docs.ExportEnabledLayers(ctx, doc.ID)
		if err != nil {
			return nil, services.Wrap(services.ErrTargetResolution, "batch", "resolve layers", doc.ID, err)
		}
		layers = enabled
	}

	layers = docstore.FilterExportable(layers)

	defaultPrefix := c.defaultPrefix(doc)
	names := newNameAllocator()
	units := make([]exportUnit, 0, len(layers))
	for _, layer := range layers {
		prefix := defaultPrefix
		if explicit, ok := prefixes[layer.ID]; ok {
			prefix = explicit
		}
		units = append(units, exportUnit{
			target:   exports.LayerTarget(doc.ID, layer.ID),
			layer:    layer,
			baseName: names.Claim(layer.Name),
			prefix:   prefix,
		})
	}
	return units, nil
}

// defaultPrefix returns the document-name prefix when the artboard-prefix
// preference toggle is on.
func (c *Coordinator) defaultPrefix(doc *docstore.Document) string {
	on, err := c.prefs.GetBool(prefs.KeyArtboardPrefix)
	if err != nil || !on {
		return ""
	}
	return doc.Name + "-"
}

func (c *Coordinator) ensureDefaultAssets(ctx context.Context, logger *slog.Logger, units []exportUnit) error {
	for _, unit := range units {
		if unit.target.IsRoot() {
			continue
		}
		if len(c.sync.Registry().Assets(unit.target)) > 0 {
			continue
		}
		asset, err := c.sync.AddDefaultAsset(ctx, unit.target)
		if err != nil {
			return err
		}
		logger.Debug("default asset added",
			logging.String(logging.FieldLayerID, unit.target.LayerID),
			logging.Float64("scale", asset.Scale),
		)
		// Flag reconciliation is best-effort and independent of the asset
		// add; the export proceeds either way.
		if unit.layer != nil && !unit.layer.ExportEnabled {
			if err := c.docs.SetLayerExportEnabled(ctx, unit.target.DocumentID, unit.target.LayerID, true); err != nil {
				logger.Warn("enable export flag failed",
					logging.String(logging.FieldLayerID, unit.target.LayerID),
					logging.Error(err),
				)
			}
		}
	}
	return nil
}

// chooseFolder runs the native folder dialog with input policies suspended,
// restoring them on every exit path.
func (c *Coordinator) chooseFolder(ctx context.Context) (string, error) {
	c.chooser.SuspendInputPolicies()
	defer c.chooser.RestoreInputPolicies()

	folder, err := c.chooser.ChooseFolder(ctx, c.conn.LastFolder())
	if err != nil {
		return "", services.Wrap(services.ErrDialog, "batch", "choose folder", "", err)
	}
	return folder, nil
}

func (c *Coordinator) fanOut(ctx context.Context, logger *slog.Logger, job *Job, units []exportUnit, folder string) (*Outcome, error) {
	var tasks []*Task
	for _, unit := range units {
		assets := c.sync.Registry().Assets(unit.target)
		for index, asset := range assets {
			tasks = append(tasks, &Task{
				conn:      c.conn,
				sync:      c.sync,
				logger:    logger,
				target:    unit.target,
				index:     index,
				asset:     asset,
				directory: folder,
				baseName:  unit.baseName,
				prefix:    unit.prefix,
			})
		}
	}
	job.Tasks = len(tasks)

	if len(tasks) == 0 {
		logger.Info("export skipped: no configured assets")
		return &Outcome{BatchID: job.ID, Skipped: SkipNoTargets}, nil
	}

	c.conn.SetBusy(true)
	logger.Info("export batch started",
		logging.Int("tasks", len(tasks)),
		logging.String("folder", folder),
	)

	// Tasks settle independently: a failure never cancels siblings, and no
	// ordering is guaranteed between them.
	var failures atomic.Int64
	var wg sync.WaitGroup
	wg.Add(len(tasks))
	for _, task := range tasks {
		go func(task *Task) {
			defer wg.Done()
			if err := task.Run(ctx); err != nil {
				failures.Add(1)
			}
		}(task)
	}
	wg.Wait()

	failed := int(failures.Load())
	outcome := &Outcome{
		BatchID:  job.ID,
		Exported: len(tasks) - failed,
		Failed:   failed,
	}
	if failed > 0 {
		logger.Warn("export batch completed with failures",
			logging.Int("failed", failed),
			logging.Int("exported", outcome.Exported),
			logging.Duration("elapsed", time.Since(job.Started)),
		)
	} else {
		logger.Info("export batch completed",
			logging.Int("exported", outcome.Exported),
			logging.Duration("elapsed", time.Since(job.Started)),
		)
	}
	return outcome, nil
}
