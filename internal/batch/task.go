package batch

import (
	"context"
	"log/slog"

	"slicer/internal/exports"
	"slicer/internal/logging"
	"slicer/internal/worker"
)

// Task performs one asset's export against the worker and reconciles the
// outcome into the registry. Task failures are isolated: a failed render or a
// failed status write never aborts sibling tasks in the same batch.
type Task struct {
	conn   *worker.Connection
	sync   *exports.Synchronizer
	logger *slog.Logger

	target    exports.Target
	index     int
	asset     exports.Asset
	directory string
	baseName  string
	prefix    string
}

// FileName derives the output filename: optional prefix, base name, and the
// asset's suffix. The worker appends the format extension.
func (t *Task) FileName() string {
	return t.prefix + t.baseName + t.asset.Suffix
}

// Run executes the export round trip. The returned error reports the render
// outcome for batch aggregation; registry update failures are logged only.
func (t *Task) Run(ctx context.Context) error {
	logger := t.logger.With(
		logging.String(logging.FieldDocumentID, t.target.DocumentID),
		logging.String(logging.FieldLayerID, t.target.LayerID),
		logging.Int(logging.FieldAssetIndex, t.index),
	)

	t.applyPatch(ctx, logger, requestedPatch())

	paths, err := t.conn.Render(ctx, worker.RenderRequest{
		DocumentID: t.target.DocumentID,
		LayerID:    t.target.LayerID,
		Asset:      t.asset,
		FileName:   t.FileName(),
		Directory:  t.directory,
	})
	if err != nil {
		logger.Error("asset export failed",
			logging.Error(err),
			logging.String("file_name", t.FileName()),
			logging.String(logging.FieldEventType, "asset_export_failed"),
		)
		t.applyPatch(ctx, logger, exports.ErrorPatch())
		return err
	}

	logger.Info("asset exported",
		logging.String("path", paths[0]),
		logging.String(logging.FieldEventType, "asset_exported"),
	)
	t.applyPatch(ctx, logger, exports.StablePatch(paths[0]))
	return nil
}

// applyPatch writes a status transition through the synchronizer, suppressing
// error propagation: post-export bookkeeping must never throw out of a task.
func (t *Task) applyPatch(ctx context.Context, logger *slog.Logger, patch exports.Patch) {
	if _, err := t.sync.UpdateAsset(ctx, t.target, t.index, patch); err != nil {
		logger.Warn("asset status update failed",
			logging.Error(err),
			logging.String(logging.FieldEventType, "asset_status_update_failed"),
			logging.String(logging.FieldErrorHint, "persisted metadata may lag the export outcome"),
		)
	}
}

func requestedPatch() exports.Patch {
	status := exports.StatusRequested
	return exports.Patch{Status: &status}
}
