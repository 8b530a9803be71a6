package exports

import (
	"context"
	"log/slog"

	"slicer/internal/logging"
	"slicer/internal/services"
)

// Synchronizer pairs registry mutations with metadata persistence so that
// in-memory and persisted state never diverge for longer than one operation.
// Every sync re-reads the registry; it never writes a cached projection,
// because concurrent tasks may have mutated the target since the caller
// last looked.
type Synchronizer struct {
	registry *Registry
	meta     *MetadataStore
	logger   *slog.Logger
}

// NewSynchronizer wires a registry to its persistence store.
func NewSynchronizer(registry *Registry, meta *MetadataStore, logger *slog.Logger) *Synchronizer {
	return &Synchronizer{
		registry: registry,
		meta:     meta,
		logger:   logging.NewComponentLogger(logger, "metadata-sync"),
	}
}

// Registry returns the underlying registry.
func (s *Synchronizer) Registry() *Registry {
	return s.registry
}

// Sync projects current registry state for the given document into the
// metadata store: one atomic write per target. With no layer IDs the document
// root list is written; otherwise each named layer list is.
func (s *Synchronizer) Sync(ctx context.Context, documentID string, layerIDs ...string) error {
	if len(layerIDs) == 0 {
		return s.SyncTarget(ctx, RootTarget(documentID))
	}
	for _, layerID := range layerIDs {
		if err := s.SyncTarget(ctx, LayerTarget(documentID, layerID)); err != nil {
			return err
		}
	}
	return nil
}

// SyncTarget writes one target's fresh registry state to the metadata store.
func (s *Synchronizer) SyncTarget(ctx context.Context, target Target) error {
	assets := s.registry.Assets(target)
	if err := s.meta.Put(ctx, target, assets); err != nil {
		return services.Wrap(services.ErrSync, "metadata-sync", "put", target.String(), err)
	}
	return nil
}

// AddAssets inserts assets at index and persists the target.
func (s *Synchronizer) AddAssets(ctx context.Context, target Target, index int, assets ...Asset) error {
	if err := s.registry.AddAssets(target, index, assets...); err != nil {
		return err
	}
	return s.SyncTarget(ctx, target)
}

// AddDefaultAsset appends one default asset (next unused scale) to the target.
func (s *Synchronizer) AddDefaultAsset(ctx context.Context, target Target) (Asset, error) {
	asset := s.registry.NextDefaultAsset(target)
	index := len(s.registry.Assets(target))
	if err := s.AddAssets(ctx, target, index, asset); err != nil {
		return Asset{}, err
	}
	return asset, nil
}

// UpdateAsset merges a patch into the asset at index and persists the target.
func (s *Synchronizer) UpdateAsset(ctx context.Context, target Target, index int, patch Patch) (Asset, error) {
	merged, err := s.registry.UpdateAsset(target, index, patch)
	if err != nil {
		return Asset{}, err
	}
	if err := s.SyncTarget(ctx, target); err != nil {
		return merged, err
	}
	return merged, nil
}

// DeleteAsset removes the asset at index and persists the target.
func (s *Synchronizer) DeleteAsset(ctx context.Context, target Target, index int) error {
	if err := s.registry.DeleteAsset(target, index); err != nil {
		return err
	}
	return s.SyncTarget(ctx, target)
}

// Hydrate loads persisted metadata for a document into the registry. Targets
// already present in memory are left untouched; the registry stays canonical
// once a document is open.
func (s *Synchronizer) Hydrate(ctx context.Context, documentID string) error {
	if s.registry.HasDocument(documentID) {
		return nil
	}
	targets, err := s.meta.Targets(ctx, documentID)
	if err != nil {
		return services.Wrap(services.ErrSync, "metadata-sync", "hydrate", documentID, err)
	}
	for _, target := range targets {
		assets, ok, err := s.meta.Get(ctx, target)
		if err != nil {
			return services.Wrap(services.ErrSync, "metadata-sync", "hydrate", target.String(), err)
		}
		if !ok {
			continue
		}
		s.registry.Replace(target, assets)
	}
	if len(targets) > 0 {
		s.logger.Debug("hydrated document exports",
			logging.String(logging.FieldDocumentID, documentID),
			logging.Int("targets", len(targets)),
		)
	}
	return nil
}

// CloseDocument drops in-memory state for a document; persisted metadata
// remains for the next open.
func (s *Synchronizer) CloseDocument(documentID string) {
	s.registry.CloseDocument(documentID)
}
