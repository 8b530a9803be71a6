package exports

import (
	"fmt"
	"sync"

	"slicer/internal/services"
)

// DocumentExports holds the configured assets for one document: the root list
// plus per-layer lists keyed by layer identifier. Index position within a list
// is the stable identity used for updates and deletes.
type DocumentExports struct {
	Root   []Asset
	Layers map[string][]Asset
}

// Registry owns the canonical in-memory mapping from document/layer targets to
// configured asset lists. Document entries are created lazily on first access
// and live until the document is closed or the registry is reset.
type Registry struct {
	mu     sync.Mutex
	scales []float64
	docs   map[string]*DocumentExports
}

// NewRegistry constructs a registry using the given defined scale order for
// default-asset selection.
func NewRegistry(scales []float64) *Registry {
	cp := make([]float64, len(scales))
	copy(cp, scales)
	return &Registry{
		scales: cp,
		docs:   make(map[string]*DocumentExports),
	}
}

// AddAssets inserts assets at index within the target's list, shifting
// subsequent entries. Index must be within [0, len(list)].
func (r *Registry) AddAssets(target Target, index int, assets ...Asset) error {
	if len(assets) == 0 {
		return services.Wrap(services.ErrValidation, "registry", "add", "no assets given", nil)
	}
	for _, asset := range assets {
		if err := asset.Validate(); err != nil {
			return services.Wrap(services.ErrValidation, "registry", "add", err.Error(), nil)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	list := r.listLocked(target)
	if index < 0 || index > len(list) {
		return services.Wrap(services.ErrValidation, "registry", "add",
			fmt.Sprintf("index %d out of range [0,%d]", index, len(list)), nil)
	}

	updated := make([]Asset, 0, len(list)+len(assets))
	updated = append(updated, list[:index]...)
	updated = append(updated, assets...)
	updated = append(updated, list[index:]...)
	r.storeLocked(target, updated)
	return nil
}

// UpdateAsset merges a patch into the asset at index and returns the result.
func (r *Registry) UpdateAsset(target Target, index int, patch Patch) (Asset, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	list := r.listLocked(target)
	if index < 0 || index >= len(list) {
		return Asset{}, services.Wrap(services.ErrNotFound, "registry", "update",
			fmt.Sprintf("no asset at index %d for %s", index, target), nil)
	}
	merged, err := patch.Apply(list[index])
	if err != nil {
		return Asset{}, services.Wrap(services.ErrValidation, "registry", "update", err.Error(), nil)
	}
	list[index] = merged
	r.storeLocked(target, list)
	return merged, nil
}

// DeleteAsset removes the entry at index, shifting subsequent entries down.
func (r *Registry) DeleteAsset(target Target, index int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	list := r.listLocked(target)
	if index < 0 || index >= len(list) {
		return services.Wrap(services.ErrNotFound, "registry", "delete",
			fmt.Sprintf("no asset at index %d for %s", index, target), nil)
	}
	list = append(list[:index], list[index+1:]...)
	r.storeLocked(target, list)
	return nil
}

// Assets returns a copy of the target's current asset list.
func (r *Registry) Assets(target Target) []Asset {
	r.mu.Lock()
	defer r.mu.Unlock()

	list := r.listLocked(target)
	cp := make([]Asset, len(list))
	copy(cp, list)
	return cp
}

// NextDefaultAsset computes the default asset to add when no explicit
// properties are given: the first defined scale not already present among the
// target's assets, falling back to the smallest defined scale when all are
// used. The defined scale list is not required to be sorted. Format defaults
// to png.
func (r *Registry) NextDefaultAsset(target Target) Asset {
	r.mu.Lock()
	defer r.mu.Unlock()

	used := make(map[float64]struct{})
	for _, asset := range r.listLocked(target) {
		used[asset.Scale] = struct{}{}
	}
	for _, candidate := range r.scales {
		if _, ok := used[candidate]; !ok {
			return NewAsset(candidate, "png")
		}
	}

	// Every defined scale is in use. An empty scale set falls back to 1.
	fallback := 1.0
	for i, candidate := range r.scales {
		if i == 0 || candidate < fallback {
			fallback = candidate
		}
	}
	return NewAsset(fallback, "png")
}

// Replace overwrites the target's list wholesale. Used when hydrating from
// persisted metadata.
func (r *Registry) Replace(target Target, assets []Asset) {
	cp := make([]Asset, len(assets))
	copy(cp, assets)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.storeLocked(target, cp)
}

// HasDocument reports whether the registry holds any state for the document.
func (r *Registry) HasDocument(documentID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.docs[documentID]
	return ok
}

// CloseDocument discards in-memory state for a closed document.
func (r *Registry) CloseDocument(documentID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.docs, documentID)
}

// Reset discards all in-memory state.
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.docs = make(map[string]*DocumentExports)
}

func (r *Registry) docLocked(documentID string) *DocumentExports {
	doc, ok := r.docs[documentID]
	if !ok {
		doc = &DocumentExports{Layers: make(map[string][]Asset)}
		r.docs[documentID] = doc
	}
	return doc
}

func (r *Registry) listLocked(target Target) []Asset {
	doc := r.docLocked(target.DocumentID)
	if target.IsRoot() {
		return doc.Root
	}
	return doc.Layers[target.LayerID]
}

func (r *Registry) storeLocked(target Target, list []Asset) {
	doc := r.docLocked(target.DocumentID)
	if target.IsRoot() {
		doc.Root = list
		return
	}
	doc.Layers[target.LayerID] = list
}
