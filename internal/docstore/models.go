package docstore

import "strings"

// LayerKind classifies a layer within a document.
type LayerKind string

const (
	KindRaster     LayerKind = "raster"
	KindVector     LayerKind = "vector"
	KindGroup      LayerKind = "group"
	KindAdjustment LayerKind = "adjustment"
	KindGuide      LayerKind = "guide"
)

var allKinds = map[LayerKind]struct{}{
	KindRaster:     {},
	KindVector:     {},
	KindGroup:      {},
	KindAdjustment: {},
	KindGuide:      {},
}

// ParseKind converts a string into a known LayerKind.
func ParseKind(value string) (LayerKind, bool) {
	normalized := LayerKind(strings.ToLower(strings.TrimSpace(value)))
	_, ok := allKinds[normalized]
	return normalized, ok
}

// Document identifies one open document.
type Document struct {
	ID   string
	Name string
}

// Layer is the narrow read view of a document layer the export core consumes.
type Layer struct {
	ID            string
	DocumentID    string
	Name          string
	Kind          LayerKind
	ExportEnabled bool
}

// Exportable reports whether this layer kind can produce output. Adjustment
// and guide layers carry no renderable content of their own.
func (l *Layer) Exportable() bool {
	if l == nil {
		return false
	}
	switch l.Kind {
	case KindAdjustment, KindGuide:
		return false
	default:
		return true
	}
}

// FilterExportable returns the subset of layers capable of export, preserving order.
func FilterExportable(layers []*Layer) []*Layer {
	out := make([]*Layer, 0, len(layers))
	for _, layer := range layers {
		if layer.Exportable() {
			out = append(out, layer)
		}
	}
	return out
}
