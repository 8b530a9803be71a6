// Package exports owns the export asset model: the in-memory registry of
// configured assets per document/layer target, the SQLite-backed metadata
// store it is projected into, and the synchronizer that keeps the two
// consistent across mutations.
package exports
