// Package docstore exposes the document/layer object model the export core
// consumes: document identity, layer identity, layer kinds, and the
// export-enabled flag. The export orchestrator treats it as read-only apart
// from toggling that flag.
package docstore
