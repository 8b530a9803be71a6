// Package services defines the shared error taxonomy and context annotation
// helpers used by the export orchestration components.
package services
