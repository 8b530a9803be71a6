package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrConnection marks worker handshake or transport failures.
	ErrConnection = errors.New("worker connection error")
	// ErrBatchConflict marks a batch request rejected because one is already active.
	ErrBatchConflict = errors.New("batch already in progress")
	// ErrTargetResolution marks a document or layer that could not be resolved.
	ErrTargetResolution = errors.New("target resolution error")
	// ErrAssetExport marks a single asset render/write failure.
	ErrAssetExport = errors.New("asset export error")
	// ErrSync marks a metadata persistence write failure.
	ErrSync = errors.New("metadata sync error")
	// ErrDialog marks a folder chooser failure (not a cancel).
	ErrDialog = errors.New("folder dialog error")
	// ErrNotFound marks a missing registry entry or store row.
	ErrNotFound = errors.New("not found")
	// ErrValidation marks rejected input.
	ErrValidation = errors.New("validation error")
)

// Wrap builds an error message that includes component context while tagging it
// with the provided marker for later classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		marker = ErrValidation
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// IsRecoverable reports whether an error represents a state the UI can retry
// from without operator intervention (unavailable worker, busy batch).
func IsRecoverable(err error) bool {
	return errors.Is(err, ErrConnection) || errors.Is(err, ErrBatchConflict)
}

func buildDetail(component, operation, message string) string {
	parts := make([]string, 0, 3)
	if component = strings.TrimSpace(component); component != "" {
		parts = append(parts, component)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
