package logging

import (
	"context"
	"log/slog"

	"slicer/internal/services"
)

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldDocumentID is the standardized structured logging key for document identifiers.
	FieldDocumentID = "document_id"
	// FieldLayerID is the standardized structured logging key for layer identifiers.
	FieldLayerID = "layer_id"
	// FieldAssetIndex is the standardized structured logging key for asset positions within a target list.
	FieldAssetIndex = "asset_index"
	// FieldBatchID is the standardized structured logging key for batch job identifiers.
	FieldBatchID = "batch_id"
	// FieldEventType is the standardized structured logging key for machine-readable event names.
	FieldEventType = "event_type"
	// FieldErrorHint is the standardized structured logging key for operator guidance on failures.
	FieldErrorHint = "error_hint"
	// FieldCorrelationID is the standardized structured logging key for request correlation identifiers.
	FieldCorrelationID = "correlation_id"
)

// ContextFields extracts standardized slog attributes from the provided context.
func ContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	fields := make([]slog.Attr, 0, 3)
	if id, ok := services.DocumentIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldDocumentID, id))
	}
	if id, ok := services.LayerIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldLayerID, id))
	}
	if id, ok := services.BatchIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldBatchID, id))
	}
	if rid, ok := services.RequestIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldCorrelationID, rid))
	}
	return fields
}

// WithContext returns a logger augmented with structured fields derived from the supplied context.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	fields := ContextFields(ctx)
	if len(fields) == 0 {
		return logger
	}
	return logger.With(Args(fields...)...)
}
