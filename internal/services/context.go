package services

import "context"

type contextKey string

const (
	documentIDKey contextKey = "document_id"
	layerIDKey    contextKey = "layer_id"
	batchIDKey    contextKey = "batch_id"
	requestIDKey  contextKey = "request_id"
)

// WithDocumentID annotates context with the document identifier.
func WithDocumentID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, documentIDKey, id)
}

// DocumentIDFromContext extracts the document identifier if present.
func DocumentIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(documentIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithLayerID annotates context with the layer identifier.
func WithLayerID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, layerIDKey, id)
}

// LayerIDFromContext extracts the layer identifier if present.
func LayerIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(layerIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithBatchID annotates context with the batch job identifier.
func WithBatchID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, batchIDKey, id)
}

// BatchIDFromContext extracts the batch job identifier if present.
func BatchIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(batchIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithRequestID annotates context with a correlation identifier.
func WithRequestID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFromContext extracts the correlation identifier if present.
func RequestIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(requestIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}
