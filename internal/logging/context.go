package logging

import (
	"context"

	"go.uber.org/zap"
)

type collectionCtxKey struct{}
type requestCtxKey struct{}

// ContextWithCollection attaches a collection name to the context so every
// log entry emitted under it carries the collection field.
func ContextWithCollection(ctx context.Context, collection string) context.Context {
	if collection == "" {
		return ctx
	}
	return context.WithValue(ctx, collectionCtxKey{}, collection)
}

// CollectionFromContext returns the collection name stored in ctx, if any.
func CollectionFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(collectionCtxKey{}).(string); ok {
		return v
	}
	return ""
}

// ContextWithRequestID attaches a request correlation ID to the context.
func ContextWithRequestID(ctx context.Context, requestID string) context.Context {
	if requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestCtxKey{}, requestID)
}

// RequestIDFromContext returns the request ID stored in ctx, if any.
func RequestIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(requestCtxKey{}).(string); ok {
		return v
	}
	return ""
}

// ContextFields extracts correlation data from context.
func ContextFields(ctx context.Context) []zap.Field {
	if ctx == nil {
		return nil
	}

	fields := make([]zap.Field, 0, 2)
	if collection := CollectionFromContext(ctx); collection != "" {
		fields = append(fields, zap.String("collection", collection))
	}
	if requestID := RequestIDFromContext(ctx); requestID != "" {
		fields = append(fields, zap.String("request.id", requestID))
	}
	return fields
}
