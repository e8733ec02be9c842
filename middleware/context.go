package middleware

import (
	"context"

	"github.com/nexbase/crudgate/pipeline"
)

// Context key type to avoid collisions
type contextKey string

const (
	// RequestIDKey is the context key for request ID
	RequestIDKey contextKey = "request_id"

	// MetaKey is the context key for pipeline request metadata
	MetaKey contextKey = "meta"
)

// GetRequestIDFromContext retrieves the request ID from context
func GetRequestIDFromContext(ctx context.Context) string {
	if val := ctx.Value(RequestIDKey); val != nil {
		if requestID, ok := val.(string); ok {
			return requestID
		}
	}
	return ""
}

// WithRequestID adds a request ID to the context
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// GetMetaFromContext retrieves the pipeline metadata from context
func GetMetaFromContext(ctx context.Context) *pipeline.Meta {
	if val := ctx.Value(MetaKey); val != nil {
		if meta, ok := val.(*pipeline.Meta); ok {
			return meta
		}
	}
	return nil
}

// WithMeta adds pipeline metadata to the context
func WithMeta(ctx context.Context, meta *pipeline.Meta) context.Context {
	return context.WithValue(ctx, MetaKey, meta)
}
