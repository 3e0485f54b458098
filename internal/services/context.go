package services

import "context"

type contextKey string

const (
	videoIDKey    contextKey = "video_id"
	chunkIndexKey contextKey = "chunk_index"
	stageKey      contextKey = "stage"
	requestIDKey  contextKey = "request_id"
)

// WithVideoID annotates context with the video identifier being processed.
func WithVideoID(ctx context.Context, id int64) context.Context {
	return context.WithValue(ctx, videoIDKey, id)
}

// VideoIDFromContext extracts the video identifier if present.
func VideoIDFromContext(ctx context.Context) (int64, bool) {
	switch val := ctx.Value(videoIDKey).(type) {
	case int64:
		return val, true
	case int:
		return int64(val), true
	default:
		return 0, false
	}
}

// WithChunkIndex annotates context with the zero-based chunk index. Negative
// values leave the context untouched so unchunked runs carry no index.
func WithChunkIndex(ctx context.Context, index int) context.Context {
	if index < 0 {
		return ctx
	}
	return context.WithValue(ctx, chunkIndexKey, index)
}

// ChunkIndexFromContext returns the chunk index if present.
func ChunkIndexFromContext(ctx context.Context) (int, bool) {
	v, ok := ctx.Value(chunkIndexKey).(int)
	return v, ok
}

// WithStage annotates context with the workflow stage name.
func WithStage(ctx context.Context, stage string) context.Context {
	if stage == "" {
		return ctx
	}
	return context.WithValue(ctx, stageKey, stage)
}

// StageFromContext returns the stage name if present.
func StageFromContext(ctx context.Context) (string, bool) {
	if str, ok := ctx.Value(stageKey).(string); ok && str != "" {
		return str, true
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
