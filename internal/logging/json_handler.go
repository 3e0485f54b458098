package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"
)

// FieldTrackKey joins a log line to its detection record: t<id> in an
// unchunked run, c<chunk>-t<id> inside a chunk.
const FieldTrackKey = "track_key"

// jsonHandler is the machine-readable sink behind format=json and the log
// file. A chunk_index of -1 marks an unchunked run and is omitted. Any record
// scoped to a track gains a track_key.
type jsonHandler struct {
	next     slog.Handler
	chunk    int
	track    int
	hasTrack bool
	grouped  bool
}

func newJSONHandler(w io.Writer, lvl slog.Leveler, addSource bool) slog.Handler {
	next := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level:       lvl,
		AddSource:   addSource,
		ReplaceAttr: replaceJSONAttr,
	})
	return &jsonHandler{next: next, chunk: -1}
}

func replaceJSONAttr(groups []string, attr slog.Attr) slog.Attr {
	if len(groups) > 0 {
		return attr
	}
	switch attr.Key {
	case slog.TimeKey:
		attr.Key = "ts"
		if attr.Value.Kind() == slog.KindTime {
			attr.Value = slog.StringValue(attr.Value.Time().UTC().Format(time.RFC3339))
		}
	case slog.LevelKey:
		attr.Value = slog.StringValue(strings.ToLower(attr.Value.String()))
	case slog.SourceKey:
		if src, ok := attr.Value.Any().(*slog.Source); ok && src != nil {
			attr.Value = slog.StringValue(fmt.Sprintf("%s:%d", filepath.Base(src.File), src.Line))
		}
	case FieldChunkIndex:
		if n, ok := intValue(attr.Value); ok && n < 0 {
			return slog.Attr{}
		}
	}
	return attr
}

func (h *jsonHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *jsonHandler) Handle(ctx context.Context, record slog.Record) error {
	if h.grouped {
		return h.next.Handle(ctx, record)
	}
	scope := *h
	record.Attrs(func(attr slog.Attr) bool {
		scope.observe(attr)
		return true
	})
	if scope.hasTrack {
		record = record.Clone()
		record.AddAttrs(slog.String(FieldTrackKey, trackKey(scope.chunk, scope.track)))
	}
	return h.next.Handle(ctx, record)
}

func (h *jsonHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	if !clone.grouped {
		for _, attr := range attrs {
			clone.observe(attr)
		}
	}
	clone.next = h.next.WithAttrs(attrs)
	return &clone
}

func (h *jsonHandler) WithGroup(name string) slog.Handler {
	clone := *h
	if name != "" {
		clone.grouped = true
	}
	clone.next = h.next.WithGroup(name)
	return &clone
}

func (h *jsonHandler) observe(attr slog.Attr) {
	switch attr.Key {
	case FieldChunkIndex:
		if n, ok := intValue(attr.Value); ok {
			h.chunk = n
		}
	case FieldTrackID:
		if n, ok := intValue(attr.Value); ok {
			h.track = n
			h.hasTrack = true
		}
	}
}

func trackKey(chunk, track int) string {
	if chunk < 0 {
		return fmt.Sprintf("t%d", track)
	}
	return fmt.Sprintf("c%d-t%d", chunk, track)
}

func intValue(v slog.Value) (int, bool) {
	v = v.Resolve()
	switch v.Kind() {
	case slog.KindInt64:
		return int(v.Int64()), true
	case slog.KindUint64:
		return int(v.Uint64()), true
	default:
		return 0, false
	}
}
