package audit

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"platewatch/internal/logging"
	"platewatch/internal/services"
	"platewatch/internal/store"
)

// Tag classifies an audit event.
type Tag string

const (
	TagFilter   Tag = "FILTER"
	TagCapturer Tag = "CAPTURER"
	TagCloud    Tag = "CLOUD"
	TagAuditor  Tag = "AUDITOR"
	TagSemantic Tag = "SEMANTIC"
	TagSystem   Tag = "SYSTEM"
	TagMonitor  Tag = "MONITOR"
	TagError    Tag = "ERROR"
)

// Event is one audit entry. FrameIndex and Timestamp are optional; a nil
// Payload is omitted.
type Event struct {
	Tag        Tag
	Message    string
	FrameIndex *int
	Timestamp  *float64
	IsError    bool
	Payload    map[string]any
}

// At returns a copy of e anchored at a frame.
func (e Event) At(frameIndex int, timestamp float64) Event {
	e.FrameIndex = &frameIndex
	e.Timestamp = &timestamp
	return e
}

// Recorder accepts audit events.
type Recorder interface {
	Record(ctx context.Context, event Event)
}

// Nop discards events.
type Nop struct{}

func (Nop) Record(context.Context, Event) {}

// Multi delivers each event to every recorder in order.
type Multi []Recorder

func (m Multi) Record(ctx context.Context, event Event) {
	for _, r := range m {
		if r != nil {
			r.Record(ctx, event)
		}
	}
}

// Shift returns a recorder that adds offset seconds to every anchored event
// before passing it on.
func Shift(next Recorder, offset float64) Recorder {
	if offset == 0 || next == nil {
		return next
	}
	return shifted{next: next, offset: offset}
}

type shifted struct {
	next   Recorder
	offset float64
}

func (s shifted) Record(ctx context.Context, event Event) {
	if event.Timestamp != nil {
		ts := *event.Timestamp + s.offset
		event.Timestamp = &ts
	}
	s.next.Record(ctx, event)
}

// LogRecorder mirrors events into a structured logger.
type LogRecorder struct {
	Logger *slog.Logger
}

func (r LogRecorder) Record(ctx context.Context, event Event) {
	logger := logging.WithContext(ctx, r.Logger)
	attrs := []logging.Attr{
		logging.String("tag", string(event.Tag)),
		logging.String(logging.FieldEventType, "audit_"+strings.ToLower(string(event.Tag))),
	}
	if event.FrameIndex != nil {
		attrs = append(attrs, logging.Int("frame_index", *event.FrameIndex))
	}
	for key, value := range event.Payload {
		attrs = append(attrs, logging.Any(key, value))
	}
	if event.IsError || event.Tag == TagError {
		logging.ErrorWithContext(logger, event.Message, "audit_error", attrs...)
		return
	}
	logger.Info(event.Message, logging.Args(attrs...)...)
}

// EventWriter is the store surface StoreRecorder needs.
type EventWriter interface {
	AppendEvent(ctx context.Context, event *store.Event) (int64, error)
}

// StoreRecorder persists events against the video and chunk carried by the
// context. Events without a video id in context are dropped.
type StoreRecorder struct {
	writer EventWriter
	logger *slog.Logger
}

// NewStoreRecorder builds a recorder over writer.
func NewStoreRecorder(writer EventWriter, logger *slog.Logger) *StoreRecorder {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &StoreRecorder{writer: writer, logger: logger}
}

func (r *StoreRecorder) Record(ctx context.Context, event Event) {
	if r == nil || r.writer == nil {
		return
	}
	videoID, ok := services.VideoIDFromContext(ctx)
	if !ok {
		return
	}
	row := &store.Event{
		VideoID:    videoID,
		Tag:        string(event.Tag),
		Message:    event.Message,
		FrameIndex: event.FrameIndex,
		Timestamp:  event.Timestamp,
		IsError:    event.IsError || event.Tag == TagError,
	}
	if idx, ok := services.ChunkIndexFromContext(ctx); ok {
		row.ChunkIndex = &idx
	}
	if len(event.Payload) > 0 {
		encoded, err := json.Marshal(event.Payload)
		if err == nil {
			row.Payload = string(encoded)
		}
	}
	// Persisting may race a cancelled run; audit rows should still land.
	if _, err := r.writer.AppendEvent(context.WithoutCancel(ctx), row); err != nil {
		logging.WarnWithContext(
			logging.WithContext(ctx, r.logger),
			"audit event not persisted",
			"audit_persist_failed",
			logging.String("tag", string(event.Tag)),
			logging.Error(err),
			logging.String(logging.FieldImpact, "event missing from the audit trail"),
		)
	}
}

// Memory collects events in order, for tests and dry runs.
type Memory struct {
	Events []Event
}

func (m *Memory) Record(_ context.Context, event Event) {
	m.Events = append(m.Events, event)
}

// Tagged returns the collected events with tag.
func (m *Memory) Tagged(tag Tag) []Event {
	var out []Event
	for _, e := range m.Events {
		if e.Tag == tag {
			out = append(out, e)
		}
	}
	return out
}
