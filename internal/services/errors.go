package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"platewatch/internal/store"
)

// Error classes. Callers tag failures with Wrap and test them with errors.Is.
var (
	// ErrInput marks an unreadable frame source, trace or media file. It is
	// the only class of error that terminates a run.
	ErrInput = errors.New("input error")
	// ErrConfiguration marks a pipeline assembled without a required part.
	ErrConfiguration = errors.New("configuration error")
	ErrValidation    = errors.New("validation error")
	ErrNotFound      = errors.New("not found")
	ErrTimeout       = errors.New("timeout")
	ErrTransient     = errors.New("transient failure")
)

// Wrap tags err with marker and prefixes it with "component: operation:
// detail". A nil marker means ErrTransient; a nil err yields a bare tagged
// error.
func Wrap(marker error, component, operation, detail string, err error) error {
	if marker == nil {
		marker = ErrTransient
	}
	where := describe(component, operation, detail)
	if err == nil {
		return fmt.Errorf("%w: %s", marker, where)
	}
	return fmt.Errorf("%w: %s: %w", marker, where, err)
}

// FailureStatus is the video status to persist after a run returns err.
// Daemon shutdown puts the video back in the queue.
func FailureStatus(err error) store.Status {
	switch {
	case err == nil:
		return store.StatusCompleted
	case errors.Is(err, context.Canceled):
		return store.StatusPending
	default:
		return store.StatusFailed
	}
}

// IsFatal reports whether err must abort the run instead of degrading the
// affected track or batch.
func IsFatal(err error) bool {
	return errors.Is(err, ErrInput) || errors.Is(err, ErrConfiguration)
}

func describe(fields ...string) string {
	kept := fields[:0]
	for _, f := range fields {
		if f = strings.TrimSpace(f); f != "" {
			kept = append(kept, f)
		}
	}
	if len(kept) == 0 {
		return "service failure"
	}
	return strings.Join(kept, ": ")
}
