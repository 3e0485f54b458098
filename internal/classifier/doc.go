// Package classifier turns a collage JPEG into typed per-track results.
//
// Providers implement BatchClassifier and always answer with an Outcome whose
// Status is one of success, timeout, quota_exceeded, malformed, failed, or
// disabled; errors never escape as panics or bare error returns, so the batch
// manager can recover locally. Gate adds the x/time/rate minimum interval and
// the per-video call quota, which is shared across a video's chunk workers.
// Chain falls through an ordered provider list.
package classifier
