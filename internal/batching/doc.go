// Package batching queues READY tracks and dispatches them to the external
// classifier as labelled collages.
//
// Drain only ever dispatches full batches; Flush, called once at end of
// stream, also dispatches the under-full remainder. Tracks are marked
// processed and BATCHED before the classifier call so that a failed call is
// recovered locally instead of re-queuing the track.
package batching
