// Package services defines shared utilities consumed by the pipeline, the
// workflow manager, and external integrations.
//
// Key responsibilities:
//   - Context helpers that stamp video IDs, chunk indexes, stage names, and
//     correlation identifiers for logging.
//   - Structured error markers plus the Wrap helper that let the workflow
//     manager decide between a terminal failure and a requeue.
//
// Input errors are the only fatal class. Classifier, composition, and
// per-batch failures are recovered where they happen and surfaced through the
// audit log instead.
package services
