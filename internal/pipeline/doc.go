// Package pipeline runs one video (or one chunk of a video) from frames with
// detections to persisted Detection Records.
//
// A Pipeline is assembled from capability interfaces: a FrameSource, a
// Detector, an optional LocalRecognizer, and a classifier.BatchClassifier.
// Run processes frames strictly in order. Every per-run collaborator (track
// ledger, admission policy, batch manager, threshold monitor) is built fresh
// inside Run, so concurrent runs on separate Pipelines share nothing except
// the classifier gate handed in through Options.
//
// Only a failing FrameSource aborts a run; detector, recognizer, classifier,
// and persistence problems are logged, audited, and recovered locally.
package pipeline
