// Package workflow claims pending videos from the store and runs them through
// the forensic pipeline.
//
// The Manager polls for the oldest pending video, tags the run context with a
// request id, keeps the video's heartbeat fresh while it executes, and maps
// the outcome to a final status: success completes the video, shutdown
// returns it to the pending pool, and any other error fails it. Stale
// PROCESSING videos left by a crashed run are reclaimed on each poll.
//
// Processor is the stage handler that does the work: it decides whether to
// split the video into chunks, runs the pipeline per chunk or over the whole
// trace, merges and persists the records, and writes analytics plus the JSON
// report.
package workflow
