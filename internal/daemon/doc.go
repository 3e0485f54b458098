// Package daemon coordinates the long-running platewatch process.
//
// It wires configuration, the video store, and the workflow manager into a
// single lifecycle with flock-based locking to prevent multiple instances.
// Start runs preflight checks and requeues videos a crashed process left in
// PROCESSING before the manager begins polling.
//
// Keep orchestration logic here: the per-video work lives in workflow and the
// pipeline packages while the daemon focuses on startup, shutdown, and high
// level coordination.
package daemon
