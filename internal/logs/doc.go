// Package logs tails the daemon log file for `platewatch logs`.
//
// It reads the last N lines with bounded memory, tracks byte offsets so
// follow mode only emits complete new lines, and restarts from the top when
// the file is truncated.
package logs
