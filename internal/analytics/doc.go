// Package analytics aggregates a finished video's records and run summary
// into the analytics blob stored on the video, and writes the per-video JSON
// results report.
package analytics
