// Package ffprobe provides a typed wrapper around ffprobe JSON output for the
// video side of a recording.
//
// Inspect runs the binary and Parse decodes captured output. Result helpers
// report the container duration (falling back to the video stream) and the
// average frame rate, which the workflow uses to size chunks when a video has
// a media file alongside its detection trace.
package ffprobe
