// Package preflight checks that the daemon's directories are usable, the
// external vision classifier answers when enabled, and optional binaries
// such as ffprobe are on PATH. The daemon runs it at start-up and the CLI
// surfaces it through `platewatch status`.
package preflight
