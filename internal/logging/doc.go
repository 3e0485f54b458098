// Package logging assembles structured slog loggers and formatting helpers used
// across platewatch services.
//
// It owns the configurable console/JSON handlers, centralizes level and output
// plumbing, and exposes context-aware helpers so pipeline code can tag log
// lines with video IDs, chunk indexes, stages, and correlation IDs. The on-disk
// log is always JSON so it can be grepped by field. Per-component level
// overrides from configuration are applied through ForComponent.
package logging
