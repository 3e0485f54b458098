// Package config loads, normalizes, and validates platewatch configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks for the
// vision classifier key, optionally sourced from a .env file. The Config type
// centralizes every knob the daemon, CLI, and pipeline need so per-run state
// (sensitivity tier, threshold bounds, quota) is passed explicitly rather than
// held in process-wide globals.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
