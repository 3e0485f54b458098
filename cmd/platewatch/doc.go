// Package main hosts the platewatch CLI entrypoint and command graph.
//
// The Cobra command tree covers configuration scaffolding, queue maintenance
// for detector traces, foreground processing, and read-only views over the
// stored forensic records, audit events, and analytics. Configuration is
// resolved once per invocation and shared by every subcommand.
//
// Processing logic lives in the internal packages; commands here only parse
// flags, open the store, and render results as tables or JSON.
package main
