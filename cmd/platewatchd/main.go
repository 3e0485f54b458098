package main

import (
	"context"
	"log"

	"platewatch/internal/config"
	"platewatch/internal/daemonrun"
)

// platewatchd reads the default config location. Use `platewatch daemon
// --config` to run against another file.
func main() {
	cfg, _, _, err := config.Load("")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		log.Fatalf("ensure directories: %v", err)
	}
	if err := daemonrun.Run(context.Background(), cfg, daemonrun.Options{}); err != nil {
		log.Fatalf("daemon: %v", err)
	}
}
