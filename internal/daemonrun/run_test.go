package daemonrun

import (
	"os"
	"path/filepath"
	"testing"

	"platewatch/internal/testsupport"
)

func TestPIDFileRoundTrip(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if err := os.MkdirAll(cfg.Paths.LogDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if got := ReadPID(cfg); got != 0 {
		t.Fatalf("expected no pid before write, got %d", got)
	}
	if err := writePIDFile(filepath.Join(cfg.Paths.LogDir, PIDFileName)); err != nil {
		t.Fatalf("writePIDFile: %v", err)
	}
	if got := ReadPID(cfg); got != os.Getpid() {
		t.Fatalf("expected pid %d, got %d", os.Getpid(), got)
	}
}
