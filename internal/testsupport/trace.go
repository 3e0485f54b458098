package testsupport

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

// WriteTrace encodes frames as JSON lines into dir/trace.jsonl and returns its
// path. An empty dir uses a fresh temp directory. Crop paths inside frames
// resolve relative to dir.
func WriteTrace[T any](t testing.TB, dir string, frames []T) string {
	t.Helper()

	if dir == "" {
		dir = t.TempDir()
	}
	path := filepath.Join(dir, "trace.jsonl")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create trace: %v", err)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	for i, frame := range frames {
		if err := enc.Encode(frame); err != nil {
			t.Fatalf("encode trace frame %d: %v", i, err)
		}
	}
	return path
}
