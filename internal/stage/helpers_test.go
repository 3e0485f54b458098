package stage

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"platewatch/internal/services"
	"platewatch/internal/store"
)

func TestRequireSource(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "trace.jsonl")
	if err := os.WriteFile(file, []byte("{}\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	got, err := RequireSource(&store.Video{ID: 1, SourcePath: " " + file + " "})
	if err != nil {
		t.Fatalf("RequireSource returned error: %v", err)
	}
	if got != file {
		t.Fatalf("expected trimmed path %q, got %q", file, got)
	}

	for name, video := range map[string]*store.Video{
		"empty":     {ID: 2},
		"missing":   {ID: 3, SourcePath: filepath.Join(dir, "absent.jsonl")},
		"directory": {ID: 4, SourcePath: dir},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := RequireSource(video)
			if !errors.Is(err, services.ErrInput) {
				t.Fatalf("expected ErrInput, got %v", err)
			}
		})
	}

	if _, err := RequireSource(nil); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected ErrValidation for nil video, got %v", err)
	}
}
