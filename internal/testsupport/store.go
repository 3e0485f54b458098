package testsupport

import (
	"context"
	"testing"

	"platewatch/internal/config"
	"platewatch/internal/store"
)

// MustOpenStore opens a store.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *store.Store {
	t.Helper()

	st, err := store.Open(cfg)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() {
		st.Close()
	})
	return st
}

// NewVideo creates a pending video row for tests using the provided store.
func NewVideo(t testing.TB, st *store.Store, name, sourcePath string) *store.Video {
	t.Helper()

	video, err := st.NewVideo(context.Background(), name, sourcePath, "")
	if err != nil {
		t.Fatalf("store.NewVideo: %v", err)
	}
	return video
}
