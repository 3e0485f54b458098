package services_test

import (
	"context"
	"testing"

	"platewatch/internal/services"
)

func TestContextHelpers(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithVideoID(ctx, 42)
	ctx = services.WithChunkIndex(ctx, 3)
	ctx = services.WithStage(ctx, "pipeline")
	ctx = services.WithRequestID(ctx, "req-123")

	if id, ok := services.VideoIDFromContext(ctx); !ok || id != 42 {
		t.Fatalf("unexpected video id: %v %v", id, ok)
	}
	if idx, ok := services.ChunkIndexFromContext(ctx); !ok || idx != 3 {
		t.Fatalf("unexpected chunk index: %v %v", idx, ok)
	}
	if stage, ok := services.StageFromContext(ctx); !ok || stage != "pipeline" {
		t.Fatalf("unexpected stage: %v %v", stage, ok)
	}
	if rid, ok := services.RequestIDFromContext(ctx); !ok || rid != "req-123" {
		t.Fatalf("unexpected request id: %v %v", rid, ok)
	}
}

func TestBlankValuesPreserveContext(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithStage(ctx, "")
	ctx = services.WithChunkIndex(ctx, -1)
	if _, ok := services.StageFromContext(ctx); ok {
		t.Fatal("expected no stage value")
	}
	if _, ok := services.ChunkIndexFromContext(ctx); ok {
		t.Fatal("expected no chunk index for unchunked runs")
	}
	if _, ok := services.VideoIDFromContext(ctx); ok {
		t.Fatal("expected no video id")
	}
}
