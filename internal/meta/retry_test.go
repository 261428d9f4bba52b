package meta

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mlava/better-tasks/internal/config"
	"github.com/mlava/better-tasks/internal/graph"
)

func TestResolveAfterWriteImmediate(t *testing.T) {
	ctx := context.Background()
	store := graph.NewMemoryStore()
	page, _ := store.FindOrCreatePage(ctx, "Inbox")
	id, _ := store.CreateBlock(ctx, page, 0, "task", "")
	if _, err := store.CreateBlock(ctx, id, 0, "repeat:: daily", ""); err != nil {
		t.Fatal(err)
	}

	m, err := ResolveAfterWrite(ctx, store, id, config.SurfaceChild, RetryPolicy{Delays: []time.Duration{time.Millisecond}})
	if err != nil {
		t.Fatalf("ResolveAfterWrite: %v", err)
	}
	if m.RuleText != "daily" {
		t.Errorf("rule = %q, want daily", m.RuleText)
	}
}

func TestResolveAfterWriteExhaustsToStale(t *testing.T) {
	ctx := context.Background()
	store := graph.NewMemoryStore()
	page, _ := store.FindOrCreatePage(ctx, "Inbox")
	id, _ := store.CreateBlock(ctx, page, 0, "no rule here", "")

	policy := RetryPolicy{Delays: []time.Duration{time.Millisecond, time.Millisecond}}
	m, err := ResolveAfterWrite(ctx, store, id, config.SurfaceChild, policy)
	if !errors.Is(err, ErrStaleRead) {
		t.Fatalf("err = %v, want ErrStaleRead", err)
	}
	// The last observed meta still comes back so the caller can degrade.
	if m.BlockID != id {
		t.Errorf("meta block id = %q, want %q", m.BlockID, id)
	}
}

func TestResolveAfterWriteHonorsContext(t *testing.T) {
	store := graph.NewMemoryStore()
	page, _ := store.FindOrCreatePage(context.Background(), "Inbox")
	id, _ := store.CreateBlock(context.Background(), page, 0, "no rule here", "")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := ResolveAfterWrite(ctx, store, id, config.SurfaceChild, RetryPolicy{Delays: []time.Duration{time.Hour}})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}

func TestResolveAfterWriteMissingBlock(t *testing.T) {
	store := graph.NewMemoryStore()
	_, err := ResolveAfterWrite(context.Background(), store, "ghost", config.SurfaceChild, DefaultRetryPolicy())
	if !errors.Is(err, graph.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}
