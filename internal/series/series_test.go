package series

import (
	"context"
	"errors"
	"testing"

	"github.com/mlava/better-tasks/internal/graph"
	"github.com/mlava/better-tasks/internal/model"
)

func makeBlock(t *testing.T, store *graph.MemoryStore, page model.BlockID, text, seriesID, parentID string) model.BlockID {
	t.Helper()
	ctx := context.Background()
	id, err := store.CreateBlock(ctx, page, 0, text, "")
	if err != nil {
		t.Fatal(err)
	}
	patch := model.PropsPatch{RT: &model.RTPatch{}}
	if seriesID != "" {
		patch.RT.ID = &seriesID
	}
	if parentID != "" {
		patch.RT.Parent = &parentID
	}
	if err := store.MergeProps(ctx, id, patch); err != nil {
		t.Fatal(err)
	}
	return id
}

func TestHistoryWalksChain(t *testing.T) {
	ctx := context.Background()
	store := graph.NewMemoryStore()
	page, _ := store.FindOrCreatePage(ctx, "Projects")

	makeBlock(t, store, page, "occurrence 1", "s1", "")
	makeBlock(t, store, page, "occurrence 2", "s2", "s1")
	newest := makeBlock(t, store, page, "occurrence 3", "s3", "s2")

	got, err := History(ctx, store, newest, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 {
		t.Fatalf("len = %d, want 3", len(got))
	}
	if got[0].Text != "occurrence 3" || got[1].Text != "occurrence 2" || got[2].Text != "occurrence 1" {
		t.Errorf("order = %q, %q, %q", got[0].Text, got[1].Text, got[2].Text)
	}
}

func TestHistoryHonorsLimit(t *testing.T) {
	ctx := context.Background()
	store := graph.NewMemoryStore()
	page, _ := store.FindOrCreatePage(ctx, "Projects")

	prev := ""
	var last model.BlockID
	for i := 0; i < 10; i++ {
		sid := string(rune('a' + i))
		last = makeBlock(t, store, page, "task", sid, prev)
		prev = sid
	}

	got, err := History(ctx, store, last, 4)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 4 {
		t.Errorf("len = %d, want 4", len(got))
	}
}

// A cycle in rt.parent links terminates instead of looping.
func TestHistoryBreaksCycles(t *testing.T) {
	ctx := context.Background()
	store := graph.NewMemoryStore()
	page, _ := store.FindOrCreatePage(ctx, "Projects")

	a := makeBlock(t, store, page, "a", "sa", "sb")
	makeBlock(t, store, page, "b", "sb", "sa")

	got, err := History(ctx, store, a, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Errorf("len = %d, want 2 (cycle cut)", len(got))
	}
}

// A parent link pointing at a deleted occurrence ends the walk cleanly.
func TestHistoryToleratesBrokenLink(t *testing.T) {
	ctx := context.Background()
	store := graph.NewMemoryStore()
	page, _ := store.FindOrCreatePage(ctx, "Projects")

	id := makeBlock(t, store, page, "orphan", "s9", "vanished-series")
	got, err := History(ctx, store, id, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 {
		t.Errorf("len = %d, want 1", len(got))
	}
}

func TestHistoryMissingStart(t *testing.T) {
	store := graph.NewMemoryStore()
	_, err := History(context.Background(), store, "ghost", 0)
	if !errors.Is(err, graph.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestHistoryNonSeriesBlock(t *testing.T) {
	ctx := context.Background()
	store := graph.NewMemoryStore()
	page, _ := store.FindOrCreatePage(ctx, "Projects")
	id, _ := store.CreateBlock(ctx, page, 0, "plain block", "")

	got, err := History(ctx, store, id, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 {
		t.Errorf("len = %d, want just the block itself", len(got))
	}
}
