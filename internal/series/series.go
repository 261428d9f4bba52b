// Package series walks the chain of occurrences a recurring task has
// produced. Each spawned occurrence stores rt.parent = the series id of
// its predecessor, so the chain is walked backward by series-id lookup.
package series

import (
	"context"

	"github.com/mlava/better-tasks/internal/graph"
	"github.com/mlava/better-tasks/internal/model"
)

// DefaultLimit caps a history walk when the caller passes limit <= 0.
const DefaultLimit = 50

// History returns the given block followed by its predecessors, oldest
// last. A visited set guards against cycles in a malformed graph; the
// walk simply stops when a predecessor cannot be found.
func History(ctx context.Context, store graph.Store, start model.BlockID, limit int) ([]model.Block, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}

	b, err := store.ReadBlock(ctx, start)
	if err != nil {
		return nil, err
	}

	out := []model.Block{b}
	visited := map[string]bool{}
	if b.Props.RT.ID != "" {
		visited[b.Props.RT.ID] = true
	}

	parent := b.Props.RT.Parent
	for parent != "" && len(out) < limit {
		if visited[parent] {
			break
		}
		visited[parent] = true

		prev, err := store.FindBlockBySeriesID(ctx, parent)
		if err != nil {
			// A broken link ends the chain; what we have is still valid.
			break
		}
		out = append(out, prev)
		parent = prev.Props.RT.Parent
	}
	return out, nil
}
