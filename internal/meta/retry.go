package meta

import (
	"context"
	"errors"
	"time"

	"github.com/mlava/better-tasks/internal/config"
	"github.com/mlava/better-tasks/internal/graph"
	"github.com/mlava/better-tasks/internal/model"
)

// ErrStaleRead means the store still did not reflect the completion
// write after the whole retry ladder; the caller degrades to values
// from the pre-mutation snapshot instead of failing the run.
var ErrStaleRead = errors.New("metadata still stale after retries")

// RetryPolicy is the bounded retry schedule for re-resolving metadata
// after a write. The host store may not reflect writes synchronously.
type RetryPolicy struct {
	Delays []time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{Delays: []time.Duration{
		60 * time.Millisecond,
		120 * time.Millisecond,
		180 * time.Millisecond,
	}}
}

// ResolveAfterWrite re-reads the block until its rule text resolves or
// the schedule is exhausted. On exhaustion it returns the last meta it
// saw together with ErrStaleRead.
func ResolveAfterWrite(ctx context.Context, store graph.Store, id model.BlockID, surface config.Surface, policy RetryPolicy) (model.TaskMeta, error) {
	var last model.TaskMeta
	read := func() (model.TaskMeta, bool, error) {
		b, err := store.ReadBlock(ctx, id)
		if err != nil {
			return model.TaskMeta{}, false, err
		}
		m := Read(b, surface)
		return m, m.RuleText != "", nil
	}

	m, ok, err := read()
	if err != nil {
		return model.TaskMeta{}, err
	}
	if ok {
		return m, nil
	}
	last = m

	for _, delay := range policy.Delays {
		select {
		case <-ctx.Done():
			return last, ctx.Err()
		case <-time.After(delay):
		}
		m, ok, err := read()
		if err != nil {
			return last, err
		}
		if ok {
			return m, nil
		}
		last = m
	}
	return last, ErrStaleRead
}
