// Package undo holds time-boxed undo records for completed recurring
// tasks and performs the compensating writes that reverse a completion.
package undo

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/mlava/better-tasks/internal/graph"
	"github.com/mlava/better-tasks/internal/meta"
	"github.com/mlava/better-tasks/internal/model"
)

var ErrNoRecord = errors.New("no pending undo record")

// managedAttrKeys are the child attributes the engine owns; undo only
// ever touches these, never unrelated child blocks.
var managedAttrKeys = []string{meta.AttrRepeat, meta.AttrDue, meta.AttrCompleted}

// Record captures everything needed to reverse one completion.
type Record struct {
	SourceID   model.BlockID
	Snapshot   model.CompletionSnapshot
	NewBlockID model.BlockID
	NextDue    time.Time
}

type entry struct {
	rec   Record
	timer *time.Timer
}

// Ledger stores at most one live undo record per source block id. A
// record is destroyed on explicit undo or window expiry, whichever
// comes first.
type Ledger struct {
	store  graph.Store
	logger *log.Logger
	window time.Duration

	// reclaim re-claims a source id briefly after undo so the trigger
	// observer does not immediately re-fire on the restored state.
	reclaim func(id model.BlockID, hold time.Duration)

	mu      sync.Mutex
	records map[model.BlockID]*entry
	closed  bool
}

func NewLedger(store graph.Store, window time.Duration, logger *log.Logger) *Ledger {
	if logger == nil {
		logger = log.Default()
	}
	if window <= 0 {
		window = 5 * time.Second
	}
	return &Ledger{
		store:   store,
		logger:  logger,
		window:  window,
		records: map[model.BlockID]*entry{},
	}
}

func (l *Ledger) SetReclaim(fn func(id model.BlockID, hold time.Duration)) {
	l.reclaim = fn
}

// Register stores rec, silently dropping any prior pending record for
// the same source id, and starts the expiry timer.
func (l *Ledger) Register(rec Record) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return
	}
	if prev, ok := l.records[rec.SourceID]; ok {
		prev.timer.Stop()
	}
	e := &entry{rec: rec}
	e.timer = time.AfterFunc(l.window, func() {
		l.Discard(rec.SourceID)
	})
	l.records[rec.SourceID] = e
}

// Pending reports the live record for a source id, if any.
func (l *Ledger) Pending(id model.BlockID) (Record, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.records[id]
	if !ok {
		return Record{}, false
	}
	return e.rec, true
}

// Discard drops a record with no further effect.
func (l *Ledger) Discard(id model.BlockID) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if e, ok := l.records[id]; ok {
		e.timer.Stop()
		delete(l.records, id)
	}
}

// Clear drops all records and stops their timers. Called on shutdown.
func (l *Ledger) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closed = true
	for id, e := range l.records {
		e.timer.Stop()
		delete(l.records, id)
	}
}

func (l *Ledger) take(id model.BlockID) (Record, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.records[id]
	if !ok {
		return Record{}, false
	}
	e.timer.Stop()
	delete(l.records, id)
	return e.rec, true
}

// Undo reverses a completion: restores the source block's text and
// props from the snapshot, deletes the spawned block, restores managed
// child attributes, then briefly re-claims the source id.
func (l *Ledger) Undo(ctx context.Context, sourceID model.BlockID) error {
	rec, ok := l.take(sourceID)
	if !ok {
		return ErrNoRecord
	}

	if err := l.store.WriteText(ctx, sourceID, rec.Snapshot.Text); err != nil {
		return fmt.Errorf("restore text: %w", err)
	}
	if err := l.store.ReplaceProps(ctx, sourceID, rec.Snapshot.Props); err != nil {
		return fmt.Errorf("restore props: %w", err)
	}

	if rec.NewBlockID != "" {
		if err := l.store.DeleteBlock(ctx, rec.NewBlockID); err != nil {
			l.logger.Printf("undo %s: delete spawned block %s: %v", sourceID, rec.NewBlockID, err)
		}
	}

	l.restoreChildAttrs(ctx, rec)

	if l.reclaim != nil {
		l.reclaim(sourceID, 2*time.Second)
	}
	return nil
}

// restoreChildAttrs puts managed child attribute blocks back to their
// pre-completion values and removes ones the completion created.
// Best-effort: failures are logged, never propagated.
func (l *Ledger) restoreChildAttrs(ctx context.Context, rec Record) {
	b, err := l.store.ReadBlock(ctx, rec.SourceID)
	if err != nil {
		l.logger.Printf("undo %s: reread for child restore: %v", rec.SourceID, err)
		return
	}
	current := meta.ExtractChildAttrs(b.Children)

	for _, key := range managedAttrKeys {
		was, had := rec.Snapshot.ChildAttrs[key]
		now, has := current[key]

		switch {
		case had && has:
			if now.Value != was.Value {
				if err := l.store.WriteText(ctx, now.ID, key+":: "+was.Value); err != nil {
					l.logger.Printf("undo %s: restore child %s: %v", rec.SourceID, key, err)
				}
			}
		case had && !has:
			if _, err := l.store.CreateBlock(ctx, rec.SourceID, 0, key+":: "+was.Value, ""); err != nil {
				l.logger.Printf("undo %s: recreate child %s: %v", rec.SourceID, key, err)
			}
		case !had && has:
			if err := l.store.DeleteBlock(ctx, now.ID); err != nil {
				l.logger.Printf("undo %s: remove child %s: %v", rec.SourceID, key, err)
			}
		}
	}
}
