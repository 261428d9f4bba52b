// Package pipeline orchestrates the completion of a recurring task:
// duplicate-trigger suppression, confirmation, snapshot, mark-complete,
// metadata re-resolution, next-date computation, spawn and undo
// registration.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/mlava/better-tasks/internal/config"
	"github.com/mlava/better-tasks/internal/graph"
	"github.com/mlava/better-tasks/internal/meta"
	"github.com/mlava/better-tasks/internal/model"
	"github.com/mlava/better-tasks/internal/rule"
	"github.com/mlava/better-tasks/internal/schedule"
	"github.com/mlava/better-tasks/internal/undo"
)

// ErrContainerUnavailable means no destination container could be
// resolved after the retry and the whole fallback chain.
var ErrContainerUnavailable = errors.New("destination container unavailable")

// ConfirmFunc asks the user whether to spawn the next occurrence. The
// implementation must eventually resolve (dialog dismissal counts as a
// decline) so a claim can never wedge on an unanswered prompt.
type ConfirmFunc func(ctx context.Context, m model.TaskMeta) (bool, error)

// Notifier presents user-visible outcomes. The engine is agnostic to
// presentation.
type Notifier interface {
	Info(msg string)
	Error(msg string)
}

type logNotifier struct{ l *log.Logger }

func (n logNotifier) Info(msg string)  { n.l.Printf("notify: %s", msg) }
func (n logNotifier) Error(msg string) { n.l.Printf("notify error: %s", msg) }

// Options configures a Coordinator. Zero values get sane defaults.
type Options struct {
	Logger   *log.Logger
	Confirm  ConfirmFunc
	Notifier Notifier
	Now      func() time.Time
	Retry    *meta.RetryPolicy

	// Shutdownable components owned by this coordinator; their teardown
	// runs during Shutdown. The attribute syncer registers itself here.
	OnShutdown []func()
}

// Result reports what one trigger did.
type Result struct {
	Spawned    bool          `json:"spawned"`
	NewBlockID model.BlockID `json:"newBlockId,omitempty"`
	NextDue    string        `json:"nextDue,omitempty"`
}

type claimEntry struct {
	at    time.Time
	timer *time.Timer // set when the claim is a timed hold
}

// Coordinator owns the process-wide mutable state of the engine: the
// claim set and the undo ledger. One instance per running session;
// Shutdown clears everything.
type Coordinator struct {
	store    graph.Store
	settings config.Settings
	logger   *log.Logger
	confirm  ConfirmFunc
	notifier Notifier
	now      func() time.Time
	retry    meta.RetryPolicy
	ledger   *undo.Ledger

	mu       sync.Mutex
	claims   map[model.BlockID]*claimEntry
	closed   bool
	teardown []func()
}

func NewCoordinator(store graph.Store, settings config.Settings, opts Options) *Coordinator {
	settings.ApplyDefaults()
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	if opts.Notifier == nil {
		opts.Notifier = logNotifier{l: opts.Logger}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	retry := meta.DefaultRetryPolicy()
	if opts.Retry != nil {
		retry = *opts.Retry
	}

	c := &Coordinator{
		store:    store,
		settings: settings,
		logger:   opts.Logger,
		confirm:  opts.Confirm,
		notifier: opts.Notifier,
		now:      opts.Now,
		retry:    retry,
		claims:   map[model.BlockID]*claimEntry{},
		teardown: opts.OnShutdown,
	}
	c.ledger = undo.NewLedger(store, settings.UndoWindow, opts.Logger)
	c.ledger.SetReclaim(c.Hold)
	return c
}

// Ledger exposes the undo ledger for the host's undo affordance.
func (c *Coordinator) Ledger() *undo.Ledger { return c.ledger }

// Undo reverses the most recent completion for a source block.
func (c *Coordinator) Undo(ctx context.Context, id model.BlockID) error {
	return c.ledger.Undo(ctx, id)
}

// Shutdown clears the claim set, the undo ledger and any registered
// teardown hooks. The coordinator accepts no triggers afterwards.
func (c *Coordinator) Shutdown() {
	c.mu.Lock()
	c.closed = true
	for id, e := range c.claims {
		if e.timer != nil {
			e.timer.Stop()
		}
		delete(c.claims, id)
	}
	hooks := c.teardown
	c.teardown = nil
	c.mu.Unlock()

	c.ledger.Clear()
	for _, fn := range hooks {
		fn()
	}
}

func (c *Coordinator) claim(id model.BlockID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	if _, ok := c.claims[id]; ok {
		return false
	}
	c.claims[id] = &claimEntry{at: c.now()}
	return true
}

func (c *Coordinator) release(id model.BlockID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.claims[id]; ok {
		if e.timer != nil {
			e.timer.Stop()
		}
		delete(c.claims, id)
	}
}

// Hold claims id for a fixed duration, releasing automatically. Used to
// suppress the observer right after an undo restores a block.
func (c *Coordinator) Hold(id model.BlockID, hold time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	if e, ok := c.claims[id]; ok && e.timer != nil {
		e.timer.Stop()
	}
	e := &claimEntry{at: c.now()}
	e.timer = time.AfterFunc(hold, func() { c.release(id) })
	c.claims[id] = e
}

// HandleTrigger runs the completion pipeline for one trigger event.
// Gate exits (not recurring, cool-down, declined confirmation, no next
// date) return a zero Result with no error: they are "nothing to do",
// not malfunctions. The claim is always released before returning, so a
// later trigger can retry after a failure; re-processing of a
// just-completed block is prevented by the rt.processed cool-down.
func (c *Coordinator) HandleTrigger(ctx context.Context, id model.BlockID, completed bool) (Result, error) {
	if !completed {
		return Result{}, nil
	}
	if !c.claim(id) {
		return Result{}, nil
	}
	defer c.release(id)

	res, err := c.run(ctx, id)
	if err != nil {
		c.logger.Printf("pipeline %s: %v", id, err)
		return Result{}, err
	}
	return res, nil
}

func (c *Coordinator) run(ctx context.Context, id model.BlockID) (Result, error) {
	set := c.settings
	now := c.now()

	b, err := c.store.ReadBlock(ctx, id)
	if errors.Is(err, graph.ErrNotFound) {
		return Result{}, nil
	}
	if err != nil {
		return Result{}, fmt.Errorf("read block: %w", err)
	}

	m := meta.Read(b, set.AttributeSurface)
	if m.RuleText == "" {
		// Not a recurring task; nothing to do.
		return Result{}, nil
	}
	if m.Processed > 0 {
		age := now.Sub(time.UnixMilli(m.Processed))
		if age >= 0 && age < set.ProcessedCooldown {
			return Result{}, nil
		}
	}

	if set.ConfirmBeforeSpawn && c.confirm != nil {
		ok, err := c.confirm(ctx, m)
		if err != nil {
			c.logger.Printf("pipeline %s: confirmation: %v", id, err)
			return Result{}, nil
		}
		if !ok {
			return Result{}, nil
		}
	}

	snap := takeSnapshot(b, now)

	if err := c.markCompleted(ctx, b, now); err != nil {
		c.notifier.Error("Could not mark the task completed")
		return Result{}, fmt.Errorf("mark completed: %w", err)
	}

	m = c.reresolve(ctx, id, m, snap)

	r := rule.ParseAt(m.RuleText, now)
	if r == nil {
		c.logger.Printf("pipeline %s: unparseable repeat rule %q", id, m.RuleText)
		return Result{}, nil
	}
	anchor := now
	if set.AdvanceFrom == config.AdvanceFromDue && m.Due != nil {
		anchor = *m.Due
	}
	next, ok := schedule.NextOccurrence(r, anchor, now)
	if !ok {
		return Result{}, nil
	}

	dest, err := c.resolveDestination(ctx, next, b)
	if err != nil {
		c.notifier.Error("No destination available for the next occurrence")
		return Result{}, err
	}

	newID, err := c.spawn(ctx, b, m, snap, next, dest)
	if err != nil {
		c.notifier.Error("Could not create the next occurrence")
		return Result{}, fmt.Errorf("spawn: %w", err)
	}

	// The spawn is committed from here on; undo registration failures
	// must not roll it back.
	c.ledger.Register(undo.Record{
		SourceID:   id,
		Snapshot:   snap,
		NewBlockID: newID,
		NextDue:    next,
	})

	title := graph.DatePageTitle(c.store, next)
	c.notifier.Info("Next occurrence scheduled for " + title)

	return Result{Spawned: true, NewBlockID: newID, NextDue: next.Format("2006-01-02")}, nil
}

// reresolve re-reads metadata after the completion write (the store may
// not reflect writes synchronously) and degrades to snapshot-derived
// values when the rule stays unresolvable.
func (c *Coordinator) reresolve(ctx context.Context, id model.BlockID, prev model.TaskMeta, snap model.CompletionSnapshot) model.TaskMeta {
	m, err := meta.ResolveAfterWrite(ctx, c.store, id, c.settings.AttributeSurface, c.retry)
	if err != nil {
		c.logger.Printf("pipeline %s: re-resolve: %v (using snapshot values)", id, err)
	}
	if m.RuleText == "" {
		m = metaFromSnapshot(snap, c.settings.AttributeSurface)
	}
	if m.Due == nil {
		m.Due = prev.Due
	}
	if m.SeriesID == "" {
		m.SeriesID = prev.SeriesID
	}
	return m
}

func metaFromSnapshot(snap model.CompletionSnapshot, surface config.Surface) model.TaskMeta {
	b := model.Block{
		ID:    snap.BlockID,
		Text:  snap.Text,
		Props: snap.Props,
	}
	for _, key := range []string{meta.AttrRepeat, meta.AttrDue} {
		if attr, ok := snap.ChildAttrs[key]; ok {
			b.Children = append(b.Children, model.Child{ID: attr.ID, Text: key + ":: " + attr.Value})
		}
	}
	return meta.Read(b, surface)
}

func takeSnapshot(b model.Block, now time.Time) model.CompletionSnapshot {
	return model.CompletionSnapshot{
		BlockID:    b.ID,
		Text:       b.Text,
		Props:      b.Props,
		ChildAttrs: meta.ExtractChildAttrs(b.Children),
		TakenAt:    now,
	}
}

// markCompleted writes the completion marker. A visible surface stamps
// a completed:: line into the raw text; the hidden surface keeps the
// text clean and records the completion in props only. The rt
// bookkeeping props are stamped either way.
func (c *Coordinator) markCompleted(ctx context.Context, b model.Block, now time.Time) error {
	if c.settings.AttributeSurface != config.SurfaceHidden {
		dateRef := "[[" + graph.DatePageTitle(c.store, now) + "]]"
		if err := c.store.WriteText(ctx, b.ID, stampCompletedLine(b.Text, dateRef)); err != nil {
			return err
		}
	}

	last := now.Format(time.RFC3339)
	processed := now.UnixMilli()
	tz := now.Location().String()
	return c.store.MergeProps(ctx, b.ID, model.PropsPatch{
		RT: &model.RTPatch{
			LastCompleted: &last,
			Processed:     &processed,
			TZ:            &tz,
		},
	})
}
