// Package attrsync keeps a block's child-block attributes, inline-text
// attributes and structured props consistent when the user edits a
// child attribute block or switches the configured attribute surface.
package attrsync

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/mlava/better-tasks/internal/config"
	"github.com/mlava/better-tasks/internal/graph"
	"github.com/mlava/better-tasks/internal/meta"
	"github.com/mlava/better-tasks/internal/model"
	"github.com/mlava/better-tasks/internal/rule"
)

type pendingEdit struct {
	timer *time.Timer
	edits map[string]string // key -> latest value this session
}

// Syncer debounces child-attribute edits per parent block and applies
// the reconciled write-set. One per session; Shutdown cancels all
// pending timers.
type Syncer struct {
	store    graph.Store
	settings config.Settings
	logger   *log.Logger

	// refresh, when set, is invoked after a sync so the host can redraw
	// the pill decoration.
	refresh func(model.BlockID)

	mu      sync.Mutex
	pending map[model.BlockID]*pendingEdit
	closed  bool
}

func NewSyncer(store graph.Store, settings config.Settings, logger *log.Logger) *Syncer {
	settings.ApplyDefaults()
	if logger == nil {
		logger = log.Default()
	}
	return &Syncer{
		store:    store,
		settings: settings,
		logger:   logger,
		pending:  map[model.BlockID]*pendingEdit{},
	}
}

func (s *Syncer) SetRefresh(fn func(model.BlockID)) {
	s.refresh = fn
}

// ChildEdited records an edit to a child attribute block. Edits to the
// same parent are coalesced within the debounce window. Empty values
// are held back until session end so transient empty states while
// typing never delete anything.
func (s *Syncer) ChildEdited(parent model.BlockID, key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}

	p, ok := s.pending[parent]
	if !ok {
		p = &pendingEdit{edits: map[string]string{}}
		s.pending[parent] = p
	} else {
		p.timer.Stop()
	}
	p.edits[key] = value
	p.timer = time.AfterFunc(s.settings.SyncDebounce, func() {
		s.flush(parent, false)
	})
}

// SessionEnded collapses the debounce to zero for a parent: pending
// edits apply immediately, and empty values now commit as deletions.
func (s *Syncer) SessionEnded(parent model.BlockID) {
	s.flush(parent, true)
}

// Shutdown cancels every pending timer without applying the edits.
func (s *Syncer) Shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	for id, p := range s.pending {
		p.timer.Stop()
		delete(s.pending, id)
	}
}

func (s *Syncer) flush(parent model.BlockID, sessionEnd bool) {
	s.mu.Lock()
	p, ok := s.pending[parent]
	if ok {
		p.timer.Stop()
		delete(s.pending, parent)
	}
	closed := s.closed
	s.mu.Unlock()
	if !ok || closed {
		return
	}

	ctx := context.Background()
	var withheld map[string]string
	for key, value := range p.edits {
		if value == "" && !sessionEnd {
			// Deletions only commit at session end; keep them pending.
			if withheld == nil {
				withheld = map[string]string{}
			}
			withheld[key] = value
			continue
		}
		if err := s.apply(ctx, parent, key, value); err != nil {
			s.logger.Printf("attrsync %s: %s: %v", parent, key, err)
		}
	}
	if withheld != nil {
		s.requeue(parent, withheld, p.timer)
	}
	if s.refresh != nil {
		s.refresh(parent)
	}
}

// requeue puts withheld deletions back in the pending set so a later
// SessionEnded still sees them. Edits made in the meantime win.
func (s *Syncer) requeue(parent model.BlockID, withheld map[string]string, timer *time.Timer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	if cur, ok := s.pending[parent]; ok {
		for k, v := range withheld {
			if _, exists := cur.edits[k]; !exists {
				cur.edits[k] = v
			}
		}
		return
	}
	s.pending[parent] = &pendingEdit{edits: withheld, timer: timer}
}

func (s *Syncer) normalize(key, value string) string {
	if key == meta.AttrRepeat {
		return rule.Normalize(value)
	}
	return value
}

func (s *Syncer) apply(ctx context.Context, parent model.BlockID, key, value string) error {
	b, err := s.store.ReadBlock(ctx, parent)
	if err != nil {
		return err
	}
	value = s.normalize(key, value)
	return s.execute(ctx, b, BuildWriteSet(b, key, value, s.settings.AttributeSurface))
}

func (s *Syncer) execute(ctx context.Context, b model.Block, ops []WriteOp) error {
	for _, op := range ops {
		var err error
		switch op.Kind {
		case OpSetProp, OpClearProp:
			err = s.store.MergeProps(ctx, b.ID, propPatch(op.Key, op.Value))
		case OpSetChild:
			err = s.store.WriteText(ctx, op.ChildID, op.Key+":: "+op.Value)
		case OpCreateChild:
			_, err = s.store.CreateBlock(ctx, b.ID, len(b.Children), op.Key+":: "+op.Value, "")
		case OpDeleteChild:
			err = s.store.DeleteBlock(ctx, op.ChildID)
		case OpSetText:
			err = s.store.WriteText(ctx, b.ID, op.Text)
		}
		if err != nil {
			// The structured-prop write is primary; mirror failures are
			// logged and swallowed.
			if op.Kind == OpSetProp || op.Kind == OpClearProp {
				return err
			}
			s.logger.Printf("attrsync %s: mirror %s: %v", b.ID, op.Kind, err)
		}
	}
	return nil
}

func propPatch(key, value string) model.PropsPatch {
	v := value
	switch key {
	case meta.AttrRepeat:
		return model.PropsPatch{Repeat: &v}
	case meta.AttrDue:
		return model.PropsPatch{Due: &v}
	default:
		return model.PropsPatch{}
	}
}

// ApplySurface re-projects the attributes after the configured surface
// changed: props become authoritative, child and inline mirrors are
// created or removed to match the new surface.
func (s *Syncer) ApplySurface(ctx context.Context, id model.BlockID, surface config.Surface) error {
	b, err := s.store.ReadBlock(ctx, id)
	if err != nil {
		return err
	}

	// Child-first read catches the value wherever it currently lives.
	m := meta.Read(b, config.SurfaceChild)
	values := map[string]string{}
	if m.RuleText != "" {
		values[meta.AttrRepeat] = m.RuleText
	}
	if m.Due != nil {
		values[meta.AttrDue] = "[[" + m.Due.Format("2006-01-02") + "]]"
	}

	childAttrs := meta.ExtractChildAttrs(b.Children)
	for _, key := range []string{meta.AttrRepeat, meta.AttrDue} {
		value := values[key]
		if value != "" {
			if err := s.store.MergeProps(ctx, id, propPatch(key, value)); err != nil {
				return err
			}
		}
		existing, has := childAttrs[key]
		switch surface {
		case config.SurfaceChild:
			if value == "" {
				continue
			}
			if has {
				if existing.Value != value {
					if err := s.store.WriteText(ctx, existing.ID, key+":: "+value); err != nil {
						s.logger.Printf("attrsync %s: surface child %s: %v", id, key, err)
					}
				}
			} else if _, err := s.store.CreateBlock(ctx, id, len(b.Children), key+":: "+value, ""); err != nil {
				s.logger.Printf("attrsync %s: surface child %s: %v", id, key, err)
			}
		case config.SurfaceHidden:
			if has {
				if err := s.store.DeleteBlock(ctx, existing.ID); err != nil {
					s.logger.Printf("attrsync %s: surface hidden %s: %v", id, key, err)
				}
			}
		}
	}

	// Inline tokens are never the configured surface; strip them when
	// hiding so the pill is the only visible rendering.
	if surface == config.SurfaceHidden {
		text := b.Text
		for _, key := range []string{meta.AttrRepeat, meta.AttrDue} {
			text, _ = rewriteInline(text, key, "")
		}
		if text != b.Text {
			if err := s.store.WriteText(ctx, id, text); err != nil {
				s.logger.Printf("attrsync %s: strip inline: %v", id, err)
			}
		}
	}

	if s.refresh != nil {
		s.refresh(id)
	}
	return nil
}
