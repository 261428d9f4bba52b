package attrsync

import (
	"testing"

	"github.com/mlava/better-tasks/internal/config"
	"github.com/mlava/better-tasks/internal/model"
)

func kinds(ops []WriteOp) []OpKind {
	out := make([]OpKind, len(ops))
	for i, op := range ops {
		out[i] = op.Kind
	}
	return out
}

func hasKind(ops []WriteOp, k OpKind) bool {
	for _, op := range ops {
		if op.Kind == k {
			return true
		}
	}
	return false
}

func TestBuildWriteSetNewValueChildSurface(t *testing.T) {
	b := model.Block{ID: "b1", Text: "{{[[TODO]]}} Pay rent"}
	ops := BuildWriteSet(b, "due", "[[2024-05-01]]", config.SurfaceChild)

	if !hasKind(ops, OpSetProp) {
		t.Errorf("missing prop write: %v", kinds(ops))
	}
	if !hasKind(ops, OpCreateChild) {
		t.Errorf("missing child create: %v", kinds(ops))
	}
	if hasKind(ops, OpSetText) {
		t.Errorf("inline mirror must never be injected: %v", kinds(ops))
	}
}

func TestBuildWriteSetUpdatesExistingMirrors(t *testing.T) {
	b := model.Block{
		ID:       "b1",
		Text:     "{{[[TODO]]}} Pay rent\ndue:: [[2024-01-01]]",
		Children: []model.Child{{ID: "c1", Text: "due:: [[2024-01-01]]"}},
	}
	ops := BuildWriteSet(b, "due", "[[2024-05-01]]", config.SurfaceChild)

	var sawChild, sawText bool
	for _, op := range ops {
		switch op.Kind {
		case OpSetChild:
			sawChild = true
			if op.ChildID != "c1" || op.Value != "[[2024-05-01]]" {
				t.Errorf("child op = %+v", op)
			}
		case OpSetText:
			sawText = true
			if op.Text != "{{[[TODO]]}} Pay rent\ndue:: [[2024-05-01]]" {
				t.Errorf("text op = %q", op.Text)
			}
		}
	}
	if !sawChild || !sawText {
		t.Errorf("ops = %v, want child and inline updates", kinds(ops))
	}
}

func TestBuildWriteSetNoOpWhenAlreadyConsistent(t *testing.T) {
	b := model.Block{
		ID:       "b1",
		Text:     "{{[[TODO]]}} Pay rent\ndue:: [[2024-05-01]]",
		Children: []model.Child{{ID: "c1", Text: "due:: [[2024-05-01]]"}},
	}
	ops := BuildWriteSet(b, "due", "[[2024-05-01]]", config.SurfaceChild)
	// The prop write is unconditional; the mirrors must not churn.
	for _, op := range ops {
		if op.Kind != OpSetProp {
			t.Errorf("unexpected op %s for consistent state", op.Kind)
		}
	}
}

func TestBuildWriteSetEmptyValueDeletes(t *testing.T) {
	b := model.Block{
		ID:       "b1",
		Text:     "{{[[TODO]]}} Pay rent\ndue:: [[2024-05-01]]\nnote",
		Children: []model.Child{{ID: "c1", Text: "due:: [[2024-05-01]]"}},
	}
	ops := BuildWriteSet(b, "due", "", config.SurfaceChild)

	if !hasKind(ops, OpClearProp) {
		t.Errorf("missing prop clear: %v", kinds(ops))
	}
	var sawDelete bool
	for _, op := range ops {
		switch op.Kind {
		case OpDeleteChild:
			sawDelete = true
			if op.ChildID != "c1" {
				t.Errorf("delete targets %q", op.ChildID)
			}
		case OpSetText:
			if op.Text != "{{[[TODO]]}} Pay rent\nnote" {
				t.Errorf("inline removal = %q", op.Text)
			}
		}
	}
	if !sawDelete {
		t.Errorf("missing child delete: %v", kinds(ops))
	}
}

func TestBuildWriteSetHiddenSurfaceSkipsChildMirror(t *testing.T) {
	b := model.Block{
		ID:       "b1",
		Text:     "{{[[TODO]]}} Pay rent",
		Children: []model.Child{{ID: "c1", Text: "due:: [[2024-01-01]]"}},
	}
	ops := BuildWriteSet(b, "due", "[[2024-05-01]]", config.SurfaceHidden)
	if hasKind(ops, OpSetChild) || hasKind(ops, OpCreateChild) || hasKind(ops, OpDeleteChild) {
		t.Errorf("hidden surface produced child ops: %v", kinds(ops))
	}
}

func TestRewriteInline(t *testing.T) {
	text, changed := rewriteInline("task\ndue:: [[2024-01-01]]", "due", "[[2024-02-01]]")
	if !changed || text != "task\ndue:: [[2024-02-01]]" {
		t.Errorf("update = %q, %v", text, changed)
	}

	_, changed = rewriteInline("task with no attrs", "due", "[[2024-02-01]]")
	if changed {
		t.Error("rewrite must not inject a line")
	}

	_, changed = rewriteInline("task\ndue:: [[2024-02-01]]", "due", "[[2024-02-01]]")
	if changed {
		t.Error("identical value must not report a change")
	}

	text, changed = rewriteInline("a\ndue:: x\nb", "due", "")
	if !changed || text != "a\nb" {
		t.Errorf("removal = %q, %v", text, changed)
	}
}
