package attrsync

import (
	"strings"

	"github.com/mlava/better-tasks/internal/config"
	"github.com/mlava/better-tasks/internal/meta"
	"github.com/mlava/better-tasks/internal/model"
)

// OpKind enumerates the writes a reconciliation can produce.
type OpKind string

const (
	OpSetProp     OpKind = "set_prop"
	OpClearProp   OpKind = "clear_prop"
	OpSetChild    OpKind = "set_child"    // update existing child attr block
	OpCreateChild OpKind = "create_child" // add a new child attr block
	OpDeleteChild OpKind = "delete_child"
	OpSetText     OpKind = "set_text" // rewrite the parent's inline text
)

// WriteOp is one element of a reconciliation write-set.
type WriteOp struct {
	Kind    OpKind
	Key     string
	Value   string
	ChildID model.BlockID
	Text    string
}

// BuildWriteSet computes the writes that make every representation of
// one attribute agree with the authoritative edited value. The value is
// written to structured props and mirrored into the child-block and
// inline-text representations; an empty value is a deletion.
//
// Keeping this a pure function over (block, key, value, surface) is
// what makes the replication protocol testable in isolation.
func BuildWriteSet(b model.Block, key, value string, surface config.Surface) []WriteOp {
	var ops []WriteOp

	if value == "" {
		ops = append(ops, WriteOp{Kind: OpClearProp, Key: key})
	} else {
		ops = append(ops, WriteOp{Kind: OpSetProp, Key: key, Value: value})
	}

	// Child-block mirror, only when children are the configured surface.
	if surface == config.SurfaceChild {
		childAttrs := meta.ExtractChildAttrs(b.Children)
		existing, has := childAttrs[key]
		switch {
		case value == "" && has:
			ops = append(ops, WriteOp{Kind: OpDeleteChild, Key: key, ChildID: existing.ID})
		case value != "" && has:
			if existing.Value != value {
				ops = append(ops, WriteOp{Kind: OpSetChild, Key: key, Value: value, ChildID: existing.ID})
			}
		case value != "" && !has:
			ops = append(ops, WriteOp{Kind: OpCreateChild, Key: key, Value: value})
		}
	}

	// Inline mirror: update or remove an existing inline token, never
	// inject a new one.
	if text, changed := rewriteInline(b.Text, key, value); changed {
		ops = append(ops, WriteOp{Kind: OpSetText, Key: key, Text: text})
	}

	return ops
}

// rewriteInline updates (or, for empty value, removes) a "key:: value"
// line in text. Returns changed=false when the text has no such line or
// it already matches.
func rewriteInline(text, key, value string) (string, bool) {
	lines := strings.Split(text, "\n")
	prefix := key + "::"
	for i, l := range lines {
		if !strings.HasPrefix(strings.ToLower(strings.TrimSpace(l)), prefix) {
			continue
		}
		if value == "" {
			out := append(append([]string{}, lines[:i]...), lines[i+1:]...)
			return strings.Join(out, "\n"), true
		}
		line := key + ":: " + value
		if strings.TrimSpace(l) == line {
			return text, false
		}
		lines[i] = line
		return strings.Join(lines, "\n"), true
	}
	return text, false
}
