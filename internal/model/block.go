// Package model holds the graph-facing data types shared by every other
// package: blocks, structured props, patches and the task metadata view.
package model

import "time"

// BlockID identifies a block or page in the host graph.
type BlockID string

// RT is the engine's bookkeeping record stored under props. It links a
// block into its series and records the last completion.
type RT struct {
	// ID is this block's series id: spawned occurrences point at it via
	// Parent, forming a backward chain.
	ID     string `json:"id,omitempty" yaml:"id,omitempty"`
	Parent string `json:"parent,omitempty" yaml:"parent,omitempty"`

	// LastCompleted is an RFC 3339 timestamp of the latest completion.
	LastCompleted string `json:"lastCompleted,omitempty" yaml:"lastCompleted,omitempty"`
	// Processed is the completion wall-clock in Unix milliseconds; the
	// pipeline's cool-down gate compares against it.
	Processed int64  `json:"processed,omitempty" yaml:"processed,omitempty"`
	TZ        string `json:"tz,omitempty" yaml:"tz,omitempty"`
}

// Props are the structured properties the engine reads and writes on a
// block. Repeat and Due are raw attribute values, not parsed forms.
type Props struct {
	Repeat string `json:"repeat,omitempty" yaml:"repeat,omitempty"`
	Due    string `json:"due,omitempty" yaml:"due,omitempty"`
	RT     RT     `json:"rt,omitempty" yaml:"rt,omitempty"`
}

// RTPatch is a partial update of RT. Nil fields mean "no change".
type RTPatch struct {
	ID            *string
	Parent        *string
	LastCompleted *string
	Processed     *int64
	TZ            *string
}

// PropsPatch is a partial update of Props. Nil fields mean "no change";
// a pointer to an empty string clears the field. RT merges field-wise
// rather than replacing the whole record.
type PropsPatch struct {
	Repeat *string
	Due    *string
	RT     *RTPatch
}

// Apply merges the patch into p in place.
func (patch PropsPatch) Apply(p *Props) {
	if patch.Repeat != nil {
		p.Repeat = *patch.Repeat
	}
	if patch.Due != nil {
		p.Due = *patch.Due
	}
	if patch.RT != nil {
		if patch.RT.ID != nil {
			p.RT.ID = *patch.RT.ID
		}
		if patch.RT.Parent != nil {
			p.RT.Parent = *patch.RT.Parent
		}
		if patch.RT.LastCompleted != nil {
			p.RT.LastCompleted = *patch.RT.LastCompleted
		}
		if patch.RT.Processed != nil {
			p.RT.Processed = *patch.RT.Processed
		}
		if patch.RT.TZ != nil {
			p.RT.TZ = *patch.RT.TZ
		}
	}
}

// Child is the lightweight view of a direct child block, enough to read
// and target "key:: value" attribute children.
type Child struct {
	ID   BlockID `json:"id"`
	Text string  `json:"text"`
}

// Block is the engine's view of one graph block.
type Block struct {
	ID       BlockID `json:"id"`
	PageID   BlockID `json:"pageId,omitempty"`
	Text     string  `json:"text"`
	Props    Props   `json:"props"`
	Children []Child `json:"children,omitempty"`
}

// TaskMeta is the reconciled recurrence metadata of one block, after
// surface-precedence resolution.
type TaskMeta struct {
	BlockID        BlockID
	PageID         BlockID
	RuleText       string
	Due            *time.Time
	SeriesID       string
	ParentSeriesID string
	Processed      int64
}

// ChildAttr is one "key:: value" child attribute, keeping the child's
// id so compensating writes can target the block.
type ChildAttr struct {
	ID    BlockID
	Value string
}

// CompletionSnapshot captures a block's full pre-completion state so an
// undo can restore it exactly.
type CompletionSnapshot struct {
	BlockID    BlockID
	Text       string
	Props      Props
	ChildAttrs map[string]ChildAttr
	TakenAt    time.Time
}
