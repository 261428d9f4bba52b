// Package meta extracts recurrence metadata from a block's three
// possible attribute sources (structured props, inline text, child
// blocks) under the configured surface's precedence policy.
package meta

import (
	"regexp"
	"strings"
	"time"

	"github.com/mlava/better-tasks/internal/config"
	"github.com/mlava/better-tasks/internal/model"
	"github.com/mlava/better-tasks/internal/rule"
)

// attrRe matches one "key:: value" token at the start of a line. Keys
// are letters/numbers/underscore/hyphen/slash.
var attrRe = regexp.MustCompile(`^([A-Za-z0-9_/-]+)::\s*(.+)$`)

// Attributes are expected near the top of a block; lines past this are
// not scanned.
const maxAttrLines = 10

const (
	AttrRepeat    = "repeat"
	AttrDue       = "due"
	AttrCompleted = "completed"
)

// ExtractTextAttrs scans the first lines of a block's raw text for
// inline attributes. First occurrence of a key wins; later duplicates
// are ignored.
func ExtractTextAttrs(text string) map[string]string {
	out := map[string]string{}
	lines := strings.Split(text, "\n")
	for i := 0; i < len(lines) && i < maxAttrLines; i++ {
		m := attrRe.FindStringSubmatch(strings.TrimSpace(lines[i]))
		if m == nil {
			continue
		}
		key := strings.ToLower(strings.TrimSpace(m[1]))
		if _, ok := out[key]; !ok {
			out[key] = strings.TrimSpace(m[2])
		}
	}
	return out
}

// ExtractChildAttrs collects attributes encoded one-per-child-block,
// keeping the child's id so compensating writes can target it.
func ExtractChildAttrs(children []model.Child) map[string]model.ChildAttr {
	out := map[string]model.ChildAttr{}
	for _, c := range children {
		m := attrRe.FindStringSubmatch(strings.TrimSpace(c.Text))
		if m == nil {
			continue
		}
		key := strings.ToLower(strings.TrimSpace(m[1]))
		if _, ok := out[key]; !ok {
			out[key] = model.ChildAttr{ID: c.ID, Value: strings.TrimSpace(m[2])}
		}
	}
	return out
}

var bracketDateRe = regexp.MustCompile(`^\[\[(\d{4}-\d{2}-\d{2})\]\]$`)
var isoDateRe = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// ParseDate accepts "[[YYYY-MM-DD]]" and bare "YYYY-MM-DD" date values,
// pinned to local noon. Anything else yields nil.
func ParseDate(s string) *time.Time {
	s = strings.TrimSpace(s)
	if m := bracketDateRe.FindStringSubmatch(s); m != nil {
		s = m[1]
	} else if !isoDateRe.MatchString(s) {
		return nil
	}
	t, err := time.ParseInLocation("2006-01-02", s, time.Local)
	if err != nil {
		return nil
	}
	d := time.Date(t.Year(), t.Month(), t.Day(), 12, 0, 0, 0, time.Local)
	return &d
}

// Read reconciles the three attribute sources into a TaskMeta.
//
//	surface = child:  child block wins over inline text wins over props
//	surface = hidden: props win, inline text is fallback, child last
func Read(b model.Block, surface config.Surface) model.TaskMeta {
	text := ExtractTextAttrs(b.Text)
	child := ExtractChildAttrs(b.Children)

	pick := func(key string) string {
		fromProps := ""
		switch key {
		case AttrRepeat:
			fromProps = b.Props.Repeat
		case AttrDue:
			fromProps = b.Props.Due
		}
		fromText := text[key]
		fromChild := child[key].Value

		var ordered [3]string
		if surface == config.SurfaceHidden {
			ordered = [3]string{fromProps, fromText, fromChild}
		} else {
			ordered = [3]string{fromChild, fromText, fromProps}
		}
		for _, v := range ordered {
			if v != "" {
				return v
			}
		}
		return ""
	}

	m := model.TaskMeta{
		BlockID:        b.ID,
		PageID:         b.PageID,
		RuleText:       rule.Normalize(pick(AttrRepeat)),
		SeriesID:       b.Props.RT.ID,
		ParentSeriesID: b.Props.RT.Parent,
		Processed:      b.Props.RT.Processed,
	}
	if due := ParseDate(pick(AttrDue)); due != nil {
		m.Due = due
	}
	return m
}
