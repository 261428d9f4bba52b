package pipeline

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mlava/better-tasks/internal/config"
	"github.com/mlava/better-tasks/internal/graph"
	"github.com/mlava/better-tasks/internal/meta"
	"github.com/mlava/better-tasks/internal/model"
)

const todoMacro = "{{[[TODO]]}}"

var (
	statusMacroRe = regexp.MustCompile(`^\{\{\s*\[\[(?:TODO|DONE)\]\]\s*\}\}\s*`)
	statusWordRe  = regexp.MustCompile(`^(?i:TODO|DONE)\s+`)
	leadingDashRe = regexp.MustCompile(`^-\s+`)
	managedAttrRe = regexp.MustCompile(`^(?i:repeat|due|completed)::`)
)

// cleanTaskText produces the text for a spawned occurrence: recurrence
// and completion attribute lines stripped and the checkbox state reset
// to pending.
func cleanTaskText(text string) string {
	var kept []string
	for _, line := range strings.Split(text, "\n") {
		if managedAttrRe.MatchString(strings.TrimSpace(line)) {
			continue
		}
		kept = append(kept, line)
	}
	t := strings.TrimSpace(strings.Join(kept, "\n"))
	t = leadingDashRe.ReplaceAllString(t, "")
	t = statusMacroRe.ReplaceAllString(t, "")
	t = statusWordRe.ReplaceAllString(t, "")
	return todoMacro + " " + t
}

// stampCompletedLine replaces an existing completed:: line, or inserts
// one after the first line of the block.
func stampCompletedLine(text, dateRef string) string {
	line := meta.AttrCompleted + ":: " + dateRef
	lines := strings.Split(text, "\n")
	for i, l := range lines {
		if strings.HasPrefix(strings.ToLower(strings.TrimSpace(l)), meta.AttrCompleted+"::") {
			lines[i] = line
			return strings.Join(lines, "\n")
		}
	}
	out := make([]string, 0, len(lines)+1)
	out = append(out, lines[0])
	out = append(out, line)
	out = append(out, lines[1:]...)
	return strings.Join(out, "\n")
}

// newSeriesID mints a short series identifier.
func newSeriesID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}

// spawn creates the next occurrence in dest, propagates the rule and
// new due date onto it in the configured surface, and links it to the
// series (assigning the source a series id first if it lacked one).
func (c *Coordinator) spawn(ctx context.Context, source model.Block, m model.TaskMeta, snap model.CompletionSnapshot, next time.Time, dest model.BlockID) (model.BlockID, error) {
	seriesID := m.SeriesID
	if seriesID == "" {
		seriesID = newSeriesID()
		if err := c.store.MergeProps(ctx, source.ID, model.PropsPatch{
			RT: &model.RTPatch{ID: &seriesID},
		}); err != nil {
			return "", err
		}
	}

	dueRef := "[[" + graph.DatePageTitle(c.store, next) + "]]"
	taskLine := cleanTaskText(snap.Text)

	newID, err := c.store.CreateBlock(ctx, dest, 0, taskLine, c.store.GenerateID())
	if err != nil {
		return "", err
	}

	if c.settings.AttributeSurface == config.SurfaceChild {
		// Mirror writes; a failure here must not abort the run.
		if _, err := c.store.CreateBlock(ctx, newID, 0, meta.AttrRepeat+":: "+m.RuleText, ""); err != nil {
			c.logger.Printf("pipeline %s: repeat child mirror: %v", source.ID, err)
		}
		if _, err := c.store.CreateBlock(ctx, newID, 1, meta.AttrDue+":: "+dueRef, ""); err != nil {
			c.logger.Printf("pipeline %s: due child mirror: %v", source.ID, err)
		}
	}

	occurrenceID := newSeriesID()
	if err := c.store.MergeProps(ctx, newID, model.PropsPatch{
		Repeat: &m.RuleText,
		Due:    &dueRef,
		RT:     &model.RTPatch{ID: &occurrenceID, Parent: &seriesID},
	}); err != nil {
		return "", err
	}

	return newID, nil
}
