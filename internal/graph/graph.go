// Package graph abstracts the host document graph: a networked outliner
// where items are blocks with text, structured props and parent/child
// relations. The engine only ever talks to the Store interface; the
// memory, file and sqlite implementations exist so the engine can run
// and be tested without a host.
package graph

import (
	"context"
	"errors"
	"regexp"
	"time"

	"github.com/mlava/better-tasks/internal/model"
)

var (
	ErrNotFound = errors.New("block not found")
)

// Store is the read/write contract the engine requires from the host.
// All writes are full-replace except MergeProps, which shallow-merges
// with a special-cased deep merge for the nested rt record.
type Store interface {
	ReadBlock(ctx context.Context, id model.BlockID) (model.Block, error)
	WriteText(ctx context.Context, id model.BlockID, text string) error
	MergeProps(ctx context.Context, id model.BlockID, patch model.PropsPatch) error
	ReplaceProps(ctx context.Context, id model.BlockID, props model.Props) error

	// CreateBlock inserts a child of parent at the given order. An empty
	// explicitID lets the store assign one.
	CreateBlock(ctx context.Context, parent model.BlockID, order int, text string, explicitID model.BlockID) (model.BlockID, error)
	DeleteBlock(ctx context.Context, id model.BlockID) error

	FindOrCreatePage(ctx context.Context, title string) (model.BlockID, error)
	FindOrCreateHeadingChild(ctx context.Context, parent model.BlockID, heading string) (model.BlockID, error)

	// FindBlockBySeriesID locates the block whose rt.id equals seriesID.
	// Used to walk a series chain backward.
	FindBlockBySeriesID(ctx context.Context, seriesID string) (model.Block, error)

	GenerateID() model.BlockID
}

// TitleResolver is optionally implemented by stores whose host has its
// own calendar-page naming. Stores without it get the ISO fallback.
type TitleResolver interface {
	DateToPageTitle(d time.Time) string
	PageTitleToDate(title string) (time.Time, bool)
}

var isoTitleRe = regexp.MustCompile(`^(\d{4})-(\d{2})-(\d{2})$`)

// DatePageTitle renders the page title for a calendar day, preferring
// the store's own naming when it has one.
func DatePageTitle(s Store, d time.Time) string {
	if tr, ok := s.(TitleResolver); ok {
		if title := tr.DateToPageTitle(d); title != "" {
			return title
		}
	}
	return d.Format("2006-01-02")
}

// PageTitleDate parses a calendar-page title back to a date, preferring
// the store's resolver and falling back to the ISO form.
func PageTitleDate(s Store, title string) (time.Time, bool) {
	if tr, ok := s.(TitleResolver); ok {
		if d, ok := tr.PageTitleToDate(title); ok {
			return d, true
		}
	}
	if !isoTitleRe.MatchString(title) {
		return time.Time{}, false
	}
	d, err := time.ParseInLocation("2006-01-02", title, time.Local)
	if err != nil {
		return time.Time{}, false
	}
	return time.Date(d.Year(), d.Month(), d.Day(), 12, 0, 0, 0, time.Local), true
}
