// Package rule parses human-written recurrence descriptions into
// structured rules. Rules are never persisted; the stored text is the
// single source of truth and is reparsed on every use.
package rule

import (
	"regexp"
	"strings"
)

// Kind discriminates the closed set of rule variants.
type Kind string

const (
	KindDaily      Kind = "DAILY"
	KindWeekday    Kind = "WEEKDAY"
	KindWeekly     Kind = "WEEKLY"
	KindMonthlyDay Kind = "MONTHLY_DAY"
	KindMonthlyNth Kind = "MONTHLY_NTH"
)

// Weekday codes follow the iCalendar two-letter convention.
type Weekday string

const (
	Sunday    Weekday = "SU"
	Monday    Weekday = "MO"
	Tuesday   Weekday = "TU"
	Wednesday Weekday = "WE"
	Thursday  Weekday = "TH"
	Friday    Weekday = "FR"
	Saturday  Weekday = "SA"
)

// WeekdayOrder maps time.Weekday indexes (Sunday=0) to codes.
var WeekdayOrder = [7]Weekday{Sunday, Monday, Tuesday, Wednesday, Thursday, Friday, Saturday}

// Rule is a parsed recurrence rule. Which fields are meaningful depends
// on Kind:
//
//	DAILY        Interval
//	WEEKDAY      (none)
//	WEEKLY       Interval, ByDay (nil means "any day, step whole weeks")
//	MONTHLY_DAY  Day
//	MONTHLY_NTH  Nth (1..4, -1 for last), Weekday
type Rule struct {
	Kind     Kind
	Interval int
	ByDay    []Weekday
	Day      int
	Nth      int
	Weekday  Weekday
}

var (
	wikiLinkRe = regexp.MustCompile(`\[\[([^\]]+)\]\]`)
	macroRe    = regexp.MustCompile(`\{\{([^}]+)\}\}`)
	blockRefRe = regexp.MustCompile(`\(\(([^)]+)\)\)`)
)

// Normalize strips outliner markup wrapping a rule value: [[...]],
// {{...}} and ((...)) wrappers and a leading bullet dash. Returns "" when
// nothing usable remains.
func Normalize(text string) string {
	s := strings.TrimSpace(text)
	if s == "" {
		return ""
	}
	s = wikiLinkRe.ReplaceAllString(s, "$1")
	s = macroRe.ReplaceAllString(s, "$1")
	s = blockRefRe.ReplaceAllString(s, "$1")
	s = strings.TrimPrefix(s, "-")
	return strings.TrimSpace(s)
}
