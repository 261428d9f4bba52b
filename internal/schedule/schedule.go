// Package schedule computes next-occurrence dates for parsed recurrence
// rules. All arithmetic pins time-of-day to local noon so DST boundaries
// cannot shift the calendar day.
package schedule

import (
	"time"

	"github.com/mlava/better-tasks/internal/rule"
)

// catchUpLimit bounds catch-up iteration for rules whose anchor has
// drifted far into the past. A safety cap against pathological rules.
const catchUpLimit = 36

// Noon returns t's calendar day pinned to 12:00 local time.
func Noon(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 12, 0, 0, 0, t.Location())
}

// AddDays advances by whole calendar days, keeping the noon pin.
func AddDays(t time.Time, n int) time.Time {
	return Noon(t.AddDate(0, 0, n))
}

func isWeekend(t time.Time) bool {
	wd := t.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

// NextOccurrence computes the next occurrence for r from anchor, then
// applies the catch-up rule: while the produced date is strictly before
// now's calendar day, it is re-used as the anchor (bounded), so a task
// whose due date drifted into the past lands on the next date at or
// after today. Returns false for a nil rule or an unknown kind.
func NextOccurrence(r *rule.Rule, anchor, now time.Time) (time.Time, bool) {
	next, ok := step(r, anchor)
	if !ok {
		return time.Time{}, false
	}
	today := Noon(now)
	for i := 0; i < catchUpLimit && next.Before(today); i++ {
		next, ok = step(r, next)
		if !ok {
			return time.Time{}, false
		}
	}
	return next, true
}

// step advances one occurrence from anchor without catch-up.
func step(r *rule.Rule, anchor time.Time) (time.Time, bool) {
	if r == nil {
		return time.Time{}, false
	}
	base := Noon(anchor)
	switch r.Kind {
	case rule.KindDaily:
		interval := r.Interval
		if interval < 1 {
			interval = 1
		}
		return AddDays(base, interval), true
	case rule.KindWeekday:
		next := AddDays(base, 1)
		for isWeekend(next) {
			next = AddDays(next, 1)
		}
		return next, true
	case rule.KindWeekly:
		return nextWeekly(base, r), true
	case rule.KindMonthlyDay:
		return nextMonthOnDay(base, r.Day), true
	case rule.KindMonthlyNth:
		return nextMonthOnNth(base, r.Nth, r.Weekday), true
	default:
		return time.Time{}, false
	}
}

func nextWeekly(base time.Time, r *rule.Rule) time.Time {
	interval := r.Interval
	if interval < 1 {
		interval = 1
	}
	if len(r.ByDay) == 0 {
		return AddDays(base, 7*interval)
	}
	inSet := map[rule.Weekday]bool{}
	for _, wd := range r.ByDay {
		inSet[wd] = true
	}
	// Scan forward for the first date whose weekday is in the set. The
	// bound always covers a full cycle, but keep the plain fallback.
	for i := 1; i <= 7*interval+7; i++ {
		cand := AddDays(base, i)
		if inSet[rule.WeekdayOrder[cand.Weekday()]] {
			return cand
		}
	}
	return AddDays(base, 7*interval)
}

func nextMonthOnDay(base time.Time, day int) time.Time {
	y, m, _ := base.Date()
	cand := time.Date(y, m+1, day, 12, 0, 0, 0, base.Location())
	want := time.Date(y, m+1, 1, 12, 0, 0, 0, base.Location()).Month()
	if cand.Month() != want {
		// Day does not exist in the target month: clamp to its last day.
		return time.Date(y, m+2, 0, 12, 0, 0, 0, base.Location())
	}
	return cand
}

func nextMonthOnNth(base time.Time, nth int, wd rule.Weekday) time.Time {
	y, m, _ := base.Date()
	loc := base.Location()
	if nth == -1 {
		last := time.Date(y, m+2, 0, 12, 0, 0, 0, loc) // last day of next month
		for rule.WeekdayOrder[last.Weekday()] != wd {
			last = AddDays(last, -1)
		}
		return last
	}
	first := time.Date(y, m+1, 1, 12, 0, 0, 0, loc)
	for rule.WeekdayOrder[first.Weekday()] != wd {
		first = AddDays(first, 1)
	}
	return AddDays(first, 7*(nth-1))
}
