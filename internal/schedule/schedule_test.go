package schedule

import (
	"testing"
	"time"

	"github.com/mlava/better-tasks/internal/rule"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 12, 0, 0, 0, time.Local)
}

func TestNoonPinsTimeOfDay(t *testing.T) {
	late := time.Date(2024, 3, 10, 23, 45, 1, 0, time.Local)
	got := Noon(late)
	if got.Hour() != 12 || got.Minute() != 0 || got.Day() != 10 {
		t.Errorf("Noon = %v", got)
	}
}

func TestNextOccurrenceDaily(t *testing.T) {
	r := &rule.Rule{Kind: rule.KindDaily, Interval: 1}
	anchor := day(2024, 3, 10)
	got, ok := NextOccurrence(r, anchor, anchor)
	if !ok || !got.Equal(day(2024, 3, 11)) {
		t.Errorf("daily from 2024-03-10 = %v, ok=%v", got, ok)
	}

	r3 := &rule.Rule{Kind: rule.KindDaily, Interval: 3}
	got, ok = NextOccurrence(r3, anchor, anchor)
	if !ok || !got.Equal(day(2024, 3, 13)) {
		t.Errorf("every 3 days from 2024-03-10 = %v, ok=%v", got, ok)
	}
}

// A task due 2024-01-01 on "every other week" completed late lands on
// 2024-01-15, not a date already in the past.
func TestNextOccurrenceEveryOtherWeek(t *testing.T) {
	r := rule.Parse("every other week")
	if r == nil {
		t.Fatal("rule did not parse")
	}
	anchor := day(2024, 1, 1)
	now := day(2024, 1, 5)
	got, ok := NextOccurrence(r, anchor, now)
	if !ok || !got.Equal(day(2024, 1, 15)) {
		t.Errorf("every other week from 2024-01-01 = %v, ok=%v, want 2024-01-15", got, ok)
	}
}

// "every weekday" from a Friday skips the weekend.
func TestNextOccurrenceWeekdaySkipsWeekend(t *testing.T) {
	r := rule.Parse("every weekday")
	if r == nil {
		t.Fatal("rule did not parse")
	}
	friday := day(2024, 3, 1)
	if friday.Weekday() != time.Friday {
		t.Fatalf("2024-03-01 is %v, expected Friday", friday.Weekday())
	}
	got, ok := NextOccurrence(r, friday, friday)
	if !ok || !got.Equal(day(2024, 3, 4)) {
		t.Errorf("every weekday from Friday = %v, ok=%v, want Monday 2024-03-04", got, ok)
	}
	// Midweek it is just the next day.
	tuesday := day(2024, 3, 5)
	got, _ = NextOccurrence(r, tuesday, tuesday)
	if !got.Equal(day(2024, 3, 6)) {
		t.Errorf("every weekday from Tuesday = %v, want 2024-03-06", got)
	}
}

func TestNextOccurrenceWeeklyByDay(t *testing.T) {
	r := rule.Parse("weekly on monday")
	if r == nil {
		t.Fatal("rule did not parse")
	}
	wednesday := day(2024, 3, 6)
	got, ok := NextOccurrence(r, wednesday, wednesday)
	if !ok || !got.Equal(day(2024, 3, 11)) {
		t.Errorf("weekly on monday from Wednesday = %v, ok=%v, want 2024-03-11", got, ok)
	}
	// From a Monday the next Monday is a full week out, not the same day.
	monday := day(2024, 3, 11)
	got, _ = NextOccurrence(r, monday, monday)
	if !got.Equal(day(2024, 3, 18)) {
		t.Errorf("weekly on monday from Monday = %v, want 2024-03-18", got)
	}
}

func TestNextOccurrenceWeekendSet(t *testing.T) {
	r := rule.Parse("every weekend")
	if r == nil {
		t.Fatal("rule did not parse")
	}
	thursday := day(2024, 3, 7)
	got, ok := NextOccurrence(r, thursday, thursday)
	if !ok || !got.Equal(day(2024, 3, 9)) {
		t.Errorf("every weekend from Thursday = %v, ok=%v, want Saturday 2024-03-09", got, ok)
	}
}

// Day 31 clamps to the last day of months that are shorter.
func TestNextOccurrenceMonthlyDayClamps(t *testing.T) {
	r := &rule.Rule{Kind: rule.KindMonthlyDay, Day: 31}
	anchor := day(2024, 1, 31)
	got, ok := NextOccurrence(r, anchor, anchor)
	if !ok || !got.Equal(day(2024, 2, 29)) {
		t.Errorf("day 31 from January = %v, ok=%v, want 2024-02-29 (leap year)", got, ok)
	}
	got, _ = NextOccurrence(r, day(2023, 1, 31), day(2023, 1, 31))
	if !got.Equal(day(2023, 2, 28)) {
		t.Errorf("day 31 from January 2023 = %v, want 2023-02-28", got)
	}
}

func TestNextOccurrenceMonthlyNth(t *testing.T) {
	second := &rule.Rule{Kind: rule.KindMonthlyNth, Nth: 2, Weekday: rule.Friday}
	anchor := day(2024, 2, 1)
	got, ok := NextOccurrence(second, anchor, anchor)
	if !ok || !got.Equal(day(2024, 3, 8)) {
		t.Errorf("2nd friday after 2024-02-01 = %v, ok=%v, want 2024-03-08", got, ok)
	}
}

// "every month on the last friday" anchored in February lands on the
// last Friday of March.
func TestNextOccurrenceMonthlyLastWeekday(t *testing.T) {
	r := rule.Parse("every month on the last friday")
	if r == nil {
		t.Fatal("rule did not parse")
	}
	anchor := day(2024, 2, 1)
	got, ok := NextOccurrence(r, anchor, anchor)
	if !ok || !got.Equal(day(2024, 3, 29)) {
		t.Errorf("last friday after 2024-02-01 = %v, ok=%v, want 2024-03-29", got, ok)
	}
}

// An anchor that drifted far into the past catches up to a date at or
// after today instead of spawning into the past.
func TestNextOccurrenceCatchUp(t *testing.T) {
	r := &rule.Rule{Kind: rule.KindDaily, Interval: 1}
	anchor := day(2024, 1, 1)
	now := day(2024, 1, 20)
	got, ok := NextOccurrence(r, anchor, now)
	if !ok || got.Before(Noon(now)) {
		t.Fatalf("catch-up landed in the past: %v", got)
	}
	if !got.Equal(day(2024, 1, 20)) {
		t.Errorf("daily catch-up from 2024-01-01 at 2024-01-20 = %v, want 2024-01-20", got)
	}

	weekly := &rule.Rule{Kind: rule.KindWeekly, Interval: 2}
	got, ok = NextOccurrence(weekly, day(2023, 12, 4), day(2024, 1, 5))
	if !ok || got.Before(day(2024, 1, 5)) {
		t.Fatalf("weekly catch-up landed in the past: %v", got)
	}
}

// The catch-up bound terminates even when the anchor is years stale.
func TestNextOccurrenceCatchUpBounded(t *testing.T) {
	r := &rule.Rule{Kind: rule.KindDaily, Interval: 1}
	got, ok := NextOccurrence(r, day(2020, 1, 1), day(2024, 1, 1))
	if !ok {
		t.Fatal("expected a date")
	}
	// 36 steps of one day from 2020 cannot reach 2024; the result is the
	// capped date, still deterministic.
	if !got.Equal(day(2020, 2, 7)) {
		t.Errorf("bounded catch-up = %v, want 2020-02-07", got)
	}
}

// Same inputs always give the same output.
func TestNextOccurrenceDeterministic(t *testing.T) {
	r := rule.Parse("every month on the 2nd tuesday")
	anchor := day(2024, 5, 14)
	now := day(2024, 5, 14)
	first, ok := NextOccurrence(r, anchor, now)
	if !ok {
		t.Fatal("expected a date")
	}
	for i := 0; i < 5; i++ {
		again, _ := NextOccurrence(r, anchor, now)
		if !again.Equal(first) {
			t.Fatalf("run %d: %v != %v", i, again, first)
		}
	}
}

func TestNextOccurrenceNilRule(t *testing.T) {
	if _, ok := NextOccurrence(nil, day(2024, 1, 1), day(2024, 1, 1)); ok {
		t.Error("nil rule should not produce a date")
	}
}

func TestAddDaysDSTBoundary(t *testing.T) {
	// Crossing any calendar span keeps the noon pin.
	start := day(2024, 3, 9)
	got := AddDays(start, 2)
	if got.Hour() != 12 {
		t.Errorf("AddDays hour = %d, want 12", got.Hour())
	}
	if got.Day() != 11 {
		t.Errorf("AddDays day = %d, want 11", got.Day())
	}
}
