package rule

import (
	"reflect"
	"testing"
	"time"
)

func TestParseExactPhrases(t *testing.T) {
	cases := []struct {
		in   string
		want Rule
	}{
		{"daily", Rule{Kind: KindDaily, Interval: 1}},
		{"every day", Rule{Kind: KindDaily, Interval: 1}},
		{"every other day", Rule{Kind: KindDaily, Interval: 2}},
		{"every second day", Rule{Kind: KindDaily, Interval: 2}},
		{"every two days", Rule{Kind: KindDaily, Interval: 2}},
		{"every three days", Rule{Kind: KindDaily, Interval: 3}},
		{"every 3 days", Rule{Kind: KindDaily, Interval: 3}},
		{"every 10 days", Rule{Kind: KindDaily, Interval: 10}},
		{"every weekday", Rule{Kind: KindWeekday}},
		{"every weekend", Rule{Kind: KindWeekly, Interval: 1, ByDay: []Weekday{Saturday, Sunday}}},
		{"weekly", Rule{Kind: KindWeekly, Interval: 1}},
		{"every week", Rule{Kind: KindWeekly, Interval: 1}},
		{"every other week", Rule{Kind: KindWeekly, Interval: 2}},
		{"every 2 weeks", Rule{Kind: KindWeekly, Interval: 2}},
	}
	for _, c := range cases {
		t.Run(c.in, func(t *testing.T) {
			got := Parse(c.in)
			if got == nil {
				t.Fatalf("Parse(%q) = nil", c.in)
			}
			if !reflect.DeepEqual(*got, c.want) {
				t.Errorf("Parse(%q) = %+v, want %+v", c.in, *got, c.want)
			}
		})
	}
}

// Different phrasings of the same schedule must parse to the same rule.
func TestParsePhrasingEquivalence(t *testing.T) {
	groups := [][]string{
		{"daily", "every day", "EVERY DAY", "  every   day  "},
		{"every other day", "every second day", "every two days", "every 2 days"},
		{"every monday", "every mondays", "every mon"},
		{"weekly on monday", "every week on monday", "every 1 week on monday"},
		{"every other week", "every second week", "every 2 weeks"},
		{"every month on the last friday", "last friday every month", "last friday each month"},
		{"every month on day 15", "15th day of every month"},
	}
	for _, g := range groups {
		base := Parse(g[0])
		if base == nil {
			t.Fatalf("Parse(%q) = nil", g[0])
		}
		for _, alt := range g[1:] {
			got := Parse(alt)
			if got == nil {
				t.Fatalf("Parse(%q) = nil", alt)
			}
			if !reflect.DeepEqual(*got, *base) {
				t.Errorf("Parse(%q) = %+v, want %+v (same as %q)", alt, *got, *base, g[0])
			}
		}
	}
}

func TestParseWeekdayLists(t *testing.T) {
	cases := []struct {
		in   string
		want []Weekday
	}{
		{"weekly on monday", []Weekday{Monday}},
		{"weekly on mon, wed, fri", []Weekday{Monday, Wednesday, Friday}},
		{"weekly on monday and thursday", []Weekday{Monday, Thursday}},
		{"every 2 weeks on tuesday", []Weekday{Tuesday}},
		{"weekly on mon mon tue", []Weekday{Monday, Tuesday}}, // duplicates collapse
	}
	for _, c := range cases {
		got := Parse(c.in)
		if got == nil {
			t.Fatalf("Parse(%q) = nil", c.in)
		}
		if got.Kind != KindWeekly {
			t.Fatalf("Parse(%q).Kind = %s, want WEEKLY", c.in, got.Kind)
		}
		if !reflect.DeepEqual(got.ByDay, c.want) {
			t.Errorf("Parse(%q).ByDay = %v, want %v", c.in, got.ByDay, c.want)
		}
	}
}

func TestParseMonthly(t *testing.T) {
	if got := Parse("every month on day 31"); got == nil || got.Kind != KindMonthlyDay || got.Day != 31 {
		t.Errorf("every month on day 31 = %+v", got)
	}
	if got := Parse("3rd day of every month"); got == nil || got.Kind != KindMonthlyDay || got.Day != 3 {
		t.Errorf("3rd day of every month = %+v", got)
	}
	if got := Parse("every month on the 2nd tuesday"); got == nil || got.Kind != KindMonthlyNth || got.Nth != 2 || got.Weekday != Tuesday {
		t.Errorf("every month on the 2nd tuesday = %+v", got)
	}
	if got := Parse("first monday each month"); got == nil || got.Kind != KindMonthlyNth || got.Nth != 1 || got.Weekday != Monday {
		t.Errorf("first monday each month = %+v", got)
	}
	if got := Parse("every month on the last friday"); got == nil || got.Kind != KindMonthlyNth || got.Nth != -1 || got.Weekday != Friday {
		t.Errorf("every month on the last friday = %+v", got)
	}
}

// Bare "monthly" anchors on the reference date's day-of-month.
func TestParseBareMonthly(t *testing.T) {
	today := time.Date(2024, 4, 17, 9, 0, 0, 0, time.Local)
	got := ParseAt("monthly", today)
	if got == nil || got.Kind != KindMonthlyDay || got.Day != 17 {
		t.Errorf("monthly = %+v, want MONTHLY_DAY day 17", got)
	}
	if got := ParseAt("monthly", time.Date(2024, 5, 3, 0, 0, 0, 0, time.Local)); got == nil || got.Day != 3 {
		t.Errorf("monthly on the 3rd = %+v", got)
	}
}

func TestParseRejects(t *testing.T) {
	for _, in := range []string{
		"",
		"sometimes",
		"every 0 days",
		"every month on day 0",
		"every month on day 32",
		"every month on the 5th friday",
		"every funday",
		"whenever I feel like it",
	} {
		if got := Parse(in); got != nil {
			t.Errorf("Parse(%q) = %+v, want nil", in, got)
		}
	}
}

func TestNormalize(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"every other week", "every other week"},
		{"[[every other week]]", "every other week"},
		{"{{every other week}}", "every other week"},
		{"((abc123))", "abc123"},
		{"- every day", "every day"},
		{"  [[weekly]]  ", "weekly"},
		{"", ""},
		{"   ", ""},
	}
	for _, c := range cases {
		if got := Normalize(c.in); got != c.want {
			t.Errorf("Normalize(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}
