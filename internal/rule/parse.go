package rule

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

var weekdayAliases = map[string]Weekday{
	"sun": Sunday, "sunday": Sunday,
	"mon": Monday, "monday": Monday,
	"tue": Tuesday, "tues": Tuesday, "tuesday": Tuesday,
	"wed": Wednesday, "weds": Wednesday, "wednesday": Wednesday,
	"thu": Thursday, "thur": Thursday, "thurs": Thursday, "thursday": Thursday,
	"fri": Friday, "friday": Friday,
	"sat": Saturday, "saturday": Saturday,
}

var ordinals = map[string]int{
	"1st": 1, "first": 1,
	"2nd": 2, "second": 2,
	"3rd": 3, "third": 3,
	"4th": 4, "fourth": 4,
	"last": -1,
}

// exactRules are fixed phrases, checked before any parametrized pattern.
var exactRules = []struct {
	text string
	rule Rule
}{
	{"daily", Rule{Kind: KindDaily, Interval: 1}},
	{"every day", Rule{Kind: KindDaily, Interval: 1}},
	{"every other day", Rule{Kind: KindDaily, Interval: 2}},
	{"every second day", Rule{Kind: KindDaily, Interval: 2}},
	{"every two days", Rule{Kind: KindDaily, Interval: 2}},
	{"every third day", Rule{Kind: KindDaily, Interval: 3}},
	{"every three days", Rule{Kind: KindDaily, Interval: 3}},
	{"every fourth day", Rule{Kind: KindDaily, Interval: 4}},
	{"every four days", Rule{Kind: KindDaily, Interval: 4}},
	{"every fifth day", Rule{Kind: KindDaily, Interval: 5}},
	{"every five days", Rule{Kind: KindDaily, Interval: 5}},
	{"every weekday", Rule{Kind: KindWeekday}},
	{"every weekend", Rule{Kind: KindWeekly, Interval: 1, ByDay: []Weekday{Saturday, Sunday}}},
	{"weekly", Rule{Kind: KindWeekly, Interval: 1}},
	{"every week", Rule{Kind: KindWeekly, Interval: 1}},
	{"every other week", Rule{Kind: KindWeekly, Interval: 2}},
	{"every second week", Rule{Kind: KindWeekly, Interval: 2}},
}

var (
	everyNDaysRe   = regexp.MustCompile(`^every (\d+)\s*days?$`)
	everyNWeeksRe  = regexp.MustCompile(`^every (\d+)\s*weeks?(?:\s+on\s+(.+))?$`)
	weeklyOnRe     = regexp.MustCompile(`^(?:every week|weekly)\s+on\s+(.+)$`)
	monthOnDayRe   = regexp.MustCompile(`^every month on day (\d{1,2})$`)
	monthNthDowRe  = regexp.MustCompile(`^every month on the (1st|2nd|3rd|4th|first|second|third|fourth|last)\s+([a-z]+)$`)
	nthDayMonthRe  = regexp.MustCompile(`^(\d{1,2})(?:st|nd|rd|th)\s+day of every month$`)
	compactNthRe   = regexp.MustCompile(`^(1st|2nd|3rd|4th|first|second|third|fourth|last)\s+([a-z]+)\s+(?:each|every)\s+month$`)
	daySeparatorRe = regexp.MustCompile(`[,\s]+`)
)

// Parse translates free-text into a Rule against the wall clock. See
// ParseAt.
func Parse(text string) *Rule {
	return ParseAt(text, time.Now())
}

// ParseAt translates free-text into a Rule. Unparseable text yields
// nil; the caller treats the task as non-recurring for that operation.
// The input is expected to be pre-stripped of outliner markup (see
// Normalize); raw markup is not part of this contract. today anchors
// the phrasings that are relative to the current date (bare "monthly"
// uses its day-of-month).
//
// Patterns match in priority order, most specific first. First match
// wins; there is no ambiguity resolution beyond table order.
func ParseAt(text string, today time.Time) *Rule {
	t := strings.ToLower(strings.TrimSpace(text))
	t = strings.Join(strings.Fields(t), " ")
	if t == "" {
		return nil
	}

	for _, e := range exactRules {
		if t == e.text {
			r := e.rule
			return &r
		}
	}

	if m := everyNDaysRe.FindStringSubmatch(t); m != nil {
		n, _ := strconv.Atoi(m[1])
		if n > 0 {
			return &Rule{Kind: KindDaily, Interval: n}
		}
	}

	// "every monday" / "every mondays", including abbreviations
	if rest, ok := strings.CutPrefix(t, "every "); ok {
		if wd, ok := lookupWeekday(rest); ok {
			return &Rule{Kind: KindWeekly, Interval: 1, ByDay: []Weekday{wd}}
		}
	}

	if m := weeklyOnRe.FindStringSubmatch(t); m != nil {
		if byDay := parseWeekdayList(m[1]); len(byDay) > 0 {
			return &Rule{Kind: KindWeekly, Interval: 1, ByDay: byDay}
		}
	}

	if m := everyNWeeksRe.FindStringSubmatch(t); m != nil {
		n, _ := strconv.Atoi(m[1])
		if n > 0 {
			return &Rule{Kind: KindWeekly, Interval: n, ByDay: parseWeekdayList(m[2])}
		}
	}

	if t == "monthly" {
		return &Rule{Kind: KindMonthlyDay, Day: today.Day()}
	}

	if m := monthOnDayRe.FindStringSubmatch(t); m != nil {
		d, _ := strconv.Atoi(m[1])
		if d >= 1 && d <= 31 {
			return &Rule{Kind: KindMonthlyDay, Day: d}
		}
	}

	if m := nthDayMonthRe.FindStringSubmatch(t); m != nil {
		d, _ := strconv.Atoi(m[1])
		if d >= 1 && d <= 31 {
			return &Rule{Kind: KindMonthlyDay, Day: d}
		}
	}

	if m := monthNthDowRe.FindStringSubmatch(t); m != nil {
		if r := nthWeekdayRule(m[1], m[2]); r != nil {
			return r
		}
	}

	if m := compactNthRe.FindStringSubmatch(t); m != nil {
		if r := nthWeekdayRule(m[1], m[2]); r != nil {
			return r
		}
	}

	return nil
}

func nthWeekdayRule(ord, day string) *Rule {
	nth, ok := ordinals[ord]
	if !ok {
		return nil
	}
	wd, ok := lookupWeekday(day)
	if !ok {
		return nil
	}
	return &Rule{Kind: KindMonthlyNth, Nth: nth, Weekday: wd}
}

func lookupWeekday(name string) (Weekday, bool) {
	name = strings.TrimSpace(name)
	if wd, ok := weekdayAliases[name]; ok {
		return wd, true
	}
	// plural forms: "mondays", "tuesdays"
	if singular, ok := strings.CutSuffix(name, "s"); ok {
		if wd, ok := weekdayAliases[singular]; ok {
			return wd, true
		}
	}
	return "", false
}

func parseWeekdayList(s string) []Weekday {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	var out []Weekday
	seen := map[Weekday]bool{}
	for _, part := range daySeparatorRe.Split(strings.TrimSpace(s), -1) {
		part = strings.Trim(part, ",")
		if part == "" || part == "and" {
			continue
		}
		wd, ok := lookupWeekday(part)
		if !ok {
			continue
		}
		if !seen[wd] {
			seen[wd] = true
			out = append(out, wd)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
