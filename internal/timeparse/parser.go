// Package timeparse converts the free-text time expressions operators send
// over SMS ("TUE 2PM", "TOMORROW 9AM", "3H") into absolute timestamps. The
// parsers never fail with an error: ambiguous or malformed input produces a
// structured result carrying a clarification prompt to text back.
package timeparse

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Result is the outcome of parsing a booking time expression. Either Time
// and Confirmation are set, or NeedsClarification is true and Prompt holds
// the question to send back to the operator.
type Result struct {
	Time               time.Time
	Confirmation       string
	NeedsClarification bool
	Prompt             string
}

var (
	relativeDayRe = regexp.MustCompile(`^(TODAY|TOMORROW|TMRW|TMR)(?:\s+(.+))?$`)
	nextWeekdayRe = regexp.MustCompile(`^NEXT\s+([A-Z]+)(?:\s+(.+))?$`)
	numericDateRe = regexp.MustCompile(`^(\d{1,2})[/-](\d{1,2})(?:\s+(.+))?$`)
	clockAmPmRe   = regexp.MustCompile(`^(\d{1,2})(?::(\d{2}))?\s*(AM|PM)$`)
	clock24Re     = regexp.MustCompile(`^(\d{1,2}):(\d{2})$`)
	bareNumberRe  = regexp.MustCompile(`^(\d{1,2})$`)
)

var weekdays = map[string]time.Weekday{
	"SUN": time.Sunday, "SUNDAY": time.Sunday,
	"MON": time.Monday, "MONDAY": time.Monday,
	"TUE": time.Tuesday, "TUES": time.Tuesday, "TUESDAY": time.Tuesday,
	"WED": time.Wednesday, "WEDS": time.Wednesday, "WEDNESDAY": time.Wednesday,
	"THU": time.Thursday, "THUR": time.Thursday, "THURS": time.Thursday, "THURSDAY": time.Thursday,
	"FRI": time.Friday, "FRIDAY": time.Friday,
	"SAT": time.Saturday, "SATURDAY": time.Saturday,
}

// timeOfDay keywords accepted wherever a clock time is accepted.
var timeOfDay = map[string][2]int{
	"MORNING":   {9, 0},
	"AFTERNOON": {14, 0},
	"EVENING":   {17, 0},
	"NOON":      {12, 0},
}

// Parse resolves a free-text time expression against now in the given
// location. Rules are tried in order, first match wins:
//
//  1. TODAY/TOMORROW (TMRW, TMR) with an optional time
//  2. NEXT <weekday>, or a bare weekday (always a future occurrence)
//  3. MM/DD or MM-DD, rolling to next year if already passed
//  4. a bare time, assumed today and rolled to tomorrow if passed
//  5. ASAP/NOW/SOON and the time-of-day keywords
func Parse(input string, now time.Time, loc *time.Location) Result {
	if loc == nil {
		loc = time.Local
	}
	now = now.In(loc)

	text := strings.ToUpper(strings.TrimSpace(input))
	text = strings.Join(strings.Fields(text), " ")
	if text == "" {
		return clarify("When should I schedule that? Try TOMORROW 9AM or TUE 2PM.")
	}

	// 1. Relative day keywords.
	if m := relativeDayRe.FindStringSubmatch(text); m != nil {
		day, rest := m[1], m[2]
		if day == "TODAY" {
			if rest == "" {
				return clarify("What time today? Reply like TODAY 2PM.")
			}
			h, min, ok := parseClock(rest)
			if !ok {
				return clarify(fmt.Sprintf("I didn't catch the time in %q. Reply like TODAY 2PM.", rest))
			}
			return finalize(dateAt(now, 0, h, min), now)
		}
		// TOMORROW and its shorthands default to 9:00.
		h, min := 9, 0
		if rest != "" {
			var ok bool
			h, min, ok = parseClock(rest)
			if !ok {
				return clarify(fmt.Sprintf("I didn't catch the time in %q. Reply like TOMORROW 2PM.", rest))
			}
		}
		return finalize(dateAt(now, 1, h, min), now)
	}

	// 2. NEXT <weekday> skips the nearest occurrence; a bare weekday takes
	// the nearest future one (today excluded, we always advance).
	if m := nextWeekdayRe.FindStringSubmatch(text); m != nil {
		if wd, ok := weekdays[m[1]]; ok {
			h, min, rest := 9, 0, m[2]
			if rest != "" {
				var ok bool
				h, min, ok = parseClock(rest)
				if !ok {
					return clarify(fmt.Sprintf("I didn't catch the time in %q. Reply like NEXT TUE 2PM.", rest))
				}
			}
			days := int(wd-now.Weekday()+7)%7 + 7 // 7..13 days out
			return finalize(dateAt(now, days, h, min), now)
		}
	}
	if fields := strings.Fields(text); len(fields) >= 1 {
		if wd, ok := weekdays[fields[0]]; ok {
			h, min := 9, 0
			if len(fields) > 1 {
				var ok bool
				h, min, ok = parseClock(strings.Join(fields[1:], " "))
				if !ok {
					return clarify(fmt.Sprintf("I didn't catch the time in %q. Reply like TUE 2PM.", strings.Join(fields[1:], " ")))
				}
			}
			days := int(wd-now.Weekday()+7) % 7
			if days == 0 {
				days = 7
			}
			return finalize(dateAt(now, days, h, min), now)
		}
	}

	// 3. Explicit numeric date MM/DD or MM-DD.
	if m := numericDateRe.FindStringSubmatch(text); m != nil {
		month, _ := strconv.Atoi(m[1])
		day, _ := strconv.Atoi(m[2])
		if month >= 1 && month <= 12 && day >= 1 && day <= 31 {
			h, min := 9, 0
			if m[3] != "" {
				var ok bool
				h, min, ok = parseClock(m[3])
				if !ok {
					return clarify(fmt.Sprintf("I didn't catch the time in %q. Reply like 6/15 2PM.", m[3]))
				}
			}
			t := time.Date(now.Year(), time.Month(month), day, h, min, 0, 0, loc)
			// A date earlier in the calendar than today means next year.
			if t.YearDay() < now.YearDay() {
				t = t.AddDate(1, 0, 0)
			}
			return finalize(t, now)
		}
	}

	// 5a. Presets meaning "soon".
	switch text {
	case "ASAP", "NOW", "SOON":
		t := now.Add(time.Hour)
		return Result{Time: t, Confirmation: formatConfirmation(t, now)}
	}

	// 4/5b. A bare time (clock or time-of-day keyword), assumed today.
	if h, min, ok := parseClock(text); ok {
		return finalize(dateAt(now, 0, h, min), now)
	}

	return clarify("I couldn't read that time. Try TOMORROW 9AM, TUE 2PM, 6/15 or ASAP.")
}

// parseClock accepts H[:MM]AM|PM, 24-hour HH:MM, a bare 1-2 digit number
// (1-6 reads as PM, 7-12 as AM, 13-23 as a 24-hour hour) and the
// time-of-day keywords.
func parseClock(s string) (hour, min int, ok bool) {
	s = strings.TrimSpace(s)
	if hm, found := timeOfDay[s]; found {
		return hm[0], hm[1], true
	}
	if m := clockAmPmRe.FindStringSubmatch(s); m != nil {
		h, _ := strconv.Atoi(m[1])
		if h < 1 || h > 12 {
			return 0, 0, false
		}
		mn := 0
		if m[2] != "" {
			mn, _ = strconv.Atoi(m[2])
			if mn > 59 {
				return 0, 0, false
			}
		}
		if m[3] == "PM" && h != 12 {
			h += 12
		}
		if m[3] == "AM" && h == 12 {
			h = 0
		}
		return h, mn, true
	}
	if m := clock24Re.FindStringSubmatch(s); m != nil {
		h, _ := strconv.Atoi(m[1])
		mn, _ := strconv.Atoi(m[2])
		if h > 23 || mn > 59 {
			return 0, 0, false
		}
		return h, mn, true
	}
	if m := bareNumberRe.FindStringSubmatch(s); m != nil {
		h, _ := strconv.Atoi(m[1])
		switch {
		case h >= 1 && h <= 6: // a service call at 1-6 almost always means afternoon
			return h + 12, 0, true
		case h >= 7 && h <= 12:
			return h % 24, 0, true
		case h >= 13 && h <= 23:
			return h, 0, true
		}
		return 0, 0, false
	}
	return 0, 0, false
}

// finalize applies the shared past-time rule: a time already gone today
// rolls silently to tomorrow at the same clock time; any other past time
// asks for clarification.
func finalize(t, now time.Time) Result {
	if t.After(now) {
		return Result{Time: t, Confirmation: formatConfirmation(t, now)}
	}
	if sameDay(t, now) {
		t = t.AddDate(0, 0, 1)
		return Result{Time: t, Confirmation: formatConfirmation(t, now)}
	}
	return clarify("That time has already passed. Try TOMORROW 9AM or a later date.")
}

func clarify(prompt string) Result {
	return Result{NeedsClarification: true, Prompt: prompt}
}

func dateAt(now time.Time, addDays, hour, min int) time.Time {
	d := now.AddDate(0, 0, addDays)
	return time.Date(d.Year(), d.Month(), d.Day(), hour, min, 0, 0, now.Location())
}

func sameDay(a, b time.Time) bool {
	return a.Year() == b.Year() && a.YearDay() == b.YearDay()
}

// formatConfirmation renders the human-readable confirmation echoed back to
// the operator: "Today at 2:00 PM", "Tomorrow at 9:00 AM" or
// "Tuesday, Jun 15 at 2:00 PM".
func formatConfirmation(t, now time.Time) string {
	clock := t.Format("3:04 PM")
	switch {
	case sameDay(t, now):
		return "Today at " + clock
	case sameDay(t, now.AddDate(0, 0, 1)):
		return "Tomorrow at " + clock
	default:
		return t.Format("Monday, Jan 2") + " at " + clock
	}
}
