package timeparse

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// SnoozeResult is the outcome of parsing a snooze expression. When OK is
// false, Hint carries usage guidance for the reply.
type SnoozeResult struct {
	SnoozeUntil time.Time
	Label       string
	OK          bool
	Hint        string
}

var (
	snoozeHoursRe   = regexp.MustCompile(`^(\d{1,2})H$`)
	snoozeMinutesRe = regexp.MustCompile(`^(\d{1,3})M$`)
	snoozeDigitRe   = regexp.MustCompile(`^([1-9])$`)
)

const snoozeUsage = "Snooze with 3H (hours, 1-24), 45M (minutes, 15-120), TOMORROW AM or TOMORROW PM."

// ParseSnooze resolves a snooze expression: NH for hours (1-24), NM for
// minutes (15-120), TOMORROW with an optional AM/PM, or a bare digit 1-9
// meaning that many hours.
func ParseSnooze(input string, now time.Time, loc *time.Location) SnoozeResult {
	if loc == nil {
		loc = time.Local
	}
	now = now.In(loc)

	text := strings.ToUpper(strings.TrimSpace(input))
	text = strings.Join(strings.Fields(text), " ")

	if m := snoozeHoursRe.FindStringSubmatch(text); m != nil {
		n, _ := strconv.Atoi(m[1])
		if n < 1 || n > 24 {
			return snoozeFail("Snooze hours must be between 1 and 24. " + snoozeUsage)
		}
		return snoozeOK(now.Add(time.Duration(n)*time.Hour), hourLabel(n))
	}

	if m := snoozeMinutesRe.FindStringSubmatch(text); m != nil {
		n, _ := strconv.Atoi(m[1])
		if n < 15 || n > 120 {
			return snoozeFail("Snooze minutes must be between 15 and 120. " + snoozeUsage)
		}
		return snoozeOK(now.Add(time.Duration(n)*time.Minute), fmt.Sprintf("in %d minutes", n))
	}

	switch text {
	case "TOMORROW", "TOMORROW AM":
		t := dateAt(now, 1, 9, 0)
		return snoozeOK(t, "Tomorrow at 9:00 AM")
	case "TOMORROW PM":
		t := dateAt(now, 1, 14, 0)
		return snoozeOK(t, "Tomorrow at 2:00 PM")
	}

	if m := snoozeDigitRe.FindStringSubmatch(text); m != nil {
		n, _ := strconv.Atoi(m[1])
		return snoozeOK(now.Add(time.Duration(n)*time.Hour), hourLabel(n))
	}

	return snoozeFail(snoozeUsage)
}

func hourLabel(n int) string {
	if n == 1 {
		return "in 1 hour"
	}
	return fmt.Sprintf("in %d hours", n)
}

func snoozeOK(t time.Time, label string) SnoozeResult {
	return SnoozeResult{SnoozeUntil: t, Label: label, OK: true}
}

func snoozeFail(hint string) SnoozeResult {
	return SnoozeResult{Hint: hint}
}
