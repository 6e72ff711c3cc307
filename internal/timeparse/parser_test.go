package timeparse

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// Tuesday, June 9 2026, 10:00 local.
var testNow = time.Date(2026, 6, 9, 10, 0, 0, 0, time.UTC)

func TestParse_Expressions(t *testing.T) {
	tests := []struct {
		name         string
		input        string
		want         time.Time
		confirmation string
	}{
		{
			name:         "tomorrow defaults to 9am",
			input:        "TOMORROW",
			want:         time.Date(2026, 6, 10, 9, 0, 0, 0, time.UTC),
			confirmation: "Tomorrow at 9:00 AM",
		},
		{
			name:         "tomorrow with time",
			input:        "TOMORROW 2PM",
			want:         time.Date(2026, 6, 10, 14, 0, 0, 0, time.UTC),
			confirmation: "Tomorrow at 2:00 PM",
		},
		{
			name:         "tmrw shorthand",
			input:        "TMRW 2:30PM",
			want:         time.Date(2026, 6, 10, 14, 30, 0, 0, time.UTC),
			confirmation: "Tomorrow at 2:30 PM",
		},
		{
			name:         "today with future time",
			input:        "TODAY 2PM",
			want:         time.Date(2026, 6, 9, 14, 0, 0, 0, time.UTC),
			confirmation: "Today at 2:00 PM",
		},
		{
			name:  "today with passed time rolls to tomorrow",
			input: "TODAY 9AM",
			want:  time.Date(2026, 6, 10, 9, 0, 0, 0, time.UTC),
		},
		{
			name:  "bare weekday is the nearest future one",
			input: "FRI",
			want:  time.Date(2026, 6, 12, 9, 0, 0, 0, time.UTC),
		},
		{
			name:  "bare weekday matching today advances a full week",
			input: "TUE 2PM",
			want:  time.Date(2026, 6, 16, 14, 0, 0, 0, time.UTC),
		},
		{
			name:  "next weekday skips the nearest occurrence",
			input: "NEXT FRI 2PM",
			want:  time.Date(2026, 6, 19, 14, 0, 0, 0, time.UTC),
		},
		{
			name:  "full weekday name",
			input: "WEDNESDAY 8AM",
			want:  time.Date(2026, 6, 10, 8, 0, 0, 0, time.UTC),
		},
		{
			name:  "numeric date slash",
			input: "6/15",
			want:  time.Date(2026, 6, 15, 9, 0, 0, 0, time.UTC),
		},
		{
			name:  "numeric date dash with time",
			input: "6-15 2PM",
			want:  time.Date(2026, 6, 15, 14, 0, 0, 0, time.UTC),
		},
		{
			name:  "passed calendar date rolls to next year",
			input: "1/5",
			want:  time.Date(2027, 1, 5, 9, 0, 0, 0, time.UTC),
		},
		{
			name:  "bare time assumed today",
			input: "2PM",
			want:  time.Date(2026, 6, 9, 14, 0, 0, 0, time.UTC),
		},
		{
			name:  "bare passed time rolls to tomorrow",
			input: "8AM",
			want:  time.Date(2026, 6, 10, 8, 0, 0, 0, time.UTC),
		},
		{
			name:  "24 hour clock",
			input: "14:30",
			want:  time.Date(2026, 6, 9, 14, 30, 0, 0, time.UTC),
		},
		{
			name:  "bare small number reads as afternoon",
			input: "3",
			want:  time.Date(2026, 6, 9, 15, 0, 0, 0, time.UTC),
		},
		{
			name:  "bare large number reads as morning",
			input: "11",
			want:  time.Date(2026, 6, 9, 11, 0, 0, 0, time.UTC),
		},
		{
			name:  "bare twelve means noon",
			input: "12",
			want:  time.Date(2026, 6, 9, 12, 0, 0, 0, time.UTC),
		},
		{
			name:  "bare number in 24 hour range",
			input: "14",
			want:  time.Date(2026, 6, 9, 14, 0, 0, 0, time.UTC),
		},
		{
			name:  "asap is an hour out",
			input: "ASAP",
			want:  time.Date(2026, 6, 9, 11, 0, 0, 0, time.UTC),
		},
		{
			name:  "morning keyword already passed",
			input: "MORNING",
			want:  time.Date(2026, 6, 10, 9, 0, 0, 0, time.UTC),
		},
		{
			name:  "afternoon keyword",
			input: "AFTERNOON",
			want:  time.Date(2026, 6, 9, 14, 0, 0, 0, time.UTC),
		},
		{
			name:  "noon keyword",
			input: "NOON",
			want:  time.Date(2026, 6, 9, 12, 0, 0, 0, time.UTC),
		},
		{
			name:  "lowercase and extra whitespace",
			input: "  tomorrow   2pm ",
			want:  time.Date(2026, 6, 10, 14, 0, 0, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Parse(tt.input, testNow, time.UTC)
			assert.False(t, got.NeedsClarification, "unexpected clarification: %s", got.Prompt)
			assert.Equal(t, tt.want, got.Time)
			assert.True(t, got.Time.After(testNow), "parsed time must be in the future")
			if tt.confirmation != "" {
				assert.Equal(t, tt.confirmation, got.Confirmation)
			}
		})
	}
}

func TestParse_Clarifications(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{name: "empty input", input: "   "},
		{name: "today without a time", input: "TODAY"},
		{name: "unreadable text", input: "WHENEVER WORKS"},
		{name: "garbage time after today", input: "TODAY SOONISH"},
		{name: "invalid clock hour", input: "13PM"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Parse(tt.input, testNow, time.UTC)
			assert.True(t, got.NeedsClarification)
			assert.NotEmpty(t, got.Prompt)
			assert.True(t, got.Time.IsZero())
		})
	}
}

func TestParse_NextWeekdayStaysWithinTwoWeeks(t *testing.T) {
	for _, day := range []string{"NEXT SUN", "NEXT MON", "NEXT TUE", "NEXT WED", "NEXT THU", "NEXT FRI", "NEXT SAT"} {
		got := Parse(day, testNow, time.UTC)
		assert.False(t, got.NeedsClarification)
		diff := got.Time.Sub(testNow)
		assert.GreaterOrEqual(t, diff, 6*24*time.Hour, "%s landed too close", day)
		assert.Less(t, diff, 14*24*time.Hour, "%s landed too far out", day)
	}
}
