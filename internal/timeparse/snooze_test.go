package timeparse

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseSnooze(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  time.Time
		label string
	}{
		{
			name:  "hours",
			input: "3H",
			want:  testNow.Add(3 * time.Hour),
			label: "in 3 hours",
		},
		{
			name:  "single hour",
			input: "1H",
			want:  testNow.Add(time.Hour),
			label: "in 1 hour",
		},
		{
			name:  "minutes",
			input: "45M",
			want:  testNow.Add(45 * time.Minute),
			label: "in 45 minutes",
		},
		{
			name:  "tomorrow defaults to morning",
			input: "TOMORROW",
			want:  time.Date(2026, 6, 10, 9, 0, 0, 0, time.UTC),
			label: "Tomorrow at 9:00 AM",
		},
		{
			name:  "tomorrow pm",
			input: "tomorrow pm",
			want:  time.Date(2026, 6, 10, 14, 0, 0, 0, time.UTC),
			label: "Tomorrow at 2:00 PM",
		},
		{
			name:  "bare digit means hours",
			input: "4",
			want:  testNow.Add(4 * time.Hour),
			label: "in 4 hours",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseSnooze(tt.input, testNow, time.UTC)
			assert.True(t, got.OK, "unexpected hint: %s", got.Hint)
			assert.Equal(t, tt.want, got.SnoozeUntil)
			assert.Equal(t, tt.label, got.Label)
		})
	}
}

func TestParseSnooze_Rejections(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{name: "hours over cap", input: "25H"},
		{name: "minutes under floor", input: "10M"},
		{name: "minutes over cap", input: "130M"},
		{name: "zero", input: "0"},
		{name: "two digit bare number", input: "12"},
		{name: "free text", input: "UNTIL LATER"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseSnooze(tt.input, testNow, time.UTC)
			assert.False(t, got.OK)
			assert.Contains(t, got.Hint, "3H")
		})
	}
}
