package services

import (
	"fmt"
	"time"

	"github.com/callrescue/callrescue/db"
)

// TemplateParams carries the fields the per-event templates interpolate.
type TemplateParams struct {
	CallerName  string
	CallerPhone string
	Summary     string
	ScheduledAt *time.Time
}

// RenderTemplate builds the outbound body for an event type. Every template
// fits one SMS segment; anything longer is truncated.
func RenderTemplate(eventType string, p TemplateParams) string {
	name := p.CallerName
	if name == "" {
		name = "Unknown caller"
	}

	var body string
	switch eventType {
	case db.EventMissedCall:
		body = fmt.Sprintf("Missed call: %s %s. Reply 1-9 to snooze that many hrs, NOTE <text>, or a time like TOMORROW 9AM to book.", name, p.CallerPhone)
	case db.EventAbandonedCall:
		body = fmt.Sprintf("URGENT: %s %s hung up before booking. Call back now. Reply CALLED when done.", name, p.CallerPhone)
	case db.EventSameDayBooking:
		body = fmt.Sprintf("Same-day booking: %s at %s. Reply with a new time to move it.", name, formatSchedule(p.ScheduledAt))
	case db.EventBookingCreated:
		body = fmt.Sprintf("Booked: %s, %s.", name, formatSchedule(p.ScheduledAt))
	case db.EventJobUpdate:
		body = fmt.Sprintf("Job update for %s: %s", name, p.Summary)
	case db.EventStaleJobAlert:
		body = fmt.Sprintf("Job for %s needs attention: no activity since booking. Reply with a time to reschedule.", name)
	case db.EventLeadFollowup:
		body = fmt.Sprintf("Follow up: %s %s is waiting on a callback.", name, p.CallerPhone)
	case db.EventEmergencyAlert:
		body = fmt.Sprintf("EMERGENCY: %s %s needs immediate service. %s", name, p.CallerPhone, p.Summary)
	default:
		body = fmt.Sprintf("%s %s: %s", name, p.CallerPhone, p.Summary)
	}

	if len(body) > maxSmsLength {
		body = body[:maxSmsLength-3] + "..."
	}
	return body
}

func formatSchedule(t *time.Time) string {
	if t == nil {
		return "unscheduled"
	}
	return t.Format("Mon 3:04 PM")
}
