package services

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"

	"github.com/callrescue/callrescue/db"
)

// stubSender records sends so tests can assert delivery behavior without a
// gateway.
type stubSender struct {
	id     string
	err    error
	calls  int
	bodies []string
}

func (s *stubSender) Send(ctx context.Context, to, body string) (string, error) {
	s.calls++
	s.bodies = append(s.bodies, body)
	return s.id, s.err
}

func TestShouldNotify(t *testing.T) {
	tests := []struct {
		name      string
		prefs     db.NotificationPreferences
		eventType string
		want      bool
	}{
		{
			name:      "enabled toggle allows",
			prefs:     db.DefaultPreferences("u1", "o1"),
			eventType: db.EventMissedCall,
			want:      true,
		},
		{
			name: "disabled toggle blocks",
			prefs: func() db.NotificationPreferences {
				p := db.DefaultPreferences("u1", "o1")
				p.MissedCall = false
				return p
			}(),
			eventType: db.EventMissedCall,
			want:      false,
		},
		{
			name: "critical event bypasses disabled toggle",
			prefs: func() db.NotificationPreferences {
				p := db.DefaultPreferences("u1", "o1")
				p.AbandonedCall = false
				return p
			}(),
			eventType: db.EventAbandonedCall,
			want:      true,
		},
		{
			name: "unsubscribe blocks even critical events",
			prefs: func() db.NotificationPreferences {
				p := db.DefaultPreferences("u1", "o1")
				p.Unsubscribed = true
				return p
			}(),
			eventType: db.EventEmergencyAlert,
			want:      false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, reason := ShouldNotify(tt.prefs, tt.eventType)
			assert.Equal(t, tt.want, got)
			assert.NotEmpty(t, reason)
		})
	}
}

func TestInQuietHours(t *testing.T) {
	at := func(hour, min int) time.Time {
		return time.Date(2026, 6, 9, hour, min, 0, 0, time.UTC)
	}

	tests := []struct {
		name  string
		start string
		end   string
		now   time.Time
		quiet bool
	}{
		{name: "no window configured", start: "", end: "", now: at(23, 0), quiet: false},
		{name: "overnight window late evening", start: "21:00", end: "07:00", now: at(23, 0), quiet: true},
		{name: "overnight window early morning", start: "21:00", end: "07:00", now: at(3, 0), quiet: true},
		{name: "overnight window daytime", start: "21:00", end: "07:00", now: at(12, 0), quiet: false},
		{name: "start is inclusive", start: "21:00", end: "07:00", now: at(21, 0), quiet: true},
		{name: "end is exclusive", start: "21:00", end: "07:00", now: at(7, 0), quiet: false},
		{name: "same day window", start: "12:00", end: "14:00", now: at(13, 0), quiet: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			quiet, resumeAt := InQuietHours(tt.start, tt.end, "UTC", tt.now)
			assert.Equal(t, tt.quiet, quiet)
			if quiet {
				assert.True(t, resumeAt.After(tt.now), "resume time must be in the future")
			}
		})
	}
}

func TestInQuietHours_ResumeTime(t *testing.T) {
	// 23:00 inside a 21:00-07:00 window resumes tomorrow 07:00
	now := time.Date(2026, 6, 9, 23, 0, 0, 0, time.UTC)
	quiet, resumeAt := InQuietHours("21:00", "07:00", "UTC", now)
	assert.True(t, quiet)
	assert.Equal(t, time.Date(2026, 6, 10, 7, 0, 0, 0, time.UTC), resumeAt)

	// 03:00 resumes the same day at 07:00
	now = time.Date(2026, 6, 9, 3, 0, 0, 0, time.UTC)
	quiet, resumeAt = InQuietHours("21:00", "07:00", "UTC", now)
	assert.True(t, quiet)
	assert.Equal(t, time.Date(2026, 6, 9, 7, 0, 0, 0, time.UTC), resumeAt)
}

func TestSimilarity(t *testing.T) {
	// same alert rendered with different times must read as a duplicate
	a := "Missed call: Dana Smith +15551234567. Reply 1-9 to snooze, or TOMORROW 9AM to book."
	b := "Missed call: Dana Smith +15551234567. Reply 1-9 to snooze, or 2:30PM to book."
	assert.Greater(t, Similarity(a, b), 0.8)

	// unrelated messages must not
	c := "Job update for Pat Jones: technician delayed by traffic."
	assert.Less(t, Similarity(a, c), 0.8)

	assert.Equal(t, 1.0, Similarity("", ""))
}

func TestNormalizeBody(t *testing.T) {
	got := normalizeBody("Booked: Dana, Tue 2:30 PM on 6/15!")
	assert.NotContains(t, got, "2:30")
	assert.NotContains(t, got, "6/15")
	assert.NotContains(t, got, "!")
	assert.Contains(t, got, "booked")
}

func TestRetryConfig(t *testing.T) {
	// critical: 30s, 1m, 5m, 15m, 30m then stop
	delay, ok := RetryConfig(db.TierCritical, 1)
	assert.True(t, ok)
	assert.Equal(t, 30*time.Second, delay)
	delay, ok = RetryConfig(db.TierCritical, 5)
	assert.True(t, ok)
	assert.Equal(t, 30*time.Minute, delay)
	_, ok = RetryConfig(db.TierCritical, 6)
	assert.False(t, ok)

	// standard: 1m, 5m, 15m then stop
	delay, ok = RetryConfig(db.TierStandard, 3)
	assert.True(t, ok)
	assert.Equal(t, 15*time.Minute, delay)
	_, ok = RetryConfig(db.TierStandard, 4)
	assert.False(t, ok)

	// bulk never retries
	_, ok = RetryConfig(db.TierBulk, 1)
	assert.False(t, ok)
}

func TestTierFor(t *testing.T) {
	assert.Equal(t, db.TierCritical, TierFor(db.EventAbandonedCall))
	assert.Equal(t, db.TierCritical, TierFor(db.EventEmergencyAlert))
	assert.Equal(t, db.TierStandard, TierFor(db.EventMissedCall))
	assert.Equal(t, db.TierBulk, TierFor(db.EventLeadFollowup))
}

func TestRenderTemplate_FitsOneSegment(t *testing.T) {
	scheduled := time.Date(2026, 6, 15, 14, 30, 0, 0, time.UTC)
	params := TemplateParams{
		CallerName:  "Alexandra Featherstonehaugh-Bridgewater",
		CallerPhone: "+15551234567",
		Summary:     "burst pipe flooding the basement, needs someone out immediately, water everywhere",
		ScheduledAt: &scheduled,
	}

	for _, eventType := range []string{
		db.EventMissedCall, db.EventAbandonedCall, db.EventSameDayBooking,
		db.EventBookingCreated, db.EventJobUpdate, db.EventStaleJobAlert,
		db.EventLeadFollowup, db.EventEmergencyAlert,
	} {
		body := RenderTemplate(eventType, params)
		assert.LessOrEqual(t, len(body), maxSmsLength, "template %s over one segment", eventType)
		assert.NotEmpty(t, body)
	}
}

func TestCheckDuplicate(t *testing.T) {
	mockDB, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer mockDB.Close()

	s := &NotificationService{PG: mockDB}

	// a prior send inside the window reports the second as duplicate
	mock.ExpectQuery("SELECT provider_message_id, created_at").
		WithArgs("+15559990000", "lead-1", db.EventMissedCall, "1800 seconds").
		WillReturnRows(sqlmock.NewRows([]string{"provider_message_id", "created_at"}).
			AddRow("SM123", time.Now().Add(-10*time.Minute)))

	dup, priorID, elapsed := s.CheckDuplicate("+15559990000", "lead-1", db.EventMissedCall, dedupWindow)
	assert.True(t, dup)
	assert.Equal(t, "SM123", priorID)
	assert.Greater(t, elapsed, time.Duration(0))

	// nothing prior means the send goes through
	mock.ExpectQuery("SELECT provider_message_id, created_at").
		WithArgs("+15559990000", "lead-1", db.EventMissedCall, "1800 seconds").
		WillReturnRows(sqlmock.NewRows([]string{"provider_message_id", "created_at"}))

	dup, priorID, _ = s.CheckDuplicate("+15559990000", "lead-1", db.EventMissedCall, dedupWindow)
	assert.False(t, dup)
	assert.Empty(t, priorID)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNotify_QuietHoursQueuesUntilWindowEnd(t *testing.T) {
	mockDB, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer mockDB.Close()

	// 22:00 inside a 21:00-07:00 window
	at := time.Date(2026, 6, 9, 22, 0, 0, 0, time.UTC)
	sender := &stubSender{id: "msg-1"}
	s := &NotificationService{
		PG:     mockDB,
		Sender: sender,
		Users:  NewUserService(mockDB),
		clock:  func() time.Time { return at },
	}

	prefRows := sqlmock.NewRows([]string{
		"user_id", "org_id", "missed_call", "abandoned_call", "same_day_booking",
		"job_update", "stale_job_alert", "lead_followup",
		"quiet_hours_start", "quiet_hours_end", "timezone", "unsubscribed", "updated_at",
	}).AddRow("user-1", "org-1", true, true, true, true, true, true,
		"21:00", "07:00", "UTC", false, time.Now())
	mock.ExpectQuery("SELECT user_id, org_id, missed_call").
		WithArgs("user-1").WillReturnRows(prefRows)

	// nothing similar was sent recently
	mock.ExpectQuery("SELECT body FROM sms_logs").
		WillReturnRows(sqlmock.NewRows([]string{"body"}))

	body := "Same-day booking: Dana at Tue 4:00 PM. Reply with a new time to move it."
	mock.ExpectExec("INSERT INTO notification_queue").
		WithArgs(sqlmock.AnyArg(), "org-1", "user-1", nil, db.EventSameDayBooking,
			body, false, time.Date(2026, 6, 10, 7, 0, 0, 0, time.UTC)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err = s.Notify(context.Background(), Notification{
		UserID:    "user-1",
		OrgID:     "org-1",
		Phone:     "+15559990000",
		EventType: db.EventSameDayBooking,
		Body:      body,
	})
	assert.NoError(t, err)
	assert.Equal(t, 0, sender.calls, "quiet hours must queue, not send")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFlushDueQueue_RecordsAlertContext(t *testing.T) {
	mockDB, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer mockDB.Close()

	sender := &stubSender{id: "msg-1"}
	s := &NotificationService{PG: mockDB, Sender: sender}

	rows := sqlmock.NewRows([]string{
		"id", "org_id", "user_id", "lead_id", "event_type", "body", "urgent", "phone",
	}).AddRow("q-1", "org-1", "user-1", "lead-1", db.EventMissedCall,
		"Missed call: Dana +15551230000.", false, "+15559990000")
	mock.ExpectQuery("SELECT q.id, q.org_id").WillReturnRows(rows)

	mock.ExpectExec("INSERT INTO sms_logs").WillReturnResult(sqlmock.NewResult(0, 1))
	// the flushed alert becomes the latest context so a short reply acts on it
	mock.ExpectExec("INSERT INTO sms_alert_contexts").
		WithArgs(sqlmock.AnyArg(), "org-1", "user-1", "+15559990000", "lead-1", nil,
			db.EventMissedCall, "msg-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE notification_queue").
		WithArgs(db.QueueStatusSent, "q-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	sent, err := s.FlushDueQueue(context.Background(), time.Now())
	assert.NoError(t, err)
	assert.Equal(t, 1, sent)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFlushDueQueue_SingleLeadSendsEachBody(t *testing.T) {
	mockDB, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer mockDB.Close()

	sender := &stubSender{id: "msg-1"}
	s := &NotificationService{PG: mockDB, Sender: sender}

	rows := sqlmock.NewRows([]string{
		"id", "org_id", "user_id", "lead_id", "event_type", "body", "urgent", "phone",
	}).AddRow("q-1", "org-1", "user-1", "lead-1", db.EventMissedCall,
		"Missed call: Dana +15551230000.", false, "+15559990000").
		AddRow("q-2", "org-1", "user-1", "lead-1", db.EventLeadFollowup,
			"Follow up: Dana +15551230000 is waiting on a callback.", false, "+15559990000")
	mock.ExpectQuery("SELECT q.id, q.org_id").WillReturnRows(rows)

	for _, id := range []string{"q-1", "q-2"} {
		mock.ExpectExec("INSERT INTO sms_logs").WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec("INSERT INTO sms_alert_contexts").WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec("UPDATE notification_queue").
			WithArgs(db.QueueStatusSent, id).
			WillReturnResult(sqlmock.NewResult(0, 1))
	}

	sent, err := s.FlushDueQueue(context.Background(), time.Now())
	assert.NoError(t, err)
	assert.Equal(t, 2, sent)
	assert.Equal(t, 2, sender.calls, "both deferred bodies must go out")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFlushDueQueue_ConsolidatesMultipleLeads(t *testing.T) {
	mockDB, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer mockDB.Close()

	sender := &stubSender{id: "msg-1"}
	s := &NotificationService{PG: mockDB, Sender: sender}

	rows := sqlmock.NewRows([]string{
		"id", "org_id", "user_id", "lead_id", "event_type", "body", "urgent", "phone",
	}).AddRow("q-1", "org-1", "user-1", "lead-1", db.EventMissedCall,
		"Missed call: Dana +15551230000.", false, "+15559990000").
		AddRow("q-2", "org-1", "user-1", "lead-2", db.EventAbandonedCall,
			"URGENT: Pat +15554440000 hung up before booking.", true, "+15559990000")
	mock.ExpectQuery("SELECT q.id, q.org_id").WillReturnRows(rows)

	mock.ExpectExec("INSERT INTO sms_logs").WillReturnResult(sqlmock.NewResult(0, 1))
	// the summary spans leads, so the context row carries none
	mock.ExpectExec("INSERT INTO sms_alert_contexts").
		WithArgs(sqlmock.AnyArg(), "org-1", "user-1", "+15559990000", nil, nil,
			db.EventMissedCall, "msg-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE notification_queue").
		WithArgs(db.QueueStatusSent, "q-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE notification_queue").
		WithArgs(db.QueueStatusSent, "q-2").
		WillReturnResult(sqlmock.NewResult(0, 1))

	sent, err := s.FlushDueQueue(context.Background(), time.Now())
	assert.NoError(t, err)
	assert.Equal(t, 1, sent)
	assert.Equal(t, 1, sender.calls)
	assert.Contains(t, sender.bodies[0], "2 new leads (1 urgent)")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProcessRetries_RecordsAlertContext(t *testing.T) {
	mockDB, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer mockDB.Close()

	sender := &stubSender{id: "msg-2"}
	s := &NotificationService{PG: mockDB, Sender: sender}

	mock.ExpectBegin()
	rows := sqlmock.NewRows([]string{
		"id", "org_id", "user_id", "lead_id", "phone", "body", "event_type", "tier", "attempt",
	}).AddRow("r-1", "org-1", "user-1", "lead-1", "+15559990000",
		"Missed call: Dana +15551230000.", db.EventMissedCall, db.TierStandard, 1)
	mock.ExpectQuery("SELECT id, org_id, user_id, lead_id").WillReturnRows(rows)

	mock.ExpectExec("UPDATE notification_retries SET status = 'sent'").
		WithArgs("r-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO sms_logs").WillReturnResult(sqlmock.NewResult(0, 1))
	// redelivery keeps the lead binding for short-reply resolution
	mock.ExpectExec("INSERT INTO sms_alert_contexts").
		WithArgs(sqlmock.AnyArg(), "org-1", "user-1", "+15559990000", "lead-1", nil,
			db.EventMissedCall, "msg-2").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	sent, err := s.ProcessRetries(context.Background(), time.Now())
	assert.NoError(t, err)
	assert.Equal(t, 1, sent)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEscalateStaleAlerts(t *testing.T) {
	mockDB, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer mockDB.Close()

	s := &NotificationService{PG: mockDB, Leads: NewLeadService(mockDB)}
	now := time.Now()

	rows := sqlmock.NewRows([]string{"lead_id", "org_id"}).
		AddRow("lead-1", "org-1").
		AddRow("lead-2", "org-1")
	mock.ExpectQuery("SELECT DISTINCT c.lead_id").WillReturnRows(rows)

	mock.ExpectExec("UPDATE leads").
		WithArgs(db.LeadPriorityRed, "no response after 2 hours", "lead-1", "org-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE leads").
		WithArgs(db.LeadPriorityRed, "no response after 2 hours", "lead-2", "org-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	escalated, err := s.EscalateStaleAlerts(now)
	assert.NoError(t, err)
	assert.Equal(t, 2, escalated)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEscalateStaleAlerts_NothingDue(t *testing.T) {
	mockDB, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer mockDB.Close()

	s := &NotificationService{PG: mockDB, Leads: NewLeadService(mockDB)}

	mock.ExpectQuery("SELECT DISTINCT c.lead_id").
		WillReturnRows(sqlmock.NewRows([]string{"lead_id", "org_id"}))

	escalated, err := s.EscalateStaleAlerts(time.Now())
	assert.NoError(t, err)
	assert.Equal(t, 0, escalated)
	assert.NoError(t, mock.ExpectationsWereMet())
}
