package services

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"

	"github.com/callrescue/callrescue/db"
)

func TestFindHandler_PriorityOrder(t *testing.T) {
	s := &CommandService{registry: buildRegistry()}

	tests := []struct {
		body string
		want string
	}{
		{body: "STOP", want: "subscription"},
		{body: "START", want: "subscription"},
		{body: "HELP", want: "help"},
		{body: "SNOOZE 3H", want: "snooze"},
		{body: "SNOOZE", want: "snooze"},
		{body: "3", want: "quick_digit"},
		{body: "NOTE CUSTOMER WANTS A QUOTE", want: "note"},
		{body: "WON", want: "status"},
		{body: "LOST", want: "status"},
		{body: "CALLED", want: "status"},
		{body: "TOMORROW 9AM", want: "booking"},
		{body: "ANYTHING ELSE", want: "booking"},
	}

	for _, tt := range tests {
		t.Run(tt.body, func(t *testing.T) {
			cmd := s.FindHandler(tt.body)
			assert.NotNil(t, cmd)
			assert.Equal(t, tt.want, cmd.Name)
		})
	}
}

func TestFindHandler_SpecificBeatsCatchAll(t *testing.T) {
	s := &CommandService{registry: buildRegistry()}

	// "1" parses as a valid time expression too; the quick-digit handler
	// must win on priority.
	cmd := s.FindHandler("1")
	assert.NotNil(t, cmd)
	assert.Equal(t, "quick_digit", cmd.Name)
}

func TestDispatch_ContainsPanics(t *testing.T) {
	s := &CommandService{}
	cmd := &Command{
		Name: "exploding",
		Execute: func(c *CommandContext) (CommandResult, error) {
			panic("boom")
		},
	}

	result := s.dispatch(cmd, &CommandContext{})
	assert.False(t, result.Success)
	assert.Equal(t, genericFailureReply, result.Message)
}

func TestDispatch_ErrorsBecomeGenericFailure(t *testing.T) {
	s := &CommandService{}
	cmd := &Command{
		Name: "failing",
		Execute: func(c *CommandContext) (CommandResult, error) {
			return CommandResult{}, fmt.Errorf("db unreachable")
		},
	}

	result := s.dispatch(cmd, &CommandContext{})
	assert.False(t, result.Success)
	assert.Equal(t, genericFailureReply, result.Message)
}

// Full inbound path: SNOOZE TOMORROW PM against the latest alert context
// sets remind_at to tomorrow 14:00, appends the audit note and confirms.
func TestHandleInbound_SnoozeTomorrowPm(t *testing.T) {
	mockDB, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer mockDB.Close()

	now := time.Now()

	userRows := sqlmock.NewRows([]string{
		"id", "org_id", "name", "email", "phone", "role", "fcm_token",
		"is_active", "created_at", "updated_at",
	}).AddRow("user-1", "org-1", "Sam", "sam@example.com", "+15559990000",
		"operator", nil, true, now, now)
	mock.ExpectQuery("SELECT id, org_id, name, email, phone").
		WithArgs("+15559990000").WillReturnRows(userRows)

	mock.ExpectExec("INSERT INTO sms_logs").WillReturnResult(sqlmock.NewResult(0, 1))

	// no saved preferences, the default timezone applies
	mock.ExpectQuery("SELECT user_id, org_id, missed_call").
		WithArgs("user-1").
		WillReturnRows(sqlmock.NewRows([]string{"user_id"}))

	ctxRows := sqlmock.NewRows([]string{
		"id", "org_id", "user_id", "phone", "lead_id", "job_id",
		"event_type", "message_id", "replied_at", "created_at",
	}).AddRow("ctx-1", "org-1", "user-1", "+15559990000", "lead-1", nil,
		db.EventMissedCall, "msg-1", nil, now)
	mock.ExpectQuery("SELECT id, org_id, user_id, phone").WillReturnRows(ctxRows)
	mock.ExpectExec("UPDATE sms_alert_contexts SET replied_at").
		WithArgs("ctx-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	leadRows := sqlmock.NewRows([]string{
		"id", "org_id", "name", "phone", "status", "priority", "priority_reason",
		"remind_at", "callback_outcome", "source", "created_at", "updated_at",
	}).AddRow("lead-1", "org-1", "Dana", "+15551230000",
		db.LeadStatusCallbackRequested, "green", nil, nil, nil, "voice-ai", now, now)
	mock.ExpectQuery("SELECT id, org_id, name, phone, status").
		WithArgs("lead-1", "org-1").WillReturnRows(leadRows)

	mock.ExpectExec("UPDATE leads").
		WithArgs(sqlmock.AnyArg(), "snoozed", "lead-1", "org-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO lead_notes").
		WithArgs(sqlmock.AnyArg(), "lead-1", "Snoozed until Tomorrow at 2:00 PM", "sms", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	s := NewCommandService(mockDB, &NotificationService{PG: mockDB})
	reply := s.HandleInbound(context.Background(), "+15559990000", "SNOOZE TOMORROW PM")

	assert.Equal(t, "Got it. Dana snoozed until Tomorrow at 2:00 PM.", reply)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRegistry_SortedByPriority(t *testing.T) {
	registry := buildRegistry()
	for i := 1; i < len(registry); i++ {
		assert.LessOrEqual(t, registry[i-1].Priority, registry[i].Priority,
			"registry out of order at %s", registry[i].Name)
	}
	// the catch-all must be last
	assert.Equal(t, "booking", registry[len(registry)-1].Name)
}
