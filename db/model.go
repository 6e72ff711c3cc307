package db

import "time"

// ===========================
// LEAD MODELS
// ===========================

// Lead statuses. converted and lost are terminal: a lead in either state is
// excluded from every active view regardless of remind_at.
const (
	LeadStatusCallbackRequested = "callback_requested"
	LeadStatusThinking          = "thinking"
	LeadStatusVoicemailLeft     = "voicemail_left"
	LeadStatusConverted         = "converted"
	LeadStatusLost              = "lost"
	LeadStatusAbandoned         = "abandoned"
	LeadStatusSalesOpportunity  = "sales_opportunity"
	LeadStatusEmergency         = "emergency"
)

// Lead priority colors used by the dashboard priority views.
const (
	LeadPriorityRed   = "red"
	LeadPriorityGreen = "green"
	LeadPriorityBlue  = "blue"
	LeadPriorityGray  = "gray"
)

// IsTerminalLeadStatus reports whether a lead status ends the lifecycle.
func IsTerminalLeadStatus(status string) bool {
	return status == LeadStatusConverted || status == LeadStatusLost
}

// Lead represents a potential customer contact not yet converted to a job.
// Created when an inbound call is classified; mutated by SMS commands
// (status, snooze, notes) or dashboard actions.
type Lead struct {
	ID              string     `json:"id"`
	OrgID           string     `json:"org_id"`
	Name            string     `json:"name"`
	Phone           string     `json:"phone"`
	Status          string     `json:"status"`
	Priority        string     `json:"priority"` // red, green, blue, gray
	PriorityReason  string     `json:"priority_reason,omitempty"`
	RemindAt        *time.Time `json:"remind_at,omitempty"` // snooze target
	CallbackOutcome string     `json:"callback_outcome,omitempty"`
	Source          string     `json:"source,omitempty"` // voice-ai, manual, webform
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// LeadNote is an append-only audit note on a lead.
type LeadNote struct {
	ID        string    `json:"id"`
	LeadID    string    `json:"lead_id"`
	Body      string    `json:"body"`
	Author    string    `json:"author"` // user id, or "sms" for inbound commands
	CreatedAt time.Time `json:"created_at"`
}

type CreateLeadRequest struct {
	Name   string `json:"name"`
	Phone  string `json:"phone" binding:"required"`
	Status string `json:"status"`
	Source string `json:"source"`
}

type UpdateLeadRequest struct {
	Name            *string `json:"name,omitempty"`
	Status          *string `json:"status,omitempty"`
	Priority        *string `json:"priority,omitempty"`
	PriorityReason  *string `json:"priority_reason,omitempty"`
	CallbackOutcome *string `json:"callback_outcome,omitempty"`
}

// ===========================
// JOB MODELS
// ===========================

// Job statuses. Transitions follow
// new -> confirmed -> en_route -> on_site -> complete, with cancelled
// reachable from any non-terminal state.
const (
	JobStatusNew       = "new"
	JobStatusConfirmed = "confirmed"
	JobStatusEnRoute   = "en_route"
	JobStatusOnSite    = "on_site"
	JobStatusComplete  = "complete"
	JobStatusCancelled = "cancelled"
)

// JobStatusTransitions maps each status to the statuses it may move to.
var JobStatusTransitions = map[string][]string{
	JobStatusNew:       {JobStatusConfirmed, JobStatusCancelled},
	JobStatusConfirmed: {JobStatusEnRoute, JobStatusCancelled},
	JobStatusEnRoute:   {JobStatusOnSite, JobStatusCancelled},
	JobStatusOnSite:    {JobStatusComplete, JobStatusCancelled},
}

// Job represents a scheduled service appointment.
type Job struct {
	ID           string     `json:"id"`
	OrgID        string     `json:"org_id"`
	LeadID       string     `json:"lead_id,omitempty"`
	CustomerName string     `json:"customer_name"`
	Phone        string     `json:"phone"`
	Status       string     `json:"status"`
	ScheduledAt  *time.Time `json:"scheduled_at,omitempty"`
	NeedsAction  bool       `json:"needs_action"`
	Notes        string     `json:"notes,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

type CreateJobRequest struct {
	LeadID       string     `json:"lead_id,omitempty"`
	CustomerName string     `json:"customer_name" binding:"required"`
	Phone        string     `json:"phone" binding:"required"`
	ScheduledAt  *time.Time `json:"scheduled_at,omitempty"`
	Notes        string     `json:"notes,omitempty"`
}

type UpdateJobRequest struct {
	CustomerName *string    `json:"customer_name,omitempty"`
	ScheduledAt  *time.Time `json:"scheduled_at,omitempty"`
	NeedsAction  *bool      `json:"needs_action,omitempty"`
	Notes        *string    `json:"notes,omitempty"`
}

type JobStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// ===========================
// SMS / NOTIFICATION MODELS
// ===========================

// SMS directions and delivery statuses for the audit log.
const (
	SmsDirectionInbound  = "inbound"
	SmsDirectionOutbound = "outbound"

	SmsStatusReceived = "received"
	SmsStatusSent     = "sent"
	SmsStatusFailed   = "failed"
)

// Notification event types. Critical events bypass per-event preference
// toggles but are still blocked by the global unsubscribe flag.
const (
	EventMissedCall     = "missed_call"
	EventAbandonedCall  = "abandoned_call"
	EventSameDayBooking = "same_day_booking"
	EventBookingCreated = "booking_created"
	EventJobUpdate      = "job_update"
	EventStaleJobAlert  = "stale_job_alert"
	EventLeadFollowup   = "lead_followup"
	EventEmergencyAlert = "emergency_alert"
)

// IsCriticalEvent reports whether the event type skips preference toggles.
func IsCriticalEvent(eventType string) bool {
	switch eventType {
	case EventAbandonedCall, EventStaleJobAlert, EventEmergencyAlert:
		return true
	}
	return false
}

// SmsLogEntry is an immutable audit record of one inbound or outbound
// message. Append-only.
type SmsLogEntry struct {
	ID                string    `json:"id"`
	OrgID             string    `json:"org_id"`
	Direction         string    `json:"direction"` // inbound, outbound
	FromPhone         string    `json:"from_phone"`
	ToPhone           string    `json:"to_phone"`
	Body              string    `json:"body"`
	Status            string    `json:"status"` // received, sent, failed
	LeadID            string    `json:"lead_id,omitempty"`
	JobID             string    `json:"job_id,omitempty"`
	EventType         string    `json:"event_type,omitempty"`
	ProviderMessageID string    `json:"provider_message_id,omitempty"`
	ErrorMessage      string    `json:"error_message,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
}

// Queue entry statuses: queued -> sent | failed (terminal).
const (
	QueueStatusQueued = "queued"
	QueueStatusSent   = "sent"
	QueueStatusFailed = "failed"
)

// NotificationQueueEntry is a deferred outbound message awaiting its
// send_at time (quiet hours or batching).
type NotificationQueueEntry struct {
	ID        string    `json:"id"`
	OrgID     string    `json:"org_id"`
	UserID    string    `json:"user_id"`
	LeadID    string    `json:"lead_id,omitempty"`
	EventType string    `json:"event_type"`
	Body      string    `json:"body"`
	Urgent    bool      `json:"urgent"`
	SendAt    time.Time `json:"send_at"`
	Status    string    `json:"status"` // queued, sent, failed
	CreatedAt time.Time `json:"created_at"`
}

// SmsAlertContext records the most recent alert sent to an operator phone.
// The inbound handler resolves short replies ("1", "SNOOZE 1H") against the
// latest row for the sender's phone; replied_at is stamped when a reply
// arrives and is what the escalation sweep checks.
type SmsAlertContext struct {
	ID        string     `json:"id"`
	OrgID     string     `json:"org_id"`
	UserID    string     `json:"user_id"`
	Phone     string     `json:"phone"`
	LeadID    string     `json:"lead_id,omitempty"`
	JobID     string     `json:"job_id,omitempty"`
	EventType string     `json:"event_type"`
	MessageID string     `json:"message_id,omitempty"`
	RepliedAt *time.Time `json:"replied_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// NotificationPreferences holds per-user toggles for each event type, the
// quiet-hours window and the global unsubscribe flag. Singleton per user,
// upserted.
type NotificationPreferences struct {
	UserID          string    `json:"user_id"`
	OrgID           string    `json:"org_id"`
	MissedCall      bool      `json:"missed_call"`
	AbandonedCall   bool      `json:"abandoned_call"`
	SameDayBooking  bool      `json:"same_day_booking"`
	JobUpdate       bool      `json:"job_update"`
	StaleJobAlert   bool      `json:"stale_job_alert"`
	LeadFollowup    bool      `json:"lead_followup"`
	QuietHoursStart string    `json:"quiet_hours_start,omitempty"` // "21:00"
	QuietHoursEnd   string    `json:"quiet_hours_end,omitempty"`   // "07:00"
	Timezone        string    `json:"timezone,omitempty"`
	Unsubscribed    bool      `json:"unsubscribed"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// DefaultPreferences returns the preferences applied to a user who has
// never saved any: every event type on, no quiet hours, subscribed.
func DefaultPreferences(userID, orgID string) NotificationPreferences {
	return NotificationPreferences{
		UserID:         userID,
		OrgID:          orgID,
		MissedCall:     true,
		AbandonedCall:  true,
		SameDayBooking: true,
		JobUpdate:      true,
		StaleJobAlert:  true,
		LeadFollowup:   true,
	}
}

// Retry statuses: pending -> sent | failed (terminal). Attempt increments
// across insert cycles driven by the sweep, not by the row itself.
const (
	RetryStatusPending = "pending"
	RetryStatusSent    = "sent"
	RetryStatusFailed  = "failed"
)

// Notification tiers governing retry policy.
const (
	TierCritical = "critical"
	TierStandard = "standard"
	TierBulk     = "bulk"
)

// NotificationRetry is one pending redelivery of a failed outbound message.
type NotificationRetry struct {
	ID        string    `json:"id"`
	OrgID     string    `json:"org_id"`
	UserID    string    `json:"user_id"`
	LeadID    string    `json:"lead_id,omitempty"`
	Phone     string    `json:"phone"`
	Body      string    `json:"body"`
	EventType string    `json:"event_type"`
	Tier      string    `json:"tier"`
	Attempt   int       `json:"attempt"`
	RetryAt   time.Time `json:"retry_at"`
	Status    string    `json:"status"` // pending, sent, failed
	CreatedAt time.Time `json:"created_at"`
}

// ===========================
// USER / AUTH MODELS
// ===========================

type User struct {
	ID        string    `json:"id"`
	OrgID     string    `json:"org_id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone,omitempty"`
	Role      string    `json:"role"` // owner, operator
	FCMToken  string    `json:"fcm_token,omitempty"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// APIKey authenticates the cron-trigger and provider webhook surface.
// Only the bcrypt hash is stored; the raw key is shown once at creation.
type APIKey struct {
	ID         string     `json:"id"`
	OrgID      string     `json:"org_id"`
	UserID     string     `json:"user_id"`
	Name       string     `json:"name"`
	KeyHash    string     `json:"-"`
	IsActive   bool       `json:"is_active"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// ===========================
// WEBHOOK PAYLOADS
// ===========================

// InboundSmsRequest is the payload of the inbound SMS webhook.
type InboundSmsRequest struct {
	From string `json:"from" binding:"required"`
	Body string `json:"body" binding:"required"`
}

// VoiceEventRequest is the payload the voice-AI backend posts when it
// finishes classifying a call.
type VoiceEventRequest struct {
	EventType    string `json:"event_type" binding:"required"` // missed_call, abandoned_call, emergency, booking_request
	CallerName   string `json:"caller_name"`
	CallerPhone  string `json:"caller_phone" binding:"required"`
	Summary      string `json:"summary,omitempty"`
	RecordingURL string `json:"recording_url,omitempty"`
}
