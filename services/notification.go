package services

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"regexp"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"

	"github.com/callrescue/callrescue/db"
)

// How long an outbound body stays relevant for the content-similarity
// duplicate check, and how long an unanswered alert may sit before the
// lead gets flagged.
const (
	similarityWindow    = 30 * time.Minute
	similarityThreshold = 0.8
	dedupWindow         = 30 * time.Minute
	escalationAge       = 2 * time.Hour
	maxSmsLength        = 160
)

// NotificationService is the outbound policy engine: preference gates,
// quiet hours, duplicate suppression, delivery, retries and the stale-alert
// escalation sweep.
type NotificationService struct {
	PG     *sql.DB
	Redis  *redis.Client // nil disables the redis body cache, SQL fallback applies
	Sender Sender
	Push   *PushService // nil disables push
	Users  *UserService
	Leads  *LeadService

	clock func() time.Time // nil means time.Now
}

func NewNotificationService(pg *sql.DB, rdb *redis.Client, sender Sender, push *PushService) *NotificationService {
	return &NotificationService{
		PG:     pg,
		Redis:  rdb,
		Sender: sender,
		Push:   push,
		Users:  NewUserService(pg),
		Leads:  NewLeadService(pg),
	}
}

func (s *NotificationService) now() time.Time {
	if s.clock != nil {
		return s.clock()
	}
	return time.Now()
}

// Notification is one outbound message request entering the policy engine.
type Notification struct {
	UserID    string
	OrgID     string
	Phone     string // operator phone, E.164
	LeadID    string
	JobID     string
	EventType string
	Body      string
}

// ShouldNotify applies the preference gate. The global unsubscribe flag
// blocks everything including critical events; critical events bypass the
// per-event toggles; otherwise the toggle for the event type decides.
func ShouldNotify(prefs db.NotificationPreferences, eventType string) (bool, string) {
	if prefs.Unsubscribed {
		return false, "user unsubscribed"
	}
	if db.IsCriticalEvent(eventType) {
		return true, "critical event"
	}

	enabled := true
	switch eventType {
	case db.EventMissedCall:
		enabled = prefs.MissedCall
	case db.EventSameDayBooking, db.EventBookingCreated:
		enabled = prefs.SameDayBooking
	case db.EventJobUpdate:
		enabled = prefs.JobUpdate
	case db.EventLeadFollowup:
		enabled = prefs.LeadFollowup
	}
	if !enabled {
		return false, fmt.Sprintf("%s notifications disabled", eventType)
	}
	return true, "enabled"
}

// InQuietHours evaluates an overnight-capable quiet window in the user's
// timezone. Start is inclusive, end exclusive. The returned time is when
// sending resumes: today's end, or tomorrow's if the end already passed.
func InQuietHours(start, end, tz string, now time.Time) (bool, time.Time) {
	if start == "" || end == "" {
		return false, time.Time{}
	}

	loc, err := time.LoadLocation(tz)
	if err != nil || tz == "" {
		loc = now.Location()
	}
	local := now.In(loc)

	startT, err1 := time.Parse("15:04", start)
	endT, err2 := time.Parse("15:04", end)
	if err1 != nil || err2 != nil {
		return false, time.Time{}
	}

	cur := local.Hour()*60 + local.Minute()
	s := startT.Hour()*60 + startT.Minute()
	e := endT.Hour()*60 + endT.Minute()

	var quiet bool
	if s > e { // overnight window, e.g. 21:00-07:00
		quiet = cur >= s || cur < e
	} else {
		quiet = cur >= s && cur < e
	}
	if !quiet {
		return false, time.Time{}
	}

	next := time.Date(local.Year(), local.Month(), local.Day(),
		endT.Hour(), endT.Minute(), 0, 0, loc)
	if !next.After(local) {
		next = next.AddDate(0, 0, 1)
	}
	return true, next
}

// Notify runs one message through the full policy chain and delivers it.
// Suppressions are logged and return nil; only infrastructure errors
// propagate.
func (s *NotificationService) Notify(ctx context.Context, n Notification) error {
	now := s.now()

	prefs, err := s.Users.GetPreferences(n.UserID, n.OrgID)
	if err != nil {
		return err
	}

	if ok, reason := ShouldNotify(prefs, n.EventType); !ok {
		log.Printf("Notification suppressed for user %s (%s): %s", n.UserID, n.EventType, reason)
		return nil
	}

	if n.LeadID != "" {
		if dup, priorID, elapsed := s.CheckDuplicate(n.Phone, n.LeadID, n.EventType, dedupWindow); dup {
			log.Printf("Duplicate notification suppressed for lead %s (%s sent %s ago, id %s)",
				n.LeadID, n.EventType, elapsed.Round(time.Second), priorID)
			return nil
		}
	}
	if s.isSimilarToRecent(ctx, n.Phone, n.Body, now) {
		log.Printf("Near-duplicate notification suppressed for %s (%s)", n.Phone, n.EventType)
		return nil
	}

	if quiet, resumeAt := InQuietHours(prefs.QuietHoursStart, prefs.QuietHoursEnd, prefs.Timezone, now); quiet {
		if !db.IsCriticalEvent(n.EventType) {
			log.Printf("Quiet hours for user %s, queueing %s until %s", n.UserID, n.EventType, resumeAt)
			return s.enqueue(n, resumeAt)
		}
		// critical events cut through quiet hours
	}

	return s.deliver(ctx, n, now)
}

// deliver sends the SMS, records the audit log and alert context on
// success, and schedules a tiered retry on failure.
func (s *NotificationService) deliver(ctx context.Context, n Notification, now time.Time) error {
	messageID, err := s.Sender.Send(ctx, n.Phone, n.Body)
	if err != nil || messageID == "" {
		errMsg := "gateway returned empty message id"
		if err != nil {
			errMsg = err.Error()
		}
		log.Printf("SMS delivery failed to %s (%s): %s", n.Phone, n.EventType, errMsg)
		s.logSms(n, db.SmsStatusFailed, "", errMsg)
		s.scheduleRetry(n, TierFor(n.EventType), 1, now)
		return nil
	}

	s.logSms(n, db.SmsStatusSent, messageID, "")
	s.recordAlertContext(n, messageID)
	s.cacheRecentBody(ctx, n.Phone, n.Body)

	if n.EventType == db.EventEmergencyAlert && s.Push != nil {
		if err := s.Push.SendEmergencyPush(ctx, n.UserID, "Emergency call", n.Body,
			map[string]string{"lead_id": n.LeadID, "event_type": n.EventType}); err != nil {
			log.Printf("Emergency push failed for user %s: %v", n.UserID, err)
		}
	}

	return nil
}

// CheckDuplicate looks for an already-sent outbound message for the same
// phone, lead and event type inside the window.
func (s *NotificationService) CheckDuplicate(phone, leadID, eventType string, window time.Duration) (bool, string, time.Duration) {
	var providerID sql.NullString
	var createdAt time.Time
	err := s.PG.QueryRow(`
		SELECT provider_message_id, created_at
		FROM sms_logs
		WHERE to_phone = $1 AND lead_id = $2 AND event_type = $3
		  AND direction = 'outbound' AND status = 'sent'
		  AND created_at > NOW() - $4::interval
		ORDER BY created_at DESC
		LIMIT 1
	`, phone, leadID, eventType, fmt.Sprintf("%d seconds", int(window.Seconds()))).Scan(&providerID, &createdAt)
	if err != nil {
		if err != sql.ErrNoRows {
			log.Printf("Duplicate check failed, allowing send: %v", err)
		}
		return false, "", 0
	}
	return true, providerID.String, time.Since(createdAt)
}

var (
	normTimeRe  = regexp.MustCompile(`\b\d{1,2}:\d{2}\s*(?:am|pm)?\b|\b\d{1,2}\s*(?:am|pm)\b`)
	normDateRe  = regexp.MustCompile(`\b\d{1,2}[/-]\d{1,2}(?:[/-]\d{2,4})?\b`)
	normPunctRe = regexp.MustCompile(`[^\w\s]`)
)

// normalizeBody strips the volatile parts of a message (times, dates,
// punctuation, case) so two renderings of the same alert compare equal.
func normalizeBody(body string) string {
	b := strings.ToLower(body)
	b = normTimeRe.ReplaceAllString(b, " ")
	b = normDateRe.ReplaceAllString(b, " ")
	b = normPunctRe.ReplaceAllString(b, " ")
	return strings.Join(strings.Fields(b), " ")
}

// Similarity is the Jaccard index over the normalized word sets of two
// message bodies.
func Similarity(a, b string) float64 {
	wa := strings.Fields(normalizeBody(a))
	wb := strings.Fields(normalizeBody(b))
	if len(wa) == 0 && len(wb) == 0 {
		return 1
	}
	if len(wa) == 0 || len(wb) == 0 {
		return 0
	}

	setA := make(map[string]struct{}, len(wa))
	for _, w := range wa {
		setA[w] = struct{}{}
	}
	setB := make(map[string]struct{}, len(wb))
	for _, w := range wb {
		setB[w] = struct{}{}
	}

	intersection := 0
	for w := range setA {
		if _, ok := setB[w]; ok {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection
	return float64(intersection) / float64(union)
}

func recentBodyKey(phone string) string {
	return "recent_sms:" + phone
}

// isSimilarToRecent compares the candidate body against every outbound
// message to the phone in the last 30 minutes, regardless of event type.
// Redis holds the recent-body list; a dead redis falls back to sms_logs.
func (s *NotificationService) isSimilarToRecent(ctx context.Context, phone, body string, now time.Time) bool {
	for _, recent := range s.recentBodies(ctx, phone, now) {
		if Similarity(recent, body) > similarityThreshold {
			return true
		}
	}
	return false
}

func (s *NotificationService) recentBodies(ctx context.Context, phone string, now time.Time) []string {
	if s.Redis != nil {
		entries, err := s.Redis.LRange(ctx, recentBodyKey(phone), 0, -1).Result()
		if err == nil {
			bodies := []string{}
			for _, entry := range entries {
				// entries are "unixts|body"
				parts := strings.SplitN(entry, "|", 2)
				if len(parts) != 2 {
					continue
				}
				var ts int64
				if _, err := fmt.Sscanf(parts[0], "%d", &ts); err != nil {
					continue
				}
				if now.Sub(time.Unix(ts, 0)) <= similarityWindow {
					bodies = append(bodies, parts[1])
				}
			}
			return bodies
		}
		log.Printf("Redis recent-body lookup failed, falling back to SQL: %v", err)
	}

	rows, err := s.PG.Query(`
		SELECT body FROM sms_logs
		WHERE to_phone = $1 AND direction = 'outbound' AND status = 'sent'
		  AND created_at > NOW() - INTERVAL '30 minutes'
	`, phone)
	if err != nil {
		log.Printf("SQL recent-body lookup failed, allowing send: %v", err)
		return nil
	}
	defer rows.Close()

	bodies := []string{}
	for rows.Next() {
		var b string
		if err := rows.Scan(&b); err == nil {
			bodies = append(bodies, b)
		}
	}
	return bodies
}

func (s *NotificationService) cacheRecentBody(ctx context.Context, phone, body string) {
	if s.Redis == nil {
		return
	}
	key := recentBodyKey(phone)
	entry := fmt.Sprintf("%d|%s", time.Now().Unix(), body)
	pipe := s.Redis.Pipeline()
	pipe.LPush(ctx, key, entry)
	pipe.LTrim(ctx, key, 0, 49)
	pipe.Expire(ctx, key, similarityWindow)
	if _, err := pipe.Exec(ctx); err != nil {
		log.Printf("Failed to cache recent body for %s: %v", phone, err)
	}
}

// logSms appends an audit row for an outbound attempt.
func (s *NotificationService) logSms(n Notification, status, providerID, errMsg string) {
	_, err := s.PG.Exec(`
		INSERT INTO sms_logs (id, org_id, direction, from_phone, to_phone, body,
		                      status, lead_id, job_id, event_type, provider_message_id,
		                      error_message, created_at)
		VALUES ($1, $2, 'outbound', $3, $4, $5, $6, $7, $8, $9, $10, $11, NOW())
	`, uuid.New().String(), n.OrgID, "", n.Phone, n.Body, status,
		nullIfEmptyStr(n.LeadID), nullIfEmptyStr(n.JobID), n.EventType,
		nullIfEmptyStr(providerID), nullIfEmptyStr(errMsg))
	if err != nil {
		log.Printf("Failed to write sms log: %v", err)
	}
}

// recordAlertContext makes this message the latest context for the phone so
// short replies resolve against it.
func (s *NotificationService) recordAlertContext(n Notification, messageID string) {
	_, err := s.PG.Exec(`
		INSERT INTO sms_alert_contexts (id, org_id, user_id, phone, lead_id, job_id,
		                                event_type, message_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())
	`, uuid.New().String(), n.OrgID, n.UserID, n.Phone,
		nullIfEmptyStr(n.LeadID), nullIfEmptyStr(n.JobID), n.EventType, messageID)
	if err != nil {
		log.Printf("Failed to record alert context: %v", err)
	}
}

// LatestContext returns the most recent alert context for a phone, which
// is what short replies act on.
func (s *NotificationService) LatestContext(phone string) (db.SmsAlertContext, error) {
	var ctx db.SmsAlertContext
	var leadID, jobID, messageID sql.NullString
	var repliedAt sql.NullTime

	err := s.PG.QueryRow(`
		SELECT id, org_id, user_id, phone, lead_id, job_id, event_type,
		       message_id, replied_at, created_at
		FROM sms_alert_contexts
		WHERE phone = $1
		ORDER BY created_at DESC
		LIMIT 1
	`, phone).Scan(
		&ctx.ID, &ctx.OrgID, &ctx.UserID, &ctx.Phone, &leadID, &jobID,
		&ctx.EventType, &messageID, &repliedAt, &ctx.CreatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return ctx, fmt.Errorf("no alert context for phone")
		}
		return ctx, fmt.Errorf("failed to load alert context: %w", err)
	}

	ctx.LeadID = leadID.String
	ctx.JobID = jobID.String
	ctx.MessageID = messageID.String
	if repliedAt.Valid {
		ctx.RepliedAt = &repliedAt.Time
	}
	return ctx, nil
}

// MarkContextReplied stamps replied_at on the latest context for the phone.
// The escalation sweep only flags contexts that were never replied to.
func (s *NotificationService) MarkContextReplied(contextID string) {
	_, err := s.PG.Exec(`
		UPDATE sms_alert_contexts SET replied_at = NOW()
		WHERE id = $1 AND replied_at IS NULL
	`, contextID)
	if err != nil {
		log.Printf("Failed to mark alert context replied: %v", err)
	}
}

// enqueue defers a message until quiet hours end.
func (s *NotificationService) enqueue(n Notification, sendAt time.Time) error {
	_, err := s.PG.Exec(`
		INSERT INTO notification_queue (id, org_id, user_id, lead_id, event_type,
		                                body, urgent, send_at, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 'queued', NOW())
	`, uuid.New().String(), n.OrgID, n.UserID, nullIfEmptyStr(n.LeadID),
		n.EventType, n.Body, db.IsCriticalEvent(n.EventType), sendAt)
	if err != nil {
		return fmt.Errorf("failed to queue notification: %w", err)
	}
	return nil
}

// FlushDueQueue delivers queued entries whose send_at has arrived. More
// than one distinct lead for a user collapses into a single summary
// message; otherwise every deferred body goes out on its own. Idempotent,
// safe to call from both the worker ticker and the cron endpoint.
func (s *NotificationService) FlushDueQueue(ctx context.Context, now time.Time) (int, error) {
	rows, err := s.PG.Query(`
		SELECT q.id, q.org_id, q.user_id, q.lead_id, q.event_type, q.body, q.urgent,
		       u.phone
		FROM notification_queue q
		JOIN users u ON u.id = q.user_id
		WHERE q.status = 'queued' AND q.send_at <= $1
		ORDER BY q.user_id, q.created_at
	`, now)
	if err != nil {
		return 0, fmt.Errorf("failed to load due queue entries: %w", err)
	}
	defer rows.Close()

	type queueEntry struct {
		id, orgID, userID, leadID, eventType, body, phone string
		urgent                                            bool
	}
	byUser := map[string][]queueEntry{}
	order := []string{}
	for rows.Next() {
		var e queueEntry
		var leadID, phone sql.NullString
		if err := rows.Scan(&e.id, &e.orgID, &e.userID, &leadID, &e.eventType,
			&e.body, &e.urgent, &phone); err != nil {
			return 0, fmt.Errorf("failed to scan queue entry: %w", err)
		}
		e.leadID = leadID.String
		e.phone = phone.String
		if _, seen := byUser[e.userID]; !seen {
			order = append(order, e.userID)
		}
		byUser[e.userID] = append(byUser[e.userID], e)
	}
	if err := rows.Err(); err != nil {
		return 0, err
	}

	sent := 0
	for _, userID := range order {
		entries := byUser[userID]

		leads := map[string]struct{}{}
		urgentCount := 0
		for _, e := range entries {
			if e.leadID != "" {
				leads[e.leadID] = struct{}{}
			}
			if e.urgent {
				urgentCount++
			}
		}

		// The summary spans several leads, so its alert context carries none
		// and a short reply gets the no-context response instead of acting
		// on an arbitrary lead.
		if len(leads) > 1 {
			first := entries[0]
			status := db.QueueStatusSent
			if s.flushDelivery(ctx, Notification{
				UserID: userID, OrgID: first.orgID, Phone: first.phone,
				EventType: first.eventType,
				Body: fmt.Sprintf("While you were away: %d new leads (%d urgent). Open the dashboard to review.",
					len(leads), urgentCount),
			}, now) {
				sent++
			} else {
				status = db.QueueStatusFailed
			}
			for _, e := range entries {
				if _, err := s.PG.Exec(
					"UPDATE notification_queue SET status = $1 WHERE id = $2", status, e.id,
				); err != nil {
					log.Printf("Failed to finalize queue entry %s: %v", e.id, err)
				}
			}
			continue
		}

		// One lead (or none): each deferred body is delivered on its own.
		for _, e := range entries {
			status := db.QueueStatusSent
			if s.flushDelivery(ctx, Notification{
				UserID: userID, OrgID: e.orgID, Phone: e.phone,
				LeadID: e.leadID, EventType: e.eventType, Body: e.body,
			}, now) {
				sent++
			} else {
				status = db.QueueStatusFailed
			}
			if _, err := s.PG.Exec(
				"UPDATE notification_queue SET status = $1 WHERE id = $2", status, e.id,
			); err != nil {
				log.Printf("Failed to finalize queue entry %s: %v", e.id, err)
			}
		}
	}

	return sent, nil
}

// flushDelivery sends one flushed message with the same bookkeeping as a
// direct send: audit log, alert context for short-reply resolution,
// recent-body cache, standard-tier retry on failure.
func (s *NotificationService) flushDelivery(ctx context.Context, n Notification, now time.Time) bool {
	messageID, err := s.Sender.Send(ctx, n.Phone, n.Body)
	if err != nil || messageID == "" {
		log.Printf("Queue flush delivery failed for user %s: %v", n.UserID, err)
		s.scheduleRetry(n, db.TierStandard, 1, now)
		return false
	}
	s.logSms(n, db.SmsStatusSent, messageID, "")
	s.recordAlertContext(n, messageID)
	s.cacheRecentBody(ctx, n.Phone, n.Body)
	return true
}

// EscalateStaleAlerts flags leads whose alert has gone unanswered for two
// hours. Only non-critical contexts count (critical events have their own
// retry pressure) and already-red leads are skipped so the sweep is
// idempotent.
func (s *NotificationService) EscalateStaleAlerts(now time.Time) (int, error) {
	rows, err := s.PG.Query(`
		SELECT DISTINCT c.lead_id, c.org_id
		FROM sms_alert_contexts c
		JOIN leads l ON l.id = c.lead_id
		WHERE c.replied_at IS NULL
		  AND c.lead_id IS NOT NULL
		  AND c.created_at < $1
		  AND c.event_type NOT IN ('abandoned_call', 'stale_job_alert', 'emergency_alert')
		  AND l.status NOT IN ('converted', 'lost')
		  AND l.priority != 'red'
	`, now.Add(-escalationAge))
	if err != nil {
		return 0, fmt.Errorf("failed to find stale alerts: %w", err)
	}
	defer rows.Close()

	type stale struct{ leadID, orgID string }
	stales := []stale{}
	for rows.Next() {
		var st stale
		if err := rows.Scan(&st.leadID, &st.orgID); err != nil {
			return 0, fmt.Errorf("failed to scan stale alert: %w", err)
		}
		stales = append(stales, st)
	}
	if err := rows.Err(); err != nil {
		return 0, err
	}

	escalated := 0
	for _, st := range stales {
		if err := s.Leads.FlagPriority(st.orgID, st.leadID, db.LeadPriorityRed,
			"no response after 2 hours"); err != nil {
			log.Printf("Failed to escalate lead %s: %v", st.leadID, err)
			continue
		}
		escalated++
	}

	if escalated > 0 {
		log.Printf("Escalation sweep flagged %d leads red", escalated)
	}
	return escalated, nil
}

// TierFor maps an event type to its delivery tier.
func TierFor(eventType string) string {
	if db.IsCriticalEvent(eventType) {
		return db.TierCritical
	}
	if eventType == db.EventLeadFollowup {
		return db.TierBulk
	}
	return db.TierStandard
}

// RetryConfig returns the delay before the given attempt and whether the
// attempt is allowed at all. Attempt numbering starts at 1.
func RetryConfig(tier string, attempt int) (time.Duration, bool) {
	var schedule []time.Duration
	switch tier {
	case db.TierCritical:
		schedule = []time.Duration{30 * time.Second, time.Minute, 5 * time.Minute, 15 * time.Minute, 30 * time.Minute}
	case db.TierStandard:
		schedule = []time.Duration{time.Minute, 5 * time.Minute, 15 * time.Minute}
	default: // bulk never retries
		return 0, false
	}
	if attempt < 1 || attempt > len(schedule) {
		return 0, false
	}
	return schedule[attempt-1], true
}

// scheduleRetry inserts a pending retry row, or records a silent permanent
// failure when the tier's attempts are exhausted.
func (s *NotificationService) scheduleRetry(n Notification, tier string, attempt int, now time.Time) {
	delay, ok := RetryConfig(tier, attempt)
	if !ok {
		log.Printf("Notification to %s permanently failed after %d attempts (%s tier)",
			n.Phone, attempt-1, tier)
		return
	}

	_, err := s.PG.Exec(`
		INSERT INTO notification_retries (id, org_id, user_id, lead_id, phone, body,
		                                  event_type, tier, attempt, retry_at, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, 'pending', NOW())
	`, uuid.New().String(), n.OrgID, n.UserID, nullIfEmptyStr(n.LeadID), n.Phone, n.Body,
		n.EventType, tier, attempt, now.Add(delay))
	if err != nil {
		log.Printf("Failed to schedule retry for %s: %v", n.Phone, err)
		return
	}
	log.Printf("Scheduled %s retry %d for %s in %s", tier, attempt, n.Phone, delay)
}

// ProcessRetries redelivers due pending retries. Rows are claimed with
// SKIP LOCKED so overlapping sweeps never double-send.
func (s *NotificationService) ProcessRetries(ctx context.Context, now time.Time) (int, error) {
	tx, err := s.PG.Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin retry sweep: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.Query(`
		SELECT id, org_id, user_id, lead_id, phone, body, event_type, tier, attempt
		FROM notification_retries
		WHERE status = 'pending' AND retry_at <= $1
		ORDER BY retry_at
		FOR UPDATE SKIP LOCKED
	`, now)
	if err != nil {
		return 0, fmt.Errorf("failed to load due retries: %w", err)
	}

	var due []db.NotificationRetry
	for rows.Next() {
		var r db.NotificationRetry
		var leadID sql.NullString
		if err := rows.Scan(&r.ID, &r.OrgID, &r.UserID, &leadID, &r.Phone, &r.Body,
			&r.EventType, &r.Tier, &r.Attempt); err != nil {
			rows.Close()
			return 0, fmt.Errorf("failed to scan retry: %w", err)
		}
		r.LeadID = leadID.String
		due = append(due, r)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, err
	}

	sent := 0
	for _, r := range due {
		messageID, sendErr := s.Sender.Send(ctx, r.Phone, r.Body)
		n := Notification{
			UserID: r.UserID, OrgID: r.OrgID, Phone: r.Phone,
			LeadID: r.LeadID, EventType: r.EventType, Body: r.Body,
		}

		if sendErr != nil || messageID == "" {
			if _, err := tx.Exec(
				"UPDATE notification_retries SET status = 'failed' WHERE id = $1", r.ID,
			); err != nil {
				return sent, fmt.Errorf("failed to finalize retry %s: %w", r.ID, err)
			}
			s.scheduleRetry(n, r.Tier, r.Attempt+1, now)
			continue
		}

		if _, err := tx.Exec(
			"UPDATE notification_retries SET status = 'sent' WHERE id = $1", r.ID,
		); err != nil {
			return sent, fmt.Errorf("failed to finalize retry %s: %w", r.ID, err)
		}
		s.logSms(n, db.SmsStatusSent, messageID, "")
		s.recordAlertContext(n, messageID)
		s.cacheRecentBody(ctx, r.Phone, r.Body)
		sent++
	}

	if err := tx.Commit(); err != nil {
		return sent, fmt.Errorf("failed to commit retry sweep: %w", err)
	}
	return sent, nil
}
