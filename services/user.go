package services

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/callrescue/callrescue/db"
)

// UserService resolves operators and owns their notification preferences.
type UserService struct {
	PG *sql.DB
}

func NewUserService(pg *sql.DB) *UserService {
	return &UserService{PG: pg}
}

// GetUserByPhone resolves the sender of an inbound SMS to an active
// operator account.
func (s *UserService) GetUserByPhone(phone string) (db.User, error) {
	var user db.User
	var userPhone, fcmToken sql.NullString

	err := s.PG.QueryRow(`
		SELECT id, org_id, name, email, phone, role, fcm_token, is_active, created_at, updated_at
		FROM users
		WHERE phone = $1 AND is_active = true
	`, phone).Scan(
		&user.ID, &user.OrgID, &user.Name, &user.Email, &userPhone,
		&user.Role, &fcmToken, &user.IsActive, &user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return user, fmt.Errorf("no active user for phone %s", phone)
		}
		return user, fmt.Errorf("failed to look up user by phone: %w", err)
	}

	user.Phone = userPhone.String
	user.FCMToken = fcmToken.String
	return user, nil
}

// GetUser returns one user by id.
func (s *UserService) GetUser(userID string) (db.User, error) {
	var user db.User
	var phone, fcmToken sql.NullString

	err := s.PG.QueryRow(`
		SELECT id, org_id, name, email, phone, role, fcm_token, is_active, created_at, updated_at
		FROM users
		WHERE id = $1
	`, userID).Scan(
		&user.ID, &user.OrgID, &user.Name, &user.Email, &phone,
		&user.Role, &fcmToken, &user.IsActive, &user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return user, fmt.Errorf("user not found")
		}
		return user, fmt.Errorf("failed to get user: %w", err)
	}

	user.Phone = phone.String
	user.FCMToken = fcmToken.String
	return user, nil
}

// GetPreferences returns the user's notification preferences, falling back
// to the defaults (everything on, no quiet hours) when none are saved.
func (s *UserService) GetPreferences(userID, orgID string) (db.NotificationPreferences, error) {
	var prefs db.NotificationPreferences
	var quietStart, quietEnd, timezone sql.NullString

	err := s.PG.QueryRow(`
		SELECT user_id, org_id, missed_call, abandoned_call, same_day_booking,
		       job_update, stale_job_alert, lead_followup,
		       quiet_hours_start, quiet_hours_end, timezone, unsubscribed, updated_at
		FROM notification_preferences
		WHERE user_id = $1
	`, userID).Scan(
		&prefs.UserID, &prefs.OrgID, &prefs.MissedCall, &prefs.AbandonedCall,
		&prefs.SameDayBooking, &prefs.JobUpdate, &prefs.StaleJobAlert,
		&prefs.LeadFollowup, &quietStart, &quietEnd, &timezone,
		&prefs.Unsubscribed, &prefs.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return db.DefaultPreferences(userID, orgID), nil
		}
		return prefs, fmt.Errorf("failed to get notification preferences: %w", err)
	}

	prefs.QuietHoursStart = quietStart.String
	prefs.QuietHoursEnd = quietEnd.String
	prefs.Timezone = timezone.String
	return prefs, nil
}

// SavePreferences upserts the user's notification preferences.
func (s *UserService) SavePreferences(prefs db.NotificationPreferences) error {
	prefs.UpdatedAt = time.Now()

	_, err := s.PG.Exec(`
		INSERT INTO notification_preferences
			(user_id, org_id, missed_call, abandoned_call, same_day_booking,
			 job_update, stale_job_alert, lead_followup,
			 quiet_hours_start, quiet_hours_end, timezone, unsubscribed, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (user_id) DO UPDATE SET
			missed_call = EXCLUDED.missed_call,
			abandoned_call = EXCLUDED.abandoned_call,
			same_day_booking = EXCLUDED.same_day_booking,
			job_update = EXCLUDED.job_update,
			stale_job_alert = EXCLUDED.stale_job_alert,
			lead_followup = EXCLUDED.lead_followup,
			quiet_hours_start = EXCLUDED.quiet_hours_start,
			quiet_hours_end = EXCLUDED.quiet_hours_end,
			timezone = EXCLUDED.timezone,
			unsubscribed = EXCLUDED.unsubscribed,
			updated_at = EXCLUDED.updated_at
	`, prefs.UserID, prefs.OrgID, prefs.MissedCall, prefs.AbandonedCall,
		prefs.SameDayBooking, prefs.JobUpdate, prefs.StaleJobAlert,
		prefs.LeadFollowup, prefs.QuietHoursStart, prefs.QuietHoursEnd,
		prefs.Timezone, prefs.Unsubscribed, prefs.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to save notification preferences: %w", err)
	}
	return nil
}

// SetUnsubscribed flips the global opt-out flag, preserving the user's
// other preference settings.
func (s *UserService) SetUnsubscribed(userID, orgID string, unsubscribed bool) error {
	prefs, err := s.GetPreferences(userID, orgID)
	if err != nil {
		return err
	}
	prefs.Unsubscribed = unsubscribed
	return s.SavePreferences(prefs)
}
