package handlers

import (
	"database/sql"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/callrescue/callrescue/db"
)

// DashboardHandler serves the summary counts and the call/SMS log.
type DashboardHandler struct {
	PG *sql.DB
}

func NewDashboardHandler(pg *sql.DB) *DashboardHandler {
	return &DashboardHandler{PG: pg}
}

// GetSummary returns the counts the dashboard home screen renders.
func (h *DashboardHandler) GetSummary(c *gin.Context) {
	org := orgID(c)

	var activeLeads, urgentLeads, openJobs, needsAction, todaysJobs int

	err := h.PG.QueryRow(`
		SELECT
			COUNT(*) FILTER (WHERE status NOT IN ('converted', 'lost')
				AND (remind_at IS NULL OR remind_at <= NOW())),
			COUNT(*) FILTER (WHERE priority = 'red'
				AND status NOT IN ('converted', 'lost'))
		FROM leads WHERE org_id = $1
	`, org).Scan(&activeLeads, &urgentLeads)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load lead counts"})
		return
	}

	err = h.PG.QueryRow(`
		SELECT
			COUNT(*) FILTER (WHERE status NOT IN ('complete', 'cancelled')),
			COUNT(*) FILTER (WHERE needs_action = true),
			COUNT(*) FILTER (WHERE scheduled_at::date = CURRENT_DATE
				AND status NOT IN ('complete', 'cancelled'))
		FROM jobs WHERE org_id = $1
	`, org).Scan(&openJobs, &needsAction, &todaysJobs)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load job counts"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"active_leads": activeLeads,
		"urgent_leads": urgentLeads,
		"open_jobs":    openJobs,
		"needs_action": needsAction,
		"todays_jobs":  todaysJobs,
	})
}

// ListCalls returns the SMS/call audit log, newest first, capped at 200.
func (h *DashboardHandler) ListCalls(c *gin.Context) {
	rows, err := h.PG.Query(`
		SELECT id, org_id, direction, from_phone, to_phone, body, status,
		       lead_id, job_id, event_type, provider_message_id, error_message, created_at
		FROM sms_logs
		WHERE org_id = $1
		ORDER BY created_at DESC
		LIMIT 200
	`, orgID(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load call log"})
		return
	}
	defer rows.Close()

	entries := []db.SmsLogEntry{}
	for rows.Next() {
		var e db.SmsLogEntry
		var leadID, jobID, eventType, providerID, errMsg sql.NullString
		if err := rows.Scan(&e.ID, &e.OrgID, &e.Direction, &e.FromPhone, &e.ToPhone,
			&e.Body, &e.Status, &leadID, &jobID, &eventType, &providerID, &errMsg,
			&e.CreatedAt); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to scan call log"})
			return
		}
		e.LeadID = leadID.String
		e.JobID = jobID.String
		e.EventType = eventType.String
		e.ProviderMessageID = providerID.String
		e.ErrorMessage = errMsg.String
		entries = append(entries, e)
	}

	c.JSON(http.StatusOK, gin.H{"calls": entries})
}
