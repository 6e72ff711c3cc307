package handlers

import (
	"database/sql"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/callrescue/callrescue/db"
	"github.com/callrescue/callrescue/services"
)

// SmsWebhookHandler receives inbound operator SMS from the gateway. The
// gateway texts whatever we put in the reply field back to the sender, so
// this endpoint always answers 200 with some guidance text.
type SmsWebhookHandler struct {
	PG       *sql.DB
	Commands *services.CommandService
}

func NewSmsWebhookHandler(pg *sql.DB, commands *services.CommandService) *SmsWebhookHandler {
	return &SmsWebhookHandler{PG: pg, Commands: commands}
}

// HandleInboundSms processes one inbound message and returns the reply.
func (h *SmsWebhookHandler) HandleInboundSms(c *gin.Context) {
	var req db.InboundSmsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Printf("Malformed inbound SMS payload: %v", err)
		c.JSON(http.StatusOK, gin.H{"reply": "Sorry, we couldn't read that message."})
		return
	}

	reply := h.Commands.HandleInbound(c.Request.Context(), req.From, req.Body)
	c.JSON(http.StatusOK, gin.H{"reply": reply})
}

// VoiceWebhookHandler receives classified call events from the voice-AI
// backend: it creates the lead and fires the operator notification.
type VoiceWebhookHandler struct {
	PG            *sql.DB
	Leads         *services.LeadService
	Users         *services.UserService
	Notifications *services.NotificationService
}

func NewVoiceWebhookHandler(pg *sql.DB, notifications *services.NotificationService) *VoiceWebhookHandler {
	return &VoiceWebhookHandler{
		PG:            pg,
		Leads:         services.NewLeadService(pg),
		Users:         services.NewUserService(pg),
		Notifications: notifications,
	}
}

// leadStatusForEvent maps a call classification to the lead's initial state.
func leadStatusForEvent(eventType string) (leadStatus, notifyEvent string) {
	switch eventType {
	case "abandoned_call":
		return db.LeadStatusAbandoned, db.EventAbandonedCall
	case "emergency":
		return db.LeadStatusEmergency, db.EventEmergencyAlert
	case "booking_request":
		return db.LeadStatusSalesOpportunity, db.EventMissedCall
	default: // missed_call
		return db.LeadStatusCallbackRequested, db.EventMissedCall
	}
}

// HandleVoiceEvent ingests one classified call.
func (h *VoiceWebhookHandler) HandleVoiceEvent(c *gin.Context) {
	var req db.VoiceEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "event_type and caller_phone are required"})
		return
	}

	org := orgID(c)
	leadStatus, notifyEvent := leadStatusForEvent(req.EventType)

	lead, err := h.Leads.CreateLead(org, db.CreateLeadRequest{
		Name:   req.CallerName,
		Phone:  req.CallerPhone,
		Status: leadStatus,
		Source: "voice-ai",
	})
	if err != nil {
		log.Printf("Failed to create lead from voice event: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create lead"})
		return
	}

	if lead.Status == db.LeadStatusEmergency {
		if err := h.Leads.FlagPriority(org, lead.ID, db.LeadPriorityRed, "emergency call"); err != nil {
			log.Printf("Failed to flag emergency lead %s: %v", lead.ID, err)
		}
	}

	// Notify every active operator in the org. Small teams, one SMS each.
	operators, err := h.activeOperators(org)
	if err != nil {
		log.Printf("Failed to load operators for org %s: %v", org, err)
	}
	body := services.RenderTemplate(notifyEvent, services.TemplateParams{
		CallerName:  lead.Name,
		CallerPhone: lead.Phone,
		Summary:     req.Summary,
	})
	for _, op := range operators {
		if op.Phone == "" {
			continue
		}
		if err := h.Notifications.Notify(c.Request.Context(), services.Notification{
			UserID:    op.ID,
			OrgID:     org,
			Phone:     op.Phone,
			LeadID:    lead.ID,
			EventType: notifyEvent,
			Body:      body,
		}); err != nil {
			log.Printf("Failed to notify operator %s: %v", op.ID, err)
		}
	}

	c.JSON(http.StatusCreated, gin.H{"lead_id": lead.ID, "status": lead.Status})
}

func (h *VoiceWebhookHandler) activeOperators(org string) ([]db.User, error) {
	rows, err := h.PG.Query(`
		SELECT id, org_id, name, email, COALESCE(phone, ''), role, is_active
		FROM users
		WHERE org_id = $1 AND is_active = true
	`, org)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := []db.User{}
	for rows.Next() {
		var u db.User
		if err := rows.Scan(&u.ID, &u.OrgID, &u.Name, &u.Email, &u.Phone, &u.Role, &u.IsActive); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}
