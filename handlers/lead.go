package handlers

import (
	"database/sql"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/callrescue/callrescue/db"
	"github.com/callrescue/callrescue/internal/timeparse"
	"github.com/callrescue/callrescue/services"
)

// LeadHandler exposes lead CRUD, snooze and notes to the dashboard.
type LeadHandler struct {
	Leads *services.LeadService
}

func NewLeadHandler(pg *sql.DB) *LeadHandler {
	return &LeadHandler{Leads: services.NewLeadService(pg)}
}

// ListLeads returns the org's leads; ?active=true filters to the working
// view (non-terminal, not snoozed into the future).
func (h *LeadHandler) ListLeads(c *gin.Context) {
	activeOnly := c.Query("active") == "true"
	leads, err := h.Leads.ListLeads(orgID(c), activeOnly)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list leads"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"leads": leads})
}

func (h *LeadHandler) GetLead(c *gin.Context) {
	lead, err := h.Leads.GetLead(orgID(c), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "lead not found"})
		return
	}
	c.JSON(http.StatusOK, lead)
}

func (h *LeadHandler) CreateLead(c *gin.Context) {
	var req db.CreateLeadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "phone is required"})
		return
	}
	if req.Source == "" {
		req.Source = "manual"
	}

	lead, err := h.Leads.CreateLead(orgID(c), req)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create lead"})
		return
	}
	c.JSON(http.StatusCreated, lead)
}

func (h *LeadHandler) UpdateLead(c *gin.Context) {
	var req db.UpdateLeadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}

	lead, err := h.Leads.UpdateLead(orgID(c), c.Param("id"), req)
	if err != nil {
		if err.Error() == "lead not found" {
			c.JSON(http.StatusNotFound, gin.H{"error": "lead not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update lead"})
		return
	}
	c.JSON(http.StatusOK, lead)
}

type snoozeRequest struct {
	Duration string `json:"duration" binding:"required"` // "3H", "45M", "TOMORROW PM"
}

// SnoozeLead applies the same snooze grammar the SMS channel uses.
func (h *LeadHandler) SnoozeLead(c *gin.Context) {
	var req snoozeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "duration is required"})
		return
	}

	parsed := timeparse.ParseSnooze(req.Duration, time.Now(), time.Local)
	if !parsed.OK {
		c.JSON(http.StatusBadRequest, gin.H{"error": parsed.Hint})
		return
	}

	leadID := c.Param("id")
	if err := h.Leads.Snooze(orgID(c), leadID, parsed.SnoozeUntil, "snoozed"); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "lead not found"})
		return
	}
	if _, err := h.Leads.AddNote(leadID, "Snoozed until "+parsed.Label, c.GetString("user_id")); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to record note"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"snooze_until": parsed.SnoozeUntil, "label": parsed.Label})
}

type noteRequest struct {
	Body string `json:"body" binding:"required"`
}

func (h *LeadHandler) AddNote(c *gin.Context) {
	var req noteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "body is required"})
		return
	}

	note, err := h.Leads.AddNote(c.Param("id"), req.Body, c.GetString("user_id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to add note"})
		return
	}
	c.JSON(http.StatusCreated, note)
}

func (h *LeadHandler) ListNotes(c *gin.Context) {
	notes, err := h.Leads.ListNotes(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list notes"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"notes": notes})
}
