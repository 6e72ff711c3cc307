package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/callrescue/callrescue/services"
)

// SweepHandler exposes the background sweeps as cron-triggerable endpoints.
// The same idempotent service functions back the worker's tickers, so a
// hosted cron and the worker binary can coexist.
type SweepHandler struct {
	Notifications *services.NotificationService
}

func NewSweepHandler(notifications *services.NotificationService) *SweepHandler {
	return &SweepHandler{Notifications: notifications}
}

func (h *SweepHandler) FlushQueue(c *gin.Context) {
	sent, err := h.Notifications.FlushDueQueue(c.Request.Context(), time.Now())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"sent": sent})
}

func (h *SweepHandler) ProcessRetries(c *gin.Context) {
	sent, err := h.Notifications.ProcessRetries(c.Request.Context(), time.Now())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"sent": sent})
}

func (h *SweepHandler) Escalate(c *gin.Context) {
	escalated, err := h.Notifications.EscalateStaleAlerts(time.Now())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"escalated": escalated})
}
