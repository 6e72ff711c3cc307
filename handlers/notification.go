package handlers

import (
	"database/sql"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/callrescue/callrescue/db"
	"github.com/callrescue/callrescue/services"
)

// NotificationConfigHandler manages a user's notification preferences and
// the test-send endpoint.
type NotificationConfigHandler struct {
	Users         *services.UserService
	Notifications *services.NotificationService
}

func NewNotificationConfigHandler(pg *sql.DB, notifications *services.NotificationService) *NotificationConfigHandler {
	return &NotificationConfigHandler{
		Users:         services.NewUserService(pg),
		Notifications: notifications,
	}
}

func (h *NotificationConfigHandler) GetConfig(c *gin.Context) {
	prefs, err := h.Users.GetPreferences(c.Param("id"), orgID(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load preferences"})
		return
	}
	c.JSON(http.StatusOK, prefs)
}

func (h *NotificationConfigHandler) UpdateConfig(c *gin.Context) {
	var prefs db.NotificationPreferences
	if err := c.ShouldBindJSON(&prefs); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}

	// path and token win over whatever ids the body carries
	prefs.UserID = c.Param("id")
	prefs.OrgID = orgID(c)

	if err := h.Users.SavePreferences(prefs); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to save preferences"})
		return
	}
	c.JSON(http.StatusOK, prefs)
}

// SendTest pushes a test notification through the full policy chain so the
// operator can verify their phone, toggles and quiet hours together.
func (h *NotificationConfigHandler) SendTest(c *gin.Context) {
	userID := c.Param("id")
	user, err := h.Users.GetUser(userID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		return
	}
	if user.Phone == "" {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "user has no phone number on file"})
		return
	}

	err = h.Notifications.Notify(c.Request.Context(), services.Notification{
		UserID:    user.ID,
		OrgID:     orgID(c),
		Phone:     user.Phone,
		EventType: db.EventJobUpdate,
		Body:      "Test alert: this is what a job update looks like. Reply HELP for commands.",
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to send test notification"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "sent"})
}
