package router

import (
	"database/sql"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"

	"github.com/callrescue/callrescue/handlers"
	"github.com/callrescue/callrescue/services"
)

// NewGinRouter wires the full HTTP surface: public webhooks, cron-trigger
// sweeps and the JWT-protected dashboard API.
func NewGinRouter(pg *sql.DB, rdb *redis.Client) *gin.Engine {
	r := gin.Default()

	// CORS for the dashboard frontend
	r.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	// Services
	pushService, err := services.NewPushService(pg)
	if err != nil {
		log.Printf("Warning: push service unavailable: %v", err)
	}
	sender := services.NewGatewaySender()
	notificationService := services.NewNotificationService(pg, rdb, sender, pushService)
	commandService := services.NewCommandService(pg, notificationService)
	userService := services.NewUserService(pg)
	apiKeyService := services.NewAPIKeyService(pg)

	// Handlers
	auth := handlers.NewAuthMiddleware(userService, apiKeyService)
	smsWebhook := handlers.NewSmsWebhookHandler(pg, commandService)
	voiceWebhook := handlers.NewVoiceWebhookHandler(pg, notificationService)
	leadHandler := handlers.NewLeadHandler(pg)
	jobHandler := handlers.NewJobHandler(pg)
	dashboardHandler := handlers.NewDashboardHandler(pg)
	notificationConfig := handlers.NewNotificationConfigHandler(pg, notificationService)
	sweepHandler := handlers.NewSweepHandler(notificationService)

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// The SMS gateway authenticates at the transport level and expects a
	// reply body, never an auth challenge.
	r.POST("/webhook/sms", smsWebhook.HandleInboundSms)

	// Voice-AI backend and cron triggers use API keys.
	keyed := r.Group("/")
	keyed.Use(auth.RequireAPIKey())
	{
		keyed.POST("/webhook/voice", voiceWebhook.HandleVoiceEvent)
		keyed.POST("/sweeps/queue", sweepHandler.FlushQueue)
		keyed.POST("/sweeps/retries", sweepHandler.ProcessRetries)
		keyed.POST("/sweeps/escalation", sweepHandler.Escalate)
	}

	// Dashboard API
	api := r.Group("/api")
	api.Use(auth.RequireSession())
	{
		api.GET("/leads", leadHandler.ListLeads)
		api.POST("/leads", leadHandler.CreateLead)
		api.GET("/leads/:id", leadHandler.GetLead)
		api.PUT("/leads/:id", leadHandler.UpdateLead)
		api.POST("/leads/:id/snooze", leadHandler.SnoozeLead)
		api.POST("/leads/:id/notes", leadHandler.AddNote)
		api.GET("/leads/:id/notes", leadHandler.ListNotes)

		api.GET("/jobs", jobHandler.ListJobs)
		api.POST("/jobs", jobHandler.CreateJob)
		api.GET("/jobs/:id", jobHandler.GetJob)
		api.PUT("/jobs/:id", jobHandler.UpdateJob)
		api.POST("/jobs/:id/status", jobHandler.SetStatus)

		api.GET("/calls", dashboardHandler.ListCalls)
		api.GET("/dashboard", dashboardHandler.GetSummary)

		api.GET("/users/:id/notifications/config", notificationConfig.GetConfig)
		api.PUT("/users/:id/notifications/config", notificationConfig.UpdateConfig)
		api.POST("/users/:id/notifications/test", notificationConfig.SendTest)
	}

	return r
}
