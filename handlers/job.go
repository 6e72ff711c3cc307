package handlers

import (
	"database/sql"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/callrescue/callrescue/db"
	"github.com/callrescue/callrescue/services"
)

// JobHandler exposes job CRUD and the status machine to the dashboard.
type JobHandler struct {
	Jobs *services.JobService
}

func NewJobHandler(pg *sql.DB) *JobHandler {
	return &JobHandler{Jobs: services.NewJobService(pg)}
}

func (h *JobHandler) ListJobs(c *gin.Context) {
	jobs, err := h.Jobs.ListJobs(orgID(c), c.Query("status"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list jobs"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"jobs": jobs})
}

func (h *JobHandler) GetJob(c *gin.Context) {
	job, err := h.Jobs.GetJob(orgID(c), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
		return
	}
	c.JSON(http.StatusOK, job)
}

func (h *JobHandler) CreateJob(c *gin.Context) {
	var req db.CreateJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "customer_name and phone are required"})
		return
	}

	job, err := h.Jobs.CreateJob(orgID(c), req)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create job"})
		return
	}
	c.JSON(http.StatusCreated, job)
}

func (h *JobHandler) UpdateJob(c *gin.Context) {
	var req db.UpdateJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}

	job, err := h.Jobs.UpdateJob(orgID(c), c.Param("id"), req)
	if err != nil {
		if err.Error() == "job not found" {
			c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update job"})
		return
	}
	c.JSON(http.StatusOK, job)
}

// SetStatus advances the job through its status machine. Illegal moves are
// a 422 naming the attempted transition.
func (h *JobHandler) SetStatus(c *gin.Context) {
	var req db.JobStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "status is required"})
		return
	}

	job, err := h.Jobs.SetStatus(orgID(c), c.Param("id"), req.Status)
	if err != nil {
		switch {
		case err.Error() == "job not found":
			c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
		case strings.Contains(err.Error(), "invalid job status transition"):
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update job status"})
		}
		return
	}
	c.JSON(http.StatusOK, job)
}
