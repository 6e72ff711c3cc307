package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func jobStatusRequest(t *testing.T, h *JobHandler, jobID, status string) *httptest.ResponseRecorder {
	t.Helper()
	gin.SetMode(gin.TestMode)

	body, _ := json.Marshal(gin.H{"status": status})
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest("POST", "/jobs/"+jobID+"/status", bytes.NewBuffer(body))
	c.Request.Header.Set("Content-Type", "application/json")
	c.Params = gin.Params{{Key: "id", Value: jobID}}
	c.Set("org_id", "org-1")

	h.SetStatus(c)
	return w
}

func jobRow(status string) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows([]string{
		"id", "org_id", "lead_id", "customer_name", "phone", "status",
		"scheduled_at", "needs_action", "notes", "created_at", "updated_at",
	}).AddRow("job-1", "org-1", nil, "Dana", "+15551230000", status, nil, false, "", now, now)
}

func TestSetStatus_LegalTransition(t *testing.T) {
	mockDB, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer mockDB.Close()

	mock.ExpectQuery("SELECT id, org_id, lead_id").
		WithArgs("job-1", "org-1").
		WillReturnRows(jobRow("new"))
	mock.ExpectExec("UPDATE jobs SET status").
		WithArgs("confirmed", "job-1", "org-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	h := NewJobHandler(mockDB)
	w := jobStatusRequest(t, h, "job-1", "confirmed")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSetStatus_IllegalTransitionRejected(t *testing.T) {
	mockDB, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer mockDB.Close()

	// complete is terminal, nothing moves out of it
	mock.ExpectQuery("SELECT id, org_id, lead_id").
		WithArgs("job-1", "org-1").
		WillReturnRows(jobRow("complete"))

	h := NewJobHandler(mockDB)
	w := jobStatusRequest(t, h, "job-1", "confirmed")

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, w.Body.String(), "invalid job status transition")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSetStatus_SkippingAStageRejected(t *testing.T) {
	mockDB, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer mockDB.Close()

	mock.ExpectQuery("SELECT id, org_id, lead_id").
		WithArgs("job-1", "org-1").
		WillReturnRows(jobRow("new"))

	h := NewJobHandler(mockDB)
	w := jobStatusRequest(t, h, "job-1", "on_site")

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSetStatus_CancelFromAnyNonTerminal(t *testing.T) {
	for _, from := range []string{"new", "confirmed", "en_route", "on_site"} {
		mockDB, mock, err := sqlmock.New()
		assert.NoError(t, err)

		mock.ExpectQuery("SELECT id, org_id, lead_id").
			WithArgs("job-1", "org-1").
			WillReturnRows(jobRow(from))
		mock.ExpectExec("UPDATE jobs SET status").
			WithArgs("cancelled", "job-1", "org-1").
			WillReturnResult(sqlmock.NewResult(0, 1))

		h := NewJobHandler(mockDB)
		w := jobStatusRequest(t, h, "job-1", "cancelled")

		assert.Equal(t, http.StatusOK, w.Code, "cancel from %s", from)
		assert.NoError(t, mock.ExpectationsWereMet())
		mockDB.Close()
	}
}
