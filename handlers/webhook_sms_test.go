package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/callrescue/callrescue/services"
)

func postJSON(t *testing.T, handler gin.HandlerFunc, payload interface{}) *httptest.ResponseRecorder {
	t.Helper()
	gin.SetMode(gin.TestMode)

	body, err := json.Marshal(payload)
	assert.NoError(t, err)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest("POST", "/webhook/sms", bytes.NewBuffer(body))
	c.Request.Header.Set("Content-Type", "application/json")

	handler(c)
	return w
}

func TestHandleInboundSms_MalformedPayloadStillReplies(t *testing.T) {
	h := &SmsWebhookHandler{}

	w := postJSON(t, h.HandleInboundSms, gin.H{"unexpected": "shape"})

	// the gateway relays our reply to the sender, so even bad input is 200
	assert.Equal(t, http.StatusOK, w.Code)

	var resp map[string]string
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp["reply"])
}

func TestHandleInboundSms_UnknownSenderGetsGuidance(t *testing.T) {
	mockDB, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer mockDB.Close()

	// phone lookup comes back empty
	mock.ExpectQuery("SELECT id, org_id, name, email, phone").
		WithArgs("+15550009999").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	commands := services.NewCommandService(mockDB, nil)
	h := NewSmsWebhookHandler(mockDB, commands)

	w := postJSON(t, h.HandleInboundSms, gin.H{"from": "+15550009999", "body": "HELP"})

	assert.Equal(t, http.StatusOK, w.Code)

	var resp map[string]string
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Contains(t, resp["reply"], "isn't linked")
	assert.NoError(t, mock.ExpectationsWereMet())
}
