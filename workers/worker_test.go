package workers

import (
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"

	"github.com/callrescue/callrescue/services"
)

// An already-escalated lead (priority red) must not match the stale-alert
// query again, so back-to-back sweeps only act once.
func TestEscalationSweep_Idempotent(t *testing.T) {
	mockDB, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer mockDB.Close()

	notifications := &services.NotificationService{PG: mockDB, Leads: services.NewLeadService(mockDB)}
	w := NewSweepWorker(mockDB, notifications)

	// first sweep finds one stale alert and flags the lead
	mock.ExpectQuery("SELECT DISTINCT c.lead_id").
		WillReturnRows(sqlmock.NewRows([]string{"lead_id", "org_id"}).AddRow("lead-1", "org-1"))
	mock.ExpectExec("UPDATE leads").
		WithArgs("red", "no response after 2 hours", "lead-1", "org-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	// second sweep sees nothing: the lead is red now
	mock.ExpectQuery("SELECT DISTINCT c.lead_id").
		WillReturnRows(sqlmock.NewRows([]string{"lead_id", "org_id"}))

	w.runEscalationSweep()
	w.runEscalationSweep()

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNewSweepWorker_Intervals(t *testing.T) {
	w := NewSweepWorker(nil, nil)
	assert.Equal(t, time.Minute, w.QueueInterval)
	assert.Equal(t, 15*time.Second, w.RetryInterval)
	assert.Equal(t, 5*time.Minute, w.EscalationInterval)
}
