package workers

import (
	"context"
	"database/sql"
	"log"
	"time"

	"github.com/callrescue/callrescue/services"
)

// SweepWorker drives the background sweeps on tickers. Every sweep is an
// idempotent function on NotificationService, so the worker can run next
// to the cron-trigger endpoints without double effects.
type SweepWorker struct {
	PG            *sql.DB
	Notifications *services.NotificationService

	QueueInterval      time.Duration
	RetryInterval      time.Duration
	EscalationInterval time.Duration
}

func NewSweepWorker(pg *sql.DB, notifications *services.NotificationService) *SweepWorker {
	return &SweepWorker{
		PG:                 pg,
		Notifications:      notifications,
		QueueInterval:      time.Minute,
		RetryInterval:      15 * time.Second,
		EscalationInterval: 5 * time.Minute,
	}
}

// StartQueueWorker flushes quiet-hours and batch queue entries.
func (w *SweepWorker) StartQueueWorker(ctx context.Context) {
	log.Println("Queue worker started, flushing due notifications...")

	ticker := time.NewTicker(w.QueueInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Queue worker stopping")
			return
		case <-ticker.C:
			w.runQueueSweep(ctx)
		}
	}
}

func (w *SweepWorker) runQueueSweep(ctx context.Context) {
	sent, err := w.Notifications.FlushDueQueue(ctx, time.Now())
	if err != nil {
		log.Printf("Queue worker: flush failed: %v", err)
		return
	}
	if sent > 0 {
		log.Printf("Queue worker: delivered %d queued notifications", sent)
	}
}

// StartRetryWorker redelivers failed sends on their tier schedule.
func (w *SweepWorker) StartRetryWorker(ctx context.Context) {
	log.Println("Retry worker started, processing redeliveries...")

	ticker := time.NewTicker(w.RetryInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Retry worker stopping")
			return
		case <-ticker.C:
			w.runRetrySweep(ctx)
		}
	}
}

func (w *SweepWorker) runRetrySweep(ctx context.Context) {
	sent, err := w.Notifications.ProcessRetries(ctx, time.Now())
	if err != nil {
		log.Printf("Retry worker: sweep failed: %v", err)
		return
	}
	if sent > 0 {
		log.Printf("Retry worker: redelivered %d notifications", sent)
	}
}

// StartEscalationWorker flags leads whose alerts went unanswered.
func (w *SweepWorker) StartEscalationWorker(ctx context.Context) {
	log.Println("Escalation worker started, watching for stale alerts...")

	ticker := time.NewTicker(w.EscalationInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Escalation worker stopping")
			return
		case <-ticker.C:
			w.runEscalationSweep()
		}
	}
}

func (w *SweepWorker) runEscalationSweep() {
	escalated, err := w.Notifications.EscalateStaleAlerts(time.Now())
	if err != nil {
		log.Printf("Escalation worker: sweep failed: %v", err)
		return
	}
	if escalated > 0 {
		log.Printf("Escalation worker: flagged %d leads", escalated)
	}
}
