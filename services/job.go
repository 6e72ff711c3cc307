package services

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/callrescue/callrescue/db"
)

// JobService owns scheduled appointments and enforces the job status
// machine: new -> confirmed -> en_route -> on_site -> complete, with
// cancelled reachable from any non-terminal state.
type JobService struct {
	PG *sql.DB
}

func NewJobService(pg *sql.DB) *JobService {
	return &JobService{PG: pg}
}

// CreateJob inserts a new job in status new.
func (s *JobService) CreateJob(orgID string, req db.CreateJobRequest) (db.Job, error) {
	job := db.Job{
		ID:           uuid.New().String(),
		OrgID:        orgID,
		LeadID:       req.LeadID,
		CustomerName: req.CustomerName,
		Phone:        req.Phone,
		Status:       db.JobStatusNew,
		ScheduledAt:  req.ScheduledAt,
		Notes:        req.Notes,
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}

	_, err := s.PG.Exec(`
		INSERT INTO jobs (id, org_id, lead_id, customer_name, phone, status,
		                  scheduled_at, needs_action, notes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, job.ID, job.OrgID, nullIfEmptyStr(job.LeadID), job.CustomerName, job.Phone,
		job.Status, job.ScheduledAt, job.NeedsAction, job.Notes, job.CreatedAt, job.UpdatedAt)
	if err != nil {
		return job, fmt.Errorf("failed to create job: %w", err)
	}

	return job, nil
}

// GetJob returns one job scoped to the org.
func (s *JobService) GetJob(orgID, jobID string) (db.Job, error) {
	var job db.Job
	var leadID, notes sql.NullString
	var scheduledAt sql.NullTime

	err := s.PG.QueryRow(`
		SELECT id, org_id, lead_id, customer_name, phone, status,
		       scheduled_at, needs_action, notes, created_at, updated_at
		FROM jobs
		WHERE id = $1 AND org_id = $2
	`, jobID, orgID).Scan(
		&job.ID, &job.OrgID, &leadID, &job.CustomerName, &job.Phone,
		&job.Status, &scheduledAt, &job.NeedsAction, &notes,
		&job.CreatedAt, &job.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return job, fmt.Errorf("job not found")
		}
		return job, fmt.Errorf("failed to get job: %w", err)
	}

	job.LeadID = leadID.String
	job.Notes = notes.String
	if scheduledAt.Valid {
		job.ScheduledAt = &scheduledAt.Time
	}

	return job, nil
}

// ListJobs returns the org's jobs ordered by schedule, soonest first.
func (s *JobService) ListJobs(orgID string, status string) ([]db.Job, error) {
	query := `
		SELECT id, org_id, lead_id, customer_name, phone, status,
		       scheduled_at, needs_action, notes, created_at, updated_at
		FROM jobs
		WHERE org_id = $1
	`
	args := []interface{}{orgID}
	if status != "" {
		query += " AND status = $2"
		args = append(args, status)
	}
	query += " ORDER BY scheduled_at ASC NULLS LAST, created_at DESC"

	rows, err := s.PG.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	defer rows.Close()

	jobs := []db.Job{}
	for rows.Next() {
		var job db.Job
		var leadID, notes sql.NullString
		var scheduledAt sql.NullTime
		if err := rows.Scan(
			&job.ID, &job.OrgID, &leadID, &job.CustomerName, &job.Phone,
			&job.Status, &scheduledAt, &job.NeedsAction, &notes,
			&job.CreatedAt, &job.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan job: %w", err)
		}
		job.LeadID = leadID.String
		job.Notes = notes.String
		if scheduledAt.Valid {
			job.ScheduledAt = &scheduledAt.Time
		}
		jobs = append(jobs, job)
	}

	return jobs, rows.Err()
}

// UpdateJob applies a partial update from the dashboard.
func (s *JobService) UpdateJob(orgID, jobID string, req db.UpdateJobRequest) (db.Job, error) {
	sets := []string{"updated_at = NOW()"}
	args := []interface{}{}
	n := 1

	addSet := func(col string, val interface{}) {
		sets = append(sets, fmt.Sprintf("%s = $%d", col, n))
		args = append(args, val)
		n++
	}

	if req.CustomerName != nil {
		addSet("customer_name", *req.CustomerName)
	}
	if req.ScheduledAt != nil {
		addSet("scheduled_at", *req.ScheduledAt)
	}
	if req.NeedsAction != nil {
		addSet("needs_action", *req.NeedsAction)
	}
	if req.Notes != nil {
		addSet("notes", *req.Notes)
	}

	query := fmt.Sprintf("UPDATE jobs SET %s WHERE id = $%d AND org_id = $%d",
		strings.Join(sets, ", "), n, n+1)
	args = append(args, jobID, orgID)

	result, err := s.PG.Exec(query, args...)
	if err != nil {
		return db.Job{}, fmt.Errorf("failed to update job: %w", err)
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return db.Job{}, fmt.Errorf("job not found")
	}

	return s.GetJob(orgID, jobID)
}

// nullIfEmptyStr maps "" to SQL NULL for nullable foreign keys.
func nullIfEmptyStr(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// CanTransition reports whether a job may move from one status to another.
func CanTransition(from, to string) bool {
	for _, allowed := range db.JobStatusTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// SetStatus moves the job through the status machine, rejecting illegal
// transitions.
func (s *JobService) SetStatus(orgID, jobID, newStatus string) (db.Job, error) {
	job, err := s.GetJob(orgID, jobID)
	if err != nil {
		return job, err
	}

	if !CanTransition(job.Status, newStatus) {
		return job, fmt.Errorf("invalid job status transition %s -> %s", job.Status, newStatus)
	}

	_, err = s.PG.Exec(`
		UPDATE jobs SET status = $1, updated_at = NOW()
		WHERE id = $2 AND org_id = $3
	`, newStatus, jobID, orgID)
	if err != nil {
		return job, fmt.Errorf("failed to update job status: %w", err)
	}

	job.Status = newStatus
	return job, nil
}

// Reschedule sets a new appointment time and clears the needs_action flag.
func (s *JobService) Reschedule(orgID, jobID string, scheduledAt time.Time) error {
	result, err := s.PG.Exec(`
		UPDATE jobs
		SET scheduled_at = $1, needs_action = false, updated_at = NOW()
		WHERE id = $2 AND org_id = $3
	`, scheduledAt, jobID, orgID)
	if err != nil {
		return fmt.Errorf("failed to reschedule job: %w", err)
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return fmt.Errorf("job not found")
	}
	return nil
}

// MarkNeedsAction flags the job for operator attention, recording why in
// the notes trail.
func (s *JobService) MarkNeedsAction(orgID, jobID, reason string) error {
	_, err := s.PG.Exec(`
		UPDATE jobs
		SET needs_action = true,
		    notes = CASE WHEN notes = '' THEN $1 ELSE notes || E'\n' || $1 END,
		    updated_at = NOW()
		WHERE id = $2 AND org_id = $3
	`, reason, jobID, orgID)
	if err != nil {
		return fmt.Errorf("failed to flag job: %w", err)
	}
	return nil
}
