package services

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/callrescue/callrescue/db"
)

// LeadService owns lead lifecycle: creation from call events, status moves,
// snoozes and the append-only note trail.
type LeadService struct {
	PG *sql.DB
}

func NewLeadService(pg *sql.DB) *LeadService {
	return &LeadService{PG: pg}
}

// CreateLead inserts a new lead. Status defaults to callback_requested and
// priority to green when the caller doesn't choose one.
func (s *LeadService) CreateLead(orgID string, req db.CreateLeadRequest) (db.Lead, error) {
	lead := db.Lead{
		ID:        uuid.New().String(),
		OrgID:     orgID,
		Name:      req.Name,
		Phone:     req.Phone,
		Status:    req.Status,
		Priority:  db.LeadPriorityGreen,
		Source:    req.Source,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	if lead.Status == "" {
		lead.Status = db.LeadStatusCallbackRequested
	}
	if lead.Name == "" {
		lead.Name = "Unknown caller"
	}

	_, err := s.PG.Exec(`
		INSERT INTO leads (id, org_id, name, phone, status, priority, source, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, lead.ID, lead.OrgID, lead.Name, lead.Phone, lead.Status, lead.Priority,
		lead.Source, lead.CreatedAt, lead.UpdatedAt)
	if err != nil {
		return lead, fmt.Errorf("failed to create lead: %w", err)
	}

	return lead, nil
}

// GetLead returns one lead scoped to the org.
func (s *LeadService) GetLead(orgID, leadID string) (db.Lead, error) {
	var lead db.Lead
	var priorityReason, callbackOutcome, source sql.NullString
	var remindAt sql.NullTime

	err := s.PG.QueryRow(`
		SELECT id, org_id, name, phone, status, priority, priority_reason,
		       remind_at, callback_outcome, source, created_at, updated_at
		FROM leads
		WHERE id = $1 AND org_id = $2
	`, leadID, orgID).Scan(
		&lead.ID, &lead.OrgID, &lead.Name, &lead.Phone, &lead.Status,
		&lead.Priority, &priorityReason, &remindAt, &callbackOutcome,
		&source, &lead.CreatedAt, &lead.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return lead, fmt.Errorf("lead not found")
		}
		return lead, fmt.Errorf("failed to get lead: %w", err)
	}

	lead.PriorityReason = priorityReason.String
	lead.CallbackOutcome = callbackOutcome.String
	lead.Source = source.String
	if remindAt.Valid {
		lead.RemindAt = &remindAt.Time
	}

	return lead, nil
}

// ListLeads returns the org's leads, newest first. Active-only excludes
// terminal statuses and leads snoozed into the future.
func (s *LeadService) ListLeads(orgID string, activeOnly bool) ([]db.Lead, error) {
	query := `
		SELECT id, org_id, name, phone, status, priority, priority_reason,
		       remind_at, callback_outcome, source, created_at, updated_at
		FROM leads
		WHERE org_id = $1
	`
	if activeOnly {
		query += `
		AND status NOT IN ('converted', 'lost')
		AND (remind_at IS NULL OR remind_at <= NOW())
		`
	}
	query += " ORDER BY created_at DESC"

	rows, err := s.PG.Query(query, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to list leads: %w", err)
	}
	defer rows.Close()

	leads := []db.Lead{}
	for rows.Next() {
		var lead db.Lead
		var priorityReason, callbackOutcome, source sql.NullString
		var remindAt sql.NullTime
		if err := rows.Scan(
			&lead.ID, &lead.OrgID, &lead.Name, &lead.Phone, &lead.Status,
			&lead.Priority, &priorityReason, &remindAt, &callbackOutcome,
			&source, &lead.CreatedAt, &lead.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan lead: %w", err)
		}
		lead.PriorityReason = priorityReason.String
		lead.CallbackOutcome = callbackOutcome.String
		lead.Source = source.String
		if remindAt.Valid {
			lead.RemindAt = &remindAt.Time
		}
		leads = append(leads, lead)
	}

	return leads, rows.Err()
}

// UpdateLead applies a partial update from the dashboard.
func (s *LeadService) UpdateLead(orgID, leadID string, req db.UpdateLeadRequest) (db.Lead, error) {
	sets := []string{"updated_at = NOW()"}
	args := []interface{}{}
	n := 1

	addSet := func(col string, val interface{}) {
		sets = append(sets, fmt.Sprintf("%s = $%d", col, n))
		args = append(args, val)
		n++
	}

	if req.Name != nil {
		addSet("name", *req.Name)
	}
	if req.Status != nil {
		addSet("status", *req.Status)
	}
	if req.Priority != nil {
		addSet("priority", *req.Priority)
	}
	if req.PriorityReason != nil {
		addSet("priority_reason", *req.PriorityReason)
	}
	if req.CallbackOutcome != nil {
		addSet("callback_outcome", *req.CallbackOutcome)
	}

	query := fmt.Sprintf("UPDATE leads SET %s WHERE id = $%d AND org_id = $%d",
		strings.Join(sets, ", "), n, n+1)
	args = append(args, leadID, orgID)

	result, err := s.PG.Exec(query, args...)
	if err != nil {
		return db.Lead{}, fmt.Errorf("failed to update lead: %w", err)
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return db.Lead{}, fmt.Errorf("lead not found")
	}

	return s.GetLead(orgID, leadID)
}

// SetStatus moves the lead to a new status and records the outcome text.
func (s *LeadService) SetStatus(orgID, leadID, status, outcome string) error {
	result, err := s.PG.Exec(`
		UPDATE leads
		SET status = $1, callback_outcome = $2, updated_at = NOW()
		WHERE id = $3 AND org_id = $4
	`, status, outcome, leadID, orgID)
	if err != nil {
		return fmt.Errorf("failed to set lead status: %w", err)
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return fmt.Errorf("lead not found")
	}
	return nil
}

// Snooze hides the lead from active views until remindAt.
func (s *LeadService) Snooze(orgID, leadID string, remindAt time.Time, outcome string) error {
	result, err := s.PG.Exec(`
		UPDATE leads
		SET remind_at = $1, callback_outcome = $2, updated_at = NOW()
		WHERE id = $3 AND org_id = $4
	`, remindAt, outcome, leadID, orgID)
	if err != nil {
		return fmt.Errorf("failed to snooze lead: %w", err)
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return fmt.Errorf("lead not found")
	}
	return nil
}

// FlagPriority sets the lead's priority color with a reason. Used by the
// escalation sweep and the dashboard.
func (s *LeadService) FlagPriority(orgID, leadID, priority, reason string) error {
	_, err := s.PG.Exec(`
		UPDATE leads
		SET priority = $1, priority_reason = $2, updated_at = NOW()
		WHERE id = $3 AND org_id = $4
	`, priority, reason, leadID, orgID)
	if err != nil {
		return fmt.Errorf("failed to flag lead priority: %w", err)
	}
	return nil
}

// AddNote appends an audit note to the lead.
func (s *LeadService) AddNote(leadID, body, author string) (db.LeadNote, error) {
	note := db.LeadNote{
		ID:        uuid.New().String(),
		LeadID:    leadID,
		Body:      body,
		Author:    author,
		CreatedAt: time.Now(),
	}
	_, err := s.PG.Exec(`
		INSERT INTO lead_notes (id, lead_id, body, author, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, note.ID, note.LeadID, note.Body, note.Author, note.CreatedAt)
	if err != nil {
		return note, fmt.Errorf("failed to add lead note: %w", err)
	}
	return note, nil
}

// ListNotes returns the lead's notes, newest first.
func (s *LeadService) ListNotes(leadID string) ([]db.LeadNote, error) {
	rows, err := s.PG.Query(`
		SELECT id, lead_id, body, author, created_at
		FROM lead_notes
		WHERE lead_id = $1
		ORDER BY created_at DESC
	`, leadID)
	if err != nil {
		return nil, fmt.Errorf("failed to list lead notes: %w", err)
	}
	defer rows.Close()

	notes := []db.LeadNote{}
	for rows.Next() {
		var note db.LeadNote
		if err := rows.Scan(&note.ID, &note.LeadID, &note.Body, &note.Author, &note.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan lead note: %w", err)
		}
		notes = append(notes, note)
	}

	return notes, rows.Err()
}
