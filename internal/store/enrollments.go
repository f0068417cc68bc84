package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// EnrollLead creates an active enrollment at step 1, due immediately.
// A partial unique index guarantees at most one active enrollment per
// lead and sequence; a violation surfaces as ErrAlreadyEnrolled.
func (s *Store) EnrollLead(ctx context.Context, leadID, sequenceID uuid.UUID) (*Enrollment, error) {
	now := time.Now()
	e := &Enrollment{
		ID:          uuid.New(),
		LeadID:      leadID,
		SequenceID:  sequenceID,
		CurrentStep: 1,
		Status:      EnrollmentActive,
		StartedAt:   now,
		NextSendAt:  sql.NullTime{Time: now, Valid: true},
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	query := `INSERT INTO outreach_enrollments (id, lead_id, sequence_id, current_step, status,
		started_at, next_send_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := s.db.ExecContext(ctx, query, e.ID, e.LeadID, e.SequenceID, e.CurrentStep, e.Status,
		e.StartedAt, e.NextSendAt, e.CreatedAt, e.UpdatedAt)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return nil, ErrAlreadyEnrolled
		}
		return nil, err
	}
	return e, nil
}

// GetEnrollment retrieves an enrollment by ID
func (s *Store) GetEnrollment(ctx context.Context, id uuid.UUID) (*Enrollment, error) {
	query := `SELECT id, lead_id, sequence_id, current_step, status, started_at, last_sent_at,
		next_send_at, completed_at, stop_reason, created_at, updated_at
		FROM outreach_enrollments WHERE id = $1`

	e := &Enrollment{}
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&e.ID, &e.LeadID, &e.SequenceID, &e.CurrentStep, &e.Status, &e.StartedAt, &e.LastSentAt,
		&e.NextSendAt, &e.CompletedAt, &e.StopReason, &e.CreatedAt, &e.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return e, err
}

// ListDueEnrollments returns active enrollments whose next send time has
// arrived, oldest first so the longest-waiting leads go out first when
// the daily quota caps the batch.
func (s *Store) ListDueEnrollments(ctx context.Context, now time.Time, limit int) ([]*Enrollment, error) {
	query := `SELECT id, lead_id, sequence_id, current_step, status, started_at, last_sent_at,
		next_send_at, completed_at, stop_reason, created_at, updated_at
		FROM outreach_enrollments
		WHERE status = $1 AND next_send_at IS NOT NULL AND next_send_at <= $2
		ORDER BY next_send_at ASC
		LIMIT $3`

	rows, err := s.db.QueryContext(ctx, query, EnrollmentActive, now, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var due []*Enrollment
	for rows.Next() {
		e := &Enrollment{}
		err := rows.Scan(&e.ID, &e.LeadID, &e.SequenceID, &e.CurrentStep, &e.Status, &e.StartedAt,
			&e.LastSentAt, &e.NextSendAt, &e.CompletedAt, &e.StopReason, &e.CreatedAt, &e.UpdatedAt)
		if err != nil {
			return nil, err
		}
		due = append(due, e)
	}
	return due, rows.Err()
}

// StopEnrollment halts an active enrollment with a reason. Stopped
// enrollments never resume.
func (s *Store) StopEnrollment(ctx context.Context, id uuid.UUID, status, reason string) error {
	query := `UPDATE outreach_enrollments
		SET status = $1, stop_reason = $2, next_send_at = NULL, updated_at = NOW()
		WHERE id = $3 AND status = $4`

	_, err := s.db.ExecContext(ctx, query, status, reason, id, EnrollmentActive)
	return err
}

// HasReply reports whether any reply from the lead has been recorded
// against the sequence.
func (s *Store) HasReply(ctx context.Context, leadID, sequenceID uuid.UUID) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM outreach_replies WHERE lead_id = $1 AND sequence_id = $2)`

	var exists bool
	err := s.db.QueryRowContext(ctx, query, leadID, sequenceID).Scan(&exists)
	return exists, err
}

// RecordReply stores an inbound reply and moves the lead's active
// enrollment in that sequence to the replied state.
func (s *Store) RecordReply(ctx context.Context, r *Reply) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	if r.RepliedAt.IsZero() {
		r.RepliedAt = time.Now()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO outreach_replies (id, lead_id, sequence_id, message_id, content, replied_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		r.ID, r.LeadID, r.SequenceID, r.MessageID, r.Content, r.RepliedAt)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE outreach_enrollments
		 SET status = $1, stop_reason = 'replied', next_send_at = NULL, updated_at = NOW()
		 WHERE lead_id = $2 AND sequence_id = $3 AND status = $4`,
		EnrollmentReplied, r.LeadID, r.SequenceID, EnrollmentActive)
	if err != nil {
		return err
	}
	return tx.Commit()
}
