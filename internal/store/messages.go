package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// CreateMessage records a pending message before dispatch is attempted.
func (s *Store) CreateMessage(ctx context.Context, m *Message) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	m.CreatedAt = time.Now()
	if m.Status == "" {
		m.Status = MessagePending
	}

	query := `INSERT INTO outreach_messages (id, enrollment_id, step_id, tracking_id, status, subject,
		content, screen_score, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := s.db.ExecContext(ctx, query, m.ID, m.EnrollmentID, m.StepID, m.TrackingID, m.Status,
		m.Subject, m.Content, m.ScreenScore, m.CreatedAt)
	return err
}

// DispatchCommit captures everything that must land atomically after a
// send succeeds: the message flips to sent, the enrollment advances (or
// completes), and the day's quota counter moves. If any part fails the
// whole commit rolls back so the quota never counts an unadvanced send.
type DispatchCommit struct {
	MessageID    uuid.UUID
	EnrollmentID uuid.UUID
	SentAt       time.Time

	// NextStep is the advanced step position, recorded even when the
	// enrollment completes. When Completed is set NextSendAt is ignored.
	NextStep   int
	NextSendAt time.Time
	Completed  bool
}

// CommitDispatch applies a successful send in one transaction.
func (s *Store) CommitDispatch(ctx context.Context, c DispatchCommit) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`UPDATE outreach_messages SET status = $1, sent_at = $2 WHERE id = $3`,
		MessageSent, c.SentAt, c.MessageID)
	if err != nil {
		return err
	}

	if c.Completed {
		_, err = tx.ExecContext(ctx,
			`UPDATE outreach_enrollments
			 SET status = $1, current_step = $2, last_sent_at = $3, next_send_at = NULL, completed_at = $3, updated_at = NOW()
			 WHERE id = $4`,
			EnrollmentCompleted, c.NextStep, c.SentAt, c.EnrollmentID)
	} else {
		_, err = tx.ExecContext(ctx,
			`UPDATE outreach_enrollments
			 SET current_step = $1, last_sent_at = $2, next_send_at = $3, updated_at = NOW()
			 WHERE id = $4`,
			c.NextStep, c.SentAt, c.NextSendAt, c.EnrollmentID)
	}
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO outreach_daily_stats (date, emails_sent) VALUES ($1, 1)
		 ON CONFLICT (date) DO UPDATE SET emails_sent = outreach_daily_stats.emails_sent + 1`,
		c.SentAt.Format("2006-01-02"))
	if err != nil {
		return err
	}
	return tx.Commit()
}

// MarkMessageFailed records a dispatch failure. The enrollment is left
// untouched so the next batch retries the same step.
func (s *Store) MarkMessageFailed(ctx context.Context, messageID uuid.UUID, reason string) error {
	query := `UPDATE outreach_messages SET status = $1, failure_reason = $2 WHERE id = $3`
	_, err := s.db.ExecContext(ctx, query, MessageFailed, reason, messageID)
	return err
}

// PriorMessages returns the sent messages of an enrollment in step
// order, used as context for later-step generation.
func (s *Store) PriorMessages(ctx context.Context, enrollmentID uuid.UUID) ([]PriorMessage, error) {
	query := `SELECT subject, content FROM outreach_messages
		WHERE enrollment_id = $1 AND status = $2 ORDER BY sent_at ASC`

	rows, err := s.db.QueryContext(ctx, query, enrollmentID, MessageSent)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var prior []PriorMessage
	for rows.Next() {
		var pm PriorMessage
		if err := rows.Scan(&pm.Subject, &pm.Content); err != nil {
			return nil, err
		}
		prior = append(prior, pm)
	}
	return prior, rows.Err()
}

// GetMessageByTrackingID retrieves the message a tracking token points at.
func (s *Store) GetMessageByTrackingID(ctx context.Context, trackingID string) (*Message, error) {
	query := `SELECT id, enrollment_id, step_id, tracking_id, status, subject, content, screen_score,
		sent_at, opens, clicks, created_at
		FROM outreach_messages WHERE tracking_id = $1`

	m := &Message{}
	err := s.db.QueryRowContext(ctx, query, trackingID).Scan(
		&m.ID, &m.EnrollmentID, &m.StepID, &m.TrackingID, &m.Status, &m.Subject, &m.Content,
		&m.ScreenScore, &m.SentAt, &m.Opens, &m.Clicks, &m.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return m, err
}

// RecordClick bumps the message click counter and the day's aggregate.
func (s *Store) RecordClick(ctx context.Context, trackingID string, at time.Time) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`UPDATE outreach_messages SET clicks = clicks + 1 WHERE tracking_id = $1`, trackingID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO outreach_daily_stats (date, emails_clicked) VALUES ($1, 1)
		 ON CONFLICT (date) DO UPDATE SET emails_clicked = outreach_daily_stats.emails_clicked + 1`,
		at.Format("2006-01-02"))
	if err != nil {
		return err
	}
	return tx.Commit()
}
