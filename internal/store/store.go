package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// ErrAlreadyEnrolled is returned when a lead already has an active
// enrollment in the target sequence.
var ErrAlreadyEnrolled = errors.New("lead already actively enrolled in sequence")

// Store provides database operations for outreach entities
type Store struct {
	db *sql.DB
}

// NewStore creates a new outreach store
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// DB exposes the underlying handle for health checks.
func (s *Store) DB() *sql.DB {
	return s.db
}

// CreateLead creates a new lead
func (s *Store) CreateLead(ctx context.Context, lead *Lead) error {
	if lead.ID == uuid.Nil {
		lead.ID = uuid.New()
	}
	lead.CreatedAt = time.Now()
	lead.UpdatedAt = time.Now()
	if lead.Status == "" {
		lead.Status = "active"
	}

	query := `INSERT INTO outreach_leads (id, email, first_name, last_name, company, title, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := s.db.ExecContext(ctx, query, lead.ID, lead.Email, lead.FirstName, lead.LastName,
		lead.Company, lead.Title, lead.Status, lead.CreatedAt, lead.UpdatedAt)
	return err
}

// GetLead retrieves a lead by ID
func (s *Store) GetLead(ctx context.Context, leadID uuid.UUID) (*Lead, error) {
	query := `SELECT id, email, first_name, last_name, company, title, status, created_at, updated_at
		FROM outreach_leads WHERE id = $1`

	lead := &Lead{}
	err := s.db.QueryRowContext(ctx, query, leadID).Scan(
		&lead.ID, &lead.Email, &lead.FirstName, &lead.LastName,
		&lead.Company, &lead.Title, &lead.Status, &lead.CreatedAt, &lead.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return lead, err
}

// GetLeadByEmail retrieves a lead by email address
func (s *Store) GetLeadByEmail(ctx context.Context, email string) (*Lead, error) {
	query := `SELECT id, email, first_name, last_name, company, title, status, created_at, updated_at
		FROM outreach_leads WHERE LOWER(email) = LOWER($1)`

	lead := &Lead{}
	err := s.db.QueryRowContext(ctx, query, email).Scan(
		&lead.ID, &lead.Email, &lead.FirstName, &lead.LastName,
		&lead.Company, &lead.Title, &lead.Status, &lead.CreatedAt, &lead.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return lead, err
}

// UnsubscribeLead marks a lead unsubscribed and stops its active
// enrollments so no further steps dispatch.
func (s *Store) UnsubscribeLead(ctx context.Context, leadID uuid.UUID) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`UPDATE outreach_leads SET status = 'unsubscribed', updated_at = NOW() WHERE id = $1`, leadID)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx,
		`UPDATE outreach_enrollments SET status = $1, stop_reason = 'unsubscribed', next_send_at = NULL, updated_at = NOW()
		 WHERE lead_id = $2 AND status = $3`, EnrollmentStopped, leadID, EnrollmentActive)
	if err != nil {
		return err
	}
	return tx.Commit()
}

// CreateSendingProfile creates a new sending profile
func (s *Store) CreateSendingProfile(ctx context.Context, p *SendingProfile) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.Timezone == "" {
		p.Timezone = "UTC"
	}

	query := `INSERT INTO outreach_sending_profiles (id, name, sender_name, sender_title, sender_company,
		sender_email, signature, is_default, schedule_enabled, send_days, window_from, window_to, timezone)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	_, err := s.db.ExecContext(ctx, query, p.ID, p.Name, p.SenderName, p.SenderTitle, p.SenderCompany,
		p.SenderEmail, p.Signature, p.IsDefault, p.ScheduleEnabled, pq.Array(p.SendDays),
		p.WindowFrom, p.WindowTo, p.Timezone)
	return err
}

// GetSendingProfile retrieves a sending profile by ID
func (s *Store) GetSendingProfile(ctx context.Context, id uuid.UUID) (*SendingProfile, error) {
	query := `SELECT id, name, sender_name, sender_title, sender_company, sender_email, signature,
		is_default, schedule_enabled, send_days, window_from, window_to, timezone
		FROM outreach_sending_profiles WHERE id = $1`
	return s.scanProfile(s.db.QueryRowContext(ctx, query, id))
}

// GetDefaultSendingProfile retrieves the profile used when a sequence
// has none assigned.
func (s *Store) GetDefaultSendingProfile(ctx context.Context) (*SendingProfile, error) {
	query := `SELECT id, name, sender_name, sender_title, sender_company, sender_email, signature,
		is_default, schedule_enabled, send_days, window_from, window_to, timezone
		FROM outreach_sending_profiles WHERE is_default = TRUE LIMIT 1`
	return s.scanProfile(s.db.QueryRowContext(ctx, query))
}

func (s *Store) scanProfile(row *sql.Row) (*SendingProfile, error) {
	p := &SendingProfile{}
	var days pq.Int64Array
	err := row.Scan(&p.ID, &p.Name, &p.SenderName, &p.SenderTitle, &p.SenderCompany,
		&p.SenderEmail, &p.Signature, &p.IsDefault, &p.ScheduleEnabled, &days,
		&p.WindowFrom, &p.WindowTo, &p.Timezone)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	p.SendDays = make([]int, len(days))
	for i, d := range days {
		p.SendDays[i] = int(d)
	}
	return p, nil
}

// CreateSequence creates a new sequence
func (s *Store) CreateSequence(ctx context.Context, seq *Sequence) error {
	if seq.ID == uuid.Nil {
		seq.ID = uuid.New()
	}
	seq.CreatedAt = time.Now()
	seq.UpdatedAt = time.Now()
	if seq.Status == "" {
		seq.Status = "active"
	}

	query := `INSERT INTO outreach_sequences (id, name, description, sending_profile_id, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := s.db.ExecContext(ctx, query, seq.ID, seq.Name, seq.Description,
		seq.SendingProfileID, seq.Status, seq.CreatedAt, seq.UpdatedAt)
	return err
}

// GetSequence retrieves a sequence by ID
func (s *Store) GetSequence(ctx context.Context, id uuid.UUID) (*Sequence, error) {
	query := `SELECT id, name, description, sending_profile_id, status, created_at, updated_at
		FROM outreach_sequences WHERE id = $1`

	seq := &Sequence{}
	err := s.db.QueryRowContext(ctx, query, id).Scan(&seq.ID, &seq.Name, &seq.Description,
		&seq.SendingProfileID, &seq.Status, &seq.CreatedAt, &seq.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return seq, err
}

// CreateStep creates a new sequence step
func (s *Store) CreateStep(ctx context.Context, st *Step) error {
	if st.ID == uuid.Nil {
		st.ID = uuid.New()
	}
	st.CreatedAt = time.Now()

	query := `INSERT INTO outreach_sequence_steps (id, sequence_id, step_number, name, subject, template,
		prompt, delay_days, delay_hours, include_prior, is_active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	_, err := s.db.ExecContext(ctx, query, st.ID, st.SequenceID, st.StepNumber, st.Name, st.Subject,
		st.Template, st.Prompt, st.DelayDays, st.DelayHours, st.IncludePrior, st.IsActive, st.CreatedAt)
	return err
}

// GetStep retrieves one step of a sequence by position
func (s *Store) GetStep(ctx context.Context, sequenceID uuid.UUID, stepNumber int) (*Step, error) {
	query := `SELECT id, sequence_id, step_number, name, subject, template, prompt, delay_days,
		delay_hours, include_prior, is_active, created_at
		FROM outreach_sequence_steps WHERE sequence_id = $1 AND step_number = $2`

	st := &Step{}
	err := s.db.QueryRowContext(ctx, query, sequenceID, stepNumber).Scan(
		&st.ID, &st.SequenceID, &st.StepNumber, &st.Name, &st.Subject, &st.Template, &st.Prompt,
		&st.DelayDays, &st.DelayHours, &st.IncludePrior, &st.IsActive, &st.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return st, err
}

// ListSteps retrieves all steps of a sequence in order
func (s *Store) ListSteps(ctx context.Context, sequenceID uuid.UUID) ([]*Step, error) {
	query := `SELECT id, sequence_id, step_number, name, subject, template, prompt, delay_days,
		delay_hours, include_prior, is_active, created_at
		FROM outreach_sequence_steps WHERE sequence_id = $1 ORDER BY step_number ASC`

	rows, err := s.db.QueryContext(ctx, query, sequenceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var steps []*Step
	for rows.Next() {
		st := &Step{}
		err := rows.Scan(&st.ID, &st.SequenceID, &st.StepNumber, &st.Name, &st.Subject, &st.Template,
			&st.Prompt, &st.DelayDays, &st.DelayHours, &st.IncludePrior, &st.IsActive, &st.CreatedAt)
		if err != nil {
			return nil, err
		}
		steps = append(steps, st)
	}
	return steps, rows.Err()
}
