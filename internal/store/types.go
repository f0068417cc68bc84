package store

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// Enrollment statuses. Transitions are one-way: active is the only state
// that can change, and there is no re-activation path.
const (
	EnrollmentActive    = "active"
	EnrollmentCompleted = "completed"
	EnrollmentStopped   = "stopped"
	EnrollmentReplied   = "replied"
)

// Message statuses
const (
	MessagePending = "pending"
	MessageSent    = "sent"
	MessageFailed  = "failed"
)

// Lead is one outreach contact.
type Lead struct {
	ID        uuid.UUID `json:"id" db:"id"`
	Email     string    `json:"email" db:"email"`
	FirstName string    `json:"first_name" db:"first_name"`
	LastName  string    `json:"last_name" db:"last_name"`
	Company   string    `json:"company" db:"company"`
	Title     string    `json:"title" db:"title"`
	Status    string    `json:"status" db:"status"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// SendingProfile carries the sender identity used in generation prompts
// and From headers, plus the sending-window schedule.
type SendingProfile struct {
	ID            uuid.UUID `json:"id" db:"id"`
	Name          string    `json:"name" db:"name"`
	SenderName    string    `json:"sender_name" db:"sender_name"`
	SenderTitle   string    `json:"sender_title" db:"sender_title"`
	SenderCompany string    `json:"sender_company" db:"sender_company"`
	SenderEmail   string    `json:"sender_email" db:"sender_email"`
	Signature     string    `json:"signature" db:"signature"`
	IsDefault     bool      `json:"is_default" db:"is_default"`

	// Sending window
	ScheduleEnabled bool   `json:"schedule_enabled" db:"schedule_enabled"`
	SendDays        []int  `json:"send_days" db:"send_days"` // ISO weekdays, 1=Monday..7=Sunday
	WindowFrom      string `json:"window_from" db:"window_from"` // "HH:MM"
	WindowTo        string `json:"window_to" db:"window_to"`     // "HH:MM"
	Timezone        string `json:"timezone" db:"timezone"`
}

// Sequence is an ordered drip campaign.
type Sequence struct {
	ID               uuid.UUID     `json:"id" db:"id"`
	Name             string        `json:"name" db:"name"`
	Description      string        `json:"description" db:"description"`
	SendingProfileID uuid.NullUUID `json:"sending_profile_id" db:"sending_profile_id"`
	Status           string        `json:"status" db:"status"`
	CreatedAt        time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time     `json:"updated_at" db:"updated_at"`
}

// Step is one templated message position in a sequence. Once a message
// has been sent from a step, edits only affect future sends.
type Step struct {
	ID           uuid.UUID `json:"id" db:"id"`
	SequenceID   uuid.UUID `json:"sequence_id" db:"sequence_id"`
	StepNumber   int       `json:"step_number" db:"step_number"`
	Name         string    `json:"name" db:"name"`
	Subject      string    `json:"subject" db:"subject"`
	Template     string    `json:"template" db:"template"`
	Prompt       string    `json:"prompt" db:"prompt"`
	DelayDays    int       `json:"delay_days" db:"delay_days"`
	DelayHours   int       `json:"delay_hours" db:"delay_hours"`
	IncludePrior bool      `json:"include_prior" db:"include_prior"`
	IsActive     bool      `json:"is_active" db:"is_active"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

// Delay returns the step's offset from the previous send.
func (s Step) Delay() time.Duration {
	return time.Duration(s.DelayDays)*24*time.Hour + time.Duration(s.DelayHours)*time.Hour
}

// Enrollment is one lead's progress record within one sequence.
// Invariant: NextSendAt is non-null iff Status is active and a future
// step exists.
type Enrollment struct {
	ID          uuid.UUID      `json:"id" db:"id"`
	LeadID      uuid.UUID      `json:"lead_id" db:"lead_id"`
	SequenceID  uuid.UUID      `json:"sequence_id" db:"sequence_id"`
	CurrentStep int            `json:"current_step" db:"current_step"`
	Status      string         `json:"status" db:"status"`
	StartedAt   time.Time      `json:"started_at" db:"started_at"`
	LastSentAt  sql.NullTime   `json:"last_sent_at" db:"last_sent_at"`
	NextSendAt  sql.NullTime   `json:"next_send_at" db:"next_send_at"`
	CompletedAt sql.NullTime   `json:"completed_at" db:"completed_at"`
	StopReason  sql.NullString `json:"stop_reason" db:"stop_reason"`
	CreatedAt   time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at" db:"updated_at"`
}

// Message is one dispatched (or attempted) email for an enrollment step.
// Immutable after dispatch except for the Opens/Clicks counters.
type Message struct {
	ID           uuid.UUID    `json:"id" db:"id"`
	EnrollmentID uuid.UUID    `json:"enrollment_id" db:"enrollment_id"`
	StepID       uuid.UUID    `json:"step_id" db:"step_id"`
	TrackingID   string       `json:"tracking_id" db:"tracking_id"`
	Status       string       `json:"status" db:"status"`
	Subject      string       `json:"subject" db:"subject"`
	Content      string       `json:"content" db:"content"`
	ScreenScore  float64      `json:"screen_score" db:"screen_score"`
	SentAt       sql.NullTime `json:"sent_at" db:"sent_at"`
	Opens        int          `json:"opens" db:"opens"`
	Clicks       int          `json:"clicks" db:"clicks"`
	CreatedAt    time.Time    `json:"created_at" db:"created_at"`
}

// Reply records an inbound reply detected for a lead/sequence pair.
// Its existence stops the enrollment before any further dispatch.
type Reply struct {
	ID         uuid.UUID `json:"id" db:"id"`
	LeadID     uuid.UUID `json:"lead_id" db:"lead_id"`
	SequenceID uuid.UUID `json:"sequence_id" db:"sequence_id"`
	MessageID  string    `json:"message_id" db:"message_id"`
	Content    string    `json:"content" db:"content"`
	RepliedAt  time.Time `json:"replied_at" db:"replied_at"`
}

// Signal is one observed engagement event for a tracking token.
// Append-only: signals are never mutated or deleted.
type Signal struct {
	ID           uuid.UUID `json:"id" db:"id"`
	TrackingID   string    `json:"tracking_id" db:"tracking_id"`
	SignalType   string    `json:"signal_type" db:"signal_type"`
	Confidence   float64   `json:"confidence" db:"confidence"`
	IPAddress    string    `json:"ip_address" db:"ip_address"`
	UserAgent    string    `json:"user_agent" db:"user_agent"`
	Referer      string    `json:"referer" db:"referer"`
	DelaySeconds float64   `json:"delay_seconds" db:"delay_seconds"`
	IsPrefetch   bool      `json:"is_prefetch" db:"is_prefetch"`
	RecordedAt   time.Time `json:"recorded_at" db:"recorded_at"`
}

// OpenAnalysis is the derived engagement snapshot for one tracking token.
// Recomputed idempotently from the signal log; overwrites the prior row.
type OpenAnalysis struct {
	TrackingID      string       `json:"tracking_id" db:"tracking_id"`
	TotalSignals    int          `json:"total_signals" db:"total_signals"`
	ConfidenceScore float64      `json:"confidence_score" db:"confidence_score"`
	IsOpened        bool         `json:"is_opened" db:"is_opened"`
	OpenMethod      string       `json:"open_method" db:"open_method"`
	FirstSignalAt   sql.NullTime `json:"first_signal_at" db:"first_signal_at"`
	LastSignalAt    sql.NullTime `json:"last_signal_at" db:"last_signal_at"`
	UniqueIPCount   int          `json:"unique_ip_count" db:"unique_ip_count"`
	PrefetchSignals int          `json:"prefetch_signals" db:"prefetch_signals"`
	HumanSignals    int          `json:"human_signals" db:"human_signals"`
	Analysis        string       `json:"analysis" db:"analysis"`
	UpdatedAt       time.Time    `json:"updated_at" db:"updated_at"`
}

// DailyStats is the per-calendar-date send/open/click aggregate. The
// emails_sent column is the Daily Quota Counter the scheduler reads.
type DailyStats struct {
	Date          time.Time `json:"date" db:"date"`
	EmailsSent    int       `json:"emails_sent" db:"emails_sent"`
	EmailsOpened  int       `json:"emails_opened" db:"emails_opened"`
	EmailsClicked int       `json:"emails_clicked" db:"emails_clicked"`
}

// PriorMessage is a (subject, content) pair from an earlier step of the
// same enrollment, used as generation context.
type PriorMessage struct {
	Subject string `json:"subject"`
	Content string `json:"content"`
}
