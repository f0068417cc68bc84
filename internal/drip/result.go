// Package drip runs the batch scheduler that walks active enrollments
// through their sequence steps.
package drip

import (
	"github.com/google/uuid"
)

// Item outcomes
const (
	OutcomeSent    = "sent"
	OutcomeSkipped = "skipped"
	OutcomeFailed  = "failed"
)

// Skip reasons
const (
	SkipStepInactive  = "step_inactive"
	SkipLeadInactive  = "lead_inactive"
	SkipReplied       = "replied"
	SkipOutsideWindow = "outside_window"
	SkipScreenedOut   = "screened_out"
)

// ItemResult is the outcome of one enrollment in a batch. Exactly one
// of Reason and Err is meaningful: skipped items carry a reason, failed
// items carry an error, sent items neither.
type ItemResult struct {
	EnrollmentID uuid.UUID
	Outcome      string
	Reason       string
	Err          error
}

func sent(id uuid.UUID) ItemResult {
	return ItemResult{EnrollmentID: id, Outcome: OutcomeSent}
}

func skipped(id uuid.UUID, reason string) ItemResult {
	return ItemResult{EnrollmentID: id, Outcome: OutcomeSkipped, Reason: reason}
}

func failed(id uuid.UUID, err error) ItemResult {
	return ItemResult{EnrollmentID: id, Outcome: OutcomeFailed, Err: err}
}

// BatchResult summarizes one scheduler pass.
type BatchResult struct {
	Ran     bool
	Reason  string
	Items   []ItemResult
	Sent    int
	Skipped int
	Failed  int
}

func (b *BatchResult) add(item ItemResult) {
	b.Items = append(b.Items, item)
	switch item.Outcome {
	case OutcomeSent:
		b.Sent++
	case OutcomeSkipped:
		b.Skipped++
	case OutcomeFailed:
		b.Failed++
	}
}
