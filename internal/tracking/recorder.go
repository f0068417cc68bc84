package tracking

import (
	"context"
	"fmt"
	"time"

	"github.com/ignite/outreach-engine/internal/pkg/logger"
	"github.com/ignite/outreach-engine/internal/store"
)

// Recorder appends signals to the durable log and triggers a snapshot
// recompute after each one.
type Recorder struct {
	store   *store.Store
	analyze func([]store.Signal) *store.OpenAnalysis
}

// NewRecorder creates a recorder. analyze rebuilds the engagement
// snapshot from a token's full signal history.
func NewRecorder(st *store.Store, analyze func([]store.Signal) *store.OpenAnalysis) *Recorder {
	return &Recorder{store: st, analyze: analyze}
}

// Record scores one incoming signal, appends it, and recomputes the
// token's analysis. Unknown tokens are dropped without error detail to
// the caller.
func (r *Recorder) Record(ctx context.Context, trackingID, signalType, userAgent, ipAddress, referer string) error {
	msg, err := r.store.GetMessageByTrackingID(ctx, trackingID)
	if err != nil {
		return fmt.Errorf("lookup tracking id: %w", err)
	}
	if msg == nil {
		return fmt.Errorf("unknown tracking id %s", trackingID)
	}

	sentAt := msg.CreatedAt
	if msg.SentAt.Valid {
		sentAt = msg.SentAt.Time
	}
	now := time.Now()

	confidence, isPrefetch := SignalConfidence(userAgent, sentAt, now)

	sig := &store.Signal{
		TrackingID:   trackingID,
		SignalType:   signalType,
		Confidence:   confidence,
		IPAddress:    ipAddress,
		UserAgent:    userAgent,
		Referer:      referer,
		DelaySeconds: now.Sub(sentAt).Seconds(),
		IsPrefetch:   isPrefetch,
		RecordedAt:   now,
	}
	if err := r.store.InsertSignal(ctx, sig); err != nil {
		return fmt.Errorf("append signal: %w", err)
	}

	analysis, err := r.store.RecomputeAnalysis(ctx, trackingID, r.analyze)
	if err != nil {
		// The signal is already durable; the next signal or read
		// rebuilds the snapshot from the full log.
		return fmt.Errorf("recompute analysis: %w", err)
	}

	logger.Debug("signal recorded",
		"tracking_id", trackingID,
		"signal_type", signalType,
		"confidence", fmt.Sprintf("%.3f", confidence),
		"score", fmt.Sprintf("%.3f", analysis.ConfidenceScore),
		"opened", analysis.IsOpened)
	return nil
}

// MessageForToken resolves the message behind a token for the
// view-in-browser page.
func (r *Recorder) MessageForToken(ctx context.Context, trackingID string) (*store.Message, error) {
	return r.store.GetMessageByTrackingID(ctx, trackingID)
}
