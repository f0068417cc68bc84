package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// InsertSignal appends one engagement signal to the log. Signals are
// never updated or deleted; analyses are derived from them.
func (s *Store) InsertSignal(ctx context.Context, sig *Signal) error {
	if sig.ID == uuid.Nil {
		sig.ID = uuid.New()
	}
	if sig.RecordedAt.IsZero() {
		sig.RecordedAt = time.Now()
	}

	query := `INSERT INTO outreach_tracking_signals (id, tracking_id, signal_type, confidence,
		ip_address, user_agent, referer, delay_seconds, is_prefetch, recorded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err := s.db.ExecContext(ctx, query, sig.ID, sig.TrackingID, sig.SignalType, sig.Confidence,
		sig.IPAddress, sig.UserAgent, sig.Referer, sig.DelaySeconds, sig.IsPrefetch, sig.RecordedAt)
	return err
}

// ListSignals returns every signal recorded for a tracking token in
// arrival order.
func (s *Store) ListSignals(ctx context.Context, trackingID string) ([]Signal, error) {
	query := `SELECT id, tracking_id, signal_type, confidence, ip_address, user_agent, referer,
		delay_seconds, is_prefetch, recorded_at
		FROM outreach_tracking_signals WHERE tracking_id = $1 ORDER BY recorded_at ASC`

	rows, err := s.db.QueryContext(ctx, query, trackingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanSignals(rows)
}

func scanSignals(rows *sql.Rows) ([]Signal, error) {
	var signals []Signal
	for rows.Next() {
		var sig Signal
		err := rows.Scan(&sig.ID, &sig.TrackingID, &sig.SignalType, &sig.Confidence, &sig.IPAddress,
			&sig.UserAgent, &sig.Referer, &sig.DelaySeconds, &sig.IsPrefetch, &sig.RecordedAt)
		if err != nil {
			return nil, err
		}
		signals = append(signals, sig)
	}
	return signals, rows.Err()
}

// GetAnalysis retrieves the current engagement snapshot for a token.
func (s *Store) GetAnalysis(ctx context.Context, trackingID string) (*OpenAnalysis, error) {
	query := `SELECT tracking_id, total_signals, confidence_score, is_opened, open_method,
		first_signal_at, last_signal_at, unique_ip_count, prefetch_signals, human_signals,
		analysis, updated_at
		FROM outreach_open_analysis WHERE tracking_id = $1`

	a := &OpenAnalysis{}
	err := s.db.QueryRowContext(ctx, query, trackingID).Scan(
		&a.TrackingID, &a.TotalSignals, &a.ConfidenceScore, &a.IsOpened, &a.OpenMethod,
		&a.FirstSignalAt, &a.LastSignalAt, &a.UniqueIPCount, &a.PrefetchSignals, &a.HumanSignals,
		&a.Analysis, &a.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return a, err
}

// RecomputeAnalysis rebuilds the engagement snapshot for a token from
// the full signal log under a row lock, so concurrent signals for the
// same token serialize and the snapshot never reflects a partial read.
// The not-opened to opened transition increments the message open
// counter and the day's aggregate exactly once.
func (s *Store) RecomputeAnalysis(ctx context.Context, trackingID string, analyze func([]Signal) *OpenAnalysis) (*OpenAnalysis, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO outreach_open_analysis (tracking_id, updated_at) VALUES ($1, NOW())
		 ON CONFLICT (tracking_id) DO NOTHING`, trackingID)
	if err != nil {
		return nil, err
	}

	var wasOpened bool
	err = tx.QueryRowContext(ctx,
		`SELECT is_opened FROM outreach_open_analysis WHERE tracking_id = $1 FOR UPDATE`,
		trackingID).Scan(&wasOpened)
	if err != nil {
		return nil, err
	}

	rows, err := tx.QueryContext(ctx,
		`SELECT id, tracking_id, signal_type, confidence, ip_address, user_agent, referer,
		 delay_seconds, is_prefetch, recorded_at
		 FROM outreach_tracking_signals WHERE tracking_id = $1 ORDER BY recorded_at ASC`, trackingID)
	if err != nil {
		return nil, err
	}
	signals, err := scanSignals(rows)
	rows.Close()
	if err != nil {
		return nil, err
	}

	a := analyze(signals)
	a.TrackingID = trackingID
	a.UpdatedAt = time.Now()

	_, err = tx.ExecContext(ctx,
		`UPDATE outreach_open_analysis
		 SET total_signals = $1, confidence_score = $2, is_opened = $3, open_method = $4,
		     first_signal_at = $5, last_signal_at = $6, unique_ip_count = $7,
		     prefetch_signals = $8, human_signals = $9, analysis = $10, updated_at = $11
		 WHERE tracking_id = $12`,
		a.TotalSignals, a.ConfidenceScore, a.IsOpened, a.OpenMethod, a.FirstSignalAt, a.LastSignalAt,
		a.UniqueIPCount, a.PrefetchSignals, a.HumanSignals, a.Analysis, a.UpdatedAt, trackingID)
	if err != nil {
		return nil, err
	}

	if !wasOpened && a.IsOpened {
		_, err = tx.ExecContext(ctx,
			`UPDATE outreach_messages SET opens = opens + 1 WHERE tracking_id = $1`, trackingID)
		if err != nil {
			return nil, err
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO outreach_daily_stats (date, emails_opened) VALUES ($1, 1)
			 ON CONFLICT (date) DO UPDATE SET emails_opened = outreach_daily_stats.emails_opened + 1`,
			a.UpdatedAt.Format("2006-01-02"))
		if err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return a, nil
}
