package store

import (
	"context"
	"database/sql"
	"time"
)

// EmailsSentToday reads the durable quota counter for the given day.
// Only committed successful sends are counted, so a worker restart
// mid-batch never loses or double-counts quota.
func (s *Store) EmailsSentToday(ctx context.Context, now time.Time) (int, error) {
	query := `SELECT emails_sent FROM outreach_daily_stats WHERE date = $1`

	var sent int
	err := s.db.QueryRowContext(ctx, query, now.Format("2006-01-02")).Scan(&sent)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	return sent, err
}

// GetDailyStats returns the aggregate row for one day, zeroed when the
// day has no activity yet.
func (s *Store) GetDailyStats(ctx context.Context, day time.Time) (*DailyStats, error) {
	query := `SELECT date, emails_sent, emails_opened, emails_clicked
		FROM outreach_daily_stats WHERE date = $1`

	ds := &DailyStats{}
	err := s.db.QueryRowContext(ctx, query, day.Format("2006-01-02")).Scan(
		&ds.Date, &ds.EmailsSent, &ds.EmailsOpened, &ds.EmailsClicked)
	if err == sql.ErrNoRows {
		return &DailyStats{Date: day}, nil
	}
	return ds, err
}
