package store

import "context"

// Migrate creates the outreach schema if it does not exist. Safe to run
// at every startup.
func (s *Store) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS outreach_leads (
			id UUID PRIMARY KEY,
			email VARCHAR(255) NOT NULL UNIQUE,
			first_name VARCHAR(255) DEFAULT '',
			last_name VARCHAR(255) DEFAULT '',
			company VARCHAR(255) DEFAULT '',
			title VARCHAR(255) DEFAULT '',
			status VARCHAR(50) DEFAULT 'active',
			created_at TIMESTAMPTZ DEFAULT NOW(),
			updated_at TIMESTAMPTZ DEFAULT NOW()
		);

		CREATE TABLE IF NOT EXISTS outreach_sending_profiles (
			id UUID PRIMARY KEY,
			name VARCHAR(255) NOT NULL,
			sender_name VARCHAR(255) DEFAULT '',
			sender_title VARCHAR(255) DEFAULT '',
			sender_company VARCHAR(255) DEFAULT '',
			sender_email VARCHAR(255) NOT NULL,
			signature TEXT DEFAULT '',
			is_default BOOLEAN DEFAULT FALSE,
			schedule_enabled BOOLEAN DEFAULT FALSE,
			send_days INTEGER[] DEFAULT '{1,2,3,4,5}',
			window_from VARCHAR(5) DEFAULT '09:00',
			window_to VARCHAR(5) DEFAULT '17:00',
			timezone VARCHAR(64) DEFAULT 'UTC'
		);

		CREATE TABLE IF NOT EXISTS outreach_sequences (
			id UUID PRIMARY KEY,
			name VARCHAR(255) NOT NULL,
			description TEXT DEFAULT '',
			sending_profile_id UUID REFERENCES outreach_sending_profiles(id),
			status VARCHAR(50) DEFAULT 'active',
			created_at TIMESTAMPTZ DEFAULT NOW(),
			updated_at TIMESTAMPTZ DEFAULT NOW()
		);

		CREATE TABLE IF NOT EXISTS outreach_sequence_steps (
			id UUID PRIMARY KEY,
			sequence_id UUID NOT NULL REFERENCES outreach_sequences(id),
			step_number INTEGER NOT NULL,
			name VARCHAR(255) DEFAULT '',
			subject VARCHAR(500) DEFAULT '',
			template TEXT DEFAULT '',
			prompt TEXT DEFAULT '',
			delay_days INTEGER DEFAULT 0,
			delay_hours INTEGER DEFAULT 0,
			include_prior BOOLEAN DEFAULT TRUE,
			is_active BOOLEAN DEFAULT TRUE,
			created_at TIMESTAMPTZ DEFAULT NOW(),
			UNIQUE(sequence_id, step_number)
		);

		CREATE TABLE IF NOT EXISTS outreach_enrollments (
			id UUID PRIMARY KEY,
			lead_id UUID NOT NULL REFERENCES outreach_leads(id),
			sequence_id UUID NOT NULL REFERENCES outreach_sequences(id),
			current_step INTEGER DEFAULT 1,
			status VARCHAR(50) DEFAULT 'active',
			started_at TIMESTAMPTZ DEFAULT NOW(),
			last_sent_at TIMESTAMPTZ,
			next_send_at TIMESTAMPTZ,
			completed_at TIMESTAMPTZ,
			stop_reason VARCHAR(100),
			created_at TIMESTAMPTZ DEFAULT NOW(),
			updated_at TIMESTAMPTZ DEFAULT NOW()
		);

		CREATE UNIQUE INDEX IF NOT EXISTS idx_enrollments_one_active
			ON outreach_enrollments(lead_id, sequence_id) WHERE status = 'active';
		CREATE INDEX IF NOT EXISTS idx_enrollments_due
			ON outreach_enrollments(next_send_at) WHERE status = 'active';

		CREATE TABLE IF NOT EXISTS outreach_messages (
			id UUID PRIMARY KEY,
			enrollment_id UUID NOT NULL REFERENCES outreach_enrollments(id),
			step_id UUID NOT NULL REFERENCES outreach_sequence_steps(id),
			tracking_id VARCHAR(64) NOT NULL UNIQUE,
			status VARCHAR(50) DEFAULT 'pending',
			subject VARCHAR(500) DEFAULT '',
			content TEXT DEFAULT '',
			screen_score DOUBLE PRECISION DEFAULT 0,
			failure_reason TEXT,
			sent_at TIMESTAMPTZ,
			opens INTEGER DEFAULT 0,
			clicks INTEGER DEFAULT 0,
			created_at TIMESTAMPTZ DEFAULT NOW()
		);

		CREATE INDEX IF NOT EXISTS idx_messages_enrollment ON outreach_messages(enrollment_id);

		CREATE TABLE IF NOT EXISTS outreach_replies (
			id UUID PRIMARY KEY,
			lead_id UUID NOT NULL REFERENCES outreach_leads(id),
			sequence_id UUID NOT NULL REFERENCES outreach_sequences(id),
			message_id VARCHAR(255) DEFAULT '',
			content TEXT DEFAULT '',
			replied_at TIMESTAMPTZ DEFAULT NOW()
		);

		CREATE INDEX IF NOT EXISTS idx_replies_lead_seq ON outreach_replies(lead_id, sequence_id);

		CREATE TABLE IF NOT EXISTS outreach_tracking_signals (
			id UUID PRIMARY KEY,
			tracking_id VARCHAR(64) NOT NULL,
			signal_type VARCHAR(50) NOT NULL,
			confidence DOUBLE PRECISION DEFAULT 0,
			ip_address VARCHAR(64) DEFAULT '',
			user_agent TEXT DEFAULT '',
			referer TEXT DEFAULT '',
			delay_seconds DOUBLE PRECISION DEFAULT 0,
			is_prefetch BOOLEAN DEFAULT FALSE,
			recorded_at TIMESTAMPTZ DEFAULT NOW()
		);

		CREATE INDEX IF NOT EXISTS idx_signals_tracking ON outreach_tracking_signals(tracking_id, recorded_at);

		CREATE TABLE IF NOT EXISTS outreach_open_analysis (
			tracking_id VARCHAR(64) PRIMARY KEY,
			total_signals INTEGER DEFAULT 0,
			confidence_score DOUBLE PRECISION DEFAULT 0,
			is_opened BOOLEAN DEFAULT FALSE,
			open_method VARCHAR(50) DEFAULT '',
			first_signal_at TIMESTAMPTZ,
			last_signal_at TIMESTAMPTZ,
			unique_ip_count INTEGER DEFAULT 0,
			prefetch_signals INTEGER DEFAULT 0,
			human_signals INTEGER DEFAULT 0,
			analysis TEXT DEFAULT '',
			updated_at TIMESTAMPTZ DEFAULT NOW()
		);

		CREATE TABLE IF NOT EXISTS outreach_daily_stats (
			date DATE PRIMARY KEY,
			emails_sent INTEGER DEFAULT 0,
			emails_opened INTEGER DEFAULT 0,
			emails_clicked INTEGER DEFAULT 0
		);
	`)
	return err
}
