package database

import "fmt"

// The schema sticks to types both SQLite and Postgres accept so one set of
// statements serves either driver.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS politicians (
		id TEXT PRIMARY KEY,
		slug TEXT UNIQUE NOT NULL,
		name TEXT NOT NULL,
		given_name TEXT NOT NULL DEFAULT '',
		family_name TEXT NOT NULL DEFAULT '',
		party TEXT NOT NULL DEFAULT '',
		riding TEXT NOT NULL DEFAULT '',
		province TEXT NOT NULL DEFAULT '',
		image_url TEXT NOT NULL DEFAULT '',
		source_url TEXT NOT NULL DEFAULT '',
		content_hash TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,

	`CREATE TABLE IF NOT EXISTS bills (
		id TEXT PRIMARY KEY,
		jurisdiction TEXT NOT NULL,
		parliament INTEGER NOT NULL,
		session INTEGER NOT NULL,
		number TEXT NOT NULL,
		title_en TEXT NOT NULL DEFAULT '',
		title_fr TEXT NOT NULL DEFAULT '',
		short_title_en TEXT NOT NULL DEFAULT '',
		short_title_fr TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT '',
		status_code TEXT NOT NULL DEFAULT '',
		law INTEGER NOT NULL DEFAULT 0,
		sponsor_slug TEXT NOT NULL DEFAULT '',
		sponsor_name TEXT NOT NULL DEFAULT '',
		introduced_on TIMESTAMP,
		royal_assent_on TIMESTAMP,
		latest_activity_at TIMESTAMP,
		legisinfo_id TEXT NOT NULL DEFAULT '',
		source_url TEXT NOT NULL DEFAULT '',
		text_url TEXT NOT NULL DEFAULT '',
		content_hash TEXT NOT NULL,
		enriched INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		fetched_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(jurisdiction, parliament, session, number)
	)`,

	`CREATE TABLE IF NOT EXISTS votes (
		id TEXT PRIMARY KEY,
		session TEXT NOT NULL,
		number INTEGER NOT NULL,
		date TIMESTAMP NOT NULL,
		description_en TEXT NOT NULL DEFAULT '',
		result TEXT NOT NULL DEFAULT '',
		yea_total INTEGER NOT NULL DEFAULT 0,
		nay_total INTEGER NOT NULL DEFAULT 0,
		paired_total INTEGER NOT NULL DEFAULT 0,
		bill_id TEXT REFERENCES bills(id) ON DELETE SET NULL,
		source_url TEXT NOT NULL DEFAULT '',
		content_hash TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(session, number)
	)`,

	`CREATE TABLE IF NOT EXISTS debates (
		id TEXT PRIMARY KEY,
		date TIMESTAMP NOT NULL,
		number TEXT NOT NULL,
		most_frequent_speaker TEXT NOT NULL DEFAULT '',
		source_url TEXT NOT NULL DEFAULT '',
		document_url TEXT NOT NULL DEFAULT '',
		content_hash TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(date, number)
	)`,

	`CREATE TABLE IF NOT EXISTS committees (
		id TEXT PRIMARY KEY,
		slug TEXT UNIQUE NOT NULL,
		name_en TEXT NOT NULL,
		short_name_en TEXT NOT NULL DEFAULT '',
		parent_slug TEXT NOT NULL DEFAULT '',
		source_url TEXT NOT NULL DEFAULT '',
		content_hash TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,

	`CREATE TABLE IF NOT EXISTS ingest_runs (
		id TEXT PRIMARY KEY,
		entity TEXT NOT NULL,
		status TEXT NOT NULL,
		started_at TIMESTAMP NOT NULL,
		finished_at TIMESTAMP,
		fetched INTEGER NOT NULL DEFAULT 0,
		created INTEGER NOT NULL DEFAULT 0,
		updated INTEGER NOT NULL DEFAULT 0,
		unchanged INTEGER NOT NULL DEFAULT 0,
		failed INTEGER NOT NULL DEFAULT 0,
		error TEXT NOT NULL DEFAULT ''
	)`,

	// Precomputed rows for feed generation, rebuilt by RefreshBillFeed.
	`CREATE TABLE IF NOT EXISTS feed_bills_latest (
		bill_id TEXT PRIMARY KEY,
		jurisdiction TEXT NOT NULL,
		parliament INTEGER NOT NULL,
		session INTEGER NOT NULL,
		number TEXT NOT NULL,
		title TEXT NOT NULL,
		status TEXT NOT NULL,
		sponsor_slug TEXT NOT NULL DEFAULT '',
		sponsor_name TEXT NOT NULL DEFAULT '',
		latest_activity_at TIMESTAMP,
		link TEXT NOT NULL
	)`,

	`CREATE INDEX IF NOT EXISTS idx_bills_session ON bills(parliament, session)`,
	`CREATE INDEX IF NOT EXISTS idx_bills_sponsor ON bills(sponsor_slug)`,
	`CREATE INDEX IF NOT EXISTS idx_bills_latest_activity ON bills(latest_activity_at)`,
	`CREATE INDEX IF NOT EXISTS idx_votes_bill ON votes(bill_id)`,
	`CREATE INDEX IF NOT EXISTS idx_votes_date ON votes(date)`,
	`CREATE INDEX IF NOT EXISTS idx_debates_date ON debates(date)`,
	`CREATE INDEX IF NOT EXISTS idx_ingest_runs_entity ON ingest_runs(entity, started_at)`,
	`CREATE INDEX IF NOT EXISTS idx_ingest_runs_running ON ingest_runs(status) WHERE status = 'running'`,
	`CREATE INDEX IF NOT EXISTS idx_feed_bills_activity ON feed_bills_latest(latest_activity_at)`,
}

func (db *DB) Migrate() error {
	for _, query := range migrations {
		if _, err := db.Exec(query); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}
