package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/apex/log"
)

const caseCounterName = "case"

// Database is the MySQL backed case ledger and settings store
type Database struct {
	db *sql.DB
}

// NewDatabase wraps an open connection pool
func NewDatabase(db *sql.DB) *Database {
	return &Database{db: db}
}

// Close closes the database connection
func (d *Database) Close() error {
	return d.db.Close()
}

// Ping checks the connection, used by the health endpoint
func (d *Database) Ping(ctx context.Context) error {
	return d.db.PingContext(ctx)
}

// EnsureSchema creates the tables if they don't exist and seeds the case
// counter so that the first allocated case id is firstCaseID. An existing
// counter is never touched.
func (d *Database) EnsureSchema(ctx context.Context, firstCaseID int64) error {
	log.Info("Initializing report case schema...")

	statements := []struct {
		name  string
		query string
	}{
		{"cases", `
		CREATE TABLE IF NOT EXISTS cases (
			id BIGINT NOT NULL,
			reporter_id VARCHAR(32) NOT NULL,
			target_id VARCHAR(32) NOT NULL,
			reason TEXT NOT NULL,
			status ENUM('open', 'resolved') NOT NULL DEFAULT 'open',
			notice_channel_id VARCHAR(32),
			notice_message_id VARCHAR(32),
			created_at TIMESTAMP(6) NOT NULL DEFAULT CURRENT_TIMESTAMP(6),
			resolved_at TIMESTAMP(6) NULL,
			resolved_by VARCHAR(32),
			response TEXT,
			PRIMARY KEY (id),
			INDEX status_index (status),
			INDEX reporter_index (reporter_id)
		)`},
		{"case_counter", `
		CREATE TABLE IF NOT EXISTS case_counter (
			name VARCHAR(32) NOT NULL,
			value BIGINT NOT NULL,
			PRIMARY KEY (name)
		)`},
		{"report_settings", `
		CREATE TABLE IF NOT EXISTS report_settings (
			id TINYINT NOT NULL,
			review_channel_id VARCHAR(32),
			ack_message TEXT,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
			PRIMARY KEY (id)
		)`},
		{"report_blacklist", `
		CREATE TABLE IF NOT EXISTS report_blacklist (
			user_id VARCHAR(32) NOT NULL,
			added_by VARCHAR(32),
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (user_id)
		)`},
	}

	for _, s := range statements {
		if _, err := d.db.ExecContext(ctx, s.query); err != nil {
			return fmt.Errorf("failed to create %s table: %w", s.name, err)
		}
		log.Infof("%s table created/verified", s.name)
	}

	if firstCaseID < 1 {
		firstCaseID = 1
	}
	if _, err := d.db.ExecContext(ctx,
		`INSERT IGNORE INTO case_counter (name, value) VALUES (?, ?)`,
		caseCounterName, firstCaseID-1); err != nil {
		return fmt.Errorf("failed to seed case counter: %w", err)
	}

	return nil
}
