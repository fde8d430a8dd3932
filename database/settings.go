package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/apex/log"

	"report-case-service/common"
	"report-case-service/models"
)

const settingsRowID = 1

// GetReportSettings loads the settings row and the blacklist. A missing row
// yields empty settings; AckMessage stays empty when it was never set.
func (d *Database) GetReportSettings(ctx context.Context) (*models.ReportSettings, error) {
	settings := &models.ReportSettings{Blacklist: map[string]struct{}{}}

	var (
		channelID  sql.NullString
		ackMessage sql.NullString
		updatedAt  sql.NullTime
	)
	err := d.db.QueryRowContext(ctx,
		`SELECT review_channel_id, ack_message, updated_at FROM report_settings WHERE id = ?`, settingsRowID).
		Scan(&channelID, &ackMessage, &updatedAt)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to get report settings: %w", err)
	}
	settings.ReviewChannelID = channelID.String
	settings.AckMessage = ackMessage.String
	settings.UpdatedAt = updatedAt.Time

	rows, err := d.db.QueryContext(ctx, `SELECT user_id FROM report_blacklist`)
	if err != nil {
		return nil, fmt.Errorf("failed to get blacklist: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var userID string
		if err := rows.Scan(&userID); err != nil {
			return nil, fmt.Errorf("failed to scan blacklist entry: %w", err)
		}
		settings.Blacklist[userID] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating blacklist: %w", err)
	}

	return settings, nil
}

// SetReviewChannel stores the channel review notices are published to
func (d *Database) SetReviewChannel(ctx context.Context, channelID string) error {
	result, err := d.db.ExecContext(ctx, `INSERT
	  INTO report_settings (id, review_channel_id) VALUES (?, ?)
	  ON DUPLICATE KEY UPDATE review_channel_id = VALUES(review_channel_id)`,
		settingsRowID, channelID)
	common.LogResult("setReviewChannel", result, err, false)
	if err != nil {
		return fmt.Errorf("failed to set review channel: %w", err)
	}
	return nil
}

// SetAckMessage stores the acknowledgment sent to reporters
func (d *Database) SetAckMessage(ctx context.Context, message string) error {
	result, err := d.db.ExecContext(ctx, `INSERT
	  INTO report_settings (id, ack_message) VALUES (?, ?)
	  ON DUPLICATE KEY UPDATE ack_message = VALUES(ack_message)`,
		settingsRowID, message)
	common.LogResult("setAckMessage", result, err, false)
	if err != nil {
		return fmt.Errorf("failed to set ack message: %w", err)
	}
	return nil
}

// ToggleBlacklist removes userID from the blacklist if present, otherwise
// adds it. Returns true when the user is blacklisted afterwards.
func (d *Database) ToggleBlacklist(ctx context.Context, userID, addedBy string) (bool, error) {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `DELETE FROM report_blacklist WHERE user_id = ?`, userID)
	if err != nil {
		return false, fmt.Errorf("failed to remove %s from blacklist: %w", userID, err)
	}
	removed, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to remove %s from blacklist: %w", userID, err)
	}

	blacklisted := removed == 0
	if blacklisted {
		result, err = tx.ExecContext(ctx,
			`INSERT INTO report_blacklist (user_id, added_by) VALUES (?, ?)`, userID, addedBy)
		common.LogResult("toggleBlacklist", result, err, true)
		if err != nil {
			return false, fmt.Errorf("failed to add %s to blacklist: %w", userID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit blacklist change: %w", err)
	}

	log.WithFields(log.Fields{"user": userID, "by": addedBy, "blacklisted": blacklisted}).Info("Blacklist toggled")
	return blacklisted, nil
}

// ListBlacklist returns all blacklist entries, oldest first
func (d *Database) ListBlacklist(ctx context.Context) ([]models.BlacklistEntry, error) {
	rows, err := d.db.QueryContext(ctx,
		`SELECT user_id, added_by, created_at FROM report_blacklist ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("failed to list blacklist: %w", err)
	}
	defer rows.Close()

	var entries []models.BlacklistEntry
	for rows.Next() {
		var (
			e       models.BlacklistEntry
			addedBy sql.NullString
		)
		if err := rows.Scan(&e.UserID, &addedBy, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan blacklist entry: %w", err)
		}
		e.AddedBy = addedBy.String
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating blacklist: %w", err)
	}
	return entries, nil
}
