package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/apex/log"

	"report-case-service/common"
	"report-case-service/models"
)

const caseColumns = `id, reporter_id, target_id, reason, status, notice_channel_id, notice_message_id, created_at, resolved_at, resolved_by, response`

// CreateCase allocates the next case id and persists an open case in one
// transaction. The counter row is locked by the UPDATE until commit, so
// concurrent creators are serialized and a failed insert rolls the counter
// back with it.
func (d *Database) CreateCase(ctx context.Context, reporterID, targetID, reason string) (*models.Case, error) {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() // Rollback will be ignored if tx.Commit() is called

	result, err := tx.ExecContext(ctx,
		`UPDATE case_counter SET value = LAST_INSERT_ID(value + 1) WHERE name = ?`, caseCounterName)
	if err != nil {
		return nil, fmt.Errorf("failed to allocate case id: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to allocate case id: %w", err)
	}
	if rows != 1 {
		return nil, fmt.Errorf("case counter %q is not initialized", caseCounterName)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to read allocated case id: %w", err)
	}

	c := &models.Case{
		ID:         id,
		ReporterID: reporterID,
		TargetID:   targetID,
		Reason:     reason,
		Status:     models.CaseOpen,
		CreatedAt:  time.Now().UTC(),
	}

	result, err = tx.ExecContext(ctx, `INSERT
	  INTO cases (id, reporter_id, target_id, reason, status, created_at)
	  VALUES (?, ?, ?, ?, ?, ?)`,
		c.ID, c.ReporterID, c.TargetID, c.Reason, string(c.Status), c.CreatedAt)
	common.LogResult("createCase", result, err, true)
	if err != nil {
		return nil, fmt.Errorf("failed to insert case %d: %w", id, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit case %d: %w", id, err)
	}

	log.WithFields(log.Fields{"case": id, "reporter": reporterID, "target": targetID}).Info("Case created")
	return c, nil
}

// GetCase returns the case with the given id or models.ErrCaseNotFound
func (d *Database) GetCase(ctx context.Context, id int64) (*models.Case, error) {
	row := d.db.QueryRowContext(ctx, `SELECT `+caseColumns+` FROM cases WHERE id = ?`, id)
	c, err := scanCase(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ErrCaseNotFound
		}
		return nil, fmt.Errorf("failed to get case %d: %w", id, err)
	}
	return c, nil
}

// ResolveCase flips an open case to resolved. Only the caller whose UPDATE
// matches the open row gets models.Resolved; everyone else observes
// AlreadyResolved or NotFound.
func (d *Database) ResolveCase(ctx context.Context, id int64, resolvedBy, response string) (models.ResolveOutcome, error) {
	result, err := d.db.ExecContext(ctx, `UPDATE cases
	  SET status = ?, resolved_at = ?, resolved_by = ?, response = ?
	  WHERE id = ? AND status = ?`,
		string(models.CaseResolved), time.Now().UTC(), resolvedBy, response, id, string(models.CaseOpen))
	if err != nil {
		return 0, fmt.Errorf("failed to resolve case %d: %w", id, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to resolve case %d: %w", id, err)
	}
	if rows == 1 {
		log.WithFields(log.Fields{"case": id, "resolved_by": resolvedBy}).Info("Case resolved")
		return models.Resolved, nil
	}

	var status string
	err = d.db.QueryRowContext(ctx, `SELECT status FROM cases WHERE id = ?`, id).Scan(&status)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.NotFound, nil
		}
		return 0, fmt.Errorf("failed to read case %d status: %w", id, err)
	}
	return models.AlreadyResolved, nil
}

// AttachNotice records where the review notice for a case was published
func (d *Database) AttachNotice(ctx context.Context, id int64, channelID, messageID string) error {
	result, err := d.db.ExecContext(ctx,
		`UPDATE cases SET notice_channel_id = ?, notice_message_id = ? WHERE id = ?`,
		channelID, messageID, id)
	common.LogResult("attachNotice", result, err, true)
	if err != nil {
		return fmt.Errorf("failed to attach notice to case %d: %w", id, err)
	}
	return nil
}

// ListCases returns cases newest first
func (d *Database) ListCases(ctx context.Context, filter models.CaseFilter) ([]models.Case, error) {
	var (
		conditions []string
		args       []interface{}
	)
	if filter.Status != "" {
		conditions = append(conditions, "status = ?")
		args = append(args, string(filter.Status))
	}
	if filter.UndeliveredOnly {
		conditions = append(conditions, "notice_message_id IS NULL")
	}
	limit := filter.Limit
	if limit <= 0 || limit > 500 {
		limit = 50
	}

	query := `SELECT ` + caseColumns + ` FROM cases`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY id DESC LIMIT ?"
	args = append(args, limit)

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list cases: %w", err)
	}
	defer rows.Close()

	var cases []models.Case
	for rows.Next() {
		c, err := scanCase(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan case: %w", err)
		}
		cases = append(cases, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating cases: %w", err)
	}
	return cases, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanCase(row rowScanner) (*models.Case, error) {
	var (
		c               models.Case
		status          string
		noticeChannelID sql.NullString
		noticeMessageID sql.NullString
		resolvedAt      sql.NullTime
		resolvedBy      sql.NullString
		response        sql.NullString
	)
	err := row.Scan(
		&c.ID,
		&c.ReporterID,
		&c.TargetID,
		&c.Reason,
		&status,
		&noticeChannelID,
		&noticeMessageID,
		&c.CreatedAt,
		&resolvedAt,
		&resolvedBy,
		&response,
	)
	if err != nil {
		return nil, err
	}
	c.Status = models.CaseStatus(status)
	c.NoticeChannelID = noticeChannelID.String
	c.NoticeMessageID = noticeMessageID.String
	if resolvedAt.Valid {
		t := resolvedAt.Time
		c.ResolvedAt = &t
	}
	c.ResolvedBy = resolvedBy.String
	c.Response = response.String
	return &c, nil
}
