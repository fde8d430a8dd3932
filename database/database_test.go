package database

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jknair0/beforeeach"

	"report-case-service/models"
)

var (
	db   *sql.DB
	mock sqlmock.Sqlmock
)

func setUp() {
	db, mock, _ = sqlmock.New()
}

func tearDown() {
	db.Close()
}

var it = beforeeach.Create(setUp, tearDown)

var caseColumnNames = []string{
	"id", "reporter_id", "target_id", "reason", "status", "notice_channel_id",
	"notice_message_id", "created_at", "resolved_at", "resolved_by", "response",
}

func TestEnsureSchema(t *testing.T) {
	it(func() {
		for _, table := range []string{"cases", "case_counter", "report_settings", "report_blacklist"} {
			mock.ExpectExec("CREATE TABLE IF NOT EXISTS " + table + " ").
				WillReturnResult(sqlmock.NewResult(0, 0))
		}
		mock.ExpectExec("INSERT IGNORE INTO case_counter").
			WithArgs("case", int64(99)).
			WillReturnResult(sqlmock.NewResult(0, 1))

		if err := NewDatabase(db).EnsureSchema(context.Background(), 100); err != nil {
			t.Errorf("EnsureSchema: unexpected error %v", err)
		}
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("EnsureSchema: %v", err)
		}
	})
}

func TestCreateCase(t *testing.T) {
	it(func() {
		testCases := []struct {
			name string

			counterErr  error
			counterRows int64
			allocatedID int64
			insertErr   error

			expectError bool
		}{
			{
				name:        "Allocates next id",
				counterRows: 1,
				allocatedID: 7,
			}, {
				name:        "Counter not seeded",
				counterRows: 0,
				expectError: true,
			}, {
				name:        "Counter update fails",
				counterErr:  errors.New("lock wait timeout"),
				expectError: true,
			}, {
				name:        "Insert fails",
				counterRows: 1,
				allocatedID: 8,
				insertErr:   errors.New("duplicate entry"),
				expectError: true,
			},
		}

		for _, testCase := range testCases {
			mock.ExpectBegin()
			counter := mock.ExpectExec("UPDATE case_counter SET value = LAST_INSERT_ID").WithArgs("case")
			switch {
			case testCase.counterErr != nil:
				counter.WillReturnError(testCase.counterErr)
				mock.ExpectRollback()
			case testCase.counterRows != 1:
				counter.WillReturnResult(sqlmock.NewResult(0, testCase.counterRows))
				mock.ExpectRollback()
			default:
				counter.WillReturnResult(sqlmock.NewResult(testCase.allocatedID, 1))
				insert := mock.ExpectExec("INSERT INTO cases").
					WithArgs(testCase.allocatedID, "42", "99", "spam", "open", sqlmock.AnyArg())
				if testCase.insertErr != nil {
					insert.WillReturnError(testCase.insertErr)
					mock.ExpectRollback()
				} else {
					insert.WillReturnResult(sqlmock.NewResult(testCase.allocatedID, 1))
					mock.ExpectCommit()
				}
			}

			c, err := NewDatabase(db).CreateCase(context.Background(), "42", "99", "spam")
			if testCase.expectError != (err != nil) {
				t.Errorf("%s, CreateCase: expected error: %v, got error: %v", testCase.name, testCase.expectError, err)
				continue
			}
			if err == nil {
				if c.ID != testCase.allocatedID || c.Status != models.CaseOpen || c.CreatedAt.IsZero() {
					t.Errorf("%s, CreateCase: unexpected case %+v", testCase.name, c)
				}
			}
			if err := mock.ExpectationsWereMet(); err != nil {
				t.Errorf("%s: %v", testCase.name, err)
			}
		}
	})
}

func TestGetCase(t *testing.T) {
	it(func() {
		created := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
		resolved := created.Add(time.Hour)

		mock.ExpectQuery("FROM cases WHERE id").
			WithArgs(int64(3)).
			WillReturnRows(sqlmock.NewRows(caseColumnNames).
				AddRow(int64(3), "42", "99", "spam", "resolved", "100", "200", created, resolved, "7", "handled"))

		c, err := NewDatabase(db).GetCase(context.Background(), 3)
		if err != nil {
			t.Fatalf("GetCase: unexpected error %v", err)
		}
		if !c.IsResolved() || c.NoticeMessageID != "200" || c.ResolvedAt == nil || !c.ResolvedAt.Equal(resolved) || c.Response != "handled" {
			t.Errorf("GetCase: unexpected case %+v", c)
		}

		mock.ExpectQuery("FROM cases WHERE id").
			WithArgs(int64(4)).
			WillReturnRows(sqlmock.NewRows(caseColumnNames).
				AddRow(int64(4), "42", "99", "spam", "open", nil, nil, created, nil, nil, nil))

		c, err = NewDatabase(db).GetCase(context.Background(), 4)
		if err != nil {
			t.Fatalf("GetCase: unexpected error %v", err)
		}
		if c.IsResolved() || c.NoticeDelivered() || c.ResolvedAt != nil {
			t.Errorf("GetCase: unexpected case %+v", c)
		}
	})
}

func TestGetCaseNotFoundDoesNotWrite(t *testing.T) {
	it(func() {
		mock.ExpectQuery("FROM cases WHERE id").
			WithArgs(int64(404)).
			WillReturnRows(sqlmock.NewRows(caseColumnNames))

		_, err := NewDatabase(db).GetCase(context.Background(), 404)
		if !errors.Is(err, models.ErrCaseNotFound) {
			t.Errorf("GetCase: expected ErrCaseNotFound, got %v", err)
		}
		// Any Exec would fail here as unexpected.
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("GetCase: %v", err)
		}
	})
}

func TestResolveCase(t *testing.T) {
	it(func() {
		testCases := []struct {
			name         string
			rowsAffected int64
			statusRows   *sqlmock.Rows

			expectOutcome models.ResolveOutcome
		}{
			{
				name:          "Open case",
				rowsAffected:  1,
				expectOutcome: models.Resolved,
			}, {
				name:          "Already resolved",
				rowsAffected:  0,
				statusRows:    sqlmock.NewRows([]string{"status"}).AddRow("resolved"),
				expectOutcome: models.AlreadyResolved,
			}, {
				name:          "Unknown case",
				rowsAffected:  0,
				statusRows:    sqlmock.NewRows([]string{"status"}),
				expectOutcome: models.NotFound,
			},
		}

		for _, testCase := range testCases {
			mock.ExpectExec("UPDATE cases SET status").
				WithArgs("resolved", sqlmock.AnyArg(), "7", "thanks", int64(12), "open").
				WillReturnResult(sqlmock.NewResult(0, testCase.rowsAffected))
			if testCase.statusRows != nil {
				mock.ExpectQuery("SELECT status FROM cases WHERE id").
					WithArgs(int64(12)).
					WillReturnRows(testCase.statusRows)
			}

			outcome, err := NewDatabase(db).ResolveCase(context.Background(), 12, "7", "thanks")
			if err != nil {
				t.Errorf("%s, ResolveCase: unexpected error %v", testCase.name, err)
			}
			if outcome != testCase.expectOutcome {
				t.Errorf("%s, ResolveCase: expected %v, got %v", testCase.name, testCase.expectOutcome, outcome)
			}
			if err := mock.ExpectationsWereMet(); err != nil {
				t.Errorf("%s: %v", testCase.name, err)
			}
		}
	})
}

func TestResolveCaseStoreError(t *testing.T) {
	it(func() {
		mock.ExpectExec("UPDATE cases SET status").
			WillReturnError(errors.New("connection reset"))

		if _, err := NewDatabase(db).ResolveCase(context.Background(), 1, "7", ""); err == nil {
			t.Error("ResolveCase: expected error")
		}
	})
}

func TestListCases(t *testing.T) {
	it(func() {
		created := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
		mock.ExpectQuery("FROM cases WHERE status = (.+) AND notice_message_id IS NULL ORDER BY id DESC LIMIT").
			WithArgs("open", 50).
			WillReturnRows(sqlmock.NewRows(caseColumnNames).
				AddRow(int64(9), "1", "2", "a", "open", nil, nil, created, nil, nil, nil).
				AddRow(int64(8), "3", "4", "b", "open", nil, nil, created, nil, nil, nil))

		cases, err := NewDatabase(db).ListCases(context.Background(), models.CaseFilter{
			Status:          models.CaseOpen,
			UndeliveredOnly: true,
		})
		if err != nil {
			t.Fatalf("ListCases: unexpected error %v", err)
		}
		if len(cases) != 2 || cases[0].ID != 9 || cases[1].ID != 8 {
			t.Errorf("ListCases: unexpected cases %+v", cases)
		}
	})
}

func TestAttachNotice(t *testing.T) {
	it(func() {
		mock.ExpectExec("UPDATE cases SET notice_channel_id").
			WithArgs("100", "200", int64(5)).
			WillReturnResult(sqlmock.NewResult(0, 1))

		if err := NewDatabase(db).AttachNotice(context.Background(), 5, "100", "200"); err != nil {
			t.Errorf("AttachNotice: unexpected error %v", err)
		}
	})
}

func TestGetReportSettings(t *testing.T) {
	it(func() {
		testCases := []struct {
			name         string
			settingsRows *sqlmock.Rows
			blacklist    []string

			expectChannel string
			expectAck     string
		}{
			{
				name: "Configured",
				settingsRows: sqlmock.NewRows([]string{"review_channel_id", "ack_message", "updated_at"}).
					AddRow("555", "Thanks!", time.Now()),
				blacklist:     []string{"13", "14"},
				expectChannel: "555",
				expectAck:     "Thanks!",
			}, {
				name:         "Never configured",
				settingsRows: sqlmock.NewRows([]string{"review_channel_id", "ack_message", "updated_at"}),
			},
		}

		for _, testCase := range testCases {
			mock.ExpectQuery("FROM report_settings WHERE id").
				WithArgs(1).
				WillReturnRows(testCase.settingsRows)
			rows := sqlmock.NewRows([]string{"user_id"})
			for _, id := range testCase.blacklist {
				rows.AddRow(id)
			}
			mock.ExpectQuery("SELECT user_id FROM report_blacklist").WillReturnRows(rows)

			settings, err := NewDatabase(db).GetReportSettings(context.Background())
			if err != nil {
				t.Errorf("%s, GetReportSettings: unexpected error %v", testCase.name, err)
				continue
			}
			if settings.ReviewChannelID != testCase.expectChannel || settings.AckMessage != testCase.expectAck {
				t.Errorf("%s, GetReportSettings: unexpected settings %+v", testCase.name, settings)
			}
			if len(settings.Blacklist) != len(testCase.blacklist) {
				t.Errorf("%s, GetReportSettings: expected %d blacklisted, got %d", testCase.name, len(testCase.blacklist), len(settings.Blacklist))
			}
		}
	})
}

func TestSetReviewChannelAndMessage(t *testing.T) {
	it(func() {
		mock.ExpectExec("INSERT INTO report_settings \\(id, review_channel_id\\)").
			WithArgs(1, "555").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec("INSERT INTO report_settings \\(id, ack_message\\)").
			WithArgs(1, "Thanks!").
			WillReturnResult(sqlmock.NewResult(0, 2))

		d := NewDatabase(db)
		if err := d.SetReviewChannel(context.Background(), "555"); err != nil {
			t.Errorf("SetReviewChannel: unexpected error %v", err)
		}
		if err := d.SetAckMessage(context.Background(), "Thanks!"); err != nil {
			t.Errorf("SetAckMessage: unexpected error %v", err)
		}
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Error(err)
		}
	})
}

func TestToggleBlacklist(t *testing.T) {
	it(func() {
		testCases := []struct {
			name        string
			deleted     int64
			expectAdded bool
		}{
			{name: "Add new entry", deleted: 0, expectAdded: true},
			{name: "Remove existing entry", deleted: 1, expectAdded: false},
		}

		for _, testCase := range testCases {
			mock.ExpectBegin()
			mock.ExpectExec("DELETE FROM report_blacklist WHERE user_id").
				WithArgs("13").
				WillReturnResult(sqlmock.NewResult(0, testCase.deleted))
			if testCase.expectAdded {
				mock.ExpectExec("INSERT INTO report_blacklist").
					WithArgs("13", "1").
					WillReturnResult(sqlmock.NewResult(0, 1))
			}
			mock.ExpectCommit()

			blacklisted, err := NewDatabase(db).ToggleBlacklist(context.Background(), "13", "1")
			if err != nil {
				t.Errorf("%s, ToggleBlacklist: unexpected error %v", testCase.name, err)
			}
			if blacklisted != testCase.expectAdded {
				t.Errorf("%s, ToggleBlacklist: expected %v, got %v", testCase.name, testCase.expectAdded, blacklisted)
			}
			if err := mock.ExpectationsWereMet(); err != nil {
				t.Errorf("%s: %v", testCase.name, err)
			}
		}
	})
}

func TestListBlacklist(t *testing.T) {
	it(func() {
		now := time.Now()
		mock.ExpectQuery("SELECT user_id, added_by, created_at FROM report_blacklist").
			WillReturnRows(sqlmock.NewRows([]string{"user_id", "added_by", "created_at"}).
				AddRow("13", "1", now).
				AddRow("14", nil, now))

		entries, err := NewDatabase(db).ListBlacklist(context.Background())
		if err != nil {
			t.Errorf("ListBlacklist: unexpected error %v", err)
		}
		if len(entries) != 2 || entries[0].AddedBy != "1" || entries[1].AddedBy != "" {
			t.Errorf("ListBlacklist: unexpected entries %+v", entries)
		}
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("ListBlacklist: %v", err)
		}
	})
}
