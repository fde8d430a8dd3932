package common

import (
	"database/sql"
	"io"
	"strings"

	"github.com/apex/log"
	jsonhandler "github.com/apex/log/handlers/json"
	"github.com/apex/log/handlers/text"
)

// SetupLogging configures the package-level apex logger.
// format is "json" or "text"; unknown levels fall back to info.
func SetupLogging(w io.Writer, level, format string) {
	switch strings.ToLower(format) {
	case "json":
		log.SetHandler(jsonhandler.New(w))
	default:
		log.SetHandler(text.New(w))
	}

	lvl, err := log.ParseLevel(strings.ToLower(level))
	if err != nil {
		log.Warnf("Unknown log level %q, using info", level)
		lvl = log.InfoLevel
	}
	log.SetLevel(lvl)
}

// LogResult logs the outcome of a write statement. When expectOne is set a
// result touching a row count other than one is logged as a warning.
func LogResult(op string, r sql.Result, e error, expectOne bool) {
	if e != nil {
		log.WithField("op", op).Errorf("Query failed: %v", e)
		return
	}
	rows, err := r.RowsAffected()
	if err != nil {
		log.WithField("op", op).Errorf("Failed to get status of db op: %v", err)
		return
	}
	if expectOne && rows != 1 {
		log.WithField("op", op).Warnf("Expected to affect 1 row, affected %d", rows)
	}
}
