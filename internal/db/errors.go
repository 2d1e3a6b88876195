package db

import (
	"database/sql"
	"errors"
	"strings"
)

// IsUniqueViolation reports whether err is a SQLite UNIQUE constraint failure.
// When column is provided (e.g. "members.nick"), the failing constraint must
// name it.
func IsUniqueViolation(err error, column string) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	if !strings.Contains(msg, "UNIQUE constraint failed") {
		return false
	}
	if column != "" {
		return strings.Contains(msg, column)
	}
	return true
}

// unavailableMessages are driver messages for a database that cannot serve
// requests right now.
var unavailableMessages = []string{
	"database is locked",
	"database is busy",
	"unable to open database",
	"disk I/O error",
	"database disk image is malformed",
}

// IsUnavailable reports whether err means the database itself is unusable,
// as opposed to a problem with the statement or the data.
func IsUnavailable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, sql.ErrConnDone) {
		return true
	}
	msg := err.Error()
	if strings.Contains(msg, "sql: database is closed") {
		return true
	}
	for _, m := range unavailableMessages {
		if strings.Contains(msg, m) {
			return true
		}
	}
	return false
}
