package db

import (
	"strings"

	pkgerrors "github.com/angelmondragon/erpcore/pkg/errors"
)

const (
	pgUniqueViolation = "23505"
	pgCheckViolation  = "23514"
)

// IsUniqueViolation reports whether err is a duplicate-key failure. Postgres
// errors are matched on SQLSTATE and constraint name; sqlite only exposes the
// message. An empty constraintName matches any unique constraint.
func IsUniqueViolation(err error, constraintName string) bool {
	return isViolation(err, pgUniqueViolation, constraintName, "UNIQUE constraint failed", "duplicate key value")
}

// IsCheckViolation reports whether err is a CHECK constraint failure such as
// a non-positive unit factor.
func IsCheckViolation(err error, constraintName string) bool {
	return isViolation(err, pgCheckViolation, constraintName, "CHECK constraint failed", "violates check constraint")
}

func isViolation(err error, sqlState, constraintName string, markers ...string) bool {
	if err == nil {
		return false
	}
	if pg := pkgerrors.PostgresDetail(err); pg != nil {
		if pg.Code != sqlState {
			return false
		}
		return constraintName == "" || pg.Constraint == constraintName
	}
	msg := err.Error()
	if constraintName != "" {
		return strings.Contains(msg, constraintName)
	}
	for _, marker := range markers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
