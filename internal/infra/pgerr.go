// README: Postgres error inspection helpers shared by the module stores.
package infra

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

const uniqueViolation = "23505"
const foreignKeyViolation = "23503"
const checkViolation = "23514"
const numericOutOfRange = "22003"

// UniqueViolation reports whether err is a unique-constraint violation and
// returns the violated constraint name.
func UniqueViolation(err error) (string, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return pgErr.ConstraintName, true
	}
	return "", false
}

// ForeignKeyViolation reports whether err is a foreign-key violation.
func ForeignKeyViolation(err error) (string, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == foreignKeyViolation {
		return pgErr.ConstraintName, true
	}
	return "", false
}

// ValueViolation reports whether err is a CHECK violation or a numeric
// overflow, i.e. a bad input value rather than a server fault. It returns
// the constraint name when there is one.
func ValueViolation(err error) (string, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && (pgErr.Code == checkViolation || pgErr.Code == numericOutOfRange) {
		return pgErr.ConstraintName, true
	}
	return "", false
}
