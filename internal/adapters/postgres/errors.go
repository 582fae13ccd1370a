package postgres

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

const (
	UniqueViolationCode     = "23505"
	ForeignKeyViolationCode = "23503"
)

func AsPgError(err error) (*pgconn.PgError, bool) {
	var pe *pgconn.PgError
	if errors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}

// IsUniqueViolation reports whether err is a unique violation on the named constraint or index.
func IsUniqueViolation(err error, constraint string) bool {
	pe, ok := AsPgError(err)
	return ok && pe.Code == UniqueViolationCode && pe.ConstraintName == constraint
}
