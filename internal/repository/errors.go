package repository

import (
	"errors"

	"github.com/lib/pq"
)

// ErrProgressRejected signals that a progress write matched no row because
// the enrollment moved on, or its progress grew, after it was read.
var ErrProgressRejected = errors.New("enrollment progress update rejected")

const (
	uniqueViolation     = "23505"
	foreignKeyViolation = "23503"
)

// IsUniqueViolation reports whether err comes from a Postgres unique constraint.
func IsUniqueViolation(err error) bool {
	return hasPQCode(err, uniqueViolation)
}

// IsForeignKeyViolation reports whether err comes from a Postgres foreign key.
func IsForeignKeyViolation(err error) bool {
	return hasPQCode(err, foreignKeyViolation)
}

func hasPQCode(err error, code pq.ErrorCode) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == code
}
