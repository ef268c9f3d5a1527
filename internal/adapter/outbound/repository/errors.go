package repository

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Storage errors returned by the job and content item repositories.
var (
	ErrNotFound            = errors.New("record not found")
	ErrAlreadyExists       = errors.New("record already exists")
	ErrForeignKeyViolation = errors.New("foreign key violation")
	ErrConstraintViolation = errors.New("constraint violation")
	ErrConnectionFailed    = errors.New("database connection failed")
	ErrInvalidArgument     = errors.New("invalid argument")
)

// sqlStateErrors maps exact SQLSTATE codes to storage errors.
var sqlStateErrors = map[string]error{
	"23505": ErrAlreadyExists,       // unique_violation, e.g. a resubmitted job id
	"23503": ErrForeignKeyViolation, // foreign_key_violation
	"23514": ErrConstraintViolation, // check_violation, e.g. the processed <= total guard
	"23502": ErrConstraintViolation, // not_null_violation
}

// sqlStateClassErrors maps SQLSTATE classes (first two characters).
var sqlStateClassErrors = map[string]error{
	"08": ErrConnectionFailed, // connection_exception
	"57": ErrConnectionFailed, // operator_intervention, e.g. admin shutdown
}

// IsNotFoundError reports whether err means no row matched.
func IsNotFoundError(err error) bool {
	return errors.Is(err, pgx.ErrNoRows) || errors.Is(err, ErrNotFound)
}

// IsConnectionError reports whether err means the database could not be reached.
func IsConnectionError(err error) bool {
	return errors.Is(classify(err), ErrConnectionFailed)
}

// classify returns the storage error for a Postgres failure, or nil when the
// failure has no storage-level meaning.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if IsNotFoundError(err) {
		return ErrNotFound
	}

	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		if errors.Is(err, ErrConnectionFailed) {
			return ErrConnectionFailed
		}
		return nil
	}
	if mapped, ok := sqlStateErrors[pgErr.Code]; ok {
		return mapped
	}
	if len(pgErr.Code) >= 2 {
		return sqlStateClassErrors[pgErr.Code[:2]]
	}
	return nil
}

// WrapError prefixes err with the failed operation. Recognised Postgres
// failures are replaced by the matching storage error so callers can use
// errors.Is without importing pgx.
func WrapError(err error, operation string) error {
	if err == nil {
		return nil
	}
	if mapped := classify(err); mapped != nil {
		return fmt.Errorf("%s failed: %w", operation, mapped)
	}
	return fmt.Errorf("%s failed: %w", operation, err)
}
