package store

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"

	"github.com/lib/pq"

	"storefront/internal/apperr"
)

// Postgres error codes the store reacts to
const (
	pqSerializationFailure = "40001"
	pqDeadlockDetected     = "40P01"
	pqLockNotAvailable     = "55P03"
	pqQueryCanceled        = "57014"
	pqUniqueViolation      = "23505"
	pqForeignKeyViolation  = "23503"
	pqCheckViolation       = "23514"
)

// translate maps driver and context errors onto apperr kinds. Errors that are
// already classified pass through unchanged.
func translate(err error) error {
	if err == nil {
		return nil
	}

	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		return err
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return apperr.ErrUnavailable.Wrap(err)
	}
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) {
		return apperr.ErrUnavailable.Wrap(err)
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case pqSerializationFailure, pqDeadlockDetected, pqLockNotAvailable, pqUniqueViolation:
			return apperr.ErrConflict.Wrap(err)
		case pqQueryCanceled:
			return apperr.ErrUnavailable.Wrap(err)
		case pqCheckViolation, pqForeignKeyViolation:
			return apperr.ErrInvalidInput.Wrap(err)
		}
		switch pqErr.Code.Class() {
		case "08", "53", "57":
			return apperr.ErrUnavailable.Wrap(err)
		}
	}

	return apperr.ErrInternal.Wrap(err)
}

func isPQCode(err error, code pq.ErrorCode) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == code
}
