package postgres

import (
	"context"
	"errors"
	"io"
	"net"

	"github.com/jackc/pgx/v5/pgconn"

	"boxledger/internal/core/apperror"
)

// Transient SQLSTATE classes and codes. Class 08 is connection exceptions;
// 40001/40P01 resolve on a clean re-run; 53300/57P03 clear once the server
// recovers.
const (
	sqlstateConnectionClass  = "08"
	sqlstateSerialization    = "40001"
	sqlstateDeadlockDetected = "40P01"
	sqlstateTooManyConns     = "53300"
	sqlstateCannotConnectNow = "57P03"
	sqlstateAdminShutdown    = "57P01"
	sqlstateCrashShutdown    = "57P02"
)

// isTransient reports whether err indicates a failure a fresh transaction
// attempt may survive. Constraint violations and data errors never qualify.
func isTransient(err error) bool {
	if err == nil {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	if pgconn.SafeToRetry(err) {
		return true
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if len(pgErr.Code) >= 2 && pgErr.Code[:2] == sqlstateConnectionClass {
			return true
		}
		switch pgErr.Code {
		case sqlstateSerialization, sqlstateDeadlockDetected,
			sqlstateTooManyConns, sqlstateCannotConnectNow,
			sqlstateAdminShutdown, sqlstateCrashShutdown:
			return true
		}
	}
	return false
}

// WrapStorageErr classifies a raw driver error into the engine's taxonomy.
// Errors already carrying a code pass through untouched.
func WrapStorageErr(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := apperror.AsAppError(err); ok {
		return err
	}
	if isTransient(err) {
		return apperror.NewRetryableStorage(err)
	}
	return apperror.NewInternal(err)
}
