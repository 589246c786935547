package postgres

import (
	"context"
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"

	"boxledger/internal/core/apperror"
)

func pgError(code string) error {
	return &pgconn.PgError{Code: code, Message: "test"}
}

func TestIsTransient(t *testing.T) {
	transient := []error{
		io.EOF,
		io.ErrUnexpectedEOF,
		context.DeadlineExceeded,
		pgError("08006"), // connection_failure
		pgError("08000"),
		pgError("40001"), // serialization_failure
		pgError("40P01"), // deadlock_detected
		pgError("53300"), // too_many_connections
		pgError("57P03"), // cannot_connect_now
		fmt.Errorf("exec: %w", pgError("40001")),
	}
	for _, err := range transient {
		assert.True(t, isTransient(err), "%v should be transient", err)
	}

	terminal := []error{
		nil,
		errors.New("something else"),
		pgError("23505"), // unique_violation
		pgError("23514"), // check_violation
		pgError("42P01"), // undefined_table
	}
	for _, err := range terminal {
		assert.False(t, isTransient(err), "%v should not be transient", err)
	}
}

func TestWrapStorageErr(t *testing.T) {
	assert.NoError(t, WrapStorageErr(nil))

	// Already-classified errors pass through with their code intact.
	orig := apperror.NewInsufficientStock("BOX-1", 10, 5)
	passthrough := WrapStorageErr(fmt.Errorf("update: %w", orig))
	assert.True(t, apperror.IsCode(passthrough, apperror.CodeInsufficientStock))
	assert.False(t, apperror.IsRetryable(passthrough))

	wrapped := WrapStorageErr(pgError("40P01"))
	assert.True(t, apperror.IsRetryable(wrapped))

	internal := WrapStorageErr(pgError("23505"))
	assert.True(t, apperror.IsCode(internal, apperror.CodeInternal))
	assert.False(t, apperror.IsRetryable(internal))
}
