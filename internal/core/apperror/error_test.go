package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorString(t *testing.T) {
	err := NewValidation("quantity must be positive")
	assert.Equal(t, "VALIDATION_ERROR: quantity must be positive", err.Error())

	cause := errors.New("connection refused")
	wrapped := NewRetryableStorage(cause)
	assert.Contains(t, wrapped.Error(), "connection refused")
}

func TestUnwrap(t *testing.T) {
	cause := errors.New("dial tcp: connection refused")
	err := NewStorageUnavailable(cause)
	assert.True(t, errors.Is(err, cause))

	// AppError survives fmt.Errorf wrapping, as done by the policies.
	deep := fmt.Errorf("issue line 2: %w", NewInsufficientStock("BOX-1", 80, 50))
	appErr, ok := AsAppError(deep)
	assert.True(t, ok)
	assert.Equal(t, CodeInsufficientStock, appErr.Code)
	assert.Equal(t, int64(80), appErr.Details["requested"])
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(NewRetryableStorage(errors.New("reset"))))

	assert.False(t, IsRetryable(NewStorageUnavailable(errors.New("reset"))))
	assert.False(t, IsRetryable(NewInsufficientStock("BOX-1", 10, 5)))
	assert.False(t, IsRetryable(NewValidation("nope")))
	assert.False(t, IsRetryable(errors.New("plain")))
}

func TestIsBusinessRejection(t *testing.T) {
	assert.True(t, IsBusinessRejection(NewValidation("bad")))
	assert.True(t, IsBusinessRejection(NewInsufficientStock("BOX-1", 10, 5)))
	assert.True(t, IsBusinessRejection(NewAlreadyReversed("202601150001")))
	assert.True(t, IsBusinessRejection(NewNotFound("stock record", "BOX-1")))
	assert.True(t, IsBusinessRejection(NewDuplicate("movement record", "sequence_key", "202601150001")))

	assert.False(t, IsBusinessRejection(NewRetryableStorage(errors.New("reset"))))
	assert.False(t, IsBusinessRejection(NewInternal(errors.New("boom"))))
	assert.False(t, IsBusinessRejection(errors.New("plain")))
}

func TestHTTPStatus(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, GetHTTPStatus(NewValidation("bad")))
	assert.Equal(t, http.StatusUnprocessableEntity, GetHTTPStatus(NewInsufficientStock("BOX-1", 1, 0)))
	assert.Equal(t, http.StatusNotFound, GetHTTPStatus(NewNotFound("warehouse", "WH-X")))
	assert.Equal(t, http.StatusConflict, GetHTTPStatus(NewIdempotencyConflict("key")))
	assert.Equal(t, http.StatusUnauthorized, GetHTTPStatus(NewUnauthorized("no token")))
	assert.Equal(t, http.StatusInternalServerError, GetHTTPStatus(errors.New("plain")))
}

func TestWithDetail(t *testing.T) {
	err := NewValidation("duplicate box in batch").
		WithDetail("line", 3).
		WithDetail("box_id", "BOX-9")
	assert.Equal(t, 3, err.Details["line"])
	assert.Equal(t, "BOX-9", err.Details["box_id"])
}
