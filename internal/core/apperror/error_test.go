package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAllocationConflict_IsRetryable(t *testing.T) {
	err := fmt.Errorf("allocate: %w", NewAllocationConflict("invoice", 5))

	assert.True(t, IsRetryable(err))
	assert.True(t, HasCode(err, CodeAllocationConflict))
	assert.Equal(t, http.StatusServiceUnavailable, GetHTTPStatus(err))
}

func TestInvalidPattern_FailsClosed(t *testing.T) {
	err := NewInvalidPattern("INV-YYYY", "no running number")

	assert.False(t, IsRetryable(err))
	assert.Equal(t, http.StatusBadRequest, err.HTTPStatus)
	assert.Equal(t, "INV-YYYY", err.Details["pattern"])
}

func TestCascadeFailure_Unwrap(t *testing.T) {
	cause := errors.New("connection reset")
	err := NewCascadeCancellationFailure("doc-1").WithCause(cause)

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), CodeCascadeCancellation)
}

func TestGetHTTPStatus_PlainError(t *testing.T) {
	assert.Equal(t, http.StatusInternalServerError, GetHTTPStatus(errors.New("boom")))
	assert.False(t, IsNotFound(errors.New("boom")))
}
