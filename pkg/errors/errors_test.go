package errors

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWrapKeepsCause(t *testing.T) {
	err := Wrap(sql.ErrNoRows, ErrNotFound.Code, ErrNotFound.Status, "exam not found")

	assert.Equal(t, "exam not found: sql: no rows in result set", err.Error())
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NotErrorIs(t, err, ErrConflict)
}

func TestCloneMatchesSentinel(t *testing.T) {
	clone := Clone(ErrValidation, "date must be YYYY-MM-DD")

	assert.Equal(t, "date must be YYYY-MM-DD", clone.Message)
	assert.Equal(t, "validation failed", ErrValidation.Message)
	assert.ErrorIs(t, fmt.Errorf("handler: %w", clone), ErrValidation)
	assert.Nil(t, Clone(nil, "x"))
}

func TestFromError(t *testing.T) {
	assert.Nil(t, FromError(nil))

	plain := FromError(errors.New("boom"))
	assert.Equal(t, ErrInternal.Code, plain.Code)
	assert.Equal(t, http.StatusInternalServerError, plain.Status)

	typed := Clone(ErrLockTimeout, "")
	assert.Same(t, typed, FromError(fmt.Errorf("wrapped: %w", typed)))
}

func TestRetryable(t *testing.T) {
	assert.True(t, Retryable(Clone(ErrStaleSnapshot, "")))
	assert.True(t, Retryable(Wrap(errors.New("busy"), ErrLockTimeout.Code, ErrLockTimeout.Status, "busy")))
	assert.False(t, Retryable(ErrConflict))
	assert.False(t, Retryable(nil))
	// plain errors normalise to INTERNAL_ERROR, which is not retryable
	assert.False(t, Retryable(errors.New("boom")))
}

func TestNilErrorSafe(t *testing.T) {
	var e *Error
	assert.Equal(t, "<nil>", e.Error())
	assert.Nil(t, e.Unwrap())
	assert.False(t, e.Is(ErrInternal))
}
