package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestQuotaExceededError_IsWrapFriendly(t *testing.T) {
	err := fmt.Errorf("record send: %w", &QuotaExceededError{Used: 5, Limit: 5})
	require.True(t, errors.Is(err, ErrQuotaExceeded))

	var qe *QuotaExceededError
	require.True(t, errors.As(err, &qe))
	require.Equal(t, 5, qe.Limit)
	require.Contains(t, err.Error(), "used 5 of 5")
}

func TestValidationAndNotFound(t *testing.T) {
	err := Validation("message is %s", "empty")
	require.True(t, errors.Is(err, ErrValidation))
	require.Equal(t, "validation failed: message is empty", err.Error())

	err = NotFound("claim")
	require.True(t, errors.Is(err, ErrNotFound))
	require.Equal(t, "claim not found", err.Error())
}
