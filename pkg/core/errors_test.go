package core

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInvalidInput_Unwrap(t *testing.T) {
	err := InvalidInput(ErrUnsupportedFileType)

	assert.True(t, errors.Is(err, ErrUnsupportedFileType))
	var ie *InvalidInputError
	assert.True(t, errors.As(err, &ie))
	assert.False(t, IsRetryable(err))
}

func TestTransient_IsRetryable(t *testing.T) {
	err := Transient(errors.New("connection reset"))

	assert.True(t, IsRetryable(err))

	// Retryability survives wrapping.
	wrapped := fmt.Errorf("stage upload: %w", err)
	assert.True(t, IsRetryable(wrapped))
}

func TestIsRetryable_PlainError(t *testing.T) {
	assert.False(t, IsRetryable(errors.New("boom")))
	assert.False(t, IsRetryable(nil))
}

func TestIsCancellation(t *testing.T) {
	assert.True(t, IsCancellation(context.Canceled))
	assert.True(t, IsCancellation(context.DeadlineExceeded))
	assert.True(t, IsCancellation(fmt.Errorf("stage: %w", context.Canceled)))
	assert.False(t, IsCancellation(errors.New("boom")))
	assert.False(t, IsCancellation(Transient(errors.New("boom"))))
}
