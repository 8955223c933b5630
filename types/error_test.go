package types

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_ChainingAndHelpers(t *testing.T) {
	t.Parallel()

	root := errors.New("root")
	err := NewError(ErrTransientNetwork, "upstream failed").
		WithCause(root).
		WithHTTPStatus(502).
		WithRetryable(true).
		WithProvider("minimax")

	if GetErrorCode(err) != ErrTransientNetwork {
		t.Fatalf("expected code %s, got %s", ErrTransientNetwork, GetErrorCode(err))
	}
	if !IsRetryable(err) {
		t.Fatalf("expected retryable")
	}
	if !errors.Is(err, root) {
		t.Fatalf("expected errors.Is unwrap to root")
	}
	if got := err.Error(); got == "" {
		t.Fatalf("expected non-empty error string")
	}
}

func TestError_WrappedLookup(t *testing.T) {
	t.Parallel()

	inner := NewError(ErrRateLimited, "slow down").WithRetryable(true)
	wrapped := fmt.Errorf("submit async job: %w", inner)

	assert.True(t, IsRetryable(wrapped))
	assert.True(t, IsErrorCode(wrapped, ErrRateLimited))

	e, ok := AsError(wrapped)
	assert.True(t, ok)
	assert.Same(t, inner, e)
}

func TestNewValidationError(t *testing.T) {
	t.Parallel()

	err := NewValidationError("speed", "must be within [%.1f, %.1f], got %.1f", 0.5, 2.0, 3.0)
	assert.Equal(t, ErrValidation, err.Code)
	assert.False(t, err.Retryable)
	assert.Equal(t, "[VALIDATION] speed: must be within [0.5, 2.0], got 3.0", err.Error())
}

func TestPlainErrors(t *testing.T) {
	t.Parallel()

	plain := errors.New("boom")
	assert.False(t, IsRetryable(plain))
	assert.Equal(t, ErrorCode(""), GetErrorCode(plain))
	assert.False(t, IsRetryable(nil))
}
