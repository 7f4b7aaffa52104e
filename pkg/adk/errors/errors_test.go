package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNew(t *testing.T) {
	err := New(ErrCodeToolExecution, "tool failed", nil)

	assert.NotNil(t, err)
	assert.Equal(t, ErrCodeToolExecution, err.Code)
	assert.Equal(t, "tool failed", err.Message)
	assert.Nil(t, err.Cause)
}

func TestNew_WithCause(t *testing.T) {
	cause := errors.New("underlying error")
	err := New(ErrCodeNetworkError, "stream interrupted", cause)

	assert.Equal(t, cause, err.Cause)
	assert.Contains(t, err.Error(), ErrCodeNetworkError)
	assert.Contains(t, err.Error(), "stream interrupted")
	assert.Contains(t, err.Error(), "underlying error")
}

func TestNewf(t *testing.T) {
	err := Newf(ErrCodeUnknownTool, "tool %q is not registered", "insert_text")

	assert.Equal(t, ErrCodeUnknownTool, err.Code)
	assert.Equal(t, `tool "insert_text" is not registered`, err.Message)
	assert.Nil(t, err.Cause)
}

func TestAppError_Unwrap(t *testing.T) {
	cause := errors.New("underlying error")
	err := New(ErrCodeToolExecution, "tool failed", cause)

	assert.Equal(t, cause, errors.Unwrap(err))
	assert.True(t, errors.Is(err, cause))
}

func TestCodeOf(t *testing.T) {
	assert.Equal(t, "", CodeOf(nil))
	assert.Equal(t, "", CodeOf(errors.New("plain")))

	err := New(ErrCodeRateLimited, "slow down", nil)
	assert.Equal(t, ErrCodeRateLimited, CodeOf(err))

	wrapped := fmt.Errorf("request failed: %w", err)
	assert.Equal(t, ErrCodeRateLimited, CodeOf(wrapped))
}

func TestHasCode(t *testing.T) {
	inner := New(ErrCodeAuthInvalid, "token expired", nil)
	outer := New(ErrCodeAuthFailed, "credential provider", inner)

	assert.True(t, HasCode(outer, ErrCodeAuthFailed))
	assert.True(t, HasCode(outer, ErrCodeAuthInvalid))
	assert.True(t, HasCode(fmt.Errorf("ctx: %w", outer), ErrCodeAuthInvalid))
	assert.False(t, HasCode(outer, ErrCodeNetworkError))
	assert.False(t, HasCode(nil, ErrCodeAuthFailed))
}

func TestErrorCodes(t *testing.T) {
	codes := []string{
		ErrCodeInvalidTurnOrder,
		ErrCodeDuplicateTool,
		ErrCodeUnknownTool,
		ErrCodeInvalidArguments,
		ErrCodeToolExecution,
		ErrCodeRegistryBusy,
		ErrCodeRateLimited,
		ErrCodeAuthInvalid,
		ErrCodeNetworkError,
		ErrCodeMalformedResponse,
		ErrCodeToolLoopExceeded,
		ErrCodeRunCancelled,
		ErrCodeRunAlreadyActive,
		ErrCodeSessionNotFound,
		ErrCodeAgentConfig,
		ErrCodeAuthFailed,
		ErrCodeFileOperation,
		ErrCodeStore,
	}

	seen := make(map[string]bool)
	for _, code := range codes {
		assert.NotEmpty(t, code)
		assert.False(t, seen[code], "duplicate error code: %s", code)
		seen[code] = true
	}
}

func TestAppError_NilCause(t *testing.T) {
	err := New(ErrCodeToolExecution, "tool failed", nil)
	errorString := err.Error()

	assert.NotEmpty(t, errorString)
	assert.NotContains(t, errorString, "<nil>")
	assert.NotContains(t, errorString, "caused by")
}
