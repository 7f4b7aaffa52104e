package errors

import (
	"errors"
	"fmt"
)

// AppError represents an application-level error with a code and optional cause
type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// New creates a new AppError
func New(code, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// Newf creates a new AppError with a formatted message and no cause
func Newf(code, format string, args ...any) *AppError {
	return &AppError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// CodeOf returns the code of the outermost AppError in err's chain, or "" if there is none.
func CodeOf(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

// HasCode reports whether any AppError in err's chain carries code.
func HasCode(err error, code string) bool {
	for err != nil {
		var appErr *AppError
		if !errors.As(err, &appErr) {
			return false
		}
		if appErr.Code == code {
			return true
		}
		err = appErr.Cause
	}
	return false
}

// Error codes
const (
	// Message model
	ErrCodeInvalidTurnOrder = "INVALID_TURN_ORDER"

	// Tool registry
	ErrCodeDuplicateTool    = "DUPLICATE_TOOL"
	ErrCodeUnknownTool      = "UNKNOWN_TOOL"
	ErrCodeInvalidArguments = "INVALID_ARGUMENTS"
	ErrCodeToolExecution    = "TOOL_EXECUTION_FAILED"
	ErrCodeRegistryBusy     = "REGISTRY_BUSY"

	// Transport
	ErrCodeRateLimited       = "RATE_LIMITED"
	ErrCodeAuthInvalid       = "AUTH_INVALID"
	ErrCodeNetworkError      = "NETWORK_ERROR"
	ErrCodeMalformedResponse = "MALFORMED_RESPONSE"

	// Orchestrator
	ErrCodeToolLoopExceeded = "TOOL_LOOP_EXCEEDED"
	ErrCodeRunCancelled     = "RUN_CANCELLED"

	// Session
	ErrCodeRunAlreadyActive = "RUN_ALREADY_ACTIVE"
	ErrCodeSessionNotFound  = "SESSION_NOT_FOUND"

	ErrCodeAgentConfig   = "AGENT_CONFIG_INVALID"
	ErrCodeAuthFailed    = "AUTH_FAILED"
	ErrCodeFileOperation = "FILE_OPERATION_FAILED"
	ErrCodeStore         = "STORE_FAILED"
)
