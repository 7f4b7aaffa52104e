package llm

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/openai/openai-go"
	"google.golang.org/genai"

	apperrors "github.com/kagent-dev/agentdesk/pkg/adk/errors"
)

// FailureReason classifies a failed stream
type FailureReason string

const (
	FailureRateLimited       FailureReason = "rate_limited"
	FailureAuthInvalid       FailureReason = "auth_invalid"
	FailureNetworkError      FailureReason = "network_error"
	FailureMalformedResponse FailureReason = "malformed_response"
)

// Retryable reports whether the orchestrator may retry after this failure
func (r FailureReason) Retryable() bool {
	return r == FailureRateLimited || r == FailureNetworkError
}

// Code returns the error code for r
func (r FailureReason) Code() string {
	switch r {
	case FailureRateLimited:
		return apperrors.ErrCodeRateLimited
	case FailureAuthInvalid:
		return apperrors.ErrCodeAuthInvalid
	case FailureNetworkError:
		return apperrors.ErrCodeNetworkError
	default:
		return apperrors.ErrCodeMalformedResponse
	}
}

// ReasonForCode maps an error code back to a failure reason
func ReasonForCode(code string) (FailureReason, bool) {
	for _, r := range []FailureReason{FailureRateLimited, FailureAuthInvalid, FailureNetworkError, FailureMalformedResponse} {
		if r.Code() == code {
			return r, true
		}
	}
	return "", false
}

// NewFailed builds a Failed event whose error carries the reason's code
func NewFailed(reason FailureReason, message string, cause error) Failed {
	return Failed{Reason: reason, Err: apperrors.New(reason.Code(), message, cause)}
}

// Classify maps a provider or transport error onto a failure reason
func Classify(err error) FailureReason {
	if err == nil {
		return FailureMalformedResponse
	}

	if reason, ok := ReasonForCode(apperrors.CodeOf(err)); ok {
		return reason
	}
	if status, ok := statusCode(err); ok {
		return classifyStatus(status)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return FailureNetworkError
	}
	if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) || errors.Is(err, context.DeadlineExceeded) {
		return FailureNetworkError
	}

	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
		return FailureMalformedResponse
	}
	return FailureMalformedResponse
}

func classifyStatus(status int) FailureReason {
	switch {
	case status == http.StatusTooManyRequests:
		return FailureRateLimited
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return FailureAuthInvalid
	case status == http.StatusRequestTimeout || status == http.StatusConflict || status >= 500:
		return FailureNetworkError
	default:
		return FailureMalformedResponse
	}
}

func statusCode(err error) (int, bool) {
	var anthropicErr *anthropic.Error
	if errors.As(err, &anthropicErr) {
		return anthropicErr.StatusCode, true
	}
	var openaiErr *openai.Error
	if errors.As(err, &openaiErr) {
		return openaiErr.StatusCode, true
	}
	var genaiErr genai.APIError
	if errors.As(err, &genaiErr) {
		return genaiErr.Code, true
	}
	var genaiPtr *genai.APIError
	if errors.As(err, &genaiPtr) && genaiPtr != nil {
		return genaiPtr.Code, true
	}
	return 0, false
}

// failure converts a stream error into a Failed event
func failure(provider string, err error) Failed {
	reason := Classify(err)
	return NewFailed(reason, provider+" stream failed", err)
}
