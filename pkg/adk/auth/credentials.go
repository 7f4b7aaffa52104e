package auth

import (
	"context"
	"os"
	"strings"
	"time"

	apperrors "github.com/kagent-dev/agentdesk/pkg/adk/errors"
)

// Credentials is the token presented to the model provider
type Credentials struct {
	Token     string
	ExpiresAt time.Time
}

// Valid reports whether the token is present and not expired at now.
// A zero ExpiresAt never expires.
func (c Credentials) Valid(now time.Time) bool {
	if strings.TrimSpace(c.Token) == "" {
		return false
	}
	return c.ExpiresAt.IsZero() || now.Before(c.ExpiresAt)
}

// Provider supplies credentials on demand
type Provider interface {
	Credentials(ctx context.Context) (Credentials, error)
}

// StaticProvider always returns the same credentials
type StaticProvider struct {
	creds Credentials
}

// NewStaticProvider creates a provider for a fixed token
func NewStaticProvider(token string) *StaticProvider {
	return &StaticProvider{creds: Credentials{Token: token}}
}

func (s *StaticProvider) Credentials(ctx context.Context) (Credentials, error) {
	return s.creds, nil
}

// EnvProvider reads the token from the first non-empty environment variable
type EnvProvider struct {
	vars []string
}

// NewEnvProvider creates a provider reading vars in order
func NewEnvProvider(vars ...string) *EnvProvider {
	return &EnvProvider{vars: vars}
}

func (e *EnvProvider) Credentials(ctx context.Context) (Credentials, error) {
	for _, name := range e.vars {
		if v := strings.TrimSpace(os.Getenv(name)); v != "" {
			return Credentials{Token: v}, nil
		}
	}
	return Credentials{}, apperrors.Newf(apperrors.ErrCodeAuthFailed, "none of %s is set", strings.Join(e.vars, ", "))
}

// Chain tries each provider in order and returns the first valid credentials
type Chain []Provider

func (c Chain) Credentials(ctx context.Context) (Credentials, error) {
	var lastErr error
	now := time.Now()
	for _, p := range c {
		if p == nil {
			continue
		}
		creds, err := p.Credentials(ctx)
		if err != nil {
			lastErr = err
			continue
		}
		if creds.Valid(now) {
			return creds, nil
		}
	}
	if lastErr == nil {
		lastErr = apperrors.New(apperrors.ErrCodeAuthFailed, "no credentials available", nil)
	}
	return Credentials{}, lastErr
}
