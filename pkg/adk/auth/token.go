package auth

import (
	"context"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/go-logr/logr"

	apperrors "github.com/kagent-dev/agentdesk/pkg/adk/errors"
)

const (
	DefaultRefreshPeriod = 60 * time.Second
)

// TokenService serves a token read from a file and re-read periodically
type TokenService struct {
	tokenPath     string
	refreshPeriod time.Duration
	token         string
	mu            sync.RWMutex
	stopOnce      sync.Once
	stopCh        chan struct{}
}

// NewTokenService creates a new TokenService
func NewTokenService(tokenPath string, refreshPeriod time.Duration) *TokenService {
	if refreshPeriod <= 0 {
		refreshPeriod = DefaultRefreshPeriod
	}
	return &TokenService{
		tokenPath:     tokenPath,
		refreshPeriod: refreshPeriod,
		stopCh:        make(chan struct{}),
	}
}

// Start loads the token and refreshes it until ctx is done or Stop is called
func (t *TokenService) Start(ctx context.Context) error {
	if err := t.refreshToken(); err != nil {
		return apperrors.New(apperrors.ErrCodeAuthFailed, "failed to load initial token", err)
	}

	log := logr.FromContextOrDiscard(ctx).WithName("token-service")
	ticker := time.NewTicker(t.refreshPeriod)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := t.refreshToken(); err != nil {
					log.Info("Failed to refresh token", "path", t.tokenPath, "error", err.Error())
				}
			case <-ctx.Done():
				return
			case <-t.stopCh:
				return
			}
		}
	}()

	return nil
}

// Stop stops the refresh cycle
func (t *TokenService) Stop() {
	t.stopOnce.Do(func() { close(t.stopCh) })
}

func (t *TokenService) refreshToken() error {
	data, err := os.ReadFile(t.tokenPath)
	if err != nil {
		// a missing file leaves the previous token in place
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	t.mu.Lock()
	t.token = strings.TrimSpace(string(data))
	t.mu.Unlock()

	return nil
}

// GetToken returns the current token
func (t *TokenService) GetToken() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.token
}

func (t *TokenService) Credentials(ctx context.Context) (Credentials, error) {
	token := t.GetToken()
	if token == "" {
		return Credentials{}, apperrors.Newf(apperrors.ErrCodeAuthFailed, "token file %s is empty or missing", t.tokenPath)
	}
	return Credentials{Token: token}, nil
}
