package orchestrator

import (
	"time"

	"github.com/kagent-dev/agentdesk/pkg/adk/config"
	"github.com/kagent-dev/agentdesk/pkg/adk/contextpack"
)

// Config tunes the turn loop
type Config struct {
	// MaxToolRounds bounds the tool rounds of one run
	MaxToolRounds int
	// MaxRetries is the number of retries after a retryable failure of
	// one request, so a request is attempted at most MaxRetries+1 times.
	MaxRetries    int
	BackoffBase   time.Duration
	BackoffMax    time.Duration
	BackoffJitter float64
	SystemPrompt  string
}

// DefaultConfig returns the default tunables
func DefaultConfig() Config {
	return Config{
		MaxToolRounds: 10,
		MaxRetries:    3,
		BackoffBase:   500 * time.Millisecond,
		BackoffMax:    8 * time.Second,
		BackoffJitter: 0.2,
	}
}

// FromConfig converts the file configuration. Snippet mode replaces an
// empty system prompt with the snippet instruction.
func FromConfig(c config.OrchestratorConfig) Config {
	cfg := Config{
		MaxToolRounds: c.MaxToolRounds,
		MaxRetries:    c.Retries(),
		BackoffBase:   c.BackoffBase,
		BackoffMax:    c.BackoffMax,
		BackoffJitter: c.BackoffJitter,
		SystemPrompt:  c.SystemPrompt,
	}
	if cfg.SystemPrompt == "" && c.SnippetMode {
		cfg.SystemPrompt = contextpack.SnippetInstruction
	}
	return cfg
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.MaxToolRounds <= 0 {
		c.MaxToolRounds = def.MaxToolRounds
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}
	if c.BackoffBase <= 0 {
		c.BackoffBase = def.BackoffBase
	}
	if c.BackoffMax < c.BackoffBase {
		c.BackoffMax = c.BackoffBase
	}
	if c.BackoffJitter < 0 || c.BackoffJitter >= 1 {
		c.BackoffJitter = def.BackoffJitter
	}
	return c
}
