package orchestrator

import (
	"time"

	"github.com/kagent-dev/agentdesk/pkg/adk/llm"
)

// Outcome summarizes a finished run
type Outcome struct {
	RunID string `json:"run_id"`
	State State  `json:"state"`
	// Code is the error code of a failed or cancelled run
	Code      string        `json:"code,omitempty"`
	Err       error         `json:"-"`
	Rounds    int           `json:"rounds"`
	Attempts  int           `json:"attempts"`
	Usage     llm.Usage     `json:"usage"`
	FinalText string        `json:"final_text,omitempty"`
	Duration  time.Duration `json:"duration"`
}

// Message returns the error text, or an empty string on success
func (o Outcome) Message() string {
	if o.Err == nil {
		return ""
	}
	return o.Err.Error()
}
