package session

import (
	"context"

	"github.com/kagent-dev/agentdesk/pkg/adk/conversation"
	"github.com/kagent-dev/agentdesk/pkg/adk/orchestrator"
	"github.com/kagent-dev/agentdesk/pkg/adk/store"
)

// RunRecord describes a finished run for persistence
type RunRecord struct {
	Prompt  string
	Model   string
	Outcome orchestrator.Outcome
	// Turns appended to the conversation since the previous record
	Turns []conversation.Turn
	// HistoryIncluded is set when the run saw earlier turns
	HistoryIncluded bool
}

// Recorder persists finished runs
type Recorder interface {
	Record(ctx context.Context, sessionID string, rec RunRecord) error
}

// StoreRecorder writes runs to the chat store as revisions plus turns
type StoreRecorder struct {
	store *store.Store
}

// NewStoreRecorder creates a recorder backed by s
func NewStoreRecorder(s *store.Store) *StoreRecorder {
	return &StoreRecorder{store: s}
}

func (r *StoreRecorder) Record(ctx context.Context, sessionID string, rec RunRecord) error {
	if err := r.store.AppendTurns(ctx, sessionID, rec.Turns); err != nil {
		return err
	}
	_, err := r.store.AddRevision(ctx, sessionID, store.ChatRevision{
		RunID:           rec.Outcome.RunID,
		Model:           rec.Model,
		UserPrompt:      rec.Prompt,
		HistoryIncluded: rec.HistoryIncluded,
		State:           string(rec.Outcome.State),
		Code:            rec.Outcome.Code,
		InputTokens:     rec.Outcome.Usage.InputTokens,
		OutputTokens:    rec.Outcome.Usage.OutputTokens,
		ResponseText:    rec.Outcome.FinalText,
	})
	return err
}
