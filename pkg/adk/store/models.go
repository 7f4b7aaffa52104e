package store

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/kagent-dev/agentdesk/pkg/adk/conversation"
)

// DefaultTitle is the title of a freshly created session
const DefaultTitle = "New Chat"

// ChatSession is a stored chat with its revisions
type ChatSession struct {
	ID             string `gorm:"primaryKey;size:64"`
	Title          string
	PromptText     string
	IncludeHistory bool
	// CurrentRevision indexes Revisions, -1 when there are none
	CurrentRevision int
	RevisionCount   int
	CreatedAt       time.Time `gorm:"autoCreateTime:false"`
	UpdatedAt       time.Time `gorm:"autoUpdateTime:false"`

	Revisions []ChatRevision `gorm:"foreignKey:SessionID;constraint:OnDelete:CASCADE"`
}

// Current returns the selected revision, if any
func (s *ChatSession) Current() (*ChatRevision, bool) {
	if len(s.Revisions) == 0 {
		return nil, false
	}
	idx := min(max(s.CurrentRevision, 0), len(s.Revisions)-1)
	return &s.Revisions[idx], true
}

// ChatRevision records one finished run of a session
type ChatRevision struct {
	ID              uint   `gorm:"primaryKey"`
	SessionID       string `gorm:"index;size:64"`
	RunID           string `gorm:"size:64"`
	At              time.Time
	Model           string
	UserPrompt      string
	HistoryIncluded bool
	State           string
	Code            string
	InputTokens     int
	OutputTokens    int
	TotalTokens     int
	ResponseText    string
}

// StoredTurn is one persisted conversation turn
type StoredTurn struct {
	ID        string `gorm:"primaryKey;size:64"`
	SessionID string `gorm:"index:idx_turn_session_seq,priority:1;size:64"`
	Seq       int    `gorm:"index:idx_turn_session_seq,priority:2"`
	Role      string
	Data      string
}

func toStoredTurn(sessionID string, seq int, t conversation.Turn) (StoredTurn, error) {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	data, err := json.Marshal(t)
	if err != nil {
		return StoredTurn{}, err
	}
	return StoredTurn{ID: t.ID, SessionID: sessionID, Seq: seq, Role: string(t.Role), Data: string(data)}, nil
}

func (st StoredTurn) turn() (conversation.Turn, error) {
	var t conversation.Turn
	err := json.Unmarshal([]byte(st.Data), &t)
	return t, err
}
