package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/go-logr/logr"
	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/kagent-dev/agentdesk/pkg/adk/config"
	"github.com/kagent-dev/agentdesk/pkg/adk/conversation"
	apperrors "github.com/kagent-dev/agentdesk/pkg/adk/errors"
)

// Store persists chat sessions, their revisions and conversation turns
type Store struct {
	db  *gorm.DB
	now func() time.Time
}

// Open connects to the configured database and migrates the schema
func Open(ctx context.Context, cfg config.StoreConfig) (*Store, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case config.DriverSQLite, "":
		if dir := filepath.Dir(cfg.DSN); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, apperrors.New(apperrors.ErrCodeStore, "failed to create database directory", err)
			}
		}
		dialector = sqlite.Open(cfg.DSN)
	case config.DriverPostgres:
		dialector = postgres.Open(cfg.DSN)
	default:
		return nil, apperrors.Newf(apperrors.ErrCodeStore, "unsupported store driver %q", cfg.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, apperrors.New(apperrors.ErrCodeStore, "failed to open database", err)
	}
	s := New(db)
	if err := s.Migrate(ctx); err != nil {
		return nil, err
	}
	logr.FromContextOrDiscard(ctx).WithName("store").V(1).Info("Opened chat store", "driver", cfg.Driver)
	return s, nil
}

// New wraps an open database
func New(db *gorm.DB) *Store {
	return &Store{db: db, now: time.Now}
}

// Migrate creates or updates the tables
func (s *Store) Migrate(ctx context.Context) error {
	if err := s.db.WithContext(ctx).AutoMigrate(&ChatSession{}, &ChatRevision{}, &StoredTurn{}); err != nil {
		return apperrors.New(apperrors.ErrCodeStore, "failed to migrate schema", err)
	}
	return nil
}

// Close releases the database connection
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// CreateSession stores a new empty session
func (s *Store) CreateSession(ctx context.Context) (*ChatSession, error) {
	now := s.now()
	sess := &ChatSession{
		ID:              uuid.NewString(),
		Title:           DefaultTitle,
		CurrentRevision: -1,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.db.WithContext(ctx).Create(sess).Error; err != nil {
		return nil, apperrors.New(apperrors.ErrCodeStore, "failed to create session", err)
	}
	return sess, nil
}

// GetSession loads a session with its revisions
func (s *Store) GetSession(ctx context.Context, id string) (*ChatSession, error) {
	var sess ChatSession
	err := s.db.WithContext(ctx).
		Preload("Revisions", func(db *gorm.DB) *gorm.DB { return db.Order("id") }).
		First(&sess, "id = ?", id).Error
	if err != nil {
		return nil, notFound(err, id)
	}
	return &sess, nil
}

// ListSessions returns all sessions. Sessions with revisions come first,
// most recently updated first, followed by the rest, newest first.
func (s *Store) ListSessions(ctx context.Context) ([]ChatSession, error) {
	var sessions []ChatSession
	if err := s.db.WithContext(ctx).Find(&sessions).Error; err != nil {
		return nil, apperrors.New(apperrors.ErrCodeStore, "failed to list sessions", err)
	}
	sort.SliceStable(sessions, func(i, j int) bool {
		a, b := sessions[i], sessions[j]
		if (a.RevisionCount > 0) != (b.RevisionCount > 0) {
			return a.RevisionCount > 0
		}
		if a.RevisionCount == 0 {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.UpdatedAt.After(b.UpdatedAt)
	})
	return sessions, nil
}

// DeleteSession removes a session with its revisions and turns
func (s *Store) DeleteSession(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&StoredTurn{}, "session_id = ?", id).Error; err != nil {
			return apperrors.New(apperrors.ErrCodeStore, "failed to delete turns", err)
		}
		if err := tx.Delete(&ChatRevision{}, "session_id = ?", id).Error; err != nil {
			return apperrors.New(apperrors.ErrCodeStore, "failed to delete revisions", err)
		}
		res := tx.Delete(&ChatSession{}, "id = ?", id)
		if res.Error != nil {
			return apperrors.New(apperrors.ErrCodeStore, "failed to delete session", res.Error)
		}
		if res.RowsAffected == 0 {
			return apperrors.Newf(apperrors.ErrCodeSessionNotFound, "session %s not found", id)
		}
		return nil
	})
}

// Touch bumps the session's updatedAt when promote is true. Without
// promote it only verifies the session exists, so selecting or editing a
// chat does not reorder the list.
func (s *Store) Touch(ctx context.Context, id string, promote bool) error {
	if !promote {
		_, err := s.GetSession(ctx, id)
		return err
	}
	return s.updateColumns(ctx, id, map[string]any{"updated_at": s.now()})
}

// SetPrompt stores the draft prompt without promoting the session
func (s *Store) SetPrompt(ctx context.Context, id, prompt string, includeHistory bool) error {
	return s.updateColumns(ctx, id, map[string]any{"prompt_text": prompt, "include_history": includeHistory})
}

// Rename changes the session title
func (s *Store) Rename(ctx context.Context, id, title string) error {
	return s.updateColumns(ctx, id, map[string]any{"title": title})
}

func (s *Store) updateColumns(ctx context.Context, id string, cols map[string]any) error {
	res := s.db.WithContext(ctx).Model(&ChatSession{}).Where("id = ?", id).UpdateColumns(cols)
	if res.Error != nil {
		return apperrors.New(apperrors.ErrCodeStore, "failed to update session", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperrors.Newf(apperrors.ErrCodeSessionNotFound, "session %s not found", id)
	}
	return nil
}

// AddRevision appends a revision, selects it and promotes the session.
// The first revision also titles an untitled session after its prompt.
func (s *Store) AddRevision(ctx context.Context, sessionID string, rev ChatRevision) (*ChatRevision, error) {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var sess ChatSession
		if err := tx.First(&sess, "id = ?", sessionID).Error; err != nil {
			return notFound(err, sessionID)
		}

		now := s.now()
		rev.ID = 0
		rev.SessionID = sessionID
		if rev.At.IsZero() {
			rev.At = now
		}
		if rev.TotalTokens == 0 {
			rev.TotalTokens = rev.InputTokens + rev.OutputTokens
		}
		if err := tx.Create(&rev).Error; err != nil {
			return apperrors.New(apperrors.ErrCodeStore, "failed to add revision", err)
		}

		cols := map[string]any{
			"revision_count":   sess.RevisionCount + 1,
			"current_revision": sess.RevisionCount,
			"updated_at":       now,
		}
		if sess.Title == DefaultTitle && rev.UserPrompt != "" {
			cols["title"] = titleFrom(rev.UserPrompt)
		}
		if err := tx.Model(&ChatSession{}).Where("id = ?", sessionID).UpdateColumns(cols).Error; err != nil {
			return apperrors.New(apperrors.ErrCodeStore, "failed to update session", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &rev, nil
}

// SelectRevision changes the current revision, clamped to the valid range
func (s *Store) SelectRevision(ctx context.Context, sessionID string, index int) error {
	sess, err := s.GetSession(ctx, sessionID)
	if err != nil {
		return err
	}
	if sess.RevisionCount == 0 {
		index = -1
	} else {
		index = min(max(index, 0), sess.RevisionCount-1)
	}
	return s.updateColumns(ctx, sessionID, map[string]any{"current_revision": index})
}

// AppendTurns persists turns after the ones already stored for the session
func (s *Store) AppendTurns(ctx context.Context, sessionID string, turns []conversation.Turn) error {
	if len(turns) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var sess ChatSession
		if err := tx.Select("id").First(&sess, "id = ?", sessionID).Error; err != nil {
			return notFound(err, sessionID)
		}
		var count int64
		if err := tx.Model(&StoredTurn{}).Where("session_id = ?", sessionID).Count(&count).Error; err != nil {
			return apperrors.New(apperrors.ErrCodeStore, "failed to count turns", err)
		}

		rows := make([]StoredTurn, 0, len(turns))
		for i, t := range turns {
			row, err := toStoredTurn(sessionID, int(count)+i, t)
			if err != nil {
				return apperrors.New(apperrors.ErrCodeStore, "failed to encode turn", err)
			}
			rows = append(rows, row)
		}
		if err := tx.Create(&rows).Error; err != nil {
			return apperrors.New(apperrors.ErrCodeStore, "failed to store turns", err)
		}
		return nil
	})
}

// LoadTurns returns the stored turns of a session in order
func (s *Store) LoadTurns(ctx context.Context, sessionID string) ([]conversation.Turn, error) {
	var rows []StoredTurn
	if err := s.db.WithContext(ctx).Where("session_id = ?", sessionID).Order("seq").Find(&rows).Error; err != nil {
		return nil, apperrors.New(apperrors.ErrCodeStore, "failed to load turns", err)
	}
	turns := make([]conversation.Turn, 0, len(rows))
	for _, row := range rows {
		t, err := row.turn()
		if err != nil {
			return nil, apperrors.New(apperrors.ErrCodeStore, fmt.Sprintf("turn %s is corrupt", row.ID), err)
		}
		turns = append(turns, t)
	}
	return turns, nil
}

// LoadConversation rebuilds the conversation of a session
func (s *Store) LoadConversation(ctx context.Context, sessionID string) (*conversation.Conversation, error) {
	if _, err := s.GetSession(ctx, sessionID); err != nil {
		return nil, err
	}
	turns, err := s.LoadTurns(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return conversation.Restore(turns)
}

func notFound(err error, id string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperrors.Newf(apperrors.ErrCodeSessionNotFound, "session %s not found", id)
	}
	return apperrors.New(apperrors.ErrCodeStore, "failed to load session", err)
}

func titleFrom(prompt string) string {
	const maxTitle = 48
	runes := []rune(prompt)
	for i, r := range runes {
		if r == '\n' {
			runes = runes[:i]
			break
		}
	}
	if len(runes) > maxTitle {
		return string(runes[:maxTitle-3]) + "..."
	}
	return string(runes)
}
