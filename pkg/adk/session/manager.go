package session

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/go-logr/logr"
	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"

	apperrors "github.com/kagent-dev/agentdesk/pkg/adk/errors"
	"github.com/kagent-dev/agentdesk/pkg/adk/store"
)

// Info summarizes a session for listings
type Info struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Revisions int       `json:"revisions"`
	Active    bool      `json:"active"`
}

type entry struct {
	ctrl    *Controller
	created time.Time
}

// Manager owns one controller per session. With a store, sessions are
// persisted and loaded lazily; without one they live in memory only.
type Manager struct {
	runner Runner
	store  *store.Store

	onDelete func(id string)

	mu       sync.Mutex
	sessions map[string]*entry
}

// ManagerOption configures a Manager
type ManagerOption func(*Manager)

// WithOnDelete calls fn after a session is deleted
func WithOnDelete(fn func(id string)) ManagerOption {
	return func(m *Manager) {
		m.onDelete = fn
	}
}

// NewManager creates a manager. st may be nil.
func NewManager(runner Runner, st *store.Store, opts ...ManagerOption) *Manager {
	m := &Manager{
		runner:   runner,
		store:    st,
		sessions: make(map[string]*entry),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Create starts a new empty session
func (m *Manager) Create(ctx context.Context) (*Controller, error) {
	id := uuid.NewString()
	created := time.Now()
	var opts []Option
	if m.store != nil {
		sess, err := m.store.CreateSession(ctx)
		if err != nil {
			return nil, err
		}
		id, created = sess.ID, sess.CreatedAt
		opts = append(opts, WithRecorder(NewStoreRecorder(m.store)))
	}

	ctrl := NewController(id, nil, m.runner, opts...)
	m.mu.Lock()
	m.sessions[id] = &entry{ctrl: ctrl, created: created}
	m.mu.Unlock()

	logr.FromContextOrDiscard(ctx).WithName("session").V(1).Info("Session created", "session", id)
	return ctrl, nil
}

// Get returns the controller of a session, loading it from the store on
// first use.
func (m *Manager) Get(ctx context.Context, id string) (*Controller, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if e, ok := m.sessions[id]; ok {
		return e.ctrl, nil
	}
	if m.store == nil {
		return nil, apperrors.Newf(apperrors.ErrCodeSessionNotFound, "session %s not found", id)
	}
	sess, err := m.store.GetSession(ctx, id)
	if err != nil {
		return nil, err
	}
	conv, err := m.store.LoadConversation(ctx, id)
	if err != nil {
		return nil, err
	}
	ctrl := NewController(id, conv, m.runner,
		WithRecorder(NewStoreRecorder(m.store)),
		WithPersisted(conv.Len()),
	)
	m.sessions[id] = &entry{ctrl: ctrl, created: sess.CreatedAt}
	return ctrl, nil
}

// List returns every known session. Stored sessions keep the store's
// ordering; memory-only sessions are listed newest first.
func (m *Manager) List(ctx context.Context) ([]Info, error) {
	m.mu.Lock()
	active := make(map[string]bool, len(m.sessions))
	var local []Info
	for id, e := range m.sessions {
		active[id] = e.ctrl.Active() != nil
		if m.store == nil {
			local = append(local, Info{
				ID:        id,
				Title:     store.DefaultTitle,
				CreatedAt: e.created,
				UpdatedAt: e.created,
				Active:    active[id],
			})
		}
	}
	m.mu.Unlock()

	if m.store == nil {
		sort.Slice(local, func(i, j int) bool {
			return local[i].CreatedAt.After(local[j].CreatedAt)
		})
		return local, nil
	}

	sessions, err := m.store.ListSessions(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Info, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, Info{
			ID:        s.ID,
			Title:     s.Title,
			CreatedAt: s.CreatedAt,
			UpdatedAt: s.UpdatedAt,
			Revisions: s.RevisionCount,
			Active:    active[s.ID],
		})
	}
	return out, nil
}

// Delete stops a session's run and removes it
func (m *Manager) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	e, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()

	if ok {
		if err := e.ctrl.Close(ctx); err != nil {
			return err
		}
	}
	if m.store != nil {
		if err := m.store.DeleteSession(ctx, id); err != nil {
			return err
		}
	} else if !ok {
		return apperrors.Newf(apperrors.ErrCodeSessionNotFound, "session %s not found", id)
	}
	if m.onDelete != nil {
		m.onDelete(id)
	}
	return nil
}

// Close cancels all active runs and waits for them
func (m *Manager) Close(ctx context.Context) error {
	m.mu.Lock()
	entries := make([]*entry, 0, len(m.sessions))
	for _, e := range m.sessions {
		entries = append(entries, e)
	}
	m.sessions = make(map[string]*entry)
	m.mu.Unlock()

	var result error
	for _, e := range entries {
		if err := e.ctrl.Close(ctx); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result
}
