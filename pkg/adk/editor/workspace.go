package editor

import "sync"

// Workspace keeps one buffer per session so runs of different sessions
// never edit the same document.
type Workspace struct {
	mu      sync.Mutex
	buffers map[string]*Buffer
}

// NewWorkspace creates an empty workspace
func NewWorkspace() *Workspace {
	return &Workspace{buffers: make(map[string]*Buffer)}
}

// For returns the buffer of a session, creating an empty one on first use
func (w *Workspace) For(sessionID string) *Buffer {
	w.mu.Lock()
	defer w.mu.Unlock()
	b, ok := w.buffers[sessionID]
	if !ok {
		b = NewBuffer(sessionID, "")
		w.buffers[sessionID] = b
	}
	return b
}

// Drop forgets the buffer of a session
func (w *Workspace) Drop(sessionID string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.buffers, sessionID)
}

// Len returns the number of live buffers
func (w *Workspace) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.buffers)
}
