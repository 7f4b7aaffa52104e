// Package session owns conversations and the runs that extend them.
package session

import (
	"context"
	"sync"

	"github.com/go-logr/logr"
	"github.com/google/uuid"

	"github.com/kagent-dev/agentdesk/pkg/adk/conversation"
	apperrors "github.com/kagent-dev/agentdesk/pkg/adk/errors"
	"github.com/kagent-dev/agentdesk/pkg/adk/orchestrator"
)

// Runner executes one run over a conversation
type Runner interface {
	RunSession(ctx context.Context, sessionID, runID string, conv *conversation.Conversation, sink orchestrator.Sink) orchestrator.Outcome
	Model() string
}

// Run is a handle on a submitted run
type Run struct {
	id     string
	prompt string
	cancel context.CancelFunc
	done   chan struct{}

	mu      sync.Mutex
	outcome orchestrator.Outcome
}

// ID returns the run ID
func (r *Run) ID() string {
	return r.id
}

// Prompt returns the user text that started the run
func (r *Run) Prompt() string {
	return r.prompt
}

// Cancel asks the run to stop. It is safe to call more than once.
func (r *Run) Cancel() {
	r.cancel()
}

// Done is closed once the run reached a terminal state
func (r *Run) Done() <-chan struct{} {
	return r.done
}

// Outcome returns the result; it is only meaningful after Done is closed
func (r *Run) Outcome() orchestrator.Outcome {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.outcome
}

// Wait blocks until the run ends or ctx is done
func (r *Run) Wait(ctx context.Context) (orchestrator.Outcome, error) {
	select {
	case <-r.done:
		return r.Outcome(), nil
	case <-ctx.Done():
		return orchestrator.Outcome{}, ctx.Err()
	}
}

// Controller owns one conversation and at most one active run over it.
// The conversation is only extended by the active run; callers read it
// through snapshots.
type Controller struct {
	id       string
	conv     *conversation.Conversation
	runner   Runner
	recorder Recorder
	feed     *Feed

	mu        sync.Mutex
	active    *Run
	persisted int
	closed    bool
}

// Option configures a Controller
type Option func(*Controller)

// WithRecorder persists every finished run through r
func WithRecorder(r Recorder) Option {
	return func(c *Controller) {
		c.recorder = r
	}
}

// WithPersisted marks the first n turns of the conversation as already stored
func WithPersisted(n int) Option {
	return func(c *Controller) {
		c.persisted = n
	}
}

// NewController creates a controller for conv. A nil conv starts empty.
func NewController(id string, conv *conversation.Conversation, runner Runner, opts ...Option) *Controller {
	if conv == nil {
		conv = conversation.New()
	}
	c := &Controller{
		id:     id,
		conv:   conv,
		runner: runner,
		feed:   NewFeed(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ID returns the session ID
func (c *Controller) ID() string {
	return c.id
}

// Snapshot returns the committed conversation
func (c *Controller) Snapshot() conversation.Snapshot {
	return c.conv.Snapshot()
}

// Subscribe returns the ordered update feed of every run of the session
func (c *Controller) Subscribe() (<-chan Update, func()) {
	return c.feed.Subscribe()
}

// Active returns the running run, or nil when idle
func (c *Controller) Active() *Run {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

// Submit appends a user turn and starts a run. It fails with
// RUN_ALREADY_ACTIVE while another run is in progress, leaving the
// conversation unchanged. The run outlives ctx; use Cancel to stop it.
func (c *Controller) Submit(ctx context.Context, text string) (*Run, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, apperrors.Newf(apperrors.ErrCodeSessionNotFound, "session %s is closed", c.id)
	}
	if c.active != nil {
		return nil, apperrors.Newf(apperrors.ErrCodeRunAlreadyActive, "run %s is still active", c.active.id)
	}

	history := c.conv.Len() > 0
	if err := c.conv.Append(conversation.NewUserTurn(text)); err != nil {
		return nil, err
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	run := &Run{
		id:     uuid.NewString(),
		prompt: text,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	c.active = run

	log := logr.FromContextOrDiscard(ctx).WithName("session").WithValues("session", c.id, "run", run.id)
	log.V(1).Info("Run submitted")

	sink := orchestrator.SinkFunc(func(runID string, ev orchestrator.Event) {
		fin, ok := ev.(orchestrator.Finished)
		if !ok {
			c.feed.Publish(runID, ev)
			return
		}
		c.release(runCtx, run, fin.Outcome, history, log)
		c.feed.Publish(runID, ev)
		close(run.done)
	})

	go func() {
		defer cancel()
		c.runner.RunSession(runCtx, c.id, run.id, c.conv, sink)
	}()
	return run, nil
}

// release records the run and frees the session before the terminal
// update is published, so a subscriber reacting to it can submit again.
// Done is closed by the caller after the update is published.
func (c *Controller) release(ctx context.Context, run *Run, out orchestrator.Outcome, history bool, log logr.Logger) {
	c.mu.Lock()
	turns := c.conv.Snapshot().Since(c.persisted)
	if c.recorder != nil {
		rec := RunRecord{
			Prompt:          run.prompt,
			Model:           c.runner.Model(),
			Outcome:         out,
			Turns:           turns,
			HistoryIncluded: history,
		}
		if err := c.recorder.Record(context.WithoutCancel(ctx), c.id, rec); err != nil {
			log.Error(err, "Failed to record run")
		} else {
			c.persisted += len(turns)
		}
	}
	if c.active == run {
		c.active = nil
	}
	c.mu.Unlock()

	run.mu.Lock()
	run.outcome = out
	run.mu.Unlock()
}

// CancelActive cancels the active run. It reports whether a run was active.
func (c *Controller) CancelActive() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active == nil {
		return false
	}
	c.active.Cancel()
	return true
}

// Restart cancels the active run, waits for it to end and submits text
func (c *Controller) Restart(ctx context.Context, text string) (*Run, error) {
	for {
		run := c.Active()
		if run == nil {
			break
		}
		run.Cancel()
		if _, err := run.Wait(ctx); err != nil {
			return nil, err
		}
	}
	return c.Submit(ctx, text)
}

// Close cancels the active run, waits for it and ends all subscriptions.
// Subscribers still receive the cancelled run's Finished update.
func (c *Controller) Close(ctx context.Context) error {
	c.mu.Lock()
	c.closed = true
	run := c.active
	c.mu.Unlock()

	if run != nil {
		run.Cancel()
		if _, err := run.Wait(ctx); err != nil {
			return err
		}
	}
	c.feed.Close()
	return nil
}
