package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/go-logr/logr"

	"github.com/kagent-dev/agentdesk/pkg/adk/auth"
	"github.com/kagent-dev/agentdesk/pkg/adk/conversation"
	apperrors "github.com/kagent-dev/agentdesk/pkg/adk/errors"
	"github.com/kagent-dev/agentdesk/pkg/adk/llm"
	"github.com/kagent-dev/agentdesk/pkg/adk/tools"
)

// ToolExecutor is the part of the tool registry a run needs
type ToolExecutor interface {
	ListSpecs() []tools.Spec
	Execute(ctx context.Context, call conversation.ToolCallRequest, toolCtx *tools.Context) conversation.ToolCallResult
	BeginRun() (release func())
}

// Orchestrator drives the turn loop: request, stream, execute tools,
// repeat until the model answers or the run terminates.
type Orchestrator struct {
	transport llm.Transport
	tools     ToolExecutor
	creds     auth.Provider
	cfg       Config
	metrics   *Metrics
}

// Option configures an Orchestrator
type Option func(*Orchestrator)

// WithMetrics records run metrics on m
func WithMetrics(m *Metrics) Option {
	return func(o *Orchestrator) {
		o.metrics = m
	}
}

// New creates an orchestrator
func New(transport llm.Transport, executor ToolExecutor, creds auth.Provider, cfg Config, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		transport: transport,
		tools:     executor,
		creds:     creds,
		cfg:       cfg.withDefaults(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Config returns the effective configuration
func (o *Orchestrator) Config() Config {
	return o.cfg
}

// Model returns the transport's model name
func (o *Orchestrator) Model() string {
	return o.transport.Model()
}

// run is the state of one execution of the turn loop
type run struct {
	o         *Orchestrator
	id        string
	sessionID string
	sink      Sink
	log       logr.Logger
	m         machine

	conv       *conversation.Conversation
	transcript *conversation.Conversation
	base       int
	// transcript length after the last whole tool round
	sealed  int
	usedIDs map[string]struct{}

	rounds   int
	attempts int
	usage    llm.Usage
}

// streamResult is what one transport attempt produced
type streamResult struct {
	cancelled bool
	failed    *llm.Failed
	text      string
	calls     *pendingCalls
	usage     llm.Usage
}

// Run executes one run over conv, whose last turn is the triggering user
// turn. New turns are built on a fork and committed to conv when the run
// ends: everything on completion, whole tool rounds on failure, nothing on
// cancellation. Cancelling ctx cancels the run. Run returns once a
// terminal state is reached, after publishing Finished to sink.
func (o *Orchestrator) Run(ctx context.Context, runID string, conv *conversation.Conversation, sink Sink) Outcome {
	return o.run(ctx, runID, "", conv, sink)
}

// RunSession is Run with the session ID passed on to tools
func (o *Orchestrator) RunSession(ctx context.Context, sessionID, runID string, conv *conversation.Conversation, sink Sink) Outcome {
	return o.run(ctx, runID, sessionID, conv, sink)
}

func (o *Orchestrator) run(ctx context.Context, runID, sessionID string, conv *conversation.Conversation, sink Sink) Outcome {
	start := time.Now()
	if sink == nil {
		sink = Discard
	}
	log := logr.FromContextOrDiscard(ctx).WithName("orchestrator").WithValues("run", runID)

	release := o.tools.BeginRun()
	defer release()

	r := &run{
		o:          o,
		id:         runID,
		sessionID:  sessionID,
		sink:       sink,
		log:        log,
		conv:       conv,
		transcript: conv.Fork(),
		base:       conv.Len(),
		usedIDs:    make(map[string]struct{}),
	}
	r.sealed = r.base
	for _, t := range conv.Snapshot().All() {
		for _, call := range t.ToolCalls {
			r.usedIDs[call.ID] = struct{}{}
		}
	}
	r.m = machine{state: StateIdle, onChange: func(from, to State) {
		log.V(1).Info("State changed", "from", from, "to", to)
		sink.Publish(runID, StateChanged{From: from, To: to})
	}}

	out := r.loop(ctx)
	out.RunID = runID
	out.Rounds = r.rounds
	out.Attempts = r.attempts
	out.Usage = r.usage
	out.Duration = time.Since(start)

	r.commit(out.State)
	o.metrics.runFinished(out.State, out.Duration)
	if out.State == StateCompleted {
		log.Info("Run completed", "rounds", out.Rounds, "attempts", out.Attempts, "tokens", out.Usage.Total())
	} else {
		log.Info("Run ended", "state", out.State, "code", out.Code, "rounds", out.Rounds, "attempts", out.Attempts)
	}
	sink.Publish(runID, Finished{Outcome: out})
	return out
}

func (r *run) loop(ctx context.Context) Outcome {
	if ctx.Err() != nil {
		return r.cancel()
	}
	r.m.to(StateRequesting)

	defs := toolDefinitions(r.o.tools.ListSpecs())
	retries := 0
	bo := r.newBackOff()

	for {
		if ctx.Err() != nil {
			return r.cancel()
		}

		req := &llm.Request{
			System:      r.o.cfg.SystemPrompt,
			Turns:       r.transcript.Snapshot().Turns(),
			Tools:       defs,
			Credentials: r.credentials(ctx),
		}
		r.attempts++
		res := r.stream(ctx, req)
		r.usage = r.usage.Add(res.usage)

		switch {
		case res.cancelled:
			return r.cancel()

		case res.failed != nil:
			reason := res.failed.Reason
			if !reason.Retryable() || retries >= r.o.cfg.MaxRetries {
				return r.fail(reason.Code(), res.failed.Err)
			}
			retries++
			delay := bo.NextBackOff()
			r.o.metrics.retry(string(reason))
			r.log.Info("Retrying request", "attempt", retries, "delay", delay, "reason", reason)
			r.sink.Publish(r.id, Retrying{Attempt: retries, Delay: delay, Reason: reason})
			r.m.to(StateRequesting)
			if !sleep(ctx, delay) {
				return r.cancel()
			}

		case res.calls.len() == 0:
			if err := r.transcript.Append(conversation.NewAssistantTurn(res.text)); err != nil {
				return r.fail(apperrors.ErrCodeInvalidTurnOrder, err)
			}
			r.m.to(StateCompleted)
			return Outcome{State: StateCompleted, FinalText: res.text}

		default:
			if r.rounds >= r.o.cfg.MaxToolRounds {
				return r.fail(apperrors.ErrCodeToolLoopExceeded,
					apperrors.Newf(apperrors.ErrCodeToolLoopExceeded, "tool round limit of %d reached", r.o.cfg.MaxToolRounds))
			}
			r.m.to(StateExecutingTools)
			if out, done := r.executeTools(ctx, res); done {
				return out
			}
			r.rounds++
			r.sealed = r.transcript.Len()
			retries = 0
			bo.Reset()
			r.m.to(StateRequesting)
		}
	}
}

// credentials asks the provider for a token. A provider error leaves the
// credentials empty, which the transport reports as AuthInvalid.
func (r *run) credentials(ctx context.Context) auth.Credentials {
	if r.o.creds == nil {
		return auth.Credentials{}
	}
	creds, err := r.o.creds.Credentials(ctx)
	if err != nil {
		r.log.Info("Credential provider failed", "error", err.Error())
		return auth.Credentials{}
	}
	return creds
}

func (r *run) stream(ctx context.Context, req *llm.Request) streamResult {
	events := r.o.transport.Stream(ctx, req)
	r.m.to(StateStreaming)

	var text strings.Builder
	calls := newPendingCalls()
	for {
		select {
		case <-ctx.Done():
			return streamResult{cancelled: true}
		case ev, ok := <-events:
			if !ok {
				if ctx.Err() != nil {
					return streamResult{cancelled: true}
				}
				failed := llm.NewFailed(llm.FailureNetworkError, "stream ended without a terminal event", nil)
				return streamResult{failed: &failed}
			}
			r.o.metrics.streamEvent(llm.EventType(ev))

			switch ev := ev.(type) {
			case llm.TextDelta:
				text.WriteString(ev.Text)
				r.sink.Publish(r.id, TextDelta{Text: ev.Text})
			case llm.ToolCallDelta:
				calls.add(ev)
			case llm.Completed:
				if ctx.Err() != nil {
					return streamResult{cancelled: true}
				}
				return streamResult{text: text.String(), calls: calls, usage: ev.Usage}
			case llm.Failed:
				return streamResult{failed: &ev}
			}
		}
	}
}

// executeTools appends the assistant turn and runs its calls one at a time
// in emitted order. A tool already running when the run is cancelled is
// awaited, but its result is dropped with the rest of the run.
func (r *run) executeTools(ctx context.Context, res streamResult) (Outcome, bool) {
	assembled := res.calls.assemble(r.usedIDs)
	requests := make([]conversation.ToolCallRequest, len(assembled))
	for i, ac := range assembled {
		requests[i] = ac.request
	}
	if err := r.transcript.Append(conversation.NewAssistantTurn(res.text, requests...)); err != nil {
		return r.fail(apperrors.ErrCodeInvalidTurnOrder, err), true
	}

	for _, ac := range assembled {
		if ctx.Err() != nil {
			return r.cancel(), true
		}
		r.sink.Publish(r.id, ToolCallStarted{Call: ac.request})

		var result conversation.ToolCallResult
		if ac.argErr != nil {
			result = conversation.ToolCallResult{
				ID:   ac.request.ID,
				Name: ac.request.Name,
				Error: &conversation.ToolError{
					Code:    apperrors.ErrCodeInvalidArguments,
					Message: fmt.Sprintf("arguments for %s are not a JSON object: %v", ac.request.Name, ac.argErr),
				},
			}
		} else {
			toolCtx := &tools.Context{
				RunID:     r.id,
				SessionID: r.sessionID,
				Logger:    r.log,
			}
			result = r.o.tools.Execute(context.WithoutCancel(ctx), ac.request, toolCtx)
		}

		if ctx.Err() != nil {
			return r.cancel(), true
		}

		outcome := "ok"
		if result.IsError() {
			outcome = result.Error.Code
		}
		r.o.metrics.toolCall(ac.request.Name, outcome)

		if err := r.transcript.Append(conversation.NewToolTurn(result)); err != nil {
			return r.fail(apperrors.ErrCodeInvalidTurnOrder, err), true
		}
		r.sink.Publish(r.id, ToolCallFinished{Result: result})
	}
	return Outcome{}, false
}

func (r *run) cancel() Outcome {
	r.m.to(StateCancelled)
	return Outcome{
		State: StateCancelled,
		Code:  apperrors.ErrCodeRunCancelled,
		Err:   apperrors.New(apperrors.ErrCodeRunCancelled, "run cancelled", nil),
	}
}

func (r *run) fail(code string, err error) Outcome {
	if err == nil {
		err = apperrors.New(code, "run failed", nil)
	}
	r.m.to(StateFailed)
	return Outcome{State: StateFailed, Code: code, Err: err}
}

// commit copies the run's turns onto the session conversation
func (r *run) commit(state State) {
	end := r.base
	switch state {
	case StateCompleted:
		end = r.transcript.Len()
	case StateFailed:
		end = r.sealed
	}
	if end <= r.base {
		return
	}
	turns := r.transcript.Snapshot().Turns()[r.base:end]
	for _, t := range turns {
		if err := r.conv.Append(t); err != nil {
			r.log.Error(err, "Failed to commit turn", "turn", t.ID, "role", t.Role)
			return
		}
	}
}

func (r *run) newBackOff() *backoff.ExponentialBackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = r.o.cfg.BackoffBase
	bo.MaxInterval = r.o.cfg.BackoffMax
	bo.RandomizationFactor = r.o.cfg.BackoffJitter
	bo.Multiplier = 2
	bo.Reset()
	return bo
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}

func toolDefinitions(specs []tools.Spec) []llm.ToolDefinition {
	defs := make([]llm.ToolDefinition, 0, len(specs))
	for _, s := range specs {
		defs = append(defs, llm.ToolDefinition{
			Name:        s.Name,
			Description: s.Description,
			Parameters:  s.Parameters,
		})
	}
	return defs
}
