package orchestrator

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/kagent-dev/agentdesk/pkg/adk/auth"
	"github.com/kagent-dev/agentdesk/pkg/adk/config"
	"github.com/kagent-dev/agentdesk/pkg/adk/contextpack"
	"github.com/kagent-dev/agentdesk/pkg/adk/conversation"
	"github.com/kagent-dev/agentdesk/pkg/adk/editor"
	apperrors "github.com/kagent-dev/agentdesk/pkg/adk/errors"
	"github.com/kagent-dev/agentdesk/pkg/adk/llm"
	"github.com/kagent-dev/agentdesk/pkg/adk/tools"
)

type recorder struct {
	mu     sync.Mutex
	events []Event
	runIDs []string
	hook   func(ev Event)
}

func (r *recorder) Publish(runID string, ev Event) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.runIDs = append(r.runIDs, runID)
	hook := r.hook
	r.mu.Unlock()
	if hook != nil {
		hook(ev)
	}
}

func (r *recorder) all() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

func (r *recorder) texts() []string {
	var out []string
	for _, ev := range r.all() {
		if d, ok := ev.(TextDelta); ok {
			out = append(out, d.Text)
		}
	}
	return out
}

func (r *recorder) retries() []Retrying {
	var out []Retrying
	for _, ev := range r.all() {
		if d, ok := ev.(Retrying); ok {
			out = append(out, d)
		}
	}
	return out
}

func testConfig() Config {
	return Config{
		MaxToolRounds: 5,
		MaxRetries:    2,
		BackoffBase:   time.Millisecond,
		BackoffMax:    2 * time.Millisecond,
		BackoffJitter: 0.1,
	}
}

func userConversation(t *testing.T, text string) *conversation.Conversation {
	t.Helper()
	conv := conversation.New()
	require.NoError(t, conv.Append(conversation.NewUserTurn(text)))
	return conv
}

func roles(conv *conversation.Conversation) []conversation.Role {
	var out []conversation.Role
	for _, turn := range conv.Snapshot().All() {
		out = append(out, turn.Role)
	}
	return out
}

func toolCall(id, name, args string) []llm.StreamEvent {
	return []llm.StreamEvent{
		llm.ToolCallDelta{ID: id, Name: name},
		llm.ToolCallDelta{ID: id, ArgumentsDelta: args},
		llm.Completed{StopReason: "tool_calls"},
	}
}

func answer(text string) []llm.StreamEvent {
	return []llm.StreamEvent{llm.TextDelta{Text: text}, llm.Completed{StopReason: "stop", Usage: llm.Usage{InputTokens: 3, OutputTokens: 1}}}
}

func rateLimited() []llm.StreamEvent {
	return []llm.StreamEvent{
		llm.TextDelta{Text: "partial"},
		llm.NewFailed(llm.FailureRateLimited, "slow down", nil),
	}
}

func editorRegistry(t *testing.T, buf *editor.Buffer) *tools.Registry {
	t.Helper()
	reg := tools.NewRegistry()
	for _, tool := range tools.EditorTools(buf) {
		require.NoError(t, reg.Register(tool))
	}
	return reg
}

func TestRun_SimpleAnswer(t *testing.T) {
	conv := userConversation(t, "What's 2+2?")
	transport := llm.NewScriptedTransport(answer("4"))
	sink := &recorder{}

	o := New(transport, tools.NewRegistry(), auth.NewStaticProvider("sk"), testConfig())
	out := o.Run(context.Background(), "run-1", conv, sink)

	assert.Equal(t, StateCompleted, out.State)
	assert.Empty(t, out.Code)
	assert.Equal(t, "4", out.FinalText)
	assert.Equal(t, 1, out.Attempts)
	assert.Equal(t, 0, out.Rounds)
	assert.Equal(t, 4, out.Usage.Total())

	snap := conv.Snapshot()
	require.Equal(t, 2, snap.Len())
	assert.Equal(t, "What's 2+2?", snap.At(0).Text)
	assert.Equal(t, conversation.RoleAssistant, snap.At(1).Role)
	assert.Equal(t, "4", snap.At(1).Text)

	events := sink.all()
	assert.Equal(t, []Event{
		StateChanged{From: StateIdle, To: StateRequesting},
		StateChanged{From: StateRequesting, To: StateStreaming},
		TextDelta{Text: "4"},
		StateChanged{From: StateStreaming, To: StateCompleted},
	}, events[:len(events)-1])
	finished, ok := events[len(events)-1].(Finished)
	require.True(t, ok)
	assert.Equal(t, "run-1", finished.Outcome.RunID)
	for _, id := range sink.runIDs {
		assert.Equal(t, "run-1", id)
	}

	reqs := transport.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, "sk", reqs[0].Credentials.Token)
	require.Len(t, reqs[0].Turns, 1)
}

func TestRun_ToolRound(t *testing.T) {
	buf := editor.NewBuffer("doc", "")
	conv := userConversation(t, "say hello")
	transport := llm.NewScriptedTransport(
		toolCall("call_1", "insert_text", `{"text":"hello"}`),
		answer("done"),
	)
	sink := &recorder{}

	o := New(transport, editorRegistry(t, buf), auth.NewStaticProvider("sk"), testConfig())
	out := o.Run(context.Background(), "run-1", conv, sink)

	require.Equal(t, StateCompleted, out.State)
	assert.Equal(t, 1, out.Rounds)
	assert.Equal(t, 2, out.Attempts)
	assert.Equal(t, "hello", buf.Text())

	assert.Equal(t, []conversation.Role{
		conversation.RoleUser, conversation.RoleAssistant, conversation.RoleTool, conversation.RoleAssistant,
	}, roles(conv))
	snap := conv.Snapshot()
	call := snap.At(1).ToolCalls[0]
	assert.Equal(t, "call_1", call.ID)
	assert.Equal(t, "insert_text", call.Name)
	assert.Equal(t, map[string]any{"text": "hello"}, call.Arguments)
	assert.Equal(t, "call_1", snap.At(2).Result.ID)
	assert.Equal(t, "Inserted 5 characters at offset 0", snap.At(2).Result.Output)
	assert.Equal(t, "done", snap.At(3).Text)

	reqs := transport.Requests()
	require.Len(t, reqs, 2)
	assert.Len(t, reqs[1].Turns, 3, "second request carries the tool result")
	assert.Len(t, reqs[0].Tools, 5)

	var started, finished int
	for _, ev := range sink.all() {
		switch ev.(type) {
		case ToolCallStarted:
			started++
		case ToolCallFinished:
			finished++
		}
	}
	assert.Equal(t, 1, started)
	assert.Equal(t, 1, finished)
}

func TestRun_ToolsRunSequentiallyInEmittedOrder(t *testing.T) {
	executor := &mockExecutor{}
	executor.On("BeginRun").Return()
	executor.On("ListSpecs").Return([]tools.Spec{})
	first := executor.On("Execute", mock.Anything, mock.MatchedBy(func(c conversation.ToolCallRequest) bool { return c.ID == "b" }), mock.Anything).
		Return(conversation.ToolCallResult{ID: "b", Output: "1"}).Once()
	second := executor.On("Execute", mock.Anything, mock.MatchedBy(func(c conversation.ToolCallRequest) bool { return c.ID == "a" }), mock.Anything).
		Return(conversation.ToolCallResult{ID: "a", Output: "2"}).Once()
	mock.InOrder(first, second)

	transport := llm.NewScriptedTransport(
		[]llm.StreamEvent{
			llm.ToolCallDelta{ID: "b", Name: "insert_text", ArgumentsDelta: `{"text":`},
			llm.ToolCallDelta{ID: "a", Name: "read_document"},
			llm.ToolCallDelta{ID: "b", ArgumentsDelta: `"x"}`},
			llm.Completed{},
		},
		answer("ok"),
	)
	conv := userConversation(t, "q")

	out := New(transport, executor, auth.NewStaticProvider("sk"), testConfig()).Run(context.Background(), "r", conv, nil)
	require.Equal(t, StateCompleted, out.State)
	executor.AssertExpectations(t)

	calls := conv.Snapshot().At(1).ToolCalls
	require.Len(t, calls, 2)
	assert.Equal(t, "b", calls[0].ID)
	assert.Equal(t, map[string]any{"text": "x"}, calls[0].Arguments)
	assert.Equal(t, "a", calls[1].ID)
	assert.Equal(t, map[string]any{}, calls[1].Arguments)
}

func TestRun_RetriesExhausted(t *testing.T) {
	conv := userConversation(t, "q")
	transport := llm.NewScriptedTransport(rateLimited(), rateLimited(), rateLimited())
	sink := &recorder{}
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)

	out := New(transport, tools.NewRegistry(), auth.NewStaticProvider("sk"), testConfig(), WithMetrics(metrics)).
		Run(context.Background(), "r", conv, sink)

	assert.Equal(t, StateFailed, out.State)
	assert.Equal(t, apperrors.ErrCodeRateLimited, out.Code)
	assert.True(t, apperrors.HasCode(out.Err, apperrors.ErrCodeRateLimited))
	assert.Equal(t, 3, out.Attempts)
	assert.Equal(t, 3, transport.Calls())
	assert.Equal(t, 1, conv.Len(), "no partial assistant content may be committed")

	retries := sink.retries()
	require.Len(t, retries, 2)
	assert.Equal(t, 1, retries[0].Attempt)
	assert.Equal(t, 2, retries[1].Attempt)
	assert.Equal(t, llm.FailureRateLimited, retries[0].Reason)

	assert.Equal(t, float64(2), testutil.ToFloat64(metrics.retries.WithLabelValues("rate_limited")))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.runs.WithLabelValues("failed")))
	assert.Equal(t, float64(3), testutil.ToFloat64(metrics.streamEvents.WithLabelValues("failed")))
}

func TestRun_RetryThenSucceed(t *testing.T) {
	conv := userConversation(t, "q")
	transport := llm.NewScriptedTransport(
		[]llm.StreamEvent{llm.TextDelta{Text: "half"}, llm.NewFailed(llm.FailureNetworkError, "reset", nil)},
		answer("whole"),
	)
	sink := &recorder{}

	out := New(transport, tools.NewRegistry(), auth.NewStaticProvider("sk"), testConfig()).Run(context.Background(), "r", conv, sink)

	require.Equal(t, StateCompleted, out.State)
	assert.Equal(t, 2, out.Attempts)
	assert.Equal(t, "whole", out.FinalText)
	assert.Equal(t, "whole", conv.Snapshot().At(1).Text)
	assert.Equal(t, []string{"half", "whole"}, sink.texts())
	assert.Len(t, sink.retries(), 1)
}

func TestRun_FatalFailuresAreNotRetried(t *testing.T) {
	tests := []struct {
		name   string
		reason llm.FailureReason
		code   string
	}{
		{"auth", llm.FailureAuthInvalid, apperrors.ErrCodeAuthInvalid},
		{"malformed", llm.FailureMalformedResponse, apperrors.ErrCodeMalformedResponse},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conv := userConversation(t, "q")
			transport := llm.NewScriptedTransport(
				[]llm.StreamEvent{llm.NewFailed(tt.reason, "no", nil)},
				answer("never"),
			)
			sink := &recorder{}
			out := New(transport, tools.NewRegistry(), auth.NewStaticProvider("sk"), testConfig()).Run(context.Background(), "r", conv, sink)

			assert.Equal(t, StateFailed, out.State)
			assert.Equal(t, tt.code, out.Code)
			assert.Equal(t, 1, transport.Calls())
			assert.Empty(t, sink.retries())
			assert.Equal(t, 1, conv.Len())
		})
	}
}

func TestRun_StreamClosedWithoutTerminalEvent(t *testing.T) {
	cfg := testConfig()
	cfg.MaxRetries = 0
	conv := userConversation(t, "q")
	transport := llm.NewScriptedTransport([]llm.StreamEvent{llm.TextDelta{Text: "cut"}})

	out := New(transport, tools.NewRegistry(), auth.NewStaticProvider("sk"), cfg).Run(context.Background(), "r", conv, nil)
	assert.Equal(t, StateFailed, out.State)
	assert.Equal(t, apperrors.ErrCodeNetworkError, out.Code)
	assert.Equal(t, 1, conv.Len())
}

func TestRun_ToolLoopExceeded(t *testing.T) {
	buf := editor.NewBuffer("doc", "")
	conv := userConversation(t, "loop forever")
	transport := llm.NewScriptedTransport()
	for _, id := range []string{"c1", "c2", "c3", "c4", "c5", "c6"} {
		transport.Enqueue(toolCall(id, "insert_text", `{"text":"x"}`)...)
	}

	out := New(transport, editorRegistry(t, buf), auth.NewStaticProvider("sk"), testConfig()).Run(context.Background(), "r", conv, nil)

	assert.Equal(t, StateFailed, out.State)
	assert.Equal(t, apperrors.ErrCodeToolLoopExceeded, out.Code)
	assert.Equal(t, 5, out.Rounds)
	assert.Equal(t, 6, out.Attempts)
	assert.Equal(t, "xxxxx", buf.Text())
	assert.Equal(t, 11, conv.Len(), "whole tool rounds are kept after a failure")
	assert.Empty(t, conv.Outstanding())
}

func TestRun_FailureAfterToolRoundKeepsRound(t *testing.T) {
	buf := editor.NewBuffer("doc", "")
	conv := userConversation(t, "q")
	transport := llm.NewScriptedTransport(
		toolCall("c1", "insert_text", `{"text":"x"}`),
		[]llm.StreamEvent{llm.TextDelta{Text: "partial"}, llm.NewFailed(llm.FailureAuthInvalid, "expired", nil)},
	)

	out := New(transport, editorRegistry(t, buf), auth.NewStaticProvider("sk"), testConfig()).Run(context.Background(), "r", conv, nil)

	assert.Equal(t, StateFailed, out.State)
	assert.Equal(t, []conversation.Role{conversation.RoleUser, conversation.RoleAssistant, conversation.RoleTool}, roles(conv))
	require.NoError(t, conv.Append(conversation.NewUserTurn("try again")))
}

func TestRun_CancelWhileStreaming(t *testing.T) {
	conv := userConversation(t, "q")
	before := conv.Snapshot().Turns()
	transport := llm.NewScriptedTransport([]llm.StreamEvent{
		llm.TextDelta{Text: "part"},
		llm.ToolCallDelta{ID: "c1", Name: "insert_text", ArgumentsDelta: `{"te`},
		llm.Hold{Release: make(chan struct{})},
		llm.Completed{},
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sink := &recorder{}
	sink.hook = func(ev Event) {
		if _, ok := ev.(TextDelta); ok {
			cancel()
			cancel()
		}
	}

	out := New(transport, tools.NewRegistry(), auth.NewStaticProvider("sk"), testConfig()).Run(ctx, "r", conv, sink)

	assert.Equal(t, StateCancelled, out.State)
	assert.Equal(t, apperrors.ErrCodeRunCancelled, out.Code)
	assert.Equal(t, before, conv.Snapshot().Turns())

	events := sink.all()
	_, last := events[len(events)-1].(Finished)
	assert.True(t, last)
}

func TestRun_CancelledBeforeStart(t *testing.T) {
	conv := userConversation(t, "q")
	transport := llm.NewScriptedTransport(answer("x"))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out := New(transport, tools.NewRegistry(), auth.NewStaticProvider("sk"), testConfig()).Run(ctx, "r", conv, nil)
	assert.Equal(t, StateCancelled, out.State)
	assert.Equal(t, 0, transport.Calls())
	assert.Equal(t, 1, conv.Len())
}

func TestRun_CancelDuringToolExecution(t *testing.T) {
	var invoked atomic.Int32
	reg := tools.NewRegistry()
	require.NoError(t, reg.Register(tools.NewFuncTool("slow", "slow tool", nil,
		func(ctx context.Context, args map[string]any, toolCtx *tools.Context) (string, error) {
			invoked.Add(1)
			require.NoError(t, ctx.Err(), "in-flight tools are not interrupted")
			return "side effect", nil
		})))

	conv := userConversation(t, "q")
	transport := llm.NewScriptedTransport([]llm.StreamEvent{
		llm.ToolCallDelta{ID: "c1", Name: "slow"},
		llm.ToolCallDelta{ID: "c2", Name: "slow"},
		llm.Completed{},
	}, answer("never"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sink := &recorder{}
	sink.hook = func(ev Event) {
		if _, ok := ev.(ToolCallStarted); ok {
			cancel()
		}
	}

	out := New(transport, reg, auth.NewStaticProvider("sk"), testConfig()).Run(ctx, "r", conv, sink)

	assert.Equal(t, StateCancelled, out.State)
	assert.Equal(t, int32(1), invoked.Load(), "the in-flight tool completes and no further tool starts")
	assert.Equal(t, 1, conv.Len())
	assert.Equal(t, 1, transport.Calls())
}

func TestRun_ToolErrorsBecomeConversation(t *testing.T) {
	buf := editor.NewBuffer("doc", "")
	conv := userConversation(t, "q")
	transport := llm.NewScriptedTransport(
		[]llm.StreamEvent{
			llm.ToolCallDelta{ID: "c1", Name: "no_such_tool", ArgumentsDelta: `{}`},
			llm.ToolCallDelta{ID: "c2", Name: "insert_text", ArgumentsDelta: `{"text":`},
			llm.ToolCallDelta{ID: "c3", Name: "insert_text", ArgumentsDelta: `{"text":"ok","position":99}`},
			llm.Completed{},
		},
		answer("sorry"),
	)
	metrics := NewMetrics(prometheus.NewRegistry())

	out := New(transport, editorRegistry(t, buf), auth.NewStaticProvider("sk"), testConfig(), WithMetrics(metrics)).
		Run(context.Background(), "r", conv, nil)

	require.Equal(t, StateCompleted, out.State)
	snap := conv.Snapshot()
	require.Equal(t, 6, snap.Len())
	assert.Equal(t, apperrors.ErrCodeUnknownTool, snap.At(2).Result.Error.Code)
	assert.Equal(t, apperrors.ErrCodeInvalidArguments, snap.At(3).Result.Error.Code)
	assert.Nil(t, snap.At(1).ToolCalls[1].Arguments)
	assert.Equal(t, apperrors.ErrCodeInvalidArguments, snap.At(4).Result.Error.Code)
	assert.Empty(t, buf.Text())

	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.toolCalls.WithLabelValues("no_such_tool", apperrors.ErrCodeUnknownTool)))
	assert.Equal(t, float64(2), testutil.ToFloat64(metrics.toolCalls.WithLabelValues("insert_text", apperrors.ErrCodeInvalidArguments)))
}

func TestRun_ReusedCallIDIsReplaced(t *testing.T) {
	buf := editor.NewBuffer("doc", "")
	conv := userConversation(t, "q")
	transport := llm.NewScriptedTransport(
		toolCall("c1", "insert_text", `{"text":"a"}`),
		toolCall("c1", "insert_text", `{"text":"b"}`),
		answer("done"),
	)

	out := New(transport, editorRegistry(t, buf), auth.NewStaticProvider("sk"), testConfig()).Run(context.Background(), "r", conv, nil)

	require.Equal(t, StateCompleted, out.State)
	snap := conv.Snapshot()
	require.Equal(t, 6, snap.Len())
	assert.Equal(t, "c1", snap.At(1).ToolCalls[0].ID)
	second := snap.At(3).ToolCalls[0].ID
	assert.NotEqual(t, "c1", second)
	assert.Equal(t, second, snap.At(4).Result.ID)
}

func TestRun_RegistryLockedDuringRun(t *testing.T) {
	reg := tools.NewRegistry()
	var registerErr error
	require.NoError(t, reg.Register(tools.NewFuncTool("register", "registers a tool", nil,
		func(ctx context.Context, args map[string]any, toolCtx *tools.Context) (string, error) {
			registerErr = reg.Register(tools.NewFuncTool("late", "late", nil, nil))
			assert.Equal(t, "r", toolCtx.RunID)
			return "tried", nil
		})))

	transport := llm.NewScriptedTransport(toolCall("c1", "register", `{}`), answer("ok"))
	out := New(transport, reg, auth.NewStaticProvider("sk"), testConfig()).Run(context.Background(), "r", userConversation(t, "q"), nil)

	require.Equal(t, StateCompleted, out.State)
	assert.True(t, apperrors.HasCode(registerErr, apperrors.ErrCodeRegistryBusy))
	assert.NoError(t, reg.Register(tools.NewFuncTool("late", "late", nil, nil)), "registration reopens after the run")
}

func TestRun_CredentialFailureYieldsEmptyCredentials(t *testing.T) {
	transport := llm.NewScriptedTransport(answer("x"))
	t.Setenv("AGENTDESK_TEST_MISSING_KEY", "")

	New(transport, tools.NewRegistry(), auth.NewEnvProvider("AGENTDESK_TEST_MISSING_KEY"), testConfig()).
		Run(context.Background(), "r", userConversation(t, "q"), nil)

	require.Len(t, transport.Requests(), 1)
	assert.Empty(t, transport.Requests()[0].Credentials.Token)
}

func TestRun_SystemPromptSent(t *testing.T) {
	transport := llm.NewScriptedTransport(answer("x"))
	cfg := testConfig()
	cfg.SystemPrompt = "be brief"

	New(transport, tools.NewRegistry(), auth.NewStaticProvider("sk"), cfg).Run(context.Background(), "r", userConversation(t, "q"), nil)
	assert.Equal(t, "be brief", transport.Requests()[0].System)
}

func TestMachine(t *testing.T) {
	assert.True(t, CanTransition(StateIdle, StateRequesting))
	assert.True(t, CanTransition(StateStreaming, StateRequesting))
	assert.True(t, CanTransition(StateExecutingTools, StateCancelled))
	assert.False(t, CanTransition(StateIdle, StateCompleted))
	assert.False(t, CanTransition(StateCompleted, StateRequesting))
	assert.False(t, CanTransition(StateExecutingTools, StateCompleted))

	for _, s := range []State{StateCompleted, StateCancelled, StateFailed} {
		assert.True(t, s.Terminal())
	}
	assert.False(t, StateStreaming.Terminal())

	var seen []State
	m := machine{state: StateIdle, onChange: func(_, to State) { seen = append(seen, to) }}
	m.to(StateRequesting)
	m.to(StateStreaming)
	assert.Equal(t, []State{StateRequesting, StateStreaming}, seen)
	assert.Panics(t, func() { m.to(StateIdle) })
}

func TestPendingCalls(t *testing.T) {
	p := newPendingCalls()
	p.add(llm.ToolCallDelta{ID: "x", Name: "one", ArgumentsDelta: `{"a":`})
	p.add(llm.ToolCallDelta{ArgumentsDelta: `1}`})
	p.add(llm.ToolCallDelta{ID: "y", Name: "two", ArgumentsDelta: `[1]`})

	calls := p.assemble(map[string]struct{}{})
	require.Len(t, calls, 2)
	assert.Equal(t, map[string]any{"a": float64(1)}, calls[0].request.Arguments)
	assert.NoError(t, calls[0].argErr)
	assert.Error(t, calls[1].argErr, "arguments must be a JSON object")
}

func TestFromConfig(t *testing.T) {
	retries := 0
	cfg := FromConfig(config.OrchestratorConfig{
		MaxToolRounds: 4,
		MaxRetries:    &retries,
		BackoffBase:   time.Second,
		BackoffMax:    time.Minute,
		BackoffJitter: 0.5,
		SnippetMode:   true,
	})
	assert.Equal(t, 4, cfg.MaxToolRounds)
	assert.Equal(t, 0, cfg.MaxRetries)
	assert.Equal(t, contextpack.SnippetInstruction, cfg.SystemPrompt)

	cfg = Config{MaxRetries: -1, BackoffJitter: 3}.withDefaults()
	assert.Equal(t, 10, cfg.MaxToolRounds)
	assert.Equal(t, 0, cfg.MaxRetries)
	assert.Equal(t, 500*time.Millisecond, cfg.BackoffBase)
	assert.Equal(t, 0.2, cfg.BackoffJitter)
}

type mockExecutor struct {
	mock.Mock
}

func (m *mockExecutor) ListSpecs() []tools.Spec {
	return m.Called().Get(0).([]tools.Spec)
}

func (m *mockExecutor) Execute(ctx context.Context, call conversation.ToolCallRequest, toolCtx *tools.Context) conversation.ToolCallResult {
	return m.Called(ctx, call, toolCtx).Get(0).(conversation.ToolCallResult)
}

func (m *mockExecutor) BeginRun() func() {
	m.Called()
	return func() {}
}
