package server

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-logr/logr"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kagent-dev/agentdesk/pkg/adk/auth"
	"github.com/kagent-dev/agentdesk/pkg/adk/llm"
	"github.com/kagent-dev/agentdesk/pkg/adk/orchestrator"
	"github.com/kagent-dev/agentdesk/pkg/adk/session"
	"github.com/kagent-dev/agentdesk/pkg/adk/tools"
)

func newTestServer(t *testing.T, scripts ...[]llm.StreamEvent) (*httptest.Server, *session.Manager) {
	t.Helper()
	reg := prometheus.NewRegistry()
	runner := orchestrator.New(
		llm.NewScriptedTransport(scripts...),
		tools.NewRegistry(),
		auth.NewStaticProvider("sk"),
		orchestrator.Config{BackoffBase: time.Millisecond, BackoffMax: time.Millisecond},
		orchestrator.WithMetrics(orchestrator.NewMetrics(reg)),
	)
	manager := session.NewManager(runner, nil)
	ts := httptest.NewServer(New(manager, reg, logr.Discard()))
	t.Cleanup(func() {
		_ = manager.Close(context.Background())
		ts.Close()
	})
	return ts, manager
}

func answer(text string) []llm.StreamEvent {
	return []llm.StreamEvent{llm.TextDelta{Text: text}, llm.Completed{StopReason: "stop"}}
}

func post(t *testing.T, url, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func createSession(t *testing.T, ts *httptest.Server) string {
	t.Helper()
	resp := post(t, ts.URL+"/api/v1/sessions", "")
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	return decode[map[string]string](t, resp)["id"]
}

func TestHealth(t *testing.T) {
	ts, _ := newTestServer(t)
	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "healthy", decode[map[string]string](t, resp)["status"])
}

func TestSubmitAndStreamEvents(t *testing.T) {
	ts, _ := newTestServer(t, answer("hi there"))
	id := createSession(t, ts)

	events, err := http.Get(ts.URL + "/api/v1/sessions/" + id + "/events")
	require.NoError(t, err)
	defer events.Body.Close()
	assert.Equal(t, "text/event-stream", events.Header.Get("Content-Type"))

	resp := post(t, ts.URL+"/api/v1/sessions/"+id+"/submit", `{"text":"hello"}`)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	submitted := decode[SubmitResponse](t, resp)
	assert.Equal(t, id, submitted.SessionID)
	assert.NotEmpty(t, submitted.RunID)

	var types []string
	var text string
	scanner := bufio.NewScanner(events.Body)
	for scanner.Scan() {
		line := scanner.Text()
		data, ok := strings.CutPrefix(line, "data: ")
		if !ok {
			continue
		}
		var ev struct {
			RunID string          `json:"run_id"`
			Type  string          `json:"type"`
			Data  json.RawMessage `json:"data"`
		}
		require.NoError(t, json.Unmarshal([]byte(data), &ev))
		assert.Equal(t, submitted.RunID, ev.RunID)
		types = append(types, ev.Type)
		if ev.Type == "text_delta" {
			var delta orchestrator.TextDelta
			require.NoError(t, json.Unmarshal(ev.Data, &delta))
			text += delta.Text
		}
		if ev.Type == "finished" {
			break
		}
	}
	assert.Equal(t, "hi there", text)
	assert.Contains(t, types, "state")
	assert.Equal(t, "finished", types[len(types)-1])

	conv, err := http.Get(ts.URL + "/api/v1/sessions/" + id + "/conversation")
	require.NoError(t, err)
	defer conv.Body.Close()
	snapshot := decode[ConversationResponse](t, conv)
	require.Len(t, snapshot.Turns, 2)
	assert.Equal(t, "hi there", snapshot.Turns[1].Text)
	assert.Empty(t, snapshot.Active)
}

func TestSubmit_Conflict(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	ts, _ := newTestServer(t, append([]llm.StreamEvent{llm.Hold{Release: release}}, answer("x")...))
	id := createSession(t, ts)

	resp := post(t, ts.URL+"/api/v1/sessions/"+id+"/submit", `{"text":"one"}`)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	resp = post(t, ts.URL+"/api/v1/sessions/"+id+"/submit", `{"text":"two"}`)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "RUN_ALREADY_ACTIVE", decode[ErrorResponse](t, resp).Code)

	resp = post(t, ts.URL+"/api/v1/sessions/"+id+"/cancel", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, decode[map[string]bool](t, resp)["cancelled"])
}

func TestSubmit_BadRequests(t *testing.T) {
	ts, _ := newTestServer(t)
	id := createSession(t, ts)

	resp := post(t, ts.URL+"/api/v1/sessions/"+id+"/submit", `not json`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = post(t, ts.URL+"/api/v1/sessions/"+id+"/submit", `{"text":"  "}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "INVALID_ARGUMENTS", decode[ErrorResponse](t, resp).Code)

	resp = post(t, ts.URL+"/api/v1/sessions/missing/submit", `{"text":"hi"}`)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "SESSION_NOT_FOUND", decode[ErrorResponse](t, resp).Code)
}

func TestListAndDeleteSessions(t *testing.T) {
	ts, _ := newTestServer(t)
	id := createSession(t, ts)

	resp, err := http.Get(ts.URL + "/api/v1/sessions")
	require.NoError(t, err)
	defer resp.Body.Close()
	list := decode[[]session.Info](t, resp)
	require.Len(t, list, 1)
	assert.Equal(t, id, list[0].ID)

	req, err := http.NewRequest(http.MethodDelete, ts.URL+"/api/v1/sessions/"+id, nil)
	require.NoError(t, err)
	del, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer del.Body.Close()
	assert.Equal(t, http.StatusNoContent, del.StatusCode)

	resp2 := post(t, ts.URL+"/api/v1/sessions/"+id+"/cancel", "")
	assert.Equal(t, http.StatusNotFound, resp2.StatusCode)
}

func TestMetricsEndpoint(t *testing.T) {
	ts, manager := newTestServer(t, answer("ok"))

	ctrl, err := manager.Create(context.Background())
	require.NoError(t, err)
	run, err := ctrl.Submit(context.Background(), "hi")
	require.NoError(t, err)
	<-run.Done()

	resp, err := http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `agentdesk_runs_total{state="completed"} 1`)
}
