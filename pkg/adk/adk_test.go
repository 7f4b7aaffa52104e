package adk

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kagent-dev/agentdesk/pkg/adk/config"
	apperrors "github.com/kagent-dev/agentdesk/pkg/adk/errors"
	"github.com/kagent-dev/agentdesk/pkg/adk/llm"
	"github.com/kagent-dev/agentdesk/pkg/adk/orchestrator"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Model.APIKey = "sk-test"
	cfg.Store.DSN = filepath.Join(t.TempDir(), "chats.db")
	cfg.Project.Root = t.TempDir()
	cfg.Orchestrator.BackoffBase = time.Millisecond
	cfg.Orchestrator.BackoffMax = time.Millisecond
	return cfg
}

func TestNewApp_WiresRuntime(t *testing.T) {
	ctx := context.Background()
	transport := llm.NewScriptedTransport([]llm.StreamEvent{
		llm.TextDelta{Text: "hello"},
		llm.Completed{StopReason: "stop"},
	})

	app, err := NewApp(ctx, testConfig(t), WithTransport(transport))
	require.NoError(t, err)
	defer app.Close(ctx)
	require.NoError(t, app.Start(ctx))

	names := app.Registry.Names()
	assert.Contains(t, names, "insert_text")
	assert.Contains(t, names, "read_file")
	assert.NotNil(t, app.Project)
	assert.Equal(t, "scripted", app.Orchestrator.Model())

	creds, err := app.Credentials.Credentials(ctx)
	require.NoError(t, err)
	assert.Equal(t, "sk-test", creds.Token)

	ctrl, err := app.Manager.Create(ctx)
	require.NoError(t, err)
	run, err := ctrl.Submit(ctx, "Say hello")
	require.NoError(t, err)
	<-run.Done()
	assert.Equal(t, orchestrator.StateCompleted, run.Outcome().State)

	reqs := transport.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, "sk-test", reqs[0].Credentials.Token)
	assert.Len(t, reqs[0].Tools, len(names))

	sess, err := app.Store.GetSession(ctx, ctrl.ID())
	require.NoError(t, err)
	assert.Equal(t, "Say hello", sess.Title)
	assert.Equal(t, 1, sess.RevisionCount)

	families, err := app.Metrics.Gather()
	require.NoError(t, err)
	var found bool
	for _, f := range families {
		if f.GetName() == "agentdesk_runs_total" {
			found = true
		}
	}
	assert.True(t, found)
}

func TestNewApp_WithoutStore(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)
	cfg.Project.Root = ""

	app, err := NewApp(ctx, cfg, WithTransport(llm.NewScriptedTransport()), WithoutStore())
	require.NoError(t, err)
	defer app.Close(ctx)

	assert.Nil(t, app.Store)
	assert.Nil(t, app.Project)
	assert.NotContains(t, app.Registry.Names(), "read_file")
}

func TestNewApp_Failures(t *testing.T) {
	ctx := context.Background()

	cfg := testConfig(t)
	cfg.Model.Provider = "Unknown"
	_, err := NewApp(ctx, cfg)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeAgentConfig))

	cfg = testConfig(t)
	cfg.Project.Root = filepath.Join(t.TempDir(), "missing")
	_, err = NewApp(ctx, cfg, WithTransport(llm.NewScriptedTransport()))
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeFileOperation))
}
