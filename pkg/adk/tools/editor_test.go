package tools

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kagent-dev/agentdesk/pkg/adk/conversation"
	"github.com/kagent-dev/agentdesk/pkg/adk/editor"
	apperrors "github.com/kagent-dev/agentdesk/pkg/adk/errors"
)

func editorRegistry(t *testing.T, buf *editor.Buffer) *Registry {
	t.Helper()
	r := NewRegistry()
	for _, tool := range EditorTools(buf) {
		require.NoError(t, r.Register(tool))
	}
	return r
}

func TestInsertText_AtCursor(t *testing.T) {
	buf := editor.NewBuffer("doc.txt", "")
	r := editorRegistry(t, buf)

	result := r.Execute(context.Background(), conversation.ToolCallRequest{
		ID: "call_1", Name: "insert_text", Arguments: map[string]any{"text": "hello"},
	}, nil)

	require.Nil(t, result.Error)
	assert.Equal(t, "hello", buf.Text())
	assert.Equal(t, "Inserted 5 characters at offset 0", result.Output)
}

func TestInsertText_AtPosition(t *testing.T) {
	buf := editor.NewBuffer("doc.txt", "helo")
	r := editorRegistry(t, buf)

	result := r.Execute(context.Background(), conversation.ToolCallRequest{
		ID: "call_1", Name: "insert_text", Arguments: map[string]any{"text": "l", "position": 2.0},
	}, nil)

	require.Nil(t, result.Error)
	assert.Equal(t, "hello", buf.Text())
}

func TestInsertText_InvalidPosition(t *testing.T) {
	buf := editor.NewBuffer("doc.txt", "abc")
	r := editorRegistry(t, buf)

	for _, pos := range []any{-1.0, 99.0} {
		result := r.Execute(context.Background(), conversation.ToolCallRequest{
			ID: "call_1", Name: "insert_text", Arguments: map[string]any{"text": "x", "position": pos},
		}, nil)
		require.NotNil(t, result.Error)
		assert.Equal(t, apperrors.ErrCodeInvalidArguments, result.Error.Code)
	}
	assert.Equal(t, "abc", buf.Text())
	assert.Equal(t, 0, buf.Revision())
}

func TestSelectionTools(t *testing.T) {
	buf := editor.NewBuffer("doc.txt", "hello world")
	r := editorRegistry(t, buf)
	ctx := context.Background()

	res := r.Execute(ctx, conversation.ToolCallRequest{
		ID: "c1", Name: "select_range", Arguments: map[string]any{"start": 6.0, "end": 11.0},
	}, nil)
	require.Nil(t, res.Error)

	res = r.Execute(ctx, conversation.ToolCallRequest{ID: "c2", Name: "read_selection"}, nil)
	require.Nil(t, res.Error)
	assert.JSONEq(t, `{"text":"world","start":6,"end":11}`, res.Output)

	res = r.Execute(ctx, conversation.ToolCallRequest{
		ID: "c3", Name: "replace_selection", Arguments: map[string]any{"text": "there"},
	}, nil)
	require.Nil(t, res.Error)
	assert.Equal(t, "hello there", buf.Text())

	res = r.Execute(ctx, conversation.ToolCallRequest{ID: "c4", Name: "read_document"}, nil)
	require.Nil(t, res.Error)
	assert.Equal(t, "hello there", res.Output)

	res = r.Execute(ctx, conversation.ToolCallRequest{
		ID: "c5", Name: "select_range", Arguments: map[string]any{"start": 4.0, "end": 50.0},
	}, nil)
	require.NotNil(t, res.Error)
	assert.Equal(t, apperrors.ErrCodeInvalidArguments, res.Error.Code)
}

func TestEditorTools_SessionsEditSeparateBuffers(t *testing.T) {
	ws := editor.NewWorkspace()
	r := NewRegistry()
	for _, tool := range EditorTools(ws) {
		require.NoError(t, r.Register(tool))
	}

	insert := func(session, text string) {
		result := r.Execute(context.Background(), conversation.ToolCallRequest{
			ID: "call_" + session, Name: "insert_text", Arguments: map[string]any{"text": text},
		}, &Context{SessionID: session})
		require.Nil(t, result.Error)
	}
	insert("s1", "one")
	insert("s2", "two")

	assert.Equal(t, "one", ws.For("s1").Text())
	assert.Equal(t, "two", ws.For("s2").Text())

	result := r.Execute(context.Background(), conversation.ToolCallRequest{
		ID: "call_read", Name: "read_document",
	}, &Context{SessionID: "s2"})
	require.Nil(t, result.Error)
	assert.Equal(t, "two", result.Output)
}
