package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/kagent-dev/agentdesk/pkg/adk/editor"
	apperrors "github.com/kagent-dev/agentdesk/pkg/adk/errors"
)

// Buffers resolves the buffer an editor tool call works on. A single
// *editor.Buffer serves every session; *editor.Workspace gives each
// session its own.
type Buffers interface {
	For(sessionID string) *editor.Buffer
}

func bufferFor(bufs Buffers, toolCtx *Context) *editor.Buffer {
	var sessionID string
	if toolCtx != nil {
		sessionID = toolCtx.SessionID
	}
	return bufs.For(sessionID)
}

// EditorTools returns the tools operating on buf
func EditorTools(buf Buffers) []Tool {
	return []Tool{
		NewInsertTextTool(buf),
		NewReadSelectionTool(buf),
		NewReplaceSelectionTool(buf),
		NewSelectRangeTool(buf),
		NewReadDocumentTool(buf),
	}
}

// InsertTextTool inserts text into the editor buffer
type InsertTextTool struct {
	BaseTool
	buf Buffers
}

// NewInsertTextTool creates a new InsertTextTool
func NewInsertTextTool(buf Buffers) *InsertTextTool {
	return &InsertTextTool{
		BaseTool: NewBaseTool("insert_text", "Insert text into the open document at a character offset, or at the cursor when no position is given",
			ObjectSchema(map[string]any{
				"text":     StringProperty("Text to insert"),
				"position": IntegerProperty("Character offset to insert at; defaults to the cursor"),
			}, "text")),
		buf: buf,
	}
}

func (t *InsertTextTool) RunAsync(ctx context.Context, args map[string]any, toolCtx *Context) (string, error) {
	text, _ := StringArg(args, "text")
	position := -1
	if _, present := args["position"]; present {
		p, ok := IntArg(args, "position")
		if !ok || p < 0 {
			return "", apperrors.New(apperrors.ErrCodeInvalidArguments, "position must be a non-negative integer", nil)
		}
		position = p
	}

	offset, err := bufferFor(t.buf, toolCtx).Insert(position, text)
	if err != nil {
		return "", apperrors.New(apperrors.ErrCodeInvalidArguments, "cannot insert text", err)
	}
	return fmt.Sprintf("Inserted %d characters at offset %d", editor.RuneCount(text), offset), nil
}

// ReadSelectionTool returns the current selection
type ReadSelectionTool struct {
	BaseTool
	buf Buffers
}

// NewReadSelectionTool creates a new ReadSelectionTool
func NewReadSelectionTool(buf Buffers) *ReadSelectionTool {
	return &ReadSelectionTool{
		BaseTool: NewBaseTool("read_selection", "Read the text currently selected in the open document", nil),
		buf:      buf,
	}
}

func (t *ReadSelectionTool) RunAsync(ctx context.Context, args map[string]any, toolCtx *Context) (string, error) {
	text, start, end := bufferFor(t.buf, toolCtx).Selection()
	data, err := json.Marshal(map[string]any{
		"text":  text,
		"start": start,
		"end":   end,
	})
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// ReplaceSelectionTool replaces the current selection
type ReplaceSelectionTool struct {
	BaseTool
	buf Buffers
}

// NewReplaceSelectionTool creates a new ReplaceSelectionTool
func NewReplaceSelectionTool(buf Buffers) *ReplaceSelectionTool {
	return &ReplaceSelectionTool{
		BaseTool: NewBaseTool("replace_selection", "Replace the selected text in the open document",
			ObjectSchema(map[string]any{
				"text": StringProperty("Replacement text"),
			}, "text")),
		buf: buf,
	}
}

func (t *ReplaceSelectionTool) RunAsync(ctx context.Context, args map[string]any, toolCtx *Context) (string, error) {
	text, _ := StringArg(args, "text")
	removed := bufferFor(t.buf, toolCtx).ReplaceSelection(text)
	return fmt.Sprintf("Replaced %d characters with %d characters", editor.RuneCount(removed), editor.RuneCount(text)), nil
}

// SelectRangeTool changes the selection
type SelectRangeTool struct {
	BaseTool
	buf Buffers
}

// NewSelectRangeTool creates a new SelectRangeTool
func NewSelectRangeTool(buf Buffers) *SelectRangeTool {
	return &SelectRangeTool{
		BaseTool: NewBaseTool("select_range", "Select the character range [start, end) in the open document",
			ObjectSchema(map[string]any{
				"start": IntegerProperty("Start offset, inclusive"),
				"end":   IntegerProperty("End offset, exclusive"),
			}, "start", "end")),
		buf: buf,
	}
}

func (t *SelectRangeTool) RunAsync(ctx context.Context, args map[string]any, toolCtx *Context) (string, error) {
	start, _ := IntArg(args, "start")
	end, _ := IntArg(args, "end")
	if err := bufferFor(t.buf, toolCtx).Select(start, end); err != nil {
		return "", apperrors.New(apperrors.ErrCodeInvalidArguments, "cannot select range", err)
	}
	return fmt.Sprintf("Selected [%d,%d)", start, end), nil
}

// ReadDocumentTool returns the whole document
type ReadDocumentTool struct {
	BaseTool
	buf Buffers
}

// NewReadDocumentTool creates a new ReadDocumentTool
func NewReadDocumentTool(buf Buffers) *ReadDocumentTool {
	return &ReadDocumentTool{
		BaseTool: NewBaseTool("read_document", "Read the full text of the open document", nil),
		buf:      buf,
	}
}

func (t *ReadDocumentTool) RunAsync(ctx context.Context, args map[string]any, toolCtx *Context) (string, error) {
	return bufferFor(t.buf, toolCtx).Text(), nil
}
