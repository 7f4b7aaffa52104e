package llm

import (
	"context"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/kagent-dev/agentdesk/pkg/adk/conversation"
)

const defaultAnthropicMaxTokens = 4096

// AnthropicTransport streams replies from the Anthropic Messages API
type AnthropicTransport struct {
	client anthropic.Client
	opts   Options
}

// NewAnthropicTransport creates a new Anthropic transport
func NewAnthropicTransport(opts Options) *AnthropicTransport {
	reqOpts := []option.RequestOption{option.WithMaxRetries(0)}
	if opts.BaseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(opts.BaseURL))
	}
	return &AnthropicTransport{
		client: anthropic.NewClient(reqOpts...),
		opts:   opts,
	}
}

func (t *AnthropicTransport) Model() string {
	return t.opts.Model
}

func (t *AnthropicTransport) Stream(ctx context.Context, req *Request) <-chan StreamEvent {
	return startStream(ctx, "anthropic", req, func(e *emitter) (*Completed, error) {
		stream := t.client.Messages.NewStreaming(ctx, t.buildParams(req), option.WithAPIKey(req.Credentials.Token))
		defer stream.Close()

		ids := callIDs{}
		var (
			stop    string
			usage   Usage
			stopped bool
		)
		for stream.Next() {
			switch ev := stream.Current().AsAny().(type) {
			case anthropic.MessageStartEvent:
				usage.InputTokens = int(ev.Message.Usage.InputTokens)
			case anthropic.ContentBlockStartEvent:
				if ev.ContentBlock.Type != "tool_use" {
					continue
				}
				delta := ToolCallDelta{ID: ids.resolve(ev.Index, ev.ContentBlock.ID), Name: ev.ContentBlock.Name}
				if !e.send(delta) {
					return nil, ctx.Err()
				}
			case anthropic.ContentBlockDeltaEvent:
				var out StreamEvent
				switch d := ev.Delta.AsAny().(type) {
				case anthropic.TextDelta:
					out = TextDelta{Text: d.Text}
				case anthropic.InputJSONDelta:
					if d.PartialJSON == "" {
						continue
					}
					out = ToolCallDelta{ID: ids.resolve(ev.Index, ""), ArgumentsDelta: d.PartialJSON}
				default:
					continue
				}
				if !e.send(out) {
					return nil, ctx.Err()
				}
			case anthropic.MessageDeltaEvent:
				if ev.Delta.StopReason != "" {
					stop = string(ev.Delta.StopReason)
				}
				usage.OutputTokens = int(ev.Usage.OutputTokens)
			case anthropic.MessageStopEvent:
				stopped = true
			}
		}

		if err := stream.Err(); err != nil {
			return nil, err
		}
		if !stopped {
			return nil, nil
		}
		return &Completed{StopReason: stop, Usage: usage}, nil
	})
}

func (t *AnthropicTransport) buildParams(req *Request) anthropic.MessageNewParams {
	maxTokens := t.opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultAnthropicMaxTokens
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(t.opts.Model),
		MaxTokens: int64(maxTokens),
		Messages:  convertAnthropicMessages(req.Turns),
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}
	if t.opts.Temperature != nil {
		params.Temperature = anthropic.Float(*t.opts.Temperature)
	}
	if len(req.Tools) > 0 {
		params.Tools = convertAnthropicTools(req.Tools)
	}
	return params
}

// convertAnthropicMessages merges consecutive turns of the same wire role,
// since the Messages API requires user and assistant to alternate and
// tool results travel as user content.
func convertAnthropicMessages(turns []conversation.Turn) []anthropic.MessageParam {
	var messages []anthropic.MessageParam

	push := func(role anthropic.MessageParamRole, blocks ...anthropic.ContentBlockParamUnion) {
		if len(blocks) == 0 {
			return
		}
		if n := len(messages); n > 0 && messages[n-1].Role == role {
			messages[n-1].Content = append(messages[n-1].Content, blocks...)
			return
		}
		messages = append(messages, anthropic.MessageParam{Role: role, Content: blocks})
	}

	for _, turn := range turns {
		switch turn.Role {
		case conversation.RoleUser:
			push(anthropic.MessageParamRoleUser, anthropic.NewTextBlock(turn.Text))
		case conversation.RoleAssistant:
			var blocks []anthropic.ContentBlockParamUnion
			if turn.Text != "" {
				blocks = append(blocks, anthropic.NewTextBlock(turn.Text))
			}
			for _, call := range turn.ToolCalls {
				args := call.Arguments
				if args == nil {
					args = map[string]any{}
				}
				blocks = append(blocks, anthropic.NewToolUseBlock(call.ID, args, call.Name))
			}
			push(anthropic.MessageParamRoleAssistant, blocks...)
		case conversation.RoleTool:
			if turn.Result == nil {
				continue
			}
			push(anthropic.MessageParamRoleUser,
				anthropic.NewToolResultBlock(turn.Result.ID, turn.Result.Content(), turn.Result.IsError()))
		}
	}

	return messages
}

func convertAnthropicTools(tools []ToolDefinition) []anthropic.ToolUnionParam {
	result := make([]anthropic.ToolUnionParam, 0, len(tools))
	for _, tool := range tools {
		schema := anthropic.ToolInputSchemaParam{
			Properties: tool.Parameters["properties"],
		}
		if required := stringSlice(tool.Parameters["required"]); len(required) > 0 {
			schema.Required = required
		}
		result = append(result, anthropic.ToolUnionParam{
			OfTool: &anthropic.ToolParam{
				Name:        tool.Name,
				Description: anthropic.String(tool.Description),
				InputSchema: schema,
			},
		})
	}
	return result
}

func stringSlice(v any) []string {
	switch list := v.(type) {
	case []string:
		return list
	case []any:
		out := make([]string, 0, len(list))
		for _, item := range list {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}
