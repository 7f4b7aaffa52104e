package llm

import (
	"context"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/kagent-dev/agentdesk/pkg/adk/conversation"
)

// OpenAITransport streams chat completions from OpenAI-compatible endpoints
type OpenAITransport struct {
	client openai.Client
	opts   Options
}

// NewOpenAITransport creates a new OpenAI transport
func NewOpenAITransport(opts Options) *OpenAITransport {
	reqOpts := []option.RequestOption{option.WithMaxRetries(0)}
	if opts.BaseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(opts.BaseURL))
	}
	return &OpenAITransport{
		client: openai.NewClient(reqOpts...),
		opts:   opts,
	}
}

func (t *OpenAITransport) Model() string {
	return t.opts.Model
}

func (t *OpenAITransport) Stream(ctx context.Context, req *Request) <-chan StreamEvent {
	return startStream(ctx, "openai", req, func(e *emitter) (*Completed, error) {
		stream := t.client.Chat.Completions.NewStreaming(ctx, t.buildParams(req), option.WithAPIKey(req.Credentials.Token))
		defer stream.Close()

		ids := callIDs{}
		var (
			stop  string
			usage Usage
		)
		for stream.Next() {
			chunk := stream.Current()
			if chunk.Usage.PromptTokens > 0 || chunk.Usage.CompletionTokens > 0 {
				usage = Usage{
					InputTokens:  int(chunk.Usage.PromptTokens),
					OutputTokens: int(chunk.Usage.CompletionTokens),
				}
			}
			if len(chunk.Choices) == 0 {
				continue
			}

			choice := chunk.Choices[0]
			if choice.Delta.Content != "" {
				if !e.send(TextDelta{Text: choice.Delta.Content}) {
					return nil, ctx.Err()
				}
			}
			for _, tc := range choice.Delta.ToolCalls {
				delta := ToolCallDelta{
					ID:             ids.resolve(tc.Index, tc.ID),
					Name:           tc.Function.Name,
					ArgumentsDelta: tc.Function.Arguments,
				}
				if !e.send(delta) {
					return nil, ctx.Err()
				}
			}
			if choice.FinishReason != "" {
				stop = choice.FinishReason
			}
		}

		if err := stream.Err(); err != nil {
			return nil, err
		}
		if stop == "" {
			return nil, nil
		}
		return &Completed{StopReason: stop, Usage: usage}, nil
	})
}

func (t *OpenAITransport) buildParams(req *Request) openai.ChatCompletionNewParams {
	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(t.opts.Model),
		Messages: convertOpenAIMessages(req.System, req.Turns),
		StreamOptions: openai.ChatCompletionStreamOptionsParam{
			IncludeUsage: openai.Bool(true),
		},
	}
	if t.opts.MaxTokens > 0 {
		params.MaxCompletionTokens = openai.Int(int64(t.opts.MaxTokens))
	}
	if t.opts.Temperature != nil {
		params.Temperature = openai.Float(*t.opts.Temperature)
	}
	if len(req.Tools) > 0 {
		params.Tools = convertOpenAITools(req.Tools)
	}
	return params
}

func convertOpenAIMessages(system string, turns []conversation.Turn) []openai.ChatCompletionMessageParamUnion {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(turns)+1)
	if system != "" {
		messages = append(messages, openai.SystemMessage(system))
	}

	for _, turn := range turns {
		switch turn.Role {
		case conversation.RoleUser:
			messages = append(messages, openai.UserMessage(turn.Text))
		case conversation.RoleAssistant:
			if len(turn.ToolCalls) == 0 {
				messages = append(messages, openai.AssistantMessage(turn.Text))
				continue
			}
			assistant := openai.ChatCompletionAssistantMessageParam{}
			if turn.Text != "" {
				assistant.Content.OfString = openai.String(turn.Text)
			}
			for _, call := range turn.ToolCalls {
				assistant.ToolCalls = append(assistant.ToolCalls, openai.ChatCompletionMessageToolCallParam{
					ID: call.ID,
					Function: openai.ChatCompletionMessageToolCallFunctionParam{
						Name:      call.Name,
						Arguments: call.ArgumentsJSON(),
					},
				})
			}
			messages = append(messages, openai.ChatCompletionMessageParamUnion{OfAssistant: &assistant})
		case conversation.RoleTool:
			if turn.Result == nil {
				continue
			}
			messages = append(messages, openai.ToolMessage(turn.Result.Content(), turn.Result.ID))
		}
	}

	return messages
}

func convertOpenAITools(tools []ToolDefinition) []openai.ChatCompletionToolParam {
	result := make([]openai.ChatCompletionToolParam, 0, len(tools))
	for _, tool := range tools {
		fn := openai.FunctionDefinitionParam{
			Name:        tool.Name,
			Description: openai.String(tool.Description),
		}
		if tool.Parameters != nil {
			fn.Parameters = openai.FunctionParameters(tool.Parameters)
		}
		result = append(result, openai.ChatCompletionToolParam{Function: fn})
	}
	return result
}
