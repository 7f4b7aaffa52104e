package llm

import (
	"context"
	"encoding/json"
	"strings"

	"google.golang.org/genai"

	"github.com/kagent-dev/agentdesk/pkg/adk/conversation"
)

// GeminiTransport streams replies from the Gemini API
type GeminiTransport struct {
	opts Options
}

// NewGeminiTransport creates a new Gemini transport. A client is built per
// call because the API key is bound at client construction.
func NewGeminiTransport(opts Options) *GeminiTransport {
	return &GeminiTransport{opts: opts}
}

func (t *GeminiTransport) Model() string {
	return t.opts.Model
}

func (t *GeminiTransport) Stream(ctx context.Context, req *Request) <-chan StreamEvent {
	return startStream(ctx, "gemini", req, func(e *emitter) (*Completed, error) {
		clientConfig := &genai.ClientConfig{
			APIKey:  req.Credentials.Token,
			Backend: genai.BackendGeminiAPI,
		}
		if t.opts.BaseURL != "" {
			clientConfig.HTTPOptions = genai.HTTPOptions{BaseURL: t.opts.BaseURL}
		}
		client, err := genai.NewClient(ctx, clientConfig)
		if err != nil {
			return nil, err
		}

		var (
			stop  string
			usage Usage
		)
		for resp, err := range client.Models.GenerateContentStream(ctx, t.opts.Model, convertGeminiContents(req.Turns), t.buildConfig(req)) {
			if err != nil {
				return nil, err
			}
			if resp.UsageMetadata != nil {
				usage = Usage{
					InputTokens:  int(resp.UsageMetadata.PromptTokenCount),
					OutputTokens: int(resp.UsageMetadata.CandidatesTokenCount),
				}
			}
			if len(resp.Candidates) == 0 {
				continue
			}

			candidate := resp.Candidates[0]
			if candidate.Content != nil {
				for _, part := range candidate.Content.Parts {
					if ev, ok := geminiPartEvent(part); ok {
						if !e.send(ev) {
							return nil, ctx.Err()
						}
					}
				}
			}
			if candidate.FinishReason != "" {
				stop = string(candidate.FinishReason)
			}
		}

		if stop == "" {
			return nil, nil
		}
		return &Completed{StopReason: stop, Usage: usage}, nil
	})
}

// geminiPartEvent converts a response part. Function calls arrive whole,
// so each becomes a single delta carrying the full arguments.
func geminiPartEvent(part *genai.Part) (StreamEvent, bool) {
	switch {
	case part == nil || part.Thought:
		return nil, false
	case part.FunctionCall != nil:
		id := part.FunctionCall.ID
		if id == "" {
			id = newCallID()
		}
		args := part.FunctionCall.Args
		if args == nil {
			args = map[string]any{}
		}
		data, err := json.Marshal(args)
		if err != nil {
			data = []byte("{}")
		}
		return ToolCallDelta{ID: id, Name: part.FunctionCall.Name, ArgumentsDelta: string(data)}, true
	case part.Text != "":
		return TextDelta{Text: part.Text}, true
	}
	return nil, false
}

func (t *GeminiTransport) buildConfig(req *Request) *genai.GenerateContentConfig {
	config := &genai.GenerateContentConfig{}
	if req.System != "" {
		config.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: req.System}}}
	}
	if t.opts.Temperature != nil {
		config.Temperature = genai.Ptr(float32(*t.opts.Temperature))
	}
	if len(req.Tools) > 0 {
		declarations := make([]*genai.FunctionDeclaration, 0, len(req.Tools))
		for _, tool := range req.Tools {
			declarations = append(declarations, &genai.FunctionDeclaration{
				Name:        tool.Name,
				Description: tool.Description,
				Parameters:  convertGeminiSchema(tool.Parameters),
			})
		}
		config.Tools = []*genai.Tool{{FunctionDeclarations: declarations}}
	}
	return config
}

// convertGeminiContents maps turns onto user/model contents, merging
// consecutive turns that share a wire role.
func convertGeminiContents(turns []conversation.Turn) []*genai.Content {
	var contents []*genai.Content

	push := func(role string, parts ...*genai.Part) {
		if len(parts) == 0 {
			return
		}
		if n := len(contents); n > 0 && contents[n-1].Role == role {
			contents[n-1].Parts = append(contents[n-1].Parts, parts...)
			return
		}
		contents = append(contents, &genai.Content{Role: role, Parts: parts})
	}

	for _, turn := range turns {
		switch turn.Role {
		case conversation.RoleUser:
			push("user", &genai.Part{Text: turn.Text})
		case conversation.RoleAssistant:
			var parts []*genai.Part
			if turn.Text != "" {
				parts = append(parts, &genai.Part{Text: turn.Text})
			}
			for _, call := range turn.ToolCalls {
				parts = append(parts, &genai.Part{FunctionCall: &genai.FunctionCall{
					ID:   call.ID,
					Name: call.Name,
					Args: call.Arguments,
				}})
			}
			push("model", parts...)
		case conversation.RoleTool:
			if turn.Result == nil {
				continue
			}
			response := map[string]any{"output": turn.Result.Output}
			if turn.Result.Error != nil {
				response = map[string]any{"error": map[string]any{
					"code":    turn.Result.Error.Code,
					"message": turn.Result.Error.Message,
				}}
			}
			push("user", &genai.Part{FunctionResponse: &genai.FunctionResponse{
				ID:       turn.Result.ID,
				Name:     turn.Result.Name,
				Response: response,
			}})
		}
	}

	return contents
}

func convertGeminiSchema(params map[string]any) *genai.Schema {
	if params == nil {
		return nil
	}

	schema := &genai.Schema{}
	if schemaType, ok := params["type"].(string); ok {
		schema.Type = genai.Type(strings.ToUpper(schemaType))
	}
	if desc, ok := params["description"].(string); ok {
		schema.Description = desc
	}
	if props, ok := params["properties"].(map[string]any); ok {
		schema.Properties = make(map[string]*genai.Schema, len(props))
		for key, value := range props {
			if propMap, ok := value.(map[string]any); ok {
				schema.Properties[key] = convertGeminiSchema(propMap)
			}
		}
	}
	if items, ok := params["items"].(map[string]any); ok {
		schema.Items = convertGeminiSchema(items)
	}
	schema.Required = stringSlice(params["required"])
	schema.Enum = stringSlice(params["enum"])

	return schema
}
