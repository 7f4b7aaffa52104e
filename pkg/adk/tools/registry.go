package tools

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/go-logr/logr"

	"github.com/kagent-dev/agentdesk/pkg/adk/conversation"
	apperrors "github.com/kagent-dev/agentdesk/pkg/adk/errors"
)

// Registry maps tool names to tools. It is constructed once at startup
// and passed to whoever needs it. Tools may only be registered while no
// run holds the registry.
type Registry struct {
	mu         sync.RWMutex
	tools      map[string]Tool
	validator  Validator
	activeRuns int
}

// NewRegistry creates a registry backed by the default validator
func NewRegistry() *Registry {
	return &Registry{
		tools:     make(map[string]Tool),
		validator: DefaultValidator{},
	}
}

// SetValidator swaps the validator used before execution
func (r *Registry) SetValidator(v Validator) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.validator = v
}

// Register adds a tool under its name
func (r *Registry) Register(tool Tool) error {
	if tool == nil {
		return fmt.Errorf("tool is nil")
	}
	name := tool.Name()
	if name == "" {
		return fmt.Errorf("tool name is empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.activeRuns > 0 {
		return apperrors.Newf(apperrors.ErrCodeRegistryBusy, "cannot register %s while %d run(s) are active", name, r.activeRuns)
	}
	if _, exists := r.tools[name]; exists {
		return apperrors.Newf(apperrors.ErrCodeDuplicateTool, "tool %s already registered", name)
	}

	r.tools[name] = tool
	return nil
}

// BeginRun marks the registry read-only until the returned release func
// is called. Calling release more than once has no further effect.
func (r *Registry) BeginRun() (release func()) {
	r.mu.Lock()
	r.activeRuns++
	r.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			r.mu.Lock()
			r.activeRuns--
			r.mu.Unlock()
		})
	}
}

// Get retrieves a tool by name
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tool, ok := r.tools[name]
	return tool, ok
}

// Names returns the registered tool names in sorted order
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// ListSpecs returns the tool specs advertised to the model, sorted by name
func (r *Registry) ListSpecs() []Spec {
	r.mu.RLock()
	defer r.mu.RUnlock()

	specs := make([]Spec, 0, len(r.tools))
	for _, tool := range r.tools {
		specs = append(specs, Spec{
			Name:        tool.Name(),
			Description: tool.Description(),
			Parameters:  tool.Schema(),
		})
	}
	slices.SortFunc(specs, func(a, b Spec) int {
		return strings.Compare(a.Name, b.Name)
	})
	return specs
}

// Invoke runs the named tool. Errors carry one of the codes
// UNKNOWN_TOOL, INVALID_ARGUMENTS or TOOL_EXECUTION_FAILED.
func (r *Registry) Invoke(ctx context.Context, name string, args map[string]any, toolCtx *Context) (output string, err error) {
	r.mu.RLock()
	tool, ok := r.tools[name]
	validator := r.validator
	r.mu.RUnlock()

	if !ok {
		return "", apperrors.Newf(apperrors.ErrCodeUnknownTool, "tool %s is not registered", name)
	}
	if toolCtx == nil {
		toolCtx = &Context{}
	}
	if args == nil {
		args = map[string]any{}
	}

	if validator != nil {
		if verr := validator.Validate(args, tool.Schema()); verr != nil {
			return "", apperrors.New(apperrors.ErrCodeInvalidArguments, fmt.Sprintf("invalid arguments for %s", name), verr)
		}
	}

	defer func() {
		if p := recover(); p != nil {
			output = ""
			err = apperrors.New(apperrors.ErrCodeToolExecution, fmt.Sprintf("tool %s panicked", name), fmt.Errorf("%v", p))
		}
	}()

	output, err = tool.RunAsync(ctx, args, toolCtx)
	if err != nil {
		var appErr *apperrors.AppError
		if errors.As(err, &appErr) && (appErr.Code == apperrors.ErrCodeInvalidArguments || appErr.Code == apperrors.ErrCodeToolExecution) {
			return output, err
		}
		return output, apperrors.New(apperrors.ErrCodeToolExecution, fmt.Sprintf("tool %s failed", name), err)
	}
	return output, nil
}

// Execute invokes the tool for call and always returns a result; errors
// become the result's error payload.
func (r *Registry) Execute(ctx context.Context, call conversation.ToolCallRequest, toolCtx *Context) conversation.ToolCallResult {
	log := logr.FromContextOrDiscard(ctx).WithName("tool-registry")
	if toolCtx == nil {
		toolCtx = &Context{}
	}
	toolCtx.ToolCallID = call.ID

	result := conversation.ToolCallResult{ID: call.ID, Name: call.Name}
	output, err := r.Invoke(ctx, call.Name, call.Arguments, toolCtx)
	if err != nil {
		code := apperrors.CodeOf(err)
		if code == "" {
			code = apperrors.ErrCodeToolExecution
		}
		log.Info("Tool call failed", "tool", call.Name, "id", call.ID, "code", code, "error", err.Error())
		result.Error = &conversation.ToolError{Code: code, Message: err.Error()}
		return result
	}

	log.V(1).Info("Tool call succeeded", "tool", call.Name, "id", call.ID, "bytes", len(output))
	result.Output = output
	return result
}
