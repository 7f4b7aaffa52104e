package tools

import (
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/hashicorp/go-multierror"
)

// Validator validates tool arguments against the tool schema before execution.
type Validator interface {
	Validate(args map[string]any, schema map[string]any) error
}

// DefaultValidator checks arguments with JSON Schema. Every failing field
// is reported, not just the first one.
type DefaultValidator struct{}

// Validate ensures that args satisfy schema. Properties that the schema
// does not describe are accepted as-is, and so are property schemas that
// cannot be resolved.
func (DefaultValidator) Validate(args map[string]any, schema map[string]any) error {
	if schema == nil {
		return nil
	}
	instance, err := normalize(args)
	if err != nil {
		return fmt.Errorf("arguments are not JSON: %w", err)
	}

	var result *multierror.Error
	for _, field := range stringList(schema["required"]) {
		if _, exists := instance[field]; !exists {
			result = multierror.Append(result, fmt.Errorf("missing required field: %s", field))
		}
	}

	properties, _ := schema["properties"].(map[string]any)
	for _, key := range slices.Sorted(maps.Keys(instance)) {
		def, ok := properties[key].(map[string]any)
		if !ok {
			continue
		}
		resolved, err := resolveProperty(def, schema)
		if err != nil {
			continue
		}
		if err := resolved.Validate(instance[key]); err != nil {
			result = multierror.Append(result, fmt.Errorf("field %s: %w", key, err))
		}
	}

	if result == nil {
		return nil
	}
	result.ErrorFormat = func(errs []error) string {
		msgs := make([]string, len(errs))
		for i, err := range errs {
			msgs[i] = err.Error()
		}
		return strings.Join(msgs, "; ")
	}
	return result.ErrorOrNil()
}

// normalize round-trips args through JSON so the validator only sees JSON
// value types.
func normalize(args map[string]any) (map[string]any, error) {
	out := map[string]any{}
	if len(args) == 0 {
		return out, nil
	}
	data, err := json.Marshal(args)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// resolveProperty compiles one property schema. Definitions of the root
// schema are carried along so references keep resolving.
func resolveProperty(def, root map[string]any) (*jsonschema.Resolved, error) {
	sub := maps.Clone(def)
	for _, key := range []string{"$defs", "definitions"} {
		if defs, ok := root[key]; ok {
			if _, own := sub[key]; !own {
				sub[key] = defs
			}
		}
	}
	data, err := json.Marshal(sub)
	if err != nil {
		return nil, err
	}
	var s jsonschema.Schema
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, err
	}
	return s.Resolve(nil)
}

func stringList(v any) []string {
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
