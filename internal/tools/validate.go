package tools

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/mitchellh/mapstructure"

	"github.com/spigell/mentor-matcher/internal/apperr"
)

// validateArgs checks args against schema and returns a copy with defaults
// applied and integers normalized to int. Unknown keys are left for decode.
func validateArgs(schema Schema, args map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(args)+len(schema.Properties))
	for k, v := range args {
		out[k] = v
	}

	for _, required := range schema.Required {
		if v, ok := out[required]; !ok || v == nil {
			return nil, fmt.Errorf("%w: %s", ErrMissingRequiredArg, required)
		}
	}

	for name, prop := range schema.Properties {
		v, ok := out[name]
		if !ok || v == nil {
			if prop.Default != nil {
				out[name] = prop.Default
			} else {
				delete(out, name)
			}
			continue
		}

		normalized, err := checkType(name, prop, v)
		if err != nil {
			return nil, err
		}
		out[name] = normalized
	}

	return out, nil
}

func checkType(name string, prop Property, v any) (any, error) {
	switch prop.Type {
	case "string":
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("%w: %s must be a string", ErrInvalidArgType, name)
		}
		return s, nil
	case "integer":
		n, ok := asInt(v)
		if !ok {
			return nil, fmt.Errorf("%w: %s must be an integer", ErrInvalidArgType, name)
		}
		return n, nil
	case "array":
		items, ok := asSlice(v)
		if !ok {
			return nil, fmt.Errorf("%w: %s must be an array", ErrInvalidArgType, name)
		}
		if len(items) < prop.MinItems {
			return nil, fmt.Errorf("%w: %s needs at least %d item(s)", ErrInvalidArgType, name, prop.MinItems)
		}
		if prop.Items != nil {
			for i, item := range items {
				if _, err := checkType(fmt.Sprintf("%s[%d]", name, i), Property{Type: prop.Items.Type}, item); err != nil {
					return nil, err
				}
			}
		}
		return items, nil
	default:
		return v, nil
	}
}

func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int32:
		return int(n), true
	case int64:
		return int(n), true
	case float64:
		if n != math.Trunc(n) {
			return 0, false
		}
		return int(n), true
	case json.Number:
		i, err := n.Int64()
		return int(i), err == nil
	default:
		return 0, false
	}
}

func asSlice(v any) ([]any, bool) {
	switch s := v.(type) {
	case []any:
		return s, true
	case []string:
		out := make([]any, 0, len(s))
		for _, item := range s {
			out = append(out, item)
		}
		return out, true
	default:
		return nil, false
	}
}

// decode maps validated arguments onto a typed input, rejecting unknown keys.
func decode(args map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		ErrorUnused: true,
		TagName:     "mapstructure",
		Result:      out,
	})
	if err != nil {
		return fmt.Errorf("build decoder: %w", err)
	}
	if err := dec.Decode(args); err != nil {
		return apperr.New(apperr.InvalidArgument, "decode arguments: %v", err)
	}
	return nil
}
