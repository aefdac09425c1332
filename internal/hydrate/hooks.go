package hydrate

import (
	"fmt"

	"github.com/goliatone/go-confdiff"
)

// SelectPath returns a pre-hook replacing the payload with the subtree at
// path, e.g. SelectPath("config") for module-style documents. A missing
// subtree decodes as null.
func SelectPath(path ...string) PreHook {
	return func(_ Context, payload any) (any, error) {
		current := payload
		for i, field := range path {
			if current == nil {
				return nil, nil
			}
			tree, ok := asMap(current)
			if !ok {
				return nil, fmt.Errorf("select %q: %v is not a mapping", field, path[:i])
			}
			current = tree[field]
		}
		return current, nil
	}
}

// SelectResource is SelectPath on the context resource. Documents without a
// resource key pass through unchanged.
func SelectResource() PreHook {
	return func(ctx Context, payload any) (any, error) {
		if ctx.Resource == "" {
			return payload, nil
		}
		tree, ok := asMap(payload)
		if !ok {
			return payload, nil
		}
		if sub, ok := tree[ctx.Resource]; ok {
			return sub, nil
		}
		return payload, nil
	}
}

// RequireShape returns a post-hook rejecting documents whose root is not
// kind. Null documents are accepted.
func RequireShape(kind confdiff.Kind) PostHook {
	return func(ctx Context, value confdiff.Value) (confdiff.Value, error) {
		if value.IsNull() || value.Kind() == kind {
			return value, nil
		}
		return confdiff.Value{}, fmt.Errorf("%s root must be a %s, got %s", ctx.label(), kind, value.Kind())
	}
}

func asMap(payload any) (map[string]any, bool) {
	switch typed := payload.(type) {
	case map[string]any:
		return typed, true
	case map[any]any:
		out := make(map[string]any, len(typed))
		for key, value := range typed {
			out[fmt.Sprint(key)] = value
		}
		return out, true
	default:
		return nil, false
	}
}
