// Package schema infers a JSON Schema from a sample resource document.
//
// Keyed record lists carry their identity fields in `required` and in the
// x-confdiff-identity extension, so one schema documents both the shape of a
// resource and how its records are matched.
package schema

import (
	"fmt"
	"sort"

	"github.com/goliatone/go-confdiff"
)

// Draft is the JSON Schema dialect generated documents declare.
const Draft = "https://json-schema.org/draft/2020-12/schema"

// IdentityExtension names the keyword listing a record list's identity
// fields.
const IdentityExtension = "x-confdiff-identity"

// Document is a generated schema ready to be serialised.
type Document map[string]any

// Option configures Infer.
type Option func(*config)

type config struct {
	title       string
	description string
	id          string
}

// WithTitle sets the schema title.
func WithTitle(title string) Option {
	return func(c *config) {
		c.title = title
	}
}

// WithDescription sets the schema description.
func WithDescription(description string) Option {
	return func(c *config) {
		c.description = description
	}
}

// WithID sets the schema $id.
func WithID(id string) Option {
	return func(c *config) {
		c.id = id
	}
}

// Infer builds the schema of sample. Depths follow the reconciler: a root
// sequence is a list at depth 1.
func Infer(sample confdiff.Value, keys confdiff.KeySpec, opts ...Option) (Document, error) {
	cfg := config{}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	depth := 0
	if sample.Kind() == confdiff.KindSequence {
		depth = 1
	}
	root, err := buildSchema(sample, keys, depth)
	if err != nil {
		return nil, err
	}
	doc := Document{"$schema": Draft}
	for key, value := range root {
		doc[key] = value
	}
	if cfg.id != "" {
		doc["$id"] = cfg.id
	}
	if cfg.title != "" {
		doc["title"] = cfg.title
	}
	if cfg.description != "" {
		doc["description"] = cfg.description
	}
	return doc, nil
}

func buildSchema(v confdiff.Value, keys confdiff.KeySpec, depth int) (map[string]any, error) {
	switch v.Kind() {
	case confdiff.KindNull:
		return map[string]any{"type": "null"}, nil
	case confdiff.KindScalar:
		return schemaForScalar(v)
	case confdiff.KindTree:
		return schemaForTree(v, keys, depth)
	case confdiff.KindSequence:
		return schemaForSequence(v, keys, depth)
	default:
		return nil, fmt.Errorf("schema: unsupported kind %s", v.Kind())
	}
}

func schemaForScalar(v confdiff.Value) (map[string]any, error) {
	scalar, _ := v.Scalar()
	switch scalar.(type) {
	case bool:
		return map[string]any{"type": "boolean"}, nil
	case int64:
		return map[string]any{"type": "integer"}, nil
	case float64:
		return map[string]any{"type": "number"}, nil
	case string:
		return map[string]any{"type": "string"}, nil
	default:
		return nil, fmt.Errorf("schema: unsupported scalar %T", scalar)
	}
}

func schemaForTree(v confdiff.Value, keys confdiff.KeySpec, depth int) (map[string]any, error) {
	tree, _ := v.Tree()
	properties := make(map[string]any, len(tree))
	for _, name := range tree.Keys() {
		child, err := buildSchema(tree[name], keys, depth+1)
		if err != nil {
			return nil, err
		}
		properties[name] = child
	}
	return map[string]any{
		"type":       "object",
		"properties": properties,
	}, nil
}

// schemaForSequence merges the schemas of every item. Records of an
// identified list sit one level below the list.
func schemaForSequence(v confdiff.Value, keys confdiff.KeySpec, depth int) (map[string]any, error) {
	items, _ := v.Sequence()
	identity := identityFields(items, keys.FieldsAt(depth))

	var merged map[string]any
	for _, item := range items {
		itemDepth := depth
		if identity != nil {
			itemDepth = depth + 1
		}
		child, err := buildSchema(item, keys, itemDepth)
		if err != nil {
			return nil, err
		}
		if merged == nil {
			merged = child
			continue
		}
		merged = mergeSchemas(merged, child)
	}
	if merged == nil {
		merged = map[string]any{}
	}

	out := map[string]any{
		"type":  "array",
		"items": merged,
	}
	if identity != nil {
		merged["required"] = identity
		out[IdentityExtension] = identity
	} else if len(items) > 0 && merged["type"] != "object" {
		out["uniqueItems"] = true
	}
	return out, nil
}

// identityFields returns the declared fields every record carries, or nil
// when items is not a record list the reconciler would index.
func identityFields(items []confdiff.Value, declared []string) []string {
	if len(items) == 0 || len(declared) == 0 {
		return nil
	}
	counts := map[string]int{}
	for _, item := range items {
		tree, ok := item.Tree()
		if !ok {
			return nil
		}
		matched := false
		for _, field := range declared {
			if value, ok := tree[field]; ok && value.Kind() == confdiff.KindScalar {
				counts[field]++
				matched = true
			}
		}
		if !matched {
			return nil
		}
	}
	var fields []string
	for field, count := range counts {
		if count == len(items) {
			fields = append(fields, field)
		}
	}
	if len(fields) == 0 {
		return nil
	}
	sort.Strings(fields)
	return fields
}

func mergeSchemas(a, b map[string]any) map[string]any {
	if a["type"] == "object" && b["type"] == "object" {
		properties := map[string]any{}
		for name, schema := range a["properties"].(map[string]any) {
			properties[name] = schema
		}
		for name, schema := range b["properties"].(map[string]any) {
			if existing, ok := properties[name].(map[string]any); ok {
				properties[name] = mergeSchemas(existing, schema.(map[string]any))
				continue
			}
			properties[name] = schema
		}
		out := map[string]any{"type": "object", "properties": properties}
		if required := intersect(a["required"], b["required"]); len(required) > 0 {
			out["required"] = required
		}
		return out
	}
	if a["type"] == "array" && b["type"] == "array" {
		out := map[string]any{"type": "array"}
		for key, value := range a {
			out[key] = value
		}
		ai, _ := a["items"].(map[string]any)
		bi, _ := b["items"].(map[string]any)
		switch {
		case len(ai) == 0:
			out["items"] = bi
		case len(bi) > 0:
			out["items"] = mergeSchemas(ai, bi)
		}
		return out
	}
	if a["type"] == nil || b["type"] == nil {
		return map[string]any{"anyOf": []any{a, b}}
	}
	types := unionTypes(a["type"], b["type"])
	if len(types) == 1 {
		return map[string]any{"type": types[0]}
	}
	if isScalarUnion(types) {
		return map[string]any{"type": types}
	}
	return map[string]any{"anyOf": []any{a, b}}
}

func intersect(a, b any) []string {
	left, _ := a.([]string)
	right, _ := b.([]string)
	var out []string
	for _, field := range left {
		for _, other := range right {
			if field == other {
				out = append(out, field)
				break
			}
		}
	}
	return out
}

func unionTypes(values ...any) []string {
	seen := map[string]struct{}{}
	for _, value := range values {
		switch typed := value.(type) {
		case string:
			seen[typed] = struct{}{}
		case []string:
			for _, t := range typed {
				seen[t] = struct{}{}
			}
		}
	}
	out := make([]string, 0, len(seen))
	for t := range seen {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

func isScalarUnion(types []string) bool {
	for _, t := range types {
		switch t {
		case "boolean", "integer", "number", "string", "null":
		default:
			return false
		}
	}
	return true
}
