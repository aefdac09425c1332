package guard

import (
	"time"
)

// RuleContext carries the removal candidate a rule is evaluated against.
type RuleContext struct {
	Record   map[string]any
	Key      map[string]any
	Path     string
	Depth    int
	Resource string
	Now      *time.Time
	Args     map[string]any
	Metadata map[string]any
}

func (ctx RuleContext) withDefaultNow() RuleContext {
	if ctx.Now != nil {
		return ctx
	}
	now := time.Now()
	ctx.Now = &now
	return ctx
}

func (ctx RuleContext) timestamp() time.Time {
	ctx = ctx.withDefaultNow()
	return *ctx.Now
}

func (ctx RuleContext) withDefaultMaps() RuleContext {
	if ctx.Record == nil {
		ctx.Record = map[string]any{}
	}
	if ctx.Key == nil {
		ctx.Key = map[string]any{}
	}
	if ctx.Args == nil {
		ctx.Args = map[string]any{}
	}
	if ctx.Metadata == nil {
		ctx.Metadata = map[string]any{}
	}
	return ctx
}

func (ctx RuleContext) withDefaults() RuleContext {
	return ctx.withDefaultNow().withDefaultMaps()
}

func (ctx RuleContext) pathLabel() string {
	if ctx.Path != "" {
		return ctx.Path
	}
	return "<root>"
}

// bindings are the variables every engine exposes. Record fields are also
// reachable as top-level names where the engine allows undeclared
// variables; fixed bindings win over record fields of the same name.
func (ctx RuleContext) bindings() map[string]any {
	return map[string]any{
		"record":   ctx.Record,
		"key":      ctx.Key,
		"path":     ctx.Path,
		"depth":    ctx.Depth,
		"resource": ctx.Resource,
		"now":      ctx.timestamp(),
		"args":     ctx.Args,
		"metadata": ctx.Metadata,
	}
}
