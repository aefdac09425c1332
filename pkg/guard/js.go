//go:build js_eval

package guard

import (
	"time"

	"github.com/dop251/goja"
)

// jsEvaluator runs rules on goja. Like expr, record fields are globals and
// registered functions are callable by name. Each run gets a fresh runtime
// interrupted after the configured timeout.
type jsEvaluator struct {
	cfg engineConfig
}

func newJSEvaluator(cfg engineConfig) (Evaluator, error) {
	return &jsEvaluator{cfg: cfg}, nil
}

func (e *jsEvaluator) Engine() string { return EngineJS }

func (e *jsEvaluator) Compile(expr string) (CompiledRule, error) {
	program, err := compileCached(e.cfg.cache, EngineJS, expr, func(src string) (*goja.Program, error) {
		return goja.Compile("rule", "(function(){ return ("+src+"); })()", true)
	})
	if err != nil {
		return nil, err
	}
	return ruleFunc(func(ctx RuleContext) (any, error) {
		out, err := e.run(program, ctx)
		if err != nil {
			return nil, runError(EngineJS, expr, ctx, err)
		}
		return out, nil
	}), nil
}

func (e *jsEvaluator) run(program *goja.Program, ctx RuleContext) (any, error) {
	rt := goja.New()
	timer := time.AfterFunc(e.cfg.timeout, func() {
		rt.Interrupt("rule timed out after " + e.cfg.timeout.String())
	})
	defer timer.Stop()

	globals := make(map[string]any, len(ctx.Record)+9)
	for name, value := range ctx.Record {
		globals[name] = value
	}
	for name, value := range ctx.bindings() {
		globals[name] = value
	}
	if e.cfg.funcs != nil {
		globals["call"] = e.cfg.call
		for _, name := range e.cfg.funcs.Names() {
			globals[name] = func(args ...any) (any, error) { return e.cfg.call(name, args...) }
		}
	}
	for name, value := range globals {
		if err := rt.Set(name, value); err != nil {
			return nil, err
		}
	}

	value, err := rt.RunProgram(program)
	if err != nil {
		return nil, err
	}
	return value.Export(), nil
}
