package guard

import (
	"fmt"
	"time"
)

// Evaluator compiles rule expressions for one engine.
type Evaluator interface {
	Engine() string
	Compile(expr string) (CompiledRule, error)
}

// CompiledRule is a reusable program.
type CompiledRule interface {
	Evaluate(ctx RuleContext) (any, error)
}

// ProgramCache stores compiled programs under "engine:expression" keys.
type ProgramCache interface {
	Get(key string) (any, bool)
	Set(key string, value any)
}

// Eval compiles expr with e and runs it once.
func Eval(e Evaluator, ctx RuleContext, expr string) (any, error) {
	rule, err := e.Compile(expr)
	if err != nil {
		return nil, err
	}
	return rule.Evaluate(ctx)
}

const defaultScriptTimeout = 250 * time.Millisecond

// EngineOption configures a built-in evaluator.
type EngineOption func(*engineConfig)

type engineConfig struct {
	cache   ProgramCache
	funcs   *FunctionRegistry
	timeout time.Duration
}

// WithCache shares compiled programs through cache.
func WithCache(cache ProgramCache) EngineOption {
	return func(cfg *engineConfig) {
		cfg.cache = cache
	}
}

// WithFunctions exposes the functions of registry to rules.
func WithFunctions(registry *FunctionRegistry) EngineOption {
	return func(cfg *engineConfig) {
		cfg.funcs = registry.Clone()
	}
}

// WithScriptTimeout bounds a single js run. Non-positive values keep the
// default of 250ms. Other engines ignore it.
func WithScriptTimeout(timeout time.Duration) EngineOption {
	return func(cfg *engineConfig) {
		if timeout > 0 {
			cfg.timeout = timeout
		}
	}
}

func newEngineConfig(opts []EngineOption) engineConfig {
	cfg := engineConfig{timeout: defaultScriptTimeout}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return cfg
}

func (cfg engineConfig) call(name string, args ...any) (any, error) {
	return cfg.funcs.Call(name, args...)
}

// NewEvaluator builds the evaluator for engine. An empty name selects expr.
func NewEvaluator(engine string, opts ...EngineOption) (Evaluator, error) {
	switch engine {
	case "", EngineExpr:
		return newExprEvaluator(newEngineConfig(opts)), nil
	case EngineCEL:
		return newCELEvaluator(newEngineConfig(opts)), nil
	case EngineJS:
		return newJSEvaluator(newEngineConfig(opts))
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEngine, engine)
	}
}

// compileCached returns the cached program for expr or builds and caches a
// new one. A cached value of the wrong type is rebuilt.
func compileCached[P any](cache ProgramCache, engine, expr string, build func(string) (P, error)) (P, error) {
	var zero P
	if err := checkExpr(engine, expr); err != nil {
		return zero, err
	}
	key := engine + ":" + expr
	if cache != nil {
		if cached, ok := cache.Get(key); ok {
			if program, ok := cached.(P); ok {
				return program, nil
			}
		}
	}
	program, err := build(expr)
	if err != nil {
		return zero, compileError(engine, expr, err)
	}
	if cache != nil {
		cache.Set(key, program)
	}
	return program, nil
}

// ruleFunc adapts a closure to CompiledRule.
type ruleFunc func(RuleContext) (any, error)

func (f ruleFunc) Evaluate(ctx RuleContext) (any, error) {
	return f(ctx.withDefaults())
}
