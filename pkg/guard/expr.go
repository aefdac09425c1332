package guard

import (
	"maps"
	"time"

	exprlang "github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// exprEvaluator runs rules on expr-lang. Record fields are top-level names,
// so `vlan_id == 1` and `record.vlan_id == 1` are the same rule. Registered
// functions are callable by name.
type exprEvaluator struct {
	cfg engineConfig
}

func newExprEvaluator(cfg engineConfig) *exprEvaluator {
	return &exprEvaluator{cfg: cfg}
}

func (e *exprEvaluator) Engine() string { return EngineExpr }

func (e *exprEvaluator) Compile(expr string) (CompiledRule, error) {
	program, err := compileCached(e.cfg.cache, EngineExpr, expr, e.build)
	if err != nil {
		return nil, err
	}
	return ruleFunc(func(ctx RuleContext) (any, error) {
		out, err := vm.Run(program, e.env(ctx))
		if err != nil {
			return nil, runError(EngineExpr, expr, ctx, err)
		}
		return out, nil
	}), nil
}

// compileEnv declares the fixed bindings so they shadow expr builtins of the
// same name, such as now().
var compileEnv = map[string]any{
	"record":   map[string]any{},
	"key":      map[string]any{},
	"path":     "",
	"depth":    0,
	"resource": "",
	"now":      time.Time{},
	"args":     map[string]any{},
	"metadata": map[string]any{},
}

func (e *exprEvaluator) build(expr string) (*vm.Program, error) {
	opts := []exprlang.Option{
		exprlang.Env(compileEnv),
		exprlang.AllowUndefinedVariables(),
	}
	for _, name := range e.cfg.funcs.Names() {
		opts = append(opts, exprlang.Function(name, func(args ...any) (any, error) {
			return e.cfg.call(name, args...)
		}))
	}
	return exprlang.Compile(expr, opts...)
}

func (e *exprEvaluator) env(ctx RuleContext) map[string]any {
	env := maps.Clone(ctx.Record)
	if env == nil {
		env = map[string]any{}
	}
	maps.Copy(env, ctx.bindings())
	if e.cfg.funcs != nil {
		env["call"] = e.cfg.call
	}
	return env
}
