package guard

import (
	"reflect"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"
)

// celEvaluator type-checks rules against a fixed environment. Record fields
// are only reachable through `record`, e.g. `record.vlan_id == 1`.
// Registered functions go through call(name, args).
type celEvaluator struct {
	cfg engineConfig
}

func newCELEvaluator(cfg engineConfig) *celEvaluator {
	return &celEvaluator{cfg: cfg}
}

func (e *celEvaluator) Engine() string { return EngineCEL }

func (e *celEvaluator) Compile(expr string) (CompiledRule, error) {
	program, err := compileCached(e.cfg.cache, EngineCEL, expr, e.build)
	if err != nil {
		return nil, err
	}
	return ruleFunc(func(ctx RuleContext) (any, error) {
		out, _, err := program.Eval(ctx.bindings())
		if err != nil {
			return nil, runError(EngineCEL, expr, ctx, err)
		}
		return out.Value(), nil
	}), nil
}

func (e *celEvaluator) build(expr string) (cel.Program, error) {
	env, err := cel.NewEnv(e.declarations()...)
	if err != nil {
		return nil, err
	}
	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, issues.Err()
	}
	return env.Program(ast)
}

func (e *celEvaluator) declarations() []cel.EnvOption {
	dynMap := cel.MapType(cel.StringType, cel.DynType)
	decls := []cel.EnvOption{
		cel.Variable("record", dynMap),
		cel.Variable("key", dynMap),
		cel.Variable("path", cel.StringType),
		cel.Variable("depth", cel.IntType),
		cel.Variable("resource", cel.StringType),
		cel.Variable("now", cel.TimestampType),
		cel.Variable("args", cel.DynType),
		cel.Variable("metadata", cel.DynType),
	}
	if e.cfg.funcs.Len() == 0 {
		return decls
	}
	return append(decls, cel.Function("call", cel.Overload(
		"call_string_dyn",
		[]*cel.Type{cel.StringType, cel.DynType},
		cel.DynType,
		cel.FunctionBinding(e.dispatch),
	)))
}

var anyList = reflect.TypeOf([]any{})

// dispatch forwards call(name, arg) to the registry. A list argument is
// spread into positional arguments.
func (e *celEvaluator) dispatch(values ...ref.Val) ref.Val {
	name, ok := values[0].Value().(string)
	if !ok {
		return types.NewErr("guard: call name must be a string")
	}
	var args []any
	for _, val := range values[1:] {
		if val.Type() == types.ListType {
			if native, err := val.ConvertToNative(anyList); err == nil {
				args = append(args, native.([]any)...)
				continue
			}
		}
		args = append(args, val.Value())
	}
	out, err := e.cfg.call(name, args...)
	switch {
	case err != nil:
		return types.NewErr("%s", err.Error())
	case out == nil:
		return types.NullValue
	default:
		return types.DefaultTypeAdapter.NativeToValue(out)
	}
}
