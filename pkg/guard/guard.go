// Package guard protects records from removal deltas with rule expressions.
//
// A Guard evaluates its rules against every record a removal delta would
// drop. The first rule yielding true keeps the record out of the delta, so
// rules like `vlan_id == 1` pin a default VLAN on a device regardless of what
// the desired state says.
package guard

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-confdiff"
)

// Supported engine names.
const (
	EngineExpr = "expr"
	EngineCEL  = "cel"
	EngineJS   = "js"
)

var (
	// ErrUnknownEngine indicates an engine name no evaluator implements.
	ErrUnknownEngine = errors.New("guard: unknown engine")
	// ErrEngineUnavailable indicates the engine exists but was not built in.
	ErrEngineUnavailable = errors.New("guard: engine not available in this build")
	// ErrNonBoolResult indicates a rule evaluated to something other than a bool.
	ErrNonBoolResult = errors.New("guard: rule must evaluate to a bool")
	// ErrEmptyRule indicates a rule without an expression.
	ErrEmptyRule = errors.New("guard: rule expression must not be empty")
)

// Rule is one protection expression. A rule with Depths only applies to
// records of lists at those depths.
type Rule struct {
	Name   string
	Expr   string
	Depths []int
}

// ParseRule reads "name=expr" or a bare expression. A bare expression names
// the rule after itself. Comparison operators are never taken as the name
// separator, so `vlan_id == 1` stays a bare expression.
func ParseRule(raw string) (Rule, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Rule{}, ErrEmptyRule
	}
	if idx := strings.Index(raw, "="); idx > 0 && isRuleName(raw[:idx]) && !strings.HasPrefix(raw[idx:], "==") {
		rule := Rule{Name: strings.TrimSpace(raw[:idx]), Expr: strings.TrimSpace(raw[idx+1:])}
		if rule.Expr == "" {
			return Rule{}, fmt.Errorf("%w: %s", ErrEmptyRule, rule.Name)
		}
		return rule, nil
	}
	return Rule{Name: raw, Expr: raw}, nil
}

func isRuleName(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return false
	}
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-', r == '.':
		default:
			return false
		}
	}
	return true
}

func (r Rule) appliesAt(depth int) bool {
	if len(r.Depths) == 0 {
		return true
	}
	for _, d := range r.Depths {
		if d == depth {
			return true
		}
	}
	return false
}

// Option configures a Guard.
type Option func(*config)

type config struct {
	engine    string
	evaluator Evaluator
	cache     ProgramCache
	registry  *FunctionRegistry
	functions map[string]Function
	builtins  bool
	args      map[string]any
	metadata  map[string]any
	resource  string
	logger    Logger
	clock     func() time.Time
}

// WithEngine selects the evaluator by name. Defaults to expr.
func WithEngine(engine string) Option {
	return func(cfg *config) {
		cfg.engine = strings.ToLower(strings.TrimSpace(engine))
	}
}

// WithEvaluator supplies an evaluator directly, overriding WithEngine.
func WithEvaluator(evaluator Evaluator) Option {
	return func(cfg *config) {
		cfg.evaluator = evaluator
	}
}

// WithProgramCache shares compiled programs across guards.
func WithProgramCache(cache ProgramCache) Option {
	return func(cfg *config) {
		cfg.cache = cache
	}
}

// WithFunctionRegistry exposes registry functions to rules.
func WithFunctionRegistry(registry *FunctionRegistry) Option {
	return func(cfg *config) {
		if registry == nil {
			return
		}
		cfg.registry = registry.Clone()
	}
}

// WithCustomFunction registers a single function callable from rules.
func WithCustomFunction(name string, fn Function) Option {
	return func(cfg *config) {
		if cfg.functions == nil {
			cfg.functions = map[string]Function{}
		}
		cfg.functions[name] = fn
	}
}

// WithBuiltins exposes in_range, in_prefix and one_of to rules.
func WithBuiltins() Option {
	return func(cfg *config) {
		cfg.builtins = true
	}
}

// WithArgs exposes args to rules as `args`.
func WithArgs(args map[string]any) Option {
	return func(cfg *config) {
		cfg.args = args
	}
}

// WithMetadata exposes metadata to rules as `metadata`.
func WithMetadata(metadata map[string]any) Option {
	return func(cfg *config) {
		cfg.metadata = metadata
	}
}

// WithResource names the resource under reconciliation, exposed as `resource`.
func WithResource(resource string) Option {
	return func(cfg *config) {
		cfg.resource = resource
	}
}

// WithLogger records every rule evaluation.
func WithLogger(logger Logger) Option {
	return func(cfg *config) {
		if logger == nil {
			logger = noopLogger{}
		}
		cfg.logger = logger
	}
}

// WithClock overrides the clock exposed as `now` and used for timings.
func WithClock(clock func() time.Time) Option {
	return func(cfg *config) {
		if clock == nil {
			clock = time.Now
		}
		cfg.clock = clock
	}
}

// Guard is a confdiff.RemovalFilter evaluating compiled rules.
type Guard struct {
	engine   string
	rules    []compiledRule
	args     map[string]any
	metadata map[string]any
	resource string
	logger   Logger
	clock    func() time.Time
}

type compiledRule struct {
	rule     Rule
	compiled CompiledRule
}

var _ confdiff.RemovalFilter = (*Guard)(nil)

// New compiles rules up front so expression errors surface before any
// reconciliation runs.
func New(rules []Rule, opts ...Option) (*Guard, error) {
	cfg := config{
		engine: EngineExpr,
		logger: noopLogger{},
		clock:  time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	registry, err := cfg.functionRegistry()
	if err != nil {
		return nil, err
	}
	evaluator := cfg.evaluator
	if evaluator == nil {
		evaluator, err = NewEvaluator(cfg.engine, WithCache(cfg.cache), WithFunctions(registry))
		if err != nil {
			return nil, err
		}
	}

	g := &Guard{
		engine:   evaluator.Engine(),
		args:     cfg.args,
		metadata: cfg.metadata,
		resource: cfg.resource,
		logger:   cfg.logger,
		clock:    cfg.clock,
	}
	for i, rule := range rules {
		if strings.TrimSpace(rule.Expr) == "" {
			return nil, fmt.Errorf("%w: rule %d", ErrEmptyRule, i)
		}
		if rule.Name == "" {
			rule.Name = rule.Expr
		}
		compiled, err := evaluator.Compile(rule.Expr)
		if err != nil {
			return nil, withRule(err, rule.Name)
		}
		g.rules = append(g.rules, compiledRule{rule: rule, compiled: compiled})
	}
	return g, nil
}

func (cfg config) functionRegistry() (*FunctionRegistry, error) {
	if len(cfg.functions) == 0 && !cfg.builtins {
		return cfg.registry, nil
	}
	registry := cfg.registry
	if registry == nil {
		registry = NewFunctionRegistry()
	}
	sets := []map[string]Function{cfg.functions}
	if cfg.builtins {
		sets = append(sets, Builtins())
	}
	for _, set := range sets {
		for name, fn := range set {
			if err := registry.Register(name, fn); err != nil {
				return nil, err
			}
		}
	}
	return registry, nil
}

// Len returns the number of rules.
func (g *Guard) Len() int {
	if g == nil {
		return 0
	}
	return len(g.rules)
}

// Protect implements confdiff.RemovalFilter.
func (g *Guard) Protect(candidate confdiff.RemovalCandidate) (bool, error) {
	if g == nil || len(g.rules) == 0 {
		return false, nil
	}
	ctx := g.context(candidate)
	for _, rule := range g.rules {
		if !rule.rule.appliesAt(candidate.Depth) {
			continue
		}
		protect, err := g.evaluate(rule, ctx)
		if err != nil {
			return false, err
		}
		if protect {
			return true, nil
		}
	}
	return false, nil
}

func (g *Guard) evaluate(rule compiledRule, ctx RuleContext) (bool, error) {
	start := g.clock()
	result, err := rule.compiled.Evaluate(ctx)
	protect := false
	if err != nil {
		err = withRule(err, rule.rule.Name)
	} else {
		var ok bool
		protect, ok = result.(bool)
		if !ok {
			err = fmt.Errorf("%w: rule %q returned %T", ErrNonBoolResult, rule.rule.Name, result)
		}
	}
	g.logger.LogEvaluation(LogEvent{
		Engine:    g.engine,
		Rule:      rule.rule.Name,
		Path:      ctx.pathLabel(),
		Duration:  g.clock().Sub(start),
		Protected: protect,
		Err:       err,
	})
	return protect, err
}

func (g *Guard) context(c confdiff.RemovalCandidate) RuleContext {
	now := g.clock()
	record, _ := c.Record.Any().(map[string]any)
	key := make(map[string]any, len(c.Key.Parts))
	for _, part := range c.Key.Parts {
		key[part.Field] = part.Value.Any()
	}
	return RuleContext{
		Record:   record,
		Key:      key,
		Path:     c.Path,
		Depth:    c.Depth,
		Resource: g.resource,
		Now:      &now,
		Args:     g.args,
		Metadata: g.metadata,
	}.withDefaults()
}
