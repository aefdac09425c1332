package guard

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/goliatone/go-confdiff"
)

type protectCase struct {
	Name     string         `json:"name"`
	Engine   string         `json:"engine"`
	Rules    []string       `json:"rules"`
	Resource string         `json:"resource"`
	Path     string         `json:"path"`
	Depth    int            `json:"depth"`
	Key      confdiff.Value `json:"key"`
	Record   confdiff.Value `json:"record"`
	Protect  bool           `json:"protect"`
}

func TestGuardProtectFixture(t *testing.T) {
	cases := loadFixture[[]protectCase](t, "protect_cases.json")
	for _, tc := range cases {
		t.Run(tc.Name, func(t *testing.T) {
			rules := make([]Rule, 0, len(tc.Rules))
			for _, raw := range tc.Rules {
				rule, err := ParseRule(raw)
				if err != nil {
					t.Fatalf("parse rule %q: %v", raw, err)
				}
				rules = append(rules, rule)
			}
			g, err := New(rules, WithEngine(tc.Engine), WithResource(tc.Resource))
			if err != nil {
				t.Fatalf("new guard: %v", err)
			}
			got, err := g.Protect(confdiff.RemovalCandidate{
				Path:   tc.Path,
				Depth:  tc.Depth,
				Key:    keyOf(tc.Key),
				Record: tc.Record,
			})
			if err != nil {
				t.Fatalf("protect: %v", err)
			}
			if got != tc.Protect {
				t.Fatalf("expected protect=%v, got %v", tc.Protect, got)
			}
		})
	}
}

func TestParseRule(t *testing.T) {
	cases := []struct {
		raw  string
		name string
		expr string
	}{
		{raw: "keep_default=vlan_id == 1", name: "keep_default", expr: "vlan_id == 1"},
		{raw: "vlan_id == 1", name: "vlan_id == 1", expr: "vlan_id == 1"},
		{raw: "vlan_id >= 4000", name: "vlan_id >= 4000", expr: "vlan_id >= 4000"},
		{raw: "  mgmt.iface = record.interface_name == 'mgmt0' ", name: "mgmt.iface", expr: "record.interface_name == 'mgmt0'"},
	}
	for _, tc := range cases {
		rule, err := ParseRule(tc.raw)
		if err != nil {
			t.Fatalf("parse %q: %v", tc.raw, err)
		}
		if rule.Name != tc.name || rule.Expr != tc.expr {
			t.Fatalf("parse %q: got name=%q expr=%q", tc.raw, rule.Name, rule.Expr)
		}
	}
	if _, err := ParseRule("  "); !errors.Is(err, ErrEmptyRule) {
		t.Fatalf("expected ErrEmptyRule, got %v", err)
	}
	if _, err := ParseRule("name="); !errors.Is(err, ErrEmptyRule) {
		t.Fatalf("expected ErrEmptyRule for missing expression, got %v", err)
	}
}

func TestGuardRuleDepths(t *testing.T) {
	g, err := New([]Rule{{Name: "nested", Expr: "true", Depths: []int{3}}})
	if err != nil {
		t.Fatalf("new guard: %v", err)
	}
	top, err := g.Protect(confdiff.RemovalCandidate{Depth: 1, Record: confdiff.MustFromAny(map[string]any{"vlan_id": 1})})
	if err != nil {
		t.Fatalf("protect: %v", err)
	}
	if top {
		t.Fatalf("rule restricted to depth 3 must not protect depth 1 records")
	}
	nested, err := g.Protect(confdiff.RemovalCandidate{Depth: 3, Record: confdiff.MustFromAny(map[string]any{"vlan_id": 1})})
	if err != nil {
		t.Fatalf("protect: %v", err)
	}
	if !nested {
		t.Fatalf("expected depth 3 record to be protected")
	}
}

func TestGuardErrors(t *testing.T) {
	if _, err := New([]Rule{{Expr: "vlan_id =="}}); err == nil {
		t.Fatalf("expected compile error")
	}
	if _, err := New(nil, WithEngine("lua")); !errors.Is(err, ErrUnknownEngine) {
		t.Fatalf("expected ErrUnknownEngine, got %v", err)
	}
	if _, err := New([]Rule{{Name: "blank"}}); !errors.Is(err, ErrEmptyRule) {
		t.Fatalf("expected ErrEmptyRule, got %v", err)
	}

	g, err := New([]Rule{{Name: "name", Expr: "record.name"}})
	if err != nil {
		t.Fatalf("new guard: %v", err)
	}
	_, err = g.Protect(confdiff.RemovalCandidate{Record: confdiff.MustFromAny(map[string]any{"name": "x"})})
	if !errors.Is(err, ErrNonBoolResult) {
		t.Fatalf("expected ErrNonBoolResult, got %v", err)
	}
}

func TestGuardEmptyNeverProtects(t *testing.T) {
	var nilGuard *Guard
	if protect, err := nilGuard.Protect(confdiff.RemovalCandidate{}); protect || err != nil {
		t.Fatalf("nil guard: got %v, %v", protect, err)
	}
	g, err := New(nil)
	if err != nil {
		t.Fatalf("new guard: %v", err)
	}
	if g.Len() != 0 {
		t.Fatalf("expected no rules, got %d", g.Len())
	}
	if protect, _ := g.Protect(confdiff.RemovalCandidate{}); protect {
		t.Fatalf("guard without rules must not protect")
	}
}

func TestGuardSharesProgramCache(t *testing.T) {
	cache := NewMapCache()
	rules := map[string][]Rule{
		EngineExpr: {{Name: "keep_default", Expr: "vlan_id == 1"}},
		EngineCEL:  {{Name: "keep_default", Expr: "record.vlan_id == 1"}},
	}
	for engine, engineRules := range rules {
		for i := 0; i < 2; i++ {
			if _, err := New(engineRules, WithEngine(engine), WithProgramCache(cache)); err != nil {
				t.Fatalf("new %s guard: %v", engine, err)
			}
		}
	}
	if cache.Len() != 2 {
		t.Fatalf("expected one cached program per engine, got %d", cache.Len())
	}
	if _, ok := cache.Get("expr:vlan_id == 1"); !ok {
		t.Fatalf("expected expr program cached under engine prefix")
	}
}

func TestGuardCustomFunctions(t *testing.T) {
	reserved := func(args ...any) (any, error) {
		if len(args) != 1 {
			return nil, errors.New("is_reserved expects one argument")
		}
		id, ok := args[0].(int64)
		if !ok {
			return nil, errors.New("is_reserved expects an integer")
		}
		return id == 1 || id >= 4000, nil
	}
	candidate := confdiff.RemovalCandidate{
		Path:   "[vlan_id=4001]",
		Depth:  1,
		Record: confdiff.MustFromAny(map[string]any{"vlan_id": 4001}),
	}

	cases := []struct {
		engine string
		expr   string
	}{
		{engine: EngineExpr, expr: "is_reserved(vlan_id)"},
		{engine: EngineExpr, expr: "call('is_reserved', vlan_id)"},
		{engine: EngineCEL, expr: "call('is_reserved', record.vlan_id) == true"},
	}
	for _, tc := range cases {
		g, err := New([]Rule{{Expr: tc.expr}}, WithEngine(tc.engine), WithCustomFunction("is_reserved", reserved))
		if err != nil {
			t.Fatalf("%s: new guard: %v", tc.engine, err)
		}
		protect, err := g.Protect(candidate)
		if err != nil {
			t.Fatalf("%s %q: protect: %v", tc.engine, tc.expr, err)
		}
		if !protect {
			t.Fatalf("%s %q: expected reserved vlan to be protected", tc.engine, tc.expr)
		}
	}

	registry := NewFunctionRegistry()
	if err := registry.Register("is_reserved", reserved); err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, err := New(nil, WithFunctionRegistry(registry), WithCustomFunction("IS_RESERVED", reserved)); err == nil {
		t.Fatalf("expected duplicate function error")
	}
}

func TestGuardArgsMetadataAndClock(t *testing.T) {
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	g, err := New(
		[]Rule{{Expr: "args.site == 'lab' && metadata.change == 'CHG-1' && now.Year() == 2026"}},
		WithArgs(map[string]any{"site": "lab"}),
		WithMetadata(map[string]any{"change": "CHG-1"}),
		WithClock(func() time.Time { return fixed }),
	)
	if err != nil {
		t.Fatalf("new guard: %v", err)
	}
	protect, err := g.Protect(confdiff.RemovalCandidate{Record: confdiff.MustFromAny(map[string]any{"vlan_id": 7})})
	if err != nil {
		t.Fatalf("protect: %v", err)
	}
	if !protect {
		t.Fatalf("expected args, metadata and now bindings to match")
	}
}

func TestGuardLogsEvaluations(t *testing.T) {
	var events []LogEvent
	g, err := New(
		[]Rule{{Name: "first", Expr: "vlan_id == 2"}, {Name: "second", Expr: "vlan_id == 1"}},
		WithLogger(LoggerFunc(func(event LogEvent) { events = append(events, event) })),
	)
	if err != nil {
		t.Fatalf("new guard: %v", err)
	}
	if _, err := g.Protect(confdiff.RemovalCandidate{
		Path:   "[vlan_id=1]",
		Record: confdiff.MustFromAny(map[string]any{"vlan_id": 1}),
	}); err != nil {
		t.Fatalf("protect: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected one event per evaluated rule, got %d", len(events))
	}
	if events[0].Rule != "first" || events[0].Protected {
		t.Fatalf("unexpected first event %+v", events[0])
	}
	if events[1].Rule != "second" || !events[1].Protected || events[1].Path != "[vlan_id=1]" || events[1].Engine != EngineExpr {
		t.Fatalf("unexpected second event %+v", events[1])
	}
}

func TestMultiLoggerFansOut(t *testing.T) {
	var first, second int
	logger := MultiLogger(
		nil,
		LoggerFunc(func(LogEvent) { first++ }),
		LoggerFunc(func(LogEvent) { second++ }),
	)
	g, err := New([]Rule{{Expr: "vlan_id == 1"}}, WithLogger(logger))
	if err != nil {
		t.Fatalf("new guard: %v", err)
	}
	if _, err := g.Protect(confdiff.RemovalCandidate{Record: confdiff.MustFromAny(map[string]any{"vlan_id": 1})}); err != nil {
		t.Fatalf("protect: %v", err)
	}
	if first != 1 || second != 1 {
		t.Fatalf("expected both loggers to see one event, got %d and %d", first, second)
	}
	MultiLogger().LogEvaluation(LogEvent{})
}

func TestGuardFiltersIntersect(t *testing.T) {
	g, err := New([]Rule{{Name: "keep_default", Expr: "vlan_id == 1"}})
	if err != nil {
		t.Fatalf("new guard: %v", err)
	}
	r := confdiff.New(confdiff.KeySpec{"vlan_id": {1}}, confdiff.WithRemovalFilter(g))
	current := confdiff.MustFromAny(map[string]any{
		"vlan": []any{
			map[string]any{"vlan_id": 1, "name": "default"},
			map[string]any{"vlan_id": 10, "name": "users"},
		},
	})
	desired := confdiff.MustFromAny(map[string]any{"vlan": []any{}})

	got, err := r.Intersect(current, desired)
	if err != nil {
		t.Fatalf("intersect: %v", err)
	}
	want := confdiff.MustFromAny(map[string]any{
		"vlan": []any{
			map[string]any{"vlan_id": 10, "name": "users", "n_keys": 1},
		},
	})
	if !got.Equal(want) {
		t.Fatalf("expected %s, got %s", want, got)
	}
}

func keyOf(v confdiff.Value) confdiff.IdentityKey {
	tree, _ := v.Tree()
	var key confdiff.IdentityKey
	for _, field := range tree.Keys() {
		key.Parts = append(key.Parts, confdiff.IdentityPart{Field: field, Value: tree[field]})
	}
	return key
}

func loadFixture[T any](t *testing.T, name string) T {
	t.Helper()
	var out T
	payload, err := os.ReadFile(filepath.Join("testdata", name))
	if err != nil {
		t.Fatalf("read fixture %s: %v", name, err)
	}
	if err := json.Unmarshal(payload, &out); err != nil {
		t.Fatalf("decode fixture %s: %v", name, err)
	}
	return out
}

func candidateOf(record map[string]any, path string) confdiff.RemovalCandidate {
	return confdiff.RemovalCandidate{Path: path, Depth: 1, Record: confdiff.MustFromAny(record)}
}

func TestGuardBuiltins(t *testing.T) {
	cases := []struct {
		engine string
		expr   string
		record map[string]any
		want   bool
	}{
		{EngineExpr, "in_range(vlan_id, 4000, 4094)", map[string]any{"vlan_id": 4001}, true},
		{EngineExpr, "in_range(vlan_id, 4000, 4094)", map[string]any{"vlan_id": 10}, false},
		{EngineExpr, "in_prefix(ip, '10.0.0.0/8')", map[string]any{"ip": "10.1.2.3/24"}, true},
		{EngineExpr, "one_of(name, 'admin', 'root')", map[string]any{"name": "root"}, true},
		{EngineCEL, "call('in_prefix', [record.ip, '192.168.0.0/16']) == true", map[string]any{"ip": "10.0.0.1"}, false},
		{EngineCEL, "call('one_of', [record.vlan_id, 1, 4094]) == true", map[string]any{"vlan_id": 1}, true},
	}
	for _, tc := range cases {
		g, err := New([]Rule{{Expr: tc.expr}}, WithEngine(tc.engine), WithBuiltins())
		if err != nil {
			t.Fatalf("%s %q: new guard: %v", tc.engine, tc.expr, err)
		}
		got, err := g.Protect(candidateOf(tc.record, "[x]"))
		if err != nil {
			t.Fatalf("%s %q: protect: %v", tc.engine, tc.expr, err)
		}
		if got != tc.want {
			t.Fatalf("%s %q: expected %v, got %v", tc.engine, tc.expr, tc.want, got)
		}
	}
}

func TestBuiltinArgumentErrors(t *testing.T) {
	registry := NewFunctionRegistry(Builtins())
	for name, args := range map[string][]any{
		"in_range":  {int64(1), "two", int64(3)},
		"in_prefix": {"10.0.0.1", "not-a-prefix"},
		"one_of":    nil,
	} {
		if _, err := registry.Call(name, args...); err == nil {
			t.Fatalf("%s: expected an argument error", name)
		}
	}
	if _, err := registry.Call("missing"); !errors.Is(err, ErrFunctionNotFound) {
		t.Fatalf("expected ErrFunctionNotFound, got %v", err)
	}
	if got := registry.Names(); !reflect.DeepEqual(got, []string{"in_prefix", "in_range", "one_of"}) {
		t.Fatalf("unexpected names %v", got)
	}
}

func TestFunctionRegistryCloneIsolation(t *testing.T) {
	var registry FunctionRegistry
	noop := func(...any) (any, error) { return true, nil }
	if err := registry.Register(" Reserved ", noop); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := registry.Register("RESERVED", noop); !errors.Is(err, ErrFunctionExists) {
		t.Fatalf("expected ErrFunctionExists, got %v", err)
	}
	clone := registry.Clone()
	_ = clone.Register("extra", noop)
	if registry.Len() != 1 || clone.Len() != 2 {
		t.Fatalf("expected clone isolation, got %d and %d", registry.Len(), clone.Len())
	}
	if out, err := registry.Call("reserved"); err != nil || out != true {
		t.Fatalf("unexpected call result %v, %v", out, err)
	}
}

type fixedEvaluator struct{ result any }

func (fixedEvaluator) Engine() string { return "fixed" }

func (f fixedEvaluator) Compile(string) (CompiledRule, error) {
	return ruleFunc(func(RuleContext) (any, error) { return f.result, nil }), nil
}

func TestGuardCustomEvaluator(t *testing.T) {
	var events []LogEvent
	g, err := New([]Rule{{Expr: "anything"}},
		WithEvaluator(fixedEvaluator{result: true}),
		WithLogger(LoggerFunc(func(event LogEvent) { events = append(events, event) })),
	)
	if err != nil {
		t.Fatalf("new guard: %v", err)
	}
	if protect, err := g.Protect(candidateOf(map[string]any{"vlan_id": 1}, "[vlan_id=1]")); err != nil || !protect {
		t.Fatalf("expected protection, got %v, %v", protect, err)
	}
	if len(events) != 1 || events[0].Engine != "fixed" {
		t.Fatalf("expected engine name from evaluator, got %+v", events)
	}
}
