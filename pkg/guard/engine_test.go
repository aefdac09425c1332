package guard

import (
	"testing"
	"time"
)

func TestEvaluatorBindsClockAndPosition(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	ctx := RuleContext{
		Record:   map[string]any{"vlan_id": 10},
		Path:     "vlan[vlan_id=10]",
		Depth:    1,
		Resource: "vlan",
		Now:      &now,
	}
	cases := []struct {
		engine string
		expr   string
	}{
		{EngineExpr, "now.Year() == 2026 && now.Day() == 1"},
		{EngineExpr, `depth == 1 && resource == "vlan" && path == "vlan[vlan_id=10]"`},
		{EngineExpr, "vlan_id == 10 && record.vlan_id == 10"},
		{EngineCEL, "now.getFullYear() == 2026 && depth == 1"},
	}
	for _, tc := range cases {
		evaluator, err := NewEvaluator(tc.engine)
		if err != nil {
			t.Fatalf("%s: new evaluator: %v", tc.engine, err)
		}
		out, err := Eval(evaluator, ctx, tc.expr)
		if err != nil {
			t.Fatalf("%s %q: %v", tc.engine, tc.expr, err)
		}
		if out != true {
			t.Fatalf("%s %q: expected true, got %v", tc.engine, tc.expr, out)
		}
	}
}
