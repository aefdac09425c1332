package guard

import (
	"errors"
	"fmt"
	"strings"
)

// Phase tells whether an EvaluationError came from compiling or running.
type Phase string

const (
	PhaseCompile Phase = "compile"
	PhaseRun     Phase = "run"
)

// EvaluationError reports a rule that failed to compile or run. Path is the
// candidate path for run failures and empty otherwise.
type EvaluationError struct {
	Engine string
	Phase  Phase
	Rule   string
	Expr   string
	Path   string
	Err    error
}

func (e *EvaluationError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "guard: %s %s", e.Engine, e.Phase)
	if e.Rule != "" && e.Rule != e.Expr {
		fmt.Fprintf(&b, " %s", e.Rule)
	}
	fmt.Fprintf(&b, " %q", e.Expr)
	if e.Path != "" {
		fmt.Fprintf(&b, " at %s", e.Path)
	}
	fmt.Fprintf(&b, ": %v", e.Err)
	return b.String()
}

func (e *EvaluationError) Unwrap() error {
	return e.Err
}

func compileError(engine, expr string, err error) error {
	return &EvaluationError{Engine: engine, Phase: PhaseCompile, Expr: expr, Err: err}
}

func runError(engine, expr string, ctx RuleContext, err error) error {
	return &EvaluationError{Engine: engine, Phase: PhaseRun, Expr: expr, Path: ctx.pathLabel(), Err: err}
}

// withRule names the failing rule on err.
func withRule(err error, rule string) error {
	var evalErr *EvaluationError
	if errors.As(err, &evalErr) {
		evalErr.Rule = rule
		return err
	}
	return fmt.Errorf("guard: rule %q: %w", rule, err)
}

func checkExpr(engine, expr string) error {
	if strings.TrimSpace(expr) == "" {
		return compileError(engine, expr, ErrEmptyRule)
	}
	return nil
}
