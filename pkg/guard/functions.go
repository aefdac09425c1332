package guard

import (
	"errors"
	"fmt"
	"math"
	"net/netip"
	"slices"
	"strings"
	"sync"
)

// Function is a helper callable from rules, either by name or through
// call(name, args...).
type Function func(args ...any) (any, error)

var (
	// ErrFunctionNotFound indicates a call to an unregistered function.
	ErrFunctionNotFound = errors.New("guard: function not registered")
	// ErrFunctionExists indicates a second registration under one name.
	ErrFunctionExists = errors.New("guard: function already registered")
)

// FunctionRegistry maps case-insensitive names to functions. The zero value
// is ready to use.
type FunctionRegistry struct {
	mu    sync.RWMutex
	funcs map[string]Function
}

// NewFunctionRegistry returns a registry holding fns.
func NewFunctionRegistry(fns ...map[string]Function) *FunctionRegistry {
	r := &FunctionRegistry{}
	for _, set := range fns {
		for name, fn := range set {
			_ = r.Register(name, fn)
		}
	}
	return r
}

// Register adds fn under name.
func (r *FunctionRegistry) Register(name string, fn Function) error {
	key := strings.ToLower(strings.TrimSpace(name))
	switch {
	case key == "":
		return errors.New("guard: function name must not be empty")
	case fn == nil:
		return fmt.Errorf("guard: function %q is nil", name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.funcs[key]; ok {
		return fmt.Errorf("%w: %s", ErrFunctionExists, key)
	}
	if r.funcs == nil {
		r.funcs = map[string]Function{}
	}
	r.funcs[key] = fn
	return nil
}

// Clone copies the registry so later registrations stay local.
func (r *FunctionRegistry) Clone() *FunctionRegistry {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := &FunctionRegistry{funcs: make(map[string]Function, len(r.funcs))}
	for name, fn := range r.funcs {
		out.funcs[name] = fn
	}
	return out
}

// Call runs the function registered under name.
func (r *FunctionRegistry) Call(name string, args ...any) (any, error) {
	var fn Function
	if r != nil {
		r.mu.RLock()
		fn = r.funcs[strings.ToLower(name)]
		r.mu.RUnlock()
	}
	if fn == nil {
		return nil, fmt.Errorf("%w: %s", ErrFunctionNotFound, name)
	}
	return fn(args...)
}

// Names lists registered names in order.
func (r *FunctionRegistry) Names() []string {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.funcs))
	for name := range r.funcs {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Len reports the number of functions.
func (r *FunctionRegistry) Len() int {
	if r == nil {
		return 0
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.funcs)
}

// Builtins returns helpers for common network protection rules:
//
//	in_range(n, lo, hi)      lo <= n <= hi
//	in_prefix(addr, prefix)  addr falls inside the CIDR prefix
//	one_of(v, choices...)    v equals one of choices
func Builtins() map[string]Function {
	return map[string]Function{
		"in_range":  inRange,
		"in_prefix": inPrefix,
		"one_of":    oneOf,
	}
}

func inRange(args ...any) (any, error) {
	if len(args) != 3 {
		return nil, fmt.Errorf("in_range: expected 3 arguments, got %d", len(args))
	}
	var n [3]int64
	for i, arg := range args {
		v, ok := toInt(arg)
		if !ok {
			return nil, fmt.Errorf("in_range: argument %d is %T, not an integer", i, arg)
		}
		n[i] = v
	}
	return n[1] <= n[0] && n[0] <= n[2], nil
}

func inPrefix(args ...any) (any, error) {
	if len(args) != 2 {
		return nil, fmt.Errorf("in_prefix: expected 2 arguments, got %d", len(args))
	}
	raw, _ := args[0].(string)
	cidr, _ := args[1].(string)
	prefix, err := netip.ParsePrefix(cidr)
	if err != nil {
		return nil, fmt.Errorf("in_prefix: %w", err)
	}
	// addresses are often stored with their own prefix length
	if p, err := netip.ParsePrefix(raw); err == nil {
		return prefix.Contains(p.Addr()), nil
	}
	addr, err := netip.ParseAddr(raw)
	if err != nil {
		return nil, fmt.Errorf("in_prefix: %w", err)
	}
	return prefix.Contains(addr), nil
}

func oneOf(args ...any) (any, error) {
	if len(args) < 1 {
		return nil, errors.New("one_of: expected a value")
	}
	choices := args[1:]
	// a single list argument is spread
	if len(choices) == 1 {
		if list, ok := choices[0].([]any); ok {
			choices = list
		}
	}
	for _, choice := range choices {
		if sameValue(args[0], choice) {
			return true, nil
		}
	}
	return false, nil
}

func sameValue(a, b any) bool {
	if x, ok := toInt(a); ok {
		y, ok := toInt(b)
		return ok && x == y
	}
	return a == b
}

func toInt(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint64:
		if n > math.MaxInt64 {
			return 0, false
		}
		return int64(n), true
	case float64:
		if n != math.Trunc(n) {
			return 0, false
		}
		return int64(n), true
	default:
		return 0, false
	}
}
