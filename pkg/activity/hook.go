package activity

import (
	"context"
	"errors"
	"fmt"
	"slices"
)

// ActivityHook receives normalized activity events.
type ActivityHook interface {
	Notify(ctx context.Context, event Event) error
}

// HookFunc adapts a function to ActivityHook.
type HookFunc func(ctx context.Context, event Event) error

// Notify calls fn.
func (fn HookFunc) Notify(ctx context.Context, event Event) error {
	if fn == nil {
		return nil
	}
	return fn(ctx, event)
}

// OnVerbs forwards only events whose verb is listed. With no verbs every
// event passes.
func OnVerbs(hook ActivityHook, verbs ...string) ActivityHook {
	if hook == nil {
		return nil
	}
	if len(verbs) == 0 {
		return hook
	}
	allowed := slices.Clone(verbs)
	return HookFunc(func(ctx context.Context, event Event) error {
		if !slices.Contains(allowed, event.Verb) {
			return nil
		}
		return hook.Notify(ctx, event)
	})
}

// HookError reports the failure of one hook within a fan-out.
type HookError struct {
	Index int
	Verb  string
	Err   error
}

func (e *HookError) Error() string {
	return fmt.Sprintf("activity: hook %d on %s: %v", e.Index, e.Verb, e.Err)
}

func (e *HookError) Unwrap() error {
	return e.Err
}

// Hooks fans events out to zero or more hooks.
type Hooks []ActivityHook

// Enabled reports whether any hook is set.
func (h Hooks) Enabled() bool {
	return slices.ContainsFunc(h, func(hook ActivityHook) bool { return hook != nil })
}

// Notify normalizes event and hands it to every hook. Incomplete events are
// dropped. Every hook runs even when an earlier one fails; failures come back
// joined as HookErrors.
func (h Hooks) Notify(ctx context.Context, event Event) error {
	if !h.Enabled() {
		return nil
	}
	event = NormalizeEvent(event)
	if !event.Complete() {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}

	var errs []error
	for i, hook := range h {
		if hook == nil {
			continue
		}
		if err := hook.Notify(ctx, event); err != nil {
			errs = append(errs, &HookError{Index: i, Verb: event.Verb, Err: err})
		}
	}
	return errors.Join(errs...)
}

func (h Hooks) compact() Hooks {
	out := slices.DeleteFunc(slices.Clone(h), func(hook ActivityHook) bool { return hook == nil })
	if len(out) == 0 {
		return nil
	}
	return out
}
