package activity

import (
	"context"
	"errors"
	"testing"
)

func TestHooksNotifyDropsIncompleteEvents(t *testing.T) {
	capture := &CaptureHook{}
	hooks := Hooks{capture}
	for _, event := range []Event{
		{},
		{Verb: VerbPlanned, ObjectType: ObjectPlan},
		{Verb: " ", ObjectType: ObjectPlan, ObjectID: "leaf-01/vlan"},
	} {
		if err := hooks.Notify(context.Background(), event); err != nil {
			t.Fatalf("expected nil error, got %v", err)
		}
	}
	if len(capture.Events) != 0 {
		t.Fatalf("expected no events captured, got %d", len(capture.Events))
	}
}

func TestHooksNotifyRunsEveryHook(t *testing.T) {
	capture := &CaptureHook{}
	boom1, boom2 := errors.New("boom1"), errors.New("boom2")
	var ctxSeen bool
	hooks := Hooks{
		HookFunc(func(ctx context.Context, event Event) error {
			ctxSeen = ctx != nil
			return nil
		}),
		HookFunc(func(context.Context, Event) error { return boom1 }),
		nil,
		capture,
		HookFunc(func(context.Context, Event) error { return boom2 }),
	}

	err := hooks.Notify(nil, Event{Verb: VerbCommitted, ObjectType: ObjectSnapshot, ObjectID: "s-1"})
	if !errors.Is(err, boom1) || !errors.Is(err, boom2) {
		t.Fatalf("expected joined error, got %v", err)
	}
	var hookErr *HookError
	if !errors.As(err, &hookErr) || hookErr.Index != 1 || hookErr.Verb != VerbCommitted {
		t.Fatalf("expected first failure at index 1, got %+v", hookErr)
	}
	if !ctxSeen {
		t.Fatalf("expected a non-nil context")
	}
	if len(capture.Events) != 1 {
		t.Fatalf("expected hooks after a failure to still run, got %d events", len(capture.Events))
	}
}

func TestHooksEnabledIgnoresNilHooks(t *testing.T) {
	if (Hooks{nil, nil}).Enabled() {
		t.Fatalf("expected only nil hooks to be disabled")
	}
	if !(Hooks{nil, &CaptureHook{}}).Enabled() {
		t.Fatalf("expected a real hook to enable")
	}
}

func TestOnVerbsFilters(t *testing.T) {
	capture := &CaptureHook{}
	hooks := Hooks{OnVerbs(capture, VerbRejected)}
	for _, verb := range []string{VerbPlanned, VerbRejected, VerbCommitted} {
		if err := hooks.Notify(context.Background(), Event{Verb: verb, ObjectType: ObjectSnapshot, ObjectID: "s"}); err != nil {
			t.Fatalf("notify: %v", err)
		}
	}
	if got := capture.Verbs(); len(got) != 1 || got[0] != VerbRejected {
		t.Fatalf("expected only rejected events, got %v", got)
	}
	if OnVerbs(nil, VerbPlanned) != nil {
		t.Fatalf("expected nil hook to stay nil")
	}
	if OnVerbs(capture) != ActivityHook(capture) {
		t.Fatalf("expected no verbs to return the hook unchanged")
	}
}

func TestCaptureHookHelpers(t *testing.T) {
	capture := &CaptureHook{}
	if _, ok := capture.Last(); ok {
		t.Fatalf("expected empty capture")
	}
	ctx := context.Background()
	_ = capture.Notify(ctx, Event{Verb: VerbPlanned, ObjectID: "a"})
	_ = capture.Notify(ctx, Event{Verb: VerbCommitted, ObjectID: "b"})
	_ = capture.Notify(ctx, Event{Verb: VerbPlanned, ObjectID: "c"})

	if got := capture.ByVerb(VerbPlanned); len(got) != 2 || got[1].ObjectID != "c" {
		t.Fatalf("unexpected planned events %+v", got)
	}
	if last, ok := capture.Last(); !ok || last.ObjectID != "c" {
		t.Fatalf("unexpected last event %+v", last)
	}
	capture.Reset()
	if len(capture.Verbs()) != 0 {
		t.Fatalf("expected reset to drop events")
	}
}
