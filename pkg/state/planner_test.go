package state_test

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"testing"
	"time"

	"github.com/goliatone/go-confdiff"
	"github.com/goliatone/go-confdiff/layering"
	"github.com/goliatone/go-confdiff/pkg/activity"
	"github.com/goliatone/go-confdiff/pkg/state"
)

var vlanKeys = confdiff.KeySpec{"vlan_id": {1}}

func newTestPlanner(t *testing.T, store state.Store[state.Ref, confdiff.Value], opts ...state.PlannerOption) (*state.Planner, *activity.CaptureHook) {
	t.Helper()
	capture := &activity.CaptureHook{}
	next := 0
	base := []state.PlannerOption{
		state.WithActivityHooks(capture),
		state.WithClock(func() time.Time { return time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC) }),
		state.WithIDGenerator(func() string {
			next++
			return fmt.Sprintf("snap-%d", next)
		}),
	}
	planner, err := state.NewPlanner(store, state.Static(confdiff.New(vlanKeys)), append(base, opts...)...)
	if err != nil {
		t.Fatalf("new planner: %v", err)
	}
	return planner, capture
}

func TestPlannerPlansAgainstMissingSnapshot(t *testing.T) {
	planner, capture := newTestPlanner(t, state.NewObservedStore())
	ref := state.Ref{Device: "leaf-01", Resource: "vlan"}
	desired := confdiff.MustFromAny([]any{map[string]any{"vlan_id": 10, "name": "users"}})

	result, err := planner.Plan(context.Background(), ref, desired, confdiff.StateMerged)
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	if result.Found || !result.Plan.Merge.Equal(desired) || !result.Plan.Removal.IsEmpty() {
		t.Fatalf("unexpected result %+v", result)
	}
	if len(capture.Events) != 1 {
		t.Fatalf("expected one planned event, got %d", len(capture.Events))
	}
	event := capture.Events[0]
	if event.Verb != activity.VerbPlanned || event.ObjectID != "leaf-01/vlan" || event.Channel != activity.DefaultChannel {
		t.Fatalf("unexpected event %+v", event)
	}
	paths, _ := event.Metadata["merge_paths"].([]string)
	if !reflect.DeepEqual(paths, []string{"[vlan_id=10].name", "[vlan_id=10].vlan_id"}) {
		t.Fatalf("unexpected merge paths %v", event.Metadata["merge_paths"])
	}
}

func TestPlannerReplacedPlanAndCommit(t *testing.T) {
	ctx := context.Background()
	store := state.NewObservedStore()
	planner, capture := newTestPlanner(t, store, state.WithActor(state.Actor{ActorID: "automation"}))
	ref := state.Ref{Device: "leaf-01", Resource: "vlan"}

	observed := confdiff.MustFromAny([]any{
		map[string]any{"vlan_id": 1, "name": "default"},
		map[string]any{"vlan_id": 10, "name": "users", "description": "floor 1"},
	})
	first, err := planner.Commit(ctx, ref, observed, state.Meta{})
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	if first.SnapshotID != "snap-1" || first.ETag == "" {
		t.Fatalf("unexpected meta %+v", first)
	}

	desired := confdiff.MustFromAny([]any{map[string]any{"vlan_id": 10, "name": "staff"}})
	result, err := planner.Plan(ctx, ref, desired, confdiff.StateReplaced)
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	wantMerge := confdiff.MustFromAny([]any{map[string]any{"vlan_id": 10, "name": "staff"}})
	wantRemoval := confdiff.MustFromAny([]any{map[string]any{"vlan_id": 10, "description": "floor 1", "n_keys": 2}})
	if !result.Plan.Merge.Equal(wantMerge) || !result.Plan.Removal.Equal(wantRemoval) {
		t.Fatalf("unexpected plan merge=%s removal=%s", result.Plan.Merge, result.Plan.Removal)
	}
	if !result.Found || result.Meta.SnapshotID != "snap-1" {
		t.Fatalf("expected plan against stored snapshot, got %+v", result.Meta)
	}

	applied := confdiff.MustFromAny([]any{
		map[string]any{"vlan_id": 1, "name": "default"},
		map[string]any{"vlan_id": 10, "name": "staff"},
	})
	second, err := planner.Commit(ctx, ref, applied, result.Meta)
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	if second.SnapshotID != "snap-2" || second.ETag == first.ETag {
		t.Fatalf("unexpected meta %+v", second)
	}

	if got := capture.Verbs(); !reflect.DeepEqual(got, []string{activity.VerbCommitted, activity.VerbPlanned, activity.VerbCommitted}) {
		t.Fatalf("unexpected verbs %v", got)
	}
	planned := capture.Events[1]
	if planned.ActorID != "automation" || planned.Metadata["state"] != "replaced" || planned.Metadata["snapshot_id"] != "snap-1" {
		t.Fatalf("unexpected planned event %+v", planned)
	}
	removals, _ := planned.Metadata["removal_paths"].([]string)
	if !reflect.DeepEqual(removals, []string{"[vlan_id=10].description", "[vlan_id=10].vlan_id"}) {
		t.Fatalf("unexpected removal paths %v", planned.Metadata["removal_paths"])
	}
	committed := capture.Events[2]
	if committed.ObjectID != "leaf-01/vlan" {
		t.Fatalf("unexpected committed object %q", committed.ObjectID)
	}
	if committed.Metadata["previous_snapshot_id"] != "snap-1" || committed.Metadata["snapshot_id"] != "snap-2" {
		t.Fatalf("unexpected committed metadata %v", committed.Metadata)
	}
}

func TestPlannerRejectsStaleCommit(t *testing.T) {
	ctx := context.Background()
	store := state.NewObservedStore()
	planner, capture := newTestPlanner(t, store)
	ref := state.Ref{Device: "leaf-02", Resource: "vlan"}

	stale, err := planner.Commit(ctx, ref, confdiff.MustFromAny([]any{}), state.Meta{})
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	if _, err := planner.Commit(ctx, ref, confdiff.MustFromAny([]any{map[string]any{"vlan_id": 5}}), stale); err != nil {
		t.Fatalf("commit: %v", err)
	}

	_, err = planner.Commit(ctx, ref, confdiff.MustFromAny([]any{map[string]any{"vlan_id": 7}}), stale)
	if !errors.Is(err, state.ErrETagMismatch) {
		t.Fatalf("expected etag mismatch, got %v", err)
	}
	last := capture.Events[len(capture.Events)-1]
	if last.Verb != activity.VerbRejected || last.Metadata["error"] == nil {
		t.Fatalf("expected rejected event, got %+v", last)
	}
	current, meta, _, _ := store.Load(ctx, ref)
	if meta.SnapshotID != "snap-2" || !current.Equal(confdiff.MustFromAny([]any{map[string]any{"vlan_id": 5}})) {
		t.Fatalf("expected second commit kept, got %s %+v", current, meta)
	}
}

func TestPlannerDeletedStateRemovesEverything(t *testing.T) {
	ctx := context.Background()
	planner, _ := newTestPlanner(t, state.NewObservedStore())
	ref := state.Ref{Device: "leaf-01", Resource: "vlan"}
	observed := confdiff.MustFromAny([]any{map[string]any{"vlan_id": 10, "name": "users"}})
	if _, err := planner.Commit(ctx, ref, observed, state.Meta{}); err != nil {
		t.Fatalf("commit: %v", err)
	}

	result, err := planner.Plan(ctx, ref, confdiff.Null(), confdiff.StateDeleted)
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	want := confdiff.MustFromAny([]any{map[string]any{"vlan_id": 10, "name": "users", "n_keys": 1}})
	if !result.Plan.RemoveAll || !result.Plan.Removal.Equal(want) {
		t.Fatalf("unexpected plan %+v", result.Plan)
	}
}

func TestPlannerPlanStackRecordsLayers(t *testing.T) {
	planner, capture := newTestPlanner(t, state.NewObservedStore())
	stack, err := confdiff.NewStack(vlanKeys,
		confdiff.LayerFor(layering.Source{Level: layering.LevelDefaults, Resource: "vlan"},
			confdiff.MustFromAny([]any{map[string]any{"vlan_id": 1, "name": "default"}})),
		confdiff.LayerFor(layering.Source{Level: layering.LevelDevice, Name: "leaf-01", Resource: "vlan"},
			confdiff.MustFromAny([]any{map[string]any{"vlan_id": 10, "name": "users"}})),
	)
	if err != nil {
		t.Fatalf("stack: %v", err)
	}

	result, err := planner.PlanStack(context.Background(), state.Ref{Device: "leaf-01", Resource: "vlan"}, stack, confdiff.StateMerged)
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	if !reflect.DeepEqual(result.Layers, []string{"device/leaf-01/vlan", "defaults/vlan"}) {
		t.Fatalf("unexpected layers %v", result.Layers)
	}
	if result.Plan.Merge.Len() != 2 {
		t.Fatalf("expected both records merged, got %s", result.Plan.Merge)
	}
	layers, _ := capture.Events[0].Metadata["layers"].([]string)
	if len(layers) != 2 {
		t.Fatalf("expected layers metadata, got %v", capture.Events[0].Metadata)
	}
}

func TestPlannerDelete(t *testing.T) {
	ctx := context.Background()
	planner, capture := newTestPlanner(t, state.NewObservedStore())
	ref := state.Ref{Device: "leaf-01", Resource: "lldp"}
	meta, err := planner.Commit(ctx, ref, confdiff.MustFromAny(map[string]any{"enabled": true}), state.Meta{})
	if err != nil {
		t.Fatalf("commit: %v", err)
	}

	deleted, err := planner.Delete(ctx, ref, meta)
	if err != nil || !deleted {
		t.Fatalf("delete: deleted=%t err=%v", deleted, err)
	}
	last := capture.Events[len(capture.Events)-1]
	if last.Verb != activity.VerbSnapshotDeleted || last.Metadata["snapshot_id"] != meta.SnapshotID {
		t.Fatalf("unexpected event %+v", last)
	}
	if deleted, err := planner.Delete(ctx, ref, state.Meta{}); err != nil || deleted {
		t.Fatalf("expected second delete to be a no-op, got deleted=%t err=%v", deleted, err)
	}
}

type loadOnlyStore struct {
	err error
}

func (s loadOnlyStore) Load(context.Context, state.Ref) (confdiff.Value, state.Meta, bool, error) {
	return confdiff.Value{}, state.Meta{}, false, s.err
}

func (s loadOnlyStore) Save(context.Context, state.Ref, confdiff.Value, state.Meta) (state.Meta, error) {
	return state.Meta{}, s.err
}

func TestPlannerErrors(t *testing.T) {
	ctx := context.Background()
	if _, err := state.NewPlanner(nil, state.Static(confdiff.New(nil))); err == nil {
		t.Fatalf("expected missing store error")
	}

	planner, _ := newTestPlanner(t, loadOnlyStore{})
	if _, err := planner.Delete(ctx, state.Ref{Device: "a", Resource: "b"}, state.Meta{}); !errors.Is(err, state.ErrDeleteUnsupported) {
		t.Fatalf("expected delete unsupported, got %v", err)
	}
	if _, err := planner.Plan(ctx, state.Ref{Resource: "vlan"}, confdiff.NewTree(nil), confdiff.StateMerged); !errors.Is(err, state.ErrInvalidRef) {
		t.Fatalf("expected invalid ref, got %v", err)
	}
	_, err := planner.Plan(ctx, state.Ref{Device: "a", Resource: "b"}, confdiff.String("x"), confdiff.StateMerged)
	if !errors.Is(err, confdiff.ErrIncompatibleShape) {
		t.Fatalf("expected shape error, got %v", err)
	}

	boom := errors.New("backend down")
	failing, _ := newTestPlanner(t, loadOnlyStore{err: boom})
	if _, err := failing.Plan(ctx, state.Ref{Device: "a", Resource: "b"}, confdiff.NewTree(nil), confdiff.StateMerged); !errors.Is(err, boom) {
		t.Fatalf("expected load error, got %v", err)
	}

	lookup := func(ref state.Ref) (*confdiff.Reconciler, error) {
		return nil, fmt.Errorf("unknown resource %q", ref.Resource)
	}
	unknown, err := state.NewPlanner(state.NewObservedStore(), lookup)
	if err != nil {
		t.Fatalf("new planner: %v", err)
	}
	if _, err := unknown.Plan(ctx, state.Ref{Device: "a", Resource: "b"}, confdiff.NewTree(nil), confdiff.StateMerged); err == nil {
		t.Fatalf("expected reconciler lookup error")
	}
}

func TestPlannerReportsHookFailures(t *testing.T) {
	hook := &activity.CaptureHook{Err: errors.New("sink down")}
	planner, err := state.NewPlanner(state.NewObservedStore(), state.Static(confdiff.New(vlanKeys)), state.WithActivityHooks(hook))
	if err != nil {
		t.Fatalf("new planner: %v", err)
	}
	result, err := planner.Plan(context.Background(), state.Ref{Device: "a", Resource: "vlan"}, confdiff.MustFromAny([]any{}), confdiff.StateMerged)
	if err == nil || result.Ref.Device != "a" {
		t.Fatalf("expected result with emit error, got %+v %v", result, err)
	}
}
