package state

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-confdiff"
	"github.com/goliatone/go-confdiff/pkg/activity"
	"github.com/google/uuid"
)

// ReconcilerFunc picks the reconciler of a ref, usually by resource name.
type ReconcilerFunc func(ref Ref) (*confdiff.Reconciler, error)

// Static uses r for every ref.
func Static(r *confdiff.Reconciler) ReconcilerFunc {
	return func(Ref) (*confdiff.Reconciler, error) {
		return r, nil
	}
}

// Actor is copied onto every emitted activity event.
type Actor struct {
	ActorID  string
	UserID   string
	TenantID string
}

// PlannerOption configures a Planner.
type PlannerOption func(*Planner)

// WithEmitter routes lifecycle events through emitter.
func WithEmitter(emitter *activity.Emitter) PlannerOption {
	return func(p *Planner) {
		p.emitter = emitter
	}
}

// WithActivityHooks emits lifecycle events to hooks on the default channel.
func WithActivityHooks(hooks ...activity.ActivityHook) PlannerOption {
	return func(p *Planner) {
		p.emitter = activity.NewEmitter(activity.Hooks(hooks), activity.Config{Enabled: true})
	}
}

// WithActor attributes emitted events.
func WithActor(actor Actor) PlannerOption {
	return func(p *Planner) {
		p.actor = actor
	}
}

// WithClock overrides the clock stamping commits and events.
func WithClock(clock func() time.Time) PlannerOption {
	return func(p *Planner) {
		if clock != nil {
			p.clock = clock
		}
	}
}

// WithIDGenerator overrides snapshot id generation. Defaults to UUIDv4.
func WithIDGenerator(newID func() string) PlannerOption {
	return func(p *Planner) {
		if newID != nil {
			p.newID = newID
		}
	}
}

// Planner plans reconciliations against observed snapshots and commits new
// observations.
type Planner struct {
	store       Store[Ref, confdiff.Value]
	reconcilers ReconcilerFunc
	emitter     *activity.Emitter
	actor       Actor
	clock       func() time.Time
	newID       func() string
}

// NewPlanner constructs a Planner over store.
func NewPlanner(store Store[Ref, confdiff.Value], reconcilers ReconcilerFunc, opts ...PlannerOption) (*Planner, error) {
	if store == nil {
		return nil, fmt.Errorf("state: store is required")
	}
	if reconcilers == nil {
		return nil, fmt.Errorf("state: reconciler lookup is required")
	}
	p := &Planner{
		store:       store,
		reconcilers: reconcilers,
		clock:       time.Now,
		newID:       func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	return p, nil
}

// Result is a computed plan with the snapshot it was computed against. Pass
// Meta to Commit so the commit fails if another writer stored a newer
// observation meanwhile.
type Result struct {
	Ref     Ref
	Plan    confdiff.Plan
	Current confdiff.Value
	Meta    Meta
	Found   bool
	Layers  []string
}

// Plan computes the plan applying desired to the observed snapshot of ref.
// A missing snapshot plans against empty current state. Event emission
// failures are returned alongside a valid Result.
func (p *Planner) Plan(ctx context.Context, ref Ref, desired confdiff.Value, state confdiff.State) (Result, error) {
	return p.plan(ctx, ref, desired, state, nil)
}

// PlanStack merges stack and plans the result, recording the layer names.
func (p *Planner) PlanStack(ctx context.Context, ref Ref, stack *confdiff.Stack, state confdiff.State) (Result, error) {
	desired, err := stack.Merge()
	if err != nil {
		return Result{}, err
	}
	var layers []string
	for _, layer := range stack.Layers() {
		layers = append(layers, layer.Name)
	}
	return p.plan(ctx, ref, desired, state, layers)
}

func (p *Planner) plan(ctx context.Context, ref Ref, desired confdiff.Value, state confdiff.State, layers []string) (Result, error) {
	reconciler, err := p.reconciler(ref)
	if err != nil {
		return Result{}, err
	}
	current, meta, found, err := p.store.Load(ctx, ref)
	if err != nil {
		return Result{}, fmt.Errorf("state: load %s: %w", ref, err)
	}
	if !found {
		current = confdiff.Null()
	}
	plan, err := reconciler.Plan(current, desired, state)
	if err != nil {
		return Result{}, fmt.Errorf("state: plan %s: %w", ref, err)
	}
	result := Result{
		Ref:     ref,
		Plan:    plan,
		Current: current.Clone(),
		Meta:    cloneMeta(meta),
		Found:   found,
		Layers:  layers,
	}

	keys := reconciler.Keys()
	input := p.eventInput(ref, PlanContextFor(result))
	input.MergePaths = leafPaths(plan.Merge, keys)
	input.RemovalPaths = leafPaths(plan.Removal, keys)
	input.RemoveAll = plan.RemoveAll
	return result, p.emit(ctx, activity.BuildPlannedEvent(input))
}

// Commit stores observed as the new snapshot of ref under a fresh snapshot
// id. A non-empty meta.ETag must match the stored snapshot.
func (p *Planner) Commit(ctx context.Context, ref Ref, observed confdiff.Value, meta Meta) (Meta, error) {
	if _, err := ref.Identifier(); err != nil {
		return Meta{}, err
	}
	_, previous, _, err := p.store.Load(ctx, ref)
	if err != nil {
		return Meta{}, fmt.Errorf("state: load %s: %w", ref, err)
	}
	pc := activity.PlanContext{
		Device:             ref.Device,
		Resource:           ref.Resource,
		PreviousSnapshotID: previous.SnapshotID,
	}

	save := cloneMeta(meta)
	save.SnapshotID = p.newID()
	save.UpdatedAt = p.clock()
	if meta.ETag != "" && meta.ETag != previous.ETag {
		err = fmt.Errorf("%w: expected %q, got %q", ErrETagMismatch, meta.ETag, previous.ETag)
	} else {
		var saved Meta
		saved, err = p.store.Save(ctx, ref, observed.Clone(), save)
		if err == nil {
			pc.SnapshotID = saved.SnapshotID
			return saved, p.emit(ctx, activity.BuildCommittedEvent(p.eventInput(ref, pc)))
		}
	}

	input := p.eventInput(ref, pc)
	input.Err = err
	return Meta{}, errors.Join(fmt.Errorf("state: commit %s: %w", ref, err), p.emit(ctx, activity.BuildRejectedEvent(input)))
}

// Delete drops the observed snapshot of ref. The store must implement
// Deleter.
func (p *Planner) Delete(ctx context.Context, ref Ref, meta Meta) (bool, error) {
	deleter, ok := p.store.(Deleter[Ref])
	if !ok {
		return false, ErrDeleteUnsupported
	}
	_, previous, _, err := p.store.Load(ctx, ref)
	if err != nil {
		return false, fmt.Errorf("state: load %s: %w", ref, err)
	}
	deleted, err := deleter.Delete(ctx, ref, meta)
	if err != nil || !deleted {
		return deleted, err
	}
	input := p.eventInput(ref, activity.PlanContext{
		Device:     ref.Device,
		Resource:   ref.Resource,
		SnapshotID: previous.SnapshotID,
	})
	return true, p.emit(ctx, activity.BuildSnapshotDeletedEvent(input))
}

func (p *Planner) reconciler(ref Ref) (*confdiff.Reconciler, error) {
	if _, err := ref.Identifier(); err != nil {
		return nil, err
	}
	reconciler, err := p.reconcilers(ref)
	if err != nil {
		return nil, fmt.Errorf("state: reconciler for %s: %w", ref, err)
	}
	if reconciler == nil {
		return nil, fmt.Errorf("state: no reconciler for %s", ref)
	}
	return reconciler, nil
}

// PlanContextFor describes result for activity events.
func PlanContextFor(result Result) activity.PlanContext {
	return activity.PlanContext{
		Device:     result.Ref.Device,
		Resource:   result.Ref.Resource,
		State:      string(result.Plan.State),
		SnapshotID: result.Meta.SnapshotID,
		Layers:     append([]string(nil), result.Layers...),
	}
}

func (p *Planner) eventInput(ref Ref, pc activity.PlanContext) activity.ReconcileEventInput {
	if pc.Device == "" {
		pc.Device = ref.Device
	}
	if pc.Resource == "" {
		pc.Resource = ref.Resource
	}
	return activity.ReconcileEventInput{
		ActorID:    p.actor.ActorID,
		UserID:     p.actor.UserID,
		TenantID:   p.actor.TenantID,
		Plan:       pc,
		OccurredAt: p.clock(),
	}
}

func (p *Planner) emit(ctx context.Context, event activity.Event) error {
	if !p.emitter.Enabled() {
		return nil
	}
	if err := p.emitter.Emit(ctx, event); err != nil {
		return fmt.Errorf("state: emit %s: %w", event.Verb, err)
	}
	return nil
}

func leafPaths(delta confdiff.Value, keys confdiff.KeySpec) []string {
	var paths []string
	for _, entry := range confdiff.Paths(delta, keys) {
		if strings.HasSuffix(entry.Path, "."+confdiff.NKeysField) {
			continue
		}
		paths = append(paths, entry.Path)
	}
	return paths
}
