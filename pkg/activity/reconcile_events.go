package activity

import (
	"slices"
	"strings"
	"time"
)

// Lifecycle verbs.
const (
	VerbPlanned         = "reconcile.planned"
	VerbCommitted       = "reconcile.committed"
	VerbRejected        = "reconcile.rejected"
	VerbSnapshotDeleted = "reconcile.snapshot.deleted"
)

// Object types carried by lifecycle events.
const (
	ObjectPlan     = "reconcile.plan"
	ObjectSnapshot = "reconcile.snapshot"
)

// PlanContext identifies the resource a reconciliation touched.
type PlanContext struct {
	Device             string
	Resource           string
	State              string
	SnapshotID         string
	PreviousSnapshotID string
	Layers             []string
}

// ReconcileEventInput gathers what the planner knows about one lifecycle
// step. MergePaths and RemovalPaths are the flattened leaf paths of each
// delta.
type ReconcileEventInput struct {
	ActorID      string
	UserID       string
	TenantID     string
	ObjectID     string
	Channel      string
	Metadata     map[string]any
	Plan         PlanContext
	MergePaths   []string
	RemovalPaths []string
	RemoveAll    bool
	Err          error
	OccurredAt   time.Time
}

// BuildPlannedEvent reports a computed plan. Counts are always present, even
// for an empty plan.
func BuildPlannedEvent(input ReconcileEventInput) Event {
	return input.event(VerbPlanned, ObjectPlan)
}

// BuildCommittedEvent reports a desired snapshot stored after its plan.
func BuildCommittedEvent(input ReconcileEventInput) Event {
	return input.event(VerbCommitted, ObjectSnapshot)
}

// BuildRejectedEvent reports a commit the store refused.
func BuildRejectedEvent(input ReconcileEventInput) Event {
	return input.event(VerbRejected, ObjectSnapshot)
}

// BuildSnapshotDeletedEvent reports a snapshot removed from the store.
func BuildSnapshotDeletedEvent(input ReconcileEventInput) Event {
	return input.event(VerbSnapshotDeleted, ObjectSnapshot)
}

func (in ReconcileEventInput) event(verb, objectType string) Event {
	event := Event{
		Verb:       verb,
		ActorID:    strings.TrimSpace(in.ActorID),
		UserID:     strings.TrimSpace(in.UserID),
		TenantID:   strings.TrimSpace(in.TenantID),
		ObjectType: objectType,
		Device:     strings.TrimSpace(in.Plan.Device),
		Resource:   strings.TrimSpace(in.Plan.Resource),
		Channel:    strings.TrimSpace(in.Channel),
		Metadata:   in.metadata(verb == VerbPlanned),
		OccurredAt: in.OccurredAt,
	}
	event.ObjectID = in.objectID(event, objectType)
	return event
}

func (in ReconcileEventInput) metadata(withCounts bool) map[string]any {
	meta := cloneMetadata(in.Metadata)
	put := func(key string, value any) {
		if meta == nil {
			meta = map[string]any{}
		}
		meta[key] = value
	}
	putString := func(key, value string) {
		if value != "" {
			put(key, value)
		}
	}
	putList := func(key string, values []string) {
		if len(values) > 0 {
			put(key, slices.Clone(values))
		}
	}

	putString("state", in.Plan.State)
	putString("snapshot_id", in.Plan.SnapshotID)
	putString("previous_snapshot_id", in.Plan.PreviousSnapshotID)
	putList("layers", in.Plan.Layers)
	if withCounts || len(in.MergePaths)+len(in.RemovalPaths) > 0 {
		put("merge_count", len(in.MergePaths))
		put("removal_count", len(in.RemovalPaths))
	}
	putList("merge_paths", in.MergePaths)
	putList("removal_paths", in.RemovalPaths)
	if in.RemoveAll {
		put("remove_all", true)
	}
	if in.Err != nil {
		put("error", in.Err.Error())
	}
	return meta
}

// objectID falls back from the explicit id to the event ref, then the
// snapshot id, then the object type.
func (in ReconcileEventInput) objectID(event Event, objectType string) string {
	for _, candidate := range []string{in.ObjectID, event.Ref(), in.Plan.SnapshotID} {
		if id := strings.TrimSpace(candidate); id != "" {
			return id
		}
	}
	return objectType
}
