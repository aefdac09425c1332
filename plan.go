package confdiff

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// State names how desired state should be applied to a resource.
type State string

const (
	// StateMerged pushes desired on top of current and removes nothing.
	StateMerged State = "merged"
	// StateReplaced replaces every record desired lists.
	StateReplaced State = "replaced"
	// StateOverridden replaces the whole resource with desired.
	StateOverridden State = "overridden"
	// StateDeleted removes what desired names, or everything when desired is
	// empty.
	StateDeleted State = "deleted"
)

// ErrUnknownState reports a State outside the known set.
var ErrUnknownState = errors.New("confdiff: unknown state")

// ParseState converts a string into a State.
func ParseState(raw string) (State, error) {
	state := State(strings.ToLower(strings.TrimSpace(raw)))
	switch state {
	case StateMerged, StateReplaced, StateOverridden, StateDeleted:
		return state, nil
	case "":
		return StateMerged, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownState, raw)
	}
}

// Plan pairs the merge and removal deltas for one resource.
type Plan struct {
	State   State `json:"state"`
	Merge   Value `json:"merge"`
	Removal Value `json:"removal"`
	// RemoveAll is set when desired is empty and the whole resource has to
	// go; Removal then lists everything current holds.
	RemoveAll bool `json:"remove_all,omitempty"`
}

// Empty reports whether applying the plan changes nothing.
func (p Plan) Empty() bool {
	return p.Merge.IsEmpty() && p.Removal.IsEmpty() && !p.RemoveAll
}

// ToJSON serialises the plan for logging or transport helpers.
func (p Plan) ToJSON() ([]byte, error) {
	type alias Plan
	return json.Marshal(alias(p))
}

// PlanFromJSON deserialises a JSON payload that was previously generated via
// ToJSON.
func PlanFromJSON(payload []byte) (Plan, error) {
	type alias Plan
	var plan alias
	if err := json.Unmarshal(payload, &plan); err != nil {
		return Plan{}, err
	}
	return Plan(plan), nil
}

// Plan computes the deltas applying desired to current in state.
func (r *Reconciler) Plan(current, desired Value, state State) (Plan, error) {
	if _, err := rootShape("plan", current, desired); err != nil {
		return Plan{}, err
	}
	plan := Plan{State: state}
	var err error
	switch state {
	case StateMerged:
		if plan.Merge, err = r.Diff(current, desired); err != nil {
			return Plan{}, err
		}
		plan.Removal = emptyLike(plan.Merge)
	case StateReplaced, StateOverridden:
		if plan.Merge, err = r.Diff(current, desired); err != nil {
			return Plan{}, err
		}
		opts := ComplementOptions{IncludeUnlisted: state == StateOverridden}
		if plan.Removal, err = r.Complement(current, desired, opts); err != nil {
			return Plan{}, err
		}
	case StateDeleted:
		if marked, _ := prune(desired, pruneKeepMarkers); marked.IsEmpty() {
			if plan.Removal, err = r.eraseAll(current); err != nil {
				return Plan{}, err
			}
			plan.RemoveAll = !plan.Removal.IsEmpty()
		} else if plan.Removal, err = r.Intersect(current, desired); err != nil {
			return Plan{}, err
		}
		plan.Merge = emptyLike(plan.Removal)
	default:
		return Plan{}, fmt.Errorf("%w: %q", ErrUnknownState, state)
	}
	return plan, nil
}

func emptyLike(v Value) Value {
	if v.kind == KindSequence {
		return NewSequence()
	}
	return NewTree(nil)
}
