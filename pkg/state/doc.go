// Package state persists configuration snapshots and plans reconciliations
// against them.
//
// Two kinds of snapshot flow through a Store:
//   - observed state, keyed by Ref{Device, Resource}: what a device reported
//     for a resource the last time it was committed;
//   - desired fragments, keyed by layering.Source: the defaults, site, group
//     and device layers merged by Resolver into a confdiff.Stack.
//
// Data flow:
//
//	Resolver -> confdiff.Stack.Merge -> Planner.Plan(observed, desired) -> confdiff.Plan
//	device applies the plan -> Planner.Commit(new observed snapshot)
//
// Stores own concurrency control. Save and Delete take the ETag a caller
// last read as a precondition and fail with ErrETagMismatch when the stored
// snapshot moved on. Snapshot ids are assigned by the Planner.
package state
