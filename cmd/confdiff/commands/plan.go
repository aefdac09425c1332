package commands

import (
	"fmt"

	"github.com/goliatone/go-confdiff"
	"github.com/goliatone/go-confdiff/pkg/state"
	"github.com/goliatone/go-confdiff/pkg/zaplog"
	"github.com/spf13/cobra"
)

type planFlags struct {
	state  string
	device string
	actor  string
}

func newPlanCmd(a *app) *cobra.Command {
	in := &inputFlags{}
	pf := &planFlags{}
	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Print the merge and removal deltas for a target state",
		Long: `Plan how to move a device from its current configuration to the desired one.

States:
  merged      merge desired over current and remove nothing
  replaced    also delete fields of listed records that desired drops
  overridden  also delete records desired does not list
  deleted     delete what desired lists, or everything when desired is empty

Examples:
  confdiff plan -r vlan --state overridden --current running.json --desired intended.yaml
  confdiff plan -r lldp --state deleted --current running.json --desired empty.json -o paths`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runPlan(cmd, in, pf)
		},
	}
	in.register(cmd)
	cmd.Flags().StringVarP(&pf.state, "state", "s", string(confdiff.StateMerged), "Target state: merged, replaced, overridden or deleted")
	cmd.Flags().StringVar(&pf.device, "device", "local", "Device name reported in activity events")
	cmd.Flags().StringVar(&pf.actor, "actor", "", "Actor id reported in activity events")
	return cmd
}

func (a *app) runPlan(cmd *cobra.Command, in *inputFlags, pf *planFlags) error {
	if err := checkFormat(in.output); err != nil {
		return err
	}
	st, err := confdiff.ParseState(pf.state)
	if err != nil {
		return err
	}
	t, err := a.target(in)
	if err != nil {
		return err
	}
	current, err := a.loadCurrent(&t, in)
	if err != nil {
		return err
	}
	stack, err := a.desiredStack(t, in)
	if err != nil {
		return err
	}
	opts, err := a.reconcilerOptions(in, t.name)
	if err != nil {
		return err
	}

	reconcilers := state.Static(confdiff.New(t.keys, opts...))
	if t.registered {
		reconcilers = a.resources.Reconcilers(opts...)
	}
	store := state.NewObservedStore()
	planner, err := state.NewPlanner(store, reconcilers,
		state.WithActivityHooks(zaplog.Activity(a.logger), a.collector.Hook()),
		state.WithActor(state.Actor{ActorID: pf.actor}),
	)
	if err != nil {
		return err
	}

	ref := state.Ref{Device: pf.device, Resource: t.name}
	ctx := cmd.Context()
	if _, err := store.Save(ctx, ref, current, state.Meta{SnapshotID: in.current}); err != nil {
		return fmt.Errorf("seed current snapshot: %w", err)
	}
	result, err := planner.PlanStack(ctx, ref, stack, st)
	if err != nil {
		return err
	}
	if err := writePlan(cmd.OutOrStdout(), in.output, result.Plan, t.keys); err != nil {
		return err
	}
	a.changed = in.exitCode && !result.Plan.Empty()
	return nil
}
