package commands

import (
	"github.com/goliatone/go-confdiff"
	"github.com/spf13/cobra"
)

func newDiffCmd(a *app) *cobra.Command {
	in := &inputFlags{}
	cmd := &cobra.Command{
		Use:   "diff",
		Short: "Print the merge delta that brings current to desired",
		Long: `Print what has to be merged into the current configuration to reach the
desired one: new records, changed fields and missing set elements.

Examples:
  # VLANs to create or change on a switch
  confdiff diff -r vlan --current running.json --desired intended.yaml

  # Site defaults overridden by a device document
  confdiff diff -r sntp --current running.json \
    --desired site:dc1=sntp-dc1.yaml --desired device:leaf-01=sntp-leaf.yaml`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runDelta(cmd, in, func(r *confdiff.Reconciler, current, desired confdiff.Value) (confdiff.Value, error) {
				return r.Diff(current, desired)
			}, "+ ")
		},
	}
	in.register(cmd)
	return cmd
}

func newIntersectCmd(a *app) *cobra.Command {
	in := &inputFlags{}
	var complement, unlisted bool
	cmd := &cobra.Command{
		Use:   "intersect",
		Short: "Print the removal delta of current and desired",
		Long: `Print the part of the current configuration that desired mentions, each
record annotated with n_keys: 1 removes the whole record, more strips the
listed fields. With --complement, print what a replace would delete instead:
the fields desired no longer names.

Examples:
  # Records to delete before applying the desired VLANs
  confdiff intersect -r vlan --current running.json --desired intended.yaml

  # Keep VLAN 1 whatever the desired state says
  confdiff intersect -r vlan --current running.json --desired intended.yaml \
    --complement --unlisted --guard 'keep_default=vlan_id == 1'`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runDelta(cmd, in, func(r *confdiff.Reconciler, current, desired confdiff.Value) (confdiff.Value, error) {
				if complement {
					return r.Complement(current, desired, confdiff.ComplementOptions{IncludeUnlisted: unlisted})
				}
				return r.Intersect(current, desired)
			}, "- ")
		},
	}
	in.register(cmd)
	cmd.Flags().BoolVar(&complement, "complement", false, "Print the fields a replace would delete")
	cmd.Flags().BoolVar(&unlisted, "unlisted", false, "With --complement, also delete records desired does not list")
	return cmd
}

type deltaFunc func(r *confdiff.Reconciler, current, desired confdiff.Value) (confdiff.Value, error)

func (a *app) runDelta(cmd *cobra.Command, in *inputFlags, compute deltaFunc, marker string) error {
	if err := checkFormat(in.output); err != nil {
		return err
	}
	t, err := a.target(in)
	if err != nil {
		return err
	}
	current, desired, err := a.load(&t, in)
	if err != nil {
		return err
	}
	opts, err := a.reconcilerOptions(in, t.name)
	if err != nil {
		return err
	}
	delta, err := compute(confdiff.New(t.keys, opts...), current, desired)
	if err != nil {
		return err
	}
	if err := writeDelta(cmd.OutOrStdout(), in.output, delta, t.keys, marker); err != nil {
		return err
	}
	a.changed = in.exitCode && !delta.IsEmpty()
	return nil
}
