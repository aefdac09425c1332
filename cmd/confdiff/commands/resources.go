package commands

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

type resourceView struct {
	Name        string `json:"name" yaml:"name"`
	Shape       string `json:"shape" yaml:"shape"`
	Keys        string `json:"keys" yaml:"keys"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
}

func newResourcesCmd(a *app) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "resources",
		Short: "List the resources and their identity keys",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var views []resourceView
			for _, resource := range a.resources.All() {
				views = append(views, resourceView{
					Name:        resource.Name,
					Shape:       resource.Shape.String(),
					Keys:        resource.Keys.String(),
					Description: resource.Description,
				})
			}
			w := cmd.OutOrStdout()
			switch output {
			case formatJSON:
				return writeJSON(w, views)
			case formatYAML:
				return writeYAML(w, views)
			case "", "table":
				tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
				fmt.Fprintln(tw, "NAME\tSHAPE\tKEYS\tDESCRIPTION")
				for _, view := range views {
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", view.Name, view.Shape, view.Keys, view.Description)
				}
				return tw.Flush()
			default:
				return fmt.Errorf("unknown output format %q: want table, json or yaml", output)
			}
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "table", "Output format: table, json or yaml")
	return cmd
}
