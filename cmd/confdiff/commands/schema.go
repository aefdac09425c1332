package commands

import (
	"github.com/goliatone/go-confdiff/schema"
	"github.com/spf13/cobra"
)

func newSchemaCmd(a *app) *cobra.Command {
	in := &inputFlags{}
	var sample string
	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Infer the JSON Schema of a resource from a sample document",
		Long: `Infer a JSON Schema from a sample document. Record lists are annotated
with x-confdiff-identity, the identity fields their records are matched by.

Examples:
  confdiff schema -r vlan --sample running.json
  confdiff schema --keys name:1 --sample lldp.yaml -o yaml`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			switch in.output {
			case formatJSON, formatYAML:
			case formatPaths:
				return errPathsUnsupported
			default:
				return checkFormat(in.output)
			}
			t, err := a.target(in)
			if err != nil {
				return err
			}
			doc, err := a.decode(t, in, sample)
			if err != nil {
				return err
			}
			opts := []schema.Option{schema.WithTitle(t.name)}
			if t.registered {
				if resource, err := a.resources.Lookup(t.name); err == nil && resource.Description != "" {
					opts = append(opts, schema.WithDescription(resource.Description))
				}
			}
			document, err := schema.Infer(doc, t.keys, opts...)
			if err != nil {
				return err
			}
			if in.output == formatYAML {
				return writeYAML(cmd.OutOrStdout(), map[string]any(document))
			}
			return writeJSON(cmd.OutOrStdout(), document)
		},
	}
	flags := cmd.Flags()
	flags.StringVarP(&in.resource, "resource", "r", "", "Resource whose identity keys apply")
	flags.StringVarP(&in.keys, "keys", "k", "", "Identity keys as field:depth[|depth], overriding the resource keys")
	flags.StringVar(&sample, "sample", "", "Sample document to infer the schema from")
	flags.StringVar(&in.selectPath, "select", "", "Dotted path of the subtree to describe")
	flags.StringVarP(&in.output, "output", "o", formatJSON, "Output format: json or yaml")
	_ = cmd.MarkFlagRequired("sample")
	return cmd
}
