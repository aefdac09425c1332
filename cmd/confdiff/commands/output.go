package commands

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/goliatone/go-confdiff"
	"gopkg.in/yaml.v3"
)

const (
	formatJSON  = "json"
	formatYAML  = "yaml"
	formatPaths = "paths"
)

var errPathsUnsupported = errors.New("output format paths is not supported here: want json or yaml")

func checkFormat(format string) error {
	switch format {
	case formatJSON, formatYAML, formatPaths:
		return nil
	default:
		return fmt.Errorf("unknown output format %q: want json, yaml or paths", format)
	}
}

func writeJSON(w io.Writer, v any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

func writeYAML(w io.Writer, v any) error {
	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)
	if err := encoder.Encode(v); err != nil {
		return err
	}
	return encoder.Close()
}

// writeDelta prints one delta. The paths format lists one leaf per line,
// each prefixed with marker.
func writeDelta(w io.Writer, format string, delta confdiff.Value, keys confdiff.KeySpec, marker string) error {
	switch format {
	case formatYAML:
		return writeYAML(w, delta.Any())
	case formatPaths:
		return writePaths(w, delta, keys, marker)
	default:
		return writeJSON(w, delta)
	}
}

func writePaths(w io.Writer, delta confdiff.Value, keys confdiff.KeySpec, marker string) error {
	for _, entry := range confdiff.Paths(delta, keys) {
		if _, err := fmt.Fprintf(w, "%s%s = %s\n", marker, entry.Path, entry.Value); err != nil {
			return err
		}
	}
	return nil
}

func writePlan(w io.Writer, format string, plan confdiff.Plan, keys confdiff.KeySpec) error {
	switch format {
	case formatYAML:
		return writeYAML(w, planDocument(plan))
	case formatPaths:
		if plan.RemoveAll {
			if _, err := fmt.Fprintln(w, "- *"); err != nil {
				return err
			}
		}
		if err := writePaths(w, plan.Removal, keys, "- "); err != nil {
			return err
		}
		return writePaths(w, plan.Merge, keys, "+ ")
	default:
		return writeJSON(w, plan)
	}
}

func planDocument(plan confdiff.Plan) map[string]any {
	doc := map[string]any{
		"state":   string(plan.State),
		"merge":   plan.Merge.Any(),
		"removal": plan.Removal.Any(),
	}
	if plan.RemoveAll {
		doc["remove_all"] = true
	}
	return doc
}
