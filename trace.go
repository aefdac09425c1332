package confdiff

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Trace lists, strongest first, what each stack layer holds at one field path.
type Trace struct {
	Path   string       `json:"path"`
	Layers []Provenance `json:"layers"`
}

// Provenance is one layer's contribution to a traced path. Value is null
// when Found is false.
type Provenance struct {
	Layer      string `json:"layer"`
	Priority   int    `json:"priority"`
	SnapshotID string `json:"snapshot_id,omitempty"`
	Value      Value  `json:"value"`
	Found      bool   `json:"found"`
}

// Winner is the strongest layer that sets the path.
func (t Trace) Winner() (Provenance, bool) {
	for _, p := range t.Layers {
		if p.Found {
			return p, true
		}
	}
	return Provenance{}, false
}

// Shadowed returns the weaker layers that set the path to a value other
// than the winner's. An empty result means every layer agrees.
func (t Trace) Shadowed() []Provenance {
	winner, ok := t.Winner()
	if !ok {
		return nil
	}
	var out []Provenance
	for _, p := range t.Layers {
		if p.Found && p.Layer != winner.Layer && !p.Value.Equal(winner.Value) {
			out = append(out, p)
		}
	}
	return out
}

// String renders the trace one layer per line, marking the winner with '*'
// and unset layers with '-'.
func (t Trace) String() string {
	var b strings.Builder
	b.WriteString(t.Path)
	winner, _ := t.Winner()
	for _, p := range t.Layers {
		switch {
		case !p.Found:
			fmt.Fprintf(&b, "\n  - %s", p.Layer)
		case p.Layer == winner.Layer:
			fmt.Fprintf(&b, "\n  * %s = %s", p.Layer, p.Value)
		default:
			fmt.Fprintf(&b, "\n    %s = %s", p.Layer, p.Value)
		}
	}
	return b.String()
}

// ToJSON encodes the trace.
func (t Trace) ToJSON() ([]byte, error) {
	return json.Marshal(t)
}

// TraceFromJSON decodes a payload written by ToJSON.
func TraceFromJSON(payload []byte) (Trace, error) {
	var t Trace
	if err := json.Unmarshal(payload, &t); err != nil {
		return Trace{}, fmt.Errorf("confdiff: decode trace: %w", err)
	}
	return t, nil
}
