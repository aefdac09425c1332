package schema

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/goliatone/go-confdiff"
)

type inferCase struct {
	Name   string         `json:"name"`
	Keys   string         `json:"keys"`
	Sample confdiff.Value `json:"sample"`
	Expect map[string]any `json:"expect"`
}

func TestInferFixtures(t *testing.T) {
	t.Parallel()

	for _, tc := range loadFixture(t, "infer_cases.json") {
		tc := tc
		t.Run(tc.Name, func(t *testing.T) {
			t.Parallel()

			keys, err := confdiff.ParseKeySpec(tc.Keys)
			if err != nil {
				t.Fatalf("parse keys: %v", err)
			}
			doc, err := Infer(tc.Sample, keys)
			if err != nil {
				t.Fatalf("Infer returned error: %v", err)
			}
			assertJSONEqual(t, tc.Expect, doc)
		})
	}
}

func TestInferNull(t *testing.T) {
	doc, err := Infer(confdiff.Null(), nil)
	if err != nil {
		t.Fatalf("Infer(null) returned error: %v", err)
	}
	if doc["type"] != "null" || doc["$schema"] != Draft {
		t.Fatalf("unexpected null document %v", doc)
	}
}

func TestInferOptions(t *testing.T) {
	doc, err := Infer(confdiff.NewTree(nil), nil,
		WithTitle("lldp"),
		WithDescription("LLDP interface settings"),
		WithID("urn:confdiff:lldp"),
		nil,
	)
	if err != nil {
		t.Fatalf("Infer returned error: %v", err)
	}
	if doc["title"] != "lldp" || doc["description"] != "LLDP interface settings" || doc["$id"] != "urn:confdiff:lldp" {
		t.Fatalf("options not applied: %v", doc)
	}
}

func TestInferDoesNotShareState(t *testing.T) {
	sample := confdiff.MustFromAny([]any{map[string]any{"vlan_id": 1}})
	keys := confdiff.KeySpec{"vlan_id": {1}}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			doc, err := Infer(sample, keys)
			if err != nil {
				t.Errorf("Infer returned error: %v", err)
				return
			}
			doc["title"] = "mutated"
		}()
	}
	wg.Wait()

	doc, err := Infer(sample, keys)
	if err != nil {
		t.Fatalf("Infer returned error: %v", err)
	}
	if _, ok := doc["title"]; ok {
		t.Fatalf("documents must be independent, got %v", doc)
	}
}

func loadFixture(t *testing.T, name string) []inferCase {
	t.Helper()

	path := filepath.Join("testdata", name)
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read fixture %q: %v", path, err)
	}
	var cases []inferCase
	if err := json.Unmarshal(raw, &cases); err != nil {
		t.Fatalf("unmarshal fixture %q: %v", path, err)
	}
	return cases
}

func assertJSONEqual(t *testing.T, want map[string]any, got Document) {
	t.Helper()

	wantBytes := mustMarshal(t, want)
	gotBytes := mustMarshal(t, got)
	if !bytes.Equal(wantBytes, gotBytes) {
		t.Fatalf("schema mismatch\nwant: %s\n got: %s", wantBytes, gotBytes)
	}
}

func mustMarshal(t *testing.T, v any) []byte {
	t.Helper()
	payload, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return payload
}
