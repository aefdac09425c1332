package confdiff

import "testing"

func TestPaths(t *testing.T) {
	keys := KeySpec{"vlan_id": {1}, "address": {2}}
	delta := MustFromAny(map[string]any{
		"vlan": []any{
			map[string]any{"vlan_id": 10, "name": "users"},
		},
		"sntp": map[string]any{
			"servers": []any{map[string]any{"address": "10.0.0.1", "prefer": true}},
			"tags":    []any{"a", "b"},
		},
		"banner": map[string]any{},
	})
	got := Paths(delta, keys)
	want := []struct {
		path  string
		kind  Kind
		value Value
	}{
		{path: "banner", kind: KindTree, value: NewTree(nil)},
		{path: "sntp.servers[address=10.0.0.1].address", kind: KindScalar, value: String("10.0.0.1")},
		{path: "sntp.servers[address=10.0.0.1].prefer", kind: KindScalar, value: Bool(true)},
		{path: "sntp.tags", kind: KindSequence, value: MustFromAny([]any{"a", "b"})},
		{path: "vlan[vlan_id=10].name", kind: KindScalar, value: String("users")},
		{path: "vlan[vlan_id=10].vlan_id", kind: KindScalar, value: Int(10)},
	}
	if len(got) != len(want) {
		t.Fatalf("expected %d entries, got %d: %+v", len(want), len(got), got)
	}
	for i, entry := range want {
		if got[i].Path != entry.path || got[i].Kind != entry.kind.String() || !got[i].Value.Equal(entry.value) {
			t.Fatalf("entry %d: expected %s %s=%s, got %+v", i, entry.kind, entry.path, entry.value, got[i])
		}
	}
}

func TestPathsOfRootSequence(t *testing.T) {
	got := Paths(MustFromAny([]any{map[string]any{"vlan_id": 20, "name": "voice"}}), KeySpec{"vlan_id": {1}})
	if len(got) != 2 || got[0].Path != "[vlan_id=20].name" || got[1].Path != "[vlan_id=20].vlan_id" {
		t.Fatalf("unexpected paths %+v", got)
	}
	for name, root := range map[string]Value{"tree": NewTree(nil), "sequence": NewSequence()} {
		if empty := Paths(root, KeySpec{"vlan_id": {1}}); empty == nil || len(empty) != 0 {
			t.Fatalf("empty %s: expected empty non-nil slice, got %#v", name, empty)
		}
	}
}
