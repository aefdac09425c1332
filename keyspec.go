package confdiff

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// ErrInvalidKeySpec reports a malformed identity key specification.
var ErrInvalidKeySpec = errors.New("confdiff: invalid key spec")

// KeySpec maps identity field names to the nesting depths at which the field
// identifies records. Depth is counted from the root tree (depth 0); the
// records of a root sequence sit at depth 1. Several fields sharing a depth
// form a composite identity.
type KeySpec map[string][]int

// Clone returns a deep copy of k.
func (k KeySpec) Clone() KeySpec {
	if k == nil {
		return nil
	}
	out := make(KeySpec, len(k))
	for field, depths := range k {
		out[field] = append([]int(nil), depths...)
	}
	return out
}

// Validate checks that every field is named and every depth is non-negative.
func (k KeySpec) Validate() error {
	for field, depths := range k {
		if strings.TrimSpace(field) == "" {
			return fmt.Errorf("%w: empty field name", ErrInvalidKeySpec)
		}
		if len(depths) == 0 {
			return fmt.Errorf("%w: field %q has no depths", ErrInvalidKeySpec, field)
		}
		for _, depth := range depths {
			if depth < 0 {
				return fmt.Errorf("%w: field %q has negative depth %d", ErrInvalidKeySpec, field, depth)
			}
		}
	}
	return nil
}

// FieldsAt returns the identity fields declared for depth, sorted.
func (k KeySpec) FieldsAt(depth int) []string {
	var fields []string
	for field, depths := range k {
		for _, d := range depths {
			if d == depth {
				fields = append(fields, field)
				break
			}
		}
	}
	sort.Strings(fields)
	return fields
}

// IsIdentity reports whether field is declared as an identity at depth.
func (k KeySpec) IsIdentity(field string, depth int) bool {
	for _, d := range k[field] {
		if d == depth {
			return true
		}
	}
	return false
}

// String renders k in the format accepted by ParseKeySpec.
func (k KeySpec) String() string {
	fields := make([]string, 0, len(k))
	for field := range k {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	parts := make([]string, 0, len(fields))
	for _, field := range fields {
		depths := append([]int(nil), k[field]...)
		sort.Ints(depths)
		rendered := make([]string, len(depths))
		for i, depth := range depths {
			rendered[i] = strconv.Itoa(depth)
		}
		parts = append(parts, field+":"+strings.Join(rendered, "|"))
	}
	return strings.Join(parts, ",")
}

// ParseKeySpec parses "field:depth|depth,field:depth", for example
// "vlan_id:1,name:3" or "id:2|4".
func ParseKeySpec(raw string) (KeySpec, error) {
	spec := KeySpec{}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return spec, nil
	}
	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		field, depthList, ok := strings.Cut(entry, ":")
		field = strings.TrimSpace(field)
		if !ok || field == "" {
			return nil, fmt.Errorf("%w: entry %q must be field:depth", ErrInvalidKeySpec, entry)
		}
		for _, rawDepth := range strings.Split(depthList, "|") {
			depth, err := strconv.Atoi(strings.TrimSpace(rawDepth))
			if err != nil {
				return nil, fmt.Errorf("%w: field %q depth %q: %v", ErrInvalidKeySpec, field, rawDepth, err)
			}
			if !spec.IsIdentity(field, depth) {
				spec[field] = append(spec[field], depth)
			}
		}
	}
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	return spec, nil
}
