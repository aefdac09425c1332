package layering

import (
	"fmt"
	"slices"
	"strings"
)

// Level identifies where a desired-state fragment comes from. Higher levels
// override lower levels when layering.
type Level int

const (
	// LevelUnknown guards against misconfiguration so call sites can detect
	// missing metadata.
	LevelUnknown Level = iota
	// LevelDefaults represents fleet-wide defaults, the weakest layer.
	LevelDefaults
	// LevelSite represents overrides shared by the devices of a site.
	LevelSite
	// LevelGroup represents overrides for a device role or group.
	LevelGroup
	// LevelDevice represents the strongest, per-device layer.
	LevelDevice
)

func (l Level) String() string {
	switch l {
	case LevelDefaults:
		return "defaults"
	case LevelSite:
		return "site"
	case LevelGroup:
		return "group"
	case LevelDevice:
		return "device"
	default:
		return "unknown"
	}
}

// Priority maps the level onto a stack priority. Unknown levels sort last.
func (l Level) Priority() int {
	if l == LevelUnknown {
		return 0
	}
	return int(l) * 100
}

// ParseLevel converts a string representation into the corresponding Level.
// Returns LevelUnknown for unrecognised values.
func ParseLevel(value string) Level {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "defaults", "default", "global":
		return LevelDefaults
	case "site":
		return LevelSite
	case "group", "role":
		return LevelGroup
	case "device", "host":
		return LevelDevice
	default:
		return LevelUnknown
	}
}

// Source names a desired-state fragment within a layering chain.
type Source struct {
	Resource string // resource the fragment configures (e.g., "vlan")
	Level    Level
	Name     string // site, group or device name; empty for defaults
}

// Identifier returns a stable slug usable as a storage or layer key
// (e.g., "device/leaf-01/vlan").
func (s Source) Identifier() string {
	if s.Level == LevelDefaults || s.Name == "" {
		return fmt.Sprintf("%s/%s", s.Level, s.Resource)
	}
	return fmt.Sprintf("%s/%s/%s", s.Level, s.Name, s.Resource)
}

// Chain describes the ordered layering sequence from strongest to weakest.
type Chain struct {
	ordered []Source
}

// NewChain constructs a chain, dropping unknown levels and duplicate
// identifiers. Stronger levels come first; peers keep their relative order.
func NewChain(sources ...Source) Chain {
	filtered := make([]Source, 0, len(sources))
	seen := map[string]struct{}{}

	for _, source := range sources {
		if source.Level == LevelUnknown {
			continue
		}
		id := source.Identifier()
		if _, exists := seen[id]; exists {
			continue
		}
		seen[id] = struct{}{}
		filtered = append(filtered, source)
	}

	slices.SortStableFunc(filtered, func(a, b Source) int {
		if a.Level == b.Level {
			return 0
		}
		if a.Level > b.Level {
			return -1
		}
		return 1
	})

	return Chain{ordered: filtered}
}

// Ordered returns the layering sequence from strongest (index 0) to weakest.
func (c Chain) Ordered() []Source {
	out := make([]Source, len(c.ordered))
	copy(out, c.ordered)
	return out
}

// Strongest returns the first source in the chain (zero source if empty).
func (c Chain) Strongest() Source {
	if len(c.ordered) == 0 {
		return Source{}
	}
	return c.ordered[0]
}

// Weakest returns the final source in the chain (zero source if empty).
func (c Chain) Weakest() Source {
	if len(c.ordered) == 0 {
		return Source{}
	}
	return c.ordered[len(c.ordered)-1]
}
