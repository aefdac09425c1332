// Package activity fans reconciliation lifecycle events out to hooks such as
// audit sinks, loggers and metric collectors.
package activity

import (
	"maps"
	"strings"
	"time"
)

// Event is one reconciliation occurrence. Identity fields are plain strings;
// sinks decide how to parse them.
type Event struct {
	Verb       string
	ActorID    string
	UserID     string
	TenantID   string
	ObjectType string
	ObjectID   string
	Device     string
	Resource   string
	Channel    string
	Metadata   map[string]any
	OccurredAt time.Time
}

// Complete reports whether the event names a verb and an object.
func (e Event) Complete() bool {
	return e.Verb != "" && e.ObjectType != "" && e.ObjectID != ""
}

// Ref returns "device/resource" for events bound to a device, or the bare
// resource otherwise.
func (e Event) Ref() string {
	switch {
	case e.Device != "" && e.Resource != "":
		return e.Device + "/" + e.Resource
	default:
		return e.Resource
	}
}

// NormalizeEvent returns a trimmed copy of event with its metadata cloned and
// OccurredAt stamped in UTC.
func NormalizeEvent(event Event) Event {
	out := event
	out.Verb = strings.TrimSpace(out.Verb)
	out.ActorID = strings.TrimSpace(out.ActorID)
	out.UserID = strings.TrimSpace(out.UserID)
	out.TenantID = strings.TrimSpace(out.TenantID)
	out.ObjectType = strings.TrimSpace(out.ObjectType)
	out.ObjectID = strings.TrimSpace(out.ObjectID)
	out.Device = strings.TrimSpace(out.Device)
	out.Resource = strings.TrimSpace(out.Resource)
	out.Channel = strings.TrimSpace(out.Channel)
	out.Metadata = cloneMetadata(event.Metadata)
	if out.OccurredAt.IsZero() {
		out.OccurredAt = time.Now()
	}
	out.OccurredAt = out.OccurredAt.UTC()
	return out
}

func cloneMetadata(src map[string]any) map[string]any {
	if len(src) == 0 {
		return nil
	}
	return maps.Clone(src)
}
