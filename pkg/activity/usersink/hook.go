// Package usersink forwards reconciliation events to a go-users activity sink.
package usersink

import (
	"context"
	"maps"
	"strings"

	"github.com/goliatone/go-confdiff/pkg/activity"
	usertypes "github.com/goliatone/go-users/pkg/types"
	"github.com/google/uuid"
)

// Hook writes every complete event to Sink.
type Hook struct {
	Sink usertypes.ActivitySink
}

var _ activity.ActivityHook = Hook{}

// Notify forwards the record built from event. Incomplete events are skipped.
func (h Hook) Notify(ctx context.Context, event activity.Event) error {
	if h.Sink == nil {
		return nil
	}
	record, ok := Record(event)
	if !ok {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	return h.Sink.Log(ctx, record)
}

// Record maps event onto an ActivityRecord. The device and resource land in
// Data. Identity fields that are not UUIDs become uuid.Nil and keep their raw
// value in Data under actor_id, user_id or tenant_id.
func Record(event activity.Event) (usertypes.ActivityRecord, bool) {
	event = activity.NormalizeEvent(event)
	if !event.Complete() {
		return usertypes.ActivityRecord{}, false
	}

	data := maps.Clone(event.Metadata)
	if data == nil {
		data = map[string]any{}
	}
	if event.Device != "" {
		data["device"] = event.Device
	}
	if event.Resource != "" {
		data["resource"] = event.Resource
	}

	record := usertypes.ActivityRecord{
		ActorID:    identity(data, "actor_id", event.ActorID),
		UserID:     identity(data, "user_id", event.UserID),
		TenantID:   identity(data, "tenant_id", event.TenantID),
		Verb:       event.Verb,
		ObjectType: event.ObjectType,
		ObjectID:   event.ObjectID,
		Channel:    event.Channel,
		OccurredAt: event.OccurredAt,
	}
	if len(data) > 0 {
		record.Data = data
	}
	return record, true
}

func identity(data map[string]any, field, raw string) uuid.UUID {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return uuid.Nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		data[field] = raw
		return uuid.Nil
	}
	return id
}
