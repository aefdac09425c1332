package state

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-confdiff/layering"
)

var (
	// ErrETagMismatch reports a write whose ETag precondition no longer holds.
	ErrETagMismatch = errors.New("state: etag mismatch")
	// ErrInvalidRef reports a key that cannot address a snapshot.
	ErrInvalidRef = errors.New("state: invalid ref")
	// ErrDeleteUnsupported reports a store without delete support.
	ErrDeleteUnsupported = errors.New("state: store does not support delete")
)

// Ref identifies the observed snapshot of one resource on one device.
type Ref struct {
	Device   string `json:"device"`
	Resource string `json:"resource"`
}

// Identifier returns the canonical storage key, e.g. "observed/leaf-01/vlan".
func (r Ref) Identifier() (string, error) {
	device, resource := strings.TrimSpace(r.Device), strings.TrimSpace(r.Resource)
	switch {
	case device == "":
		return "", fmt.Errorf("%w: device is required", ErrInvalidRef)
	case resource == "":
		return "", fmt.Errorf("%w: resource is required", ErrInvalidRef)
	case strings.Contains(device, "/"):
		return "", fmt.Errorf("%w: device %q must not contain '/'", ErrInvalidRef, device)
	case strings.Contains(resource, "/"):
		return "", fmt.Errorf("%w: resource %q must not contain '/'", ErrInvalidRef, resource)
	}
	return fmt.Sprintf("observed/%s/%s", device, resource), nil
}

// String renders the ref as "device/resource".
func (r Ref) String() string {
	return r.Device + "/" + r.Resource
}

// SourceKey returns the storage key of a desired fragment.
func SourceKey(source layering.Source) (string, error) {
	if source.Level == layering.LevelUnknown {
		return "", fmt.Errorf("%w: unknown level for %q", ErrInvalidRef, source.Name)
	}
	if strings.TrimSpace(source.Resource) == "" {
		return "", fmt.Errorf("%w: resource is required", ErrInvalidRef)
	}
	if source.Level != layering.LevelDefaults && strings.TrimSpace(source.Name) == "" {
		return "", fmt.Errorf("%w: %s source requires a name", ErrInvalidRef, source.Level)
	}
	return source.Identifier(), nil
}

// Meta is storage-owned metadata used for audit and concurrency control.
type Meta struct {
	SnapshotID string            `json:"snapshot_id,omitempty"`
	ETag       string            `json:"etag,omitempty"`
	UpdatedAt  time.Time         `json:"updated_at,omitempty"`
	Extra      map[string]string `json:"extra,omitempty"`
}

// Store loads and saves one snapshot per key.
//
// Save treats meta.ETag as a precondition: empty writes unconditionally,
// anything else must match the stored ETag. The returned Meta carries the
// ETag assigned to the new snapshot.
type Store[K, T any] interface {
	Load(ctx context.Context, key K) (snapshot T, meta Meta, ok bool, err error)
	Save(ctx context.Context, key K, snapshot T, meta Meta) (Meta, error)
}

// Deleter is implemented by stores that can drop a snapshot. meta.ETag is a
// precondition as for Save.
type Deleter[K any] interface {
	Delete(ctx context.Context, key K, meta Meta) (bool, error)
}

func cloneMeta(meta Meta) Meta {
	out := meta
	if meta.Extra == nil {
		return out
	}
	out.Extra = make(map[string]string, len(meta.Extra))
	for k, v := range meta.Extra {
		out.Extra[k] = v
	}
	return out
}
