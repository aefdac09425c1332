// Package resources names the device resources the module knows how to
// reconcile, with the identity keys and root shape of each.
package resources

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/goliatone/go-confdiff"
	"github.com/goliatone/go-confdiff/pkg/state"
)

var (
	// ErrUnknownResource reports a name missing from the registry.
	ErrUnknownResource = errors.New("resources: unknown resource")
	// ErrDuplicateResource reports a second registration for one name.
	ErrDuplicateResource = errors.New("resources: resource already registered")
)

// Resource describes one configurable resource.
type Resource struct {
	Name        string
	Description string
	Keys        confdiff.KeySpec
	// Shape is the root kind of the resource document, tree or sequence.
	Shape confdiff.Kind
}

// Validate checks the name, shape and key spec.
func (r Resource) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return errors.New("resources: name is required")
	}
	if r.Shape != confdiff.KindTree && r.Shape != confdiff.KindSequence {
		return fmt.Errorf("resources: %s: shape must be tree or sequence, got %s", r.Name, r.Shape)
	}
	if err := r.Keys.Validate(); err != nil {
		return fmt.Errorf("resources: %s: %w", r.Name, err)
	}
	return nil
}

// Empty returns the empty document of the resource shape.
func (r Resource) Empty() confdiff.Value {
	if r.Shape == confdiff.KindSequence {
		return confdiff.NewSequence()
	}
	return confdiff.NewTree(nil)
}

// Reconciler builds a reconciler keyed for the resource.
func (r Resource) Reconciler(opts ...confdiff.Option) *confdiff.Reconciler {
	return confdiff.New(r.Keys, opts...)
}

// Registry maps resource names to resources. The zero value is empty and
// ready to use.
type Registry struct {
	mu        sync.RWMutex
	resources map[string]Resource
}

// NewRegistry returns a registry holding resources.
func NewRegistry(resources ...Resource) (*Registry, error) {
	r := &Registry{}
	for _, resource := range resources {
		if err := r.Register(resource); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds resource. Names are case-insensitive.
func (r *Registry) Register(resource Resource) error {
	if err := resource.Validate(); err != nil {
		return err
	}
	name := normalizeName(resource.Name)
	resource.Name = name
	resource.Keys = resource.Keys.Clone()

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.resources == nil {
		r.resources = map[string]Resource{}
	}
	if _, ok := r.resources[name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateResource, name)
	}
	r.resources[name] = resource
	return nil
}

// Lookup returns the resource registered under name.
func (r *Registry) Lookup(name string) (Resource, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	resource, ok := r.resources[normalizeName(name)]
	if !ok {
		return Resource{}, fmt.Errorf("%w: %q", ErrUnknownResource, name)
	}
	resource.Keys = resource.Keys.Clone()
	return resource, nil
}

// Names returns the registered names in order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.resources))
	for name := range r.resources {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// All returns every resource ordered by name.
func (r *Registry) All() []Resource {
	names := r.Names()
	out := make([]Resource, 0, len(names))
	for _, name := range names {
		if resource, err := r.Lookup(name); err == nil {
			out = append(out, resource)
		}
	}
	return out
}

// Reconcilers resolves a planner ref to a reconciler for its resource.
// Reconcilers are built once per resource and shared across refs.
func (r *Registry) Reconcilers(opts ...confdiff.Option) state.ReconcilerFunc {
	var (
		mu    sync.Mutex
		built = map[string]*confdiff.Reconciler{}
	)
	return func(ref state.Ref) (*confdiff.Reconciler, error) {
		resource, err := r.Lookup(ref.Resource)
		if err != nil {
			return nil, err
		}
		mu.Lock()
		defer mu.Unlock()
		if reconciler, ok := built[resource.Name]; ok {
			return reconciler, nil
		}
		reconciler := resource.Reconciler(opts...)
		built[resource.Name] = reconciler
		return reconciler, nil
	}
}

func normalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func mustKeys(raw string) confdiff.KeySpec {
	keys, err := confdiff.ParseKeySpec(raw)
	if err != nil {
		panic(err)
	}
	return keys
}

// Builtin lists the device resources shipped with the module.
func Builtin() []Resource {
	return []Resource{
		{Name: "vlan", Description: "802.1Q VLANs and their tagged interfaces", Keys: mustKeys("vlan_id:1,name:3"), Shape: confdiff.KindSequence},
		{Name: "l2_interface", Description: "switchport settings per interface", Keys: mustKeys("interface_name:1,traffic:3"), Shape: confdiff.KindSequence},
		{Name: "l3_interface", Description: "routed interfaces and their addresses", Keys: mustKeys("name:1,ip:5"), Shape: confdiff.KindSequence},
		{Name: "linkagg", Description: "link aggregation groups", Keys: mustKeys("lag_id:1,name:3"), Shape: confdiff.KindTree},
		{Name: "lldp", Description: "LLDP interface settings", Keys: mustKeys("name:1"), Shape: confdiff.KindTree},
		{Name: "sntp", Description: "SNTP servers and authentication keys", Keys: mustKeys("id:1,address:1"), Shape: confdiff.KindTree},
		{Name: "twamp", Description: "TWAMP reflector clients and sender connections", Keys: mustKeys("address:3,network:3,id:2|4"), Shape: confdiff.KindTree},
		{Name: "user", Description: "local users and their aliases", Keys: mustKeys("name:0|1"), Shape: confdiff.KindSequence},
	}
}

var (
	defaultOnce     sync.Once
	defaultRegistry *Registry
)

// Default returns the process-wide registry seeded with Builtin.
func Default() *Registry {
	defaultOnce.Do(func() {
		registry, err := NewRegistry(Builtin()...)
		if err != nil {
			panic(err)
		}
		defaultRegistry = registry
	})
	return defaultRegistry
}

// Lookup finds name in the default registry.
func Lookup(name string) (Resource, error) {
	return Default().Lookup(name)
}

// Names lists the default registry.
func Names() []string {
	return Default().Names()
}

// Register adds resource to the default registry.
func Register(resource Resource) error {
	return Default().Register(resource)
}
