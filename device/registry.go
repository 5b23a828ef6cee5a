package device

import (
	"cmp"
	"slices"

	"github.com/puzpuzpuz/xsync/v3"

	"github.com/arloliu/go-onewire/bus"
)

// Registry caches one Container per address on an adapter.
type Registry struct {
	adapter    bus.Adapter
	opts       []Option
	containers *xsync.MapOf[bus.Address, *Container]
}

// NewRegistry creates a registry whose containers are built with opts.
func NewRegistry(a bus.Adapter, opts ...Option) *Registry {
	return &Registry{
		adapter:    a,
		opts:       opts,
		containers: xsync.NewMapOf[bus.Address, *Container](),
	}
}

// Get returns the container of addr, creating it on first use.
func (r *Registry) Get(addr bus.Address) (*Container, error) {
	if c, ok := r.containers.Load(addr); ok {
		return c, nil
	}

	c, err := New(r.adapter, addr, r.opts...)
	if err != nil {
		return nil, err
	}
	actual, _ := r.containers.LoadOrStore(addr, c)

	return actual, nil
}

// Remove drops the container of addr and reports whether it was cached.
func (r *Registry) Remove(addr bus.Address) bool {
	_, ok := r.containers.LoadAndDelete(addr)
	return ok
}

// Containers returns the cached containers ordered by address.
func (r *Registry) Containers() []*Container {
	out := make([]*Container, 0, r.containers.Size())
	r.containers.Range(func(_ bus.Address, c *Container) bool {
		out = append(out, c)
		return true
	})
	slices.SortFunc(out, func(a, b *Container) int {
		return cmp.Compare(a.Address().Uint64(), b.Address().Uint64())
	})

	return out
}
