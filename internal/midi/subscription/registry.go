// Package subscription tracks which input ports are wanted.
//
// The registry is the single source of truth for membership. Each entry owns
// a cancellation channel that is closed when the entry is removed; that is
// the only stop signal a delivery worker ever receives.
package subscription

import (
	"fmt"
	"sort"
	"sync"

	"github.com/leandrodaf/midiex/sdk/contracts"
)

// Port is a descriptor that can be registered.
type Port interface {
	Key() contracts.PortKey
	String() string
}

// StartFunc opens whatever a new entry needs, typically a delivery worker.
// cancel is closed when the entry leaves the registry.
type StartFunc func(cancel <-chan struct{}) error

type entry[P Port] struct {
	port   P
	cancel chan struct{}
}

// Registry is a deduplicated set of ports kept sorted by index.
type Registry[P Port] struct {
	mu      sync.Mutex
	entries []entry[P]
}

// NewRegistry returns an empty registry.
func NewRegistry[P Port]() *Registry[P] {
	return &Registry[P]{}
}

// Add registers port and runs start while holding the registry lock, so two
// concurrent Adds of equal ports can never both start. If port is already
// present Add returns ErrAlreadySubscribed; if start fails nothing is
// registered.
func (r *Registry[P]) Add(port P, start StartFunc) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.indexOf(port.Key()) >= 0 {
		return fmt.Errorf("%w: %s", contracts.ErrAlreadySubscribed, port)
	}

	cancel := make(chan struct{})
	if start != nil {
		if err := start(cancel); err != nil {
			return err
		}
	}

	r.entries = append(r.entries, entry[P]{port: port, cancel: cancel})
	sort.SliceStable(r.entries, func(i, j int) bool {
		a, b := r.entries[i].port.Key(), r.entries[j].port.Key()
		if a.Index != b.Index {
			return a.Index < b.Index
		}
		return a.Name < b.Name
	})
	return nil
}

// Remove drops port and signals its worker. It returns the remaining ports;
// ErrNotSubscribed is returned alongside them when port was not present.
func (r *Registry[P]) Remove(port P) ([]P, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	i := r.indexOf(port.Key())
	if i < 0 {
		return r.snapshot(), fmt.Errorf("%w: %s", contracts.ErrNotSubscribed, port)
	}
	r.removeAt(i)
	return r.snapshot(), nil
}

// RemoveByIndex drops the first port whose index is index.
func (r *Registry[P]) RemoveByIndex(index int) ([]P, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, e := range r.entries {
		if e.port.Key().Index == index {
			r.removeAt(i)
			return r.snapshot(), nil
		}
	}
	return r.snapshot(), fmt.Errorf("%w: index %d", contracts.ErrNotSubscribed, index)
}

// Clear drops every port and returns the ones that were registered.
func (r *Registry[P]) Clear() []P {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := r.snapshot()
	for _, e := range r.entries {
		close(e.cancel)
	}
	r.entries = nil
	return removed
}

// Contains reports whether an equal port is registered.
func (r *Registry[P]) Contains(port P) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.indexOf(port.Key()) >= 0
}

// Snapshot returns a copy of the registered ports. Workers of listed ports
// may already be gone by the time the caller looks.
func (r *Registry[P]) Snapshot() []P {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshot()
}

// Len returns the number of registered ports.
func (r *Registry[P]) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

func (r *Registry[P]) indexOf(key contracts.PortKey) int {
	for i, e := range r.entries {
		if e.port.Key() == key {
			return i
		}
	}
	return -1
}

func (r *Registry[P]) removeAt(i int) {
	close(r.entries[i].cancel)
	r.entries = append(r.entries[:i], r.entries[i+1:]...)
}

func (r *Registry[P]) snapshot() []P {
	res := make([]P, len(r.entries))
	for i, e := range r.entries {
		res[i] = e.port
	}
	return res
}
