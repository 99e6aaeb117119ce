// Package router provides refcounted, shared ownership of a
// cacheclient.Client keyed by persistenceId, standing in for the external
// createCacheRouter/CarbonRouterInstance registry named out of scope by the
// core lookaside protocol. Multiple LookasideRoute instances configured
// with the same flavor share one underlying Router; the last release tears
// it down.
package router

import (
	"context"
	"sync"

	"github.com/lookasidecache/lookaside/cacheclient"
)

// Factory constructs a fresh cacheclient.Client for a persistenceId not yet
// present in the registry.
type Factory func() (cacheclient.Client, error)

// Router is a refcounted handle on a shared cacheclient.Client. Callers
// hold it only to keep the underlying client alive; Client() returns the
// client itself.
type Router struct {
	persistenceID string
	reg           *Registry

	mu     sync.Mutex
	client cacheclient.Client
	refs   int
}

// Client returns the shared cacheclient.Client this Router owns.
func (r *Router) Client() cacheclient.Client {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.client
}

// Release drops this holder's reference. When the last reference is
// dropped, the underlying client is closed and removed from the registry.
func (r *Router) Release(ctx context.Context) error {
	return r.reg.release(ctx, r)
}

// Registry is the shared acquisition point. The zero value is ready to
// use; a process typically has one Registry per cache-client flavor space.
type Registry struct {
	mu       sync.Mutex
	routers  map[string]*Router
}

// Acquire returns the Router for persistenceId, creating one via factory if
// this is the first acquisition. Every call increments the refcount; each
// must be paired with a Release.
func (reg *Registry) Acquire(persistenceID string, factory Factory) (*Router, error) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	if reg.routers == nil {
		reg.routers = make(map[string]*Router)
	}
	if r, ok := reg.routers[persistenceID]; ok {
		r.mu.Lock()
		r.refs++
		r.mu.Unlock()
		return r, nil
	}
	client, err := factory()
	if err != nil {
		return nil, err
	}
	r := &Router{persistenceID: persistenceID, reg: reg, client: client, refs: 1}
	reg.routers[persistenceID] = r
	return r, nil
}

func (reg *Registry) release(ctx context.Context, r *Router) error {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	r.mu.Lock()
	r.refs--
	remaining := r.refs
	r.mu.Unlock()

	if remaining > 0 {
		return nil
	}
	delete(reg.routers, r.persistenceID)
	return r.client.Close(ctx)
}
