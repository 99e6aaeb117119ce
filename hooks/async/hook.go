// Package asynchook wraps a lookaside.Hooks implementation so that calls
// from the route's hot path never block on whatever the inner hooks do
// (log, emit a metric, etc). Events are queued to a small worker pool and
// dropped if the queue is full rather than applying backpressure to the
// cache round-trip.
//
// usage:
//
//	raw := hookslog.New(slog.Default(), hookslog.Options{HotMissRetryEvery: 10})
//	hooks := asynchook.New(raw, 1, 1000) // 1 worker; queue 1000 events
//	defer hooks.Close()
//
//	route, _ := lookaside.New(lookaside.Config[Req, Rep]{
//	    ...
//	    Hooks: hooks,
//	})
package asynchook

import (
	"sync"

	"github.com/lookasidecache/lookaside"
)

type Hooks struct {
	inner lookaside.Hooks
	q     chan func()
	wg    sync.WaitGroup
	once  sync.Once
}

var _ lookaside.Hooks = (*Hooks)(nil)

func New(inner lookaside.Hooks, workers, qlen int) *Hooks {
	if workers <= 0 {
		workers = 1
	}
	if qlen <= 0 {
		qlen = 1024
	}

	h := &Hooks{inner: inner, q: make(chan func(), qlen)}
	h.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer h.wg.Done()
			for f := range h.q {
				f()
			}
		}()
	}
	return h
}

func (h *Hooks) Close() {
	h.once.Do(func() {
		close(h.q)
		h.wg.Wait()
	})
}

func (h *Hooks) try(f func()) {
	select {
	case h.q <- f:
	default: // drop
	}
}

func (h *Hooks) CacheHit(key string) { h.try(func() { h.inner.CacheHit(key) }) }
func (h *Hooks) CacheMiss(key, source string) {
	h.try(func() { h.inner.CacheMiss(key, source) })
}
func (h *Hooks) HotMissRetry(key string, attempt int, wait string) {
	h.try(func() { h.inner.HotMissRetry(key, attempt, wait) })
}
func (h *Hooks) LeaseExhausted(key string) { h.try(func() { h.inner.LeaseExhausted(key) }) }
func (h *Hooks) SelfHealSingle(key, reason string) {
	h.try(func() { h.inner.SelfHealSingle(key, reason) })
}
func (h *Hooks) WriteRejected(key, reason string) {
	h.try(func() { h.inner.WriteRejected(key, reason) })
}
func (h *Hooks) AcquireFailed(flavor string, err error) {
	h.try(func() { h.inner.AcquireFailed(flavor, err) })
}
