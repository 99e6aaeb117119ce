package lookaside

import (
	"context"

	"github.com/lookasidecache/lookaside/cacheclient"
	"github.com/lookasidecache/lookaside/internal/wire"
)

// dispatchWrite serializes reply on the main stack and submits the cache
// write as a detached task. Route never awaits it: the write may never be
// observed in the cache (client errors, eviction races, lease
// invalidation) — that is acceptable, correctness does not depend on any
// particular write landing.
func (r *LookasideRoute[Req, Rep]) dispatchWrite(key string, reply Rep, leaseToken int64) {
	var payload []byte
	var encErr error

	r.sched.RunMainStack(func() {
		raw, err := r.codec.Encode(reply)
		if err != nil {
			encErr = err
			return
		}
		payload = wire.Encode(raw)
	})
	if encErr != nil {
		r.logger.Warn("lookaside: encode for cache write failed", Fields{"key": key, "err": encErr.Error()})
		return
	}

	client := r.client
	ttl := r.ttl
	useLease := r.lease.Enabled && leaseToken != 0 && leaseToken != hotMissSentinel

	r.sched.Go(func() {
		ctx := context.Background()
		var res cacheclient.Result
		var err error
		if useLease {
			res, err = client.LeaseSet(ctx, key, payload, ttl, leaseToken)
		} else {
			res, err = client.Set(ctx, key, payload, ttl)
		}
		if err != nil {
			r.hooks.WriteRejected(key, "transport_error")
			return
		}
		if !res.Stored {
			r.hooks.WriteRejected(key, "rejected")
		}
	})
}
