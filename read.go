package lookaside

import (
	"context"

	"github.com/lookasidecache/lookaside/cacheclient"
	"github.com/lookasidecache/lookaside/internal/wire"
)

// read dispatches to the plain or lease read path depending on whether
// leases are enabled. It returns the decoded reply and true on a hit. On a
// miss, *leaseToken is set to the token a subsequent LeaseSet may use (0 if
// leases are disabled or no token was won).
func (r *LookasideRoute[Req, Rep]) read(ctx context.Context, key string, leaseToken *int64) (Rep, bool) {
	if r.lease.Enabled {
		return r.leaseRead(ctx, key, leaseToken)
	}
	return r.plainRead(ctx, key)
}

func (r *LookasideRoute[Req, Rep]) plainRead(ctx context.Context, key string) (Rep, bool) {
	var zero Rep
	res, err := r.client.Get(ctx, key)
	if err != nil {
		r.logger.Warn("lookaside: cache get failed", Fields{"key": key, "err": err.Error()})
		r.hooks.CacheMiss(key, "plain")
		return zero, false
	}
	if res.Class != cacheclient.Hit {
		r.hooks.CacheMiss(key, "plain")
		return zero, false
	}
	return r.decode(ctx, key, res.Payload)
}

// leaseRead runs the lease-based miss-coordination protocol: retry with
// exponential backoff, bounded by maxWait, while the cache reports the
// hot-miss sentinel; stop and hand back a write token on any other miss.
func (r *LookasideRoute[Req, Rep]) leaseRead(ctx context.Context, key string, leaseToken *int64) (Rep, bool) {
	var zero Rep
	wait := r.lease.InitialWait

	for attempt := 0; attempt <= r.lease.NumRetries; attempt++ {
		if attempt > 0 {
			r.hooks.HotMissRetry(key, attempt, wait.String())
			r.sleeper.Sleep(ctx, wait)
			wait *= 2
			if wait > r.lease.MaxWait {
				wait = r.lease.MaxWait
			}
		}

		res, err := r.client.LeaseGet(ctx, key)
		if err != nil {
			r.logger.Warn("lookaside: cache lease_get failed", Fields{"key": key, "err": err.Error()})
			r.hooks.CacheMiss(key, "lease")
			return zero, false
		}

		switch res.Class {
		case cacheclient.Hit:
			return r.decode(ctx, key, res.Payload)
		case cacheclient.Miss:
			if res.LeaseToken == hotMissSentinel {
				continue
			}
			*leaseToken = res.LeaseToken
			r.hooks.CacheMiss(key, "lease")
			return zero, false
		default:
			r.hooks.CacheMiss(key, "lease")
			return zero, false
		}
	}

	r.hooks.LeaseExhausted(key)
	r.hooks.CacheMiss(key, "lease")
	return zero, false
}

// decode unframes and deserializes a cached payload. A corrupt envelope or
// a codec decode failure is treated as a miss and the poisoned key is
// invalidated best-effort, never blocking the caller on the delete.
func (r *LookasideRoute[Req, Rep]) decode(ctx context.Context, key string, payload []byte) (Rep, bool) {
	var zero Rep
	raw, err := wire.Decode(payload)
	if err != nil {
		r.selfHeal(key, "decode_error")
		return zero, false
	}
	reply, err := r.codec.Decode(raw)
	if err != nil {
		r.selfHeal(key, "decode_error")
		return zero, false
	}
	return reply, true
}

func (r *LookasideRoute[Req, Rep]) selfHeal(key, reason string) {
	r.hooks.SelfHealSingle(key, reason)
	client := r.client
	r.sched.Go(func() {
		_ = client.Del(context.Background(), key)
	})
}
