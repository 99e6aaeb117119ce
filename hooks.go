package lookaside

// Hooks are lightweight callbacks for high-signal events on the lookaside
// read/write path. Implementations MUST be cheap and non-blocking — the
// route calls them inline on the hot path; WriteRejected is the exception
// and is called from the detached goroutine that performs the write.
type Hooks interface {
	// A read hit: the reply was deserialized from a cached payload.
	CacheHit(key string)

	// A read miss that will fall through to the child. source names the
	// path that produced the miss: "plain" or "lease". Non-candidate
	// requests fire no hook, and a payload that fails to decode fires
	// SelfHealSingle instead.
	CacheMiss(key, source string)

	// A LEASE_GET returned the hot-miss sentinel and the read path is
	// backing off before retrying. attempt is the index of the LEASE_GET
	// about to be issued, counting the first one as 0, so the first retry
	// reports 1.
	HotMissRetry(key string, attempt int, wait string)

	// The lease retry loop exhausted numRetries while still seeing
	// hot-miss. The route proceeds to the child without a lease token.
	LeaseExhausted(key string)

	// A cached payload failed to decode and the key was invalidated.
	// reason is always "decode_error" today but is passed through for
	// forward compatibility.
	SelfHealSingle(key, reason string)

	// A detached SET/LEASE_SET did not land: reason is "transport_error"
	// (the client returned an error) or "rejected" (LEASE_SET saw a stale
	// token, Result.Stored == false).
	WriteRejected(key, reason string)

	// The factory could not acquire a cache router or client at
	// construction time and degraded to the raw child.
	AcquireFailed(flavor string, err error)
}

// NopHooks is the default no-op implementation.
type NopHooks struct{}

func (NopHooks) CacheHit(string)                 {}
func (NopHooks) CacheMiss(string, string)         {}
func (NopHooks) HotMissRetry(string, int, string) {}
func (NopHooks) LeaseExhausted(string)            {}
func (NopHooks) SelfHealSingle(string, string)    {}
func (NopHooks) WriteRejected(string, string)     {}
func (NopHooks) AcquireFailed(string, error)      {}
