// Package cacheclient defines the wire surface that LookasideRoute consumes
// from the external cache-facing client: GET, LEASE_GET, SET, and
// LEASE_SET. The transport, connection pooling, and request multiplexing
// behind a Client are out of scope for this module — Client is only the
// seam lookaside talks to.
//
// Implementations MUST be byte-for-byte transparent on reads: Get and
// LeaseGet must return exactly the bytes previously passed to Set or
// LeaseSet for that key. lookaside owns envelope framing (internal/wire) on
// top of these bytes; a Client must not add, strip, or transcode anything
// of its own.
package cacheclient

import (
	"context"
	"time"
)

// ResultClass discriminates the outcome of a cache operation.
type ResultClass int

const (
	// Miss means the key was absent (or the lease was not won).
	Miss ResultClass = iota
	// Hit means a value was returned.
	Hit
	// Other covers any outcome that is neither a clean hit nor a clean
	// miss (backend error surfaced as a result rather than an error
	// return, unexpected reply shape, etc). Callers treat Other the same
	// way they treat a transport error.
	Other
)

func (c ResultClass) String() string {
	switch c {
	case Hit:
		return "hit"
	case Miss:
		return "miss"
	default:
		return "other"
	}
}

// Result is the outcome of a single cache operation.
type Result struct {
	Class ResultClass
	// Payload is set on Hit for Get/LeaseGet. It is the exact bytes
	// previously stored — lookaside unframes it itself.
	Payload []byte
	// LeaseToken is set on a Miss from LeaseGet: 1 denotes a hot-miss (someone
	// else holds the lease), any other nonzero value authorizes a subsequent
	// LeaseSet. Unused for Get/Set/LeaseSet results.
	LeaseToken int64
	// Stored reports whether a Set/LeaseSet actually landed. false means
	// the write was rejected (e.g. a stale lease token) without an error.
	// Class is not meaningful on the result of a Set/LeaseSet call.
	Stored bool
}

// Client is the minimal cache wire surface LookasideRoute depends on.
// Implementations must be safe for concurrent use.
type Client interface {
	// Get issues a plain GET for key.
	Get(ctx context.Context, key string) (Result, error)

	// LeaseGet issues a LEASE_GET for key. On a clean miss it returns a
	// lease token in Result.LeaseToken (1 == hot-miss sentinel).
	LeaseGet(ctx context.Context, key string) (Result, error)

	// Set stores value under key with the given TTL (ttl<=0 means "no
	// expiry", matching the memcache convention).
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) (Result, error)

	// LeaseSet stores value under key, conditioned on token still naming
	// the current lease. Result.Stored is false if the token was stale.
	LeaseSet(ctx context.Context, key string, value []byte, ttl time.Duration, token int64) (Result, error)

	// Del removes key. Used for best-effort self-heal of a poisoned entry
	// found on read; errors are not fatal to the caller.
	Del(ctx context.Context, key string) error

	// Close releases resources held by the client.
	Close(ctx context.Context) error
}
