package lookaside

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/lookasidecache/lookaside/cacheclient"
	"github.com/lookasidecache/lookaside/codec"
	"github.com/lookasidecache/lookaside/helper"
	"github.com/lookasidecache/lookaside/internal/sched"
	"github.com/lookasidecache/lookaside/route"
)

// hotMissSentinel is the reserved lease-token value meaning "someone else
// already holds the real lease".
const hotMissSentinel int64 = 1

// Config is the immutable configuration of a single LookasideRoute
// instance.
type Config[Req, Rep any] struct {
	// Name identifies this route instance in diagnostics. Required: it is
	// surfaced verbatim in RouteName so that two LookasideRoute instances
	// wrapping the same helper (e.g. one per shard or one per key-split
	// group) remain distinguishable in logs and traversal output.
	Name string

	// Child is the downstream route this instance wraps, exclusively
	// owned by the resulting LookasideRoute.
	Child route.Route[Req, Rep]

	// Client is the cache-facing client, typically shared with sibling
	// routes via router.Router.
	Client cacheclient.Client

	// RouterAnchor, if set, is released by Close. It is held purely to
	// keep a shared router alive for as long as this route exists.
	RouterAnchor io.Closer

	Codec  codec.Codec[Rep]
	Helper helper.Helper[Req]

	KeyPrefix    string
	KeySplitSize int
	TTL          time.Duration

	Lease LeaseSettings

	Hooks  Hooks
	Logger Logger

	// Sleeper is the cooperative-sleep seam used between lease retries.
	// Defaults to a real wall-clock sleeper.
	Sleeper Sleeper

	// HostID overrides the per-process host identifier used to compute
	// the key-split suffix. Defaults to internal/hostid.Get.
	HostID func() uint64
}

// LookasideRoute is a lookaside-caching interior node of a request-routing
// tree. It is immutable after construction and safe for concurrent use by
// many callers.
type LookasideRoute[Req, Rep any] struct {
	name  string
	child route.Route[Req, Rep]

	client cacheclient.Client
	anchor io.Closer

	codec  codec.Codec[Rep]
	helper helper.Helper[Req]

	keyPrefix string
	keySuffix string
	ttl       time.Duration

	lease LeaseSettings

	hooks   Hooks
	logger  Logger
	sleeper Sleeper
	sched   sched.Scheduler
}

var _ route.Route[struct{}, struct{}] = (*LookasideRoute[struct{}, struct{}])(nil)

// New constructs a LookasideRoute from cfg. It validates the fields this
// module owns (child, client, codec, helper, ttl, lease bounds); it never
// attempts cache-router acquisition itself — see NewFromSettings (factory.go)
// for the degrade-to-raw-child construction policy built on top of New.
func New[Req, Rep any](cfg Config[Req, Rep]) (*LookasideRoute[Req, Rep], error) {
	if cfg.Name == "" {
		return nil, &ConfigError{Field: "name", Msg: "required"}
	}
	if cfg.Child == nil {
		return nil, &ConfigError{Field: "child", Msg: "required"}
	}
	if cfg.Client == nil {
		return nil, &ConfigError{Field: "client", Msg: "required"}
	}
	if cfg.Codec == nil {
		return nil, &ConfigError{Field: "codec", Msg: "required"}
	}
	if cfg.Helper == nil {
		return nil, &ConfigError{Field: "helper", Msg: "required"}
	}
	if cfg.TTL < 0 {
		return nil, &ConfigError{Field: "ttl", Msg: "must be >= 0"}
	}
	if cfg.Lease.Enabled && cfg.Lease.InitialWait > cfg.Lease.MaxWait {
		return nil, &ConfigError{Field: "lease_settings", Msg: "initial_wait must be <= max_wait"}
	}

	keySplitSize := coalesce(cfg.KeySplitSize, 1)
	if keySplitSize < 1 {
		return nil, &ConfigError{Field: "key_split_size", Msg: "must be positive"}
	}

	return &LookasideRoute[Req, Rep]{
		name:      cfg.Name,
		child:     cfg.Child,
		client:    cfg.Client,
		anchor:    cfg.RouterAnchor,
		codec:     cfg.Codec,
		helper:    cfg.Helper,
		keyPrefix: cfg.KeyPrefix,
		keySuffix: buildKeySuffix(keySplitSize, cfg.HostID),
		ttl:       cfg.TTL,
		lease:     cfg.Lease,
		hooks:     coalesce[Hooks](cfg.Hooks, NopHooks{}),
		logger:    coalesce[Logger](cfg.Logger, NopLogger{}),
		sleeper:   coalesce[Sleeper](cfg.Sleeper, realSleeper{}),
	}, nil
}

// RouteName returns a diagnostic label identifying this node and its
// configuration.
func (r *LookasideRoute[Req, Rep]) RouteName() string {
	return fmt.Sprintf("lookaside-cache|name=%s|helper=%s|ttl=%ds|leases=%t",
		r.name, r.helper.Name(), int(r.ttl.Seconds()), r.lease.Enabled)
}

// Close releases the RouterAnchor set in Config, if any.
func (r *LookasideRoute[Req, Rep]) Close() error {
	if r.anchor == nil {
		return nil
	}
	return r.anchor.Close()
}

// Traverse forwards the visitor to the child only. The lookaside node
// itself is invisible to tree traversal.
func (r *LookasideRoute[Req, Rep]) Traverse(req Req, v route.Visitor[Req]) {
	r.child.Traverse(req, v)
}

// Route implements the five-step lookaside algorithm: policy check, cache
// read (plain or lease), child dispatch on miss, detached best-effort
// write, return.
func (r *LookasideRoute[Req, Rep]) Route(ctx context.Context, req Req) (Rep, error) {
	candidate := r.helper.CacheCandidate(req)

	var key string
	var leaseToken int64

	if candidate {
		key = r.composeKey(req)
		if reply, ok := r.read(ctx, key, &leaseToken); ok {
			r.hooks.CacheHit(key)
			return reply, nil
		}
	}

	reply, err := r.child.Route(ctx, req)
	if err != nil {
		var zero Rep
		return zero, err
	}

	if candidate {
		r.dispatchWrite(key, reply, leaseToken)
	}

	return reply, nil
}

func (r *LookasideRoute[Req, Rep]) composeKey(req Req) string {
	return composeKey(r.keyPrefix, r.helper.BuildKey(req), r.keySuffix)
}
