package lookaside

import (
	"context"

	"github.com/lookasidecache/lookaside/cacheclient"
	"github.com/lookasidecache/lookaside/codec"
	"github.com/lookasidecache/lookaside/helper"
	"github.com/lookasidecache/lookaside/route"
	"github.com/lookasidecache/lookaside/router"
)

// ClientFactory builds a fresh cacheclient.Client for a flavor not yet
// acquired through a router.Registry. It stands in for the router/client
// bootstrapping this module treats as an injected dependency.
type ClientFactory func(flavor string) (cacheclient.Client, error)

// FactoryConfig bundles everything NewFromSettings needs beyond the parsed
// Settings: the already-built child route, the shared acquisition
// registry, a factory for constructing a fresh client when a flavor hasn't
// been acquired yet, the reply codec, and a way to build Helper[Req] from
// helper_config.
type FactoryConfig[Req, Rep any] struct {
	Child         route.Route[Req, Rep]
	Registry      *router.Registry
	ClientFactory ClientFactory
	Codec         codec.Codec[Rep]
	HelperFactory helper.Factory[Req]
	Hooks         Hooks
	Logger        Logger
	Sleeper       Sleeper
	HostID        func() uint64
}

// routerAnchor adapts a *router.Router to io.Closer so LookasideRoute can
// hold it purely to keep the shared client's router reference alive.
type routerAnchor struct {
	r *router.Router
}

func (a routerAnchor) Close() error {
	return a.r.Release(context.Background())
}

// NewFromSettings builds a LookasideRoute from parsed Settings, acquiring a
// shared cacheclient.Client through fc.Registry under persistenceId =
// "CarbonLookasideClient:" + flavor. If acquisition fails — a missing or
// broken cache router or client — the failure is logged, Hooks.AcquireFailed
// fires, and the raw child is returned unwrapped: the routing tree degrades
// to a pass-through rather than failing to load. This degrade decision is
// made at construction time only; the returned route.Route never
// self-unwraps afterward.
func NewFromSettings[Req, Rep any](settings *Settings, fc FactoryConfig[Req, Rep]) (route.Route[Req, Rep], error) {
	logger := coalesce[Logger](fc.Logger, NopLogger{})
	hooks := coalesce[Hooks](fc.Hooks, NopHooks{})

	persistenceID := "CarbonLookasideClient:" + settings.Flavor
	r, err := fc.Registry.Acquire(persistenceID, func() (cacheclient.Client, error) {
		return fc.ClientFactory(settings.Flavor)
	})
	if err != nil {
		acqErr := &AcquireError{Flavor: settings.Flavor, Err: err}
		logger.Error("lookaside: cache router/client acquisition failed, degrading to raw child", Fields{
			"flavor": settings.Flavor,
			"err":    acqErr.Error(),
		})
		hooks.AcquireFailed(settings.Flavor, acqErr)
		return fc.Child, nil
	}

	h, err := fc.HelperFactory(settings.HelperConfig)
	if err != nil {
		return nil, &ConfigError{Field: "helper_config", Msg: err.Error()}
	}

	return New(Config[Req, Rep]{
		Name:         settings.Name,
		Child:        fc.Child,
		Client:       r.Client(),
		RouterAnchor: routerAnchor{r},
		Codec:        fc.Codec,
		Helper:       h,
		KeyPrefix:    settings.Prefix,
		KeySplitSize: settings.KeySplitSize,
		TTL:          settings.TTL,
		Lease:        settings.Lease,
		Hooks:        hooks,
		Logger:       logger,
		Sleeper:      fc.Sleeper,
		HostID:       fc.HostID,
	})
}
