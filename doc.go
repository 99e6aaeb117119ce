// Package lookaside implements LookasideRoute, a lookaside-caching interior
// node for a request-routing tree. It sits in front of a memcache-like
// key/value cache: on a cacheable request it checks the cache under a
// derived key, short-circuiting the tree on a hit; on a miss it forwards to
// a downstream child route and stores the child's reply back into the
// cache without blocking the caller.
//
// Components:
//   - cacheclient.Client: byte-oriented GET/LEASE_GET/SET/LEASE_SET surface
//     (see cacheclient/redis, cacheclient/ristretto, cacheclient/bigcache).
//   - helper.Helper[Req]: policy — is this request cacheable, and what is
//     its logical key.
//   - codec.Codec[Rep]: (de)serializes replies to and from cache payloads.
//   - route.Route[Req, Rep]: the child wrapped by LookasideRoute.
//   - router.Router: refcounted ownership of a shared cacheclient.Client.
//
// Keys are composed as prefix || helper.BuildKey(req) || keySuffix, where
// keySuffix spreads a logical key across keySplitSize physical keys (see
// keys.go). Contention on a hot miss is coordinated through cache leases
// (see read.go) rather than any in-process locking — the route itself takes
// no locks.
package lookaside
