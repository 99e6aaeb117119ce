// Package hookslog is a lookaside.Hooks implementation that logs to
// log/slog, sampling the high-frequency events so a hot key's retry burst
// doesn't flood the log.
package hookslog

import (
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"sync/atomic"

	"github.com/lookasidecache/lookaside"
)

type Options struct {
	// Sampling to avoid floods; 0/1 = log all.
	HotMissRetryEvery uint64
	CacheMissEvery    uint64
	// Optional key redactor. Defaults to a SHA-256 prefix.
	Redact func(string) string
}

type Hooks struct {
	l    *slog.Logger
	opts Options

	hotMissCtr  atomic.Uint64
	cacheMissCtr atomic.Uint64
}

var _ lookaside.Hooks = (*Hooks)(nil)

func New(l *slog.Logger, opts Options) *Hooks {
	return &Hooks{l: l, opts: opts}
}

func (h *Hooks) redact(k string) string {
	if h.opts.Redact != nil {
		return h.opts.Redact(k)
	}
	sum := sha256.Sum256([]byte(k))
	return hex.EncodeToString(sum[:8])
}

func sample(n uint64, ctr *atomic.Uint64) bool {
	if n == 0 || n == 1 {
		return true
	}
	return ctr.Add(1)%n == 0
}

func (h *Hooks) CacheHit(key string) {
	if h.l == nil {
		return
	}
	h.l.Debug("lookaside.cache_hit", "key", h.redact(key))
}

func (h *Hooks) CacheMiss(key, source string) {
	if h.l == nil || !sample(h.opts.CacheMissEvery, &h.cacheMissCtr) {
		return
	}
	h.l.Debug("lookaside.cache_miss", "key", h.redact(key), "source", source)
}

func (h *Hooks) HotMissRetry(key string, attempt int, wait string) {
	if h.l == nil || !sample(h.opts.HotMissRetryEvery, &h.hotMissCtr) {
		return
	}
	h.l.Debug("lookaside.hot_miss_retry",
		"key", h.redact(key),
		"attempt", attempt,
		"wait", wait)
}

func (h *Hooks) LeaseExhausted(key string) {
	if h.l == nil {
		return
	}
	h.l.Warn("lookaside.lease_exhausted", "key", h.redact(key))
}

func (h *Hooks) SelfHealSingle(key, reason string) {
	if h.l == nil {
		return
	}
	h.l.Warn("lookaside.self_heal_single", "key", h.redact(key), "reason", reason)
}

func (h *Hooks) WriteRejected(key, reason string) {
	if h.l == nil {
		return
	}
	h.l.Warn("lookaside.write_rejected", "key", h.redact(key), "reason", reason)
}

func (h *Hooks) AcquireFailed(flavor string, err error) {
	if h.l == nil {
		return
	}
	h.l.Error("lookaside.acquire_failed", "flavor", flavor, "err", err)
}
