// Package ristretto implements cacheclient.Client against an in-process
// github.com/dgraph-io/ristretto cache. There is no second process to
// contend a lease with, so LeaseGet never reports a hot-miss: a miss always
// mints a fresh, immediately usable token.
package ristretto

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	rc "github.com/dgraph-io/ristretto"

	"github.com/lookasidecache/lookaside/cacheclient"
)

type Config struct {
	NumCounters int64
	MaxCost     int64
	BufferItems int64
	Metrics     bool
	// Cost is the Ristretto admission cost charged per Set/LeaseSet. 0 uses
	// the length of the stored value.
	Cost int64
}

type Ristretto struct {
	c    *rc.Cache
	cost int64
	seq  atomic.Int64
}

var _ cacheclient.Client = (*Ristretto)(nil)

func New(cfg Config) (*Ristretto, error) {
	if cfg.NumCounters <= 0 || cfg.MaxCost <= 0 || cfg.BufferItems <= 0 {
		return nil, errors.New("lookaside/ristretto: invalid config")
	}
	c, err := rc.NewCache(&rc.Config{
		NumCounters: cfg.NumCounters,
		MaxCost:     cfg.MaxCost,
		BufferItems: cfg.BufferItems,
		Metrics:     cfg.Metrics,
	})
	if err != nil {
		return nil, err
	}
	return &Ristretto{c: c, cost: cfg.Cost}, nil
}

func (r *Ristretto) costOf(value []byte) int64 {
	if r.cost > 0 {
		return r.cost
	}
	return int64(len(value))
}

func (r *Ristretto) Get(_ context.Context, key string) (cacheclient.Result, error) {
	v, ok := r.c.Get(key)
	if !ok {
		return cacheclient.Result{Class: cacheclient.Miss}, nil
	}
	b, _ := v.([]byte)
	if b == nil {
		r.c.Del(key)
		return cacheclient.Result{Class: cacheclient.Miss}, nil
	}
	return cacheclient.Result{Class: cacheclient.Hit, Payload: b}, nil
}

// LeaseGet never hot-misses: a process-local cache has no other writer to
// wait on, so every miss mints a token the caller can use right away.
func (r *Ristretto) LeaseGet(ctx context.Context, key string) (cacheclient.Result, error) {
	res, err := r.Get(ctx, key)
	if err != nil || res.Class == cacheclient.Hit {
		return res, err
	}
	return cacheclient.Result{Class: cacheclient.Miss, LeaseToken: r.seq.Add(1) + 1}, nil
}

func (r *Ristretto) Set(_ context.Context, key string, value []byte, ttl time.Duration) (cacheclient.Result, error) {
	var ok bool
	if ttl > 0 {
		ok = r.c.SetWithTTL(key, value, r.costOf(value), ttl)
	} else {
		ok = r.c.Set(key, value, r.costOf(value))
	}
	return cacheclient.Result{Stored: ok}, nil
}

// LeaseSet has nothing to arbitrate locally, so any token minted by this
// client's own LeaseGet is honored.
func (r *Ristretto) LeaseSet(ctx context.Context, key string, value []byte, ttl time.Duration, token int64) (cacheclient.Result, error) {
	if token <= 1 {
		return cacheclient.Result{Stored: false}, nil
	}
	return r.Set(ctx, key, value, ttl)
}

func (r *Ristretto) Del(_ context.Context, key string) error {
	r.c.Del(key)
	return nil
}

func (r *Ristretto) Close(_ context.Context) error {
	r.c.Wait()
	r.c.Close()
	return nil
}

// Metrics exposes Ristretto's own counters for applications that want them;
// it is not part of the cacheclient.Client contract.
func (r *Ristretto) Metrics() *rc.Metrics { return r.c.Metrics }
