// Package bigcache implements cacheclient.Client against an in-process
// github.com/allegro/bigcache/v3 cache. BigCache has no per-entry TTL — all
// entries share the LifeWindow configured at construction — and, like
// cacheclient/ristretto, has no second process to contend a lease with, so
// LeaseGet never reports a hot-miss.
package bigcache

import (
	"context"
	"sync/atomic"
	"time"

	bc "github.com/allegro/bigcache/v3"

	"github.com/lookasidecache/lookaside/cacheclient"
)

type Config struct {
	LifeWindow         time.Duration
	CleanWindow        time.Duration
	MaxEntriesInWindow int
	MaxEntrySize       int
	HardMaxCacheSizeMB int // ~ memory limit; 0 = unlimited
}

type BigCache struct {
	c   *bc.BigCache
	seq atomic.Int64
}

var _ cacheclient.Client = (*BigCache)(nil)

func New(cfg Config) (*BigCache, error) {
	conf := bc.DefaultConfig(cfg.LifeWindow)
	if cfg.CleanWindow > 0 {
		conf.CleanWindow = cfg.CleanWindow
	}
	if cfg.MaxEntriesInWindow > 0 {
		conf.MaxEntriesInWindow = cfg.MaxEntriesInWindow
	}
	if cfg.MaxEntrySize > 0 {
		conf.MaxEntrySize = cfg.MaxEntrySize
	}
	if cfg.HardMaxCacheSizeMB > 0 {
		conf.HardMaxCacheSize = cfg.HardMaxCacheSizeMB
	}
	c, err := bc.NewBigCache(conf)
	if err != nil {
		return nil, err
	}
	return &BigCache{c: c}, nil
}

func (c *BigCache) Get(_ context.Context, key string) (cacheclient.Result, error) {
	b, err := c.c.Get(key)
	if err == bc.ErrEntryNotFound {
		return cacheclient.Result{Class: cacheclient.Miss}, nil
	}
	if err != nil {
		return cacheclient.Result{Class: cacheclient.Other}, err
	}
	return cacheclient.Result{Class: cacheclient.Hit, Payload: b}, nil
}

func (c *BigCache) LeaseGet(ctx context.Context, key string) (cacheclient.Result, error) {
	res, err := c.Get(ctx, key)
	if err != nil || res.Class == cacheclient.Hit {
		return res, err
	}
	return cacheclient.Result{Class: cacheclient.Miss, LeaseToken: c.seq.Add(1) + 1}, nil
}

// Set ignores ttl: BigCache's expiry is the process-global LifeWindow set at
// construction, not a per-entry value.
func (c *BigCache) Set(_ context.Context, key string, value []byte, _ time.Duration) (cacheclient.Result, error) {
	if err := c.c.Set(key, value); err != nil {
		return cacheclient.Result{}, err
	}
	return cacheclient.Result{Stored: true}, nil
}

func (c *BigCache) LeaseSet(ctx context.Context, key string, value []byte, ttl time.Duration, token int64) (cacheclient.Result, error) {
	if token <= 1 {
		return cacheclient.Result{Stored: false}, nil
	}
	return c.Set(ctx, key, value, ttl)
}

func (c *BigCache) Del(_ context.Context, key string) error {
	err := c.c.Delete(key)
	if err == bc.ErrEntryNotFound {
		return nil
	}
	return err
}

func (c *BigCache) Close(_ context.Context) error {
	return c.c.Close()
}
