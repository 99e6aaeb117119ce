// Package redis implements cacheclient.Client against Redis. It is the only
// backend in this module where a lease token means something across
// processes: LeaseGet/LeaseSet are each a single Lua script, evaluated
// atomically, that arbitrate a companion "lease holder" key the same way
// memcache itself arbitrates leases server-side.
package redis

import (
	"context"
	"errors"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/lookasidecache/lookaside/cacheclient"
)

var ErrNilClient = errors.New("lookaside/redis: nil client")

// hotMissToken mirrors the sentinel value lookaside's lease protocol
// reserves for "someone else already holds this lease".
const hotMissToken = 1

type Config struct {
	Client goredis.UniversalClient
	// CloseClient is true only when this client exclusively owns rdb.
	CloseClient bool
	// LeaseHoldTTL bounds how long a minted lease token is honored before
	// it is treated as abandoned and re-mintable. 0 => 10s.
	LeaseHoldTTL time.Duration
}

type Redis struct {
	rdb         goredis.UniversalClient
	closeClient bool
	leaseTTL    time.Duration

	leaseGetScript *goredis.Script
	leaseSetScript *goredis.Script
}

var _ cacheclient.Client = (*Redis)(nil)

// leaseGetScript: on a value hit, returns {1, value}. On a miss it either
// finds a live, unexpired lease holder (hot-miss: {0, 1}) or mints a fresh
// token (never the sentinel 1), records it as the current holder with
// leaseTTL, and returns {0, token}.
const leaseGetLua = `
local val = redis.call('GET', KEYS[1])
if val then
  return {1, val}
end
local holder = redis.call('GET', KEYS[2])
if holder then
  return {0, 1}
end
local token = redis.call('INCR', KEYS[3])
if token == 1 then
  token = redis.call('INCR', KEYS[3])
end
redis.call('SET', KEYS[2], token, 'EX', tonumber(ARGV[1]))
return {0, token}
`

// leaseSetScript: stores value under KEYS[1] and clears the lease holder
// key only if the holder still matches ARGV[2] (the token the caller was
// issued). Returns 1 if stored, 0 if the token was stale.
const leaseSetLua = `
local holder = redis.call('GET', KEYS[2])
if not holder or holder ~= ARGV[2] then
  return 0
end
if tonumber(ARGV[1]) > 0 then
  redis.call('SET', KEYS[1], ARGV[3], 'EX', ARGV[1])
else
  redis.call('SET', KEYS[1], ARGV[3])
end
redis.call('DEL', KEYS[2])
return 1
`

func New(cfg Config) (*Redis, error) {
	if cfg.Client == nil {
		return nil, ErrNilClient
	}
	leaseTTL := cfg.LeaseHoldTTL
	if leaseTTL <= 0 {
		leaseTTL = 10 * time.Second
	}
	return &Redis{
		rdb:            cfg.Client,
		closeClient:    cfg.CloseClient,
		leaseTTL:       leaseTTL,
		leaseGetScript: goredis.NewScript(leaseGetLua),
		leaseSetScript: goredis.NewScript(leaseSetLua),
	}, nil
}

func (r *Redis) Get(ctx context.Context, key string) (cacheclient.Result, error) {
	b, err := r.rdb.Get(ctx, key).Bytes()
	if err == goredis.Nil {
		return cacheclient.Result{Class: cacheclient.Miss}, nil
	}
	if err != nil {
		return cacheclient.Result{Class: cacheclient.Other}, err
	}
	return cacheclient.Result{Class: cacheclient.Hit, Payload: b}, nil
}

func (r *Redis) leaseHolderKey(key string) string { return "lease_holder:" + key }
func (r *Redis) leaseSeqKey(key string) string    { return "lease_seq:" + key }

func (r *Redis) LeaseGet(ctx context.Context, key string) (cacheclient.Result, error) {
	res, err := r.leaseGetScript.Run(ctx, r.rdb, []string{key, r.leaseHolderKey(key), r.leaseSeqKey(key)}, int(r.leaseTTL.Seconds())).Result()
	if err != nil {
		return cacheclient.Result{Class: cacheclient.Other}, err
	}
	fields, ok := res.([]interface{})
	if !ok || len(fields) != 2 {
		return cacheclient.Result{Class: cacheclient.Other}, errors.New("lookaside/redis: unexpected lease_get reply shape")
	}
	hit, _ := fields[0].(int64)
	if hit == 1 {
		payload, _ := fields[1].(string)
		return cacheclient.Result{Class: cacheclient.Hit, Payload: []byte(payload)}, nil
	}
	token, _ := fields[1].(int64)
	return cacheclient.Result{Class: cacheclient.Miss, LeaseToken: token}, nil
}

func (r *Redis) Set(ctx context.Context, key string, value []byte, ttl time.Duration) (cacheclient.Result, error) {
	if ttl < 0 {
		ttl = 0
	}
	if err := r.rdb.Set(ctx, key, value, ttl).Err(); err != nil {
		return cacheclient.Result{}, err
	}
	return cacheclient.Result{Stored: true}, nil
}

func (r *Redis) LeaseSet(ctx context.Context, key string, value []byte, ttl time.Duration, token int64) (cacheclient.Result, error) {
	if token == 0 || token == hotMissToken {
		return cacheclient.Result{Stored: false}, nil
	}
	ttlSeconds := int64(0)
	if ttl > 0 {
		ttlSeconds = int64(ttl.Seconds())
		if ttlSeconds <= 0 {
			ttlSeconds = 1
		}
	}
	res, err := r.leaseSetScript.Run(ctx, r.rdb,
		[]string{key, r.leaseHolderKey(key)},
		ttlSeconds, token, value,
	).Result()
	if err != nil {
		return cacheclient.Result{Class: cacheclient.Other}, err
	}
	stored, _ := res.(int64)
	return cacheclient.Result{Stored: stored == 1}, nil
}

func (r *Redis) Del(ctx context.Context, key string) error {
	return r.rdb.Del(ctx, key).Err()
}

// Close releases the underlying redis client only when this client owns it.
// Safe to call multiple times; repeated calls become no-ops.
func (r *Redis) Close(context.Context) error {
	if r.closeClient {
		if err := r.rdb.Close(); err != nil && !errors.Is(err, goredis.ErrClosed) {
			return err
		}
	}
	return nil
}
