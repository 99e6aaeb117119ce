package lookaside

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/lookasidecache/lookaside/cacheclient"
	"github.com/lookasidecache/lookaside/codec"
	"github.com/lookasidecache/lookaside/helper"
	"github.com/lookasidecache/lookaside/internal/wire"
	"github.com/lookasidecache/lookaside/route"
)

type testReq struct{ ID string }
type testRep struct{ Value string }

type fakeChild struct {
	mu    sync.Mutex
	calls int
	reply testRep
	err   error
}

func (c *fakeChild) RouteName() string { return "fake-child" }

func (c *fakeChild) Route(_ context.Context, _ testReq) (testRep, error) {
	c.mu.Lock()
	c.calls++
	c.mu.Unlock()
	return c.reply, c.err
}

func (c *fakeChild) Traverse(req testReq, v route.Visitor[testReq]) {
	v.Visit("fake-child", req)
}

func (c *fakeChild) callCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

type setCall struct {
	key   string
	value []byte
	ttl   time.Duration
}

type leaseSetCall struct {
	key   string
	value []byte
	ttl   time.Duration
	token int64
}

type fakeClient struct {
	mu sync.Mutex

	getResult cacheclient.Result
	getErr    error

	leaseGetResults []cacheclient.Result
	leaseGetErr     error
	leaseGetCalls   int

	leaseSetStored bool

	sets      []setCall
	leaseSets []leaseSetCall
	dels      []string
}

func newFakeClient() *fakeClient {
	return &fakeClient{leaseSetStored: true}
}

func (f *fakeClient) Get(context.Context, string) (cacheclient.Result, error) {
	return f.getResult, f.getErr
}

func (f *fakeClient) LeaseGet(context.Context, string) (cacheclient.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.leaseGetErr != nil {
		return cacheclient.Result{}, f.leaseGetErr
	}
	if f.leaseGetCalls >= len(f.leaseGetResults) {
		return cacheclient.Result{Class: cacheclient.Miss}, nil
	}
	res := f.leaseGetResults[f.leaseGetCalls]
	f.leaseGetCalls++
	return res, nil
}

func (f *fakeClient) Set(_ context.Context, key string, value []byte, ttl time.Duration) (cacheclient.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sets = append(f.sets, setCall{key, value, ttl})
	return cacheclient.Result{Stored: true}, nil
}

func (f *fakeClient) LeaseSet(_ context.Context, key string, value []byte, ttl time.Duration, token int64) (cacheclient.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.leaseSets = append(f.leaseSets, leaseSetCall{key, value, ttl, token})
	return cacheclient.Result{Stored: f.leaseSetStored}, nil
}

func (f *fakeClient) Del(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dels = append(f.dels, key)
	return nil
}

func (f *fakeClient) Close(context.Context) error { return nil }

func (f *fakeClient) snapshotSets() []setCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]setCall(nil), f.sets...)
}

func (f *fakeClient) snapshotLeaseSets() []leaseSetCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]leaseSetCall(nil), f.leaseSets...)
}

func (f *fakeClient) snapshotDels() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.dels...)
}

type fakeSleeper struct {
	mu    sync.Mutex
	waits []time.Duration
}

func (s *fakeSleeper) Sleep(_ context.Context, d time.Duration) {
	s.mu.Lock()
	s.waits = append(s.waits, d)
	s.mu.Unlock()
}

func (s *fakeSleeper) snapshot() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]time.Duration(nil), s.waits...)
}

// waitUntil polls cond until it returns true or the timeout elapses, for
// observing the detached write the route dispatches without awaiting.
func waitUntil(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("condition not met before timeout")
}

func alwaysHelper(key string) helper.Helper[testReq] {
	return helper.Always[testReq]{HelperName: "test", Key: func(testReq) string { return key }}
}

func newTestRoute(t *testing.T, client *fakeClient, child *fakeChild, h helper.Helper[testReq], mutate func(*Config[testReq, testRep])) *LookasideRoute[testReq, testRep] {
	t.Helper()
	cfg := Config[testReq, testRep]{
		Name:      "test",
		Child:     child,
		Client:    client,
		Codec:     codec.JSON[testRep]{},
		Helper:    h,
		KeyPrefix: "p:",
		TTL:       10 * time.Second,
	}
	if mutate != nil {
		mutate(&cfg)
	}
	r, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return r
}

func encodedPayload(t *testing.T, rep testRep) []byte {
	t.Helper()
	raw, err := (codec.JSON[testRep]{}).Encode(rep)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	return wire.Encode(raw)
}

// S1 — Cold miss, leases off.
func TestColdMissLeasesOff(t *testing.T) {
	client := newFakeClient()
	client.getResult = cacheclient.Result{Class: cacheclient.Miss}
	child := &fakeChild{reply: testRep{Value: "R1"}}
	r := newTestRoute(t, client, child, alwaysHelper("k"), nil)

	rep, err := r.Route(context.Background(), testReq{ID: "x"})
	if err != nil {
		t.Fatalf("Route: %v", err)
	}
	if rep.Value != "R1" {
		t.Fatalf("got %+v", rep)
	}
	if child.callCount() != 1 {
		t.Fatalf("expected exactly one child call")
	}

	waitUntil(t, func() bool { return len(client.snapshotSets()) == 1 })
	sets := client.snapshotSets()
	if sets[0].key != "p:k" || sets[0].ttl != 10*time.Second {
		t.Fatalf("unexpected set: %+v", sets[0])
	}
	raw, err := wire.Decode(sets[0].value)
	if err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	got, err := (codec.JSON[testRep]{}).Decode(raw)
	if err != nil || got.Value != "R1" {
		t.Fatalf("decoded %+v err=%v", got, err)
	}
}

// S2 — Hit, leases off.
func TestHitLeasesOff(t *testing.T) {
	client := newFakeClient()
	child := &fakeChild{reply: testRep{Value: "unused"}}
	client.getResult = cacheclient.Result{Class: cacheclient.Hit, Payload: encodedPayload(t, testRep{Value: "R0"})}
	r := newTestRoute(t, client, child, alwaysHelper("k"), nil)

	rep, err := r.Route(context.Background(), testReq{ID: "x"})
	if err != nil {
		t.Fatalf("Route: %v", err)
	}
	if rep.Value != "R0" {
		t.Fatalf("got %+v", rep)
	}
	if child.callCount() != 0 {
		t.Fatalf("child must not be invoked on a hit")
	}
}

// S3 — Hot-miss burst, leases on, initial=2 max=8 retries=3.
func TestHotMissBurstThenToken(t *testing.T) {
	client := newFakeClient()
	client.leaseGetResults = []cacheclient.Result{
		{Class: cacheclient.Miss, LeaseToken: 1},
		{Class: cacheclient.Miss, LeaseToken: 1},
		{Class: cacheclient.Miss, LeaseToken: 1},
		{Class: cacheclient.Miss, LeaseToken: 42},
	}
	sleeper := &fakeSleeper{}
	child := &fakeChild{reply: testRep{Value: "R"}}
	r := newTestRoute(t, client, child, alwaysHelper("k"), func(c *Config[testReq, testRep]) {
		c.Lease = LeaseSettings{Enabled: true, InitialWait: 2 * time.Millisecond, MaxWait: 8 * time.Millisecond, NumRetries: 3}
		c.Sleeper = sleeper
	})

	rep, err := r.Route(context.Background(), testReq{ID: "x"})
	if err != nil {
		t.Fatalf("Route: %v", err)
	}
	if rep.Value != "R" {
		t.Fatalf("got %+v", rep)
	}
	if child.callCount() != 1 {
		t.Fatalf("expected exactly one child call")
	}

	waits := sleeper.snapshot()
	want := []time.Duration{2 * time.Millisecond, 4 * time.Millisecond, 8 * time.Millisecond}
	if len(waits) != len(want) {
		t.Fatalf("waits = %v, want %v", waits, want)
	}
	for i := range want {
		if waits[i] != want[i] {
			t.Fatalf("waits[%d] = %v, want %v", i, waits[i], want[i])
		}
	}

	waitUntil(t, func() bool { return len(client.snapshotLeaseSets()) == 1 })
	ls := client.snapshotLeaseSets()[0]
	if ls.key != "p:k" || ls.token != 42 || ls.ttl != 10*time.Second {
		t.Fatalf("unexpected lease_set: %+v", ls)
	}
}

// S4 — Lease-write loss: LEASE_SET reports stored=false.
func TestLeaseWriteLossIsSilent(t *testing.T) {
	client := newFakeClient()
	client.leaseSetStored = false
	client.leaseGetResults = []cacheclient.Result{{Class: cacheclient.Miss, LeaseToken: 42}}
	child := &fakeChild{reply: testRep{Value: "R"}}
	r := newTestRoute(t, client, child, alwaysHelper("k"), func(c *Config[testReq, testRep]) {
		c.Lease = LeaseSettings{Enabled: true, InitialWait: time.Millisecond, MaxWait: time.Millisecond, NumRetries: 1}
		c.Sleeper = &fakeSleeper{}
	})

	rep, err := r.Route(context.Background(), testReq{ID: "x"})
	if err != nil {
		t.Fatalf("Route: %v", err)
	}
	if rep.Value != "R" {
		t.Fatalf("caller must still see child's reply: %+v", rep)
	}
	waitUntil(t, func() bool { return len(client.snapshotLeaseSets()) == 1 })
}

// S5 — Key split.
func TestKeySplit(t *testing.T) {
	client := newFakeClient()
	client.getResult = cacheclient.Result{Class: cacheclient.Miss}
	child := &fakeChild{reply: testRep{Value: "R"}}
	r := newTestRoute(t, client, child, alwaysHelper("k"), func(c *Config[testReq, testRep]) {
		c.KeySplitSize = 4
		c.HostID = func() uint64 { return 6 } // 6 % 4 == 2
	})

	if _, err := r.Route(context.Background(), testReq{ID: "x"}); err != nil {
		t.Fatalf("Route: %v", err)
	}
	waitUntil(t, func() bool { return len(client.snapshotSets()) == 1 })
	if got := client.snapshotSets()[0].key; got != "p:k:ks2" {
		t.Fatalf("got key %q, want p:k:ks2", got)
	}
}

// S6 — Non-candidate.
func TestNonCandidate(t *testing.T) {
	client := newFakeClient()
	child := &fakeChild{reply: testRep{Value: "R"}}
	h := helper.FieldKey[testReq]{HelperName: "never", Candidate: func(testReq) bool { return false }, Key: func(testReq) string { return "k" }}
	r := newTestRoute(t, client, child, h, nil)

	rep, err := r.Route(context.Background(), testReq{ID: "x"})
	if err != nil {
		t.Fatalf("Route: %v", err)
	}
	if rep.Value != "R" {
		t.Fatalf("got %+v", rep)
	}
	if child.callCount() != 1 {
		t.Fatalf("expected exactly one child call")
	}
	time.Sleep(20 * time.Millisecond)
	if len(client.snapshotSets()) != 0 {
		t.Fatalf("non-candidate must never issue a SET")
	}
}

func TestChildFailurePropagatesAndSkipsWrite(t *testing.T) {
	client := newFakeClient()
	client.getResult = cacheclient.Result{Class: cacheclient.Miss}
	wantErr := errors.New("downstream failed")
	child := &fakeChild{err: wantErr}
	r := newTestRoute(t, client, child, alwaysHelper("k"), nil)

	_, err := r.Route(context.Background(), testReq{ID: "x"})
	if !errors.Is(err, wantErr) {
		t.Fatalf("got %v, want %v", err, wantErr)
	}
	time.Sleep(20 * time.Millisecond)
	if len(client.snapshotSets()) != 0 {
		t.Fatalf("a failed child reply must never be cached")
	}
}

func TestCorruptPayloadSelfHealsAndFallsThroughToChild(t *testing.T) {
	client := newFakeClient()
	client.getResult = cacheclient.Result{Class: cacheclient.Hit, Payload: []byte("not a valid envelope")}
	child := &fakeChild{reply: testRep{Value: "fresh"}}
	r := newTestRoute(t, client, child, alwaysHelper("k"), nil)

	rep, err := r.Route(context.Background(), testReq{ID: "x"})
	if err != nil {
		t.Fatalf("Route: %v", err)
	}
	if rep.Value != "fresh" {
		t.Fatalf("got %+v", rep)
	}
	if child.callCount() != 1 {
		t.Fatalf("expected child to be invoked on decode failure")
	}
	waitUntil(t, func() bool { return len(client.snapshotDels()) == 1 })
	if client.snapshotDels()[0] != "p:k" {
		t.Fatalf("unexpected del: %v", client.snapshotDels())
	}
}

func TestRouteNameFormat(t *testing.T) {
	client := newFakeClient()
	child := &fakeChild{}
	r := newTestRoute(t, client, child, helper.Always[testReq]{HelperName: "myhelper", Key: func(testReq) string { return "k" }}, func(c *Config[testReq, testRep]) {
		c.Lease = LeaseSettings{Enabled: true, InitialWait: time.Millisecond, MaxWait: time.Millisecond, NumRetries: 1}
	})
	want := "lookaside-cache|name=test|helper=myhelper|ttl=10s|leases=true"
	if got := r.RouteName(); got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestTraverseForwardsToChildOnly(t *testing.T) {
	client := newFakeClient()
	child := &fakeChild{}
	r := newTestRoute(t, client, child, alwaysHelper("k"), nil)

	var visited []string
	r.Traverse(testReq{}, route.VisitorFunc[testReq](func(name string, _ testReq) {
		visited = append(visited, name)
	}))
	if len(visited) != 1 || visited[0] != "fake-child" {
		t.Fatalf("got %v", visited)
	}
}

func TestGetTransportErrorFallsThroughToChild(t *testing.T) {
	client := newFakeClient()
	client.getErr = errors.New("connection reset")
	child := &fakeChild{reply: testRep{Value: "R"}}
	r := newTestRoute(t, client, child, alwaysHelper("k"), nil)

	rep, err := r.Route(context.Background(), testReq{ID: "x"})
	if err != nil {
		t.Fatalf("Route: %v", err)
	}
	if rep.Value != "R" || child.callCount() != 1 {
		t.Fatalf("expected fallthrough to child, got rep=%+v calls=%d", rep, child.callCount())
	}
}
