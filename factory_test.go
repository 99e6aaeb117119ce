package lookaside

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/lookasidecache/lookaside/cacheclient"
	"github.com/lookasidecache/lookaside/codec"
	"github.com/lookasidecache/lookaside/helper"
	"github.com/lookasidecache/lookaside/router"
)

func alwaysHelperFactory(json.RawMessage) (helper.Helper[testReq], error) {
	return helper.Always[testReq]{HelperName: "always", Key: func(r testReq) string { return r.ID }}, nil
}

// Invariant 8 — if cache client construction fails, the wrapped tree behaves exactly
// as the bare child: same reply, same traversal.
func TestFactoryDegradesToRawChildOnAcquireFailure(t *testing.T) {
	child := &fakeChild{reply: testRep{Value: "bare"}}
	settings, err := ParseSettings([]byte(`{"name": "n", "child": {}, "ttl": 10}`))
	if err != nil {
		t.Fatalf("ParseSettings: %v", err)
	}

	var reg router.Registry
	wantErr := errors.New("dial tcp: connection refused")
	got, err := NewFromSettings(settings, FactoryConfig[testReq, testRep]{
		Child:         child,
		Registry:      &reg,
		ClientFactory: func(string) (cacheclient.Client, error) { return nil, wantErr },
		Codec:         codec.JSON[testRep]{},
		HelperFactory: alwaysHelperFactory,
	})
	if err != nil {
		t.Fatalf("NewFromSettings: %v", err)
	}
	if got != child {
		t.Fatalf("expected the raw child to be returned unwrapped")
	}

	rep, err := got.Route(context.Background(), testReq{ID: "x"})
	if err != nil || rep.Value != "bare" {
		t.Fatalf("got rep=%+v err=%v", rep, err)
	}
}

func TestFactoryBuildsWorkingRouteOnSuccess(t *testing.T) {
	child := &fakeChild{reply: testRep{Value: "R1"}}
	settings, err := ParseSettings([]byte(`{"name": "n", "child": {}, "ttl": 10, "prefix": "p:"}`))
	if err != nil {
		t.Fatalf("ParseSettings: %v", err)
	}

	fc := newFakeClient()
	fc.getResult = cacheclient.Result{Class: cacheclient.Miss}

	var reg router.Registry
	got, err := NewFromSettings(settings, FactoryConfig[testReq, testRep]{
		Child:         child,
		Registry:      &reg,
		ClientFactory: func(string) (cacheclient.Client, error) { return fc, nil },
		Codec:         codec.JSON[testRep]{},
		HelperFactory: alwaysHelperFactory,
	})
	if err != nil {
		t.Fatalf("NewFromSettings: %v", err)
	}

	if _, ok := got.(*LookasideRoute[testReq, testRep]); !ok {
		t.Fatalf("expected a wrapped LookasideRoute, got %T", got)
	}

	rep, err := got.Route(context.Background(), testReq{ID: "x"})
	if err != nil || rep.Value != "R1" {
		t.Fatalf("got rep=%+v err=%v", rep, err)
	}
}

func TestFactorySharesClientAcrossTwoRoutesSameFlavor(t *testing.T) {
	settings, err := ParseSettings([]byte(`{"name": "n", "child": {}, "ttl": 10, "flavor": "web"}`))
	if err != nil {
		t.Fatalf("ParseSettings: %v", err)
	}

	var reg router.Registry
	calls := 0
	clientFactory := func(string) (cacheclient.Client, error) {
		calls++
		return newFakeClient(), nil
	}

	_, err = NewFromSettings(settings, FactoryConfig[testReq, testRep]{
		Child: &fakeChild{}, Registry: &reg, ClientFactory: clientFactory,
		Codec: codec.JSON[testRep]{}, HelperFactory: alwaysHelperFactory,
	})
	if err != nil {
		t.Fatalf("NewFromSettings: %v", err)
	}
	_, err = NewFromSettings(settings, FactoryConfig[testReq, testRep]{
		Child: &fakeChild{}, Registry: &reg, ClientFactory: clientFactory,
		Codec: codec.JSON[testRep]{}, HelperFactory: alwaysHelperFactory,
	})
	if err != nil {
		t.Fatalf("NewFromSettings: %v", err)
	}
	if calls != 1 {
		t.Fatalf("client factory called %d times, want 1 (shared by flavor)", calls)
	}
}
