package lookaside

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-viper/mapstructure/v2"
)

// LeaseSettings controls the lease-based miss-coordination protocol on the
// read path. The zero value has leases disabled.
type LeaseSettings struct {
	Enabled     bool
	InitialWait time.Duration
	MaxWait     time.Duration
	NumRetries  int
}

// Sleeper is the cooperative-sleep seam the lease retry loop suspends on
// between attempts. Tests inject a fake implementation to assert the exact
// backoff sequence without real wall-clock waits.
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration)
}

// realSleeper sleeps on the wall clock, returning early if ctx is done.
type realSleeper struct{}

func (realSleeper) Sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// Settings is the parsed form of a route's JSON configuration:
// name/child/ttl/prefix/flavor/key_split_size/helper_config/lease_settings.
// ChildSpec is left as raw JSON: how a child route is built from its spec is
// the routing tree framework's concern, not this module's.
type Settings struct {
	Name         string
	Flavor       string
	TTL          time.Duration
	Prefix       string
	KeySplitSize int
	HelperConfig json.RawMessage
	Lease        LeaseSettings
	ChildSpec    json.RawMessage
}

type rawLeaseSettings struct {
	EnableLeases  bool `json:"enable_leases"`
	InitialWaitMs *int `json:"initial_wait_ms"`
	MaxWaitMs     *int `json:"max_wait_ms"`
	NumRetries    *int `json:"num_retries"`
}

type rawSettings struct {
	Name          string           `json:"name"`
	Child         json.RawMessage  `json:"child"`
	TTL           *int             `json:"ttl"`
	Prefix        string           `json:"prefix"`
	Flavor        string           `json:"flavor"`
	KeySplitSize  *int             `json:"key_split_size"`
	HelperConfig  json.RawMessage  `json:"helper_config"`
	LeaseSettings *rawLeaseSettings `json:"lease_settings"`
}

// ParseSettings validates and parses the lookaside route's configuration
// object. It returns a *ConfigError for every validation failure named in
// the design: missing child, missing ttl, wrong type, non-positive
// key_split_size, or inconsistent lease_settings bounds.
func ParseSettings(data []byte) (*Settings, error) {
	var raw rawSettings
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, &ConfigError{Msg: fmt.Sprintf("malformed json: %v", err)}
	}
	if raw.Name == "" {
		return nil, &ConfigError{Field: "name", Msg: "required"}
	}
	if len(raw.Child) == 0 {
		return nil, &ConfigError{Field: "child", Msg: "required"}
	}
	if raw.TTL == nil {
		return nil, &ConfigError{Field: "ttl", Msg: "required"}
	}
	if *raw.TTL < 0 {
		return nil, &ConfigError{Field: "ttl", Msg: "must be >= 0"}
	}

	keySplitSize := 1
	if raw.KeySplitSize != nil {
		if *raw.KeySplitSize <= 0 {
			return nil, &ConfigError{Field: "key_split_size", Msg: "must be positive"}
		}
		keySplitSize = *raw.KeySplitSize
	}

	flavor := coalesce(raw.Flavor, "web")

	lease := LeaseSettings{
		InitialWait: 2 * time.Millisecond,
		MaxWait:     500 * time.Millisecond,
		NumRetries:  10,
	}
	if raw.LeaseSettings != nil {
		lease.Enabled = raw.LeaseSettings.EnableLeases
		if raw.LeaseSettings.InitialWaitMs != nil {
			lease.InitialWait = time.Duration(*raw.LeaseSettings.InitialWaitMs) * time.Millisecond
		}
		if raw.LeaseSettings.MaxWaitMs != nil {
			lease.MaxWait = time.Duration(*raw.LeaseSettings.MaxWaitMs) * time.Millisecond
		}
		if raw.LeaseSettings.NumRetries != nil {
			lease.NumRetries = *raw.LeaseSettings.NumRetries
		}
		if lease.InitialWait > lease.MaxWait {
			return nil, &ConfigError{Field: "lease_settings", Msg: "initial_wait_ms must be <= max_wait_ms"}
		}
	}

	return &Settings{
		Name:         raw.Name,
		Flavor:       flavor,
		TTL:          time.Duration(*raw.TTL) * time.Second,
		Prefix:       raw.Prefix,
		KeySplitSize: keySplitSize,
		HelperConfig: raw.HelperConfig,
		Lease:        lease,
		ChildSpec:    raw.Child,
	}, nil
}

// DecodeHelperConfig decodes a helper_config object into out using
// mapstructure, for HelperFactory implementations that want a typed config
// rather than raw JSON. It round-trips through a generic map so
// mapstructure's tag-based field matching (not encoding/json's) governs the
// decode.
func DecodeHelperConfig(raw json.RawMessage, out any) error {
	if len(raw) == 0 {
		return nil
	}
	var generic map[string]any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return fmt.Errorf("lookaside: helper_config: %w", err)
	}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
		TagName:          "mapstructure",
	})
	if err != nil {
		return err
	}
	return dec.Decode(generic)
}
