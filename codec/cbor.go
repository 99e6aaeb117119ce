package codec

import (
	"github.com/fxamacker/cbor/v2"
)

// CBOR is a Codec that serializes replies using fxamacker/cbor. The zero
// value is NOT ready to use — construct with NewCBOR or MustCBOR.
//
// deterministic=true selects CoreDetEncOptions (RFC 8949 Core
// Deterministic) for byte-for-byte stable output; otherwise
// PreferredUnsortedEncOptions is used. Time values encode as RFC3339Nano.
type CBOR[Rep any] struct {
	enc cbor.EncMode
	dec cbor.DecMode
}

var _ Codec[struct{}] = CBOR[struct{}]{}

// NewCBOR constructs a CBOR codec with the given determinism setting.
func NewCBOR[Rep any](deterministic bool) (CBOR[Rep], error) {
	var eo cbor.EncOptions
	if deterministic {
		eo = cbor.CoreDetEncOptions()
	} else {
		eo = cbor.PreferredUnsortedEncOptions()
	}
	eo.Time = cbor.TimeRFC3339Nano

	em, err := eo.EncMode()
	if err != nil {
		return CBOR[Rep]{}, err
	}
	dm, err := (cbor.DecOptions{}).DecMode()
	if err != nil {
		return CBOR[Rep]{}, err
	}
	return CBOR[Rep]{enc: em, dec: dm}, nil
}

// MustCBOR is like NewCBOR but panics on error. Handy for package-level
// variables in tests; avoid in production paths.
func MustCBOR[Rep any](deterministic bool) CBOR[Rep] {
	c, err := NewCBOR[Rep](deterministic)
	if err != nil {
		panic(err)
	}
	return c
}

func (c CBOR[Rep]) Encode(v Rep) ([]byte, error) {
	return c.enc.Marshal(v)
}

func (c CBOR[Rep]) Decode(b []byte) (Rep, error) {
	var v Rep
	err := c.dec.Unmarshal(b, &v)
	return v, err
}
