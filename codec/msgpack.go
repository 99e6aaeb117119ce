package codec

import "github.com/vmihailenco/msgpack/v5"

// Msgpack is a Codec that serializes replies with vmihailenco/msgpack/v5.
// The zero value is ready to use. Struct tags differ from encoding/json —
// use `msgpack:"fieldName"` if you need explicit field control.
type Msgpack[Rep any] struct{}

func (Msgpack[Rep]) Encode(v Rep) ([]byte, error) {
	return msgpack.Marshal(v)
}
func (Msgpack[Rep]) Decode(b []byte) (Rep, error) {
	var v Rep
	err := msgpack.Unmarshal(b, &v)
	return v, err
}
