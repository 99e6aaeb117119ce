package codec

import "encoding/json"

// JSON is a Codec that serializes replies with encoding/json. The zero
// value is ready to use.
type JSON[Rep any] struct{}

func (JSON[Rep]) Encode(v Rep) ([]byte, error) { return json.Marshal(v) }
func (JSON[Rep]) Decode(b []byte) (Rep, error) {
	var v Rep
	err := json.Unmarshal(b, &v)
	return v, err
}
