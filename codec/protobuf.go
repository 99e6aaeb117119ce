package codec

import "google.golang.org/protobuf/proto"

// Protobuf is a Codec that serializes replies with protocol buffers. Rep
// must be a proto.Message; since Decode needs a fresh instance to unmarshal
// into, construct with NewProtobuf and a constructor for that concrete
// message type (e.g. func() *userpb.User { return &userpb.User{} }).
type Protobuf[Rep proto.Message] struct {
	new func() Rep
}

func NewProtobuf[Rep proto.Message](ctor func() Rep) Protobuf[Rep] {
	return Protobuf[Rep]{new: ctor}
}

func (c Protobuf[Rep]) Encode(v Rep) ([]byte, error) {
	return proto.Marshal(v)
}
func (c Protobuf[Rep]) Decode(b []byte) (Rep, error) {
	m := c.new()
	err := proto.Unmarshal(b, m)
	return m, err
}
