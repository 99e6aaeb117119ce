// Package codec serializes and deserializes replies for cache storage.
// LookasideRoute never writes or reads a bare reply value — it always goes
// through a Codec[Rep], and the result is framed by internal/wire before it
// reaches a cacheclient.Client.
package codec

// Codec encodes/decodes replies of type Rep to and from []byte for cache
// storage.
type Codec[Rep any] interface {
	Encode(Rep) ([]byte, error)
	Decode([]byte) (Rep, error)
}
