// Package wire frames a serialized reply before it is handed to the cache
// client, and unframes it on the way back. The envelope exists so a foreign
// or corrupt value under a lookaside key is detected and self-healed rather
// than handed to the codec as if it were a real reply.
package wire

import (
	"bytes"
	"encoding/binary"
	"errors"
)

const version byte = 1

var (
	// ErrCorrupt is returned for any envelope that is truncated, carries the
	// wrong magic/version, or has an internal length that does not fit the
	// remaining bytes.
	ErrCorrupt = errors.New("lookaside: corrupt cache entry")
	magic4     = [...]byte{'L', 'A', 'S', 'D'}
)

func hasMagic(b []byte) bool {
	return len(b) >= 4 && bytes.Equal(b[:4], magic4[:])
}

// Encode wraps a codec-produced payload in the envelope:
//
//	magic(4) | ver(1) | len(4, be) | payload(len)
func Encode(payload []byte) []byte {
	var buf bytes.Buffer
	buf.Grow(4 + 1 + 4 + len(payload))

	buf.Write(magic4[:])
	buf.WriteByte(version)

	var u4 [4]byte
	binary.BigEndian.PutUint32(u4[:], uint32(len(payload)))
	buf.Write(u4[:])

	buf.Write(payload)
	return buf.Bytes()
}

// Decode reverses Encode. It returns ErrCorrupt for anything that is not a
// well-formed envelope of exactly the expected length.
func Decode(b []byte) ([]byte, error) {
	const hdr = 4 + 1 + 4
	if len(b) < hdr || !hasMagic(b) || b[4] != version {
		return nil, ErrCorrupt
	}

	plen := int(binary.BigEndian.Uint32(b[5:9]))
	if plen < 0 || plen != len(b)-hdr {
		return nil, ErrCorrupt
	}
	return b[hdr:], nil
}
