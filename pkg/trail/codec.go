package trail

import (
	"fmt"
	"strings"

	"github.com/klauspost/compress/s2"
)

// Codec packs completed trail blocks. Unpack(Pack(b)) must return b
// byte for byte.
type Codec interface {
	Pack(dst, src []byte) []byte
	Unpack(dst, src []byte) ([]byte, error)
}

// NoopCodec stores blocks as a plain copy of their encoded entries.
type NoopCodec struct{}

func (NoopCodec) Pack(dst, src []byte) []byte {
	return append(dst[:0], src...)
}

func (NoopCodec) Unpack(dst, src []byte) ([]byte, error) {
	return append(dst[:0], src...), nil
}

// S2Codec compresses blocks with S2, a snappy-compatible block format
// tuned for speed.
type S2Codec struct{}

func (S2Codec) Pack(dst, src []byte) []byte {
	return s2.Encode(dst[:cap(dst)], src)
}

func (S2Codec) Unpack(dst, src []byte) ([]byte, error) {
	return s2.Decode(dst[:cap(dst)], src)
}

// CodecByName resolves the codec names accepted in solver parameters.
// "none" returns a nil Codec, meaning blocks are never packed.
func CodecByName(name string) (Codec, error) {
	switch strings.ToLower(name) {
	case "", "none":
		return nil, nil
	case "noop":
		return NoopCodec{}, nil
	case "s2":
		return S2Codec{}, nil
	}
	return nil, fmt.Errorf("unknown trail codec %q (valid: none, noop, s2)", name)
}
