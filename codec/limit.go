package codec

import "fmt"

// LimitCodec wraps another codec and rejects payloads larger than MaxDecode
// before decoding them. Encode and ContentType are forwarded to Inner.
// If MaxDecode <= 0, size limiting is disabled.
//
// Typical use: values read from a store shared with other writers.
type LimitCodec[V any] struct {
	// Inner is the underlying codec being wrapped. It must be set.
	Inner     Codec[V]
	MaxDecode int
}

func (c LimitCodec[V]) ContentType() string        { return c.Inner.ContentType() }
func (c LimitCodec[V]) Encode(v V) ([]byte, error) { return c.Inner.Encode(v) }
func (c LimitCodec[V]) Decode(b []byte) (V, error) {
	if c.MaxDecode > 0 && len(b) > c.MaxDecode {
		var zero V
		return zero, fmt.Errorf("payload too large: %d > %d", len(b), c.MaxDecode)
	}
	return c.Inner.Decode(b)
}
