package codec

import (
	"bytes"

	"github.com/vmihailenco/msgpack/v5"
)

// Msgpack encodes values with vmihailenco/msgpack/v5. The zero value uses
// `msgpack` struct tags; set Tag to "json" to reuse existing json tags.
type Msgpack[V any] struct {
	Tag string
}

func (Msgpack[V]) ContentType() string { return "application/msgpack" }

func (c Msgpack[V]) Encode(v V) ([]byte, error) {
	if c.Tag == "" {
		return msgpack.Marshal(v)
	}
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetCustomStructTag(c.Tag)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (c Msgpack[V]) Decode(b []byte) (V, error) {
	var v V
	if c.Tag == "" {
		err := msgpack.Unmarshal(b, &v)
		return v, err
	}
	dec := msgpack.NewDecoder(bytes.NewReader(b))
	dec.SetCustomStructTag(c.Tag)
	err := dec.Decode(&v)
	return v, err
}
