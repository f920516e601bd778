// Package codec converts typed values to the payload bytes a kvstore.Value
// carries. ContentType is written as the value's type tag.
package codec

// Codec encodes/decodes values V to []byte for storage.
type Codec[V any] interface {
	Encode(V) ([]byte, error)
	Decode([]byte) (V, error)
	ContentType() string
}
