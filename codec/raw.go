package codec

// Bytes stores []byte payloads unchanged.
type Bytes struct{}

func (Bytes) ContentType() string             { return "application/octet-stream" }
func (Bytes) Encode(b []byte) ([]byte, error) { return b, nil }
func (Bytes) Decode(b []byte) ([]byte, error) { return b, nil }

// String stores Go strings as their UTF-8 bytes. No validation is done.
type String struct{}

func (String) ContentType() string             { return "text/plain; charset=utf-8" }
func (String) Encode(s string) ([]byte, error) { return []byte(s), nil }
func (String) Decode(b []byte) (string, error) { return string(b), nil }
