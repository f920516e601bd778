// Package wire is the record format shared by the bundled backends. The
// binary encoding is used by the byte-oriented ones (filesystem, redis,
// bigcache, ristretto); memory and sqlite keep Record values directly.
package wire

import (
	"bytes"
	"encoding/binary"
	"errors"
	"time"

	"github.com/unkn0wn-root/kvstore"
)

const (
	version    byte = 1
	kindRecord byte = 1
	kindList   byte = 2
)

var (
	ErrCorrupt = errors.New("kvstore: corrupt record")
	magic4     = [...]byte{'K', 'V', 'S', 'T'}
)

// Record is one stored version of a key.
// Creation is unix nanoseconds (0 = unset); TTL is nanoseconds (0 = never).
type Record struct {
	Creation int64
	TTL      int64
	Type     []byte
	Payload  []byte
}

const bodyFixed = 8 + 8 + 4 + 4

func hasMagic(b []byte) bool {
	return len(b) >= 4 && bytes.Equal(b[:4], magic4[:])
}

func (r Record) size() int { return bodyFixed + len(r.Type) + len(r.Payload) }

func writeBody(buf *bytes.Buffer, r Record) {
	var u8 [8]byte
	var u4 [4]byte

	binary.BigEndian.PutUint64(u8[:], uint64(r.Creation))
	buf.Write(u8[:])
	binary.BigEndian.PutUint64(u8[:], uint64(r.TTL))
	buf.Write(u8[:])

	binary.BigEndian.PutUint32(u4[:], uint32(len(r.Type)))
	buf.Write(u4[:])
	buf.Write(r.Type)

	binary.BigEndian.PutUint32(u4[:], uint32(len(r.Payload)))
	buf.Write(u4[:])
	buf.Write(r.Payload)
}

// readBody parses one record body at b[off:] and returns the offset after it.
// Type and Payload alias b.
func readBody(b []byte, off int) (Record, int, error) {
	var r Record
	if off+8+8+4 > len(b) {
		return r, 0, ErrCorrupt
	}
	r.Creation = int64(binary.BigEndian.Uint64(b[off : off+8]))
	off += 8
	r.TTL = int64(binary.BigEndian.Uint64(b[off : off+8]))
	off += 8

	tlen := int(binary.BigEndian.Uint32(b[off : off+4]))
	off += 4
	if tlen < 0 || tlen > len(b)-off {
		return r, 0, ErrCorrupt
	}
	r.Type = b[off : off+tlen]
	off += tlen

	if off+4 > len(b) {
		return r, 0, ErrCorrupt
	}
	plen := int(binary.BigEndian.Uint32(b[off : off+4]))
	off += 4
	if plen < 0 || plen > len(b)-off { // overflow-safe bound check
		return r, 0, ErrCorrupt
	}
	r.Payload = b[off : off+plen]
	off += plen
	return r, off, nil
}

// Record: magic(4) | ver(1) | kind(1=record) | creation(i64 be) | ttl(i64 be) | tlen(u32 be) | type | plen(u32 be) | payload
func EncodeRecord(r Record) []byte {
	var buf bytes.Buffer
	buf.Grow(4 + 1 + 1 + r.size())

	buf.Write(magic4[:])
	buf.WriteByte(version)
	buf.WriteByte(kindRecord)
	writeBody(&buf, r)
	return buf.Bytes()
}

func DecodeRecord(b []byte) (Record, error) {
	if len(b) < 6 || !hasMagic(b) || b[4] != version || b[5] != kindRecord {
		return Record{}, ErrCorrupt
	}
	r, off, err := readBody(b, 6)
	if err != nil {
		return Record{}, err
	}
	if off != len(b) {
		return Record{}, ErrCorrupt
	}
	return r, nil
}

// List:
//
//	magic(4) | ver(1) | kind(2=list) | n(u32 be) | body * n
func EncodeList(rs []Record) []byte {
	total := 4 + 1 + 1 + 4
	for _, r := range rs {
		total += r.size()
	}

	var buf bytes.Buffer
	buf.Grow(total)

	buf.Write(magic4[:])
	buf.WriteByte(version)
	buf.WriteByte(kindList)

	var u4 [4]byte
	binary.BigEndian.PutUint32(u4[:], uint32(len(rs)))
	buf.Write(u4[:])

	for _, r := range rs {
		writeBody(&buf, r)
	}
	return buf.Bytes()
}

func DecodeList(b []byte) ([]Record, error) {
	const hdr = 4 + 1 + 1 + 4
	if len(b) < hdr || !hasMagic(b) || b[4] != version || b[5] != kindList {
		return nil, ErrCorrupt
	}
	n := int(binary.BigEndian.Uint32(b[6:10]))
	off := hdr

	// do not trust n for preallocation
	out := make([]Record, 0, min(n, (len(b)-off)/bodyFixed))
	for i := 0; i < n; i++ {
		r, next, err := readBody(b, off)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
		off = next
	}
	if off != len(b) {
		return nil, ErrCorrupt
	}
	return out, nil
}

// FromValue snapshots v as a record. A zero creation time is stamped with now.
// The returned record aliases v's payload and type.
func FromValue(v *kvstore.Value, now time.Time) Record {
	created := v.Creation()
	if created.IsZero() {
		created = now
	}
	return Record{
		Creation: created.UnixNano(),
		TTL:      int64(v.Expiration()),
		Type:     v.Type(),
		Payload:  v.Payload(),
	}
}

// CreatedAt returns the creation time, or the zero time when unset.
func (r Record) CreatedAt() time.Time {
	if r.Creation == 0 {
		return time.Time{}
	}
	return time.Unix(0, r.Creation)
}

// Expired reports whether the record's lifetime has elapsed at now.
func (r Record) Expired(now time.Time) bool {
	if r.TTL <= 0 || r.Creation == 0 {
		return false
	}
	return !now.Before(time.Unix(0, r.Creation).Add(time.Duration(r.TTL)))
}

// Value materializes r as a new value whose bytes live in its own arena.
func (r Record) Value(a kvstore.Allocator) (*kvstore.Value, error) {
	v := kvstore.NewValue(a)
	if err := v.CopyPayload(r.Payload); err != nil {
		v.Destroy()
		return nil, err
	}
	if err := v.CopyType(r.Type); err != nil {
		v.Destroy()
		return nil, err
	}
	v.SetCreation(r.CreatedAt())
	v.SetExpiration(time.Duration(r.TTL))
	return v, nil
}

// Values materializes every record. On failure the values built so far are
// destroyed.
func Values(a kvstore.Allocator, rs []Record) ([]*kvstore.Value, error) {
	out := make([]*kvstore.Value, 0, len(rs))
	for _, r := range rs {
		v, err := r.Value(a)
		if err != nil {
			for _, done := range out {
				done.Destroy()
			}
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// Clone returns a record whose Type and Payload no longer alias the source.
func (r Record) Clone() Record {
	r.Type = bytes.Clone(r.Type)
	r.Payload = bytes.Clone(r.Payload)
	return r
}
