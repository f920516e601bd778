package wire

import (
	"bytes"
	"encoding/binary"
	"math"
	"testing"
	"time"

	"github.com/unkn0wn-root/kvstore"
)

func mustDecodeRecord(t *testing.T, b []byte) Record {
	t.Helper()
	r, err := DecodeRecord(b)
	if err != nil {
		t.Fatalf("DecodeRecord error: %v", err)
	}
	return r
}

func TestRecordRTEmptyAndNonEmpty(t *testing.T) {
	cases := []Record{
		{},
		{Creation: 42, TTL: int64(time.Second), Type: []byte("text/plain"), Payload: []byte("hello")},
		{Creation: math.MaxInt64, Payload: []byte{0, 1, 2, 3, 4}},
	}
	for _, tc := range cases {
		got := mustDecodeRecord(t, EncodeRecord(tc))
		if got.Creation != tc.Creation || got.TTL != tc.TTL {
			t.Fatalf("scalar mismatch: got %+v want %+v", got, tc)
		}
		if !bytes.Equal(got.Type, tc.Type) || !bytes.Equal(got.Payload, tc.Payload) {
			t.Fatalf("bytes mismatch: got %+v want %+v", got, tc)
		}
	}
}

func TestRecordRejectsTrailingBytes(t *testing.T) {
	enc := EncodeRecord(Record{Payload: []byte("x")})
	enc = append(enc, 0xDE, 0xAD)
	if _, err := DecodeRecord(enc); err == nil {
		t.Fatalf("expected error on trailing bytes")
	}
}

func TestRecordCorruptHeadersAndLengths(t *testing.T) {
	enc := EncodeRecord(Record{Creation: 1, Type: []byte("t"), Payload: []byte("abc")})

	badMagic := append([]byte(nil), enc...)
	badMagic[0] = 'X'
	if _, err := DecodeRecord(badMagic); err == nil {
		t.Fatalf("expected error on bad magic")
	}

	badVer := append([]byte(nil), enc...)
	badVer[4] = version + 1
	if _, err := DecodeRecord(badVer); err == nil {
		t.Fatalf("expected error on bad version")
	}

	badKind := append([]byte(nil), enc...)
	badKind[5] = kindList
	if _, err := DecodeRecord(badKind); err == nil {
		t.Fatalf("expected error on bad kind")
	}

	// plen sits after magic(4)+ver(1)+kind(1)+creation(8)+ttl(8)+tlen(4)+type(1)
	tooLong := append([]byte(nil), enc...)
	binary.BigEndian.PutUint32(tooLong[27:31], uint32(len("abc")+1))
	if _, err := DecodeRecord(tooLong); err == nil {
		t.Fatalf("expected error on plen beyond buffer")
	}

	if _, err := DecodeRecord(enc[:len(enc)-1]); err == nil {
		t.Fatalf("expected error on truncated buffer")
	}
}

func TestRecordZeroCopyPayload(t *testing.T) {
	enc := EncodeRecord(Record{Payload: []byte("Z")})
	r := mustDecodeRecord(t, enc)
	r.Payload[0] = 'Q'
	if mustDecodeRecord(t, enc).Payload[0] != 'Q' {
		t.Fatalf("expected zero-copy slice into enc buffer")
	}
}

func TestListRoundTrip(t *testing.T) {
	cases := [][]Record{
		nil,
		{{Creation: 1, Payload: []byte("x")}},
		{
			{Creation: 1, Payload: []byte("old")},
			{Creation: 2, Type: []byte("t"), Payload: nil},
			{Creation: 3, TTL: 5, Payload: []byte{9, 8, 7}},
		},
	}
	for _, rs := range cases {
		got, err := DecodeList(EncodeList(rs))
		if err != nil {
			t.Fatalf("DecodeList: %v", err)
		}
		if len(got) != len(rs) {
			t.Fatalf("len mismatch: got %d want %d", len(got), len(rs))
		}
		for i := range rs {
			if got[i].Creation != rs[i].Creation || got[i].TTL != rs[i].TTL ||
				!bytes.Equal(got[i].Payload, rs[i].Payload) || !bytes.Equal(got[i].Type, rs[i].Type) {
				t.Fatalf("record %d mismatch: got=%+v want=%+v", i, got[i], rs[i])
			}
		}
	}
}

func TestListFakeCountNotTrusted(t *testing.T) {
	var buf bytes.Buffer
	buf.Write(magic4[:])
	buf.WriteByte(version)
	buf.WriteByte(kindList)
	var u4 [4]byte
	binary.BigEndian.PutUint32(u4[:], math.MaxUint32)
	buf.Write(u4[:])
	if _, err := DecodeList(buf.Bytes()); err == nil {
		t.Fatalf("expected error on announced count without bodies")
	}
}

func TestListRejectsTrailingBytes(t *testing.T) {
	enc := EncodeList([]Record{{Payload: []byte("v")}})
	enc = append(enc, 0xBE, 0xEF)
	if _, err := DecodeList(enc); err == nil {
		t.Fatalf("expected error on trailing bytes")
	}
}

func TestRecordExpired(t *testing.T) {
	now := time.Unix(100, 0)
	r := Record{Creation: time.Unix(90, 0).UnixNano(), TTL: int64(10 * time.Second)}
	if !r.Expired(now) {
		t.Fatalf("record created at 90 with 10s ttl should be expired at 100")
	}
	if r.Expired(now.Add(-time.Nanosecond)) {
		t.Fatalf("record should still be live just before expiry")
	}
	if (Record{Creation: 1}).Expired(now) {
		t.Fatalf("zero ttl never expires")
	}
}

func TestValueConversionCopies(t *testing.T) {
	created := time.Unix(0, 12345)
	src := kvstore.NewValue(nil)
	src.SetPayload([]byte("payload"))
	src.SetType([]byte("type"))
	src.SetCreation(created)
	src.SetExpiration(time.Minute)

	enc := EncodeRecord(FromValue(src, time.Now()))
	r := mustDecodeRecord(t, enc)
	v, err := r.Value(nil)
	if err != nil {
		t.Fatalf("Value: %v", err)
	}
	defer v.Destroy()

	// the value must not alias the encoded buffer
	for i := range enc {
		enc[i] = 0
	}
	if string(v.Payload()) != "payload" || string(v.Type()) != "type" {
		t.Fatalf("value aliased decode buffer: payload=%q type=%q", v.Payload(), v.Type())
	}
	if !v.Creation().Equal(created) || v.Expiration() != time.Minute {
		t.Fatalf("scalars not carried: creation=%v exp=%v", v.Creation(), v.Expiration())
	}
}

func TestFromValueStampsZeroCreation(t *testing.T) {
	now := time.Unix(7, 0)
	r := FromValue(kvstore.NewValue(nil), now)
	if r.Creation != now.UnixNano() {
		t.Fatalf("creation = %d, want %d", r.Creation, now.UnixNano())
	}
}
