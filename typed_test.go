package kvstore

import (
	"context"
	"errors"
	"testing"
	"time"

	c "github.com/unkn0wn-root/kvstore/codec"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

type user struct {
	ID   string `json:"id" msgpack:"id" cbor:"id"`
	Name string `json:"name" msgpack:"name" cbor:"name"`
}

func typedRoundTrip(t *testing.T, codec c.Codec[user]) {
	t.Helper()
	ctx := context.Background()
	s, fb, _, _ := newTestStore(t, Options{})
	tv := NewTyped(s, codec)

	in := user{ID: "1", Name: "Ada"}
	if err := tv.Set(ctx, "u:1", in, time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if got := fb.data["u:1"][0].typ; got != codec.ContentType() {
		t.Fatalf("type tag = %q, want %q", got, codec.ContentType())
	}
	out, err := tv.Get(ctx, "u:1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if out != in {
		t.Fatalf("got %+v, want %+v", out, in)
	}
}

func TestTypedJSON(t *testing.T)    { typedRoundTrip(t, c.JSON[user]{}) }
func TestTypedMsgpack(t *testing.T) { typedRoundTrip(t, c.Msgpack[user]{}) }
func TestTypedCBOR(t *testing.T)    { typedRoundTrip(t, c.MustCBOR[user](true)) }

func TestTypedProtobuf(t *testing.T) {
	ctx := context.Background()
	s, _, _, _ := newTestStore(t, Options{})
	tv := NewTyped[*wrapperspb.StringValue](s, c.NewProtobuf(func() *wrapperspb.StringValue { return &wrapperspb.StringValue{} }))

	if err := tv.Set(ctx, "greeting", wrapperspb.String("hello"), 0); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, err := tv.Get(ctx, "greeting")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.GetValue() != "hello" {
		t.Fatalf("value = %q", got.GetValue())
	}
}

func TestTypedTypeMismatch(t *testing.T) {
	ctx := context.Background()
	s, _, _, _ := newTestStore(t, Options{})
	if err := NewTyped[user](s, c.JSON[user]{}).Set(ctx, "k", user{ID: "1"}, 0); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if _, err := NewTyped[user](s, c.Msgpack[user]{}).Get(ctx, "k"); !errors.Is(err, ErrTypeMismatch) {
		t.Fatalf("err = %v, want ErrTypeMismatch", err)
	}
}

func TestTypedUntaggedAccepted(t *testing.T) {
	ctx := context.Background()
	s, fb, _, _ := newTestStore(t, Options{})
	fb.data["k"] = []rec{{payload: "plain"}}
	got, err := NewTyped[string](s, c.String{}).Get(ctx, "k")
	if err != nil || got != "plain" {
		t.Fatalf("got %q, %v", got, err)
	}
}

func TestTypedWithMerge(t *testing.T) {
	ctx := context.Background()
	s, fb, _, _ := newTestStore(t, Options{})
	tv := NewTyped[string](s, c.String{}).WithMerge(LastWins)
	for _, v := range []string{"a", "b"} {
		if err := tv.Set(ctx, "k", v, 0); err != nil {
			t.Fatalf("Set: %v", err)
		}
	}
	if fb.lastMerge == nil {
		t.Fatalf("policy not passed to backend")
	}
	got, err := tv.Get(ctx, "k")
	if err != nil || got != "b" {
		t.Fatalf("got %q, %v", got, err)
	}
	if err := tv.Remove(ctx, "k"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if _, err := tv.Get(ctx, "k"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v", err)
	}
}

func TestTypedLimitCodec(t *testing.T) {
	ctx := context.Background()
	s, _, _, _ := newTestStore(t, Options{})
	tv := NewTyped[string](s, c.LimitCodec[string]{Inner: c.String{}, MaxDecode: 3})
	if err := tv.Set(ctx, "k", "too long", 0); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if _, err := tv.Get(ctx, "k"); err == nil {
		t.Fatalf("expected decode limit error")
	}
}
