package redis

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/unkn0wn-root/kvstore"
)

// Integration tests run only against a real server:
//
//	KVSTORE_REDIS_ADDR=localhost:6379 go test ./backend/redis/
func newTestStore(t *testing.T, mode kvstore.ConflictMode, merge kvstore.MergePolicy) (*kvstore.Store, *Backend) {
	t.Helper()
	addr := os.Getenv("KVSTORE_REDIS_ADDR")
	if addr == "" {
		t.Skip("KVSTORE_REDIS_ADDR not set")
	}
	client := goredis.NewClient(&goredis.Options{Addr: addr})
	b, err := New(Config{
		Client:      client,
		CloseClient: true,
		Namespace:   "kvstore-test:" + t.Name(),
		Mode:        mode,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	s, err := kvstore.New(kvstore.Options{Backend: b, Merge: merge})
	if err != nil {
		t.Fatalf("kvstore.New: %v", err)
	}
	ctx := context.Background()
	if err := s.Connect(ctx); err != nil {
		t.Skipf("redis unavailable: %v", err)
	}
	t.Cleanup(func() {
		_ = s.Remove(ctx, kvstore.Key("k"))
		_ = s.Close(ctx)
	})
	return s, b
}

func put(t *testing.T, s *kvstore.Store, payload string) {
	t.Helper()
	v := s.NewValue()
	defer v.Destroy()
	v.SetPayload([]byte(payload))
	v.SetCreation(time.Now())
	if err := s.Set(context.Background(), nil, kvstore.Key("k"), v); err != nil {
		t.Fatalf("Set: %v", err)
	}
}

func TestNewNilClient(t *testing.T) {
	if _, err := New(Config{}); !errors.Is(err, ErrNilClient) {
		t.Fatalf("err = %v, want ErrNilClient", err)
	}
}

func TestNamespacedKey(t *testing.T) {
	b, err := New(Config{Client: goredis.NewClient(&goredis.Options{Addr: "127.0.0.1:0"})})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer b.rdb.Close()
	if got := b.key(kvstore.Key("user:1")); got != "kv:user:1" {
		t.Fatalf("key = %q", got)
	}
}

func TestReadModeRoundTrip(t *testing.T) {
	var seen int
	s, _ := newTestStore(t, kvstore.MergeOnRead, func(k kvstore.Key, c []*kvstore.Value) (*kvstore.Value, error) {
		seen = len(c)
		return kvstore.LastWins(k, c)
	})
	ctx := context.Background()
	if _, err := s.Get(ctx, nil, kvstore.Key("k")); !errors.Is(err, kvstore.ErrNotFound) {
		t.Fatalf("Get empty: %v", err)
	}
	put(t, s, "a")
	put(t, s, "b")

	v, err := s.Get(ctx, nil, kvstore.Key("k"))
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	defer v.Destroy()
	if seen != 2 || string(v.Payload()) != "b" {
		t.Fatalf("seen=%d payload=%q", seen, v.Payload())
	}
}

func TestWriteModeSingleVersion(t *testing.T) {
	s, b := newTestStore(t, kvstore.MergeOnWrite, kvstore.LastWins)
	put(t, s, "a")
	put(t, s, "b")

	n, err := b.rdb.LLen(context.Background(), b.key(kvstore.Key("k"))).Result()
	if err != nil {
		t.Fatalf("LLen: %v", err)
	}
	if n != 1 {
		t.Fatalf("list length = %d, want 1", n)
	}
}

func TestCorruptEntrySelfHeals(t *testing.T) {
	s, b := newTestStore(t, kvstore.MergeOnRead, nil)
	ctx := context.Background()
	if err := b.rdb.RPush(ctx, b.key(kvstore.Key("k")), "garbage").Err(); err != nil {
		t.Fatalf("RPush: %v", err)
	}
	put(t, s, "good")

	v, err := s.Get(ctx, nil, kvstore.Key("k"))
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	defer v.Destroy()
	if string(v.Payload()) != "good" {
		t.Fatalf("payload = %q", v.Payload())
	}
	if n, _ := b.rdb.LLen(ctx, b.key(kvstore.Key("k"))).Result(); n != 1 {
		t.Fatalf("corrupt entry not removed, len=%d", n)
	}
}
