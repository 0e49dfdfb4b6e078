package poscache

import (
	"context"
	"fmt"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

const startFEN = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"

func newTestCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	c := NewWithClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { c.Close() })
	return c, mr
}

func TestPutGetRoundTrip(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	if _, ok := c.Get(ctx, "g1", 0); ok {
		t.Fatal("expected miss on empty cache")
	}
	c.Put(ctx, "g1", 0, startFEN)
	fen, ok := c.Get(ctx, "g1", 0)
	if !ok || fen != startFEN {
		t.Fatalf("got %q, %v", fen, ok)
	}
}

func TestPliesKeepEntriesApart(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	c.Put(ctx, "g1", 0, startFEN)
	c.Put(ctx, "g1", 1, "after-first-move")

	if fen, ok := c.Get(ctx, "g1", 1); !ok || fen != "after-first-move" {
		t.Fatalf("got %q, %v", fen, ok)
	}
	if fen, ok := c.Get(ctx, "g1", 0); !ok || fen != startFEN {
		t.Fatalf("got %q, %v", fen, ok)
	}
	if _, ok := c.Get(ctx, "g1", 2); ok {
		t.Fatal("expected miss for unseen ply count")
	}
	if _, ok := c.Get(ctx, "g2", 0); ok {
		t.Fatal("expected miss for other game")
	}
}

func TestEntriesExpire(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	c.Put(ctx, "g1", 4, startFEN)
	mr.FastForward(defaultTTL + 1)
	if _, ok := c.Get(ctx, "g1", 4); ok {
		t.Fatal("expected entry to expire")
	}
}

func TestNilCacheIsInert(t *testing.T) {
	var c *Cache
	ctx := context.Background()

	c.Put(ctx, "g1", 0, startFEN)
	if _, ok := c.Get(ctx, "g1", 0); ok {
		t.Fatal("nil cache must always miss")
	}
	if err := c.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
}

func TestNewRejectsBadURLs(t *testing.T) {
	for _, raw := range []string{"", "http://localhost:6379", "://broken"} {
		if _, err := New(raw); err == nil {
			t.Fatalf("expected error for %q", raw)
		}
	}
}

func TestParseRedisURL(t *testing.T) {
	opts, err := parseRedisURL("redis://user:pw@localhost:6379/3")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if opts.Addr != "localhost:6379" || opts.Username != "user" || opts.Password != "pw" || opts.DB != 3 {
		t.Fatalf("got %+v", opts)
	}
	opts, err = parseRedisURL(fmt.Sprintf("rediss://%s", "example.com:6380"))
	if err != nil {
		t.Fatalf("parse tls: %v", err)
	}
	if opts.TLSConfig == nil {
		t.Fatal("expected TLS config for rediss scheme")
	}
}
