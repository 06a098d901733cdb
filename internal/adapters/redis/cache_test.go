package redisad_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	redisad "wanderlust/internal/adapters/redis"
	"wanderlust/internal/domain"
)

func newCache(t *testing.T) (*redisad.Cache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	c := redisad.New(mr.Addr(), "", 0)
	t.Cleanup(func() { _ = c.Close() })
	return c, mr
}

func TestCache_SetGetDel(t *testing.T) {
	ctx := context.Background()
	c, mr := newCache(t)

	in := domain.ListingDetail{
		Listing:    domain.Listing{ID: "abc", Title: "Cabin", Price: 100, Reviews: []string{"r1"}},
		ReviewDocs: []domain.Review{{ID: "r1", Rating: 5, Comment: "Great"}},
	}
	if err := c.Set(ctx, "listing:abc", in, 60); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if ttl := mr.TTL("listing:abc"); ttl != 60*time.Second {
		t.Fatalf("ttl = %v", ttl)
	}

	var out domain.ListingDetail
	ok, err := c.Get(ctx, "listing:abc", &out)
	if err != nil || !ok {
		t.Fatalf("Get: ok=%v err=%v", ok, err)
	}
	if out.Title != "Cabin" || len(out.ReviewDocs) != 1 || out.ReviewDocs[0].Rating != 5 {
		t.Fatalf("unexpected value: %+v", out)
	}

	if err := c.Del(ctx, "listing:abc"); err != nil {
		t.Fatalf("Del: %v", err)
	}
	ok, err = c.Get(ctx, "listing:abc", &out)
	if err != nil || ok {
		t.Fatalf("expected miss after Del, ok=%v err=%v", ok, err)
	}
}

func TestCache_ExpiredEntryIsMiss(t *testing.T) {
	ctx := context.Background()
	c, mr := newCache(t)
	_ = c.Set(ctx, "k", map[string]int{"a": 1}, 1)
	mr.FastForward(2 * time.Second)

	var out map[string]int
	if ok, _ := c.Get(ctx, "k", &out); ok {
		t.Fatalf("expected expired entry to miss")
	}
}

func TestCache_CorruptEntryIsDropped(t *testing.T) {
	ctx := context.Background()
	c, mr := newCache(t)
	if err := mr.Set("k", "{not json"); err != nil {
		t.Fatalf("seed: %v", err)
	}
	var out map[string]int
	ok, err := c.Get(ctx, "k", &out)
	if err != nil || ok {
		t.Fatalf("ok=%v err=%v", ok, err)
	}
	if mr.Exists("k") {
		t.Fatalf("corrupt entry should be deleted")
	}
}

func TestCache_PingFailsWhenServerGone(t *testing.T) {
	c, mr := newCache(t)
	if err := c.Ping(context.Background()); err != nil {
		t.Fatalf("Ping: %v", err)
	}
	mr.Close()
	if err := c.Ping(context.Background()); err == nil {
		t.Fatalf("expected ping error after close")
	}
}
