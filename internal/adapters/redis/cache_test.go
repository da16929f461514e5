package redisad_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/paulmach/orb"
	"github.com/redis/go-redis/v9"

	redisad "coffeemap/internal/adapters/redis"
	"coffeemap/internal/domain"
)

func newCache(t *testing.T) (*redisad.Cache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	c := redisad.NewFromClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { _ = c.Close() })
	return c, mr
}

func TestCache_RoundTripShop(t *testing.T) {
	c, _ := newCache(t)
	ctx := context.Background()

	rating := 4.6
	in := domain.CoffeeShop{ID: 7, Name: "Kaph", Address: "31 Drury Street", Area: "City Centre",
		Location: orb.Point{-6.2638, 53.3418}, Rating: &rating, WiFi: true}

	if err := c.Set(ctx, "shop:7", in, 60); err != nil {
		t.Fatalf("set: %v", err)
	}
	var out domain.CoffeeShop
	ok, err := c.Get(ctx, "shop:7", &out)
	if err != nil || !ok {
		t.Fatalf("get: ok=%v err=%v", ok, err)
	}
	if out.ID != 7 || out.Location != in.Location || out.Rating == nil || *out.Rating != 4.6 || !out.WiFi {
		t.Fatalf("round-trip mismatch: %+v", out)
	}
}

func TestCache_MissAndDelete(t *testing.T) {
	c, _ := newCache(t)
	ctx := context.Background()

	var out []domain.CoffeeShop
	if ok, err := c.Get(ctx, "shops:all", &out); ok || err != nil {
		t.Fatalf("expected clean miss, got ok=%v err=%v", ok, err)
	}

	_ = c.Set(ctx, "shops:all", []domain.CoffeeShop{{ID: 1}}, 60)
	if err := c.Del(ctx, "shops:all"); err != nil {
		t.Fatalf("del: %v", err)
	}
	if ok, _ := c.Get(ctx, "shops:all", &out); ok {
		t.Fatalf("expected miss after delete")
	}
}

func TestCache_TTLExpiry(t *testing.T) {
	c, mr := newCache(t)
	ctx := context.Background()

	_ = c.Set(ctx, "shop:1", domain.CoffeeShop{ID: 1}, 30)
	if !mr.Exists("coffeemap:shop:1") {
		t.Fatalf("expected prefixed key in redis, keys=%v", mr.Keys())
	}
	mr.FastForward(31 * time.Second)

	var out domain.CoffeeShop
	if ok, _ := c.Get(ctx, "shop:1", &out); ok {
		t.Fatalf("expected key to expire")
	}
}

func TestCache_CorruptValueIsMiss(t *testing.T) {
	c, mr := newCache(t)
	_ = mr.Set("coffeemap:shop:9", "{not json")

	var out domain.CoffeeShop
	ok, err := c.Get(context.Background(), "shop:9", &out)
	if ok || err == nil {
		t.Fatalf("expected miss with decode error, got ok=%v err=%v", ok, err)
	}
}
