package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"fincrime_engine/internal/repository"
)

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time { return c.now }

func TestCacheStore_SetGetAndExpiry(t *testing.T) {
	clock := &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	c := NewCacheStore().WithClock(clock.Now)
	ctx := context.Background()

	if err := c.Set(ctx, "metrics:timeframe_hours=24", []byte(`{"a":1}`), 300*time.Second); err != nil {
		t.Fatalf("unexpected error on Set: %v", err)
	}

	got, err := c.Get(ctx, "metrics:timeframe_hours=24")
	if err != nil || string(got) != `{"a":1}` {
		t.Fatalf("expected cached value, got %q err=%v", got, err)
	}

	clock.now = clock.now.Add(300 * time.Second)
	if _, err := c.Get(ctx, "metrics:timeframe_hours=24"); !errors.Is(err, repository.ErrCacheMiss) {
		t.Fatalf("expected miss after expiry, got %v", err)
	}
}

func TestCacheStore_NoExpiry(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	c := NewCacheStore().WithClock(clock.Now)
	ctx := context.Background()

	_ = c.Set(ctx, "blacklist_info:ACC_0001", []byte("x"), 0)
	clock.now = clock.now.Add(365 * 24 * time.Hour)

	if _, err := c.Get(ctx, "blacklist_info:ACC_0001"); err != nil {
		t.Fatalf("expected persistent key, got %v", err)
	}
}

func TestCacheStore_ScanSkipsExpired(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	c := NewCacheStore().WithClock(clock.Now)
	ctx := context.Background()

	_ = c.Set(ctx, "risk_score:ACC_0002", []byte("1"), time.Hour)
	_ = c.Set(ctx, "risk_score:ACC_0001", []byte("1"), time.Hour)
	_ = c.Set(ctx, "risk_score:ACC_0003", []byte("1"), time.Minute)
	_ = c.Set(ctx, "patterns:max_depth=4", []byte("1"), time.Hour)
	clock.now = clock.now.Add(2 * time.Minute)

	keys, err := c.Scan(ctx, "risk_score:")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(keys) != 2 || keys[0] != "risk_score:ACC_0001" || keys[1] != "risk_score:ACC_0002" {
		t.Errorf("unexpected keys %v", keys)
	}
}

func TestCacheStore_Sets(t *testing.T) {
	c := NewCacheStore()
	ctx := context.Background()

	_ = c.SetAdd(ctx, "blacklisted_entities", "ACC_0002")
	_ = c.SetAdd(ctx, "blacklisted_entities", "ACC_0001")
	_ = c.SetAdd(ctx, "blacklisted_entities", "ACC_0002")

	members, _ := c.SetMembers(ctx, "blacklisted_entities")
	if len(members) != 2 || members[0] != "ACC_0001" {
		t.Errorf("expected two sorted members, got %v", members)
	}
	if ok, _ := c.SetIsMember(ctx, "blacklisted_entities", "ACC_0002"); !ok {
		t.Error("expected ACC_0002 to be a member")
	}
	if ok, _ := c.SetIsMember(ctx, "blacklisted_entities", "ACC_0003"); ok {
		t.Error("expected ACC_0003 not to be a member")
	}
}

func TestCacheStore_ListPushTrims(t *testing.T) {
	c := NewCacheStore()
	ctx := context.Background()

	for _, v := range []string{"a", "b", "c", "d"} {
		_ = c.ListPush(ctx, "recent_transfers", []byte(v), 3)
	}

	got, _ := c.ListRange(ctx, "recent_transfers", 0)
	if len(got) != 3 || string(got[0]) != "d" || string(got[2]) != "b" {
		t.Errorf("expected [d c b], got %q", got)
	}

	top, _ := c.ListRange(ctx, "recent_transfers", 1)
	if len(top) != 1 || string(top[0]) != "d" {
		t.Errorf("expected [d], got %q", top)
	}
}
