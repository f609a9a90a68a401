package profile

import (
	"fmt"
	"strings"
	"testing"
	"time"
)

func testToken(seed string) string {
	if len(seed) >= 24 {
		return seed
	}
	return seed + strings.Repeat("x", 24-len(seed))
}

func newTestPool(t *testing.T, limits Limits) (*TokenPool, *time.Time) {
	t.Helper()
	pool := NewTokenPool(limits)
	now := time.Unix(1700000000, 0)
	pool.now = func() time.Time { return now }
	return pool, &now
}

func TestPoolPushValidation(t *testing.T) {
	tests := []struct {
		name  string
		value string
		age   time.Duration
		want  bool
	}{
		{"valid", testToken("tok-valid"), 10 * time.Second, true},
		{"empty", "", 0, false},
		{"too short", "short", 0, false},
		{"expired at push", testToken("tok-old"), 110 * time.Second, false},
		{"age exactly ttl", testToken("tok-boundary"), DefaultLimits().TokenTTL, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pool, _ := newTestPool(t, Limits{})
			if got := pool.Push(tt.value, KindV3, "chat_submit", tt.age); got != tt.want {
				t.Fatalf("Push(%q, age=%v) = %v, want %v", tt.value, tt.age, got, tt.want)
			}
		})
	}
}

func TestPoolRejectsDuplicates(t *testing.T) {
	pool, _ := newTestPool(t, Limits{})
	value := testToken("tok-dup")
	if !pool.Push(value, KindV3, "", 0) {
		t.Fatal("first push rejected")
	}
	if pool.Push(value, KindV3, "", 5*time.Second) {
		t.Fatal("duplicate push accepted")
	}
	if got := pool.Count(); got != 1 {
		t.Fatalf("Count() = %d after duplicate push, want 1", got)
	}
}

func TestPoolPopOldestFirst(t *testing.T) {
	pool, _ := newTestPool(t, Limits{})
	// Pushed out of mint order on purpose.
	pool.Push(testToken("tok-mid"), KindV3, "", 30*time.Second)
	pool.Push(testToken("tok-oldest"), KindV3, "", 50*time.Second)
	pool.Push(testToken("tok-newest"), KindV3, "", 10*time.Second)

	order := []string{testToken("tok-oldest"), testToken("tok-mid"), testToken("tok-newest")}
	for i, want := range order {
		tok, ok := pool.Pop(KindV3)
		if !ok {
			t.Fatalf("pop %d: no token", i)
		}
		if tok.Value != want {
			t.Fatalf("pop %d = %q, want %q", i, tok.Value, want)
		}
	}
}

func TestPoolNeverReturnsExpired(t *testing.T) {
	pool, now := newTestPool(t, Limits{})
	pool.Push(testToken("tok-a"), KindV3, "", 0)

	*now = now.Add(DefaultLimits().TokenTTL - time.Second)
	if got := pool.Count(); got != 1 {
		t.Fatalf("Count() = %d just before expiry, want 1", got)
	}

	*now = now.Add(time.Second)
	if got := pool.Count(); got != 0 {
		t.Fatalf("Count() = %d at exact TTL age, want 0", got)
	}
	if _, ok := pool.Pop(KindV3); ok {
		t.Fatal("Pop returned a token at exact TTL age")
	}
}

func TestPoolCapacityEvictsOldest(t *testing.T) {
	pool, _ := newTestPool(t, Limits{Capacity: 3})
	for i, age := range []time.Duration{40 * time.Second, 30 * time.Second, 20 * time.Second, 10 * time.Second} {
		if !pool.Push(testToken(fmt.Sprintf("tok-%d", i)), KindV3, "", age) {
			t.Fatalf("push %d rejected", i)
		}
	}
	if got := pool.Count(); got != 3 {
		t.Fatalf("Count() = %d, want capacity 3", got)
	}
	tok, ok := pool.Pop(KindV3)
	if !ok {
		t.Fatal("pop failed")
	}
	// tok-0 (oldest) was evicted, so the oldest survivor is tok-1.
	if want := testToken("tok-1"); tok.Value != want {
		t.Fatalf("oldest survivor = %q, want %q", tok.Value, want)
	}
}

func TestPoolV2SlotReplaceAndOneShot(t *testing.T) {
	pool, _ := newTestPool(t, Limits{})
	if !pool.Push(testToken("v2-first"), KindV2, "", 0) {
		t.Fatal("v2 push rejected")
	}
	if !pool.Push(testToken("v2-second"), KindV2, "", 0) {
		t.Fatal("v2 replacement push rejected")
	}

	tok, ok := pool.Pop(KindV2)
	if !ok {
		t.Fatal("v2 pop failed")
	}
	if want := testToken("v2-second"); tok.Value != want {
		t.Fatalf("v2 pop = %q, want newest %q", tok.Value, want)
	}
	if _, ok = pool.Pop(KindV2); ok {
		t.Fatal("v2 slot not cleared after pop")
	}
}

func TestPoolV2ExpiredSlotCleared(t *testing.T) {
	pool, now := newTestPool(t, Limits{})
	pool.Push(testToken("v2-stale"), KindV2, "", 0)
	*now = now.Add(DefaultLimits().TokenTTL)

	if pool.HasValidV2() {
		t.Fatal("HasValidV2() = true for expired slot")
	}
	if _, ok := pool.Pop(KindV2); ok {
		t.Fatal("expired v2 token returned")
	}

	// The slot must be free for a fresh token afterwards.
	if !pool.Push(testToken("v2-fresh"), KindV2, "", 0) {
		t.Fatal("fresh v2 push rejected after expiry")
	}
	if !pool.HasValidV2() {
		t.Fatal("HasValidV2() = false after fresh push")
	}
}

func TestPoolConsecutiveEmptyCounter(t *testing.T) {
	pool, _ := newTestPool(t, Limits{})
	pool.Pop(KindV3)
	pool.Pop(KindV3)
	if got := pool.ConsecutiveEmpty(); got != 2 {
		t.Fatalf("ConsecutiveEmpty() = %d, want 2", got)
	}

	pool.Push(testToken("tok-reset"), KindV3, "", 0)
	if _, ok := pool.Pop(KindV3); !ok {
		t.Fatal("pop failed")
	}
	if got := pool.ConsecutiveEmpty(); got != 0 {
		t.Fatalf("ConsecutiveEmpty() = %d after successful pop, want 0", got)
	}
}

func TestPoolCountIsPure(t *testing.T) {
	pool, now := newTestPool(t, Limits{})
	pool.Push(testToken("tok-a"), KindV3, "", 0)
	pool.Push(testToken("tok-b"), KindV3, "", 0)
	*now = now.Add(DefaultLimits().TokenTTL)

	if got := pool.Count(); got != 0 {
		t.Fatalf("Count() = %d, want 0 once expired", got)
	}
	if got := len(pool.v3); got != 2 {
		t.Fatalf("Count() purged entries, len = %d, want 2", got)
	}
	if got := pool.ConsecutiveEmpty(); got != 0 {
		t.Fatalf("Count() touched consecutiveEmpty, got %d", got)
	}

	if removed := pool.Purge(); removed != 2 {
		t.Fatalf("Purge() = %d, want 2", removed)
	}
	if got := len(pool.v3); got != 0 {
		t.Fatalf("len after Purge = %d, want 0", got)
	}
}
