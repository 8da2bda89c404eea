package profile

import (
	"testing"
	"time"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestLimiter(window time.Duration) (*RateLimiter, *fakeClock) {
	clock := &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	l := NewRateLimiter(window)
	l.now = clock.Now
	return l, clock
}

func TestRateLimiter_WindowBlocksSecondWrite(t *testing.T) {
	l, clock := newTestLimiter(5 * time.Second)

	if !l.Allow("device-a") {
		t.Fatal("first write should be allowed")
	}
	clock.Advance(2 * time.Second)
	if l.Allow("device-a") {
		t.Fatal("second write inside window should be denied")
	}
	clock.Advance(3 * time.Second)
	if !l.Allow("device-a") {
		t.Fatal("write after window elapsed should be allowed")
	}
}

func TestRateLimiter_DeniedWriteDoesNotExtendWindow(t *testing.T) {
	l, clock := newTestLimiter(5 * time.Second)

	if !l.Allow("device-a") {
		t.Fatal("first write should be allowed")
	}

	// 被拒绝的请求不得刷新冷却起点，否则持续重试的客户端会被永久锁死。
	for i := 0; i < 4; i++ {
		clock.Advance(time.Second)
		if l.Allow("device-a") {
			t.Fatalf("write at +%ds should still be denied", i+1)
		}
	}
	clock.Advance(time.Second)
	if !l.Allow("device-a") {
		t.Fatal("write at +5s should be allowed despite earlier denials")
	}
}

func TestRateLimiter_EmptyTokenBypasses(t *testing.T) {
	l, _ := newTestLimiter(5 * time.Second)

	for i := 0; i < 3; i++ {
		if !l.Allow("") {
			t.Fatal("anonymous writes must not be throttled")
		}
	}
}

func TestRateLimiter_TokensAreIndependent(t *testing.T) {
	l, _ := newTestLimiter(5 * time.Second)

	if !l.Allow("device-a") {
		t.Fatal("device-a first write should be allowed")
	}
	if !l.Allow("device-b") {
		t.Fatal("device-b must not share device-a's window")
	}
	if l.Allow("device-a") {
		t.Fatal("device-a second write should be denied")
	}
}
