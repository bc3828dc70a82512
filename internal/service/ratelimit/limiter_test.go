package ratelimit

import (
	"testing"
	"time"
)

func TestLimiterSlidingWindow(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	l := New(3, time.Minute, WithClock(func() time.Time { return now }))

	for i := 0; i < 3; i++ {
		if ok, _ := l.Allow("k"); !ok {
			t.Fatalf("request %d should be allowed", i)
		}
		now = now.Add(10 * time.Second)
	}

	ok, reset := l.Allow("k")
	if ok {
		t.Fatalf("fourth request should be rejected")
	}
	want := time.Date(2024, 3, 1, 12, 1, 0, 0, time.UTC)
	if !reset.Equal(want) {
		t.Fatalf("reset = %v, want %v", reset, want)
	}

	now = want.Add(time.Millisecond)
	if ok, _ := l.Allow("k"); !ok {
		t.Fatalf("request after oldest hit expired should pass")
	}
	if l.Remaining("k") != 0 {
		t.Fatalf("expected window full again, remaining=%d", l.Remaining("k"))
	}
}

func TestLimiterKeysAreIndependent(t *testing.T) {
	l := New(1, time.Minute)
	if ok, _ := l.Allow("a"); !ok {
		t.Fatalf("a should pass")
	}
	if ok, _ := l.Allow("b"); !ok {
		t.Fatalf("b should pass")
	}
	if ok, _ := l.Allow("a"); ok {
		t.Fatalf("a should be limited")
	}
}
