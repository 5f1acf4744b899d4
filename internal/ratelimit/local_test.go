package ratelimit

import (
	"context"
	"testing"
	"time"
)

func TestLocalLimiterAllowsUpToBurstThenDenies(t *testing.T) {
	l := NewLocalLimiter("test", Rule{MaxRequests: 1, Window: time.Second, Burst: 2})
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		d, err := l.Allow(ctx, "agent-1")
		if err != nil {
			t.Fatalf("Allow() error = %v", err)
		}
		if !d.Allowed {
			t.Fatalf("request %d should be allowed within burst", i)
		}
	}

	d, err := l.Allow(ctx, "agent-1")
	if err != nil {
		t.Fatalf("Allow() error = %v", err)
	}
	if d.Allowed {
		t.Fatalf("expected request past burst capacity to be denied")
	}
	if d.Reason != "test" {
		t.Fatalf("Reason = %q, want %q", d.Reason, "test")
	}
}

func TestLocalLimiterTracksKeysIndependently(t *testing.T) {
	l := NewLocalLimiter("test", Rule{MaxRequests: 1, Window: time.Second, Burst: 1})
	ctx := context.Background()

	d1, _ := l.Allow(ctx, "agent-1")
	d2, _ := l.Allow(ctx, "agent-2")
	if !d1.Allowed || !d2.Allowed {
		t.Fatalf("expected independent keys to each get their own bucket: %+v %+v", d1, d2)
	}
}

func TestLocalLimiterResetClearsBuckets(t *testing.T) {
	l := NewLocalLimiter("test", Rule{MaxRequests: 1, Window: time.Second, Burst: 1})
	ctx := context.Background()

	l.Allow(ctx, "agent-1")
	d, _ := l.Allow(ctx, "agent-1")
	if d.Allowed {
		t.Fatalf("expected second request to be denied before reset")
	}

	l.Reset()
	d, _ = l.Allow(ctx, "agent-1")
	if !d.Allowed {
		t.Fatalf("expected request to be allowed after Reset")
	}
}
