package ratelimit

import (
	"context"
	"testing"
	"time"

	"voicedesk_backend/platform/logger"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

type limiterConfig struct {
	window   time.Duration
	max      int
	failOpen bool
}

func (c limiterConfig) GetRejectedCallIDPrefix() string        { return "webcall:" }
func (c limiterConfig) GetStartRateLimitWindow() time.Duration { return c.window }
func (c limiterConfig) GetStartRateLimitMax() int              { return c.max }
func (c limiterConfig) GetStartRateLimitFailOpen() bool        { return c.failOpen }

func newTestLimiter(t *testing.T, cfg limiterConfig) (*StartLimiter, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewStartLimiter(rdb, cfg, logger.New("development")), mr
}

func TestStartLimiter_AllowsUpToCeiling(t *testing.T) {
	limiter, _ := newTestLimiter(t, limiterConfig{window: 10 * time.Minute, max: 10, failOpen: true})
	orgID := uuid.New()

	for i := 1; i <= 10; i++ {
		decision := limiter.Allow(context.Background(), orgID, uuid.New())
		if !decision.Allowed {
			t.Fatalf("attempt %d should be allowed", i)
		}
		if decision.Count != i {
			t.Fatalf("attempt %d: expected count %d, got %d", i, i, decision.Count)
		}
	}

	decision := limiter.Allow(context.Background(), orgID, uuid.New())
	if decision.Allowed {
		t.Fatal("attempt 11 should be denied")
	}
	if decision.Count != 11 {
		t.Fatalf("denied attempt still counts, expected 11, got %d", decision.Count)
	}
}

func TestStartLimiter_TenantsAreIsolated(t *testing.T) {
	limiter, _ := newTestLimiter(t, limiterConfig{window: 10 * time.Minute, max: 1, failOpen: true})

	orgA := uuid.New()
	orgB := uuid.New()

	if d := limiter.Allow(context.Background(), orgA, uuid.New()); !d.Allowed {
		t.Fatal("first attempt for org A should be allowed")
	}
	if d := limiter.Allow(context.Background(), orgA, uuid.New()); d.Allowed {
		t.Fatal("second attempt for org A should be denied")
	}
	if d := limiter.Allow(context.Background(), orgB, uuid.New()); !d.Allowed {
		t.Fatal("org B is unaffected by org A's limit")
	}
}

func TestStartLimiter_WindowSlides(t *testing.T) {
	limiter, mr := newTestLimiter(t, limiterConfig{window: 10 * time.Minute, max: 1, failOpen: true})
	orgID := uuid.New()

	if d := limiter.Allow(context.Background(), orgID, uuid.New()); !d.Allowed {
		t.Fatal("first attempt should be allowed")
	}
	if d := limiter.Allow(context.Background(), orgID, uuid.New()); d.Allowed {
		t.Fatal("second attempt inside the window should be denied")
	}

	// Push the earlier probes out of the trailing window.
	mr.FastForward(11 * time.Minute)

	if d := limiter.Allow(context.Background(), orgID, uuid.New()); !d.Allowed {
		t.Fatal("attempt after the window slid should be allowed")
	}
}

func TestStartLimiter_FailsOpenWhenRedisDown(t *testing.T) {
	limiter, mr := newTestLimiter(t, limiterConfig{window: 10 * time.Minute, max: 10, failOpen: true})
	mr.Close()

	decision := limiter.Allow(context.Background(), uuid.New(), uuid.New())
	if !decision.Allowed {
		t.Fatal("limiter should fail open when the counter store is down")
	}
	if !decision.Degraded {
		t.Fatal("degraded decisions must be marked as such")
	}
}

func TestStartLimiter_FailsClosedWhenConfigured(t *testing.T) {
	limiter, mr := newTestLimiter(t, limiterConfig{window: 10 * time.Minute, max: 10, failOpen: false})
	mr.Close()

	decision := limiter.Allow(context.Background(), uuid.New(), uuid.New())
	if decision.Allowed {
		t.Fatal("limiter should fail closed when fail-open is disabled")
	}
	if !decision.Degraded {
		t.Fatal("degraded decisions must be marked as such")
	}
}
