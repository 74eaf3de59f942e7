// Package ratelimit bounds the number of call-start attempts a tenant can
// register within a trailing window. The counting substrate is an explicit
// redis sorted-set sliding window rather than audit-log rows, so the audit
// trail stays an audit trail and counting stays O(window).
package ratelimit

import (
	"context"
	"strconv"
	"time"

	"voicedesk_backend/platform/config"
	"voicedesk_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "ratelimit:callstart:"

// Decision is the outcome of a rate-limit check.
type Decision struct {
	Allowed bool
	// Count is the number of attempts in the window, inclusive of this one.
	Count int
	Limit int
	// Degraded is set when the counter store was unreachable and the
	// configured failure policy decided the outcome instead.
	Degraded bool
}

// StartLimiter counts call-start attempts per tenant over a trailing window.
// This is an abuse mitigation, not a billing-correctness control: by default
// it fails open when redis is unavailable.
type StartLimiter struct {
	rdb      *redis.Client
	window   time.Duration
	max      int
	failOpen bool
	log      *logger.Logger
}

// NewStartLimiter creates a limiter from the ingest configuration.
func NewStartLimiter(rdb *redis.Client, cfg config.CallIngestConfig, log *logger.Logger) *StartLimiter {
	return &StartLimiter{
		rdb:      rdb,
		window:   cfg.GetStartRateLimitWindow(),
		max:      cfg.GetStartRateLimitMax(),
		failOpen: cfg.GetStartRateLimitFailOpen(),
		log:      log,
	}
}

// Allow registers the attempt and decides whether it may proceed. The attempt
// is counted regardless of the outcome, so a denied caller keeps consuming
// its window rather than resetting it.
func (l *StartLimiter) Allow(ctx context.Context, orgID, attemptID uuid.UUID) Decision {
	if l.rdb == nil {
		return l.degraded(orgID, nil)
	}

	key := keyPrefix + orgID.String()
	now := time.Now()
	cutoff := now.Add(-l.window).UnixMilli()

	pipe := l.rdb.TxPipeline()
	pipe.ZRemRangeByScore(ctx, key, "0", strconv.FormatInt(cutoff, 10))
	pipe.ZAdd(ctx, key, redis.Z{Score: float64(now.UnixMilli()), Member: attemptID.String()})
	card := pipe.ZCard(ctx, key)
	pipe.Expire(ctx, key, l.window)

	if _, err := pipe.Exec(ctx); err != nil {
		return l.degraded(orgID, err)
	}

	count := int(card.Val())
	return Decision{
		Allowed: count <= l.max,
		Count:   count,
		Limit:   l.max,
	}
}

func (l *StartLimiter) degraded(orgID uuid.UUID, err error) Decision {
	attrs := []any{"org_id", orgID.String(), "fail_open", l.failOpen}
	if err != nil {
		attrs = append(attrs, "error", err)
	}
	l.log.Warn("rate_limiter_degraded", attrs...)

	return Decision{
		Allowed:  l.failOpen,
		Limit:    l.max,
		Degraded: true,
	}
}
