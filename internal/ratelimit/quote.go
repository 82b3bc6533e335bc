package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/tiffin/internal/config"
)

const (
	keyQuoteUser   = "quote:user:%s"
	keyCreateInFly = "subscription:create:%s:%s"
)

// QuoteLimiter throttles preview/validate traffic per user and guards
// subscription creation with a short per-(user, idempotency-key) lock so a
// double-submitted form only reaches the coordinator once.
type QuoteLimiter struct {
	enabled bool

	bucket *TokenBucket
	locker *InflightLock

	quoteRate  float64
	quoteBurst int
	lockTTL    time.Duration
}

func NewQuoteLimiter(cfg config.Config) (*QuoteLimiter, error) {
	limitCfg := cfg.RateLimit
	if !limitCfg.Enabled {
		return nil, nil
	}

	addr := strings.TrimSpace(limitCfg.RedisAddr)
	if addr == "" {
		return nil, errors.New("rate limit redis addr is required")
	}
	if limitCfg.QuoteRate <= 0 || limitCfg.QuoteBurst <= 0 {
		return nil, errors.New("quote rate limit must be positive")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: strings.TrimSpace(limitCfg.RedisPassword),
		DB:       limitCfg.RedisDB,
	})

	return &QuoteLimiter{
		enabled:    true,
		bucket:     NewTokenBucket(client),
		locker:     NewInflightLock(client),
		quoteRate:  limitCfg.QuoteRate,
		quoteBurst: limitCfg.QuoteBurst,
		lockTTL:    time.Duration(limitCfg.CreateLockTTLSeconds) * time.Second,
	}, nil
}

func (l *QuoteLimiter) Enabled() bool {
	return l != nil && l.enabled
}

func (l *QuoteLimiter) AllowQuote(ctx context.Context, userID string) (bool, error) {
	if !l.Enabled() {
		return true, nil
	}
	result, err := l.bucket.Allow(ctx, fmt.Sprintf(keyQuoteUser, strings.TrimSpace(userID)), l.quoteRate, l.quoteBurst)
	if err != nil {
		return false, err
	}
	return result.Allowed, nil
}

func (l *QuoteLimiter) TryLockCreate(ctx context.Context, userID, idempotencyKey string) (string, bool, error) {
	if !l.Enabled() {
		return "", true, nil
	}
	key := fmt.Sprintf(keyCreateInFly, strings.TrimSpace(userID), strings.TrimSpace(idempotencyKey))
	return l.locker.TryAcquire(ctx, key, l.lockTTL)
}

func (l *QuoteLimiter) ReleaseCreate(ctx context.Context, userID, idempotencyKey, token string) error {
	if !l.Enabled() {
		return nil
	}
	key := fmt.Sprintf(keyCreateInFly, strings.TrimSpace(userID), strings.TrimSpace(idempotencyKey))
	return l.locker.Release(ctx, key, token)
}
