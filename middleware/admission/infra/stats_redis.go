package infra

import (
	"context"
	"fmt"
	"strings"
	"time"

	"admission-gateway/middleware/admission/domain"

	"github.com/redis/go-redis/v9"
)

// RedisUsageStats implementa domain.UsageSink em Redis.
//
// Grava contadores allowed/denied e o total de unidades de custo (tokens),
// no agregado, por feature e — opcionalmente — por chamador, com bucket por
// minuto para séries temporais.
type RedisUsageStats struct {
	rdb *redis.Client

	prefix string
	// ttl aplica apenas em chaves de série temporal / por chamador.
	// total é cumulativo e não expira.
	ttl time.Duration

	bucket string // "minute" (padrão) ou "none"

	trackCallers bool
}

type RedisUsageOption func(*RedisUsageStats)

func WithUsagePrefix(prefix string) RedisUsageOption {
	return func(s *RedisUsageStats) {
		s.prefix = strings.Trim(prefix, ":")
	}
}

func WithUsageTTL(d time.Duration) RedisUsageOption {
	return func(s *RedisUsageStats) { s.ttl = d }
}

func WithUsageBucket(bucket string) RedisUsageOption {
	return func(s *RedisUsageStats) { s.bucket = strings.ToLower(strings.TrimSpace(bucket)) }
}

func WithUsageTrackCallers(track bool) RedisUsageOption {
	return func(s *RedisUsageStats) { s.trackCallers = track }
}

func NewRedisUsageStats(rdb *redis.Client, opts ...RedisUsageOption) *RedisUsageStats {
	s := &RedisUsageStats{
		rdb:    rdb,
		prefix: "admission:usage",
		ttl:    24 * time.Hour,
		bucket: "minute",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *RedisUsageStats) Record(ctx context.Context, ev domain.UsageEvent) error {
	if s == nil || s.rdb == nil {
		return nil
	}

	at := ev.At
	if at.IsZero() {
		at = time.Now()
	}

	field := "denied"
	if ev.Allowed {
		field = "allowed"
	}

	totalKey := s.prefix + ":total"

	pipe := s.rdb.Pipeline()
	pipe.HIncrBy(ctx, totalKey, field, 1)
	if ev.Cost > 0 {
		pipe.HIncrBy(ctx, totalKey, "cost", ev.Cost)
	}

	if s.bucket == "minute" {
		bucketKey := fmt.Sprintf("%s:minute:%s", s.prefix, at.UTC().Format("200601021504"))
		pipe.HIncrBy(ctx, bucketKey, field, 1)
		if ev.Cost > 0 {
			pipe.HIncrBy(ctx, bucketKey, "cost", ev.Cost)
		}
		if s.ttl > 0 {
			pipe.Expire(ctx, bucketKey, s.ttl)
		}
	}

	if f := strings.TrimSpace(ev.Feature); f != "" {
		featureKey := s.prefix + ":feature"
		pipe.HIncrBy(ctx, featureKey, f+":"+field, 1)
		if ev.Cost > 0 {
			pipe.HIncrBy(ctx, featureKey, f+":cost", ev.Cost)
		}
	}

	if s.trackCallers {
		c := strings.TrimSpace(ev.CallerID)
		if c != "" {
			callerKey := s.prefix + ":caller:" + c
			pipe.HIncrBy(ctx, callerKey, field, 1)
			if ev.Cost > 0 {
				pipe.HIncrBy(ctx, callerKey, "cost", ev.Cost)
			}
			if s.ttl > 0 {
				pipe.Expire(ctx, callerKey, s.ttl)
			}
		}
	}

	_, err := pipe.Exec(ctx)
	return err
}
