package infra

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"protection-gateway/protection/domain"
)

// RedisStatsStore grava estatísticas de decisão em hashes.
//
// Layout:
//   - <prefix>:total         → hash outcome/reason → contagem (cumulativo)
//   - <prefix>:minute:<ts>   → idem por minuto, com TTL
//
// O ttl aplica apenas nos buckets por minuto; total é cumulativo e não
// expira.
type RedisStatsStore struct {
	rdb *redis.Client

	prefix string
	ttl    time.Duration
	bucket string // "minute" (padrão) ou "none"
}

type RedisStatsOption func(*RedisStatsStore)

func WithStatsPrefix(prefix string) RedisStatsOption {
	return func(s *RedisStatsStore) { s.prefix = strings.Trim(prefix, ":") }
}

func WithStatsTTL(d time.Duration) RedisStatsOption {
	return func(s *RedisStatsStore) { s.ttl = d }
}

func WithStatsBucket(bucket string) RedisStatsOption {
	return func(s *RedisStatsStore) { s.bucket = strings.ToLower(strings.TrimSpace(bucket)) }
}

func NewRedisStatsStore(rdb *redis.Client, opts ...RedisStatsOption) *RedisStatsStore {
	s := &RedisStatsStore{
		rdb:    rdb,
		prefix: "protection:stats",
		ttl:    24 * time.Hour,
		bucket: "minute",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Record implementa domain.StatsStore.
func (s *RedisStatsStore) Record(ctx context.Context, ev domain.StatsEvent) error {
	if s == nil || s.rdb == nil {
		return nil
	}

	at := ev.At
	if at.IsZero() {
		at = time.Now()
	}

	outcomeField := "outcome:" + string(ev.Outcome)
	reasonField := "reason:" + string(ev.Reason)
	totalKey := s.prefix + ":total"

	pipe := s.rdb.Pipeline()
	pipe.HIncrBy(ctx, totalKey, outcomeField, 1)
	pipe.HIncrBy(ctx, totalKey, reasonField, 1)

	if s.bucket == "minute" {
		bucketKey := fmt.Sprintf("%s:minute:%s", s.prefix, at.UTC().Format("200601021504"))
		pipe.HIncrBy(ctx, bucketKey, outcomeField, 1)
		pipe.HIncrBy(ctx, bucketKey, reasonField, 1)
		if s.ttl > 0 {
			pipe.Expire(ctx, bucketKey, s.ttl)
		}
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	return nil
}

// Totals implementa domain.StatsReader.
func (s *RedisStatsStore) Totals(ctx context.Context) (domain.StatsTotals, error) {
	raw, err := s.rdb.HGetAll(ctx, s.prefix+":total").Result()
	if err != nil {
		return domain.StatsTotals{}, fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}

	totals := domain.StatsTotals{ByReason: make(map[string]int64)}
	for field, value := range raw {
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			continue
		}
		switch {
		case field == "outcome:"+string(domain.OutcomeAllow):
			totals.Allowed = n
		case field == "outcome:"+string(domain.OutcomeChallenge):
			totals.Challenged = n
		case field == "outcome:"+string(domain.OutcomeBlock):
			totals.Blocked = n
		case strings.HasPrefix(field, "reason:"):
			totals.ByReason[strings.TrimPrefix(field, "reason:")] = n
		}
	}
	return totals, nil
}
