package infra

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"protection-gateway/protection/domain"
)

// RedisViolationLog implementa domain.ViolationLog.
//
// Layout das chaves:
//   - <prefix>:id:<id> → lista (mais recente primeiro) limitada a cap
//     entradas, com TTL no conjunto inteiro
//   - <prefix>:recent  → feed global limitado, para o management API
type RedisViolationLog struct {
	rdb    *redis.Client
	prefix string
	cap    int64
	ttl    time.Duration
}

type RedisViolationOption func(*RedisViolationLog)

func WithViolationPrefix(prefix string) RedisViolationOption {
	return func(l *RedisViolationLog) { l.prefix = prefix }
}

func WithViolationCap(cap int64) RedisViolationOption {
	return func(l *RedisViolationLog) { l.cap = cap }
}

func WithViolationTTL(ttl time.Duration) RedisViolationOption {
	return func(l *RedisViolationLog) { l.ttl = ttl }
}

func NewRedisViolationLog(rdb *redis.Client, opts ...RedisViolationOption) *RedisViolationLog {
	l := &RedisViolationLog{
		rdb:    rdb,
		prefix: "protection:violations",
		cap:    50,
		ttl:    time.Hour,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *RedisViolationLog) idKey(id domain.Key) string { return l.prefix + ":id:" + string(id) }
func (l *RedisViolationLog) recentKey() string          { return l.prefix + ":recent" }

// Append grava no histórico do identificador e no feed global, num pipeline
// só (push + trim + expire).
func (l *RedisViolationLog) Append(ctx context.Context, v domain.Violation) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}

	pipe := l.rdb.Pipeline()
	pipe.LPush(ctx, l.idKey(v.Identifier), payload)
	pipe.LTrim(ctx, l.idKey(v.Identifier), 0, l.cap-1)
	if l.ttl > 0 {
		pipe.Expire(ctx, l.idKey(v.Identifier), l.ttl)
	}
	pipe.LPush(ctx, l.recentKey(), payload)
	pipe.LTrim(ctx, l.recentKey(), 0, 4*l.cap-1)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	return nil
}

// CountSince conta as violações do identificador desde o instante dado.
// A lista é limitada a cap entradas, então a leitura inteira é barata.
func (l *RedisViolationLog) CountSince(ctx context.Context, id domain.Key, since time.Time) (int, error) {
	items, err := l.rdb.LRange(ctx, l.idKey(id), 0, l.cap-1).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	count := 0
	for _, raw := range items {
		var v domain.Violation
		if err := json.Unmarshal([]byte(raw), &v); err != nil {
			continue
		}
		if !v.At.Before(since) {
			count++
		}
	}
	return count, nil
}

// Recent lista as violações mais recentes de todos os identificadores.
func (l *RedisViolationLog) Recent(ctx context.Context, limit int) ([]domain.Violation, error) {
	if limit <= 0 {
		limit = 50
	}
	items, err := l.rdb.LRange(ctx, l.recentKey(), 0, int64(limit)-1).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	out := make([]domain.Violation, 0, len(items))
	for _, raw := range items {
		var v domain.Violation
		if err := json.Unmarshal([]byte(raw), &v); err != nil {
			continue
		}
		out = append(out, v)
	}
	return out, nil
}
