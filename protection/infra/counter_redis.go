package infra

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"protection-gateway/protection/domain"
)

// slidingWindowScript é a primitiva de consistência do contador: poda,
// adiciona, expira e conta numa operação só (nunca read-then-write separado).
// Incrementos concorrentes na mesma chave não perdem updates.
//
// KEYS[1] = chave do contador (zset de timestamps em ms)
// ARGV[1] = now em ms, ARGV[2] = janela em ms, ARGV[3] = member único
// Retorna {count, score do membro mais antigo em ms}.
var slidingWindowScript = redis.NewScript(`
local cutoff = tonumber(ARGV[1]) - tonumber(ARGV[2])
redis.call('ZREMRANGEBYSCORE', KEYS[1], '-inf', cutoff)
redis.call('ZADD', KEYS[1], ARGV[1], ARGV[3])
redis.call('PEXPIRE', KEYS[1], ARGV[2])
local count = redis.call('ZCARD', KEYS[1])
local oldest = redis.call('ZRANGE', KEYS[1], 0, 0, 'WITHSCORES')
return {count, oldest[2]}
`)

// RedisCounterStore implementa domain.CounterStore com sliding-window log em
// sorted sets. Cada chave expira junto com a janela, então chaves
// abandonadas se limpam sozinhas.
type RedisCounterStore struct {
	rdb    *redis.Client
	prefix string
}

type RedisCounterOption func(*RedisCounterStore)

func WithCounterPrefix(prefix string) RedisCounterOption {
	return func(s *RedisCounterStore) { s.prefix = prefix }
}

func NewRedisCounterStore(rdb *redis.Client, opts ...RedisCounterOption) *RedisCounterStore {
	s := &RedisCounterStore{rdb: rdb, prefix: "protection:counter"}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *RedisCounterStore) key(k domain.Key) string { return s.prefix + ":" + string(k) }

// Increment implementa domain.CounterStore.
func (s *RedisCounterStore) Increment(ctx context.Context, key domain.Key, window time.Duration, now time.Time) (domain.CounterResult, error) {
	nowMs := now.UnixMilli()
	windowMs := window.Milliseconds()
	member := strconv.FormatInt(nowMs, 10) + "-" + uuid.NewString()

	raw, err := slidingWindowScript.Run(ctx, s.rdb, []string{s.key(key)}, nowMs, windowMs, member).Result()
	if err != nil {
		return domain.CounterResult{}, fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}

	vals, ok := raw.([]interface{})
	if !ok || len(vals) < 2 {
		return domain.CounterResult{}, fmt.Errorf("%w: unexpected script reply %T", domain.ErrStoreUnavailable, raw)
	}

	count, _ := vals[0].(int64)
	oldestMs := nowMs
	if str, ok := vals[1].(string); ok {
		if f, err := strconv.ParseFloat(str, 64); err == nil {
			oldestMs = int64(f)
		}
	}

	return domain.CounterResult{
		Count:   count,
		ResetAt: time.UnixMilli(oldestMs).Add(window),
	}, nil
}

// Count implementa domain.CounterStore (leitura sem registrar evento).
func (s *RedisCounterStore) Count(ctx context.Context, key domain.Key, window time.Duration, now time.Time) (int64, error) {
	// limite inferior exclusivo: o script de incremento poda score <= cutoff,
	// então um evento exatamente no corte já está fora da janela
	cutoff := strconv.FormatInt(now.Add(-window).UnixMilli(), 10)
	n, err := s.rdb.ZCount(ctx, s.key(key), "("+cutoff, "+inf").Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	return n, nil
}
