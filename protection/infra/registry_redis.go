package infra

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"protection-gateway/protection/domain"
)

// RedisBlockRegistry implementa domain.BlockRegistry.
//
// Layout das chaves:
//   - <prefix>:block:<id>  → JSON do BlockEntry, com TTL = duração do bloqueio
//   - <prefix>:allow       → hash id → JSON do AllowEntry (sem expiração)
//
// O TTL do Redis já faz a expiração física; Sweep existe para manter o
// contrato (e remove entradas logicamente vencidas que um TTL atrasado
// ainda não varreu).
type RedisBlockRegistry struct {
	rdb    *redis.Client
	prefix string
}

type RedisRegistryOption func(*RedisBlockRegistry)

func WithRegistryPrefix(prefix string) RedisRegistryOption {
	return func(r *RedisBlockRegistry) { r.prefix = prefix }
}

func NewRedisBlockRegistry(rdb *redis.Client, opts ...RedisRegistryOption) *RedisBlockRegistry {
	r := &RedisBlockRegistry{rdb: rdb, prefix: "protection:registry"}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *RedisBlockRegistry) blockKey(id domain.Key) string {
	return r.prefix + ":block:" + string(id)
}

func (r *RedisBlockRegistry) allowKey() string { return r.prefix + ":allow" }

// Blocked implementa a leitura com expiração preguiçosa.
func (r *RedisBlockRegistry) Blocked(ctx context.Context, id domain.Key, now time.Time) (*domain.BlockEntry, error) {
	raw, err := r.rdb.Get(ctx, r.blockKey(id)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}

	var entry domain.BlockEntry
	if err := json.Unmarshal([]byte(raw), &entry); err != nil {
		return nil, fmt.Errorf("%w: corrupt block entry: %v", domain.ErrStoreUnavailable, err)
	}
	if !entry.ActiveAt(now) {
		return nil, nil
	}
	return &entry, nil
}

// Block cria ou estende o bloqueio: no máximo uma entrada ativa por id, com
// expiração sobrescrita e tier de severidade acumulado.
func (r *RedisBlockRegistry) Block(ctx context.Context, id domain.Key, reason domain.BlockReason, duration time.Duration, violations int, now time.Time) (domain.BlockEntry, error) {
	severity := 1
	if prev, err := r.Blocked(ctx, id, now); err == nil && prev != nil {
		severity = prev.Severity + 1
		if severity > domain.MaxSeverity {
			severity = domain.MaxSeverity
		}
	}

	entry := domain.BlockEntry{
		Identifier: id,
		Reason:     reason,
		BlockedAt:  now,
		ExpiresAt:  now.Add(duration),
		Violations: violations,
		Severity:   severity,
	}
	payload, err := json.Marshal(entry)
	if err != nil {
		return domain.BlockEntry{}, err
	}
	if err := r.rdb.Set(ctx, r.blockKey(id), payload, duration).Err(); err != nil {
		return domain.BlockEntry{}, fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	return entry, nil
}

// Unblock remove o bloqueio; id não bloqueado é no-op de sucesso.
func (r *RedisBlockRegistry) Unblock(ctx context.Context, id domain.Key) error {
	if err := r.rdb.Del(ctx, r.blockKey(id)).Err(); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	return nil
}

// Allowed implementa a consulta à whitelist.
func (r *RedisBlockRegistry) Allowed(ctx context.Context, id domain.Key) (bool, error) {
	ok, err := r.rdb.HExists(ctx, r.allowKey(), string(id)).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	return ok, nil
}

// Allow adiciona à whitelist (idempotente, sem expiração).
func (r *RedisBlockRegistry) Allow(ctx context.Context, id domain.Key, reason string, now time.Time) error {
	payload, err := json.Marshal(domain.AllowEntry{Identifier: id, Reason: reason, AddedAt: now})
	if err != nil {
		return err
	}
	if err := r.rdb.HSet(ctx, r.allowKey(), string(id), payload).Err(); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	return nil
}

// Disallow remove da whitelist (no-op se ausente).
func (r *RedisBlockRegistry) Disallow(ctx context.Context, id domain.Key) error {
	if err := r.rdb.HDel(ctx, r.allowKey(), string(id)).Err(); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	return nil
}

// ActiveBlocks varre as chaves de bloqueio e devolve as entradas ativas.
func (r *RedisBlockRegistry) ActiveBlocks(ctx context.Context, now time.Time) ([]domain.BlockEntry, error) {
	var out []domain.BlockEntry
	iter := r.rdb.Scan(ctx, 0, r.prefix+":block:*", 200).Iterator()
	for iter.Next(ctx) {
		raw, err := r.rdb.Get(ctx, iter.Val()).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
		}
		var entry domain.BlockEntry
		if err := json.Unmarshal([]byte(raw), &entry); err != nil {
			continue
		}
		if entry.ActiveAt(now) {
			out = append(out, entry)
		}
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	return out, nil
}

// Whitelist lista as entradas de allow.
func (r *RedisBlockRegistry) Whitelist(ctx context.Context) ([]domain.AllowEntry, error) {
	raw, err := r.rdb.HGetAll(ctx, r.allowKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	out := make([]domain.AllowEntry, 0, len(raw))
	for _, v := range raw {
		var entry domain.AllowEntry
		if err := json.Unmarshal([]byte(v), &entry); err != nil {
			continue
		}
		out = append(out, entry)
	}
	return out, nil
}

// Sweep remove entradas logicamente vencidas que o TTL ainda não varreu.
func (r *RedisBlockRegistry) Sweep(ctx context.Context, now time.Time) (int, error) {
	removed := 0
	iter := r.rdb.Scan(ctx, 0, r.prefix+":block:*", 200).Iterator()
	for iter.Next(ctx) {
		raw, err := r.rdb.Get(ctx, iter.Val()).Result()
		if err != nil {
			continue
		}
		var entry domain.BlockEntry
		if err := json.Unmarshal([]byte(raw), &entry); err != nil || !entry.ActiveAt(now) {
			if delErr := r.rdb.Del(ctx, iter.Val()).Err(); delErr == nil {
				removed++
			}
		}
	}
	if err := iter.Err(); err != nil {
		return removed, fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	return removed, nil
}
