package infra

import (
	"context"
	"sync"
	"time"

	cmap "github.com/orcaman/concurrent-map/v2"

	"protection-gateway/protection/domain"
)

// MemoryBlockRegistry implementa domain.BlockRegistry em memória, com as
// mesmas semânticas do RedisBlockRegistry (expiração preguiçosa na leitura,
// varredura física via Sweep). Útil para testes e instância única.
type MemoryBlockRegistry struct {
	blocks cmap.ConcurrentMap[string, domain.BlockEntry]

	mu    sync.RWMutex
	allow map[domain.Key]domain.AllowEntry
}

func NewMemoryBlockRegistry() *MemoryBlockRegistry {
	return &MemoryBlockRegistry{
		blocks: cmap.New[domain.BlockEntry](),
		allow:  make(map[domain.Key]domain.AllowEntry),
	}
}

func (r *MemoryBlockRegistry) Blocked(_ context.Context, id domain.Key, now time.Time) (*domain.BlockEntry, error) {
	entry, ok := r.blocks.Get(string(id))
	if !ok || !entry.ActiveAt(now) {
		return nil, nil
	}
	return &entry, nil
}

func (r *MemoryBlockRegistry) Block(_ context.Context, id domain.Key, reason domain.BlockReason, duration time.Duration, violations int, now time.Time) (domain.BlockEntry, error) {
	entry := r.blocks.Upsert(string(id), domain.BlockEntry{}, func(exists bool, prev, _ domain.BlockEntry) domain.BlockEntry {
		severity := 1
		if exists && prev.ActiveAt(now) {
			severity = prev.Severity + 1
			if severity > domain.MaxSeverity {
				severity = domain.MaxSeverity
			}
		}
		return domain.BlockEntry{
			Identifier: id,
			Reason:     reason,
			BlockedAt:  now,
			ExpiresAt:  now.Add(duration),
			Violations: violations,
			Severity:   severity,
		}
	})
	return entry, nil
}

func (r *MemoryBlockRegistry) Unblock(_ context.Context, id domain.Key) error {
	r.blocks.Remove(string(id))
	return nil
}

func (r *MemoryBlockRegistry) Allowed(_ context.Context, id domain.Key) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.allow[id]
	return ok, nil
}

func (r *MemoryBlockRegistry) Allow(_ context.Context, id domain.Key, reason string, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.allow[id] = domain.AllowEntry{Identifier: id, Reason: reason, AddedAt: now}
	return nil
}

func (r *MemoryBlockRegistry) Disallow(_ context.Context, id domain.Key) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.allow, id)
	return nil
}

func (r *MemoryBlockRegistry) ActiveBlocks(_ context.Context, now time.Time) ([]domain.BlockEntry, error) {
	var out []domain.BlockEntry
	for item := range r.blocks.IterBuffered() {
		if item.Val.ActiveAt(now) {
			out = append(out, item.Val)
		}
	}
	return out, nil
}

func (r *MemoryBlockRegistry) Whitelist(_ context.Context) ([]domain.AllowEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.AllowEntry, 0, len(r.allow))
	for _, entry := range r.allow {
		out = append(out, entry)
	}
	return out, nil
}

func (r *MemoryBlockRegistry) Sweep(_ context.Context, now time.Time) (int, error) {
	removed := 0
	for item := range r.blocks.IterBuffered() {
		if !item.Val.ActiveAt(now) {
			r.blocks.Remove(item.Key)
			removed++
		}
	}
	return removed, nil
}
