package infra

import (
	"context"
	"sync"
	"time"

	cmap "github.com/orcaman/concurrent-map/v2"

	"protection-gateway/protection/domain"
)

// MemoryCounterStore é a janela deslizante em memória, com as mesmas
// semânticas do RedisCounterStore. Útil para testes, desenvolvimento e
// deploys de instância única; não compartilha estado entre processos.
type MemoryCounterStore struct {
	windows cmap.ConcurrentMap[string, *memoryWindow]
}

type memoryWindow struct {
	mu     sync.Mutex
	stamps []time.Time
}

func NewMemoryCounterStore() *MemoryCounterStore {
	return &MemoryCounterStore{windows: cmap.New[*memoryWindow]()}
}

// Increment implementa domain.CounterStore. A poda acontece preguiçosamente
// dentro do lock da própria janela (a operação é atômica por chave).
func (s *MemoryCounterStore) Increment(_ context.Context, key domain.Key, window time.Duration, now time.Time) (domain.CounterResult, error) {
	w := s.windows.Upsert(string(key), nil, func(exists bool, current, _ *memoryWindow) *memoryWindow {
		if exists {
			return current
		}
		return &memoryWindow{}
	})

	w.mu.Lock()
	defer w.mu.Unlock()

	w.prune(window, now)
	w.stamps = append(w.stamps, now)

	return domain.CounterResult{
		Count:   int64(len(w.stamps)),
		ResetAt: w.stamps[0].Add(window),
	}, nil
}

// Count implementa domain.CounterStore.
func (s *MemoryCounterStore) Count(_ context.Context, key domain.Key, window time.Duration, now time.Time) (int64, error) {
	w, ok := s.windows.Get(string(key))
	if !ok {
		return 0, nil
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.prune(window, now)
	return int64(len(w.stamps)), nil
}

// Sweep descarta janelas vazias/abandonadas (equivalente ao TTL do Redis).
func (s *MemoryCounterStore) Sweep(window time.Duration, now time.Time) {
	for item := range s.windows.IterBuffered() {
		w := item.Val
		w.mu.Lock()
		w.prune(window, now)
		empty := len(w.stamps) == 0
		w.mu.Unlock()
		if empty {
			s.windows.Remove(item.Key)
		}
	}
}

func (w *memoryWindow) prune(window time.Duration, now time.Time) {
	cutoff := now.Add(-window)
	i := 0
	for i < len(w.stamps) && !w.stamps[i].After(cutoff) {
		i++
	}
	if i > 0 {
		w.stamps = append(w.stamps[:0], w.stamps[i:]...)
	}
}
