package infra

import (
	"context"
	"sync"

	"protection-gateway/protection/domain"
)

// MemoryStatsStore é uma implementação simples em memória.
// Útil para testes e desenvolvimento; não faz expiração.
type MemoryStatsStore struct {
	mu         sync.Mutex
	allowed    int64
	challenged int64
	blocked    int64
	byReason   map[string]int64
}

func NewMemoryStatsStore() *MemoryStatsStore {
	return &MemoryStatsStore{byReason: make(map[string]int64)}
}

// Record implementa domain.StatsStore.
func (s *MemoryStatsStore) Record(_ context.Context, ev domain.StatsEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch ev.Outcome {
	case domain.OutcomeAllow:
		s.allowed++
	case domain.OutcomeChallenge:
		s.challenged++
	case domain.OutcomeBlock:
		s.blocked++
	}
	s.byReason[string(ev.Reason)]++
	return nil
}

// Totals implementa domain.StatsReader.
func (s *MemoryStatsStore) Totals(_ context.Context) (domain.StatsTotals, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	byReason := make(map[string]int64, len(s.byReason))
	for k, v := range s.byReason {
		byReason[k] = v
	}
	return domain.StatsTotals{
		Allowed:    s.allowed,
		Challenged: s.challenged,
		Blocked:    s.blocked,
		ByReason:   byReason,
	}, nil
}
