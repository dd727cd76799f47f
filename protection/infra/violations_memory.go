package infra

import (
	"context"
	"sync"
	"time"

	"protection-gateway/protection/domain"
)

// MemoryViolationLog implementa domain.ViolationLog em memória: histórico
// por identificador limitado a cap entradas, com TTL aplicado na leitura.
type MemoryViolationLog struct {
	mu     sync.Mutex
	byID   map[domain.Key][]domain.Violation
	recent []domain.Violation
	cap    int
	ttl    time.Duration
}

func NewMemoryViolationLog(cap int, ttl time.Duration) *MemoryViolationLog {
	if cap <= 0 {
		cap = 50
	}
	return &MemoryViolationLog{
		byID: make(map[domain.Key][]domain.Violation),
		cap:  cap,
		ttl:  ttl,
	}
}

func (l *MemoryViolationLog) Append(_ context.Context, v domain.Violation) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	list := append([]domain.Violation{v}, l.byID[v.Identifier]...)
	if len(list) > l.cap {
		list = list[:l.cap]
	}
	l.byID[v.Identifier] = list

	l.recent = append([]domain.Violation{v}, l.recent...)
	if len(l.recent) > 4*l.cap {
		l.recent = l.recent[:4*l.cap]
	}
	return nil
}

func (l *MemoryViolationLog) CountSince(_ context.Context, id domain.Key, since time.Time) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	count := 0
	for _, v := range l.byID[id] {
		if l.expired(v) {
			continue
		}
		if !v.At.Before(since) {
			count++
		}
	}
	return count, nil
}

func (l *MemoryViolationLog) Recent(_ context.Context, limit int) ([]domain.Violation, error) {
	if limit <= 0 {
		limit = 50
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]domain.Violation, 0, limit)
	for _, v := range l.recent {
		if l.expired(v) {
			continue
		}
		out = append(out, v)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

// Sweep remove fisicamente violações mais velhas que o TTL e identificadores
// que ficaram sem histórico (equivale ao Expire do backend Redis). Retorna
// quantas violações saíram. No-op se o log não tem TTL.
func (l *MemoryViolationLog) Sweep(now time.Time) int {
	if l.ttl <= 0 {
		return 0
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	removed := 0
	for id, list := range l.byID {
		kept := list[:0]
		for _, v := range list {
			if now.Sub(v.At) > l.ttl {
				removed++
				continue
			}
			kept = append(kept, v)
		}
		if len(kept) == 0 {
			delete(l.byID, id)
			continue
		}
		l.byID[id] = kept
	}

	recent := l.recent[:0]
	for _, v := range l.recent {
		if now.Sub(v.At) > l.ttl {
			continue
		}
		recent = append(recent, v)
	}
	l.recent = recent
	return removed
}

func (l *MemoryViolationLog) expired(v domain.Violation) bool {
	return l.ttl > 0 && time.Since(v.At) > l.ttl
}
