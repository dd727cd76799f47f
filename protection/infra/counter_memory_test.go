package infra

import (
	"context"
	"strconv"
	"sync"
	"testing"
	"time"

	"protection-gateway/protection/domain"
)

func TestMemoryCounter_SlidingWindowPrunesOldEntries(t *testing.T) {
	s := NewMemoryCounterStore()
	ctx := context.Background()
	base := time.Now()
	window := 60 * time.Second

	for i := 0; i < 5; i++ {
		if _, err := s.Increment(ctx, "k", window, base.Add(time.Duration(i)*time.Second)); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	count, err := s.Count(ctx, "k", window, base.Add(5*time.Second))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if count != 5 {
		t.Fatalf("expected count 5, got %d", count)
	}

	// 61s depois do primeiro evento, só os 4 últimos continuam na janela
	count, err = s.Count(ctx, "k", window, base.Add(61*time.Second))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if count != 4 {
		t.Fatalf("expected count 4 after window slid, got %d", count)
	}
}

func TestMemoryCounter_ResetAtTracksOldestEntry(t *testing.T) {
	s := NewMemoryCounterStore()
	ctx := context.Background()
	base := time.Now()
	window := 60 * time.Second

	if _, err := s.Increment(ctx, "k", window, base); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	res, err := s.Increment(ctx, "k", window, base.Add(10*time.Second))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.ResetAt.Equal(base.Add(window)) {
		t.Fatalf("expected resetAt %s, got %s", base.Add(window), res.ResetAt)
	}
}

func TestMemoryCounter_ConcurrentIncrementsAreGapless(t *testing.T) {
	s := NewMemoryCounterStore()
	ctx := context.Background()
	now := time.Now()

	const n = 200
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			if _, err := s.Increment(ctx, "k", time.Minute, now); err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	count, err := s.Count(ctx, "k", time.Minute, now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if count != n {
		t.Fatalf("expected %d increments to all land, got %d", n, count)
	}
}

func TestMemoryCounter_EventAtWindowBoundaryLeavesWindow(t *testing.T) {
	// um evento com idade exatamente igual à janela já está fora dela, tanto
	// para Increment quanto para Count (os dois usam o mesmo corte)
	s := NewMemoryCounterStore()
	ctx := context.Background()
	base := time.Now()
	window := 60 * time.Second

	if _, err := s.Increment(ctx, "k", window, base); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	count, err := s.Count(ctx, "k", window, base.Add(window))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected boundary event out of the window, got count %d", count)
	}
}

func TestMemoryCounter_SweepDropsRotatedClientKeys(t *testing.T) {
	// clientes rotacionando IP criam uma chave nova por endereço; a varredura
	// precisa devolver a memória depois que as janelas esvaziam
	s := NewMemoryCounterStore()
	ctx := context.Background()
	base := time.Now()

	for i := 0; i < 1000; i++ {
		key := domain.Key("rl:ip:10.0." + strconv.Itoa(i/256) + "." + strconv.Itoa(i%256))
		if _, err := s.Increment(ctx, key, time.Second, base); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if got := s.windows.Count(); got != 1000 {
		t.Fatalf("expected 1000 live windows, got %d", got)
	}

	s.Sweep(time.Second, base.Add(time.Hour))
	if got := s.windows.Count(); got != 0 {
		t.Fatalf("expected rotated keys to be swept, %d left", got)
	}
}

func TestMemoryCounter_SweepDropsAbandonedKeys(t *testing.T) {
	s := NewMemoryCounterStore()
	ctx := context.Background()
	base := time.Now()

	if _, err := s.Increment(ctx, domain.Key("old"), time.Second, base); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	s.Sweep(time.Second, base.Add(5*time.Second))

	if s.windows.Count() != 0 {
		t.Fatalf("expected abandoned window to be removed, %d left", s.windows.Count())
	}
}
