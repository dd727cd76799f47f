package infra

import (
	"context"
	"testing"
	"time"

	"protection-gateway/protection/domain"
)

func TestMemoryRegistry_BlockThenExpiryIsLazy(t *testing.T) {
	r := NewMemoryBlockRegistry()
	ctx := context.Background()
	now := time.Now()

	if _, err := r.Block(ctx, "1.2.3.4", domain.BlockReasonManual, time.Minute, 0, now); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	entry, err := r.Blocked(ctx, "1.2.3.4", now.Add(30*time.Second))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if entry == nil {
		t.Fatalf("expected active block entry")
	}
	if got := entry.Remaining(now.Add(30 * time.Second)); got != 30*time.Second {
		t.Fatalf("expected 30s remaining, got %s", got)
	}

	// depois da expiração a entrada é logicamente ausente, mesmo sem sweep
	entry, err = r.Blocked(ctx, "1.2.3.4", now.Add(2*time.Minute))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if entry != nil {
		t.Fatalf("expected expired entry to be absent, got %+v", entry)
	}
}

func TestMemoryRegistry_ReblockBumpsSeverityAndExtends(t *testing.T) {
	r := NewMemoryBlockRegistry()
	ctx := context.Background()
	now := time.Now()

	first, err := r.Block(ctx, "1.2.3.4", domain.BlockReasonRateLimit, time.Minute, 1, now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first.Severity != 1 {
		t.Fatalf("expected severity 1, got %d", first.Severity)
	}

	second, err := r.Block(ctx, "1.2.3.4", domain.BlockReasonSuspiciousPattern, time.Hour, 2, now.Add(time.Second))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if second.Severity != 2 {
		t.Fatalf("expected severity bump to 2, got %d", second.Severity)
	}
	if !second.ExpiresAt.After(first.ExpiresAt) {
		t.Fatalf("expected expiry to be extended")
	}

	// uma entrada ativa só por identificador
	active, err := r.ActiveBlocks(ctx, now.Add(2*time.Second))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(active) != 1 {
		t.Fatalf("expected a single active entry, got %d", len(active))
	}
}

func TestMemoryRegistry_UnblockMissingIsNoop(t *testing.T) {
	r := NewMemoryBlockRegistry()

	if err := r.Unblock(context.Background(), "9.9.9.9"); err != nil {
		t.Fatalf("expected noop success, got %v", err)
	}
}

func TestMemoryRegistry_WhitelistRoundTrip(t *testing.T) {
	r := NewMemoryBlockRegistry()
	ctx := context.Background()
	now := time.Now()

	ok, err := r.Allowed(ctx, "1.2.3.4")
	if err != nil || ok {
		t.Fatalf("expected not allowed, got ok=%v err=%v", ok, err)
	}

	if err := r.Allow(ctx, "1.2.3.4", "parceiro", now); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ok, err = r.Allowed(ctx, "1.2.3.4")
	if err != nil || !ok {
		t.Fatalf("expected allowed, got ok=%v err=%v", ok, err)
	}

	list, err := r.Whitelist(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(list) != 1 || list[0].Identifier != "1.2.3.4" {
		t.Fatalf("unexpected whitelist %+v", list)
	}

	if err := r.Disallow(ctx, "1.2.3.4"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ok, _ = r.Allowed(ctx, "1.2.3.4")
	if ok {
		t.Fatalf("expected removed from whitelist")
	}
}

func TestMemoryRegistry_SweepRemovesExpired(t *testing.T) {
	r := NewMemoryBlockRegistry()
	ctx := context.Background()
	now := time.Now()

	if _, err := r.Block(ctx, "a", domain.BlockReasonManual, time.Second, 0, now); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := r.Block(ctx, "b", domain.BlockReasonManual, time.Hour, 0, now); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	removed, err := r.Sweep(ctx, now.Add(time.Minute))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected 1 removed, got %d", removed)
	}
}
