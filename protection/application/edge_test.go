package application

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/rs/zerolog"

	"protection-gateway/protection/domain"
)

// fakeEdgeClient é acessado tanto pelo teste quanto pelos efeitos colaterais
// assíncronos da pipeline, então protege tudo com mutex.
type fakeEdgeClient struct {
	mu        sync.Mutex
	blocked   []string
	unblocked []string
	level     domain.SecurityLevel
	pings     int
	err       error
}

func (f *fakeEdgeClient) fail(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

func (f *fakeEdgeClient) blockedIPs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.blocked...)
}

func (f *fakeEdgeClient) unblockedIPs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.unblocked...)
}

func (f *fakeEdgeClient) postedLevel() domain.SecurityLevel {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.level
}

func (f *fakeEdgeClient) Block(_ context.Context, ip, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.blocked = append(f.blocked, ip)
	return nil
}

func (f *fakeEdgeClient) Unblock(_ context.Context, ip string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.unblocked = append(f.unblocked, ip)
	return nil
}

func (f *fakeEdgeClient) SetSecurityLevel(_ context.Context, level domain.SecurityLevel) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.level = level
	return nil
}

func (f *fakeEdgeClient) RecentEvents(context.Context, int) ([]domain.EdgeEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return []domain.EdgeEvent{{Action: "block", Target: "1.2.3.4"}}, nil
}

func (f *fakeEdgeClient) Ping(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pings++
	return f.err
}

func TestEdgeCoordinator_DisabledIsNoop(t *testing.T) {
	c := NewEdgeCoordinator(nil, zerolog.Nop())

	if c.Enabled() {
		t.Fatalf("expected disabled without client")
	}
	// nada disso pode entrar em pânico nem bloquear
	c.SyncBlock(context.Background(), "1.2.3.4", "manual")
	c.SyncUnblock(context.Background(), "1.2.3.4")
	c.SetPostureLevel(context.Background(), domain.LevelUnderAttack)

	h := c.HealthCheck(context.Background())
	if h.Enabled {
		t.Fatalf("expected health to report disabled")
	}
}

func TestEdgeCoordinator_NilCoordinatorIsSafe(t *testing.T) {
	var c *EdgeCoordinator
	if c.Enabled() {
		t.Fatalf("expected nil coordinator to be disabled")
	}
}

func TestEdgeCoordinator_SyncAndPosture(t *testing.T) {
	client := &fakeEdgeClient{}
	c := NewEdgeCoordinator(client, zerolog.Nop())

	c.SyncBlock(context.Background(), "1.2.3.4", "manual")
	c.SyncUnblock(context.Background(), "1.2.3.4")
	c.SetPostureLevel(context.Background(), domain.LevelUnderAttack)

	if blocked := client.blockedIPs(); len(blocked) != 1 || blocked[0] != "1.2.3.4" {
		t.Fatalf("expected block synced, got %v", blocked)
	}
	if unblocked := client.unblockedIPs(); len(unblocked) != 1 {
		t.Fatalf("expected unblock synced, got %v", unblocked)
	}
	if got := client.postedLevel(); got != domain.LevelUnderAttack {
		t.Fatalf("expected posture propagated, got %q", got)
	}

	h := c.Health()
	if !h.Enabled || !h.Healthy {
		t.Fatalf("expected healthy after successful calls, got %+v", h)
	}
}

func TestEdgeCoordinator_FailureDegradesHealthThenRecovers(t *testing.T) {
	client := &fakeEdgeClient{err: errors.New("api quota exceeded")}
	c := NewEdgeCoordinator(client, zerolog.Nop())

	h := c.HealthCheck(context.Background())
	if h.Healthy {
		t.Fatalf("expected unhealthy after failed ping")
	}
	if h.LastError != "api quota exceeded" {
		t.Fatalf("expected last error recorded, got %q", h.LastError)
	}

	client.fail(nil)
	h = c.HealthCheck(context.Background())
	if !h.Healthy || h.LastError != "" {
		t.Fatalf("expected recovery after successful ping, got %+v", h)
	}
}

func TestEdgeCoordinator_OutboundThrottleDropsExcessCalls(t *testing.T) {
	client := &fakeEdgeClient{}
	c := NewEdgeCoordinator(client, zerolog.Nop())

	for i := 0; i < 50; i++ {
		c.SyncBlock(context.Background(), "1.2.3.4", "manual")
	}
	// burst de 8, mais o que a taxa de 4/s liberar durante o loop
	blocked := client.blockedIPs()
	if len(blocked) >= 50 {
		t.Fatalf("expected throttle to drop calls, all %d went through", len(blocked))
	}
	if len(blocked) < 8 {
		t.Fatalf("expected at least the burst of 8, got %d", len(blocked))
	}
}

func TestEdgeCoordinator_FetchRecentEventsEmptyOnFailure(t *testing.T) {
	c := NewEdgeCoordinator(&fakeEdgeClient{err: errors.New("down")}, zerolog.Nop())

	events := c.FetchRecentEvents(context.Background(), 10)
	if len(events) != 0 {
		t.Fatalf("expected empty list on failure, got %v", events)
	}
	if c.Health().Healthy {
		t.Fatalf("expected failure reflected in health")
	}
}
