package application

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"protection-gateway/protection/domain"
)

// EdgeCoordinator sincroniza bloqueios e postura com o provedor de edge.
//
// Toda chamada é best-effort: falha vira log + saúde degradada, nunca erro
// no caminho da requisição. A pipeline local precisa funcionar inteira com a
// edge fora do ar: o sync é defesa em profundidade, não dependência.
//
// O limiter de saída evita que uma tempestade de bloqueios estoure o rate
// limit da API do próprio provedor.
type EdgeCoordinator struct {
	Client  domain.EdgeClient // nil = edge desabilitada
	Timeout time.Duration
	Limiter *rate.Limiter
	Log     zerolog.Logger

	mu        sync.Mutex
	healthy   bool
	lastErr   string
	checkedAt time.Time
}

// NewEdgeCoordinator cria o coordenador com timeout curto (teto de 10s) e
// throttle de saída moderado.
func NewEdgeCoordinator(client domain.EdgeClient, log zerolog.Logger) *EdgeCoordinator {
	return &EdgeCoordinator{
		Client:  client,
		Timeout: 10 * time.Second,
		Limiter: rate.NewLimiter(rate.Limit(4), 8),
		Log:     log,
		healthy: client != nil,
	}
}

// Enabled diz se há um provedor configurado.
func (c *EdgeCoordinator) Enabled() bool { return c != nil && c.Client != nil }

// SyncBlock replica um bloqueio local para a edge. Best-effort.
func (c *EdgeCoordinator) SyncBlock(ctx context.Context, ip, reason string) {
	c.call(ctx, "sync block", func(ctx context.Context) error {
		return c.Client.Block(ctx, ip, reason)
	})
}

// SyncUnblock remove o bloqueio na edge. Best-effort.
func (c *EdgeCoordinator) SyncUnblock(ctx context.Context, ip string) {
	c.call(ctx, "sync unblock", func(ctx context.Context) error {
		return c.Client.Unblock(ctx, ip)
	})
}

// SetPostureLevel propaga o nível de postura para a edge. Best-effort.
func (c *EdgeCoordinator) SetPostureLevel(ctx context.Context, level domain.SecurityLevel) {
	c.call(ctx, "set posture level", func(ctx context.Context) error {
		return c.Client.SetSecurityLevel(ctx, level)
	})
}

// FetchRecentEvents lista eventos recentes da edge. Retorna lista vazia em
// falha (a falha fica registrada na saúde).
func (c *EdgeCoordinator) FetchRecentEvents(ctx context.Context, limit int) []domain.EdgeEvent {
	var events []domain.EdgeEvent
	c.call(ctx, "fetch events", func(ctx context.Context) error {
		var err error
		events, err = c.Client.RecentEvents(ctx, limit)
		return err
	})
	return events
}

// HealthCheck pinga o provedor e atualiza o estado de saúde.
func (c *EdgeCoordinator) HealthCheck(ctx context.Context) domain.EdgeHealth {
	if !c.Enabled() {
		return domain.EdgeHealth{Enabled: false}
	}
	c.call(ctx, "health check", func(ctx context.Context) error {
		return c.Client.Ping(ctx)
	})
	return c.Health()
}

// Health retorna o último estado de saúde observado, sem I/O.
func (c *EdgeCoordinator) Health() domain.EdgeHealth {
	if !c.Enabled() {
		return domain.EdgeHealth{Enabled: false}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return domain.EdgeHealth{
		Enabled:   true,
		Healthy:   c.healthy,
		LastError: c.lastErr,
		CheckedAt: c.checkedAt,
	}
}

// ResyncLoop empurra periodicamente os bloqueios locais ativos para a edge,
// reconciliando divergência (a edge pode ter perdido um sync anterior).
// Pare cancelando o contexto.
func (c *EdgeCoordinator) ResyncLoop(ctx context.Context, registry domain.BlockRegistry, every time.Duration) {
	if !c.Enabled() || every <= 0 {
		return
	}

	t := time.NewTicker(every)
	go func() {
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				entries, err := registry.ActiveBlocks(ctx, time.Now())
				if err != nil {
					c.Log.Error().Err(err).Msg("resync: listing active blocks failed")
					continue
				}
				for _, e := range entries {
					c.SyncBlock(ctx, string(e.Identifier), string(e.Reason))
				}
			}
		}
	}()
}

func (c *EdgeCoordinator) call(ctx context.Context, op string, fn func(context.Context) error) {
	if !c.Enabled() {
		return
	}
	if c.Limiter != nil && !c.Limiter.Allow() {
		c.Log.Debug().Str("op", op).Msg("edge call dropped by outbound throttle")
		return
	}

	timeout := c.Timeout
	if timeout <= 0 || timeout > 10*time.Second {
		timeout = 10 * time.Second
	}
	callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()

	err := fn(callCtx)

	c.mu.Lock()
	c.checkedAt = time.Now()
	if err != nil {
		c.healthy = false
		c.lastErr = err.Error()
	} else {
		c.healthy = true
		c.lastErr = ""
	}
	c.mu.Unlock()

	if err != nil {
		c.Log.Error().Err(err).Str("op", op).Msg("edge provider call failed")
	}
}
