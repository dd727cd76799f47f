package domain

import (
	"context"
	"time"
)

// BlockReason classifica a origem de um bloqueio.
type BlockReason string

const (
	BlockReasonManual             BlockReason = "manual"
	BlockReasonRateLimit          BlockReason = "rate_limit"
	BlockReasonSuspiciousPattern  BlockReason = "suspicious_pattern"
	BlockReasonGeoRestricted      BlockReason = "geo_restricted"
	BlockReasonMultipleViolations BlockReason = "multiple_violations"
	BlockReasonEdgeReported       BlockReason = "edge_reported"
)

// MaxSeverity é o teto do tier de severidade de um BlockEntry.
const MaxSeverity = 4

// BlockEntry é um bloqueio ativo (ou expirado e ainda não varrido) de um
// identificador. O registry mantém no máximo uma entrada ativa por id;
// re-bloquear estende a expiração e sobe o tier de severidade.
type BlockEntry struct {
	Identifier Key         `json:"identifier"`
	Reason     BlockReason `json:"reason"`
	BlockedAt  time.Time   `json:"blockedAt"`
	ExpiresAt  time.Time   `json:"expiresAt"`

	// Violations é o total de violações do identificador no momento do bloqueio.
	Violations int `json:"violations"`

	// Severity vai de 1 a MaxSeverity e cresce a cada re-bloqueio.
	Severity int `json:"severity"`
}

// ActiveAt diz se a entrada ainda vale no instante dado. Entradas expiradas
// são logicamente ausentes mesmo antes da varredura física.
func (e BlockEntry) ActiveAt(now time.Time) bool { return now.Before(e.ExpiresAt) }

// Remaining retorna o TTL restante (0 se já expirou).
func (e BlockEntry) Remaining(now time.Time) time.Duration {
	if !e.ActiveAt(now) {
		return 0
	}
	return e.ExpiresAt.Sub(now)
}

// AllowEntry é uma entrada de whitelist. Não expira; só sai por remoção
// explícita. A whitelist é checada antes de qualquer lógica de bloqueio.
type AllowEntry struct {
	Identifier Key       `json:"identifier"`
	Reason     string    `json:"reason"`
	AddedAt    time.Time `json:"addedAt"`
}

// BlockRegistry é o dono do estado persistido de bloqueios e whitelist.
//
// Implementações devem tratar expiração de forma preguiçosa na leitura
// (Blocked ignora entradas vencidas) e física via Sweep periódico.
type BlockRegistry interface {
	// Blocked retorna a entrada ativa para o id, ou nil se não houver.
	Blocked(ctx context.Context, id Key, now time.Time) (*BlockEntry, error)

	// Block cria ou estende o bloqueio do id. Se já houver entrada ativa,
	// a expiração é sobrescrita e o tier de severidade sobe.
	Block(ctx context.Context, id Key, reason BlockReason, duration time.Duration, violations int, now time.Time) (BlockEntry, error)

	// Unblock remove o bloqueio. Remover um id não bloqueado é no-op.
	Unblock(ctx context.Context, id Key) error

	// Allowed diz se o id está na whitelist.
	Allowed(ctx context.Context, id Key) (bool, error)

	// Allow adiciona o id à whitelist (idempotente).
	Allow(ctx context.Context, id Key, reason string, now time.Time) error

	// Disallow remove o id da whitelist (no-op se ausente).
	Disallow(ctx context.Context, id Key) error

	// ActiveBlocks lista as entradas ativas (relatórios e resync com a edge).
	ActiveBlocks(ctx context.Context, now time.Time) ([]BlockEntry, error)

	// Whitelist lista as entradas de allow.
	Whitelist(ctx context.Context) ([]AllowEntry, error)

	// Sweep remove fisicamente entradas expiradas e retorna quantas saíram.
	Sweep(ctx context.Context, now time.Time) (int, error)
}
