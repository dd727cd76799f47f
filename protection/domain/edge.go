package domain

import (
	"context"
	"time"
)

// EdgeEvent é um evento reportado pelo provedor de edge (regra criada,
// removida, etc). Usado só para relatórios no management API.
type EdgeEvent struct {
	ID     string    `json:"id"`
	Action string    `json:"action"`
	Target string    `json:"target"`
	Note   string    `json:"note,omitempty"`
	At     time.Time `json:"at"`
}

// EdgeClient é o contrato abstrato com o provedor de proteção de edge
// (Cloudflare ou equivalente). Toda chamada é best-effort: o caller nunca
// propaga falha daqui para o caminho da requisição.
//
// O client não é dono de estado local nenhum: falhas dele jamais corrompem
// registries ou contadores.
type EdgeClient interface {
	// Block cria uma regra de bloqueio para o IP na edge.
	Block(ctx context.Context, ip, note string) error

	// Unblock remove a(s) regra(s) de bloqueio do IP na edge.
	Unblock(ctx context.Context, ip string) error

	// SetSecurityLevel ajusta o nível de postura na edge.
	SetSecurityLevel(ctx context.Context, level SecurityLevel) error

	// RecentEvents lista eventos recentes da edge (até limit).
	RecentEvents(ctx context.Context, limit int) ([]EdgeEvent, error)

	// Ping verifica conectividade/credenciais com o provedor.
	Ping(ctx context.Context) error
}

// EdgeHealth é o estado de saúde do sync com a edge, exposto no /health.
type EdgeHealth struct {
	Enabled   bool      `json:"enabled"`
	Healthy   bool      `json:"healthy"`
	LastError string    `json:"lastError,omitempty"`
	CheckedAt time.Time `json:"checkedAt,omitzero"`
}
