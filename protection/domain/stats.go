package domain

import (
	"context"
	"time"
)

// StatsEvent representa uma decisão da pipeline, para fins de estatística.
//
// Ele é propositalmente "agnóstico de HTTP": Method/Path são strings
// genéricas. Cuidado com cardinalidade ao gravar Key/Path sem controle.
type StatsEvent struct {
	Key     Key
	Outcome Outcome
	Reason  ReasonCode

	Method string
	Path   string

	At time.Time
}

// StatsTotals é o snapshot agregado lido pelo management API.
type StatsTotals struct {
	Allowed    int64            `json:"allowed"`
	Challenged int64            `json:"challenged"`
	Blocked    int64            `json:"blocked"`
	ByReason   map[string]int64 `json:"byReason"`
}

// StatsStore é a estratégia de persistência para estatísticas de decisão.
//
// A pipeline trata erro como best-effort (não derruba request).
type StatsStore interface {
	Record(ctx context.Context, ev StatsEvent) error
}

// StatsReader é o lado de leitura, usado pelo management API.
type StatsReader interface {
	Totals(ctx context.Context) (StatsTotals, error)
}
