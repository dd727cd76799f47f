package application

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"protection-gateway/protection/domain"
)

// Nomes dos escopos, na ordem fixa de avaliação.
const (
	ScopeGlobal    = "global"
	ScopePerClient = "per_client"
	ScopePerUser   = "per_user"
	ScopePerRoute  = "per_route"
)

// LimitStatus é o resultado da avaliação de quotas de uma requisição.
type LimitStatus struct {
	Allowed bool

	// Scope é o primeiro escopo violado (vazio se permitido). Reportar o
	// escopo deixa distinguir "todo mundo bloqueado" de "só este cliente".
	Scope   string
	Current int64
	Limit   int64
	ResetAt time.Time
}

// RateLimiter avalia os escopos de quota contra o CounterStore.
//
// Ordem fixa, retorna na primeira violação:
// global → per-client → per-user (se houver identidade) → per-route-per-client.
//
// Erro do store é fail-open: loga e trata o escopo como dentro do limite.
type RateLimiter struct {
	Counters domain.CounterStore
	Settings *SettingsManager
	Log      zerolog.Logger
}

// Check incrementa e avalia cada escopo aplicável para a identidade.
func (l *RateLimiter) Check(ctx context.Context, id domain.ClientIdentity, now time.Time) LimitStatus {
	limits := l.Settings.Current().Limits

	scopes := []struct {
		name  string
		key   domain.Key
		limit ScopeLimit
		skip  bool
	}{
		{name: ScopeGlobal, key: "rl:global", limit: limits.Global},
		{name: ScopePerClient, key: domain.Key("rl:ip:" + id.IP), limit: limits.PerClient},
		{name: ScopePerUser, key: domain.Key("rl:user:" + id.UserID), limit: limits.PerUser, skip: id.UserID == ""},
		{name: ScopePerRoute, key: domain.Key("rl:route:" + id.Route + ":" + id.IP), limit: limits.PerRoute, skip: id.Route == ""},
	}

	for _, sc := range scopes {
		if sc.skip {
			continue
		}
		res, err := l.Counters.Increment(ctx, sc.key, sc.limit.Window, now)
		if err != nil {
			// fail open: disponibilidade acima de enforcement estrito
			l.Log.Error().Err(err).Str("scope", sc.name).Msg("counter store unavailable, failing open")
			continue
		}
		if res.Count > sc.limit.Max {
			return LimitStatus{
				Scope:   sc.name,
				Current: res.Count,
				Limit:   sc.limit.Max,
				ResetAt: res.ResetAt,
			}
		}
	}
	return LimitStatus{Allowed: true}
}
