package application

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"protection-gateway/protection/domain"
)

// Pipeline orquestra os checks de admissão na ordem fixa:
//
//  1. whitelist (presente → ALLOW, pula tudo)
//  2. blacklist (entrada ativa → BLOCK com TTL restante)
//  3. geo filter (negado → BLOCK + bloqueio "estendido")
//  4. rate limiter (violado → viola + BLOCK/CHALLENGE com reset do escopo)
//  5. detector de padrões (inseguro → viola + bloqueio curto + BLOCK)
//  6. validação de formato (inválido → viola + BLOCK, sem bloqueio durável)
//  7. ALLOW
//
// O primeiro check que falha decide; os demais são pulados. Efeitos
// colaterais (violações, stats, sync com a edge) rodam async em relação à
// decisão para não segurar a latência da resposta.
type Pipeline struct {
	Registry  domain.BlockRegistry
	Geo       *GeoFilter
	Limiter   *RateLimiter
	Recorder  *Recorder
	Edge      *EdgeCoordinator
	Settings  *SettingsManager
	Stats     domain.StatsStore // opcional
	Metrics   *Metrics          // opcional
	Log       zerolog.Logger
}

// Admit roda a pipeline para uma requisição e retorna a decisão.
func (p *Pipeline) Admit(ctx context.Context, desc domain.RequestDescriptor, now time.Time) domain.Decision {
	id := domain.Key(desc.Identity.IP)
	dec := p.decide(ctx, desc, id, now)

	p.Metrics.ObserveDecision(dec)
	if p.Stats != nil {
		go func() {
			statsCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
			defer cancel()
			if err := p.Stats.Record(statsCtx, domain.StatsEvent{
				Key:     id,
				Outcome: dec.Outcome,
				Reason:  dec.Reason,
				Method:  desc.Method,
				Path:    desc.Path,
				At:      now,
			}); err != nil {
				p.Log.Debug().Err(err).Msg("stats record failed")
			}
		}()
	}
	return dec
}

func (p *Pipeline) decide(ctx context.Context, desc domain.RequestDescriptor, id domain.Key, now time.Time) domain.Decision {
	// 1) whitelist curto-circuita tudo, inclusive geo
	allowed, err := p.Registry.Allowed(ctx, id)
	if err != nil {
		p.Log.Error().Err(err).Str("id", string(id)).Msg("whitelist check failed, failing open")
	} else if allowed {
		return domain.Decision{Outcome: domain.OutcomeAllow, Reason: domain.ReasonWhitelisted}
	}

	// 2) blacklist
	entry, err := p.Registry.Blocked(ctx, id, now)
	if err != nil {
		p.Log.Error().Err(err).Str("id", string(id)).Msg("blacklist check failed, failing open")
	} else if entry != nil {
		return domain.Decision{
			Outcome:    domain.OutcomeBlock,
			Reason:     domain.ReasonIPBlocked,
			RetryAfter: entry.Remaining(now),
		}
	}

	// 3) geo: violação geográfica escalona direto para bloqueio estendido
	if geo := p.Geo.CheckRegion(desc.Identity.IP); !geo.Allowed {
		s := p.Settings.Current()
		p.async(ctx, func(ctx context.Context) {
			p.Recorder.Record(ctx, id, domain.ViolationGeoRestricted, "jurisdiction "+geo.Jurisdiction, now)
			p.Metrics.ObserveViolation(domain.ViolationGeoRestricted)
			if _, err := p.Registry.Block(ctx, id, domain.BlockReasonGeoRestricted, s.BlockDurations.Extended, 0, now); err != nil {
				p.Log.Error().Err(err).Str("id", string(id)).Msg("geo block failed")
			} else {
				p.Edge.SyncBlock(ctx, desc.Identity.IP, string(domain.BlockReasonGeoRestricted))
			}
		})
		return domain.Decision{
			Outcome:      domain.OutcomeBlock,
			Reason:       domain.ReasonGeoRestricted,
			RetryAfter:   s.BlockDurations.Extended,
			Jurisdiction: geo.Jurisdiction,
		}
	}

	// 4) quotas
	if st := p.Limiter.Check(ctx, desc.Identity, now); !st.Allowed {
		p.async(ctx, func(ctx context.Context) {
			p.Recorder.Record(ctx, id, domain.ViolationRateLimit, "scope "+st.Scope, now)
			p.Metrics.ObserveViolation(domain.ViolationRateLimit)
		})

		// escopo global estourado pune todo mundo: desafia em vez de
		// bloquear, para não derrubar clientes legítimos junto
		outcome := domain.OutcomeBlock
		if st.Scope == ScopeGlobal {
			outcome = domain.OutcomeChallenge
		}
		return domain.Decision{
			Outcome:    outcome,
			Reason:     domain.ReasonRateLimitExceeded,
			RetryAfter: retryAfter(st.ResetAt, now),
			Scope:      st.Scope,
		}
	}

	// 5) heurísticas de padrão
	shape := p.Settings.Current().Shape
	det := Detector{MaxQueryLength: shape.MaxQueryLength, MaxProxyHops: shape.MaxProxyHops}
	if score := det.Inspect(desc); !score.Safe {
		s := p.Settings.Current()
		p.async(ctx, func(ctx context.Context) {
			p.Recorder.Record(ctx, id, domain.ViolationSuspiciousPattern, strings.Join(score.Indicators, ","), now)
			p.Metrics.ObserveViolation(domain.ViolationSuspiciousPattern)
			if _, err := p.Registry.Block(ctx, id, domain.BlockReasonSuspiciousPattern, s.BlockDurations.Short, 0, now); err != nil {
				p.Log.Error().Err(err).Str("id", string(id)).Msg("pattern block failed")
			} else {
				p.Edge.SyncBlock(ctx, desc.Identity.IP, string(domain.BlockReasonSuspiciousPattern))
			}
		})
		return domain.Decision{
			Outcome:    domain.OutcomeBlock,
			Reason:     domain.ReasonSuspiciousActivity,
			RetryAfter: s.BlockDurations.Short,
			Indicators: score.Indicators,
		}
	}

	// 6) formato: cliente malformado pontual, rejeita sem bloqueio durável
	if ok, why := (Validator{Shape: shape}).Check(desc); !ok {
		p.async(ctx, func(ctx context.Context) {
			p.Recorder.Record(ctx, id, domain.ViolationInvalidRequest, why, now)
			p.Metrics.ObserveViolation(domain.ViolationInvalidRequest)
		})
		return domain.Decision{Outcome: domain.OutcomeBlock, Reason: domain.ReasonInvalidRequest}
	}

	return domain.Decision{Outcome: domain.OutcomeAllow, Reason: domain.ReasonOK}
}

// async roda o efeito colateral fora do caminho da resposta, com contexto
// desatrelado do cancelamento da requisição (efeitos parciais são aceitáveis,
// rollback não existe aqui).
func (p *Pipeline) async(ctx context.Context, fn func(context.Context)) {
	bg, cancel := context.WithTimeout(context.WithoutCancel(ctx), 15*time.Second)
	go func() {
		defer cancel()
		fn(bg)
	}()
}

func retryAfter(resetAt, now time.Time) time.Duration {
	if resetAt.IsZero() || !resetAt.After(now) {
		return time.Second
	}
	return resetAt.Sub(now)
}
