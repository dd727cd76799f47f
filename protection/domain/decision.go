package domain

import "time"

// Outcome é o estado terminal da pipeline de admissão para uma requisição.
type Outcome string

const (
	OutcomeAllow     Outcome = "ALLOW"
	OutcomeChallenge Outcome = "CHALLENGE"
	OutcomeBlock     Outcome = "BLOCK"
)

// ReasonCode é o código estável retornado ao cliente e registrado em stats.
type ReasonCode string

const (
	ReasonOK                 ReasonCode = "OK"
	ReasonWhitelisted        ReasonCode = "WHITELISTED"
	ReasonIPBlocked          ReasonCode = "IP_BLOCKED"
	ReasonGeoRestricted      ReasonCode = "GEO_RESTRICTED"
	ReasonRateLimitExceeded  ReasonCode = "RATE_LIMIT_EXCEEDED"
	ReasonSuspiciousActivity ReasonCode = "SUSPICIOUS_ACTIVITY"
	ReasonInvalidRequest     ReasonCode = "INVALID_REQUEST"
)

// Decision é o resultado efêmero da pipeline. Nunca é persistida; efeitos
// colaterais (violações, bloqueios, sync com a edge) acontecem à parte.
type Decision struct {
	Outcome Outcome
	Reason  ReasonCode

	// RetryAfter indica quando vale a pena tentar de novo (0 = desconhecido).
	RetryAfter time.Duration

	// Scope é o escopo de limite violado, quando Reason = RATE_LIMIT_EXCEEDED.
	Scope string

	// Indicators são os sinais disparados pelo detector de padrões.
	Indicators []string

	// Jurisdiction é o país resolvido pelo geo filter, quando disponível.
	Jurisdiction string
}

// Allowed é um atalho para Outcome == ALLOW.
func (d Decision) Allowed() bool { return d.Outcome == OutcomeAllow }
