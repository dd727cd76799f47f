package domain

import (
	"context"
	"time"
)

// ViolationType classifica uma violação registrada contra um identificador.
type ViolationType string

const (
	ViolationRateLimit         ViolationType = "RATE_LIMIT"
	ViolationSuspiciousPattern ViolationType = "SUSPICIOUS_PATTERN"
	ViolationInvalidRequest    ViolationType = "INVALID_REQUEST"
	ViolationGeoRestricted     ViolationType = "GEO_RESTRICTED"
)

// Violation é um item do histórico rolante de um identificador.
type Violation struct {
	ID         string        `json:"id"`
	Identifier Key           `json:"identifier"`
	Type       ViolationType `json:"type"`
	Details    string        `json:"details,omitempty"`
	At         time.Time     `json:"at"`
}

// ViolationLog é o histórico append-only por identificador, limitado aos N
// registros mais recentes e com TTL no conjunto inteiro.
//
// Implementações devem tratar erro como best-effort na escrita: o recorder
// não derruba a decisão da requisição por falha de log.
type ViolationLog interface {
	// Append grava a violação no histórico do identificador e no feed global.
	Append(ctx context.Context, v Violation) error

	// CountSince conta violações do identificador desde o instante dado.
	CountSince(ctx context.Context, id Key, since time.Time) (int, error)

	// Recent lista as violações mais recentes de todos os identificadores.
	Recent(ctx context.Context, limit int) ([]Violation, error)
}
