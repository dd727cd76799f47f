package domain

import "errors"

// Erros sentinela da camada de proteção. A política de fail-open é aplicada
// nos call sites da pipeline via errors.Is.
var (
	// ErrStoreUnavailable indica que o backing store (contadores/registry)
	// está inacessível. Política: fail open, logar e seguir a pipeline.
	ErrStoreUnavailable = errors.New("protection: store unavailable")

	// ErrEdgeUnavailable indica falha na API do provedor de edge.
	// Política: fail open para a decisão local, saúde degradada no /health.
	ErrEdgeUnavailable = errors.New("protection: edge provider unavailable")

	// ErrInvalidSettings indica um update de configuração inválido.
	// Política: rejeitar o update inteiro, manter a configuração vigente.
	ErrInvalidSettings = errors.New("protection: invalid settings")
)
