package application

import (
	"fmt"

	"protection-gateway/protection/domain"
)

// Validator checa o formato da requisição (tamanhos e headers obrigatórios).
// Puro e sem I/O, como o Detector. Violações aqui são tipicamente clientes
// malformados pontuais: rejeita, mas não gera bloqueio permanente.
type Validator struct {
	Shape Shape
}

// Check retorna ok=false e o motivo na primeira irregularidade encontrada.
func (v Validator) Check(desc domain.RequestDescriptor) (bool, string) {
	if desc.Host == "" {
		return false, "missing Host header"
	}
	if desc.Method == "" {
		return false, "missing method"
	}
	if v.Shape.MaxBodyBytes > 0 && desc.ContentLength > v.Shape.MaxBodyBytes {
		return false, fmt.Sprintf("body of %d bytes exceeds limit", desc.ContentLength)
	}
	if v.Shape.MaxURILength > 0 && desc.URILength() > v.Shape.MaxURILength {
		return false, fmt.Sprintf("uri of %d chars exceeds limit", desc.URILength())
	}
	if v.Shape.MaxHeaderCount > 0 && desc.HeaderCount() > v.Shape.MaxHeaderCount {
		return false, fmt.Sprintf("%d headers exceeds limit", desc.HeaderCount())
	}
	if v.Shape.MaxQueryLength > 0 && len(desc.RawQuery) > v.Shape.MaxQueryLength {
		return false, fmt.Sprintf("query of %d chars exceeds limit", len(desc.RawQuery))
	}
	return true, ""
}
