package protection

import (
	"encoding/json"
	"net/http"
	"time"

	"protection-gateway/protection/application"
	"protection-gateway/protection/domain"
)

// Options configura o middleware de admissão.
type Options struct {
	Pipeline *application.Pipeline

	// EdgeIPHeader é o header do provedor de edge com o IP real do cliente
	// (ex: CF-Connecting-IP). Vazio desliga.
	EdgeIPHeader       string
	TrustXForwardedFor bool

	// ClientAddress sobrepõe a extração padrão de endereço.
	ClientAddress ClientAddressFunc

	// UserFn extrai o identificador do usuário autenticado (opcional).
	UserFn func(r *http.Request) string

	// RouteFn extrai o identificador da rota; default é o path.
	RouteFn func(r *http.Request) string

	// AddDecisionHeaders inclui X-Protection-* na resposta.
	AddDecisionHeaders bool
}

// rejectionBody é o corpo estruturado devolvido a clientes rejeitados.
// Erros internos nunca aparecem aqui: store fora do ar degrada para allow,
// não para 500.
type rejectionBody struct {
	Success bool           `json:"success"`
	Error   rejectionError `json:"error"`
}

type rejectionError struct {
	Code       string `json:"code"`
	RetryAfter int    `json:"retryAfter,omitempty"`
}

// Middleware aplica a pipeline de admissão a cada requisição.
func Middleware(opts Options) func(next http.Handler) http.Handler {
	if opts.ClientAddress == nil {
		opts.ClientAddress = DefaultClientAddress(opts.EdgeIPHeader, opts.TrustXForwardedFor)
	}
	if opts.RouteFn == nil {
		opts.RouteFn = func(r *http.Request) string { return r.URL.Path }
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var userID string
			if opts.UserFn != nil {
				userID = opts.UserFn(r)
			}
			desc := Descriptor(r, opts.ClientAddress(r), userID, opts.RouteFn(r))

			dec := opts.Pipeline.Admit(r.Context(), desc, time.Now())

			if opts.AddDecisionHeaders {
				w.Header().Set("X-Protection-Outcome", string(dec.Outcome))
				w.Header().Set("X-Protection-Reason", string(dec.Reason))
			}

			if dec.Allowed() {
				next.ServeHTTP(w, r)
				return
			}
			reject(w, dec)
		})
	}
}

// reject traduz a decisão para status + headers + corpo estruturado:
// 429 para rate limit e challenge, 403 para bloqueio/geo/padrão/formato.
func reject(w http.ResponseWriter, dec domain.Decision) {
	status := http.StatusForbidden
	if dec.Reason == domain.ReasonRateLimitExceeded || dec.Outcome == domain.OutcomeChallenge {
		status = http.StatusTooManyRequests
	}

	retrySecs := 0
	if dec.RetryAfter > 0 {
		retrySecs = int(dec.RetryAfter.Seconds())
		if retrySecs < 1 {
			retrySecs = 1
		}
		w.Header().Set("Retry-After", formatInt(retrySecs))
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(rejectionBody{
		Error: rejectionError{
			Code:       string(dec.Reason),
			RetryAfter: retrySecs,
		},
	})
}
