package protection

import (
	"net"
	"net/http"
	"strings"

	"protection-gateway/protection/domain"
)

// ClientAddressFunc extrai o endereço do cliente de uma requisição.
type ClientAddressFunc func(r *http.Request) string

// DefaultClientAddress resolve o endereço na ordem de confiança:
// header do provedor de edge (ex: CF-Connecting-IP) → primeiro IP do
// X-Forwarded-For (se confiável) → RemoteAddr.
func DefaultClientAddress(edgeHeader string, trustXFF bool) ClientAddressFunc {
	return func(r *http.Request) string {
		if edgeHeader != "" {
			if v := strings.TrimSpace(r.Header.Get(edgeHeader)); v != "" {
				return v
			}
		}

		if trustXFF {
			// pega o primeiro IP do X-Forwarded-For (cliente original)
			if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
				parts := strings.Split(xff, ",")
				if len(parts) > 0 {
					ip := strings.TrimSpace(parts[0])
					if ip != "" {
						return ip
					}
				}
			}
		}

		// fallback: RemoteAddr
		host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
		if err == nil && host != "" {
			return host
		}
		if r.RemoteAddr != "" {
			return r.RemoteAddr
		}
		return "unknown"
	}
}

// forwardedHops conta os saltos declarados em X-Forwarded-For.
func forwardedHops(r *http.Request) int {
	xff := r.Header.Get("X-Forwarded-For")
	if strings.TrimSpace(xff) == "" {
		return 0
	}
	return len(strings.Split(xff, ","))
}

// Descriptor monta o RequestDescriptor agnóstico de HTTP que a pipeline
// consome. userID/route vazios desligam os escopos correspondentes.
func Descriptor(r *http.Request, clientIP, userID, route string) domain.RequestDescriptor {
	headers := make(map[string]string, len(r.Header))
	for name, values := range r.Header {
		if len(values) > 0 {
			headers[name] = values[0]
		}
	}

	return domain.RequestDescriptor{
		Identity: domain.ClientIdentity{
			IP:     clientIP,
			UserID: userID,
			Route:  route,
		},
		Method:        r.Method,
		Path:          r.URL.Path,
		RawQuery:      r.URL.RawQuery,
		UserAgent:     r.UserAgent(),
		Referer:       r.Referer(),
		Host:          r.Host,
		Headers:       headers,
		ForwardedHops: forwardedHops(r),
		ContentLength: r.ContentLength,
	}
}
