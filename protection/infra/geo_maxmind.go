package infra

import (
	"fmt"
	"net"

	"github.com/oschwald/geoip2-golang"
)

// MaxMindResolver implementa domain.RegionResolver sobre uma base GeoLite2
// (Country ou City). A leitura do mmdb é local, sem round-trip de rede.
type MaxMindResolver struct {
	db *geoip2.Reader
}

func NewMaxMindResolver(path string) (*MaxMindResolver, error) {
	db, err := geoip2.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening geoip database: %w", err)
	}
	return &MaxMindResolver{db: db}, nil
}

// Resolve retorna o código ISO 3166-1 alpha-2 do país do IP. IP inválido ou
// sem registro retorna string vazia (o geo filter trata como fail-open).
func (r *MaxMindResolver) Resolve(ip string) (string, error) {
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return "", fmt.Errorf("invalid ip %q", ip)
	}
	record, err := r.db.Country(parsed)
	if err != nil {
		return "", err
	}
	return record.Country.IsoCode, nil
}

func (r *MaxMindResolver) Close() error { return r.db.Close() }
