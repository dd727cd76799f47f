package application

import (
	"strings"

	"github.com/rs/zerolog"

	"protection-gateway/protection/domain"
)

// GeoFilter mapeia o endereço do cliente para jurisdição e aplica as listas
// de deny/allow configuradas.
//
// Se a resolução falhar (base indisponível, IP privado, etc), fail open:
// melhor deixar passar tráfego legítimo do que bloquear por dependência
// faltando.
type GeoFilter struct {
	Resolver domain.RegionResolver
	Settings *SettingsManager
	Log      zerolog.Logger
}

// GeoResult é o veredito do filtro para um endereço.
type GeoResult struct {
	Allowed      bool
	Jurisdiction string
}

// CheckRegion resolve e aplica deny-list e, se configurada, allow-list.
func (g *GeoFilter) CheckRegion(ip string) GeoResult {
	if g.Resolver == nil {
		return GeoResult{Allowed: true}
	}

	iso, err := g.Resolver.Resolve(ip)
	if err != nil || iso == "" {
		if err != nil {
			g.Log.Debug().Err(err).Str("ip", ip).Msg("region resolution failed, failing open")
		}
		return GeoResult{Allowed: true}
	}
	iso = strings.ToUpper(iso)

	s := g.Settings.Current()
	for _, denied := range s.DeniedRegions {
		if strings.EqualFold(denied, iso) {
			return GeoResult{Allowed: false, Jurisdiction: iso}
		}
	}
	if len(s.AllowedRegions) > 0 {
		for _, allowed := range s.AllowedRegions {
			if strings.EqualFold(allowed, iso) {
				return GeoResult{Allowed: true, Jurisdiction: iso}
			}
		}
		return GeoResult{Allowed: false, Jurisdiction: iso}
	}
	return GeoResult{Allowed: true, Jurisdiction: iso}
}
