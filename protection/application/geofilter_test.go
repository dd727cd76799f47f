package application

import (
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"protection-gateway/protection/domain"
)

func staticResolver(iso string) domain.RegionResolver {
	return domain.RegionResolverFunc(func(string) (string, error) { return iso, nil })
}

func TestGeoFilter_DeniedRegionBlocks(t *testing.T) {
	s := DefaultSettings()
	s.DeniedRegions = []string{"KP"}
	g := &GeoFilter{Resolver: staticResolver("kp"), Settings: testSettings(t, s), Log: zerolog.Nop()}

	res := g.CheckRegion("1.2.3.4")
	if res.Allowed {
		t.Fatalf("expected denied region to block")
	}
	if res.Jurisdiction != "KP" {
		t.Fatalf("expected jurisdiction KP, got %q", res.Jurisdiction)
	}
}

func TestGeoFilter_AllowListRequiresMembership(t *testing.T) {
	s := DefaultSettings()
	s.AllowedRegions = []string{"BR", "US"}
	m := testSettings(t, s)

	g := &GeoFilter{Resolver: staticResolver("DE"), Settings: m, Log: zerolog.Nop()}
	if res := g.CheckRegion("1.2.3.4"); res.Allowed {
		t.Fatalf("expected region outside allow-list to block")
	}

	g.Resolver = staticResolver("BR")
	if res := g.CheckRegion("1.2.3.4"); !res.Allowed {
		t.Fatalf("expected allow-listed region to pass")
	}
}

func TestGeoFilter_ResolutionFailureFailsOpen(t *testing.T) {
	s := DefaultSettings()
	s.DeniedRegions = []string{"KP"}
	g := &GeoFilter{
		Resolver: domain.RegionResolverFunc(func(string) (string, error) { return "", errors.New("db unavailable") }),
		Settings: testSettings(t, s),
		Log:      zerolog.Nop(),
	}

	if res := g.CheckRegion("1.2.3.4"); !res.Allowed {
		t.Fatalf("expected fail-open when resolution fails")
	}
}

func TestGeoFilter_NoResolverAllowsEverything(t *testing.T) {
	s := DefaultSettings()
	s.DeniedRegions = []string{"KP"}
	g := &GeoFilter{Settings: testSettings(t, s), Log: zerolog.Nop()}

	if res := g.CheckRegion("1.2.3.4"); !res.Allowed {
		t.Fatalf("expected allow without a resolver")
	}
}
