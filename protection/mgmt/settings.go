package mgmt

import (
	"time"

	"protection-gateway/protection/application"
	"protection-gateway/protection/domain"
)

// settingsPayload é o DTO do PUT /admin/settings. Janelas e durações em
// segundos; campos ausentes mantêm o valor vigente (a validação roda sempre
// sobre o struct final, então nada é aplicado se qualquer campo for
// inválido).
type settingsPayload struct {
	RateLimits *struct {
		Global    *scopePayload `json:"global"`
		PerClient *scopePayload `json:"perClient"`
		PerUser   *scopePayload `json:"perUser"`
		PerRoute  *scopePayload `json:"perRoute"`
	} `json:"rateLimits"`

	Thresholds *struct {
		MaxBodyBytes   *int64 `json:"maxBodyBytes"`
		MaxURILength   *int   `json:"maxUriLength"`
		MaxHeaderCount *int   `json:"maxHeaderCount"`
		MaxQueryLength *int   `json:"maxQueryLength"`
		MaxProxyHops   *int   `json:"maxProxyHops"`
	} `json:"thresholds"`

	BlockDuration *struct {
		ShortSeconds     *int `json:"shortSeconds"`
		ExtendedSeconds  *int `json:"extendedSeconds"`
		EscalatedSeconds *int `json:"escalatedSeconds"`
	} `json:"blockDuration"`

	EscalationThreshold     *int `json:"escalationThreshold"`
	EscalationWindowSeconds *int `json:"escalationWindowSeconds"`
	EmergencyDivisor        *int `json:"emergencyDivisor"`

	DeniedRegions  *[]string `json:"deniedRegions"`
	AllowedRegions *[]string `json:"allowedRegions"`

	SecurityLevel *string `json:"securityLevel"`
}

type scopePayload struct {
	WindowSeconds int   `json:"windowSeconds"`
	Max           int64 `json:"max"`
}

func (p scopePayload) limit() application.ScopeLimit {
	return application.ScopeLimit{
		Window: time.Duration(p.WindowSeconds) * time.Second,
		Max:    p.Max,
	}
}

// apply sobrepõe o payload na configuração vigente e retorna o struct novo.
func (p settingsPayload) apply(s application.Settings) application.Settings {
	if p.RateLimits != nil {
		if p.RateLimits.Global != nil {
			s.Limits.Global = p.RateLimits.Global.limit()
		}
		if p.RateLimits.PerClient != nil {
			s.Limits.PerClient = p.RateLimits.PerClient.limit()
		}
		if p.RateLimits.PerUser != nil {
			s.Limits.PerUser = p.RateLimits.PerUser.limit()
		}
		if p.RateLimits.PerRoute != nil {
			s.Limits.PerRoute = p.RateLimits.PerRoute.limit()
		}
	}

	if p.Thresholds != nil {
		if p.Thresholds.MaxBodyBytes != nil {
			s.Shape.MaxBodyBytes = *p.Thresholds.MaxBodyBytes
		}
		if p.Thresholds.MaxURILength != nil {
			s.Shape.MaxURILength = *p.Thresholds.MaxURILength
		}
		if p.Thresholds.MaxHeaderCount != nil {
			s.Shape.MaxHeaderCount = *p.Thresholds.MaxHeaderCount
		}
		if p.Thresholds.MaxQueryLength != nil {
			s.Shape.MaxQueryLength = *p.Thresholds.MaxQueryLength
		}
		if p.Thresholds.MaxProxyHops != nil {
			s.Shape.MaxProxyHops = *p.Thresholds.MaxProxyHops
		}
	}

	if p.BlockDuration != nil {
		if p.BlockDuration.ShortSeconds != nil {
			s.BlockDurations.Short = time.Duration(*p.BlockDuration.ShortSeconds) * time.Second
		}
		if p.BlockDuration.ExtendedSeconds != nil {
			s.BlockDurations.Extended = time.Duration(*p.BlockDuration.ExtendedSeconds) * time.Second
		}
		if p.BlockDuration.EscalatedSeconds != nil {
			s.BlockDurations.Escalated = time.Duration(*p.BlockDuration.EscalatedSeconds) * time.Second
		}
	}

	if p.EscalationThreshold != nil {
		s.EscalationThreshold = *p.EscalationThreshold
	}
	if p.EscalationWindowSeconds != nil {
		s.EscalationWindow = time.Duration(*p.EscalationWindowSeconds) * time.Second
	}
	if p.EmergencyDivisor != nil {
		s.EmergencyDivisor = *p.EmergencyDivisor
	}
	if p.DeniedRegions != nil {
		s.DeniedRegions = *p.DeniedRegions
	}
	if p.AllowedRegions != nil {
		s.AllowedRegions = *p.AllowedRegions
	}
	if p.SecurityLevel != nil {
		s.Level = domain.SecurityLevel(*p.SecurityLevel)
	}
	return s
}
