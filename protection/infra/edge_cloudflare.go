package infra

import (
	"context"
	"fmt"

	cloudflare "github.com/cloudflare/cloudflare-go"

	"protection-gateway/protection/domain"
)

// CloudflareEdge implementa domain.EdgeClient sobre a API de zona do
// Cloudflare: bloqueios viram IP access rules e a postura vira o
// security_level da zona.
//
// Qualquer outro vendor de edge pode substituir este adapter implementando
// domain.EdgeClient.
type CloudflareEdge struct {
	api    *cloudflare.API
	zoneID string
}

func NewCloudflareEdge(apiToken, zoneID string) (*CloudflareEdge, error) {
	api, err := cloudflare.NewWithAPIToken(apiToken)
	if err != nil {
		return nil, fmt.Errorf("creating cloudflare client: %w", err)
	}
	return &CloudflareEdge{api: api, zoneID: zoneID}, nil
}

// Block cria uma IP access rule de modo "block" na zona.
func (e *CloudflareEdge) Block(ctx context.Context, ip, note string) error {
	_, err := e.api.CreateZoneAccessRule(ctx, e.zoneID, cloudflare.AccessRule{
		Mode:          "block",
		Notes:         note,
		Configuration: cloudflare.AccessRuleConfiguration{Target: "ip", Value: ip},
	})
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrEdgeUnavailable, err)
	}
	return nil
}

// Unblock remove as access rules da zona que apontam para o IP.
func (e *CloudflareEdge) Unblock(ctx context.Context, ip string) error {
	rules, err := e.api.ListZoneAccessRules(ctx, e.zoneID, cloudflare.AccessRule{
		Configuration: cloudflare.AccessRuleConfiguration{Target: "ip", Value: ip},
	}, 1)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrEdgeUnavailable, err)
	}
	for _, rule := range rules.Result {
		if rule.Configuration.Value != ip {
			continue
		}
		if _, err := e.api.DeleteZoneAccessRule(ctx, e.zoneID, rule.ID); err != nil {
			return fmt.Errorf("%w: %v", domain.ErrEdgeUnavailable, err)
		}
	}
	return nil
}

// SetSecurityLevel ajusta o security_level da zona.
func (e *CloudflareEdge) SetSecurityLevel(ctx context.Context, level domain.SecurityLevel) error {
	value := "medium"
	switch level {
	case domain.LevelElevated:
		value = "high"
	case domain.LevelUnderAttack:
		value = "under_attack"
	}
	_, err := e.api.UpdateZoneSettings(ctx, e.zoneID, []cloudflare.ZoneSetting{
		{ID: "security_level", Value: value},
	})
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrEdgeUnavailable, err)
	}
	return nil
}

// RecentEvents deriva eventos das access rules da zona (a API de zona não
// expõe um feed de eventos próprio neste plano).
func (e *CloudflareEdge) RecentEvents(ctx context.Context, limit int) ([]domain.EdgeEvent, error) {
	rules, err := e.api.ListZoneAccessRules(ctx, e.zoneID, cloudflare.AccessRule{}, 1)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrEdgeUnavailable, err)
	}

	events := make([]domain.EdgeEvent, 0, limit)
	for _, rule := range rules.Result {
		if len(events) == limit {
			break
		}
		events = append(events, domain.EdgeEvent{
			ID:     rule.ID,
			Action: rule.Mode,
			Target: rule.Configuration.Value,
			Note:   rule.Notes,
			At:     rule.ModifiedOn,
		})
	}
	return events, nil
}

// Ping valida conectividade e credenciais consultando a zona.
func (e *CloudflareEdge) Ping(ctx context.Context) error {
	if _, err := e.api.ZoneDetails(ctx, e.zoneID); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrEdgeUnavailable, err)
	}
	return nil
}
