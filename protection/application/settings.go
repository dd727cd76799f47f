package application

import (
	"fmt"
	"sync"
	"time"

	"protection-gateway/protection/domain"
)

// ScopeLimit é a quota de um escopo de rate limit.
type ScopeLimit struct {
	Window time.Duration `json:"window"`
	Max    int64         `json:"max"`
}

// Limits agrupa as quotas dos quatro escopos, na ordem de avaliação.
type Limits struct {
	Global    ScopeLimit `json:"global"`
	PerClient ScopeLimit `json:"perClient"`
	PerUser   ScopeLimit `json:"perUser"`
	PerRoute  ScopeLimit `json:"perRoute"`
}

// BlockDurations são as durações de bloqueio por tier de causa.
type BlockDurations struct {
	// Short: bloqueio temporário por padrão suspeito.
	Short time.Duration `json:"short"`
	// Extended: violação geográfica vira bloqueio "estendido".
	Extended time.Duration `json:"extended"`
	// Escalated: múltiplas violações dentro da janela de escalonamento.
	Escalated time.Duration `json:"escalated"`
}

// Shape são os limites de formato de requisição (validação barata, sem I/O).
type Shape struct {
	MaxBodyBytes   int64 `json:"maxBodyBytes"`
	MaxURILength   int   `json:"maxUriLength"`
	MaxHeaderCount int   `json:"maxHeaderCount"`
	MaxQueryLength int   `json:"maxQueryLength"`
	MaxProxyHops   int   `json:"maxProxyHops"`
}

// Settings é a configuração mutável em runtime da camada de proteção.
// Só muda via management API; o update valida e substitui o struct inteiro
// (nunca aplica parcial).
type Settings struct {
	Limits         Limits         `json:"rateLimits"`
	BlockDurations BlockDurations `json:"blockDuration"`
	Shape          Shape          `json:"thresholds"`

	// EscalationThreshold violações dentro de EscalationWindow geram um
	// bloqueio automático de duração Escalated.
	EscalationThreshold int           `json:"escalationThreshold"`
	EscalationWindow    time.Duration `json:"escalationWindow"`

	// DeniedRegions sempre bloqueia; AllowedRegions, se não vazio, exige
	// pertencimento (códigos ISO 3166-1 alpha-2).
	DeniedRegions  []string `json:"deniedRegions"`
	AllowedRegions []string `json:"allowedRegions"`

	// EmergencyDivisor é o fator de aperto dos Max em modo de emergência.
	EmergencyDivisor int `json:"emergencyDivisor"`

	Level domain.SecurityLevel `json:"securityLevel"`
}

// DefaultSettings retorna a configuração de partida do gateway.
func DefaultSettings() Settings {
	return Settings{
		Limits: Limits{
			Global:    ScopeLimit{Window: time.Minute, Max: 10000},
			PerClient: ScopeLimit{Window: time.Minute, Max: 100},
			PerUser:   ScopeLimit{Window: time.Minute, Max: 300},
			PerRoute:  ScopeLimit{Window: time.Minute, Max: 60},
		},
		BlockDurations: BlockDurations{
			Short:     10 * time.Minute,
			Extended:  6 * time.Hour,
			Escalated: 24 * time.Hour,
		},
		Shape: Shape{
			MaxBodyBytes:   10 << 20,
			MaxURILength:   2048,
			MaxHeaderCount: 50,
			MaxQueryLength: 2048,
			MaxProxyHops:   5,
		},
		EscalationThreshold: 5,
		EscalationWindow:    5 * time.Minute,
		EmergencyDivisor:    10,
		Level:               domain.LevelNormal,
	}
}

// Validate checa a consistência do struct inteiro. Nada é aplicado se
// qualquer campo for inválido.
func (s Settings) Validate() error {
	for _, sc := range []struct {
		name  string
		limit ScopeLimit
	}{
		{"global", s.Limits.Global},
		{"perClient", s.Limits.PerClient},
		{"perUser", s.Limits.PerUser},
		{"perRoute", s.Limits.PerRoute},
	} {
		if sc.limit.Window <= 0 {
			return fmt.Errorf("%w: %s window must be > 0", domain.ErrInvalidSettings, sc.name)
		}
		if sc.limit.Max <= 0 {
			return fmt.Errorf("%w: %s max must be > 0", domain.ErrInvalidSettings, sc.name)
		}
	}
	if s.BlockDurations.Short <= 0 || s.BlockDurations.Extended <= 0 || s.BlockDurations.Escalated <= 0 {
		return fmt.Errorf("%w: block durations must be > 0", domain.ErrInvalidSettings)
	}
	if s.EscalationThreshold <= 0 {
		return fmt.Errorf("%w: escalationThreshold must be > 0", domain.ErrInvalidSettings)
	}
	if s.EscalationWindow <= 0 {
		return fmt.Errorf("%w: escalationWindow must be > 0", domain.ErrInvalidSettings)
	}
	if s.EmergencyDivisor < 2 {
		return fmt.Errorf("%w: emergencyDivisor must be >= 2", domain.ErrInvalidSettings)
	}
	if s.Shape.MaxBodyBytes <= 0 || s.Shape.MaxURILength <= 0 || s.Shape.MaxHeaderCount <= 0 ||
		s.Shape.MaxQueryLength <= 0 || s.Shape.MaxProxyHops <= 0 {
		return fmt.Errorf("%w: shape thresholds must be > 0", domain.ErrInvalidSettings)
	}
	if !domain.ValidLevel(s.Level) {
		return fmt.Errorf("%w: unknown security level %q", domain.ErrInvalidSettings, s.Level)
	}
	for _, list := range [][]string{s.DeniedRegions, s.AllowedRegions} {
		for _, r := range list {
			if len(r) != 2 {
				return fmt.Errorf("%w: region %q is not an ISO 3166-1 alpha-2 code", domain.ErrInvalidSettings, r)
			}
		}
	}
	return nil
}

// SettingsManager guarda a configuração vigente e aplica updates atômicos.
//
// Em modo de emergência os Max de todos os escopos caem pelo divisor e o
// nível vai para UNDER_ATTACK; ao desabilitar, a configuração salva volta
// inteira.
type SettingsManager struct {
	mu        sync.RWMutex
	current   Settings
	saved     *Settings // configuração pré-emergência
	emergency bool
	reason    string
}

func NewSettingsManager(s Settings) (*SettingsManager, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &SettingsManager{current: s}, nil
}

// Current retorna uma cópia da configuração vigente.
func (m *SettingsManager) Current() Settings {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Update valida e substitui a configuração inteira. Em modo de emergência o
// update é aplicado na configuração salva (vale quando a emergência acabar)
// e a vigente é re-derivada, para o disable não ressuscitar valores velhos.
func (m *SettingsManager) Update(s Settings) error {
	if err := s.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.emergency {
		saved := s
		m.saved = &saved
		m.current = tighten(s)
		return nil
	}
	m.current = s
	return nil
}

// EnableEmergency aperta todos os thresholds atomicamente. Idempotente.
func (m *SettingsManager) EnableEmergency(reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.emergency {
		m.reason = reason
		return
	}
	saved := m.current
	m.saved = &saved
	m.current = tighten(m.current)
	m.emergency = true
	m.reason = reason
}

// DisableEmergency restaura a configuração pré-emergência. No-op se o modo
// não estiver ativo.
func (m *SettingsManager) DisableEmergency() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.emergency {
		return
	}
	m.current = *m.saved
	m.saved = nil
	m.emergency = false
	m.reason = ""
}

// Emergency retorna se o modo está ativo e o motivo informado.
func (m *SettingsManager) Emergency() (bool, string) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.emergency, m.reason
}

func tighten(s Settings) Settings {
	div := int64(s.EmergencyDivisor)
	s.Limits.Global.Max = atLeastOne(s.Limits.Global.Max / div)
	s.Limits.PerClient.Max = atLeastOne(s.Limits.PerClient.Max / div)
	s.Limits.PerUser.Max = atLeastOne(s.Limits.PerUser.Max / div)
	s.Limits.PerRoute.Max = atLeastOne(s.Limits.PerRoute.Max / div)
	s.Level = domain.LevelUnderAttack
	return s
}

func atLeastOne(v int64) int64 {
	if v < 1 {
		return 1
	}
	return v
}
