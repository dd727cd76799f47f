package application

import (
	"errors"
	"testing"
	"time"

	"protection-gateway/protection/domain"
)

func TestSettings_ValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Settings)
	}{
		{"zero window", func(s *Settings) { s.Limits.Global.Window = 0 }},
		{"negative max", func(s *Settings) { s.Limits.PerClient.Max = -1 }},
		{"zero block duration", func(s *Settings) { s.BlockDurations.Short = 0 }},
		{"zero escalation threshold", func(s *Settings) { s.EscalationThreshold = 0 }},
		{"divisor below 2", func(s *Settings) { s.EmergencyDivisor = 1 }},
		{"zero uri length", func(s *Settings) { s.Shape.MaxURILength = 0 }},
		{"unknown level", func(s *Settings) { s.Level = "PANIC" }},
		{"bad region code", func(s *Settings) { s.DeniedRegions = []string{"BRA"} }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := DefaultSettings()
			tc.mutate(&s)
			err := s.Validate()
			if err == nil {
				t.Fatalf("expected validation error")
			}
			if !errors.Is(err, domain.ErrInvalidSettings) {
				t.Fatalf("expected ErrInvalidSettings, got %v", err)
			}
		})
	}
}

func TestSettingsManager_UpdateRejectsInvalidAndKeepsCurrent(t *testing.T) {
	m := testSettings(t, DefaultSettings())

	bad := DefaultSettings()
	bad.Limits.Global.Max = 0
	if err := m.Update(bad); err == nil {
		t.Fatalf("expected update to fail")
	}
	if got := m.Current().Limits.Global.Max; got != 10000 {
		t.Fatalf("expected config untouched after failed update, got global max %d", got)
	}
}

func TestSettingsManager_EmergencyTightensAndRestores(t *testing.T) {
	m := testSettings(t, DefaultSettings())

	m.EnableEmergency("traffic spike")

	cur := m.Current()
	if cur.Limits.PerClient.Max != 10 {
		t.Fatalf("expected perClient max 100/10=10, got %d", cur.Limits.PerClient.Max)
	}
	if cur.Limits.Global.Max != 1000 {
		t.Fatalf("expected global max 10000/10=1000, got %d", cur.Limits.Global.Max)
	}
	if cur.Level != domain.LevelUnderAttack {
		t.Fatalf("expected UNDER_ATTACK, got %q", cur.Level)
	}
	if on, reason := m.Emergency(); !on || reason != "traffic spike" {
		t.Fatalf("expected emergency on with reason, got on=%v reason=%q", on, reason)
	}

	// idempotente: habilitar de novo não divide duas vezes
	m.EnableEmergency("still spiking")
	if got := m.Current().Limits.PerClient.Max; got != 10 {
		t.Fatalf("expected tighten to apply once, got %d", got)
	}

	m.DisableEmergency()
	cur = m.Current()
	if cur.Limits.PerClient.Max != 100 || cur.Level != domain.LevelNormal {
		t.Fatalf("expected pre-emergency config restored, got max=%d level=%q", cur.Limits.PerClient.Max, cur.Level)
	}
	if on, _ := m.Emergency(); on {
		t.Fatalf("expected emergency off")
	}
}

func TestSettingsManager_UpdateDuringEmergencySurvivesDisable(t *testing.T) {
	m := testSettings(t, DefaultSettings())
	m.EnableEmergency("spike")

	next := DefaultSettings()
	next.Limits.PerClient.Max = 200
	if err := m.Update(next); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// durante a emergência o novo valor já vale apertado
	if got := m.Current().Limits.PerClient.Max; got != 20 {
		t.Fatalf("expected updated max tightened to 20, got %d", got)
	}

	// e ao desabilitar, vale o valor novo, não o pré-emergência
	m.DisableEmergency()
	if got := m.Current().Limits.PerClient.Max; got != 200 {
		t.Fatalf("expected update to survive disable, got %d", got)
	}
}

func TestSettingsManager_TightenNeverReachesZero(t *testing.T) {
	s := DefaultSettings()
	s.Limits.PerRoute = ScopeLimit{Window: time.Minute, Max: 3}
	m := testSettings(t, s)

	m.EnableEmergency("spike")
	if got := m.Current().Limits.PerRoute.Max; got != 1 {
		t.Fatalf("expected floor of 1, got %d", got)
	}
}
