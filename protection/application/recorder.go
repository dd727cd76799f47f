package application

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"protection-gateway/protection/domain"
)

// Recorder grava violações no histórico rolante e escalona infrações
// repetidas para um bloqueio automático.
//
// É este o mecanismo que transforma K infrações menores dentro da janela de
// escalonamento em um bloqueio de longa duração, sem cada check precisar
// coordenar com os outros.
type Recorder struct {
	Violations domain.ViolationLog
	Registry   domain.BlockRegistry
	Settings   *SettingsManager
	Edge       *EdgeCoordinator // opcional
	Log        zerolog.Logger
}

// Record grava a violação e, se o identificador atingiu o threshold dentro
// da janela, cria o bloqueio escalonado. Erros de store são best-effort.
func (r *Recorder) Record(ctx context.Context, id domain.Key, vt domain.ViolationType, details string, now time.Time) {
	v := domain.Violation{
		ID:         uuid.NewString(),
		Identifier: id,
		Type:       vt,
		Details:    details,
		At:         now,
	}
	if err := r.Violations.Append(ctx, v); err != nil {
		r.Log.Error().Err(err).Str("id", string(id)).Msg("violation append failed")
		return
	}

	s := r.Settings.Current()
	count, err := r.Violations.CountSince(ctx, id, now.Add(-s.EscalationWindow))
	if err != nil {
		r.Log.Error().Err(err).Str("id", string(id)).Msg("violation count failed")
		return
	}
	if count < s.EscalationThreshold {
		return
	}

	entry, err := r.Registry.Block(ctx, id, domain.BlockReasonMultipleViolations, s.BlockDurations.Escalated, count, now)
	if err != nil {
		r.Log.Error().Err(err).Str("id", string(id)).Msg("escalation block failed")
		return
	}
	r.Log.Warn().
		Str("id", string(id)).
		Int("violations", count).
		Int("severity", entry.Severity).
		Time("expiresAt", entry.ExpiresAt).
		Msg("identifier escalated to standing block")

	if r.Edge.Enabled() {
		r.Edge.SyncBlock(ctx, string(id), string(domain.BlockReasonMultipleViolations))
	}
}
