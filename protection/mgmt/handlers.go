package mgmt

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"protection-gateway/protection/application"
	"protection-gateway/protection/domain"
)

// Handler é a superfície administrativa montada sobre os componentes da
// camada de proteção.
type Handler struct {
	Registry   domain.BlockRegistry
	Violations domain.ViolationLog
	Stats      domain.StatsReader // opcional
	Settings   *application.SettingsManager
	Edge       *application.EdgeCoordinator
	Log        zerolog.Logger

	// AdminToken protege as rotas /admin (bearer). Vazio desliga a
	// autenticação (só para desenvolvimento).
	AdminToken string

	// WebhookSecret assina as notificações do provedor de edge (HMAC).
	WebhookSecret string

	// Gatherer alimenta o /metrics; nil usa o registry default.
	Gatherer prometheus.Gatherer
}

// Router monta as rotas administrativas em um gorilla/mux.
func (h *Handler) Router() *mux.Router {
	r := mux.NewRouter()

	admin := r.PathPrefix("/admin").Subrouter()
	admin.Use(h.requireToken)
	admin.HandleFunc("/statistics", h.statistics).Methods(http.MethodGet)
	admin.HandleFunc("/events", h.events).Methods(http.MethodGet)
	admin.HandleFunc("/block-ip", h.blockIP).Methods(http.MethodPost)
	admin.HandleFunc("/unblock-ip", h.unblockIP).Methods(http.MethodPost)
	admin.HandleFunc("/whitelist/add", h.whitelistAdd).Methods(http.MethodPost)
	admin.HandleFunc("/whitelist/remove", h.whitelistRemove).Methods(http.MethodPost)
	admin.HandleFunc("/settings", h.updateSettings).Methods(http.MethodPut)
	admin.HandleFunc("/emergency/enable", h.emergencyEnable).Methods(http.MethodPost)
	admin.HandleFunc("/emergency/disable", h.emergencyDisable).Methods(http.MethodPost)
	admin.HandleFunc("/health", h.health).Methods(http.MethodGet)
	admin.HandleFunc("/bulk/block-ips", h.bulkBlock).Methods(http.MethodPost)
	admin.HandleFunc("/bulk/unblock-ips", h.bulkUnblock).Methods(http.MethodPost)
	// autenticado por assinatura HMAC, não pelo bearer (ver requireToken)
	admin.HandleFunc("/webhook/edge", h.edgeWebhook).Methods(http.MethodPost)

	gatherer := h.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)

	return r
}

func (h *Handler) requireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// o webhook tem autenticação própria (assinatura HMAC)
		if strings.HasSuffix(r.URL.Path, "/webhook/edge") {
			next.ServeHTTP(w, r)
			return
		}
		if h.AdminToken == "" {
			next.ServeHTTP(w, r)
			return
		}
		got := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		if subtle.ConstantTimeCompare([]byte(got), []byte(h.AdminToken)) != 1 {
			writeError(w, http.StatusUnauthorized, "invalid or missing admin token")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// GET /admin/statistics: postura local + totais de decisão + saúde da edge.
func (h *Handler) statistics(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	now := time.Now()

	active, err := h.Registry.ActiveBlocks(ctx, now)
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "registry unavailable: "+err.Error())
		return
	}

	s := h.Settings.Current()
	emergency, _ := h.Settings.Emergency()

	recent := 0
	if violations, err := h.Violations.Recent(ctx, 200); err == nil {
		cutoff := now.Add(-s.EscalationWindow)
		for _, v := range violations {
			if !v.At.Before(cutoff) {
				recent++
			}
		}
	}

	data := map[string]any{
		"posture": domain.Posture{
			ActiveBlocks:     len(active),
			RecentViolations: recent,
			Level:            s.Level,
			Emergency:        emergency,
		},
		"activeBlocks": active,
		"edge":         h.Edge.Health(),
	}
	if h.Stats != nil {
		if totals, err := h.Stats.Totals(ctx); err == nil {
			data["decisions"] = totals
		}
	}
	writeData(w, data)
}

// GET /admin/events?limit= retorna violações locais + eventos da edge.
func (h *Handler) events(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > 1000 {
			writeError(w, http.StatusBadRequest, "limit must be an integer in [1,1000]")
			return
		}
		limit = n
	}

	local, err := h.Violations.Recent(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "violation log unavailable: "+err.Error())
		return
	}

	data := map[string]any{"local": local}
	if h.Edge.Enabled() {
		data["edge"] = h.Edge.FetchRecentEvents(r.Context(), limit)
	}
	writeData(w, data)
}

type blockRequest struct {
	IP       string `json:"ip"`
	Reason   string `json:"reason"`
	Duration int    `json:"duration"` // segundos
	Level    string `json:"level"`    // local | edge | both (default both)
}

// POST /admin/block-ip
func (h *Handler) blockIP(w http.ResponseWriter, r *http.Request) {
	var req blockRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.IP == "" {
		writeError(w, http.StatusBadRequest, "ip is required")
		return
	}
	if err := h.applyBlock(r.Context(), req); err != nil {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	writeMessage(w, "blocked "+req.IP)
}

func (h *Handler) applyBlock(ctx context.Context, req blockRequest) error {
	duration := time.Duration(req.Duration) * time.Second
	if duration <= 0 {
		duration = h.Settings.Current().BlockDurations.Escalated
	}
	level := normalizeLevel(req.Level)

	if level != "edge" {
		if _, err := h.Registry.Block(ctx, domain.Key(req.IP), domain.BlockReasonManual, duration, 0, time.Now()); err != nil {
			return err
		}
	}
	if level != "local" && h.Edge.Enabled() {
		note := req.Reason
		if note == "" {
			note = string(domain.BlockReasonManual)
		}
		h.Edge.SyncBlock(ctx, req.IP, note)
	}
	return nil
}

type unblockRequest struct {
	IP    string `json:"ip"`
	Level string `json:"level"`
}

// POST /admin/unblock-ip. Desbloquear um IP não bloqueado é no-op de
// sucesso, não erro.
func (h *Handler) unblockIP(w http.ResponseWriter, r *http.Request) {
	var req unblockRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.IP == "" {
		writeError(w, http.StatusBadRequest, "ip is required")
		return
	}
	if err := h.applyUnblock(r.Context(), req); err != nil {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	writeMessage(w, "unblocked "+req.IP)
}

func (h *Handler) applyUnblock(ctx context.Context, req unblockRequest) error {
	level := normalizeLevel(req.Level)
	if level != "edge" {
		if err := h.Registry.Unblock(ctx, domain.Key(req.IP)); err != nil {
			return err
		}
	}
	if level != "local" && h.Edge.Enabled() {
		h.Edge.SyncUnblock(ctx, req.IP)
	}
	return nil
}

type whitelistRequest struct {
	IP     string `json:"ip"`
	Reason string `json:"reason"`
}

// POST /admin/whitelist/add
func (h *Handler) whitelistAdd(w http.ResponseWriter, r *http.Request) {
	var req whitelistRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.IP == "" {
		writeError(w, http.StatusBadRequest, "ip is required")
		return
	}
	if err := h.Registry.Allow(r.Context(), domain.Key(req.IP), req.Reason, time.Now()); err != nil {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	writeMessage(w, "whitelisted "+req.IP)
}

// POST /admin/whitelist/remove
func (h *Handler) whitelistRemove(w http.ResponseWriter, r *http.Request) {
	var req whitelistRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.IP == "" {
		writeError(w, http.StatusBadRequest, "ip is required")
		return
	}
	if err := h.Registry.Disallow(r.Context(), domain.Key(req.IP)); err != nil {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	writeMessage(w, "removed "+req.IP+" from whitelist")
}

// PUT /admin/settings valida e substitui a configuração inteira; update
// inválido deixa a vigente intocada (nunca aplica parcial).
func (h *Handler) updateSettings(w http.ResponseWriter, r *http.Request) {
	var payload settingsPayload
	if !decodeBody(w, r, &payload) {
		return
	}

	next := payload.apply(h.Settings.Current())
	if err := h.Settings.Update(next); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if h.Edge.Enabled() {
		h.Edge.SetPostureLevel(r.Context(), h.Settings.Current().Level)
	}
	h.Log.Info().Msg("settings updated")
	writeData(w, h.Settings.Current())
}

type emergencyRequest struct {
	Reason string `json:"reason"`
}

// POST /admin/emergency/enable aperta todos os thresholds atomicamente e
// sobe a postura da edge para o máximo.
func (h *Handler) emergencyEnable(w http.ResponseWriter, r *http.Request) {
	var req emergencyRequest
	if !decodeBody(w, r, &req) {
		return
	}
	h.Settings.EnableEmergency(req.Reason)
	if h.Edge.Enabled() {
		h.Edge.SetPostureLevel(r.Context(), domain.LevelUnderAttack)
	}
	h.Log.Warn().Str("reason", req.Reason).Msg("emergency mode enabled")
	writeMessage(w, "emergency mode enabled")
}

// POST /admin/emergency/disable
func (h *Handler) emergencyDisable(w http.ResponseWriter, r *http.Request) {
	h.Settings.DisableEmergency()
	if h.Edge.Enabled() {
		h.Edge.SetPostureLevel(r.Context(), h.Settings.Current().Level)
	}
	h.Log.Info().Msg("emergency mode disabled")
	writeMessage(w, "emergency mode disabled")
}

// GET /admin/health: saúde local + edge. Edge degradada não derruba o
// status local (a pipeline funciona sem ela).
func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	edge := h.Edge.HealthCheck(r.Context())

	localOK := true
	if _, err := h.Registry.ActiveBlocks(r.Context(), time.Now()); err != nil {
		localOK = false
	}

	writeData(w, map[string]any{
		"local": map[string]any{"healthy": localOK},
		"edge":  edge,
	})
}

type bulkBlockRequest struct {
	IPs      []string `json:"ips"`
	Reason   string   `json:"reason"`
	Duration int      `json:"duration"`
	Level    string   `json:"level"`
}

type bulkResult struct {
	IP      string `json:"ip"`
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// POST /admin/bulk/block-ips reporta sucesso/falha por IP, nunca aborta o
// lote inteiro por um erro.
func (h *Handler) bulkBlock(w http.ResponseWriter, r *http.Request) {
	var req bulkBlockRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if len(req.IPs) == 0 {
		writeError(w, http.StatusBadRequest, "ips is required")
		return
	}

	results := make([]bulkResult, 0, len(req.IPs))
	for _, ip := range req.IPs {
		res := bulkResult{IP: ip, Success: true}
		if ip == "" {
			res.Success = false
			res.Error = "empty ip"
		} else if err := h.applyBlock(r.Context(), blockRequest{
			IP: ip, Reason: req.Reason, Duration: req.Duration, Level: req.Level,
		}); err != nil {
			res.Success = false
			res.Error = err.Error()
		}
		results = append(results, res)
	}
	writeData(w, results)
}

type bulkUnblockRequest struct {
	IPs   []string `json:"ips"`
	Level string   `json:"level"`
}

// POST /admin/bulk/unblock-ips
func (h *Handler) bulkUnblock(w http.ResponseWriter, r *http.Request) {
	var req bulkUnblockRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if len(req.IPs) == 0 {
		writeError(w, http.StatusBadRequest, "ips is required")
		return
	}

	results := make([]bulkResult, 0, len(req.IPs))
	for _, ip := range req.IPs {
		res := bulkResult{IP: ip, Success: true}
		if ip == "" {
			res.Success = false
			res.Error = "empty ip"
		} else if err := h.applyUnblock(r.Context(), unblockRequest{IP: ip, Level: req.Level}); err != nil {
			res.Success = false
			res.Error = err.Error()
		}
		results = append(results, res)
	}
	writeData(w, results)
}

func normalizeLevel(level string) string {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "local":
		return "local"
	case "edge":
		return "edge"
	default:
		return "both"
	}
}
