package mgmt

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"protection-gateway/protection/domain"
)

// signatureHeader carrega o HMAC-SHA256 (hex) do corpo, assinado com o
// segredo compartilhado com o provedor de edge.
const signatureHeader = "X-Edge-Signature"

// edgeNotification é o payload de uma notificação assinada da edge.
type edgeNotification struct {
	Action string `json:"action"` // block | unblock
	IP     string `json:"ip"`
	Reason string `json:"reason"`
}

// POST /admin/webhook/edge valida a assinatura antes de confiar no
// payload; assinatura ausente/ inválida é 401 e nada é processado.
func (h *Handler) edgeWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		writeError(w, http.StatusBadRequest, "unreadable body")
		return
	}

	if !validSignature(h.WebhookSecret, body, r.Header.Get(signatureHeader)) {
		writeError(w, http.StatusUnauthorized, "invalid webhook signature")
		return
	}

	var notif edgeNotification
	if err := json.Unmarshal(body, &notif); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body: "+err.Error())
		return
	}
	if notif.IP == "" {
		writeError(w, http.StatusBadRequest, "ip is required")
		return
	}

	now := time.Now()
	switch notif.Action {
	case "block":
		duration := h.Settings.Current().BlockDurations.Extended
		if _, err := h.Registry.Block(r.Context(), domain.Key(notif.IP), domain.BlockReasonEdgeReported, duration, 0, now); err != nil {
			writeError(w, http.StatusServiceUnavailable, err.Error())
			return
		}
	case "unblock":
		if err := h.Registry.Unblock(r.Context(), domain.Key(notif.IP)); err != nil {
			writeError(w, http.StatusServiceUnavailable, err.Error())
			return
		}
	default:
		writeError(w, http.StatusBadRequest, "unknown action "+notif.Action)
		return
	}

	h.Log.Info().Str("action", notif.Action).Str("ip", notif.IP).Msg("edge webhook applied")
	writeMessage(w, "applied")
}

func validSignature(secret string, body []byte, signature string) bool {
	if secret == "" || signature == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}
