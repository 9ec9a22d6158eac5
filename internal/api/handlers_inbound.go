package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/shohag/hookrelay/internal/config"
	"github.com/shohag/hookrelay/internal/receiver"
)

type InboundHandler struct {
	receiver *receiver.Receiver
	cfg      config.ReceiverConfig
	log      zerolog.Logger
}

func NewInboundHandler(rc *receiver.Receiver, cfg config.ReceiverConfig, log zerolog.Logger) *InboundHandler {
	return &InboundHandler{receiver: rc, cfg: cfg, log: log}
}

// Receive handles both /webhooks and /webhooks/{provider}. The provider
// segment only selects which secret verifies the call.
func (h *InboundHandler) Receive(w http.ResponseWriter, r *http.Request) {
	provider := chi.URLParam(r, "provider")

	secret := h.cfg.Secret
	if provider != "" {
		if s, ok := h.cfg.ProviderSecrets[provider]; ok {
			secret = s
		}
	}
	if secret == "" {
		respondError(w, http.StatusUnauthorized, "no secret configured for this webhook route")
		return
	}

	res, err := h.receiver.Process(r, secret, func(event string, payload map[string]any, req *http.Request) {
		h.log.Info().
			Str("provider", provider).
			Str("event", event).
			Int("fields", len(payload)).
			Msg("inbound webhook accepted")
	})
	if err != nil {
		if errors.Is(err, receiver.ErrInvalidSignature) {
			respondError(w, http.StatusUnauthorized, err.Error())
			return
		}
		respondError(w, http.StatusInternalServerError, "failed to process webhook")
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"event":     res.Event,
		"timestamp": res.Timestamp.Unix(),
	})
}
