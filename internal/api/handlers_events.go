package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/shohag/hookrelay/internal/dispatch"
	"github.com/shohag/hookrelay/internal/storage"
)

const maxPayloadSize = 256 * 1024 // 256KB

type EventHandler struct {
	store      storage.Storage
	dispatcher *dispatch.Dispatcher
	log        zerolog.Logger
}

func NewEventHandler(store storage.Storage, d *dispatch.Dispatcher, log zerolog.Logger) *EventHandler {
	return &EventHandler{store: store, dispatcher: d, log: log}
}

type publishEventRequest struct {
	Event   string         `json:"event"`
	Payload map[string]any `json:"payload"`
	// Async enqueues per-endpoint dispatches instead of blocking the
	// request for the full attempt+backoff duration.
	Async bool `json:"async"`
}

// Publish fans one event out to every subscribed endpoint.
func (h *EventHandler) Publish(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxPayloadSize)
	var req publishEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Event == "" {
		respondError(w, http.StatusBadRequest, "event is required")
		return
	}
	if req.Payload == nil {
		req.Payload = map[string]any{}
	}

	if req.Async {
		h.publishAsync(w, r, req)
		return
	}

	results, err := h.dispatcher.Send(r.Context(), req.Event, req.Payload)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to dispatch event")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"event":   req.Event,
		"results": results,
	})
}

func (h *EventHandler) publishAsync(w http.ResponseWriter, r *http.Request, req publishEventRequest) {
	endpoints, err := h.store.MatchEndpoints(r.Context(), req.Event)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to match endpoints")
		return
	}

	queued := 0
	for _, ep := range endpoints {
		err := h.dispatcher.DispatchAsync(r.Context(), req.Event, req.Payload, ep.URL, dispatch.Options{
			Retry:      ep.Retry,
			Timeout:    ep.Timeout,
			Secret:     ep.Secret,
			EndpointID: ep.ID,
			Headers:    ep.Headers,
			RetryDelay: ep.RetryDelay,
		})
		if err != nil {
			if errors.Is(err, dispatch.ErrQueueUnavailable) {
				respondError(w, http.StatusServiceUnavailable, "async dispatch is not configured")
				return
			}
			h.log.Error().Err(err).Str("endpoint_id", ep.ID).Str("event", req.Event).Msg("failed to enqueue dispatch")
			continue
		}
		queued++
	}

	respondJSON(w, http.StatusAccepted, map[string]any{
		"event":  req.Event,
		"queued": queued,
	})
}
