package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/shohag/hookrelay/internal/dispatch"
	"github.com/shohag/hookrelay/internal/models"
	"github.com/shohag/hookrelay/internal/storage"
)

type FailureHandler struct {
	store      storage.Storage
	dispatcher *dispatch.Dispatcher
}

func NewFailureHandler(store storage.Storage, d *dispatch.Dispatcher) *FailureHandler {
	return &FailureHandler{store: store, dispatcher: d}
}

func (h *FailureHandler) List(w http.ResponseWriter, r *http.Request) {
	status := r.URL.Query().Get("status")
	switch status {
	case "", storage.FailureStatusPending, storage.FailureStatusRetried:
	default:
		respondError(w, http.StatusBadRequest, "status must be pending or retried")
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	fs, err := h.store.ListFailures(r.Context(), storage.FailureFilter{
		Status: status,
		Event:  r.URL.Query().Get("event"),
		Limit:  limit,
	})
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list failures")
		return
	}
	if fs == nil {
		fs = []models.Failure{}
	}
	respondJSON(w, http.StatusOK, fs)
}

func (h *FailureHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	f, err := h.store.GetFailure(r.Context(), id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to get failure")
		return
	}
	if f == nil {
		respondError(w, http.StatusNotFound, "failure not found")
		return
	}
	respondJSON(w, http.StatusOK, f)
}

// Retry replays a dead-lettered dispatch with its original options. The
// failure row stays put either way; only retried_at changes.
func (h *FailureHandler) Retry(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	ok, err := h.dispatcher.Replay(r.Context(), id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			respondError(w, http.StatusNotFound, "failure not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "failed to replay dispatch")
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"id":        id,
		"delivered": ok,
	})
}
