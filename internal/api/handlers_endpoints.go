package api

import (
	"encoding/json"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/shohag/hookrelay/internal/models"
	"github.com/shohag/hookrelay/internal/storage"
)

type EndpointHandler struct {
	store storage.Storage
}

func NewEndpointHandler(store storage.Storage) *EndpointHandler {
	return &EndpointHandler{store: store}
}

type endpointRequest struct {
	URL          string            `json:"url"`
	EventTypes   []string          `json:"event_types"`
	TimeoutMs    int64             `json:"timeout_ms"`
	Retry        int               `json:"retry"`
	RetryDelayMs int64             `json:"retry_delay_ms"`
	Headers      map[string]string `json:"headers"`
	Metadata     map[string]string `json:"metadata"`
}

func validEndpointURL(raw string) bool {
	u, err := url.Parse(raw)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

func (h *EndpointHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req endpointRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.URL == "" {
		respondError(w, http.StatusBadRequest, "url is required")
		return
	}
	if !validEndpointURL(req.URL) {
		respondError(w, http.StatusBadRequest, "url must be a valid HTTP or HTTPS URL")
		return
	}

	now := time.Now().UTC()
	ep := &models.Endpoint{
		ID:         models.NewID("ep"),
		URL:        req.URL,
		Secret:     models.NewSecret(),
		EventTypes: req.EventTypes,
		Active:     true,
		Timeout:    time.Duration(req.TimeoutMs) * time.Millisecond,
		Retry:      req.Retry,
		RetryDelay: time.Duration(req.RetryDelayMs) * time.Millisecond,
		Headers:    req.Headers,
		Metadata:   req.Metadata,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if ep.EventTypes == nil {
		ep.EventTypes = []string{}
	}

	if err := h.store.CreateEndpoint(r.Context(), ep); err != nil {
		respondError(w, http.StatusInternalServerError, "failed to create endpoint")
		return
	}

	respondJSON(w, http.StatusCreated, ep)
}

func (h *EndpointHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	ep, err := h.store.GetEndpoint(r.Context(), id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to get endpoint")
		return
	}
	if ep == nil {
		respondError(w, http.StatusNotFound, "endpoint not found")
		return
	}
	respondJSON(w, http.StatusOK, ep)
}

func (h *EndpointHandler) List(w http.ResponseWriter, r *http.Request) {
	eps, err := h.store.ListEndpoints(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list endpoints")
		return
	}
	if eps == nil {
		eps = []models.Endpoint{}
	}
	respondJSON(w, http.StatusOK, eps)
}

func (h *EndpointHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	ep, err := h.store.GetEndpoint(r.Context(), id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to get endpoint")
		return
	}
	if ep == nil {
		respondError(w, http.StatusNotFound, "endpoint not found")
		return
	}

	var req endpointRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.URL != "" {
		if !validEndpointURL(req.URL) {
			respondError(w, http.StatusBadRequest, "url must be a valid HTTP or HTTPS URL")
			return
		}
		ep.URL = req.URL
	}
	if req.EventTypes != nil {
		ep.EventTypes = req.EventTypes
	}
	if req.TimeoutMs > 0 {
		ep.Timeout = time.Duration(req.TimeoutMs) * time.Millisecond
	}
	if req.Retry != 0 {
		ep.Retry = req.Retry
	}
	if req.RetryDelayMs > 0 {
		ep.RetryDelay = time.Duration(req.RetryDelayMs) * time.Millisecond
	}
	if req.Headers != nil {
		ep.Headers = req.Headers
	}
	if req.Metadata != nil {
		ep.Metadata = req.Metadata
	}

	if err := h.store.UpdateEndpoint(r.Context(), ep); err != nil {
		respondError(w, http.StatusInternalServerError, "failed to update endpoint")
		return
	}
	respondJSON(w, http.StatusOK, ep)
}

func (h *EndpointHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.store.DeleteEndpoint(r.Context(), id); err != nil {
		respondError(w, http.StatusInternalServerError, "failed to delete endpoint")
		return
	}
	respondNoContent(w)
}

type toggleRequest struct {
	Active bool `json:"active"`
}

func (h *EndpointHandler) Toggle(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req toggleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.store.ToggleEndpoint(r.Context(), id, req.Active); err != nil {
		respondError(w, http.StatusInternalServerError, "failed to toggle endpoint")
		return
	}
	respondNoContent(w)
}
