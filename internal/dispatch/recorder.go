package dispatch

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"

	"github.com/shohag/hookrelay/internal/models"
	"github.com/shohag/hookrelay/internal/storage"
)

// Recorder writes delivery records. Recording is best-effort telemetry: a
// storage failure is logged at warn level and swallowed, and never alters
// the dispatch's success or failure result.
type Recorder struct {
	store storage.Storage
	log   zerolog.Logger
}

func NewRecorder(store storage.Storage, log zerolog.Logger) *Recorder {
	return &Recorder{store: store, log: log}
}

func (r *Recorder) RecordSuccess(ctx context.Context, endpointID, event string, payload json.RawMessage, statusCode int, body string, attempts int, key string) {
	d := &models.Delivery{
		ID:             models.NewID("dlv"),
		EndpointID:     endpointID,
		Event:          event,
		Payload:        payload,
		Attempts:       attempts,
		IdempotencyKey: key,
		CreatedAt:      time.Now().UTC(),
	}
	d.MarkSucceeded(statusCode, body)

	if err := r.store.CreateDelivery(ctx, d); err != nil {
		r.log.Warn().Err(err).
			Str("endpoint_id", endpointID).
			Str("event", event).
			Msg("failed to record successful delivery")
	}
}

func (r *Recorder) RecordFailure(ctx context.Context, endpointID, event string, payload json.RawMessage, statusCode int, body string, attempts int, key, errMsg string) {
	d := &models.Delivery{
		ID:             models.NewID("dlv"),
		EndpointID:     endpointID,
		Event:          event,
		Payload:        payload,
		Attempts:       attempts - 1, // MarkFailed counts the final attempt itself
		IdempotencyKey: key,
		CreatedAt:      time.Now().UTC(),
	}
	d.MarkFailed(statusCode, body, errMsg)

	if err := r.store.CreateDelivery(ctx, d); err != nil {
		r.log.Warn().Err(err).
			Str("endpoint_id", endpointID).
			Str("event", event).
			Msg("failed to record failed delivery")
	}
}
