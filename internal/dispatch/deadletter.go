package dispatch

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"

	"github.com/shohag/hookrelay/internal/models"
	"github.com/shohag/hookrelay/internal/storage"
)

// DeadLetterService persists dispatches that exhausted their whole retry
// budget and exposes them for inspection and replay. Failure rows are an
// audit trail: replaying marks them, it never deletes or rewrites them.
type DeadLetterService struct {
	store storage.Storage
	log   zerolog.Logger
}

func NewDeadLetterService(store storage.Storage, log zerolog.Logger) *DeadLetterService {
	return &DeadLetterService{store: store, log: log}
}

// Store is called exactly once per exhausted dispatch. A storage failure
// here means the failure is now untraceable, so it is logged at error
// level. It still never surfaces to the dispatch caller, which has
// already decided its boolean result.
func (s *DeadLetterService) Store(ctx context.Context, endpointID, endpointURL, event string, payload json.RawMessage, opts Options, totalAttempts int, last *Attempt, key string) {
	optsJSON, err := json.Marshal(opts)
	if err != nil {
		optsJSON = []byte(`{}`)
	}

	f := &models.Failure{
		ID:               models.NewID("dlq"),
		EndpointURL:      endpointURL,
		Event:            event,
		Payload:          payload,
		Options:          optsJSON,
		TotalAttempts:    totalAttempts,
		LastError:        last.ErrorMessage(),
		LastStatusCode:   last.StatusCode,
		LastResponseBody: last.Body,
		IdempotencyKey:   key,
		CreatedAt:        time.Now().UTC(),
	}
	if endpointID != "" {
		f.EndpointID = &endpointID
	}

	if err := s.store.CreateFailure(ctx, f); err != nil {
		s.log.Error().Err(err).
			Str("endpoint_url", endpointURL).
			Str("event", event).
			Str("idempotency_key", key).
			Msg("dead-letter write failed, permanently failed dispatch is untraceable")
	}
}

// Pending returns failures that have not been replayed yet.
func (s *DeadLetterService) Pending(ctx context.Context) ([]models.Failure, error) {
	return s.store.ListFailures(ctx, storage.FailureFilter{Status: storage.FailureStatusPending})
}

// Retried returns failures that have already been replayed.
func (s *DeadLetterService) Retried(ctx context.Context) ([]models.Failure, error) {
	return s.store.ListFailures(ctx, storage.FailureFilter{Status: storage.FailureStatusRetried})
}

// ForEvent returns all failures for one event name.
func (s *DeadLetterService) ForEvent(ctx context.Context, event string) ([]models.Failure, error) {
	return s.store.ListFailures(ctx, storage.FailureFilter{Event: event})
}

// MarkAsRetried stamps the failure's retried_at. Calling it on an already
// retried record re-sets the same terminal state and is not an error.
func (s *DeadLetterService) MarkAsRetried(ctx context.Context, id string) error {
	return s.store.MarkFailureRetried(ctx, id, time.Now().UTC())
}
