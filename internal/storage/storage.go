package storage

import (
	"context"
	"errors"
	"time"

	"github.com/shohag/hookrelay/internal/models"
)

// ErrNotFound is returned by callers that need a hard error for a missing
// record; the getters themselves report absence as (nil, nil).
var ErrNotFound = errors.New("record not found")

// FailureFilter narrows dead-letter queries. Zero values mean "no filter".
type FailureFilter struct {
	Status string // "pending" (retried_at unset), "retried", or ""
	Event  string
	Limit  int
}

const (
	FailureStatusPending = "pending"
	FailureStatusRetried = "retried"
)

type Storage interface {
	// Endpoints
	CreateEndpoint(ctx context.Context, ep *models.Endpoint) error
	GetEndpoint(ctx context.Context, id string) (*models.Endpoint, error)
	ListEndpoints(ctx context.Context) ([]models.Endpoint, error)
	UpdateEndpoint(ctx context.Context, ep *models.Endpoint) error
	DeleteEndpoint(ctx context.Context, id string) error
	ToggleEndpoint(ctx context.Context, id string, active bool) error
	// MatchEndpoints returns the active endpoints subscribed to the event.
	MatchEndpoints(ctx context.Context, event string) ([]models.Endpoint, error)

	// Deliveries
	CreateDelivery(ctx context.Context, d *models.Delivery) error
	GetDelivery(ctx context.Context, id string) (*models.Delivery, error)
	ListDeliveries(ctx context.Context, endpointID string, limit, offset int) ([]models.Delivery, error)

	// Failures (dead letters)
	CreateFailure(ctx context.Context, f *models.Failure) error
	GetFailure(ctx context.Context, id string) (*models.Failure, error)
	ListFailures(ctx context.Context, filter FailureFilter) ([]models.Failure, error)
	MarkFailureRetried(ctx context.Context, id string, at time.Time) error

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
