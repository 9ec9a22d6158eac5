package dispatch

import (
	"context"
	"sync"
	"time"

	"github.com/shohag/hookrelay/internal/models"
	"github.com/shohag/hookrelay/internal/storage"
)

// fakeStore is a hand-written in-memory storage.Storage for dispatcher
// tests, with per-table error injection.
type fakeStore struct {
	mu         sync.Mutex
	endpoints  []models.Endpoint
	deliveries []models.Delivery
	failures   []models.Failure

	deliveryErr error
	failureErr  error
}

var _ storage.Storage = (*fakeStore)(nil)

func (s *fakeStore) CreateEndpoint(_ context.Context, ep *models.Endpoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.endpoints = append(s.endpoints, *ep)
	return nil
}

func (s *fakeStore) GetEndpoint(_ context.Context, id string) (*models.Endpoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.endpoints {
		if s.endpoints[i].ID == id {
			ep := s.endpoints[i]
			return &ep, nil
		}
	}
	return nil, nil
}

func (s *fakeStore) ListEndpoints(context.Context) ([]models.Endpoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Endpoint(nil), s.endpoints...), nil
}

func (s *fakeStore) UpdateEndpoint(context.Context, *models.Endpoint) error { return nil }
func (s *fakeStore) DeleteEndpoint(context.Context, string) error           { return nil }
func (s *fakeStore) ToggleEndpoint(context.Context, string, bool) error     { return nil }

func (s *fakeStore) MatchEndpoints(_ context.Context, event string) ([]models.Endpoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var matched []models.Endpoint
	for i := range s.endpoints {
		if s.endpoints[i].ShouldReceive(event) {
			matched = append(matched, s.endpoints[i])
		}
	}
	return matched, nil
}

func (s *fakeStore) CreateDelivery(_ context.Context, d *models.Delivery) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.deliveryErr != nil {
		return s.deliveryErr
	}
	s.deliveries = append(s.deliveries, *d)
	return nil
}

func (s *fakeStore) GetDelivery(context.Context, string) (*models.Delivery, error) {
	return nil, nil
}

func (s *fakeStore) ListDeliveries(context.Context, string, int, int) ([]models.Delivery, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Delivery(nil), s.deliveries...), nil
}

func (s *fakeStore) CreateFailure(_ context.Context, f *models.Failure) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failureErr != nil {
		return s.failureErr
	}
	s.failures = append(s.failures, *f)
	return nil
}

func (s *fakeStore) GetFailure(_ context.Context, id string) (*models.Failure, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.failures {
		if s.failures[i].ID == id {
			f := s.failures[i]
			return &f, nil
		}
	}
	return nil, nil
}

func (s *fakeStore) ListFailures(_ context.Context, filter storage.FailureFilter) ([]models.Failure, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Failure
	for i := range s.failures {
		f := s.failures[i]
		if filter.Status == storage.FailureStatusPending && f.RetriedAt != nil {
			continue
		}
		if filter.Status == storage.FailureStatusRetried && f.RetriedAt == nil {
			continue
		}
		if filter.Event != "" && f.Event != filter.Event {
			continue
		}
		out = append(out, f)
	}
	return out, nil
}

func (s *fakeStore) MarkFailureRetried(_ context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.failures {
		if s.failures[i].ID == id {
			t := at
			s.failures[i].RetriedAt = &t
		}
	}
	return nil
}

func (s *fakeStore) Migrate(context.Context) error { return nil }
func (s *fakeStore) Close() error                  { return nil }

func (s *fakeStore) snapshotDeliveries() []models.Delivery {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Delivery(nil), s.deliveries...)
}

func (s *fakeStore) snapshotFailures() []models.Failure {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Failure(nil), s.failures...)
}
