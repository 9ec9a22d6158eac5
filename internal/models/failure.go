package models

import (
	"encoding/json"
	"time"
)

// Failure is a dead-letter record: one dispatch that exhausted its whole
// retry budget. It carries everything needed to replay the exact call.
// Replaying never deletes or rewrites the row; it is an audit trail,
// not a queue with consumption semantics.
type Failure struct {
	ID               string          `json:"id"`
	EndpointID       *string         `json:"endpoint_id,omitempty"`
	EndpointURL      string          `json:"endpoint_url"`
	Event            string          `json:"event"`
	Payload          json.RawMessage `json:"payload"`
	Options          json.RawMessage `json:"options"`
	TotalAttempts    int             `json:"total_attempts"`
	LastError        string          `json:"last_error,omitempty"`
	LastStatusCode   int             `json:"last_status_code"`
	LastResponseBody string          `json:"last_response_body,omitempty"`
	IdempotencyKey   string          `json:"idempotency_key"`
	RetriedAt        *time.Time      `json:"retried_at,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
}

// CanRetry reports whether the failure has not been replayed yet.
func (f *Failure) CanRetry() bool {
	return f.RetriedAt == nil
}
