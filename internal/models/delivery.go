package models

import (
	"encoding/json"
	"time"
)

// Delivery is the durable record of one dispatch outcome for one
// (event, endpoint) pair. It is a log entry, not a retryable entity:
// retries of a dead dispatch are tracked on the Failure record.
//
// Exactly one of SucceededAt / FailedAt is ever set.
type Delivery struct {
	ID             string          `json:"id"`
	EndpointID     string          `json:"endpoint_id"`
	Event          string          `json:"event"`
	Payload        json.RawMessage `json:"payload"`
	StatusCode     int             `json:"status_code"`
	ResponseBody   string          `json:"response_body"`
	Attempts       int             `json:"attempts"`
	IdempotencyKey string          `json:"idempotency_key"`
	SucceededAt    *time.Time      `json:"succeeded_at,omitempty"`
	FailedAt       *time.Time      `json:"failed_at,omitempty"`
	Error          string          `json:"error,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
}

// MarkSucceeded records the terminal success state. It does not touch the
// attempt count; the caller already knows how many attempts it made.
func (d *Delivery) MarkSucceeded(statusCode int, body string) {
	now := time.Now().UTC()
	d.StatusCode = statusCode
	d.ResponseBody = body
	d.SucceededAt = &now
	d.FailedAt = nil
}

// MarkFailed records the terminal failure state and counts the attempt
// that produced it.
func (d *Delivery) MarkFailed(statusCode int, body, errMsg string) {
	now := time.Now().UTC()
	d.StatusCode = statusCode
	d.ResponseBody = body
	d.Error = errMsg
	d.Attempts++
	d.FailedAt = &now
	d.SucceededAt = nil
}

func (d *Delivery) Succeeded() bool {
	return d.SucceededAt != nil
}
