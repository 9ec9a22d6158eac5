package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEndpointShouldReceive(t *testing.T) {
	tests := []struct {
		name   string
		ep     Endpoint
		event  string
		expect bool
	}{
		{"wildcard matches completed", Endpoint{Active: true, EventTypes: []string{"payment.*"}}, "payment.completed", true},
		{"wildcard matches failed", Endpoint{Active: true, EventTypes: []string{"payment.*"}}, "payment.failed", true},
		{"wildcard rejects other prefix", Endpoint{Active: true, EventTypes: []string{"payment.*"}}, "order.created", false},
		{"exact match", Endpoint{Active: true, EventTypes: []string{"order.created"}}, "order.created", true},
		{"exact mismatch", Endpoint{Active: true, EventTypes: []string{"order.created"}}, "order.updated", false},
		{"empty list matches everything", Endpoint{Active: true}, "anything.at.all", true},
		{"inactive never matches", Endpoint{Active: false}, "payment.completed", false},
		{"inactive with patterns never matches", Endpoint{Active: false, EventTypes: []string{"payment.*"}}, "payment.completed", false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expect, tc.ep.ShouldReceive(tc.event))
		})
	}
}

func TestIdempotencyKeyDeterministic(t *testing.T) {
	payload := []byte(`{"order_id":1}`)

	k1 := IdempotencyKey("order.completed", payload, "https://a.example.com/hook")
	k2 := IdempotencyKey("order.completed", payload, "https://a.example.com/hook")
	assert.Equal(t, k1, k2)
	require.Len(t, k1, 64)

	// Same event and payload, different endpoint: different key.
	k3 := IdempotencyKey("order.completed", payload, "https://b.example.com/hook")
	assert.NotEqual(t, k1, k3)

	k4 := IdempotencyKey("order.refunded", payload, "https://a.example.com/hook")
	assert.NotEqual(t, k1, k4)
}

func TestDeliveryTerminalTransitions(t *testing.T) {
	d := Delivery{Attempts: 3}
	d.MarkSucceeded(200, "ok")
	assert.True(t, d.Succeeded())
	assert.NotNil(t, d.SucceededAt)
	assert.Nil(t, d.FailedAt)
	assert.Equal(t, 3, d.Attempts, "MarkSucceeded must not bump attempts")

	f := Delivery{Attempts: 3}
	f.MarkFailed(503, "unavailable", "server error")
	assert.False(t, f.Succeeded())
	assert.Nil(t, f.SucceededAt)
	assert.NotNil(t, f.FailedAt)
	assert.Equal(t, 4, f.Attempts, "MarkFailed counts the failing attempt")
}

func TestFailureCanRetry(t *testing.T) {
	f := Failure{}
	assert.True(t, f.CanRetry())

	now := time.Now().UTC()
	f.RetriedAt = &now
	assert.False(t, f.CanRetry())
}

func TestNewIDPrefix(t *testing.T) {
	id := NewID("dlq")
	assert.Regexp(t, `^dlq_[0-9A-HJKMNP-TV-Z]{26}$`, id)
	assert.NotEqual(t, id, NewID("dlq"))
}
