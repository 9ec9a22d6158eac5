package dispatch

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeadLetterStoreAndPartition(t *testing.T) {
	store := &fakeStore{}
	svc := NewDeadLetterService(store, zerolog.Nop())
	ctx := context.Background()

	opts, err := Options{Secret: "whsec_x", EndpointID: "ep_1"}.normalize()
	require.NoError(t, err)
	last := &Attempt{StatusCode: 503, Body: "unavailable"}

	svc.Store(ctx, "ep_1", "https://a.example.com/hook", "order.created", json.RawMessage(`{"order_id":1}`), opts, 4, last, "key-a")
	svc.Store(ctx, "", "https://b.example.com/hook", "payment.failed", json.RawMessage(`{"amount":5}`), opts, 4, &Attempt{Err: "connection refused"}, "key-b")

	pending, err := svc.Pending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 2)

	// Tracked endpoint keeps its reference; untracked keeps only the URL.
	var tracked, untracked int
	for _, f := range pending {
		if f.EndpointID != nil {
			tracked++
			assert.Equal(t, "ep_1", *f.EndpointID)
		} else {
			untracked++
			assert.Equal(t, "https://b.example.com/hook", f.EndpointURL)
			assert.Equal(t, "connection refused", f.LastError)
		}
	}
	assert.Equal(t, 1, tracked)
	assert.Equal(t, 1, untracked)

	byEvent, err := svc.ForEvent(ctx, "order.created")
	require.NoError(t, err)
	require.Len(t, byEvent, 1)
	assert.Equal(t, "endpoint returned status 503", byEvent[0].LastError)

	// Options snapshot must round-trip for replay.
	var restored Options
	require.NoError(t, json.Unmarshal(byEvent[0].Options, &restored))
	assert.Equal(t, opts.Retry, restored.Retry)
	assert.Equal(t, "whsec_x", restored.Secret)

	require.NoError(t, svc.MarkAsRetried(ctx, byEvent[0].ID))

	pending, err = svc.Pending(ctx)
	require.NoError(t, err)
	assert.Len(t, pending, 1)

	retried, err := svc.Retried(ctx)
	require.NoError(t, err)
	require.Len(t, retried, 1)
	first := *retried[0].RetriedAt

	// Marking again is allowed and just re-sets the terminal state.
	require.NoError(t, svc.MarkAsRetried(ctx, retried[0].ID))
	retried, err = svc.Retried(ctx)
	require.NoError(t, err)
	require.Len(t, retried, 1)
	assert.False(t, retried[0].RetriedAt.Before(first))
}
