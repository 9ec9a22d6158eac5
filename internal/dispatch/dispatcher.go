package dispatch

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/sourcegraph/conc/pool"

	"github.com/shohag/hookrelay/internal/models"
	"github.com/shohag/hookrelay/internal/queue"
	"github.com/shohag/hookrelay/internal/signing"
	"github.com/shohag/hookrelay/internal/storage"
)

const defaultMaxParallel = 16

// Dispatcher drives webhook deliveries: it signs the payload, attempts
// delivery with bounded retries and jittered exponential backoff, records
// the outcome, and dead-letters dispatches whose budget is exhausted.
//
// One logical dispatch occupies one goroutine for its full lifetime,
// backoff sleeps included; concurrent dispatches share nothing but storage.
type Dispatcher struct {
	sender         *Sender
	recorder       *Recorder
	deadLetter     *DeadLetterService
	store          storage.Storage
	queue          queue.Queue
	log            zerolog.Logger
	maxParallel    int
	defaultRetry   int
	defaultTimeout time.Duration
	backoff        func(n int, base time.Duration) time.Duration
}

// New wires a Dispatcher. q may be nil, in which case DispatchAsync fails
// with ErrQueueUnavailable and callers must dispatch synchronously.
func New(store storage.Storage, signer *signing.Signer, q queue.Queue, log zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		sender:         NewSender(signer),
		recorder:       NewRecorder(store, log),
		deadLetter:     NewDeadLetterService(store, log),
		store:          store,
		queue:          q,
		log:            log,
		maxParallel:    defaultMaxParallel,
		defaultRetry:   DefaultRetry,
		defaultTimeout: DefaultTimeout,
		backoff:        backoffDelay,
	}
}

// SetDefaults replaces the fallback retry budget and per-attempt timeout
// applied when a dispatch's options leave them unset. Zero arguments keep
// the built-in defaults.
func (d *Dispatcher) SetDefaults(retry int, timeout time.Duration) {
	if retry != 0 {
		d.defaultRetry = retry
	}
	if timeout > 0 {
		d.defaultTimeout = timeout
	}
}

func (d *Dispatcher) withDefaults(opts Options) Options {
	if opts.Retry == 0 {
		opts.Retry = d.defaultRetry
	}
	if opts.Timeout == 0 {
		opts.Timeout = d.defaultTimeout
	}
	return opts
}

// DeadLetter exposes the dead-letter service for management tooling.
func (d *Dispatcher) DeadLetter() *DeadLetterService {
	return d.deadLetter
}

// Dispatch delivers one event to one endpoint URL, retrying per the
// options. It returns true iff any attempt within the budget succeeded.
// The only error path is invalid configuration; transport failures and
// non-2xx responses are retried and ultimately reported as false, with
// detail living in logs, delivery records, and the dead-letter store.
//
// Cancelling ctx abandons the remaining budget: the dispatch returns
// false and is recorded and dead-lettered with the attempts actually
// made, which may be fewer than the budget allowed.
func (d *Dispatcher) Dispatch(ctx context.Context, event string, payload map[string]any, endpointURL string, opts Options) (bool, error) {
	opts, err := d.withDefaults(opts).normalize()
	if err != nil {
		return false, err
	}

	canonical, err := signing.CanonicalJSON(payload)
	if err != nil {
		return false, err
	}
	// One key for every attempt of this dispatch, so receivers can
	// deduplicate redeliveries.
	key := models.IdempotencyKey(event, canonical, endpointURL)

	total := opts.Retry + 1
	if total < 1 {
		total = 1
	}
	var last *Attempt
	made := 0

	for i := 0; i < total; i++ {
		last = d.sender.Attempt(ctx, event, payload, endpointURL, opts, key)
		made = i + 1

		if last.OK() {
			if opts.EndpointID != "" {
				d.recorder.RecordSuccess(ctx, opts.EndpointID, event, canonical, last.StatusCode, last.Body, made, key)
			}
			d.log.Info().
				Str("event", event).
				Str("url", endpointURL).
				Int("status_code", last.StatusCode).
				Int("attempts", made).
				Msg("webhook delivered")
			return true, nil
		}

		d.log.Warn().
			Str("event", event).
			Str("url", endpointURL).
			Int("attempt", made).
			Int("status_code", last.StatusCode).
			Str("error", last.Err).
			Msg("webhook attempt failed")

		if i < total-1 {
			if err := sleep(ctx, d.backoff(i, opts.RetryDelay)); err != nil {
				d.log.Warn().Str("event", event).Str("url", endpointURL).Msg("dispatch cancelled during backoff")
				break
			}
		}
	}

	if opts.EndpointID != "" {
		d.recorder.RecordFailure(ctx, opts.EndpointID, event, canonical, last.StatusCode, last.Body, made, key, last.ErrorMessage())
	}
	d.deadLetter.Store(ctx, opts.EndpointID, endpointURL, event, canonical, opts, made, last, key)

	return false, nil
}

// DispatchAsync enqueues the dispatch for later, independent execution.
// The queued job produces identical results to a synchronous Dispatch.
func (d *Dispatcher) DispatchAsync(ctx context.Context, event string, payload map[string]any, endpointURL string, opts Options) error {
	if d.queue == nil {
		return ErrQueueUnavailable
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	// Validate up front: configuration errors must fail the caller, not
	// a worker later.
	opts, err := d.withDefaults(opts).normalize()
	if err != nil {
		return err
	}

	return d.queue.Push(func(jobCtx context.Context) {
		if _, err := d.Dispatch(jobCtx, event, payload, endpointURL, opts); err != nil {
			d.log.Error().Err(err).Str("event", event).Str("url", endpointURL).Msg("queued dispatch failed")
		}
	})
}

// Send fans one event out to every active endpoint subscribed to it.
// Endpoints are independent, so their dispatches run on a bounded pool;
// the result map reflects each endpoint's own final outcome after its own
// full retry budget.
func (d *Dispatcher) Send(ctx context.Context, event string, payload map[string]any) (map[string]bool, error) {
	endpoints, err := d.store.MatchEndpoints(ctx, event)
	if err != nil {
		return nil, err
	}

	results := make(map[string]bool, len(endpoints))
	var mu sync.Mutex

	p := pool.New().WithMaxGoroutines(d.maxParallel)
	for _, ep := range endpoints {
		p.Go(func() {
			ok, err := d.Dispatch(ctx, event, payload, ep.URL, optionsFor(ep))
			if err != nil {
				d.log.Error().Err(err).Str("endpoint_id", ep.ID).Str("event", event).Msg("dispatch misconfigured")
				ok = false
			}
			mu.Lock()
			results[ep.ID] = ok
			mu.Unlock()
		})
	}
	p.Wait()

	return results, nil
}

// Replay re-dispatches a dead-lettered call with its original options and
// marks the failure as retried. The failure row itself is never deleted.
func (d *Dispatcher) Replay(ctx context.Context, failureID string) (bool, error) {
	f, err := d.store.GetFailure(ctx, failureID)
	if err != nil {
		return false, err
	}
	if f == nil {
		return false, storage.ErrNotFound
	}

	var opts Options
	if len(f.Options) > 0 {
		if err := json.Unmarshal(f.Options, &opts); err != nil {
			return false, err
		}
	}
	var payload map[string]any
	if len(f.Payload) > 0 {
		if err := json.Unmarshal(f.Payload, &payload); err != nil {
			return false, err
		}
	}

	ok, err := d.Dispatch(ctx, f.Event, payload, f.EndpointURL, opts)
	if err != nil {
		return false, err
	}
	if err := d.deadLetter.MarkAsRetried(ctx, f.ID); err != nil {
		return ok, err
	}
	return ok, nil
}

func optionsFor(ep models.Endpoint) Options {
	return Options{
		Retry:      ep.Retry,
		Timeout:    ep.Timeout,
		Secret:     ep.Secret,
		EndpointID: ep.ID,
		Headers:    ep.Headers,
		RetryDelay: ep.RetryDelay,
	}
}
