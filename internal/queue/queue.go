package queue

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"
	"github.com/sourcegraph/conc/pool"
)

var ErrStopped = errors.New("dispatch queue is stopped")

// Job is one unit of deferred work. For async dispatch it captures the
// (event, payload, endpoint, options) tuple and calls the same dispatch
// entry point as the synchronous path.
type Job func(ctx context.Context)

type Queue interface {
	Push(job Job) error
}

// Memory is an in-process queue: a bounded channel drained by a fixed-size
// worker pool. Jobs have no ordering guarantee between each other, even
// for the same endpoint. Each job owns its execution context for its
// full lifetime, retries included.
type Memory struct {
	jobs    chan Job
	workers int
	log     zerolog.Logger
	stop    chan struct{}
	once    sync.Once
	wg      sync.WaitGroup
}

func NewMemory(workers, buffer int, log zerolog.Logger) *Memory {
	if workers <= 0 {
		workers = 1
	}
	if buffer <= 0 {
		buffer = 64
	}
	return &Memory{
		jobs:    make(chan Job, buffer),
		workers: workers,
		log:     log,
		stop:    make(chan struct{}),
	}
}

func (m *Memory) Start(ctx context.Context) {
	m.log.Info().Int("workers", m.workers).Msg("starting dispatch queue")

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()

		p := pool.New().WithMaxGoroutines(m.workers)
		defer p.Wait()

		for {
			select {
			case <-m.stop:
				return
			case <-ctx.Done():
				return
			case job := <-m.jobs:
				p.Go(func() { job(ctx) })
			}
		}
	}()
}

// Stop shuts the queue down and waits for in-flight jobs. Jobs still
// buffered but not started are dropped.
func (m *Memory) Stop() {
	m.once.Do(func() { close(m.stop) })
	m.wg.Wait()
	m.log.Info().Msg("dispatch queue stopped")
}

func (m *Memory) Push(job Job) error {
	// Checked first so a Push after Stop always fails, even when the
	// buffer still has room.
	select {
	case <-m.stop:
		return ErrStopped
	default:
	}
	select {
	case <-m.stop:
		return ErrStopped
	case m.jobs <- job:
		return nil
	}
}
