/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package workqueue runs keyed work in the background with bounded
// concurrency. Work is held in memory only and does not survive a restart.
//
// Keys coalesce: enqueuing a key that is already waiting replaces its
// callback, and enqueuing a key that is running schedules exactly one more
// run after the current one, with the latest callback.
package workqueue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/chainguard-dev/clog"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/sync/semaphore"
)

var (
	inFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "prbot",
		Subsystem: "workqueue",
		Name:      "in_flight",
		Help:      "Keys currently being processed",
	})

	// processed counts finished runs. Labels: result (ok, error, panic)
	processed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "prbot",
		Subsystem: "workqueue",
		Name:      "processed_total",
		Help:      "Finished work items by result",
	}, []string{"result"})

	coalesced = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "prbot",
		Subsystem: "workqueue",
		Name:      "coalesced_total",
		Help:      "Enqueues merged into pending or running work for the same key",
	})
)

// ErrClosed is returned by Enqueue after Shutdown.
var ErrClosed = errors.New("workqueue is shut down")

// Callback processes one key.
type Callback func(ctx context.Context) error

type entry struct {
	fn      Callback
	running bool
	// next is set when the key is enqueued again while running.
	next Callback
}

// Queue is an in-memory keyed work queue.
type Queue struct {
	ctx    context.Context
	cancel context.CancelFunc
	sem    *semaphore.Weighted
	wg     sync.WaitGroup

	mu      sync.Mutex
	entries map[string]*entry
	closed  bool
}

// New creates a Queue running at most workers callbacks at once. Callbacks
// run with a context derived from ctx, so loggers attached to ctx are
// inherited.
func New(ctx context.Context, workers int) (*Queue, error) {
	if workers <= 0 {
		return nil, fmt.Errorf("workers must be positive, got %d", workers)
	}
	ctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	return &Queue{
		ctx:     ctx,
		cancel:  cancel,
		sem:     semaphore.NewWeighted(int64(workers)),
		entries: make(map[string]*entry),
	}, nil
}

// Enqueue schedules fn under key. It never blocks on running work.
func (q *Queue) Enqueue(key string, fn Callback) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return ErrClosed
	}

	if e, ok := q.entries[key]; ok {
		if e.running {
			e.next = fn
		} else {
			e.fn = fn
		}
		coalesced.Inc()
		return nil
	}

	e := &entry{fn: fn}
	q.entries[key] = e
	q.wg.Add(1)
	go q.process(key, e)
	return nil
}

// Pending returns the number of keys waiting or running.
func (q *Queue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}

func (q *Queue) process(key string, e *entry) {
	defer q.wg.Done()
	for {
		if err := q.sem.Acquire(q.ctx, 1); err != nil {
			q.mu.Lock()
			delete(q.entries, key)
			q.mu.Unlock()
			return
		}

		q.mu.Lock()
		fn := e.fn
		e.running = true
		q.mu.Unlock()

		q.run(key, fn)
		q.sem.Release(1)

		q.mu.Lock()
		if e.next == nil {
			delete(q.entries, key)
			q.mu.Unlock()
			return
		}
		e.fn, e.next, e.running = e.next, nil, false
		q.mu.Unlock()
	}
}

func (q *Queue) run(key string, fn Callback) {
	log := clog.FromContext(q.ctx).With("key", key)
	ctx := clog.WithLogger(q.ctx, log)

	inFlight.Inc()
	defer inFlight.Dec()

	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			log.With("panic", r).Error("Work item panicked")
			processed.WithLabelValues("panic").Inc()
		}
	}()

	if err := fn(ctx); err != nil {
		log.With("error", err, "duration", time.Since(start)).Error("Work item failed")
		processed.WithLabelValues("error").Inc()
		return
	}
	log.With("duration", time.Since(start)).Info("Work item finished")
	processed.WithLabelValues("ok").Inc()
}

// Shutdown stops accepting work and waits for queued and running work to
// finish. When ctx ends first, running callbacks are cancelled, waiting
// ones are dropped, and ctx's error is returned once they have all exited.
func (q *Queue) Shutdown(ctx context.Context) error {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		q.cancel()
		return nil
	case <-ctx.Done():
		q.cancel()
		<-done
		return ctx.Err()
	}
}
