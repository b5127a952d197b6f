// Package ratelimit serializes calls to external APIs per logical endpoint key.
//
// Each key owns a FIFO queue drained by at most one goroutine. Consecutive
// dispatches for a key are separated by at least the interval supplied with
// the queued operation, measured from the end of the previous call. Keys never
// block each other.
package ratelimit

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/Mehmetbaruk/game-distribution-service-sub000/internal/metrics"
)

// Endpoint keys used by the translation engine
const (
	EndpointText  = "text"
	EndpointImage = "image"
)

// Operation is the work executed once the limiter grants a slot.
type Operation func(ctx context.Context) error

// Limiter throttles operations per endpoint key.
type Limiter struct {
	mu     sync.Mutex
	queues map[string]*queue

	// isRateLimited reports whether an operation error means the remote side
	// throttled us, which earns the key an extra 2x interval penalty.
	isRateLimited func(error) bool
}

type queue struct {
	lastCall   time.Time
	pending    []*request
	processing bool
}

type request struct {
	ctx      context.Context
	op       Operation
	interval time.Duration
	enqueued time.Time
	done     chan error
}

// New creates a limiter. isRateLimited may be nil when no error is treated as throttling.
func New(isRateLimited func(error) bool) *Limiter {
	if isRateLimited == nil {
		isRateLimited = func(error) bool { return false }
	}
	return &Limiter{
		queues:        make(map[string]*queue),
		isRateLimited: isRateLimited,
	}
}

// Execute enqueues op behind any pending operations for key and blocks until it ran.
// The operation's error is returned to this caller only. If ctx ends while the
// operation is still queued, Execute returns ctx.Err() and the operation is skipped.
func (l *Limiter) Execute(ctx context.Context, key string, minInterval time.Duration, op Operation) error {
	req := &request{
		ctx:      ctx,
		op:       op,
		interval: minInterval,
		enqueued: time.Now(),
		done:     make(chan error, 1),
	}

	l.mu.Lock()
	q, ok := l.queues[key]
	if !ok {
		q = &queue{}
		l.queues[key] = q
	}
	q.pending = append(q.pending, req)
	depth := len(q.pending)
	startDrain := !q.processing
	if startDrain {
		q.processing = true
	}
	l.mu.Unlock()

	metrics.RateLimiterQueueDepth.WithLabelValues(key).Set(float64(depth))
	if startDrain {
		go l.drain(key, q)
	}

	select {
	case err := <-req.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Do runs op through the limiter and returns its typed result. The result
// travels over a channel because op may still be running when ctx ends.
func Do[T any](ctx context.Context, l *Limiter, key string, minInterval time.Duration, op func(ctx context.Context) (T, error)) (T, error) {
	out := make(chan T, 1)
	err := l.Execute(ctx, key, minInterval, func(ctx context.Context) error {
		v, opErr := op(ctx)
		out <- v
		return opErr
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return <-out, nil
}

// QueueLength returns the number of operations waiting for key.
func (l *Limiter) QueueLength(key string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	if q, ok := l.queues[key]; ok {
		return len(q.pending)
	}
	return 0
}

// drain is the single consumer of one key's queue.
func (l *Limiter) drain(key string, q *queue) {
	for {
		l.mu.Lock()
		if len(q.pending) == 0 {
			q.processing = false
			l.mu.Unlock()
			metrics.RateLimiterQueueDepth.WithLabelValues(key).Set(0)
			return
		}
		req := q.pending[0]
		q.pending[0] = nil
		q.pending = q.pending[1:]
		depth := len(q.pending)
		last := q.lastCall
		l.mu.Unlock()

		metrics.RateLimiterQueueDepth.WithLabelValues(key).Set(float64(depth))

		if req.ctx.Err() != nil {
			req.done <- req.ctx.Err()
			continue
		}

		if !last.IsZero() {
			if wait := req.interval - time.Since(last); wait > 0 {
				if !sleepCtx(req.ctx, wait) {
					req.done <- req.ctx.Err()
					continue
				}
			}
		}

		metrics.RateLimiterWaitSeconds.WithLabelValues(key).Observe(time.Since(req.enqueued).Seconds())
		err := l.invoke(req)

		l.mu.Lock()
		q.lastCall = time.Now()
		l.mu.Unlock()

		req.done <- err

		if err != nil && l.isRateLimited(err) {
			penalty := 2 * req.interval
			metrics.RateLimiterPenaltiesTotal.WithLabelValues(key).Inc()
			log.Printf("[RATELIMIT] %s: remote rate limit hit, backing off %v", key, penalty)
			time.Sleep(penalty)
		}
	}
}

// invoke runs the operation, converting a panic into an error so the drain loop survives.
func (l *Limiter) invoke(req *request) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r}
		}
	}()
	return req.op(req.ctx)
}

// PanicError is returned to the caller whose operation panicked.
type PanicError struct {
	Value interface{}
}

func (e *PanicError) Error() string {
	return "ratelimit: operation panicked"
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}
