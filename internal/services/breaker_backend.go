package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker"
)

// BreakerBackend stops calling a failing backend for a while so requests
// fall back to cached or original text immediately.
type BreakerBackend struct {
	next    TranslationBackend
	breaker *gobreaker.CircuitBreaker
}

// NewBreakerBackend wraps next in a circuit breaker that opens after
// consecutiveFailures failures and probes again after openTimeout.
func NewBreakerBackend(next TranslationBackend, consecutiveFailures uint32, openTimeout time.Duration) *BreakerBackend {
	if consecutiveFailures == 0 {
		consecutiveFailures = 5
	}
	settings := gobreaker.Settings{
		Name:        "translation-" + next.Name(),
		MaxRequests: 1,
		Timeout:     openTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= consecutiveFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			infoLog("Circuit breaker %s: %s -> %s", name, from, to)
		},
		// Throttling and bad payloads mean the backend is alive.
		IsSuccessful: func(err error) bool {
			return err == nil ||
				errors.Is(err, ErrRateLimited) ||
				errors.Is(err, ErrMalformedResponse) ||
				errors.Is(err, context.Canceled)
		},
	}
	return &BreakerBackend{
		next:    next,
		breaker: gobreaker.NewCircuitBreaker(settings),
	}
}

func (b *BreakerBackend) Name() string { return b.next.Name() }

// State exposes the breaker state for status reporting.
func (b *BreakerBackend) State() string {
	return b.breaker.State().String()
}

func (b *BreakerBackend) Translate(ctx context.Context, req BackendRequest) (string, error) {
	result, err := b.breaker.Execute(func() (interface{}, error) {
		return b.next.Translate(ctx, req)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return "", fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
		}
		return "", err
	}
	return result.(string), nil
}
