package main

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"net"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

type retrier struct {
	initial    time.Duration
	max        time.Duration
	maxRetries int
	logger     zerolog.Logger
}

func newRetrier(initial, max time.Duration, maxRetries int, logger zerolog.Logger) *retrier {
	if initial <= 0 {
		initial = 200 * time.Millisecond
	}
	if max < initial {
		max = initial
	}
	if maxRetries < 0 {
		maxRetries = 0
	}
	return &retrier{initial: initial, max: max, maxRetries: maxRetries, logger: logger}
}

// do runs fn until it succeeds, returns a non-retryable error, the retry
// budget is spent or ctx is done.
func (r *retrier) do(ctx context.Context, fn func() error, retryable func(error) bool) error {
	for attempt := 0; ; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		if attempt >= r.maxRetries || !retryable(err) {
			return err
		}
		delay := backoffWithJitter(r.initial, r.max, attempt)
		r.logger.Debug().Err(err).Int("attempt", attempt+1).Dur("sleep", delay).Msg("Retrying request")
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
}

func backoffWithJitter(initial, max time.Duration, attempt int) time.Duration {
	b := float64(initial) * math.Pow(2, float64(attempt))
	if b > float64(max) {
		b = float64(max)
	}
	j := b / 2
	return time.Duration(j + rand.Float64()*j)
}

// retryPolicy returns the retry predicate for method. Idempotent reads are
// resent on any network error, 5xx or 429. Anything else is resent only
// when the request never reached the server or the server turned it away
// before handling it.
func retryPolicy(method string) func(error) bool {
	if method == http.MethodGet || method == http.MethodHead {
		return isRetryableHTTP
	}
	return isRetryableUnhandled
}

func isRetryableHTTP(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var apiErr *apiError
	return errors.As(err, &apiErr) && isRetryableStatus(apiErr.status)
}

func isRetryableUnhandled(err error) bool {
	if err == nil {
		return false
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return true
	}
	var apiErr *apiError
	if !errors.As(err, &apiErr) {
		return false
	}
	switch apiErr.status {
	case http.StatusTooManyRequests, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}

func isRetryableStatus(code int) bool {
	return code >= 500 && code < 600 || code == http.StatusTooManyRequests
}
