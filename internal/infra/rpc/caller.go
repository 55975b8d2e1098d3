// Package rpc wraps remote calls with bounded retry and request throttling.
package rpc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sethvargo/go-retry"
	"golang.org/x/time/rate"

	"github.com/vietddude/harvester/internal/harvesting/metrics"
)

// ErrRetriesExhausted is returned when every attempt of a call failed.
// The error of the last attempt is joined into the returned error.
var ErrRetriesExhausted = errors.New("retries exhausted")

// RetryConfig defines retry behavior.
type RetryConfig struct {
	// MaxAttempts is the total number of attempts, including the first.
	MaxAttempts int
	// Interval is the fixed wait between two attempts.
	Interval time.Duration
	// Throttle is a fixed delay applied before every attempt.
	Throttle time.Duration
	// RequestsPerSecond caps the attempt rate. 0 disables the limiter.
	RequestsPerSecond float64
}

// DefaultRetryConfig provides the default retry policy.
var DefaultRetryConfig = RetryConfig{
	MaxAttempts: 10,
	Interval:    1 * time.Second,
	Throttle:    50 * time.Millisecond,
}

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Sleep is the default SleepFunc backed by a timer.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Caller executes remote operations with a fixed-interval retry policy.
// It treats any non-nil error as retryable and never inspects error content.
type Caller struct {
	cfg     RetryConfig
	limiter *rate.Limiter
	sleep   SleepFunc
}

// NewCaller creates a Caller. A zero MaxAttempts or Interval falls back to
// DefaultRetryConfig; a zero Throttle or RequestsPerSecond disables it.
func NewCaller(cfg RetryConfig) *Caller {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultRetryConfig.MaxAttempts
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultRetryConfig.Interval
	}

	c := &Caller{cfg: cfg, sleep: Sleep}
	if cfg.RequestsPerSecond > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}
	return c
}

// SetSleep replaces the function used for the pre-call throttle and the
// wait between attempts.
func (c *Caller) SetSleep(fn SleepFunc) {
	c.sleep = fn
}

// Config returns the effective retry configuration.
func (c *Caller) Config() RetryConfig {
	return c.cfg
}

// Do runs fn until it succeeds or MaxAttempts is reached.
// name labels logs and metrics.
func (c *Caller) Do(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	// The interval is slept inside the attempt so that it goes through c.sleep.
	backoff := retry.WithMaxRetries(uint64(c.cfg.MaxAttempts-1),
		retry.BackoffFunc(func() (time.Duration, bool) { return 0, false }))

	attempts := 0
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		if attempts > 0 {
			if err := c.sleep(ctx, c.cfg.Interval); err != nil {
				return err
			}
		}
		if err := c.wait(ctx); err != nil {
			return err
		}

		attempts++
		metrics.RPCCallsTotal.WithLabelValues(name).Inc()
		start := time.Now()
		err := fn(ctx)
		metrics.RPCLatency.WithLabelValues(name).Observe(time.Since(start).Seconds())
		if err == nil {
			return nil
		}

		metrics.RPCErrorsTotal.WithLabelValues(name).Inc()
		slog.Debug("Remote call failed",
			"operation", name,
			"attempt", attempts,
			"max_attempts", c.cfg.MaxAttempts,
			"error", err,
		)
		return retry.RetryableError(err)
	})
	if err == nil {
		return nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}

	metrics.RPCRetriesExhausted.WithLabelValues(name).Inc()
	return fmt.Errorf("%s: %w after %d attempts: %w", name, ErrRetriesExhausted, attempts, err)
}

// wait applies the pre-call throttle and the rate limiter.
func (c *Caller) wait(ctx context.Context) error {
	if c.cfg.Throttle > 0 {
		if err := c.sleep(ctx, c.cfg.Throttle); err != nil {
			return err
		}
	}
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Call runs op through c and returns its result.
// On failure the zero value of R is returned.
func Call[R any](
	ctx context.Context,
	c *Caller,
	name string,
	op func(ctx context.Context) (R, error),
) (R, error) {
	var out R
	err := c.Do(ctx, name, func(ctx context.Context) error {
		r, err := op(ctx)
		if err != nil {
			return err
		}
		out = r
		return nil
	})
	if err != nil {
		var zero R
		return zero, err
	}
	return out, nil
}
