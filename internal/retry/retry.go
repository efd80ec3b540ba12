// Package retry wraps one logical generation call in a bounded attempt loop
// that tightens the output instruction and lowers temperature after each
// failure.
package retry

import (
	"context"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/interviewcoach/backend/internal/backend"
)

const (
	DefaultMaxAttempts = 3
	DefaultDelay       = 300 * time.Millisecond

	// TemperatureStep is subtracted per retry, down to MinTemperature.
	TemperatureStep = 0.05
	MinTemperature  = 0.1
)

// Controller runs attempts strictly in sequence.
type Controller struct {
	invoker     backend.Invoker
	maxAttempts int
	delay       time.Duration
	sleep       func(ctx context.Context, d time.Duration) error
	logger      *zap.Logger
}

// Option customises a Controller.
type Option func(*Controller)

// WithMaxAttempts sets the attempt ceiling. Values below 1 are ignored.
func WithMaxAttempts(n int) Option {
	return func(c *Controller) {
		if n >= 1 {
			c.maxAttempts = n
		}
	}
}

// WithDelay sets the pause between attempts.
func WithDelay(d time.Duration) Option {
	return func(c *Controller) { c.delay = d }
}

// WithLogger sets the logger used for per-attempt warnings.
func WithLogger(l *zap.Logger) Option {
	return func(c *Controller) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithSleep replaces the inter-attempt wait.
func WithSleep(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(c *Controller) { c.sleep = fn }
}

// New creates a controller around invoker.
func New(invoker backend.Invoker, opts ...Option) *Controller {
	c := &Controller{
		invoker:     invoker,
		maxAttempts: DefaultMaxAttempts,
		delay:       DefaultDelay,
		sleep:       sleepContext,
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Transform returns the request for attempt (1-based). The first attempt is
// sent unchanged; later ones demand bare JSON and run cooler, never hotter
// than the original request.
func Transform(r backend.Request, attempt int) backend.Request {
	if attempt <= 1 {
		return r
	}
	r.Prompt += fmt.Sprintf("\n\n[Attempt %d: output ONLY valid JSON, starting with { or [. No other text whatsoever.]", attempt)
	r.Temperature = math.Min(r.Temperature, math.Max(MinTemperature, r.Temperature-TemperatureStep*float64(attempt-1)))
	return r
}

// Call sends r up to the attempt ceiling and returns the first response that
// accept approves. A nil accept approves any response. Errors that another
// attempt cannot fix are returned immediately; otherwise the last error is
// returned once attempts run out.
func (c *Controller) Call(ctx context.Context, r backend.Request, accept func(string) error) (string, error) {
	var lastErr error

	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		if attempt > 1 {
			if err := c.sleep(ctx, c.delay); err != nil {
				return "", err
			}
		}

		req := Transform(r, attempt)
		text, err := c.invoker.Invoke(ctx, req)
		if err == nil && accept != nil {
			err = accept(text)
		}
		if err == nil {
			return text, nil
		}

		lastErr = err
		if !backend.Retryable(err) {
			return "", err
		}
		c.logger.Warn("attempt failed",
			zap.String("backend", string(r.Backend)),
			zap.String("model", r.Model),
			zap.Int("attempt", attempt),
			zap.Float64("temperature", req.Temperature),
			zap.Error(err),
		)
	}

	return "", lastErr
}

func sleepContext(ctx context.Context, d time.Duration) error {
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
