package core

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// RefinerOptions configures the retry and breaker behavior of a Refiner.
// These bound a single generation call; the per-email attempt budget is the
// orchestrator's separate concern.
type RefinerOptions struct {
	// MaxRetries is the total number of generation tries per Refine call.
	MaxRetries int

	// BackoffUnit scales the exponential wait between tries: after the
	// i-th failed try (0-based) the refiner sleeps 2^i units.
	BackoffUnit time.Duration

	// MinResponseChars is the trimmed length a response must exceed to be
	// considered valid.
	MinResponseChars int

	// BreakerMaxFailures is the consecutive-failure count after which the
	// circuit opens. It must exceed MaxRetries or a single email's retry
	// budget could trip the breaker on its own.
	BreakerMaxFailures uint32

	// BreakerTimeout is how long the circuit stays open before probing.
	BreakerTimeout time.Duration
}

func (o RefinerOptions) withDefaults() RefinerOptions {
	if o.MaxRetries <= 0 {
		o.MaxRetries = 3
	}
	if o.BackoffUnit <= 0 {
		o.BackoffUnit = time.Second
	}
	if o.MinResponseChars <= 0 {
		o.MinResponseChars = 10
	}
	if o.BreakerMaxFailures == 0 {
		o.BreakerMaxFailures = 5
	}
	if o.BreakerTimeout <= 0 {
		o.BreakerTimeout = 30 * time.Second
	}
	return o
}

// Refiner is the gateway to the text-generation service. It throttles
// outbound calls through a shared Throttle, retries failed or too-short
// responses with exponential backoff, and runs every provider call through a
// circuit breaker. All failures surface as GenerationError.
type Refiner struct {
	generator TextGenerator
	throttle  *Throttle
	breaker   *gobreaker.CircuitBreaker
	logger    *zap.Logger
	opts      RefinerOptions
}

// NewRefiner creates a refiner around the generator. The throttle is shared
// state owned by the caller so several refiners can honor one interval.
func NewRefiner(generator TextGenerator, throttle *Throttle, logger *zap.Logger, opts RefinerOptions) *Refiner {
	opts = opts.withDefaults()

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "text-generation",
		Timeout: opts.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > opts.BreakerMaxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("Circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})

	return &Refiner{
		generator: generator,
		throttle:  throttle,
		breaker:   breaker,
		logger:    logger,
		opts:      opts,
	}
}

// Refine generates text for the prompt, retrying invalid responses up to the
// configured budget. The returned text is trimmed. When every try fails the
// error is a GenerationError reporting exhausted retries.
func (r *Refiner) Refine(ctx context.Context, prompt string) (string, error) {
	var lastErr error

	for try := 0; try < r.opts.MaxRetries; try++ {
		if try > 0 {
			if err := r.backoff(ctx, try-1); err != nil {
				return "", &GenerationError{Err: err}
			}
		}

		if err := r.throttle.Wait(ctx); err != nil {
			return "", &GenerationError{Err: err}
		}

		out, err := r.breaker.Execute(func() (interface{}, error) {
			return r.generator.Generate(ctx, prompt)
		})
		if err != nil {
			lastErr = err
			r.logger.Warn("Generation call failed",
				zap.Int("try", try+1),
				zap.Int("max_tries", r.opts.MaxRetries),
				zap.Error(err))
			continue
		}

		text := strings.TrimSpace(out.(string))
		if utf8.RuneCountInString(text) > r.opts.MinResponseChars {
			r.logger.Debug("Generation succeeded",
				zap.Int("try", try+1),
				zap.Int("length", len(text)))
			return text, nil
		}

		lastErr = fmt.Errorf("response too short (%d chars)", utf8.RuneCountInString(text))
		r.logger.Warn("Received empty or too short response",
			zap.Int("try", try+1),
			zap.Int("max_tries", r.opts.MaxRetries))
	}

	return "", &GenerationError{
		Err: fmt.Errorf("exhausted retries after %d tries: %w", r.opts.MaxRetries, lastErr),
	}
}

// backoff sleeps 2^i backoff units, aborting early if the context ends.
func (r *Refiner) backoff(ctx context.Context, i int) error {
	wait := r.opts.BackoffUnit * time.Duration(1<<uint(i))
	r.logger.Debug("Backing off before retry", zap.Duration("wait", wait))

	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
