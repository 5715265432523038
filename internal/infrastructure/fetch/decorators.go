package fetch

import (
	"context"
	"math"
	"math/rand"
	"time"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/rafaelminatto1/fisioflow-51658291-sub014/internal/domain/record"
	"github.com/rafaelminatto1/fisioflow-51658291-sub014/internal/errors"
)

// ============================================================================
// TIMEOUT
// ============================================================================

// WithTimeout bounds every fetch. Fetchers that ignore their context are
// abandoned when the deadline passes. A cancelled or expired parent
// context is returned as is, not as a timeout.
func WithTimeout(timeout time.Duration) Decorator {
	return func(category record.Category, next Fetcher) Fetcher {
		if timeout <= 0 {
			return next
		}
		return FetcherFunc(func(parent context.Context, key record.Key) (any, error) {
			ctx, cancel := context.WithTimeout(parent, timeout)
			defer cancel()

			type result struct {
				payload any
				err     error
			}
			done := make(chan result, 1)
			go func() {
				payload, err := next.Fetch(ctx, key)
				done <- result{payload, err}
			}()

			select {
			case r := <-done:
				return r.payload, r.err
			case <-ctx.Done():
				if err := parent.Err(); err != nil {
					return nil, err
				}
				return nil, errors.Timeout(errors.CodeFetchTimeout, "fetch timed out").
					WithResource(key.String()).
					WithDetails(timeout.String()).
					WithCause(ctx.Err()).
					Build()
			}
		})
	}
}

// ============================================================================
// RETRY
// ============================================================================

// RetryConfig defines retry behavior configuration
type RetryConfig struct {
	MaxAttempts   int           // Total attempts including the first
	BaseDelay     time.Duration // Delay before the second attempt
	MaxDelay      time.Duration // Upper bound of any delay
	BackoffFactor float64       // Exponential backoff multiplier
	JitterFactor  float64       // Fraction of the delay randomized
}

// DefaultRetryConfig returns default retry configuration
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:   3,
		BaseDelay:     100 * time.Millisecond,
		MaxDelay:      2 * time.Second,
		BackoffFactor: 2.0,
		JitterFactor:  0.1,
	}
}

// calculateDelay calculates the delay for the given attempt number
func (c RetryConfig) calculateDelay(attempt int) time.Duration {
	backoff := float64(c.BaseDelay) * math.Pow(c.BackoffFactor, float64(attempt))
	jitter := backoff * c.JitterFactor * (rand.Float64() - 0.5) * 2
	delay := time.Duration(backoff + jitter)

	if c.MaxDelay > 0 && delay > c.MaxDelay {
		delay = c.MaxDelay
	}
	if delay < 0 {
		delay = 0
	}
	return delay
}

// WithRetry retries retryable failures with exponential backoff and
// jitter. Non-retryable errors and context cancellation end the loop.
func WithRetry(config RetryConfig, logger *zap.Logger) Decorator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(category record.Category, next Fetcher) Fetcher {
		if config.MaxAttempts <= 1 {
			return next
		}
		return FetcherFunc(func(ctx context.Context, key record.Key) (any, error) {
			var lastErr error
			for attempt := 0; attempt < config.MaxAttempts; attempt++ {
				payload, err := next.Fetch(ctx, key)
				if err == nil {
					return payload, nil
				}
				lastErr = err

				if !errors.IsRetryable(err) || attempt == config.MaxAttempts-1 {
					break
				}

				delay := config.calculateDelay(attempt)
				logger.Debug("Retrying fetch",
					zap.String("key", key.String()),
					zap.Int("attempt", attempt+1),
					zap.Duration("delay", delay),
					zap.Error(err),
				)

				timer := time.NewTimer(delay)
				select {
				case <-ctx.Done():
					timer.Stop()
					return nil, ctx.Err()
				case <-timer.C:
				}
			}
			return nil, lastErr
		})
	}
}

// ============================================================================
// CIRCUIT BREAKER
// ============================================================================

// CircuitBreakerConfig holds configuration for circuit breaker
type CircuitBreakerConfig struct {
	MaxRequests      uint32
	Interval         time.Duration
	Timeout          time.Duration
	FailureThreshold float64
	MinRequests      uint32
}

// DefaultCircuitBreakerConfig returns a default configuration for circuit breaker
func DefaultCircuitBreakerConfig() CircuitBreakerConfig {
	return CircuitBreakerConfig{
		MaxRequests:      3,
		Interval:         30 * time.Second,
		Timeout:          30 * time.Second,
		FailureThreshold: 0.6,
		MinRequests:      5,
	}
}

// BreakerRecorder is notified of breaker state changes. States are
// reported as 0 closed, 1 half-open, 2 open.
type BreakerRecorder interface {
	RecordBreakerState(fetcher string, state int)
}

// WithCircuitBreaker gives each category its own breaker, so a failing
// table does not block the others.
func WithCircuitBreaker(config CircuitBreakerConfig, recorder BreakerRecorder, logger *zap.Logger) Decorator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(category record.Category, next Fetcher) Fetcher {
		name := category.String()
		cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        name,
			MaxRequests: config.MaxRequests,
			Interval:    config.Interval,
			Timeout:     config.Timeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				if counts.Requests < config.MinRequests {
					return false
				}
				failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
				return failureRatio >= config.FailureThreshold
			},
			OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
				logger.Warn("Circuit breaker state changed",
					zap.String("fetcher", name),
					zap.String("from", from.String()),
					zap.String("to", to.String()),
				)
				if recorder != nil {
					recorder.RecordBreakerState(name, int(to))
				}
			},
			IsSuccessful: func(err error) bool {
				return err == nil || errors.Is(err, context.Canceled)
			},
		})

		return FetcherFunc(func(ctx context.Context, key record.Key) (any, error) {
			payload, err := cb.Execute(func() (interface{}, error) {
				return next.Fetch(ctx, key)
			})

			switch {
			case errors.Is(err, gobreaker.ErrOpenState):
				return nil, errors.Unavailable(errors.CodeCircuitOpen, "circuit breaker is open").
					WithResource(key.String()).
					WithRetryable(false).
					WithCause(err).
					Build()
			case errors.Is(err, gobreaker.ErrTooManyRequests):
				return nil, errors.Unavailable(errors.CodeCircuitHalfOpen, "circuit breaker is half-open").
					WithResource(key.String()).
					WithRetryable(false).
					WithCause(err).
					Build()
			}
			return payload, err
		})
	}
}

// ============================================================================
// TRACING AND LOGGING
// ============================================================================

// WithTracing starts a client span per fetch.
func WithTracing(tracer trace.Tracer) Decorator {
	return func(category record.Category, next Fetcher) Fetcher {
		if tracer == nil {
			return next
		}
		return FetcherFunc(func(ctx context.Context, key record.Key) (any, error) {
			ctx, span := tracer.Start(ctx, "fetch "+category.String(),
				trace.WithSpanKind(trace.SpanKindClient),
				trace.WithAttributes(
					attribute.String("record.subject_id", key.Subject.String()),
					attribute.String("record.category", category.String()),
					attribute.String("record.qualifier", key.Qualifier),
				),
			)
			defer span.End()

			payload, err := next.Fetch(ctx, key)
			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
				if code := errors.CodeOf(err); code != "" {
					span.SetAttributes(attribute.String("error.code", code))
				}
			}
			return payload, err
		})
	}
}

// WithLogging logs the outcome and duration of every fetch.
func WithLogging(logger *zap.Logger) Decorator {
	return func(category record.Category, next Fetcher) Fetcher {
		if logger == nil {
			return next
		}
		return FetcherFunc(func(ctx context.Context, key record.Key) (any, error) {
			start := time.Now()
			payload, err := next.Fetch(ctx, key)

			fields := []zap.Field{
				zap.String("subject_id", key.Subject.String()),
				zap.String("category", category.String()),
				zap.Duration("duration", time.Since(start)),
			}
			if err != nil {
				logger.Warn("Fetch failed", append(fields, zap.Error(err))...)
			} else {
				logger.Debug("Fetch completed", fields...)
			}
			return payload, err
		})
	}
}
