package fetch

import (
	"context"
	stderrors "errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap"

	"github.com/rafaelminatto1/fisioflow-51658291-sub014/internal/domain/record"
	"github.com/rafaelminatto1/fisioflow-51658291-sub014/internal/errors"
)

// MockFetcher is a testify mock of Fetcher.
type MockFetcher struct {
	mock.Mock
}

func (m *MockFetcher) Fetch(ctx context.Context, key record.Key) (any, error) {
	args := m.Called(ctx, key)
	return args.Get(0), args.Error(1)
}

var p1Goals = record.KeyFor(record.MustSubjectID("p1"), record.Goals)

func TestRegistry_FetchFunc(t *testing.T) {
	m := new(MockFetcher)
	m.On("Fetch", mock.Anything, p1Goals).Return("goals", nil).Once()

	r := NewRegistry()
	r.Register(record.Goals, m)

	payload, err := r.FetchFunc(p1Goals)(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "goals", payload)
	m.AssertExpectations(t)
}

func TestRegistry_MissingFetcher(t *testing.T) {
	r := NewRegistry()

	_, err := r.Lookup(record.Surgeries)
	assert.True(t, errors.IsNotFound(err))

	_, err = r.FetchFunc(record.KeyFor(record.MustSubjectID("p1"), record.Surgeries))(context.Background())
	assert.True(t, errors.IsNotFound(err))
}

func TestRegistry_DecoratorOrder(t *testing.T) {
	var order []string
	tag := func(name string) Decorator {
		return func(_ record.Category, next Fetcher) Fetcher {
			return FetcherFunc(func(ctx context.Context, key record.Key) (any, error) {
				order = append(order, name)
				return next.Fetch(ctx, key)
			})
		}
	}

	r := NewRegistry()
	r.RegisterAll(FetcherFunc(func(context.Context, record.Key) (any, error) {
		order = append(order, "base")
		return nil, nil
	}), tag("outer"), tag("inner"))

	_, err := r.FetchFunc(p1Goals)(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"outer", "inner", "base"}, order)
}

func TestWithTimeout(t *testing.T) {
	slow := FetcherFunc(func(ctx context.Context, key record.Key) (any, error) {
		time.Sleep(200 * time.Millisecond)
		return "late", nil
	})

	f := WithTimeout(10*time.Millisecond)(record.Goals, slow)
	_, err := f.Fetch(context.Background(), p1Goals)

	require.Error(t, err)
	assert.True(t, errors.IsTimeout(err))
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestWithTimeout_ParentCancellationIsNotATimeout(t *testing.T) {
	started := make(chan struct{})
	blocked := FetcherFunc(func(ctx context.Context, key record.Key) (any, error) {
		close(started)
		<-ctx.Done()
		return nil, ctx.Err()
	})

	f := WithTimeout(time.Minute)(record.Goals, blocked)
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-started
		cancel()
	}()
	_, err := f.Fetch(ctx, p1Goals)

	require.Error(t, err)
	assert.False(t, errors.IsTimeout(err))
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestWithRetry(t *testing.T) {
	config := RetryConfig{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond, BackoffFactor: 2}

	t.Run("retries retryable errors until success", func(t *testing.T) {
		m := new(MockFetcher)
		transient := errors.Unavailable(errors.CodeBackendQueryFailed, "down").Build()
		m.On("Fetch", mock.Anything, p1Goals).Return(nil, transient).Twice()
		m.On("Fetch", mock.Anything, p1Goals).Return("goals", nil).Once()

		payload, err := WithRetry(config, zap.NewNop())(record.Goals, m).Fetch(context.Background(), p1Goals)

		require.NoError(t, err)
		assert.Equal(t, "goals", payload)
		m.AssertNumberOfCalls(t, "Fetch", 3)
	})

	t.Run("stops on non-retryable error", func(t *testing.T) {
		m := new(MockFetcher)
		permanent := errors.Validation(errors.CodeInvalidInput, "bad").Build()
		m.On("Fetch", mock.Anything, p1Goals).Return(nil, permanent)

		_, err := WithRetry(config, nil)(record.Goals, m).Fetch(context.Background(), p1Goals)

		assert.Equal(t, permanent, err)
		m.AssertNumberOfCalls(t, "Fetch", 1)
	})

	t.Run("gives up after max attempts", func(t *testing.T) {
		m := new(MockFetcher)
		m.On("Fetch", mock.Anything, p1Goals).Return(nil, errors.Timeout(errors.CodeFetchTimeout, "slow").Build())

		_, err := WithRetry(config, nil)(record.Goals, m).Fetch(context.Background(), p1Goals)

		assert.True(t, errors.IsTimeout(err))
		m.AssertNumberOfCalls(t, "Fetch", 3)
	})
}

func TestRetryConfig_CalculateDelay(t *testing.T) {
	c := RetryConfig{BaseDelay: 100 * time.Millisecond, MaxDelay: 300 * time.Millisecond, BackoffFactor: 2}

	assert.Equal(t, 100*time.Millisecond, c.calculateDelay(0))
	assert.Equal(t, 200*time.Millisecond, c.calculateDelay(1))
	assert.Equal(t, 300*time.Millisecond, c.calculateDelay(5))
}

type breakerStates struct {
	last atomic.Int32
}

func (b *breakerStates) RecordBreakerState(_ string, state int) {
	b.last.Store(int32(state))
}

func TestWithCircuitBreaker_OpensAfterFailures(t *testing.T) {
	config := CircuitBreakerConfig{MaxRequests: 1, Interval: time.Minute, Timeout: time.Minute, FailureThreshold: 0.5, MinRequests: 2}
	states := &breakerStates{}

	calls := 0
	failing := FetcherFunc(func(context.Context, record.Key) (any, error) {
		calls++
		return nil, stderrors.New("db down")
	})
	f := WithCircuitBreaker(config, states, nil)(record.Goals, failing)

	for i := 0; i < 2; i++ {
		_, err := f.Fetch(context.Background(), p1Goals)
		require.Error(t, err)
	}

	_, err := f.Fetch(context.Background(), p1Goals)
	require.Error(t, err)
	assert.True(t, errors.IsUnavailable(err))
	assert.Equal(t, errors.CodeCircuitOpen, errors.CodeOf(err))
	assert.False(t, errors.IsRetryable(err))
	assert.Equal(t, 2, calls)
	assert.Equal(t, int32(2), states.last.Load())
}

func TestWithCircuitBreaker_PerCategory(t *testing.T) {
	config := CircuitBreakerConfig{MaxRequests: 1, Interval: time.Minute, Timeout: time.Minute, FailureThreshold: 0.5, MinRequests: 1}
	decorate := WithCircuitBreaker(config, nil, nil)

	failing := decorate(record.Goals, FetcherFunc(func(context.Context, record.Key) (any, error) {
		return nil, stderrors.New("down")
	}))
	healthy := decorate(record.Surgeries, FetcherFunc(func(context.Context, record.Key) (any, error) {
		return "ok", nil
	}))

	_, _ = failing.Fetch(context.Background(), p1Goals)
	_, err := failing.Fetch(context.Background(), p1Goals)
	assert.True(t, errors.IsUnavailable(err))

	payload, err := healthy.Fetch(context.Background(), record.KeyFor(record.MustSubjectID("p1"), record.Surgeries))
	require.NoError(t, err)
	assert.Equal(t, "ok", payload)
}

func TestWithTracing_RecordsSpan(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	provider := trace.NewTracerProvider(trace.WithSpanProcessor(recorder))

	f := WithTracing(provider.Tracer("test"))(record.Goals, FetcherFunc(func(context.Context, record.Key) (any, error) {
		return nil, errors.FetchFailure(errors.CodeFetchRejected, "nope").Build()
	}))
	_, err := f.Fetch(context.Background(), p1Goals)
	require.Error(t, err)

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "fetch goals", spans[0].Name())
	assert.Equal(t, "Error", spans[0].Status().Code.String())
}

func TestLimitOf(t *testing.T) {
	tests := []struct {
		qualifier string
		limit     int
		ok        bool
	}{
		{"limit=10", 10, true},
		{"limit=all", 0, false},
		{"", 0, false},
		{"order=desc&limit=5", 5, true},
	}
	for _, tt := range tests {
		limit, ok := limitOf(tt.qualifier)
		assert.Equal(t, tt.ok, ok, tt.qualifier)
		assert.Equal(t, tt.limit, limit, tt.qualifier)
	}
}

func TestSimulatedFetcher(t *testing.T) {
	f := &SimulatedFetcher{}

	first, err := f.Fetch(context.Background(), p1Goals)
	require.NoError(t, err)
	second, err := f.Fetch(context.Background(), p1Goals)
	require.NoError(t, err)

	assert.Equal(t, int64(1), first.(SimulatedPayload).Version)
	assert.Equal(t, int64(2), second.(SimulatedPayload).Version)
	assert.Equal(t, int64(2), f.Calls())

	f.FailureRate = 1
	_, err = f.Fetch(context.Background(), p1Goals)
	assert.True(t, errors.IsUnavailable(err))
}
