package fetch

import (
	"context"
	"fmt"
	"math/rand"
	"sync/atomic"
	"time"

	"github.com/rafaelminatto1/fisioflow-51658291-sub014/internal/domain/record"
	"github.com/rafaelminatto1/fisioflow-51658291-sub014/internal/errors"
)

// SimulatedPayload is what SimulatedFetcher returns.
type SimulatedPayload struct {
	Key       string    `json:"key"`
	Version   int64     `json:"version"`
	FetchedAt time.Time `json:"fetchedAt"`
}

// SimulatedFetcher stands in for the backend in development: it waits a
// latency, optionally fails a share of calls, and returns a versioned
// payload.
type SimulatedFetcher struct {
	Latency     time.Duration
	FailureRate float64

	calls atomic.Int64
}

// Calls returns how many fetches were started.
func (f *SimulatedFetcher) Calls() int64 {
	return f.calls.Load()
}

func (f *SimulatedFetcher) Fetch(ctx context.Context, key record.Key) (any, error) {
	version := f.calls.Add(1)

	if f.Latency > 0 {
		timer := time.NewTimer(f.Latency)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}

	if f.FailureRate > 0 && rand.Float64() < f.FailureRate {
		return nil, errors.Unavailable(errors.CodeBackendQueryFailed, "simulated backend failure").
			WithResource(key.String()).
			WithDetails(fmt.Sprintf("call %d", version)).
			Build()
	}

	return SimulatedPayload{Key: key.String(), Version: version, FetchedAt: time.Now()}, nil
}
