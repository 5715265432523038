// Package cache provides the in-memory entry store of a record session.
// It deduplicates fetches per key, serves stale data while revalidating
// and applies the retention policy of each category.
package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/rafaelminatto1/fisioflow-51658291-sub014/internal/clock"
	"github.com/rafaelminatto1/fisioflow-51658291-sub014/internal/domain/policy"
	"github.com/rafaelminatto1/fisioflow-51658291-sub014/internal/domain/record"
	"github.com/rafaelminatto1/fisioflow-51658291-sub014/internal/errors"
)

// Lookup outcomes reported to the Recorder.
const (
	LookupHit    = "hit"
	LookupStale  = "stale"
	LookupMiss   = "miss"
	LookupJoined = "joined"
)

// Recorder receives store events for metrics. Implementations must be
// safe for concurrent use.
type Recorder interface {
	RecordLookup(category record.Category, outcome string)
	RecordFetch(category record.Category, err error, duration time.Duration)
	RecordEviction(category record.Category)
	RecordEntries(count int)
}

type nopRecorder struct{}

func (nopRecorder) RecordLookup(record.Category, string)              {}
func (nopRecorder) RecordFetch(record.Category, error, time.Duration) {}
func (nopRecorder) RecordEviction(record.Category)                    {}
func (nopRecorder) RecordEntries(int)                                 {}

// Store owns every entry of a session. It is safe for concurrent use; the
// check-and-set of a key's in-flight marker happens in one critical
// section, so concurrent Resolve calls on a key share a single fetch.
type Store struct {
	mu      sync.Mutex
	entries map[record.Key]*entry
	gen     uint64
	stats   Stats

	clock    clock.Clock
	recorder Recorder
	logger   *zap.Logger
}

// NewStore creates an empty store. A nil clock means the wall clock, a
// nil recorder disables metrics and a nil logger disables logging.
func NewStore(clk clock.Clock, recorder Recorder, logger *zap.Logger) *Store {
	if clk == nil {
		clk = clock.Real()
	}
	if recorder == nil {
		recorder = nopRecorder{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Store{
		entries:  make(map[record.Key]*entry),
		clock:    clk,
		recorder: recorder,
		logger:   logger,
	}
}

// ============================================================================
// READS
// ============================================================================

// Get returns a snapshot of key without blocking. Unknown keys yield an
// Empty snapshot that is not stored. Expired entries are evicted first.
func (s *Store) Get(key record.Key) Entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	e, ok := s.entries[key]
	if ok {
		s.expireLocked(e, now)
		e, ok = s.entries[key]
	}
	if !ok {
		return Entry{Key: key, State: StateEmpty}
	}
	return s.snapshotLocked(e, now)
}

// Resolve returns the payload of key.
//
// A fresh entry is returned as is. A stale entry is returned immediately
// and revalidated in the background unless a fetch for the key is already
// in flight. Otherwise the caller waits for the key's in-flight fetch,
// dispatching it with fetch when there is none. Waiting ends early when
// ctx is done; the fetch itself keeps running for the other waiters.
func (s *Store) Resolve(ctx context.Context, key record.Key, fetch FetchFunc) (any, error) {
	s.mu.Lock()
	now := s.clock.Now()

	e, ok := s.entries[key]
	if ok {
		s.expireLocked(e, now)
		e, ok = s.entries[key]
	}

	if ok && e.hasPayload {
		if !s.isStaleLocked(e, now) {
			s.stats.Hits++
			payload := e.payload
			s.mu.Unlock()
			s.recorder.RecordLookup(key.Category, LookupHit)
			return payload, nil
		}

		s.stats.StaleHits++
		if e.flight == nil {
			s.dispatchLocked(ctx, e, fetch)
			s.logger.Debug("Revalidating stale entry",
				zap.String("key", key.String()),
				zap.Time("fetched_at", e.fetchedAt),
			)
		}
		payload := e.payload
		s.mu.Unlock()
		s.recorder.RecordLookup(key.Category, LookupStale)
		return payload, nil
	}

	if !ok {
		e = &entry{key: key}
		s.entries[key] = e
	}

	outcome := LookupJoined
	f := e.flight
	if f == nil {
		outcome = LookupMiss
		s.stats.Misses++
		f = s.dispatchLocked(ctx, e, fetch)
	} else {
		s.stats.Joins++
	}
	s.mu.Unlock()
	s.recorder.RecordLookup(key.Category, outcome)

	select {
	case <-f.done:
		return f.payload, f.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// ============================================================================
// INVALIDATION
// ============================================================================

// Invalidate forces key stale. Payload and fetch time are kept so the last
// known data stays visible until a new fetch completes. It reports whether
// an entry existed.
func (s *Store) Invalidate(key record.Key) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok {
		return false
	}
	s.invalidateLocked(e)
	return true
}

// InvalidateCategory forces every entry of category for subject stale,
// whatever its qualifier, and returns how many entries were affected.
func (s *Store) InvalidateCategory(subject record.SubjectID, category record.Category) int {
	return s.invalidateWhere(func(k record.Key) bool {
		return k.Subject == subject && k.Category == category
	})
}

// InvalidateSubject forces every entry of subject stale.
func (s *Store) InvalidateSubject(subject record.SubjectID) int {
	return s.invalidateWhere(func(k record.Key) bool {
		return k.Subject == subject
	})
}

func (s *Store) invalidateWhere(match func(record.Key) bool) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for key, e := range s.entries {
		if match(key) {
			s.invalidateLocked(e)
			count++
		}
	}
	return count
}

func (s *Store) invalidateLocked(e *entry) {
	s.gen++
	e.staleGen = s.gen
	e.forcedStale = true
	s.stats.Invalidations++
}

// ============================================================================
// EVICTION
// ============================================================================

// Sweep evicts every entry whose eviction window has elapsed at now and
// returns how many were evicted. An entry with a fetch in flight is kept
// without its payload so the flight's waiters stay attached.
func (s *Store) Sweep(now time.Time) int {
	s.mu.Lock()
	evicted := 0
	for _, e := range s.entries {
		if s.expireLocked(e, now) {
			evicted++
		}
	}
	size := len(s.entries)
	s.mu.Unlock()

	s.recorder.RecordEntries(size)
	if evicted > 0 {
		s.logger.Debug("Swept expired cache entries",
			zap.Int("count", evicted),
			zap.Int("remaining", size),
		)
	}
	return evicted
}

// StartCleanup sweeps the store every interval of the store's clock
// until ctx is done.
func (s *Store) StartCleanup(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}

	var (
		mu    sync.Mutex
		timer clock.Timer
	)
	var schedule func()
	schedule = func() {
		mu.Lock()
		defer mu.Unlock()
		if ctx.Err() != nil {
			return
		}
		timer = s.clock.AfterFunc(interval, func() {
			if ctx.Err() != nil {
				return
			}
			s.Sweep(s.clock.Now())
			schedule()
		})
	}
	schedule()

	go func() {
		<-ctx.Done()
		mu.Lock()
		defer mu.Unlock()
		timer.Stop()
	}()
}

// expireLocked evicts e when its eviction window elapsed and reports
// whether it did. An entry with a flight only loses its payload.
func (s *Store) expireLocked(e *entry, now time.Time) bool {
	if !e.hasPayload || !policy.For(e.key.Category).IsExpired(e.fetchedAt, now) {
		return false
	}

	s.stats.Evictions++
	s.recorder.RecordEviction(e.key.Category)
	if e.flight != nil {
		e.payload, e.hasPayload, e.fetchedAt = nil, false, time.Time{}
		return true
	}
	delete(s.entries, e.key)
	return true
}

// ============================================================================
// FETCH DISPATCH
// ============================================================================

// dispatchLocked attaches a new flight to e and starts the fetch. The
// fetch runs on a context detached from the caller's cancellation.
func (s *Store) dispatchLocked(ctx context.Context, e *entry, fetch FetchFunc) *flight {
	s.gen++
	f := &flight{done: make(chan struct{}), gen: s.gen}
	e.flight = f
	s.stats.Fetches++

	go s.run(context.WithoutCancel(ctx), e.key, f, fetch)
	return f
}

func (s *Store) run(ctx context.Context, key record.Key, f *flight, fetch FetchFunc) {
	start := s.clock.Now()
	payload, err := callFetch(ctx, fetch)
	now := s.clock.Now()

	if err != nil {
		err = errors.FetchFailure(fetchCode(err), "fetch rejected").
			WithOperation("cache.Resolve").
			WithResource(key.String()).
			WithSubjectID(key.Subject.String()).
			WithCause(err).
			Build()
	}

	s.mu.Lock()
	e := s.entries[key]
	if e != nil && e.flight == f {
		e.flight = nil
		if err == nil {
			e.payload, e.hasPayload, e.fetchedAt = payload, true, now
			e.forcedStale = e.staleGen > f.gen
		} else {
			s.stats.FetchFailures++
			if !e.hasPayload {
				delete(s.entries, key)
			}
		}
	}
	f.payload, f.err = payload, err
	s.mu.Unlock()
	close(f.done)

	s.recorder.RecordFetch(key.Category, err, now.Sub(start))
	if err != nil {
		s.logger.Debug("Fetch rejected",
			zap.String("key", key.String()),
			zap.Error(err),
		)
	}
}

func callFetch(ctx context.Context, fetch FetchFunc) (payload any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Internal(errors.CodeFetchPanicked, "fetch panicked").
				WithDetails(fmt.Sprint(r)).
				Build()
		}
	}()
	return fetch(ctx)
}

func fetchCode(err error) string {
	if code := errors.CodeOf(err); code != "" {
		return code
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return errors.CodeFetchTimeout
	}
	return errors.CodeFetchRejected
}

// ============================================================================
// STATE DERIVATION
// ============================================================================

func (s *Store) isStaleLocked(e *entry, now time.Time) bool {
	return e.forcedStale || policy.For(e.key.Category).IsStale(e.fetchedAt, now)
}

func (s *Store) snapshotLocked(e *entry, now time.Time) Entry {
	snap := Entry{Key: e.key, Payload: e.payload, FetchedAt: e.fetchedAt}
	switch {
	case e.flight != nil:
		snap.State = StateLoading
	case !e.hasPayload:
		snap.State = StateEmpty
	case s.isStaleLocked(e, now):
		snap.State = StateStale
	default:
		snap.State = StateFresh
	}
	return snap
}
