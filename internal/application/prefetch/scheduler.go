// Package prefetch anticipates the next view of the record screen. After a
// view change it waits a quiet period, checks the network and queues
// low-priority loads for the successor view's categories, at most once per
// subject and category for the session.
package prefetch

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/rafaelminatto1/fisioflow-51658291-sub014/internal/clock"
	"github.com/rafaelminatto1/fisioflow-51658291-sub014/internal/domain/loadset"
	"github.com/rafaelminatto1/fisioflow-51658291-sub014/internal/domain/record"
	"github.com/rafaelminatto1/fisioflow-51658291-sub014/internal/errors"
	"github.com/rafaelminatto1/fisioflow-51658291-sub014/internal/infrastructure/cache"
	"github.com/rafaelminatto1/fisioflow-51658291-sub014/internal/infrastructure/concurrency"
	"github.com/rafaelminatto1/fisioflow-51658291-sub014/internal/infrastructure/network"
)

// DefaultQuietPeriod is how long the user must stay on a view before its
// successor is prefetched.
const DefaultQuietPeriod = 2 * time.Second

// State of the scheduler.
type State int

const (
	StateIdle State = iota
	StateArmed
	StateExecuting
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateArmed:
		return "armed"
	case StateExecuting:
		return "executing"
	default:
		return "unknown"
	}
}

// Outcomes reported per category (or once per run for run-wide skips).
const (
	OutcomeDispatched        = "dispatched"
	OutcomeNetworkDegraded   = "network_degraded"
	OutcomeNoSuccessor       = "no_successor"
	OutcomeAlreadyPrefetched = "already_prefetched"
	OutcomeAlreadyAvailable  = "already_available"
	OutcomeQueueFull         = "queue_full"
	OutcomePoolUnavailable   = "pool_unavailable"
)

// Store is the part of the cache store the scheduler uses.
type Store interface {
	Get(key record.Key) cache.Entry
	Resolve(ctx context.Context, key record.Key, fetch cache.FetchFunc) (any, error)
}

// Dispatcher runs prefetch tasks in the background.
type Dispatcher interface {
	Submit(task concurrency.Task) error
}

// FetchSource binds keys to fetch functions.
type FetchSource interface {
	FetchFunc(key record.Key) cache.FetchFunc
}

// Recorder counts prefetch outcomes. Run-wide outcomes carry the zero
// category.
type Recorder interface {
	RecordPrefetch(category record.Category, outcome string)
}

// Task is one category load issued for an anticipated view.
type Task struct {
	TargetView record.View
	Category   record.Category
	Key        record.Key
	ArmedAt    time.Time
}

// Deps are the scheduler's collaborators. Monitor, Namespace, Clock,
// Recorder and Logger have defaults.
type Deps struct {
	Store     Store
	Pool      Dispatcher
	Fetches   FetchSource
	Monitor   network.Monitor
	Namespace *record.Namespace
	Clock     clock.Clock
	Recorder  Recorder
	Logger    *zap.Logger
}

type nopRecorder struct{}

func (nopRecorder) RecordPrefetch(record.Category, string) {}

// Scheduler is the Idle → Armed → Executing → Idle state machine of one
// session. At most one quiet-period timer is pending at any time.
type Scheduler struct {
	mu      sync.Mutex
	state   State
	timer   clock.Timer
	gen     uint64
	subject record.SubjectID
	view    record.View
	armedAt time.Time
	quiet   time.Duration
	marked  map[record.SubjectID]record.CategorySet

	deps Deps
}

// NewScheduler creates an idle scheduler. A non-positive quiet period
// means DefaultQuietPeriod.
func NewScheduler(deps Deps, quietPeriod time.Duration) *Scheduler {
	if deps.Monitor == nil {
		deps.Monitor = network.AlwaysAdequate{}
	}
	if deps.Namespace == nil {
		deps.Namespace = record.NewNamespace(nil)
	}
	if deps.Clock == nil {
		deps.Clock = clock.Real()
	}
	if deps.Recorder == nil {
		deps.Recorder = nopRecorder{}
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if quietPeriod <= 0 {
		quietPeriod = DefaultQuietPeriod
	}

	return &Scheduler{
		quiet:  quietPeriod,
		marked: make(map[record.SubjectID]record.CategorySet),
		deps:   deps,
	}
}

// Activate records that view is now active for subject. Any pending timer
// is cancelled and a new one armed.
func (s *Scheduler) Activate(subject record.SubjectID, view record.View) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopTimerLocked()
	s.gen++
	gen := s.gen

	s.state = StateArmed
	s.subject = subject
	s.view = view
	s.armedAt = s.deps.Clock.Now()
	s.timer = s.deps.Clock.AfterFunc(s.quiet, func() { s.fire(gen) })

	s.deps.Logger.Debug("Prefetch armed",
		zap.String("subject_id", subject.String()),
		zap.String("view", view.String()),
		zap.Duration("quiet_period", s.quiet),
	)
}

// Cancel disarms a pending timer without touching the prefetch marks.
func (s *Scheduler) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopTimerLocked()
	s.gen++
	if s.state == StateArmed {
		s.state = StateIdle
	}
}

// Reset disarms any pending timer and forgets which categories were
// prefetched for subject.
func (s *Scheduler) Reset(subject record.SubjectID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.subject == subject {
		s.stopTimerLocked()
		s.gen++
		if s.state == StateArmed {
			s.state = StateIdle
		}
	}
	delete(s.marked, subject)
}

// SetQuietPeriod changes the delay used by later activations.
func (s *Scheduler) SetQuietPeriod(d time.Duration) {
	if d <= 0 {
		return
	}
	s.mu.Lock()
	s.quiet = d
	s.mu.Unlock()
}

// State returns the current state.
func (s *Scheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Prefetched returns the categories already prefetched for subject.
func (s *Scheduler) Prefetched(subject record.SubjectID) record.CategorySet {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.marked[subject]
}

func (s *Scheduler) stopTimerLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

// fire runs when the quiet period of activation gen elapses. A timer that
// was superseded after it started firing is ignored.
func (s *Scheduler) fire(gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.gen || s.state != StateArmed {
		return
	}
	s.timer = nil
	s.state = StateExecuting
	s.executeLocked()
	s.state = StateIdle
}

func (s *Scheduler) executeLocked() {
	logger := s.deps.Logger.With(
		zap.String("subject_id", s.subject.String()),
		zap.String("view", s.view.String()),
	)

	if s.deps.Monitor.IsDegraded() {
		s.skip(logger, 0, OutcomeNetworkDegraded,
			errors.PrefetchSkipped(errors.CodeNetworkDegraded, "network degraded"))
		return
	}

	next, ok := s.view.Successor()
	if !ok {
		s.skip(logger, 0, OutcomeNoSuccessor,
			errors.PrefetchSkipped(errors.CodeNoSuccessorView, "view has no successor"))
		return
	}

	marked := s.marked[s.subject]
	for _, category := range loadset.CategoriesFor(next, record.ViewScoped).Slice() {
		task := Task{
			TargetView: next,
			Category:   category,
			Key:        s.deps.Namespace.ViewKey(s.subject, category),
			ArmedAt:    s.armedAt,
		}

		if marked.Has(category) {
			s.skip(logger, category, OutcomeAlreadyPrefetched,
				errors.PrefetchSkipped(errors.CodeAlreadyFetched, "category already prefetched"))
			continue
		}
		if state := s.deps.Store.Get(task.Key).State; state == cache.StateFresh || state == cache.StateLoading {
			s.skip(logger, category, OutcomeAlreadyAvailable,
				errors.PrefetchSkipped(errors.CodeAlreadyAvailable, "entry already "+state.String()))
			continue
		}

		if err := s.deps.Pool.Submit(s.taskFor(task, logger)); err != nil {
			outcome := OutcomePoolUnavailable
			if errors.CodeOf(err) == errors.CodeQueueFull {
				outcome = OutcomeQueueFull
			}
			s.deps.Recorder.RecordPrefetch(category, outcome)
			logger.Debug("Prefetch not dispatched",
				zap.String("category", category.String()),
				zap.Error(err),
			)
			continue
		}

		marked = marked.With(category)
		s.deps.Recorder.RecordPrefetch(category, OutcomeDispatched)
	}
	s.marked[s.subject] = marked

	logger.Debug("Prefetch dispatched",
		zap.String("target_view", next.String()),
		zap.Stringer("prefetched", marked),
	)
}

// taskFor wraps a prefetch into a fire-and-forget pool task. Failures are
// logged and dropped.
func (s *Scheduler) taskFor(t Task, logger *zap.Logger) concurrency.Task {
	store, fetches := s.deps.Store, s.deps.Fetches
	return concurrency.Task{
		ID: t.Key.String(),
		Execute: func(ctx context.Context) error {
			_, err := store.Resolve(ctx, t.Key, fetches.FetchFunc(t.Key))
			return err
		},
		Callback: func(id string, err error) {
			if err != nil {
				logger.Debug("Prefetch failed",
					zap.String("key", id),
					zap.String("target_view", t.TargetView.String()),
					zap.Error(err),
				)
			}
		},
	}
}

func (s *Scheduler) skip(logger *zap.Logger, category record.Category, outcome string, b *errors.ErrorBuilder) {
	s.deps.Recorder.RecordPrefetch(category, outcome)

	fields := []zap.Field{zap.Error(b.WithOperation("prefetch").Build())}
	if category.Valid() {
		fields = append(fields, zap.String("category", category.String()))
	}
	logger.Debug("Prefetch skipped", fields...)
}
