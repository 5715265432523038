// Package session drives the record screen of one user. It resolves the
// categories a view needs, arms the prefetcher for the next view,
// revalidates volatile data when the screen regains focus and forwards
// mutation notifications to the invalidator.
package session

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/rafaelminatto1/fisioflow-51658291-sub014/internal/application/invalidation"
	"github.com/rafaelminatto1/fisioflow-51658291-sub014/internal/application/prefetch"
	"github.com/rafaelminatto1/fisioflow-51658291-sub014/internal/clock"
	"github.com/rafaelminatto1/fisioflow-51658291-sub014/internal/domain/loadset"
	"github.com/rafaelminatto1/fisioflow-51658291-sub014/internal/domain/policy"
	"github.com/rafaelminatto1/fisioflow-51658291-sub014/internal/domain/record"
	"github.com/rafaelminatto1/fisioflow-51658291-sub014/internal/errors"
	"github.com/rafaelminatto1/fisioflow-51658291-sub014/internal/infrastructure/cache"
	"github.com/rafaelminatto1/fisioflow-51658291-sub014/internal/infrastructure/concurrency"
	"github.com/rafaelminatto1/fisioflow-51658291-sub014/internal/infrastructure/network"
)

// Recorder is every metrics hook a session feeds.
type Recorder interface {
	cache.Recorder
	concurrency.Recorder
	prefetch.Recorder
	invalidation.Recorder
}

// Config tunes a session.
type Config struct {
	QuietPeriod   time.Duration
	SweepInterval time.Duration
	Workers       int
	QueueSize     int
}

// DefaultConfig returns the settings used when none are configured.
func DefaultConfig() Config {
	return Config{
		QuietPeriod:   prefetch.DefaultQuietPeriod,
		SweepInterval: time.Minute,
		Workers:       2,
		QueueSize:     32,
	}
}

// Deps are the collaborators of a session. Only Fetches is required.
type Deps struct {
	Fetches   prefetch.FetchSource
	Monitor   network.Monitor
	Namespace *record.Namespace
	Clock     clock.Clock
	Recorder  Recorder
	Logger    *zap.Logger
}

// ViewData is the result of activating a view. A category that failed to
// load has an entry in Errors and none in Payloads; the others are still
// usable.
type ViewData struct {
	Subject    record.SubjectID
	View       record.View
	Strategy   record.LoadStrategy
	Categories record.CategorySet
	Payloads   map[record.Category]any
	Errors     map[record.Category]error
}

// Complete reports whether every category loaded.
func (d *ViewData) Complete() bool {
	return len(d.Errors) == 0
}

// Session owns the cache store, prefetcher and background pool of one
// user. It is safe for concurrent use.
type Session struct {
	mu       sync.Mutex
	subject  record.SubjectID
	view     record.View
	loaded   record.CategorySet
	sequence uint64

	store       *cache.Store
	scheduler   *prefetch.Scheduler
	invalidator *invalidation.Invalidator
	pool        *concurrency.WorkerPool
	fetches     prefetch.FetchSource
	namespace   *record.Namespace
	monitor     network.Monitor

	stopCleanup context.CancelFunc
	closeOnce   sync.Once

	logger *zap.Logger
	tracer trace.Tracer
}

// New builds a session and starts its periodic sweep. Close releases it.
func New(config Config, deps Deps) *Session {
	defaults := DefaultConfig()
	if config.QuietPeriod <= 0 {
		config.QuietPeriod = defaults.QuietPeriod
	}
	if config.SweepInterval <= 0 {
		config.SweepInterval = defaults.SweepInterval
	}
	if deps.Clock == nil {
		deps.Clock = clock.Real()
	}
	if deps.Monitor == nil {
		deps.Monitor = network.AlwaysAdequate{}
	}
	if deps.Namespace == nil {
		deps.Namespace = record.NewNamespace(nil)
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}

	var (
		storeRecorder    cache.Recorder
		poolRecorder     concurrency.Recorder
		prefetchRecorder prefetch.Recorder
		invRecorder      invalidation.Recorder
	)
	if deps.Recorder != nil {
		storeRecorder = deps.Recorder
		poolRecorder = deps.Recorder
		prefetchRecorder = deps.Recorder
		invRecorder = deps.Recorder
	}

	store := cache.NewStore(deps.Clock, storeRecorder, deps.Logger.Named("cache"))
	pool := concurrency.NewWorkerPool(context.Background(), concurrency.PoolConfig{
		Name:      "prefetch",
		Workers:   config.Workers,
		QueueSize: config.QueueSize,
	}, poolRecorder, deps.Logger)

	scheduler := prefetch.NewScheduler(prefetch.Deps{
		Store:     store,
		Pool:      pool,
		Fetches:   deps.Fetches,
		Monitor:   deps.Monitor,
		Namespace: deps.Namespace,
		Clock:     deps.Clock,
		Recorder:  prefetchRecorder,
		Logger:    deps.Logger.Named("prefetch"),
	}, config.QuietPeriod)

	cleanupCtx, stop := context.WithCancel(context.Background())
	store.StartCleanup(cleanupCtx, config.SweepInterval)

	return &Session{
		store:       store,
		scheduler:   scheduler,
		invalidator: invalidation.NewInvalidator(store, invRecorder, deps.Logger.Named("invalidation")),
		pool:        pool,
		fetches:     deps.Fetches,
		namespace:   deps.Namespace,
		monitor:     deps.Monitor,
		stopCleanup: stop,
		logger:      deps.Logger,
		tracer:      otel.Tracer("sessiond.session"),
	}
}

// SetSubject switches the record being viewed. Switching away from a
// subject forgets which of its categories were prefetched and disarms a
// pending prefetch.
func (s *Session) SetSubject(subject record.SubjectID) error {
	if subject.IsEmpty() {
		return errors.Validation(errors.CodeNoSubject, "Subject is required").
			WithOperation("SetSubject").
			Build()
	}

	s.mu.Lock()
	previous := s.subject
	if previous == subject {
		s.mu.Unlock()
		return nil
	}
	s.subject = subject
	s.view = 0
	s.loaded = 0
	s.sequence++
	s.mu.Unlock()

	if !previous.IsEmpty() {
		s.scheduler.Reset(previous)
	}
	s.logger.Debug("Subject selected",
		zap.String("subject_id", subject.String()),
		zap.String("previous_subject_id", previous.String()),
	)
	return nil
}

// Subject returns the current subject.
func (s *Session) Subject() record.SubjectID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.subject
}

// ActiveView returns the most recently activated view, or zero.
func (s *Session) ActiveView() record.View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view
}

// OnViewActivated loads every category view needs under strategy, all of
// them concurrently. A failing category never cancels the others. A
// pending prefetch of the previous view is disarmed at once. Once the
// loads settle the prefetcher is armed for the successor view, unless
// another activation superseded this one or ctx ended meanwhile.
func (s *Session) OnViewActivated(ctx context.Context, view record.View, strategy record.LoadStrategy) (*ViewData, error) {
	if !view.Valid() {
		return nil, errors.Validation(errors.CodeInvalidInput, "Unknown view").
			WithOperation("OnViewActivated").
			WithDetails(view.String()).
			Build()
	}
	if !strategy.Valid() {
		return nil, errors.Validation(errors.CodeInvalidInput, "Unknown load strategy").
			WithOperation("OnViewActivated").
			WithDetails(strategy.String()).
			Build()
	}

	s.mu.Lock()
	subject := s.subject
	if subject.IsEmpty() {
		s.mu.Unlock()
		return nil, errors.Validation(errors.CodeNoSubject, "No subject selected").
			WithOperation("OnViewActivated").
			Build()
	}
	categories := loadset.CategoriesFor(view, strategy)
	s.view = view
	s.loaded = categories
	s.sequence++
	sequence := s.sequence
	s.scheduler.Cancel()
	s.mu.Unlock()

	ctx, span := s.tracer.Start(ctx, "Session.OnViewActivated",
		trace.WithAttributes(
			attribute.String("subject.id", subject.String()),
			attribute.String("view", view.String()),
			attribute.String("strategy", strategy.String()),
			attribute.Int("categories", categories.Len()),
		),
	)
	defer span.End()

	start := time.Now()
	data := &ViewData{
		Subject:    subject,
		View:       view,
		Strategy:   strategy,
		Categories: categories,
		Payloads:   make(map[record.Category]any, categories.Len()),
		Errors:     make(map[record.Category]error),
	}

	// A plain Group never cancels siblings; Wait reports the first failure
	// while every category's own outcome lands in data.
	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	for _, category := range categories.Slice() {
		g.Go(func() error {
			key := s.namespace.ViewKey(subject, category)
			payload, err := s.store.Resolve(ctx, key, s.fetches.FetchFunc(key))

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				data.Errors[category] = err
				return err
			}
			data.Payloads[category] = payload
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "some categories failed to load")
		span.SetAttributes(attribute.Int("failed_categories", len(data.Errors)))
		for category, err := range data.Errors {
			s.logger.Warn("Category failed to load",
				zap.String("subject_id", subject.String()),
				zap.String("view", view.String()),
				zap.String("category", category.String()),
				zap.Error(err),
			)
		}
	}

	s.mu.Lock()
	if s.sequence == sequence && ctx.Err() == nil {
		s.scheduler.Activate(subject, view)
	}
	s.mu.Unlock()

	s.logger.Debug("View activated",
		zap.String("subject_id", subject.String()),
		zap.String("view", view.String()),
		zap.String("strategy", strategy.String()),
		zap.Int("loaded", len(data.Payloads)),
		zap.Int("failed", len(data.Errors)),
		zap.Duration("duration", time.Since(start)),
	)
	return data, nil
}

// Resolve loads a single category of the current subject.
func (s *Session) Resolve(ctx context.Context, category record.Category) (any, error) {
	subject, err := s.requireSubject("Resolve")
	if err != nil {
		return nil, err
	}
	if !category.Valid() {
		return nil, errors.Validation(errors.CodeUnknownCategory, "Unknown category").
			WithOperation("Resolve").
			WithDetails(category.String()).
			Build()
	}

	key := s.namespace.ViewKey(subject, category)
	return s.store.Resolve(ctx, key, s.fetches.FetchFunc(key))
}

// Entry returns the current snapshot of a category of the current subject
// without triggering a fetch.
func (s *Session) Entry(category record.Category) (cache.Entry, error) {
	subject, err := s.requireSubject("Entry")
	if err != nil {
		return cache.Entry{}, err
	}
	if !category.Valid() {
		return cache.Entry{}, errors.Validation(errors.CodeUnknownCategory, "Unknown category").
			WithOperation("Entry").
			WithDetails(category.String()).
			Build()
	}
	return s.store.Get(s.namespace.ViewKey(subject, category)), nil
}

// OnRefocus is called when the screen regains focus. Stale entries of the
// active view whose policy asks for it are revalidated in the background
// while their current payload stays visible. It returns the categories
// that were revalidated.
func (s *Session) OnRefocus(ctx context.Context) (record.CategorySet, error) {
	s.mu.Lock()
	subject, view, loaded := s.subject, s.view, s.loaded
	s.mu.Unlock()

	if subject.IsEmpty() || !view.Valid() {
		return 0, nil
	}

	var revalidated record.CategorySet
	for _, category := range loaded.Slice() {
		if !policy.For(category).RevalidateOnRefocus {
			continue
		}
		key := s.namespace.ViewKey(subject, category)
		if s.store.Get(key).State != cache.StateStale {
			continue
		}
		// A stale entry returns at once and refetches behind the caller.
		if _, err := s.store.Resolve(ctx, key, s.fetches.FetchFunc(key)); err != nil {
			s.logger.Debug("Refocus revalidation failed",
				zap.String("subject_id", subject.String()),
				zap.String("category", category.String()),
				zap.Error(err),
			)
			continue
		}
		revalidated = revalidated.With(category)
	}

	if revalidated.Len() > 0 {
		s.logger.Debug("Revalidating on refocus",
			zap.String("subject_id", subject.String()),
			zap.String("view", view.String()),
			zap.Stringer("categories", revalidated),
		)
	}
	return revalidated, nil
}

// Invalidate forwards a mutation of subject to the invalidator. Any
// subject may be named, not only the current one.
func (s *Session) Invalidate(ctx context.Context, subject record.SubjectID, target invalidation.Target) (int, error) {
	return s.invalidator.Invalidate(ctx, subject, target)
}

// Prefetched returns the categories already prefetched for subject.
func (s *Session) Prefetched(subject record.SubjectID) record.CategorySet {
	return s.scheduler.Prefetched(subject)
}

// SetQuietPeriod changes the prefetch delay for later activations.
func (s *Session) SetQuietPeriod(d time.Duration) {
	s.scheduler.SetQuietPeriod(d)
}

// Stats returns the cache counters of the session.
func (s *Session) Stats() cache.Stats {
	return s.store.Stats()
}

// Close disarms the prefetcher, stops the sweep loop and drains the
// background pool. Closing twice is a no-op.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.scheduler.Cancel()
		s.stopCleanup()
		s.pool.Stop()
		s.logger.Debug("Session closed", zap.String("subject_id", s.Subject().String()))
	})
}

func (s *Session) requireSubject(operation string) (record.SubjectID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.subject.IsEmpty() {
		return record.SubjectID{}, errors.Validation(errors.CodeNoSubject, "No subject selected").
			WithOperation(operation).
			Build()
	}
	return s.subject, nil
}
