// Package invalidation is the entry point for writers. After a mutation a
// writer names the subject and the category it changed (or all of them);
// matching entries are flipped stale so the next read revalidates while
// still serving the old payload.
package invalidation

import (
	"context"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/rafaelminatto1/fisioflow-51658291-sub014/internal/domain/record"
	"github.com/rafaelminatto1/fisioflow-51658291-sub014/internal/errors"
)

// Target selects what a mutation touched: one category or every category
// of the subject.
type Target struct {
	Category record.Category
	All      bool
}

// All targets every category of a subject.
var All = Target{All: true}

// Only targets a single category.
func Only(category record.Category) Target {
	return Target{Category: category}
}

// ParseTarget accepts a category name or "all".
func ParseTarget(name string) (Target, error) {
	if strings.EqualFold(strings.TrimSpace(name), "all") {
		return All, nil
	}
	category, err := record.ParseCategory(name)
	if err != nil {
		return Target{}, err
	}
	return Only(category), nil
}

func (t Target) String() string {
	if t.All {
		return "all"
	}
	return t.Category.String()
}

// Store is the invalidation surface of the cache store.
type Store interface {
	InvalidateCategory(subject record.SubjectID, category record.Category) int
	InvalidateSubject(subject record.SubjectID) int
}

// Recorder counts invalidation requests per category. Whole-subject
// requests carry the zero category.
type Recorder interface {
	RecordInvalidation(category record.Category)
}

type nopRecorder struct{}

func (nopRecorder) RecordInvalidation(record.Category) {}

// Invalidator forwards mutation notifications to the store.
type Invalidator struct {
	store    Store
	recorder Recorder
	logger   *zap.Logger
	tracer   trace.Tracer
}

// NewInvalidator creates an invalidator over store.
func NewInvalidator(store Store, recorder Recorder, logger *zap.Logger) *Invalidator {
	if recorder == nil {
		recorder = nopRecorder{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Invalidator{
		store:    store,
		recorder: recorder,
		logger:   logger,
		tracer:   otel.Tracer("sessiond.invalidation"),
	}
}

// Invalidate marks the targeted entries of subject stale and returns how
// many entries were affected. Entries with a fetch in flight are covered
// too: that fetch's result will not count as fresh.
func (i *Invalidator) Invalidate(ctx context.Context, subject record.SubjectID, target Target) (int, error) {
	if subject.IsEmpty() {
		return 0, errors.Validation(errors.CodeNoSubject, "Subject is required").
			WithOperation("Invalidate").
			Build()
	}
	if !target.All && !target.Category.Valid() {
		return 0, errors.Validation(errors.CodeUnknownCategory, "Unknown category").
			WithOperation("Invalidate").
			WithSubjectID(subject.String()).
			WithDetails(target.Category.String()).
			Build()
	}

	_, span := i.tracer.Start(ctx, "Invalidator.Invalidate",
		trace.WithAttributes(
			attribute.String("subject.id", subject.String()),
			attribute.String("invalidation.target", target.String()),
		),
	)
	defer span.End()

	var affected int
	if target.All {
		affected = i.store.InvalidateSubject(subject)
	} else {
		affected = i.store.InvalidateCategory(subject, target.Category)
	}
	i.recorder.RecordInvalidation(target.Category)
	span.SetAttributes(attribute.Int("invalidation.affected", affected))

	i.logger.Debug("Entries invalidated",
		zap.String("subject_id", subject.String()),
		zap.String("target", target.String()),
		zap.Int("affected", affected),
	)
	return affected, nil
}
