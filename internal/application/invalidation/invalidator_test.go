package invalidation

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rafaelminatto1/fisioflow-51658291-sub014/internal/clock"
	"github.com/rafaelminatto1/fisioflow-51658291-sub014/internal/domain/record"
	"github.com/rafaelminatto1/fisioflow-51658291-sub014/internal/errors"
	"github.com/rafaelminatto1/fisioflow-51658291-sub014/internal/infrastructure/cache"
)

type countingRecorder struct {
	calls []record.Category
}

func (r *countingRecorder) RecordInvalidation(c record.Category) {
	r.calls = append(r.calls, c)
}

func seed(t *testing.T, store *cache.Store, keys ...record.Key) {
	t.Helper()
	for _, key := range keys {
		_, err := store.Resolve(context.Background(), key, func(context.Context) (any, error) {
			return key.String(), nil
		})
		require.NoError(t, err)
	}
}

func TestParseTarget(t *testing.T) {
	tests := []struct {
		input   string
		want    Target
		wantErr bool
	}{
		{"all", All, false},
		{" ALL ", All, false},
		{"goals", Only(record.Goals), false},
		{"today-measurements", Only(record.TodayMeasurements), false},
		{"billing", Target{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseTarget(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestInvalidator_SingleCategory(t *testing.T) {
	clk := clock.NewFake(time.Unix(0, 0))
	store := cache.NewStore(clk, nil, nil)
	p1, p2 := record.MustSubjectID("p1"), record.MustSubjectID("p2")
	goals := record.KeyFor(p1, record.Goals)
	profile := record.KeyFor(p1, record.Profile)
	otherGoals := record.KeyFor(p2, record.Goals)
	seed(t, store, goals, profile, otherGoals)

	recorder := &countingRecorder{}
	inv := NewInvalidator(store, recorder, nil)

	n, err := inv.Invalidate(context.Background(), p1, Only(record.Goals))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	assert.Equal(t, cache.StateStale, store.Get(goals).State)
	assert.Equal(t, "p1/goals", store.Get(goals).Payload)
	assert.Equal(t, cache.StateFresh, store.Get(profile).State)
	assert.Equal(t, cache.StateFresh, store.Get(otherGoals).State)
	assert.Equal(t, []record.Category{record.Goals}, recorder.calls)
}

func TestInvalidator_AllCategories(t *testing.T) {
	clk := clock.NewFake(time.Unix(0, 0))
	store := cache.NewStore(clk, nil, nil)
	p1 := record.MustSubjectID("p1")
	keys := []record.Key{
		record.KeyFor(p1, record.Goals),
		record.KeyFor(p1, record.Profile),
		record.KeyFor(p1, record.SoapRecords, "limit=10"),
	}
	seed(t, store, keys...)

	inv := NewInvalidator(store, nil, nil)
	n, err := inv.Invalidate(context.Background(), p1, All)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	for _, key := range keys {
		assert.Equal(t, cache.StateStale, store.Get(key).State, key.String())
	}
}

func TestInvalidator_RejectsBadInput(t *testing.T) {
	store := cache.NewStore(clock.NewFake(time.Unix(0, 0)), nil, nil)
	inv := NewInvalidator(store, nil, nil)

	_, err := inv.Invalidate(context.Background(), record.SubjectID{}, All)
	assert.True(t, errors.IsValidation(err))
	assert.Equal(t, errors.CodeNoSubject, errors.CodeOf(err))

	_, err = inv.Invalidate(context.Background(), record.MustSubjectID("p1"), Only(record.Category(0)))
	assert.Equal(t, errors.CodeUnknownCategory, errors.CodeOf(err))
}

func TestInvalidator_UnknownSubjectIsNoop(t *testing.T) {
	store := cache.NewStore(clock.NewFake(time.Unix(0, 0)), nil, nil)
	inv := NewInvalidator(store, nil, nil)

	n, err := inv.Invalidate(context.Background(), record.MustSubjectID("nobody"), All)
	require.NoError(t, err)
	assert.Zero(t, n)
}
