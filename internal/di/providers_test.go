package di

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rafaelminatto1/fisioflow-51658291-sub014/internal/config"
	"github.com/rafaelminatto1/fisioflow-51658291-sub014/internal/domain/record"
	"github.com/rafaelminatto1/fisioflow-51658291-sub014/internal/infrastructure/fetch"
)

func TestInitializeContainer_Simulated(t *testing.T) {
	cfg := config.Defaults(config.Development)
	cfg.Fetch.Simulated.Latency = 0

	container, cleanup, err := InitializeContainer(context.Background(), cfg)
	require.NoError(t, err)
	defer cleanup()

	assert.Same(t, cfg, container.Config)
	assert.NotNil(t, container.Logger)
	assert.NotNil(t, container.Metrics)
	assert.NotNil(t, container.Tracing)
	assert.Zero(t, container.Sessions.Len())

	for _, c := range record.AllCategories() {
		_, err := container.Fetches.Lookup(c)
		assert.NoError(t, err, c.String())
	}

	id, s, err := container.Sessions.Create(record.MustSubjectID("p1"))
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	payload, err := s.Resolve(context.Background(), record.Goals)
	require.NoError(t, err)
	sim, ok := payload.(fetch.SimulatedPayload)
	require.True(t, ok)
	assert.Equal(t, "p1/goals", sim.Key)
}

func TestProvideBaseFetcher(t *testing.T) {
	cfg := config.Defaults(config.Development)

	f, err := ProvideBaseFetcher(cfg, zap.NewNop())
	require.NoError(t, err)
	assert.IsType(t, &fetch.SimulatedFetcher{}, f)

	cfg.Supabase.URL = "https://example.supabase.co"
	cfg.Supabase.Key = "anon-key"
	f, err = ProvideBaseFetcher(cfg, zap.NewNop())
	require.NoError(t, err)
	assert.IsType(t, &fetch.SupabaseFetcher{}, f)
}

func TestProvideNamespace_AppliesOverrides(t *testing.T) {
	cfg := config.Defaults(config.Development)
	cfg.Session.Qualifiers = map[string]string{"soap-records": "limit=25"}

	ns := ProvideNamespace(cfg)
	p1 := record.MustSubjectID("p1")

	assert.Equal(t, "limit=25", ns.ViewKey(p1, record.SoapRecords).Qualifier)
	assert.Equal(t, "limit=all", ns.ViewKey(p1, record.Measurements).Qualifier)
}
