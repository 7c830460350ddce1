package pipeline_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/couchcryptid/border-data-service/internal/domain"
	"github.com/couchcryptid/border-data-service/internal/observability"
	"github.com/couchcryptid/border-data-service/internal/pipeline"
	"github.com/google/go-cmp/cmp"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- mocks ---

type mockFetcher struct {
	rows    []domain.Row
	errs    []error // returned in order for the first len(errs) calls
	calls   atomic.Int32
	release chan struct{} // when set, FetchRows blocks until closed
	started chan struct{} // closed on the first call
	once    sync.Once
}

func (m *mockFetcher) FetchRows(ctx context.Context) ([]domain.Row, error) {
	n := int(m.calls.Add(1))
	if m.started != nil {
		m.once.Do(func() { close(m.started) })
	}
	if m.release != nil {
		select {
		case <-m.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if n <= len(m.errs) && m.errs[n-1] != nil {
		return nil, m.errs[n-1]
	}
	return m.rows, nil
}

type mockPublisher struct {
	mu        sync.Mutex
	published []*domain.AggregateResult
	err       error
}

func (m *mockPublisher) PublishAggregate(_ context.Context, result *domain.AggregateResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.published = append(m.published, result)
	return m.err
}

type mockGeocoder struct {
	calls atomic.Int32
}

func (m *mockGeocoder) ForwardGeocode(_ context.Context, _, _ string) (domain.GeocodingResult, error) {
	m.calls.Add(1)
	return domain.GeocodingResult{Lat: 31.88, Lon: -112.81, FormattedAddress: "Lukeville, Arizona"}, nil
}

func newTestMetrics() *observability.Metrics {
	// Use a fresh registry to avoid "already registered" panics in tests.
	return observability.NewMetricsForTesting()
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func sampleRows() []domain.Row {
	return []domain.Row{
		{PortName: "Calexico", State: "CA", Border: "US-Mexico Border", Date: "2021-03-01", Value: "100", Latitude: "32.6", Longitude: "-115.5"},
		{PortName: "Calexico", State: "CA", Border: "US-Mexico Border", Date: "2021-03-02", Value: "50"},
		{PortName: "Nogales", State: "AZ", Border: "US-Mexico Border", Date: "2022-01-01", Value: "0"},
		{PortName: "Lukeville", State: "AZ", Border: "US-Mexico Border", Date: "2023-01-01", Value: "7"},
	}
}

// --- tests ---

func TestAggregator_Load_FetchesOnce(t *testing.T) {
	fetcher := &mockFetcher{rows: sampleRows()}
	metrics := newTestMetrics()
	agg := pipeline.New(fetcher, nil, nil, discardLogger(), metrics)

	assert.Equal(t, pipeline.StateEmpty, agg.State())
	require.Error(t, agg.CheckReadiness(context.Background()))

	first, err := agg.Load(context.Background())
	require.NoError(t, err)
	second, err := agg.Load(context.Background())
	require.NoError(t, err)

	assert.Same(t, first, second, "later calls must return the cached result")
	assert.Equal(t, int32(1), fetcher.calls.Load())
	assert.Equal(t, pipeline.StateReady, agg.State())
	require.NoError(t, agg.CheckReadiness(context.Background()))

	cached, ok := agg.Cached()
	require.True(t, ok)
	assert.Same(t, first, cached)

	assert.NotEmpty(t, first.LoadID)
	require.Len(t, first.Ports, 2)
	assert.Equal(t, "Calexico", first.Ports[0].PortName)
	assert.Equal(t, 150.0, first.Ports[0].TotalValue)
	assert.Equal(t, "Lukeville", first.Ports[1].PortName)

	assert.InDelta(t, 1, testutil.ToFloat64(metrics.CacheLookups.WithLabelValues("miss")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.CacheLookups.WithLabelValues("hit")), 0)
	assert.InDelta(t, 4, testutil.ToFloat64(metrics.RowsProcessed), 0)
	assert.InDelta(t, 2, testutil.ToFloat64(metrics.PortsAggregated), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.AggregateReady), 0)
}

func TestAggregator_Load_FailureThenRetry(t *testing.T) {
	fetchErr := errors.New("connection refused")
	fetcher := &mockFetcher{rows: sampleRows(), errs: []error{fetchErr}}
	agg := pipeline.New(fetcher, nil, nil, discardLogger(), newTestMetrics())

	result, err := agg.Load(context.Background())
	require.Error(t, err)
	assert.Nil(t, result)
	assert.ErrorIs(t, err, domain.ErrDataUnavailable)
	assert.ErrorIs(t, err, fetchErr)
	assert.Equal(t, pipeline.StateFailed, agg.State())

	_, ok := agg.Cached()
	assert.False(t, ok, "a failed fetch must not populate the cache")

	readyErr := agg.CheckReadiness(context.Background())
	require.Error(t, readyErr)
	assert.Contains(t, readyErr.Error(), "connection refused")

	result, err = agg.Load(context.Background())
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, int32(2), fetcher.calls.Load())
	assert.Equal(t, pipeline.StateReady, agg.State())
}

func TestAggregator_Load_KeepsWrappedSentinel(t *testing.T) {
	wrapped := errors.Join(domain.ErrDataUnavailable, errors.New("status 500"))
	fetcher := &mockFetcher{errs: []error{wrapped}}
	agg := pipeline.New(fetcher, nil, nil, discardLogger(), newTestMetrics())

	_, err := agg.Load(context.Background())
	require.Error(t, err)
	assert.Equal(t, wrapped, err)
}

func TestAggregator_Load_ConcurrentCallersShareFetch(t *testing.T) {
	fetcher := &mockFetcher{
		rows:    sampleRows(),
		release: make(chan struct{}),
		started: make(chan struct{}),
	}
	agg := pipeline.New(fetcher, nil, nil, discardLogger(), newTestMetrics())

	const callers = 16
	results := make([]*domain.AggregateResult, callers)
	errs := make([]error, callers)

	var wg sync.WaitGroup
	for i := range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i], errs[i] = agg.Load(context.Background())
		}()
	}

	<-fetcher.started
	assert.Equal(t, pipeline.StateLoading, agg.State())
	close(fetcher.release)
	wg.Wait()

	assert.Equal(t, int32(1), fetcher.calls.Load())
	for i := range callers {
		require.NoError(t, errs[i])
		assert.Same(t, results[0], results[i])
	}
}

func TestAggregator_Load_CallerCancellationDoesNotAbortFetch(t *testing.T) {
	fetcher := &mockFetcher{
		rows:    sampleRows(),
		release: make(chan struct{}),
		started: make(chan struct{}),
	}
	agg := pipeline.New(fetcher, nil, nil, discardLogger(), newTestMetrics())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := agg.Load(ctx)
		done <- err
	}()

	<-fetcher.started
	cancel()

	select {
	case err := <-done:
		require.Error(t, err)
		assert.ErrorIs(t, err, context.Canceled)
		assert.NotErrorIs(t, err, domain.ErrDataUnavailable)
	case <-time.After(2 * time.Second):
		t.Fatal("cancelled caller did not return")
	}

	close(fetcher.release)
	result, err := agg.Load(context.Background())
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, int32(1), fetcher.calls.Load())
}

func TestAggregator_Load_Publishes(t *testing.T) {
	pub := &mockPublisher{}
	agg := pipeline.New(&mockFetcher{rows: sampleRows()}, nil, pub, discardLogger(), newTestMetrics())

	result, err := agg.Load(context.Background())
	require.NoError(t, err)
	_, err = agg.Load(context.Background())
	require.NoError(t, err)

	require.Len(t, pub.published, 1, "publish once per built aggregate")
	assert.Same(t, result, pub.published[0])
}

func TestAggregator_Load_PublishErrorIsNotFatal(t *testing.T) {
	pub := &mockPublisher{err: errors.New("broker down")}
	metrics := newTestMetrics()
	agg := pipeline.New(&mockFetcher{rows: sampleRows()}, nil, pub, discardLogger(), metrics)

	result, err := agg.Load(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, result)
	assert.Equal(t, pipeline.StateReady, agg.State())
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.PublishErrors), 0)
}

func TestAggregator_Load_EnrichesMissingCoordinates(t *testing.T) {
	geo := &mockGeocoder{}
	agg := pipeline.New(&mockFetcher{rows: sampleRows()}, geo, nil, discardLogger(), newTestMetrics())

	result, err := agg.Load(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int32(1), geo.calls.Load(), "only Lukeville lacks coordinates")
	luke, ok := domain.FindPort(result, "Lukeville|AZ|US-Mexico Border")
	require.True(t, ok)
	require.NotNil(t, luke.Lat)
	assert.Equal(t, 31.88, *luke.Lat)
	assert.Equal(t, domain.CoordSourceGeocoded, luke.CoordSource)

	cal, ok := domain.FindPort(result, "Calexico|CA|US-Mexico Border")
	require.True(t, ok)
	assert.Equal(t, domain.CoordSourceDataset, cal.CoordSource)
}

func TestAggregator_IndependentInstances(t *testing.T) {
	a := pipeline.New(&mockFetcher{rows: sampleRows()}, nil, nil, discardLogger(), newTestMetrics())
	b := pipeline.New(&mockFetcher{rows: sampleRows()[:1]}, nil, nil, discardLogger(), newTestMetrics())

	ra, err := a.Load(context.Background())
	require.NoError(t, err)
	rb, err := b.Load(context.Background())
	require.NoError(t, err)

	assert.NotSame(t, ra, rb)
	assert.Len(t, ra.Ports, 2)
	assert.Len(t, rb.Ports, 1)
	if diff := cmp.Diff([]int{2021}, rb.Years); diff != "" {
		t.Errorf("years mismatch (-want +got):\n%s", diff)
	}
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "empty", pipeline.StateEmpty.String())
	assert.Equal(t, "loading", pipeline.StateLoading.String())
	assert.Equal(t, "ready", pipeline.StateReady.String())
	assert.Equal(t, "failed", pipeline.StateFailed.String())
	assert.Equal(t, "State(9)", pipeline.State(9).String())
}
