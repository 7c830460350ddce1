package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/couchcryptid/border-data-service/internal/domain"
	"github.com/couchcryptid/border-data-service/internal/observability"
	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
)

// RowFetcher retrieves the raw dataset rows.
type RowFetcher interface {
	FetchRows(ctx context.Context) ([]domain.Row, error)
}

// Publisher receives every freshly built aggregate.
type Publisher interface {
	PublishAggregate(ctx context.Context, result *domain.AggregateResult) error
}

// State is the lifecycle of the aggregator's cache slot.
type State int

const (
	StateEmpty State = iota
	StateLoading
	StateReady
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateEmpty:
		return "empty"
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

const loadKey = "border-data"

// Aggregator fetches the dataset once, aggregates it and caches the result for
// its lifetime. It is safe for concurrent use: callers arriving while a fetch
// is in flight share that fetch. A failed fetch leaves the cache empty so the
// next call retries.
type Aggregator struct {
	fetcher   RowFetcher
	geocoder  domain.Geocoder
	publisher Publisher
	logger    *slog.Logger
	metrics   *observability.Metrics

	group singleflight.Group

	mu      sync.RWMutex
	state   State
	result  *domain.AggregateResult
	lastErr error
}

// New creates an Aggregator. Pass a nil geocoder to skip coordinate
// enrichment and a nil publisher to skip publishing.
func New(fetcher RowFetcher, geocoder domain.Geocoder, publisher Publisher, logger *slog.Logger, metrics *observability.Metrics) *Aggregator {
	return &Aggregator{
		fetcher:   fetcher,
		geocoder:  geocoder,
		publisher: publisher,
		logger:    logger,
		metrics:   metrics,
	}
}

// Load returns the cached aggregate, fetching and building it on first use.
// Fetch failures wrap domain.ErrDataUnavailable. If ctx is cancelled while a
// fetch is in flight, Load returns early but the fetch continues for other
// callers.
func (a *Aggregator) Load(ctx context.Context) (*domain.AggregateResult, error) {
	if result, ok := a.Cached(); ok {
		a.metrics.CacheLookups.WithLabelValues("hit").Inc()
		return result, nil
	}
	a.metrics.CacheLookups.WithLabelValues("miss").Inc()

	ch := a.group.DoChan(loadKey, func() (any, error) {
		return a.load(context.WithoutCancel(ctx))
	})

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("wait for border data: %w", ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*domain.AggregateResult), nil
	}
}

// Cached returns the aggregate without blocking or fetching.
func (a *Aggregator) Cached() (*domain.AggregateResult, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.result, a.result != nil
}

// State reports the current cache state.
func (a *Aggregator) State() State {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.state
}

// CheckReadiness returns nil once the aggregate is cached, or an error
// describing why the service is not yet ready.
func (a *Aggregator) CheckReadiness(_ context.Context) error {
	a.mu.RLock()
	defer a.mu.RUnlock()

	switch a.state {
	case StateReady:
		return nil
	case StateFailed:
		return fmt.Errorf("border data not loaded: %w", a.lastErr)
	default:
		return fmt.Errorf("border data not loaded: %s", a.state)
	}
}

func (a *Aggregator) load(ctx context.Context) (*domain.AggregateResult, error) {
	// A caller may have missed the cache just before a previous flight stored it.
	if result, ok := a.Cached(); ok {
		return result, nil
	}

	a.setState(StateLoading, nil)
	loadID := uuid.NewString()
	logger := a.logger.With("load_id", loadID)
	start := time.Now()

	rows, err := a.fetcher.FetchRows(ctx)
	if err != nil {
		if !errors.Is(err, domain.ErrDataUnavailable) {
			err = fmt.Errorf("%w: %w", domain.ErrDataUnavailable, err)
		}
		a.setState(StateFailed, err)
		a.metrics.AggregateReady.Set(0)
		logger.Error("border data load failed", "error", err)
		return nil, err
	}

	result := domain.BuildAggregates(rows)
	result.LoadID = loadID
	a.recordStats(result.Stats)

	if a.geocoder != nil {
		n := domain.EnrichPortCoordinates(ctx, result, a.geocoder, logger)
		logger.Info("port coordinates enriched", "geocoded", n)
	}

	a.mu.Lock()
	a.result = result
	a.state = StateReady
	a.lastErr = nil
	a.mu.Unlock()

	a.metrics.AggregateReady.Set(1)
	a.metrics.PortsAggregated.Set(float64(len(result.Ports)))
	logger.Info("border data loaded",
		"rows", result.Stats.Rows,
		"accepted", result.Stats.Accepted,
		"ports", len(result.Ports),
		"years", result.Years,
		"duration", time.Since(start),
	)

	if a.publisher != nil {
		if err := a.publisher.PublishAggregate(ctx, result); err != nil {
			a.metrics.PublishErrors.Inc()
			logger.Error("publish aggregate failed", "error", err)
		}
	}

	return result, nil
}

func (a *Aggregator) setState(s State, err error) {
	a.mu.Lock()
	a.state = s
	a.lastErr = err
	a.mu.Unlock()
}

func (a *Aggregator) recordStats(stats domain.RowStats) {
	a.metrics.RowsProcessed.Add(float64(stats.Rows))
	a.metrics.RowsSkipped.WithLabelValues("no_port").Add(float64(stats.SkippedNoPort))
	a.metrics.RowsSkipped.WithLabelValues("bad_date").Add(float64(stats.SkippedBadDate))
}
