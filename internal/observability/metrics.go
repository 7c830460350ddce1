package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "border_data"

// Metrics holds the Prometheus counters, histograms, and gauges for the border data service.
type Metrics struct {
	// Dataset load metrics.
	DatasetFetches       *prometheus.CounterVec // labels: outcome={success,error}
	DatasetFetchDuration prometheus.Histogram
	RowsProcessed        prometheus.Counter
	RowsSkipped          *prometheus.CounterVec // labels: reason={no_port,bad_date}
	PortsAggregated      prometheus.Gauge
	AggregateReady       prometheus.Gauge
	CacheLookups         *prometheus.CounterVec // labels: result={hit,miss}

	// Publishing metrics.
	MessagesProduced prometheus.Counter
	PublishErrors    prometheus.Counter

	// Geocoding metrics.
	GeocodeRequests    *prometheus.CounterVec // labels: outcome={success,error,empty}
	GeocodeCache       *prometheus.CounterVec // labels: result={hit,miss}
	GeocodeAPIDuration prometheus.Histogram
	GeocodeEnabled     prometheus.Gauge
}

// NewMetrics creates and registers all service metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		DatasetFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dataset_fetches_total",
			Help:      "Upstream dataset fetches by outcome.",
		}, []string{"outcome"}),
		DatasetFetchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "dataset_fetch_duration_seconds",
			Help:      "Duration of the upstream rows.json download and decode.",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 20, 30, 60, 120},
		}),
		RowsProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_processed_total",
			Help:      "Total dataset rows folded into the aggregate.",
		}),
		RowsSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_skipped_total",
			Help:      "Dataset rows skipped during aggregation by reason.",
		}, []string{"reason"}),
		PortsAggregated: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "ports_aggregated",
			Help:      "Number of ports in the cached aggregate.",
		}),
		AggregateReady: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "aggregate_ready",
			Help:      "1 when the aggregate is cached, 0 otherwise.",
		}),
		CacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_lookups_total",
			Help:      "Aggregate cache lookups by result.",
		}, []string{"result"}),
		MessagesProduced: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_produced_total",
			Help:      "Total port messages written to the sink topic.",
		}),
		PublishErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "publish_errors_total",
			Help:      "Total failed aggregate publications.",
		}),
		GeocodeRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "geocode_requests_total",
			Help:      "Geocoding API requests by outcome.",
		}, []string{"outcome"}),
		GeocodeCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "geocode_cache_total",
			Help:      "Geocoding cache lookups by result.",
		}, []string{"result"}),
		GeocodeAPIDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "geocode_api_duration_seconds",
			Help:      "Mapbox API request duration in seconds.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}),
		GeocodeEnabled: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "geocode_enabled",
			Help:      "1 when geocoding enrichment is enabled, 0 otherwise.",
		}),
	}

	prometheus.MustRegister(
		m.DatasetFetches,
		m.DatasetFetchDuration,
		m.RowsProcessed,
		m.RowsSkipped,
		m.PortsAggregated,
		m.AggregateReady,
		m.CacheLookups,
		m.MessagesProduced,
		m.PublishErrors,
		m.GeocodeRequests,
		m.GeocodeCache,
		m.GeocodeAPIDuration,
		m.GeocodeEnabled,
	)

	return m
}

// NewMetricsForTesting creates Metrics with a fresh registry to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return &Metrics{
		DatasetFetches:       prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Name: "dataset_fetches_total"}, []string{"outcome"}),
		DatasetFetchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: namespace, Name: "dataset_fetch_duration_seconds"}),
		RowsProcessed:        prometheus.NewCounter(prometheus.CounterOpts{Namespace: namespace, Name: "rows_processed_total"}),
		RowsSkipped:          prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Name: "rows_skipped_total"}, []string{"reason"}),
		PortsAggregated:      prometheus.NewGauge(prometheus.GaugeOpts{Namespace: namespace, Name: "ports_aggregated"}),
		AggregateReady:       prometheus.NewGauge(prometheus.GaugeOpts{Namespace: namespace, Name: "aggregate_ready"}),
		CacheLookups:         prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Name: "cache_lookups_total"}, []string{"result"}),
		MessagesProduced:     prometheus.NewCounter(prometheus.CounterOpts{Namespace: namespace, Name: "messages_produced_total"}),
		PublishErrors:        prometheus.NewCounter(prometheus.CounterOpts{Namespace: namespace, Name: "publish_errors_total"}),
		GeocodeRequests:      prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Name: "geocode_requests_total"}, []string{"outcome"}),
		GeocodeCache:         prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Name: "geocode_cache_total"}, []string{"result"}),
		GeocodeAPIDuration:   prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: namespace, Name: "geocode_api_duration_seconds"}),
		GeocodeEnabled:       prometheus.NewGauge(prometheus.GaugeOpts{Namespace: namespace, Name: "geocode_enabled"}),
	}
}
