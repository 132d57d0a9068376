package metrics

import (
	"strconv"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	queriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "marketplace_queries_total",
			Help: "Catalog queries by sort key",
		},
		[]string{"sort"},
	)

	queryResults = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "marketplace_query_results",
			Help:    "Number of templates returned per catalog query",
			Buckets: []float64{0, 1, 5, 10, 25, 50, 100, 250, 1000},
		},
	)

	catalogRecords = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "marketplace_catalog_records",
			Help: "Templates in the current catalog snapshot",
		},
	)

	feedEventsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "marketplace_feed_events_total",
			Help: "Deployment events emitted by the live feed",
		},
	)

	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "marketplace_http_requests_total",
			Help: "HTTP requests by route pattern and status code",
		},
		[]string{"method", "route", "status"},
	)
)

var registerOnce sync.Once

// Init registers the marketplace collectors with reg.
// Must be called once at startup; later calls are no-ops.
func Init(reg prometheus.Registerer) {
	registerOnce.Do(func() {
		reg.MustRegister(queriesTotal, queryResults, catalogRecords, feedEventsTotal, httpRequestsTotal)
	})
}

// RecordQuery counts one catalog query and the size of its result
func RecordQuery(sort string, results int) {
	queriesTotal.WithLabelValues(sort).Inc()
	queryResults.Observe(float64(results))
}

// SetCatalogSize records the number of templates in the current snapshot
func SetCatalogSize(n int) {
	catalogRecords.Set(float64(n))
}

// RecordFeedEvent counts one live feed event
func RecordFeedEvent() {
	feedEventsTotal.Inc()
}

// RecordHTTPRequest counts one served request. route is the router pattern, not the raw path.
func RecordHTTPRequest(method, route string, status int) {
	if route == "" {
		route = "unmatched"
	}
	httpRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
}
