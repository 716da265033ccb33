// Package metrics provides Prometheus instrumentation.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// MarketTradesTotal counts executed market orders, partitioned by side.
	MarketTradesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mockstocks_market_trades_total",
		Help: "Total number of market orders executed",
	}, []string{"side"})

	// P2PSettlementsTotal counts accepted P2P offers.
	P2PSettlementsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mockstocks_p2p_settlements_total",
		Help: "Total number of P2P offers settled",
	})

	// OpenOffers tracks the number of offers currently on the board.
	OpenOffers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "mockstocks_open_offers",
		Help: "Number of currently open P2P offers",
	})

	// OracleLookupsTotal counts oracle quote lookups by outcome.
	OracleLookupsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mockstocks_oracle_lookups_total",
		Help: "Total oracle quote lookups",
	}, []string{"outcome"})

	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mockstocks_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "path", "status"})

	// HTTPRequestDuration tracks request duration by method and path.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "mockstocks_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
	}, []string{"method", "path"})
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware returns an HTTP middleware that records request metrics.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(wrapped, r)
		duration := time.Since(start).Seconds()

		path := r.URL.Path
		HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.status)).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
	})
}

// statusWriter wraps http.ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
