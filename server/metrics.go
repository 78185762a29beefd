package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"
)

// Match results recorded by Metrics.
const (
	resultMatched  = "matched"
	resultNotFound = "not_found"
)

// knownMethods bounds the cardinality of the method label.
var knownMethods = map[string]struct{}{
	http.MethodGet:     {},
	http.MethodHead:    {},
	http.MethodPost:    {},
	http.MethodPut:     {},
	http.MethodPatch:   {},
	http.MethodDelete:  {},
	http.MethodConnect: {},
	http.MethodOptions: {},
	http.MethodTrace:   {},
}

// Metrics holds the Prometheus metrics of a Server.
type Metrics struct {
	requestsTotal    *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
	routeMatches     *prometheus.CounterVec
	requestsInFlight prometheus.Gauge
}

// NewMetrics creates the server metrics and registers them on registerer.
// A nil registerer means prometheus.DefaultRegisterer.
func NewMetrics(namespace string, registerer prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = "segrouter"
	}
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		requestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "Total number of HTTP requests served",
			},
			[]string{"method", "status"},
		),
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   []float64{.0005, .001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
			},
			[]string{"method", "status"},
		),
		routeMatches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "router",
				Name:      "matches_total",
				Help:      "Total number of route lookups by result",
			},
			[]string{"result"},
		),
		requestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "requests_in_flight",
				Help:      "Number of HTTP requests currently being served",
			},
		),
	}

	registerer.MustRegister(m.requestsTotal, m.requestDuration, m.routeMatches, m.requestsInFlight)

	return m
}

func (m *Metrics) begin() {
	m.requestsInFlight.Inc()
}

// observe records a served request. method must not alias a request buffer.
func (m *Metrics) observe(method string, status int, matched bool, duration time.Duration) {
	m.requestsInFlight.Dec()

	if _, ok := knownMethods[method]; !ok {
		method = "OTHER"
	}
	code := strconv.Itoa(status)

	m.requestsTotal.WithLabelValues(method, code).Inc()
	m.requestDuration.WithLabelValues(method, code).Observe(duration.Seconds())

	result := resultNotFound
	if matched {
		result = resultMatched
	}
	m.routeMatches.WithLabelValues(result).Inc()
}

// MetricsHandler serves the metrics gathered by gatherer on path and 404
// elsewhere.
func MetricsHandler(path string, gatherer prometheus.Gatherer) fasthttp.RequestHandler {
	metrics := fasthttpadaptor.NewFastHTTPHandler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	return func(ctx *fasthttp.RequestCtx) {
		if string(ctx.Path()) != path {
			ctx.SetStatusCode(fasthttp.StatusNotFound)
			return
		}
		metrics(ctx)
	}
}
