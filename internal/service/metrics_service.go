package service

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService encapsulates Prometheus instrumentation for the API and the
// generation engine.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	generationRuns  prometheus.Counter
	placedSlots     prometheus.Counter
	shortfallTotal  prometheus.Counter
	generationTime  prometheus.Histogram
}

// NewMetricsService registers the API collectors on a private registry.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	generationRuns := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "timetable_generation_runs_total",
		Help: "Total number of timetable generation runs",
	})

	placedSlots := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "timetable_placed_slots_total",
		Help: "Total number of slots placed by generation runs",
	})

	shortfallTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "timetable_shortfalls_total",
		Help: "Total number of under-placed obligations across runs",
	})

	generationTime := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "timetable_generation_duration_seconds",
		Help:    "Duration of timetable generation runs",
		Buckets: prometheus.DefBuckets,
	})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, generationRuns, placedSlots, shortfallTotal, generationTime, goroutines)

	return &MetricsService{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		generationRuns:  generationRuns,
		placedSlots:     placedSlots,
		shortfallTotal:  shortfallTotal,
		generationTime:  generationTime,
	}
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveHTTPRequest records one handled request.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
}

// ObserveGenerationRun records the outcome of one generation run.
func (m *MetricsService) ObserveGenerationRun(placed, shortfalls int, duration time.Duration) {
	if m == nil {
		return
	}
	m.generationRuns.Inc()
	m.placedSlots.Add(float64(placed))
	m.shortfallTotal.Add(float64(shortfalls))
	m.generationTime.Observe(duration.Seconds())
}
