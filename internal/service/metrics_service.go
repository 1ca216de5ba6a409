package service

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/edusched/timetable-api/internal/solver"
)

// MetricsService encapsulates Prometheus instrumentation for the HTTP
// surface and the solver. It implements solver.Observer so the job manager
// can report run telemetry directly.
type MetricsService struct {
	registry *prometheus.Registry
	handler  http.Handler

	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec

	solverRuns       *prometheus.CounterVec
	solverInFlight   prometheus.Gauge
	solverDuration   prometheus.Histogram
	solverHardScore  prometheus.Gauge
	solverSoftScore  prometheus.Gauge
	solverUnassigned prometheus.Gauge
}

// NewMetricsService registers core Prometheus collectors.
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

	solverRuns := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "solver_runs_total",
		Help: "Terminated solver runs by outcome",
	}, []string{"outcome"})

	solverInFlight := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "solver_runs_in_flight",
		Help: "Solver runs currently executing",
	})

	solverDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "solver_run_duration_seconds",
		Help:    "Wall clock duration of solver runs",
		Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300},
	})

	solverHardScore := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "solver_last_hard_score",
		Help: "Hard score of the most recent solver run",
	})

	solverSoftScore := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "solver_last_soft_score",
		Help: "Soft score of the most recent solver run",
	})

	solverUnassigned := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "solver_last_unassigned_lessons",
		Help: "Unassigned lessons in the most recent solver run",
	})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, solverRuns, solverInFlight,
		solverDuration, solverHardScore, solverSoftScore, solverUnassigned, goroutines)

	handler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})

	return &MetricsService{
		registry:         registry,
		handler:          handler,
		requestDuration:  requestDuration,
		requestTotal:     requestTotal,
		solverRuns:       solverRuns,
		solverInFlight:   solverInFlight,
		solverDuration:   solverDuration,
		solverHardScore:  solverHardScore,
		solverSoftScore:  solverSoftScore,
		solverUnassigned: solverUnassigned,
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

// ObserveHTTPRequest records request metrics.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
}

// RunStarted implements solver.Observer.
func (m *MetricsService) RunStarted() {
	if m == nil {
		return
	}
	m.solverInFlight.Inc()
}

// RunFinished implements solver.Observer.
func (m *MetricsService) RunFinished(solution *solver.Solution) {
	if m == nil || solution == nil {
		return
	}
	m.solverInFlight.Dec()
	m.solverDuration.Observe(solution.Elapsed.Seconds())
	m.solverHardScore.Set(float64(solution.Score.Hard))
	m.solverSoftScore.Set(float64(solution.Score.Soft))
	m.solverUnassigned.Set(float64(solution.Unassigned))

	outcome := "complete"
	switch {
	case solution.Cancelled:
		outcome = "cancelled"
	case !solution.Complete:
		outcome = "incomplete"
	}
	m.solverRuns.WithLabelValues(outcome).Inc()
}
