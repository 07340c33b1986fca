package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/insider-one/local-notifications/internal/domain"
	"github.com/insider-one/local-notifications/internal/service"
)

// Metrics holds Prometheus metrics
type Metrics struct {
	gatherer prometheus.Gatherer

	httpRequestsTotal    *prometheus.CounterVec
	httpRequestDuration  *prometheus.HistogramVec
	schedulesTotal       *prometheus.CounterVec
	cancelledTotal       prometheus.Counter
	authorizationsTotal  *prometheus.CounterVec
	pendingNotifications prometheus.Gauge
	deliveriesTotal      *prometheus.CounterVec
	deliveryDuration     *prometheus.HistogramVec
	engineDepth          prometheus.Gauge
}

// NewMetrics creates new Prometheus metrics on reg. Pass
// prometheus.DefaultRegisterer in production.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	return &Metrics{
		gatherer: gatherer,

		httpRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		httpRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		schedulesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "notification_schedules_total",
				Help: "Total number of schedule calls by outcome",
			},
			[]string{"outcome"},
		),
		cancelledTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "notifications_cancelled_total",
				Help: "Total number of pending notifications cancelled",
			},
		),
		authorizationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "notification_authorizations_total",
				Help: "Total number of permission state changes",
			},
			[]string{"state"},
		),
		pendingNotifications: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "notifications_pending",
				Help: "Number of notifications in the pending set",
			},
		),
		deliveriesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "notification_deliveries_total",
				Help: "Total number of delivery attempts by provider and status",
			},
			[]string{"provider", "status"},
		),
		deliveryDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "notification_delivery_duration_seconds",
				Help:    "Time spent in the delivery provider",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"provider"},
		),
		engineDepth: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "notification_engine_depth",
				Help: "Number of notifications held by the engine",
			},
		),
	}
}

// RecordRequest records HTTP request metrics
func (m *Metrics) RecordRequest(method, path, status string, duration time.Duration) {
	m.httpRequestsTotal.WithLabelValues(method, path, status).Inc()
	m.httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

func (m *Metrics) RecordSchedule(outcome string) {
	m.schedulesTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) RecordCancelled(count int) {
	m.cancelledTotal.Add(float64(count))
}

func (m *Metrics) RecordAuthorization(state domain.PermissionState) {
	m.authorizationsTotal.WithLabelValues(string(state)).Inc()
}

func (m *Metrics) SetPending(count int) {
	m.pendingNotifications.Set(float64(count))
}

// RecordDelivery records a delivery attempt made by the dispatcher or an engine
func (m *Metrics) RecordDelivery(provider, status string, duration time.Duration) {
	m.deliveriesTotal.WithLabelValues(provider, status).Inc()
	m.deliveryDuration.WithLabelValues(provider).Observe(duration.Seconds())
}

// SetEngineDepth sets the number of notifications held by the engine
func (m *Metrics) SetEngineDepth(depth int64) {
	m.engineDepth.Set(float64(depth))
}

// DepthReporter is implemented by engines that can count what they hold
type DepthReporter interface {
	Depth(ctx context.Context) (int64, error)
}

// MetricsHandler handles metrics endpoints
type MetricsHandler struct {
	metrics *Metrics
	manager *service.NotificationManager
	engine  DepthReporter
}

// NewMetricsHandler creates a new MetricsHandler. engine may be nil.
func NewMetricsHandler(metrics *Metrics, manager *service.NotificationManager, engine DepthReporter) *MetricsHandler {
	return &MetricsHandler{
		metrics: metrics,
		manager: manager,
		engine:  engine,
	}
}

// Handler returns the Prometheus HTTP handler
func (h *MetricsHandler) Handler() http.Handler {
	return promhttp.HandlerFor(h.metrics.gatherer, promhttp.HandlerOpts{})
}

// RealtimeMetrics represents the live state of the manager and its engine
type RealtimeMetrics struct {
	Enabled     bool                   `json:"enabled"`
	Permission  domain.PermissionState `json:"permission"`
	Pending     int                    `json:"pending"`
	EngineDepth *int64                 `json:"engine_depth,omitempty"`
}

// Realtime handles real-time metrics requests
// @Summary Real-time metrics
// @Description Get the pending set size and the number of notifications the engine holds
// @Tags metrics
// @Produce json
// @Success 200 {object} Response{data=RealtimeMetrics}
// @Failure 500 {object} Response
// @Router /metrics/realtime [get]
func (h *MetricsHandler) Realtime(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := h.manager.Status()
	h.metrics.SetPending(status.Pending)

	result := RealtimeMetrics{
		Enabled:    status.Enabled,
		Permission: status.Permission,
		Pending:    status.Pending,
	}

	if h.engine != nil {
		depth, err := h.engine.Depth(ctx)
		if err != nil {
			JSONError(w, http.StatusInternalServerError, "METRICS_ERROR", "Failed to get engine depth", nil)
			return
		}
		h.metrics.SetEngineDepth(depth)
		result.EngineDepth = &depth
	}

	JSON(w, http.StatusOK, result)
}
