package service

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService owns the Prometheus registry for HTTP, cache and domain metrics.
// Every method is nil-safe so components can run without instrumentation.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	cacheLatency    prometheus.Observer
	cacheWrite      prometheus.Observer
	cacheLookups    *prometheus.CounterVec

	bookings        *prometheus.CounterVec
	messagesSent    prometheus.Counter
	streamClients   prometheus.Gauge
	droppedPushes   prometheus.Counter
	emails          *prometheus.CounterVec
	sweptBookings   prometheus.Counter
	storedObjectsSz *prometheus.HistogramVec
}

// NewMetricsService registers the collectors.
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

	cacheLatency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cache_latency_seconds",
		Help:    "Latency for cache lookups",
		Buckets: prometheus.DefBuckets,
	})

	cacheWrite := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cache_write_seconds",
		Help:    "Latency for cache set operations",
		Buckets: prometheus.DefBuckets,
	})

	cacheLookups := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cache_lookups_total",
		Help: "Cache lookups by result",
	}, []string{"result"})

	bookings := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "bookings_total",
		Help: "Booking lifecycle events by outcome",
	}, []string{"event"})

	messagesSent := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "messages_sent_total",
		Help: "Chat messages stored",
	})

	streamClients := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "conversation_stream_clients",
		Help: "Open conversation stream subscriptions",
	})

	droppedPushes := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "conversation_push_dropped_total",
		Help: "Push events dropped for slow subscribers",
	})

	emails := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "emails_total",
		Help: "Outbound emails by result",
	}, []string{"template", "result"})

	sweptBookings := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "bookings_completed_by_sweeper_total",
		Help: "Bookings marked completed by the scheduled sweep",
	})

	storedObjectsSz := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "stored_object_bytes",
		Help:    "Size of uploaded objects",
		Buckets: prometheus.ExponentialBuckets(1024, 4, 8),
	}, []string{"bucket"})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, cacheLatency, cacheWrite, cacheLookups,
		bookings, messagesSent, streamClients, droppedPushes, emails, sweptBookings, storedObjectsSz, goroutines)

	return &MetricsService{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		cacheLatency:    cacheLatency,
		cacheWrite:      cacheWrite,
		cacheLookups:    cacheLookups,
		bookings:        bookings,
		messagesSent:    messagesSent,
		streamClients:   streamClients,
		droppedPushes:   droppedPushes,
		emails:          emails,
		sweptBookings:   sweptBookings,
		storedObjectsSz: storedObjectsSz,
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

// Registry exposes the registry for tests.
func (m *MetricsService) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
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

// RecordCacheOperation records a cache lookup.
func (m *MetricsService) RecordCacheOperation(hit bool, duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheLatency.Observe(duration.Seconds())
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookups.WithLabelValues(result).Inc()
}

// ObserveCacheWrite tracks the duration of cache writes.
func (m *MetricsService) ObserveCacheWrite(duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheWrite.Observe(duration.Seconds())
}

// BookingEvent counts a booking outcome such as "created", "conflict" or "cancelled".
func (m *MetricsService) BookingEvent(event string) {
	if m == nil {
		return
	}
	m.bookings.WithLabelValues(event).Inc()
}

// BookingsSwept adds n bookings completed by the sweeper.
func (m *MetricsService) BookingsSwept(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.sweptBookings.Add(float64(n))
}

// MessageSent counts a stored chat message.
func (m *MetricsService) MessageSent() {
	if m == nil {
		return
	}
	m.messagesSent.Inc()
}

// StreamOpened and StreamClosed track live subscriptions.
func (m *MetricsService) StreamOpened() {
	if m == nil {
		return
	}
	m.streamClients.Inc()
}

func (m *MetricsService) StreamClosed() {
	if m == nil {
		return
	}
	m.streamClients.Dec()
}

// PushDropped counts an event skipped for a full subscriber buffer.
func (m *MetricsService) PushDropped() {
	if m == nil {
		return
	}
	m.droppedPushes.Inc()
}

// EmailResult counts an email delivery attempt.
func (m *MetricsService) EmailResult(template string, err error) {
	if m == nil {
		return
	}
	result := "sent"
	if err != nil {
		result = "failed"
	}
	m.emails.WithLabelValues(template, result).Inc()
}

// ObjectStored records the size of an uploaded object.
func (m *MetricsService) ObjectStored(bucket string, size int64) {
	if m == nil {
		return
	}
	m.storedObjectsSz.WithLabelValues(bucket).Observe(float64(size))
}
