package metrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "dental_bot"

var (
	once sync.Once

	bookingCreated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "booking_created_total",
			Help:      "Count of bookings created by source.",
		},
		[]string{"source"},
	)

	bookingRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "booking_rejected_total",
			Help:      "Count of booking attempts rejected by the guard.",
		},
		[]string{"reason"},
	)

	bookingStatus = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "booking_status_changes_total",
			Help:      "Count of booking status transitions.",
		},
		[]string{"status"},
	)

	slotComputation = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "slot_computation_seconds",
			Help:      "Time spent computing available slots.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 12),
		},
		[]string{"mode"},
	)

	slotCache = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "slot_cache_total",
			Help:      "Slot cache lookups by result.",
		},
		[]string{"result"},
	)

	calendarSync = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "calendar_sync_total",
			Help:      "Calendar mirror operations by outcome.",
		},
		[]string{"operation", "status"},
	)

	notifications = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Telegram notifications by kind and outcome.",
		},
		[]string{"kind", "status"},
	)

	ordersCreated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orders_created_total",
			Help:      "Count of supplement orders.",
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP API requests by route and status code.",
		},
		[]string{"route", "code"},
	)
)

// Register registers metrics (idempotent).
func Register() {
	once.Do(func() {
		prometheus.MustRegister(
			bookingCreated,
			bookingRejected,
			bookingStatus,
			slotComputation,
			slotCache,
			calendarSync,
			notifications,
			ordersCreated,
			httpRequests,
		)
	})
}

func IncBookingCreated(source string) {
	bookingCreated.WithLabelValues(source).Inc()
}

func IncBookingRejected(reason string) {
	bookingRejected.WithLabelValues(reason).Inc()
}

func IncBookingStatus(status string) {
	bookingStatus.WithLabelValues(status).Inc()
}

func ObserveSlotComputation(mode string, d time.Duration) {
	slotComputation.WithLabelValues(mode).Observe(d.Seconds())
}

func IncSlotCache(result string) {
	slotCache.WithLabelValues(result).Inc()
}

func IncCalendarSync(operation, status string) {
	calendarSync.WithLabelValues(operation, status).Inc()
}

func IncNotification(kind, status string) {
	notifications.WithLabelValues(kind, status).Inc()
}

func IncOrderCreated() {
	ordersCreated.Inc()
}

func IncHTTP(route string, code int) {
	httpRequests.WithLabelValues(route, strconv.Itoa(code)).Inc()
}
