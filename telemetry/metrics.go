// Package telemetry provides Prometheus metrics and correlation-id aware logging helpers.
package telemetry

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	once sync.Once

	// Counters
	TransitionsTotal   *prometheus.CounterVec // by kind (noop/start/update/finish)
	SessionsMissing    *prometheus.CounterVec // update/finish fired without a stored session
	StoreRequests      *prometheus.CounterVec // by op and result
	Notifications      *prometheus.CounterVec // by kind and result
	EventsDropped      prometheus.Counter
	HistoryWriteFailed prometheus.Counter

	// Histograms (seconds)
	HandleDuration  prometheus.Observer
	SessionDuration prometheus.Observer

	// Gauges
	QueueDepthGauge    prometheus.Gauge
	ActiveSessionGauge prometheus.Gauge // 1=session open,0=none
)

// Init registers metrics (idempotent).
func Init() {
	once.Do(func() {
		TransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{Name: "bridge_transitions_total", Help: "Presence transitions handled, by lifecycle kind"}, []string{"kind"})
		SessionsMissing = promauto.NewCounterVec(prometheus.CounterOpts{Name: "bridge_session_missing_total", Help: "Update/finish transitions dropped because no session was stored"}, []string{"kind"})
		StoreRequests = promauto.NewCounterVec(prometheus.CounterOpts{Name: "bridge_store_requests_total", Help: "Session store requests by operation and result"}, []string{"op", "result"})
		Notifications = promauto.NewCounterVec(prometheus.CounterOpts{Name: "bridge_notifications_total", Help: "Slack notifications by kind and result"}, []string{"kind", "result"})
		EventsDropped = promauto.NewCounter(prometheus.CounterOpts{Name: "bridge_events_dropped_total", Help: "Presence events dropped because the queue was full"})
		HistoryWriteFailed = promauto.NewCounter(prometheus.CounterOpts{Name: "bridge_history_write_failed_total", Help: "Finished sessions that could not be archived"})
		HandleDuration = promauto.NewHistogram(prometheus.HistogramOpts{Name: "bridge_transition_duration_seconds", Help: "Time spent handling one presence transition", Buckets: prometheus.DefBuckets})
		SessionDuration = promauto.NewHistogram(prometheus.HistogramOpts{Name: "bridge_session_duration_seconds", Help: "Length of finished sessions", Buckets: []float64{300, 900, 1800, 3600, 7200, 14400, 28800}})
		QueueDepthGauge = promauto.NewGauge(prometheus.GaugeOpts{Name: "bridge_queue_depth", Help: "Presence events waiting to be handled"})
		ActiveSessionGauge = promauto.NewGauge(prometheus.GaugeOpts{Name: "bridge_session_active", Help: "Session open=1 none=0"})
	})
}

// CountTransition increments the transition counter for kind.
func CountTransition(kind string) {
	if TransitionsTotal != nil {
		TransitionsTotal.WithLabelValues(kind).Inc()
	}
}

// CountMissingSession records an update/finish that found no session.
func CountMissingSession(kind string) {
	if SessionsMissing != nil {
		SessionsMissing.WithLabelValues(kind).Inc()
	}
}

// CountStore records one session store round trip.
func CountStore(op string, err error) {
	if StoreRequests != nil {
		StoreRequests.WithLabelValues(op, result(err)).Inc()
	}
}

// CountNotification records one Slack post/update.
func CountNotification(kind string, err error) {
	if Notifications != nil {
		Notifications.WithLabelValues(kind, result(err)).Inc()
	}
}

// CountDropped records a presence event lost to a full queue.
func CountDropped() {
	if EventsDropped != nil {
		EventsDropped.Inc()
	}
}

// CountHistoryFailure records a failed archive write.
func CountHistoryFailure() {
	if HistoryWriteFailed != nil {
		HistoryWriteFailed.Inc()
	}
}

// SetQueueDepth records the number of queued presence events.
func SetQueueDepth(n int) {
	if QueueDepthGauge != nil {
		QueueDepthGauge.Set(float64(n))
	}
}

// SetSessionActive sets gauge to 1 if a session is open else 0.
func SetSessionActive(active bool) {
	if ActiveSessionGauge != nil {
		if active {
			ActiveSessionGauge.Set(1)
		} else {
			ActiveSessionGauge.Set(0)
		}
	}
}

// ObserveSession records the length of a finished session.
func ObserveSession(d time.Duration) {
	if SessionDuration != nil {
		SessionDuration.Observe(d.Seconds())
	}
}

// TimeFunc measures the duration of fn and records in observer if non-nil.
func TimeFunc(obs prometheus.Observer, fn func()) time.Duration {
	start := time.Now()
	fn()
	d := time.Since(start)
	if obs != nil {
		obs.Observe(d.Seconds())
	}
	return d
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// Correlation ID helpers ----------------------------------------------------
type corrKeyType struct{}

var corrKey corrKeyType

// WithCorrelation returns a new context embedding correlation id.
func WithCorrelation(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, corrKey, id)
}

// GetCorrelation returns correlation id or empty string.
func GetCorrelation(ctx context.Context) string {
	v := ctx.Value(corrKey)
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

// LoggerWithCorr returns a logger with corr attribute if present.
func LoggerWithCorr(ctx context.Context) *slog.Logger {
	if id := GetCorrelation(ctx); id != "" {
		return slog.Default().With(slog.String("corr", id))
	}
	return slog.Default()
}
