// Package telemetry provides Prometheus metrics and correlation-id aware
// logging helpers for the bot.
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
	Polls            prometheus.Counter
	PollErrors       prometheus.Counter
	MessagesReceived prometheus.Counter
	MessagesSent     prometheus.Counter
	SendErrors       prometheus.Counter
	EventsDispatched prometheus.Counter
	CallbackErrors   prometheus.Counter
	TokenRefreshes   prometheus.Counter

	// Histograms (seconds)
	PollDuration prometheus.Observer

	// Gauges
	EventQueueDepth prometheus.Gauge
)

// Init registers metrics (idempotent).
func Init() {
	once.Do(func() {
		Polls = promauto.NewCounter(prometheus.CounterOpts{Name: "livechat_polls_total", Help: "Number of live chat polls issued"})
		PollErrors = promauto.NewCounter(prometheus.CounterOpts{Name: "livechat_poll_errors_total", Help: "Number of live chat polls that failed"})
		MessagesReceived = promauto.NewCounter(prometheus.CounterOpts{Name: "livechat_messages_received_total", Help: "Number of chat messages received"})
		MessagesSent = promauto.NewCounter(prometheus.CounterOpts{Name: "livechat_messages_sent_total", Help: "Number of chat messages sent"})
		SendErrors = promauto.NewCounter(prometheus.CounterOpts{Name: "livechat_send_errors_total", Help: "Number of outbound sends that failed"})
		EventsDispatched = promauto.NewCounter(prometheus.CounterOpts{Name: "livechat_events_dispatched_total", Help: "Number of events put on the event queue"})
		CallbackErrors = promauto.NewCounter(prometheus.CounterOpts{Name: "livechat_callback_errors_total", Help: "Number of event callbacks that errored or panicked"})
		TokenRefreshes = promauto.NewCounter(prometheus.CounterOpts{Name: "livechat_token_refreshes_total", Help: "Number of successful OAuth token refreshes"})
		PollDuration = promauto.NewHistogram(prometheus.HistogramOpts{Name: "livechat_poll_duration_seconds", Help: "Poll round-trip duration seconds", Buckets: prometheus.DefBuckets})
		EventQueueDepth = promauto.NewGauge(prometheus.GaugeOpts{Name: "livechat_event_queue_depth", Help: "Current number of queued, unprocessed events"})
	})
}

// Inc increments a counter if metrics have been initialized.
func Inc(c prometheus.Counter) {
	if c != nil {
		c.Inc()
	}
}

// SetEventQueueDepth records the current queue depth. Safe before Init.
func SetEventQueueDepth(n int) {
	if EventQueueDepth != nil {
		EventQueueDepth.Set(float64(n))
	}
}

// CountEventDispatched increments the dispatch counter. Safe before Init.
func CountEventDispatched() {
	Inc(EventsDispatched)
}

// CountCallbackError increments the callback error counter. Safe before Init.
func CountCallbackError() {
	Inc(CallbackErrors)
}

// ObservePollDuration records one poll round trip. Safe before Init.
func ObservePollDuration(d time.Duration) {
	if PollDuration != nil {
		PollDuration.Observe(d.Seconds())
	}
}

// Correlation ID helpers ----------------------------------------------------

type corrKeyType struct{}

var corrKey corrKeyType

// WithCorrelation returns a new context embedding the correlation id.
func WithCorrelation(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, corrKey, id)
}

// GetCorrelation returns the correlation id or an empty string.
func GetCorrelation(ctx context.Context) string {
	if s, ok := ctx.Value(corrKey).(string); ok {
		return s
	}
	return ""
}

// LoggerWithCorr returns a logger with the corr attribute if present.
func LoggerWithCorr(ctx context.Context) *slog.Logger {
	if id := GetCorrelation(ctx); id != "" {
		return slog.Default().With(slog.String("corr", id))
	}
	return slog.Default()
}
