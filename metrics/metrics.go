// Package metrics provides Prometheus metrics for the chart feed.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "chartfeed"

// History fetch results.
const (
	ResultOK     = "ok"
	ResultNoData = "nodata"
	ResultError  = "error"
	ResultStale  = "stale"
)

var (
	HistoryRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "history_requests_total",
		Help:      "Initial history fetches by source and result.",
	}, []string{"source", "result"})

	HistoryLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "history_fetch_seconds",
		Help:      "Upstream history fetch latency.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"source"})

	RealtimeBars = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "realtime_bars_total",
		Help:      "Bars synthesized from quotes and pushed to subscribers.",
	})

	QuotesDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "quotes_dropped_total",
		Help:      "Quotes ignored by the driver, by reason.",
	}, []string{"reason"})

	ActiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "sessions_active",
		Help:      "Connected chart sessions.",
	})

	ActiveSubscriptions = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "bar_subscriptions_active",
		Help:      "Realtime bar subscriptions held by mounted widgets.",
	})

	TradeOps = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "trade_ops_total",
		Help:      "Portfolio trade operations.",
	}, []string{"op"})
)

// ObserveHistory records one history fetch.
func ObserveHistory(source, result string, elapsed time.Duration) {
	HistoryRequests.WithLabelValues(source, result).Inc()
	if result != ResultStale {
		HistoryLatency.WithLabelValues(source).Observe(elapsed.Seconds())
	}
}

func DropQuote(reason string) {
	QuotesDropped.WithLabelValues(reason).Inc()
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
