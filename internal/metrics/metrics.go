package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "absensi"

var (
	Taps = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "taps_total",
		Help:      "Hardware taps by outcome.",
	}, []string{"outcome"})

	ManualEntries = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "manual_entries_total",
		Help:      "Manual attendance entries by kind (insert, overwrite).",
	}, []string{"kind"})

	PhotoFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "photo_failures_total",
		Help:      "Photo uploads that failed or timed out.",
	})

	Subscribers = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "broadcast_subscribers",
		Help:      "Currently connected live subscribers.",
	})

	BroadcastEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "broadcast_events_total",
		Help:      "Events published to the hub by type.",
	}, []string{"type"})

	BroadcastDropped = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "broadcast_dropped_total",
		Help:      "Deliveries skipped because a subscriber queue was full.",
	})

	RequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route", "status"})

	RateLimited = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "rate_limited_total",
		Help:      "Requests rejected by the rate limiter.",
	}, []string{"route"})
)
