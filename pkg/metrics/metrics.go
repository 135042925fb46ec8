package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chat_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		},
		[]string{"method", "route"},
	)

	// Domain metrics
	RoomsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_rooms_created_total",
			Help: "Rooms created on first contact",
		},
		[]string{"counterpart_type"},
	)

	MessagesAppended = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_messages_appended_total",
			Help: "Messages appended to room logs",
		},
		[]string{"kind", "sender_type"},
	)

	AppendDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "chat_append_duration_seconds",
			Help:    "Latency of message appends",
			Buckets: []float64{.0005, .001, .005, .01, .05, .1, .5},
		},
	)

	MessagesMarkedRead = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_messages_marked_read_total",
			Help: "Read annotations added",
		},
	)

	AttachmentsIngested = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_attachments_ingested_total",
			Help: "Attachment ingestion outcomes",
		},
		[]string{"kind", "outcome"},
	)

	// Live channel metrics
	LiveConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "chat_live_connections",
			Help: "Open live connections",
		},
	)

	EventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_events_published_total",
			Help: "Events published to rooms",
		},
		[]string{"event"},
	)

	FramesDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_frames_dropped_total",
			Help: "Frames dropped because a member's send queue was full",
		},
		[]string{"event"},
	)

	RelayErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_relay_errors_total",
			Help: "Cross-node relay failures",
		},
		[]string{"driver", "op"},
	)

	RateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_rate_limit_hits_total",
			Help: "Requests or frames rejected by a rate limiter",
		},
		[]string{"surface"},
	)
)
