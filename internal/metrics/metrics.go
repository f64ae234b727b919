package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Bridge sync engine.

	SyncPassesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bridge_sync_passes_total",
		Help: "Completed sync passes by kind and result",
	}, []string{"kind", "result"})

	SyncPagesFetched = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bridge_sync_pages_fetched_total",
		Help: "Ledger pages fetched per request kind",
	}, []string{"kind"})

	SyncRecordsUpserted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bridge_sync_records_upserted_total",
		Help: "Records written to the mirror per request kind",
	}, []string{"kind"})

	SyncPassDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "bridge_sync_pass_duration_seconds",
		Help:    "Duration of one sync pass",
		Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
	}, []string{"kind"})

	PendingRefreshCeilingHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bridge_pending_refresh_ceiling_hits_total",
		Help: "Pending refresh passes that hit the page ceiling before covering the pending set",
	})

	SyncCursorHeight = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "bridge_sync_cursor_height",
		Help: "Highest mirrored momentum height per request kind",
	}, []string{"kind"})

	// Orchestrator poller.

	PollRoundDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "orchestrator_poll_round_duration_seconds",
		Help:    "Duration of one full fleet poll round",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 10),
	})

	NodesOnline = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "orchestrator_nodes_online",
		Help: "Nodes reporting an online state in the latest round",
	})

	NodesPolled = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "orchestrator_nodes_polled",
		Help: "Active nodes polled in the latest round",
	})

	NodePollErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orchestrator_node_poll_errors_total",
		Help: "Per-node poll failures",
	})

	// API surface.

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "HTTP requests by method, path and status",
	}, []string{"method", "path", "status"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path"})

	RateLimitRejections = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rate_limit_rejections_total",
		Help: "Requests rejected by the rate limiter",
	})

	WebsocketClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "websocket_clients",
		Help: "Connected websocket clients",
	})
)
