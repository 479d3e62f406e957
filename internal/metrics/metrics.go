package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "discordbot"

var (
	// APICalls counts completed REST attempts per bucket and status class.
	APICalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "api_calls_total",
		Help:      "REST call attempts by bucket and status class.",
	}, []string{"bucket", "status"})

	// APIDuration records REST latency per bucket.
	APIDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "api_duration_seconds",
		Help:      "REST call latency in seconds.",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
	}, []string{"bucket"})

	// ThrottleWaits counts calls that slept for an exhausted bucket window.
	ThrottleWaits = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "throttle_waits_total",
		Help:      "Calls delayed until a rate-limit bucket reset.",
	}, []string{"bucket"})

	// APIRetries counts silent REST retries by reason.
	APIRetries = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "api_retries_total",
		Help:      "REST calls retried without surfacing an error.",
	}, []string{"reason"})

	// GatewayConnects counts gateway handshakes by kind (identify or resume).
	GatewayConnects = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "gateway_connects_total",
		Help:      "Gateway handshakes by kind.",
	}, []string{"kind"})

	// GatewayDisconnects counts recoverable gateway connection losses.
	GatewayDisconnects = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "gateway_disconnects_total",
		Help:      "Recoverable gateway connection losses.",
	})

	// GatewayHeartbeats counts heartbeat frames sent.
	GatewayHeartbeats = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "gateway_heartbeats_total",
		Help:      "Heartbeat frames sent to the gateway.",
	})

	// GatewayFrames counts inbound gateway frames by opcode.
	GatewayFrames = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "gateway_frames_total",
		Help:      "Inbound gateway frames by opcode.",
	}, []string{"op"})

	// EventsRouted counts envelopes fanned out by the event router.
	EventsRouted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "events_routed_total",
		Help:      "Gateway events delivered to at least one subscription.",
	}, []string{"type"})

	// Subscriptions tracks open event router subscriptions.
	Subscriptions = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "subscriptions",
		Help:      "Open event router subscriptions.",
	})

	// SubscriberPanics counts recovered panics in callback subscriptions.
	SubscriberPanics = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "subscriber_panics_total",
		Help:      "Recovered panics raised by event callbacks.",
	})

	// GuildEntities tracks entities held by live guild state.
	GuildEntities = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "guild_entities",
		Help:      "Entities tracked per guild and kind.",
	}, []string{"guild", "kind"})

	// ReactionsDropped counts reaction events for messages that are not tracked.
	ReactionsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "reactions_dropped_total",
		Help:      "Reaction events dropped because the message is not tracked.",
	})

	// JobsEnqueued counts journal jobs placed into the worker channel.
	JobsEnqueued = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "jobs_enqueued_total",
		Help:      "Jobs placed into worker channel.",
	}, []string{"action"})

	// JobsDropped counts jobs discarded without being written.
	JobsDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "jobs_dropped_total",
		Help:      "Jobs discarded without being processed.",
	}, []string{"reason"})

	// JobsProcessed counts worker completions.
	JobsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "jobs_processed_total",
		Help:      "Worker job completions.",
	}, []string{"action", "status"})

	// WorkerQueueDepth tracks current job channel length.
	WorkerQueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "worker_queue_depth",
		Help:      "Current job channel buffer depth.",
	})

	// JournalRecords tracks records held in the event journal.
	JournalRecords = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "journal_records",
		Help:      "Event records currently held in the journal.",
	})

	// DBSizeBytes tracks bbolt on-disk file size.
	DBSizeBytes = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "db_size_bytes",
		Help:      "bbolt on-disk file size in bytes.",
	})
)
