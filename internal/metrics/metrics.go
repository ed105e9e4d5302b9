package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the bot's collectors.
	Registry = prometheus.NewRegistry()

	giveawaysCreated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "giveaway_bot",
			Name:      "giveaways_created_total",
			Help:      "Total number of giveaways started.",
		},
	)

	joins = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "giveaway_bot",
			Name:      "giveaway_joins_total",
			Help:      "Join attempts by outcome.",
		},
		[]string{"result"},
	)

	resolved = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "giveaway_bot",
			Name:      "giveaways_resolved_total",
			Help:      "Giveaways that reached the ended state.",
		},
		[]string{"outcome"},
	)

	cancelled = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "giveaway_bot",
			Name:      "giveaways_cancelled_total",
			Help:      "Giveaways cancelled before their end time.",
		},
	)

	rerolls = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "giveaway_bot",
			Name:      "giveaway_rerolls_total",
			Help:      "Winner rerolls performed.",
		},
	)

	announceFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "giveaway_bot",
			Name:      "giveaway_announce_failures_total",
			Help:      "Failed outbound announcements by kind.",
		},
		[]string{"kind"},
	)

	activeGiveaways = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "giveaway_bot",
			Name:      "giveaways_active",
			Help:      "Giveaways currently accepting entries.",
		},
	)

	resolutionDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "giveaway_bot",
			Name:      "giveaway_resolution_duration_seconds",
			Help:      "Time spent resolving one expiry tick.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
		},
	)
)

func init() {
	Registry.MustRegister(
		giveawaysCreated,
		joins,
		resolved,
		cancelled,
		rerolls,
		announceFailures,
		activeGiveaways,
		resolutionDuration,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
}

// Handler exposes the registry for scraping.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

func RecordCreated() { giveawaysCreated.Inc() }

func RecordJoin(result string) { joins.WithLabelValues(result).Inc() }

func RecordResolved(outcome string) { resolved.WithLabelValues(outcome).Inc() }

func RecordCancelled() { cancelled.Inc() }

func RecordReroll() { rerolls.Inc() }

func RecordAnnounceFailure(kind string) { announceFailures.WithLabelValues(kind).Inc() }

func SetActive(n int) { activeGiveaways.Set(float64(n)) }

func ObserveResolution(seconds float64) { resolutionDuration.Observe(seconds) }
