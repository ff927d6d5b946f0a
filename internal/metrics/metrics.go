// Package metrics exposes prometheus counters for the poll loop and the notifier.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "feedrelay"

type Metrics struct {
	registry *prometheus.Registry

	Cycles         prometheus.Counter
	CycleErrors    prometheus.Counter
	EntriesFetched prometheus.Counter
	MalformedFeeds prometheus.Counter
	Posts          *prometheus.CounterVec
	LedgerErrors   prometheus.Counter
	PhotoFallbacks prometheus.Counter
}

// New registers the counters on a fresh registry, so several instances can
// live side by side in tests.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		Cycles: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cycles_total",
			Help:      "Number of completed poll cycles",
		}),
		CycleErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cycle_errors_total",
			Help:      "Number of poll cycles that ended with an error",
		}),
		EntriesFetched: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "entries_fetched_total",
			Help:      "Number of feed entries returned by the source",
		}),
		MalformedFeeds: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "malformed_feeds_total",
			Help:      "Number of fetches the parser reported as malformed",
		}),
		Posts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "posts_total",
			Help:      "Number of delivery attempts by result",
		}, []string{"result"}),
		LedgerErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ledger_errors_total",
			Help:      "Number of failed ledger writes after a successful delivery",
		}),
		PhotoFallbacks: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "photo_fallbacks_total",
			Help:      "Number of photo posts retried as plain messages",
		}),
	}
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
