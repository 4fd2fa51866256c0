package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	TurnsStarted     prometheus.Counter
	TurnsSucceeded   prometheus.Counter
	TurnsFailed      prometheus.Counter
	MessagesInserted prometheus.Counter
	ProviderLatency  *prometheus.HistogramVec
}

var (
	once   sync.Once
	global *Metrics
)

func Global() *Metrics {
	once.Do(func() {
		global = &Metrics{
			TurnsStarted: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "a2achat",
				Name:      "turns_started_total",
				Help:      "Total AI turns requested",
			}),
			TurnsSucceeded: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "a2achat",
				Name:      "turns_succeeded_total",
				Help:      "Total AI turns that produced a persisted message",
			}),
			TurnsFailed: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "a2achat",
				Name:      "turns_failed_total",
				Help:      "Total AI turns that failed before persisting a message",
			}),
			MessagesInserted: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "a2achat",
				Name:      "messages_inserted_total",
				Help:      "Total messages written to the store",
			}),
			ProviderLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "a2achat",
				Name:      "provider_latency_seconds",
				Help:      "Wall-clock latency of provider generation calls",
				Buckets:   prometheus.ExponentialBuckets(0.1, 2, 10),
			}, []string{"provider"}),
		}
		prometheus.MustRegister(
			global.TurnsStarted,
			global.TurnsSucceeded,
			global.TurnsFailed,
			global.MessagesInserted,
			global.ProviderLatency,
		)
	})
	return global
}
