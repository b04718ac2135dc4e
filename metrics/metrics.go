// Package metrics exports chain activity to Prometheus by listening on the
// event bus.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/tolelom/qorachain/events"
)

const namespace = "qorachain"

// Metrics holds the node's collectors.
type Metrics struct {
	height          prometheus.Gauge
	blocksProcessed prometheus.Counter
	blocksOrphaned  prometheus.Counter
	blocksForged    prometheus.Counter
	transactions    *prometheus.CounterVec
	syncs           prometheus.Counter
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		height: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "chain_height",
			Help: "Height of the local chain tip.",
		}),
		blocksProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "blocks_processed_total",
			Help: "Blocks applied to the local chain.",
		}),
		blocksOrphaned: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "blocks_orphaned_total",
			Help: "Blocks removed from the local chain.",
		}),
		blocksForged: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "blocks_forged_total",
			Help: "Blocks forged by local keys.",
		}),
		transactions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "transactions_processed_total",
			Help: "Confirmed transactions by kind.",
		}, []string{"type"}),
		syncs: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "synchronizations_total",
			Help: "Completed synchronizations with peers.",
		}),
	}
	for _, c := range []prometheus.Collector{
		m.height, m.blocksProcessed, m.blocksOrphaned, m.blocksForged, m.transactions, m.syncs,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Subscribe updates the collectors from e's events.
func (m *Metrics) Subscribe(e *events.Emitter) {
	e.Subscribe(events.EventBlockProcessed, func(ev events.Event) {
		m.blocksProcessed.Inc()
		m.height.Set(float64(ev.BlockHeight))
	})
	e.Subscribe(events.EventBlockOrphaned, func(ev events.Event) {
		m.blocksOrphaned.Inc()
		m.height.Set(float64(ev.BlockHeight - 1))
	})
	e.Subscribe(events.EventBlockForged, func(events.Event) { m.blocksForged.Inc() })
	e.Subscribe(events.EventSyncCompleted, func(events.Event) { m.syncs.Inc() })
	e.Subscribe(events.EventTxProcessed, func(ev events.Event) {
		typ, _ := ev.Data["type"].(string)
		m.transactions.WithLabelValues(typ).Inc()
	})
}

// Handler serves the metrics gathered by g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
