package telemetry

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/mutaician/p2p-coin-flip/internal/domain"
	"github.com/mutaician/p2p-coin-flip/internal/event"
)

const namespace = "coinflip"

// Metrics counts the session events this node publishes.
type Metrics struct {
	Events   *prometheus.CounterVec
	Results  *prometheus.CounterVec
	Pot      prometheus.Histogram
	Duration prometheus.Histogram
}

func NewMetrics(reg prometheus.Registerer, eb *event.Bus) (*Metrics, error) {
	m := &Metrics{
		Events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_events_total",
			Help:      "Session lifecycle events published by this node.",
		}, []string{"event"}),

		Results: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "flip_results_total",
			Help:      "Flip outcomes committed by this node.",
		}, []string{"result"}),

		Pot: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "completed_pot",
			Help:      "Total pot of completed sessions.",
			Buckets:   []float64{2, 10, 50, 100, 250, 500, 1000, 2000},
		}),

		Duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "session_duration_seconds",
			Help:      "Time from creation to completion.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 10),
		}),
	}

	for _, c := range []prometheus.Collector{m.Events, m.Results, m.Pot, m.Duration} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("telemetry: register metrics: %w", err)
		}
	}

	eb.Subscribe(func(ctx context.Context, e event.Event) error {
		m.observe(e)
		return nil
	}, domain.SessionEventNames...)

	return m, nil
}

func (m *Metrics) observe(e event.Event) {
	m.Events.WithLabelValues(e.Name()).Inc()

	done, ok := e.(domain.EventSessionCompleted)
	if !ok {
		return
	}

	ss := done.Session
	m.Results.WithLabelValues(string(ss.Result)).Inc()
	m.Pot.Observe(float64(ss.TotalPot))
	m.Duration.Observe(ss.CompletedAt.Sub(ss.CreatedAt).Seconds())
}
