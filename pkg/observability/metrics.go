package observability

import (
	"context"

	"github.com/aretw0/diagram/pkg/session"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "diagram"

// Stats is the live view the gauges read. *registry.Registry implements it.
type Stats interface {
	Len() int
	PendingRequests() int
}

// Metrics holds the collectors fed by session hooks.
type Metrics struct {
	Dispatched      *prometheus.CounterVec
	Accepted        *prometheus.CounterVec
	Requests        *prometheus.CounterVec
	Unmatched       prometheus.Counter
	HandlerErrors   *prometheus.CounterVec
	LayoutDuration  *prometheus.HistogramVec
	Closed          prometheus.Counter
	RejectedOnClose prometheus.Counter
}

// NewMetrics creates the collectors and registers them with reg.
// With stats set, gauges for live sessions and pending requests are registered too.
func NewMetrics(reg prometheus.Registerer, stats Stats) *Metrics {
	m := &Metrics{
		Dispatched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "actions_dispatched_total",
			Help:      "Actions sent to remote clients.",
		}, []string{"kind"}),
		Accepted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "actions_accepted_total",
			Help:      "Actions received from remote clients.",
		}, []string{"kind"}),
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Request actions awaiting a correlated response.",
		}, []string{"kind"}),
		Unmatched: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "responses_unmatched_total",
			Help:      "Responses dropped because no request was pending under their id.",
		}),
		HandlerErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "handler_errors_total",
			Help:      "Inbound actions whose handler failed.",
		}, []string{"kind"}),
		LayoutDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "layout_duration_seconds",
			Help:      "Duration of layout passes.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"outcome"}),
		Closed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_closed_total",
			Help:      "Sessions torn down.",
		}),
		RejectedOnClose: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_rejected_on_close_total",
			Help:      "Pending requests rejected because their session closed.",
		}),
	}

	reg.MustRegister(
		m.Dispatched,
		m.Accepted,
		m.Requests,
		m.Unmatched,
		m.HandlerErrors,
		m.LayoutDuration,
		m.Closed,
		m.RejectedOnClose,
	)

	if stats != nil {
		reg.MustRegister(
			prometheus.NewGaugeFunc(prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "sessions_active",
				Help:      "Live sessions.",
			}, func() float64 { return float64(stats.Len()) }),
			prometheus.NewGaugeFunc(prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "pending_requests",
				Help:      "Requests awaiting a response across live sessions.",
			}, func() float64 { return float64(stats.PendingRequests()) }),
		)
	}
	return m
}

// Hooks returns session hooks that record into m.
func (m *Metrics) Hooks() session.Hooks {
	return session.Hooks{
		OnDispatch: func(_ context.Context, e *session.Event) {
			m.Dispatched.WithLabelValues(e.Kind).Inc()
		},
		OnRequest: func(_ context.Context, e *session.Event) {
			m.Requests.WithLabelValues(e.Kind).Inc()
		},
		OnAccept: func(_ context.Context, e *session.Event) {
			m.Accepted.WithLabelValues(e.Kind).Inc()
		},
		OnResolve: func(_ context.Context, e *session.Event) {
			if !e.Matched {
				m.Unmatched.Inc()
			}
		},
		OnLayout: func(_ context.Context, e *session.Event) {
			outcome := "ok"
			if e.Err != nil {
				outcome = "error"
			}
			m.LayoutDuration.WithLabelValues(outcome).Observe(e.Duration.Seconds())
		},
		OnHandled: func(_ context.Context, e *session.Event) {
			if e.Err != nil {
				m.HandlerErrors.WithLabelValues(e.Kind).Inc()
			}
		},
		OnClose: func(_ context.Context, e *session.Event) {
			m.Closed.Inc()
			m.RejectedOnClose.Add(float64(e.Count))
		},
	}
}
