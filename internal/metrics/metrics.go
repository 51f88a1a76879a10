package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "takas"

// Collectors holds the engine's prometheus metrics. A nil *Collectors records nothing.
type Collectors struct {
	registry            *prometheus.Registry
	transitions         *prometheus.CounterVec
	rejectedTransitions *prometheus.CounterVec
	escrowValor         *prometheus.CounterVec
	verifyFailures      *prometheus.CounterVec
	sweepRuns           *prometheus.CounterVec
	sweepFinalized      prometheus.Counter
	unsettledSwaps      prometheus.Gauge
	notifications       *prometheus.CounterVec
	requests            *prometheus.CounterVec
}

// New registers the collectors on a dedicated registry.
func New() *Collectors {
	c := &Collectors{
		registry: prometheus.NewRegistry(),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "swap_transitions_total",
			Help:      "Swap state transitions by target status.",
		}, []string{"status"}),
		rejectedTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "swap_transition_failures_total",
			Help:      "Attempted transitions refused with a typed error.",
		}, []string{"operation", "kind"}),
		escrowValor: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ledger_valor_total",
			Help:      "Valor moved through the ledger by entry type.",
		}, []string{"type"}),
		verifyFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "delivery_verification_failures_total",
			Help:      "Failed scan or code verification attempts by reason.",
		}, []string{"reason"}),
		sweepRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dispute_sweep_runs_total",
			Help:      "Dispute window sweep runs by outcome.",
		}, []string{"outcome"}),
		sweepFinalized: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dispute_sweep_finalized_total",
			Help:      "Swaps auto-completed after the dispute window.",
		}),
		unsettledSwaps: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "swaps_unsettled",
			Help:      "Swaps past their dispute window whose settlement failed on the last sweep for lack of payer funds.",
		}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Outbound notifications by kind and outcome.",
		}, []string{"kind", "outcome"}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route, method and status.",
		}, []string{"route", "method", "status"}),
	}
	c.registry.MustRegister(
		c.transitions,
		c.rejectedTransitions,
		c.escrowValor,
		c.verifyFailures,
		c.sweepRuns,
		c.sweepFinalized,
		c.unsettledSwaps,
		c.notifications,
		c.requests,
	)
	return c
}

// Handler serves the registry in the prometheus exposition format.
func (c *Collectors) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry for tests.
func (c *Collectors) Registry() *prometheus.Registry {
	return c.registry
}

func (c *Collectors) Transition(status string) {
	if c == nil {
		return
	}
	c.transitions.WithLabelValues(status).Inc()
}

func (c *Collectors) TransitionRefused(operation, kind string) {
	if c == nil {
		return
	}
	c.rejectedTransitions.WithLabelValues(operation, kind).Inc()
}

func (c *Collectors) LedgerValor(entryType string, amount int64) {
	if c == nil || amount <= 0 {
		return
	}
	c.escrowValor.WithLabelValues(entryType).Add(float64(amount))
}

func (c *Collectors) VerificationFailure(reason string) {
	if c == nil {
		return
	}
	c.verifyFailures.WithLabelValues(reason).Inc()
}

func (c *Collectors) SweepRun(outcome string, finalized int) {
	if c == nil {
		return
	}
	c.sweepRuns.WithLabelValues(outcome).Inc()
	c.sweepFinalized.Add(float64(finalized))
}

// UnsettledSwaps reports how many due swaps the last sweep could not settle.
func (c *Collectors) UnsettledSwaps(n int) {
	if c == nil {
		return
	}
	c.unsettledSwaps.Set(float64(n))
}

func (c *Collectors) Notification(kind, outcome string) {
	if c == nil {
		return
	}
	c.notifications.WithLabelValues(kind, outcome).Inc()
}

func (c *Collectors) Request(route, method, status string) {
	if c == nil {
		return
	}
	c.requests.WithLabelValues(route, method, status).Inc()
}
