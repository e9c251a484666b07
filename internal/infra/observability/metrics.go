package observability

import (
	"time"

	"github.com/boddenberg/account-ledger/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"
)

var movementKinds = []domain.MovementKind{
	domain.MovementDeposit,
	domain.MovementWithdrawal,
	domain.MovementActivate,
	domain.MovementDeactivate,
}

// Rejection reasons used as label values.
const (
	ReasonNotFound          = "not_found"
	ReasonDeleted           = "deleted"
	ReasonInactive          = "inactive"
	ReasonInvalidAmount     = "invalid_amount"
	ReasonInsufficientFunds = "insufficient_funds"
	ReasonStore             = "store"
)

var rejectReasons = []string{
	ReasonNotFound, ReasonDeleted, ReasonInactive,
	ReasonInvalidAmount, ReasonInsufficientFunds, ReasonStore,
}

// Metrics holds all Prometheus metrics for the ledger.
type Metrics struct {
	// Registry is the Prometheus registry that owns these metrics.
	// Exposed so the /metrics endpoint can use it.
	Registry *prometheus.Registry

	requestDuration   *prometheus.HistogramVec
	movements         *prometheus.CounterVec
	rejectedMovements *prometheus.CounterVec
	cascades          *prometheus.CounterVec
	events            *prometheus.CounterVec
	idempotentReplays prometheus.Counter
}

// NewMetrics creates a dedicated Prometheus registry and registers all
// application metrics in it. Using a private registry avoids "duplicate
// collector" panics when NewMetrics is called more than once (e.g. in tests).
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ledger_operation_duration_seconds",
				Help:    "Duration of ledger operations.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		movements: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledger_movements_total",
				Help: "Total movements committed by kind.",
			},
			[]string{"kind"},
		),
		rejectedMovements: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledger_movements_rejected_total",
				Help: "Total movements rejected by reason.",
			},
			[]string{"reason"},
		),
		cascades: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledger_client_cascades_total",
				Help: "Total client activation/deactivation cascades.",
			},
			[]string{"direction"},
		),
		events: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledger_events_total",
				Help: "Movement events by publish outcome.",
			},
			[]string{"outcome"},
		),
		idempotentReplays: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "ledger_idempotent_replays_total",
				Help: "Requests answered from the idempotency cache.",
			},
		),
	}
}

// RecordRequestDuration records the duration of an operation.
func (m *Metrics) RecordRequestDuration(operation string, d time.Duration) {
	m.requestDuration.WithLabelValues(operation).Observe(d.Seconds())
}

// IncrMovement counts a committed movement.
func (m *Metrics) IncrMovement(kind domain.MovementKind) {
	m.movements.WithLabelValues(string(kind)).Inc()
}

// IncrRejected counts a movement rejected before commit.
func (m *Metrics) IncrRejected(reason string) {
	m.rejectedMovements.WithLabelValues(reason).Inc()
}

// IncrCascade counts a client cascade ("activate" or "deactivate").
func (m *Metrics) IncrCascade(direction string) {
	m.cascades.WithLabelValues(direction).Inc()
}

// IncrEvent counts a publish outcome ("published" or "failed").
func (m *Metrics) IncrEvent(outcome string) {
	m.events.WithLabelValues(outcome).Inc()
}

// IncrIdempotentReplay counts a replayed response.
func (m *Metrics) IncrIdempotentReplay() {
	m.idempotentReplays.Inc()
}

// GetLedgerSnapshot returns the current counter values for the
// GET /v1/metrics/ledger endpoint.
func (m *Metrics) GetLedgerSnapshot() *domain.LedgerMetrics {
	byKind := make(map[string]int64, len(movementKinds))
	for _, k := range movementKinds {
		byKind[string(k)] = int64(getCounterValue(m.movements, string(k)))
	}

	byReason := make(map[string]int64, len(rejectReasons))
	for _, r := range rejectReasons {
		if v := getCounterValue(m.rejectedMovements, r); v > 0 {
			byReason[r] = int64(v)
		}
	}

	return &domain.LedgerMetrics{
		MovementsByKind:   byKind,
		RejectedByReason:  byReason,
		CascadesTotal:     int64(getCounterValue(m.cascades, "activate") + getCounterValue(m.cascades, "deactivate")),
		EventsPublished:   int64(getCounterValue(m.events, "published")),
		EventsFailed:      int64(getCounterValue(m.events, "failed")),
		IdempotentReplays: int64(counterValue(m.idempotentReplays)),
		Period:            "all_time",
	}
}

// getCounterValue extracts the current float64 value from a CounterVec for a given label.
func getCounterValue(cv *prometheus.CounterVec, label string) float64 {
	return counterValue(cv.WithLabelValues(label))
}

func counterValue(c prometheus.Counter) float64 {
	m := &dto.Metric{}
	if err := c.Write(m); err != nil {
		return 0
	}
	if m.Counter != nil && m.Counter.Value != nil {
		return *m.Counter.Value
	}
	return 0
}
