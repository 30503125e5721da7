// Package metrics exposes compliance workflow counters and gauges to
// Prometheus.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/shopspring/decimal"

	"github.com/medequip/compliance/internal/models"
)

const namespace = "medcompliance"

// Metrics holds the collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	scans         prometheus.Counter
	scanDuration  prometheus.Histogram
	scanOutcomes  *prometheus.CounterVec
	alertsCreated *prometheus.CounterVec
	alertsClosed  *prometheus.CounterVec
	discards      *prometheus.CounterVec
	transitions   *prometheus.CounterVec
	conflicts     *prometheus.CounterVec

	pendingDiscards  prometheus.Gauge
	pendingApprovals prometheus.Gauge
	completedMonth   prometheus.Gauge
	wasteCostMonth   prometheus.Gauge
	openAlerts       *prometheus.GaugeVec
}

// New creates the collectors on a fresh registry, together with the Go
// runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		scans: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "scans_total",
			Help: "Expiration scans run.",
		}),
		scanDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Name: "scan_duration_seconds",
			Help:    "Wall time of expiration scans.",
			Buckets: prometheus.DefBuckets,
		}),
		scanOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "scan_lots_total",
			Help: "Lots visited by scans, by outcome.",
		}, []string{"outcome"}),
		alertsCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "alerts_created_total",
			Help: "Expiration alerts created, by type.",
		}, []string{"type"}),
		alertsClosed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "alerts_resolved_total",
			Help: "Expiration alerts resolved, by resolution.",
		}, []string{"resolution"}),
		discards: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "discards_created_total",
			Help: "Discard records created, by reason.",
		}, []string{"reason"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "discard_actions_total",
			Help: "Discard workflow actions, by action.",
		}, []string{"action"}),
		conflicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "concurrency_conflicts_total",
			Help: "Writes rejected for a stale version, by entity.",
		}, []string{"entity"}),
		pendingDiscards: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "pending_discards",
			Help: "Discard records in PENDING.",
		}),
		pendingApprovals: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "pending_approvals",
			Help: "Pending discard records awaiting a required approval.",
		}),
		completedMonth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "discards_completed_month",
			Help: "Discard records completed in the current calendar month.",
		}),
		wasteCostMonth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "waste_cost_month",
			Help: "Total cost of discards completed in the current calendar month.",
		}),
		openAlerts: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "open_alerts",
			Help: "Unresolved expiration alerts, by type.",
		}, []string{"type"}),
	}

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.scans, m.scanDuration, m.scanOutcomes,
		m.alertsCreated, m.alertsClosed,
		m.discards, m.transitions, m.conflicts,
		m.pendingDiscards, m.pendingApprovals, m.completedMonth, m.wasteCostMonth, m.openAlerts,
	)
	return m
}

// Registry returns the registry to serve.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ScanOutcome counts lots for one scan.
type ScanOutcome struct {
	Created    int
	Updated    int
	Skipped    int
	Suppressed int
	Cleared    int
}

// ObserveScan records one finished scan.
func (m *Metrics) ObserveScan(d time.Duration, o ScanOutcome) {
	if m == nil {
		return
	}
	m.scans.Inc()
	m.scanDuration.Observe(d.Seconds())
	m.scanOutcomes.WithLabelValues("created").Add(float64(o.Created))
	m.scanOutcomes.WithLabelValues("updated").Add(float64(o.Updated))
	m.scanOutcomes.WithLabelValues("skipped").Add(float64(o.Skipped))
	m.scanOutcomes.WithLabelValues("suppressed").Add(float64(o.Suppressed))
	m.scanOutcomes.WithLabelValues("cleared").Add(float64(o.Cleared))
}

// AlertCreated counts a new alert.
func (m *Metrics) AlertCreated(t models.AlertType) {
	if m == nil {
		return
	}
	m.alertsCreated.WithLabelValues(string(t)).Inc()
}

// AlertResolved counts a resolution.
func (m *Metrics) AlertResolved(r models.ResolutionType) {
	if m == nil {
		return
	}
	m.alertsClosed.WithLabelValues(string(r)).Inc()
}

// DiscardCreated counts a new discard record.
func (m *Metrics) DiscardCreated(r models.ReasonCode) {
	if m == nil {
		return
	}
	m.discards.WithLabelValues(string(r)).Inc()
}

// DiscardAction counts an approve, witness, complete or cancel.
func (m *Metrics) DiscardAction(a models.AuditAction) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(string(a)).Inc()
}

// Conflict counts a stale-version rejection.
func (m *Metrics) Conflict(entity string) {
	if m == nil {
		return
	}
	m.conflicts.WithLabelValues(entity).Inc()
}

// SetSummary publishes the latest compliance summary as gauges.
func (m *Metrics) SetSummary(s models.ComplianceSummary) {
	if m == nil {
		return
	}
	m.pendingDiscards.Set(float64(s.PendingDiscards))
	m.pendingApprovals.Set(float64(s.PendingApprovals))
	m.completedMonth.Set(float64(s.CompletedThisMonth))
	m.wasteCostMonth.Set(decimalFloat(s.TotalWasteCostThisMonth))
	m.openAlerts.WithLabelValues(string(models.AlertTypeExpired)).Set(float64(s.ExpiredAlerts))
	m.openAlerts.WithLabelValues(string(models.AlertTypeExpiringSoon)).Set(float64(s.ExpiringAlerts))
}

func decimalFloat(d decimal.Decimal) float64 {
	f, _ := d.Float64()
	return f
}
