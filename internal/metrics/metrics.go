// Package metrics exposes engine events as Prometheus metrics.
//
// Metrics:
//   - fpconsent_audit_runs_total: audit runs by outcome (baseline, changed, unchanged, failed)
//   - fpconsent_detected_services: services seen by the last successful audit
//   - fpconsent_alert_active: 1 while the detector alert is active
//   - fpconsent_alert_emails_total: alert emails delivered
//   - fpconsent_rules_primed_total: audits that changed stored rules
//   - fpconsent_rule_saves_total: operator rule saves
//   - fpconsent_rules_served_total: effective rule sets served, by language
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/franpass87/FP-Privacy-and-Cookie-Policy-sub000/internal/audit"
)

const namespace = "fpconsent"

// Collector owns the engine metrics and the registry they live in.
type Collector struct {
	registry *prometheus.Registry

	auditRuns   *prometheus.CounterVec
	detected    prometheus.Gauge
	alertActive prometheus.Gauge
	emailsSent  prometheus.Counter
	rulesPrimed prometheus.Counter
	ruleSaves   prometheus.Counter
	rulesServed *prometheus.CounterVec
}

// NewCollector creates and registers the engine metrics. A nil registry gets a
// fresh one.
func NewCollector(registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	c := &Collector{
		registry: registry,
		auditRuns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "audit_runs_total",
				Help:      "Total number of integration audit runs by outcome",
			},
			[]string{"outcome"},
		),
		detected: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "detected_services",
			Help:      "Number of services detected by the last successful audit",
		}),
		alertActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "alert_active",
			Help:      "Whether the detector alert is active (1) or not (0)",
		}),
		emailsSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alert_emails_total",
			Help:      "Total number of alert emails delivered",
		}),
		rulesPrimed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rules_primed_total",
			Help:      "Total number of audits that updated stored rules from presets",
		}),
		ruleSaves: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rule_saves_total",
			Help:      "Total number of operator rule saves",
		}),
		rulesServed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rules_served_total",
				Help:      "Total number of effective rule sets served",
			},
			[]string{"language"},
		),
	}

	registry.MustRegister(
		c.auditRuns,
		c.detected,
		c.alertActive,
		c.emailsSent,
		c.rulesPrimed,
		c.ruleSaves,
		c.rulesServed,
	)
	return c
}

// ObserveRun implements audit.Observer.
func (c *Collector) ObserveRun(result *audit.RunResult, err error) {
	if err != nil || result == nil {
		c.auditRuns.WithLabelValues("failed").Inc()
		return
	}

	outcome := "unchanged"
	switch {
	case result.Baseline:
		outcome = "baseline"
	case len(result.Added) > 0 || len(result.Removed) > 0:
		outcome = "changed"
	}
	c.auditRuns.WithLabelValues(outcome).Inc()
	c.detected.Set(float64(result.Detected))
	c.SetAlertActive(result.Alert.Active)
	if result.EmailSent {
		c.emailsSent.Inc()
	}
	if result.Primed {
		c.rulesPrimed.Inc()
	}
}

// SetAlertActive updates the alert gauge, e.g. after a dismissal.
func (c *Collector) SetAlertActive(active bool) {
	if active {
		c.alertActive.Set(1)
		return
	}
	c.alertActive.Set(0)
}

// RuleSaved counts an operator rule save.
func (c *Collector) RuleSaved() {
	c.ruleSaves.Inc()
}

// RulesPrimed counts a priming pass that changed stored rules outside an audit.
func (c *Collector) RulesPrimed() {
	c.rulesPrimed.Inc()
}

// RulesServed counts an effective rule set served for lang.
func (c *Collector) RulesServed(lang string) {
	c.rulesServed.WithLabelValues(lang).Inc()
}

// Registry returns the registry the metrics are registered with.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler returns the HTTP handler for the Prometheus scrape endpoint.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
		ErrorHandling:     promhttp.ContinueOnError,
	})
}

var _ audit.Observer = (*Collector)(nil)
