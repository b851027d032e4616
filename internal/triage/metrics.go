package triage

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds Prometheus metrics for the triage subsystem.
type Metrics struct {
	TriagesTotal      *prometheus.CounterVec
	TriageScore       prometheus.Histogram
	TriageDuration    prometheus.Histogram
	SignalsTotal      *prometheus.CounterVec
	ModalitiesDropped *prometheus.CounterVec
	RulesTriggered    *prometheus.CounterVec
	RuleErrorsTotal   *prometheus.CounterVec
	FailClosedTotal   prometheus.Counter
	ScoringsTotal     *prometheus.CounterVec
	EscalationsTotal  *prometheus.CounterVec
	BatchRecords      *prometheus.CounterVec
	BatchSize         prometheus.Histogram
}

// NewMetrics registers and returns triage metrics on the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		TriagesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "acuity_triages_total",
			Help: "Total completed assessments by urgency tier and action.",
		}, []string{"tier", "action"}),
		TriageScore: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "acuity_triage_score",
			Help:    "Distribution of computed risk scores.",
			Buckets: prometheus.LinearBuckets(0, 0.5, 21), // 0 .. 10
		}),
		TriageDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "acuity_triage_duration_seconds",
			Help:    "Duration of pipeline runs in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.0001, 4, 8), // 100us .. ~1.6s
		}),
		SignalsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "acuity_signals_total",
			Help: "Normalized signals by source modality.",
		}, []string{"source"}),
		ModalitiesDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "acuity_modalities_dropped_total",
			Help: "Modalities dropped as malformed during normalization.",
		}, []string{"source"}),
		RulesTriggered: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "acuity_rules_triggered_total",
			Help: "Rule matches by rule identifier.",
		}, []string{"rule"}),
		RuleErrorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "acuity_rule_errors_total",
			Help: "Rules skipped as invalid during evaluation.",
		}, []string{"rule"}),
		FailClosedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "acuity_fail_closed_total",
			Help: "Assessments that fell back to the fail-closed floor.",
		}),
		ScoringsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "acuity_scorings_total",
			Help: "Scoring requests by result.",
		}, []string{"result"}),
		EscalationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "acuity_escalations_total",
			Help: "Escalation decisions requiring human notification, by tier.",
		}, []string{"tier"}),
		BatchRecords: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "acuity_batch_records_total",
			Help: "Batch records processed by per-record status.",
		}, []string{"status"}),
		BatchSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "acuity_batch_size",
			Help:    "Records per batch request.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10), // 1 .. 512
		}),
	}

	reg.MustRegister(
		m.TriagesTotal,
		m.TriageScore,
		m.TriageDuration,
		m.SignalsTotal,
		m.ModalitiesDropped,
		m.RulesTriggered,
		m.RuleErrorsTotal,
		m.FailClosedTotal,
		m.ScoringsTotal,
		m.EscalationsTotal,
		m.BatchRecords,
		m.BatchSize,
	)

	return m
}

// Hooks returns an EngineHooks that increments the corresponding metrics.
func (m *Metrics) Hooks() EngineHooks {
	return EngineHooks{
		OnSignal: func(source Source) {
			m.SignalsTotal.WithLabelValues(string(source)).Inc()
		},
		OnModalityDropped: func(source Source) {
			m.ModalitiesDropped.WithLabelValues(string(source)).Inc()
		},
		OnRuleTriggered: func(ruleID string) {
			m.RulesTriggered.WithLabelValues(ruleID).Inc()
		},
		OnRuleError: func(ruleID string) {
			m.RuleErrorsTotal.WithLabelValues(ruleID).Inc()
		},
		OnComplete: func(e *CompleteEvent) {
			m.TriagesTotal.WithLabelValues(e.Tier.String(), string(e.Action)).Inc()
			m.TriageScore.Observe(e.Score)
			m.TriageDuration.Observe(e.Duration)
			if e.FailClosed {
				m.FailClosedTotal.Inc()
			}
		},
	}
}
