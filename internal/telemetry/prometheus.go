package telemetry

import (
	"strconv"

	"github.com/povarna/generative-ai-agents/governed-runtime/internal/events"
	"github.com/povarna/generative-ai-agents/governed-runtime/internal/models"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PrometheusObserver exports run events as Prometheus metrics.
type PrometheusObserver struct {
	modelCalls    *prometheus.CounterVec
	modelLatency  *prometheus.HistogramVec
	tokens        *prometheus.CounterVec
	validations   *prometheus.CounterVec
	repairs       prometheus.Counter
	runs          *prometheus.CounterVec
	safeMode      *prometheus.CounterVec
	billableShare prometheus.Histogram
}

// NewPrometheusObserver registers its collectors on reg. Passing
// prometheus.DefaultRegisterer exposes them on the default /metrics handler.
func NewPrometheusObserver(reg prometheus.Registerer) *PrometheusObserver {
	f := promauto.With(reg)
	return &PrometheusObserver{
		modelCalls: f.NewCounterVec(prometheus.CounterOpts{
			Name: "governed_model_calls_total",
			Help: "Model invocations by mode, attempt kind and result",
		}, []string{"mode", "kind", "result"}),
		modelLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "governed_model_call_duration_seconds",
			Help:    "Model invocation latency in seconds",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
		}, []string{"mode"}),
		tokens: f.NewCounterVec(prometheus.CounterOpts{
			Name: "governed_model_tokens_total",
			Help: "Provider-reported tokens by direction",
		}, []string{"direction"}),
		validations: f.NewCounterVec(prometheus.CounterOpts{
			Name: "governed_validations_total",
			Help: "Contract validations by result",
		}, []string{"passed"}),
		repairs: f.NewCounter(prometheus.CounterOpts{
			Name: "governed_repair_attempts_total",
			Help: "Billable model repair attempts",
		}),
		runs: f.NewCounterVec(prometheus.CounterOpts{
			Name: "governed_runs_total",
			Help: "Finished runs by mode and status",
		}, []string{"mode", "status"}),
		safeMode: f.NewCounterVec(prometheus.CounterOpts{
			Name: "governed_safe_mode_total",
			Help: "Runs that ended in safe mode",
		}, []string{"mode"}),
		billableShare: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "governed_billable_share",
			Help:    "Share of run wall-clock spent in model calls",
			Buckets: prometheus.LinearBuckets(0.1, 0.1, 10),
		}),
	}
}

func (p *PrometheusObserver) OnModelCall(e events.ModelCall) {
	result := "ok"
	if e.Error != "" {
		result = "error"
	}
	p.modelCalls.WithLabelValues(string(e.Mode), string(e.Kind), result).Inc()
	p.modelLatency.WithLabelValues(string(e.Mode)).Observe(e.LatencyMs / 1000)
	p.tokens.WithLabelValues("input").Add(float64(e.InputTokens))
	p.tokens.WithLabelValues("output").Add(float64(e.OutputTokens))
}

func (p *PrometheusObserver) OnValidation(e events.Validation) {
	p.validations.WithLabelValues(strconv.FormatBool(e.Passed)).Inc()
}

func (p *PrometheusObserver) OnRepairAttempt(events.RepairAttempt) {
	p.repairs.Inc()
}

func (p *PrometheusObserver) OnRunCompleted(r *models.RunRecord) {
	p.runs.WithLabelValues(string(r.Mode), string(r.Status)).Inc()
	if r.SafeModeApplied {
		p.safeMode.WithLabelValues(string(r.Mode)).Inc()
	}
	if r.Status != models.RunFailed {
		p.billableShare.Observe(r.Metrics.BillableShare)
	}
}
