package metrics

import (
	"context"
	"errors"

	"github.com/kirillkom/document-sorter/internal/core/domain"
	"github.com/prometheus/client_golang/prometheus"
)

// PipelineMetrics records how each organize run was produced: per stage
// live/cached/fallback counts, run latency and external call outcomes.
type PipelineMetrics struct {
	service string

	stageItemsTotal   *prometheus.CounterVec
	runsTotal         *prometheus.CounterVec
	runDuration       *prometheus.HistogramVec
	runsInFlight      prometheus.Gauge
	groupsProduced    *prometheus.HistogramVec
	externalCallTotal *prometheus.CounterVec
}

func NewPipelineMetrics(service string, registerer prometheus.Registerer) *PipelineMetrics {
	m := &PipelineMetrics{
		service: service,
		stageItemsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "sorter",
				Subsystem: "pipeline",
				Name:      "stage_items_total",
				Help:      "Items produced per stage by path (live, cached, fallback, failed).",
			},
			[]string{"service", "stage", "path"},
		),
		runsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "sorter",
				Subsystem: "pipeline",
				Name:      "runs_total",
				Help:      "Total organize runs by status.",
			},
			[]string{"service", "status"},
		),
		runDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "sorter",
				Subsystem: "pipeline",
				Name:      "run_duration_seconds",
				Help:      "Organize run duration in seconds by status.",
				Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 300, 600, 1200},
			},
			[]string{"service", "status"},
		),
		runsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "sorter",
				Subsystem: "pipeline",
				Name:      "runs_in_flight",
				Help:      "Number of organize runs in progress.",
				ConstLabels: prometheus.Labels{
					"service": service,
				},
			},
		),
		groupsProduced: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "sorter",
				Subsystem: "pipeline",
				Name:      "groups_produced",
				Help:      "Leaf folders produced per successful run.",
				Buckets:   []float64{1, 2, 3, 5, 8, 13, 21, 34, 55, 89},
			},
			[]string{"service"},
		),
		externalCallTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "sorter",
				Subsystem: "external",
				Name:      "calls_total",
				Help:      "External provider calls by operation and outcome.",
			},
			[]string{"service", "operation", "status"},
		),
	}
	registerer.MustRegister(
		m.stageItemsTotal,
		m.runsTotal,
		m.runDuration,
		m.runsInFlight,
		m.groupsProduced,
		m.externalCallTotal,
	)
	return m
}

func (m *PipelineMetrics) ObserveStage(report domain.StageReport) {
	counts := map[string]int{
		"live":     report.Live,
		"cached":   report.Cached,
		"fallback": report.Fallback,
		"failed":   report.Failed,
	}
	for path, n := range counts {
		if n > 0 {
			m.stageItemsTotal.WithLabelValues(m.service, report.Stage, path).Add(float64(n))
		}
	}
}

func (m *PipelineMetrics) StartRun() {
	m.runsInFlight.Inc()
}

func (m *PipelineMetrics) FinishRun(report domain.RunReport, groups int, err error) {
	m.runsInFlight.Dec()

	status := "success"
	if err != nil {
		status = "error"
	}
	m.runsTotal.WithLabelValues(m.service, status).Inc()
	m.runDuration.WithLabelValues(m.service, status).Observe(report.Duration.Seconds())
	if err == nil {
		m.groupsProduced.WithLabelValues(m.service).Observe(float64(groups))
	}
}

// ObserveCall matches resilience.CallObserver.
func (m *PipelineMetrics) ObserveCall(operation string, err error) {
	m.externalCallTotal.WithLabelValues(m.service, operation, callStatus(err)).Inc()
}

func callStatus(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	case domain.IsKind(err, domain.ErrTemporary):
		return "temporary"
	default:
		return "error"
	}
}
