package metrics

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/kirillkom/document-sorter/internal/core/domain"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func value(t *testing.T, metric prometheus.Metric) float64 {
	t.Helper()
	var out dto.Metric
	if err := metric.Write(&out); err != nil {
		t.Fatalf("write metric: %v", err)
	}
	if out.Counter != nil {
		return out.GetCounter().GetValue()
	}
	return out.GetGauge().GetValue()
}

func TestPipelineMetricsObserveStage(t *testing.T) {
	m := NewPipelineMetrics("test", prometheus.NewRegistry())
	m.ObserveStage(domain.StageReport{Stage: domain.StageNormalize, Live: 3, Cached: 2})
	m.ObserveStage(domain.StageReport{Stage: domain.StageNormalize, Live: 1, Fallback: 4})

	if got := value(t, m.stageItemsTotal.WithLabelValues("test", "normalize", "live")); got != 4 {
		t.Fatalf("expected 4 live items, got %v", got)
	}
	if got := value(t, m.stageItemsTotal.WithLabelValues("test", "normalize", "fallback")); got != 4 {
		t.Fatalf("expected 4 fallback items, got %v", got)
	}
	if got := value(t, m.stageItemsTotal.WithLabelValues("test", "normalize", "cached")); got != 2 {
		t.Fatalf("expected 2 cached items, got %v", got)
	}
}

func TestPipelineMetricsRunLifecycle(t *testing.T) {
	m := NewPipelineMetrics("test", prometheus.NewRegistry())
	m.StartRun()
	m.StartRun()
	if got := value(t, m.runsInFlight); got != 2 {
		t.Fatalf("expected 2 runs in flight, got %v", got)
	}

	m.FinishRun(domain.RunReport{Duration: time.Second}, 4, nil)
	m.FinishRun(domain.RunReport{}, 0, errors.New("boom"))

	if got := value(t, m.runsInFlight); got != 0 {
		t.Fatalf("expected no runs in flight, got %v", got)
	}
	if got := value(t, m.runsTotal.WithLabelValues("test", "success")); got != 1 {
		t.Fatalf("expected 1 successful run, got %v", got)
	}
	if got := value(t, m.runsTotal.WithLabelValues("test", "error")); got != 1 {
		t.Fatalf("expected 1 failed run, got %v", got)
	}
}

func TestPipelineMetricsObserveCall(t *testing.T) {
	m := NewPipelineMetrics("test", prometheus.NewRegistry())
	m.ObserveCall("openai.embed", nil)
	m.ObserveCall("openai.embed", domain.WrapError(domain.ErrTemporary, "openai embed", fmt.Errorf("503")))
	m.ObserveCall("openai.embed", errors.New("bad request"))

	for status, want := range map[string]float64{"success": 1, "temporary": 1, "error": 1} {
		if got := value(t, m.externalCallTotal.WithLabelValues("test", "openai.embed", status)); got != want {
			t.Fatalf("status %s: expected %v, got %v", status, want, got)
		}
	}
}

func TestHTTPMiddlewareNormalizesRunPaths(t *testing.T) {
	m := NewHTTPServerMetrics("api")
	handler := m.Middleware("api", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))

	for _, path := range []string{"/v1/runs/a", "/v1/runs/b", "/v1/runs/c/archive"} {
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	if got := value(t, m.requestTotal.WithLabelValues("api", "GET", "/v1/runs/{run_id}", "404")); got != 2 {
		t.Fatalf("expected 2 normalized run requests, got %v", got)
	}
	if got := value(t, m.requestTotal.WithLabelValues("api", "GET", "/v1/runs/{run_id}/archive", "404")); got != 1 {
		t.Fatalf("expected 1 archive request, got %v", got)
	}

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if !strings.Contains(rec.Body.String(), "sorter_http_requests_total") {
		t.Fatalf("expected http metrics in exposition")
	}
}
