package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/kirillkom/file-insights/internal/core/domain"
)

func TestMiddlewareCountsRequests(t *testing.T) {
	m := NewHTTPServerMetrics("api")
	handler := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/v1/tasks" {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))

	for _, path := range []string{"/v1/tasks", "/v1/tasks", "/random/123"} {
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	if got := testutil.ToFloat64(m.requests.WithLabelValues(http.MethodGet, "/v1/tasks", "200")); got != 2 {
		t.Fatalf("expected 2 task requests, got %v", got)
	}
	if got := testutil.ToFloat64(m.requests.WithLabelValues(http.MethodGet, "other", "404")); got != 1 {
		t.Fatalf("expected unknown path folded into other, got %v", got)
	}
}

func TestPipelineMetricsObserveFile(t *testing.T) {
	httpMetrics := NewHTTPServerMetrics("api")
	m := NewPipelineMetrics("api", httpMetrics.Registerer())

	m.ObserveFile(domain.RunRecord{
		TaskKind: domain.TaskCategorize,
		FileKind: domain.KindMessage,
		Model:    "gpt-3.5-turbo",
		Status:   domain.RunSucceeded,
		Usage:    domain.TokenUsage{Prompt: 120, Completion: 8, Total: 128},
		Duration: 800 * time.Millisecond,
	})
	m.ObserveFile(domain.RunRecord{
		TaskKind:  domain.TaskCategorize,
		Status:    domain.RunSkipped,
		ErrorKind: domain.KindAuthError,
	})

	if got := testutil.ToFloat64(m.tokensTotal.WithLabelValues("gpt-3.5-turbo", "in")); got != 120 {
		t.Fatalf("expected 120 prompt tokens, got %v", got)
	}
	if got := testutil.ToFloat64(m.filesTotal.WithLabelValues("categorize", "unknown", "skipped", "AuthError")); got != 1 {
		t.Fatalf("expected skipped file to be counted, got %v", got)
	}

	rec := httptest.NewRecorder()
	httpMetrics.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if !strings.Contains(rec.Body.String(), "insights_pipeline_files_total") {
		t.Fatalf("expected pipeline metrics on the shared registry")
	}
}

func TestWorkerMetricsFinishWrite(t *testing.T) {
	m := NewWorkerMetrics("worker")
	m.StartWrite()
	m.FinishWrite(10*time.Millisecond, nil)
	m.StartWrite()
	m.FinishWrite(time.Millisecond, errors.New("insert failed"))
	m.ObserveQueueLag(-time.Second)

	if got := testutil.ToFloat64(m.writes.WithLabelValues("ok")); got != 1 {
		t.Fatalf("expected 1 successful write, got %v", got)
	}
	if got := testutil.ToFloat64(m.writes.WithLabelValues("error")); got != 1 {
		t.Fatalf("expected 1 failed write, got %v", got)
	}
	if got := testutil.CollectAndCount(m.queueLag); got != 1 {
		t.Fatalf("expected the lag histogram to be registered once, got %v", got)
	}
	if got := testutil.ToFloat64(m.writesActive); got != 0 {
		t.Fatalf("expected no writes in flight, got %v", got)
	}
}

func TestUploadHistogramSharesRegistry(t *testing.T) {
	m := NewHTTPServerMetrics("api")
	m.ObserveUpload(4096)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := rec.Body.String()
	if !strings.Contains(body, `insights_http_upload_file_bytes_count{service="api"} 1`) {
		t.Fatalf("expected one upload observation in output")
	}
	if !strings.Contains(body, "go_goroutines") {
		t.Fatalf("expected runtime collectors on the registry")
	}
}
