package telemetry

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/labstack/echo/v4"
)

func TestCounters_WithLabels(t *testing.T) {
	p := NewProvider()

	p.IncCounter(MetricAssignments, "UTI Geral", "false")
	p.IncCounter(MetricAssignments, "UTI Geral", "false")
	p.IncCounter(MetricAssignments, "UTI Geral", "true")

	if got := p.Counter(MetricAssignments, "UTI Geral", "false"); got != 2 {
		t.Errorf("expected 2, got %d", got)
	}
	if got := p.Counter(MetricAssignments, "UTI Geral", "true"); got != 1 {
		t.Errorf("expected 1, got %d", got)
	}
	if got := p.Counter(MetricAssignments, "UTI Cardiológica", "false"); got != 0 {
		t.Errorf("expected 0 for untouched labels, got %d", got)
	}
}

func TestCounters_Concurrent(t *testing.T) {
	p := NewProvider()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				p.IncCounter(MetricReclassifications)
			}
		}()
	}
	wg.Wait()

	if got := p.Counter(MetricReclassifications); got != 5000 {
		t.Errorf("expected 5000, got %d", got)
	}
}

func TestGauge_SetAndRead(t *testing.T) {
	p := NewProvider()

	p.SetGauge(MetricQueueDepth, 7)
	if got := p.Gauge(MetricQueueDepth); got != 7 {
		t.Errorf("expected 7, got %d", got)
	}
	p.SetGauge(MetricQueueDepth, 3)
	if got := p.Gauge(MetricQueueDepth); got != 3 {
		t.Errorf("expected 3 after overwrite, got %d", got)
	}
}

func TestHistogram_Observe(t *testing.T) {
	h := newHistogram(durationBuckets)

	h.Observe(0.005)
	h.Observe(0.3)
	h.Observe(42.0) // past last boundary, +Inf only

	if h.Count() != 3 {
		t.Errorf("expected 3 observations, got %d", h.Count())
	}
	if h.Sum() < 42.3 || h.Sum() > 42.31 {
		t.Errorf("unexpected sum %f", h.Sum())
	}

	cum := h.cumulativeBuckets()
	// Last finite bucket holds everything except the +Inf-only value.
	if cum[len(cum)-1] != 2 {
		t.Errorf("expected 2 in last finite bucket, got %d", cum[len(cum)-1])
	}
	if cum[0] != 1 {
		t.Errorf("expected 1 under 10ms, got %d", cum[0])
	}
}

func TestHandler_PrometheusExposition(t *testing.T) {
	p := NewProvider()
	p.IncCounter(MetricAssignments, "UTI Geral", "false")
	p.IncCounter(MetricHalts, "Enfermaria Clínica")
	p.SetGauge(MetricQueueDepth, 12)

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := p.Handler()(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	body := rec.Body.String()

	for _, want := range []string{
		`regula_assignments_total{sector="UTI Geral",fallback="false"} 1`,
		`regula_overallocation_halts_total{sector="Enfermaria Clínica"} 1`,
		"regula_queue_depth 12",
		"# TYPE http_request_duration_seconds histogram",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("expected %q in exposition:\n%s", want, body)
		}
	}
}

func TestMiddleware_CountsRequests(t *testing.T) {
	p := NewProvider()
	e := echo.New()
	e.Use(p.Middleware())
	e.GET("/api/v1/queue", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/queue", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if got := p.Counter(MetricHTTPRequests, "GET", "/api/v1/queue", "200"); got != 1 {
		t.Errorf("expected 1 request counted, got %d", got)
	}
	if p.duration.Count() != 1 {
		t.Errorf("expected 1 duration observation, got %d", p.duration.Count())
	}
}
