// Package telemetry collects operational metrics for the admission
// service — counters, gauges, and HTTP request histograms — and serves
// them in Prometheus text exposition format, using only standard
// library constructs.
package telemetry

import (
	"fmt"
	"math"
	"net/http"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/labstack/echo/v4"
)

// Domain metric names.
const (
	MetricAssignments       = "regula_assignments_total"
	MetricReserveFull       = "regula_reserve_full_total"
	MetricReclassifications = "regula_reclassifications_total"
	MetricHalts             = "regula_overallocation_halts_total"
	MetricQueueDepth        = "regula_queue_depth"
	MetricHTTPRequests      = "http_requests_total"
)

// durationBuckets are the request-duration histogram boundaries in seconds.
var durationBuckets = []float64{
	0.010, 0.025, 0.050, 0.100, 0.250, 0.500, 1.0, 2.5, 5.0, 10.0,
}

// ---------------------------------------------------------------------------
// histogram
// ---------------------------------------------------------------------------

type histogram struct {
	boundaries   []float64
	bucketCounts []int64 // non-cumulative; cumulated at export time
	count        int64
	sum          uint64 // math.Float64bits for atomic add
	mu           sync.Mutex
}

func newHistogram(boundaries []float64) *histogram {
	return &histogram{
		boundaries:   boundaries,
		bucketCounts: make([]int64, len(boundaries)),
	}
}

func (h *histogram) Observe(v float64) {
	atomic.AddInt64(&h.count, 1)
	atomicAddFloat64(&h.sum, v)

	h.mu.Lock()
	for i, b := range h.boundaries {
		if v <= b {
			h.bucketCounts[i]++
			break
		}
	}
	// Values past the last boundary land in +Inf only.
	h.mu.Unlock()
}

func (h *histogram) Count() int64 {
	return atomic.LoadInt64(&h.count)
}

func (h *histogram) Sum() float64 {
	return math.Float64frombits(atomic.LoadUint64(&h.sum))
}

func (h *histogram) cumulativeBuckets() []int64 {
	h.mu.Lock()
	raw := make([]int64, len(h.bucketCounts))
	copy(raw, h.bucketCounts)
	h.mu.Unlock()

	cum := make([]int64, len(raw))
	var running int64
	for i, c := range raw {
		running += c
		cum[i] = running
	}
	return cum
}

func atomicAddFloat64(addr *uint64, delta float64) {
	for {
		old := atomic.LoadUint64(addr)
		newVal := math.Float64frombits(old) + delta
		if atomic.CompareAndSwapUint64(addr, old, math.Float64bits(newVal)) {
			return
		}
	}
}

// ---------------------------------------------------------------------------
// counter and gauge stores
// ---------------------------------------------------------------------------

type counterStore struct {
	mu    sync.RWMutex
	items map[string]*int64
}

func newCounterStore() *counterStore {
	return &counterStore{items: make(map[string]*int64)}
}

func (s *counterStore) inc(key string) {
	s.mu.RLock()
	p, ok := s.items[key]
	s.mu.RUnlock()
	if ok {
		atomic.AddInt64(p, 1)
		return
	}
	s.mu.Lock()
	p, ok = s.items[key]
	if !ok {
		v := int64(1)
		s.items[key] = &v
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()
	atomic.AddInt64(p, 1)
}

func (s *counterStore) get(key string) int64 {
	s.mu.RLock()
	p, ok := s.items[key]
	s.mu.RUnlock()
	if !ok {
		return 0
	}
	return atomic.LoadInt64(p)
}

func (s *counterStore) snapshot() map[string]int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cp := make(map[string]int64, len(s.items))
	for k, p := range s.items {
		cp[k] = atomic.LoadInt64(p)
	}
	return cp
}

type gaugeStore struct {
	mu    sync.RWMutex
	items map[string]*int64
}

func newGaugeStore() *gaugeStore {
	return &gaugeStore{items: make(map[string]*int64)}
}

func (s *gaugeStore) set(name string, val int64) {
	s.mu.RLock()
	p, ok := s.items[name]
	s.mu.RUnlock()
	if ok {
		atomic.StoreInt64(p, val)
		return
	}
	s.mu.Lock()
	p, ok = s.items[name]
	if !ok {
		v := val
		s.items[name] = &v
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()
	atomic.StoreInt64(p, val)
}

func (s *gaugeStore) get(name string) int64 {
	s.mu.RLock()
	p, ok := s.items[name]
	s.mu.RUnlock()
	if !ok {
		return 0
	}
	return atomic.LoadInt64(p)
}

func (s *gaugeStore) snapshot() map[string]int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cp := make(map[string]int64, len(s.items))
	for k, p := range s.items {
		cp[k] = atomic.LoadInt64(p)
	}
	return cp
}

// ---------------------------------------------------------------------------
// Provider
// ---------------------------------------------------------------------------

// Provider holds all metric state for the service.
type Provider struct {
	counters *counterStore
	gauges   *gaugeStore
	duration *histogram
}

func NewProvider() *Provider {
	return &Provider{
		counters: newCounterStore(),
		gauges:   newGaugeStore(),
		duration: newHistogram(durationBuckets),
	}
}

func counterKey(name string, labels ...string) string {
	if len(labels) == 0 {
		return name
	}
	return name + "|" + strings.Join(labels, "|")
}

// IncCounter increments a named counter with optional label values.
func (p *Provider) IncCounter(name string, labels ...string) {
	p.counters.inc(counterKey(name, labels...))
}

// Counter returns the current value of a counter.
func (p *Provider) Counter(name string, labels ...string) int64 {
	return p.counters.get(counterKey(name, labels...))
}

// SetGauge sets a named gauge.
func (p *Provider) SetGauge(name string, val int64) {
	p.gauges.set(name, val)
}

// Gauge returns the current gauge value.
func (p *Provider) Gauge(name string) int64 {
	return p.gauges.get(name)
}

// Middleware records an http_requests_total counter and a request
// duration histogram for every request.
func (p *Provider) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)

			route := c.Path()
			if route == "" {
				route = c.Request().URL.Path
			}
			status := fmt.Sprintf("%d", c.Response().Status)

			p.IncCounter(MetricHTTPRequests, c.Request().Method, route, status)
			p.duration.Observe(time.Since(start).Seconds())
			return err
		}
	}
}

// Handler serves all metrics in Prometheus text exposition format.
func (p *Provider) Handler() echo.HandlerFunc {
	return func(c echo.Context) error {
		var b strings.Builder

		writeCounterFamily(&b, MetricAssignments,
			"Total bed assignments.", []string{"sector", "fallback"}, p.counters)
		writeCounterFamily(&b, MetricReserveFull,
			"Reserve attempts rejected because the sector was full.", []string{"sector"}, p.counters)
		writeCounterFamily(&b, MetricReclassifications,
			"Manual priority reclassifications.", nil, p.counters)
		writeCounterFamily(&b, MetricHalts,
			"Sectors halted after an over-allocation was detected.", []string{"sector"}, p.counters)
		writeCounterFamily(&b, MetricHTTPRequests,
			"HTTP requests by method, route, and status.", []string{"method", "route", "status"}, p.counters)

		b.WriteString("# HELP " + MetricQueueDepth + " Patients currently in the admission queue.\n")
		b.WriteString("# TYPE " + MetricQueueDepth + " gauge\n")
		fmt.Fprintf(&b, "%s %d\n\n", MetricQueueDepth, p.gauges.get(MetricQueueDepth))

		writeHistogram(&b, "http_request_duration_seconds",
			"Duration of HTTP requests in seconds.", p.duration, durationBuckets)

		return c.String(http.StatusOK, b.String())
	}
}

// ---------------------------------------------------------------------------
// exposition helpers
// ---------------------------------------------------------------------------

func writeCounterFamily(b *strings.Builder, name, help string, labelNames []string, store *counterStore) {
	fmt.Fprintf(b, "# HELP %s %s\n", name, help)
	fmt.Fprintf(b, "# TYPE %s counter\n", name)

	snap := store.snapshot()
	keys := make([]string, 0, len(snap))
	for k := range snap {
		if k == name || strings.HasPrefix(k, name+"|") {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	for _, k := range keys {
		if k == name {
			fmt.Fprintf(b, "%s %d\n", name, snap[k])
			continue
		}
		values := strings.Split(strings.TrimPrefix(k, name+"|"), "|")
		if len(values) != len(labelNames) {
			continue
		}
		var pairs []string
		for i, ln := range labelNames {
			pairs = append(pairs, fmt.Sprintf("%s=%q", ln, values[i]))
		}
		fmt.Fprintf(b, "%s{%s} %d\n", name, strings.Join(pairs, ","), snap[k])
	}
	b.WriteByte('\n')
}

func writeHistogram(b *strings.Builder, name, help string, h *histogram, boundaries []float64) {
	fmt.Fprintf(b, "# HELP %s %s\n", name, help)
	fmt.Fprintf(b, "# TYPE %s histogram\n", name)

	cum := h.cumulativeBuckets()
	total := h.Count()
	for i, boundary := range boundaries {
		fmt.Fprintf(b, "%s_bucket{le=\"%g\"} %d\n", name, boundary, cum[i])
	}
	fmt.Fprintf(b, "%s_bucket{le=\"+Inf\"} %d\n", name, total)
	fmt.Fprintf(b, "%s_sum %g\n", name, h.Sum())
	fmt.Fprintf(b, "%s_count %d\n", name, total)
	b.WriteByte('\n')
}
