// Package observability implements the Observability Coordinator (C11):
// routes incoming data points to a metrics collector, alert manager, trace
// collector and health monitor, and runs per-metric anomaly detection.
// Metrics are backed by prometheus/client_golang behind the same facade the
// teacher's hand-rolled registry exposed; anomaly detection's rolling
// z-score window is grounded directly on intelligence.AnomalyDetector.
package observability

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/edgearb/edge/internal/types"
)

// AlertSink receives high/critical severity data points for evaluation (C12).
type AlertSink interface {
	Evaluate(ctx context.Context, point types.ObservabilityDataPoint)
}

// TraceSink records spans keyed by trace-id.
type TraceSink interface {
	Record(ctx context.Context, traceID string, point types.ObservabilityDataPoint)
}

// HealthMonitor tracks per-component liveness/event counts.
type HealthMonitor interface {
	Observe(component string, point types.ObservabilityDataPoint)
}

// AnomalyResult is emitted when a metric's latest value is a statistical outlier.
type AnomalyResult struct {
	Component string
	Metric    string
	Value     float64
	Mean      float64
	StdDev    float64
	ZScore    float64
}

// anomalyDetector maintains a rolling per-key window and flags |z| > threshold.
type anomalyDetector struct {
	mu         sync.Mutex
	windowSize int
	threshold  float64
	history    map[string][]float64
}

func newAnomalyDetector(windowSize int, threshold float64) *anomalyDetector {
	if windowSize <= 0 {
		windowSize = 50
	}
	if threshold <= 0 {
		threshold = 2.0
	}
	return &anomalyDetector{windowSize: windowSize, threshold: threshold, history: make(map[string][]float64)}
}

func (d *anomalyDetector) check(key string, value float64) *AnomalyResult {
	d.mu.Lock()
	defer d.mu.Unlock()

	h := append(d.history[key], value)
	if len(h) > d.windowSize {
		h = h[len(h)-d.windowSize:]
	}
	d.history[key] = h

	if len(h) < 10 {
		return nil
	}

	n := float64(len(h) - 1)
	var sum float64
	for _, v := range h[:len(h)-1] {
		sum += v
	}
	mean := sum / n

	var variance float64
	for _, v := range h[:len(h)-1] {
		diff := v - mean
		variance += diff * diff
	}
	stddev := math.Sqrt(variance / n)
	if stddev == 0 {
		if value == mean {
			return nil
		}
		return &AnomalyResult{Value: value, Mean: mean, StdDev: 0, ZScore: math.Inf(int(math.Copysign(1, value-mean)))}
	}

	z := (value - mean) / stddev
	if math.Abs(z) <= d.threshold {
		return nil
	}
	return &AnomalyResult{Value: value, Mean: mean, StdDev: stddev, ZScore: z}
}

// MetricsCollector is a thin prometheus-backed time series store.
type MetricsCollector struct {
	mu         sync.Mutex
	counters   map[string]prometheus.Counter
	gauges     map[string]prometheus.Gauge
	histograms map[string]prometheus.Histogram
	registry   *prometheus.Registry
}

func newMetricsCollector() *MetricsCollector {
	return &MetricsCollector{
		counters:   make(map[string]prometheus.Counter),
		gauges:     make(map[string]prometheus.Gauge),
		histograms: make(map[string]prometheus.Histogram),
		registry:   prometheus.NewRegistry(),
	}
}

func sanitizeMetricName(component, metric string) string {
	name := component + "_" + metric
	name = strings.ReplaceAll(name, "-", "_")
	name = strings.ReplaceAll(name, ".", "_")
	return name
}

func (m *MetricsCollector) record(point types.ObservabilityDataPoint) {
	m.mu.Lock()
	defer m.mu.Unlock()
	name := sanitizeMetricName(point.Component, point.Metric)

	switch point.Type {
	case "counter":
		c, ok := m.counters[name]
		if !ok {
			c = prometheus.NewCounter(prometheus.CounterOpts{Name: name})
			m.registry.MustRegister(c)
			m.counters[name] = c
		}
		c.Add(point.Value)
	case "histogram":
		h, ok := m.histograms[name]
		if !ok {
			h = prometheus.NewHistogram(prometheus.HistogramOpts{Name: name})
			m.registry.MustRegister(h)
			m.histograms[name] = h
		}
		h.Observe(point.Value)
	default: // gauge
		g, ok := m.gauges[name]
		if !ok {
			g = prometheus.NewGauge(prometheus.GaugeOpts{Name: name})
			m.registry.MustRegister(g)
			m.gauges[name] = g
		}
		g.Set(point.Value)
	}
}

// Registry exposes the underlying prometheus registry for an HTTP /metrics handler.
func (m *MetricsCollector) Registry() *prometheus.Registry { return m.registry }

// Registry exposes the coordinator's metrics registry for an HTTP /metrics handler.
func (c *Coordinator) Registry() *prometheus.Registry { return c.metrics.Registry() }

// Coordinator is the C11 routing hub.
type Coordinator struct {
	metrics  *MetricsCollector
	alerts   AlertSink
	traces   TraceSink
	health   HealthMonitor
	anomaly  *anomalyDetector

	recentMu sync.Mutex
	recent   []types.ObservabilityDataPoint
}

// New builds an Observability Coordinator.
func New(alerts AlertSink, traces TraceSink, health HealthMonitor, anomalyWindow int, anomalyThreshold float64) *Coordinator {
	return &Coordinator{
		metrics: newMetricsCollector(),
		alerts:  alerts,
		traces:  traces,
		health:  health,
		anomaly: newAnomalyDetector(anomalyWindow, anomalyThreshold),
	}
}

// Ingest routes a single data point per §4.11.
func (c *Coordinator) Ingest(ctx context.Context, point types.ObservabilityDataPoint) *AnomalyResult {
	if point.Timestamp.IsZero() {
		point.Timestamp = time.Now()
	}

	c.metrics.record(point)
	c.remember(point)

	if point.Severity == types.SeverityCritical || point.Severity == types.SeverityError {
		if c.alerts != nil {
			c.alerts.Evaluate(ctx, point)
		}
	}

	if traceID, ok := point.Tags["trace_id"]; ok && traceID != "" && c.traces != nil {
		c.traces.Record(ctx, traceID, point)
	}
	if c.health != nil {
		c.health.Observe(point.Component, point)
	}

	key := point.Component + ":" + point.Metric
	if anomaly := c.anomaly.check(key, point.Value); anomaly != nil {
		anomaly.Component = point.Component
		anomaly.Metric = point.Metric
		return anomaly
	}
	return nil
}

func (c *Coordinator) remember(point types.ObservabilityDataPoint) {
	c.recentMu.Lock()
	defer c.recentMu.Unlock()
	c.recent = append(c.recent, point)
	cutoff := time.Now().Add(-30 * time.Minute)
	i := 0
	for i < len(c.recent) && c.recent[i].Timestamp.Before(cutoff) {
		i++
	}
	c.recent = c.recent[i:]
}

// DashboardJSON aggregates the last N minutes of ingested points into a
// simple per-(component,metric) summary, serialized as JSON-ready data.
func (c *Coordinator) DashboardJSON(window time.Duration) map[string]DashboardSeries {
	c.recentMu.Lock()
	defer c.recentMu.Unlock()

	cutoff := time.Now().Add(-window)
	out := make(map[string]DashboardSeries)
	for _, p := range c.recent {
		if p.Timestamp.Before(cutoff) {
			continue
		}
		key := p.Component + ":" + p.Metric
		s := out[key]
		s.Component = p.Component
		s.Metric = p.Metric
		s.Count++
		s.Sum += p.Value
		if p.Value > s.Max || s.Count == 1 {
			s.Max = p.Value
		}
		out[key] = s
	}
	return out
}

// DashboardSeries is one aggregated (component, metric) row.
type DashboardSeries struct {
	Component string  `json:"component"`
	Metric    string  `json:"metric"`
	Count     int     `json:"count"`
	Sum       float64 `json:"sum"`
	Max       float64 `json:"max"`
}

// GenerateTraceID creates a random 128-bit hex trace identifier, the same
// shape the teacher's tracing middleware uses for W3C traceparent headers.
func GenerateTraceID() string {
	var id [16]byte
	_, _ = rand.Read(id[:])
	return hex.EncodeToString(id[:])
}

// GenerateSpanID creates a random 64-bit hex span identifier.
func GenerateSpanID() string {
	var id [8]byte
	_, _ = rand.Read(id[:])
	return hex.EncodeToString(id[:])
}

// Traceparent formats a W3C traceparent header value.
func Traceparent(traceID, spanID string, sampled bool) string {
	flags := "00"
	if sampled {
		flags = "01"
	}
	return fmt.Sprintf("00-%s-%s-%s", traceID, spanID, flags)
}
