package observability

import (
	"context"
	"testing"
	"time"

	"github.com/edgearb/edge/internal/types"
)

type recordingAlertSink struct{ calls int }

func (r *recordingAlertSink) Evaluate(ctx context.Context, point types.ObservabilityDataPoint) {
	r.calls++
}

func TestIngestRoutesCriticalSeverityToAlerts(t *testing.T) {
	alerts := &recordingAlertSink{}
	c := New(alerts, nil, nil, 0, 0)

	c.Ingest(context.Background(), types.ObservabilityDataPoint{
		Component: "ingestion", Metric: "failures", Value: 1, Type: "counter", Severity: types.SeverityCritical,
	})
	if alerts.calls != 1 {
		t.Fatalf("expected critical severity to reach the alert sink, got %d calls", alerts.calls)
	}
}

func TestAnomalyDetectionRequiresMinimumSamples(t *testing.T) {
	c := New(nil, nil, nil, 50, 2.0)
	var lastResult *AnomalyResult
	for i := 0; i < 9; i++ {
		lastResult = c.Ingest(context.Background(), types.ObservabilityDataPoint{
			Component: "x", Metric: "latency", Value: 10, Type: "gauge",
		})
	}
	if lastResult != nil {
		t.Fatalf("expected no anomaly before 10 samples accumulate")
	}

	spike := c.Ingest(context.Background(), types.ObservabilityDataPoint{
		Component: "x", Metric: "latency", Value: 1000, Type: "gauge",
	})
	if spike == nil {
		t.Fatalf("expected a spike far outside the rolling window to be flagged as an anomaly")
	}
}

func TestDashboardJSONAggregatesWithinWindow(t *testing.T) {
	c := New(nil, nil, nil, 0, 0)
	c.Ingest(context.Background(), types.ObservabilityDataPoint{Component: "x", Metric: "m", Value: 5, Type: "gauge"})
	c.Ingest(context.Background(), types.ObservabilityDataPoint{Component: "x", Metric: "m", Value: 7, Type: "gauge"})

	series := c.DashboardJSON(time.Hour)
	row, ok := series["x:m"]
	if !ok {
		t.Fatalf("expected an aggregated row for x:m")
	}
	if row.Count != 2 || row.Sum != 12 {
		t.Fatalf("expected count=2 sum=12, got %+v", row)
	}
}
