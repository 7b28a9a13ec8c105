package alert

import (
	"testing"
	"time"

	"github.com/edgearb/edge/internal/types"
)

type recordingNotifier struct {
	calls int
}

func (n *recordingNotifier) Notify(a *types.Alert, channels []string) { n.calls++ }

func TestEvaluateFiresActiveAlertOnThresholdBreach(t *testing.T) {
	notifier := &recordingNotifier{}
	m := New(notifier)
	m.AddRule(&types.AlertRule{
		ID: "r1", Component: "ingestion", Metric: "failure_rate",
		Condition: types.CondGreater, Threshold: 0.5, Severity: types.SeverityCritical,
		Channels: []string{"chat"},
	})

	fired := m.Evaluate("ingestion", "failure_rate", 0.9, time.Now())
	if len(fired) != 1 {
		t.Fatalf("expected 1 alert fired, got %d", len(fired))
	}
	if fired[0].Status != types.AlertActive {
		t.Fatalf("expected new alert status=active, got %s", fired[0].Status)
	}
	if notifier.calls != 1 {
		t.Fatalf("expected notifier to be called once, got %d", notifier.calls)
	}
}

func TestAcknowledgeThenResolve(t *testing.T) {
	m := New(nil)
	m.AddRule(&types.AlertRule{ID: "r1", Component: "c", Metric: "m", Condition: types.CondGreater, Threshold: 1, Severity: types.SeverityWarning})
	fired := m.Evaluate("c", "m", 2, time.Now())
	a := fired[0]

	if !m.Acknowledge(a.ID, time.Now()) {
		t.Fatalf("expected acknowledge to succeed from active")
	}
	got, _ := m.Get(a.ID)
	if got.Status != types.AlertAcknowledged {
		t.Fatalf("expected status=acknowledged, got %s", got.Status)
	}

	if !m.Resolve(a.ID, time.Now()) {
		t.Fatalf("expected resolve to succeed from acknowledged")
	}
	got, _ = m.Get(a.ID)
	if got.Status != types.AlertResolved {
		t.Fatalf("expected status=resolved, got %s", got.Status)
	}
}

func TestTickEscalatesAfterTimeout(t *testing.T) {
	m := New(nil)
	m.AddRule(&types.AlertRule{ID: "r1", Component: "c", Metric: "m", Condition: types.CondGreater, Threshold: 1, Severity: types.SeverityEmergency})
	start := time.Now()
	fired := m.Evaluate("c", "m", 2, start)
	a := fired[0]

	m.Tick(start.Add(70 * time.Second)) // emergency escalation timeout is 60s
	got, _ := m.Get(a.ID)
	if got.Status != types.AlertEscalated {
		t.Fatalf("expected status=escalated after timeout, got %s", got.Status)
	}
	if got.EscalationLevel != 1 {
		t.Fatalf("expected escalation level 1, got %d", got.EscalationLevel)
	}
}

func TestSuppressedAlertStillTransitionsButSkipsNotification(t *testing.T) {
	notifier := &recordingNotifier{}
	m := New(notifier)
	m.AddRule(&types.AlertRule{ID: "r1", Component: "c", Metric: "m", Condition: types.CondGreater, Threshold: 1, Severity: types.SeverityWarning, Channels: []string{"chat"}})
	m.Suppress("c", types.SeverityWarning, time.Now().Add(time.Hour))

	fired := m.Evaluate("c", "m", 2, time.Now())
	if fired[0].Status != types.AlertSuppressed {
		t.Fatalf("expected status=suppressed, got %s", fired[0].Status)
	}
	if notifier.calls != 0 {
		t.Fatalf("expected no notification while suppressed, got %d calls", notifier.calls)
	}
}
