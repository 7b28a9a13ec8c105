// Package alert implements the Alert Manager (C12): rule storage and
// evaluation, the full active/acknowledged/resolved/escalated/suppressed/
// expired state machine, correlation grouping, and channel-layer
// notification with an hourly rate limit per channel. Notifications are not
// filtered by severity per channel: every rule channel receives the alert.
// Rule storage and priority-ordered matching is grounded on the teacher's
// routing.Engine; escalation/expiry timers are a new state machine
// required by §4.12 with no direct teacher analogue.
package alert

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/edgearb/edge/internal/types"
)

var escalationTimeout = map[types.Severity]time.Duration{
	types.SeverityEmergency: 60 * time.Second,
	types.SeverityCritical:  300 * time.Second,
	types.SeverityError:     900 * time.Second,
	types.SeverityWarning:   1800 * time.Second,
	types.SeverityInfo:      3600 * time.Second,
}

const correlationWindow = 5 * time.Minute
const retentionWindow = 24 * time.Hour

// Notifier sends a rendered alert notification through the channel layer (C10).
type Notifier interface {
	Notify(alert *types.Alert, channels []string)
}

// Manager stores rules, evaluates inbound measurements, and drives the
// alert state machine.
type Manager struct {
	mu             sync.Mutex
	rules          []*types.AlertRule
	alerts         map[string]*types.Alert
	correlations   map[string]string // (component,severity) key -> correlation id
	suppressions   map[string]time.Time
	notifier       Notifier
	channelSentAt  map[string][]time.Time // channel -> recent send timestamps (hourly rate limit)
}

// New builds an empty Alert Manager.
func New(notifier Notifier) *Manager {
	return &Manager{
		alerts:        make(map[string]*types.Alert),
		correlations:  make(map[string]string),
		suppressions:  make(map[string]time.Time),
		notifier:      notifier,
		channelSentAt: make(map[string][]time.Time),
	}
}

// AddRule registers a rule for evaluation.
func (m *Manager) AddRule(rule *types.AlertRule) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rules = append(m.rules, rule)
}

// Suppress marks a (component, severity) pair as suppressed until the
// given time; matching triggers still create/transition alerts, but
// notification is short-circuited.
func (m *Manager) Suppress(component string, severity types.Severity, until time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.suppressions[correlationKey(component, severity)] = until
}

// Evaluate checks a measurement against every matching rule (same
// component+metric) and fires an alert when the condition holds.
func (m *Manager) Evaluate(component, metric string, value float64, now time.Time) []*types.Alert {
	m.mu.Lock()
	defer m.mu.Unlock()

	var fired []*types.Alert
	for _, rule := range m.rules {
		if rule.Component != component || rule.Metric != metric {
			continue
		}
		if !conditionHolds(rule.Condition, value, rule.Threshold) {
			continue
		}
		fired = append(fired, m.fire(rule, value, now))
	}
	return fired
}

func conditionHolds(cond types.Condition, value, threshold float64) bool {
	switch cond {
	case types.CondGreater:
		return value > threshold
	case types.CondLess:
		return value < threshold
	case types.CondGreaterEqual:
		return value >= threshold
	case types.CondLessEqual:
		return value <= threshold
	case types.CondEqual:
		return value == threshold
	case types.CondNotEqual:
		return value != threshold
	default:
		return false
	}
}

func (m *Manager) fire(rule *types.AlertRule, value float64, now time.Time) *types.Alert {
	a := &types.Alert{
		ID:        uuid.NewString(),
		RuleID:    rule.ID,
		Component: rule.Component,
		Metric:    rule.Metric,
		Severity:  rule.Severity,
		Status:    types.AlertActive,
		FiredAt:   now,
		UpdatedAt: now,
		Value:     value,
	}
	a.CorrelationID = m.correlationIDFor(rule.Component, rule.Severity, now)
	m.alerts[a.ID] = a

	key := correlationKey(rule.Component, rule.Severity)
	if until, ok := m.suppressions[key]; ok && now.Before(until) {
		a.Status = types.AlertSuppressed
		return a
	}

	if m.notifier != nil {
		m.notifyRateLimited(a, rule.Channels, now)
	}
	return a
}

func (m *Manager) correlationIDFor(component string, severity types.Severity, now time.Time) string {
	key := correlationKey(component, severity)
	if id, ok := m.correlations[key]; ok {
		return id
	}
	id := uuid.NewString()
	m.correlations[key] = id
	go m.expireCorrelation(key, now)
	return id
}

// expireCorrelation runs in its own goroutine, started by correlationIDFor:
// it sleeps for correlationWindow and then deletes the correlation id under
// the manager's lock.
func (m *Manager) expireCorrelation(key string, firedAt time.Time) {
	time.Sleep(correlationWindow)
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.correlations, key)
}

func correlationKey(component string, severity types.Severity) string {
	return component + ":" + string(severity)
}

// Acknowledge transitions an active alert to acknowledged.
func (m *Manager) Acknowledge(alertID string, now time.Time) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.alerts[alertID]
	if !ok || a.Status != types.AlertActive {
		return false
	}
	a.Status = types.AlertAcknowledged
	a.UpdatedAt = now
	return true
}

// Resolve transitions an active, acknowledged, or escalated alert to resolved.
func (m *Manager) Resolve(alertID string, now time.Time) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.alerts[alertID]
	if !ok {
		return false
	}
	switch a.Status {
	case types.AlertActive, types.AlertAcknowledged, types.AlertEscalated:
		a.Status = types.AlertResolved
		a.UpdatedAt = now
		return true
	default:
		return false
	}
}

// Tick advances the escalation/expiry state machine: active alerts whose
// age exceeds their severity's escalation timeout escalate; alerts beyond
// the retention window expire.
func (m *Manager) Tick(now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.alerts {
		switch a.Status {
		case types.AlertActive:
			if now.Sub(a.FiredAt) >= escalationTimeout[a.Severity] {
				a.Status = types.AlertEscalated
				a.EscalationLevel++
				a.UpdatedAt = now
			}
		case types.AlertEscalated:
			if now.Sub(a.UpdatedAt) >= escalationTimeout[a.Severity] {
				a.EscalationLevel++
				a.UpdatedAt = now
			}
		}
		if a.Status != types.AlertResolved && a.Status != types.AlertExpired && now.Sub(a.FiredAt) >= retentionWindow {
			a.Status = types.AlertExpired
			a.UpdatedAt = now
		}
	}
}

// notifyRateLimited sends through each configured channel unless that
// channel has already sent an alert notification in the last hour.
func (m *Manager) notifyRateLimited(a *types.Alert, channels []string, now time.Time) {
	const hourlyLimit = 1
	var allowed []string
	for _, ch := range channels {
		sent := m.channelSentAt[ch]
		cutoff := now.Add(-time.Hour)
		i := 0
		for i < len(sent) && sent[i].Before(cutoff) {
			i++
		}
		sent = sent[i:]
		if len(sent) >= hourlyLimit {
			m.channelSentAt[ch] = sent
			continue
		}
		sent = append(sent, now)
		m.channelSentAt[ch] = sent
		allowed = append(allowed, ch)
	}
	if len(allowed) > 0 {
		a.NotificationCount++
		m.notifier.Notify(a, allowed)
	}
}

// Get returns an alert by id.
func (m *Manager) Get(alertID string) (*types.Alert, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.alerts[alertID]
	return a, ok
}
