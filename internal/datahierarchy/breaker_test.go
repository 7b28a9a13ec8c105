package datahierarchy

import (
	"testing"
	"time"
)

func TestCircuitBreakerTripsAfterThreshold(t *testing.T) {
	b := NewCircuitBreaker(5, 60*time.Millisecond, 3)

	for i := 0; i < 4; i++ {
		if !b.Allow() {
			t.Fatalf("expected breaker to allow call %d while closed", i)
		}
		b.RecordFailure("boom")
	}
	if b.State() != StateClosed {
		t.Fatalf("expected closed after 4 failures, got %s", b.State())
	}

	if !b.Allow() {
		t.Fatalf("expected 5th call to be allowed")
	}
	b.RecordFailure("boom")
	if b.State() != StateOpen {
		t.Fatalf("expected open after 5 consecutive failures, got %s", b.State())
	}

	if b.Allow() {
		t.Fatalf("expected open breaker to reject calls immediately")
	}
}

func TestCircuitBreakerHalfOpenRecovery(t *testing.T) {
	b := NewCircuitBreaker(1, 10*time.Millisecond, 2)

	b.Allow()
	b.RecordFailure("boom")
	if b.State() != StateOpen {
		t.Fatalf("expected open, got %s", b.State())
	}

	time.Sleep(15 * time.Millisecond)

	if !b.Allow() {
		t.Fatalf("expected half-open probe to be allowed after open duration")
	}
	if b.State() != StateHalfOpen {
		t.Fatalf("expected half-open, got %s", b.State())
	}

	b.RecordSuccess()
	if b.State() != StateHalfOpen {
		t.Fatalf("expected to remain half-open after one of two probes, got %s", b.State())
	}

	b.Allow()
	b.RecordSuccess()
	if b.State() != StateClosed {
		t.Fatalf("expected closed after K consecutive probe successes, got %s", b.State())
	}
}

func TestCircuitBreakerHalfOpenFailureReopens(t *testing.T) {
	b := NewCircuitBreaker(1, 5*time.Millisecond, 3)
	b.Allow()
	b.RecordFailure("boom")
	time.Sleep(10 * time.Millisecond)
	b.Allow()
	b.RecordFailure("boom again")
	if b.State() != StateOpen {
		t.Fatalf("expected any half-open failure to reopen the breaker, got %s", b.State())
	}
}
