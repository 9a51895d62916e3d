package service_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/gtaquino-automatelabs/proativo-sub000/internal/domain"
	"github.com/gtaquino-automatelabs/proativo-sub000/internal/infra/observability"
	"github.com/gtaquino-automatelabs/proativo-sub000/internal/service"
)

func newAggregator() *service.OutcomeAggregator {
	return service.NewOutcomeAggregator(observability.NewMetrics())
}

func recordOutcome(a *service.OutcomeAggregator, decision domain.RouteDecision, succeeded bool, latency time.Duration) {
	a.Record(domain.QueryOutcome{
		Decision:   decision,
		Succeeded:  succeeded,
		Latency:    latency,
		RecordedAt: time.Now(),
	})
}

func TestAggregator_HistoryIsBounded(t *testing.T) {
	a := newAggregator()

	for i := 0; i < 250; i++ {
		recordOutcome(a, domain.DecisionRuleBased, true, 10*time.Millisecond)
	}

	if got := a.HistorySize(); got != 100 {
		t.Errorf("expected history pinned at 100, got %d", got)
	}
}

func TestAggregator_MovingAverageLatency(t *testing.T) {
	a := newAggregator()

	recordOutcome(a, domain.DecisionGenerativeSQL, true, 100*time.Millisecond)
	recordOutcome(a, domain.DecisionGenerativeSQL, true, 200*time.Millisecond)

	avg := a.AvgLatency(domain.DecisionGenerativeSQL)
	if avg != 150*time.Millisecond {
		t.Errorf("expected 150ms moving average, got %v", avg)
	}

	recordOutcome(a, domain.DecisionGenerativeSQL, true, 300*time.Millisecond)
	avg = a.AvgLatency(domain.DecisionGenerativeSQL)
	if avg != 200*time.Millisecond {
		t.Errorf("expected 200ms moving average, got %v", avg)
	}
}

func TestAggregator_SuccessRatePerDecision(t *testing.T) {
	a := newAggregator()

	recordOutcome(a, domain.DecisionGenerativeSQL, true, time.Millisecond)
	recordOutcome(a, domain.DecisionGenerativeSQL, false, time.Millisecond)
	recordOutcome(a, domain.DecisionGenerativeSQL, true, time.Millisecond)
	recordOutcome(a, domain.DecisionGenerativeSQL, true, time.Millisecond)
	recordOutcome(a, domain.DecisionRuleBased, true, time.Millisecond)

	rate, ok := a.SuccessRate(domain.DecisionGenerativeSQL)
	if !ok {
		t.Fatal("expected a success rate")
	}
	if rate != 0.75 {
		t.Errorf("expected 0.75, got %f", rate)
	}

	if _, ok := a.SuccessRate(domain.DecisionFallback); ok {
		t.Error("expected no rate for unseen decision")
	}
}

func TestAggregator_SuccessRateUsesRecentWindow(t *testing.T) {
	a := newAggregator()

	// Old failures, then a window full of successes: the rate should
	// reflect only the last 50 per decision.
	for i := 0; i < 40; i++ {
		recordOutcome(a, domain.DecisionGenerativeSQL, false, time.Millisecond)
	}
	for i := 0; i < 50; i++ {
		recordOutcome(a, domain.DecisionGenerativeSQL, true, time.Millisecond)
	}

	rate, ok := a.SuccessRate(domain.DecisionGenerativeSQL)
	if !ok {
		t.Fatal("expected a success rate")
	}
	if rate != 1.0 {
		t.Errorf("expected 1.0 over the recent window, got %f", rate)
	}
}

func TestAggregator_AttachSatisfaction(t *testing.T) {
	a := newAggregator()

	recordOutcome(a, domain.DecisionRuleBased, true, time.Millisecond)
	recordOutcome(a, domain.DecisionGenerativeSQL, true, time.Millisecond)

	if err := a.AttachSatisfaction(domain.DecisionGenerativeSQL, 4.5); err != nil {
		t.Fatalf("expected attach to succeed, got %v", err)
	}

	recent := a.Recent(2)
	last := recent[len(recent)-1]
	if last.Satisfaction == nil || *last.Satisfaction != 4.5 {
		t.Errorf("expected satisfaction 4.5 on most recent generative outcome, got %v", last.Satisfaction)
	}
}

func TestAggregator_AttachSatisfactionClamps(t *testing.T) {
	a := newAggregator()

	recordOutcome(a, domain.DecisionRuleBased, true, time.Millisecond)
	if err := a.AttachSatisfaction(domain.DecisionRuleBased, 9.0); err != nil {
		t.Fatalf("expected attach to succeed, got %v", err)
	}

	recent := a.Recent(1)
	if *recent[0].Satisfaction != 5.0 {
		t.Errorf("expected clamp to 5.0, got %f", *recent[0].Satisfaction)
	}
}

func TestAggregator_AttachSatisfactionNoMatch(t *testing.T) {
	a := newAggregator()

	recordOutcome(a, domain.DecisionRuleBased, true, time.Millisecond)

	if err := a.AttachSatisfaction(domain.DecisionGenerativeSQL, 3.0); err == nil {
		t.Fatal("expected error when no outcome of that decision exists")
	}
}

func TestAggregator_RecentFallbackRatio(t *testing.T) {
	a := newAggregator()

	if got := a.RecentFallbackRatio(); got != 0 {
		t.Errorf("expected 0 with empty history, got %f", got)
	}

	trigger := domain.TriggerTimeout
	for i := 0; i < 5; i++ {
		a.Record(domain.QueryOutcome{
			Decision:        domain.DecisionGenerativeSQL,
			Succeeded:       false,
			FallbackTrigger: &trigger,
			RecordedAt:      time.Now(),
		})
	}
	for i := 0; i < 5; i++ {
		recordOutcome(a, domain.DecisionRuleBased, true, time.Millisecond)
	}

	if got := a.RecentFallbackRatio(); got != 0.5 {
		t.Errorf("expected 0.5, got %f", got)
	}
}

func TestAggregator_Snapshot(t *testing.T) {
	a := newAggregator()

	a.IncrRequest()
	a.IncrRequest()
	a.IncrRequest()
	recordOutcome(a, domain.DecisionGenerativeSQL, true, 100*time.Millisecond)
	recordOutcome(a, domain.DecisionRuleBased, true, 10*time.Millisecond)
	trigger := domain.TriggerLowConfidence
	a.Record(domain.QueryOutcome{
		Decision:        domain.DecisionGenerativeSQL,
		Succeeded:       false,
		FallbackTrigger: &trigger,
		RecordedAt:      time.Now(),
	})

	m := a.Snapshot()

	if m.TotalRequests != 3 {
		t.Errorf("expected 3 requests, got %d", m.TotalRequests)
	}
	gen := m.Decisions["generative_sql"]
	if gen.Requests != 2 {
		t.Errorf("expected 2 generative outcomes, got %d", gen.Requests)
	}
	if gen.SuccessRate != 0.5 {
		t.Errorf("expected 0.5 generative success rate, got %f", gen.SuccessRate)
	}
	if m.FallbacksByTrigger["low_confidence"] != 1 {
		t.Errorf("expected 1 low_confidence fallback, got %d", m.FallbacksByTrigger["low_confidence"])
	}
	if m.HistorySize != 3 {
		t.Errorf("expected history size 3, got %d", m.HistorySize)
	}

	// The snapshot must survive a JSON round trip intact.
	data, err := json.Marshal(m)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	var back domain.RouteMetrics
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if back.TotalRequests != m.TotalRequests {
		t.Errorf("total requests changed across round trip: %d != %d", back.TotalRequests, m.TotalRequests)
	}
}

func TestAggregator_SnapshotIsImmutable(t *testing.T) {
	a := newAggregator()
	recordOutcome(a, domain.DecisionRuleBased, true, time.Millisecond)

	m1 := a.Snapshot()
	recordOutcome(a, domain.DecisionRuleBased, true, time.Millisecond)

	if m1.Decisions["rule_based"].Requests != 1 {
		t.Error("earlier snapshot mutated by later recording")
	}
}

func TestAggregator_Reset(t *testing.T) {
	a := newAggregator()

	a.IncrRequest()
	recordOutcome(a, domain.DecisionGenerativeSQL, true, time.Millisecond)
	a.Reset()

	m := a.Snapshot()
	if m.TotalRequests != 0 || m.HistorySize != 0 || len(m.Decisions) != 0 {
		t.Errorf("expected empty snapshot after reset, got %+v", m)
	}
}
