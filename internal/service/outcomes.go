package service

import (
	"fmt"
	"sync"
	"time"

	"github.com/gtaquino-automatelabs/proativo-sub000/internal/domain"
	"github.com/gtaquino-automatelabs/proativo-sub000/internal/infra/observability"
	"github.com/gtaquino-automatelabs/proativo-sub000/internal/infra/ring"
)

const (
	// historyCapacity bounds the outcome history ring.
	historyCapacity = 100
	// successWindow is how many recent outcomes per decision feed the
	// success rate, so the rate adapts to changing backend quality.
	successWindow = 50
	// recentWindow is the "last N" slice used for satisfaction, trend
	// detection and the fallback-ratio alert.
	recentWindow = 20
)

type decisionStats struct {
	requests     int64
	avgLatencyMs float64
}

// OutcomeAggregator owns the process-lifetime routing counters and the
// bounded outcome history that feeds the adaptive engine. All access goes
// through one mutex; Snapshot returns an immutable copy.
type OutcomeAggregator struct {
	mu sync.Mutex

	history  *ring.Buffer[*domain.QueryOutcome]
	stats    map[domain.RouteDecision]*decisionStats
	requests int64

	satisfactionSum   float64
	satisfactionCount int64

	fallbacks map[domain.FallbackTrigger]int64

	metrics *observability.Metrics
}

// NewOutcomeAggregator creates an empty aggregator.
func NewOutcomeAggregator(metrics *observability.Metrics) *OutcomeAggregator {
	return &OutcomeAggregator{
		history:   ring.New[*domain.QueryOutcome](historyCapacity),
		stats:     make(map[domain.RouteDecision]*decisionStats),
		fallbacks: make(map[domain.FallbackTrigger]int64),
		metrics:   metrics,
	}
}

// IncrRequest counts one incoming route request, before any outcome exists.
func (a *OutcomeAggregator) IncrRequest() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.requests++
}

// Record appends one completed outcome: history push (ring semantics),
// per-decision counters and the incremental moving-average latency.
func (a *OutcomeAggregator) Record(outcome domain.QueryOutcome) {
	a.mu.Lock()
	defer a.mu.Unlock()

	o := outcome // private copy; callers keep their value
	a.history.Push(&o)

	st := a.stats[o.Decision]
	if st == nil {
		st = &decisionStats{}
		a.stats[o.Decision] = st
	}
	st.requests++
	latencyMs := float64(o.Latency) / float64(time.Millisecond)
	n := float64(st.requests)
	st.avgLatencyMs = (st.avgLatencyMs*(n-1) + latencyMs) / n

	if o.FallbackTrigger != nil {
		a.fallbacks[*o.FallbackTrigger]++
	}
	if o.Satisfaction != nil {
		a.satisfactionSum += clampSatisfaction(*o.Satisfaction)
		a.satisfactionCount++
	}

	a.metrics.RecordRoute(o.Decision.String(), o.Succeeded, o.Latency)
}

// AttachSatisfaction sets the score (clamped to [1,5]) on the most recent
// outcome of the given decision that has no satisfaction yet.
func (a *OutcomeAggregator) AttachSatisfaction(decision domain.RouteDecision, score float64) error {
	score = clampSatisfaction(score)

	a.mu.Lock()
	defer a.mu.Unlock()

	items := a.history.Items()
	for i := len(items) - 1; i >= 0; i-- {
		o := items[i]
		if o.Decision == decision && o.Satisfaction == nil {
			s := score
			o.Satisfaction = &s
			a.satisfactionSum += score
			a.satisfactionCount++
			a.metrics.RecordSatisfaction(score)
			return nil
		}
	}
	return fmt.Errorf("no pending outcome for decision %s", decision)
}

// SuccessRate returns the success share over the most recent successWindow
// outcomes of the given decision. ok is false when no such outcome exists.
func (a *OutcomeAggregator) SuccessRate(decision domain.RouteDecision) (rate float64, ok bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.successRateLocked(decision)
}

func (a *OutcomeAggregator) successRateLocked(decision domain.RouteDecision) (float64, bool) {
	var total, succeeded int
	items := a.history.Items()
	for i := len(items) - 1; i >= 0 && total < successWindow; i-- {
		if items[i].Decision != decision {
			continue
		}
		total++
		if items[i].Succeeded {
			succeeded++
		}
	}
	if total == 0 {
		return 0, false
	}
	return float64(succeeded) / float64(total), true
}

// RecentFallbackRatio returns the share of the last recentWindow outcomes
// that ended in a fallback.
func (a *OutcomeAggregator) RecentFallbackRatio() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()

	recent := a.history.Last(recentWindow)
	if len(recent) == 0 {
		return 0
	}
	fallbacks := 0
	for _, o := range recent {
		if o.FallbackTrigger != nil || o.Decision == domain.DecisionFallback {
			fallbacks++
		}
	}
	return float64(fallbacks) / float64(len(recent))
}

// RecentSatisfaction averages the satisfaction scores attached to the last
// recentWindow outcomes of the given decision. ok is false with no scores.
func (a *OutcomeAggregator) RecentSatisfaction(decision domain.RouteDecision) (avg float64, ok bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	var sum float64
	var count int
	for _, o := range a.history.Last(recentWindow) {
		if o.Decision == decision && o.Satisfaction != nil {
			sum += *o.Satisfaction
			count++
		}
	}
	if count == 0 {
		return 0, false
	}
	return sum / float64(count), true
}

// Recent returns copies of the most recent n outcomes, oldest first.
func (a *OutcomeAggregator) Recent(n int) []domain.QueryOutcome {
	a.mu.Lock()
	defer a.mu.Unlock()

	ptrs := a.history.Last(n)
	out := make([]domain.QueryOutcome, len(ptrs))
	for i, p := range ptrs {
		out[i] = *p
	}
	return out
}

// AvgLatency returns the moving-average latency for a decision.
func (a *OutcomeAggregator) AvgLatency(decision domain.RouteDecision) time.Duration {
	a.mu.Lock()
	defer a.mu.Unlock()
	st := a.stats[decision]
	if st == nil {
		return 0
	}
	return time.Duration(st.avgLatencyMs * float64(time.Millisecond))
}

// HistorySize returns the number of stored outcomes.
func (a *OutcomeAggregator) HistorySize() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.history.Len()
}

// Snapshot returns an immutable copy of the aggregator-owned counters.
// Breaker and adaptive status fields are filled in by the orchestrator.
func (a *OutcomeAggregator) Snapshot() *domain.RouteMetrics {
	a.mu.Lock()
	defer a.mu.Unlock()

	m := &domain.RouteMetrics{
		TotalRequests:      a.requests,
		Decisions:          make(map[string]domain.DecisionMetrics, len(a.stats)),
		FallbacksByTrigger: make(map[string]int64, len(a.fallbacks)),
		HistorySize:        a.history.Len(),
		GeneratedAt:        time.Now(),
	}

	var outcomeTotal int64
	for _, st := range a.stats {
		outcomeTotal += st.requests
	}
	for decision, st := range a.stats {
		rate, _ := a.successRateLocked(decision)
		pct := 0.0
		if outcomeTotal > 0 {
			pct = float64(st.requests) / float64(outcomeTotal) * 100
		}
		m.Decisions[decision.String()] = domain.DecisionMetrics{
			Requests:     st.requests,
			Percentage:   pct,
			SuccessRate:  rate,
			AvgLatencyMs: st.avgLatencyMs,
			AvgLatency:   time.Duration(st.avgLatencyMs * float64(time.Millisecond)),
		}
	}

	for trigger, count := range a.fallbacks {
		m.FallbacksByTrigger[trigger.String()] = count
	}

	if a.satisfactionCount > 0 {
		m.SatisfactionAvg = a.satisfactionSum / float64(a.satisfactionCount)
	}
	m.SatisfactionCount = a.satisfactionCount

	return m
}

// Reset clears all counters and history. Administrative action only.
func (a *OutcomeAggregator) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.history = ring.New[*domain.QueryOutcome](historyCapacity)
	a.stats = make(map[domain.RouteDecision]*decisionStats)
	a.fallbacks = make(map[domain.FallbackTrigger]int64)
	a.requests = 0
	a.satisfactionSum = 0
	a.satisfactionCount = 0
}

func clampSatisfaction(score float64) float64 {
	if score < 1 {
		return 1
	}
	if score > 5 {
		return 5
	}
	return score
}
