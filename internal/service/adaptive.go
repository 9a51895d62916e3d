package service

import (
	"fmt"
	"sync"
	"time"

	"github.com/gtaquino-automatelabs/proativo-sub000/internal/domain"
	"github.com/gtaquino-automatelabs/proativo-sub000/internal/infra/ring"

	"go.uber.org/zap"
)

const (
	// patternCapacity bounds the per-class table of recent successful decisions.
	patternCapacity = 20
	// minHistoryForAdaptive gates the adaptive engine: below this many
	// recorded outcomes the orchestrator sticks to static rules.
	minHistoryForAdaptive = 10

	// scoreEpsilon floors the losing score in the confidence ratio.
	scoreEpsilon = 0.01

	// latencyCeiling normalizes generative latencies: anything at or above
	// this counts as a zero performance score.
	latencyCeiling = 10 * time.Second

	// Defaults when no history exists. Rule-based starts higher,
	// reflecting its inherent reliability.
	defaultGenerativeRate = 0.5
	defaultRuleBasedRate  = 0.7
	defaultSatisfaction   = 0.6
	ruleBasedPerformance  = 0.9 // rules are always fast
)

// ScoreWeights are the weighted-sum coefficients of the decision score.
type ScoreWeights struct {
	History      float64
	Performance  float64
	Satisfaction float64
	Availability float64
}

// DefaultScoreWeights returns the tuned production weights.
func DefaultScoreWeights() ScoreWeights {
	return ScoreWeights{
		History:      0.4,
		Performance:  0.3,
		Satisfaction: 0.2,
		Availability: 0.1,
	}
}

// AdaptiveEngine recommends a strategy per complexity class from weighted
// historical performance. It keeps a bounded per-class table of recent
// successful decisions and reads broader history from the aggregator.
type AdaptiveEngine struct {
	mu       sync.Mutex
	patterns map[domain.ComplexityClass]*ring.Buffer[domain.RouteDecision]

	outcomes *OutcomeAggregator
	weights  ScoreWeights
	logger   *zap.Logger
}

// NewAdaptiveEngine creates an engine with empty pattern tables.
func NewAdaptiveEngine(outcomes *OutcomeAggregator, weights ScoreWeights, logger *zap.Logger) *AdaptiveEngine {
	return &AdaptiveEngine{
		patterns: make(map[domain.ComplexityClass]*ring.Buffer[domain.RouteDecision]),
		outcomes: outcomes,
		weights:  weights,
		logger:   logger,
	}
}

// ObserveSuccess appends a successful decision to the class's pattern table.
func (e *AdaptiveEngine) ObserveSuccess(class domain.ComplexityClass, decision domain.RouteDecision) {
	e.mu.Lock()
	defer e.mu.Unlock()

	table := e.patterns[class]
	if table == nil {
		table = ring.New[domain.RouteDecision](patternCapacity)
		e.patterns[class] = table
	}
	table.Push(decision)
}

// Ready reports whether enough outcomes exist to trust the engine.
func (e *AdaptiveEngine) Ready() bool {
	return e.outcomes.HistorySize() >= minHistoryForAdaptive
}

// Recommend picks GenerativeSQL or RuleBased for a complexity class.
// recentPerformance is the caller's 0..1 proxy for recent backend quality.
// When the backend is unavailable the answer is always RuleBased with full
// confidence; history is not consulted.
func (e *AdaptiveEngine) Recommend(class domain.ComplexityClass, backendAvailable bool, recentPerformance float64) (domain.RouteDecision, float64, string) {
	if !backendAvailable {
		return domain.DecisionRuleBased, 1.0, "backend unavailable"
	}

	genScore := e.score(domain.DecisionGenerativeSQL, class, backendAvailable, recentPerformance)
	ruleScore := e.score(domain.DecisionRuleBased, class, backendAvailable, recentPerformance)

	decision := domain.DecisionGenerativeSQL
	higher, lower := genScore, ruleScore
	if ruleScore >= genScore {
		decision = domain.DecisionRuleBased
		higher, lower = ruleScore, genScore
	}
	if lower < scoreEpsilon {
		lower = scoreEpsilon
	}
	confidence := higher / lower
	if confidence > 1.0 {
		confidence = 1.0
	}

	reason := fmt.Sprintf("adaptive scores: generative=%.3f rule_based=%.3f (class=%s)",
		genScore, ruleScore, class)
	e.logger.Debug("adaptive recommendation",
		zap.String("class", class.String()),
		zap.String("decision", decision.String()),
		zap.Float64("generative_score", genScore),
		zap.Float64("rule_based_score", ruleScore),
	)
	return decision, confidence, reason
}

// score computes w1·history + w2·performance + w3·satisfaction + w4·availability.
func (e *AdaptiveEngine) score(strategy domain.RouteDecision, class domain.ComplexityClass, backendAvailable bool, recentPerformance float64) float64 {
	history := e.historicalRate(strategy, class)

	var performance float64
	if strategy == domain.DecisionRuleBased {
		performance = ruleBasedPerformance
	} else {
		avgLatency := e.outcomes.AvgLatency(domain.DecisionGenerativeSQL)
		latencyScore := 1.0 - float64(avgLatency)/float64(latencyCeiling)
		if latencyScore < 0 {
			latencyScore = 0
		}
		performance = 0.4*latencyScore + 0.6*recentPerformance
	}

	satisfaction := defaultSatisfaction
	if avg, ok := e.outcomes.RecentSatisfaction(strategy); ok {
		// Normalize 1–5 scores into 0..1.
		satisfaction = (avg - 1) / 4
	}

	availability := 1.0
	if strategy == domain.DecisionGenerativeSQL && !backendAvailable {
		availability = 0.0
	}

	w := e.weights
	return w.History*history + w.Performance*performance +
		w.Satisfaction*satisfaction + w.Availability*availability
}

// historicalRate derives a per-class preference for a strategy from the
// pattern table of recent successful decisions. With no entries for the
// strategy the reliability defaults apply.
func (e *AdaptiveEngine) historicalRate(strategy domain.RouteDecision, class domain.ComplexityClass) float64 {
	e.mu.Lock()
	defer e.mu.Unlock()

	fallbackRate := defaultGenerativeRate
	if strategy == domain.DecisionRuleBased {
		fallbackRate = defaultRuleBasedRate
	}

	table := e.patterns[class]
	if table == nil || table.Len() == 0 {
		return fallbackRate
	}

	matches := 0
	table.Do(func(d domain.RouteDecision) {
		if d == strategy {
			matches++
		}
	})
	if matches == 0 {
		return fallbackRate
	}
	return float64(matches) / float64(table.Len())
}

// Insights reports the routing trend, per-class preferences and textual
// recommendations for operators.
func (e *AdaptiveEngine) Insights() *domain.AdaptiveInsights {
	insights := &domain.AdaptiveInsights{
		Trend:            e.trend(),
		ClassPreferences: make(map[string]domain.RouteDecision),
		Recommendations:  []string{},
		HistorySize:      e.outcomes.HistorySize(),
	}

	e.mu.Lock()
	for class, table := range e.patterns {
		if table.Len() == 0 {
			continue
		}
		counts := make(map[domain.RouteDecision]int)
		table.Do(func(d domain.RouteDecision) { counts[d]++ })
		best, bestCount := domain.DecisionRuleBased, 0
		for d, c := range counts {
			if c > bestCount {
				best, bestCount = d, c
			}
		}
		insights.ClassPreferences[class.String()] = best
	}
	e.mu.Unlock()

	if pref, ok := insights.ClassPreferences[domain.ComplexitySimple.String()]; ok &&
		pref == domain.DecisionGenerativeSQL {
		insights.Recommendations = append(insights.Recommendations,
			"simple queries are being routed to the generative strategy; rule-based handles these cheaper")
	}
	if ratio := e.outcomes.RecentFallbackRatio(); ratio > 0.3 {
		insights.Recommendations = append(insights.Recommendations,
			fmt.Sprintf("fallback ratio at %.0f%% of recent queries; check generative backend health", ratio*100))
	}
	if insights.Trend == domain.TrendDegrading {
		insights.Recommendations = append(insights.Recommendations,
			"routing outcomes are degrading; consider lowering the generative confidence threshold")
	}
	return insights
}

// trend compares the most recent recentWindow outcomes against the prior
// window: combined success-rate and satisfaction deltas decide the label.
func (e *AdaptiveEngine) trend() domain.AdaptiveTrend {
	all := e.outcomes.Recent(2 * recentWindow)
	if len(all) < 2*recentWindow {
		return domain.TrendStable
	}

	prior, recent := all[:recentWindow], all[recentWindow:]

	successDelta := successShare(recent) - successShare(prior)
	satisfactionDelta := satisfactionAvg(recent) - satisfactionAvg(prior)

	switch {
	case successDelta > 0.1 || satisfactionDelta > 0.3:
		return domain.TrendImproving
	case successDelta < -0.1 || satisfactionDelta < -0.3:
		return domain.TrendDegrading
	default:
		return domain.TrendStable
	}
}

func successShare(outcomes []domain.QueryOutcome) float64 {
	if len(outcomes) == 0 {
		return 0
	}
	ok := 0
	for _, o := range outcomes {
		if o.Succeeded {
			ok++
		}
	}
	return float64(ok) / float64(len(outcomes))
}

func satisfactionAvg(outcomes []domain.QueryOutcome) float64 {
	var sum float64
	var count int
	for _, o := range outcomes {
		if o.Satisfaction != nil {
			sum += *o.Satisfaction
			count++
		}
	}
	if count == 0 {
		return 0
	}
	return sum / float64(count)
}
