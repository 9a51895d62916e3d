package domain

import "time"

// ============================================================
// Routing metrics & health reports
// ============================================================

// DecisionMetrics holds the per-decision slice of a RouteMetrics snapshot.
type DecisionMetrics struct {
	Requests     int64         `json:"requests"`
	Percentage   float64       `json:"percentage"`
	SuccessRate  float64       `json:"success_rate"` // over the most recent 50 outcomes
	AvgLatencyMs float64       `json:"avg_latency_ms"`
	AvgLatency   time.Duration `json:"-"`
}

// RouteMetrics is an immutable snapshot of the routing counters,
// safe for concurrent reporting and JSON round-trips.
type RouteMetrics struct {
	TotalRequests      int64                      `json:"total_requests"`
	Decisions          map[string]DecisionMetrics `json:"decisions"`
	BreakerActivations int64                      `json:"breaker_activations"`
	BreakerOpen        bool                       `json:"breaker_open"`
	SatisfactionAvg    float64                    `json:"satisfaction_avg"`
	SatisfactionCount  int64                      `json:"satisfaction_count"`
	FallbacksByTrigger map[string]int64           `json:"fallbacks_by_trigger"`
	AdaptiveEnabled    bool                       `json:"adaptive_enabled"`
	AdaptiveActive     bool                       `json:"adaptive_active"` // enough history to use the adaptive engine
	HistorySize        int                        `json:"history_size"`
	GeneratedAt        time.Time                  `json:"generated_at"`
}

// AdaptiveTrend summarizes whether routing quality is moving.
type AdaptiveTrend string

const (
	TrendImproving AdaptiveTrend = "improving"
	TrendDegrading AdaptiveTrend = "degrading"
	TrendStable    AdaptiveTrend = "stable"
)

// AdaptiveInsights is returned by the insights endpoint.
type AdaptiveInsights struct {
	Trend            AdaptiveTrend            `json:"trend"`
	ClassPreferences map[string]RouteDecision `json:"class_preferences"`
	Recommendations  []string                 `json:"recommendations"`
	HistorySize      int                      `json:"history_size"`
}

// HealthReport is returned by GET /healthz.
type HealthReport struct {
	Status          string   `json:"status"` // healthy, degraded, critical
	Issues          []string `json:"issues"`
	Recommendations []string `json:"recommendations"`
}
