// Package domain defines the core entities of the PROAtivo query router.
// These models are independent of external services and represent the
// canonical data structures used throughout the routing layer.
package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// ============================================================
// Route decisions
// ============================================================

// RouteDecision identifies the strategy chosen for a query.
// Exactly one decision is produced per query.
type RouteDecision int

const (
	// DecisionGenerativeSQL routes the query to the LLM-driven SQL synthesizer.
	DecisionGenerativeSQL RouteDecision = iota
	// DecisionRuleBased routes the query to the deterministic rule processor.
	DecisionRuleBased
	// DecisionFallback means neither primary strategy produced an answer.
	DecisionFallback
)

var decisionNames = map[RouteDecision]string{
	DecisionGenerativeSQL: "generative_sql",
	DecisionRuleBased:     "rule_based",
	DecisionFallback:      "fallback",
}

func (d RouteDecision) String() string {
	if s, ok := decisionNames[d]; ok {
		return s
	}
	return fmt.Sprintf("route_decision(%d)", int(d))
}

// MarshalJSON encodes the decision as its stable string name.
func (d RouteDecision) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// UnmarshalJSON decodes a decision from its string name.
func (d *RouteDecision) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	for k, v := range decisionNames {
		if v == s {
			*d = k
			return nil
		}
	}
	return fmt.Errorf("unknown route decision %q", s)
}

// ============================================================
// Complexity
// ============================================================

// ComplexityClass buckets queries by structural complexity.
type ComplexityClass int

const (
	ComplexitySimple ComplexityClass = iota
	ComplexityMedium
	ComplexityComplex
)

var complexityNames = map[ComplexityClass]string{
	ComplexitySimple:  "simple",
	ComplexityMedium:  "medium",
	ComplexityComplex: "complex",
}

func (c ComplexityClass) String() string {
	if s, ok := complexityNames[c]; ok {
		return s
	}
	return fmt.Sprintf("complexity(%d)", int(c))
}

// MarshalJSON encodes the class as its stable string name.
func (c ComplexityClass) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.String())
}

// UnmarshalJSON decodes a class from its string name.
func (c *ComplexityClass) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	for k, v := range complexityNames {
		if v == s {
			*c = k
			return nil
		}
	}
	return fmt.Errorf("unknown complexity class %q", s)
}

// ============================================================
// Fallback triggers
// ============================================================

// FallbackTrigger categorizes why a primary strategy could not answer.
type FallbackTrigger int

const (
	// TriggerLLMError covers any primary-strategy failure, including the
	// rule-based path. The name survives from the original error taxonomy.
	TriggerLLMError FallbackTrigger = iota
	TriggerEmptyResponse
	TriggerLowConfidence
	TriggerTimeout
	TriggerQuotaExceeded
	TriggerOutOfDomain
	TriggerUnsupportedQuery
)

var triggerNames = map[FallbackTrigger]string{
	TriggerLLMError:         "llm_error",
	TriggerEmptyResponse:    "empty_response",
	TriggerLowConfidence:    "low_confidence",
	TriggerTimeout:          "timeout",
	TriggerQuotaExceeded:    "quota_exceeded",
	TriggerOutOfDomain:      "out_of_domain",
	TriggerUnsupportedQuery: "unsupported_query",
}

func (t FallbackTrigger) String() string {
	if s, ok := triggerNames[t]; ok {
		return s
	}
	return fmt.Sprintf("trigger(%d)", int(t))
}

// Known reports whether t is one of the declared triggers.
// Unknown triggers degrade to the emergency template.
func (t FallbackTrigger) Known() bool {
	_, ok := triggerNames[t]
	return ok
}

// MarshalJSON encodes the trigger as its stable string name.
func (t FallbackTrigger) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// UnmarshalJSON decodes a trigger from its string name.
func (t *FallbackTrigger) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	for k, v := range triggerNames {
		if v == s {
			*t = k
			return nil
		}
	}
	return fmt.Errorf("unknown fallback trigger %q", s)
}

// ============================================================
// Fallback responses
// ============================================================

// FallbackStrategy identifies how a fallback message was produced.
type FallbackStrategy int

const (
	StrategyPredefined FallbackStrategy = iota
	StrategyTemplateBased
	StrategyHelpSuggestions
	StrategyEmergency
)

var fallbackStrategyNames = map[FallbackStrategy]string{
	StrategyPredefined:      "predefined",
	StrategyTemplateBased:   "template_based",
	StrategyHelpSuggestions: "help_suggestions",
	StrategyEmergency:       "emergency",
}

func (s FallbackStrategy) String() string {
	if n, ok := fallbackStrategyNames[s]; ok {
		return n
	}
	return fmt.Sprintf("fallback_strategy(%d)", int(s))
}

// MarshalJSON encodes the strategy as its stable string name.
func (s FallbackStrategy) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON decodes a strategy from its string name.
func (s *FallbackStrategy) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	for k, v := range fallbackStrategyNames {
		if v == name {
			*s = k
			return nil
		}
	}
	return fmt.Errorf("unknown fallback strategy %q", name)
}

// FallbackResponse is a safe, user-presentable answer produced when a
// primary strategy failed. Constructed fresh per call, never nil fields.
type FallbackResponse struct {
	Message     string           `json:"message"`
	Confidence  float64          `json:"confidence"`
	Strategy    FallbackStrategy `json:"strategy"`
	Suggestions []string         `json:"suggestions"`
	Trigger     FallbackTrigger  `json:"trigger"`
	Actionable  bool             `json:"actionable"`
}

// ============================================================
// Query outcomes
// ============================================================

// QueryOutcome is the record of one completed routing attempt.
// It is appended to a bounded history and never mutated afterwards,
// except to attach a user satisfaction score.
type QueryOutcome struct {
	Decision        RouteDecision    `json:"decision"`
	Succeeded       bool             `json:"succeeded"`
	Latency         time.Duration    `json:"latency_ns"`
	Confidence      float64          `json:"confidence"`
	Satisfaction    *float64         `json:"satisfaction,omitempty"` // 1.0–5.0 when set
	RecordedAt      time.Time        `json:"recorded_at"`
	Complexity      ComplexityClass  `json:"complexity"`
	FallbackTrigger *FallbackTrigger `json:"fallback_trigger,omitempty"`
}

// ============================================================
// Query context and execution results
// ============================================================

// QueryContext carries optional caller-provided hints alongside a query.
type QueryContext struct {
	UserID         string `json:"user_id,omitempty"`
	ConversationID string `json:"conversation_id,omitempty"`
	Language       string `json:"language,omitempty"`
}

// ExecutionResult is what Execute returns for a query. Strategy failures
// never surface as errors; they arrive here as a FallbackResponse.
type ExecutionResult struct {
	QueryID    string            `json:"query_id"`
	Decision   RouteDecision     `json:"decision"`
	Reason     string            `json:"reason"`
	Success    bool              `json:"success"`
	SQL        string            `json:"sql,omitempty"`
	Confidence float64           `json:"confidence"`
	Rows       []map[string]any  `json:"rows,omitempty"`
	Latency    time.Duration     `json:"latency_ns"`
	Fallback   *FallbackResponse `json:"fallback,omitempty"`
}
